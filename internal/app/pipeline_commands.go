package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ggonzalez94/yieldsensei/internal/agent"
	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/events"
	"github.com/ggonzalez94/yieldsensei/internal/httpx"
	"github.com/ggonzalez94/yieldsensei/internal/journal"
	"github.com/ggonzalez94/yieldsensei/internal/pipeline"
	"github.com/ggonzalez94/yieldsensei/internal/registry"
)

const agentTimeout = 2 * time.Minute

type stageInfo struct {
	Name           pipeline.StageName   `json:"name"`
	DependsOn      []pipeline.StageName `json:"depends_on"`
	Agent          pipeline.Profile     `json:"agent"`
	ExpectedOutput string               `json:"expected_output"`
}

func (s *runtimeState) newPipelineCommand() *cobra.Command {
	root := &cobra.Command{Use: "pipeline", Short: "Multi-stage portfolio analysis pipeline"}

	var capitalArg, riskArg, strategyArg, executorArg string
	run := &cobra.Command{
		Use:   "run",
		Short: "Run research, yield, security, sentiment and allocation stages in order",
		Example: `  sensei pipeline run --capital 25000 --risk-level low
  sensei pipeline run --executor anthropic --strategy aggressive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.resetCommandDiagnostics()
			capital, err := pipeline.ParseCapital(capitalArg)
			if err != nil {
				return err
			}
			pc, err := pipeline.NewContext(capital, pipeline.RiskLevel(riskArg), pipeline.Strategy(strategyArg))
			if err != nil {
				return err
			}
			executorName := strings.ToLower(strings.TrimSpace(executorArg))
			if executorName == "" {
				executorName = s.settings.AgentProvider
			}
			exec, err := s.buildExecutor(executorName)
			if err != nil {
				return err
			}

			opts := []pipeline.Option{pipeline.WithLogger(s.log)}
			if s.settings.JournalEnabled {
				store, err := s.openJournal()
				if err != nil {
					return err
				}
				opts = append(opts, pipeline.WithJournal(store))
			}
			if addr := strings.TrimSpace(s.settings.RedisAddress); addr != "" {
				pub, err := events.NewRedisPublisher(events.RedisConfig{
					Address:  addr,
					Password: s.settings.RedisPassword,
					Channel:  s.settings.RedisChannel,
				}, s.log)
				if err != nil {
					return clierr.Wrap(clierr.CodeUnavailable, "connect event publisher", err)
				}
				s.publisher = pub
				s.log.Info("publishing stage events", zap.String("channel", pub.Channel()))
				opts = append(opts, pipeline.WithObserver(pub))
			}

			result, err := pipeline.New(exec, opts...).Run(cmd.Context(), pc)
			if err != nil {
				if result != nil && s.settings.JournalEnabled {
					s.captureCommandDiagnostics("", []string{fmt.Sprintf("run %s recorded; inspect with: %s pipeline show %s", result.ID, s.root.Name(), result.ID)}, nil)
				}
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, nil)
		},
	}
	run.Flags().StringVar(&capitalArg, "capital", pipeline.DefaultCapital.String(), "Capital to allocate in USD")
	run.Flags().StringVar(&riskArg, "risk-level", string(pipeline.RiskMedium), "Risk level (low|medium|high)")
	run.Flags().StringVar(&strategyArg, "strategy", string(pipeline.StrategyBalanced), "Strategy (balanced|aggressive|conservative)")
	run.Flags().StringVar(&executorArg, "executor", "", "Stage executor (offline|anthropic|openai); defaults to the configured agent provider")

	stages := &cobra.Command{
		Use:   "stages",
		Short: "List pipeline stages and their agent profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := pipeline.DefaultStages()
			items := make([]stageInfo, 0, len(defs))
			for _, st := range defs {
				deps := st.DependsOn
				if deps == nil {
					deps = []pipeline.StageName{}
				}
				items = append(items, stageInfo{Name: st.Name, DependsOn: deps, Agent: st.Agent, ExpectedOutput: st.ExpectedOutput})
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), items, nil, nil)
		},
	}

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.requireJournal()
			if err != nil {
				return err
			}
			item, err := store.Get(args[0])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), item, nil, nil)
		},
	}

	var statusArg string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded pipeline runs, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := strings.ToLower(strings.TrimSpace(statusArg))
			switch pipeline.Status(status) {
			case "", pipeline.StatusRunning, pipeline.StatusCompleted, pipeline.StatusFailed:
			default:
				return clierr.New(clierr.CodeUsage, "--status must be running, completed or failed")
			}
			store, err := s.requireJournal()
			if err != nil {
				return err
			}
			items, err := store.List(status, limit)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), items, nil, nil)
		},
	}
	list.Flags().StringVar(&statusArg, "status", "", "Filter by run status (running|completed|failed)")
	list.Flags().IntVar(&limit, "limit", journal.DefaultListLimit, "Maximum runs to return")

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded runs older than a duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return clierr.New(clierr.CodeUsage, "--older-than must be positive")
			}
			store, err := s.requireJournal()
			if err != nil {
				return err
			}
			n, err := store.Prune(s.runner.now().Add(-olderThan))
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "prune journal", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), map[string]int64{"deleted": n}, nil, nil)
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age threshold for deletion")

	root.AddCommand(run, stages, show, list, prune)
	return root
}

func (s *runtimeState) openJournal() (*journal.Store, error) {
	if s.journal != nil {
		return s.journal, nil
	}
	store, err := journal.Open(s.settings.JournalPath, s.settings.JournalLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open run journal", err)
	}
	s.journal = store
	return store, nil
}

func (s *runtimeState) requireJournal() (*journal.Store, error) {
	if !s.settings.JournalEnabled {
		return nil, clierr.New(clierr.CodeUsage, "run journal is disabled")
	}
	return s.openJournal()
}

// buildExecutor returns the stage executor. Model-backed executors are
// grounded on the analytical tools.
func (s *runtimeState) buildExecutor(name string) (pipeline.Executor, error) {
	var baseURL string
	if def, ok := registry.DefaultBaseURL(registry.Service(name)); ok {
		baseURL = firstNonEmpty(s.settings.AgentBaseURL, def)
	}
	switch name {
	case "offline":
		return agent.NewOffline(s.toolset, nil), nil
	case "anthropic":
		if err := registry.CheckBaseURL(registry.ServiceAnthropic, baseURL); err != nil {
			return nil, err
		}
		exec, err := agent.NewAnthropic(agent.AnthropicConfig{
			APIKey:    firstNonEmpty(s.settings.AgentAPIKey, os.Getenv("ANTHROPIC_API_KEY")),
			Model:     s.settings.AgentModel,
			BaseURL:   baseURL,
			MaxTokens: s.settings.AgentMaxTokens,
		}, s.log)
		if err != nil {
			return nil, err
		}
		return agent.NewGrounded(exec, s.toolset, nil, s.log), nil
	case "openai":
		if err := registry.CheckBaseURL(registry.ServiceOpenAI, baseURL); err != nil {
			return nil, err
		}
		exec, err := agent.NewChat(httpx.New(agentTimeout, 0, httpx.WithLogger(s.log)), agent.ChatConfig{
			APIKey:    firstNonEmpty(s.settings.AgentAPIKey, os.Getenv("OPENAI_API_KEY")),
			BaseURL:   baseURL,
			Model:     s.settings.AgentModel,
			MaxTokens: s.settings.AgentMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return agent.NewGrounded(exec, s.toolset, nil, s.log), nil
	default:
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("unknown executor %q (offline|anthropic|openai)", name))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
