package app

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/yieldsensei/internal/classify"
	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/model"
	"github.com/ggonzalez94/yieldsensei/internal/out"
	"github.com/ggonzalez94/yieldsensei/internal/schema"
	"github.com/ggonzalez94/yieldsensei/internal/tools"
)

func intentsAnnotation(table classify.Table) map[string]string {
	intents := table.Intents()
	names := make([]string, 0, len(intents)+1)
	for _, i := range intents {
		names = append(names, string(i))
	}
	names = append(names, string(classify.Help))
	return map[string]string{schema.IntentsAnnotation: strings.Join(names, ",")}
}

func (s *runtimeState) newToolsCommand() *cobra.Command {
	root := &cobra.Command{Use: "tools", Short: "Analytical tool commands"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List analytical tools and the intents they answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), s.toolset.Infos(), nil, nil)
		},
	}
	root.AddCommand(list)
	return root
}

func (s *runtimeState) newMarketCommand() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:         "market [query...]",
		Short:       "Ask for TVL rankings, yield rankings or protocol details",
		Args:        cobra.ArbitraryArgs,
		Annotations: intentsAnnotation(classify.MarketRules),
		Example: `  sensei market top tvl protocols
  sensei market best stablecoin yields
  sensei market protocol info aave`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, _ := s.toolset.Get("market")
			return s.runTool(cmd, tool, args, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the tool text result verbatim")
	return cmd
}

func (s *runtimeState) newSecurityCommand() *cobra.Command {
	var raw bool
	var protocol string
	cmd := &cobra.Command{
		Use:         "security [query...]",
		Short:       "Ask for audit status, TVL stability or risk ratings",
		Args:        cobra.ArbitraryArgs,
		Annotations: intentsAnnotation(classify.SecurityRules),
		Example: `  sensei security audit status of aave
  sensei security tvl stability --protocol lido
  sensei security risk ratings`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var tool tools.Tool
			if p := strings.TrimSpace(protocol); p != "" {
				tool = tools.NewSecurity(s.scorer, s.llama.Name(), tools.WithProtocol(p))
			} else {
				tool, _ = s.toolset.Get("security")
			}
			return s.runTool(cmd, tool, args, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the tool text result verbatim")
	cmd.Flags().StringVar(&protocol, "protocol", "", "Protocol to analyze instead of matching it from the query")
	return cmd
}

func (s *runtimeState) newStrategyCommand() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:         "strategy [query...]",
		Short:       "Ask about yield strategies, their risks and how to run them",
		Args:        cobra.ArbitraryArgs,
		Annotations: intentsAnnotation(classify.StrategyRules),
		Example: `  sensei strategy list available strategies
  sensei strategy risks of delta-neutral farming
  sensei strategy guide for leveraged farming`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, _ := s.toolset.Get("strategy")
			return s.runTool(cmd, tool, args, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the tool text result verbatim")
	return cmd
}

// runTool classifies and executes one query. With raw the tool text is
// printed as is; otherwise ok and help results go out as a success
// envelope and everything else as an error envelope carrying the tool text.
func (s *runtimeState) runTool(cmd *cobra.Command, tool tools.Tool, args []string, raw bool) error {
	s.resetCommandDiagnostics()
	commandPath := trimRootPath(cmd.CommandPath())
	query := strings.TrimSpace(strings.Join(args, " "))

	intent := tool.Classify(query)
	start := time.Now()
	res := tool.Execute(cmd.Context(), intent, query)
	elapsed := time.Since(start)

	var providers []model.ProviderStatus
	if name := tool.Info().Provider; name != "" && res.Status != tools.StatusHelp {
		providers = []model.ProviderStatus{{Name: name, Status: statusFromErr(res.Err), LatencyMS: elapsed.Milliseconds()}}
	}
	s.captureCommandDiagnostics(string(res.Intent), nil, providers)

	if raw {
		if err := out.RenderText(s.runner.stdout, res.Text); err != nil {
			return clierr.Wrap(clierr.CodeInternal, "write tool output", err)
		}
		if res.Err != nil {
			// Already printed; only the exit code is left to report.
			return silentError{res.Err}
		}
		return nil
	}

	switch res.Status {
	case tools.StatusOK:
		return s.emitSuccess(commandPath, res.Payload, nil, providers)
	case tools.StatusHelp:
		return s.emitSuccess(commandPath, res.Text, nil, providers)
	default:
		if res.Err == nil {
			return clierr.New(clierr.CodeInternal, res.Text)
		}
		msg := res.Text
		if res.Payload != nil {
			msg = res.Err.Error()
		}
		return clierr.New(clierr.CodeOf(res.Err), msg)
	}
}

// silentError carries an exit code for output that was already written.
type silentError struct{ err error }

func (e silentError) Error() string { return e.err.Error() }
func (e silentError) Unwrap() error { return e.err }
