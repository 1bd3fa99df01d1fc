package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ggonzalez94/yieldsensei/internal/config"
	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
	"github.com/ggonzalez94/yieldsensei/internal/events"
	"github.com/ggonzalez94/yieldsensei/internal/httpx"
	"github.com/ggonzalez94/yieldsensei/internal/journal"
	"github.com/ggonzalez94/yieldsensei/internal/logging"
	"github.com/ggonzalez94/yieldsensei/internal/model"
	"github.com/ggonzalez94/yieldsensei/internal/out"
	"github.com/ggonzalez94/yieldsensei/internal/policy"
	"github.com/ggonzalez94/yieldsensei/internal/providers/defillama"
	"github.com/ggonzalez94/yieldsensei/internal/registry"
	"github.com/ggonzalez94/yieldsensei/internal/risk"
	"github.com/ggonzalez94/yieldsensei/internal/schema"
	"github.com/ggonzalez94/yieldsensei/internal/strategy"
	"github.com/ggonzalez94/yieldsensei/internal/tools"
	"github.com/ggonzalez94/yieldsensei/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner        *Runner
	flags         config.GlobalFlags
	settings      config.Settings
	log           *zap.Logger
	root          *cobra.Command
	lastCommand   string
	lastIntent    string
	lastWarnings  []string
	lastProviders []model.ProviderStatus

	http      *httpx.Client
	llama     *defillama.Client
	scorer    *risk.Scorer
	catalog   *strategy.Catalog
	toolset   *tools.Set
	journal   *journal.Store
	publisher *events.Publisher
}

func (r *Runner) Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := &runtimeState{runner: r, log: zap.NewNop()}
	root := state.newRootCommand()
	state.root = root
	state.resetCommandDiagnostics()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(ctx)
	err = normalizeRunError(err)
	defer state.close()
	if err == nil {
		return 0
	}
	var printed silentError
	if errors.As(err, &printed) {
		return clierr.ExitCode(err)
	}
	state.renderError("", err, state.lastWarnings, state.lastProviders)
	return clierr.ExitCode(err)
}

func (s *runtimeState) close() {
	if s.journal != nil {
		_ = s.journal.Close()
	}
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	_ = s.log.Sync()
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "DeFi yield research and strategy CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			log, err := logging.New(logging.Config{Level: settings.LogLevel, Encoding: settings.LogEncoding})
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "configure logging", err)
			}
			s.log = log

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}
			if needsServices(path) {
				return s.initServices()
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated, dotted paths allowed)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Provider request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per provider request")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug|info|warn|error|off)")
	cmd.PersistentFlags().BoolVar(&s.flags.NoJournal, "no-journal", false, "Do not record pipeline runs")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newToolsCommand())
	cmd.AddCommand(s.newMarketCommand())
	cmd.AddCommand(s.newSecurityCommand())
	cmd.AddCommand(s.newStrategyCommand())
	cmd.AddCommand(s.newPipelineCommand())
	cmd.AddCommand(s.newVersionCommand())

	return cmd
}

// initServices wires the gateway, scorer and tools once per process.
func (s *runtimeState) initServices() error {
	if s.toolset != nil {
		return nil
	}
	if err := registry.CheckBaseURL(registry.ServiceDefiLlama, s.settings.DefiLlamaAPIBase); err != nil {
		return err
	}
	if err := registry.CheckBaseURL(registry.ServiceDefiLlama, s.settings.DefiLlamaYieldsBase); err != nil {
		return err
	}
	s.http = httpx.New(s.settings.Timeout, s.settings.Retries, httpx.WithLogger(s.log))
	s.llama = defillama.New(s.http,
		defillama.WithAPIBase(s.settings.DefiLlamaAPIBase),
		defillama.WithYieldsBase(s.settings.DefiLlamaYieldsBase),
	)

	table := risk.DefaultAuditTable()
	if path := strings.TrimSpace(s.settings.AuditTablePath); path != "" {
		loaded, err := risk.LoadAuditTable(path)
		if err != nil {
			return err
		}
		table = loaded
	}
	s.scorer = risk.NewScorer(table, s.llama, s.log)
	s.catalog = strategy.Default()
	s.toolset = tools.NewSet(
		tools.NewMarket(s.llama, 0),
		tools.NewSecurity(s.scorer, s.llama.Name()),
		tools.NewStrategy(s.catalog),
	)
	return nil
}

func needsServices(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "", "version", "schema", "pipeline", "pipeline stages", "pipeline show", "pipeline list", "pipeline prune":
		return false
	default:
		return true
	}
}

func (s *runtimeState) newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, nil)
		},
	}
	return cmd
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string, providers []model.ProviderStatus) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Intent:    s.lastIntent,
			Providers: providers,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error, warnings []string, providers []model.ProviderStatus) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.CodeOf(err)

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    int(code),
			Type:    clierr.TypeName(code),
			Message: err.Error(),
		},
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Intent:    s.lastIntent,
			Providers: providers,
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func newRequestID() string {
	return uuid.NewString()
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func statusFromErr(err error) string {
	if err == nil {
		return "ok"
	}
	switch clierr.CodeOf(err) {
	case clierr.CodeAuth:
		return "auth_error"
	case clierr.CodeRateLimited:
		return "rate_limited"
	case clierr.CodeUnavailable:
		return "unavailable"
	case clierr.CodeTimeout:
		return "timeout"
	case clierr.CodeNotFound, clierr.CodeInsufficientData, clierr.CodeUsage:
		return "ok"
	default:
		return "error"
	}
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}

func (s *runtimeState) resetCommandDiagnostics() {
	s.lastIntent = ""
	s.lastWarnings = nil
	s.lastProviders = nil
}

func (s *runtimeState) captureCommandDiagnostics(intent string, warnings []string, providers []model.ProviderStatus) {
	s.lastIntent = intent
	if len(warnings) == 0 {
		s.lastWarnings = nil
	} else {
		s.lastWarnings = append([]string(nil), warnings...)
	}
	if len(providers) == 0 {
		s.lastProviders = nil
	} else {
		s.lastProviders = append([]model.ProviderStatus(nil), providers...)
	}
}
