// Package main provides the nexusd daemon entry point.
//
// nexusd advances file-backed agent conversations: it reads session
// transcripts and agent templates from disk, drives completion round-trips,
// dispatches declared tool calls, and gates risky calls (file writes,
// non-allowlisted shell commands, outbound Slack messages, session edits)
// behind a human-editable approval ledger; reads, directory creation and
// task-store calls run ungated.
//
// # Basic usage
//
//	nexusd serve --config nexusd.yaml
//	nexusd serve --config nexusd.yaml --pump
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"github.com/nexusorch/nexusd/internal/advancer"
	"github.com/nexusorch/nexusd/internal/advancer/providers"
	"github.com/nexusorch/nexusd/internal/checkin"
	"github.com/nexusorch/nexusd/internal/config"
	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/internal/dispatcher"
	"github.com/nexusorch/nexusd/internal/ledger"
	"github.com/nexusorch/nexusd/internal/logging"
	"github.com/nexusorch/nexusd/internal/orchestrator"
	"github.com/nexusorch/nexusd/internal/taskcli"
	"github.com/nexusorch/nexusd/internal/toolregistry"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the command tree, separated from main for testability.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nexusd",
		Short:         "File-backed multi-agent orchestrator daemon",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(buildServeCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		once       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation loop",
		Long: `Run the reconciliation loop.

By default serve starts the watch-mode reactor: a filesystem watcher
debounces session/ledger/storage changes into reconciliation passes,
backstopped by a periodic tick. With --pump, serve performs exactly one
pump pass and exits — useful for cron-driven deployments or scripting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, once)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "nexusd.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVar(&once, "pump", false, "Perform a single pump pass and exit instead of watching")
	return cmd
}

func runServe(ctx context.Context, configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("nexusd: load config: %w", err)
	}

	log := logging.Default(cfg.Logging.Level, cfg.Logging.Pretty)
	log.Info().Str("config", configPath).Bool("once", once).Msg("starting nexusd")

	for _, dir := range []string{cfg.Paths.Sessions, cfg.Paths.Tasks, cfg.Paths.Storage} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("nexusd: create directory %s: %w", dir, err)
		}
	}

	store := convstore.New(cfg.Paths.Templates, cfg.Paths.Sessions)

	var taskClient *taskcli.Client
	if cfg.Tasks.Binary != "" {
		taskClient = taskcli.New(cfg.Tasks.Binary, cfg.Tasks.Args...)
	}

	allowlist, err := config.LoadShellAllowlist(cfg.Shell.AllowlistFile)
	if err != nil {
		return fmt.Errorf("nexusd: load shell allowlist: %w", err)
	}

	var slackClient *slack.Client
	if token := os.Getenv(cfg.Slack.TokenEnv); token != "" {
		slackClient = slack.New(token)
	}

	registry := toolregistry.Builtin(toolregistry.Deps{
		Store:          store,
		TaskCLI:        taskClient,
		Slack:          slackClient,
		SlackChannel:   cfg.Slack.DefaultChannel,
		ShellAllowlist: allowlist,
	})

	approvalsPath := filepath.Join(cfg.Paths.Tasks, "approvals.task.md")
	l, err := ledger.New(approvalsPath)
	if err != nil {
		return fmt.Errorf("nexusd: open approval ledger: %w", err)
	}

	d := dispatcher.New(store, registry, l, log)

	completer, err := buildCompleter(cfg)
	if err != nil {
		return err
	}
	adv := advancer.New(store, registry, d, completer, log)

	checkinPath := filepath.Join(cfg.Paths.Storage, "planner-checkin.yaml")
	plannerAgent := cfg.Checkin.PlannerAgentID
	if plannerAgent == "" {
		plannerAgent = "planner"
	}
	ci := checkin.New(store, checkinPath, cfg.CheckinInterval(), plannerAgent)

	r := orchestrator.New(store, d, adv, ci, log)

	if once {
		if err := r.Pump(ctx); err != nil {
			return fmt.Errorf("nexusd: pump: %w", err)
		}
		log.Info().Msg("pump complete")
		return nil
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dirs := orchestrator.WatchDirs{
		Sessions: cfg.Paths.Sessions,
		Tasks:    cfg.Paths.Tasks,
		Storage:  cfg.Paths.Storage,
	}
	if err := orchestrator.Watch(ctx, dirs, r, cfg.WatchDebounce(), cfg.WatchTick()); err != nil {
		return fmt.Errorf("nexusd: watch: %w", err)
	}
	log.Info().Msg("nexusd stopped")
	return nil
}

// buildCompleter selects the completion provider adapter named in
// cfg.Model.Provider, resolving its credential from cfg.Model.APIKeyEnv
// (config.Validate already guarantees the variable is set).
func buildCompleter(cfg *config.Config) (advancer.Completer, error) {
	apiKey := os.Getenv(cfg.Model.APIKeyEnv)
	switch cfg.Model.Provider {
	case "anthropic":
		return providers.NewAnthropic(apiKey), nil
	case "openai":
		return providers.NewOpenAI(apiKey), nil
	default:
		return nil, fmt.Errorf("nexusd: unknown model provider %q", cfg.Model.Provider)
	}
}
