package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ctavolazzi/novasystem/internal/config"
	"github.com/ctavolazzi/novasystem/internal/docs"
	"github.com/ctavolazzi/novasystem/internal/event"
	"github.com/ctavolazzi/novasystem/internal/logging"
	"github.com/ctavolazzi/novasystem/internal/pipeline"
	"github.com/ctavolazzi/novasystem/internal/policy"
	"github.com/ctavolazzi/novasystem/internal/run"
	"github.com/ctavolazzi/novasystem/internal/runtime"
	"github.com/ctavolazzi/novasystem/internal/store"
	"github.com/ctavolazzi/novasystem/internal/strategy"
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Onboard a repository end to end",
	Long: `Execute runs the full onboarding pipeline for one repository:
clone, detect strategy, discover documentation, parse and validate
install commands, execute approved commands in the selected runtime,
and print a run summary.`,
	RunE: runExecute,
}

func init() {
	executeCmd.Flags().String("repo", "", "git URL or local path of the repository to onboard (required)")
	executeCmd.Flags().String("policy-config", "", "YAML file of additional policy rules")
	executeCmd.Flags().Int("timeout", 0, "per-command timeout in seconds (overrides config)")
	executeCmd.Flags().String("runtime", "", "execution backend: docker, podman, or shell (overrides config)")
	executeCmd.Flags().Bool("best-effort", false, "keep going after command failures instead of failing fast")
	executeCmd.Flags().BoolP("verbose", "v", false, "dump the full event history after the run")
	_ = executeCmd.MarkFlagRequired("repo")

	_ = viper.BindPFlag("policy.config_file", executeCmd.Flags().Lookup("policy-config"))
	_ = viper.BindPFlag("runtime.backend", executeCmd.Flags().Lookup("runtime"))
	_ = viper.BindPFlag("pipeline.best_effort", executeCmd.Flags().Lookup("best-effort"))

	rootCmd.AddCommand(executeCmd)
}

func runExecute(cmd *cobra.Command, args []string) error {
	repoRef, _ := cmd.Flags().GetString("repo")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load()
	if err != nil {
		exitCode = ExitUsage
		return err
	}
	if timeoutSec, _ := cmd.Flags().GetInt("timeout"); timeoutSec > 0 {
		cfg.Runtime.CommandTimeoutSeconds = timeoutSec
	}

	logger, err := newLogger(cfg)
	if err != nil {
		exitCode = ExitUsage
		return err
	}
	defer logger.Close()

	pol, err := policy.FromConfigFile(cfg.Policy.ConfigFile)
	if err != nil {
		exitCode = ExitUsage
		return fmt.Errorf("policy config: %w", err)
	}

	adapter, err := runtime.Select(cfg.Runtime.Backend)
	if err != nil {
		exitCode = ExitUsage
		return err
	}

	bus := event.NewBusWithHistory(cfg.Events.HistoryLimit)

	st, err := store.New(cfg.Paths.ResolveDataDir())
	if err != nil {
		exitCode = ExitUsage
		return err
	}
	sink := store.NewSink(st, bus, logger)
	defer sink.Close()

	orch, err := pipeline.New(pipeline.Config{
		Bus:      bus,
		Registry: strategy.NewDefaultRegistry(),
		Policy:   pol,
		Adapter:  adapter,
		Settings: pipeline.Settings{
			StepAttempts:   cfg.Retry.StepAttempts,
			CloneAttempts:  cfg.Retry.CloneAttempts,
			RetryBackoff:   2 * time.Second,
			CommandTimeout: cfg.Runtime.CommandTimeout(),
			PrepareTimeout: cfg.Runtime.PrepareTimeout(),
			BestEffort:     cfg.Pipeline.BestEffort,
			BaseImage:      cfg.Runtime.BaseImage,
		},
	},
		pipeline.WithLogger(logger),
		pipeline.WithDiscoverer(discovererFromConfig(cfg)),
	)
	if err != nil {
		exitCode = ExitUsage
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := orch.Execute(ctx, repoRef)
	if err != nil {
		// Usage error, detected before a run existed.
		exitCode = ExitUsage
		return err
	}

	rec, recErr := st.LoadRecord(r.ID)
	if recErr != nil {
		rec = nil
	}
	fmt.Print(renderSummary(r, rec))
	if verbose {
		fmt.Print(renderEvents(bus.HistoryForRun(r.ID)))
	}

	switch r.State {
	case run.StateSuccess:
		exitCode = ExitSuccess
	case run.StateCancelled:
		exitCode = ExitCancelled
	default:
		exitCode = ExitFailed
	}
	if exitCode != ExitSuccess {
		return fmt.Errorf("run %s ended in state %s", r.ID, r.State)
	}
	return nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	dataDir := ""
	if cfg.Logging.Enabled {
		dataDir = cfg.Paths.ResolveDataDir()
	}
	return logging.NewLogger(dataDir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

func discovererFromConfig(cfg *config.Config) *docs.Discoverer {
	d := docs.NewDiscoverer()
	d.MaxDocs = cfg.Docs.MaxDocs
	d.MaxBytes = int64(cfg.Docs.MaxFileBytes)
	return d
}
