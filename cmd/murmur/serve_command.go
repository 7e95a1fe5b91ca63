package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"murmur/internal/api"
	"murmur/internal/jobs"
	"murmur/internal/logging"
	"murmur/internal/preflight"
	"murmur/internal/store"
)

// logHubCapacity bounds the in-memory log buffer served by /v1/logs.
const logHubCapacity = 4096

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transcription API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), ctx, bind)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides server.bind)")
	return cmd
}

func runServer(cmdCtx context.Context, ctx *commandContext, bind string) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if bind = strings.TrimSpace(bind); bind != "" {
		cfg.Server.Bind = bind
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire server lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another murmur server is already running (lock %s)", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	logHub := logging.NewStreamHub(logHubCapacity)
	opts, err := logging.OptionsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	opts.Stream = logHub
	logger, err := logging.New(opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.JobLogDir(), Pattern: "*.log"},
	)

	if failed := preflight.Failed(preflight.RunAll(signalCtx, cfg)); len(failed) > 0 {
		for _, result := range failed {
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
		}
		return fmt.Errorf("preflight failed: %d check(s) did not pass; run `murmur status` for details", len(failed))
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	manager := jobs.NewManager(cfg, engine, st, logger)
	server := api.New(cfg, manager, st, logHub, logger)
	if err := server.Start(signalCtx); err != nil {
		return err
	}

	logger.Info("murmur server started",
		logging.String(logging.FieldEventType, "server_started"),
		logging.String("address", server.Addr()),
		logging.String("model", manager.Model()),
		logging.Int("max_concurrent_jobs", cfg.Server.MaxConcurrentJobs),
	)

	<-signalCtx.Done()
	logger.Info("murmur server shutting down", logging.String(logging.FieldEventType, "server_stopping"))
	server.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logging.WarnWithContext(logger, "jobs did not stop in time", "shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "running transcriptions were abandoned"),
		)
	}
	return nil
}
