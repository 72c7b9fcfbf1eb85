package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/stocklog/internal/capture"
	"github.com/roach88/stocklog/internal/config"
	"github.com/roach88/stocklog/internal/intake"
	"github.com/roach88/stocklog/internal/provenance"
	"github.com/roach88/stocklog/internal/store"
)

// session is what a command needs once config and store are loaded.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	backend store.Backend
}

// openSession loads the config, configures logging and opens the store.
// The store is migrated on open and default settings are written. Callers
// must call close.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, opts.fail(cmd, CodeConfig, WrapExitError(ExitCommandError, "failed to load config", err))
	}
	if opts.Database != "" {
		cfg.Database.DSN = opts.Database
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, opts.fail(cmd, CodeConfig, WrapExitError(ExitCommandError, "failed to load config", err))
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	storeOpts, err := cfg.StoreOptions()
	if err != nil {
		return nil, opts.fail(cmd, CodeConfig, WrapExitError(ExitCommandError, "failed to load config", err))
	}

	logger.Debug("opening database", "driver", cfg.Database.Driver)
	backend, err := store.OpenBackend(storeOpts)
	if err != nil {
		return nil, opts.fail(cmd, CodeStore, WrapExitError(ExitCommandError, "failed to open database", err))
	}
	if err := backend.InitDefaults(ctx); err != nil {
		backend.Close()
		return nil, opts.fail(cmd, CodeStore, WrapExitError(ExitCommandError, "failed to initialize settings", err))
	}

	return &session{cfg: cfg, logger: logger, backend: backend}, nil
}

func (s *session) close() {
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// applier wires the capture pipeline onto the session's store.
func (s *session) applier() *intake.Applier {
	tracer := provenance.StackTracer{
		Root: s.cfg.Capture.TraceRoot,
		Skip: s.cfg.Capture.TraceSkip,
	}
	resolver := provenance.NewResolver(s.backend,
		provenance.WithTracer(tracer),
		provenance.WithLogger(s.logger),
	)
	engine := capture.New(s.backend, resolver,
		capture.WithLogger(s.logger),
		capture.WithTrackedType(s.cfg.Capture.TrackedType),
	)
	hooks := capture.NewHooks(s.logger)
	engine.Register(hooks)
	return intake.NewApplier(engine, hooks, nil, s.logger)
}

// commandContext returns the command's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
