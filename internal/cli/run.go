package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/dbstore/engine"
	"github.com/roach88/dbstore/internal/config"
	"github.com/roach88/dbstore/store"
)

// storeFunc is the body of a command that needs an open store.
type storeFunc func(ctx context.Context, s *store.Store, f *OutputFormatter) error

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// withStore loads the config, opens the configured store, runs fn and
// closes the store again. Interrupts cancel the context passed to fn.
func withStore(cmd *cobra.Command, opts *RootOptions, fn storeFunc) error {
	f := opts.formatter(cmd)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	log, err := cfg.Logger(cmd.ErrOrStderr(), opts.Verbose)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := cfg.OpenStore(ctx, log)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeOpen, err)
	}
	defer func() {
		if err := s.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("closing store", "error", err)
		}
	}()
	log.Debug("store opened", "engine", cfg.Engine, "database", s.DB(opts.Database).Name())

	return fn(ctx, s, f)
}

// collection resolves a collection of the selected database, reporting
// failures through f.
func collection(ctx context.Context, s *store.Store, opts *RootOptions, f *OutputFormatter, name string) (engine.Collection, error) {
	coll, err := s.Collection(ctx, opts.Database, name)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeOperation, err)
	}
	return coll, nil
}
