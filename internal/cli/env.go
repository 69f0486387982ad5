package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/cloudywindow/internal/config"
	"github.com/roach88/cloudywindow/internal/editor"
	"github.com/roach88/cloudywindow/internal/journal"
	"github.com/roach88/cloudywindow/internal/store"
)

// env is the opened state a command works against.
type env struct {
	cfg       *config.Config
	cfgPath   string
	logger    *slog.Logger
	formatter *OutputFormatter
	store     *store.Store
	journal   *journal.Journal // nil when the journal could not be opened
	bridge    *editor.Bridge
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting structured output
		Verbose:   opts.Verbose,
	}
}

// loadConfig resolves the config file and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, string, error) {
	path := opts.Config
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if opts.Store != "" {
		cfg.Store = opts.Store
	}
	if opts.Journal != "" {
		cfg.Journal = opts.Journal
	}
	return cfg, path, nil
}

func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openEnv loads config, the store, the journal and the editor bridge. A
// journal that cannot be opened is logged and left nil so rule commands
// still work.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	f := newFormatter(opts, cmd)

	cfg, cfgPath, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)

	st := store.New(cfg.Store,
		store.WithLogger(logger),
		store.WithDebounce(cfg.Debounce),
	)

	e := &env{cfg: cfg, cfgPath: cfgPath, logger: logger, formatter: f, store: st}

	bridgeOpts := []editor.Option{
		editor.WithLogger(logger),
		editor.WithHint(cfg.HintAction()),
	}
	j, err := journal.Open(cfg.Journal)
	if err != nil {
		logger.Warn("journal unavailable", "path", cfg.Journal, "error", err)
	} else {
		e.journal = j
		bridgeOpts = append(bridgeOpts, editor.WithJournal(j))
	}

	e.bridge, err = editor.New(st, bridgeOpts...)
	if err != nil {
		_ = e.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeGeneric, "failed to build editor schema", err)
	}
	f.VerboseLog("store: %s", cfg.Store)
	return e, nil
}

// Close flushes pending store writes and closes the journal.
func (e *env) Close() error {
	var errs []error
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// finish closes e and turns a failed final write into a command error.
func (e *env) finish(err error) error {
	closeErr := e.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return e.formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to save rules", closeErr)
	}
	return nil
}

// record appends to the journal when there is one.
func (e *env) record(ctx context.Context, entry journal.Entry) {
	if e.journal == nil {
		return
	}
	if _, err := e.journal.Append(ctx, entry); err != nil {
		e.logger.Warn("journal append failed", "kind", entry.Kind, "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
