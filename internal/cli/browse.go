package cli

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/cloudywindow/internal/applier"
	"github.com/roach88/cloudywindow/internal/config"
	"github.com/roach88/cloudywindow/internal/contentview"
)

// BrowseOptions holds flags for the browse command.
type BrowseOptions struct {
	*RootOptions
	Pick    bool
	Width   int
	Height  int
	Debug   bool
	Draft   string
	Metrics string
}

// NewBrowseCommand creates the browse command.
func NewBrowseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BrowseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "browse [url]",
		Short: "Open a page with site CSS applied",
		Long: `Open a native web view with the matching rules injected on every
navigation. With --pick the element picker starts on each page load.

Manual picks are staged into a draft file (default: next to the store) for
review with import. Without a URL the last page shown is reopened, falling
back to home_url from the config.

Requires a build with cgo.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runBrowse(e, opts, args, cmd))
		},
	}

	cmd.Flags().BoolVar(&opts.Pick, "pick", false, "start the picker on every page load")
	cmd.Flags().IntVar(&opts.Width, "width", 1280, "window width")
	cmd.Flags().IntVar(&opts.Height, "height", 820, "window height")
	cmd.Flags().BoolVar(&opts.Debug, "devtools", false, "enable the web inspector")
	cmd.Flags().StringVar(&opts.Draft, "draft", "", "file receiving staged picks")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9090")
	return cmd
}

func runBrowse(e *env, opts *BrowseOptions, args []string, cmd *cobra.Command) error {
	stateDir := filepath.Dir(e.cfgPath)
	url := e.cfg.StartURL(stateDir)
	if len(args) == 1 {
		url = args[0]
	}

	engine, err := contentview.NewWindow("cloudywindow", opts.Width, opts.Height, opts.Debug)
	if err != nil {
		if errors.Is(err, contentview.ErrUnsupported) {
			return e.formatter.Fail(ExitCommandError, ErrCodeUnsupported, err.Error(), nil)
		}
		return e.formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to open window", err)
	}

	draft := opts.Draft
	if draft == "" {
		draft = strings.TrimSuffix(e.store.Path(), filepath.Ext(e.store.Path())) + ".draft.json"
	}
	e.bridge.SetSurface(&contentview.FileSurface{Path: draft, Logger: e.logger})

	reg := prometheus.NewRegistry()
	if opts.Metrics != "" {
		srv := &http.Server{Addr: opts.Metrics, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.logger.Warn("metrics server stopped", "addr", opts.Metrics, "error", err)
			}
		}()
		defer srv.Close()
	}

	var last string
	shell, err := contentview.New(commandContext(cmd), engine, e.bridge, e.store,
		contentview.WithLogger(e.logger),
		contentview.WithPickerOnLoad(opts.Pick),
		contentview.WithApplierOptions(applier.WithRegisterer(reg)),
		contentview.WithNavigateHook(func(u string) { last = u }),
	)
	if err != nil {
		engine.Destroy()
		return e.formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to set up window", err)
	}
	defer shell.Close()

	e.logger.Info("browsing", "url", url, "draft", draft)
	shell.Open(url)
	shell.Run()

	if last != "" {
		if err := config.RememberURL(stateDir, last); err != nil {
			e.logger.Warn("failed to remember url", "error", err)
		}
	}
	return nil
}
