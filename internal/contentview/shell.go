// Package contentview hosts web pages in a native window and connects them
// to the picker, the editor bridge and the match applier.
//
// Shell holds the wiring and runs over any Engine. NewWindow supplies the
// webview-backed engine in cgo builds.
package contentview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cloudywindow/internal/applier"
	"github.com/roach88/cloudywindow/internal/editor"
	"github.com/roach88/cloudywindow/internal/picker"
)

// ErrUnsupported is returned by NewWindow in builds without a native view.
var ErrUnsupported = errors.New("content view not available in this build (requires cgo)")

// Engine is the native web view. webview.WebView satisfies it.
type Engine interface {
	Init(js string)
	Eval(js string)
	Bind(name string, f interface{}) error
	Dispatch(f func())
	Navigate(url string)
	SetTitle(title string)
	Run()
	Destroy()
}

// Shell routes picker messages to the bridge and applies matching CSS on
// every navigation.
type Shell struct {
	ctx     context.Context
	engine  Engine
	bridge  *editor.Bridge
	applier *applier.Applier
	logger  *slog.Logger
	onNav   func(url string)
	appOpts []applier.Option

	mu        sync.Mutex
	url       string
	autoStart bool
}

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Shell) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPickerOnLoad starts the picker on every fresh document.
func WithPickerOnLoad(on bool) Option {
	return func(s *Shell) {
		s.autoStart = on
	}
}

// WithApplierOptions passes opts to the shell's applier.
func WithApplierOptions(opts ...applier.Option) Option {
	return func(s *Shell) {
		s.appOpts = append(s.appOpts, opts...)
	}
}

// WithNavigateHook calls f with each reported URL.
func WithNavigateHook(f func(url string)) Option {
	return func(s *Shell) {
		s.onNav = f
	}
}

// New installs the picker and navigation scripts into engine and binds their
// callbacks. CSS for each page comes from rules.
func New(ctx context.Context, engine Engine, bridge *editor.Bridge, rules applier.RuleSource, opts ...Option) (*Shell, error) {
	s := &Shell{
		ctx:    ctx,
		engine: engine,
		bridge: bridge,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.applier = applier.New(rules, s, append([]applier.Option{applier.WithLogger(s.logger)}, s.appOpts...)...)

	engine.Init(picker.Script())
	engine.Init(navScript)
	if err := engine.Bind(picker.BindingName, s.handleMessage); err != nil {
		return nil, fmt.Errorf("bind %s: %w", picker.BindingName, err)
	}
	if err := engine.Bind(NavBinding, s.handleNavigate); err != nil {
		return nil, fmt.Errorf("bind %s: %w", NavBinding, err)
	}
	return s, nil
}

// Open navigates to url.
func (s *Shell) Open(url string) {
	s.engine.Navigate(url)
}

// URL returns the last reported URL.
func (s *Shell) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// StartPicker activates the picker on the current page.
func (s *Shell) StartPicker() {
	s.eval(picker.Call("start"))
}

// StopPicker deactivates the picker.
func (s *Shell) StopPicker() {
	s.eval(picker.Call("stop"))
}

// InjectCSS adds css to the current page.
func (s *Shell) InjectCSS(ctx context.Context, css string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	js, err := styleScript(css)
	if err != nil {
		return err
	}
	s.eval(js)
	return nil
}

// Refresh removes injected CSS and applies the current rules again.
func (s *Shell) Refresh() {
	s.eval(clearScript())
	s.applier.Reset()
	if url := s.URL(); url != "" {
		s.apply(url)
	}
}

// Run blocks until the window closes.
func (s *Shell) Run() {
	s.engine.Run()
}

// Close destroys the window.
func (s *Shell) Close() {
	s.engine.Destroy()
}

func (s *Shell) handleNavigate(url string, fresh bool) error {
	s.mu.Lock()
	s.url = url
	start := s.autoStart && fresh
	s.mu.Unlock()

	if fresh {
		s.applier.Reset()
	}
	s.apply(url)
	if start {
		s.StartPicker()
	}
	if s.onNav != nil {
		s.onNav(url)
	}
	return nil
}

func (s *Shell) handleMessage(msg string) error {
	ev, err := picker.Decode([]byte(msg))
	if err != nil {
		s.logger.Warn("dropping picker message", "error", err)
		return err
	}
	if err := s.bridge.Dispatch(s.ctx, ev); err != nil {
		s.logger.Warn("picker event failed", "type", ev.Type, "error", err)
		return err
	}
	switch ev.Type {
	case picker.EventAutoZap, picker.EventUndo, picker.EventReset:
		s.Refresh()
	}
	return nil
}

func (s *Shell) apply(url string) {
	if _, err := s.applier.Apply(s.ctx, url); err != nil {
		s.logger.Debug("apply interrupted", "url", url, "error", err)
	}
}

func (s *Shell) eval(js string) {
	s.engine.Dispatch(func() {
		s.engine.Eval(js)
	})
}
