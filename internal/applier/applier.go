// Package applier injects matching site CSS into the content view on every
// navigation.
package applier

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/cloudywindow/internal/cssfrag"
)

// StyleInjector adds CSS to the page currently shown.
type StyleInjector interface {
	InjectCSS(ctx context.Context, css string) error
}

// RuleSource returns the fragments that apply to a URL, in injection order.
type RuleSource interface {
	GetMatching(url string) []string
}

// Result describes one Apply call.
type Result struct {
	Signature string `json:"signature"`
	Skipped   bool   `json:"skipped"`
	Injected  int    `json:"injected"`
	Failed    int    `json:"failed"`
	Deferred  int    `json:"deferred"`
}

// Applier injects matching CSS and skips passes that would inject exactly
// what the previous pass did.
type Applier struct {
	source  RuleSource
	view    StyleInjector
	logger  *slog.Logger
	metrics *Metrics

	mu   sync.Mutex
	last string
}

// Option configures an Applier.
type Option func(*Applier)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Applier) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRegisterer registers the applier counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *Applier) {
		a.metrics = NewMetrics(reg)
	}
}

// New creates an applier reading from source and injecting into view.
func New(source RuleSource, view StyleInjector, opts ...Option) *Applier {
	a := &Applier{source: source, view: view, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = NewMetrics(nil)
	}
	return a
}

// Signature identifies a pass by URL and fragment list.
func Signature(url string, frags []string) string {
	return url + "\x1f" + strings.Join(frags, "\x1e")
}

// Apply injects every fragment matching url.
//
// Fragments that hide elements go last, after the ones that only restyle.
// A failing fragment is logged and counted and does not stop the pass. The
// signature is remembered only when something was injected or nothing
// matched, so a pass that failed entirely is retried next time.
func (a *Applier) Apply(ctx context.Context, url string) (Result, error) {
	frags := a.source.GetMatching(url)
	sig := Signature(url, frags)

	a.mu.Lock()
	defer a.mu.Unlock()

	if sig == a.last {
		a.metrics.Passes.WithLabelValues(OutcomeSkipped).Inc()
		return Result{Signature: sig, Skipped: true}, nil
	}

	visible, hidden := cssfrag.Partition(frags)
	res := Result{Signature: sig, Deferred: len(hidden)}
	for _, css := range append(visible, hidden...) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := a.view.InjectCSS(ctx, css); err != nil {
			res.Failed++
			a.metrics.Fragments.WithLabelValues(FragmentFailed).Inc()
			a.logger.Debug("css injection failed", "url", url, "error", err)
			continue
		}
		res.Injected++
		a.metrics.Fragments.WithLabelValues(FragmentInjected).Inc()
	}

	outcome := OutcomeApplied
	switch {
	case len(frags) == 0:
		outcome = OutcomeEmpty
	case res.Injected == 0:
		outcome = OutcomeFailed
	case res.Failed > 0:
		outcome = OutcomePartial
	}
	a.metrics.Passes.WithLabelValues(outcome).Inc()

	if outcome != OutcomeFailed {
		a.last = sig
	}
	a.logger.Debug("applied site css", "url", url, "injected", res.Injected, "failed", res.Failed, "outcome", outcome)
	return res, nil
}

// Reset forgets the last signature so the next Apply injects again. Call it
// after the store reloads or the page is replaced.
func (a *Applier) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = ""
}
