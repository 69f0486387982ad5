package testutil

import (
	"context"
	"sync"
)

// RecordingSurface is an editor surface that remembers every update.
type RecordingSurface struct {
	mu       sync.Mutex
	texts    []string
	statuses []string
}

// SetText records text.
func (s *RecordingSurface) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
}

// SetStatus records status.
func (s *RecordingSurface) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

// Text returns the last text set, or "".
func (s *RecordingSurface) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.texts) == 0 {
		return ""
	}
	return s.texts[len(s.texts)-1]
}

// Status returns the last status set, or "".
func (s *RecordingSurface) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

// Statuses returns every status in order.
func (s *RecordingSurface) Statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses...)
}

// RecordingInjector is a content view that records injected CSS and can be
// told to fail for particular fragments.
type RecordingInjector struct {
	mu       sync.Mutex
	injected []string
	failOn   map[string]error
}

// FailOn makes InjectCSS return err for css.
func (r *RecordingInjector) FailOn(css string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == nil {
		r.failOn = make(map[string]error)
	}
	r.failOn[css] = err
}

// InjectCSS records css unless it was marked to fail.
func (r *RecordingInjector) InjectCSS(_ context.Context, css string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failOn[css]; ok {
		return err
	}
	r.injected = append(r.injected, css)
	return nil
}

// Injected returns everything injected so far, in order.
func (r *RecordingInjector) Injected() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.injected...)
}

// Reset forgets recorded injections.
func (r *RecordingInjector) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injected = nil
}
