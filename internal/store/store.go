package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/roach88/cloudywindow/internal/ir"
)

// DefaultFileName is the name of the backing document inside the data directory.
const DefaultFileName = "site-css.json"

// ReloadMode selects what Reload does with unflushed mutations.
type ReloadMode int

const (
	// ReloadDiscard drops unflushed mutations and cancels the pending write.
	ReloadDiscard ReloadMode = iota
	// ReloadFlush writes unflushed mutations before re-reading the file.
	ReloadFlush
)

func (m ReloadMode) String() string {
	switch m {
	case ReloadDiscard:
		return "discard"
	case ReloadFlush:
		return "flush"
	default:
		return fmt.Sprintf("ReloadMode(%d)", int(m))
	}
}

// Store is the persistent collection of site CSS rules.
//
// All methods are safe for concurrent use. The debounce timer callback runs
// on its own goroutine and takes the same lock.
type Store struct {
	path      string
	logger    *slog.Logger
	debounce  time.Duration
	scheduler Scheduler
	ids       IDGenerator
	starters  []ir.Rule

	mu      sync.Mutex
	doc     *ir.Document
	loaded  bool
	dirty   bool
	timer   Timer
	gen     uint64 // bumped whenever the pending timer is replaced or cancelled
	saveErr error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDebounce sets the write-back delay. Default: DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithScheduler replaces the timer source used for debounced writes.
func WithScheduler(sch Scheduler) Option {
	return func(s *Store) {
		if sch != nil {
			s.scheduler = sch
		}
	}
}

// WithIDGenerator replaces the rule id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithStarters replaces the rules seeded into an empty store.
func WithStarters(rules []ir.Rule) Option {
	return func(s *Store) {
		s.starters = rules
	}
}

// New creates a store backed by the JSON document at path. Nothing is read
// until the first operation.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:      path,
		logger:    slog.Default(),
		debounce:  DefaultDebounce,
		scheduler: RealScheduler{},
		ids:       UUIDv7Generator{},
		starters:  StarterRules(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// RulePatch holds the fields Update may change. Nil fields are left alone.
// Rule ids are immutable and cannot be patched.
type RulePatch struct {
	Enabled *bool
	Match   *ir.Match
	CSS     ir.CSSList
	Notes   *string
}

// EnsureLoaded reads the backing document if it has not been read yet.
func (s *Store) EnsureLoaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()
}

func (s *Store) ensureLoadedLocked() {
	if s.loaded {
		return
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.doc = DefaultDocument(s.starters)
		s.logger.Info("seeding site css store", "path", s.path, "rules", len(s.doc.Rules))
		_ = s.writeLocked()
	case err != nil:
		s.logger.Warn("site css store unreadable, using defaults", "path", s.path, "error", err)
		s.doc = DefaultDocument(s.starters)
	default:
		doc, derr := ir.DecodeDocument(data)
		switch {
		case derr != nil:
			s.logger.Warn("site css store invalid, using defaults", "path", s.path, "error", derr)
			s.doc = DefaultDocument(s.starters)
		case len(doc.Rules) == 0:
			s.doc = DefaultDocument(s.starters)
			s.logger.Info("site css store empty, seeding", "path", s.path, "rules", len(s.doc.Rules))
			_ = s.writeLocked()
		default:
			s.doc = doc
		}
	}

	s.loaded = true
	s.compactLocked(func(string) bool { return true })
}

// Reload forgets the in-memory document and reads the backing file again.
//
// With ReloadFlush a failed flush aborts the reload and the error is returned.
func (s *Store) Reload(mode ReloadMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty {
		if mode == ReloadFlush {
			if err := s.writeLocked(); err != nil {
				return fmt.Errorf("flush before reload: %w", err)
			}
		} else {
			s.logger.Warn("discarding unflushed site css changes", "path", s.path)
		}
	}
	s.cancelTimerLocked()
	s.dirty = false
	s.loaded = false
	s.ensureLoadedLocked()
	return nil
}

// List returns a copy of every rule in store order.
func (s *Store) List() []ir.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()

	out := make([]ir.Rule, len(s.doc.Rules))
	for i := range s.doc.Rules {
		out[i] = s.doc.Rules[i].Clone()
	}
	return out
}

// Get returns a copy of the rule with the given id.
func (s *Store) Get(id string) (ir.Rule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()

	if i := s.indexLocked(id); i >= 0 {
		return s.doc.Rules[i].Clone(), true
	}
	return ir.Rule{}, false
}

// Document returns a copy of the whole document.
func (s *Store) Document() *ir.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()
	return s.doc.Clone()
}

// Add appends rule after removing fragments that its host group already has.
//
// A missing id is generated and a missing enabled flag defaults to true.
// When no fragment survives, or the id is already taken, nothing changes
// and Add returns (nil, false).
func (s *Store) Add(rule ir.Rule) (*ir.Rule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()

	r := rule.Clone()
	if r.ID == "" {
		r.ID = s.ids.Generate()
	} else if s.indexLocked(r.ID) >= 0 {
		s.logger.Warn("rule id already exists", "id", r.ID)
		return nil, false
	}
	if r.Enabled == nil {
		r.Enabled = ir.Bool(true)
	}

	kept := s.newFragmentsLocked(r.Match.Host, -1, r.CSS)
	if len(kept) == 0 {
		return nil, false
	}
	r.CSS = kept

	s.doc.Rules = append(s.doc.Rules, r)
	s.scheduleSaveLocked()

	out := r.Clone()
	return &out, true
}

// Update merges patch into the rule with the given id. When the patch
// touches css or match, the rule's fragments are filtered like Add's; a patch
// that would leave no fragments is refused and the rule is unchanged.
// Returns (nil, false) for an unknown id or a refused patch.
func (s *Store) Update(id string, patch RulePatch) (*ir.Rule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, false
	}
	r := s.doc.Rules[i].Clone()
	if patch.Enabled != nil {
		r.Enabled = ir.Bool(*patch.Enabled)
	}
	if patch.Match != nil {
		r.Match = ir.Rule{Match: *patch.Match}.Clone().Match
	}
	if patch.CSS != nil {
		r.CSS = append(ir.CSSList{}, patch.CSS...)
	}
	if patch.Notes != nil {
		r.Notes = *patch.Notes
	}
	if patch.CSS != nil || patch.Match != nil {
		r.CSS = s.newFragmentsLocked(r.Match.Host, i, r.CSS)
		if len(r.CSS) == 0 {
			s.logger.Warn("update would leave rule without css", "id", id)
			return nil, false
		}
	}
	s.doc.Rules[i] = r
	s.scheduleSaveLocked()

	out := r.Clone()
	return &out, true
}

// newFragmentsLocked drops blank fragments and fragments already present in
// host's group, ignoring the rule at index skip.
func (s *Store) newFragmentsLocked(host string, skip int, css ir.CSSList) ir.CSSList {
	key := NormalizeHost(host)
	seen := make(map[string]struct{})
	for i := range s.doc.Rules {
		if i == skip || NormalizeHost(s.doc.Rules[i].Match.Host) != key {
			continue
		}
		for _, c := range s.doc.Rules[i].CSS {
			seen[c] = struct{}{}
		}
	}

	kept := make(ir.CSSList, 0, len(css))
	for _, c := range css {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		kept = append(kept, c)
	}
	return kept
}

// Remove deletes the rule with the given id and reports whether it existed.
func (s *Store) Remove(id string) bool {
	removed := s.RemoveWhere(func(r ir.Rule) bool { return r.ID == id })
	return len(removed) > 0
}

// RemoveWhere deletes every rule for which pred returns true and returns the
// removed ids in store order.
func (s *Store) RemoveWhere(pred func(ir.Rule) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()

	var removed []string
	kept := s.doc.Rules[:0]
	for _, r := range s.doc.Rules {
		if pred(r) {
			removed = append(removed, r.ID)
			continue
		}
		kept = append(kept, r)
	}
	s.doc.Rules = kept
	if len(removed) > 0 {
		s.scheduleSaveLocked()
	}
	return removed
}

// GetMatching returns the css fragments of every enabled rule matching
// rawURL, in rule order. An unparsable URL yields an empty slice.
func (s *Store) GetMatching(rawURL string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()
	return matchingFragments(s.doc.Rules, rawURL)
}

// CompactAll removes duplicate fragments within every host group and drops
// rules left without css. It reports whether anything changed.
func (s *Store) CompactAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()
	return s.compactLocked(func(string) bool { return true })
}

// CompactHost is CompactAll restricted to the group of host.
func (s *Store) CompactHost(host string) bool {
	key := NormalizeHost(host)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()
	return s.compactLocked(func(k string) bool { return k == key })
}

// compactLocked keeps the first occurrence of each fragment per host group
// for groups selected by inScope.
func (s *Store) compactLocked(inScope func(key string) bool) bool {
	seenByHost := make(map[string]map[string]struct{})
	changed := false

	kept := s.doc.Rules[:0]
	for _, r := range s.doc.Rules {
		key := NormalizeHost(r.Match.Host)
		if !inScope(key) {
			kept = append(kept, r)
			continue
		}
		seen, ok := seenByHost[key]
		if !ok {
			seen = make(map[string]struct{})
			seenByHost[key] = seen
		}

		after := make(ir.CSSList, 0, len(r.CSS))
		for _, c := range r.CSS {
			if _, dup := seen[c]; dup {
				changed = true
				continue
			}
			seen[c] = struct{}{}
			after = append(after, c)
		}
		if len(after) == 0 {
			changed = true
			continue
		}
		r.CSS = after
		kept = append(kept, r)
	}
	s.doc.Rules = kept

	if changed {
		s.scheduleSaveLocked()
	}
	return changed
}

// Flush cancels a pending write and, if there are unsaved changes, writes
// them now.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimerLocked()
	if !s.dirty {
		return nil
	}
	return s.writeLocked()
}

// Close flushes pending changes. The store stays usable afterwards.
func (s *Store) Close() error {
	return s.Flush()
}

// WriteRaw replaces the backing file with data and cancels any pending
// debounced write. The in-memory document is not touched; call Reload to
// pick the new content up.
func (s *Store) WriteRaw(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimerLocked()
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}

// ReadRaw flushes pending changes and returns the backing file content.
// A store that was never loaded is loaded first, which seeds a missing file.
func (s *Store) ReadRaw() ([]byte, error) {
	s.EnsureLoaded()
	if err := s.Flush(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, nil
}

// LastSaveError returns the error of the most recent write, or nil if it
// succeeded.
func (s *Store) LastSaveError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveErr
}

func (s *Store) indexLocked(id string) int {
	for i := range s.doc.Rules {
		if s.doc.Rules[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) scheduleSaveLocked() {
	s.dirty = true
	s.cancelTimerLocked()
	gen := s.gen
	s.timer = s.scheduler.AfterFunc(s.debounce, func() { s.fire(gen) })
}

func (s *Store) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// fire runs on the timer goroutine. A callback whose generation is stale was
// superseded while it waited for the lock.
func (s *Store) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || !s.dirty {
		return
	}
	s.timer = nil
	_ = s.writeLocked()
}

func (s *Store) writeLocked() error {
	data, err := ir.MarshalDocument(s.doc)
	if err == nil {
		err = writeFileAtomic(s.path, data)
	}
	if err != nil {
		s.saveErr = err
		s.logger.Warn("site css save failed", "path", s.path, "error", err)
		return err
	}
	s.saveErr = nil
	s.dirty = false
	s.logger.Debug("site css saved", "path", s.path, "rules", len(s.doc.Rules))
	return nil
}
