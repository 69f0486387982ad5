// Package editor connects the raw JSON editing surface and the picker to the
// rule store.
//
// The bridge owns the draft text shown in the editor. Manual picks are staged
// into that draft for review; auto-zaps go straight to the store and can be
// undone once. Saving a draft validates it, replaces the backing file and
// reloads the store.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cloudywindow/internal/ir"
	"github.com/roach88/cloudywindow/internal/journal"
	"github.com/roach88/cloudywindow/internal/picker"
	"github.com/roach88/cloudywindow/internal/store"
)

// EmptyDocument is what Read returns when the backing file cannot be shown.
const EmptyDocument = "{\n  \"version\": 1,\n  \"rules\": []\n}\n"

// Surface is the text editing UI.
type Surface interface {
	SetText(text string)
	SetStatus(status string)
}

// Recorder is the part of the journal the bridge writes to.
type Recorder interface {
	Append(ctx context.Context, e journal.Entry) (journal.Entry, error)
}

// UndoSource finds the last auto-zap recorded by any process.
type UndoSource interface {
	LastAutoZap(ctx context.Context) (journal.Entry, bool, error)
}

// Bridge mediates between the editor surface, picker events and the store.
type Bridge struct {
	store   *store.Store
	schema  *Schema
	logger  *slog.Logger
	ids     store.IDGenerator
	hint    picker.Action
	surface Surface
	journal Recorder
	undo    UndoSource

	mu       sync.Mutex
	draft    string
	lastAuto string
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSurface attaches the editing UI that Dispatch updates.
func WithSurface(s Surface) Option {
	return func(b *Bridge) {
		b.surface = s
	}
}

// WithJournal records every operation. If j can also report the last
// auto-zap, Undo falls back to it when this bridge has none remembered.
func WithJournal(j Recorder) Option {
	return func(b *Bridge) {
		b.journal = j
		if u, ok := j.(UndoSource); ok {
			b.undo = u
		}
	}
}

// WithIDGenerator sets the generator for staged pick ids.
func WithIDGenerator(g store.IDGenerator) Option {
	return func(b *Bridge) {
		if g != nil {
			b.ids = g
		}
	}
}

// WithHint selects which hint a manual pick stages. Default: transparent.
func WithHint(a picker.Action) Option {
	return func(b *Bridge) {
		if _, ok := picker.Hints("x").For(a); ok {
			b.hint = a
		}
	}
}

// New creates a bridge over st.
func New(st *store.Store, opts ...Option) (*Bridge, error) {
	schema, err := NewSchema()
	if err != nil {
		return nil, err
	}
	b := &Bridge{
		store:  st,
		schema: schema,
		logger: slog.Default(),
		ids:    store.UUIDv7Generator{},
		hint:   picker.ActionTransparent,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// SetSurface replaces the editor surface.
func (b *Bridge) SetSurface(s Surface) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surface = s
}

// Hint returns the hint staged for manual picks.
func (b *Bridge) Hint() picker.Action {
	return b.hint
}

// Read returns the backing document with two-space indentation. A document
// that cannot be read or parsed is shown as EmptyDocument.
func (b *Bridge) Read() string {
	data, err := b.store.ReadRaw()
	if err != nil {
		b.logger.Warn("site css read failed", "error", err)
		return EmptyDocument
	}
	out, err := ir.IndentJSON(data)
	if err != nil {
		b.logger.Warn("site css document is not valid JSON", "error", err)
		return EmptyDocument
	}
	return string(out)
}

// Load replaces the draft with the backing document and returns it.
func (b *Bridge) Load() string {
	text := b.Read()
	b.mu.Lock()
	b.draft = text
	b.mu.Unlock()
	return text
}

// Draft returns the current draft, loading it on first use.
func (b *Bridge) Draft() string {
	b.mu.Lock()
	draft := b.draft
	b.mu.Unlock()
	if draft == "" {
		return b.Load()
	}
	return draft
}

// SetDraft records the editor's current text.
func (b *Bridge) SetDraft(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draft = text
}

// Validate checks raw and returns it re-indented. Failures are
// *ValidationError.
func (b *Bridge) Validate(raw string) ([]byte, error) {
	data := []byte(raw)
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, syntaxError(data, err)
	}
	if err := b.schema.Check(data); err != nil {
		return nil, err
	}
	if err := checkDuplicateIDs(data); err != nil {
		return nil, err
	}
	return ir.IndentJSON(data)
}

// Write validates raw, replaces the backing file and reloads the store.
// Nothing is written when validation fails.
func (b *Bridge) Write(ctx context.Context, raw string) error {
	pretty, err := b.Validate(raw)
	if err != nil {
		return err
	}
	if err := b.store.WriteRaw(pretty); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := b.store.Reload(store.ReloadDiscard); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	b.mu.Lock()
	b.draft = string(pretty)
	b.mu.Unlock()

	b.record(ctx, journal.Entry{Kind: journal.KindWrite})
	return nil
}

// Format re-indents raw without saving.
func (b *Bridge) Format(raw string) (string, error) {
	out, err := ir.IndentJSON([]byte(raw))
	if err != nil {
		return "", syntaxError([]byte(raw), err)
	}
	return string(out), nil
}

// Compact deduplicates fragments for host, or for every host when host is
// empty.
func (b *Bridge) Compact(ctx context.Context, host string) bool {
	var changed bool
	if host == "" {
		changed = b.store.CompactAll()
	} else {
		changed = b.store.CompactHost(host)
	}
	if changed {
		b.record(ctx, journal.Entry{Kind: journal.KindCompact, Host: host})
	}
	return changed
}

func (b *Bridge) record(ctx context.Context, e journal.Entry) {
	if b.journal == nil {
		return
	}
	if _, err := b.journal.Append(ctx, e); err != nil {
		b.logger.Warn("journal append failed", "kind", e.Kind, "error", err)
	}
}

// checkDuplicateIDs rejects documents where two rules share an id.
func checkDuplicateIDs(data []byte) error {
	var doc struct {
		Rules []struct {
			ID string `json:"id"`
		} `json:"rules"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return syntaxError(data, err)
	}
	seen := make(map[string]int, len(doc.Rules))
	for i, r := range doc.Rules {
		if prev, dup := seen[r.ID]; dup {
			return &ValidationError{
				Code:    ErrCodeDuplicateID,
				Field:   fmt.Sprintf("rules.%d.id", i),
				Message: fmt.Sprintf("id %q already used by rules.%d", r.ID, prev),
			}
		}
		seen[r.ID] = i
	}
	return nil
}
