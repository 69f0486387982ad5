package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/cloudywindow/internal/ir"
	"github.com/roach88/cloudywindow/internal/store"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// StoreFixture is a store in a temp directory driven by a manual scheduler.
type StoreFixture struct {
	Store     *store.Store
	Scheduler *ManualScheduler
	Path      string
}

// NewStore creates a store backed by a file in t.TempDir(). Extra options
// are applied after the fixture defaults.
func NewStore(t *testing.T, opts ...store.Option) *StoreFixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), store.DefaultFileName)
	sched := NewManualScheduler()
	all := append([]store.Option{
		store.WithScheduler(sched),
		store.WithLogger(DiscardLogger()),
	}, opts...)
	return &StoreFixture{
		Store:     store.New(path, all...),
		Scheduler: sched,
		Path:      path,
	}
}

// WriteDocument writes doc to the fixture path as the persisted form.
func (f *StoreFixture) WriteDocument(t *testing.T, doc *ir.Document) {
	t.Helper()
	data, err := ir.MarshalDocument(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	f.WriteFile(t, data)
}

// WriteFile writes raw bytes to the fixture path.
func (f *StoreFixture) WriteFile(t *testing.T, data []byte) {
	t.Helper()
	if err := os.WriteFile(f.Path, data, 0o644); err != nil {
		t.Fatalf("write store file: %v", err)
	}
}

// ReadFile returns the bytes currently on disk, or nil when the file is absent.
func (f *StoreFixture) ReadFile(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	return data
}

// ReadDocument decodes the bytes currently on disk.
func (f *StoreFixture) ReadDocument(t *testing.T) *ir.Document {
	t.Helper()
	doc, err := ir.DecodeDocument(f.ReadFile(t))
	if err != nil {
		t.Fatalf("decode store file: %v", err)
	}
	return doc
}

// Rule builds an enabled rule for host with the given fragments.
func Rule(id, host string, css ...string) ir.Rule {
	return ir.Rule{
		ID:      id,
		Enabled: ir.Bool(true),
		Match:   ir.Match{Host: host},
		CSS:     ir.CSSList(css),
	}
}
