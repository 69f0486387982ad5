package editor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudywindow/internal/editor"
	"github.com/roach88/cloudywindow/internal/journal"
	"github.com/roach88/cloudywindow/internal/picker"
)

func decode(t *testing.T, raw string) picker.Event {
	t.Helper()
	ev, err := picker.Decode([]byte(raw))
	require.NoError(t, err)
	return ev
}

func TestDispatch_PickedStagesIntoDraft(t *testing.T) {
	f := newFixture(t, nil, editor.WithHint(picker.ActionDim))
	ctx := context.Background()
	f.bridge.SetDraft(`{"version":1,"rules":[]}`)

	err := f.bridge.Dispatch(ctx, decode(t, `{"type":"picked","payload":{"url":"https://example.com/","host":"example.com","selector":"#x"}}`))
	require.NoError(t, err)

	assert.Contains(t, f.surface.Text(), `"id": "pick-1"`)
	assert.Contains(t, f.surface.Text(), `#x{opacity:0.25!important}`)
	assert.Equal(t, "Inserted rule for example.com; review and Save (line 5)", f.surface.Status())
	assert.Equal(t, f.surface.Text(), f.bridge.Draft())

	entries, err := f.journal.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, journal.KindPicked, entries[0].Kind)
	assert.Equal(t, "pick-1", entries[0].RuleID)
}

func TestDispatch_PickedWithInvalidDraft(t *testing.T) {
	f := newFixture(t, nil)
	f.bridge.SetDraft(`{"rules": [`)

	err := f.bridge.Dispatch(context.Background(), decode(t, `{"type":"picked","payload":{"host":"example.com","selector":"#x"}}`))
	assert.Error(t, err)
	assert.Equal(t, editor.StatusDraftInvalid, f.surface.Status())
	assert.Equal(t, `{"rules": [`, f.bridge.Draft(), "draft untouched")
}

func TestDispatch_AutoZapUndoReset(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.bridge.Dispatch(ctx, decode(t, `{"type":"auto-zap","payload":{"action":"hide","selector":"#ad","host":"news.example"}}`)))
	assert.Contains(t, f.surface.Status(), "Auto-added rule ")
	assert.Contains(t, f.surface.Text(), "#ad{display:none!important}")

	require.NoError(t, f.bridge.Dispatch(ctx, decode(t, `{"type":"auto-zap","payload":{"action":"hide","selector":"#ad","host":"news.example"}}`)))
	assert.Equal(t, "Nothing new to add for news.example", f.surface.Status())

	require.NoError(t, f.bridge.Dispatch(ctx, decode(t, `{"type":"undo"}`)))
	assert.Contains(t, f.surface.Status(), "Removed rule ")
	assert.NotContains(t, f.surface.Text(), "#ad{display:none!important}")

	require.NoError(t, f.bridge.Dispatch(ctx, decode(t, `{"type":"undo"}`)))
	assert.Equal(t, editor.StatusNothingUndo, f.surface.Status())

	require.NoError(t, f.bridge.Dispatch(ctx, decode(t, `{"type":"reset","payload":{"host":"tldraw.com"}}`)))
	assert.Equal(t, "Removed 0 rule(s) for tldraw.com", f.surface.Status())
	_, found := f.Store.Get("starter-tldraw")
	assert.True(t, found)
}

func TestDispatch_Cancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.bridge.Dispatch(ctx, decode(t, `{"type":"cancel","payload":{"host":"x.com"}}`)))
	assert.Equal(t, editor.StatusCancelled, f.surface.Status())

	entries, err := f.journal.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, journal.KindCancel, entries[0].Kind)
}

func TestDispatch_UnknownType(t *testing.T) {
	f := newFixture(t, nil)
	err := f.bridge.Dispatch(context.Background(), picker.Event{Type: "explode"})
	assert.ErrorIs(t, err, picker.ErrInvalidEvent)
}
