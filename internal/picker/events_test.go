package picker

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Picked(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"picked","payload":{"url":"https://a.example.com/x","host":"a.example.com","path":"/x","selector":"#ad","hints":{"transparent":"t","hide":"h","dim":"d"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventPicked, ev.Type)
	require.NotNil(t, ev.Picked)
	assert.Equal(t, "#ad", ev.Picked.Selector)
	assert.Equal(t, "h", ev.Picked.Hints.Hide)
	assert.Equal(t, "a.example.com", ev.Location.Host)
}

func TestDecode_PickedWithoutHintsGetsDefaults(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"picked","payload":{"url":"https://Example.com/p","selector":".x"}}`))
	require.NoError(t, err)
	assert.Equal(t, Hints(".x"), ev.Picked.Hints)
	assert.Equal(t, "example.com", ev.Picked.Host)
	assert.Equal(t, "/p", ev.Picked.Path)
}

func TestDecode_AutoZap(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"auto-zap","payload":{"action":"hide","selector":".x","url":"https://example.com/"}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.AutoZap)
	assert.Equal(t, ActionHide, ev.AutoZap.Action)
	assert.Equal(t, ".x"+hideBlock, ev.AutoZap.CSSText)
}

func TestDecode_AutoZapPageWithoutSelector(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"auto-zap","payload":{"action":"page","host":"example.com"}}`))
	require.NoError(t, err)
	assert.Equal(t, PageSelector(), ev.AutoZap.Selector)
	assert.Equal(t, PageSelector()+transparentBlock, ev.AutoZap.CSSText)
}

func TestDecode_Reset(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"reset","payload":{"url":"https://www.foo.com/a"}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Reset)
	assert.Equal(t, "www.foo.com", ev.Reset.Host)
}

func TestDecode_UndoAndCancel(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"undo"}`))
	require.NoError(t, err)
	assert.Equal(t, EventUndo, ev.Type)

	ev, err = Decode([]byte(`{"type":"cancel","payload":{"url":"https://example.com/"}}`))
	require.NoError(t, err)
	assert.Equal(t, "example.com", ev.Location.Host)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{`},
		{"unknown type", `{"type":"explode"}`},
		{"picked without selector", `{"type":"picked","payload":{"url":"https://x.com/"}}`},
		{"picked blank selector", `{"type":"picked","payload":{"selector":"   "}}`},
		{"zap without selector", `{"type":"auto-zap","payload":{"action":"hide"}}`},
		{"zap bad action", `{"type":"auto-zap","payload":{"action":"melt","selector":".x"}}`},
		{"reset without host", `{"type":"reset","payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestEncode_Golden(t *testing.T) {
	loc := Location{URL: "https://example.com/app", Host: "example.com", Path: "/app"}
	events := map[string]Event{
		"picked": {Type: EventPicked, Picked: &Picked{Location: loc, Selector: "main > .card", Hints: Hints("main > .card")}},
		"autozap": {Type: EventAutoZap, AutoZap: &AutoZap{
			Location: loc, Action: ActionHide, Selector: "#ad", CSSText: "#ad" + hideBlock,
		}},
		"reset": {Type: EventReset, Reset: &Reset{Host: "example.com"}},
		"undo":  {Type: EventUndo, Location: loc},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for name, ev := range events {
		t.Run(name, func(t *testing.T) {
			data, err := Encode(ev)
			require.NoError(t, err)
			g.Assert(t, "event_"+name, data)

			back, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, ev.Type, back.Type)
		})
	}
}
