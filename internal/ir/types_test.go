package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSSList_BareStringBecomesList(t *testing.T) {
	var r Rule
	err := json.Unmarshal([]byte(`{"id":"a","css":"body{color:red}"}`), &r)
	require.NoError(t, err)
	assert.Equal(t, CSSList{"body{color:red}"}, r.CSS)
}

func TestCSSList_ArrayWithNonStrings(t *testing.T) {
	var c CSSList
	err := json.Unmarshal([]byte(`["a{}", 3, true]`), &c)
	require.NoError(t, err)
	assert.Equal(t, CSSList{"a{}", "3", "true"}, c)
}

func TestCSSList_NullMarshalsAsEmptyArray(t *testing.T) {
	data, err := json.Marshal(Rule{ID: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"css":[]`)
}

func TestCSSList_KeepsHTMLCharacters(t *testing.T) {
	data, err := MarshalCompact(Rule{ID: "x", CSS: CSSList{"main > .card", "a[href*=\"&\"]"}})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"x","match":{},"css":["main > .card","a[href*=\"&\"]"]}`, string(data))
}

func TestProtocols_ScalarAndList(t *testing.T) {
	var m Match
	require.NoError(t, json.Unmarshal([]byte(`{"protocols":"https"}`), &m))
	assert.True(t, m.Protocols.Contains("https"))
	assert.False(t, m.Protocols.Contains("http"))

	require.NoError(t, json.Unmarshal([]byte(`{"protocols":["http","file"]}`), &m))
	assert.True(t, m.Protocols.Contains("file"))
	assert.False(t, m.Protocols.Contains("https"))
}

func TestRule_IsEnabled(t *testing.T) {
	assert.True(t, (&Rule{}).IsEnabled(), "absent enabled means enabled")
	assert.True(t, (&Rule{Enabled: Bool(true)}).IsEnabled())
	assert.False(t, (&Rule{Enabled: Bool(false)}).IsEnabled())
}

func TestRule_IsStarter(t *testing.T) {
	assert.True(t, (&Rule{ID: "starter-tldraw"}).IsStarter())
	assert.False(t, (&Rule{ID: "pick-1"}).IsStarter())
}

func TestRule_CloneIsDeep(t *testing.T) {
	orig := Rule{
		ID:      "a",
		Enabled: Bool(true),
		Match:   Match{Protocols: Protocols{"https"}},
		CSS:     CSSList{"a{}"},
	}
	c := orig.Clone()
	*c.Enabled = false
	c.CSS[0] = "changed"
	c.Match.Protocols[0] = "http"

	assert.True(t, *orig.Enabled)
	assert.Equal(t, "a{}", orig.CSS[0])
	assert.Equal(t, "https", orig.Match.Protocols[0])
}

func TestDecodeDocument(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		rules   int
		version int
	}{
		{name: "valid", input: `{"version":1,"rules":[{"id":"a","css":["x{}"]}]}`, rules: 1, version: 1},
		{name: "missing version", input: `{"rules":[]}`, rules: 0, version: 1},
		{name: "string version", input: `{"version":"2","rules":[]}`, rules: 0, version: 1},
		{name: "future version", input: `{"version":2,"rules":[]}`, rules: 0, version: 2},
		{name: "missing rules", input: `{"version":1}`, wantErr: ErrNoRules},
		{name: "rules not array", input: `{"version":1,"rules":{}}`, wantErr: ErrNoRules},
		{name: "rules null", input: `{"rules":null}`, wantErr: ErrNoRules},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := DecodeDocument([]byte(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, doc.Rules, tt.rules)
			assert.Equal(t, tt.version, doc.Version)
		})
	}
}

func TestDecodeDocument_Malformed(t *testing.T) {
	_, err := DecodeDocument([]byte(`{"rules":[`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRules)
}
