package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cloudywindow/internal/ir"
)

func newTestMCP(t *testing.T, f *cliFixture) *mcpServer {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	e, err := openEnv(&RootOptions{Format: "text", Config: f.config, Store: f.store, Journal: f.journal}, cmd)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return newMCPServer(e)
}

type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func call(t *testing.T, h toolHandler, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestMCP_ListAndMatch(t *testing.T) {
	s := newTestMCP(t, newCLI(t))

	text, isErr := call(t, s.handleListRules, map[string]any{"host": "tldraw.com"})
	require.False(t, isErr)
	var rules []ir.Rule
	require.NoError(t, yaml.Unmarshal([]byte(text), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "starter-tldraw", rules[0].ID)

	text, isErr = call(t, s.handleMatchURL, map[string]any{"url": "https://www.tldraw.com/"})
	require.False(t, isErr)
	assert.Contains(t, text, "fragments:")

	_, isErr = call(t, s.handleMatchURL, map[string]any{})
	assert.True(t, isErr)
}

func TestMCP_AddRemove(t *testing.T) {
	s := newTestMCP(t, newCLI(t))

	text, isErr := call(t, s.handleAddRule, map[string]any{
		"host": "example.org",
		"css":  []any{"#a{display:none!important}", "#b{opacity:0.25!important}"},
	})
	require.False(t, isErr, text)
	var added ir.Rule
	require.NoError(t, yaml.Unmarshal([]byte(text), &added))
	assert.Len(t, added.CSS, 2)

	_, isErr = call(t, s.handleAddRule, map[string]any{"host": "example.org", "css": "#a{display:none!important}"})
	assert.True(t, isErr, "duplicate fragment")

	_, isErr = call(t, s.handleAddRule, map[string]any{"host": "example.org"})
	assert.True(t, isErr, "css required")

	text, isErr = call(t, s.handleRemoveRule, map[string]any{"id": added.ID})
	require.False(t, isErr)
	assert.Contains(t, text, added.ID)

	_, isErr = call(t, s.handleRemoveRule, map[string]any{"id": added.ID})
	assert.True(t, isErr)
}

func TestMCP_ZapUndo(t *testing.T) {
	s := newTestMCP(t, newCLI(t))

	text, isErr := call(t, s.handleAutoZap, map[string]any{
		"url": "https://news.example.com/a", "selector": ".promo", "action": "hide",
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, ".promo{display:none!important}")

	_, isErr = call(t, s.handleAutoZap, map[string]any{"url": "https://news.example.com/a", "selector": ".promo", "action": "spin"})
	assert.True(t, isErr)

	_, isErr = call(t, s.handleUndoZap, nil)
	assert.False(t, isErr)
	_, isErr = call(t, s.handleUndoZap, nil)
	assert.True(t, isErr)
}

func TestMCP_ResetAndCompact(t *testing.T) {
	s := newTestMCP(t, newCLI(t))

	_, isErr := call(t, s.handleResetHost, map[string]any{"host": " "})
	assert.True(t, isErr)

	text, isErr := call(t, s.handleResetHost, map[string]any{"host": "tldraw.com"})
	require.False(t, isErr)
	assert.Contains(t, text, "removed: []")

	text, isErr = call(t, s.handleCompact, nil)
	require.False(t, isErr)
	assert.Contains(t, text, "changed: false")
}

func TestMCP_ExportImport(t *testing.T) {
	s := newTestMCP(t, newCLI(t))

	doc, isErr := call(t, s.handleExportDocument, nil)
	require.False(t, isErr)
	assert.Contains(t, doc, `"starter-tldraw"`)

	text, isErr := call(t, s.handleImportDocument, map[string]any{"document": `{"rules": 3}`})
	assert.True(t, isErr)
	assert.Contains(t, text, "E202")

	text, isErr = call(t, s.handleImportDocument, map[string]any{"document": `{"version":1,"rules":[]}`})
	require.False(t, isErr, text)
	assert.Contains(t, text, "rules: 0")
}

func TestStringsParam(t *testing.T) {
	params := map[string]any{"one": "a", "many": []any{"b", 3, "c"}, "empty": "", "typed": []string{"d"}}
	assert.Equal(t, []string{"a"}, StringsParam(params, "one"))
	assert.Equal(t, []string{"b", "c"}, StringsParam(params, "many"))
	assert.Nil(t, StringsParam(params, "empty"))
	assert.Equal(t, []string{"d"}, StringsParam(params, "typed"))
	assert.Nil(t, StringsParam(params, "missing"))
	assert.Equal(t, "x", StringParam(params, "missing", "x"))
}
