package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudywindow/internal/ir"
	"github.com/roach88/cloudywindow/internal/journal"
	"github.com/roach88/cloudywindow/internal/picker"
)

// cliFixture runs commands against state in a temp dir. Each run builds a
// fresh command tree, like a separate process would.
type cliFixture struct {
	dir     string
	config  string
	store   string
	journal string
}

func newCLI(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	return &cliFixture{
		dir:     dir,
		config:  filepath.Join(dir, "config.yaml"),
		store:   filepath.Join(dir, "site-css.json"),
		journal: filepath.Join(dir, "journal.db"),
	}
}

func (f *cliFixture) runWithInput(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", f.config, "--store", f.store, "--journal", f.journal}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return f.runWithInput(t, "", args...)
}

// data runs a command with --format json and decodes the data field.
func (f *cliFixture) data(t *testing.T, v any, args ...string) {
	t.Helper()
	out, _, err := f.run(t, append([]string{"--format", "json"}, args...)...)
	require.NoError(t, err, out)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func (f *cliFixture) rules(t *testing.T, args ...string) []ir.Rule {
	t.Helper()
	var rules []ir.Rule
	f.data(t, &rules, append([]string{"list"}, args...)...)
	return rules
}

func ids(rules []ir.Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}

func TestList_SeedsStarters(t *testing.T) {
	f := newCLI(t)

	rules := f.rules(t)
	assert.Len(t, rules, 6)
	assert.FileExists(t, f.store)

	out, _, err := f.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "tldraw.com")
	assert.Contains(t, out, "starter-tldraw")
	assert.Contains(t, out, f.store)
}

func TestList_HostFilter(t *testing.T) {
	f := newCLI(t)
	assert.Equal(t, []string{"starter-tldraw"}, ids(f.rules(t, "--host", "www.tldraw.com")))
	assert.Empty(t, f.rules(t, "--host", "example.org"))
}

func TestMatch(t *testing.T) {
	f := newCLI(t)

	var res MatchResult
	f.data(t, &res, "match", "https://www.tldraw.com/r/abc")
	assert.NotEmpty(t, res.Fragments)

	out, errOut, err := f.run(t, "match", "https://example.org/")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Empty(t, out)
	assert.Contains(t, errOut, "No rules match")
}

func TestAdd_UpdateRemove(t *testing.T) {
	f := newCLI(t)

	var added ir.Rule
	f.data(t, &added, "add", "--host", "Example.org", "--css", "#ad{display:none!important}", "--notes", "ads")
	require.NotEmpty(t, added.ID)
	assert.Equal(t, "ads", added.Notes)

	// Same fragment for the same host adds nothing.
	_, _, err := f.run(t, "add", "--host", "example.org", "--css", "#ad{display:none!important}")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var res MatchResult
	f.data(t, &res, "match", "https://example.org/")
	assert.Equal(t, []string{"#ad{display:none!important}"}, res.Fragments)

	out, _, err := f.run(t, "update", added.ID, "--disable")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated rule "+added.ID)
	_, _, err = f.run(t, "match", "https://example.org/")
	assert.Equal(t, ExitFailure, GetExitCode(err), "disabled rules never match")

	out, _, err = f.run(t, "remove", added.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed rule "+added.ID)
	assert.Len(t, f.rules(t), 6)

	out, _, err = f.run(t, "remove", added.ID)
	require.Error(t, err)
	assert.Contains(t, out, "Error [E005]")
}

func TestAdd_RejectsInvalidCSS(t *testing.T) {
	f := newCLI(t)
	out, _, err := f.run(t, "add", "--host", "x.com", "--css", "   ")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E002")
}

func TestUpdate_Unknown(t *testing.T) {
	f := newCLI(t)
	out, _, err := f.run(t, "update", "nope", "--enable")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestUpdate_DuplicateCSSRefused(t *testing.T) {
	f := newCLI(t)
	var added ir.Rule
	f.data(t, &added, "add", "--host", "example.org", "--css", "#a{opacity:0.25!important}")
	f.data(t, &added, "add", "--host", "example.org", "--css", "#b{opacity:0.25!important}")

	out, _, err := f.run(t, "update", added.ID, "--css", "#a{opacity:0.25!important}")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")

	var res MatchResult
	f.data(t, &res, "match", "https://example.org/")
	assert.Equal(t, []string{"#a{opacity:0.25!important}", "#b{opacity:0.25!important}"}, res.Fragments)
}

func TestZapUndo_AcrossInvocations(t *testing.T) {
	f := newCLI(t)

	var zap ZapResult
	f.data(t, &zap, "zap", "--url", "https://www.youtube.com/watch?v=1", "--selector", "#masthead", "--action", "hide")
	require.NotNil(t, zap.Rule)
	assert.Equal(t, "www.youtube.com", zap.Rule.Match.Host)
	assert.Equal(t, ir.CSSList{"#masthead{display:none!important}"}, zap.Rule.CSS)
	assert.Len(t, f.rules(t), 7)

	out, _, err := f.run(t, "undo")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed rule "+zap.Rule.ID)
	assert.Len(t, f.rules(t), 6)

	_, _, err = f.run(t, "undo")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestZap_PageAndInvalid(t *testing.T) {
	f := newCLI(t)

	var zap ZapResult
	f.data(t, &zap, "zap", "--url", "https://example.org/", "--action", "page")
	assert.Equal(t, picker.PageSelector()+"{background:transparent!important;background-color:transparent!important}", zap.Rule.CSS[0])

	_, _, err := f.run(t, "zap", "--url", "https://example.org/", "--selector", ".x", "--action", "melt")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = f.run(t, "zap", "--url", "https://example.org/", "--action", "page")
	assert.Equal(t, ExitFailure, GetExitCode(err), "second identical zap adds nothing")
}

func TestReset_KeepsStarters(t *testing.T) {
	f := newCLI(t)
	_, _, err := f.run(t, "zap", "--url", "https://tldraw.com/", "--selector", ".menu", "--action", "dim")
	require.NoError(t, err)

	var res ResetResult
	f.data(t, &res, "reset", "www.tldraw.com")
	assert.Len(t, res.Removed, 1)
	assert.Contains(t, ids(f.rules(t)), "starter-tldraw")
}

func TestExportImport_RoundTrip(t *testing.T) {
	f := newCLI(t)

	exported, _, err := f.run(t, "export")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(exported, "{\n  \"version\": 1,"))

	out, _, err := f.runWithInput(t, exported, "import", "-")
	require.NoError(t, err)
	assert.Equal(t, "Saved (unchanged)\n", out)

	again, _, err := f.run(t, "export")
	require.NoError(t, err)
	assert.Equal(t, exported, again)
}

func TestImport_InvalidWritesNothing(t *testing.T) {
	f := newCLI(t)
	_, _, err := f.run(t, "list")
	require.NoError(t, err)
	before, err := os.ReadFile(f.store)
	require.NoError(t, err)

	out, _, err := f.runWithInput(t, `{"rules": [`, "import", "-")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E201]")

	dup := `{"version":1,"rules":[{"id":"a","css":"x{}"},{"id":"a","css":"y{}"}]}`
	out, _, err = f.runWithInput(t, dup, "--format", "json", "import", "-")
	require.Error(t, err)
	assert.Contains(t, out, `"E203"`)

	after, err := os.ReadFile(f.store)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImport_DryRunAndFile(t *testing.T) {
	f := newCLI(t)
	path := filepath.Join(f.dir, "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"rules":[{"id":"only","match":{"host":"x.com"},"css":["a{}"]}]}`), 0o644))

	out, _, err := f.run(t, "import", "--dry-run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid")
	assert.Len(t, f.rules(t), 6)

	_, _, err = f.run(t, "import", path)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, ids(f.rules(t)))

	_, _, err = f.run(t, "import", filepath.Join(f.dir, "missing.json"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompact_FreshStore(t *testing.T) {
	f := newCLI(t)
	out, _, err := f.run(t, "compact")
	require.NoError(t, err)
	assert.Contains(t, out, "Already compact")
}

func TestHistory(t *testing.T) {
	f := newCLI(t)
	_, _, err := f.run(t, "zap", "--url", "https://example.org/", "--selector", "#x")
	require.NoError(t, err)
	_, _, err = f.run(t, "undo")
	require.NoError(t, err)

	var entries []journal.Entry
	f.data(t, &entries, "history")
	require.Len(t, entries, 2)
	assert.Equal(t, journal.KindUndo, entries[0].Kind)
	assert.Equal(t, journal.KindAutoZap, entries[1].Kind)
	assert.Greater(t, entries[0].Seq, entries[1].Seq)

	out, _, err := f.run(t, "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "SEQ")
	assert.Contains(t, out, journal.KindUndo)
	assert.NotContains(t, out, journal.KindAutoZap)
}

func TestPickerScript(t *testing.T) {
	f := newCLI(t)
	out, _, err := f.run(t, "picker-script")
	require.NoError(t, err)
	assert.Equal(t, picker.Script(), out)
}

func TestSelector(t *testing.T) {
	f := newCLI(t)
	page := filepath.Join(f.dir, "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><body>
<nav><a href="/">Home</a><a class="active" href="/x">X</a></nav>
<div id="hero"><p>hi</p></div>
</body></html>`), 0o644))

	out, _, err := f.run(t, "selector", page, "#hero")
	require.NoError(t, err)
	assert.Equal(t, "#hero\n", out)

	var res SelectorResult
	f.data(t, &res, "selector", page, "nav a.active")
	assert.Equal(t, "a.active:nth-of-type(2)", res.Selector)
	assert.Equal(t, picker.Hints(res.Selector), res.Hints)

	_, _, err = f.run(t, "selector", page, "table")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, _, err = f.run(t, "selector", filepath.Join(f.dir, "nope.html"), "a")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigErrors(t *testing.T) {
	f := newCLI(t)
	require.NoError(t, os.WriteFile(f.config, []byte("colour: blue\n"), 0o644))

	out, _, err := f.run(t, "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E003")
}

func TestExportImport_HashMarksChanges(t *testing.T) {
	f := newCLI(t)

	var exported struct {
		Hash     string `json:"hash"`
		Document string `json:"document"`
	}
	f.data(t, &exported, "export")
	require.Len(t, exported.Hash, 64)

	// Whitespace alone is not a change.
	var res ImportResult
	var squashed bytes.Buffer
	require.NoError(t, json.Compact(&squashed, []byte(exported.Document)))
	f.data(t, &res, "import", "--dry-run", writeFile(t, f.dir, "same.json", squashed.String()))
	assert.Equal(t, "Valid", res.Status)
	assert.Equal(t, exported.Hash, res.Hash)
	assert.False(t, res.Changed)

	f.data(t, &res, "import", writeFile(t, f.dir, "one.json", `{"version":1,"rules":[{"id":"one","css":"a > b{}"}]}`))
	assert.Equal(t, 1, res.Rules)
	assert.True(t, res.Changed)
	assert.NotEqual(t, exported.Hash, res.Hash)

	f.data(t, &exported, "export")
	assert.Equal(t, res.Hash, exported.Hash)
	assert.Contains(t, exported.Document, `"a > b{}"`)
}

func TestFormat(t *testing.T) {
	f := newCLI(t)

	out, _, err := f.runWithInput(t, `{"rules":[{"id":"x","css":"a > b{}"}],"version":1}`, "format", "-")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"rules\": [\n    {\n      \"id\": \"x\",\n      \"css\": \"a > b{}\"\n    }\n  ],\n  \"version\": 1\n}\n", out)

	out, _, err = f.runWithInput(t, `{"rules":[`, "format", "-")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E201]")

	// Nothing is saved.
	assert.Len(t, f.rules(t), 6)
}

func TestAdd_WarnsWithoutSelector(t *testing.T) {
	f := newCLI(t)

	_, errOut, err := f.run(t, "add", "--host", "example.org", "--css", "@media print{}")
	require.NoError(t, err)
	assert.Contains(t, errOut, "has no selector")

	_, errOut, err = f.run(t, "-v", "add", "--host", "example.org", "--css", "nav a, footer{opacity:0.25!important}")
	require.NoError(t, err)
	assert.NotContains(t, errOut, "has no selector")
	assert.Contains(t, errOut, "selectors: nav a, footer")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
