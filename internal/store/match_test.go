package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/cloudywindow/internal/ir"
)

func TestParseTarget(t *testing.T) {
	tg, ok := parseTarget("HTTPS://Sub.Example.com:8443/docs/page?q=1#x")
	assert.True(t, ok)
	assert.Equal(t, target{scheme: "https", host: "sub.example.com", path: "/docs/page"}, tg)

	tg, ok = parseTarget("https://example.com")
	assert.True(t, ok)
	assert.Equal(t, "/", tg.path)

	tg, ok = parseTarget("about:blank")
	assert.True(t, ok)
	assert.Equal(t, "about", tg.scheme)
	assert.Equal(t, "blank", tg.path)

	_, ok = parseTarget("example.com/no-scheme")
	assert.False(t, ok)
	_, ok = parseTarget("://bad")
	assert.False(t, ok)
}

func TestMatchingFragments_Constraints(t *testing.T) {
	rules := []ir.Rule{
		{ID: "any", CSS: ir.CSSList{"any{}"}},
		{ID: "https-only", Match: ir.Match{Protocols: ir.Protocols{"https"}}, CSS: ir.CSSList{"secure{}"}},
		{ID: "docs", Match: ir.Match{Host: "example.com", PathPrefix: "/docs"}, CSS: ir.CSSList{"docs{}"}},
		{ID: "off", Enabled: ir.Bool(false), CSS: ir.CSSList{"off{}"}},
		{ID: "other", Match: ir.Match{Host: "other.org"}, CSS: ir.CSSList{"other{}"}},
		{ID: "none", Match: ir.Match{Protocols: ir.Protocols{}}, CSS: ir.CSSList{"never{}"}},
	}

	assert.Equal(t, []string{"any{}", "secure{}", "docs{}"},
		matchingFragments(rules, "https://www.example.com/docs/intro"))
	assert.Equal(t, []string{"any{}"},
		matchingFragments(rules, "http://example.com/blog"))
	assert.Equal(t, []string{"any{}", "docs{}"},
		matchingFragments(rules, "http://example.com/docs"))
	assert.Equal(t, []string{}, matchingFragments(rules, "not a url"))
}

func TestMatchingFragments_PathPrefixIsCaseSensitive(t *testing.T) {
	rules := []ir.Rule{{ID: "p", Match: ir.Match{PathPrefix: "/Docs"}, CSS: ir.CSSList{"p{}"}}}
	assert.Empty(t, matchingFragments(rules, "https://x.com/docs"))
	assert.Equal(t, []string{"p{}"}, matchingFragments(rules, "https://x.com/Docs/a"))
}
