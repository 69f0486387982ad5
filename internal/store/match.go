package store

import (
	"net/url"
	"strings"

	"github.com/roach88/cloudywindow/internal/ir"
)

// target is the part of a URL that rule constraints look at.
type target struct {
	scheme string
	host   string
	path   string
}

// parseTarget splits rawURL into scheme, host and path. URLs without a scheme
// are rejected.
func parseTarget(rawURL string) (target, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return target{}, false
	}
	path := u.EscapedPath()
	if u.Opaque != "" {
		path = u.Opaque
	}
	if path == "" {
		path = "/"
	}
	return target{
		scheme: strings.ToLower(u.Scheme),
		host:   strings.ToLower(u.Hostname()),
		path:   path,
	}, true
}

// ruleMatches applies the protocol, host and path constraints of r to t.
// All present constraints must hold.
func ruleMatches(r *ir.Rule, t target) bool {
	if !r.IsEnabled() {
		return false
	}
	m := r.Match
	if m.Protocols != nil && !m.Protocols.Contains(t.scheme) {
		return false
	}
	if m.Host != "" && !HostMatches(m.Host, t.host) {
		return false
	}
	if m.PathPrefix != "" && !strings.HasPrefix(t.path, m.PathPrefix) {
		return false
	}
	return true
}

// matchingFragments flattens the css of every rule matching rawURL, in rule
// order. The result is never nil.
func matchingFragments(rules []ir.Rule, rawURL string) []string {
	out := []string{}
	t, ok := parseTarget(rawURL)
	if !ok {
		return out
	}
	for i := range rules {
		if ruleMatches(&rules[i], t) {
			out = append(out, rules[i].CSS...)
		}
	}
	return out
}
