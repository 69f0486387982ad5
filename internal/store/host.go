package store

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeHost returns the grouping key for a host or host suffix.
//
// Leading "www." and "." prefixes are stripped until neither remains, so
// NormalizeHost(NormalizeHost(h)) == NormalizeHost(h) for every h.
func NormalizeHost(h string) string {
	x := strings.ToLower(strings.TrimSpace(norm.NFC.String(h)))
	for {
		switch {
		case strings.HasPrefix(x, "www."):
			x = strings.TrimSpace(x[len("www."):])
		case strings.HasPrefix(x, "."):
			x = strings.TrimSpace(x[1:])
		default:
			return x
		}
	}
}

// HostMatches reports whether host satisfies a rule's host constraint.
// An empty pattern matches every host.
func HostMatches(pattern, host string) bool {
	want := strings.ToLower(strings.TrimSpace(norm.NFC.String(pattern)))
	if want == "" {
		return true
	}
	want = strings.TrimPrefix(want, ".")
	if want == "" {
		return false
	}
	host = strings.ToLower(host)
	return host == want || strings.HasSuffix(host, "."+want)
}
