package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Reserved id prefixes.
const (
	// StarterPrefix marks built-in rules. Host reset never removes them.
	StarterPrefix = "starter-"

	// PickPrefix marks rules staged from a manual pick.
	PickPrefix = "pick-"
)

// ErrNoRules is returned by DecodeDocument when the document has no rules array.
var ErrNoRules = errors.New("document has no rules array")

// Document is the persisted site-css.json document.
type Document struct {
	Version int    `json:"version" yaml:"version"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

// Rule maps a match condition to the CSS fragments injected when it applies.
type Rule struct {
	ID      string  `json:"id" yaml:"id"`
	Enabled *bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"` // nil means enabled
	Match   Match   `json:"match" yaml:"match"`
	CSS     CSSList `json:"css" yaml:"css"`
	Notes   string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Match describes where a rule applies. Empty fields match everything.
type Match struct {
	Host       string    `json:"host,omitempty" yaml:"host,omitempty"`
	PathPrefix string    `json:"pathPrefix,omitempty" yaml:"pathPrefix,omitempty"`
	Protocols  Protocols `json:"protocols,omitempty" yaml:"protocols,omitempty"`
}

// IsEnabled reports whether the rule takes part in matching.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// IsStarter reports whether the rule is one of the built-in starter rules.
func (r *Rule) IsStarter() bool {
	return strings.HasPrefix(r.ID, StarterPrefix)
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	out := r
	if r.Enabled != nil {
		v := *r.Enabled
		out.Enabled = &v
	}
	if r.CSS != nil {
		out.CSS = make(CSSList, len(r.CSS))
		copy(out.CSS, r.CSS)
	}
	if r.Match.Protocols != nil {
		out.Match.Protocols = make(Protocols, len(r.Match.Protocols))
		copy(out.Match.Protocols, r.Match.Protocols)
	}
	return out
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{Version: d.Version, Rules: make([]Rule, len(d.Rules))}
	for i := range d.Rules {
		out.Rules[i] = d.Rules[i].Clone()
	}
	return out
}

// Bool returns a pointer to b, for Rule.Enabled literals.
func Bool(b bool) *bool {
	return &b
}

// CSSList is an ordered list of CSS fragments.
// It decodes from either a JSON string or an array of strings.
type CSSList []string

// UnmarshalJSON accepts null, a bare string, or an array of scalars.
func (c *CSSList) UnmarshalJSON(data []byte) error {
	list, err := stringOrList(data)
	if err != nil {
		return fmt.Errorf("css: %w", err)
	}
	*c = list
	return nil
}

// MarshalJSON always encodes an array, never null. HTML characters are
// left as written so selectors like `a > b` stay readable.
func (c CSSList) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return MarshalCompact([]string(c))
}

// Protocols is the set of URL schemes (without colon) a rule is limited to.
// It decodes from either a JSON string or an array of strings.
type Protocols []string

// UnmarshalJSON accepts null, a bare string, or an array of scalars.
func (p *Protocols) UnmarshalJSON(data []byte) error {
	list, err := stringOrList(data)
	if err != nil {
		return fmt.Errorf("protocols: %w", err)
	}
	*p = list
	return nil
}

// Contains reports whether scheme is a member of the set.
func (p Protocols) Contains(scheme string) bool {
	for _, s := range p {
		if s == scheme {
			return true
		}
	}
	return false
}

// stringOrList decodes a string or a list of scalars into a string slice.
// Non-string scalars are kept in their JSON text form.
func stringOrList(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(raw))
		for _, elem := range raw {
			var s string
			if err := json.Unmarshal(elem, &s); err == nil {
				out = append(out, s)
				continue
			}
			out = append(out, string(bytes.TrimSpace(elem)))
		}
		return out, nil
	default:
		return []string{string(trimmed)}, nil
	}
}

// DecodeDocument parses a persisted document.
//
// A document whose rules field is missing or not an array returns ErrNoRules.
// A missing or non-integer version decodes as DocumentVersion.
func DecodeDocument(data []byte) (*Document, error) {
	var raw struct {
		Version json.RawMessage `json:"version"`
		Rules   json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	rules := bytes.TrimSpace(raw.Rules)
	if len(rules) == 0 || rules[0] != '[' {
		return nil, ErrNoRules
	}

	doc := &Document{Version: DocumentVersion}
	var version int
	if err := json.Unmarshal(raw.Version, &version); err == nil && version != 0 {
		doc.Version = version
	}
	if err := json.Unmarshal(rules, &doc.Rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return doc, nil
}
