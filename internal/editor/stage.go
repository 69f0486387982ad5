package editor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/roach88/cloudywindow/internal/ir"
	"github.com/roach88/cloudywindow/internal/picker"
)

// StagePick appends a rule for a manual pick to text and returns the new
// text and the staged rule id. Exactly one hint becomes the rule's css.
// The result is re-indented with two spaces; key order, unknown fields and
// string escapes of text are kept. text is left untouched on error.
func (b *Bridge) StagePick(text string, p *picker.Picked, hint picker.Action) (string, string, error) {
	if p == nil || strings.TrimSpace(p.Selector) == "" {
		return "", "", fmt.Errorf("%w: pick without selector", picker.ErrInvalidEvent)
	}
	css, ok := p.Hints.For(hint)
	if !ok {
		css, ok = picker.Hints(p.Selector).For(hint)
	}
	if !ok {
		return "", "", fmt.Errorf("no %q hint for a manual pick", hint)
	}

	rule := ir.Rule{
		ID:      ir.PickPrefix + b.ids.Generate(),
		Enabled: ir.Bool(true),
		Match:   ir.Match{Host: p.Host},
		CSS:     ir.CSSList{css},
		Notes:   "Picked: " + p.Selector,
	}
	raw, err := ir.MarshalCompact(rule)
	if err != nil {
		return "", "", err
	}

	out, err := insertRule([]byte(text), raw)
	if err != nil {
		return "", "", err
	}
	pretty, err := ir.IndentJSON(out)
	if err != nil {
		return "", "", err
	}
	return string(pretty), rule.ID, nil
}

// insertRule appends rule to the top-level rules array of doc, creating the
// array when it is missing. Key order and every other byte of doc are kept.
func insertRule(doc, rule []byte) ([]byte, error) {
	var probe any
	if err := json.Unmarshal(doc, &probe); err != nil {
		return nil, syntaxError(doc, err)
	}
	if _, ok := probe.(map[string]any); !ok {
		return nil, &ValidationError{Code: ErrCodeSchema, Message: "document must be a JSON object"}
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	if _, err := dec.Token(); err != nil { // {
		return nil, err
	}
	keys := 0
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys++
		if key, _ := keyTok.(string); key == "rules" {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			if d, ok := tok.(json.Delim); !ok || d != '[' {
				return nil, &ValidationError{Code: ErrCodeNoRules, Field: "rules", Message: "rules must be an array"}
			}
			elems := 0
			for dec.More() {
				if err := skipValue(dec); err != nil {
					return nil, err
				}
				elems++
			}
			// The closing bracket is the next non-space byte.
			closing := nextByte(doc, dec.InputOffset(), ']')
			if closing < 0 {
				return nil, &ValidationError{Code: ErrCodeSyntax, Message: "unterminated rules array"}
			}
			sep := []byte{}
			if elems > 0 {
				sep = []byte(",")
			}
			return splice(doc, closing, sep, rule), nil
		}
		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}

	closing := nextByte(doc, dec.InputOffset(), '}')
	if closing < 0 {
		return nil, &ValidationError{Code: ErrCodeSyntax, Message: "unterminated document"}
	}
	prefix := []byte(`"rules":[`)
	if keys > 0 {
		prefix = []byte(`,"rules":[`)
	}
	return splice(doc, closing, prefix, rule, []byte("]")), nil
}

func splice(doc []byte, at int, parts ...[]byte) []byte {
	out := make([]byte, 0, len(doc)+64)
	out = append(out, doc[:at]...)
	for _, p := range parts {
		out = append(out, p...)
	}
	return append(out, doc[at:]...)
}

// nextByte returns the index of want at or after from, skipping whitespace.
func nextByte(doc []byte, from int64, want byte) int {
	for i := int(from); i < len(doc); i++ {
		switch doc[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case want:
			return i
		default:
			return -1
		}
	}
	return -1
}

// skipValue consumes one complete JSON value from dec.
func skipValue(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
		if depth == 0 {
			return nil
		}
	}
}

// Position locates text inside a draft.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
}

// Locate finds the rule with the given id in a draft.
func Locate(text, id string) (Position, bool) {
	quoted, err := ir.MarshalCompact(id)
	if err != nil {
		return Position{}, false
	}
	re := regexp.MustCompile(`"id"\s*:\s*` + regexp.QuoteMeta(string(quoted)))
	loc := re.FindStringIndex(text)
	if loc == nil {
		return Position{}, false
	}
	return Position{Offset: loc[0], Line: strings.Count(text[:loc[0]], "\n") + 1}, true
}
