package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MarshalDocument produces the persisted form of a document.
//
// The output is deterministic for a given document:
//  1. Two-space indentation with a trailing newline
//  2. No HTML escaping (< > & are NOT escaped, so `a > b` selectors stay readable)
//  3. All strings NFC normalized
//  4. U+2028 / U+2029 written literally
//
// This is the ONLY serialization the store writes to disk.
func MarshalDocument(doc *Document) ([]byte, error) {
	normalized := normalizeDocument(doc)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(normalized); err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return unescapeU2028U2029(buf.Bytes()), nil
}

// MarshalCompact encodes v on one line without HTML escaping.
func MarshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// IndentJSON reformats arbitrary JSON with two-space indentation while keeping
// key order and string escapes exactly as written. A trailing newline is added.
func IndentJSON(raw []byte) ([]byte, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// normalizeDocument returns a copy of doc with every string NFC normalized
// and nil rule lists replaced by empty ones.
func normalizeDocument(doc *Document) *Document {
	out := doc.Clone()
	if out.Rules == nil {
		out.Rules = []Rule{}
	}
	for i := range out.Rules {
		r := &out.Rules[i]
		r.ID = norm.NFC.String(r.ID)
		r.Notes = norm.NFC.String(r.Notes)
		r.Match.Host = norm.NFC.String(r.Match.Host)
		r.Match.PathPrefix = norm.NFC.String(r.Match.PathPrefix)
		for j := range r.Match.Protocols {
			r.Match.Protocols[j] = norm.NFC.String(r.Match.Protocols[j])
		}
		for j := range r.CSS {
			r.CSS[j] = norm.NFC.String(r.CSS[j])
		}
	}
	return out
}

// unescapeU2028U2029 converts \u2028 and \u2029 escape sequences back to literal
// characters, but preserves \\u2028/\\u2029 (escaped backslash followed by u2028/u2029).
// Go's json.Encoder escapes them for JavaScript embedding; the document is never
// embedded, and keeping them literal matches what editors show.
func unescapeU2028U2029(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	result := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if i+6 <= len(data) && data[i] == '\\' && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			// An odd number of backslashes before us means this one is itself escaped.
			backslashes := 0
			for j := len(result) - 1; j >= 0 && result[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					result = append(result, "\u2028"...)
				} else {
					result = append(result, "\u2029"...)
				}
				i += 6
				continue
			}
		}
		result = append(result, data[i])
		i++
	}
	return result
}
