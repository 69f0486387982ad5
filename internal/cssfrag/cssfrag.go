// Package cssfrag inspects the CSS fragments stored in rules.
//
// Fragments are parsed with douceur. Parsing is advisory: the store keeps
// whatever text the user wrote, and callers use this package to warn about
// fragments that do not parse and to order injection.
package cssfrag

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// ErrEmpty is returned by Validate for fragments without any rule.
var ErrEmpty = errors.New("css fragment has no rules")

// displayNone is the fallback check used when a fragment does not parse.
var displayNone = regexp.MustCompile(`(?i)display\s*:\s*none\b`)

// Fragment is a parsed CSS fragment.
type Fragment struct {
	Source string
	Sheet  *css.Stylesheet
}

// Parse parses src as a stylesheet.
func Parse(src string) (*Fragment, error) {
	sheet, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse css: %w", err)
	}
	return &Fragment{Source: src, Sheet: sheet}, nil
}

// Validate reports whether src parses and holds at least one rule.
func Validate(src string) error {
	frag, err := Parse(src)
	if err != nil {
		return err
	}
	if len(frag.Sheet.Rules) == 0 {
		return ErrEmpty
	}
	return nil
}

// HidesElements reports whether the fragment sets display:none anywhere.
// Fragments that do not parse fall back to a textual check.
func HidesElements(src string) bool {
	frag, err := Parse(src)
	if err != nil {
		return displayNone.MatchString(src)
	}
	return frag.hides(frag.Sheet.Rules)
}

func (f *Fragment) hides(rules []*css.Rule) bool {
	for _, r := range rules {
		for _, d := range r.Declarations {
			if strings.EqualFold(strings.TrimSpace(d.Property), "display") &&
				strings.EqualFold(strings.TrimSpace(d.Value), "none") {
				return true
			}
		}
		if f.hides(r.Rules) {
			return true
		}
	}
	return false
}

// Selectors returns the selectors of every qualified rule in src, including
// rules nested in at-rules, in source order.
func Selectors(src string) ([]string, error) {
	frag, err := Parse(src)
	if err != nil {
		return nil, err
	}
	var out []string
	collectSelectors(frag.Sheet.Rules, &out)
	return out, nil
}

func collectSelectors(rules []*css.Rule, out *[]string) {
	for _, r := range rules {
		if r.Kind == css.QualifiedRule {
			*out = append(*out, r.Selectors...)
		}
		collectSelectors(r.Rules, out)
	}
}

// Partition splits fragments into those that only restyle and those that
// hide elements, keeping relative order in both.
func Partition(frags []string) (visible, hidden []string) {
	for _, f := range frags {
		if HidesElements(f) {
			hidden = append(hidden, f)
		} else {
			visible = append(visible, f)
		}
	}
	return visible, hidden
}
