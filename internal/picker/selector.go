package picker

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

const (
	maxSelectorDepth = 5
	maxClasses       = 3
)

// ErrNoTarget is returned when there is no element to compute a selector for.
var ErrNoTarget = errors.New("no target element")

var cssIdent = regexp.MustCompile(`^-?[_a-zA-Z][_a-zA-Z0-9-]*$`)

// ParseHTML parses a document for selector computation.
func ParseHTML(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ComputeSelector returns a selector for target within root, built the way
// picker.js builds it: a valid id wins outright, otherwise up to five
// ancestor segments joined with " > " until the selector matches only
// target. When the depth cap is hit the selector may not be unique.
func ComputeSelector(root, target *html.Node) (string, error) {
	if target == nil || target.Type != html.ElementNode {
		return "", ErrNoTarget
	}
	if id := attr(target, "id"); id != "" && cssIdent.MatchString(id) {
		return "#" + id, nil
	}

	var parts []string
	cur := target
	for depth := 0; cur != nil && cur.Type == html.ElementNode && depth < maxSelectorDepth; depth++ {
		parts = append([]string{segment(cur)}, parts...)
		sel := strings.Join(parts, " > ")
		if unique(root, sel, target) {
			return sel, nil
		}
		cur = cur.Parent
	}
	return strings.Join(parts, " > "), nil
}

// SelectorFor finds the first element matching query and computes its
// selector.
func SelectorFor(root *html.Node, query string) (string, error) {
	sel, err := cascadia.Compile(query)
	if err != nil {
		return "", fmt.Errorf("compile %q: %w", query, err)
	}
	target := sel.MatchFirst(root)
	if target == nil {
		return "", fmt.Errorf("%w: nothing matches %q", ErrNoTarget, query)
	}
	return ComputeSelector(root, target)
}

func unique(root *html.Node, sel string, target *html.Node) bool {
	compiled, err := cascadia.Compile(sel)
	if err != nil {
		return false
	}
	found := compiled.MatchAll(root)
	return len(found) == 1 && found[0] == target
}

func segment(n *html.Node) string {
	seg := strings.ToLower(n.Data)

	var classes []string
	for _, c := range strings.Fields(attr(n, "class")) {
		if len(classes) == maxClasses {
			break
		}
		if cssIdent.MatchString(c) {
			classes = append(classes, c)
		}
	}
	if len(classes) > 0 {
		seg += "." + strings.Join(classes, ".")
	}

	if p := n.Parent; p != nil && p.Type == html.ElementNode {
		same, index := 0, 0
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && strings.EqualFold(c.Data, n.Data) {
				same++
				if c == n {
					index = same
				}
			}
		}
		if same > 1 {
			seg += ":nth-of-type(" + strconv.Itoa(index) + ")"
		}
	}
	return seg
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
