package picker

import (
	"fmt"
	"strings"
)

// Action is what an auto-zap does to the picked element.
type Action string

const (
	ActionTransparent Action = "transparent"
	ActionHide        Action = "hide"
	ActionDim         Action = "dim"
	ActionPage        Action = "page"
)

// Declaration blocks appended to a selector. picker.js uses the same text.
const (
	transparentBlock = "{background:transparent!important;background-color:transparent!important}"
	hideBlock        = "{display:none!important}"
	dimBlock         = "{opacity:0.25!important}"
)

// PageSelectors is the page-transparency heuristic: root containers common
// to single-page apps. The P action makes all of them transparent no matter
// which element is hovered. It is a guess, not a rule derived from the page.
var PageSelectors = []string{"html", "body", "#root", "#app", "#__next", "main", ".app", ".container"}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionTransparent, ActionHide, ActionDim, ActionPage:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q (want transparent, hide, dim or page)", s)
	}
}

// HintSet holds ready-made CSS fragments for one selector.
type HintSet struct {
	Transparent string `json:"transparent"`
	Hide        string `json:"hide"`
	Dim         string `json:"dim"`
}

// Hints builds the three suggestions offered for a manual pick.
func Hints(selector string) HintSet {
	return HintSet{
		Transparent: selector + transparentBlock,
		Hide:        selector + hideBlock,
		Dim:         selector + dimBlock,
	}
}

// For returns the hint for a, or false for ActionPage and unknown actions.
func (h HintSet) For(a Action) (string, bool) {
	var css string
	switch a {
	case ActionTransparent:
		css = h.Transparent
	case ActionHide:
		css = h.Hide
	case ActionDim:
		css = h.Dim
	}
	return css, css != ""
}

// PageSelector is PageSelectors as one selector list.
func PageSelector() string {
	return strings.Join(PageSelectors, ",")
}

// ZapCSS returns the fragment an auto-zap commits. The selector is ignored
// for ActionPage.
func ZapCSS(action Action, selector string) (string, error) {
	if action == ActionPage {
		return PageSelector() + transparentBlock, nil
	}
	if strings.TrimSpace(selector) == "" {
		return "", fmt.Errorf("%w: empty selector", ErrInvalidEvent)
	}
	css, ok := Hints(selector).For(action)
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, action)
	}
	return css, nil
}
