// Package picker is the in-page element picker and its message protocol.
//
// The picker itself is a self-contained script (picker.js) injected into the
// content view. It reports user actions as JSON envelopes through a single
// host binding; Decode turns those envelopes into typed events. The Go side
// also builds the same hint CSS the script does and can compute selectors
// over parsed HTML, so the CLI and tests share the script's rules.
package picker

import (
	_ "embed"
	"fmt"
)

//go:embed picker.js
var script string

// BindingName is the global function the script calls with each envelope.
const BindingName = "__cloudyEmit"

// ControllerName is the global object the script installs.
const ControllerName = "__cloudyPicker"

// Script returns the picker source. Injecting it twice is harmless.
func Script() string {
	return script
}

// Call returns a JS expression invoking a controller method if the picker is
// installed, e.g. Call("start").
func Call(method string) string {
	return fmt.Sprintf("window.%[1]s && window.%[1]s.%[2]s()", ControllerName, method)
}
