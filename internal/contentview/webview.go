//go:build cgo

package contentview

import (
	webview "github.com/webview/webview_go"
)

// NewWindow creates a native web view window.
func NewWindow(title string, width, height int, debug bool) (Engine, error) {
	w := webview.New(debug)
	if w == nil {
		return nil, ErrUnsupported
	}
	w.SetTitle(title)
	w.SetSize(width, height, webview.HintNone)
	return w, nil
}
