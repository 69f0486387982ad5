//go:build !cgo

package contentview

// NewWindow reports ErrUnsupported without cgo.
func NewWindow(title string, width, height int, debug bool) (Engine, error) {
	return nil, ErrUnsupported
}
