package contentview

import (
	"log/slog"
	"os"
	"path/filepath"
)

// FileSurface stands in for the editor panel. Draft text goes to a file the
// user can edit and import; status lines go to the log.
type FileSurface struct {
	Path   string
	Logger *slog.Logger
}

// SetText writes the draft to Path.
func (s *FileSurface) SetText(text string) {
	if s.Path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err == nil {
		err = os.WriteFile(s.Path, []byte(text), 0o644)
		if err == nil {
			return
		}
		s.logger().Warn("failed to write draft", "path", s.Path, "error", err)
		return
	}
	s.logger().Warn("failed to create draft dir", "path", s.Path)
}

// SetStatus logs status.
func (s *FileSurface) SetStatus(status string) {
	s.logger().Info(status, "draft", s.Path)
}

func (s *FileSurface) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
