package document

import (
	"fmt"
	"os"
	"sync/atomic"
)

// Shell holds the current shell template. Readers always see one complete
// version; Reload swaps in a new one atomically.
type Shell struct {
	path    string
	current atomic.Pointer[string]
}

// NewShell wraps an in-memory shell that has no backing file.
func NewShell(text string) *Shell {
	s := &Shell{}
	s.current.Store(&text)
	return s
}

// LoadShell reads the shell template from path.
func LoadShell(path string) (*Shell, error) {
	s := &Shell{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// String returns the current shell text.
func (s *Shell) String() string {
	return *s.current.Load()
}

// Path returns the backing file, or "" for in-memory shells.
func (s *Shell) Path() string {
	return s.path
}

// Reload re-reads the backing file. On error the previous text is kept.
func (s *Shell) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading shell template: %w", err)
	}
	text := string(data)
	s.current.Store(&text)
	return nil
}
