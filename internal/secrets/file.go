// Package secrets keeps file-mounted credentials in memory and re-reads them
// on demand, so a rotated token is used without a restart.
package secrets

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// FileSecret is one credential read from a file, such as an API token
// mounted by an orchestrator. Surrounding whitespace is trimmed and an empty
// file is an error.
type FileSecret struct {
	name string
	path string

	mu       sync.RWMutex
	value    string
	loadedAt time.Time
}

// NewFileSecret reads the credential called name from path.
func NewFileSecret(name, path string) (*FileSecret, error) {
	s := &FileSecret{name: name, path: path}
	val, err := s.read()
	if err != nil {
		return nil, err
	}
	s.value = val
	s.loadedAt = time.Now()
	return s, nil
}

// Value returns the current credential.
func (s *FileSecret) Value() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Path returns the file the credential is read from.
func (s *FileSecret) Path() string { return s.path }

// LoadedAt returns when the current value was read.
func (s *FileSecret) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Reload re-reads the file and reports whether the credential changed. On
// error the current value is kept.
func (s *FileSecret) Reload() (changed bool, err error) {
	val, err := s.read()
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed = val != s.value
	s.value = val
	s.loadedAt = time.Now()
	return changed, nil
}

// Redacted returns the credential masked for logging.
func (s *FileSecret) Redacted() string {
	return Redact(s.Value())
}

func (s *FileSecret) read() (string, error) {
	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.name, err)
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return "", fmt.Errorf("read %s: %s is empty", s.name, s.path)
	}
	return val, nil
}

// Redact masks a credential for logging: the first two characters followed
// by "****", or just "****" for short values.
func Redact(val string) string {
	switch {
	case val == "":
		return ""
	case len(val) <= 4:
		return "****"
	default:
		return val[:2] + "****"
	}
}
