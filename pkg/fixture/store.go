// Package fixture persists golden response bodies on disk. A Store is a
// stateless I/O surface over a fixtures root directory: it resolves
// deterministic paths for fixture identifiers, reports existence, reads
// bodies, and writes them with an atomic-replace discipline so concurrent
// readers never observe a partially written file.
package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	defaultExtension = ".json"
	defaultFileMode  = os.FileMode(0o644)
	defaultDirMode   = os.FileMode(0o755)
)

// ErrNotFound indicates the fixture file does not exist. Callers treat it as
// recoverable; every other error from the store is a filesystem failure.
var ErrNotFound = errors.New("fixture not found")

// Option customises store behaviour.
type Option func(*Store)

// WithExtension overrides the file extension appended to fixture identifiers.
// A leading dot is added when missing; an empty value disables the extension.
func WithExtension(ext string) Option {
	return func(s *Store) {
		if ext != "" && ext[0] != '.' {
			ext = "." + ext
		}
		s.ext = ext
	}
}

// WithFileMode overrides the permission bits applied to written fixtures.
func WithFileMode(mode os.FileMode) Option {
	return func(s *Store) {
		s.fileMode = mode
	}
}

// Store resolves and persists fixtures under a root directory. It holds no
// state beyond its configuration; the filesystem is the single source of
// truth.
type Store struct {
	dir      string
	ext      string
	fileMode os.FileMode
}

// New creates a store rooted at dir. The directory is created lazily on the
// first write.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:      dir,
		ext:      defaultExtension,
		fileMode: defaultFileMode,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Dir returns the fixtures root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path resolves the file path for a fixture identifier. It performs no I/O;
// identical identifiers always resolve to the same path.
func (s *Store) Path(identifier string) string {
	return filepath.Join(s.dir, identifier+s.ext)
}

// Exists reports whether a regular file exists for the identifier. Absence is
// not an error; unexpected stat failures are.
func (s *Store) Exists(identifier string) (bool, error) {
	info, err := os.Stat(s.Path(identifier))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat fixture %s: %w", identifier, err)
	}
	return info.Mode().IsRegular(), nil
}

// Read returns the stored body for the identifier. A missing file yields
// ErrNotFound; an empty file yields an empty body.
func (s *Store) Read(identifier string) ([]byte, error) {
	body, err := os.ReadFile(s.Path(identifier))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read fixture %s: %w", identifier, ErrNotFound)
		}
		return nil, fmt.Errorf("read fixture %s: %w", identifier, err)
	}
	return body, nil
}

// Write persists the body for the identifier, replacing any previous content.
// The body lands in a temp file in the target directory and is renamed over
// the destination, so a concurrent reader sees either the old or the new
// complete content. Zero-length bodies are valid fixtures.
func (s *Store) Write(identifier string, body []byte) error {
	path := s.Path(identifier)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return fmt.Errorf("create fixture directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for fixture %s: %w", identifier, err)
	}
	tmpPath := tmp.Name()

	closed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if _, statErr := os.Stat(tmpPath); statErr == nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(body); err != nil {
		return fmt.Errorf("write fixture %s: %w", identifier, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync fixture %s: %w", identifier, err)
	}
	if err := tmp.Close(); err != nil {
		closed = true
		return fmt.Errorf("close temp file for fixture %s: %w", identifier, err)
	}
	closed = true

	if err := os.Chmod(tmpPath, s.fileMode); err != nil {
		return fmt.Errorf("chmod fixture %s: %w", identifier, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace fixture %s: %w", identifier, err)
	}
	return nil
}
