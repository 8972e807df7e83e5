package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tempPrefix = "relay_"

// TempFileSet tracks the temporary paths of one request and removes them exactly once
type TempFileSet struct {
	dir    string
	logger *zap.Logger

	mu      sync.Mutex
	paths   []string
	tracked map[string]struct{}
	removed bool

	remove func(path string) error
}

// NewTempFileSet creates an empty set rooted at dir
func NewTempFileSet(dir string, logger *zap.Logger) *TempFileSet {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TempFileSet{
		dir:     dir,
		logger:  logger,
		tracked: make(map[string]struct{}),
		remove:  os.RemoveAll,
	}
}

// NewPath returns a unique tracked path in the temp dir ending in suffix
func (s *TempFileSet) NewPath(suffix string) string {
	path := filepath.Join(s.dir, tempPrefix+uuid.New().String()+suffix)
	s.Track(path)
	return path
}

// NewDir creates a unique tracked directory
func (s *TempFileSet) NewDir() (string, error) {
	path := filepath.Join(s.dir, tempPrefix+uuid.New().String())
	if err := os.MkdirAll(path, 0700); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	s.Track(path)
	return path, nil
}

// Track registers path for cleanup. Paths are kept in insertion order without duplicates.
func (s *TempFileSet) Track(path string) {
	if path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracked[path]; ok {
		return
	}
	s.tracked[path] = struct{}{}
	s.paths = append(s.paths, path)
}

// Paths returns the tracked paths in insertion order
func (s *TempFileSet) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Cleanup removes every tracked path. Missing files are fine and failures are only logged.
// Subsequent calls do nothing.
func (s *TempFileSet) Cleanup() {
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return
	}
	s.removed = true
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	for _, p := range paths {
		if err := s.remove(p); err != nil {
			s.logger.Warn("Failed to remove temp file", zap.String("path", p), zap.Error(err))
		}
	}
}

// TempFactory creates a fresh TempFileSet per request
type TempFactory struct {
	Dir    string
	Logger *zap.Logger
}

// New returns an empty set
func (f TempFactory) New() *TempFileSet {
	return NewTempFileSet(f.Dir, f.Logger)
}
