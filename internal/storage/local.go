package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalStore keeps uploaded files under a base directory. References are
// paths relative to that directory.
type LocalStore struct {
	baseDir string
	log     *zap.Logger
	now     func() time.Time
}

func NewLocalStore(baseDir string, log *zap.Logger) *LocalStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalStore{baseDir: baseDir, log: log, now: time.Now}
}

// Store writes content under a fresh name that keeps the extension of name
// and returns its reference.
func (s *LocalStore) Store(ctx context.Context, name string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	ref := filepath.ToSlash(filepath.Join(s.now().UTC().Format("2006/01"), uuid.NewString()+ext))

	full, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.log.Debug("file stored", zap.String("ref", ref), zap.Int("size", len(content)))
	return ref, nil
}

// Open reads a stored file back.
func (s *LocalStore) Open(ctx context.Context, ref string) ([]byte, error) {
	full, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// resolve maps ref into baseDir and refuses paths that escape it.
func (s *LocalStore) resolve(ref string) (string, error) {
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.baseDir, filepath.FromSlash(ref)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory: %s", ref)
	}
	return absPath, nil
}
