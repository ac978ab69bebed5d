package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"go.uber.org/zap"
)

// LocalFileStorage keeps generated purchase order files under one base directory
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) port.FileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes content to the relative path, creating parent directories
func (s *LocalFileStorage) Save(ctx context.Context, path string, content []byte) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create directories", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// Readers never observe a partially written file.
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		s.logger.Error("Failed to write file", zap.String("path", tmp), zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	s.logger.Debug("File saved", zap.String("path", fullPath), zap.Int("size", len(content)))
	return nil
}

// Read reads content from the relative path
func (s *LocalFileStorage) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// Exists reports whether a file exists at the relative path
func (s *LocalFileStorage) Exists(ctx context.Context, path string) bool {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// GetFullPath joins the relative path onto the base directory
func (s *LocalFileStorage) GetFullPath(relativePath string) string {
	return filepath.Join(s.baseDir, relativePath)
}

// resolve rejects paths that escape the base directory.
func (s *LocalFileStorage) resolve(relativePath string) (string, error) {
	fullPath := s.GetFullPath(relativePath)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	if absPath != absBase && !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory: %s", relativePath)
	}
	return fullPath, nil
}

var _ port.FileStorage = (*LocalFileStorage)(nil)
