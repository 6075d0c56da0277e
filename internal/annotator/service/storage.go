package service

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ============================================================
// File Storage
// ============================================================

// FileStorage keeps uploaded blueprint pages under root/<project>/.
// Stored files are addressed by URIs relative to root, which is what the
// page cache's file fetcher expects.
type FileStorage struct {
	root string
}

func NewFileStorage(root string) *FileStorage {
	return &FileStorage{root: root}
}

func (s *FileStorage) Root() string {
	return s.root
}

func (s *FileStorage) ProjectDir(projectID string) string {
	return filepath.Join(s.root, safeName(projectID))
}

func (s *FileStorage) EnsureDir(projectID string) error {
	if err := os.MkdirAll(s.ProjectDir(projectID), 0o755); err != nil {
		return fmt.Errorf("mkdir project dir: %w", err)
	}
	return nil
}

// SavePage writes an uploaded page and returns its URI. Every upload gets
// a fresh name, so a replaced page never collides with a cached one.
func (s *FileStorage) SavePage(projectID, filename string, data []byte) (string, error) {
	if err := s.EnsureDir(projectID); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.NewString() + ext
	target := filepath.Join(s.ProjectDir(projectID), name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write page: %w", err)
	}
	return path.Join(safeName(projectID), name), nil
}

// IsUpload reports whether uri names a file SavePage wrote for projectID.
func (s *FileStorage) IsUpload(projectID, uri string) bool {
	if path.Dir(uri) != safeName(projectID) {
		return false
	}
	base := path.Base(uri)
	_, err := uuid.Parse(strings.TrimSuffix(base, path.Ext(base)))
	return err == nil
}

// Remove deletes a stored page by URI. Remote URIs and missing files are
// ignored.
func (s *FileStorage) Remove(uri string) error {
	if strings.Contains(uri, "://") || strings.Contains(uri, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(uri)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
	if s == "" {
		return "_"
	}
	return s
}
