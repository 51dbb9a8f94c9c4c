package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// UploadStore persists study material files under a single flat directory.
// Class scoping is enforced on the database rows, not on the filesystem
// layout, so every file lives directly in the base directory.
type UploadStore struct {
	baseDir    string
	allowedExt map[string]struct{}
}

// NewUploadStore ensures the base directory exists and returns a handle.
func NewUploadStore(baseDir string, allowedExtensions []string) (*UploadStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &UploadStore{baseDir: baseDir, allowedExt: allowed}, nil
}

// Allowed reports whether the filename carries a permitted extension.
func (s *UploadStore) Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	if len(s.allowedExt) == 0 {
		return true
	}
	_, ok := s.allowedExt[ext]
	return ok
}

// Sanitize strips directory components and unsafe characters from a
// client-supplied filename and prefixes it with an upload timestamp so
// repeated uploads of the same file never collide.
func (s *UploadStore) Sanitize(filename string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "arquivo"
	}
	return fmt.Sprintf("%s_%s", now.Format("20060102150405"), base)
}

// SaveStream copies the reader into the named file under the base directory.
func (s *UploadStore) SaveStream(filename string, r io.Reader) (string, error) {
	path := s.resolve(filename)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload stream: %w", err)
	}
	return filename, nil
}

// Open returns a read-only handle for the stored file.
func (s *UploadStore) Open(filename string) (*os.File, error) {
	file, err := os.Open(s.resolve(filename))
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *UploadStore) Delete(filename string) error {
	if err := os.Remove(s.resolve(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

// Path exposes the absolute path for a stored filename.
func (s *UploadStore) Path(filename string) string {
	return s.resolve(filename)
}

func (s *UploadStore) resolve(filename string) string {
	return filepath.Join(s.baseDir, filepath.Base(filename))
}
