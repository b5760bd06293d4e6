// Package images validates, resizes and stores uploaded cover images.
package images

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Storage manages cover files on disk. Thread-safe for concurrent requests.
type Storage struct {
	dir string
	mu  sync.RWMutex
}

func NewStorage(dir string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("image directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Save writes an encoded image under filename. The file must be fully on disk
// before any database row references it, so callers save first and persist
// after.
func (s *Storage) Save(filename string, data []byte) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if len(data) == 0 {
		return fmt.Errorf("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.Path(filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	return nil
}

// Delete removes a stored file. A missing file is not an error: replacing an
// image that was already cleaned up must not fail the request.
func (s *Storage) Delete(filename string) error {
	if filename == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(filename)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

func (s *Storage) Exists(filename string) bool {
	if filename == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.Path(filename))
	return err == nil
}

// Path returns the full filesystem path for a stored file. The base of the
// name is taken first so a crafted filename cannot escape the directory.
func (s *Storage) Path(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

// FilenameFromURL extracts the stored filename from a public image URL.
// Returns "" when the URL does not look like one of ours.
func FilenameFromURL(imageURL string) string {
	if imageURL == "" {
		return ""
	}
	u, err := url.Parse(imageURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || !strings.HasSuffix(name, ".jpg") {
		return ""
	}
	return name
}
