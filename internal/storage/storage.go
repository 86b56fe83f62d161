// Package storage persists the post collection as one JSON array in a flat file.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhouzirui/z-blog/backend/internal/model/post"
)

var (
	// ErrInvalidJSON means the file exists but does not hold valid JSON.
	ErrInvalidJSON = errors.New("storage file contains invalid JSON")
	// ErrNotArray means the file parses but its outermost value is not an array.
	ErrNotArray = errors.New("storage file outermost value must be an array")
	// ErrIO wraps every other read or write failure.
	ErrIO = errors.New("storage i/o failure")
)

// FileStore reads and rewrites the whole collection on every call. It keeps
// no state besides the path, so every Read reflects the file as it is now.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path. The file does not
// need to exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Read loads the collection. A missing file is the empty collection.
func (s *FileStore) Read(ctx context.Context) ([]post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// #nosec G304 -- path comes from service configuration
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []post.Post{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, s.path, err)
	}

	return decode(data)
}

// decode parses file contents into a collection.
func decode(data []byte) ([]post.Post, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotArray
	}

	posts := []post.Post{}
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return posts, nil
}

// encode renders a collection with two-space indentation and a trailing newline.
func encode(posts []post.Post) ([]byte, error) {
	if posts == nil {
		posts = []post.Post{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(posts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write replaces the file with the full collection. The data goes to a
// temporary file in the same directory first and is renamed into place, so
// readers never see a partially written file.
func (s *FileStore) Write(ctx context.Context, posts []post.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(posts)
	if err != nil {
		return fmt.Errorf("%w: encode posts: %w", ErrIO, err)
	}

	dir := filepath.Dir(s.path)
	// #nosec G301 -- data directory is shared with operators
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create directory %s: %w", ErrIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrIO, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write %s: %w", ErrIO, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync %s: %w", ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close %s: %w", ErrIO, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: replace %s: %w", ErrIO, s.path, err)
	}
	return nil
}
