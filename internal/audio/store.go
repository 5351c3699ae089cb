package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrTooLarge is returned when an upload exceeds the store's size limit
var ErrTooLarge = errors.New("audio file too large")

var keyPartRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store keeps practice recordings on local disk under speeches/<user>/<id>.webm
type Store struct {
	baseDir  string
	baseURL  string
	maxBytes int64
}

// NewStore creates a store rooted at baseDir. Files are addressed publicly as baseURL/<key>.
func NewStore(baseDir, baseURL string, maxBytes int64) *Store {
	return &Store{
		baseDir:  baseDir,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		maxBytes: maxBytes,
	}
}

// Key returns the object key for a user's recording
func Key(userID, practiceID string) (string, error) {
	if !keyPartRegexp.MatchString(userID) || !keyPartRegexp.MatchString(practiceID) {
		return "", fmt.Errorf("invalid audio key parts %q/%q", userID, practiceID)
	}
	return path.Join("speeches", userID, practiceID+".webm"), nil
}

// Save writes a recording and returns its key
func (s *Store) Save(ctx context.Context, userID, practiceID string, r io.Reader) (string, error) {
	key, err := Key(userID, practiceID)
	if err != nil {
		return "", err
	}

	full := s.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := io.Reader(&ctxReader{ctx: ctx, r: r})
	if s.maxBytes > 0 {
		src = io.LimitReader(src, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return "", ErrTooLarge
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("failed to store audio file: %w", err)
	}
	return key, nil
}

// Open returns a reader for a stored recording
func (s *Store) Open(key string) (*os.File, error) {
	if !validKey(key) {
		return nil, os.ErrNotExist
	}
	return os.Open(s.path(key))
}

// Delete removes a recording. Deleting a missing file is not an error.
func (s *Store) Delete(key string) error {
	if !validKey(key) {
		return fmt.Errorf("invalid audio key %q", key)
	}
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URL returns the address the recording is served at
func (s *Store) URL(key string) string {
	return s.baseURL + "/" + key
}

// Owner returns the user a recording key belongs to
func Owner(key string) (string, bool) {
	if !validKey(key) {
		return "", false
	}
	return strings.Split(key, "/")[1], true
}

func (s *Store) path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

func validKey(key string) bool {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "speeches" || !strings.HasSuffix(parts[2], ".webm") {
		return false
	}
	return keyPartRegexp.MatchString(parts[1]) && keyPartRegexp.MatchString(strings.TrimSuffix(parts[2], ".webm"))
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
