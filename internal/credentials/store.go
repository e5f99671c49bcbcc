// Package credentials caches the app access token between process restarts.
package credentials

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/peterbourgon/diskv/v3"
	"github.com/ttvsnap/ttvsnap/internal/errors"
)

// TokenFile is the name of the cached token file inside the cache directory.
const TokenFile = "access_token.txt"

// Store persists a single access token.
type Store interface {
	// Load returns the cached token; ok is false when nothing usable is cached.
	Load() (token string, ok bool, err error)
	// Save replaces the cached token. An empty token clears it.
	Save(token string) error
}

// FileStore keeps the token as a single-line file under the cache directory.
// Single process, single writer: there is no locking.
type FileStore struct {
	dir string
	dv  *diskv.Diskv
}

// NewFileStore creates the cache directory if needed and returns a store rooted at it.
func NewFileStore(cacheDir string) (*FileStore, error) {
	if err := os.MkdirAll(cacheDir, 0o700); err != nil {
		return nil, &errors.ErrDirectoryCreate{Path: cacheDir, Err: err}
	}

	// All keys live directly in the cache dir.
	flatTransform := func(s string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:     cacheDir,
		Transform:    flatTransform,
		CacheSizeMax: 0,
		PathPerm:     0o700,
		FilePerm:     0o600,
	})

	return &FileStore{dir: cacheDir, dv: dv}, nil
}

// Path returns the location of the token file.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, TokenFile)
}

// Load reads the cached token. A missing or blank file means no token.
func (s *FileStore) Load() (string, bool, error) {
	if !s.dv.Has(TokenFile) {
		return "", false, nil
	}

	data, err := s.dv.Read(TokenFile)
	if err != nil {
		return "", false, &errors.ErrFileRead{Path: s.Path(), Err: err}
	}

	token := string(data)
	if i := strings.IndexByte(token, '\n'); i >= 0 {
		token = token[:i]
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false, nil
	}

	return token, true, nil
}

// Save writes token to the cache file, overwriting any previous value.
func (s *FileStore) Save(token string) error {
	if err := s.dv.Write(TokenFile, []byte(strings.TrimSpace(token))); err != nil {
		return &errors.ErrFileWrite{Path: s.Path(), Err: err}
	}
	return nil
}

var _ Store = (*FileStore)(nil)
