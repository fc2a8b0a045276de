package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Cache errors.
var (
	// ErrCacheRead is returned when a cached document cannot be read.
	ErrCacheRead = errors.New("cache read failure")

	// ErrNotCached is returned when the requested document was never cached.
	// Errors wrapping it also match ErrCacheRead.
	ErrNotCached = errors.New("document not cached")

	// ErrCacheWrite is returned when a document cannot be persisted.
	ErrCacheWrite = errors.New("cache write failure")
)

// Kind is a document kind. Its value is the directory name under the root.
type Kind string

const (
	// KindCategory holds the catalog root document.
	KindCategory Kind = "category"

	// KindArticle holds one document per article id.
	KindArticle Kind = "articles"
)

// CategoriesKey is the key of the catalog root document.
const CategoriesKey = "categories"

// fileExt is the extension of every cached document.
const fileExt = ".json"

// Directory and file permissions for cached data.
const (
	dirPerm  os.FileMode = 0750
	filePerm os.FileMode = 0600
)

// Store reads and writes cached documents below a root directory.
type Store struct {
	fs   afero.Fs
	root string
}

// Option configures a Store.
type Option func(*Store)

// WithFs replaces the filesystem. Defaults to the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(s *Store) {
		s.fs = fsys
	}
}

// NewStore creates a Store rooted at root.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		fs:   afero.NewOsFs(),
		root: root,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Fs returns the filesystem the store operates on.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Path returns the file path for kind and key.
func (s *Store) Path(kind Kind, key string) string {
	return filepath.Join(s.root, string(kind), key+fileExt)
}

// Write stores data under kind and key, replacing any previous content.
// The data is written to a temporary file in the same directory and renamed
// into place so readers never observe a partial document.
func (s *Store) Write(kind Kind, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}

	path := s.Path(kind, key)
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrCacheWrite, dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCacheWrite, path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrCacheWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrCacheWrite, path, err)
	}
	if err := s.fs.Chmod(tmpName, filePerm); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrCacheWrite, path, err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrCacheWrite, path, err)
	}
	return nil
}

// Read returns the document stored under kind and key.
func (s *Store) Read(kind Kind, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheRead, err)
	}

	path := s.Path(kind, key)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w: %s", ErrCacheRead, ErrNotCached, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
	}
	return data, nil
}

// Keys lists the keys cached under kind. Numeric keys are ordered
// numerically and precede non-numeric keys, which are ordered lexically.
// A kind that was never written yields ErrNotCached.
func (s *Store) Keys(kind Kind) ([]string, error) {
	dir := filepath.Join(s.root, string(kind))
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w: %s", ErrCacheRead, ErrNotCached, dir)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, dir, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}

	sort.Slice(keys, func(i, j int) bool {
		return lessKey(keys[i], keys[j])
	})
	return keys, nil
}

// lessKey orders numeric keys numerically, before any non-numeric key.
func lessKey(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

// validKey rejects keys that would escape the kind directory.
func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// ArticleKey returns the cache key of an article id.
func ArticleKey(id int) string {
	return strconv.Itoa(id)
}
