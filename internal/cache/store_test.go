package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// newMemStore creates a Store backed by an in-memory filesystem.
func newMemStore(t *testing.T) *Store {
	t.Helper()
	return NewStore("crawled_data", WithFs(afero.NewMemMapFs()))
}

// TestStorePath tests the on-disk layout.
func TestStorePath(t *testing.T) {
	t.Parallel()

	s := NewStore("crawled_data")

	tests := []struct {
		name string
		kind Kind
		key  string
		want string
	}{
		{"category root", KindCategory, CategoriesKey, filepath.Join("crawled_data", "category", "categories.json")},
		{"article", KindArticle, ArticleKey(42), filepath.Join("crawled_data", "articles", "42.json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := s.Path(tt.kind, tt.key); got != tt.want {
				t.Errorf("got %q, expected %q", got, tt.want)
			}
		})
	}
}

// TestStoreRoundTrip tests that written bytes are read back unchanged.
func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("memory filesystem", func(t *testing.T) {
		t.Parallel()

		s := newMemStore(t)
		data := []byte(`{"code":"OK","data":{"id":1,"contents":{"KR":"본문"}}}`)

		if err := s.Write(KindArticle, "1", data); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		got, err := s.Read(KindArticle, "1")
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("round trip mismatch: got %q, expected %q", got, data)
		}
	})

	t.Run("os filesystem", func(t *testing.T) {
		t.Parallel()

		root := filepath.Join(t.TempDir(), "crawled_data")
		s := NewStore(root)
		data := []byte("\x00binary\xffpayload")

		if err := s.Write(KindCategory, CategoriesKey, data); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		onDisk, err := os.ReadFile(filepath.Join(root, "category", "categories.json"))
		if err != nil {
			t.Fatalf("expected file on disk: %v", err)
		}
		if !bytes.Equal(onDisk, data) {
			t.Errorf("on-disk mismatch: got %q", onDisk)
		}

		// No temporary files are left behind.
		entries, err := os.ReadDir(filepath.Join(root, "category"))
		if err != nil {
			t.Fatalf("read dir failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected exactly one file, got %d", len(entries))
		}
	})
}

// TestStoreOverwrite tests whole-file replacement on rewrite.
func TestStoreOverwrite(t *testing.T) {
	t.Parallel()

	s := newMemStore(t)

	if err := s.Write(KindArticle, "7", []byte("first version, longer")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := s.Write(KindArticle, "7", []byte("second")); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	got, err := s.Read(KindArticle, "7")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("expected replaced content, got %q", got)
	}
}

// TestStoreWriteCreatesDirectoriesIdempotently tests lazy directory creation.
func TestStoreWriteCreatesDirectoriesIdempotently(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll(filepath.Join("crawled_data", "articles"), 0750); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	s := NewStore("crawled_data", WithFs(fsys))
	for i := range 3 {
		if err := s.Write(KindArticle, ArticleKey(i), []byte("x")); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}
}

// TestStoreReadErrors tests the distinct read failure kinds.
func TestStoreReadErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing document is not cached", func(t *testing.T) {
		t.Parallel()

		s := newMemStore(t)
		_, err := s.Read(KindArticle, "404")
		if !errors.Is(err, ErrNotCached) {
			t.Fatalf("expected ErrNotCached, got %v", err)
		}
		if !errors.Is(err, ErrCacheRead) {
			t.Errorf("expected ErrCacheRead, got %v", err)
		}
	})

	t.Run("unreadable entry is a read failure but not missing", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		// A directory where a file is expected cannot be read as a document.
		if err := os.MkdirAll(filepath.Join(root, "articles", "5.json"), 0750); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		s := NewStore(root)
		_, err := s.Read(KindArticle, "5")
		if !errors.Is(err, ErrCacheRead) {
			t.Fatalf("expected ErrCacheRead, got %v", err)
		}
		if errors.Is(err, ErrNotCached) {
			t.Errorf("did not expect ErrNotCached, got %v", err)
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		t.Parallel()

		s := newMemStore(t)
		if _, err := s.Read(KindArticle, "../secret"); !errors.Is(err, ErrCacheRead) {
			t.Fatalf("expected ErrCacheRead, got %v", err)
		}
		if err := s.Write(KindArticle, "", []byte("x")); !errors.Is(err, ErrCacheWrite) {
			t.Fatalf("expected ErrCacheWrite, got %v", err)
		}
	})
}

// TestStoreWriteFailure tests that filesystem errors surface as ErrCacheWrite.
func TestStoreWriteFailure(t *testing.T) {
	t.Parallel()

	s := NewStore("crawled_data", WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())))

	err := s.Write(KindArticle, "1", []byte("x"))
	if !errors.Is(err, ErrCacheWrite) {
		t.Fatalf("expected ErrCacheWrite, got %v", err)
	}
}

// TestStoreKeys tests enumeration of cached documents.
func TestStoreKeys(t *testing.T) {
	t.Parallel()

	t.Run("orders numeric keys numerically", func(t *testing.T) {
		t.Parallel()

		s := newMemStore(t)
		for _, key := range []string{"100", "9", "20", "draft"} {
			if err := s.Write(KindArticle, key, []byte("{}")); err != nil {
				t.Fatalf("write %s failed: %v", key, err)
			}
		}
		// Files that are not documents are ignored.
		if err := afero.WriteFile(s.Fs(), filepath.Join("crawled_data", "articles", "notes.txt"), []byte("x"), 0600); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		keys, err := s.Keys(KindArticle)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"9", "20", "100", "draft"}
		if len(keys) != len(want) {
			t.Fatalf("got keys %v, expected %v", keys, want)
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Errorf("key %d: got %q, expected %q", i, keys[i], want[i])
			}
		}
	})

	t.Run("missing kind directory", func(t *testing.T) {
		t.Parallel()

		s := newMemStore(t)
		if _, err := s.Keys(KindArticle); !errors.Is(err, ErrNotCached) {
			t.Fatalf("expected ErrNotCached, got %v", err)
		}
	})
}
