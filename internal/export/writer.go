package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Output locations below the cache root.
const (
	// FinalDir holds the exported artifacts.
	FinalDir = "final"

	// CategoryNamesFile lists surviving category names.
	CategoryNamesFile = "category_names.txt"

	// articlesStem is the article file name without extension.
	articlesStem = "all_articles"
)

// ErrExportWrite is returned when an artifact cannot be written.
var ErrExportWrite = errors.New("export write failure")

// Writer writes export artifacts below a cache root.
type Writer struct {
	fs   afero.Fs
	root string
}

// NewWriter creates a Writer. A nil fs means the OS filesystem.
func NewWriter(fsys afero.Fs, root string) *Writer {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Writer{fs: fsys, root: root}
}

// ArticlesFile returns the article file name for format.
func ArticlesFile(format Format) string {
	return articlesStem + "." + format.Extension()
}

// Paths returns the category and article artifact paths for format.
func (w *Writer) Paths(format Format) (categoryPath, articlePath string) {
	dir := filepath.Join(w.root, FinalDir)
	return filepath.Join(dir, CategoryNamesFile), filepath.Join(dir, ArticlesFile(format))
}

// Write writes both artifacts, replacing earlier ones, and returns their
// paths.
func (w *Writer) Write(format Format, categoryText, articleText string) ([]string, error) {
	dir := filepath.Join(w.root, FinalDir)
	if err := w.fs.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrExportWrite, dir, err)
	}

	categoryPath, articlePath := w.Paths(format)
	files := []struct {
		path string
		data string
	}{
		{categoryPath, categoryText},
		{articlePath, articleText},
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := afero.WriteFile(w.fs, f.path, []byte(f.data), os.FileMode(0600)); err != nil {
			return written, fmt.Errorf("%w: %s: %w", ErrExportWrite, f.path, err)
		}
		written = append(written, f.path)
	}
	return written, nil
}
