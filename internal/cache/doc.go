// Package cache persists raw catalog documents on disk.
//
// Every document is stored under a path derived from its kind and key:
//
//	<root>/category/categories.json
//	<root>/articles/<id>.json
//
// Writes replace the whole file, so re-fetching an article overwrites the
// previous copy. Directories are created on first write. A missing entry is
// reported as ErrNotCached (which also matches ErrCacheRead), so callers can
// tell "never fetched" apart from "fetched but corrupt", which is a decode
// error further up.
//
// The store works on an afero.Fs so tests can run against memory.
package cache
