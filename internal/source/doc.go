// Package source decides where a run's documents come from.
//
// A live run fetches the catalog and every article over the network,
// caching and recording each document as it arrives. A replay run reads the
// cached snapshot only and never touches the network.
//
// Replay has two shapes. The default collects category names from the
// cached catalog tree and loads articles by enumerating every cached
// article file, whether or not the current tree still references it. The
// tree-walk replay instead visits the cached tree exactly like a live run
// and reads each referenced article from the cache.
package source
