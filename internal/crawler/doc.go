// Package crawler walks the catalog tree and acquires every article.
//
// # Architecture
//
// The Engine performs a depth-first, pre-order walk over category nodes.
// CATEGORY nodes contribute their primary title, ARTICLE nodes are acquired
// through a Source and decoded, and the children of every node are visited
// before the next sibling regardless of kind.
//
// Where documents come from is the Source's business: the live source goes
// to the network and caches what it fetched, the cached source reads the
// local snapshot. The engine only knows whether a source is remote.
//
// # Politeness
//
// Every network attempt waits on the Pacer first, so fetches are spaced by
// at least the configured interval even across retries. The pacer is
// shared with whoever else touches the network in the same run.
//
// # Failure
//
// The walk stops at the first failure. Retryable transport failures are
// retried a bounded number of times with exponential backoff; decode and
// cache failures are returned immediately.
//
// # Usage
//
//	engine := crawler.NewEngine(src, crawler.WithPacer(limiter))
//	var result crawler.Result
//	err := engine.Traverse(ctx, nodes, &result)
package crawler
