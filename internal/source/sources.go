package source

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/lorecrawl/internal/cache"
	"github.com/nao1215/lorecrawl/internal/database"
	"github.com/nao1215/lorecrawl/internal/fetch"
)

// Default endpoints of the catalog service.
const (
	// DefaultCatalogURL serves the category root document.
	DefaultCatalogURL = "https://static.dnf-universe.com/categories.json"

	// DefaultStoryURL is the prefix of article documents; the article id
	// is appended as a path segment.
	DefaultStoryURL = "https://www.dnf-universe.com/api/v1/story"
)

// Endpoints locates the remote documents.
type Endpoints struct {
	CatalogURL string
	StoryURL   string
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		CatalogURL: DefaultCatalogURL,
		StoryURL:   DefaultStoryURL,
	}
}

// URL returns the remote location of the document under kind and key.
func (e Endpoints) URL(kind cache.Kind, key string) string {
	if kind == cache.KindCategory {
		return e.CatalogURL
	}
	return strings.TrimRight(e.StoryURL, "/") + "/" + key
}

// Ledger is the bookkeeping a live source writes to. *database.Ledger
// satisfies it.
type Ledger interface {
	RecordDocument(ctx context.Context, rec *database.DocumentRecord) error
	HasRecentFetch(ctx context.Context, kind, key string, maxAge time.Duration) (bool, error)
	GetDocument(ctx context.Context, kind, key string) (*database.DocumentRecord, error)
}

// Remote acquires documents over the network. Every fetched document is
// written to the cache before it is handed to the caller, then recorded in
// the ledger when one is configured.
type Remote struct {
	fetcher   fetch.Fetcher
	store     *cache.Store
	endpoints Endpoints
	ledger    Ledger
	maxAge    time.Duration
	logger    *slog.Logger
}

// NewRemote creates a Remote source. ledger may be nil.
func NewRemote(fetcher fetch.Fetcher, store *cache.Store, endpoints Endpoints, ledger Ledger, maxAge time.Duration, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Remote{
		fetcher:   fetcher,
		store:     store,
		endpoints: endpoints,
		ledger:    ledger,
		maxAge:    maxAge,
		logger:    logger,
	}
}

// Acquire fetches the document, caches it and records it.
func (r *Remote) Acquire(ctx context.Context, kind cache.Kind, key string) ([]byte, error) {
	url := r.endpoints.URL(kind, key)

	data, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := r.store.Write(kind, key, data); err != nil {
		return nil, err
	}

	if r.ledger != nil {
		rec := database.NewDocumentRecord(string(kind), key, url, data)
		if err := r.ledger.RecordDocument(ctx, rec); err != nil {
			// The cache holds the document; a missing ledger row only costs
			// reuse on a later run.
			r.logger.Warn("failed to record document", "kind", string(kind), "key", key, "error", err)
		}
	}
	return data, nil
}

// Remote implements crawler.Source.
func (r *Remote) Remote() bool {
	return true
}

// Reusable returns the cached copy when the ledger shows it was fetched
// within the freshness window and its digest matches the recorded one.
// Without a window or a ledger nothing is reused.
func (r *Remote) Reusable(ctx context.Context, kind cache.Kind, key string) ([]byte, bool) {
	if r.maxAge <= 0 || r.ledger == nil {
		return nil, false
	}

	fresh, err := r.ledger.HasRecentFetch(ctx, string(kind), key, r.maxAge)
	if err != nil {
		r.logger.Debug("freshness check failed", "kind", string(kind), "key", key, "error", err)
		return nil, false
	}
	if !fresh {
		return nil, false
	}

	data, err := r.store.Read(kind, key)
	if err != nil {
		return nil, false
	}

	// The ledger is shared by every cache root; only the bytes it recorded
	// count as fresh.
	rec, err := r.ledger.GetDocument(ctx, string(kind), key)
	if err != nil || rec == nil {
		return nil, false
	}
	if database.Digest(data) != rec.Digest {
		r.logger.Debug("cached copy differs from recorded fetch", "kind", string(kind), "key", key)
		return nil, false
	}
	return data, true
}

// Cached acquires documents from the local cache only.
type Cached struct {
	store *cache.Store
}

// NewCached creates a Cached source.
func NewCached(store *cache.Store) *Cached {
	return &Cached{store: store}
}

// Acquire reads the document from the cache.
func (c *Cached) Acquire(_ context.Context, kind cache.Kind, key string) ([]byte, error) {
	return c.store.Read(kind, key)
}

// Remote implements crawler.Source.
func (c *Cached) Remote() bool {
	return false
}
