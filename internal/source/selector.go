package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/lorecrawl/internal/cache"
	"github.com/nao1215/lorecrawl/internal/crawler"
	"github.com/nao1215/lorecrawl/internal/fetch"
	"github.com/nao1215/lorecrawl/internal/model"
	"github.com/nao1215/lorecrawl/internal/schema"
)

// DefaultDelay is the minimum spacing between network fetches.
const DefaultDelay = time.Second

// Outcome is what a run collected.
type Outcome struct {
	crawler.Result

	// Fetches is the number of network attempts.
	Fetches int

	// Reused is the number of documents served from a fresh cache copy
	// instead of the network.
	Reused int
}

// Selector runs a traversal against the live service or the cache.
// It owns the pacer shared by every network fetch of the run.
type Selector struct {
	store       *cache.Store
	fetcher     fetch.Fetcher
	endpoints   Endpoints
	ledger      Ledger
	decoder     *schema.Decoder
	pacer       *rate.Limiter
	logger      *slog.Logger
	progress    io.Writer
	retries     int
	delay       time.Duration
	maxAge      time.Duration
	concurrency int
	maxDepth    int
}

// Option configures a Selector.
type Option func(*Selector)

// WithFetcher sets the network fetcher used by live runs.
func WithFetcher(f fetch.Fetcher) Option {
	return func(s *Selector) {
		s.fetcher = f
	}
}

// WithEndpoints sets the remote endpoints.
func WithEndpoints(e Endpoints) Option {
	return func(s *Selector) {
		s.endpoints = e
	}
}

// WithLedger sets the ledger that live runs record documents in.
func WithLedger(l Ledger) Option {
	return func(s *Selector) {
		s.ledger = l
	}
}

// WithDelay sets the minimum spacing between network fetches. Zero
// disables pacing.
func WithDelay(d time.Duration) Option {
	return func(s *Selector) {
		s.pacer = newPacer(d)
		s.delay = d
	}
}

// WithRetries sets how many times a retryable fetch failure is retried.
func WithRetries(n int) Option {
	return func(s *Selector) {
		s.retries = n
	}
}

// WithMaxAge enables reuse of cached documents fetched within d.
// Zero, the default, fetches every document.
func WithMaxAge(d time.Duration) Option {
	return func(s *Selector) {
		s.maxAge = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress sets where per-article progress lines are written.
func WithProgress(w io.Writer) Option {
	return func(s *Selector) {
		if w != nil {
			s.progress = w
		}
	}
}

// WithDecoder replaces the document decoder.
func WithDecoder(d *schema.Decoder) Option {
	return func(s *Selector) {
		if d != nil {
			s.decoder = d
		}
	}
}

// WithConcurrency bounds concurrent decoding in replay. Non-positive values
// are ignored.
func WithConcurrency(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMaxDepth sets the catalog nesting limit passed to the engine.
// Non-positive values are ignored.
func WithMaxDepth(depth int) Option {
	return func(s *Selector) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// NewSelector creates a Selector over store.
func NewSelector(store *cache.Store, opts ...Option) *Selector {
	s := &Selector{
		store:       store,
		endpoints:   DefaultEndpoints(),
		decoder:     schema.NewDecoder(),
		pacer:       newPacer(DefaultDelay),
		delay:       DefaultDelay,
		logger:      slog.New(slog.DiscardHandler),
		progress:    io.Discard,
		retries:     crawler.DefaultRetries,
		concurrency: runtime.GOMAXPROCS(0),
		maxDepth:    crawler.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newPacer returns a limiter that releases one token every d.
func newPacer(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// engine creates a traversal engine reading from src. Retry backoff starts
// at the pacing delay.
func (s *Selector) engine(src crawler.Source) *crawler.Engine {
	return crawler.NewEngine(src,
		crawler.WithRetryInterval(s.delay),
		crawler.WithPacer(s.pacer),
		crawler.WithDecoder(s.decoder),
		crawler.WithLogger(s.logger),
		crawler.WithProgress(s.progress),
		crawler.WithRetries(s.retries),
		crawler.WithMaxDepth(s.maxDepth),
	)
}

// Run dispatches to Live, Replay or ReplayTree.
func (s *Selector) Run(ctx context.Context, mode model.Mode, walkTree bool) (*Outcome, error) {
	switch {
	case mode == model.ModeLive:
		return s.Live(ctx)
	case walkTree:
		return s.ReplayTree(ctx)
	default:
		return s.Replay(ctx)
	}
}

// Live fetches the catalog root and every article over the network.
func (s *Selector) Live(ctx context.Context) (*Outcome, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("live run: %w: no fetcher configured", fetch.ErrTransport)
	}

	remote := NewRemote(s.fetcher, s.store, s.endpoints, s.ledger, s.maxAge, s.logger)
	engine := s.engine(remote)

	data, err := engine.Acquire(ctx, cache.KindCategory, cache.CategoriesKey)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	nodes, err := s.decoder.Categories(data)
	if err != nil {
		return nil, err
	}

	categories, articles := model.CountKinds(nodes)
	s.logger.Info("catalog loaded", "categories", categories, "articles", articles)

	out := &Outcome{}
	err = engine.Traverse(ctx, nodes, &out.Result)
	out.Fetches = engine.Fetches()
	out.Reused = engine.Reused()
	return out, err
}

// ReplayTree walks the cached catalog tree and reads every referenced
// article from the cache.
func (s *Selector) ReplayTree(ctx context.Context) (*Outcome, error) {
	engine := s.engine(NewCached(s.store))

	nodes, err := s.cachedCatalog()
	if err != nil {
		return nil, err
	}

	out := &Outcome{}
	if err := engine.Traverse(ctx, nodes, &out.Result); err != nil {
		return out, err
	}
	return out, nil
}

// Replay collects category names from the cached catalog tree and loads
// every cached article file, ordered by article id.
func (s *Selector) Replay(ctx context.Context) (*Outcome, error) {
	engine := s.engine(NewCached(s.store))

	nodes, err := s.cachedCatalog()
	if err != nil {
		return nil, err
	}
	names, err := engine.CategoryNames(ctx, nodes)
	if err != nil {
		return nil, err
	}

	articles, err := s.cachedArticles(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range articles {
		fmt.Fprintf(s.progress, "%s - %s\n", a.CategoryTitle(), a.Title())
	}

	return &Outcome{
		Result: crawler.Result{
			CategoryNames: names,
			Articles:      articles,
		},
	}, nil
}

// cachedCatalog reads and decodes the cached catalog root.
func (s *Selector) cachedCatalog() ([]*model.CategoryNode, error) {
	data, err := s.store.Read(cache.KindCategory, cache.CategoriesKey)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return s.decoder.Categories(data)
}

// cachedArticles decodes every cached article concurrently. A missing
// article directory fails with cache.ErrNotCached.
func (s *Selector) cachedArticles(ctx context.Context) ([]*model.Article, error) {
	keys, err := s.store.Keys(cache.KindArticle)
	if err != nil {
		return nil, fmt.Errorf("articles: %w", err)
	}

	articles := make([]*model.Article, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, key := range keys {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := s.store.Read(cache.KindArticle, key)
			if err != nil {
				return fmt.Errorf("article %s: %w", key, err)
			}
			id, _ := strconv.Atoi(key) //nolint:errcheck // non-numeric keys fall back to the record id
			a, err := s.decoder.Article(data, id)
			if err != nil {
				return err
			}
			articles[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].ID < articles[j].ID
	})
	return articles, nil
}
