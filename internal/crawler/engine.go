package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nao1215/lorecrawl/internal/cache"
	"github.com/nao1215/lorecrawl/internal/fetch"
	"github.com/nao1215/lorecrawl/internal/model"
	"github.com/nao1215/lorecrawl/internal/schema"
)

// Traversal errors.
var (
	// ErrCycle is returned when a node id reappears on its own ancestor path.
	ErrCycle = errors.New("category tree contains a cycle")

	// ErrTooDeep is returned when the tree is nested deeper than the limit.
	ErrTooDeep = errors.New("category tree exceeds maximum depth")
)

// Defaults for a new Engine.
const (
	// DefaultMaxDepth is the deepest nesting level the engine accepts.
	DefaultMaxDepth = 64

	// DefaultRetries is the number of extra attempts after a failed fetch.
	DefaultRetries = 2

	// DefaultRetryInterval is the first backoff interval between attempts.
	DefaultRetryInterval = 500 * time.Millisecond
)

// Source acquires raw documents for the engine.
type Source interface {
	// Acquire returns the raw document stored under kind and key.
	Acquire(ctx context.Context, kind cache.Kind, key string) ([]byte, error)

	// Remote reports whether Acquire goes to the network. Remote sources
	// are paced and retried.
	Remote() bool
}

// Reuser is implemented by sources that can hand out a cached copy instead
// of going to the network.
type Reuser interface {
	// Reusable returns a cached document and true when it may be used
	// without fetching.
	Reusable(ctx context.Context, kind cache.Kind, key string) ([]byte, bool)
}

// Pacer spaces network attempts. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// noPacer never waits.
type noPacer struct{}

// Wait implements Pacer.
func (noPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}

// Result accumulates the output of one traversal.
// The caller owns it; the engine only appends.
type Result struct {
	// CategoryNames are primary titles of CATEGORY nodes in visit order.
	CategoryNames []string

	// Articles are decoded ARTICLE documents in visit order.
	Articles []*model.Article
}

// Engine walks a category tree depth-first and acquires every article.
type Engine struct {
	source        Source
	decoder       *schema.Decoder
	pacer         Pacer
	logger        *slog.Logger
	progress      io.Writer
	maxDepth      int
	retries       int
	retryInterval time.Duration

	// fetches counts network attempts made by this engine.
	fetches int

	// reused counts documents taken from a Reuser.
	reused int
}

// Option configures an Engine.
type Option func(*Engine)

// WithPacer sets the pacer shared with other network users.
func WithPacer(p Pacer) Option {
	return func(e *Engine) {
		if p != nil {
			e.pacer = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithProgress sets where "<category> - <title>" lines are written.
func WithProgress(w io.Writer) Option {
	return func(e *Engine) {
		if w != nil {
			e.progress = w
		}
	}
}

// WithMaxDepth sets the nesting limit. Non-positive values are ignored.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithRetries sets how many times a retryable fetch failure is retried.
func WithRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.retries = n
		}
	}
}

// WithRetryInterval sets the initial backoff interval.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retryInterval = d
		}
	}
}

// WithDecoder replaces the document decoder.
func WithDecoder(d *schema.Decoder) Option {
	return func(e *Engine) {
		if d != nil {
			e.decoder = d
		}
	}
}

// NewEngine creates an Engine reading documents from source.
func NewEngine(source Source, opts ...Option) *Engine {
	e := &Engine{
		source:        source,
		decoder:       schema.NewDecoder(),
		pacer:         noPacer{},
		logger:        slog.New(slog.DiscardHandler),
		progress:      io.Discard,
		maxDepth:      DefaultMaxDepth,
		retries:       DefaultRetries,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fetches returns the number of network attempts made so far.
func (e *Engine) Fetches() int {
	return e.fetches
}

// Reused returns the number of documents served by a Reuser.
func (e *Engine) Reused() int {
	return e.reused
}

// Traverse visits nodes in order, depth-first and pre-order, appending to
// sink. CATEGORY nodes contribute their primary title, ARTICLE nodes are
// acquired and decoded, and the children of every node are visited before
// its next sibling. The first failure stops the walk.
func (e *Engine) Traverse(ctx context.Context, nodes []*model.CategoryNode, sink *Result) error {
	return e.walk(ctx, nodes, sink, make(map[int]bool), 1, true)
}

// CategoryNames walks nodes with the same rules as Traverse but only
// collects category names. No documents are acquired.
func (e *Engine) CategoryNames(ctx context.Context, nodes []*model.CategoryNode) ([]string, error) {
	var sink Result
	if err := e.walk(ctx, nodes, &sink, make(map[int]bool), 1, false); err != nil {
		return nil, err
	}
	return sink.CategoryNames, nil
}

// walk visits one sibling list. path holds the ids of the ancestors.
func (e *Engine) walk(ctx context.Context, nodes []*model.CategoryNode, sink *Result, path map[int]bool, depth int, acquire bool) error {
	if depth > e.maxDepth {
		return fmt.Errorf("%w: limit %d", ErrTooDeep, e.maxDepth)
	}

	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if node == nil {
			continue
		}
		if path[node.ID] {
			return fmt.Errorf("%w: node %d", ErrCycle, node.ID)
		}

		switch {
		case node.IsCategory():
			sink.CategoryNames = append(sink.CategoryNames, node.Titles.Primary())
		case node.IsArticle() && acquire:
			article, err := e.article(ctx, node.ID)
			if err != nil {
				return fmt.Errorf("article %d: %w", node.ID, err)
			}
			sink.Articles = append(sink.Articles, article)
		}

		if len(node.Children) > 0 {
			path[node.ID] = true
			err := e.walk(ctx, node.Children, sink, path, depth+1, acquire)
			delete(path, node.ID)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// article acquires and decodes one article document.
func (e *Engine) article(ctx context.Context, id int) (*model.Article, error) {
	data, err := e.Acquire(ctx, cache.KindArticle, cache.ArticleKey(id))
	if err != nil {
		return nil, err
	}

	article, err := e.decoder.Article(data, id)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(e.progress, "%s - %s\n", article.CategoryTitle(), article.Title())
	e.logger.Debug("article acquired",
		"id", id,
		"category", article.CategoryTitle(),
		"title", article.Title(),
	)
	return article, nil
}

// Acquire returns the document under kind and key from the source. Remote
// sources are paced before every attempt and retried on retryable transport
// failures. Any other failure is returned as is.
func (e *Engine) Acquire(ctx context.Context, kind cache.Kind, key string) ([]byte, error) {
	if r, ok := e.source.(Reuser); ok {
		if data, ok := r.Reusable(ctx, kind, key); ok {
			e.reused++
			e.logger.Debug("reusing cached document", "kind", string(kind), "key", key)
			return data, nil
		}
	}

	if !e.source.Remote() {
		return e.source.Acquire(ctx, kind, key)
	}

	operation := func() ([]byte, error) {
		if err := e.pacer.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		e.fetches++
		data, err := e.source.Acquire(ctx, kind, key)
		if err != nil {
			if fetch.IsRetryable(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return data, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.retryInterval

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(e.retries)+1), //nolint:gosec // retries is non-negative
		backoff.WithNotify(func(err error, next time.Duration) {
			e.logger.Warn("fetch failed, retrying",
				"kind", string(kind),
				"key", key,
				"retry_in", next,
				"error", err,
			)
		}),
	)
}
