package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/nao1215/lorecrawl/internal/cache"
	"github.com/nao1215/lorecrawl/internal/crawler"
	"github.com/nao1215/lorecrawl/internal/database"
	"github.com/nao1215/lorecrawl/internal/fetch"
	"github.com/nao1215/lorecrawl/internal/model"
	"github.com/nao1215/lorecrawl/internal/schema"
)

// catalogDoc is a tree whose depth-first article order is ascending by id:
//
//	세계관 (1)
//	  101
//	  인물 (2)
//	    102
//	103
//	  104
//	스페셜 (3)
//	  105
const catalogDoc = `{"code":"OK","message":"","data":[
  {"id":1,"parent_id":null,"position":0,"type":"CATEGORY","status":"OPEN","titles":{"KR":"세계관"},"modified":false,"children":[
    {"id":101,"parent_id":1,"position":0,"type":"ARTICLE","status":"OPEN","titles":{"KR":"a"},"modified":false,"children":[]},
    {"id":2,"parent_id":1,"position":1,"type":"CATEGORY","status":"OPEN","titles":{"KR":"인물"},"modified":false,"children":[
      {"id":102,"parent_id":2,"position":0,"type":"ARTICLE","status":"OPEN","titles":{"KR":"b"},"modified":false,"children":[]}
    ]}
  ]},
  {"id":103,"parent_id":null,"position":1,"type":"ARTICLE","status":"OPEN","titles":{"KR":"c"},"modified":false,"children":[
    {"id":104,"parent_id":103,"position":0,"type":"ARTICLE","status":"OPEN","titles":{"KR":"d"},"modified":false,"children":[]}
  ]},
  {"id":3,"parent_id":null,"position":2,"type":"CATEGORY","status":"OPEN","titles":{"KR":"스페셜"},"modified":false,"children":[
    {"id":105,"parent_id":3,"position":0,"type":"ARTICLE","status":"OPEN","titles":{"KR":"e"},"modified":false,"children":[]}
  ]}
]}`

// storyDoc builds an article document.
func storyDoc(id int, category string) string {
	return fmt.Sprintf(`{"code":"OK","message":"","data":{"id":%d,"category_id":1,
		"category_titles":{"KR":%q},"status":"OPEN","titles":{"KR":"story %d"},"subtitles":{},
		"image_url":null,"attachments":{},"contents":{"KR":"<p>body %d</p>"}}}`, id, category, id, id)
}

// catalogServer serves catalogDoc and its stories and counts requests.
type catalogServer struct {
	*httptest.Server
	hits    atomic.Int64
	stories map[string]string
}

func newCatalogServer(t *testing.T) *catalogServer {
	t.Helper()

	cs := &catalogServer{
		stories: map[string]string{
			"101": storyDoc(101, "세계관"),
			"102": storyDoc(102, "인물"),
			"103": storyDoc(103, "세계관"),
			"104": storyDoc(104, "세계관"),
			"105": storyDoc(105, "스페셜"),
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/categories.json", func(w http.ResponseWriter, _ *http.Request) {
		cs.hits.Add(1)
		fmt.Fprint(w, catalogDoc)
	})
	mux.HandleFunc("/api/v1/story/{id}", func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		doc, ok := cs.stories[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, doc)
	})

	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Close)
	return cs
}

func (cs *catalogServer) endpoints() Endpoints {
	return Endpoints{
		CatalogURL: cs.URL + "/categories.json",
		StoryURL:   cs.URL + "/api/v1/story",
	}
}

// newTestSelector creates a Selector over an in-memory cache talking to cs.
func newTestSelector(cs *catalogServer, store *cache.Store, opts ...Option) *Selector {
	base := []Option{
		WithFetcher(fetch.NewHTTPFetcher()),
		WithEndpoints(cs.endpoints()),
		WithDelay(0),
		WithConcurrency(2),
	}
	return NewSelector(store, append(base, opts...)...)
}

// isCached reports whether store holds a document under kind and key.
func isCached(store *cache.Store, kind cache.Kind, key string) bool {
	_, err := store.Read(kind, key)
	return err == nil
}

func articleIDs(articles []*model.Article) []int {
	ids := make([]int, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	return ids
}

// TestSelectorLive tests a live run end to end.
func TestSelectorLive(t *testing.T) {
	t.Parallel()

	cs := newCatalogServer(t)
	store := cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs()))

	ledger, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	var progress bytes.Buffer
	sel := newTestSelector(cs, store, WithLedger(ledger), WithProgress(&progress))

	out, err := sel.Live(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"세계관", "인물", "스페셜"}, out.CategoryNames); diff != "" {
		t.Errorf("category names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{101, 102, 103, 104, 105}, articleIDs(out.Articles)); diff != "" {
		t.Errorf("article ids mismatch (-want +got):\n%s", diff)
	}

	// One fetch for the catalog plus one per ARTICLE node.
	if out.Fetches != 6 || cs.hits.Load() != 6 {
		t.Errorf("expected 6 fetches, got %d (server saw %d)", out.Fetches, cs.hits.Load())
	}

	if !isCached(store, cache.KindCategory, cache.CategoriesKey) {
		t.Error("expected catalog root in cache")
	}
	for _, id := range []int{101, 102, 103, 104, 105} {
		if !isCached(store, cache.KindArticle, cache.ArticleKey(id)) {
			t.Errorf("expected article %d in cache", id)
		}
	}

	for _, id := range []int{101, 102, 103, 104, 105} {
		rec, err := ledger.GetDocument(context.Background(), string(cache.KindArticle), cache.ArticleKey(id))
		if err != nil {
			t.Fatalf("failed to get document: %v", err)
		}
		if rec == nil {
			t.Errorf("expected article %d recorded", id)
			continue
		}
		data, err := store.Read(cache.KindArticle, cache.ArticleKey(id))
		if err != nil {
			t.Fatal(err)
		}
		if rec.Digest != database.Digest(data) {
			t.Errorf("article %d: recorded digest does not match cached bytes", id)
		}
	}

	if !strings.HasPrefix(progress.String(), "세계관 - story 101\n") {
		t.Errorf("unexpected progress output %q", progress.String())
	}
	if strings.Count(progress.String(), "\n") != 5 {
		t.Errorf("expected 5 progress lines, got %q", progress.String())
	}
}

// TestSelectorReplayParity tests that replay reproduces a live run.
func TestSelectorReplayParity(t *testing.T) {
	t.Parallel()

	cs := newCatalogServer(t)
	store := cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs()))

	live, err := newTestSelector(cs, store).Live(context.Background())
	if err != nil {
		t.Fatalf("live run failed: %v", err)
	}
	hits := cs.hits.Load()

	// Replay needs no fetcher at all.
	offline := NewSelector(store, WithConcurrency(3))

	for _, walkTree := range []bool{false, true} {
		t.Run(fmt.Sprintf("walkTree=%v", walkTree), func(t *testing.T) {
			t.Parallel()

			out, err := offline.Run(context.Background(), model.ModeReplay, walkTree)
			if err != nil {
				t.Fatalf("replay failed: %v", err)
			}
			if diff := cmp.Diff(live.CategoryNames, out.CategoryNames); diff != "" {
				t.Errorf("category names mismatch (-live +replay):\n%s", diff)
			}
			if diff := cmp.Diff(live.Articles, out.Articles); diff != "" {
				t.Errorf("articles mismatch (-live +replay):\n%s", diff)
			}
			if out.Fetches != 0 {
				t.Errorf("expected no fetches, got %d", out.Fetches)
			}
		})
	}

	t.Cleanup(func() {
		if cs.hits.Load() != hits {
			t.Errorf("replay touched the network: %d requests", cs.hits.Load()-hits)
		}
	})
}

// TestSelectorReplayEnumeratesCache tests the difference between the flat
// and tree-walk replays.
func TestSelectorReplayEnumeratesCache(t *testing.T) {
	t.Parallel()

	store := cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs()))
	if err := store.Write(cache.KindCategory, cache.CategoriesKey, []byte(catalogDoc)); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	// 99 is no longer referenced by the tree, 104 was never cached.
	for _, id := range []int{105, 101, 99, 102, 103} {
		if err := store.Write(cache.KindArticle, cache.ArticleKey(id), []byte(storyDoc(id, "세계관"))); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	sel := NewSelector(store)

	out, err := sel.Replay(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{99, 101, 102, 103, 105}, articleIDs(out.Articles)); diff != "" {
		t.Errorf("article ids mismatch (-want +got):\n%s", diff)
	}

	_, err = sel.ReplayTree(context.Background())
	if !errors.Is(err, cache.ErrNotCached) {
		t.Fatalf("expected tree-walk replay to fail on article 104, got %v", err)
	}
	if !strings.Contains(err.Error(), "article 104") {
		t.Errorf("expected article id in message, got %q", err.Error())
	}
}

// TestSelectorReplayErrors tests replay failures.
func TestSelectorReplayErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty cache", func(t *testing.T) {
		t.Parallel()

		sel := NewSelector(cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs())))
		if _, err := sel.Replay(context.Background()); !errors.Is(err, cache.ErrNotCached) {
			t.Fatalf("expected ErrNotCached, got %v", err)
		}
	})

	t.Run("catalog without articles", func(t *testing.T) {
		t.Parallel()

		store := cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs()))
		if err := store.Write(cache.KindCategory, cache.CategoriesKey, []byte(catalogDoc)); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		_, err := NewSelector(store).Replay(context.Background())
		if !errors.Is(err, cache.ErrNotCached) {
			t.Fatalf("expected ErrNotCached, got %v", err)
		}
		if !strings.HasPrefix(err.Error(), "articles: ") {
			t.Errorf("expected articles context, got %q", err.Error())
		}
	})

	t.Run("corrupt article", func(t *testing.T) {
		t.Parallel()

		store := cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs()))
		if err := store.Write(cache.KindCategory, cache.CategoriesKey, []byte(catalogDoc)); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if err := store.Write(cache.KindArticle, "7", []byte(`{"data":{"id":7,"titles":{"EN":"x"}}}`)); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		if _, err := NewSelector(store).Replay(context.Background()); !errors.Is(err, schema.ErrDecode) {
			t.Fatalf("expected ErrDecode, got %v", err)
		}
	})
}

// TestSelectorMaxDepth tests that the nesting limit reaches the engine.
func TestSelectorMaxDepth(t *testing.T) {
	t.Parallel()

	store := cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs()))
	if err := store.Write(cache.KindCategory, cache.CategoriesKey, []byte(catalogDoc)); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := store.Write(cache.KindArticle, cache.ArticleKey(101), []byte(storyDoc(101, "세계관"))); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if _, err := NewSelector(store, WithMaxDepth(2)).Replay(context.Background()); !errors.Is(err, crawler.ErrTooDeep) {
		t.Fatalf("expected ErrTooDeep, got %v", err)
	}
	if _, err := NewSelector(store, WithMaxDepth(3)).Replay(context.Background()); err != nil {
		t.Fatalf("unexpected error at limit: %v", err)
	}
}

// TestSelectorLiveFailures tests that live runs stop at the first failure.
func TestSelectorLiveFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing article", func(t *testing.T) {
		t.Parallel()

		cs := newCatalogServer(t)
		delete(cs.stories, "102")
		store := cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs()))

		out, err := newTestSelector(cs, store).Live(context.Background())
		if !errors.Is(err, fetch.ErrTransport) {
			t.Fatalf("expected ErrTransport, got %v", err)
		}
		// Catalog, 101 and one attempt at 102; a 404 is not retried.
		if cs.hits.Load() != 3 {
			t.Errorf("expected 3 requests, got %d", cs.hits.Load())
		}
		if out == nil || len(out.Articles) != 1 {
			t.Errorf("expected the partial outcome to hold one article, got %+v", out)
		}
		if isCached(store, cache.KindArticle, "103") {
			t.Error("expected traversal to stop before article 103")
		}
	})

	t.Run("article missing primary title", func(t *testing.T) {
		t.Parallel()

		cs := newCatalogServer(t)
		cs.stories["101"] = `{"data":{"id":101,"category_titles":{"KR":"c"},"titles":{"EN":"only english"},"contents":{"KR":"b"}}}`
		store := cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs()))

		_, err := newTestSelector(cs, store).Live(context.Background())
		if !errors.Is(err, model.ErrMissingLanguage) {
			t.Fatalf("expected ErrMissingLanguage, got %v", err)
		}
		// The raw document is cached before it is decoded.
		if !isCached(store, cache.KindArticle, "101") {
			t.Error("expected raw document to be cached")
		}
	})

	t.Run("no fetcher", func(t *testing.T) {
		t.Parallel()

		sel := NewSelector(cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs())))
		if _, err := sel.Live(context.Background()); !errors.Is(err, fetch.ErrTransport) {
			t.Fatalf("expected ErrTransport, got %v", err)
		}
	})

	t.Run("read-only cache", func(t *testing.T) {
		t.Parallel()

		cs := newCatalogServer(t)
		store := cache.NewStore("crawled_data", cache.WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())))

		if _, err := newTestSelector(cs, store).Live(context.Background()); !errors.Is(err, cache.ErrCacheWrite) {
			t.Fatalf("expected ErrCacheWrite, got %v", err)
		}
		if cs.hits.Load() != 1 {
			t.Errorf("expected a single request, got %d", cs.hits.Load())
		}
	})
}

// TestSelectorReuse tests the freshness window.
func TestSelectorReuse(t *testing.T) {
	t.Parallel()

	cs := newCatalogServer(t)
	store := cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs()))

	ledger, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	first, err := newTestSelector(cs, store, WithLedger(ledger)).Live(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Reused != 0 {
		t.Errorf("expected nothing reused on first run, got %d", first.Reused)
	}
	hits := cs.hits.Load()

	second, err := newTestSelector(cs, store, WithLedger(ledger), WithMaxAge(time.Hour)).Live(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Reused != 6 || second.Fetches != 0 {
		t.Errorf("expected 6 reused and 0 fetched, got %d and %d", second.Reused, second.Fetches)
	}
	if cs.hits.Load() != hits {
		t.Errorf("expected no requests on second run, got %d", cs.hits.Load()-hits)
	}
	if diff := cmp.Diff(first.Articles, second.Articles); diff != "" {
		t.Errorf("articles mismatch (-first +second):\n%s", diff)
	}

	// Without a window every document is fetched again.
	third, err := newTestSelector(cs, store, WithLedger(ledger)).Live(context.Background())
	if err != nil {
		t.Fatalf("third run failed: %v", err)
	}
	if third.Fetches != 6 {
		t.Errorf("expected 6 fetches, got %d", third.Fetches)
	}
}

// TestSelectorReuseDigestMismatch tests that a cached copy whose bytes differ
// from the recorded fetch is fetched again even inside the freshness window.
func TestSelectorReuseDigestMismatch(t *testing.T) {
	t.Parallel()

	cs := newCatalogServer(t)

	ledger, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	fresh := cache.NewStore("crawled_data", cache.WithFs(afero.NewMemMapFs()))
	first, err := newTestSelector(cs, fresh, WithLedger(ledger)).Live(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// A second cache root holds the same catalog but older article copies.
	stale := cache.NewStore("other_data", cache.WithFs(afero.NewMemMapFs()))
	catalog, err := fresh.Read(cache.KindCategory, cache.CategoriesKey)
	if err != nil {
		t.Fatal(err)
	}
	if err := stale.Write(cache.KindCategory, cache.CategoriesKey, catalog); err != nil {
		t.Fatal(err)
	}
	for id := 101; id <= 105; id++ {
		if err := stale.Write(cache.KindArticle, cache.ArticleKey(id), []byte(storyDoc(id, "old"))); err != nil {
			t.Fatal(err)
		}
	}

	second, err := newTestSelector(cs, stale, WithLedger(ledger), WithMaxAge(time.Hour)).Live(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Reused != 1 || second.Fetches != 5 {
		t.Errorf("expected catalog reused and 5 articles fetched, got %d and %d", second.Reused, second.Fetches)
	}
	if diff := cmp.Diff(first.Articles, second.Articles); diff != "" {
		t.Errorf("articles mismatch (-first +second):\n%s", diff)
	}

	data, err := stale.Read(cache.KindArticle, cache.ArticleKey(101))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != storyDoc(101, "세계관") {
		t.Errorf("stale copy was not replaced: %s", data)
	}
}

// TestEndpointsURL tests remote document locations.
func TestEndpointsURL(t *testing.T) {
	t.Parallel()

	e := Endpoints{CatalogURL: "https://h/categories.json", StoryURL: "https://h/api/v1/story/"}
	if got := e.URL(cache.KindCategory, cache.CategoriesKey); got != "https://h/categories.json" {
		t.Errorf("catalog URL = %q", got)
	}
	if got := e.URL(cache.KindArticle, "42"); got != "https://h/api/v1/story/42" {
		t.Errorf("article URL = %q", got)
	}
	if DefaultEndpoints().URL(cache.KindArticle, "1") != DefaultStoryURL+"/1" {
		t.Error("unexpected default story URL")
	}
}
