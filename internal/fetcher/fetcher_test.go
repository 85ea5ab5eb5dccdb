package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkforge/inkforge/internal/config"
	"github.com/inkforge/inkforge/internal/pool"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Test Article</title></head>
<body>
<nav>menu items</nav>
<article>
<h1>Solar outlook</h1>
<p>Global solar capacity grew 42 percent last year, reaching a new record.
Analysts expect the growth to continue through the decade as module prices
keep falling and storage becomes cheaper.</p>
<p>Grid operators in several countries reported double digit increases in
renewable generation, with solar leading the mix in most markets.</p>
</article>
<footer>copyright</footer>
</body></html>`

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	rp := pool.New(map[string]pool.Limits{pool.Default: {MaxConcurrent: 2}})
	t.Cleanup(rp.Close)
	cfg := config.FetcherConfig{
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		MaxBodyKB:  1024,
		UserAgent:  "inkforge-test",
	}
	return New(rp, cfg, config.AuthorityConfig{}, zap.NewNop())
}

func TestFetchExtractsReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	doc := f.Fetch(context.Background(), "run-1", srv.URL)

	require.True(t, doc.Live())
	assert.Contains(t, doc.Content, "grew 42 percent")
	assert.NotContains(t, doc.Content, "menu items")
}

func TestFetchOncePerRun(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	ctx := context.Background()

	first := f.Fetch(ctx, "run-1", srv.URL)
	second := f.Fetch(ctx, "run-1", srv.URL)

	assert.Equal(t, int32(1), hits.Load())
	assert.Same(t, first, second)

	// A different run fetches again.
	f.Fetch(ctx, "run-2", srv.URL)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchDeadLinkRecordedNotRaised(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	doc := f.Fetch(context.Background(), "run-1", srv.URL)

	assert.False(t, doc.Live())
	assert.True(t, doc.Failed)
	assert.Equal(t, "HTTP 404", doc.Reason)
}

func TestFetchClientErrorDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	doc := f.Fetch(context.Background(), "run-1", srv.URL)

	assert.True(t, doc.Failed)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchServerErrorRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	doc := f.Fetch(context.Background(), "run-1", srv.URL)

	assert.True(t, doc.Live())
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchInvalidURL(t *testing.T) {
	f := newTestFetcher(t)
	doc := f.Fetch(context.Background(), "run-1", "ftp://example.com/file")

	assert.True(t, doc.Failed)
	assert.Equal(t, "invalid URL", doc.Reason)
}

func TestReleaseRunDropsCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	ctx := context.Background()

	f.Fetch(ctx, "run-1", srv.URL)
	f.ReleaseRun("run-1")
	f.Fetch(ctx, "run-1", srv.URL)

	assert.Equal(t, int32(2), hits.Load())
}
