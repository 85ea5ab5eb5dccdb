// Package fetcher retrieves remote source documents with bounded time and
// dead-link tolerance. Failures are recorded on the document, never
// raised; one URL is fetched at most once per run.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/inkforge/inkforge/internal/config"
	"github.com/inkforge/inkforge/internal/metrics"
	"github.com/inkforge/inkforge/internal/models"
	"github.com/inkforge/inkforge/internal/pool"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// Fetcher downloads and cleans source documents. Safe for concurrent use;
// the per-run cache is the only mutable state and is lock-protected.
type Fetcher struct {
	rp     *pool.ResourcePool
	cfg    config.FetcherConfig
	tiers  *TierClassifier
	cache  *runCache
	logger *zap.Logger
}

// New builds a Fetcher sharing the ResourcePool's default client pool.
func New(rp *pool.ResourcePool, cfg config.FetcherConfig, authority config.AuthorityConfig, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		rp:     rp,
		cfg:    cfg,
		tiers:  NewTierClassifier(authority),
		cache:  newRunCache(),
		logger: logger,
	}
}

// Fetch returns the SourceDocument for a URL, fetching at most once per
// run. The returned document always exists; check Failed/Reason for
// dead links.
func (f *Fetcher) Fetch(ctx context.Context, runID, rawURL string) *models.SourceDocument {
	if doc, ok := f.cache.get(runID, rawURL); ok {
		return doc
	}

	doc := f.fetchOnce(ctx, rawURL)
	// First writer wins; a concurrent fetch of the same URL keeps the
	// cached copy so the document stays stable for the whole run.
	return f.cache.putIfAbsent(runID, rawURL, doc)
}

// FetchAll resolves a set of URLs for one run sequentially. Concurrency
// across claims comes from the caller; the pool bounds it either way.
func (f *Fetcher) FetchAll(ctx context.Context, runID string, urls []string) map[string]*models.SourceDocument {
	out := make(map[string]*models.SourceDocument, len(urls))
	for _, u := range urls {
		out[u] = f.Fetch(ctx, runID, u)
	}
	return out
}

// ReleaseRun drops the cache for a finished run.
func (f *Fetcher) ReleaseRun(runID string) { f.cache.drop(runID) }

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) *models.SourceDocument {
	doc := &models.SourceDocument{
		URL:       rawURL,
		FetchedAt: time.Now().UTC(),
		Tier:      3,
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		doc.Failed = true
		doc.Reason = "invalid URL"
		metrics.SourceFetches.WithLabelValues("invalid").Inc()
		return doc
	}
	doc.Tier = f.tiers.Classify(parsed.Hostname())

	release, err := f.rp.Acquire(ctx, pool.Default)
	if err != nil {
		doc.Failed = true
		doc.Reason = fmt.Sprintf("pool: %v", err)
		metrics.SourceFetches.WithLabelValues("error").Inc()
		return doc
	}
	defer release()

	attempts := f.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastReason string
	var lastStatus int
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				doc.Failed = true
				doc.Reason = ctx.Err().Error()
				metrics.SourceFetches.WithLabelValues("timeout").Inc()
				return doc
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
		}

		body, status, err := f.get(ctx, parsed)
		lastStatus = status
		if err != nil {
			lastReason = err.Error()
			continue
		}
		if status != http.StatusOK {
			lastReason = fmt.Sprintf("HTTP %d", status)
			// Client errors won't change on retry.
			if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
				break
			}
			continue
		}

		text, err := extractText(body, parsed)
		if err != nil {
			lastReason = fmt.Sprintf("extract: %v", err)
			break
		}
		doc.Content = text
		doc.Status = status
		metrics.SourceFetches.WithLabelValues("ok").Inc()
		return doc
	}

	doc.Failed = true
	doc.Status = lastStatus
	doc.Reason = lastReason
	metrics.SourceFetches.WithLabelValues("failed").Inc()
	f.logger.Debug("Source fetch failed",
		zap.String("url", rawURL),
		zap.String("reason", lastReason),
	)
	return doc
}

func (f *Fetcher) get(ctx context.Context, u *url.URL) (string, int, error) {
	timeout := f.cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.rp.Client(pool.Default).Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	maxBytes := int64(f.cfg.MaxBodyKB) * 1024
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

// extractText runs readability over the page, then strips residual
// boilerplate nodes and collapses whitespace.
func extractText(html string, u *url.URL) (string, error) {
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		// Fall back to readability's own plain text.
		return strings.TrimSpace(article.TextContent), nil
	}
	doc.Find("figure, aside, script, style, nav, footer").Remove()

	text := reWhitespace.ReplaceAllString(doc.Text(), " ")
	return strings.TrimSpace(text), nil
}
