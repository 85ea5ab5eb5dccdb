// Package knowledge wraps the semantic-search service with a time-bounded
// redis cache keyed by query fingerprint. Search degrades to an explicit
// "unavailable" result on timeout; it never fabricates passages.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/inkforge/inkforge/internal/config"
	"github.com/inkforge/inkforge/internal/gateway"
	"github.com/inkforge/inkforge/internal/metrics"
)

const keyPrefix = "inkforge:knowledge:"

// SearchBackend is the slice of the gateway the client needs.
type SearchBackend interface {
	SemanticSearch(ctx context.Context, req gateway.SearchRequest) (gateway.SearchResponse, error)
}

// Result is a ranked passage list. Unavailable marks a degraded, empty
// answer produced because the service could not be reached in time.
type Result struct {
	Passages    []gateway.Passage `json:"passages"`
	Unavailable bool              `json:"unavailable,omitempty"`
	Cached      bool              `json:"cached,omitempty"`
}

// Client is the knowledge search client.
type Client struct {
	backend SearchBackend
	rdb     *redis.Client
	ttl     time.Duration
	timeout time.Duration
	topK    int
	logger  *zap.Logger
}

// New builds a client. rdb may be nil, in which case every search goes to
// the backend.
func New(backend SearchBackend, rdb *redis.Client, cfg config.SearchConfig, logger *zap.Logger) *Client {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		backend: backend,
		rdb:     rdb,
		ttl:     ttl,
		timeout: timeout,
		topK:    cfg.TopK,
		logger:  logger,
	}
}

// Fingerprint derives the cache key for a query. Normalization keeps
// trivially-different phrasings of the same query on one entry.
func Fingerprint(query string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(query))), " ")
	sum := sha256.Sum256([]byte(norm))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Search returns ranked passages for the query, serving from cache when a
// non-expired entry exists. A backend timeout or error yields an empty
// Result with Unavailable set, and no cache write.
func (c *Client) Search(ctx context.Context, query string) (Result, error) {
	key := Fingerprint(query)

	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, key).Result()
		switch {
		case err == nil:
			var cached Result
			if jerr := json.Unmarshal([]byte(raw), &cached); jerr == nil {
				metrics.KnowledgeCacheHits.WithLabelValues("hit").Inc()
				cached.Cached = true
				return cached, nil
			}
			// Corrupt entry: drop it and fall through to a fresh search.
			c.rdb.Del(ctx, key)
		case errors.Is(err, redis.Nil):
			metrics.KnowledgeCacheHits.WithLabelValues("miss").Inc()
		default:
			metrics.KnowledgeCacheHits.WithLabelValues("error").Inc()
			c.logger.Warn("Knowledge cache read failed", zap.Error(err))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.backend.SemanticSearch(callCtx, gateway.SearchRequest{Query: query, TopK: c.topK})
	if err != nil {
		c.logger.Warn("Knowledge search unavailable",
			zap.String("query", query),
			zap.Error(err),
		)
		return Result{Unavailable: true}, nil
	}

	result := Result{Passages: resp.Passages}
	if c.rdb != nil {
		if data, jerr := json.Marshal(result); jerr == nil {
			if serr := c.rdb.Set(ctx, key, data, c.ttl).Err(); serr != nil {
				c.logger.Warn("Knowledge cache write failed", zap.Error(serr))
			}
		}
	}
	return result, nil
}
