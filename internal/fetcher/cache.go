package fetcher

import (
	"sync"

	"github.com/inkforge/inkforge/internal/models"
)

// runCache holds fetched documents keyed by run then URL, so a URL is
// fetched at most once per run.
type runCache struct {
	mu   sync.Mutex
	runs map[string]map[string]*models.SourceDocument
}

func newRunCache() *runCache {
	return &runCache{runs: make(map[string]map[string]*models.SourceDocument)}
}

func (c *runCache) get(runID, url string) (*models.SourceDocument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, ok := c.runs[runID]
	if !ok {
		return nil, false
	}
	doc, ok := docs[url]
	return doc, ok
}

func (c *runCache) putIfAbsent(runID, url string, doc *models.SourceDocument) *models.SourceDocument {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, ok := c.runs[runID]
	if !ok {
		docs = make(map[string]*models.SourceDocument)
		c.runs[runID] = docs
	}
	if existing, ok := docs[url]; ok {
		return existing
	}
	docs[url] = doc
	return doc
}

func (c *runCache) drop(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.runs, runID)
}
