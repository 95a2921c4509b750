package sessions

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/livepoll/backend/internal/models"
)

// DefaultLayoutCacheSize is used when the configured size is not positive.
const DefaultLayoutCacheSize = 256

// layoutCache keeps session layouts in memory. Questions and options never change after creation,
// so entries need no invalidation; sessions only leave the cache by eviction.
type layoutCache struct {
	lru *lru.Cache[string, []models.QuestionWithOptions]
}

func newLayoutCache(size int) (*layoutCache, error) {
	if size <= 0 {
		size = DefaultLayoutCacheSize
	}
	l, err := lru.New[string, []models.QuestionWithOptions](size)
	if err != nil {
		return nil, err
	}
	return &layoutCache{lru: l}, nil
}

func (c *layoutCache) get(sessionID string) ([]models.QuestionWithOptions, bool) {
	return c.lru.Get(sessionID)
}

func (c *layoutCache) add(sessionID string, layout []models.QuestionWithOptions) {
	c.lru.Add(sessionID, layout)
}
