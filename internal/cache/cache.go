// Package cache provides a bounded LRU of last-known-good ranked results,
// served when the search backend is unavailable and degraded-mode
// responses are enabled (spec §4.F "the response MAY include cached or
// degraded content when configured").
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/thaiproxy/searchproxy/internal/ranker"
)

// DefaultSize is the default number of cached query results retained.
const DefaultSize = 256

// Entry is one cached ranked result, keyed by the normalised query text.
type Entry struct {
	Hits       []ranker.Hit
	TotalCount int
}

// Cache is a bounded LRU of query -> last-known-good ranked result.
type Cache struct {
	lru *lru.Cache[string, Entry]
}

// New constructs a Cache holding up to size entries. size <= 0 uses
// DefaultSize.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Put records the last-known-good result for query.
func (c *Cache) Put(query string, entry Entry) {
	c.lru.Add(query, entry)
}

// Get returns the last-known-good result for query, if any is cached.
func (c *Cache) Get(query string) (Entry, bool) {
	return c.lru.Get(query)
}

// Len reports how many queries currently have a cached result.
func (c *Cache) Len() int {
	return c.lru.Len()
}
