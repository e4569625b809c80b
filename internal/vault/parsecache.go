package vault

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/notelinker/internal/checksum"
)

// DefaultParseCacheSize is used when a non-positive size is requested.
const DefaultParseCacheSize = 4096

type cacheKey struct {
	path string
	sum  string
}

type parsed struct {
	file *File
	err  error
}

// ParseCache memoizes parse results by path and content checksum, so an
// unchanged note is parsed once across rescans. Failures are cached too.
// It is safe for concurrent use.
type ParseCache struct {
	lru *lru.Cache[cacheKey, parsed]
}

// NewParseCache creates a cache holding up to size parse results.
func NewParseCache(size int) (*ParseCache, error) {
	if size <= 0 {
		size = DefaultParseCacheSize
	}
	c, err := lru.New[cacheKey, parsed](size)
	if err != nil {
		return nil, fmt.Errorf("vault: parse cache: %w", err)
	}
	return &ParseCache{lru: c}, nil
}

// File parses e, reusing an earlier result for identical content.
func (c *ParseCache) File(e Entry) (*File, error) {
	key := cacheKey{path: e.Path, sum: checksum.Sum([]byte(e.Content))}
	if r, ok := c.lru.Get(key); ok {
		return r.file, r.err
	}
	f, err := newFile(e.Path, e.Content, key.sum)
	c.lru.Add(key, parsed{file: f, err: err})
	return f, err
}

// Build assembles a Vault from entries through the cache.
func (c *ParseCache) Build(entries []Entry) *Vault {
	return assemble(entries, c.File)
}

// Len returns the number of cached results.
func (c *ParseCache) Len() int { return c.lru.Len() }

// Purge drops every cached result.
func (c *ParseCache) Purge() { c.lru.Purge() }
