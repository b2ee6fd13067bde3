// Package cache holds recently produced translations in memory, scoped to the
// worker process lifetime. Both policies are bounded and safe for concurrent
// use by worker tasks.
package cache

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	PolicyTTL = "ttl"
	PolicyLRU = "lru"
)

// Key identifies one cached translation.
type Key struct {
	Text        string
	TargetLang  string
	ContextHash string
}

// Entry is a previously obtained translation.
type Entry struct {
	TranslatedText string
	EngineName     string
}

// Cache maps (text, target language, context hash) to a translation.
type Cache interface {
	Get(key Key) (Entry, bool)
	Set(key Key, entry Entry)
	Len() int
	Purge()
}

// New builds a cache for the given policy. TTL entries expire after ttl but
// the cache stays size-bounded either way.
func New(policy string, maxSize int, ttl time.Duration) (Cache, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache maxsize must be positive, got %d", maxSize)
	}
	switch strings.ToLower(policy) {
	case PolicyTTL:
		return &ttlCache{inner: expirable.NewLRU[Key, Entry](maxSize, nil, ttl)}, nil
	case PolicyLRU:
		inner, err := lru.New[Key, Entry](maxSize)
		if err != nil {
			return nil, err
		}
		return &lruCache{inner: inner}, nil
	default:
		return nil, fmt.Errorf("unknown cache policy %q", policy)
	}
}

type ttlCache struct {
	inner *expirable.LRU[Key, Entry]
}

func (c *ttlCache) Get(key Key) (Entry, bool) { return c.inner.Get(key) }
func (c *ttlCache) Set(key Key, entry Entry)  { c.inner.Add(key, entry) }
func (c *ttlCache) Len() int                  { return c.inner.Len() }
func (c *ttlCache) Purge()                    { c.inner.Purge() }

type lruCache struct {
	inner *lru.Cache[Key, Entry]
}

func (c *lruCache) Get(key Key) (Entry, bool) { return c.inner.Get(key) }
func (c *lruCache) Set(key Key, entry Entry)  { c.inner.Add(key, entry) }
func (c *lruCache) Len() int                  { return c.inner.Len() }
func (c *lruCache) Purge()                    { c.inner.Purge() }
