// Package cache keeps time-bounded results of list queries so that paging
// back and forth does not hit the network again.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a cached page stays valid.
const DefaultTTL = 5 * time.Minute

// AllKey is the cache key used for unpaginated "list everything" results.
const AllKey = "all"

// ListKey scopes AllKey to one user.
func ListKey(uid int64) string {
	return fmt.Sprintf("user=%d&%s", uid, AllKey)
}

// Query describes one page request. Its Key is the cache signature. A
// non-zero UserID is part of the signature.
type Query struct {
	UserID    int64
	Page      int
	Size      int
	SortField string
	SortDir   string
}

// Key returns a deterministic signature of the query parameters.
func (q Query) Key() string {
	key := fmt.Sprintf("page=%d&size=%d&sort=%s,%s", q.Page, q.Size, q.SortField, strings.ToLower(q.SortDir))
	if q.UserID != 0 {
		key = fmt.Sprintf("user=%d&%s", q.UserID, key)
	}
	return key
}

// Entry is one cached result.
type Entry[T any] struct {
	Key        string
	Page       int
	Data       []T
	TotalCount int
	FetchedAt  time.Time
}

// PageMeta is pagination shape derived from a cached total.
type PageMeta struct {
	Page       int
	Size       int
	TotalCount int
	TotalPages int
	IsFirst    bool
	IsLast     bool
}

// Option configures a QueryCache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// QueryCache is a keyed cache of query results with a fixed TTL. Expired
// entries read as absent but stay in memory until overwritten or cleared.
type QueryCache[T any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]Entry[T]
}

// New creates a cache with the given TTL. A non-positive ttl uses DefaultTTL.
func New[T any](ttl time.Duration, opts ...Option) *QueryCache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QueryCache[T]{
		ttl:     ttl,
		now:     o.now,
		entries: make(map[string]Entry[T]),
	}
}

// TTL returns the configured time-to-live.
func (c *QueryCache[T]) TTL() time.Duration {
	return c.ttl
}

// Get returns the entry for key if present and younger than the TTL.
func (c *QueryCache[T]) Get(key string) (Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.validLocked(e) {
		return Entry[T]{}, false
	}
	e.Data = append([]T(nil), e.Data...)
	return e, true
}

func (c *QueryCache[T]) validLocked(e Entry[T]) bool {
	return c.now().Sub(e.FetchedAt) < c.ttl
}

// Put stores data under key with FetchedAt set to now, replacing any
// previous entry.
func (c *QueryCache[T]) Put(key string, data []T, totalCount int) {
	c.put(key, 0, data, totalCount)
}

// PutPage stores a page result under q.Key(), remembering the page index so
// ComputePageMeta can derive first/last flags.
func (c *QueryCache[T]) PutPage(q Query, data []T, totalCount int) {
	c.put(q.Key(), q.Page, data, totalCount)
}

func (c *QueryCache[T]) put(key string, page int, data []T, totalCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry[T]{
		Key:        key,
		Page:       page,
		Data:       append([]T(nil), data...),
		TotalCount: totalCount,
		FetchedAt:  c.now(),
	}
}

// Clear drops every entry.
func (c *QueryCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry[T])
}

// Reset implements Resetter.
func (c *QueryCache[T]) Reset() {
	c.Clear()
}

// Len returns the number of stored entries, expired ones included.
func (c *QueryCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ComputePageMeta derives pagination metadata for the cached entry at key.
// It reports false when no valid entry exists.
func (c *QueryCache[T]) ComputePageMeta(key string, pageSize int) (PageMeta, bool) {
	e, ok := c.Get(key)
	if !ok {
		return PageMeta{}, false
	}
	return PageMetaFor(e.Page, pageSize, e.TotalCount), true
}

// PageMetaFor computes pagination metadata for a page of a result set with
// totalCount items.
func PageMetaFor(page, pageSize, totalCount int) PageMeta {
	totalPages := 0
	if pageSize > 0 && totalCount > 0 {
		totalPages = (totalCount + pageSize - 1) / pageSize
	}
	return PageMeta{
		Page:       page,
		Size:       pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
		IsFirst:    page == 0,
		IsLast:     page >= totalPages-1,
	}
}
