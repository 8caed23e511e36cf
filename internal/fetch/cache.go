package fetch

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of responses a CachingFetcher keeps.
const DefaultCacheSize = 256

// CachingFetcher memoizes responses of another Fetcher by path. Errors are
// never cached; concurrent fetches of the same path share one call to the
// underlying fetcher. Cached responses are shared and must not be modified.
type CachingFetcher struct {
	next  Fetcher
	cache *lru.Cache[string, *Response]
	group singleflight.Group
}

// NewCachingFetcher wraps next with an LRU cache of the given size.
func NewCachingFetcher(next Fetcher, size int) (*CachingFetcher, error) {
	if next == nil {
		return nil, fmt.Errorf("caching fetcher needs an underlying fetcher")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *Response](size)
	if err != nil {
		return nil, err
	}
	return &CachingFetcher{next: next, cache: cache}, nil
}

// Fetch answers from the cache or from the underlying fetcher.
func (f *CachingFetcher) Fetch(ctx context.Context, p string) (*Response, error) {
	key, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	if resp, ok := f.cache.Get(key); ok {
		return resp, nil
	}

	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		resp, err := f.next.Fetch(ctx, p)
		if err != nil {
			return nil, err
		}
		f.cache.Add(key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	resp := v.(*Response)
	if resp.Path != p {
		shared := *resp
		shared.Path = p
		return &shared, nil
	}
	return resp, nil
}

// Remove drops the cached response for p.
func (f *CachingFetcher) Remove(p string) {
	if key, err := CleanPath(p); err == nil {
		f.cache.Remove(key)
	}
}

// Purge drops every cached response.
func (f *CachingFetcher) Purge() {
	f.cache.Purge()
}

// Len returns the number of cached responses.
func (f *CachingFetcher) Len() int {
	return f.cache.Len()
}
