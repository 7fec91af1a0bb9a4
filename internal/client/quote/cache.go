// Package quote caches the coin purchase quote.
package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/logging"
)

// DefaultTTL is how long a fetched quote is served without asking again.
const DefaultTTL = 5 * time.Minute

// Fetcher is the remote operation behind the cache.
type Fetcher interface {
	GetPurchaseQuote(ctx context.Context, provider string) (*models.Quote, error)
}

// Cache holds one quote for one provider. A fetch failure is hidden behind
// the previous quote when there is one.
type Cache struct {
	fetcher  Fetcher
	provider string
	ttl      time.Duration
	logger   logging.Logger
	now      func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	quote     *models.Quote
	fetchedAt time.Time
	// fetches are numbered when they start; an older one never replaces
	// the quote of a newer one
	started uint64
	stored  uint64
}

type Option func(*Cache)

func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func NewCache(fetcher Fetcher, provider string, opts ...Option) *Cache {
	c := &Cache{
		fetcher:  fetcher,
		provider: provider,
		ttl:      DefaultTTL,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "quote")
	return c
}

// Get returns the cached quote while it is younger than the TTL and fetches
// otherwise.
func (c *Cache) Get(ctx context.Context) (*models.Quote, error) {
	c.mu.RLock()
	q, at := c.quote, c.fetchedAt
	c.mu.RUnlock()

	if q != nil && c.now().Sub(at) < c.ttl {
		return q, nil
	}
	ch := c.group.DoChan(c.provider, func() (any, error) {
		return c.load(context.WithoutCancel(ctx))
	})
	return c.wait(ctx, ch)
}

// Refresh always asks the backend, even while a Get fetch is in flight.
func (c *Cache) Refresh(ctx context.Context) (*models.Quote, error) {
	ch := make(chan singleflight.Result, 1)
	go func() {
		q, err := c.load(context.WithoutCancel(ctx))
		ch <- singleflight.Result{Val: q, Err: err}
	}()
	return c.wait(ctx, ch)
}

// Cached returns the last quote and when it was fetched, without fetching.
func (c *Cache) Cached() (*models.Quote, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quote, c.fetchedAt
}

// load runs one remote fetch. It is detached from the caller's cancellation
// since other callers may share it; the HTTP client timeout bounds it.
func (c *Cache) load(ctx context.Context) (*models.Quote, error) {
	c.mu.Lock()
	c.started++
	seq := c.started
	c.mu.Unlock()

	q, err := c.fetcher.GetPurchaseQuote(ctx, c.provider)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if seq > c.stored {
		c.quote, c.fetchedAt, c.stored = q, c.now(), seq
	}
	c.mu.Unlock()
	return q, nil
}

// wait returns the fetch result, or gives up when ctx ends first. Failures
// fall back to the stale quote.
func (c *Cache) wait(ctx context.Context, ch <-chan singleflight.Result) (*models.Quote, error) {
	var err error
	select {
	case r := <-ch:
		if r.Err == nil {
			return r.Val.(*models.Quote), nil
		}
		err = r.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.mu.RLock()
	stale := c.quote
	c.mu.RUnlock()
	if stale != nil {
		c.logger.Warn(ctx, "quote refresh failed, serving stale quote", "provider", c.provider, "error", err)
		return stale, nil
	}
	return nil, fmt.Errorf("get purchase quote: %w", err)
}
