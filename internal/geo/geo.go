// Package geo defines the geocoding collaborator contract consumed by the
// importer, plus a cached batching decorator for bulk lookups.
package geo

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swingradar/festival-crawler/internal/festival"
)

// Result is a forward-geocoding answer.
type Result struct {
	Latitude         float64
	Longitude        float64
	FormattedAddress string
	Confidence       float64
}

// Address is a reverse-geocoding answer.
type Address struct {
	Street     string
	City       string
	State      string
	Country    string
	PostalCode string
}

// Query names a place to geocode. City and Country are optional refinements.
type Query struct {
	Address string
	City    string
	Country string
}

// Geocoder resolves addresses to coordinates and back. Implementations live
// outside this module; the pipeline only depends on the contract.
type Geocoder interface {
	GeocodeAddress(ctx context.Context, q Query) (Result, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error)
}

// BatchResult pairs one batch item with its outcome.
type BatchResult struct {
	Query  Query
	Result Result
	Err    error
}

type cacheEntry struct {
	result  Result
	expires time.Time
}

// CachedBatchGeocoder wraps a Geocoder with a TTL cache and chunked
// concurrent batch lookups, pausing between chunks so external rate limits
// are respected. The cache has no eviction beyond expiry.
type CachedBatchGeocoder struct {
	inner      Geocoder
	ttl        time.Duration
	chunkSize  int
	chunkDelay time.Duration
	sleep      func(context.Context, time.Duration) error

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewCachedBatch wraps inner. A non-positive chunkSize defaults to 5 and a
// non-positive ttl defaults to 24h.
func NewCachedBatch(inner Geocoder, ttl time.Duration, chunkSize int, chunkDelay time.Duration) *CachedBatchGeocoder {
	if chunkSize <= 0 {
		chunkSize = 5
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedBatchGeocoder{
		inner:      inner,
		ttl:        ttl,
		chunkSize:  chunkSize,
		chunkDelay: chunkDelay,
		sleep:      sleepCtx,
		cache:      make(map[string]cacheEntry),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GeocodeAddress serves from the cache when fresh, otherwise delegates and
// stores the answer.
func (g *CachedBatchGeocoder) GeocodeAddress(ctx context.Context, q Query) (Result, error) {
	key := cacheKey(q)

	g.mu.Lock()
	if e, ok := g.cache[key]; ok && time.Now().Before(e.expires) {
		g.mu.Unlock()
		return e.result, nil
	}
	g.mu.Unlock()

	res, err := g.inner.GeocodeAddress(ctx, q)
	if err != nil {
		return Result{}, err
	}

	g.mu.Lock()
	g.cache[key] = cacheEntry{result: res, expires: time.Now().Add(g.ttl)}
	g.mu.Unlock()
	return res, nil
}

// ReverseGeocode is passed through uncached.
func (g *CachedBatchGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error) {
	return g.inner.ReverseGeocode(ctx, lat, lon)
}

// GeocodeBatch resolves queries in fixed-size chunks. Items inside one chunk
// run concurrently; chunks are separated by the configured delay. Individual
// failures land in the matching BatchResult and never abort the batch.
func (g *CachedBatchGeocoder) GeocodeBatch(ctx context.Context, queries []Query) ([]BatchResult, error) {
	out := make([]BatchResult, len(queries))

	for start := 0; start < len(queries); start += g.chunkSize {
		if start > 0 {
			if err := g.sleep(ctx, g.chunkDelay); err != nil {
				return out, err
			}
		}
		end := start + g.chunkSize
		if end > len(queries) {
			end = len(queries)
		}

		grp, grpCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			grp.Go(func() error {
				res, err := g.GeocodeAddress(grpCtx, queries[i])
				out[i] = BatchResult{Query: queries[i], Result: res, Err: err}
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			return out, err
		}
	}
	return out, nil
}

func cacheKey(q Query) string {
	return strings.ToLower(strings.Join([]string{q.Address, q.City, q.Country}, "|"))
}

// QueryForVenue builds the lookup for a venue's street address.
func QueryForVenue(v *festival.Venue) Query {
	if v == nil {
		return Query{}
	}
	return Query{Address: v.Address, City: v.City, Country: v.Country}
}
