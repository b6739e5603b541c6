package geo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGeocoder struct {
	mu    sync.Mutex
	calls []Query
	fail  map[string]error
}

func (s *stubGeocoder) GeocodeAddress(_ context.Context, q Query) (Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, q)
	s.mu.Unlock()
	if err, ok := s.fail[q.City]; ok {
		return Result{}, err
	}
	return Result{Latitude: 59.33, Longitude: 18.07, FormattedAddress: q.City, Confidence: 0.9}, nil
}

func (s *stubGeocoder) ReverseGeocode(context.Context, float64, float64) (Address, error) {
	return Address{City: "Stockholm", Country: "Sweden"}, nil
}

func (s *stubGeocoder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestCachedGeocodeHitsCacheOnRepeat(t *testing.T) {
	t.Parallel()

	stub := &stubGeocoder{}
	g := NewCachedBatch(stub, time.Hour, 5, 0)

	q := Query{Address: "Regeringsgatan 74", City: "Stockholm", Country: "Sweden"}
	first, err := g.GeocodeAddress(context.Background(), q)
	require.NoError(t, err)

	second, err := g.GeocodeAddress(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, stub.callCount())
}

func TestCachedGeocodeDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	stub := &stubGeocoder{fail: map[string]error{"Nowhere": errors.New("no match")}}
	g := NewCachedBatch(stub, time.Hour, 5, 0)

	q := Query{City: "Nowhere"}
	_, err := g.GeocodeAddress(context.Background(), q)
	require.Error(t, err)

	_, err = g.GeocodeAddress(context.Background(), q)
	require.Error(t, err)
	assert.Equal(t, 2, stub.callCount())
}

func TestGeocodeBatchChunksWithDelay(t *testing.T) {
	t.Parallel()

	stub := &stubGeocoder{}
	g := NewCachedBatch(stub, time.Hour, 2, 50*time.Millisecond)

	var sleeps []time.Duration
	g.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	queries := []Query{
		{City: "Stockholm"}, {City: "Göteborg"}, {City: "Malmö"},
		{City: "Uppsala"}, {City: "Lund"},
	}
	results, err := g.GeocodeBatch(context.Background(), queries)
	require.NoError(t, err)
	require.Len(t, results, 5)

	// Three chunks of size 2, so two inter-chunk pauses.
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 50 * time.Millisecond}, sleeps)
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, queries[i].City, r.Result.FormattedAddress)
	}
}

func TestGeocodeBatchToleratesItemFailure(t *testing.T) {
	t.Parallel()

	stub := &stubGeocoder{fail: map[string]error{"Atlantis": errors.New("no match")}}
	g := NewCachedBatch(stub, time.Hour, 5, 0)

	results, err := g.GeocodeBatch(context.Background(), []Query{{City: "Stockholm"}, {City: "Atlantis"}})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
}
