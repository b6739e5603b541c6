package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func progressEvent(session string, percent int) Event {
	return Event{
		SessionID: session,
		TS:        time.Now(),
		Kind:      KindProgress,
		Stage:     StageExploring,
		Percent:   percent,
		Message:   "exploring pages",
	}
}

func TestHubDeliversOnClose(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: time.Hour}, sink)

	hub.Emit(progressEvent("s-1", 10))
	hub.Emit(progressEvent("s-1", 40))
	require.NoError(t, hub.Close(context.Background()))

	got := sink.events()
	require.Len(t, got, 2)
	assert.Equal(t, 10, got[0].Percent)
	assert.Equal(t, 40, got[1].Percent)
	assert.True(t, sink.closed)
}

func TestHubFlushesWhenBatchFills(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchEvents: 2, MaxBatchWait: time.Hour}, sink)
	defer hub.Close(context.Background())

	hub.Emit(progressEvent("s-1", 10))
	hub.Emit(progressEvent("s-1", 20))

	require.Eventually(t, func() bool {
		return len(sink.events()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{Kind: KindProgress}) // no session id
	hub.Emit(Event{SessionID: "s-1", TS: time.Now(), Kind: KindProgress, Stage: StageScoring, Percent: 150})
	require.NoError(t, hub.Close(context.Background()))

	assert.Empty(t, sink.events())
}

func TestHubIgnoresEmitAfterClose(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(progressEvent("s-1", 10))
	assert.Empty(t, sink.events())
}

func TestNotifierStampsAndForwards(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: time.Hour}, sink)
	n := NewNotifier(hub)

	conf := 0.8
	n.SendProgress("s-9", StageExtracting, 55, "calling extraction model", &conf)
	n.SendError("s-9", "EXTERNAL_SERVICE", "extraction provider unavailable")
	n.SendCompletion("s-9", "imported 1 festival")
	require.NoError(t, hub.Close(context.Background()))

	got := sink.events()
	require.Len(t, got, 3)
	assert.Equal(t, KindProgress, got[0].Kind)
	assert.False(t, got[0].TS.IsZero())
	require.NotNil(t, got[0].Confidence)
	assert.InDelta(t, 0.8, *got[0].Confidence, 0.0001)
	assert.Equal(t, KindError, got[1].Kind)
	assert.Equal(t, KindCompletion, got[2].Kind)
}

func TestNilNotifierIsSafe(t *testing.T) {
	t.Parallel()

	var n *Notifier
	n.SendProgress("s-1", StageScoring, 10, "", nil)
	NewNotifier(nil).SendCompletion("s-1", "done")
}
