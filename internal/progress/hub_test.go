package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestHubBatchBySize verifies the hub flushes immediately once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     8,
		MaxBatchEvents: 2,
		MaxBatchWait:   time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	evt := sampleEvent(StageSubmitted)
	hub.Emit(evt)
	hub.Emit(evt)
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1 && len(sink.Batches()[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubBatchByTimer verifies the timer-based flush kicks in when the batch is small.
func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 10,
		MaxBatchWait:   25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageSubmitted))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNonBlockingWithoutConsumers asserts Emit never blocks callers, even without sinks.
func TestHubEmitNonBlockingWithoutConsumers(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:    Config{},
		events: make(chan Event),
		logger: zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleEvent(StageSubmitted))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

// TestHubCountsDroppedEvents verifies events beyond the buffer are dropped and counted.
func TestHubCountsDroppedEvents(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:         Config{},
		events:      make(chan Event, 1),
		logger:      zap.NewNop(),
		dropLimiter: rateLimiter{interval: time.Hour},
	}
	hub.Emit(sampleEvent(StageSubmitted))
	hub.Emit(sampleEvent(StageSubmitted))
	hub.Emit(sampleEvent(StageSubmitted))
	require.Equal(t, int64(2), hub.Dropped())
}

// TestHubDiscardsInvalidEvents ensures validation failures never reach sinks.
func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchEvents: 1}, sink)
	hub.Emit(Event{TS: time.Now(), Stage: StageStreamEvent, JobID: "abc"})
	hub.Emit(Event{Stage: StageSubmitted, JobID: "abc"})
	hub.Emit(Event{TS: time.Now(), Stage: "BOGUS", JobID: "abc"})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

// TestHubEmitAfterCloseIsIgnored ensures late emitters do not panic.
func TestHubEmitAfterCloseIsIgnored(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{})
	require.NoError(t, hub.Close(context.Background()))
	hub.Emit(sampleEvent(StageSubmitted))
	require.NoError(t, hub.Close(context.Background()))

	var nilHub *Hub
	nilHub.Emit(sampleEvent(StageSubmitted))
	require.Zero(t, nilHub.Dropped())
}

// TestHubFlushOnClose ensures Close drains any buffered events before returning.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 100,
		MaxBatchWait:   time.Minute,
	}, sink)

	evt := sampleEvent(StageSubmitted)
	hub.Emit(evt)

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]Event{}}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyBatch := append([]Event(nil), batch...)
	s.batches = append(s.batches, copyBatch)
	return nil
}

func (s *stubSink) Close(context.Context) error {
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]Event(nil), b...)
	}
	return out
}

func sampleEvent(stage Stage) Event {
	return Event{
		SessionID: uuid.NewString(),
		JobID:     "4f2a9c0d7e1b4c2a8d3e5f6a7b8c9d0e",
		TS:        time.Now(),
		Stage:     stage,
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cases := []struct {
		name    string
		evt     Event
		wantErr bool
	}{
		{"submitted", Event{JobID: "j1", TS: now, Stage: StageSubmitted}, false},
		{"submit failed without job", Event{SessionID: "s1", TS: now, Stage: StageSubmitFailed}, false},
		{"submit failed anonymous", Event{TS: now, Stage: StageSubmitFailed}, true},
		{"stream event needs type", Event{JobID: "j1", TS: now, Stage: StageStreamEvent}, true},
		{"stream event", Event{JobID: "j1", TS: now, Stage: StageStreamEvent, EventType: "log"}, false},
		{"missing job", Event{TS: now, Stage: StageJobDone}, true},
		{"negative duration", Event{JobID: "j1", TS: now, Stage: StageJobDone, Dur: -time.Second}, true},
		{"missing timestamp", Event{JobID: "j1", Stage: StageJobDone}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.evt.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStageIsTerminal(t *testing.T) {
	t.Parallel()

	require.True(t, StageJobDone.IsTerminal())
	require.True(t, StageJobError.IsTerminal())
	require.True(t, StageStreamLost.IsTerminal())
	require.True(t, StageSubmitFailed.IsTerminal())
	require.False(t, StageStreamEvent.IsTerminal())
	require.False(t, StageStreamClosed.IsTerminal())
}
