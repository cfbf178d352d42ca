package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/rosterctl/internal/progress"
)

// PrometheusSink exports run progress via Prometheus. It owns the collectors
// for submissions, stream events, parse errors, and run outcomes.
type PrometheusSink struct {
	submissions  *prometheus.CounterVec
	streamEvents *prometheus.CounterVec
	parseErrors  prometheus.Counter
	runsFinished *prometheus.CounterVec
	runsActive   prometheus.Gauge
	runDuration  *prometheus.HistogramVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rosterctl_submissions_total",
			Help: "Job submissions partitioned by result.",
		}, []string{"result"}),
		streamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rosterctl_stream_events_total",
			Help: "Decoded stream events partitioned by type.",
		}, []string{"type"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rosterctl_stream_parse_errors_total",
			Help: "Stream messages dropped because they could not be decoded.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rosterctl_runs_finished_total",
			Help: "Runs that reached a terminal state partitioned by outcome.",
		}, []string{"outcome"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rosterctl_runs_active",
			Help: "Runs currently attached to an event stream.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rosterctl_run_duration_seconds",
			Help:    "Time from submission to the terminal event.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"outcome"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.submissions,
		s.streamEvents,
		s.parseErrors,
		s.runsFinished,
		s.runsActive,
		s.runDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSubmitted:
		s.submissions.WithLabelValues("accepted").Inc()
	case progress.StageSubmitFailed:
		s.submissions.WithLabelValues("rejected").Inc()
		s.runsFinished.WithLabelValues(outcomeLabel(evt.Stage)).Inc()
	case progress.StageStreamOpened:
		if s.tracker.start(evt.JobID) {
			s.runsActive.Inc()
		}
	case progress.StageStreamEvent:
		s.streamEvents.WithLabelValues(evt.EventType).Inc()
	case progress.StageStreamParseError:
		s.parseErrors.Inc()
	case progress.StageJobDone, progress.StageJobError, progress.StageStreamLost:
		label := outcomeLabel(evt.Stage)
		s.runsFinished.WithLabelValues(label).Inc()
		if evt.Dur > 0 {
			s.runDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
		}
		if s.tracker.complete(evt.JobID) {
			s.runsActive.Dec()
		}
	case progress.StageStreamClosed:
		if s.tracker.complete(evt.JobID) {
			s.runsActive.Dec()
		}
	}
}

func outcomeLabel(stage progress.Stage) string {
	switch stage {
	case progress.StageJobDone:
		return "completed"
	case progress.StageJobError:
		return "failed"
	case progress.StageStreamLost:
		return "lost"
	case progress.StageSubmitFailed:
		return "rejected"
	default:
		return "unknown"
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[string]struct{})}
}

func (t *runTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
