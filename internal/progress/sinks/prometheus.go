package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/swingradar/festival-crawler/internal/progress"
)

// PrometheusSink exports pipeline progress metrics. It owns the collectors
// for per-stage event counts, session outcomes, and error codes.
type PrometheusSink struct {
	stageEvents       *prometheus.CounterVec
	sessionsCompleted prometheus.Counter
	sessionsFailed    *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		stageEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "festival_pipeline_stage_events_total",
			Help: "Progress events partitioned by pipeline stage.",
		}, []string{"stage"}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "festival_pipeline_sessions_completed_total",
			Help: "Sessions that finished with a completion event.",
		}),
		sessionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "festival_pipeline_sessions_failed_total",
			Help: "Sessions that finished with an error, partitioned by code.",
		}, []string{"code"}),
	}
	for _, collector := range []prometheus.Collector{
		s.stageEvents,
		s.sessionsCompleted,
		s.sessionsFailed,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Kind {
		case progress.KindProgress:
			s.stageEvents.WithLabelValues(string(evt.Stage)).Inc()
		case progress.KindCompletion:
			s.sessionsCompleted.Inc()
		case progress.KindError:
			s.sessionsFailed.WithLabelValues(string(evt.Code)).Inc()
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
