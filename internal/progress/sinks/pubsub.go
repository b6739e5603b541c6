package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/swingradar/festival-crawler/internal/progress"
)

// pubsubPayload is the JSON wire form pushed to dashboard subscribers.
type pubsubPayload struct {
	SessionID  string   `json:"session_id"`
	Timestamp  string   `json:"timestamp"`
	Kind       string   `json:"kind"`
	Stage      string   `json:"stage,omitempty"`
	Percent    int      `json:"percent,omitempty"`
	Message    string   `json:"message,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Code       string   `json:"code,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

// PubSubSink publishes progress events to a Google Cloud Pub/Sub topic, one
// message per event with the session id as an attribute so subscribers can
// filter.
type PubSubSink struct {
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSubSink wraps an existing topic handle. The caller owns the client.
func NewPubSubSink(topic *pubsub.Topic, logger *zap.Logger) (*PubSubSink, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubSubSink{topic: topic, logger: logger}, nil
}

// Consume publishes each event. Individual publish failures are logged and
// skipped; progress delivery is best-effort.
func (s *PubSubSink) Consume(ctx context.Context, batch []progress.Event) error {
	results := make([]*pubsub.PublishResult, 0, len(batch))
	for _, evt := range batch {
		data, err := json.Marshal(pubsubPayload{
			SessionID:  evt.SessionID,
			Timestamp:  evt.TS.UTC().Format(time.RFC3339Nano),
			Kind:       string(evt.Kind),
			Stage:      string(evt.Stage),
			Percent:    evt.Percent,
			Message:    evt.Message,
			Confidence: evt.Confidence,
			Code:       string(evt.Code),
			Summary:    evt.Summary,
		})
		if err != nil {
			s.logger.Warn("marshal progress event", zap.Error(err))
			continue
		}
		results = append(results, s.topic.Publish(ctx, &pubsub.Message{
			Data: data,
			Attributes: map[string]string{
				"session_id": evt.SessionID,
				"kind":       string(evt.Kind),
			},
		}))
	}
	for _, res := range results {
		if _, err := res.Get(ctx); err != nil {
			s.logger.Warn("publish progress event", zap.Error(err))
		}
	}
	return nil
}

// Close flushes any buffered messages and releases topic resources.
func (s *PubSubSink) Close(context.Context) error {
	s.topic.Stop()
	return nil
}
