package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/swingradar/festival-crawler/internal/progress"
)

// LogSink emits structured logs for debugging progress streams. Useful in
// development and in deployments without a push channel configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("session_id", evt.SessionID),
			zap.String("kind", string(evt.Kind)),
			zap.String("stage", string(evt.Stage)),
			zap.Int("percent", evt.Percent),
			zap.String("message", evt.Message),
		}
		if evt.Confidence != nil {
			fields = append(fields, zap.Float64("confidence", *evt.Confidence))
		}
		if evt.Code != "" {
			fields = append(fields, zap.String("code", string(evt.Code)))
		}
		if evt.Summary != "" {
			fields = append(fields, zap.String("summary", evt.Summary))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
