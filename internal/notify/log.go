package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes events to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.With(zap.String("module", "notify"))}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, e Event) error {
	s.logger.Info("Enforcement event",
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.String("item_id", e.ItemID),
		zap.String("author", e.Author),
		zap.String("reason", e.Reason),
		zap.Time("at", e.At),
	)
	return nil
}
