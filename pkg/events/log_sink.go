package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/energia/resourcecatalog/pkg/logger"
)

// LogSink writes a line per notification and per export chunk instead of publishing them.
type LogSink struct {
	logger logger.Logger
}

var _ EventSink = (*LogSink)(nil)

func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &LogSink{logger: l}
}

func (s *LogSink) SendResourceEvent(ctx context.Context, event ResourceEvent) error {
	s.logger.InfoWithContext(ctx, "resource event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
		zap.String("resource_id", event.ResourceID),
	)
	return nil
}

func (s *LogSink) SendBulkExport(ctx context.Context, payloads []RecordPayload) error {
	s.logger.InfoWithContext(ctx, "bulk export chunk", zap.Int("size", len(payloads)))
	return nil
}
