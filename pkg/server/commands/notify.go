package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/energia/resourcecatalog/pkg/events"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
)

// RecordBackend is the part of the datastore used by the mutating record commands.
type RecordBackend interface {
	storage.RecordReader
	storage.RecordWriter
}

// notify sends a change notification. Failures are logged and never returned, the write they
// describe is already committed.
func notify(ctx context.Context, sink events.EventSink, l logger.Logger, eventType events.EventType, record *storage.Record) {
	event := events.NewResourceEvent(eventType, record.ID, events.NewRecordPayload(record))
	if err := sink.SendResourceEvent(ctx, event); err != nil {
		l.ErrorWithContext(ctx, "failed to publish resource event",
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(eventType)),
			zap.String("resource_id", record.ID),
			zap.Error(err),
		)
	}
}
