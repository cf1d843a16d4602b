package commands

import (
	"context"

	"github.com/energia/resourcecatalog/pkg/events"
	"github.com/energia/resourcecatalog/pkg/logger"
)

type DeleteRecordCommand struct {
	backend RecordBackend
	sink    events.EventSink
	logger  logger.Logger
}

func NewDeleteRecordCommand(backend RecordBackend, sink events.EventSink, logger logger.Logger) *DeleteRecordCommand {
	return &DeleteRecordCommand{
		backend: backend,
		sink:    sink,
		logger:  logger,
	}
}

// Execute deletes the record and its attributes. The deletion notification carries the record as
// it was before the delete.
func (c *DeleteRecordCommand) Execute(ctx context.Context, id string) error {
	record, err := c.backend.ReadRecord(ctx, id)
	if err != nil {
		return err
	}

	if err := c.backend.DeleteRecord(ctx, id); err != nil {
		return err
	}

	notify(ctx, c.sink, c.logger, events.ResourceDeleted, record)
	return nil
}
