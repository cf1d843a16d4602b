package commands

import (
	"context"

	"github.com/energia/resourcecatalog/pkg/events"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
)

// UpdateRecordRequest replaces the fields that are set. ExpectedVersion, when set, must equal the
// stored version.
type UpdateRecordRequest struct {
	ID              string
	Address         *storage.Address
	Attributes      *[]storage.Attribute
	ExpectedVersion *int64
}

type UpdateRecordCommand struct {
	backend RecordBackend
	sink    events.EventSink
	logger  logger.Logger
}

type UpdateRecordCmdOption func(*UpdateRecordCommand)

func WithUpdateRecordCmdLogger(l logger.Logger) UpdateRecordCmdOption {
	return func(c *UpdateRecordCommand) {
		c.logger = l
	}
}

func NewUpdateRecordCommand(backend RecordBackend, sink events.EventSink, opts ...UpdateRecordCmdOption) *UpdateRecordCommand {
	cmd := &UpdateRecordCommand{
		backend: backend,
		sink:    sink,
		logger:  logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(cmd)
	}
	return cmd
}

// Execute applies the update under optimistic concurrency control. A stale ExpectedVersion, or a
// concurrent writer committing between the read and the write, yields an error wrapping
// storage.ErrVersionConflict and leaves the record untouched. The command never retries; the
// caller re-reads and tries again.
func (c *UpdateRecordCommand) Execute(ctx context.Context, req UpdateRecordRequest) (*storage.Record, error) {
	stored, err := c.backend.ReadRecord(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.ExpectedVersion != nil && *req.ExpectedVersion != stored.Version {
		return nil, storage.VersionConflictError(req.ID, *req.ExpectedVersion, stored.Version)
	}

	updated := stored.Clone()
	if req.Address != nil {
		updated.Address = *req.Address
	}
	if req.Attributes != nil {
		if err := storage.ValidateAttributes(*req.Attributes); err != nil {
			return nil, err
		}
		updated.Attributes = append([]storage.Attribute(nil), (*req.Attributes)...)
	}

	record, err := c.backend.UpdateRecord(ctx, updated, stored.Version)
	if err != nil {
		return nil, err
	}

	notify(ctx, c.sink, c.logger, events.ResourceUpdated, record)
	return record, nil
}
