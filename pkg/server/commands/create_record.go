package commands

import (
	"context"
	"fmt"

	"github.com/energia/resourcecatalog/pkg/events"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
)

type CreateRecordRequest struct {
	Kind        string
	CountryCode string
	Address     storage.Address
	Attributes  []storage.Attribute
}

type CreateRecordCommand struct {
	backend storage.RecordWriter
	sink    events.EventSink
	logger  logger.Logger
}

type CreateRecordCmdOption func(*CreateRecordCommand)

func WithCreateRecordCmdLogger(l logger.Logger) CreateRecordCmdOption {
	return func(c *CreateRecordCommand) {
		c.logger = l
	}
}

func NewCreateRecordCommand(backend storage.RecordWriter, sink events.EventSink, opts ...CreateRecordCmdOption) *CreateRecordCommand {
	cmd := &CreateRecordCommand{
		backend: backend,
		sink:    sink,
		logger:  logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(cmd)
	}
	return cmd
}

func (c *CreateRecordCommand) Execute(ctx context.Context, req CreateRecordRequest) (*storage.Record, error) {
	kind, err := storage.ParseRecordKind(req.Kind)
	if err != nil {
		return nil, &InvalidArgumentError{Cause: err}
	}

	if len(req.CountryCode) != 2 {
		return nil, &InvalidArgumentError{Cause: fmt.Errorf("country code %q must have 2 letters", req.CountryCode)}
	}

	if err := storage.ValidateAttributes(req.Attributes); err != nil {
		return nil, err
	}

	record, err := c.backend.CreateRecord(ctx, &storage.Record{
		Kind:        kind,
		CountryCode: req.CountryCode,
		Address:     req.Address,
		Attributes:  req.Attributes,
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, c.sink, c.logger, events.ResourceCreated, record)
	return record, nil
}
