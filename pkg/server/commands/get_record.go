package commands

import (
	"context"

	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
)

type GetRecordQuery struct {
	logger  logger.Logger
	backend storage.RecordReader
}

func NewGetRecordQuery(backend storage.RecordReader, logger logger.Logger) *GetRecordQuery {
	return &GetRecordQuery{
		logger:  logger,
		backend: backend,
	}
}

// Execute returns the record with its attributes, or an error wrapping storage.ErrNotFound.
func (q *GetRecordQuery) Execute(ctx context.Context, id string) (*storage.Record, error) {
	return q.backend.ReadRecord(ctx, id)
}
