package commands

import (
	"context"

	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
)

type ListRecordsRequest struct {
	// CountryCode and Kind are optional filters.
	CountryCode       string
	Kind              string
	PageSize          int32
	ContinuationToken string
}

type ListRecordsResponse struct {
	Records           []*storage.Record
	ContinuationToken string
}

type ListRecordsQuery struct {
	backend storage.RecordReader
	logger  logger.Logger
}

type ListRecordsQueryOption func(*ListRecordsQuery)

func WithListRecordsQueryLogger(l logger.Logger) ListRecordsQueryOption {
	return func(q *ListRecordsQuery) {
		q.logger = l
	}
}

func NewListRecordsQuery(backend storage.RecordReader, opts ...ListRecordsQueryOption) *ListRecordsQuery {
	q := &ListRecordsQuery{
		backend: backend,
		logger:  logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *ListRecordsQuery) Execute(ctx context.Context, req ListRecordsRequest) (*ListRecordsResponse, error) {
	filter := storage.ReadPageFilter{CountryCode: req.CountryCode}
	if req.Kind != "" {
		kind, err := storage.ParseRecordKind(req.Kind)
		if err != nil {
			return nil, &InvalidArgumentError{Cause: err}
		}
		filter.Kind = kind
	}

	records, contToken, err := q.backend.ReadPage(ctx, filter, storage.NewPaginationOptions(req.PageSize, req.ContinuationToken))
	if err != nil {
		return nil, err
	}

	return &ListRecordsResponse{
		Records:           records,
		ContinuationToken: contToken,
	}, nil
}
