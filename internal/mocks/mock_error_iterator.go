package mocks

import (
	"context"

	"github.com/energia/resourcecatalog/pkg/storage"
)

// errorIterator is a mock iterator that returns err once its items are exhausted.
type errorIterator[T any] struct {
	items   []T
	err     error
	stopped bool
}

func (s *errorIterator[T]) Next(ctx context.Context) (T, error) {
	var val T

	if ctx.Err() != nil {
		return val, ctx.Err()
	}

	if s.stopped {
		return val, storage.ErrIteratorDone
	}

	if len(s.items) == 0 {
		return val, s.err
	}

	next, rest := s.items[0], s.items[1:]
	s.items = rest

	return next, nil
}

func (s *errorIterator[T]) Stop() {
	s.stopped = true
}

// NewErrorRecordIterator mocks case where Next returns err after the given records have been read.
func NewErrorRecordIterator(records []*storage.Record, err error) storage.RecordIterator {
	return &errorIterator[*storage.Record]{
		items: records,
		err:   err,
	}
}
