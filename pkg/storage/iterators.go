package storage

import (
	"context"
	"errors"
	"sync"
)

var ErrIteratorDone = errors.New("iterator done")

type Iterator[T any] interface {
	// Next will return the next available item. When the items are exhausted it returns ErrIteratorDone.
	// If the context is cancelled or times out, it returns the context error.
	Next(ctx context.Context) (T, error)
	// Stop terminates iteration over the underlying iterator and releases its resources.
	// It is safe to call Stop more than once.
	Stop()
}

// RecordIterator is an iterator for Records. It is closed by explicitly calling Stop() or by calling Next() until it
// returns an ErrIteratorDone error.
type RecordIterator = Iterator[*Record]

type staticIterator[T any] struct {
	items []T
	mu    sync.Mutex
}

var _ RecordIterator = (*staticIterator[*Record])(nil)

// NewStaticIterator returns an iterator over a fixed slice of items.
func NewStaticIterator[T any](items []T) Iterator[T] {
	return &staticIterator[T]{items: items}
}

// NewStaticRecordIterator returns a RecordIterator over the given records.
func NewStaticRecordIterator(records []*Record) RecordIterator {
	return NewStaticIterator(records)
}

func (s *staticIterator[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return zero, ErrIteratorDone
	}

	next := s.items[0]
	s.items = s.items[1:]
	return next, nil
}

func (s *staticIterator[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// ToSlice drains the iterator into a slice and stops it.
func ToSlice[T any](ctx context.Context, iter Iterator[T]) ([]T, error) {
	defer iter.Stop()

	var res []T
	for {
		item, err := iter.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrIteratorDone) {
				return res, nil
			}
			return nil, err
		}
		res = append(res, item)
	}
}
