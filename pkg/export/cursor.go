package export

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/energia/resourcecatalog/pkg/storage"
)

var ErrCursorConsumed = errors.New("cursor has already been consumed")

// Cursor is a forward-only, non-restartable stream over every record in the store.
// Close must be called on every exit path; it is safe to call more than once.
type Cursor struct {
	iter storage.RecordIterator

	mu       sync.Mutex
	consumed bool
	closed   bool
}

// OpenCursor starts a lazy scan of reader fetching fetchSize records per round trip.
func OpenCursor(ctx context.Context, reader storage.RecordReader, fetchSize int) (*Cursor, error) {
	if fetchSize <= 0 {
		fetchSize = storage.DefaultStreamFetchSize
	}

	it, err := reader.ReadAll(ctx, storage.ReadAllOptions{FetchSize: fetchSize})
	if err != nil {
		return nil, err
	}

	return &Cursor{iter: it}, nil
}

// Records returns the records of the cursor. The sequence can be ranged over once; a second call
// yields ErrCursorConsumed. The cursor is closed when the sequence ends, fails or the consumer
// stops early.
func (c *Cursor) Records(ctx context.Context) iter.Seq2[*storage.Record, error] {
	return func(yield func(*storage.Record, error) bool) {
		c.mu.Lock()
		consumed := c.consumed
		c.consumed = true
		c.mu.Unlock()

		if consumed {
			yield(nil, ErrCursorConsumed)
			return
		}

		defer c.Close()

		for {
			record, err := c.iter.Next(ctx)
			if err != nil {
				if errors.Is(err, storage.ErrIteratorDone) {
					return
				}
				yield(nil, err)
				return
			}

			if !yield(record, nil) {
				return
			}
		}
	}
}

func (c *Cursor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.iter.Stop()
}
