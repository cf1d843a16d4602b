package sqlcommon

import (
	"context"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/energia/resourcecatalog/pkg/storage"
)

// SQLRecordIterator is a struct that implements the storage.RecordIterator
// interface for streaming every record of the record table.
//
// Records are read in keyset pages ordered by id. Each page is fetched with its own query so no
// connection or transaction is held between calls to Next.
type SQLRecordIterator struct {
	dbInfo    *DBInfo
	fetchSize int

	buf     []*storage.Record // GUARDED_BY(mu)
	lastID  string            // GUARDED_BY(mu)
	drained bool              // GUARDED_BY(mu)
	stopped bool              // GUARDED_BY(mu)
	mu      sync.Mutex
}

// Ensures that SQLRecordIterator implements the RecordIterator interface.
var _ storage.RecordIterator = (*SQLRecordIterator)(nil)

// NewSQLRecordIterator returns a SQL record iterator fetching fetchSize records per round trip.
func NewSQLRecordIterator(dbInfo *DBInfo, fetchSize int) *SQLRecordIterator {
	if fetchSize <= 0 {
		fetchSize = storage.DefaultStreamFetchSize
	}
	return &SQLRecordIterator{
		dbInfo:    dbInfo,
		fetchSize: fetchSize,
	}
}

func (t *SQLRecordIterator) fetchPage(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "sqlcommon.fetchPage", trace.WithAttributes(
		attribute.Int("fetch_size", t.fetchSize),
	))
	defer span.End()

	sb := t.dbInfo.stbl.
		Select(recordColumns...).
		From("record").
		OrderBy("id").
		Limit(uint64(t.fetchSize))
	if t.lastID != "" {
		sb = sb.Where(sq.Gt{"id": t.lastID})
	}

	records, err := queryRecords(ctx, t.dbInfo, sb)
	if err != nil {
		return err
	}

	if len(records) < t.fetchSize {
		t.drained = true
	}
	if len(records) == 0 {
		return nil
	}

	// attributes of a page are exactly those whose record_id falls in (lastID, last id of the page]
	where := sq.And{sq.LtOrEq{"record_id": records[len(records)-1].ID}}
	if t.lastID != "" {
		where = append(where, sq.Gt{"record_id": t.lastID})
	}
	if err := attachAttributes(ctx, t.dbInfo, records, where); err != nil {
		return err
	}

	t.lastID = records[len(records)-1].ID
	t.buf = records
	return nil
}

// Next will return the next available record.
func (t *SQLRecordIterator) Next(ctx context.Context) (*storage.Record, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return nil, storage.ErrIteratorDone
	}

	if len(t.buf) == 0 {
		if t.drained {
			return nil, storage.ErrIteratorDone
		}
		if err := t.fetchPage(ctx); err != nil {
			return nil, err
		}
		if len(t.buf) == 0 {
			return nil, storage.ErrIteratorDone
		}
	}

	next := t.buf[0]
	t.buf[0] = nil
	t.buf = t.buf[1:]
	return next, nil
}

// Stop terminates iteration.
func (t *SQLRecordIterator) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.buf = nil
}
