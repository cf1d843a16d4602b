// Package storage contains the record store interfaces and the catalog data model.
//
//go:generate mockgen -source storage.go -destination ../../internal/mocks/mock_storage.go -package mocks Datastore
package storage

import (
	"context"
)

const (
	DefaultPageSize        = 50
	DefaultStreamFetchSize = 20000
	DefaultWriteBatchSize  = 1000
)

type PaginationOptions struct {
	PageSize int
	// From is the continuation token returned by a previous ReadPage call.
	From string
}

func NewPaginationOptions(ps int32, contToken string) PaginationOptions {
	pageSize := DefaultPageSize
	if ps > 0 {
		pageSize = int(ps)
	}

	return PaginationOptions{
		PageSize: pageSize,
		From:     contToken,
	}
}

// ReadPageFilter narrows a paginated scan. Empty fields are ignored.
type ReadPageFilter struct {
	CountryCode string
	Kind        RecordKind
}

// ReadAllOptions configures the unbounded streaming scan.
type ReadAllOptions struct {
	// FetchSize is the number of records fetched from the backend per round trip.
	FetchSize int
}

type RecordReader interface {
	// ReadRecord returns the record with the given id with its attributes attached.
	// If none is found, it must return ErrNotFound.
	ReadRecord(ctx context.Context, id string) (*Record, error)

	// RecordExists reports whether a record with the given id exists without loading its attributes.
	RecordExists(ctx context.Context, id string) (bool, error)

	// ReadPage returns a page of records matching the filter, ordered by id, and a possibly
	// empty continuation token. Attributes are attached.
	ReadPage(ctx context.Context, filter ReadPageFilter, opts PaginationOptions) ([]*Record, string, error)

	// ReadAll returns an iterator over every record in the store with attributes attached.
	// Records are fetched lazily in pages of opts.FetchSize. The caller must call Stop on the
	// iterator on every exit path.
	// There is NO guarantee that records written after the call are observed.
	ReadAll(ctx context.Context, opts ReadAllOptions) (RecordIterator, error)

	// CountRecords returns the total number of records in the store.
	CountRecords(ctx context.Context) (int64, error)
}

type RecordWriter interface {
	// CreateRecord persists a new record and its attributes. An empty ID is assigned by the store.
	// The returned record carries version 0 and the creation timestamps.
	CreateRecord(ctx context.Context, record *Record) (*Record, error)

	// UpdateRecord replaces the address and attributes of an existing record, provided its stored
	// version equals expectedVersion, and increments the version by exactly one. If the record
	// does not exist it must return ErrNotFound; if the version has moved it must return
	// ErrVersionConflict and leave the record untouched.
	UpdateRecord(ctx context.Context, record *Record, expectedVersion int64) (*Record, error)

	// DeleteRecord removes the record and all of its attributes.
	// If none is found, it must return ErrNotFound.
	DeleteRecord(ctx context.Context, id string) error

	// WriteBatch persists the records and their attributes in a single transaction. Either every
	// record is written or none is. The records passed in are not modified.
	WriteBatch(ctx context.Context, records []*Record) error
}

// PreparedBatchWriter is implemented by stores that can write a batch through prepared
// statements inside an explicitly managed transaction.
type PreparedBatchWriter interface {
	// WriteBatchPrepared persists the records inside one transaction using prepared statements.
	// On any failure the transaction is rolled back and the error returned.
	WriteBatchPrepared(ctx context.Context, records []*Record) error
}

type ReadinessStatus struct {
	// Message is a human-friendly status message for the current datastore status.
	Message string

	IsReady bool
}

// Datastore is the record store consumed by the pipeline and the record commands.
type Datastore interface {
	RecordReader
	RecordWriter
	PreparedBatchWriter

	// IsReady reports whether the datastore is ready to accept traffic.
	IsReady(ctx context.Context) (ReadinessStatus, error)

	// Close closes the datastore and cleans up any residual resources.
	Close()
}
