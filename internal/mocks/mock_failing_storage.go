package mocks

import (
	"context"
	"sync"

	"github.com/energia/resourcecatalog/pkg/storage"
)

// failingBatchDatastore is a proxy to the actual ds except the nth batch write returns err
// without reaching the underlying store.
type failingBatchDatastore struct {
	storage.Datastore

	mu     sync.Mutex
	calls  int
	failOn int
	err    error
}

// NewFailingBatchDatastore returns a wrapper of a datastore whose failOn-th batch write (1-based, counting
// both WriteBatch and WriteBatchPrepared) fails with err.
func NewFailingBatchDatastore(ds storage.Datastore, failOn int, err error) storage.Datastore {
	return &failingBatchDatastore{
		Datastore: ds,
		failOn:    failOn,
		err:       err,
	}
}

func (m *failingBatchDatastore) shouldFail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.calls == m.failOn
}

func (m *failingBatchDatastore) WriteBatch(ctx context.Context, records []*storage.Record) error {
	if m.shouldFail() {
		return m.err
	}
	return m.Datastore.WriteBatch(ctx, records)
}

func (m *failingBatchDatastore) WriteBatchPrepared(ctx context.Context, records []*storage.Record) error {
	if m.shouldFail() {
		return m.err
	}
	return m.Datastore.WriteBatchPrepared(ctx, records)
}
