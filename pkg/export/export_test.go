package export

import (
	"fmt"
	"iter"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/energia/resourcecatalog/pkg/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// trackingIterator records whether Stop was called.
type trackingIterator struct {
	storage.RecordIterator

	mu      sync.Mutex
	stopped int
}

func newTrackingIterator(records []*storage.Record) *trackingIterator {
	return &trackingIterator{RecordIterator: storage.NewStaticRecordIterator(records)}
}

func (it *trackingIterator) Stop() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.stopped++
	it.RecordIterator.Stop()
}

func (it *trackingIterator) stopCount() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.stopped
}

func makeRecords(n int) []*storage.Record {
	records := make([]*storage.Record, 0, n)
	for i := range n {
		records = append(records, &storage.Record{
			ID:          fmt.Sprintf("%06d", i),
			Kind:        storage.RecordKindMeteringPoint,
			CountryCode: "EE",
		})
	}
	return records
}

func recordSeq(n int, err error) iter.Seq2[*storage.Record, error] {
	return func(yield func(*storage.Record, error) bool) {
		for _, r := range makeRecords(n) {
			if !yield(r, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

// chunkErrors flattens joined errors into the chunk failures they carry.
func chunkErrors(err error) []*ChunkPublishError {
	switch e := err.(type) {
	case *ChunkPublishError:
		return []*ChunkPublishError{e}
	case interface{ Unwrap() []error }:
		var res []*ChunkPublishError
		for _, inner := range e.Unwrap() {
			res = append(res, chunkErrors(inner)...)
		}
		return res
	default:
		return nil
	}
}
