package export

import (
	"iter"
	"sync/atomic"

	"github.com/energia/resourcecatalog/pkg/storage"
)

const DefaultChunkSize = 20_000

// Chunk is a bounded slice of records published as one downstream message.
type Chunk struct {
	Index   int
	Records []*storage.Record
}

// Partition groups records into chunks of chunkSize. The chunk of a record is derived from
// processed, which is incremented once per pulled record on the calling goroutine, so a counter
// starting at zero yields chunks 0, 1, 2, ... with only the last one short.
//
// Each chunk owns a freshly allocated buffer and is yielded as soon as it is full. When records
// fails, the pending partial chunk is dropped and the error is yielded.
func Partition(records iter.Seq2[*storage.Record, error], chunkSize int, processed *atomic.Int64) iter.Seq2[Chunk, error] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	size := int64(chunkSize)

	return func(yield func(Chunk, error) bool) {
		var current Chunk
		for record, err := range records {
			if err != nil {
				yield(Chunk{}, err)
				return
			}

			n := processed.Add(1) - 1
			index := int(n / size)
			if current.Records != nil && index != current.Index {
				if !yield(current, nil) {
					return
				}
				current = Chunk{}
			}
			if current.Records == nil {
				current = Chunk{Index: index, Records: make([]*storage.Record, 0, chunkSize)}
			}

			current.Records = append(current.Records, record)

			// last slot of this chunk key
			if (n+1)%size == 0 {
				if !yield(current, nil) {
					return
				}
				current = Chunk{}
			}
		}

		if len(current.Records) > 0 {
			yield(current, nil)
		}
	}
}
