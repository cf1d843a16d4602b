package export

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/energia/resourcecatalog/internal/mocks"
	"github.com/energia/resourcecatalog/pkg/events"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
)

var errSink = errors.New("sink unavailable")

func chunksOf(n, size int, err error) (iter.Seq2[Chunk, error], *atomic.Int64) {
	processed := &atomic.Int64{}
	return Partition(recordSeq(n, err), size, processed), processed
}

func TestPublishSendsEveryChunk(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)

	var mu sync.Mutex
	var sizes []int
	sink.EXPECT().SendBulkExport(gomock.Any(), gomock.Any()).Times(3).
		DoAndReturn(func(_ context.Context, payloads []events.RecordPayload) error {
			mu.Lock()
			defer mu.Unlock()
			sizes = append(sizes, len(payloads))
			return nil
		})

	l, logs := logger.NewObserverLogger("info")
	chunks, processed := chunksOf(45, 20, nil)
	summary, err := NewPublisher(sink, WithMaxConcurrency(2), WithPublisherLogger(l)).Publish(context.Background(), chunks, processed)
	require.NoError(t, err)
	require.Equal(t, PublishSummary{Chunks: 3, Published: 3}, summary)
	require.ElementsMatch(t, []int{20, 20, 5}, sizes)
	require.Equal(t, 3, logs.FilterMessage("export chunk published").Len())
}

func TestPublishBoundsConcurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)

	var inFlight, peak atomic.Int64
	sink.EXPECT().SendBulkExport(gomock.Any(), gomock.Any()).Times(10).
		DoAndReturn(func(context.Context, []events.RecordPayload) error {
			current := inFlight.Add(1)
			for {
				p := peak.Load()
				if current <= p || peak.CompareAndSwap(p, current) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		})

	chunks, processed := chunksOf(100, 10, nil)
	summary, err := NewPublisher(sink, WithMaxConcurrency(3)).Publish(context.Background(), chunks, processed)
	require.NoError(t, err)
	require.Equal(t, 10, summary.Published)
	require.LessOrEqual(t, peak.Load(), int64(3))
}

func TestPublishCollectsEveryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)

	// chunks starting at record 10 and 30 fail
	sink.EXPECT().SendBulkExport(gomock.Any(), gomock.Any()).Times(5).
		DoAndReturn(func(_ context.Context, payloads []events.RecordPayload) error {
			if payloads[0].ID == "000010" || payloads[0].ID == "000030" {
				return errSink
			}
			return nil
		})

	l, logs := logger.NewObserverLogger("error")
	chunks, processed := chunksOf(45, 10, nil)
	summary, err := NewPublisher(sink, WithMaxConcurrency(2), WithPublisherLogger(l)).Publish(context.Background(), chunks, processed)
	require.ErrorIs(t, err, errSink)
	require.Equal(t, PublishSummary{Chunks: 5, Published: 3, Failed: 2}, summary)
	require.Equal(t, int64(45), processed.Load())
	require.Equal(t, 2, logs.FilterMessage("failed to publish export chunk").Len())

	failures := chunkErrors(err)
	require.Len(t, failures, 2)
	indexes := []int{failures[0].Index, failures[1].Index}
	require.ElementsMatch(t, []int{1, 3}, indexes)
	for _, f := range failures {
		require.Equal(t, 10, f.Size)
	}
}

func TestPublishFailFast(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)
	sink.EXPECT().SendBulkExport(gomock.Any(), gomock.Any()).Times(1).Return(errSink)

	chunks, processed := chunksOf(100, 10, nil)
	summary, err := NewPublisher(sink, WithMaxConcurrency(1), WithFailFast(true)).Publish(context.Background(), chunks, processed)
	require.ErrorIs(t, err, errSink)

	var chunkErr *ChunkPublishError
	require.ErrorAs(t, err, &chunkErr)
	require.Equal(t, 0, chunkErr.Index)

	require.Zero(t, summary.Published)
	require.Less(t, summary.Chunks, 10)
	require.Less(t, processed.Load(), int64(100))
}

func TestPublishFailFastCountsUnsentChunksAsCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)

	records := makeRecords(3)
	dispatching := make(chan struct{})
	chunks := func(yield func(Chunk, error) bool) {
		for i, r := range records {
			if i == len(records)-1 {
				close(dispatching)
			}
			if !yield(Chunk{Index: i, Records: []*storage.Record{r}}, nil) {
				return
			}
		}
	}

	sink.EXPECT().SendBulkExport(gomock.Any(), gomock.Any()).Times(2).
		DoAndReturn(func(ctx context.Context, payloads []events.RecordPayload) error {
			if payloads[0].ID == "000000" {
				<-dispatching
				time.Sleep(20 * time.Millisecond)
				return errSink
			}
			<-ctx.Done()
			return nil
		})

	l, logs := logger.NewObserverLogger("error")
	summary, err := NewPublisher(sink, WithMaxConcurrency(2), WithFailFast(true), WithPublisherLogger(l)).
		Publish(context.Background(), chunks, &atomic.Int64{})
	require.ErrorIs(t, err, errSink)
	require.Equal(t, PublishSummary{Chunks: 3, Published: 1, Failed: 1, Cancelled: 1}, summary)
	require.Equal(t, 1, logs.FilterMessage("failed to publish export chunk").Len())
}

func TestPublishStopsOnCursorError(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)
	sink.EXPECT().SendBulkExport(gomock.Any(), gomock.Any()).Times(2).Return(nil)

	errCursor := errors.New("cursor failed")
	chunks, processed := chunksOf(25, 10, errCursor)
	summary, err := NewPublisher(sink).Publish(context.Background(), chunks, processed)
	require.ErrorIs(t, err, errCursor)
	require.Equal(t, PublishSummary{Chunks: 2, Published: 2}, summary)
	require.Empty(t, chunkErrors(err))
}

func TestPublishStopsWhenContextIsCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	sink.EXPECT().SendBulkExport(gomock.Any(), gomock.Any()).Times(1).
		DoAndReturn(func(context.Context, []events.RecordPayload) error {
			cancel()
			return nil
		})

	chunks, processed := chunksOf(100, 10, nil)
	summary, err := NewPublisher(sink, WithMaxConcurrency(1)).Publish(ctx, chunks, processed)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, summary.Published)
}
