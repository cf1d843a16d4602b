package export

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/energia/resourcecatalog/internal/concurrency"
	"github.com/energia/resourcecatalog/pkg/events"
	"github.com/energia/resourcecatalog/pkg/logger"
)

var exportChunksCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "catalog",
	Name:      "export_chunks_total",
	Help:      "The total number of export chunks handed to the event sink, by outcome.",
}, []string{"outcome"})

// ChunkPublishError reports a chunk the sink did not accept.
type ChunkPublishError struct {
	Index int
	Size  int
	Err   error
}

func (e *ChunkPublishError) Error() string {
	return fmt.Sprintf("publish chunk %d (%d records): %v", e.Index, e.Size, e.Err)
}

func (e *ChunkPublishError) Unwrap() error {
	return e.Err
}

type PublishSummary struct {
	// Chunks is the number of chunks dispatched to workers.
	Chunks    int
	Published int
	Failed    int
	// Cancelled counts dispatched chunks that were never sent because the context was done.
	Cancelled int
}

// Publisher hands chunks to an [events.EventSink] on a bounded pool of workers. Chunks are built
// on the caller's goroutine; dispatch blocks while every worker is busy. Chunks complete in no
// particular order.
type Publisher struct {
	sink           events.EventSink
	maxConcurrency int
	failFast       bool
	logger         logger.Logger
}

type PublisherOption func(*Publisher)

func WithMaxConcurrency(n int) PublisherOption {
	return func(p *Publisher) {
		p.maxConcurrency = n
	}
}

// WithFailFast stops dispatching and cancels in-flight chunks after the first failure. By default
// every chunk is attempted and all failures are reported together.
func WithFailFast(failFast bool) PublisherOption {
	return func(p *Publisher) {
		p.failFast = failFast
	}
}

func WithPublisherLogger(l logger.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = l
	}
}

func NewPublisher(sink events.EventSink, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		sink:           sink,
		maxConcurrency: runtime.GOMAXPROCS(0),
		logger:         logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.maxConcurrency <= 0 {
		p.maxConcurrency = runtime.GOMAXPROCS(0)
	}

	return p
}

// Publish drains chunks and sends every chunk to the sink. processed is only read, to report
// progress. It returns once every dispatched chunk has finished. Chunk failures are returned as
// *ChunkPublishError values joined with the error that stopped chunk production, if any.
func (p *Publisher) Publish(ctx context.Context, chunks iter.Seq2[Chunk, error], processed *atomic.Int64) (PublishSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var workers *pool.ContextPool
	if p.failFast {
		workers = concurrency.NewPool(ctx, p.maxConcurrency)
	} else {
		workers = concurrency.NewCollectingPool(ctx, p.maxConcurrency)
	}

	var summary PublishSummary
	var published, failed, cancelled atomic.Int64
	var produceErr error

	for chunk, err := range chunks {
		if err != nil {
			produceErr = err
			break
		}
		if err := ctx.Err(); err != nil {
			if p.failFast && failed.Load() > 0 {
				break
			}
			produceErr = err
			break
		}

		summary.Chunks++
		workers.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				cancelled.Add(1)
				exportChunksCounter.WithLabelValues("cancelled").Inc()
				return err
			}

			err := p.sink.SendBulkExport(ctx, events.NewRecordPayloads(chunk.Records))
			if err != nil {
				failed.Add(1)
				exportChunksCounter.WithLabelValues("failure").Inc()
				p.logger.ErrorWithContext(ctx, "failed to publish export chunk",
					zap.Int("chunk_index", chunk.Index),
					zap.Int("size", len(chunk.Records)),
					zap.Error(err),
				)
				if p.failFast {
					cancel()
				}
				return &ChunkPublishError{Index: chunk.Index, Size: len(chunk.Records), Err: err}
			}

			published.Add(1)
			exportChunksCounter.WithLabelValues("success").Inc()
			p.logger.InfoWithContext(ctx, "export chunk published",
				zap.Int("chunk_index", chunk.Index),
				zap.Int("size", len(chunk.Records)),
				zap.Int64("processed", processed.Load()),
			)
			return nil
		})
	}

	err := workers.Wait()

	summary.Published = int(published.Load())
	summary.Failed = int(failed.Load())
	summary.Cancelled = int(cancelled.Load())

	return summary, errors.Join(produceErr, err)
}
