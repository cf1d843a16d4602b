// Package generator fills the record store with synthetic records up to a target size using
// batched transactional writes.
package generator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/energia/resourcecatalog/internal/seq"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
	"github.com/energia/resourcecatalog/pkg/telemetry"
)

var tracer = otel.Tracer("resourcecatalog/pkg/generator")

var (
	generatedRecordsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "generated_records_total",
		Help:      "The total number of synthetic records committed by the generator.",
	}, []string{"strategy"})

	batchDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:                       "catalog",
		Name:                            "generate_batch_duration_seconds",
		Help:                            "The time taken to write one generated batch.",
		Buckets:                         prometheus.DefBuckets,
		NativeHistogramBucketFactor:     1.1,
		NativeHistogramMaxBucketNumber:  100,
		NativeHistogramMinResetDuration: time.Hour,
	}, []string{"strategy", "outcome"})
)

const (
	DefaultBatchSize        = storage.DefaultWriteBatchSize
	DefaultProgressInterval = 10_000
)

var (
	ErrInvalidTarget       = errors.New("target total must not be negative")
	ErrStrategyUnsupported = errors.New("write strategy is not supported by the record store")
)

// Strategy selects how a batch reaches the record store.
type Strategy string

const (
	// StrategyBatchSave writes each batch with RecordWriter.WriteBatch.
	StrategyBatchSave Strategy = "batch-save"
	// StrategyPreparedStatement writes each batch with PreparedBatchWriter.WriteBatchPrepared.
	StrategyPreparedStatement Strategy = "prepared"
)

// BatchWriteError reports the batch that could not be committed. Batches before it stay committed.
type BatchWriteError struct {
	// Batch is the 1-based number of the failed batch within the run.
	Batch int
	// Offset is the loop index of the first record in the failed batch.
	Offset int64
	Err    error
}

func (e *BatchWriteError) Error() string {
	return fmt.Sprintf("write batch %d at offset %d: %v", e.Batch, e.Offset, e.Err)
}

func (e *BatchWriteError) Unwrap() error {
	return e.Err
}

// RecordStore is the part of the datastore the generator writes through.
type RecordStore interface {
	CountRecords(ctx context.Context) (int64, error)
	WriteBatch(ctx context.Context, records []*storage.Record) error
}

type GenerateResult struct {
	// Existing is the number of records present before the run.
	Existing int64
	// Generated is the number of records committed by the run.
	Generated int64
	// Total is the record count read back after the run.
	Total   int64
	Batches int
}

type Generator struct {
	store            RecordStore
	batchSize        int
	progressInterval int64
	strategy         Strategy
	logger           logger.Logger
}

type GeneratorOption func(*Generator)

func WithBatchSize(size int) GeneratorOption {
	return func(g *Generator) {
		g.batchSize = size
	}
}

func WithProgressInterval(interval int64) GeneratorOption {
	return func(g *Generator) {
		g.progressInterval = interval
	}
}

func WithStrategy(strategy Strategy) GeneratorOption {
	return func(g *Generator) {
		g.strategy = strategy
	}
}

func WithLogger(l logger.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = l
	}
}

func NewGenerator(store RecordStore, opts ...GeneratorOption) *Generator {
	g := &Generator{
		store:            store,
		batchSize:        DefaultBatchSize,
		progressInterval: DefaultProgressInterval,
		strategy:         StrategyBatchSave,
		logger:           logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.batchSize <= 0 {
		g.batchSize = DefaultBatchSize
	}
	if g.progressInterval <= 0 {
		g.progressInterval = DefaultProgressInterval
	}

	return g
}

type batchWriteFn func(ctx context.Context, records []*storage.Record) error

func (g *Generator) writer() (batchWriteFn, error) {
	switch g.strategy {
	case StrategyBatchSave:
		return g.store.WriteBatch, nil
	case StrategyPreparedStatement:
		prepared, ok := g.store.(storage.PreparedBatchWriter)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrStrategyUnsupported, g.strategy)
		}
		return prepared.WriteBatchPrepared, nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy '%s'", ErrStrategyUnsupported, g.strategy)
	}
}

// Generate tops the store up to targetTotal records. It does nothing when the store already holds
// at least targetTotal records. Generation stops at the first failed batch and returns a
// *BatchWriteError; the returned result still counts the batches committed before it.
// The context is only checked between batches.
func (g *Generator) Generate(ctx context.Context, targetTotal int64) (GenerateResult, error) {
	ctx, span := tracer.Start(ctx, "generator.Generate", trace.WithAttributes(
		attribute.Int64("target_total", targetTotal),
		attribute.String("strategy", string(g.strategy)),
	))
	defer span.End()

	var result GenerateResult

	if targetTotal < 0 {
		return result, fmt.Errorf("%w: %d", ErrInvalidTarget, targetTotal)
	}

	write, err := g.writer()
	if err != nil {
		telemetry.TraceError(span, err)
		return result, err
	}

	current, err := g.store.CountRecords(ctx)
	if err != nil {
		telemetry.TraceError(span, err)
		return result, fmt.Errorf("count records: %w", err)
	}
	result.Existing = current
	result.Total = current

	if current >= targetTotal {
		g.logger.InfoWithContext(ctx, "dataset already exists",
			zap.Int64("existing", current),
			zap.Int64("target_total", targetTotal),
		)
		return result, nil
	}

	missing := targetTotal - current
	g.logger.InfoWithContext(ctx, "generating records",
		zap.Int64("existing", current),
		zap.Int64("missing", missing),
		zap.Int("batch_size", g.batchSize),
		zap.String("strategy", string(g.strategy)),
	)

	reader := seq.NewReader(SyntheticRecords(missing))
	defer reader.Close()

	buf := make([]*storage.Record, g.batchSize)
	for {
		n := reader.Read(buf)
		if n == 0 {
			break
		}

		if err := ctx.Err(); err != nil {
			telemetry.TraceError(span, err)
			return result, err
		}

		batch := buf[:n]
		if err := g.flush(ctx, write, batch); err != nil {
			err = &BatchWriteError{Batch: result.Batches + 1, Offset: result.Generated, Err: err}
			telemetry.TraceError(span, err)
			g.logger.ErrorWithContext(ctx, "batch write failed",
				zap.Int("batch", result.Batches+1),
				zap.Int64("committed", result.Generated),
				zap.Error(err),
			)
			return result, err
		}

		before := result.Generated
		result.Generated += int64(n)
		result.Batches++

		if result.Generated/g.progressInterval > before/g.progressInterval {
			g.logger.InfoWithContext(ctx, "generation progress",
				zap.Int64("generated", result.Generated),
				zap.Int64("missing", missing),
			)
		}

		clear(batch)
	}

	total, err := g.store.CountRecords(ctx)
	if err != nil {
		telemetry.TraceError(span, err)
		return result, fmt.Errorf("count records: %w", err)
	}
	result.Total = total

	span.SetAttributes(attribute.Int64("generated", result.Generated))
	g.logger.InfoWithContext(ctx, "generation complete",
		zap.Int64("generated", result.Generated),
		zap.Int("batches", result.Batches),
		zap.Int64("total", total),
	)

	return result, nil
}

func (g *Generator) flush(ctx context.Context, write batchWriteFn, batch []*storage.Record) error {
	start := time.Now()
	err := write(ctx, batch)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	batchDurationHistogram.WithLabelValues(string(g.strategy), outcome).Observe(time.Since(start).Seconds())

	if err == nil {
		generatedRecordsCounter.WithLabelValues(string(g.strategy)).Add(float64(len(batch)))
	}
	return err
}

// SyntheticRecords yields n synthetic records built from loop indexes 0 through n-1.
func SyntheticRecords(n int64) iter.Seq[*storage.Record] {
	return func(yield func(*storage.Record) bool) {
		for i := int64(0); i < n; i++ {
			if !yield(SyntheticRecord(i)) {
				return
			}
		}
	}
}
