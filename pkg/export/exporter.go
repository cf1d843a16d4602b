// Package export streams the whole catalog out of the record store and publishes it downstream
// in fixed-size chunks.
package export

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/energia/resourcecatalog/pkg/events"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
	"github.com/energia/resourcecatalog/pkg/telemetry"
)

var tracer = otel.Tracer("resourcecatalog/pkg/export")

var exportRecordsCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "catalog",
	Name:      "export_records_total",
	Help:      "The total number of records pulled from the cursor by exports.",
})

type ExportSummary struct {
	PublishSummary

	// Records is the number of records pulled from the cursor.
	Records  int64
	Duration time.Duration
}

type Exporter struct {
	reader    storage.RecordReader
	sink      events.EventSink
	chunkSize int
	fetchSize int
	logger    logger.Logger

	publisherOpts []PublisherOption
}

type ExporterOption func(*Exporter)

// WithChunkSize sets the number of records per published chunk.
func WithChunkSize(size int) ExporterOption {
	return func(e *Exporter) {
		e.chunkSize = size
	}
}

// WithFetchSize sets the number of records read from the store per round trip.
func WithFetchSize(size int) ExporterOption {
	return func(e *Exporter) {
		e.fetchSize = size
	}
}

func WithLogger(l logger.Logger) ExporterOption {
	return func(e *Exporter) {
		e.logger = l
	}
}

// WithPublisherOptions configures the publisher used by ExportAllToSink.
func WithPublisherOptions(opts ...PublisherOption) ExporterOption {
	return func(e *Exporter) {
		e.publisherOpts = append(e.publisherOpts, opts...)
	}
}

func NewExporter(reader storage.RecordReader, sink events.EventSink, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		reader:    reader,
		sink:      sink,
		chunkSize: DefaultChunkSize,
		fetchSize: storage.DefaultStreamFetchSize,
		logger:    logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ExportAllToSink streams every record through the partitioner into the sink. The returned summary
// is filled even when an error is returned.
func (e *Exporter) ExportAllToSink(ctx context.Context) (ExportSummary, error) {
	ctx, span := tracer.Start(ctx, "export.ExportAllToSink", trace.WithAttributes(
		attribute.Int("chunk_size", e.chunkSize),
		attribute.Int("fetch_size", e.fetchSize),
	))
	defer span.End()

	start := time.Now()
	e.logger.InfoWithContext(ctx, "starting export",
		zap.Int("chunk_size", e.chunkSize),
		zap.Int("fetch_size", e.fetchSize),
	)

	var summary ExportSummary

	cursor, err := OpenCursor(ctx, e.reader, e.fetchSize)
	if err != nil {
		telemetry.TraceError(span, err)
		return summary, fmt.Errorf("open cursor: %w", err)
	}
	defer cursor.Close()

	var processed atomic.Int64
	chunks := Partition(cursor.Records(ctx), e.chunkSize, &processed)

	publisher := NewPublisher(e.sink, append([]PublisherOption{WithPublisherLogger(e.logger)}, e.publisherOpts...)...)
	summary.PublishSummary, err = publisher.Publish(ctx, chunks, &processed)
	summary.Records = processed.Load()
	summary.Duration = time.Since(start)

	exportRecordsCounter.Add(float64(summary.Records))
	span.SetAttributes(
		attribute.Int64("records", summary.Records),
		attribute.Int("chunks", summary.Chunks),
	)

	if err != nil {
		telemetry.TraceError(span, err)
		e.logger.ErrorWithContext(ctx, "export failed",
			zap.Int64("processed", summary.Records),
			zap.Int("chunks_published", summary.Published),
			zap.Int("chunks_failed", summary.Failed),
			zap.Int("chunks_cancelled", summary.Cancelled),
			zap.Error(err),
		)
		return summary, err
	}

	e.logger.InfoWithContext(ctx, "export complete",
		zap.Int64("processed", summary.Records),
		zap.Int("chunks", summary.Chunks),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// ExportAll reads the whole catalog into memory and maps it to payloads. Memory use grows with the
// size of the store.
func (e *Exporter) ExportAll(ctx context.Context) ([]events.RecordPayload, error) {
	ctx, span := tracer.Start(ctx, "export.ExportAll")
	defer span.End()

	cursor, err := OpenCursor(ctx, e.reader, e.fetchSize)
	if err != nil {
		telemetry.TraceError(span, err)
		return nil, fmt.Errorf("open cursor: %w", err)
	}
	defer cursor.Close()

	var records []*storage.Record
	for record, err := range cursor.Records(ctx) {
		if err != nil {
			telemetry.TraceError(span, err)
			return nil, err
		}
		records = append(records, record)
	}

	exportRecordsCounter.Add(float64(len(records)))
	return events.NewRecordPayloads(records), nil
}
