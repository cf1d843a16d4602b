// Package redisqueue publishes catalog events as JSON messages on rmq queues backed by Redis.
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/energia/resourcecatalog/pkg/events"
	"github.com/energia/resourcecatalog/pkg/logger"
)

var tracer = otel.Tracer("resourcecatalog/pkg/events/redisqueue")

const (
	DefaultResourceEventsQueue = "resource-events"
	DefaultBulkExportQueue     = "resource-bulk-export"

	defaultMaxElapsedTime = 10 * time.Second
)

// QueueOpener is the part of rmq.Connection the sink needs.
type QueueOpener interface {
	OpenQueue(name string) (rmq.Queue, error)
}

// Sink is an [events.EventSink] that publishes one message per notification and one message per export chunk.
type Sink struct {
	resourceEvents rmq.Queue
	bulkExport     rmq.Queue
	logger         logger.Logger
	newBackOff     func() backoff.BackOff

	resourceEventsQueue string
	bulkExportQueue     string
}

var _ events.EventSink = (*Sink)(nil)

type SinkOption func(*Sink)

func WithLogger(l logger.Logger) SinkOption {
	return func(s *Sink) {
		s.logger = l
	}
}

// WithQueueNames overrides the names of the notification and export queues.
func WithQueueNames(resourceEvents, bulkExport string) SinkOption {
	return func(s *Sink) {
		s.resourceEventsQueue = resourceEvents
		s.bulkExportQueue = bulkExport
	}
}

// WithBackOff sets the retry policy applied to each publish. A fresh policy is requested per message.
func WithBackOff(newBackOff func() backoff.BackOff) SinkOption {
	return func(s *Sink) {
		s.newBackOff = newBackOff
	}
}

func NewSink(conn QueueOpener, opts ...SinkOption) (*Sink, error) {
	s := &Sink{
		logger:              logger.NewNoopLogger(),
		resourceEventsQueue: DefaultResourceEventsQueue,
		bulkExportQueue:     DefaultBulkExportQueue,
		newBackOff: func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.MaxElapsedTime = defaultMaxElapsedTime
			return policy
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.resourceEvents, err = conn.OpenQueue(s.resourceEventsQueue)
	if err != nil {
		return nil, fmt.Errorf("open queue %s: %w", s.resourceEventsQueue, err)
	}
	s.bulkExport, err = conn.OpenQueue(s.bulkExportQueue)
	if err != nil {
		return nil, fmt.Errorf("open queue %s: %w", s.bulkExportQueue, err)
	}

	return s, nil
}

func (s *Sink) SendResourceEvent(ctx context.Context, event events.ResourceEvent) error {
	ctx, span := tracer.Start(ctx, "redisqueue.SendResourceEvent", trace.WithAttributes(
		attribute.String("event_type", string(event.EventType)),
		attribute.String("resource_id", event.ResourceID),
	))
	defer span.End()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal resource event: %w", err)
	}

	return s.publish(ctx, s.resourceEvents, s.resourceEventsQueue, body)
}

func (s *Sink) SendBulkExport(ctx context.Context, payloads []events.RecordPayload) error {
	ctx, span := tracer.Start(ctx, "redisqueue.SendBulkExport", trace.WithAttributes(
		attribute.Int("size", len(payloads)),
	))
	defer span.End()

	body, err := json.Marshal(payloads)
	if err != nil {
		return fmt.Errorf("marshal bulk export: %w", err)
	}

	return s.publish(ctx, s.bulkExport, s.bulkExportQueue, body)
}

func (s *Sink) publish(ctx context.Context, queue rmq.Queue, name string, body []byte) error {
	attempt := 1
	err := backoff.Retry(func() error {
		err := queue.PublishBytes(body)
		if err != nil {
			s.logger.WarnWithContext(ctx, "publish failed",
				zap.String("queue", name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			attempt++
		}
		return err
	}, backoff.WithContext(s.newBackOff(), ctx))
	if err != nil {
		return fmt.Errorf("publish to %s: %w", name, err)
	}
	return nil
}

// Connect pings Redis and opens an rmq connection on top of the client.
func Connect(ctx context.Context, tag string, opts *redis.Options) (*redis.Client, rmq.Connection, error) {
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	conn, err := rmq.OpenConnectionWithRedisClient(tag, client, nil)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("open rmq connection: %w", err)
	}

	return client, conn, nil
}
