// Package events defines the downstream channel that receives record change notifications
// and bulk export chunks.
//
//go:generate mockgen -source events.go -destination ../../internal/mocks/mock_events.go -package mocks EventSink
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	ResourceCreated EventType = "RESOURCE_CREATED"
	ResourceUpdated EventType = "RESOURCE_UPDATED"
	ResourceDeleted EventType = "RESOURCE_DELETED"
)

// ResourceEvent is the notification published after a single record changes.
type ResourceEvent struct {
	EventID    string        `json:"eventId"`
	EventType  EventType     `json:"eventType"`
	ResourceID string        `json:"resourceId"`
	Resource   RecordPayload `json:"resource"`
	Timestamp  time.Time     `json:"timestamp"`
}

// NewResourceEvent builds an event with a fresh ULID and the current time.
func NewResourceEvent(eventType EventType, resourceID string, resource RecordPayload) ResourceEvent {
	return ResourceEvent{
		EventID:    ulid.Make().String(),
		EventType:  eventType,
		ResourceID: resourceID,
		Resource:   resource,
		Timestamp:  time.Now().UTC(),
	}
}

// EventSink is the downstream channel. Delivery is at-most-once from the caller's point of view:
// callers do not retry, and implementations may or may not retry internally.
type EventSink interface {
	// SendResourceEvent publishes a single record change notification.
	SendResourceEvent(ctx context.Context, event ResourceEvent) error

	// SendBulkExport publishes one export chunk as a single message.
	SendBulkExport(ctx context.Context, payloads []RecordPayload) error
}
