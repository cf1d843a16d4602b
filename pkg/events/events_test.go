package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
)

func testRecord() *storage.Record {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &storage.Record{
		ID:          "0b9e3c7a-1c2d-4e5f-8a9b-0c1d2e3f4a5b",
		Kind:        storage.RecordKindConnectionPoint,
		CountryCode: "FI",
		Address: storage.Address{
			StreetAddress: "Generated Street 7",
			City:          "Turku",
			PostalCode:    "00008",
			CountryCode:   "FI",
		},
		Attributes: []storage.Attribute{
			{Code: "GEN07", Kind: storage.AttributeKindChargingPoint, Value: "Generated_7"},
			{Code: "GEN08", Kind: storage.AttributeKindConnectionPointStatus, Value: "Generated_8"},
		},
		Version:   3,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestNewRecordPayloadJSON(t *testing.T) {
	payload := NewRecordPayload(testRecord())

	b, err := json.Marshal(payload)
	require.NoError(t, err)

	doc := gjson.ParseBytes(b)
	require.Equal(t, "0b9e3c7a-1c2d-4e5f-8a9b-0c1d2e3f4a5b", doc.Get("id").String())
	require.Equal(t, "CONNECTION_POINT", doc.Get("kind").String())
	require.Equal(t, "FI", doc.Get("countryCode").String())
	require.Equal(t, "Turku", doc.Get("address.city").String())
	require.Equal(t, "00008", doc.Get("address.postalCode").String())
	require.Equal(t, int64(2), doc.Get("attributes.#").Int())
	require.Equal(t, "GEN08", doc.Get("attributes.1.code").String())
	require.Equal(t, "CONNECTION_POINT_STATUS", doc.Get("attributes.1.kind").String())
	require.Equal(t, int64(3), doc.Get("version").Int())
	require.Equal(t, "2024-03-01T10:00:00Z", doc.Get("createdAt").String())
}

func TestNewRecordPayloadsKeepsOrder(t *testing.T) {
	a := testRecord()
	b := testRecord()
	b.ID = "second"

	payloads := NewRecordPayloads([]*storage.Record{a, b})
	require.Len(t, payloads, 2)
	require.Equal(t, a.ID, payloads[0].ID)
	require.Equal(t, "second", payloads[1].ID)

	require.Empty(t, NewRecordPayloads(nil))

	empty := NewRecordPayload(&storage.Record{ID: "x"})
	b2, err := json.Marshal(empty)
	require.NoError(t, err)
	require.True(t, gjson.GetBytes(b2, "attributes").IsArray())
}

func TestNewResourceEvent(t *testing.T) {
	event := NewResourceEvent(ResourceUpdated, "abc", NewRecordPayload(testRecord()))

	_, err := ulid.Parse(event.EventID)
	require.NoError(t, err)
	require.Equal(t, ResourceUpdated, event.EventType)
	require.Equal(t, "abc", event.ResourceID)
	require.False(t, event.Timestamp.IsZero())

	b, err := json.Marshal(event)
	require.NoError(t, err)
	require.Equal(t, "RESOURCE_UPDATED", gjson.GetBytes(b, "eventType").String())
	require.Equal(t, "Turku", gjson.GetBytes(b, "resource.address.city").String())
}

func TestLogSink(t *testing.T) {
	l, logs := logger.NewObserverLogger("info")
	sink := NewLogSink(l)

	require.NoError(t, sink.SendResourceEvent(context.Background(), NewResourceEvent(ResourceCreated, "abc", RecordPayload{})))
	require.NoError(t, sink.SendBulkExport(context.Background(), make([]RecordPayload, 3)))

	require.Equal(t, 1, logs.FilterMessage("resource event").Len())
	chunkLogs := logs.FilterMessage("bulk export chunk").All()
	require.Len(t, chunkLogs, 1)
	require.Equal(t, int64(3), chunkLogs[0].ContextMap()["size"])
}
