package commands

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/energia/resourcecatalog/pkg/storage"
	"github.com/energia/resourcecatalog/pkg/storage/memory"
)

func TestListRecords(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()

	records := make([]*storage.Record, 0, 6)
	for i := range 6 {
		kind := storage.RecordKindMeteringPoint
		country := "EE"
		if i%2 == 1 {
			kind = storage.RecordKindConnectionPoint
			country = "FI"
		}
		records = append(records, &storage.Record{ID: fmt.Sprintf("rec-%d", i), Kind: kind, CountryCode: country})
	}
	require.NoError(t, ds.WriteBatch(ctx, records))

	q := NewListRecordsQuery(ds)

	t.Run("filters_by_country_and_kind", func(t *testing.T) {
		resp, err := q.Execute(ctx, ListRecordsRequest{CountryCode: "FI", Kind: "CONNECTION_POINT"})
		require.NoError(t, err)
		require.Len(t, resp.Records, 3)
		require.Empty(t, resp.ContinuationToken)
	})

	t.Run("pages_through_results", func(t *testing.T) {
		var ids []string
		token := ""
		for {
			resp, err := q.Execute(ctx, ListRecordsRequest{PageSize: 4, ContinuationToken: token})
			require.NoError(t, err)
			for _, r := range resp.Records {
				ids = append(ids, r.ID)
			}
			if resp.ContinuationToken == "" {
				break
			}
			token = resp.ContinuationToken
		}
		require.Equal(t, []string{"rec-0", "rec-1", "rec-2", "rec-3", "rec-4", "rec-5"}, ids)
	})

	t.Run("rejects_unknown_kind", func(t *testing.T) {
		_, err := q.Execute(ctx, ListRecordsRequest{Kind: "metering_point"})
		var invalid *InvalidArgumentError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("rejects_invalid_token", func(t *testing.T) {
		_, err := q.Execute(ctx, ListRecordsRequest{ContinuationToken: "not-a-token"})
		require.ErrorIs(t, err, storage.ErrInvalidContinuationToken)
	})
}
