package sqlcommon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/energia/resourcecatalog/pkg/storage"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(
		WithUsername("catalog"),
		WithPassword("secret"),
		WithMaxOpenConns(10),
		WithMaxIdleConns(5),
		WithConnMaxIdleTime(time.Minute),
		WithConnMaxLifetime(time.Hour),
		WithMetrics(),
	)

	require.NotNil(t, cfg.Logger)
	require.Equal(t, "catalog", cfg.Username)
	require.Equal(t, "secret", cfg.Password)
	require.Equal(t, 10, cfg.MaxOpenConns)
	require.Equal(t, 5, cfg.MaxIdleConns)
	require.Equal(t, time.Minute, cfg.ConnMaxIdleTime)
	require.Equal(t, time.Hour, cfg.ConnMaxLifetime)
	require.True(t, cfg.ExportMetrics)
}

func TestPrepareForInsert(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("assigns_id_and_timestamps", func(t *testing.T) {
		r := &storage.Record{Kind: storage.RecordKindMeteringPoint}
		require.NoError(t, prepareForInsert(r, now))
		require.NotEmpty(t, r.ID)
		require.Equal(t, now, r.CreatedAt)
		require.Equal(t, now, r.UpdatedAt)
	})

	t.Run("keeps_existing_id", func(t *testing.T) {
		r := &storage.Record{ID: "abc"}
		require.NoError(t, prepareForInsert(r, now))
		require.Equal(t, "abc", r.ID)
	})

	t.Run("rejects_duplicate_attributes", func(t *testing.T) {
		r := &storage.Record{Attributes: []storage.Attribute{
			{Code: "A", Kind: storage.AttributeKindChargingPoint},
			{Code: "A", Kind: storage.AttributeKindChargingPoint},
		}}
		err := prepareForInsert(r, now)
		require.ErrorIs(t, err, storage.ErrDuplicateAttribute)
		require.Empty(t, r.ID)
	})
}

func TestRecordValuesMatchColumns(t *testing.T) {
	require.Len(t, recordValues(&storage.Record{}), len(RecordColumns()))
}
