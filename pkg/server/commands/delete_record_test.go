package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/energia/resourcecatalog/internal/mocks"
	"github.com/energia/resourcecatalog/pkg/events"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
	"github.com/energia/resourcecatalog/pkg/storage/memory"
)

func TestDeleteRecord(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)

	ds := memory.New()
	_, err := ds.CreateRecord(ctx, newRecord())
	require.NoError(t, err)

	sink.EXPECT().SendResourceEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event events.ResourceEvent) error {
			require.Equal(t, events.ResourceDeleted, event.EventType)
			require.Equal(t, "rec-1", event.Resource.ID)
			require.Equal(t, "Tallinn", event.Resource.Address.City)
			require.Len(t, event.Resource.Attributes, 1)
			return nil
		})

	cmd := NewDeleteRecordCommand(ds, sink, logger.NewNoopLogger())
	require.NoError(t, cmd.Execute(ctx, "rec-1"))

	_, err = ds.ReadRecord(ctx, "rec-1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	t.Run("missing_record", func(t *testing.T) {
		require.ErrorIs(t, cmd.Execute(ctx, "rec-1"), storage.ErrNotFound)
	})
}

func TestDeleteRecordAbsorbsEventFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)
	sink.EXPECT().SendResourceEvent(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	ds := memory.New()
	_, err := ds.CreateRecord(ctx, newRecord())
	require.NoError(t, err)

	l, logs := logger.NewObserverLogger("error")
	require.NoError(t, NewDeleteRecordCommand(ds, sink, l).Execute(ctx, "rec-1"))
	require.Equal(t, 1, logs.FilterMessage("failed to publish resource event").Len())
}
