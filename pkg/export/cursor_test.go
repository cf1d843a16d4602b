package export

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/energia/resourcecatalog/internal/mocks"
	"github.com/energia/resourcecatalog/pkg/storage"
)

func TestCursorYieldsEveryRecordOnce(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockRecordReader(ctrl)

	it := newTrackingIterator(makeRecords(5))
	reader.EXPECT().ReadAll(gomock.Any(), storage.ReadAllOptions{FetchSize: 3}).Return(it, nil)

	cursor, err := OpenCursor(ctx, reader, 3)
	require.NoError(t, err)

	var ids []string
	for record, err := range cursor.Records(ctx) {
		require.NoError(t, err)
		ids = append(ids, record.ID)
	}
	require.Equal(t, []string{"000000", "000001", "000002", "000003", "000004"}, ids)
	require.Equal(t, 1, it.stopCount())

	for _, err := range cursor.Records(ctx) {
		require.ErrorIs(t, err, ErrCursorConsumed)
	}

	cursor.Close()
	cursor.Close()
	require.Equal(t, 1, it.stopCount())
}

func TestCursorDefaultFetchSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockRecordReader(ctrl)
	reader.EXPECT().
		ReadAll(gomock.Any(), storage.ReadAllOptions{FetchSize: storage.DefaultStreamFetchSize}).
		Return(newTrackingIterator(nil), nil)

	cursor, err := OpenCursor(context.Background(), reader, 0)
	require.NoError(t, err)
	cursor.Close()
}

func TestCursorClosesOnEarlyBreak(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockRecordReader(ctrl)

	it := newTrackingIterator(makeRecords(10))
	reader.EXPECT().ReadAll(gomock.Any(), gomock.Any()).Return(it, nil)

	cursor, err := OpenCursor(ctx, reader, 10)
	require.NoError(t, err)

	for range cursor.Records(ctx) {
		break
	}
	require.Equal(t, 1, it.stopCount())
}

func TestCursorPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	errRead := errors.New("connection lost")

	t.Run("open", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reader := mocks.NewMockRecordReader(ctrl)
		reader.EXPECT().ReadAll(gomock.Any(), gomock.Any()).Return(nil, errRead)

		_, err := OpenCursor(ctx, reader, 10)
		require.ErrorIs(t, err, errRead)
	})

	t.Run("next", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reader := mocks.NewMockRecordReader(ctrl)
		reader.EXPECT().ReadAll(gomock.Any(), gomock.Any()).Return(mocks.NewErrorRecordIterator(makeRecords(2), errRead), nil)

		cursor, err := OpenCursor(ctx, reader, 10)
		require.NoError(t, err)
		defer cursor.Close()

		var read int
		var gotErr error
		for record, err := range cursor.Records(ctx) {
			if err != nil {
				gotErr = err
				continue
			}
			require.NotNil(t, record)
			read++
		}
		require.Equal(t, 2, read)
		require.ErrorIs(t, gotErr, errRead)
	})
}
