package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticRecordIterator(t *testing.T) {
	expected := []*Record{{ID: "1"}, {ID: "2"}}

	iter := NewStaticRecordIterator(expected)
	defer iter.Stop()

	var actual []*Record
	for {
		r, err := iter.Next(context.Background())
		if err != nil {
			if errors.Is(err, ErrIteratorDone) {
				break
			}
			require.Fail(t, "no error was expected")
		}

		actual = append(actual, r)
	}

	require.Equal(t, expected, actual)
}

func TestStaticIteratorAfterStop(t *testing.T) {
	iter := NewStaticRecordIterator([]*Record{{ID: "1"}})
	iter.Stop()
	iter.Stop()

	_, err := iter.Next(context.Background())
	require.ErrorIs(t, err, ErrIteratorDone)
}

func TestStaticIteratorCancelledContext(t *testing.T) {
	iter := NewStaticRecordIterator([]*Record{{ID: "1"}})
	defer iter.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := iter.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestToSlice(t *testing.T) {
	records, err := ToSlice(context.Background(), NewStaticRecordIterator([]*Record{{ID: "a"}, {ID: "b"}}))
	require.NoError(t, err)
	require.Len(t, records, 2)

	records, err = ToSlice(context.Background(), NewStaticRecordIterator(nil))
	require.NoError(t, err)
	require.Empty(t, records)
}
