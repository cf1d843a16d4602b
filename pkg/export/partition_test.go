package export

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		records   int
		chunkSize int
		expected  []int
	}{
		{name: "remainder_in_last_chunk", records: 45_000, chunkSize: 20_000, expected: []int{20_000, 20_000, 5_000}},
		{name: "exact_multiple", records: 40, chunkSize: 20, expected: []int{20, 20}},
		{name: "single_short_chunk", records: 3, chunkSize: 20, expected: []int{3}},
		{name: "empty", records: 0, chunkSize: 20, expected: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var processed atomic.Int64

			var sizes []int
			next := 0
			for chunk, err := range Partition(recordSeq(tc.records, nil), tc.chunkSize, &processed) {
				require.NoError(t, err)
				require.Equal(t, next, chunk.Index)
				require.Equal(t, tc.chunkSize, cap(chunk.Records))
				sizes = append(sizes, len(chunk.Records))
				next++
			}

			require.Equal(t, tc.expected, sizes)
			require.Equal(t, int64(tc.records), processed.Load())
		})
	}
}

func TestPartitionYieldsFullChunkBeforePullingMore(t *testing.T) {
	var processed atomic.Int64

	for chunk, err := range Partition(recordSeq(100, nil), 10, &processed) {
		require.NoError(t, err)
		require.Equal(t, 0, chunk.Index)
		break
	}
	require.Equal(t, int64(10), processed.Load())
}

func TestPartitionKeepsRecordOrderWithinChunk(t *testing.T) {
	var processed atomic.Int64

	var ids []string
	for chunk, err := range Partition(recordSeq(7, nil), 3, &processed) {
		require.NoError(t, err)
		for _, r := range chunk.Records {
			ids = append(ids, r.ID)
		}
	}
	require.Equal(t, []string{"000000", "000001", "000002", "000003", "000004", "000005", "000006"}, ids)
}

func TestPartitionStopsOnError(t *testing.T) {
	errCursor := errors.New("cursor failed")
	var processed atomic.Int64

	var sizes []int
	var gotErr error
	for chunk, err := range Partition(recordSeq(25, errCursor), 10, &processed) {
		if err != nil {
			gotErr = err
			continue
		}
		sizes = append(sizes, len(chunk.Records))
	}

	require.ErrorIs(t, gotErr, errCursor)
	require.Equal(t, []int{10, 10}, sizes)
	require.Equal(t, int64(25), processed.Load())
}
