package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewPoolStopsOnFirstError(t *testing.T) {
	errBoom := errors.New("boom")
	p := NewPool(context.Background(), 1)

	var ran atomic.Int32
	p.Go(func(ctx context.Context) error {
		ran.Add(1)
		return errBoom
	})
	p.Go(func(ctx context.Context) error {
		ran.Add(1)
		return ctx.Err()
	})

	err := p.Wait()
	require.ErrorIs(t, err, errBoom)
	require.NotErrorIs(t, err, context.Canceled)
}

func TestNewCollectingPoolJoinsEveryError(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	p := NewCollectingPool(context.Background(), 2)

	var ran atomic.Int32
	for _, e := range []error{errA, nil, errB, nil} {
		p.Go(func(ctx context.Context) error {
			ran.Add(1)
			return e
		})
	}

	err := p.Wait()
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errB)
	require.Equal(t, int32(4), ran.Load())
}

func TestNewCollectingPoolRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewCollectingPool(ctx, 1)
	p.Go(func(ctx context.Context) error {
		return ctx.Err()
	})

	require.ErrorIs(t, p.Wait(), context.Canceled)
}
