package inference

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// exclusiveEngine падает, если его вызывают из двух горутин сразу
type exclusiveEngine struct {
	busy   atomic.Bool
	closed atomic.Bool
	t      *testing.T
}

func (e *exclusiveEngine) Detect(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.t.Error("engine used concurrently")
	}
	time.Sleep(time.Millisecond)
	e.busy.Store(false)
	return nil, nil
}

func (e *exclusiveEngine) Close() error {
	e.closed.Store(true)
	return nil
}

func TestPool_EngineOwnedByOneCaller(t *testing.T) {
	var engines []*exclusiveEngine
	pool, err := NewPool(2, func() (port.InferenceEngine, error) {
		e := &exclusiveEngine{t: t}
		engines = append(engines, e)
		return e, nil
	}, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, pool.Size())

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine, err := pool.Acquire(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			defer pool.Release(engine)
			_, _ = engine.Detect(ctx, nil)
		}()
	}
	wg.Wait()

	require.NoError(t, pool.Close())
	for _, e := range engines {
		require.True(t, e.closed.Load())
	}
}

func TestPool_AcquireHonoursContext(t *testing.T) {
	pool, err := NewPool(1, func() (port.InferenceEngine, error) {
		return &exclusiveEngine{t: t}, nil
	}, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Release(held)
	again, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.Same(t, held, again)
	pool.Release(again)
}

func TestPool_FactoryFailureClosesCreated(t *testing.T) {
	first := &exclusiveEngine{t: t}
	calls := 0
	_, err := NewPool(3, func() (port.InferenceEngine, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("model missing")
		}
		return first, nil
	}, zap.NewNop())
	require.Error(t, err)
	require.True(t, first.closed.Load())
}

func TestPool_ClosedPool(t *testing.T) {
	pool, err := NewPool(1, func() (port.InferenceEngine, error) {
		return &exclusiveEngine{t: t}, nil
	}, zap.NewNop())
	require.NoError(t, err)

	engine, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())
	pool.Release(engine)

	_, err = pool.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_CloseLeavesBusyEnginesOpen(t *testing.T) {
	var engines []*exclusiveEngine
	pool, err := NewPool(2, func() (port.InferenceEngine, error) {
		e := &exclusiveEngine{t: t}
		engines = append(engines, e)
		return e, nil
	}, zap.NewNop())
	require.NoError(t, err)

	busy, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, pool.Close())

	var idle *exclusiveEngine
	for _, e := range engines {
		if port.InferenceEngine(e) != busy {
			idle = e
		}
	}
	require.NotNil(t, idle)
	require.True(t, idle.closed.Load())
	require.False(t, busy.(*exclusiveEngine).closed.Load())

	_, err = busy.Detect(context.Background(), nil)
	require.NoError(t, err)

	pool.Release(busy)
	require.True(t, busy.(*exclusiveEngine).closed.Load())
}

func TestNewPool_InvalidSize(t *testing.T) {
	_, err := NewPool(0, nil, zap.NewNop())
	require.Error(t, err)
}
