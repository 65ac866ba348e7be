package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"road-inspector/internal/domain/port"
	"road-inspector/internal/infrastructure/metrics"
)

// ErrPoolClosed пул уже закрыт
var ErrPoolClosed = errors.New("engine pool is closed")

// Factory создаёт один экземпляр движка
type Factory func() (port.InferenceEngine, error)

// Pool ограниченный набор движков. Каждый движок в каждый момент принадлежит
// не более чем одному запросу; Acquire ждёт, пока какой-нибудь освободится.
type Pool struct {
	idle   chan port.InferenceEngine
	all    []port.InferenceEngine
	mu     sync.RWMutex
	closed bool
	logger *zap.Logger
}

// NewPool создаёт size движков через factory. Если хотя бы один не создался,
// уже созданные закрываются.
func NewPool(size int, factory Factory, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("engine pool size must be positive, got %d", size)
	}

	p := &Pool{
		idle:   make(chan port.InferenceEngine, size),
		all:    make([]port.InferenceEngine, 0, size),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		engine, err := factory()
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("create engine %d: %w", i, err)
		}
		p.all = append(p.all, engine)
		p.idle <- engine
	}

	logger.Info("inference engine pool ready", zap.Int("size", size))
	return p, nil
}

func (p *Pool) Acquire(ctx context.Context) (port.InferenceEngine, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	select {
	case engine, ok := <-p.idle:
		if !ok {
			return nil, ErrPoolClosed
		}
		metrics.EngineWait.Observe(time.Since(start).Seconds())
		metrics.EnginesInUse.Inc()
		return engine, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release возвращает движок в пул. После Close движок закрывается здесь же.
func (p *Pool) Release(engine port.InferenceEngine) {
	if engine == nil {
		return
	}
	metrics.EnginesInUse.Dec()

	p.mu.RLock()
	if !p.closed {
		p.idle <- engine
		p.mu.RUnlock()
		return
	}
	p.mu.RUnlock()

	if err := engine.Close(); err != nil {
		p.logger.Warn("failed to close released engine", zap.Error(err))
	}
}

// Size количество движков в пуле
func (p *Pool) Size() int {
	return len(p.all)
}

// Close закрывает свободные движки. Выданные движки закрываются
// при возврате через Release, пока запрос их использует, они не трогаются.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	var errs []error
	for engine := range p.idle {
		if err := engine.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ port.EnginePool = (*Pool)(nil)
