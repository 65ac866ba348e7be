package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

const (
	DefaultQueueSize       = 64
	DefaultDeliveryTimeout = 30 * time.Second
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("notifier is closed")
)

// Async ставит события в ограниченную очередь и доставляет их в отдельной горутине.
// Доставка не зависит от контекста запроса; при переполнении событие отбрасывается.
type Async struct {
	next    port.ReportNotifier
	queue   chan entity.ReportEvent
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsync(next port.ReportNotifier, queueSize int, timeout time.Duration, logger *zap.Logger) *Async {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	a := &Async{
		next:    next,
		queue:   make(chan entity.ReportEvent, queueSize),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// NotifyReport не блокируется: событие либо в очереди, либо ErrQueueFull.
func (a *Async) NotifyReport(ctx context.Context, event entity.ReportEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close прекращает приём и ждёт доставки уже поставленных событий.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	<-a.done
	return nil
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		a.deliver(event)
	}
}

func (a *Async) deliver(event entity.ReportEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.next.NotifyReport(ctx, event); err != nil {
		a.logger.Warn("report delivery failed",
			zap.String("road_id", event.RoadID),
			zap.Int64("report_id", event.ReportID),
			zap.Error(err),
		)
	}
}

var _ port.ReportNotifier = (*Async)(nil)
