package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// Fanout рассылает событие всем получателям. Сбой одного не мешает остальным.
type Fanout struct {
	notifiers []port.ReportNotifier
	logger    *zap.Logger
}

func NewFanout(logger *zap.Logger, notifiers ...port.ReportNotifier) *Fanout {
	return &Fanout{notifiers: notifiers, logger: logger}
}

// Add добавляет получателя; вызывается только при сборке приложения.
func (f *Fanout) Add(n port.ReportNotifier) {
	f.notifiers = append(f.notifiers, n)
}

func (f *Fanout) Len() int {
	return len(f.notifiers)
}

func (f *Fanout) NotifyReport(ctx context.Context, event entity.ReportEvent) error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.NotifyReport(ctx, event); err != nil {
			f.logger.Warn("report notifier failed",
				zap.String("road_id", event.RoadID),
				zap.Int64("report_id", event.ReportID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ port.ReportNotifier = (*Fanout)(nil)
