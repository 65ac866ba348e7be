package port

import (
	"context"

	"road-inspector/internal/domain/entity"
)

// ReportNotifier сообщает внешним получателям о готовом отчёте
type ReportNotifier interface {
	NotifyReport(ctx context.Context, event entity.ReportEvent) error
}
