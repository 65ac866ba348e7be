package telegram

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// NotifyReport рассылает оценку и PDF нового отчёта подписанным операторам.
func (b *Bot) NotifyReport(ctx context.Context, event entity.ReportEvent) error {
	subscribers, err := b.operators.Subscribers(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		return nil
	}

	dl, err := b.reports.Open(ctx, entity.ArtifactReport, event.ReportID)
	if err != nil {
		return fmt.Errorf("open report %d: %w", event.ReportID, err)
	}
	data, err := readDownload(dl)
	if err != nil {
		return fmt.Errorf("read report %d: %w", event.ReportID, err)
	}

	text := fmt.Sprintf(msgReportGenerated, event.RoadID, event.ConditionRating, event.DefectCount)

	var errs []error
	for _, op := range subscribers {
		if err := b.sendDocument(op.ChatID, dl.Name, data, text); err != nil {
			b.logger.Warn("failed to deliver report",
				zap.Int64("chat_id", op.ChatID),
				zap.String("road_id", event.RoadID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("chat %d: %w", op.ChatID, err))
		}
	}
	return errors.Join(errs...)
}

var _ port.ReportNotifier = (*Bot)(nil)
