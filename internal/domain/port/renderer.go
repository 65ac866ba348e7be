package port

import (
	"context"
	"io"

	"road-inspector/internal/domain/entity"
)

// ReportRenderer превращает отчёт в документ
type ReportRenderer interface {
	// Render пишет документ в w
	Render(ctx context.Context, doc *entity.ReportDocument, w io.Writer) error

	ContentType() string
	Extension() string
}
