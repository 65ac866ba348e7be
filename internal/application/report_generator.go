package app

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

const reportPrefix = "reports/"

// ReportResult сохранённый отчёт
type ReportResult struct {
	ID          int64
	Reference   string
	PreviousRef string // ссылка перезаписанного отчёта, файл удаляется после фиксации
	Rating      float64
	DefectCount int
}

// ReportGenerator собирает отчёт по истории дефектов участка.
type ReportGenerator struct {
	renderer port.ReportRenderer
	blobs    port.BlobStore
	logger   *zap.Logger
}

func NewReportGenerator(renderer port.ReportRenderer, blobs port.BlobStore, logger *zap.Logger) *ReportGenerator {
	return &ReportGenerator{renderer: renderer, blobs: blobs, logger: logger}
}

// Generate читает все дефекты участка из store, рендерит документ, кладёт его в хранилище
// файлов и записывает ссылку с оценкой. store может быть транзакцией.
// При ошибке записи загруженный файл удаляется.
func (g *ReportGenerator) Generate(ctx context.Context, store port.Store, roadID string, rating float64) (*ReportResult, error) {
	defects, err := store.QueryDefectsByRoad(ctx, roadID)
	if err != nil {
		return nil, fmt.Errorf("query defects: %w", err)
	}

	doc := BuildReportDocument(roadID, rating, defects)

	var buf bytes.Buffer
	if err := g.renderer.Render(ctx, doc, &buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	ref := reportPrefix + uuid.NewString() + g.renderer.Extension()
	if err := g.blobs.Put(ctx, ref, bytes.NewReader(buf.Bytes()), int64(buf.Len()), g.renderer.ContentType()); err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}

	id, prev, err := store.InsertReport(ctx, roadID, ref, rating)
	if err != nil {
		if delErr := g.blobs.Delete(ctx, ref); delErr != nil {
			g.logger.Warn("failed to remove orphan report", zap.String("ref", ref), zap.Error(delErr))
		}
		return nil, fmt.Errorf("insert report: %w", err)
	}

	return &ReportResult{
		ID:          id,
		Reference:   ref,
		PreviousRef: prev,
		Rating:      rating,
		DefectCount: len(defects),
	}, nil
}

// BuildReportDocument заголовок, оценка и по строке на дефект в порядке хранения.
func BuildReportDocument(roadID string, rating float64, defects []entity.DefectRecord) *entity.ReportDocument {
	lines := make([]string, 0, len(defects))
	for _, d := range defects {
		b := d.BBox
		lines = append(lines, fmt.Sprintf("Defect: %s, Location: (%d, %d) - (%d, %d)", d.DefectType, b.X1, b.Y1, b.X2, b.Y2))
	}

	return &entity.ReportDocument{
		Title:  "Condition Survey Report - Road ID: " + roadID,
		Rating: "Condition Rating: " + strconv.FormatFloat(rating, 'f', 2, 64) + "%",
		Lines:  lines,
	}
}
