package report

import (
	"context"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

const (
	pageMargin = 15.0
	lineHeight = 6.0
)

// PDFRenderer многостраничный A4-отчёт: заголовок, оценка, по строке на дефект.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) ContentType() string { return "application/pdf" }
func (r *PDFRenderer) Extension() string   { return ".pdf" }

func (r *PDFRenderer) Render(ctx context.Context, doc *entity.ReportDocument, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(doc.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 9, tr(doc.Title), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 12)
	pdf.MultiCell(0, 7, tr(doc.Rating), "", "L", false)
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "", 10)
	for i, line := range doc.Lines {
		// длинный отчёт прерывается при отмене запроса
		if i%200 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		pdf.MultiCell(0, lineHeight, tr(line), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

var _ port.ReportRenderer = (*PDFRenderer)(nil)
