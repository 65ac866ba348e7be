package app

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// LabelMode выбирает, какая метка класса достаётся каждой рамке кадра.
type LabelMode string

const (
	// LabelPerBox каждая рамка получает свою метку
	LabelPerBox LabelMode = "per_box"
	// LabelFirstBox все рамки кадра получают метку первой рамки.
	// Нужен для сверки с разметкой прежних обследований.
	LabelFirstBox LabelMode = "first_box"
)

// ParseLabelMode разбирает режим из конфигурации. Пустая строка даёт LabelPerBox.
func ParseLabelMode(s string) (LabelMode, error) {
	switch LabelMode(s) {
	case "", LabelPerBox:
		return LabelPerBox, nil
	case LabelFirstBox:
		return LabelFirstBox, nil
	default:
		return "", fmt.Errorf("%w: unknown label mode %q", entity.ErrValidation, s)
	}
}

// FrameMeta данные, которые копируются в каждую запись дефекта кадра.
type FrameMeta struct {
	RoadID   string
	Location *entity.GeoPoint
}

// FrameDetector один вызов движка детекции плюс разметка кадра.
type FrameDetector struct {
	engine    port.InferenceEngine
	annotator port.FrameAnnotator
	labelMode LabelMode
}

// NewFrameDetector создаёт детектор поверх уже выделенного движка.
func NewFrameDetector(engine port.InferenceEngine, annotator port.FrameAnnotator, mode LabelMode) *FrameDetector {
	if mode == "" {
		mode = LabelPerBox
	}
	return &FrameDetector{
		engine:    engine,
		annotator: annotator,
		labelMode: mode,
	}
}

// Detect прогоняет кадр через модель, рисует рамки на копии кадра и
// возвращает копию вместе с записями дефектов. Исходный кадр не меняется.
func (d *FrameDetector) Detect(ctx context.Context, frame image.Image, meta FrameMeta) (*image.RGBA, []entity.DefectRecord, error) {
	detections, err := d.engine.Detect(ctx, frame)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", entity.ErrInference, err)
	}

	canvas := cloneRGBA(frame)
	bounds := canvas.Bounds()

	records := make([]entity.DefectRecord, 0, len(detections))
	for i, det := range detections {
		box := det.BBox.ClampTo(bounds)
		if !box.Valid() {
			continue
		}
		label := d.labelFor(detections, i)

		d.annotator.Annotate(canvas, box, label)
		records = append(records, entity.DefectRecord{
			RoadID:     meta.RoadID,
			DefectType: label,
			BBox:       box,
			Location:   copyLocation(meta.Location),
		})
	}

	return canvas, records, nil
}

func (d *FrameDetector) labelFor(detections []entity.Detection, i int) string {
	if d.labelMode == LabelFirstBox {
		return detections[0].Label
	}
	return detections[i].Label
}

func cloneRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

func copyLocation(loc *entity.GeoPoint) *entity.GeoPoint {
	if loc == nil {
		return nil
	}
	cp := *loc
	return &cp
}
