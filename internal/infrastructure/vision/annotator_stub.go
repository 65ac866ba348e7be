//go:build !gocv
// +build !gocv

package vision

import (
	"image"

	"road-inspector/internal/domain/entity"
)

// Annotator заглушка (без OpenCV).
type Annotator struct{}

// NewAnnotator возвращает ошибку, если сборка без тега gocv.
func NewAnnotator() (*Annotator, error) {
	return nil, ErrNoGoCV
}

func (a *Annotator) Annotate(frame *image.RGBA, box entity.BBox, label string) {
	_ = frame
	_ = box
	_ = label
}
