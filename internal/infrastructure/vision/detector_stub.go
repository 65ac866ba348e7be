//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"image"

	"road-inspector/internal/domain/entity"
)

// DNNEngine заглушка (без OpenCV).
type DNNEngine struct{}

// NewDNNEngine возвращает ошибку, если сборка без тега gocv.
func NewDNNEngine(cfg DNNConfig) (*DNNEngine, error) {
	_ = cfg
	return nil, ErrNoGoCV
}

// Detect возвращает ошибку, если сборка без тега gocv.
func (e *DNNEngine) Detect(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	_ = ctx
	_ = frame
	return nil, ErrNoGoCV
}

func (e *DNNEngine) Close() error {
	return nil
}
