//go:build gocv
// +build gocv

package vision

import (
	"image"
	"image/color"
	"image/draw"

	"gocv.io/x/gocv"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

const (
	annotationThickness = 2
	annotationFontScale = 0.5
	labelOffset         = 10 // подпись над рамкой
)

var annotationColor = color.RGBA{R: 255, A: 255}

// Annotator рисует рамки и подписи средствами OpenCV.
type Annotator struct{}

// NewAnnotator доступен только в сборке с тегом gocv.
func NewAnnotator() (*Annotator, error) {
	return &Annotator{}, nil
}

func (a *Annotator) Annotate(frame *image.RGBA, box entity.BBox, label string) {
	mat, err := gocv.ImageToMatRGBA(frame)
	if err != nil {
		return
	}
	defer mat.Close()

	origin := frame.Bounds().Min
	rect := box.Rect().Sub(origin)
	gocv.Rectangle(&mat, rect, annotationColor, annotationThickness)
	if label != "" {
		pt := image.Pt(rect.Min.X, rect.Min.Y-labelOffset)
		gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, annotationFontScale, annotationColor, annotationThickness)
	}

	img, err := mat.ToImage()
	if err != nil {
		return
	}
	draw.Draw(frame, frame.Bounds(), img, image.Point{}, draw.Src)
}

var _ port.FrameAnnotator = (*Annotator)(nil)
