package annotate

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

const (
	DefaultThickness = 2
	labelOffset      = 10 // подпись над рамкой
	labelHeight      = 13
)

// DefaultColor цвет рамок и подписей
var DefaultColor = color.RGBA{R: 255, A: 255}

// Annotator рисует рамки и подписи шрифтом basicfont без OpenCV.
type Annotator struct {
	color     color.RGBA
	thickness int
}

func New(c color.RGBA, thickness int) *Annotator {
	if thickness <= 0 {
		thickness = DefaultThickness
	}
	return &Annotator{color: c, thickness: thickness}
}

// NewDefault красные рамки толщиной 2
func NewDefault() *Annotator {
	return New(DefaultColor, DefaultThickness)
}

func (a *Annotator) Annotate(frame *image.RGBA, box entity.BBox, label string) {
	a.drawBox(frame, box.Rect())
	a.drawLabel(frame, box.X1, box.Y1-labelOffset, label)
}

// drawBox рисует рамку внутрь прямоугольника
func (a *Annotator) drawBox(img *image.RGBA, r image.Rectangle) {
	src := image.NewUniform(a.color)
	t := a.thickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawLabel пишет текст с базовой линией в y; у верхнего края текст опускается в кадр.
func (a *Annotator) drawLabel(img *image.RGBA, x, y int, label string) {
	if label == "" {
		return
	}
	b := img.Bounds()
	if y < b.Min.Y+labelHeight {
		y = b.Min.Y + labelHeight
	}
	if x < b.Min.X {
		x = b.Min.X
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(a.color),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(label)
}

var _ port.FrameAnnotator = (*Annotator)(nil)
