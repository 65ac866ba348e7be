package entity

import "image"

// BBox прямоугольник дефекта в пикселях кадра.
// (X1, Y1) левый верхний угол, (X2, Y2) правый нижний.
type BBox struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Valid сообщает, что рамка не вырождена: X1 < X2 и Y1 < Y2.
func (b BBox) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Center возвращает координаты центра рамки
func (b BBox) Center() (x, y int) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Rect переводит рамку в image.Rectangle.
func (b BBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// ClampTo обрезает рамку по границам кадра.
func (b BBox) ClampTo(bounds image.Rectangle) BBox {
	r := b.Rect().Intersect(bounds)
	return BBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// GeoPoint географические координаты точки съёмки
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// DefectRecord один обнаруженный дефект на одном кадре.
// Создаётся один раз на рамку и дальше не меняется.
type DefectRecord struct {
	RoadID     string    // участок дороги, может быть пустым для одиночного кадра
	DefectType string    // метка класса от модели
	BBox       BBox      // координаты в пикселях кадра
	Location   *GeoPoint // nil, если координаты не переданы
}

// Detection сырой результат инференса для одной рамки.
type Detection struct {
	ClassID    int
	Label      string
	Confidence float64
	BBox       BBox
}
