//go:build !gocv
// +build !gocv

package vision

import (
	"road-inspector/internal/domain/port"
)

// VideoCodec заглушка (без OpenCV).
type VideoCodec struct{}

// NewVideoCodec возвращает ошибку, если сборка без тега gocv.
func NewVideoCodec() (*VideoCodec, error) {
	return nil, ErrNoGoCV
}

func (c *VideoCodec) Extension() string {
	return OutputExtension
}

func (c *VideoCodec) OpenReader(path string) (port.FrameReader, error) {
	_ = path
	return nil, ErrNoGoCV
}

func (c *VideoCodec) OpenWriter(path string, info port.VideoInfo) (port.FrameWriter, error) {
	_ = path
	_ = info
	return nil, ErrNoGoCV
}
