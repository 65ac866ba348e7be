//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"
	"image"
	"io"

	"gocv.io/x/gocv"

	"road-inspector/internal/domain/port"
)

// VideoCodec чтение и запись видео через OpenCV.
type VideoCodec struct {
	fourcc string
}

// NewVideoCodec создаёт кодек, пишущий mp4 с кодеком mp4v.
func NewVideoCodec() (*VideoCodec, error) {
	return &VideoCodec{fourcc: DefaultFourCC}, nil
}

func (c *VideoCodec) Extension() string {
	return OutputExtension
}

func (c *VideoCodec) OpenReader(path string) (port.FrameReader, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video %s cannot be opened", path)
	}

	return &frameReader{
		capture: capture,
		mat:     gocv.NewMat(),
		info: port.VideoInfo{
			FPS:    capture.Get(gocv.VideoCaptureFPS),
			Width:  int(capture.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(capture.Get(gocv.VideoCaptureFrameHeight)),
		},
	}, nil
}

func (c *VideoCodec) OpenWriter(path string, info port.VideoInfo) (port.FrameWriter, error) {
	writer, err := gocv.VideoWriterFile(path, c.fourcc, info.FPS, info.Width, info.Height, true)
	if err != nil {
		return nil, fmt.Errorf("create video writer %s: %w", path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("video writer %s cannot be opened", path)
	}
	return &frameWriter{writer: writer, size: image.Pt(info.Width, info.Height)}, nil
}

type frameReader struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	info    port.VideoInfo
}

func (r *frameReader) Info() port.VideoInfo {
	return r.info
}

func (r *frameReader) Next() (image.Image, error) {
	if ok := r.capture.Read(&r.mat); !ok || r.mat.Empty() {
		return nil, io.EOF
	}
	img, err := r.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (r *frameReader) Close() error {
	return errors.Join(r.mat.Close(), r.capture.Close())
}

type frameWriter struct {
	writer *gocv.VideoWriter
	size   image.Point
}

func (w *frameWriter) Write(frame image.Image) error {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	// кадр должен совпадать по размеру с потоком, иначе OpenCV молча его пропустит
	if mat.Cols() != w.size.X || mat.Rows() != w.size.Y {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(mat, &resized, w.size, 0, 0, gocv.InterpolationArea)
		return w.writer.Write(resized)
	}
	return w.writer.Write(mat)
}

func (w *frameWriter) Close() error {
	return w.writer.Close()
}

var _ port.VideoCodec = (*VideoCodec)(nil)
