package port

import "image"

// VideoInfo параметры видеопотока
type VideoInfo struct {
	FPS    float64
	Width  int
	Height int
}

// FrameReader последовательно отдаёт кадры видео
type FrameReader interface {
	Info() VideoInfo
	// Next возвращает следующий кадр. Любая ошибка, включая io.EOF, означает конец потока.
	Next() (image.Image, error)
	Close() error
}

// FrameWriter записывает кадры в выходной файл
type FrameWriter interface {
	Write(frame image.Image) error
	Close() error
}

// VideoCodec открывает видео на чтение и запись
type VideoCodec interface {
	OpenReader(path string) (FrameReader, error)
	OpenWriter(path string, info VideoInfo) (FrameWriter, error)
	// Extension расширение выходного файла вместе с точкой
	Extension() string
}
