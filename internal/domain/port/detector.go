package port

import (
	"context"
	"image"

	"road-inspector/internal/domain/entity"
)

// InferenceEngine внешний движок детекции объектов
type InferenceEngine interface {
	// Detect прогоняет один кадр через модель и возвращает рамки с метками
	Detect(ctx context.Context, frame image.Image) ([]entity.Detection, error)

	// Close освобождает ресурсы модели
	Close() error
}

// FrameAnnotator рисует найденные дефекты на кадре
type FrameAnnotator interface {
	// Annotate рисует прямоугольник и подпись поверх кадра
	Annotate(frame *image.RGBA, box entity.BBox, label string)
}

// EnginePool выдаёт движки во владение одному запросу.
// Движок, полученный через Acquire, нельзя использовать из других горутин до Release.
type EnginePool interface {
	Acquire(ctx context.Context) (InferenceEngine, error)
	Release(engine InferenceEngine)
}
