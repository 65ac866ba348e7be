package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
	"road-inspector/internal/infrastructure/metrics"
)

// DefaultFPS частота выходного видео, если источник её не сообщает.
const DefaultFPS = 20.0

// VideoResult итог обработки одного видео.
type VideoResult struct {
	OutputPath string
	Defects    []entity.DefectRecord
	Frames     int
	Info       port.VideoInfo
}

// VideoProcessor прогоняет видео покадрово через FrameDetector и пишет размеченную копию.
type VideoProcessor struct {
	codec  port.VideoCodec
	logger *zap.Logger
}

func NewVideoProcessor(codec port.VideoCodec, logger *zap.Logger) *VideoProcessor {
	return &VideoProcessor{codec: codec, logger: logger}
}

// OutputExtension расширение файлов, которые пишет кодек.
func (p *VideoProcessor) OutputExtension() string {
	return p.codec.Extension()
}

// Process читает sourcePath до конца потока или первой ошибки чтения,
// размечает каждый кадр и пишет результат в outputPath с частотой и размером источника.
// Ошибка детекции или записи прерывает обработку, частичный файл удаляется.
func (p *VideoProcessor) Process(ctx context.Context, detector *FrameDetector, sourcePath, outputPath, roadID string) (*VideoResult, error) {
	reader, err := p.codec.OpenReader(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open video: %w", entity.ErrDecode, err)
	}
	defer reader.Close()

	info := reader.Info()
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%w: video has invalid dimensions %dx%d", entity.ErrDecode, info.Width, info.Height)
	}
	if info.FPS <= 0 {
		info.FPS = DefaultFPS
	}

	writer, err := p.codec.OpenWriter(outputPath, info)
	if err != nil {
		return nil, fmt.Errorf("open output video: %w", err)
	}

	abort := func(err error) (*VideoResult, error) {
		_ = writer.Close()
		if rmErr := os.Remove(outputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			p.logger.Warn("failed to remove partial output", zap.String("path", outputPath), zap.Error(rmErr))
		}
		return nil, err
	}

	result := &VideoResult{OutputPath: outputPath, Info: info}
	meta := FrameMeta{RoadID: roadID}
	for {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		frame, err := reader.Next()
		if err != nil {
			// конец потока и битый хвост обрабатываются одинаково
			if !errors.Is(err, io.EOF) {
				p.logger.Debug("frame read stopped", zap.Int("frame", result.Frames), zap.Error(err))
			}
			break
		}

		annotated, records, err := detector.Detect(ctx, frame, meta)
		if err != nil {
			return abort(fmt.Errorf("frame %d: %w", result.Frames, err))
		}
		if err := writer.Write(annotated); err != nil {
			return abort(fmt.Errorf("write frame %d: %w", result.Frames, err))
		}

		result.Defects = append(result.Defects, records...)
		result.Frames++
		metrics.FramesProcessedTotal.Inc()
		for _, r := range records {
			metrics.DefectsDetectedTotal.WithLabelValues(r.DefectType).Inc()
		}
	}

	if err := writer.Close(); err != nil {
		_ = os.Remove(outputPath)
		return nil, fmt.Errorf("finalize output video: %w", err)
	}

	p.logger.Info("video processed",
		zap.String("road_id", roadID),
		zap.Int("frames", result.Frames),
		zap.Int("defects", len(result.Defects)),
		zap.Float64("fps", info.FPS),
	)
	return result, nil
}
