package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
	"road-inspector/internal/infrastructure/metrics"
)

const (
	videoPrefix = "videos/"

	// FrameJPEGQuality качество размеченного кадра в ответе
	FrameJPEGQuality = 90
)

// VideoExtensions допустимые расширения загружаемых видео
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// SurveyUpload загруженное видео обследования участка
type SurveyUpload struct {
	RoadID   string
	Filename string // используется только для проверки расширения
	Body     io.Reader
}

// SurveyResult итог обработки видео
type SurveyResult struct {
	VideoID   int64
	VideoRef  string
	Defects   []entity.DefectRecord
	Frames    int
	Rating    float64
	ReportID  int64
	ReportRef string
}

// FrameUpload одиночный кадр с необязательной привязкой к участку и координатам
type FrameUpload struct {
	Image    []byte
	RoadID   string
	Location *entity.GeoPoint
}

// FrameResult размеченный кадр в JPEG и найденные дефекты
type FrameResult struct {
	Defects []entity.DefectRecord
	Image   []byte
}

// SurveyDeps зависимости SurveyService
type SurveyDeps struct {
	Pool      port.EnginePool
	Annotator port.FrameAnnotator
	Processor *VideoProcessor
	Rating    *RatingCalculator
	Reports   *ReportGenerator
	Store     port.StorageGateway
	Blobs     port.BlobStore
	Notifier  port.ReportNotifier // может быть nil
	WorkDir   string
	LabelMode LabelMode
	Logger    *zap.Logger
}

// SurveyService конвейер обследования: детекция, разметка, оценка, сохранение, отчёт.
type SurveyService struct {
	pool      port.EnginePool
	annotator port.FrameAnnotator
	processor *VideoProcessor
	rating    *RatingCalculator
	reports   *ReportGenerator
	store     port.StorageGateway
	blobs     port.BlobStore
	notifier  port.ReportNotifier
	workDir   string
	labelMode LabelMode
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewSurveyService(d SurveyDeps) *SurveyService {
	return &SurveyService{
		pool:      d.Pool,
		annotator: d.Annotator,
		processor: d.Processor,
		rating:    d.Rating,
		reports:   d.Reports,
		store:     d.Store,
		blobs:     d.Blobs,
		notifier:  d.Notifier,
		workDir:   d.WorkDir,
		labelMode: d.LabelMode,
		logger:    d.Logger,
		tracer:    otel.Tracer("survey"),
	}
}

// ProcessVideo обрабатывает видео целиком. Либо сохраняются дефекты, видео и отчёт,
// либо запрос завершается ошибкой и загруженные файлы удаляются.
func (s *SurveyService) ProcessVideo(ctx context.Context, in SurveyUpload) (res *SurveyResult, err error) {
	ctx, span := s.tracer.Start(ctx, "SurveyService.ProcessVideo")
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.SurveysTotal.WithLabelValues("failed").Inc()
			return
		}
		metrics.SurveysTotal.WithLabelValues("completed").Inc()
		metrics.StageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	}()

	roadID := strings.TrimSpace(in.RoadID)
	if roadID == "" {
		return nil, fmt.Errorf("%w: road_id is required", entity.ErrValidation)
	}
	if in.Body == nil {
		return nil, fmt.Errorf("%w: video file is required", entity.ErrValidation)
	}
	ext := strings.ToLower(filepath.Ext(in.Filename))
	if !VideoExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported video extension %q", entity.ErrValidation, ext)
	}

	span.SetAttributes(attribute.String("road.id", roadID))
	log := s.logger.With(zap.String("road_id", roadID))

	jobID := uuid.NewString()
	workDir := filepath.Join(s.workDir, jobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	sourcePath := filepath.Join(workDir, "source"+ext)
	if err := saveUpload(sourcePath, in.Body); err != nil {
		return nil, err
	}

	// Детекция
	detStart := time.Now()
	detCtx, spanDet := s.tracer.Start(ctx, "process_video")
	outputPath := filepath.Join(workDir, "annotated"+s.processor.OutputExtension())
	video, err := s.runDetection(detCtx, sourcePath, outputPath, roadID)
	spanDet.End()
	if err != nil {
		log.Error("video processing failed", zap.Error(err))
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("detect").Observe(time.Since(detStart).Seconds())

	rating := s.rating.Rate(video.Defects)
	metrics.ConditionRating.Observe(rating)

	// Загрузка размеченного видео
	upStart := time.Now()
	upCtx, spanUp := s.tracer.Start(ctx, "upload_video")
	videoRef := videoPrefix + jobID + s.processor.OutputExtension()
	err = s.uploadFile(upCtx, videoRef, outputPath)
	spanUp.End()
	if err != nil {
		log.Error("video upload failed", zap.Error(err))
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	// Единица работы: дефекты, видео, отчёт
	persistStart := time.Now()
	txCtx, spanTx := s.tracer.Start(ctx, "persist")
	var (
		videoID int64
		report  *ReportResult
	)
	err = s.store.WithinTx(txCtx, func(tx port.Store) error {
		for _, d := range video.Defects {
			if err := tx.InsertDefect(txCtx, d); err != nil {
				return fmt.Errorf("insert defect: %w", err)
			}
		}

		id, err := tx.InsertVideo(txCtx, roadID, videoRef)
		if err != nil {
			return fmt.Errorf("insert video: %w", err)
		}
		videoID = id

		report, err = s.reports.Generate(txCtx, tx, roadID, rating)
		return err
	})
	spanTx.End()
	if err != nil {
		s.deleteBlob(ctx, videoRef)
		if report != nil {
			s.deleteBlob(ctx, report.Reference)
		}
		log.Error("survey persistence failed", zap.Error(err))
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("persist").Observe(time.Since(persistStart).Seconds())

	if report.PreviousRef != "" {
		s.deleteBlob(ctx, report.PreviousRef)
	}

	s.notify(ctx, entity.ReportEvent{
		RoadID:          roadID,
		ReportID:        report.ID,
		ReportRef:       report.Reference,
		VideoID:         videoID,
		ConditionRating: rating,
		DefectCount:     report.DefectCount,
		GeneratedAt:     time.Now().UTC(),
	})

	log.Info("survey completed",
		zap.Int64("video_id", videoID),
		zap.Int64("report_id", report.ID),
		zap.Int("defects", len(video.Defects)),
		zap.Float64("condition_rating", rating),
	)

	return &SurveyResult{
		VideoID:   videoID,
		VideoRef:  videoRef,
		Defects:   video.Defects,
		Frames:    video.Frames,
		Rating:    rating,
		ReportID:  report.ID,
		ReportRef: report.Reference,
	}, nil
}

// runDetection держит движок из пула на всё время обработки одного видео.
func (s *SurveyService) runDetection(ctx context.Context, sourcePath, outputPath, roadID string) (*VideoResult, error) {
	engine, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire inference engine: %w", err)
	}
	defer s.pool.Release(engine)

	detector := NewFrameDetector(engine, s.annotator, s.labelMode)
	return s.processor.Process(ctx, detector, sourcePath, outputPath, roadID)
}

// DetectFrame размечает один кадр. Если указан road_id, дефекты сохраняются.
func (s *SurveyService) DetectFrame(ctx context.Context, in FrameUpload) (*FrameResult, error) {
	ctx, span := s.tracer.Start(ctx, "SurveyService.DetectFrame")
	defer span.End()

	if len(in.Image) == 0 {
		return nil, fmt.Errorf("%w: frame image is required", entity.ErrValidation)
	}

	frame, _, err := image.Decode(bytes.NewReader(in.Image))
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %w", entity.ErrDecode, err)
	}

	engine, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire inference engine: %w", err)
	}
	detector := NewFrameDetector(engine, s.annotator, s.labelMode)
	roadID := strings.TrimSpace(in.RoadID)
	annotated, records, err := detector.Detect(ctx, frame, FrameMeta{RoadID: roadID, Location: in.Location})
	s.pool.Release(engine)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	metrics.FramesProcessedTotal.Inc()
	for _, r := range records {
		metrics.DefectsDetectedTotal.WithLabelValues(r.DefectType).Inc()
	}

	if roadID != "" && len(records) > 0 {
		err := s.store.WithinTx(ctx, func(tx port.Store) error {
			for _, r := range records {
				if err := tx.InsertDefect(ctx, r); err != nil {
					return fmt.Errorf("insert defect: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, annotated, &jpeg.Options{Quality: FrameJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	return &FrameResult{Defects: records, Image: buf.Bytes()}, nil
}

// RoadRating оценка участка по всем сохранённым дефектам.
func (s *SurveyService) RoadRating(ctx context.Context, roadID string) (float64, int, error) {
	roadID = strings.TrimSpace(roadID)
	if roadID == "" {
		return 0, 0, fmt.Errorf("%w: road_id is required", entity.ErrValidation)
	}

	defects, err := s.store.QueryDefectsByRoad(ctx, roadID)
	if err != nil {
		return 0, 0, err
	}
	return s.rating.Rate(defects), len(defects), nil
}

// RegenerateReport пересобирает отчёт участка по всем сохранённым дефектам.
func (s *SurveyService) RegenerateReport(ctx context.Context, roadID string) (*ReportResult, error) {
	ctx, span := s.tracer.Start(ctx, "SurveyService.RegenerateReport")
	defer span.End()

	roadID = strings.TrimSpace(roadID)
	if roadID == "" {
		return nil, fmt.Errorf("%w: road_id is required", entity.ErrValidation)
	}

	var report *ReportResult
	err := s.store.WithinTx(ctx, func(tx port.Store) error {
		defects, err := tx.QueryDefectsByRoad(ctx, roadID)
		if err != nil {
			return fmt.Errorf("query defects: %w", err)
		}
		if len(defects) == 0 {
			return fmt.Errorf("%w: no defects recorded for road %q", entity.ErrNotFound, roadID)
		}

		report, err = s.reports.Generate(ctx, tx, roadID, s.rating.Rate(defects))
		return err
	})
	if err != nil {
		if report != nil {
			s.deleteBlob(ctx, report.Reference)
		}
		span.RecordError(err)
		return nil, err
	}

	if report.PreviousRef != "" {
		s.deleteBlob(ctx, report.PreviousRef)
	}
	metrics.ConditionRating.Observe(report.Rating)

	s.notify(ctx, entity.ReportEvent{
		RoadID:          roadID,
		ReportID:        report.ID,
		ReportRef:       report.Reference,
		ConditionRating: report.Rating,
		DefectCount:     report.DefectCount,
		GeneratedAt:     time.Now().UTC(),
	})

	return report, nil
}

func (s *SurveyService) uploadFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open annotated video: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat annotated video: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.blobs.Put(ctx, key, f, st.Size(), contentType); err != nil {
		return fmt.Errorf("store video: %w", err)
	}
	return nil
}

func (s *SurveyService) deleteBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete blob", zap.String("key", key), zap.Error(err))
	}
}

func (s *SurveyService) notify(ctx context.Context, event entity.ReportEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyReport(ctx, event); err != nil {
		s.logger.Warn("report notification failed",
			zap.String("road_id", event.RoadID),
			zap.Int64("report_id", event.ReportID),
			zap.Error(err),
		)
	}
}

func saveUpload(path string, body io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("save upload: %w", err)
	}
	return f.Close()
}
