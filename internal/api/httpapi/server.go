package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	app "road-inspector/internal/application"
	"road-inspector/internal/domain/entity"
)

// SurveyUseCase операции конвейера обследования, нужные HTTP-слою
type SurveyUseCase interface {
	ProcessVideo(ctx context.Context, in app.SurveyUpload) (*app.SurveyResult, error)
	DetectFrame(ctx context.Context, in app.FrameUpload) (*app.FrameResult, error)
	RegenerateReport(ctx context.Context, roadID string) (*app.ReportResult, error)
}

// ArtifactUseCase операции над сохранёнными файлами
type ArtifactUseCase interface {
	ListFiles(ctx context.Context) (*app.FileListing, error)
	DefectLocations(ctx context.Context) ([]entity.DefectRecord, error)
	Open(ctx context.Context, kind entity.ArtifactKind, id int64) (*app.Download, error)
	Rename(ctx context.Context, kind entity.ArtifactKind, id int64, newName string) (string, error)
	Delete(ctx context.Context, kind entity.ArtifactKind, id int64) error
}

// Deps зависимости HTTP-сервера
type Deps struct {
	Survey         SurveyUseCase
	Artifacts      ArtifactUseCase
	Logger         *zap.Logger
	MaxUploadBytes int64
	// Health проверяет хранилище для /healthz, может быть nil
	Health func(ctx context.Context) error
}

// Server HTTP API обследования дорог
type Server struct {
	router    *gin.Engine
	survey    SurveyUseCase
	artifacts ArtifactUseCase
	logger    *zap.Logger
	health    func(ctx context.Context) error
}

func NewServer(d Deps) *Server {
	s := &Server{
		router:    gin.New(),
		survey:    d.Survey,
		artifacts: d.Artifacts,
		logger:    d.Logger,
		health:    d.Health,
	}

	s.router.Use(RequestLogger(d.Logger))
	s.router.Use(gin.Recovery())
	s.setupRoutes(d.MaxUploadBytes)
	return s
}

// Handler возвращает http.Handler для http.Server
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(maxUpload int64) {
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	upload := s.router.Group("/")
	upload.Use(RequestSizeLimit(maxUpload))
	{
		upload.POST("/detect_frame", s.detectFrame)
		upload.POST("/detect", s.detectVideo)
	}

	s.router.GET("/get_defects", s.getDefects)
	s.router.GET("/get_files", s.getFiles)
	s.router.GET("/download_video/:id", s.download(entity.ArtifactVideo))
	s.router.GET("/download_report/:id", s.download(entity.ArtifactReport))
	s.router.POST("/rename_file", s.renameFile)
	s.router.POST("/delete_file", s.deleteFile)

	api := s.router.Group("/api")
	{
		api.POST("/roads/:road_id/report", s.regenerateReport)
	}
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// closeQuietly закрывает тело ответа после отдачи клиенту
func closeQuietly(c io.Closer) {
	_ = c.Close()
}
