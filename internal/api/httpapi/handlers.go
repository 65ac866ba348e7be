package httpapi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	app "road-inspector/internal/application"
	"road-inspector/internal/domain/entity"
)

// detectFrame POST /detect_frame: multipart frame, latitude, longitude, road_id
func (s *Server) detectFrame(c *gin.Context) {
	file, err := c.FormFile("frame")
	if err != nil {
		s.formFileError(c, "frame", err)
		return
	}

	data, err := readFormFile(file)
	if err != nil {
		writeError(c, err)
		return
	}

	location, err := parseLocation(c.PostForm("latitude"), c.PostForm("longitude"))
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := s.survey.DetectFrame(c.Request.Context(), app.FrameUpload{
		Image:    data,
		RoadID:   c.PostForm("road_id"),
		Location: location,
	})
	if err != nil {
		s.logger.Error("frame detection failed", zap.Error(err))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, detectFrameResponse{
		Defects: toFrameDefects(res.Defects),
		Image:   base64.StdEncoding.EncodeToString(res.Image),
	})
}

// detectVideo POST /detect: multipart video, road_id
func (s *Server) detectVideo(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		s.formFileError(c, "video", err)
		return
	}

	body, err := file.Open()
	if err != nil {
		writeError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer closeQuietly(body)

	res, err := s.survey.ProcessVideo(c.Request.Context(), app.SurveyUpload{
		RoadID:   c.PostForm("road_id"),
		Filename: file.Filename,
		Body:     body,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, detectResponse{
		AnnotatedVideo:  res.VideoRef,
		VideoID:         res.VideoID,
		Defects:         toDefectTuples(res.Defects),
		Frames:          res.Frames,
		ConditionRating: res.Rating,
		Report:          res.ReportRef,
		ReportID:        res.ReportID,
	})
}

// getDefects GET /get_defects: точки для карты
func (s *Server) getDefects(c *gin.Context) {
	defects, err := s.artifacts.DefectLocations(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLocationTuples(defects))
}

// getFiles GET /get_files
func (s *Server) getFiles(c *gin.Context) {
	files, err := s.artifacts.ListFiles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFilesResponse(files.Videos, files.Reports))
}

// download отдаёт видео или отчёт вложением
func (s *Server) download(kind entity.ArtifactKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "Invalid file ID")
			return
		}

		dl, err := s.artifacts.Open(c.Request.Context(), kind, id)
		if errors.Is(err, entity.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found", "kind": "not_found"})
			return
		}
		if err != nil {
			writeError(c, err)
			return
		}
		defer closeQuietly(dl.Body)

		c.DataFromReader(http.StatusOK, dl.Size, dl.ContentType, dl.Body, map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", dl.Name),
		})
	}
}

// renameFile POST /rename_file {"type", "id", "new_name"}
func (s *Server) renameFile(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	if req.Type == "" || req.ID == 0 || strings.TrimSpace(req.NewName) == "" {
		badRequest(c, "Missing parameters")
		return
	}

	kind, err := entity.ParseArtifactKind(req.Type)
	if err != nil {
		writeError(c, err)
		return
	}

	ref, err := s.artifacts.Rename(c.Request.Context(), kind, req.ID, req.NewName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File renamed successfully", "reference": ref})
}

// deleteFile POST /delete_file {"type", "id"}
func (s *Server) deleteFile(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	if req.Type == "" || req.ID == 0 {
		badRequest(c, "Missing parameters")
		return
	}

	kind, err := entity.ParseArtifactKind(req.Type)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := s.artifacts.Delete(c.Request.Context(), kind, req.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

// regenerateReport POST /api/roads/:road_id/report
func (s *Server) regenerateReport(c *gin.Context) {
	roadID := c.Param("road_id")

	report, err := s.survey.RegenerateReport(c.Request.Context(), roadID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, reportResponse{
		RoadID:          roadID,
		ReportID:        report.ID,
		Report:          report.Reference,
		ConditionRating: report.Rating,
		DefectCount:     report.DefectCount,
	})
}

func (s *Server) formFileError(c *gin.Context, field string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(c, err)
		return
	}
	badRequest(c, fmt.Sprintf("%s file is required", field))
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer closeQuietly(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

// parseLocation разбирает координаты из формы. Пустые значения дают nil,
// одно заданное без другого считается ошибкой.
func parseLocation(latitude, longitude string) (*entity.GeoPoint, error) {
	latitude, longitude = strings.TrimSpace(latitude), strings.TrimSpace(longitude)
	if latitude == "" && longitude == "" {
		return nil, nil
	}
	if latitude == "" || longitude == "" {
		return nil, fmt.Errorf("%w: latitude and longitude must be given together", entity.ErrValidation)
	}

	lat, err := strconv.ParseFloat(latitude, 64)
	if err != nil || !finite(lat) || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("%w: invalid latitude %q", entity.ErrValidation, latitude)
	}
	lon, err := strconv.ParseFloat(longitude, 64)
	if err != nil || !finite(lon) || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: invalid longitude %q", entity.ErrValidation, longitude)
	}
	return &entity.GeoPoint{Latitude: lat, Longitude: lon}, nil
}

// finite отсекает NaN и бесконечности: ParseFloat их принимает, а JSON не кодирует
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
