package entity

import (
	"fmt"
	"time"
)

// ArtifactKind тип сохранённого артефакта
type ArtifactKind string

const (
	ArtifactVideo  ArtifactKind = "video"  // размеченное видео
	ArtifactReport ArtifactKind = "report" // PDF-отчёт по участку
)

// ParseArtifactKind разбирает тип артефакта из запроса.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	switch ArtifactKind(s) {
	case ArtifactVideo, ArtifactReport:
		return ArtifactKind(s), nil
	case "":
		return "", fmt.Errorf("%w: artifact type is required", ErrValidation)
	default:
		return "", fmt.Errorf("%w: unknown artifact type %q", ErrValidation, s)
	}
}

// VideoArtifact размеченное видео, одно на каждую обработанную загрузку.
type VideoArtifact struct {
	ID        int64
	RoadID    string
	Reference string // ключ в хранилище файлов
	CreatedAt time.Time
}

// ReportArtifact отчёт по участку дороги. На один road_id хранится один отчёт,
// повторная генерация перезаписывает ссылку и оценку.
type ReportArtifact struct {
	ID              int64
	RoadID          string
	Reference       string
	ConditionRating float64
	CreatedAt       time.Time
}

// ReportEvent уведомление о готовом отчёте.
type ReportEvent struct {
	RoadID          string    `json:"road_id"`
	ReportID        int64     `json:"report_id"`
	ReportRef       string    `json:"report_ref"`
	VideoID         int64     `json:"video_id,omitempty"`
	ConditionRating float64   `json:"condition_rating"`
	DefectCount     int       `json:"defect_count"`
	GeneratedAt     time.Time `json:"generated_at"`
}
