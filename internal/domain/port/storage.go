package port

import (
	"context"

	"road-inspector/internal/domain/entity"
)

// Store операции над дефектами и артефактами. Любой метод может вернуть ошибку,
// обёрнутую в entity.ErrStorage; отсутствующие записи дают entity.ErrNotFound.
type Store interface {
	InsertDefect(ctx context.Context, rec entity.DefectRecord) error
	InsertVideo(ctx context.Context, roadID, ref string) (int64, error)

	// InsertReport сохраняет отчёт участка. Существующий отчёт того же road_id
	// перезаписывается, previousRef содержит его старую ссылку.
	InsertReport(ctx context.Context, roadID, ref string, rating float64) (id int64, previousRef string, err error)

	// QueryDefectsByRoad возвращает дефекты в порядке вставки
	QueryDefectsByRoad(ctx context.Context, roadID string) ([]entity.DefectRecord, error)
	QueryAllDefects(ctx context.Context) ([]entity.DefectRecord, error)

	GetVideo(ctx context.Context, id int64) (*entity.VideoArtifact, error)
	GetReport(ctx context.Context, id int64) (*entity.ReportArtifact, error)
	GetReportByRoad(ctx context.Context, roadID string) (*entity.ReportArtifact, error)
	ListVideos(ctx context.Context) ([]entity.VideoArtifact, error)
	ListReports(ctx context.Context) ([]entity.ReportArtifact, error)

	RenameArtifact(ctx context.Context, kind entity.ArtifactKind, id int64, ref string) error
	// DeleteArtifact удаляет запись и возвращает её ссылку для очистки файла
	DeleteArtifact(ctx context.Context, kind entity.ArtifactKind, id int64) (string, error)
}

// StorageGateway хранилище с единицей работы.
type StorageGateway interface {
	Store

	// WithinTx выполняет fn в одной транзакции. Ошибка fn откатывает все записи.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
