package app

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// FileListing все сохранённые видео и отчёты
type FileListing struct {
	Videos  []entity.VideoArtifact
	Reports []entity.ReportArtifact
}

// Download содержимое артефакта для отдачи клиенту
type Download struct {
	Body        io.ReadCloser
	Size        int64
	Name        string
	ContentType string
}

// ArtifactService просмотр, выгрузка, переименование и удаление артефактов.
type ArtifactService struct {
	store  port.StorageGateway
	blobs  port.BlobStore
	logger *zap.Logger

	// renameMu держит переименования по одному: разрешение ссылки, копия и
	// обновление записи должны видеть одно и то же состояние хранилища
	renameMu sync.Mutex
}

func NewArtifactService(store port.StorageGateway, blobs port.BlobStore, logger *zap.Logger) *ArtifactService {
	return &ArtifactService{store: store, blobs: blobs, logger: logger}
}

func (s *ArtifactService) ListFiles(ctx context.Context) (*FileListing, error) {
	videos, err := s.store.ListVideos(ctx)
	if err != nil {
		return nil, err
	}
	reports, err := s.store.ListReports(ctx)
	if err != nil {
		return nil, err
	}
	return &FileListing{Videos: videos, Reports: reports}, nil
}

// DefectLocations все сохранённые дефекты для карты
func (s *ArtifactService) DefectLocations(ctx context.Context) ([]entity.DefectRecord, error) {
	return s.store.QueryAllDefects(ctx)
}

// Open возвращает содержимое артефакта. ErrNotFound, если нет записи или файла.
func (s *ArtifactService) Open(ctx context.Context, kind entity.ArtifactKind, id int64) (*Download, error) {
	ref, err := s.reference(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return s.openBlob(ctx, ref)
}

// OpenRoadReport текущий отчёт участка вместе с его записью.
func (s *ArtifactService) OpenRoadReport(ctx context.Context, roadID string) (*entity.ReportArtifact, *Download, error) {
	roadID = strings.TrimSpace(roadID)
	if roadID == "" {
		return nil, nil, fmt.Errorf("%w: road_id is required", entity.ErrValidation)
	}

	report, err := s.store.GetReportByRoad(ctx, roadID)
	if err != nil {
		return nil, nil, err
	}
	dl, err := s.openBlob(ctx, report.Reference)
	if err != nil {
		return nil, nil, err
	}
	return report, dl, nil
}

// Rename переносит файл артефакта под новое имя в том же каталоге хранилища
// и обновляет ссылку. Расширение сохраняется, если новое имя его не содержит.
// Занятое имя даёт entity.ErrConflict; существующий файл не перезаписывается.
func (s *ArtifactService) Rename(ctx context.Context, kind entity.ArtifactKind, id int64, newName string) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("%w: artifact id is required", entity.ErrValidation)
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return "", fmt.Errorf("%w: new_name is required", entity.ErrValidation)
	}
	if strings.ContainsAny(newName, `/\`) || newName == "." || newName == ".." {
		return "", fmt.Errorf("%w: new_name must be a plain file name", entity.ErrValidation)
	}

	s.renameMu.Lock()
	defer s.renameMu.Unlock()

	oldRef, err := s.reference(ctx, kind, id)
	if err != nil {
		return "", err
	}

	if path.Ext(newName) == "" {
		newName += path.Ext(oldRef)
	}
	newRef := path.Join(path.Dir(oldRef), newName)
	if newRef == oldRef {
		return oldRef, nil
	}

	if err := s.copyBlob(ctx, oldRef, newRef); err != nil {
		return "", fmt.Errorf("rename to %q: %w", newName, err)
	}
	if err := s.store.RenameArtifact(ctx, kind, id, newRef); err != nil {
		s.deleteBlob(ctx, newRef)
		return "", err
	}
	s.deleteBlob(ctx, oldRef)

	s.logger.Info("artifact renamed",
		zap.String("type", string(kind)),
		zap.Int64("id", id),
		zap.String("ref", newRef),
	)
	return newRef, nil
}

// Delete удаляет запись, затем файл. Ошибка удаления файла только логируется.
func (s *ArtifactService) Delete(ctx context.Context, kind entity.ArtifactKind, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: artifact id is required", entity.ErrValidation)
	}

	ref, err := s.store.DeleteArtifact(ctx, kind, id)
	if err != nil {
		return err
	}
	s.deleteBlob(ctx, ref)

	s.logger.Info("artifact deleted", zap.String("type", string(kind)), zap.Int64("id", id))
	return nil
}

func (s *ArtifactService) reference(ctx context.Context, kind entity.ArtifactKind, id int64) (string, error) {
	switch kind {
	case entity.ArtifactVideo:
		v, err := s.store.GetVideo(ctx, id)
		if err != nil {
			return "", err
		}
		return v.Reference, nil
	case entity.ArtifactReport:
		r, err := s.store.GetReport(ctx, id)
		if err != nil {
			return "", err
		}
		return r.Reference, nil
	default:
		return "", fmt.Errorf("%w: unknown artifact type %q", entity.ErrValidation, kind)
	}
}

func (s *ArtifactService) openBlob(ctx context.Context, ref string) (*Download, error) {
	body, size, err := s.blobs.Open(ctx, ref)
	if err != nil {
		return nil, err
	}

	contentType := mime.TypeByExtension(path.Ext(ref))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Download{
		Body:        body,
		Size:        size,
		Name:        path.Base(ref),
		ContentType: contentType,
	}, nil
}

func (s *ArtifactService) copyBlob(ctx context.Context, from, to string) error {
	body, size, err := s.blobs.Open(ctx, from)
	if err != nil {
		return err
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(to))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.blobs.Create(ctx, to, body, size, contentType)
}

func (s *ArtifactService) deleteBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete blob", zap.String("key", key), zap.Error(err))
	}
}
