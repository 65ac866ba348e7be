package blob

import (
	"context"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinIOStore хранит видео и отчёты в одном бакете объектного хранилища.
type MinIOStore struct {
	client *miniogo.Client
	bucket string
}

func NewMinIOStore(cfg MinIOConfig) (*MinIOStore, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("%w: upload %s: %w", entity.ErrStorage, key, err)
	}
	return nil
}

// Create проверяет ключ через StatObject перед загрузкой. Проверка не атомарна
// на стороне сервера; одновременные переименования сериализует ArtifactService.
func (s *MinIOStore) Create(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{})
	if err == nil {
		return fmt.Errorf("%w: object %s", entity.ErrConflict, key)
	}
	if !isNotFound(err) {
		return fmt.Errorf("%w: stat %s: %w", entity.ErrStorage, key, err)
	}
	return s.Put(ctx, key, r, size, contentType)
}

func (s *MinIOStore) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	st, err := s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, fmt.Errorf("%w: object %s", entity.ErrNotFound, key)
		}
		return nil, 0, fmt.Errorf("%w: stat %s: %w", entity.ErrStorage, key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: get %s: %w", entity.ErrStorage, key, err)
	}
	return obj, st.Size, nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: delete %s: %w", entity.ErrStorage, key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	resp := miniogo.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}

var _ port.BlobStore = (*MinIOStore)(nil)
