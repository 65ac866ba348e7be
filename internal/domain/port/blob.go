package port

import (
	"context"
	"io"
)

// BlobStore хранилище файлов артефактов
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Create как Put, но не перезаписывает: entity.ErrConflict, если ключ занят
	Create(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open возвращает содержимое и размер; entity.ErrNotFound, если файла нет
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
}
