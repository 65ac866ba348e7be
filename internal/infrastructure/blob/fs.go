package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// FSStore хранит файлы в каталоге на диске. Ключ: относительный путь внутри корня.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: invalid blob key %q", entity.ErrValidation, key)
	}
	return filepath.Join(s.root, rel), nil
}

// Put пишет во временный файл и переименовывает, чтобы читатели не видели недописанный файл.
func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	p, tmp, err := s.writeTemp(key, r)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: write %s: %w", entity.ErrStorage, key, err)
	}
	return nil
}

// Create публикует файл жёсткой ссылкой: link не заменяет существующий путь,
// поэтому из двух одновременных вызовов с одним ключом успешен только один.
func (s *FSStore) Create(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	p, tmp, err := s.writeTemp(key, r)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, p); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: file %s", entity.ErrConflict, key)
		}
		return fmt.Errorf("%w: write %s: %w", entity.ErrStorage, key, err)
	}
	return nil
}

// writeTemp пишет содержимое во временный файл рядом с целевым путём.
func (s *FSStore) writeTemp(key string, r io.Reader) (string, string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", "", fmt.Errorf("%w: create dir: %w", entity.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", "", fmt.Errorf("%w: create file: %w", entity.ErrStorage, err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("%w: write %s: %w", entity.ErrStorage, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("%w: write %s: %w", entity.ErrStorage, key, err)
	}
	return p, tmp.Name(), nil
}

func (s *FSStore) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, fmt.Errorf("%w: file %s", entity.ErrNotFound, key)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open %s: %w", entity.ErrStorage, key, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("%w: stat %s: %w", entity.ErrStorage, key, err)
	}
	return f, st.Size(), nil
}

// Delete удаляет файл; отсутствие файла не ошибка.
func (s *FSStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %w", entity.ErrStorage, key, err)
	}
	return nil
}

var _ port.BlobStore = (*FSStore)(nil)
