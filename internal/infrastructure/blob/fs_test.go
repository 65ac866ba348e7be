package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"road-inspector/internal/domain/entity"
)

func TestFSStore_PutOpenDelete(t *testing.T) {
	root := t.TempDir()
	s, err := NewFSStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "reports/a.pdf", strings.NewReader("%PDF-1.3"), 8, "application/pdf"))
	require.FileExists(t, filepath.Join(root, "reports", "a.pdf"))

	body, size, err := s.Open(ctx, "reports/a.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	require.Equal(t, "%PDF-1.3", string(data))
	require.Equal(t, int64(8), size)

	require.NoError(t, s.Delete(ctx, "reports/a.pdf"))
	require.NoError(t, s.Delete(ctx, "reports/a.pdf"))

	_, _, err = s.Open(ctx, "reports/a.pdf")
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestFSStore_OverwriteLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := NewFSStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "videos/a.mp4", strings.NewReader("one"), 3, "video/mp4"))
	require.NoError(t, s.Put(ctx, "videos/a.mp4", strings.NewReader("two!"), 4, "video/mp4"))

	entries, err := os.ReadDir(filepath.Join(root, "videos"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFSStore_RejectsEscapingKeys(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../evil", "/etc/passwd", "videos/../../x", ""} {
		err := s.Put(ctx, key, strings.NewReader("x"), 1, "")
		require.ErrorIs(t, err, entity.ErrValidation, key)

		_, _, err = s.Open(ctx, key)
		require.ErrorIs(t, err, entity.ErrValidation, key)
	}
}

func TestFSStore_CreateNeverOverwrites(t *testing.T) {
	root := t.TempDir()
	s, err := NewFSStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "videos/a.mp4", strings.NewReader("one"), 3, "video/mp4"))
	err = s.Create(ctx, "videos/a.mp4", strings.NewReader("two!"), 4, "video/mp4")
	require.ErrorIs(t, err, entity.ErrConflict)

	data, err := os.ReadFile(filepath.Join(root, "videos", "a.mp4"))
	require.NoError(t, err)
	require.Equal(t, "one", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "videos"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFSStore_ConcurrentCreateSingleWinner(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Create(ctx, "reports/r.pdf", strings.NewReader(strings.Repeat("x", i+1)), int64(i+1), "application/pdf")
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, entity.ErrConflict)
	}
	require.Equal(t, 1, ok)
}
