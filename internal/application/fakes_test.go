package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"strings"
	"sync"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// fakeEngine отдаёт заранее заданные детекции по номеру вызова.
type fakeEngine struct {
	mu     sync.Mutex
	frames [][]entity.Detection
	failAt int // номер вызова с ошибкой, 0 без ошибок
	calls  int
	closed bool
}

func (e *fakeEngine) Detect(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failAt > 0 && e.calls == e.failAt {
		return nil, errors.New("model exploded")
	}
	if len(e.frames) == 0 {
		return nil, nil
	}
	return e.frames[(e.calls-1)%len(e.frames)], nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

// singlePool пул из одного движка
type singlePool struct {
	engine   port.InferenceEngine
	acquired int
	released int
}

func (p *singlePool) Acquire(ctx context.Context) (port.InferenceEngine, error) {
	p.acquired++
	return p.engine, nil
}

func (p *singlePool) Release(e port.InferenceEngine) {
	p.released++
}

type annotation struct {
	box   entity.BBox
	label string
}

// markAnnotator красит левый верхний угол рамки и запоминает вызовы.
type markAnnotator struct {
	calls []annotation
}

func (a *markAnnotator) Annotate(frame *image.RGBA, box entity.BBox, label string) {
	a.calls = append(a.calls, annotation{box: box, label: label})
	frame.Set(box.X1, box.Y1, color.RGBA{R: 255, A: 255})
}

func solidFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	return img
}

// fakeCodec хранит кадры в памяти; writer создаёт настоящий файл,
// чтобы можно было проверить его удаление.
type fakeCodec struct {
	frames   []image.Image
	info     port.VideoInfo
	openErr  error
	readErr  error // ошибка после последнего кадра вместо io.EOF
	writeErr error

	writer *fakeWriter
}

func (c *fakeCodec) OpenReader(path string) (port.FrameReader, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return &fakeReader{codec: c}, nil
}

func (c *fakeCodec) OpenWriter(path string, info port.VideoInfo) (port.FrameWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	c.writer = &fakeWriter{file: f, info: info, err: c.writeErr}
	return c.writer, nil
}

func (c *fakeCodec) Extension() string { return ".mp4" }

type fakeReader struct {
	codec *fakeCodec
	pos   int
}

func (r *fakeReader) Info() port.VideoInfo { return r.codec.info }

func (r *fakeReader) Next() (image.Image, error) {
	if r.pos >= len(r.codec.frames) {
		if r.codec.readErr != nil {
			return nil, r.codec.readErr
		}
		return nil, io.EOF
	}
	f := r.codec.frames[r.pos]
	r.pos++
	return f, nil
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	file   *os.File
	info   port.VideoInfo
	frames []image.Image
	err    error
	closed bool
}

func (w *fakeWriter) Write(frame image.Image) error {
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, frame)
	_, err := w.file.Write([]byte{1})
	return err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return w.file.Close()
}

// memBlobs хранилище файлов в памяти
type memBlobs struct {
	mu      sync.Mutex
	files   map[string][]byte
	putErr  error
	deleted []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{files: make(map[string][]byte)}
}

func (b *memBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.files[key] = data
	b.mu.Unlock()
	return nil
}

func (b *memBlobs) Create(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[key]; ok {
		return entity.ErrConflict
	}
	b.files[key] = data
	return nil
}

func (b *memBlobs) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[key]
	if !ok {
		return nil, 0, entity.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (b *memBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *memBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[key]
	return ok
}

// textRenderer пишет строки документа как есть
type textRenderer struct {
	docs []*entity.ReportDocument
	err  error
}

func (r *textRenderer) Render(ctx context.Context, doc *entity.ReportDocument, w io.Writer) error {
	if r.err != nil {
		return r.err
	}
	r.docs = append(r.docs, doc)
	_, err := io.WriteString(w, doc.Title+"\n"+doc.Rating+"\n"+strings.Join(doc.Lines, "\n"))
	return err
}

func (r *textRenderer) ContentType() string { return "text/plain" }
func (r *textRenderer) Extension() string   { return ".txt" }

// failingStore отказывает на записи отчёта
type failingStore struct {
	port.Store
}

func (s failingStore) InsertReport(ctx context.Context, roadID, ref string, rating float64) (int64, string, error) {
	return 0, "", fmt.Errorf("%w: disk full", entity.ErrStorage)
}

// recordingNotifier запоминает события
type recordingNotifier struct {
	mu     sync.Mutex
	events []entity.ReportEvent
	err    error
}

func (n *recordingNotifier) NotifyReport(ctx context.Context, event entity.ReportEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}
