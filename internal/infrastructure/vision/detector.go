//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// DNNEngine детектор на модели YOLOv8 в формате ONNX.
// Экземпляр не потокобезопасен: Forward одного gocv.Net нельзя вызывать параллельно,
// поэтому движки раздаются запросам через пул.
type DNNEngine struct {
	net        gocv.Net
	classes    []string
	inputSize  int
	confidence float32
	nms        float32
}

// NewDNNEngine загружает модель с диска.
func NewDNNEngine(cfg DNNConfig) (*DNNEngine, error) {
	cfg = cfg.withDefaults()
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &DNNEngine{
		net:        net,
		classes:    cfg.Classes,
		inputSize:  cfg.InputSize,
		confidence: cfg.ConfidenceThreshold,
		nms:        cfg.NMSThreshold,
	}, nil
}

// Detect прогоняет кадр через сеть. Рамки возвращаются в координатах исходного кадра.
func (e *DNNEngine) Detect(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.New("empty frame")
	}

	width, height := mat.Cols(), mat.Rows()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(e.inputSize, e.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	return e.decode(out, width, height)
}

// decode разбирает выход формы [1, 4+классы, N]: центр, размер, затем оценки классов.
func (e *DNNEngine) decode(out gocv.Mat, width, height int) ([]entity.Detection, error) {
	dims := out.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	attrs, n := dims[1], dims[2]

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	scaleX := float32(width) / float32(e.inputSize)
	scaleY := float32(height) / float32(e.inputSize)

	boxes := make([]image.Rectangle, 0)
	scores := make([]float32, 0)
	classIDs := make([]int, 0)
	for i := 0; i < n; i++ {
		best, classID := float32(0), 0
		for c := 4; c < attrs; c++ {
			if s := data[c*n+i]; s > best {
				best, classID = s, c-4
			}
		}
		if best < e.confidence {
			continue
		}

		cx, cy := data[i]*scaleX, data[n+i]*scaleY
		w, h := data[2*n+i]*scaleX, data[3*n+i]*scaleY
		boxes = append(boxes, image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)))
		scores = append(scores, best)
		classIDs = append(classIDs, classID)
	}
	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, e.confidence, e.nms)
	detections := make([]entity.Detection, 0, len(keep))
	for _, idx := range keep {
		r := boxes[idx]
		detections = append(detections, entity.Detection{
			ClassID:    classIDs[idx],
			Label:      e.label(classIDs[idx]),
			Confidence: float64(scores[idx]),
			BBox:       entity.BBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y},
		})
	}
	return detections, nil
}

func (e *DNNEngine) label(classID int) string {
	if classID >= 0 && classID < len(e.classes) {
		return e.classes[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}

func (e *DNNEngine) Close() error {
	return e.net.Close()
}

var _ port.InferenceEngine = (*DNNEngine)(nil)
