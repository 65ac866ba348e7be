package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

const (
	DefaultTimeout     = 30 * time.Second
	frameJPEGQuality   = 90
	maxErrorBodyLength = 512
)

// detection элемент ответа сервиса детекции
type detection struct {
	Class      string    `json:"class"`
	ClassID    int       `json:"class_id"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"` // [x1, y1, x2, y2]
}

type detectResponse struct {
	Detections []detection `json:"detections"`
}

// HTTPEngine клиент внешнего сервиса детекции: кадр уходит JPEG-файлом в multipart-форме.
// Клиент потокобезопасен.
type HTTPEngine struct {
	endpoint   string
	client     *http.Client
	confidence float64
}

// NewHTTPEngine создаёт клиента. confidence задаёт порог, передаваемый сервису; при 0 действует порог сервиса.
func NewHTTPEngine(endpoint string, confidence float64, timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPEngine{
		endpoint:   strings.TrimRight(endpoint, "/"),
		client:     &http.Client{Timeout: timeout},
		confidence: confidence,
	}
}

func (e *HTTPEngine) Detect(ctx context.Context, frame image.Image) ([]entity.Detection, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, err
	}
	if err := jpeg.Encode(fw, frame, &jpeg.Options{Quality: frameJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if e.confidence > 0 {
		if err := w.WriteField("conf_threshold", strconv.FormatFloat(e.confidence, 'f', 2, 64)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/detect", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return nil, fmt.Errorf("detection failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode detection response: %w", err)
	}

	out := make([]entity.Detection, 0, len(result.Detections))
	for _, d := range result.Detections {
		if len(d.BBox) != 4 {
			return nil, fmt.Errorf("detection %q has %d bbox values, want 4", d.Class, len(d.BBox))
		}
		out = append(out, entity.Detection{
			ClassID:    d.ClassID,
			Label:      d.Class,
			Confidence: d.Confidence,
			BBox: entity.BBox{
				X1: int(d.BBox[0]),
				Y1: int(d.BBox[1]),
				X2: int(d.BBox[2]),
				Y2: int(d.BBox[3]),
			},
		})
	}
	return out, nil
}

// Health проверяет доступность сервиса
func (e *HTTPEngine) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (e *HTTPEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

var _ port.InferenceEngine = (*HTTPEngine)(nil)
