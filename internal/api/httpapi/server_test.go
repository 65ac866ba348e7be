package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	app "road-inspector/internal/application"
	"road-inspector/internal/domain/entity"
	"road-inspector/internal/infrastructure/blob"
	"road-inspector/internal/infrastructure/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSurvey struct {
	videoUpload app.SurveyUpload
	videoBody   string
	videoErr    error
	frameUpload app.FrameUpload
	frameErr    error
	regenErr    error
}

func (f *fakeSurvey) ProcessVideo(ctx context.Context, in app.SurveyUpload) (*app.SurveyResult, error) {
	f.videoUpload = in
	if in.Body != nil {
		data, _ := io.ReadAll(in.Body)
		f.videoBody = string(data)
	}
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return &app.SurveyResult{
		VideoID:  3,
		VideoRef: "videos/abc.mp4",
		Defects: []entity.DefectRecord{
			{RoadID: in.RoadID, DefectType: "crack", BBox: entity.BBox{X1: 1, Y1: 2, X2: 3, Y2: 4}},
		},
		Frames:    12,
		Rating:    87.5,
		ReportID:  1,
		ReportRef: "reports/def.pdf",
	}, nil
}

func (f *fakeSurvey) DetectFrame(ctx context.Context, in app.FrameUpload) (*app.FrameResult, error) {
	f.frameUpload = in
	if f.frameErr != nil {
		return nil, f.frameErr
	}
	return &app.FrameResult{
		Defects: []entity.DefectRecord{
			{RoadID: in.RoadID, DefectType: "pothole", BBox: entity.BBox{X1: 5, Y1: 6, X2: 7, Y2: 8}, Location: in.Location},
		},
		Image: []byte{0xFF, 0xD8, 0xFF},
	}, nil
}

func (f *fakeSurvey) RegenerateReport(ctx context.Context, roadID string) (*app.ReportResult, error) {
	if f.regenErr != nil {
		return nil, f.regenErr
	}
	return &app.ReportResult{ID: 9, Reference: "reports/new.pdf", Rating: 64, DefectCount: 3}, nil
}

type testServer struct {
	server *Server
	survey *fakeSurvey
	store  *storage.MemoryGateway
	blobs  *blob.FSStore
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()

	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)
	store := storage.NewMemoryGateway()
	survey := &fakeSurvey{}

	return &testServer{
		server: NewServer(Deps{
			Survey:         survey,
			Artifacts:      app.NewArtifactService(store, blobs, zap.NewNop()),
			Logger:         zap.NewNop(),
			MaxUploadBytes: maxUpload,
		}),
		survey: survey,
		store:  store,
		blobs:  blobs,
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, path, field, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestDetectFrame(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	w := ts.do(multipartRequest(t, "/detect_frame", "frame", "f.jpg", []byte("jpeg"), map[string]string{
		"latitude":  "55.75",
		"longitude": "37.61",
		"road_id":   "R1",
	}))
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, []byte("jpeg"), ts.survey.frameUpload.Image)
	require.Equal(t, "R1", ts.survey.frameUpload.RoadID)
	require.Equal(t, &entity.GeoPoint{Latitude: 55.75, Longitude: 37.61}, ts.survey.frameUpload.Location)

	var resp detectFrameResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Defects, 1)
	require.Equal(t, "pothole", resp.Defects[0].Type)
	require.Equal(t, 55.75, *resp.Defects[0].Latitude)
	img, err := base64.StdEncoding.DecodeString(resp.Image)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xD8, 0xFF}, img)
}

func TestDetectFrame_NoLocation(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	w := ts.do(multipartRequest(t, "/detect_frame", "frame", "f.jpg", []byte("jpeg"), nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, ts.survey.frameUpload.Location)
	require.Contains(t, w.Body.String(), `"latitude":null`)
}

func TestDetectFrame_BadRequests(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	w := ts.do(multipartRequest(t, "/detect_frame", "", "", nil, map[string]string{"road_id": "R1"}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(multipartRequest(t, "/detect_frame", "frame", "f.jpg", []byte("x"), map[string]string{"latitude": "55"}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(multipartRequest(t, "/detect_frame", "frame", "f.jpg", []byte("x"), map[string]string{"latitude": "north", "longitude": "1"}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	ts.survey.frameErr = fmt.Errorf("%w: decode frame: bad header", entity.ErrDecode)
	w = ts.do(multipartRequest(t, "/detect_frame", "frame", "f.jpg", []byte("x"), nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "decode_failure", decodeBody(t, w)["kind"])
}

func TestDetectFrame_TooLarge(t *testing.T) {
	ts := newTestServer(t, 64)

	w := ts.do(multipartRequest(t, "/detect_frame", "frame", "f.jpg", bytes.Repeat([]byte("x"), 1024), nil))
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDetectVideo(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	w := ts.do(multipartRequest(t, "/detect", "video", "survey.mp4", []byte("video bytes"), map[string]string{"road_id": "R1"}))
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, "R1", ts.survey.videoUpload.RoadID)
	require.Equal(t, "survey.mp4", ts.survey.videoUpload.Filename)
	require.Equal(t, "video bytes", ts.survey.videoBody)

	body := decodeBody(t, w)
	require.Equal(t, "videos/abc.mp4", body["annotated_video"])
	require.Equal(t, 87.5, body["condition_rating"])
	require.Equal(t, "reports/def.pdf", body["report"])
	require.Equal(t, []any{[]any{"R1", "crack", 1.0, 2.0, 3.0, 4.0}}, body["defects"])
}

func TestDetectVideo_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", fmt.Errorf("%w: road_id is required", entity.ErrValidation), http.StatusBadRequest, "validation_error"},
		{"decode", fmt.Errorf("%w: open video", entity.ErrDecode), http.StatusBadRequest, "decode_failure"},
		{"inference", fmt.Errorf("%w: model crashed", entity.ErrInference), http.StatusInternalServerError, "inference_failure"},
		{"storage", fmt.Errorf("%w: disk full", entity.ErrStorage), http.StatusInternalServerError, "storage_failure"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, 1<<20)
			ts.survey.videoErr = tc.err

			w := ts.do(multipartRequest(t, "/detect", "video", "a.mp4", []byte("v"), map[string]string{"road_id": "R1"}))
			require.Equal(t, tc.status, w.Code)
			body := decodeBody(t, w)
			require.Equal(t, tc.kind, body["kind"])
			require.Equal(t, tc.err.Error(), body["error"])
		})
	}
}

func TestGetDefectsAndFiles(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	ctx := context.Background()

	require.NoError(t, ts.store.InsertDefect(ctx, entity.DefectRecord{
		RoadID: "R1", DefectType: "crack", BBox: entity.BBox{X1: 0, Y1: 0, X2: 1, Y2: 1},
		Location: &entity.GeoPoint{Latitude: 1.5, Longitude: 2.5},
	}))
	require.NoError(t, ts.store.InsertDefect(ctx, entity.DefectRecord{
		RoadID: "R1", DefectType: "pothole", BBox: entity.BBox{X1: 0, Y1: 0, X2: 1, Y2: 1},
	}))
	_, err := ts.store.InsertVideo(ctx, "R1", "videos/a.mp4")
	require.NoError(t, err)
	_, _, err = ts.store.InsertReport(ctx, "R1", "reports/b.pdf", 70)
	require.NoError(t, err)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/get_defects", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[["R1","crack",1.5,2.5],["R1","pothole",null,null]]`, w.Body.String())

	w = ts.do(httptest.NewRequest(http.MethodGet, "/get_files", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"videos":[[1,"R1","videos/a.mp4"]],"reports":[[1,"R1","reports/b.pdf",70]]}`, w.Body.String())
}

func TestDownload(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	ctx := context.Background()

	require.NoError(t, ts.blobs.Put(ctx, "reports/b.pdf", strings.NewReader("%PDF-1.3"), 8, "application/pdf"))
	id, _, err := ts.store.InsertReport(ctx, "R1", "reports/b.pdf", 70)
	require.NoError(t, err)

	w := ts.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/download_report/%d", id), nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "%PDF-1.3", w.Body.String())
	require.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), `attachment; filename="b.pdf"`)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/download_video/42", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "File not found", decodeBody(t, w)["error"])

	w = ts.do(httptest.NewRequest(http.MethodGet, "/download_video/abc", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenameAndDelete(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	ctx := context.Background()

	require.NoError(t, ts.blobs.Put(ctx, "videos/a.mp4", strings.NewReader("video"), 5, "video/mp4"))
	id, err := ts.store.InsertVideo(ctx, "R1", "videos/a.mp4")
	require.NoError(t, err)

	w := ts.do(jsonRequest(t, "/rename_file", map[string]any{"type": "video", "id": id}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Missing parameters", decodeBody(t, w)["error"])

	w = ts.do(jsonRequest(t, "/rename_file", map[string]any{"type": "image", "id": id, "new_name": "x"}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(jsonRequest(t, "/rename_file", map[string]any{"type": "video", "id": id, "new_name": "morning"}))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, "File renamed successfully", body["message"])
	require.Equal(t, "videos/morning.mp4", body["reference"])

	require.NoError(t, ts.blobs.Put(ctx, "videos/evening.mp4", strings.NewReader("other"), 5, "video/mp4"))
	w = ts.do(jsonRequest(t, "/rename_file", map[string]any{"type": "video", "id": id, "new_name": "evening"}))
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "conflict", decodeBody(t, w)["kind"])

	w = ts.do(jsonRequest(t, "/delete_file", map[string]any{"type": "video"}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(jsonRequest(t, "/delete_file", map[string]any{"type": "video", "id": id}))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "File deleted successfully", decodeBody(t, w)["message"])

	w = ts.do(jsonRequest(t, "/delete_file", map[string]any{"type": "video", "id": id}))
	require.Equal(t, http.StatusNotFound, w.Code)

	_, _, err = ts.blobs.Open(ctx, "videos/morning.mp4")
	require.ErrorIs(t, err, entity.ErrNotFound)
}

func TestRegenerateReport(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	w := ts.do(httptest.NewRequest(http.MethodPost, "/api/roads/R1/report", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"road_id":"R1","report_id":9,"report":"reports/new.pdf","condition_rating":64,"defect_count":3}`, w.Body.String())

	ts.survey.regenErr = fmt.Errorf("%w: no defects recorded", entity.ErrNotFound)
	w = ts.do(httptest.NewRequest(http.MethodPost, "/api/roads/R2/report", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	ts.server.health = func(ctx context.Context) error { return errors.New("database is locked") }
	w = ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestParseLocation(t *testing.T) {
	loc, err := parseLocation("", " ")
	require.NoError(t, err)
	require.Nil(t, loc)

	loc, err = parseLocation("-33.9", "151.2")
	require.NoError(t, err)
	require.Equal(t, &entity.GeoPoint{Latitude: -33.9, Longitude: 151.2}, loc)

	_, err = parseLocation("91", "0")
	require.ErrorIs(t, err, entity.ErrValidation)

	for _, bad := range [][2]string{{"NaN", "10"}, {"10", "nan"}, {"Inf", "0"}, {"0", "-Infinity"}} {
		_, err = parseLocation(bad[0], bad[1])
		require.ErrorIs(t, err, entity.ErrValidation, "latitude=%s longitude=%s", bad[0], bad[1])
	}
}

func TestDetectFrame_NonFiniteCoordinatesRejected(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	w := ts.do(multipartRequest(t, "/detect_frame", "frame", "f.jpg", []byte("jpeg"), map[string]string{
		"latitude":  "NaN",
		"longitude": "10",
		"road_id":   "R1",
	}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation_error", decodeBody(t, w)["kind"])
	require.Nil(t, ts.survey.frameUpload.Image)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/get_defects", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())
}
