package httpapi

import (
	"road-inspector/internal/domain/entity"
)

// frameDefect дефект в ответе /detect_frame
type frameDefect struct {
	Type      string   `json:"type"`
	X1        int      `json:"x1"`
	Y1        int      `json:"y1"`
	X2        int      `json:"x2"`
	Y2        int      `json:"y2"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type detectFrameResponse struct {
	Defects []frameDefect `json:"defects"`
	Image   string        `json:"image"` // base64 JPEG
}

type detectResponse struct {
	AnnotatedVideo  string  `json:"annotated_video"`
	VideoID         int64   `json:"video_id"`
	Defects         [][]any `json:"defects"` // [road_id, type, x1, y1, x2, y2]
	Frames          int     `json:"frames"`
	ConditionRating float64 `json:"condition_rating"`
	Report          string  `json:"report"`
	ReportID        int64   `json:"report_id"`
}

type filesResponse struct {
	Videos  [][]any `json:"videos"`  // [id, road_id, file_path]
	Reports [][]any `json:"reports"` // [id, road_id, report_path, condition_rating]
}

type reportResponse struct {
	RoadID          string  `json:"road_id"`
	ReportID        int64   `json:"report_id"`
	Report          string  `json:"report"`
	ConditionRating float64 `json:"condition_rating"`
	DefectCount     int     `json:"defect_count"`
}

type renameRequest struct {
	Type    string `json:"type"`
	ID      int64  `json:"id"`
	NewName string `json:"new_name"`
}

type deleteRequest struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

func toFrameDefects(records []entity.DefectRecord) []frameDefect {
	out := make([]frameDefect, 0, len(records))
	for _, r := range records {
		lat, lon := coordinates(r.Location)
		out = append(out, frameDefect{
			Type:      r.DefectType,
			X1:        r.BBox.X1,
			Y1:        r.BBox.Y1,
			X2:        r.BBox.X2,
			Y2:        r.BBox.Y2,
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return out
}

func toDefectTuples(records []entity.DefectRecord) [][]any {
	out := make([][]any, 0, len(records))
	for _, r := range records {
		out = append(out, []any{r.RoadID, r.DefectType, r.BBox.X1, r.BBox.Y1, r.BBox.X2, r.BBox.Y2})
	}
	return out
}

// toLocationTuples строки для карты: [road_id, defect_type, latitude, longitude]
func toLocationTuples(records []entity.DefectRecord) [][]any {
	out := make([][]any, 0, len(records))
	for _, r := range records {
		lat, lon := coordinates(r.Location)
		out = append(out, []any{r.RoadID, r.DefectType, lat, lon})
	}
	return out
}

func toFilesResponse(videos []entity.VideoArtifact, reports []entity.ReportArtifact) filesResponse {
	resp := filesResponse{
		Videos:  make([][]any, 0, len(videos)),
		Reports: make([][]any, 0, len(reports)),
	}
	for _, v := range videos {
		resp.Videos = append(resp.Videos, []any{v.ID, v.RoadID, v.Reference})
	}
	for _, r := range reports {
		resp.Reports = append(resp.Reports, []any{r.ID, r.RoadID, r.Reference, r.ConditionRating})
	}
	return resp
}

func coordinates(p *entity.GeoPoint) (lat, lon *float64) {
	if p == nil {
		return nil, nil
	}
	la, lo := p.Latitude, p.Longitude
	return &la, &lo
}
