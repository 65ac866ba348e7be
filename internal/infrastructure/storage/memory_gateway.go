package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// MemoryGateway хранилище дефектов и артефактов в памяти процесса.
// Транзакция работает с копией состояния и подменяет его при успешном завершении.
type MemoryGateway struct {
	mu    sync.RWMutex
	state *memoryState
}

// NewMemoryGateway создаёт пустое хранилище
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{state: newMemoryState()}
}

func (g *MemoryGateway) InsertDefect(ctx context.Context, rec entity.DefectRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.InsertDefect(ctx, rec)
}

func (g *MemoryGateway) InsertVideo(ctx context.Context, roadID, ref string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.InsertVideo(ctx, roadID, ref)
}

func (g *MemoryGateway) InsertReport(ctx context.Context, roadID, ref string, rating float64) (int64, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.InsertReport(ctx, roadID, ref, rating)
}

func (g *MemoryGateway) QueryDefectsByRoad(ctx context.Context, roadID string) ([]entity.DefectRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.QueryDefectsByRoad(ctx, roadID)
}

func (g *MemoryGateway) QueryAllDefects(ctx context.Context) ([]entity.DefectRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.QueryAllDefects(ctx)
}

func (g *MemoryGateway) GetVideo(ctx context.Context, id int64) (*entity.VideoArtifact, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.GetVideo(ctx, id)
}

func (g *MemoryGateway) GetReport(ctx context.Context, id int64) (*entity.ReportArtifact, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.GetReport(ctx, id)
}

func (g *MemoryGateway) GetReportByRoad(ctx context.Context, roadID string) (*entity.ReportArtifact, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.GetReportByRoad(ctx, roadID)
}

func (g *MemoryGateway) ListVideos(ctx context.Context) ([]entity.VideoArtifact, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.ListVideos(ctx)
}

func (g *MemoryGateway) ListReports(ctx context.Context) ([]entity.ReportArtifact, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.ListReports(ctx)
}

func (g *MemoryGateway) RenameArtifact(ctx context.Context, kind entity.ArtifactKind, id int64, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.RenameArtifact(ctx, kind, id, ref)
}

func (g *MemoryGateway) DeleteArtifact(ctx context.Context, kind entity.ArtifactKind, id int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.DeleteArtifact(ctx, kind, id)
}

// WithinTx выполняет fn над копией состояния под эксклюзивной блокировкой.
func (g *MemoryGateway) WithinTx(ctx context.Context, fn func(tx port.Store) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	draft := g.state.clone()
	if err := fn(draft); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	g.state = draft
	return nil
}

func (g *MemoryGateway) Close() error {
	return nil
}

// memoryState данные без блокировок; используется и шлюзом, и транзакцией.
type memoryState struct {
	defects      []entity.DefectRecord
	videos       []entity.VideoArtifact
	reports      []entity.ReportArtifact
	nextVideoID  int64
	nextReportID int64
}

func newMemoryState() *memoryState {
	return &memoryState{nextVideoID: 1, nextReportID: 1}
}

func (s *memoryState) clone() *memoryState {
	cp := &memoryState{
		defects:      make([]entity.DefectRecord, len(s.defects)),
		videos:       make([]entity.VideoArtifact, len(s.videos)),
		reports:      make([]entity.ReportArtifact, len(s.reports)),
		nextVideoID:  s.nextVideoID,
		nextReportID: s.nextReportID,
	}
	copy(cp.defects, s.defects)
	copy(cp.videos, s.videos)
	copy(cp.reports, s.reports)
	return cp
}

func (s *memoryState) InsertDefect(ctx context.Context, rec entity.DefectRecord) error {
	if !rec.BBox.Valid() {
		return fmt.Errorf("%w: invalid bbox %+v", entity.ErrValidation, rec.BBox)
	}
	s.defects = append(s.defects, copyDefect(rec))
	return nil
}

func (s *memoryState) InsertVideo(ctx context.Context, roadID, ref string) (int64, error) {
	id := s.nextVideoID
	s.nextVideoID++
	s.videos = append(s.videos, entity.VideoArtifact{
		ID:        id,
		RoadID:    roadID,
		Reference: ref,
		CreatedAt: time.Now().UTC(),
	})
	return id, nil
}

func (s *memoryState) InsertReport(ctx context.Context, roadID, ref string, rating float64) (int64, string, error) {
	now := time.Now().UTC()
	for i := range s.reports {
		if s.reports[i].RoadID == roadID {
			prev := s.reports[i].Reference
			s.reports[i].Reference = ref
			s.reports[i].ConditionRating = rating
			s.reports[i].CreatedAt = now
			return s.reports[i].ID, prev, nil
		}
	}

	id := s.nextReportID
	s.nextReportID++
	s.reports = append(s.reports, entity.ReportArtifact{
		ID:              id,
		RoadID:          roadID,
		Reference:       ref,
		ConditionRating: rating,
		CreatedAt:       now,
	})
	return id, "", nil
}

func (s *memoryState) QueryDefectsByRoad(ctx context.Context, roadID string) ([]entity.DefectRecord, error) {
	out := make([]entity.DefectRecord, 0)
	for _, d := range s.defects {
		if d.RoadID == roadID {
			out = append(out, copyDefect(d))
		}
	}
	return out, nil
}

func (s *memoryState) QueryAllDefects(ctx context.Context) ([]entity.DefectRecord, error) {
	out := make([]entity.DefectRecord, 0, len(s.defects))
	for _, d := range s.defects {
		out = append(out, copyDefect(d))
	}
	return out, nil
}

func (s *memoryState) GetVideo(ctx context.Context, id int64) (*entity.VideoArtifact, error) {
	for _, v := range s.videos {
		if v.ID == id {
			cp := v
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: video %d", entity.ErrNotFound, id)
}

func (s *memoryState) GetReport(ctx context.Context, id int64) (*entity.ReportArtifact, error) {
	for _, r := range s.reports {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: report %d", entity.ErrNotFound, id)
}

func (s *memoryState) GetReportByRoad(ctx context.Context, roadID string) (*entity.ReportArtifact, error) {
	for _, r := range s.reports {
		if r.RoadID == roadID {
			cp := r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: report for road %q", entity.ErrNotFound, roadID)
}

func (s *memoryState) ListVideos(ctx context.Context) ([]entity.VideoArtifact, error) {
	out := make([]entity.VideoArtifact, len(s.videos))
	copy(out, s.videos)
	return out, nil
}

func (s *memoryState) ListReports(ctx context.Context) ([]entity.ReportArtifact, error) {
	out := make([]entity.ReportArtifact, len(s.reports))
	copy(out, s.reports)
	return out, nil
}

func (s *memoryState) RenameArtifact(ctx context.Context, kind entity.ArtifactKind, id int64, ref string) error {
	switch kind {
	case entity.ArtifactVideo:
		for i := range s.videos {
			if s.videos[i].ID == id {
				s.videos[i].Reference = ref
				return nil
			}
		}
	case entity.ArtifactReport:
		for i := range s.reports {
			if s.reports[i].ID == id {
				s.reports[i].Reference = ref
				return nil
			}
		}
	default:
		return fmt.Errorf("%w: unknown artifact type %q", entity.ErrValidation, kind)
	}
	return fmt.Errorf("%w: %s %d", entity.ErrNotFound, kind, id)
}

func (s *memoryState) DeleteArtifact(ctx context.Context, kind entity.ArtifactKind, id int64) (string, error) {
	switch kind {
	case entity.ArtifactVideo:
		for i, v := range s.videos {
			if v.ID == id {
				s.videos = append(s.videos[:i], s.videos[i+1:]...)
				return v.Reference, nil
			}
		}
	case entity.ArtifactReport:
		for i, r := range s.reports {
			if r.ID == id {
				s.reports = append(s.reports[:i], s.reports[i+1:]...)
				return r.Reference, nil
			}
		}
	default:
		return "", fmt.Errorf("%w: unknown artifact type %q", entity.ErrValidation, kind)
	}
	return "", fmt.Errorf("%w: %s %d", entity.ErrNotFound, kind, id)
}

func copyDefect(d entity.DefectRecord) entity.DefectRecord {
	if d.Location != nil {
		loc := *d.Location
		d.Location = &loc
	}
	return d
}

// Проверка реализации интерфейса
var _ port.StorageGateway = (*MemoryGateway)(nil)
