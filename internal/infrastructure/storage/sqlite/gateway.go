package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// querier общее у *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Gateway хранилище дефектов и артефактов в SQLite.
type Gateway struct {
	store
	db *sql.DB
}

// InsertReport вне транзакции выполняется в собственной, чтобы чтение старой ссылки
// и запись новой были атомарны.
func (g *Gateway) InsertReport(ctx context.Context, roadID, ref string, rating float64) (id int64, prev string, err error) {
	err = g.WithinTx(ctx, func(tx port.Store) error {
		id, prev, err = tx.InsertReport(ctx, roadID, ref, rating)
		return err
	})
	return id, prev, err
}

func (g *Gateway) WithinTx(ctx context.Context, fn func(tx port.Store) error) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", entity.ErrStorage, err)
	}

	if err := fn(&store{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %w", entity.ErrStorage, err)
	}
	return nil
}

func (g *Gateway) Close() error {
	return g.db.Close()
}

// Ping проверяет соединение
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

type store struct {
	q querier
}

func (s *store) InsertDefect(ctx context.Context, rec entity.DefectRecord) error {
	if !rec.BBox.Valid() {
		return fmt.Errorf("%w: invalid bbox %+v", entity.ErrValidation, rec.BBox)
	}

	var lat, lon sql.NullFloat64
	if rec.Location != nil {
		lat = sql.NullFloat64{Float64: rec.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: rec.Location.Longitude, Valid: true}
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO defects (road_id, defect_type, x1, y1, x2, y2, latitude, longitude) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RoadID, rec.DefectType, rec.BBox.X1, rec.BBox.Y1, rec.BBox.X2, rec.BBox.Y2, lat, lon,
	)
	if err != nil {
		return fmt.Errorf("%w: insert defect: %w", entity.ErrStorage, err)
	}
	return nil
}

func (s *store) InsertVideo(ctx context.Context, roadID, ref string) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO videos (road_id, file_path, created_at) VALUES (?, ?, ?)`,
		roadID, ref, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert video: %w", entity.ErrStorage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: insert video: %w", entity.ErrStorage, err)
	}
	return id, nil
}

func (s *store) InsertReport(ctx context.Context, roadID, ref string, rating float64) (int64, string, error) {
	var prev string
	err := s.q.QueryRowContext(ctx, `SELECT report_path FROM reports WHERE road_id = ?`, roadID).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, "", fmt.Errorf("%w: find report: %w", entity.ErrStorage, err)
	}

	var id int64
	err = s.q.QueryRowContext(ctx, `
		INSERT INTO reports (road_id, report_path, condition_rating, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(road_id) DO UPDATE SET
			report_path = excluded.report_path,
			condition_rating = excluded.condition_rating,
			created_at = excluded.created_at
		RETURNING id`,
		roadID, ref, rating, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, "", fmt.Errorf("%w: upsert report: %w", entity.ErrStorage, err)
	}
	return id, prev, nil
}

func (s *store) QueryDefectsByRoad(ctx context.Context, roadID string) ([]entity.DefectRecord, error) {
	return s.queryDefects(ctx,
		`SELECT road_id, defect_type, x1, y1, x2, y2, latitude, longitude FROM defects WHERE road_id = ? ORDER BY id`,
		roadID,
	)
}

func (s *store) QueryAllDefects(ctx context.Context) ([]entity.DefectRecord, error) {
	return s.queryDefects(ctx,
		`SELECT road_id, defect_type, x1, y1, x2, y2, latitude, longitude FROM defects ORDER BY id`,
	)
}

func (s *store) queryDefects(ctx context.Context, query string, args ...any) ([]entity.DefectRecord, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query defects: %w", entity.ErrStorage, err)
	}
	defer rows.Close()

	out := make([]entity.DefectRecord, 0)
	for rows.Next() {
		var (
			d        entity.DefectRecord
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&d.RoadID, &d.DefectType, &d.BBox.X1, &d.BBox.Y1, &d.BBox.X2, &d.BBox.Y2, &lat, &lon); err != nil {
			return nil, fmt.Errorf("%w: scan defect: %w", entity.ErrStorage, err)
		}
		if lat.Valid && lon.Valid {
			d.Location = &entity.GeoPoint{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query defects: %w", entity.ErrStorage, err)
	}
	return out, nil
}

func (s *store) GetVideo(ctx context.Context, id int64) (*entity.VideoArtifact, error) {
	v := &entity.VideoArtifact{}
	err := s.q.QueryRowContext(ctx,
		`SELECT id, road_id, file_path, created_at FROM videos WHERE id = ?`, id,
	).Scan(&v.ID, &v.RoadID, &v.Reference, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: video %d", entity.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get video: %w", entity.ErrStorage, err)
	}
	return v, nil
}

func (s *store) GetReport(ctx context.Context, id int64) (*entity.ReportArtifact, error) {
	return s.getReport(ctx, fmt.Sprintf("report %d", id),
		`SELECT id, road_id, report_path, condition_rating, created_at FROM reports WHERE id = ?`, id)
}

func (s *store) GetReportByRoad(ctx context.Context, roadID string) (*entity.ReportArtifact, error) {
	return s.getReport(ctx, fmt.Sprintf("report for road %q", roadID),
		`SELECT id, road_id, report_path, condition_rating, created_at FROM reports WHERE road_id = ?`, roadID)
}

func (s *store) getReport(ctx context.Context, what, query string, arg any) (*entity.ReportArtifact, error) {
	r := &entity.ReportArtifact{}
	err := s.q.QueryRowContext(ctx, query, arg).Scan(&r.ID, &r.RoadID, &r.Reference, &r.ConditionRating, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", entity.ErrNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get report: %w", entity.ErrStorage, err)
	}
	return r, nil
}

func (s *store) ListVideos(ctx context.Context) ([]entity.VideoArtifact, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, road_id, file_path, created_at FROM videos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list videos: %w", entity.ErrStorage, err)
	}
	defer rows.Close()

	out := make([]entity.VideoArtifact, 0)
	for rows.Next() {
		var v entity.VideoArtifact
		if err := rows.Scan(&v.ID, &v.RoadID, &v.Reference, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan video: %w", entity.ErrStorage, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list videos: %w", entity.ErrStorage, err)
	}
	return out, nil
}

func (s *store) ListReports(ctx context.Context) ([]entity.ReportArtifact, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, road_id, report_path, condition_rating, created_at FROM reports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list reports: %w", entity.ErrStorage, err)
	}
	defer rows.Close()

	out := make([]entity.ReportArtifact, 0)
	for rows.Next() {
		var r entity.ReportArtifact
		if err := rows.Scan(&r.ID, &r.RoadID, &r.Reference, &r.ConditionRating, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan report: %w", entity.ErrStorage, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list reports: %w", entity.ErrStorage, err)
	}
	return out, nil
}

// artifactColumns таблица и колонка ссылки для типа артефакта
func artifactColumns(kind entity.ArtifactKind) (table, column string, err error) {
	switch kind {
	case entity.ArtifactVideo:
		return "videos", "file_path", nil
	case entity.ArtifactReport:
		return "reports", "report_path", nil
	default:
		return "", "", fmt.Errorf("%w: unknown artifact type %q", entity.ErrValidation, kind)
	}
}

func (s *store) RenameArtifact(ctx context.Context, kind entity.ArtifactKind, id int64, ref string) error {
	table, column, err := artifactColumns(kind)
	if err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ?`, table, column), ref, id)
	if err != nil {
		return fmt.Errorf("%w: rename %s: %w", entity.ErrStorage, kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rename %s: %w", entity.ErrStorage, kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", entity.ErrNotFound, kind, id)
	}
	return nil
}

func (s *store) DeleteArtifact(ctx context.Context, kind entity.ArtifactKind, id int64) (string, error) {
	table, column, err := artifactColumns(kind)
	if err != nil {
		return "", err
	}

	var ref string
	err = s.q.QueryRowContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ? RETURNING %s`, table, column), id).Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s %d", entity.ErrNotFound, kind, id)
	}
	if err != nil {
		return "", fmt.Errorf("%w: delete %s: %w", entity.ErrStorage, kind, err)
	}
	return ref, nil
}

var _ port.StorageGateway = (*Gateway)(nil)
