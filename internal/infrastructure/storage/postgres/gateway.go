package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

const schema = `
CREATE TABLE IF NOT EXISTS defects (
	id BIGSERIAL PRIMARY KEY,
	road_id TEXT NOT NULL,
	defect_type TEXT NOT NULL,
	x1 INTEGER NOT NULL,
	y1 INTEGER NOT NULL,
	x2 INTEGER NOT NULL,
	y2 INTEGER NOT NULL,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS videos (
	id BIGSERIAL PRIMARY KEY,
	road_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	id BIGSERIAL PRIMARY KEY,
	road_id TEXT NOT NULL UNIQUE,
	report_path TEXT NOT NULL,
	condition_rating DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_defects_road_id ON defects(road_id);
CREATE INDEX IF NOT EXISTS idx_videos_road_id ON videos(road_id);
`

// querier общее у *pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Gateway хранилище дефектов и артефактов в PostgreSQL.
type Gateway struct {
	store
	pool *pgxpool.Pool
}

// Connect подключается к базе и создаёт таблицы, если их нет.
func Connect(ctx context.Context, databaseURL string) (*Gateway, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	g := NewGateway(pool)
	if err := g.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return g, nil
}

func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{store: store{q: pool}, pool: pool}
}

func (g *Gateway) Migrate(ctx context.Context) error {
	if _, err := g.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (g *Gateway) InsertReport(ctx context.Context, roadID, ref string, rating float64) (id int64, prev string, err error) {
	err = g.WithinTx(ctx, func(tx port.Store) error {
		id, prev, err = tx.InsertReport(ctx, roadID, ref, rating)
		return err
	})
	return id, prev, err
}

func (g *Gateway) WithinTx(ctx context.Context, fn func(tx port.Store) error) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", entity.ErrStorage, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&store{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit tx: %w", entity.ErrStorage, err)
	}
	return nil
}

func (g *Gateway) Close() error {
	g.pool.Close()
	return nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.pool.Ping(ctx)
}

type store struct {
	q querier
}

func (s *store) InsertDefect(ctx context.Context, rec entity.DefectRecord) error {
	if !rec.BBox.Valid() {
		return fmt.Errorf("%w: invalid bbox %+v", entity.ErrValidation, rec.BBox)
	}

	var lat, lon *float64
	if rec.Location != nil {
		lat, lon = &rec.Location.Latitude, &rec.Location.Longitude
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO defects (road_id, defect_type, x1, y1, x2, y2, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.RoadID, rec.DefectType, rec.BBox.X1, rec.BBox.Y1, rec.BBox.X2, rec.BBox.Y2, lat, lon,
	)
	if err != nil {
		return fmt.Errorf("%w: insert defect: %w", entity.ErrStorage, err)
	}
	return nil
}

func (s *store) InsertVideo(ctx context.Context, roadID, ref string) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx,
		`INSERT INTO videos (road_id, file_path, created_at) VALUES ($1,$2,$3) RETURNING id`,
		roadID, ref, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: insert video: %w", entity.ErrStorage, err)
	}
	return id, nil
}

// InsertReport вызывается внутри транзакции. FOR UPDATE не блокирует ещё не
// существующую строку, поэтому первый отчёт участка сериализуется advisory-блокировкой
// до конца транзакции.
func (s *store) InsertReport(ctx context.Context, roadID, ref string, rating float64) (int64, string, error) {
	if _, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, roadID); err != nil {
		return 0, "", fmt.Errorf("%w: lock road %s: %w", entity.ErrStorage, roadID, err)
	}

	var prev string
	err := s.q.QueryRow(ctx, `SELECT report_path FROM reports WHERE road_id=$1 FOR UPDATE`, roadID).Scan(&prev)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, "", fmt.Errorf("%w: find report: %w", entity.ErrStorage, err)
	}

	var id int64
	err = s.q.QueryRow(ctx, `
		INSERT INTO reports (road_id, report_path, condition_rating, created_at) VALUES ($1,$2,$3,$4)
		ON CONFLICT (road_id) DO UPDATE SET
			report_path = EXCLUDED.report_path,
			condition_rating = EXCLUDED.condition_rating,
			created_at = EXCLUDED.created_at
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
		`SELECT road_id, defect_type, x1, y1, x2, y2, latitude, longitude FROM defects WHERE road_id=$1 ORDER BY id`,
		roadID,
	)
}

func (s *store) QueryAllDefects(ctx context.Context) ([]entity.DefectRecord, error) {
	return s.queryDefects(ctx,
		`SELECT road_id, defect_type, x1, y1, x2, y2, latitude, longitude FROM defects ORDER BY id`,
	)
}

func (s *store) queryDefects(ctx context.Context, query string, args ...any) ([]entity.DefectRecord, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query defects: %w", entity.ErrStorage, err)
	}
	defer rows.Close()

	out := make([]entity.DefectRecord, 0)
	for rows.Next() {
		var (
			d        entity.DefectRecord
			lat, lon *float64
		)
		if err := rows.Scan(&d.RoadID, &d.DefectType, &d.BBox.X1, &d.BBox.Y1, &d.BBox.X2, &d.BBox.Y2, &lat, &lon); err != nil {
			return nil, fmt.Errorf("%w: scan defect: %w", entity.ErrStorage, err)
		}
		if lat != nil && lon != nil {
			d.Location = &entity.GeoPoint{Latitude: *lat, Longitude: *lon}
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
	err := s.q.QueryRow(ctx,
		`SELECT id, road_id, file_path, created_at FROM videos WHERE id=$1`, id,
	).Scan(&v.ID, &v.RoadID, &v.Reference, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: video %d", entity.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get video: %w", entity.ErrStorage, err)
	}
	return v, nil
}

func (s *store) GetReport(ctx context.Context, id int64) (*entity.ReportArtifact, error) {
	return s.getReport(ctx, fmt.Sprintf("report %d", id),
		`SELECT id, road_id, report_path, condition_rating, created_at FROM reports WHERE id=$1`, id)
}

func (s *store) GetReportByRoad(ctx context.Context, roadID string) (*entity.ReportArtifact, error) {
	return s.getReport(ctx, fmt.Sprintf("report for road %q", roadID),
		`SELECT id, road_id, report_path, condition_rating, created_at FROM reports WHERE road_id=$1`, roadID)
}

func (s *store) getReport(ctx context.Context, what, query string, arg any) (*entity.ReportArtifact, error) {
	r := &entity.ReportArtifact{}
	err := s.q.QueryRow(ctx, query, arg).Scan(&r.ID, &r.RoadID, &r.Reference, &r.ConditionRating, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", entity.ErrNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get report: %w", entity.ErrStorage, err)
	}
	return r, nil
}

func (s *store) ListVideos(ctx context.Context) ([]entity.VideoArtifact, error) {
	rows, err := s.q.Query(ctx, `SELECT id, road_id, file_path, created_at FROM videos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list videos: %w", entity.ErrStorage, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.VideoArtifact, error) {
		var v entity.VideoArtifact
		err := row.Scan(&v.ID, &v.RoadID, &v.Reference, &v.CreatedAt)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list videos: %w", entity.ErrStorage, err)
	}
	return out, nil
}

func (s *store) ListReports(ctx context.Context) ([]entity.ReportArtifact, error) {
	rows, err := s.q.Query(ctx, `SELECT id, road_id, report_path, condition_rating, created_at FROM reports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list reports: %w", entity.ErrStorage, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.ReportArtifact, error) {
		var r entity.ReportArtifact
		err := row.Scan(&r.ID, &r.RoadID, &r.Reference, &r.ConditionRating, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list reports: %w", entity.ErrStorage, err)
	}
	return out, nil
}

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

	tag, err := s.q.Exec(ctx, fmt.Sprintf(`UPDATE %s SET %s=$1 WHERE id=$2`, table, column), ref, id)
	if err != nil {
		return fmt.Errorf("%w: rename %s: %w", entity.ErrStorage, kind, err)
	}
	if tag.RowsAffected() == 0 {
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
	err = s.q.QueryRow(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1 RETURNING %s`, table, column), id).Scan(&ref)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s %d", entity.ErrNotFound, kind, id)
	}
	if err != nil {
		return "", fmt.Errorf("%w: delete %s: %w", entity.ErrStorage, kind, err)
	}
	return ref, nil
}

var _ port.StorageGateway = (*Gateway)(nil)
