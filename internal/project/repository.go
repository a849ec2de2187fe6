package project

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/trimdeck/trimdeck-agent/internal/session"
)

type Repository interface {
	SaveProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	GetProjectByPath(ctx context.Context, mediaPath string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	DeleteProject(ctx context.Context, id string) error

	CreateExport(ctx context.Context, e *ExportRecord) error
	FinishExport(ctx context.Context, id, status, errorMsg string) error
	ListExports(ctx context.Context, limit int) ([]*ExportRecord, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveProject upserts the project row and replaces its regions in one
// transaction, so a saved project never holds a half-written region set.
func (r *SQLiteRepository) SaveProject(ctx context.Context, p *Project) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Timestamps are stored as RFC3339 strings so they read back with the
	// same format they were written in.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, media_path, duration, frame_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			media_path = excluded.media_path,
			duration = excluded.duration,
			frame_rate = excluded.frame_rate,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.MediaPath, p.Duration, p.FrameRate,
		p.CreatedAt.Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM regions WHERE project_id = ?", p.ID); err != nil {
		return fmt.Errorf("failed to clear regions: %w", err)
	}
	for i, region := range p.Regions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO regions (id, project_id, start_time, end_time, position)
			VALUES (?, ?, ?, ?, ?)
		`, session.NewID(), p.ID, region.Start, region.End, i)
		if err != nil {
			return fmt.Errorf("failed to save region: %w", err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, media_path, duration, frame_rate, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)
	return r.scanProject(ctx, row)
}

func (r *SQLiteRepository) GetProjectByPath(ctx context.Context, mediaPath string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, media_path, duration, frame_rate, created_at, updated_at
		FROM projects WHERE media_path = ? ORDER BY updated_at DESC LIMIT 1
	`, mediaPath)
	return r.scanProject(ctx, row)
}

func (r *SQLiteRepository) scanProject(ctx context.Context, row *sql.Row) (*Project, error) {
	var p Project
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Name, &p.MediaPath, &p.Duration, &p.FrameRate, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	regions, err := r.loadRegions(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Regions = regions
	return &p, nil
}

func (r *SQLiteRepository) loadRegions(ctx context.Context, projectID string) ([]session.CutRegion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT start_time, end_time FROM regions
		WHERE project_id = ? ORDER BY position
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []session.CutRegion
	for rows.Next() {
		var region session.CutRegion
		if err := rows.Scan(&region.Start, &region.End); err != nil {
			return nil, err
		}
		regions = append(regions, region)
	}
	return regions, rows.Err()
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, media_path, duration, frame_rate, created_at, updated_at
		FROM projects ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.MediaPath, &p.Duration, &p.FrameRate, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		created, perr := time.Parse(time.RFC3339, createdAt)
		if perr != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", perr)
		}
		updated, perr := time.Parse(time.RFC3339, updatedAt)
		if perr != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", perr)
		}
		p.CreatedAt, p.UpdatedAt = created, updated
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range projects {
		regions, err := r.loadRegions(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Regions = regions
	}
	return projects, nil
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CreateExport(ctx context.Context, e *ExportRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exports (id, project_id, media_path, output_path, copy_mode, segment_count, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, nullString(e.ProjectID), e.MediaPath, e.OutputPath,
		boolToInt(e.CopyMode), e.SegmentCount, e.Status, e.StartedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) FinishExport(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET status = ?, error = ?, finished_at = ? WHERE id = ?
	`, status, nullString(errorMsg), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) ListExports(ctx context.Context, limit int) ([]*ExportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, media_path, output_path, copy_mode, segment_count, status, error, started_at, finished_at
		FROM exports ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []*ExportRecord
	for rows.Next() {
		var e ExportRecord
		var projectID, errMsg, finishedAt sql.NullString
		var copyMode int
		var startedAt string

		if err := rows.Scan(&e.ID, &projectID, &e.MediaPath, &e.OutputPath, &copyMode,
			&e.SegmentCount, &e.Status, &errMsg, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		e.ProjectID = projectID.String
		e.Error = errMsg.String
		e.CopyMode = copyMode == 1
		started, perr := time.Parse(time.RFC3339, startedAt)
		if perr != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", perr)
		}
		e.StartedAt = started
		if finishedAt.Valid {
			finished, perr := time.Parse(time.RFC3339, finishedAt.String)
			if perr != nil {
				return nil, fmt.Errorf("failed to parse finished_at: %w", perr)
			}
			e.FinishedAt = finished
		}
		exports = append(exports, &e)
	}
	return exports, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
	`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
