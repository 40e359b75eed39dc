package tasks

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectTask = `SELECT id, project_id, category_id, name, description, due_date, sort_order, created_at, updated_at FROM tasks`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.Task, error) {
	var (
		t    models.Task
		desc sql.NullString
		due  sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.ProjectID, &t.CategoryID, &t.Name, &desc, &due, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	if due.Valid {
		t.DueDate = &due.Time
	}
	return &t, nil
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	query :=
		`INSERT INTO tasks (id, project_id, category_id, name, description, due_date, sort_order, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 `

	t.ID = uuid.NewString()
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.ProjectID, t.CategoryID, t.Name, t.Description, t.DueDate, t.SortOrder, now)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return t, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, selectTask+` WHERE id = $1`, id))
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	return t, nil
}

func (r *PostgresRepository) Update(ctx context.Context, t *models.Task) error {
	query :=
		`UPDATE tasks
		 SET category_id = $2, name = $3, description = $4, due_date = $5, sort_order = $6, updated_at = $7
		 WHERE id = $1
		 `

	t.UpdatedAt = time.Now().UTC()
	return dbx.ExpectAffected(r.db.ExecContext(ctx, query,
		t.ID, t.CategoryID, t.Name, t.Description, t.DueDate, t.SortOrder, t.UpdatedAt))
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return dbx.ExpectAffected(r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Task, error) {
	return r.query(ctx, selectTask+` ORDER BY category_id, sort_order, created_at`)
}

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	return r.query(ctx, selectTask+` WHERE project_id = $1 ORDER BY category_id, sort_order, created_at`, projectID)
}

func (r *PostgresRepository) ListByCategory(ctx context.Context, categoryID string) ([]*models.Task, error) {
	return r.query(ctx, selectTask+` WHERE category_id = $1 ORDER BY sort_order, created_at`, categoryID)
}

func (r *PostgresRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE category_id = $1`, categoryID).Scan(&n); err != nil {
		return 0, dbx.WrapError(err)
	}
	return n, nil
}

func (r *PostgresRepository) SetSortOrder(ctx context.Context, id string, sortOrder int) error {
	return dbx.ExpectAffected(r.db.ExecContext(ctx,
		`UPDATE tasks SET sort_order = $2 WHERE id = $1`, id, sortOrder))
}

func (r *PostgresRepository) MoveTo(ctx context.Context, id, categoryID string, sortOrder int) error {
	return dbx.ExpectAffected(r.db.ExecContext(ctx,
		`UPDATE tasks SET category_id = $2, sort_order = $3, updated_at = $4 WHERE id = $1`,
		id, categoryID, sortOrder, time.Now().UTC()))
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}
