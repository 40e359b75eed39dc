package categories

import (
	"context"
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

const selectCategory = `SELECT id, project_id, name, sort_order, created_at, updated_at FROM categories`

func (r *PostgresRepository) Create(ctx context.Context, c *models.Category) (*models.Category, error) {
	query :=
		`INSERT INTO categories (id, project_id, name, sort_order, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 `

	c.ID = uuid.NewString()
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.ProjectID, c.Name, c.SortOrder, now); err != nil {
		return nil, dbx.WrapError(err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return c, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	c := &models.Category{}
	err := r.db.QueryRowContext(ctx, selectCategory+` WHERE id = $1`, id).
		Scan(&c.ID, &c.ProjectID, &c.Name, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	return c, nil
}

func (r *PostgresRepository) Update(ctx context.Context, c *models.Category) error {
	c.UpdatedAt = time.Now().UTC()
	return dbx.ExpectAffected(r.db.ExecContext(ctx,
		`UPDATE categories SET name = $2, sort_order = $3, updated_at = $4 WHERE id = $1`,
		c.ID, c.Name, c.SortOrder, c.UpdatedAt))
}

// Delete removes the category and, through the foreign key, its tasks.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return dbx.ExpectAffected(r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Category, error) {
	return r.query(ctx, selectCategory+` ORDER BY project_id, sort_order, created_at`)
}

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Category, error) {
	return r.query(ctx, selectCategory+` WHERE project_id = $1 ORDER BY sort_order, created_at`, projectID)
}

func (r *PostgresRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE project_id = $1`, projectID).Scan(&n); err != nil {
		return 0, dbx.WrapError(err)
	}
	return n, nil
}

func (r *PostgresRepository) SetSortOrder(ctx context.Context, id string, sortOrder int) error {
	return dbx.ExpectAffected(r.db.ExecContext(ctx,
		`UPDATE categories SET sort_order = $2 WHERE id = $1`, id, sortOrder))
}

func (r *PostgresRepository) LockForUpdate(ctx context.Context, id string) error {
	var locked string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	return dbx.WrapError(err)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var out []*models.Category
	for rows.Next() {
		c := &models.Category{}
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}
