package projects

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

func (r *PostgresRepository) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	query :=
		`INSERT INTO projects (id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 `

	p.ID = uuid.NewString()
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, now); err != nil {
		return nil, dbx.WrapError(err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT id, name, created_at, updated_at FROM projects WHERE id = $1`

	p := &models.Project{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, dbx.WrapError(err)
	}
	return p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	return dbx.ExpectAffected(r.db.ExecContext(ctx,
		`UPDATE projects SET name = $2, updated_at = $3 WHERE id = $1`, p.ID, p.Name, p.UpdatedAt))
}

// Delete removes the project; categories, tasks and memberships go with it.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return dbx.ExpectAffected(r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Project, error) {
	return r.query(ctx, `SELECT id, name, created_at, updated_at FROM projects ORDER BY created_at, id`)
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]*models.Project, error) {
	query :=
		`SELECT p.id, p.name, p.created_at, p.updated_at
		 FROM projects p
		 JOIN project_members m ON m.project_id = p.id
		 WHERE m.user_id = $1
		 ORDER BY p.created_at, p.id
		 `
	return r.query(ctx, query, userID)
}

func (r *PostgresRepository) LockForUpdate(ctx context.Context, id string) error {
	var locked string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	return dbx.WrapError(err)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()
	return scanProjects(rows)
}

func scanProjects(rows *sql.Rows) ([]*models.Project, error) {
	var out []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}
