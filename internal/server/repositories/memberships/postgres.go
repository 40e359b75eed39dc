package memberships

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/server/access"
	"github.com/dmitrijs2005/taskio/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LoadFacts reads project existence and the user's membership in one query.
func (r *PostgresRepository) LoadFacts(ctx context.Context, projectID, userID string) (access.Facts, error) {
	query :=
		`SELECT m.user_id IS NOT NULL, COALESCE(m.is_admin, FALSE), m.created_at
		 FROM projects p
		 LEFT JOIN project_members m ON m.project_id = p.id AND m.user_id = $2
		 WHERE p.id = $1
		 `

	var (
		member, admin bool
		created       sql.NullTime
	)
	err := dbx.WrapError(r.db.QueryRowContext(ctx, query, projectID, userID).Scan(&member, &admin, &created))
	if errors.Is(err, common.ErrorNotFound) {
		return access.Facts{}, nil
	}
	if err != nil {
		return access.Facts{}, err
	}

	f := access.Facts{ProjectExists: true}
	if member {
		f.Membership = &models.Membership{ProjectID: projectID, UserID: userID, IsAdmin: admin, CreatedAt: created.Time}
	}
	return f, nil
}

// Add inserts a membership. An existing (project, user) pair yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Add(ctx context.Context, m *models.Membership) error {
	query :=
		`INSERT INTO project_members (project_id, user_id, is_admin, created_at)
		 VALUES ($1, $2, $3, $4)
		 `

	m.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query, m.ProjectID, m.UserID, m.IsAdmin, m.CreatedAt)
	return dbx.WrapError(err)
}

func (r *PostgresRepository) Get(ctx context.Context, projectID, userID string) (*models.Membership, error) {
	query :=
		`SELECT project_id, user_id, is_admin, created_at FROM project_members
		 WHERE project_id = $1 AND user_id = $2
		 `

	m := &models.Membership{}
	if err := r.db.QueryRowContext(ctx, query, projectID, userID).Scan(&m.ProjectID, &m.UserID, &m.IsAdmin, &m.CreatedAt); err != nil {
		return nil, dbx.WrapError(err)
	}
	return m, nil
}

func (r *PostgresRepository) Remove(ctx context.Context, projectID, userID string) error {
	return dbx.ExpectAffected(r.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID))
}

func (r *PostgresRepository) SetAdmin(ctx context.Context, projectID, userID string, isAdmin bool) error {
	return dbx.ExpectAffected(r.db.ExecContext(ctx,
		`UPDATE project_members SET is_admin = $3 WHERE project_id = $1 AND user_id = $2`, projectID, userID, isAdmin))
}

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Membership, error) {
	query :=
		`SELECT project_id, user_id, is_admin, created_at FROM project_members
		 WHERE project_id = $1
		 ORDER BY created_at, user_id
		 `

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var out []*models.Membership
	for rows.Next() {
		m := &models.Membership{}
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.IsAdmin, &m.CreatedAt); err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}

func (r *PostgresRepository) ListMembers(ctx context.Context, projectID string) ([]*models.Member, error) {
	query :=
		`SELECT u.id, u.email, u.first_name, u.last_name, m.is_admin
		 FROM project_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.project_id = $1
		 ORDER BY u.email
		 `

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var out []*models.Member
	for rows.Next() {
		m := &models.Member{}
		if err := rows.Scan(&m.UserID, &m.Email, &m.FirstName, &m.LastName, &m.IsAdmin); err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}

func (r *PostgresRepository) CountAdmins(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_members WHERE project_id = $1 AND is_admin`, projectID).Scan(&n)
	if err != nil {
		return 0, dbx.WrapError(err)
	}
	return n, nil
}
