package assignments

import (
	"context"

	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListUserIDs(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM task_assignees WHERE task_id = $1 ORDER BY user_id`, taskID)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string) ([]models.Assignment, error) {
	query :=
		`SELECT a.task_id, a.user_id
		 FROM task_assignees a
		 JOIN tasks t ON t.id = a.task_id
		 WHERE t.project_id = $1
		 ORDER BY a.task_id, a.user_id
		 `

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.TaskID, &a.UserID); err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}

// Add assigns userID to taskID. An existing assignment yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Add(ctx context.Context, taskID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO task_assignees (task_id, user_id) VALUES ($1, $2)`, taskID, userID)
	return dbx.WrapError(err)
}

func (r *PostgresRepository) Remove(ctx context.Context, taskID, userID string) error {
	return dbx.ExpectAffected(r.db.ExecContext(ctx,
		`DELETE FROM task_assignees WHERE task_id = $1 AND user_id = $2`, taskID, userID))
}

func (r *PostgresRepository) RemoveUserFromProject(ctx context.Context, projectID, userID string) error {
	query :=
		`DELETE FROM task_assignees a
		 USING tasks t
		 WHERE t.id = a.task_id AND t.project_id = $1 AND a.user_id = $2
		 `
	_, err := r.db.ExecContext(ctx, query, projectID, userID)
	return dbx.WrapError(err)
}
