package users

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

const selectUser = `SELECT id, first_name, last_name, email, password_hash, created_at, updated_at FROM users`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	if err := s.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// Create stores user with a fresh id. A taken email yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (id, first_name, last_name, email, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 `

	user.ID = uuid.NewString()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Email, user.PasswordHash, now)
	if err != nil {
		return nil, dbx.WrapError(err)
	}

	user.CreatedAt, user.UpdatedAt = now, now
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE email = $1`, email))
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users
		 SET first_name = $2, last_name = $3, email = $4, password_hash = $5, updated_at = $6
		 WHERE id = $1
		 `

	user.UpdatedAt = time.Now().UTC()
	return dbx.ExpectAffected(r.db.ExecContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.UpdatedAt))
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return dbx.ExpectAffected(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUser+` ORDER BY email`)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}
