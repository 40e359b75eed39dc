package projects

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/dmitrijs2005/taskio/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+projects\s*\(id,\s*name,\s*created_at,\s*updated_at\)`).
		WithArgs(sqlmock.AnyArg(), "Board", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p, err := repo.Create(context.Background(), &models.Project{Name: "Board"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestListForUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+projects\s+p\s+JOIN\s+project_members\s+m.*WHERE\s+m\.user_id\s*=\s*\$1`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
			AddRow("p-1", "One", now, now).
			AddRow("p-2", "Two", now, now))

	got, err := repo.ListForUser(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("ListForUser error: %v", err)
	}
	if len(got) != 2 || got[1].Name != "Two" {
		t.Fatalf("unexpected projects: %+v", got)
	}
}

func TestLockForUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT\s+id\s+FROM\s+projects\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE$`).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))
	mock.ExpectQuery(`FOR\s+UPDATE`).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)

	if err := repo.LockForUpdate(context.Background(), "p-1"); err != nil {
		t.Fatalf("LockForUpdate error: %v", err)
	}
	if err := repo.LockForUpdate(context.Background(), "gone"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+projects`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "gone"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestGetByID_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+projects\s+WHERE\s+id`).
		WillReturnError(errors.New("db down"))

	if _, err := repo.GetByID(context.Background(), "p-1"); err == nil || errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected db error, got %v", err)
	}
}
