package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/portal/internal/model"
	"github.com/lib/pq"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

var projectCols = []string{"id", "user_id", "name", "description", "status", "deployment_url", "deployed_at", "created_at", "updated_at"}

func TestPostgresProjectRepo_FindByID_Found(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresProjectRepo(db)

	now := time.Now().UTC().Truncate(time.Second)
	mock.ExpectQuery("SELECT .* FROM projects WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow("p1", "u1", "Site", "desc", "deployed", "https://p1.example.app", now, now, now))

	p, err := repo.FindByID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if p == nil {
		t.Fatal("expected project, got nil")
	}
	if p.UserID != "u1" || p.Status != model.ProjectStatusDeployed {
		t.Errorf("unexpected project: %+v", p)
	}
	if p.DeployedAt == nil || !p.DeployedAt.Equal(now) {
		t.Errorf("DeployedAt = %v, want %v", p.DeployedAt, now)
	}
	expectationsMet(t, mock)
}

func TestPostgresProjectRepo_FindByID_NotFound_ReturnsNil(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresProjectRepo(db)

	mock.ExpectQuery("SELECT .* FROM projects WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	p, err := repo.FindByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil, got %+v", p)
	}
	expectationsMet(t, mock)
}

func TestPostgresProjectRepo_ListByUserID_ScopesByUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresProjectRepo(db)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM projects WHERE user_id = \\$1 ORDER BY created_at DESC").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow("p2", "u1", "B", "", "draft", "", nil, now, now).
			AddRow("p1", "u1", "A", "", "draft", "", nil, now, now))

	projects, err := repo.ListByUserID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUserID: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("len = %d, want 2", len(projects))
	}
	if projects[0].DeployedAt != nil {
		t.Error("draft project should have nil DeployedAt")
	}
	expectationsMet(t, mock)
}

func TestPostgresProjectRepo_CountOwned(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresProjectRepo(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM projects WHERE user_id = \\$1 AND id = ANY").
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountOwned(context.Background(), "u1", []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("CountOwned: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	expectationsMet(t, mock)
}

func TestPostgresProjectRepo_CountOwned_EmptyIDs_SkipsQuery(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresProjectRepo(db)

	n, err := repo.CountOwned(context.Background(), "u1", nil)
	if err != nil || n != 0 {
		t.Errorf("CountOwned(nil) = %d, %v; want 0, nil", n, err)
	}
	expectationsMet(t, mock)
}

func TestPostgresProjectRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresProjectRepo(db)

	now := time.Now()
	p := &model.Project{ID: "p1", UserID: "u1", Name: "Site", Status: model.ProjectStatusDraft, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec("INSERT INTO projects").
		WithArgs("p1", "u1", "Site", "", "draft", "", nil, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresProjectRepo_Create_UniqueViolation_ReturnsErrDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresProjectRepo(db)

	mock.ExpectExec("INSERT INTO projects").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &model.Project{ID: "p1"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("error = %v, want ErrDuplicate", err)
	}
}

func TestPostgresProjectRepo_Update_NoRows_ReturnsErrNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresProjectRepo(db)

	mock.ExpectExec("UPDATE projects").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &model.Project{ID: "gone"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresProjectRepo_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresProjectRepo(db)

	mock.ExpectExec("DELETE FROM projects WHERE id = \\$1").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	expectationsMet(t, mock)
}
