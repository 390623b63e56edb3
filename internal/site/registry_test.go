// internal/site/registry_test.go
//
// Unit-tests for site-registry helpers using sqlmock.
//
// Run: go test ./internal/site -v

package site

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestByHostFound(t *testing.T) {
	db, mock := newMock(t)

	now := time.Now()
	mock.ExpectQuery("SELECT id, host, title").
		WithArgs("acme.example.test").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "host", "title", "suspended_at", "deleted_at", "created_at", "updated_at"}).
			AddRow(7, "acme.example.test", "Acme Co", nil, nil, now, now))

	rec, err := ByHost(context.Background(), db, "acme.example.test")
	if err != nil {
		t.Fatalf("ByHost error: %v", err)
	}
	if rec == nil || rec.ID != 7 || rec.Title != "Acme Co" {
		t.Fatalf("unexpected record: %#v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestByHostAbsent(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT id, host, title").
		WithArgs("ghost.example.test").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "host", "title", "suspended_at", "deleted_at", "created_at", "updated_at"}))

	rec, err := ByHost(context.Background(), db, "ghost.example.test")
	if err != nil {
		t.Fatalf("ByHost error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %#v", rec)
	}
}

func TestCreateReturnsID(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO site (host, title) VALUES (?, ?)")).
		WithArgs("acme.example.test", "Acme Co").
		WillReturnResult(sqlmock.NewResult(11, 1))

	id, err := Create(context.Background(), db, "acme.example.test", "Acme Co")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if id != 11 {
		t.Fatalf("id = %d, want 11", id)
	}
}

func TestSoftDelete(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec("UPDATE site SET deleted_at").
		WithArgs(uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := SoftDelete(context.Background(), db, 11); err != nil {
		t.Fatalf("SoftDelete error: %v", err)
	}
}

func TestDBName(t *testing.T) {
	if got := DBName(42); got != "tenant_42" {
		t.Fatalf("DBName = %q, want tenant_42", got)
	}
}
