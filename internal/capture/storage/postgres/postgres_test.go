package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/formrelay/capture_layer/internal/capture"
	"github.com/formrelay/capture_layer/internal/capture/datatype"
	"github.com/formrelay/capture_layer/internal/errors"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	types := datatype.NewRegistry()
	schema, err := capture.NewSchema(
		[]capture.Field{{Name: "email", Type: "Email"}, {Name: "name", Type: "Text"}},
		[]string{"email"},
		types,
	)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}

	store, err := New(sqlx.NewDb(db, "sqlmock"), "signup", schema, types)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, mock
}

func TestEnsureSchemaCreatesTable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "capture_signup" ("email" VARCHAR(255) NULL, "name" VARCHAR(255) NULL, created TIMESTAMPTZ NULL, deleted INTEGER NOT NULL DEFAULT 0)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.EnsureSchema(context.Background(), store.schema); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertBindsParameters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "capture_signup" ("email", "name", created, deleted) VALUES ($1, $2, NOW(), 0)`).
		WithArgs("a@b.com", "Ann").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Insert(context.Background(), capture.Record{"email": "a@b.com", "name": "Ann"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertFailureIsStorageError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "capture_signup" ("email", created, deleted) VALUES ($1, NOW(), 0)`).
		WithArgs("a@b.com").
		WillReturnError(context.DeadlineExceeded)

	err := store.Insert(context.Background(), capture.Record{"email": "a@b.com"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, errors.KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestSelectAllExcludesDeletedColumn(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT "email", "name", created FROM "capture_signup" WHERE deleted = 0 ORDER BY created ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"email", "name", "created"}).
			AddRow("a@b.com", "Ann", created).
			AddRow("b@c.com", nil, created.Add(time.Minute)))

	rows, err := store.SelectAll(context.Background())
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Values["email"] != "a@b.com" || rows[0].Values["name"] != "Ann" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if !rows[0].Created.Equal(created) {
		t.Fatalf("unexpected created: %v", rows[0].Created)
	}
	if rows[1].Values["name"] != "" {
		t.Fatalf("NULL should read as empty string, got %q", rows[1].Values["name"])
	}
}

func TestNewRejectsBadIdentifiers(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	types := datatype.NewRegistry()
	schema, err := capture.NewSchema([]capture.Field{{Name: "email", Type: "Email"}}, nil, types)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}

	if _, err := New(sqlx.NewDb(db, "sqlmock"), "bad name;drop", schema, types); err == nil {
		t.Fatalf("expected error for invalid capture name")
	}
}
