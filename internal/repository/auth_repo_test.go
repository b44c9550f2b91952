package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newOperatorRepo(t *testing.T) (*OperatorSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewOperatorSQLite(db), mock
}

func TestOperatorSQLite_Create(t *testing.T) {
	tests := []struct {
		name       string
		username   string
		mockExpect func(sqlmock.Sqlmock)
		wantID     int
		wantIs     error
		wantSubstr string
	}{
		{
			name:     "normalized name",
			username: "  Dave ",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertOperatorSQL)).
					WithArgs("dave", "h000").
					WillReturnResult(sqlmock.NewResult(3, 1))
			},
			wantID: 3,
		},
		{
			name:       "blank name",
			username:   "   ",
			mockExpect: func(sqlmock.Sqlmock) {},
			wantSubstr: "must not be empty",
		},
		{
			name:     "duplicate",
			username: "alice",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertOperatorSQL)).
					WithArgs("alice", "h000").
					WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"))
			},
			wantIs: ErrUsernameTaken,
		},
		{
			name:     "exec error",
			username: "bob",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertOperatorSQL)).
					WithArgs("bob", "h000").
					WillReturnError(errors.New("disk I/O error"))
			},
			wantSubstr: "insert operator",
		},
		{
			name:     "last insert id error",
			username: "carol",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertOperatorSQL)).
					WithArgs("carol", "h000").
					WillReturnResult(sqlmock.NewErrorResult(errors.New("no last id")))
			},
			wantSubstr: "last insert id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newOperatorRepo(t)
			tt.mockExpect(mock)

			id, err := repo.Create(context.Background(), tt.username, "h000")
			if tt.wantIs == nil && tt.wantSubstr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if id != tt.wantID {
					t.Fatalf("id = %d, want %d", id, tt.wantID)
				}
				return
			}
			if err == nil || id != 0 {
				t.Fatalf("expected error and zero id, got id=%d err=%v", id, err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Fatalf("expected %v, got %v", tt.wantIs, err)
			}
			if tt.wantSubstr != "" && !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Fatalf("expected error to contain %q, got %q", tt.wantSubstr, err.Error())
			}
		})
	}
}

func TestOperatorSQLite_GetByUsername(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newOperatorRepo(t)
		rows := sqlmock.NewRows([]string{"id", "username", "password_hash"}).AddRow(7, "alice", "h123")
		mock.ExpectQuery(regexp.QuoteMeta(selectOperatorByNameSQL)).WithArgs("alice").WillReturnRows(rows)

		u, err := repo.GetByUsername(context.Background(), "Alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u == nil || u.ID != 7 || u.Username != "alice" || u.PasswordHash != "h123" {
			t.Fatalf("unexpected user: %+v", u)
		}
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newOperatorRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectOperatorByNameSQL)).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

		u, err := repo.GetByUsername(context.Background(), "ghost")
		if err != nil || u != nil {
			t.Fatalf("expected (nil, nil), got (%+v, %v)", u, err)
		}
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newOperatorRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectOperatorByNameSQL)).WithArgs("bob").WillReturnError(errors.New("db query failed"))

		u, err := repo.GetByUsername(context.Background(), "bob")
		if err == nil || u != nil || !strings.Contains(err.Error(), "select operator") {
			t.Fatalf("expected wrapped error, got (%+v, %v)", u, err)
		}
	})
}
