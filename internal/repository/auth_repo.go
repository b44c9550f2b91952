package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"controlling_hottub/internal/models"
)

// ErrUsernameTaken is returned by Create for a duplicate operator name.
var ErrUsernameTaken = errors.New("username already taken")

// OperatorSQLite stores the operators allowed to call the API.
type OperatorSQLite struct {
	db *sql.DB
}

func NewOperatorSQLite(db *sql.DB) *OperatorSQLite {
	return &OperatorSQLite{db: db}
}

var _ Authorization = (*OperatorSQLite)(nil)

const (
	insertOperatorSQL       = `INSERT INTO users (username, password_hash) VALUES (?, ?)`
	selectOperatorByNameSQL = `SELECT id, username, password_hash FROM users WHERE username = ?`
)

// Usernames are stored trimmed and lower-cased.
func normalizeUsername(u string) string { return strings.ToLower(strings.TrimSpace(u)) }

// isUniqueViolation matches the sqlite driver's constraint message; the
// driver does not export a typed error for it.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create inserts an operator and returns its id.
func (r *OperatorSQLite) Create(ctx context.Context, username, passwordHash string) (int, error) {
	username = normalizeUsername(username)
	if username == "" {
		return 0, errors.New("username must not be empty")
	}
	res, err := r.db.ExecContext(ctx, insertOperatorSQL, username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %q", ErrUsernameTaken, username)
		}
		return 0, fmt.Errorf("insert operator %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id for operator %q: %w", username, err)
	}
	return int(id), nil
}

// GetByUsername returns (nil, nil) when no operator has that name.
func (r *OperatorSQLite) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	username = normalizeUsername(username)
	var u models.User
	err := r.db.QueryRowContext(ctx, selectOperatorByNameSQL, username).Scan(&u.ID, &u.Username, &u.PasswordHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("select operator %q: %w", username, err)
	}
	return &u, nil
}
