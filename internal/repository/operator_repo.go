package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"surf_clock/internal/models"
)

type OperatorSQLite struct {
	db *sql.DB
}

func NewOperatorSQLite(db *sql.DB) *OperatorSQLite {
	return &OperatorSQLite{db: db}
}

var _ OperatorRepo = (*OperatorSQLite)(nil)

const (
	insertOperatorSQL           = `INSERT INTO operators (username, password_hash, created_at) VALUES (?, ?, ?)`
	selectOperatorByUsernameSQL = `SELECT id, username, password_hash, created_at FROM operators WHERE username = ?`
	countOperatorsSQL           = `SELECT COUNT(*) FROM operators`
)

// Create inserts an operator and returns its ID. A taken username yields
// ErrDuplicate.
func (r *OperatorSQLite) Create(ctx context.Context, username, passwordHash string) (int, error) {
	res, err := r.db.ExecContext(ctx, insertOperatorSQL,
		username, passwordHash, time.Now().UTC().Format(sqliteTimestamp))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("operator %q: %w", username, ErrDuplicate)
		}
		return 0, fmt.Errorf("insert operator %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id for operator %q: %w", username, err)
	}
	return int(id), nil
}

// GetByUsername returns ErrNotFound for an unknown username.
func (r *OperatorSQLite) GetByUsername(ctx context.Context, username string) (models.Operator, error) {
	var op models.Operator
	err := r.db.QueryRowContext(ctx, selectOperatorByUsernameSQL, username).
		Scan(&op.ID, &op.Username, &op.PasswordHash, &op.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Operator{}, fmt.Errorf("operator %q: %w", username, ErrNotFound)
	case err != nil:
		return models.Operator{}, fmt.Errorf("select operator %q: %w", username, err)
	}
	op.CreatedAt = op.CreatedAt.UTC()
	return op, nil
}

func (r *OperatorSQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countOperatorsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count operators: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
