package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"surf_clock/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type OperatorRepo interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (models.Operator, error)
	Count(ctx context.Context) (int, error)
}

type StateRepo interface {
	Save(ctx context.Context, s models.ClockState) error
	Load(ctx context.Context) (models.ClockState, error)
}

// EventQuery selects cycle events. Zero values mean "no bound"; Limit keeps
// only the newest N matches, still returned oldest first.
type EventQuery struct {
	From  time.Time
	To    time.Time
	Type  string
	Limit int
}

type EventRepo interface {
	Append(ctx context.Context, e models.CycleEvent) error
	List(ctx context.Context, q EventQuery) ([]models.CycleEvent, error)
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	Operators OperatorRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Operators: NewOperatorSQLite(db),
	}
}
