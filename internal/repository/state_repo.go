package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"surf_clock/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	clockStateRowID = 1

	insertOrUpdateStateSQL = `
		INSERT INTO clock_state (id, rating, red, green, blue, led_count, max_height, min_height,
			display_time, label, last_outcome, consecutive_failures, paused, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rating=excluded.rating,
			red=excluded.red,
			green=excluded.green,
			blue=excluded.blue,
			led_count=excluded.led_count,
			max_height=excluded.max_height,
			min_height=excluded.min_height,
			display_time=excluded.display_time,
			label=excluded.label,
			last_outcome=excluded.last_outcome,
			consecutive_failures=excluded.consecutive_failures,
			paused=excluded.paused,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT id, rating, red, green, blue, led_count, max_height, min_height,
			display_time, label, last_outcome, consecutive_failures, paused, updated_at
		FROM clock_state WHERE id=?
	`
)

// Save upserts the single clock_state row (id always 1).
func (r *StateSQLite) Save(ctx context.Context, s models.ClockState) error {
	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	_, err := r.db.ExecContext(ctx, insertOrUpdateStateSQL,
		clockStateRowID,
		s.Rating,
		s.Red,
		s.Green,
		s.Blue,
		s.LEDCount,
		s.MaxHeight,
		s.MinHeight,
		s.DisplayTime,
		s.Label,
		s.LastOutcome,
		s.ConsecutiveFailures,
		s.Paused,
		ts,
	)
	if err != nil {
		return fmt.Errorf("save clock state: %w", err)
	}
	return nil
}

// Load fetches the clock_state row. A zero ID means nothing was saved yet.
func (r *StateSQLite) Load(ctx context.Context) (models.ClockState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, clockStateRowID)

	var s models.ClockState
	if err := row.Scan(
		&s.ID,
		&s.Rating,
		&s.Red,
		&s.Green,
		&s.Blue,
		&s.LEDCount,
		&s.MaxHeight,
		&s.MinHeight,
		&s.DisplayTime,
		&s.Label,
		&s.LastOutcome,
		&s.ConsecutiveFailures,
		&s.Paused,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ClockState{}, nil
		}
		return models.ClockState{}, fmt.Errorf("load clock state: %w", err)
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
