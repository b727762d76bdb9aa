package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"surf_clock/internal/models"
	"surf_clock/internal/repository"
)

const selectStatePrefix = "SELECT id, rating, red, green, blue, led_count, max_height, min_height"

func stateArgs(s models.ClockState, ts driver.Value) []driver.Value {
	return []driver.Value{
		1,
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
	}
}

var stateCols = []string{
	"id", "rating", "red", "green", "blue", "led_count", "max_height", "min_height",
	"display_time", "label", "last_outcome", "consecutive_failures", "paused", "updated_at",
}

func TestStateSQLite_Save_SetsUTCNow_WhenTimeZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	state := models.ClockState{
		Rating:      "GOOD",
		Red:         255,
		Green:       145,
		LEDCount:    4,
		MaxHeight:   4,
		MinHeight:   2,
		DisplayTime: "17:30",
		Label:       "GOOD",
		LastOutcome: models.EventRendered,
	}

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clock_state")).
		WithArgs(toArgs(stateArgs(state, nil), isUTCRecent)...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Save_ConvertsGivenTimeToUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	original := time.Date(2023, 10, 5, 12, 34, 56, 0, time.FixedZone("UTC-07", -25200))
	state := models.ClockState{
		LastOutcome:         models.EventFetchFailed,
		ConsecutiveFailures: 3,
		Paused:              true,
		UpdatedAt:           original,
	}

	isExactUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Equal(original) && tm.Location() == time.UTC
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clock_state")).
		WithArgs(toArgs(stateArgs(state, nil), isExactUTC)...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Save_ExecErrorIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)
	down := errors.New("db down")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clock_state")).
		WillReturnError(down)

	err = repo.Save(context.Background(), models.ClockState{})
	if !errors.Is(err, down) || !strings.Contains(err.Error(), "save clock state") {
		t.Fatalf("Save() expected wrapped error, got %v", err)
	}
}

func TestStateSQLite_Load_NoRowsReturnsZeroValueAndNilError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectStatePrefix)).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, models.ClockState{}) {
		t.Fatalf("Load() expected zero state, got: %+v", got)
	}
}

func TestStateSQLite_Load_HappyPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	nonUTC := time.Date(2024, 2, 1, 8, 30, 0, 0, time.FixedZone("UTC-05", -5*3600))
	rows := sqlmock.NewRows(stateCols).
		AddRow(1, "FAIR_TO_GOOD", 255, 255, 0, 3, 3, 2, "08:30", "FAIR TO GOOD", "RENDERED", 0, false, nonUTC)

	mock.ExpectQuery(regexp.QuoteMeta(selectStatePrefix)).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	want := models.ClockState{
		ID:          1,
		Rating:      "FAIR_TO_GOOD",
		Red:         255,
		Green:       255,
		LEDCount:    3,
		MaxHeight:   3,
		MinHeight:   2,
		DisplayTime: "08:30",
		Label:       "FAIR TO GOOD",
		LastOutcome: models.EventRendered,
		UpdatedAt:   nonUTC.UTC(),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Load() got %+v\nwant %+v", got, want)
	}
	if got.UpdatedAt.Location() != time.UTC {
		t.Fatalf("Load() UpdatedAt not UTC: %v", got.UpdatedAt.Location())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Load_QueryErrorIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStateSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectStatePrefix)).
		WithArgs(1).
		WillReturnError(errors.New("disk I/O error"))

	if _, err := repo.Load(context.Background()); err == nil || !strings.Contains(err.Error(), "load clock state") {
		t.Fatalf("Load() expected wrapped error, got %v", err)
	}
}

// Helpers

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}

// toArgs converts values to sqlmock args, replacing the last one with m.
func toArgs(vals []driver.Value, m sqlmock.Argument) []driver.Value {
	out := make([]driver.Value, len(vals))
	copy(out, vals)
	out[len(out)-1] = m
	return out
}
