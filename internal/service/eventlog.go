package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"surf_clock/internal/models"
	"surf_clock/internal/repository"
)

// MaxLogLimit caps how many events one history query may return.
const MaxLogLimit = 1000

// ErrInvalidFilter wraps every rejected history query.
var ErrInvalidFilter = errors.New("invalid log filter")

// LogFilter selects cycle events. Zero values mean "no constraint".
type LogFilter struct {
	From  time.Time // inclusive
	To    time.Time // inclusive
	Type  string    // one of models.EventTypes, any case
	Limit int       // newest N events; 0 returns all
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

// List returns matching events oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.CycleEvent, error) {
	q, err := toEventQuery(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}

func toEventQuery(f LogFilter) (repository.EventQuery, error) {
	q := repository.EventQuery{
		From:  utcOrZero(f.From),
		To:    utcOrZero(f.To),
		Type:  strings.ToUpper(strings.TrimSpace(f.Type)),
		Limit: f.Limit,
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return repository.EventQuery{}, fmt.Errorf("%w: from %s is after to %s",
			ErrInvalidFilter, q.From.Format(time.RFC3339), q.To.Format(time.RFC3339))
	}
	if q.Type != "" && !models.KnownEventType(q.Type) {
		return repository.EventQuery{}, fmt.Errorf("%w: unknown event type %q", ErrInvalidFilter, f.Type)
	}
	if q.Limit < 0 || q.Limit > MaxLogLimit {
		return repository.EventQuery{}, fmt.Errorf("%w: limit must be 0-%d", ErrInvalidFilter, MaxLogLimit)
	}
	return q, nil
}

func utcOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
