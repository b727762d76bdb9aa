package service

import (
	"context"
	"time"

	"surf_clock/internal/models"
	"surf_clock/internal/render"
	"surf_clock/internal/repository"
)

type MonitoringService struct {
	stateRepo repository.StateRepo
}

func NewMonitoringService(stateRepo repository.StateRepo) *MonitoringService {
	return &MonitoringService{stateRepo: stateRepo}
}

// GetState returns the latest persisted clock state.
// If nothing has been rendered yet, returns a blank baseline snapshot.
func (s *MonitoringService) GetState(ctx context.Context) (models.ClockState, error) {
	state, err := s.stateRepo.Load(ctx)
	if err != nil {
		return models.ClockState{}, err
	}
	if state.ID == 0 {
		return baselineState(), nil
	}
	state.UpdatedAt = toUTC(state.UpdatedAt)
	return state, nil
}

// baselineState is the blank clock: strip off, no time on the display.
func baselineState() models.ClockState {
	return models.ClockState{
		ID:          1, // DB schema enforces single-row state with id=1
		DisplayTime: render.NoTime,
		UpdatedAt:   time.Now().UTC(),
	}
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
