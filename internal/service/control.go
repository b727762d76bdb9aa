package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"surf_clock/internal/models"
	"surf_clock/internal/repository"
)

// ErrPaused is returned by Refresh while the clock is paused.
var ErrPaused = errors.New("clock is paused, resume it first")

// cycleControl is the part of the scheduler the control API drives.
type cycleControl interface {
	Wake() bool
	SetPaused(ctx context.Context, paused bool) error
	Paused() bool
}

// ControlService applies operator actions. State writes go through the
// scheduler so they cannot interleave with a cycle's own save.
type ControlService struct {
	scheduler cycleControl
	eventRepo repository.EventRepo
}

func NewControlService(scheduler cycleControl, eventRepo repository.EventRepo) *ControlService {
	return &ControlService{scheduler: scheduler, eventRepo: eventRepo}
}

// Pause stops fetching until Resume. The strip and display keep their last frame.
func (s *ControlService) Pause(ctx context.Context) error {
	return s.setPaused(ctx, true)
}

// Resume restarts fetching and wakes the scheduler so the next cycle runs now.
func (s *ControlService) Resume(ctx context.Context) error {
	if err := s.setPaused(ctx, false); err != nil {
		return err
	}
	s.scheduler.Wake()
	return nil
}

// Refresh asks for a cycle now. It never interrupts a cycle that is already
// running; the request is picked up when that cycle finishes.
func (s *ControlService) Refresh(ctx context.Context) error {
	if s.scheduler.Paused() {
		return ErrPaused
	}
	queued := s.scheduler.Wake()
	return s.eventRepo.Append(ctx, models.CycleEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        models.EventRefresh,
		Description: "Manual refresh requested",
		Metadata:    map[string]any{"queued": queued},
	})
}

func (s *ControlService) setPaused(ctx context.Context, paused bool) error {
	if err := s.scheduler.SetPaused(ctx, paused); err != nil {
		return err
	}

	ev := models.CycleEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        models.EventResume,
		Description: "Clock resumed",
	}
	if paused {
		ev.Type = models.EventPause
		ev.Description = "Clock paused"
	}
	return s.eventRepo.Append(ctx, ev)
}
