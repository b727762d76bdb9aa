package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"surf_clock/internal/conditions"
	"surf_clock/internal/framing"
	"surf_clock/internal/logger"
	"surf_clock/internal/models"
	"surf_clock/internal/render"
	"surf_clock/internal/repository"
	"surf_clock/internal/transport"
)

// State is the scheduler's position in the fetch/render cycle.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateSending
	StateReceiving
	StateProcessing
	StateDelaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateSending:
		return "SENDING"
	case StateReceiving:
		return "RECEIVING"
	case StateProcessing:
		return "PROCESSING"
	case StateDelaying:
		return "DELAYING"
	default:
		return fmt.Sprintf("STATE(%d)", int32(s))
	}
}

// Fetcher performs one network round trip. *transport.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, phase func(transport.Phase)) (transport.Attempt, error)
}

// Renderer pushes records to the outputs. *render.Sequencer satisfies it.
type Renderer interface {
	Render(records []models.ConditionRecord, ts *time.Time) ([]render.Rendered, error)
}

type SchedulerConfig struct {
	Interval time.Duration // after a successful cycle
	Backoff  time.Duration // after any failure
}

// SleepFunc waits for d or until ctx is done. A non-nil error stops Run.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SchedulerService owns the fetch → frame → extract → render loop. It is the
// only caller of the fetcher and the renderer.
type SchedulerService struct {
	fetcher   Fetcher
	renderer  Renderer
	stateRepo repository.StateRepo
	eventRepo repository.EventRepo
	cfg       SchedulerConfig
	log       *logger.Logger

	sleep  SleepFunc
	wake   chan struct{}
	paused atomic.Bool
	state  atomic.Int32

	// stateMu serializes every read-modify-write of the clock_state row.
	stateMu sync.Mutex
}

func NewSchedulerService(
	fetcher Fetcher,
	renderer Renderer,
	stateRepo repository.StateRepo,
	eventRepo repository.EventRepo,
	cfg SchedulerConfig,
	log *logger.Logger,
) *SchedulerService {
	if log == nil {
		log = logger.Nop()
	}
	s := &SchedulerService{
		fetcher:   fetcher,
		renderer:  renderer,
		stateRepo: stateRepo,
		eventRepo: eventRepo,
		cfg:       cfg,
		log:       log,
		wake:      make(chan struct{}, 1),
	}
	s.sleep = s.wait
	return s
}

// WithSleep replaces the delay between cycles. Used by tests.
func (s *SchedulerService) WithSleep(fn SleepFunc) *SchedulerService {
	s.sleep = fn
	return s
}

// Run loops until ctx is cancelled. Cancellation is only observed between
// cycles: a cycle that has started runs to completion or to its own timeouts.
func (s *SchedulerService) Run(ctx context.Context) {
	s.log.Infow("scheduler_started", "interval", s.cfg.Interval, "backoff", s.cfg.Backoff)
	defer s.log.Infow("scheduler_stopped")

	for ctx.Err() == nil {
		d := s.RunOnce(context.WithoutCancel(ctx))

		s.setState(StateDelaying)
		if err := s.sleep(ctx, d); err != nil {
			s.setState(StateIdle)
			return
		}
		s.setState(StateIdle)
	}
}

// RunOnce executes a single cycle and returns how long to wait before the next.
func (s *SchedulerService) RunOnce(ctx context.Context) time.Duration {
	if s.paused.Load() {
		s.log.Debugw("cycle_skipped_paused")
		return s.cfg.Interval
	}

	s.setState(StateConnecting)
	attempt, err := s.fetcher.Fetch(ctx, s.onPhase)
	if err != nil {
		return s.fail(ctx, err, map[string]any{"outcome": attempt.Outcome.String()})
	}

	s.setState(StateProcessing)
	frame, err := framing.Parse(attempt.Raw, attempt.N)
	if err != nil {
		return s.fail(ctx, err, map[string]any{"bytes": attempt.N})
	}
	records, err := conditions.Extract(frame.Body)
	if err != nil {
		return s.fail(ctx, err, map[string]any{"bytes": attempt.N})
	}

	var ts *time.Time
	if frame.HasTimestamp {
		t := frame.Timestamp
		ts = &t
	} else {
		s.log.Debugw("date_header_missing")
	}

	rendered, err := s.renderer.Render(records, ts)
	if err != nil {
		return s.fail(ctx, err, map[string]any{"rendered": len(rendered), "records": len(records)})
	}
	s.succeed(ctx, attempt, records, rendered)
	return s.cfg.Interval
}

// State reports the current cycle state.
func (s *SchedulerService) State() State {
	return State(s.state.Load())
}

// Wake cuts the current delay short. A wake sent while a cycle is running ends
// the delay that follows it. Returns false if a wake is already pending.
func (s *SchedulerService) Wake() bool {
	select {
	case s.wake <- struct{}{}:
		return true
	default:
		return false
	}
}

// SetPaused stores the pause flag and then applies it to the loop, which keeps
// its cadence while paused. If the state cannot be saved the loop is left as it was.
func (s *SchedulerService) SetPaused(ctx context.Context, p bool) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	st, err := s.stateRepo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load clock state: %w", err)
	}
	if st.ID == 0 {
		st = baselineState()
	}
	st.Paused = p
	st.UpdatedAt = time.Now().UTC()
	if err := s.stateRepo.Save(ctx, st); err != nil {
		return fmt.Errorf("save clock state: %w", err)
	}
	s.paused.Store(p)
	return nil
}

func (s *SchedulerService) Paused() bool {
	return s.paused.Load()
}

func (s *SchedulerService) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.wake:
		return nil
	case <-t.C:
		return nil
	}
}

func (s *SchedulerService) onPhase(p transport.Phase) {
	switch p {
	case transport.PhaseConnecting:
		s.setState(StateConnecting)
	case transport.PhaseSending:
		s.setState(StateSending)
	case transport.PhaseReceiving:
		s.setState(StateReceiving)
	}
}

func (s *SchedulerService) setState(st State) {
	s.state.Store(int32(st))
}

// classify maps a cycle error to its event type.
func classify(err error) string {
	var te *transport.Error
	switch {
	case errors.As(err, &te):
		return models.EventFetchFailed
	case errors.Is(err, framing.ErrNoSeparator):
		return models.EventFramingError
	case errors.Is(err, conditions.ErrSyntax):
		return models.EventSyntaxError
	case errors.Is(err, conditions.ErrSchema):
		return models.EventSchemaError
	case errors.Is(err, render.ErrHardware):
		return models.EventHardwareError
	default:
		return models.EventFetchFailed
	}
}

func (s *SchedulerService) fail(ctx context.Context, err error, meta map[string]any) time.Duration {
	typ := classify(err)
	now := time.Now().UTC()

	st := s.updateState(ctx, func(st *models.ClockState) {
		st.LastOutcome = typ
		st.ConsecutiveFailures++
		st.UpdatedAt = now
	})

	s.log.Warnw("cycle_failed",
		"type", typ,
		"error", err,
		"consecutive_failures", st.ConsecutiveFailures,
		"retry_in", s.cfg.Backoff,
	)

	meta["error"] = err.Error()
	meta["consecutive_failures"] = st.ConsecutiveFailures
	s.appendEvent(ctx, models.CycleEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now,
		Type:        typ,
		Description: failureDescription(typ),
		Metadata:    meta,
	})
	return s.cfg.Backoff
}

func (s *SchedulerService) succeed(ctx context.Context, attempt transport.Attempt, records []models.ConditionRecord, rendered []render.Rendered) {
	now := time.Now().UTC()

	st := s.updateState(ctx, func(st *models.ClockState) {
		st.LastOutcome = models.EventRendered
		st.ConsecutiveFailures = 0
		st.UpdatedAt = now
		if n := len(rendered); n > 0 {
			last := rendered[n-1]
			st.Rating = last.Record.Rating
			st.Red = last.Visual.Color.R
			st.Green = last.Visual.Color.G
			st.Blue = last.Visual.Color.B
			st.LEDCount = last.Visual.LEDCount
			st.MaxHeight = last.Record.MaxHeight
			st.MinHeight = last.Record.MinHeight
			st.DisplayTime = last.Text.Time
			st.Label = last.Text.Label
		}
	})

	s.log.Infow("cycle_rendered",
		"records", len(records),
		"rating", st.Rating,
		"led_count", st.LEDCount,
		"display_time", st.DisplayTime,
	)
	if attempt.TimedOut || attempt.BufferFull {
		s.log.Warnw("response_possibly_truncated",
			"bytes", attempt.N,
			"truncated_by_timeout", attempt.TimedOut,
			"buffer_full", attempt.BufferFull,
		)
	}

	s.appendEvent(ctx, models.CycleEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now,
		Type:        models.EventRendered,
		Description: fmt.Sprintf("Rendered %d condition record(s)", len(rendered)),
		Metadata: map[string]any{
			"records":              len(records),
			"rating":               st.Rating,
			"max_height":           st.MaxHeight,
			"min_height":           st.MinHeight,
			"led_count":            st.LEDCount,
			"bytes":                attempt.N,
			"truncated_by_timeout": attempt.TimedOut,
			"buffer_full":          attempt.BufferFull,
		},
	})
}

// updateState applies fn to the stored state and saves it. It never fails:
// storage problems are logged and must not stop the clock. The pause flag is
// read under stateMu so a concurrent SetPaused is never written back.
func (s *SchedulerService) updateState(ctx context.Context, fn func(*models.ClockState)) models.ClockState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	st, err := s.stateRepo.Load(ctx)
	if err != nil {
		s.log.Warnw("state_load_failed", "error", err)
		st = models.ClockState{}
	}
	if st.ID == 0 {
		st = baselineState()
	}
	fn(&st)
	st.Paused = s.paused.Load()
	if err := s.stateRepo.Save(ctx, st); err != nil {
		s.log.Warnw("state_save_failed", "error", err)
	}
	return st
}

func (s *SchedulerService) appendEvent(ctx context.Context, ev models.CycleEvent) {
	if err := s.eventRepo.Append(ctx, ev); err != nil {
		s.log.Warnw("event_append_failed", "type", ev.Type, "error", err)
	}
}

func failureDescription(typ string) string {
	switch typ {
	case models.EventFetchFailed:
		return "Fetch failed; retrying after backoff"
	case models.EventFramingError:
		return "Response has no header/body separator"
	case models.EventSyntaxError:
		return "Response body is not valid JSON"
	case models.EventSchemaError:
		return "Conditions payload failed validation"
	case models.EventHardwareError:
		return "LED strip or display driver error"
	default:
		return "Cycle failed"
	}
}
