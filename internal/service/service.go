package service

import (
	"context"

	"surf_clock/internal/logger"
	"surf_clock/internal/models"
	"surf_clock/internal/repository"
)

// Authorization registers operators and guards the control API.
type Authorization interface {
	SignUp(ctx context.Context, username, password string, invited bool) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Clock exposes the operator controls: pause, resume and an immediate refresh.
type Clock interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// Monitoring exposes read-only state (last render and loop health).
type Monitoring interface {
	GetState(ctx context.Context) (models.ClockState, error)
}

// EventLog exposes append-only cycle events with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.CycleEvent, error)
}

// Scheduler runs the fetch/render loop.
// Stop via context cancellation in main() for graceful shutdown.
type Scheduler interface {
	Run(ctx context.Context)
}

// Service aggregates all sub-services.
type Service struct {
	Clock
	Monitoring
	EventLog
	Scheduler
	Authorization
}

// Deps are the non-repository collaborators.
type Deps struct {
	Fetcher  Fetcher
	Renderer Renderer
	Schedule SchedulerConfig
	Auth     AuthConfig
	Log      *logger.Logger
}

// NewService wires the repository layer and hardware pipeline into concrete services.
func NewService(repos *repository.Repository, deps Deps) *Service {
	scheduler := NewSchedulerService(
		deps.Fetcher,
		deps.Renderer,
		repos.StateRepo,
		repos.EventRepo,
		deps.Schedule,
		deps.Log.Named("scheduler"),
	)
	return &Service{
		Clock:         NewControlService(scheduler, repos.EventRepo),
		Monitoring:    NewMonitoringService(repos.StateRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Scheduler:     scheduler,
		Authorization: NewAuthService(repos.Operators, deps.Auth),
	}
}
