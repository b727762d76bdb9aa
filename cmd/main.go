// @title                       Surf Clock API
// @version                     1.0
// @description                 Status, control and event log for the surf-conditions clock.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "surf_clock/docs"
	"surf_clock/internal/config"
	"surf_clock/internal/device/logdev"
	"surf_clock/internal/device/modbus"
	"surf_clock/internal/handlers"
	"surf_clock/internal/logger"
	"surf_clock/internal/render"
	"surf_clock/internal/repository"
	"surf_clock/internal/repository/db"
	"surf_clock/internal/server"
	"surf_clock/internal/service"
	"surf_clock/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("SURFCLOCK_CONFIG"))
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid config", "err", err)
	}

	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	hw, err := openHardware(cfg, log)
	if err != nil {
		log.Fatalw("failed to open hardware", "err", err, "driver", cfg.Hardware.Driver)
	}
	defer func() {
		if cerr := hw.close(); cerr != nil {
			log.Errorw("failed to close hardware", "err", cerr)
		}
	}()

	sequencer := render.NewSequencer(hw.strip, hw.display, render.Config{
		ClearTimeout:   cfg.Strip.ClearTimeout,
		RefreshTimeout: cfg.Strip.RefreshTimeout,
		Width:          cfg.Display.Width,
		FontSize:       cfg.Display.FontSize,
		GlyphWidth:     cfg.Display.GlyphWidth,
		TimeRow:        cfg.Display.TimeRow,
		LabelRow:       cfg.Display.LabelRow,
		Location:       cfg.Display.Location(),
	}, log.Named("render"))
	if err := sequencer.Reset(); err != nil {
		log.Fatalw("failed to clear outputs", "err", err)
	}

	fetcher := transport.New(transport.Config{
		Host:           cfg.Source.Host,
		Port:           cfg.Source.Port,
		Path:           cfg.Source.RequestPath(),
		UserAgent:      cfg.Source.UserAgent,
		BufferSize:     cfg.Source.BufferSize,
		ReceiveTimeout: cfg.Source.ReceiveTimeout,
		DialTimeout:    cfg.Source.DialTimeout,
	})

	repos := repository.NewRepository(conn)
	services := service.NewService(repos, service.Deps{
		Fetcher:  fetcher,
		Renderer: sequencer,
		Schedule: service.SchedulerConfig{
			Interval: cfg.Schedule.Interval,
			Backoff:  cfg.Schedule.Backoff,
		},
		Auth: service.AuthConfig{
			SigningKey: cfg.Auth.SigningKey,
			TokenTTL:   cfg.Auth.TokenTTL,
		},
		Log: log,
	})
	if cfg.Auth.SigningKey == "" {
		log.Warnw("auth.signing_key not set; tokens will not survive a restart")
	}
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		services.Scheduler.Run(ctx)
	}()

	srv := server.New()
	runHTTPServer(srv, cfg.Port, apiHandler, log)
	log.Infow("surf_clock_started",
		"port", cfg.Port,
		"source", cfg.Source.Address(),
		"driver", cfg.Hardware.Driver,
		"strip_length", cfg.Strip.Length,
	)

	waitForShutdown(cancel, srv, schedulerDone, log)
}

type hardware struct {
	strip   render.LEDStrip
	display render.Display
	close   func() error
}

// openHardware selects the output driver named in config.
func openHardware(cfg *config.Config, log *logger.Logger) (hardware, error) {
	switch cfg.Hardware.Driver {
	case config.DriverModbus:
		m := cfg.Hardware.Modbus
		panel, err := modbus.Dial(modbus.Config{
			Endpoint:    m.Endpoint,
			UnitID:      m.UnitID,
			Timeout:     m.Timeout,
			StripLength: cfg.Strip.Length,
			PixelBase:   m.PixelBase,
			PixelCommit: m.PixelCommit,
			TextBase:    m.TextBase,
			TextCommit:  m.TextCommit,
			TextMaxRegs: m.TextMaxRegs,
		})
		if err != nil {
			return hardware{}, err
		}
		log.Infow("modbus_panel_connected", "endpoint", m.Endpoint, "unit_id", m.UnitID)
		return hardware{strip: panel.Strip(), display: panel.Display(), close: panel.Close}, nil
	case config.DriverLog:
		return hardware{
			strip:   logdev.NewStrip(cfg.Strip.Length, log.Named("strip")),
			display: logdev.NewDisplay(log.Named("display")),
			close:   func() error { return nil },
		}, nil
	default:
		return hardware{}, fmt.Errorf("unknown hardware driver %q", cfg.Hardware.Driver)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until SIGINT/SIGTERM, then stops the scheduler
// between cycles and drains the HTTP server.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, schedulerDone <-chan struct{}, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	select {
	case <-schedulerDone:
	case <-ctx.Done():
		log.Warnw("scheduler did not stop before shutdown timeout")
	}
}
