package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"sync"

	"github.com/FynnleyNeko/DroolonStreamer/internal/api"
	"github.com/FynnleyNeko/DroolonStreamer/internal/capture"
	"github.com/FynnleyNeko/DroolonStreamer/internal/channel"
	"github.com/FynnleyNeko/DroolonStreamer/internal/config"
	"github.com/FynnleyNeko/DroolonStreamer/internal/events"
	"github.com/FynnleyNeko/DroolonStreamer/internal/led"
	"github.com/FynnleyNeko/DroolonStreamer/internal/logging"
	"github.com/FynnleyNeko/DroolonStreamer/internal/metrics"
	"github.com/FynnleyNeko/DroolonStreamer/internal/metrics/exporters"
	"github.com/FynnleyNeko/DroolonStreamer/internal/mjpeg"
	"github.com/FynnleyNeko/DroolonStreamer/internal/status"
	"github.com/FynnleyNeko/DroolonStreamer/internal/stream"
	"github.com/FynnleyNeko/DroolonStreamer/internal/supervisor"
	"github.com/FynnleyNeko/DroolonStreamer/internal/systemd"
)

// app holds the running pipeline.
type app struct {
	settings *config.Settings
	logger   *slog.Logger

	bus        *events.Bus
	backend    capture.Backend
	managers   []*channel.Manager
	supervisor *supervisor.Supervisor
	board      *status.Board
	detachLog  func()
	detachUnit func()
	leds       *led.Manager
	sse        *exporters.SSEExporter
	system     *metrics.SystemCollector
	server     *api.Server
	notifier   *systemd.Notifier
	reload     config.Loader
	watcher    *config.Watcher

	ctx            context.Context
	cancel         context.CancelFunc
	supervisorDone chan struct{}
}

func newApp(settings *config.Settings, reload config.Loader) (*app, error) {
	logger := logging.GetLogger("main")

	backend, err := capture.New(settings.Capture, logging.GetLogger("capture"))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(settings.Channels))
	for _, cfg := range settings.Channels {
		names = append(names, cfg.Name)
	}

	bus := events.New()
	publisher := stream.NewPublisher(names...)
	reporter := status.NewBusReporter(bus)

	a := &app{
		settings: settings,
		logger:   logger,
		bus:      bus,
		backend:  backend,
		board:    status.NewBoard(names...),
		notifier: systemd.NewNotifier(logging.GetLogger("systemd")),
		reload:   reload,
	}

	targets := make([]supervisor.Target, 0, len(settings.Channels))
	apiChannels := make([]api.Channel, 0, len(settings.Channels))
	streams := make(map[string]api.Stream, len(settings.Channels))
	for _, cfg := range settings.Channels {
		m, err := channel.NewManager(cfg, channel.Options{
			Backend:   backend,
			Publisher: publisher,
			Reporter:  reporter,
			Logger:    logging.GetLogger("channel"),
		})
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		reporter.Track(cfg.Name, m)
		a.managers = append(a.managers, m)
		targets = append(targets, m)
		apiChannels = append(apiChannels, m)

		streams[cfg.Name] = mjpeg.NewHandler(cfg.Name, publisher, mjpeg.Options{
			FPS:          settings.Framerate,
			Quality:      settings.Quality,
			KeepAlive:    settings.KeepAlive,
			WriteTimeout: settings.WriteTimeout,
			Events:       bus,
			Logger:       logging.GetLogger("mjpeg"),
		})
	}

	a.supervisor = supervisor.New(targets, supervisor.Options{
		Period: settings.Period,
		Retry:  settings.Retry,
		Logger: logging.GetLogger("supervisor"),
	})

	a.sse = exporters.NewSSEExporter(bus)
	a.sse.SetInterval(settings.SSEInterval)

	apiOpts := &api.Options{
		Channels: apiChannels,
		Frames:   publisher,
		Streams:  streams,
		Quality:  settings.Quality,
		EventBus: bus,
		Board:    a.board,
	}
	if settings.PrometheusEnabled {
		apiOpts.PrometheusHandler = exporters.HTTPHandler()
		if sys, err := metrics.NewSystemCollector(0, logging.GetLogger("metrics")); err != nil {
			logger.Warn("System metrics disabled", "error", err)
		} else {
			a.system = sys
		}
	}

	if settings.LEDControl {
		ledLogger := logging.GetLogger("led")
		a.leds = led.NewManager(led.New(settings.LEDName, ledLogger), bus, ledLogger, names...)
		apiOpts.LED = a.leds
	}

	a.server = api.NewServer(apiOpts)
	return a, nil
}

// start binds the listener and starts the pipeline. serve must follow.
func (a *app) start() (net.Listener, error) {
	addr := a.settings.ListenAddr()
	ln, err := a.server.Listen(addr)
	if err != nil {
		return nil, err
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.board.Attach(a.bus)
	a.detachLog = status.NewLog(logging.GetLogger("status")).Attach(a.bus)
	a.detachUnit = a.reportUnitStatus()
	a.sse.Start(a.ctx)
	if a.system != nil {
		a.system.Start(a.ctx)
	}
	if a.leds != nil {
		a.leds.Start()
	}

	if a.settings.ConfigWatch && a.reload != nil {
		a.watchConfig()
	}

	a.supervisorDone = make(chan struct{})
	go func() {
		defer close(a.supervisorDone)
		a.supervisor.Run(a.ctx)
	}()
	go a.notifier.Watchdog(a.ctx)

	endpoints := make([]string, 0, len(a.settings.Channels))
	for _, cfg := range a.settings.Channels {
		endpoints = append(endpoints, fmt.Sprintf("http://%s/%s", addr, cfg.Name))
	}
	a.logger.Info("DroolonStreamer started",
		"address", addr,
		"backend", a.backend.Name(),
		"quality", a.settings.Quality,
		"framerate", a.settings.Framerate,
		"endpoints", strings.Join(endpoints, " "))
	a.notifier.Ready()
	return ln, nil
}

// serve blocks until stop closes the server.
func (a *app) serve(ln net.Listener) error {
	return a.server.Serve(ln)
}

// stop shuts down in order: reacquisition, captures, then HTTP.
func (a *app) stop() {
	a.logger.Info("Shutting down")
	a.notifier.Stopping()

	if a.cancel != nil {
		a.cancel()
		<-a.supervisorDone
	}

	for _, m := range a.managers {
		m.Stop()
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("Error closing capture backend", "error", err)
	}

	if err := a.server.Stop(); err != nil {
		a.logger.Error("Error stopping HTTP server", "error", err)
	}

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Error stopping config watcher", "error", err)
		}
	}
	a.sse.Stop()
	if a.system != nil {
		a.system.Stop()
	}
	if a.leds != nil {
		a.leds.Stop()
	}
	if a.detachUnit != nil {
		a.detachUnit()
	}
	if a.detachLog != nil {
		a.detachLog()
	}
	a.board.Detach()
}

// reportUnitStatus mirrors channel states into the systemd status line.
func (a *app) reportUnitStatus() func() {
	var mu sync.Mutex
	states := make(map[string]string, len(a.settings.Channels))
	order := make([]string, 0, len(a.settings.Channels))
	for _, cfg := range a.settings.Channels {
		states[cfg.Name] = string(channel.StateIdle)
		order = append(order, cfg.Name)
	}

	return a.bus.Subscribe(func(e events.ChannelStatusEvent) {
		mu.Lock()
		defer mu.Unlock()
		if states[e.Channel] == e.State {
			return
		}
		states[e.Channel] = e.State

		parts := make([]string, 0, len(order))
		for _, name := range order {
			parts = append(parts, name+" "+states[name])
		}
		a.notifier.Status(strings.Join(parts, ", "))
	})
}

// watchConfig applies log level edits live. Other changes need a restart.
func (a *app) watchConfig() {
	w := config.NewWatcher(a.settings.ConfigFile, a.reload, 0, logging.GetLogger("config"))
	w.OnReload(func(s *config.Settings) {
		logging.SetLevels(s.Logging)
		if s.ListenAddr() != a.settings.ListenAddr() || !slices.Equal(s.Channels, a.settings.Channels) ||
			s.Capture != a.settings.Capture || s.Quality != a.settings.Quality || s.Framerate != a.settings.Framerate {
			a.logger.Warn("Config change requires a restart to take effect", "path", a.settings.ConfigFile)
		}
	})
	if err := w.Start(); err != nil {
		a.logger.Warn("Config watcher disabled", "path", a.settings.ConfigFile, "error", err)
		return
	}
	a.watcher = w
}
