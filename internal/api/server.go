// Package api serves the status API, the event stream, the metrics endpoint
// and the MJPEG streams on one http.ServeMux.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/FynnleyNeko/DroolonStreamer/internal/api/models"
	"github.com/FynnleyNeko/DroolonStreamer/internal/channel"
	"github.com/FynnleyNeko/DroolonStreamer/internal/events"
	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
	"github.com/FynnleyNeko/DroolonStreamer/internal/logging"
	"github.com/FynnleyNeko/DroolonStreamer/internal/status"
	"github.com/FynnleyNeko/DroolonStreamer/internal/version"
)

// shutdownTimeout bounds graceful shutdown before connections are closed.
const shutdownTimeout = 2 * time.Second

// Channel is the read side of a channel manager.
type Channel interface {
	Config() channel.Config
	Snapshot() channel.Snapshot
}

// Frames returns the latest published frame of a channel.
type Frames interface {
	Snapshot(channel string) (*frame.Frame, uint64)
}

// Stream is an MJPEG handler mounted at /<channel>.
type Stream interface {
	http.Handler
	Clients() int
}

// LED exposes the status LED, when one is driven.
type LED interface {
	Available() []string
	Pattern() string
}

// Options are the collaborators of the server.
type Options struct {
	Channels          []Channel
	Frames            Frames
	Streams           map[string]Stream
	Quality           int           // snapshot JPEG quality
	EventBus          *events.Bus   // optional, enables /api/events
	Board             *status.Board // optional, replayed to new event clients
	PrometheusHandler http.Handler  // optional, served at /metrics
	LED               LED           // optional
}

// Server is the HTTP front end.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	channels   map[string]Channel
	logger     *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewServer builds the mux and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("DroolonStreamer API", version.Version)
	config.Info.Description = "Status and control API of the dual channel MJPEG relay"
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		channels: make(map[string]Channel, len(opts.Channels)),
		logger:   logging.GetLogger("api"),
		baseCtx:  baseCtx,
		cancel:   cancel,
	}
	for _, ch := range opts.Channels {
		s.channels[ch.Config().Name] = ch
	}

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	for name, h := range opts.Streams {
		mux.Handle("GET /"+name, h)
	}

	s.registerRoutes()
	return s
}

// Handler returns the mux serving every route.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Listen binds addr. Serve must be called with the returned listener.
func (s *Server) Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+ln.Addr().String()+"/docs")
	return ln, nil
}

// Serve blocks until Stop. It returns nil after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start listens on addr and serves until Stop.
func (s *Server) Start(addr string) error {
	ln, err := s.Listen(addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Stop cancels every request context, which ends all stream and event
// loops, then shuts the listener down.
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP server")
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("Graceful shutdown timed out, closing connections", "error", err)
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Report whether every channel is capturing",
		Tags:        []string{"health"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		active := 0
		for _, ch := range s.options.Channels {
			if ch.Snapshot().State == channel.StateActive {
				active++
			}
		}
		st := "ok"
		if active < len(s.options.Channels) {
			st = "degraded"
		}
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  st,
				Message: fmt.Sprintf("%d of %d channels active", active, len(s.options.Channels)),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		v := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   v.Version,
				GitCommit: v.GitCommit,
				BuildDate: v.BuildDate,
				BuildID:   v.BuildID,
				GoVersion: v.GoVersion,
				Compiler:  v.Compiler,
				Platform:  v.Platform,
			},
		}, nil
	})

	s.registerChannelRoutes()
	s.registerLoggingRoutes()
	s.registerLEDRoutes()

	if s.options.EventBus != nil {
		s.registerSSERoutes()
	}
}
