package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/FynnleyNeko/DroolonStreamer/internal/capture"
	"github.com/FynnleyNeko/DroolonStreamer/internal/channel"
	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
	"github.com/FynnleyNeko/DroolonStreamer/internal/gamma"
	"github.com/FynnleyNeko/DroolonStreamer/internal/logging"
)

// Accepted ranges.
const (
	MinPort      = 1024
	MaxPort      = 65535
	MinFramerate = 30
	MaxFramerate = 120
	MinQuality   = 10
	MaxQuality   = 100
)

// reservedNames are paths the API owns on the shared mux.
var reservedNames = []string{"api", "metrics"}

// ConfigurationError lists every invalid option. It is fatal before any
// channel starts.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Settings is the validated, typed form of Options.
type Settings struct {
	Address      string
	Port         int
	Framerate    int
	Quality      int
	KeepAlive    time.Duration
	WriteTimeout time.Duration

	Channels []channel.Config
	Capture  capture.Config

	Period time.Duration
	Retry  time.Duration

	PrometheusEnabled bool
	SSEInterval       time.Duration

	LEDControl bool
	LEDName    string

	Logging logging.Config

	ConfigFile  string
	ConfigWatch bool
}

// ListenAddr returns address:port.
func (s *Settings) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// Validate converts opts into Settings. All violations are collected into a
// single *ConfigurationError.
func Validate(opts *Options) (*Settings, error) {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(opts.Address) == "" {
		addf("address must not be empty")
	}
	if opts.Port < MinPort || opts.Port > MaxPort {
		addf("port %d out of range [%d, %d]", opts.Port, MinPort, MaxPort)
	}
	if opts.Framerate < MinFramerate || opts.Framerate > MaxFramerate {
		addf("framerate %d out of range [%d, %d]", opts.Framerate, MinFramerate, MaxFramerate)
	}
	if opts.Quality < MinQuality || opts.Quality > MaxQuality {
		addf("quality %d out of range [%d, %d]", opts.Quality, MinQuality, MaxQuality)
	}

	duration := func(name, value string) time.Duration {
		d, err := time.ParseDuration(value)
		if err != nil {
			addf("%s: %v", name, err)
			return 0
		}
		if d <= 0 {
			addf("%s must be positive, got %s", name, value)
		}
		return d
	}

	s := &Settings{
		Address:           opts.Address,
		Port:              opts.Port,
		Framerate:         opts.Framerate,
		Quality:           opts.Quality,
		KeepAlive:         duration("keep-alive", opts.KeepAlive),
		WriteTimeout:      duration("write-timeout", opts.WriteTimeout),
		Period:            duration("reacquire-period", opts.ReacquirePeriod),
		Retry:             duration("reacquire-retry", opts.ReacquireRetry),
		PrometheusEnabled: opts.ObsPrometheusEnabled,
		SSEInterval:       duration("obs-sse-interval", opts.ObsSSEInterval),
		LEDControl:        opts.FeaturesLEDControl,
		LEDName:           opts.FeaturesLEDName,
		Logging:           loggingConfig(opts),
		ConfigFile:        opts.Config,
		ConfigWatch:       opts.ConfigWatch,
	}

	sides := []struct{ side, name, source, gamma string }{
		{"left", opts.LeftName, opts.LeftSource, opts.LeftGamma},
		{"right", opts.RightName, opts.RightSource, opts.RightGamma},
	}
	seen := map[string]bool{}
	for _, c := range sides {
		name := strings.Trim(c.name, "/")
		switch {
		case name == "" || strings.ContainsAny(name, "/ "):
			addf("%s channel name %q must be a single path segment", c.side, c.name)
		case slices.Contains(reservedNames, name):
			addf("%s channel name %q is reserved", c.side, c.name)
		case seen[name]:
			addf("channel name %q used twice", name)
		}
		seen[name] = true

		if strings.TrimSpace(c.source) == "" {
			addf("%s channel source must not be empty", c.side)
		}

		g, err := strconv.ParseFloat(strings.TrimSpace(c.gamma), 64)
		if err != nil {
			addf("%s gamma %q is not a number", c.side, c.gamma)
		} else if _, err := gamma.New(g); err != nil {
			addf("%s gamma: %v", c.side, err)
		}

		s.Channels = append(s.Channels, channel.Config{
			Name:    name,
			Source:  c.source,
			Gamma:   g,
			Quality: opts.Quality,
			FPS:     opts.Framerate,
		})
	}

	if !slices.Contains(capture.Names(), opts.CaptureBackend) {
		addf("capture backend %q unknown, want one of %s", opts.CaptureBackend, strings.Join(capture.Names(), ", "))
	}
	minW, minH := frame.MinRawWidth, frame.MinRawHeight
	if opts.CaptureBackend == "ffmpeg" && (opts.CaptureWidth < minW || opts.CaptureHeight < minH) {
		addf("capture geometry %dx%d smaller than %dx%d", opts.CaptureWidth, opts.CaptureHeight, minW, minH)
	}
	if opts.CaptureBackend == "screen" {
		for _, c := range sides {
			if strings.TrimSpace(c.source) == "" {
				continue
			}
			r, err := capture.ParseRect(c.source)
			if err != nil {
				addf("%s channel source: %v", c.side, err)
				continue
			}
			if r.Dx() < minW || r.Dy() < minH {
				addf("%s channel rectangle %dx%d smaller than %dx%d", c.side, r.Dx(), r.Dy(), minW, minH)
			}
		}
	}
	if opts.CaptureFPS <= 0 {
		addf("capture fps must be positive, got %d", opts.CaptureFPS)
	}
	if opts.CaptureCommand != "" && !strings.Contains(opts.CaptureCommand, "{window}") {
		addf("capture command must contain {window}")
	}
	s.Capture = capture.Config{
		Backend: opts.CaptureBackend,
		FFmpeg: capture.FFmpegConfig{
			InputFormat: opts.CaptureInputFormat,
			Template:    opts.CaptureCommand,
			Width:       opts.CaptureWidth,
			Height:      opts.CaptureHeight,
			FPS:         opts.CaptureFPS,
			DrawMouse:   opts.CaptureDrawMouse,
		},
		Screen: capture.ScreenConfig{FPS: opts.CaptureFPS},
	}

	if len(problems) > 0 {
		return nil, &ConfigurationError{Problems: problems}
	}
	return s, nil
}

func loggingConfig(opts *Options) logging.Config {
	return logging.Config{
		Level:  opts.LoggingLevel,
		Format: opts.LoggingFormat,
		Modules: map[string]string{
			"capture":    opts.LoggingCapture,
			"ffmpeg":     opts.LoggingFFmpeg,
			"channel":    opts.LoggingChannel,
			"supervisor": opts.LoggingSupervisor,
			"mjpeg":      opts.LoggingMJPEG,
			"api":        opts.LoggingAPI,
			"status":     opts.LoggingStatus,
		},
	}
}
