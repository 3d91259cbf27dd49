package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FynnleyNeko/DroolonStreamer/internal/ffmpeg"
	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
	"github.com/FynnleyNeko/DroolonStreamer/internal/logging"
	"github.com/FynnleyNeko/DroolonStreamer/internal/process"
)

// FFmpegConfig configures window capture through ffmpeg.
type FFmpegConfig struct {
	InputFormat string // ffmpeg grabber, gdigrab when empty
	Template    string // optional command template with a {window} placeholder
	Width       int    // raw output width
	Height      int    // raw output height
	FPS         int    // grabber frame rate
	DrawMouse   bool
}

// FFmpegBackend captures windows by title, one ffmpeg process per window.
type FFmpegBackend struct {
	cfg    FFmpegConfig
	logger *slog.Logger
	pool   process.Pool

	mu   sync.Mutex
	subs map[string]*ffmpegSubscription
}

// NewFFmpegBackend creates an ffmpeg capture backend.
func NewFFmpegBackend(cfg FFmpegConfig, logger *slog.Logger) *FFmpegBackend {
	if logger == nil {
		logger = slog.Default()
	}
	b := &FFmpegBackend{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]*ffmpegSubscription),
	}
	b.pool = process.NewPool(&process.PoolOptions{
		CommandProvider:  b.command,
		OnStateChange:    b.stateChanged,
		ConfigureProcess: b.configure,
		Logger:           logger,
	})
	return b
}

// Name returns the backend name.
func (b *FFmpegBackend) Name() string { return "ffmpeg" }

func (b *FFmpegBackend) params(window string) *ffmpeg.Params {
	return &ffmpeg.Params{
		InputFormat: b.cfg.InputFormat,
		Window:      window,
		FPS:         b.cfg.FPS,
		DrawMouse:   b.cfg.DrawMouse,
		Width:       b.cfg.Width,
		Height:      b.cfg.Height,
	}
}

func (b *FFmpegBackend) command(window string) (string, error) {
	p := b.params(window)
	if b.cfg.Template != "" {
		return ffmpeg.ExpandTemplate(b.cfg.Template, p)
	}
	return ffmpeg.BuildCommand(p)
}

// Subscribe starts an ffmpeg process grabbing the window with the given title.
// A process that cannot be executed is reported synchronously.
func (b *FFmpegBackend) Subscribe(ctx context.Context, window string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &ffmpegSubscription{feed: newFeed(), window: window, backend: b}

	b.mu.Lock()
	if _, busy := b.subs[window]; busy {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrSourceBusy, window)
	}
	b.subs[window] = sub
	b.mu.Unlock()

	if err := b.pool.Start(window); err != nil {
		b.release(window, sub)
		sub.close(err)
		return nil, fmt.Errorf("%w: %q: %w", ErrSourceUnavailable, window, err)
	}

	return sub, nil
}

// Close stops every running ffmpeg process.
func (b *FFmpegBackend) Close() error {
	b.pool.StopAll()
	return nil
}

func (b *FFmpegBackend) lookup(window string) *ffmpegSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs[window]
}

// release removes sub from the live set; it reports whether sub was live.
func (b *FFmpegBackend) release(window string, sub *ffmpegSubscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[window] != sub {
		return false
	}
	delete(b.subs, window)
	return true
}

func (b *FFmpegBackend) configure(window string, proc *process.Process) {
	proc.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
	if sub := b.lookup(window); sub != nil {
		proc.SetStdoutReader(sub.readFrames)
	}
}

func (b *FFmpegBackend) stateChanged(window string, oldState, newState process.State, err error) {
	b.logger.Debug("Capture process state changed", "window", window, "from", oldState, "to", newState)

	if newState != process.StateIdle && newState != process.StateError {
		return
	}

	sub := b.lookup(window)
	if sub == nil || !b.release(window, sub) {
		return
	}

	switch {
	case sub.stopped.Load():
		err = nil
	case err == nil:
		err = ErrSourceClosed
	default:
		err = fmt.Errorf("%w: %w", ErrSourceClosed, err)
	}
	sub.close(err)
}

type ffmpegSubscription struct {
	*feed
	window  string
	backend *FFmpegBackend
	stopped atomic.Bool
}

// Stop terminates the ffmpeg process. Frames is closed once it has exited.
func (s *ffmpegSubscription) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	if s.backend.lookup(s.window) != s {
		return
	}
	_ = s.backend.pool.Stop(s.window)
	// The process may have exited before Stop; make sure Frames closes.
	if s.backend.release(s.window, s) {
		s.close(nil)
	}
}

// readFrames splits the rawvideo stream into fixed-size BGRA frames.
func (s *ffmpegSubscription) readFrames(r io.Reader) {
	width, height := s.backend.cfg.Width, s.backend.cfg.Height
	size := width * height * 4
	if size <= 0 {
		return
	}

	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.backend.logger.Warn("Capture read failed", "window", s.window, "error", err)
			}
			return
		}
		s.push(&frame.Raw{
			Pix:      buf,
			Width:    width,
			Height:   height,
			Stride:   width * 4,
			Format:   frame.FormatBGRA,
			Captured: time.Now(),
		})
	}
}
