// Package channel owns the per-channel capture state machine.
//
// A Manager subscribes to its channel's capture source when the
// reacquisition supervisor asks it to, drains the subscription on a single
// producer goroutine, transforms each raw frame and publishes it. Status
// text is reported on every transition and every closed FPS window.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/FynnleyNeko/DroolonStreamer/internal/capture"
	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
	"github.com/FynnleyNeko/DroolonStreamer/internal/gamma"
	"github.com/FynnleyNeko/DroolonStreamer/internal/metrics"
)

var (
	// ErrSourceUnavailable wraps every synchronous start failure.
	ErrSourceUnavailable = capture.ErrSourceUnavailable
	// ErrAlreadyActive is returned by Start while a subscription is live.
	ErrAlreadyActive = errors.New("channel already active")
	// ErrStopped is returned by Start when Stop ran while subscribing.
	ErrStopped = errors.New("channel stopped")
)

// Publisher receives transformed frames.
type Publisher interface {
	Publish(channel string, f *frame.Frame) uint64
}

// Options are the collaborators of a Manager.
type Options struct {
	Backend   capture.Backend
	Publisher Publisher
	Reporter  Reporter         // optional
	Logger    *slog.Logger     // optional
	Clock     func() time.Time // optional, defaults to time.Now
}

// Manager drives the capture of one channel.
type Manager struct {
	cfg         Config
	backend     capture.Backend
	transformer *frame.Transformer
	publisher   Publisher
	reporter    Reporter
	logger      *slog.Logger
	now         func() time.Time

	// reportMu orders transitions with their reports; taken before mu.
	reportMu sync.Mutex

	mu          sync.Mutex
	state       State
	gen         uint64 // bumped by every Start and Stop; stale producers compare against it
	sub         capture.Subscription
	lastAttempt time.Time
	meter       fpsMeter
	frames      uint64
	dropped     uint64
	dropRun     uint64
	status      string
	severity    Severity
}

// NewManager creates a manager for cfg. The gamma table is built here.
func NewManager(cfg Config, opts Options) (*Manager, error) {
	if opts.Backend == nil || opts.Publisher == nil {
		return nil, errors.New("channel: backend and publisher are required")
	}

	lut, err := gamma.New(cfg.Gamma)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", cfg.Name, err)
	}

	m := &Manager{
		cfg:         cfg,
		backend:     opts.Backend,
		transformer: frame.NewTransformer(lut),
		publisher:   opts.Publisher,
		reporter:    opts.Reporter,
		logger:      opts.Logger,
		now:         opts.Clock,
		state:       StateIdle,
	}
	if m.reporter == nil {
		m.reporter = ReporterFunc(func(string, string, Severity) {})
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.logger = m.logger.With("channel", cfg.Name)

	metrics.SetChannelActive(cfg.Name, false)
	return m, nil
}

// Name returns the channel name.
func (m *Manager) Name() string { return m.cfg.Name }

// Config returns the channel configuration.
func (m *Manager) Config() Config { return m.cfg }

// Eligible reports whether a start attempt is allowed at now: the channel
// holds no subscription and retry has elapsed since the last attempt.
func (m *Manager) Eligible(now time.Time, retry time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.state.Live() && !now.Before(m.lastAttempt.Add(retry))
}

// Start subscribes to the channel's source. A synchronous failure moves the
// channel to lost and returns an error wrapping ErrSourceUnavailable.
func (m *Manager) Start(ctx context.Context) error {
	m.reportMu.Lock()
	m.mu.Lock()
	if m.state.Live() {
		m.mu.Unlock()
		m.reportMu.Unlock()
		return ErrAlreadyActive
	}
	if now := m.now(); now.After(m.lastAttempt) {
		m.lastAttempt = now
	}
	m.gen++
	gen := m.gen
	m.setStateLocked(StateStarting)
	m.mu.Unlock()
	m.emit(StatusStarting, SeverityWarning)
	m.reportMu.Unlock()

	m.logger.Info("Starting capture", "source", m.cfg.Source, "backend", m.backend.Name())

	sub, err := m.backend.Subscribe(ctx, m.cfg.Source)

	m.reportMu.Lock()
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.reportMu.Unlock()
		if sub != nil {
			sub.Stop()
		}
		return ErrStopped
	}
	defer m.reportMu.Unlock()
	if err != nil {
		// Retry spacing runs from the end of a failed attempt.
		if now := m.now(); now.After(m.lastAttempt) {
			m.lastAttempt = now
		}
		m.setStateLocked(StateLost)
		m.mu.Unlock()

		metrics.IncStartAttempt(m.cfg.Name, false)
		m.logger.Warn("Capture source not found", "source", m.cfg.Source, "error", err)
		m.emit(StatusNotFound, SeverityError)

		if !errors.Is(err, ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		return fmt.Errorf("channel %s: %w", m.cfg.Name, err)
	}
	m.sub = sub
	m.dropRun = 0
	m.meter.reset(m.now())
	m.mu.Unlock()

	metrics.IncStartAttempt(m.cfg.Name, true)
	go m.consume(gen, sub)
	return nil
}

// Stop ends the capture and returns the channel to idle. No status is
// reported and a close of the old subscription is ignored.
func (m *Manager) Stop() {
	m.reportMu.Lock()
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.gen++
	m.setStateLocked(StateIdle)
	m.mu.Unlock()
	m.reportMu.Unlock()

	if sub != nil {
		sub.Stop()
		m.logger.Info("Capture stopped")
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of the channel's state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Name:          m.cfg.Name,
		Source:        m.cfg.Source,
		State:         m.state,
		Active:        m.state.Live(),
		LastAttempt:   m.lastAttempt,
		FPS:           m.meter.fps,
		Frames:        m.frames,
		DroppedFrames: m.dropped,
		Status:        m.status,
		Severity:      m.severity,
	}
}

// consume is the channel's producer goroutine.
func (m *Manager) consume(gen uint64, sub capture.Subscription) {
	for raw := range sub.Frames() {
		f, err := m.transformer.Transform(raw)
		if err != nil {
			m.dropFrame(gen, err)
			continue
		}
		m.publishFrame(gen, f)
	}
	m.sourceClosed(gen, sub.Err())
}

func (m *Manager) dropFrame(gen uint64, err error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.dropped++
	m.dropRun++
	run := m.dropRun
	m.mu.Unlock()

	metrics.IncDroppedFrames(m.cfg.Name)
	if run == 1 {
		m.logger.Warn("Dropping frame", "error", err)
		return
	}
	m.logger.Debug("Dropping frame", "error", err, "consecutive", run)
}

func (m *Manager) publishFrame(gen uint64, f *frame.Frame) {
	m.reportMu.Lock()
	defer m.reportMu.Unlock()

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	if m.state == StateStarting {
		m.setStateLocked(StateActive)
		m.logger.Info("Capture active")
	}
	m.frames++
	m.dropRun = 0
	fps, closed := m.meter.tick(m.now())
	m.mu.Unlock()

	metrics.IncFrames(m.cfg.Name)
	if closed {
		metrics.SetChannelFPS(m.cfg.Name, fps)
		m.emit(FPSStatus(fps), SeverityOK)
	}
	m.publisher.Publish(m.cfg.Name, f)
}

func (m *Manager) sourceClosed(gen uint64, err error) {
	m.reportMu.Lock()
	defer m.reportMu.Unlock()

	m.mu.Lock()
	if m.gen != gen || !m.state.Live() {
		m.mu.Unlock()
		return
	}
	m.sub = nil
	m.setStateLocked(StateLost)
	m.mu.Unlock()

	m.logger.Warn("Capture source closed", "error", err)
	m.emit(StatusNotFound, SeverityError)
}

// setStateLocked must be called with mu held.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	metrics.SetChannelActive(m.cfg.Name, s.Live())
}

// emit records the status and forwards it. reportMu must be held.
func (m *Manager) emit(text string, severity Severity) {
	m.mu.Lock()
	m.status = text
	m.severity = severity
	m.mu.Unlock()

	m.reporter.Report(m.cfg.Name, text, severity)
}
