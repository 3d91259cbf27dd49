package led

import (
	"log/slog"
	"sync"

	"github.com/FynnleyNeko/DroolonStreamer/internal/events"
)

// Manager subscribes to channel status events and shows a solid LED while
// every channel is active, a heartbeat otherwise.
type Manager struct {
	controller  Controller
	eventBus    *events.Bus
	logger      *slog.Logger
	unsubscribe func()

	mu      sync.Mutex
	active  map[string]bool
	pattern string
}

// NewManager creates a manager for the given channels. Channels that have
// not reported yet count as inactive.
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger, channels ...string) *Manager {
	active := make(map[string]bool, len(channels))
	for _, name := range channels {
		active[name] = false
	}
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
		active:     active,
	}
}

// Start sets the initial pattern and begins listening for status events.
func (m *Manager) Start() {
	m.mu.Lock()
	m.applyLocked()
	m.mu.Unlock()

	m.unsubscribe = m.eventBus.Subscribe(m.handleEvent)
	m.logger.Info("LED manager started")
}

// Stop unsubscribes and switches the LED off.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if err := m.controller.Set(StatusLED, false, ""); err != nil {
		m.logger.Warn("Failed to switch status LED off", "error", err)
	}
	m.logger.Info("LED manager stopped")
}

// Available lists the LEDs the controller can drive.
func (m *Manager) Available() []string {
	return m.controller.Available()
}

// Pattern returns the pattern last applied.
func (m *Manager) Pattern() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pattern
}

func (m *Manager) handleEvent(e events.ChannelStatusEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[e.Channel] = e.State == "active"
	m.applyLocked()
}

// applyLocked must be called with mu held.
func (m *Manager) applyLocked() {
	pattern := PatternSolid
	if len(m.active) == 0 {
		pattern = PatternHeartbeat
	}
	for _, ok := range m.active {
		if !ok {
			pattern = PatternHeartbeat
			break
		}
	}
	if pattern == m.pattern {
		return
	}

	if err := m.controller.Set(StatusLED, true, pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "pattern", pattern, "error", err)
		return
	}
	m.pattern = pattern
	m.logger.Debug("Status LED updated", "pattern", pattern)
}
