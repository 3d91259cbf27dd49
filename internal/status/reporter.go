// Package status turns channel status reports into bus events and keeps the
// most recent status of every channel for the API.
package status

import (
	"sync"
	"time"

	"github.com/FynnleyNeko/DroolonStreamer/internal/channel"
	"github.com/FynnleyNeko/DroolonStreamer/internal/events"
)

// Publisher is the part of the event bus the reporter needs.
type Publisher interface {
	Publish(ev events.Event)
}

// Snapshotter exposes the current state of a channel.
type Snapshotter interface {
	Snapshot() channel.Snapshot
}

// BusReporter implements channel.Reporter by publishing ChannelStatusEvent.
// State and FPS are read from the tracked channel at report time.
type BusReporter struct {
	bus Publisher
	now func() time.Time

	mu       sync.RWMutex
	channels map[string]Snapshotter
}

// NewBusReporter creates a reporter that publishes to bus.
func NewBusReporter(bus Publisher) *BusReporter {
	return &BusReporter{
		bus:      bus,
		now:      time.Now,
		channels: make(map[string]Snapshotter),
	}
}

// Track registers the channel whose state accompanies its reports.
func (r *BusReporter) Track(name string, s Snapshotter) {
	r.mu.Lock()
	r.channels[name] = s
	r.mu.Unlock()
}

// Report publishes one status event.
func (r *BusReporter) Report(name, text string, severity channel.Severity) {
	ev := events.ChannelStatusEvent{
		Channel:   name,
		Status:    text,
		Severity:  string(severity),
		Timestamp: r.now().Format(time.RFC3339),
	}

	r.mu.RLock()
	s, ok := r.channels[name]
	r.mu.RUnlock()
	if ok {
		snap := s.Snapshot()
		ev.State = string(snap.State)
		ev.FPS = snap.FPS
	}

	r.bus.Publish(ev)
}

var _ channel.Reporter = (*BusReporter)(nil)
