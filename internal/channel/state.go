package channel

import (
	"fmt"
	"time"
)

// State is the capture state of a channel.
type State string

// Channel states.
const (
	StateIdle     State = "idle"     // Never started or explicitly stopped
	StateStarting State = "starting" // Subscribed, waiting for the first frame
	StateActive   State = "active"   // Frames flowing
	StateLost     State = "lost"     // Source closed or could not be opened
)

// Live reports whether the state holds a capture subscription.
func (s State) Live() bool {
	return s == StateStarting || s == StateActive
}

// Severity classifies a status report.
type Severity string

// Report severities.
const (
	SeverityOK      Severity = "ok"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Status texts.
const (
	StatusStarting = "Starting"
	StatusNotFound = "Not Found"
)

// FPSStatus formats a frame rate report.
func FPSStatus(fps int) string {
	return fmt.Sprintf("%d FPS", fps)
}

// Reporter receives status text for display. Calls are made outside any
// channel lock, in transition order per channel.
type Reporter interface {
	Report(channel, text string, severity Severity)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(channel, text string, severity Severity)

// Report calls f.
func (f ReporterFunc) Report(channel, text string, severity Severity) {
	f(channel, text, severity)
}

// Config describes one channel. It is immutable after startup.
type Config struct {
	Name    string  // endpoint name, served at /<Name>
	Source  string  // capture source identifier (window title, rectangle)
	Gamma   float64 // 0.50 to 2.00, 1.0 disables correction
	Quality int     // JPEG quality 10 to 100
	FPS     int     // output frame rate 30 to 120
}

// Snapshot is a point-in-time copy of a channel's state.
type Snapshot struct {
	Name          string
	Source        string
	State         State
	Active        bool
	LastAttempt   time.Time
	FPS           int
	Frames        uint64
	DroppedFrames uint64
	Status        string
	Severity      Severity
}

// fpsMeter counts frames over one second windows.
type fpsMeter struct {
	frameCount  int
	windowStart time.Time
	fps         int
}

func (m *fpsMeter) reset(now time.Time) {
	m.frameCount = 0
	m.windowStart = now
}

// tick counts one frame. When the window has lasted at least a second it
// returns the window's rate as frameCount-1 and starts a new window.
func (m *fpsMeter) tick(now time.Time) (int, bool) {
	m.frameCount++
	if now.Sub(m.windowStart) < time.Second {
		return 0, false
	}
	m.fps = m.frameCount - 1
	m.frameCount = 0
	m.windowStart = now
	return m.fps, true
}
