// Package capture delivers raw frames from live video sources.
//
// A Backend opens a Subscription for a source identifier (a window title,
// a screen rectangle). The subscription's Frames channel carries raw frames
// until the source goes away, at which point it is closed and Err reports
// why. Frames is a one-slot mailbox: a slow consumer only ever sees the
// newest frame.
package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
)

var (
	// ErrSourceUnavailable is returned by Subscribe when the source cannot be opened.
	ErrSourceUnavailable = errors.New("capture source unavailable")
	// ErrSourceBusy is returned when the source already has a live subscription.
	ErrSourceBusy = errors.New("capture source already subscribed")
	// ErrSourceClosed is reported by Err when the source went away on its own.
	ErrSourceClosed = errors.New("capture source closed")
	// ErrUnknownBackend is returned by New for an unregistered backend name.
	ErrUnknownBackend = errors.New("unknown capture backend")
)

// Backend opens capture subscriptions.
type Backend interface {
	Name() string
	Subscribe(ctx context.Context, source string) (Subscription, error)
	// Close stops every subscription the backend still runs.
	Close() error
}

// Subscription is a live capture of one source.
type Subscription interface {
	// Frames yields raw frames and is closed when the source closes.
	Frames() <-chan *frame.Raw
	// Err returns the reason the source closed, nil after Stop or before close.
	Err() error
	// Stop ends the capture. Frames is closed afterwards. Safe to call twice.
	Stop()
}

// feed is the producer half of a subscription.
type feed struct {
	frames chan *frame.Raw

	mu     sync.Mutex
	err    error
	closed bool
}

func newFeed() *feed {
	return &feed{frames: make(chan *frame.Raw, 1)}
}

func (f *feed) Frames() <-chan *frame.Raw {
	return f.frames
}

func (f *feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// push delivers raw, replacing a frame the consumer has not taken yet.
// Pushes after close are dropped.
func (f *feed) push(raw *frame.Raw) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.frames <- raw:
		return
	default:
	}
	select {
	case <-f.frames:
	default:
	}
	select {
	case f.frames <- raw:
	default:
	}
}

func (f *feed) close(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.err = err
	close(f.frames)
}
