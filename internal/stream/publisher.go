// Package stream holds the latest frame of every channel for concurrent readers.
package stream

import (
	"sync/atomic"

	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
)

// entry is an immutable (frame, sequence) pair swapped in as a whole.
type entry struct {
	frame *frame.Frame
	seq   uint64
}

// Slot is the single-frame, latest-wins buffer of one channel.
type Slot struct {
	current atomic.Pointer[entry]
}

// Publish replaces the slot contents and returns the new sequence number.
// It never blocks on readers.
func (s *Slot) Publish(f *frame.Frame) uint64 {
	for {
		old := s.current.Load()
		next := &entry{frame: f, seq: 1}
		if old != nil {
			next.seq = old.seq + 1
		}
		if s.current.CompareAndSwap(old, next) {
			return next.seq
		}
	}
}

// Snapshot returns the latest frame and its sequence, or (nil, 0) before the
// first publish.
func (s *Slot) Snapshot() (*frame.Frame, uint64) {
	e := s.current.Load()
	if e == nil {
		return nil, 0
	}
	return e.frame, e.seq
}

// Publisher maps channel names to slots. The set of channels is fixed at
// construction, so lookups need no locking.
type Publisher struct {
	slots map[string]*Slot
}

// NewPublisher creates one slot per channel name.
func NewPublisher(channels ...string) *Publisher {
	p := &Publisher{slots: make(map[string]*Slot, len(channels))}
	for _, name := range channels {
		p.slots[name] = &Slot{}
	}
	return p
}

// Publish overwrites the channel's slot. Returns 0 for unknown channels.
func (p *Publisher) Publish(channel string, f *frame.Frame) uint64 {
	slot, ok := p.slots[channel]
	if !ok {
		return 0
	}
	return slot.Publish(f)
}

// Snapshot returns the latest frame of a channel.
func (p *Publisher) Snapshot(channel string) (*frame.Frame, uint64) {
	slot, ok := p.slots[channel]
	if !ok {
		return nil, 0
	}
	return slot.Snapshot()
}

// Slot returns the slot for a channel.
func (p *Publisher) Slot(channel string) (*Slot, bool) {
	slot, ok := p.slots[channel]
	return slot, ok
}

// Channels returns the channel names in no particular order.
func (p *Publisher) Channels() []string {
	names := make([]string, 0, len(p.slots))
	for name := range p.slots {
		names = append(names, name)
	}
	return names
}
