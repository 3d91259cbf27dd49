package status

import (
	"slices"
	"strings"
	"sync"

	"github.com/FynnleyNeko/DroolonStreamer/internal/events"
)

// Board holds the latest status event of each channel.
type Board struct {
	mu     sync.RWMutex
	latest map[string]events.ChannelStatusEvent
	unsub  func()
}

// NewBoard creates an empty board. Names are pre-seeded so the API lists
// every configured channel before its first report.
func NewBoard(names ...string) *Board {
	b := &Board{latest: make(map[string]events.ChannelStatusEvent, len(names))}
	for _, name := range names {
		b.latest[name] = events.ChannelStatusEvent{Channel: name, State: "idle"}
	}
	return b
}

// Attach subscribes the board to status events on bus.
func (b *Board) Attach(bus *events.Bus) {
	b.unsub = bus.Subscribe(b.Update)
}

// Detach unsubscribes from the bus.
func (b *Board) Detach() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
}

// Update records e as the latest status of its channel.
func (b *Board) Update(e events.ChannelStatusEvent) {
	b.mu.Lock()
	b.latest[e.Channel] = e
	b.mu.Unlock()
}

// Get returns the latest status of a channel.
func (b *Board) Get(name string) (events.ChannelStatusEvent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.latest[name]
	return e, ok
}

// All returns the latest status of every channel, ordered by name.
func (b *Board) All() []events.ChannelStatusEvent {
	b.mu.RLock()
	all := make([]events.ChannelStatusEvent, 0, len(b.latest))
	for _, e := range b.latest {
		all = append(all, e)
	}
	b.mu.RUnlock()

	slices.SortFunc(all, func(a, b events.ChannelStatusEvent) int {
		return strings.Compare(a.Channel, b.Channel)
	})
	return all
}
