package stream

import (
	"sync"
	"testing"

	"github.com/FynnleyNeko/DroolonStreamer/internal/frame"
)

func TestSnapshotBeforePublish(t *testing.T) {
	p := NewPublisher("left")
	f, seq := p.Snapshot("left")
	if f != nil || seq != 0 {
		t.Errorf("Snapshot() = %v, %d; want nil, 0", f, seq)
	}
}

func TestPublishOverwrites(t *testing.T) {
	p := NewPublisher("left", "right")
	a, b := &frame.Frame{}, &frame.Frame{}

	if seq := p.Publish("left", a); seq != 1 {
		t.Errorf("first seq = %d, want 1", seq)
	}
	if seq := p.Publish("left", b); seq != 2 {
		t.Errorf("second seq = %d, want 2", seq)
	}

	got, seq := p.Snapshot("left")
	if got != b || seq != 2 {
		t.Errorf("Snapshot() = %p, %d; want %p, 2", got, seq, b)
	}

	// channels are independent
	if f, seq := p.Snapshot("right"); f != nil || seq != 0 {
		t.Errorf("right Snapshot() = %v, %d; want nil, 0", f, seq)
	}
}

func TestUnknownChannel(t *testing.T) {
	p := NewPublisher("left")
	if seq := p.Publish("middle", &frame.Frame{}); seq != 0 {
		t.Errorf("Publish to unknown channel returned %d", seq)
	}
	if _, ok := p.Slot("middle"); ok {
		t.Error("Slot(middle) should not exist")
	}
}

func TestConcurrentSnapshotsNeverGoBackwards(t *testing.T) {
	const (
		frames    = 20000
		consumers = 8
	)
	p := NewPublisher("left")
	f := &frame.Frame{}

	var wg sync.WaitGroup
	done := make(chan struct{})
	errs := make(chan uint64, consumers)

	for range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for {
				select {
				case <-done:
					return
				default:
				}
				_, seq := p.Snapshot("left")
				if seq < last {
					errs <- seq
					return
				}
				last = seq
			}
		}()
	}

	for range frames {
		p.Publish("left", f)
	}
	close(done)
	wg.Wait()
	close(errs)

	for seq := range errs {
		t.Errorf("observed sequence going backwards to %d", seq)
	}
	if _, seq := p.Snapshot("left"); seq != frames {
		t.Errorf("final seq = %d, want %d", seq, frames)
	}
}

func TestConcurrentPublishersKeepSequenceDense(t *testing.T) {
	p := NewPublisher("left")
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				p.Publish("left", &frame.Frame{})
			}
		}()
	}
	wg.Wait()
	if _, seq := p.Snapshot("left"); seq != 4000 {
		t.Errorf("seq = %d, want 4000", seq)
	}
}
