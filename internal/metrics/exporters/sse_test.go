package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/FynnleyNeko/DroolonStreamer/internal/events"
	"github.com/FynnleyNeko/DroolonStreamer/internal/metrics"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{
		events:    make([]events.Event, 0),
		published: make(chan struct{}, 100),
	}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

func TestSSEExporterPublishesMetrics(t *testing.T) {
	channel := "sse-test-channel"
	metrics.DeleteChannelMetrics(channel)

	metrics.SetChannelFPS(channel, 118)
	metrics.SetChannelActive(channel, true)
	metrics.IncDroppedFrames(channel)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	exporter.Start(ctx)

	select {
	case <-mock.published:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for metrics publish")
	}

	cancel()
	exporter.Stop()

	var found bool
	for _, ev := range mock.getEvents() {
		cme, ok := ev.(events.ChannelMetricsEvent)
		if !ok || cme.Channel != channel {
			continue
		}
		found = true
		if cme.FPS != 118 {
			t.Errorf("FPS = %d, want 118", cme.FPS)
		}
		if !cme.Active {
			t.Error("expected Active")
		}
		if cme.DroppedFrames != 1 {
			t.Errorf("DroppedFrames = %d, want 1", cme.DroppedFrames)
		}
		if cme.EventType != "channel_metrics" {
			t.Errorf("EventType = %q", cme.EventType)
		}
		break
	}

	if !found {
		t.Error("expected ChannelMetricsEvent for test channel")
	}

	metrics.DeleteChannelMetrics(channel)
}

func TestSSEExporterNoMetrics(t *testing.T) {
	// Use unique channel name to avoid interference from other tests
	testChannel := "sse-no-metrics-test"
	metrics.DeleteChannelMetrics(testChannel)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	exporter.Start(ctx)

	// Wait for at least one publish cycle
	time.Sleep(50 * time.Millisecond)

	cancel()
	exporter.Stop()

	// Verify no events were published for our test channel
	for _, ev := range mock.getEvents() {
		if cme, ok := ev.(events.ChannelMetricsEvent); ok {
			if cme.Channel == testChannel {
				t.Error("expected no events for deleted channel")
			}
		}
	}
}

func TestSSEExporterStopIdempotent(t *testing.T) {
	channel := "sse-idempotent-test"
	metrics.SetChannelFPS(channel, 30)
	defer metrics.DeleteChannelMetrics(channel)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 10 * time.Millisecond

	ctx := context.Background()
	exporter.Start(ctx)

	// Let it run briefly
	time.Sleep(30 * time.Millisecond)

	// Stop multiple times
	exporter.Stop()
	exporter.Stop()
	exporter.Stop()

	// Record event count after stops
	countAfterStop := len(mock.getEvents())

	// Wait and verify no new events after stop
	time.Sleep(30 * time.Millisecond)
	countAfterWait := len(mock.getEvents())

	if countAfterWait != countAfterStop {
		t.Errorf("events published after stop: got %d, want %d", countAfterWait, countAfterStop)
	}
}

func TestSSEExporterStopBeforeStart(t *testing.T) {
	channel := "sse-stop-before-start-test"
	metrics.SetChannelFPS(channel, 45)
	defer metrics.DeleteChannelMetrics(channel)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 10 * time.Millisecond

	// Stop before start should not panic
	exporter.Stop()

	// Should still be able to start and function normally
	ctx := t.Context()
	exporter.Start(ctx)

	// Wait for publish cycle
	time.Sleep(30 * time.Millisecond)
	exporter.Stop()

	// Verify events were published after start
	if len(mock.getEvents()) == 0 {
		t.Error("expected events after Start(), got none")
	}
}

func TestGetEventTypes(t *testing.T) {
	types := GetEventTypes()
	if _, ok := types["channel-metrics"]; !ok {
		t.Error("expected channel-metrics event type")
	}
}
