package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/FynnleyNeko/DroolonStreamer/internal/events"
	"github.com/FynnleyNeko/DroolonStreamer/internal/metrics/exporters"
)

// eventTypes maps SSE event names to payload types.
func eventTypes() map[string]any {
	types := map[string]any{
		"channel-status": events.ChannelStatusEvent{},
		"stream-client":  events.StreamClientEvent{},
	}
	for name, t := range exporters.GetEventTypes() {
		types[name] = t
	}
	return types
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Channel status changes, periodic channel metrics and MJPEG client connects",
		Tags:        []string{"events"},
	}, eventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ChannelStatusEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.ChannelMetricsEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.StreamClientEvent](s.options.EventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// New clients start from the current status of every channel.
		if s.options.Board != nil {
			for _, st := range s.options.Board.All() {
				if err := send.Data(st); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
