package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/webcam/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of session state, negotiation results, capture errors and device hotplug",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"session-state":     events.SessionStateEvent{},
		"format-negotiated": events.FormatNegotiatedEvent{},
		"capture-error":     events.CaptureErrorEvent{},
		"device-hotplug":    events.DeviceHotplugEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh, stop := s.eventBus.Tap(16,
			events.TypeSessionState,
			events.TypeFormatNegotiated,
			events.TypeCaptureError,
			events.TypeDeviceHotplug)
		defer stop()

		forward(ctx, eventCh, send, nil)
	})
}

// forward sends events until the client goes away or a write fails.
// A non-nil keep filters what is sent.
func forward(ctx context.Context, eventCh <-chan events.Event, send sse.Sender, keep func(events.Event) bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventCh:
			if keep != nil && !keep(event) {
				continue
			}
			if err := send.Data(event); err != nil {
				return
			}
		}
	}
}
