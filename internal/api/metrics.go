package api

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/webcam/internal/api/models"
	"github.com/smazurov/webcam/internal/events"
	"github.com/smazurov/webcam/internal/metrics"
)

// registerMetricsRoutes registers the capture counters as JSON and as an SSE stream.
func (s *Server) registerMetricsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Capture Stats",
		Description: "Frame, byte, timeout and error counters per device",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatsResponse, error) {
		now := time.Now().UTC().Format(time.RFC3339)
		resp := &models.StatsResponse{}
		resp.Body.Devices = []events.CaptureStatsEvent{}
		for device, st := range metrics.AllStats() {
			resp.Body.Devices = append(resp.Body.Devices, events.CaptureStatsEvent{
				Device:    device,
				Frames:    st.Frames,
				Bytes:     st.Bytes,
				Timeouts:  st.Timeouts,
				Errors:    st.Errors,
				Streaming: st.Streaming,
				FPS:       st.FPS,
				Timestamp: now,
			})
		}
		slices.SortFunc(resp.Body.Devices, func(a, b events.CaptureStatsEvent) int {
			return strings.Compare(a.Device, b.Device)
		})
		return resp, nil
	})

	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics Server-Sent Events Stream",
		Description: "Capture counters and measured frame rate, once per second per device",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"capture-stats": events.CaptureStatsEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh, stop := s.eventBus.Tap(10, events.TypeCaptureStats)
		defer stop()

		forward(ctx, eventCh, send, nil)
	})
}
