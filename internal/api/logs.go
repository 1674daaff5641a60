package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/webcam/internal/api/models"
	"github.com/smazurov/webcam/internal/events"
)

// registerLogRoutes registers log history, level changes and the log stream.
func (s *Server) registerLogRoutes() {
	if s.options.Logs == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Most recent buffered log entries",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		entries := s.options.Logs.Buffer().Tail(input.Limit)
		resp := &models.LogsResponse{}
		resp.Body.Entries = entries
		resp.Body.Count = len(entries)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "set-log-level",
		Method:        http.MethodPut,
		Path:          "/api/logs/level",
		Summary:       "Set Log Level",
		Description:   "Change the level of one logger module until the next restart or config reload",
		Tags:          []string{"logs"},
		Security:      withAuth(),
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{400, 401},
	}, func(_ context.Context, input *models.LogLevelRequest) (*struct{}, error) {
		if !s.options.Logs.SetLevel(input.Body.Module, input.Body.Level) {
			return nil, huma.Error400BadRequest("Unknown log level " + input.Body.Level)
		}
		s.logger.Info("Log level changed", "target", input.Body.Module, "level", input.Body.Level)
		return nil, nil
	})

	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends buffered logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// subscribe before replaying so nothing falls between the two
		eventCh, stop := s.eventBus.Tap(100, events.TypeLogEntry)
		defer stop()

		var last uint64
		for _, entry := range s.options.Logs.Buffer().ReadAll() {
			event := events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			}
			if err := send.Data(event); err != nil {
				return
			}
			last = entry.Seq
		}

		// entries logged during the replay arrive on eventCh too
		forward(ctx, eventCh, send, func(ev events.Event) bool {
			e, ok := ev.(events.LogEntryEvent)
			return !ok || e.Seq > last
		})
	})
}
