package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/webcam/internal/api/models"
	"github.com/smazurov/webcam/pkg/webcam"
)

func (s *Server) registerSnapshotRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/snapshot",
		Summary:     "Snapshot",
		Description: "Latest captured frame. MJPEG sessions return image/jpeg, raw formats application/octet-stream.",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, input *models.SnapshotRequest) (*models.SnapshotResponse, error) {
		if s.options.Capture == nil {
			return nil, huma.Error503ServiceUnavailable("Capture is not running")
		}

		frame, ok := s.waitFrame(ctx, time.Duration(input.Wait)*time.Millisecond)
		if !ok {
			return nil, huma.Error503ServiceUnavailable("No frame captured yet")
		}

		contentType := "application/octet-stream"
		if s.options.Capture.Settings().Format == webcam.FormatMJPEG {
			contentType = "image/jpeg"
		}
		return &models.SnapshotResponse{
			ContentType: contentType,
			Sequence:    frame.Sequence,
			Captured:    frame.Captured.UTC().Format(time.RFC3339Nano),
			Body:        frame.Data,
		}, nil
	})
}

// waitFrame polls for a frame for up to wait.
func (s *Server) waitFrame(ctx context.Context, wait time.Duration) (webcam.Frame, bool) {
	frame, ok := s.options.Capture.Latest()
	if ok || wait <= 0 {
		return frame, ok
	}

	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return webcam.Frame{}, false
		case <-deadline.C:
			return webcam.Frame{}, false
		case <-ticker.C:
			if frame, ok := s.options.Capture.Latest(); ok {
				return frame, true
			}
		}
	}
}
