package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/webcam/internal/api/models"
	"github.com/smazurov/webcam/internal/capture"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List V4L2 capture nodes present on the host",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(_ context.Context, _ *struct{}) (*models.DeviceListResponse, error) {
		if s.options.Devices == nil {
			return nil, huma.Error503ServiceUnavailable("Device discovery is not available")
		}
		found, err := s.options.Devices.FindDevices()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list devices", err)
		}
		resp := &models.DeviceListResponse{}
		resp.Body.Devices = found
		resp.Body.Count = len(found)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-device",
		Method:      http.MethodGet,
		Path:        "/api/device",
		Summary:     "Capture Device",
		Description: "Identity, negotiated format and session state of the capture device",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, _ *struct{}) (*models.DeviceResponse, error) {
		if s.options.Capture == nil {
			return nil, huma.Error503ServiceUnavailable("Capture is not running")
		}
		return &models.DeviceResponse{Body: s.options.Capture.Info()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-device-controls",
		Method:      http.MethodGet,
		Path:        "/api/device/controls",
		Summary:     "Device Controls",
		Description: "Enabled user controls of the capture device, read when the format was negotiated",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, _ *struct{}) (*models.ControlsResponse, error) {
		if s.options.Capture == nil {
			return nil, huma.Error503ServiceUnavailable("Capture is not running")
		}
		controls, err := s.options.Capture.Controls()
		if errors.Is(err, capture.ErrNoDevice) {
			return nil, huma.Error503ServiceUnavailable("Device is not open", err)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to read controls", err)
		}
		resp := &models.ControlsResponse{}
		resp.Body.Device = s.options.Capture.Info().Path
		resp.Body.Controls = controls
		return resp, nil
	})
}
