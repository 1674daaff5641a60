// Package models holds the request and response shapes of the HTTP API.
package models

import (
	"github.com/smazurov/webcam/internal/capture"
	"github.com/smazurov/webcam/internal/devices"
	"github.com/smazurov/webcam/internal/events"
	"github.com/smazurov/webcam/internal/logging"
	"github.com/smazurov/webcam/pkg/webcam"
)

// Health check models
type HealthData struct {
	Status    string `json:"status" example:"ok" doc:"Service status"`
	Message   string `json:"message" example:"API is healthy" doc:"Status message"`
	Streaming bool   `json:"streaming" doc:"Whether the capture session is streaming"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build or commit timestamp"`
	Modified  bool   `json:"modified" doc:"Built from a dirty working tree"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Device models
type DeviceResponse struct {
	Body capture.DeviceInfo
}

type ControlsData struct {
	Device   string               `json:"device" example:"/dev/video0" doc:"Video device path"`
	Controls []webcam.ControlInfo `json:"controls" doc:"Enabled user controls with their current values"`
}

type ControlsResponse struct {
	Body ControlsData
}

type DeviceListData struct {
	Devices []devices.Node `json:"devices" doc:"Capture nodes present on the host"`
	Count   int            `json:"count" example:"1" doc:"Number of devices"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

// Snapshot models
type SnapshotRequest struct {
	Wait int `query:"wait" minimum:"0" maximum:"10000" default:"0" doc:"Milliseconds to wait for a first frame"`
}

type SnapshotResponse struct {
	ContentType string `header:"Content-Type"`
	Sequence    uint32 `header:"X-Frame-Sequence"`
	Captured    string `header:"X-Frame-Captured"`
	Body        []byte
}

// Log models
type LogsRequest struct {
	Limit int `query:"limit" minimum:"0" maximum:"10000" default:"100" doc:"Most recent entries to return, 0 for all"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int                `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

type LogLevelRequest struct {
	Body struct {
		Module string `json:"module" example:"capture" doc:"Logger module"`
		Level  string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}

// Stats models
type StatsData struct {
	Devices []events.CaptureStatsEvent `json:"devices" doc:"Capture counters per device"`
}

type StatsResponse struct {
	Body StatsData
}
