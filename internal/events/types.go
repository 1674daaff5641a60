package events

// Event type identifiers for kelindar/event.
const (
	TypeSessionState uint32 = iota + 1
	TypeFrameCaptured
	TypeCaptureError
	TypeFormatNegotiated
	TypeDeviceHotplug
	TypeLogEntry
	TypeCaptureStats
)

// Event is the constraint kelindar/event places on published values.
type Event interface {
	Type() uint32
}

// SessionStateEvent is published when the capture session starts or stops.
type SessionStateEvent struct {
	Device    string `json:"device" example:"/dev/video0" doc:"Video device path"`
	State     string `json:"state" example:"streaming" enum:"idle,streaming" doc:"Session state"`
	Reason    string `json:"reason,omitempty" example:"config reload" doc:"Why the state changed"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns TypeSessionState.
func (e SessionStateEvent) Type() uint32 { return TypeSessionState }

// FrameCapturedEvent is published for every frame the service keeps.
type FrameCapturedEvent struct {
	Device    string `json:"device" example:"/dev/video0" doc:"Video device path"`
	Sequence  uint32 `json:"sequence" example:"1042" doc:"Driver frame sequence number"`
	Bytes     int    `json:"bytes" example:"48213" doc:"Frame size after transforms"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00.033Z" doc:"Capture time"`
}

// Type returns TypeFrameCaptured.
func (e FrameCapturedEvent) Type() uint32 { return TypeFrameCaptured }

// CaptureErrorEvent is published when a grab or reconnect fails.
type CaptureErrorEvent struct {
	Device    string `json:"device" example:"/dev/video0" doc:"Video device path"`
	Kind      string `json:"kind" example:"device" doc:"Error classification"`
	Error     string `json:"error" example:"webcam: grab /dev/video0: dequeue buffer: no such device (errno 19)" doc:"Error text"`
	Fatal     bool   `json:"fatal" doc:"Whether the session was torn down"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns TypeCaptureError.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// FormatNegotiatedEvent reports the format the driver settled on.
type FormatNegotiatedEvent struct {
	Device    string  `json:"device" example:"/dev/video0" doc:"Video device path"`
	Format    string  `json:"format" example:"MJPEG" doc:"Pixel format"`
	Width     uint32  `json:"width" example:"1280" doc:"Negotiated width"`
	Height    uint32  `json:"height" example:"720" doc:"Negotiated height"`
	FPS       float64 `json:"fps" example:"30" doc:"Negotiated frame rate"`
	Adjusted  bool    `json:"adjusted" doc:"Whether the driver changed the requested resolution"`
	Timestamp string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns TypeFormatNegotiated.
func (e FormatNegotiatedEvent) Type() uint32 { return TypeFormatNegotiated }

// DeviceHotplugEvent reports a video node appearing or disappearing.
type DeviceHotplugEvent struct {
	Device    string `json:"device" example:"/dev/video0" doc:"Video device path"`
	Action    string `json:"action" example:"remove" enum:"add,remove" doc:"Kernel action"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns TypeDeviceHotplug.
func (e DeviceHotplugEvent) Type() uint32 { return TypeDeviceHotplug }

// LogEntryEvent carries one log record to streaming clients.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"capture" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns TypeLogEntry.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// CaptureStatsEvent is a periodic summary of one device's counters.
type CaptureStatsEvent struct {
	Device    string  `json:"device" example:"/dev/video0" doc:"Video device path"`
	Frames    uint64  `json:"frames" example:"9000" doc:"Frames delivered"`
	Bytes     uint64  `json:"bytes" example:"412000000" doc:"Bytes delivered"`
	Timeouts  uint64  `json:"timeouts" example:"3" doc:"Grabs that timed out"`
	Errors    uint64  `json:"errors" example:"0" doc:"Capture errors"`
	Streaming bool    `json:"streaming" doc:"Whether the session is streaming"`
	FPS       float64 `json:"fps" example:"29.97" doc:"Measured frame rate over the last interval"`
	Timestamp string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns TypeCaptureStats.
func (e CaptureStatsEvent) Type() uint32 { return TypeCaptureStats }
