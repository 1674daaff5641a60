// Package metrics holds the Prometheus collectors for the capture loop and
// a snapshot cache the SSE exporter reads from.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "webcam"

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frames_total",
		Help:      "Frames grabbed from the device",
	}, []string{"device"})

	bytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "bytes_total",
		Help:      "Frame bytes delivered after transforms",
	}, []string{"device"})

	grabSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frame_interval_seconds",
		Help:      "Time between consecutive delivered frames",
		Buckets:   []float64{.005, .01, .02, .033, .05, .067, .1, .2, .5, 1},
	}, []string{"device"})

	timeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "timeouts_total",
		Help:      "Grabs that found no frame within the wait bound",
	}, []string{"device"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "errors_total",
		Help:      "Capture errors by kind",
	}, []string{"device", "kind"})

	reconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "reconnects_total",
		Help:      "Times the session was reopened after a fatal error",
	}, []string{"device"})

	streaming = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "streaming",
		Help:      "1 while the capture session is streaming",
	}, []string{"device"})

	resolution = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "resolution_pixels",
		Help:      "Negotiated frame dimension",
	}, []string{"device", "axis"})

	fps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "fps",
		Help:      "Negotiated frame rate",
	}, []string{"device"})

	cache   = make(map[string]*CaptureStats)
	cacheMu sync.RWMutex
)

// CaptureStats is the cached view of one device's counters.
type CaptureStats struct {
	Frames    uint64
	Bytes     uint64
	Timeouts  uint64
	Errors    uint64
	Streaming bool
	Width     uint32
	Height    uint32
	FPS       float64
	LastFrame time.Time
}

// ObserveFrame records a delivered frame of n bytes.
func ObserveFrame(device string, n int, at time.Time) {
	framesTotal.WithLabelValues(device).Inc()
	bytesTotal.WithLabelValues(device).Add(float64(n))
	update(device, func(s *CaptureStats) {
		if !s.LastFrame.IsZero() {
			grabSeconds.WithLabelValues(device).Observe(at.Sub(s.LastFrame).Seconds())
		}
		s.Frames++
		s.Bytes += uint64(n)
		s.LastFrame = at
	})
}

// ObserveTimeouts records n grabs that timed out.
func ObserveTimeouts(device string, n uint64) {
	if n == 0 {
		return
	}
	timeoutsTotal.WithLabelValues(device).Add(float64(n))
	update(device, func(s *CaptureStats) { s.Timeouts += n })
}

// ObserveError records a failed grab or reconnect of the given kind.
func ObserveError(device, kind string) {
	errorsTotal.WithLabelValues(device, kind).Inc()
	update(device, func(s *CaptureStats) { s.Errors++ })
}

// ObserveReconnect records a reopen after a fatal error.
func ObserveReconnect(device string) {
	reconnectsTotal.WithLabelValues(device).Inc()
}

// SetStreaming sets the session gauge.
func SetStreaming(device string, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	streaming.WithLabelValues(device).Set(v)
	update(device, func(s *CaptureStats) {
		s.Streaming = on
		if !on {
			s.LastFrame = time.Time{}
		}
	})
}

// SetFormat records the negotiated resolution and frame rate.
func SetFormat(device string, width, height uint32, rate float64) {
	resolution.WithLabelValues(device, "width").Set(float64(width))
	resolution.WithLabelValues(device, "height").Set(float64(height))
	fps.WithLabelValues(device).Set(rate)
	update(device, func(s *CaptureStats) {
		s.Width, s.Height, s.FPS = width, height, rate
	})
}

// Delete drops every series and the cache entry for device.
func Delete(device string) {
	framesTotal.DeleteLabelValues(device)
	bytesTotal.DeleteLabelValues(device)
	grabSeconds.DeleteLabelValues(device)
	timeoutsTotal.DeleteLabelValues(device)
	errorsTotal.DeletePartialMatch(prometheus.Labels{"device": device})
	reconnectsTotal.DeleteLabelValues(device)
	streaming.DeleteLabelValues(device)
	resolution.DeletePartialMatch(prometheus.Labels{"device": device})
	fps.DeleteLabelValues(device)

	cacheMu.Lock()
	delete(cache, device)
	cacheMu.Unlock()
}

// Stats returns a copy of the cached stats for device.
func Stats(device string) (CaptureStats, bool) {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	s, ok := cache[device]
	if !ok {
		return CaptureStats{}, false
	}
	return *s, true
}

// AllStats returns a copy of every device's stats.
func AllStats() map[string]CaptureStats {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	out := make(map[string]CaptureStats, len(cache))
	for device, s := range cache {
		out[device] = *s
	}
	return out
}

func update(device string, fn func(*CaptureStats)) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	s, ok := cache[device]
	if !ok {
		s = &CaptureStats{}
		cache[device] = s
	}
	fn(s)
}
