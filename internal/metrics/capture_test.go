package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFrame(t *testing.T) {
	const dev = "/dev/test-frames"
	Delete(dev)
	t.Cleanup(func() { Delete(dev) })

	start := time.Unix(1000, 0)
	ObserveFrame(dev, 100, start)
	ObserveFrame(dev, 50, start.Add(33*time.Millisecond))

	assert.InDelta(t, 2, testutil.ToFloat64(framesTotal.WithLabelValues(dev)), 0)
	assert.InDelta(t, 150, testutil.ToFloat64(bytesTotal.WithLabelValues(dev)), 0)

	s, ok := Stats(dev)
	require.True(t, ok)
	assert.EqualValues(t, 2, s.Frames)
	assert.EqualValues(t, 150, s.Bytes)
	assert.Equal(t, start.Add(33*time.Millisecond), s.LastFrame)
}

func TestFrameIntervalHistogram(t *testing.T) {
	const dev = "/dev/test-interval"
	Delete(dev)
	t.Cleanup(func() { Delete(dev) })

	start := time.Unix(2000, 0)
	ObserveFrame(dev, 1, start)
	ObserveFrame(dev, 1, start.Add(40*time.Millisecond))
	ObserveFrame(dev, 1, start.Add(80*time.Millisecond))

	expected := `
# HELP webcam_capture_frame_interval_seconds Time between consecutive delivered frames
# TYPE webcam_capture_frame_interval_seconds histogram
webcam_capture_frame_interval_seconds_bucket{device="/dev/test-interval",le="0.005"} 0
webcam_capture_frame_interval_seconds_bucket{device="/dev/test-interval",le="0.01"} 0
webcam_capture_frame_interval_seconds_bucket{device="/dev/test-interval",le="0.02"} 0
webcam_capture_frame_interval_seconds_bucket{device="/dev/test-interval",le="0.033"} 0
webcam_capture_frame_interval_seconds_bucket{device="/dev/test-interval",le="0.05"} 2
webcam_capture_frame_interval_seconds_bucket{device="/dev/test-interval",le="0.067"} 2
webcam_capture_frame_interval_seconds_bucket{device="/dev/test-interval",le="0.1"} 2
webcam_capture_frame_interval_seconds_bucket{device="/dev/test-interval",le="0.2"} 2
webcam_capture_frame_interval_seconds_bucket{device="/dev/test-interval",le="0.5"} 2
webcam_capture_frame_interval_seconds_bucket{device="/dev/test-interval",le="1"} 2
webcam_capture_frame_interval_seconds_bucket{device="/dev/test-interval",le="+Inf"} 2
webcam_capture_frame_interval_seconds_sum{device="/dev/test-interval"} 0.08
webcam_capture_frame_interval_seconds_count{device="/dev/test-interval"} 2
`
	require.NoError(t, testutil.CollectAndCompare(grabSeconds, strings.NewReader(expected)))
}

func histogramCount(t *testing.T, device string) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, grabSeconds.WithLabelValues(device).(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestStreamingResetsInterval(t *testing.T) {
	const dev = "/dev/test-restart"
	Delete(dev)
	t.Cleanup(func() { Delete(dev) })

	ObserveFrame(dev, 1, time.Unix(0, 0))
	SetStreaming(dev, false)
	SetStreaming(dev, true)
	ObserveFrame(dev, 1, time.Unix(60, 0))

	assert.Zero(t, histogramCount(t, dev), "no interval spans a restart")
	assert.InDelta(t, 1, testutil.ToFloat64(streaming.WithLabelValues(dev)), 0)
}

func TestErrorsAndTimeouts(t *testing.T) {
	const dev = "/dev/test-errors"
	Delete(dev)
	t.Cleanup(func() { Delete(dev) })

	ObserveTimeouts(dev, 2)
	ObserveTimeouts(dev, 0)
	ObserveError(dev, "device")
	ObserveError(dev, "io")
	ObserveError(dev, "io")
	ObserveReconnect(dev)

	assert.InDelta(t, 2, testutil.ToFloat64(timeoutsTotal.WithLabelValues(dev)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(errorsTotal.WithLabelValues(dev, "io")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(errorsTotal.WithLabelValues(dev, "device")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(reconnectsTotal.WithLabelValues(dev)), 0)

	s, _ := Stats(dev)
	assert.EqualValues(t, 2, s.Timeouts)
	assert.EqualValues(t, 3, s.Errors)
}

func TestSetFormat(t *testing.T) {
	const dev = "/dev/test-format"
	Delete(dev)
	t.Cleanup(func() { Delete(dev) })

	SetFormat(dev, 1280, 720, 30)
	assert.InDelta(t, 1280, testutil.ToFloat64(resolution.WithLabelValues(dev, "width")), 0)
	assert.InDelta(t, 720, testutil.ToFloat64(resolution.WithLabelValues(dev, "height")), 0)
	assert.InDelta(t, 30, testutil.ToFloat64(fps.WithLabelValues(dev)), 0)

	all := AllStats()
	require.Contains(t, all, dev)
	assert.EqualValues(t, 1280, all[dev].Width)
}

func TestDelete(t *testing.T) {
	const dev = "/dev/test-delete"
	ObserveError(dev, "io")
	SetFormat(dev, 640, 480, 15)
	Delete(dev)

	_, ok := Stats(dev)
	assert.False(t, ok)
	assert.Zero(t, testutil.CollectAndCount(errorsTotal))
	assert.Zero(t, testutil.CollectAndCount(resolution))
}
