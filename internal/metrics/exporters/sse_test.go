package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/webcam/internal/events"
	"github.com/smazurov/webcam/internal/metrics"
)

type recordingBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newRecordingBus() *recordingBus {
	return &recordingBus{published: make(chan struct{}, 100)}
}

func (b *recordingBus) Publish(ev events.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	select {
	case b.published <- struct{}{}:
	default:
	}
}

func (b *recordingBus) stats(device string) []events.CaptureStatsEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.CaptureStatsEvent
	for _, ev := range b.events {
		if s, ok := ev.(events.CaptureStatsEvent); ok && s.Device == device {
			out = append(out, s)
		}
	}
	return out
}

func TestSSEExporterPublishesStats(t *testing.T) {
	const dev = "/dev/sse-test"
	metrics.Delete(dev)
	t.Cleanup(func() { metrics.Delete(dev) })

	metrics.SetStreaming(dev, true)
	now := time.Now()
	for i := range 5 {
		metrics.ObserveFrame(dev, 100, now.Add(time.Duration(i)*time.Millisecond))
	}
	metrics.ObserveTimeouts(dev, 1)

	bus := newRecordingBus()
	exp := NewSSEExporter(bus)
	exp.interval = 20 * time.Millisecond
	exp.Start(context.Background())

	select {
	case <-bus.published:
	case <-time.After(time.Second):
		t.Fatal("nothing published")
	}
	exp.Stop()

	got := bus.stats(dev)
	require.NotEmpty(t, got)
	first := got[0]
	assert.EqualValues(t, 5, first.Frames)
	assert.EqualValues(t, 500, first.Bytes)
	assert.EqualValues(t, 1, first.Timeouts)
	assert.True(t, first.Streaming)
	assert.InDelta(t, 5/exp.interval.Seconds(), first.FPS, 0.001)
}

func TestSSEExporterRateUsesDelta(t *testing.T) {
	const dev = "/dev/sse-delta"
	metrics.Delete(dev)
	t.Cleanup(func() { metrics.Delete(dev) })

	bus := newRecordingBus()
	exp := NewSSEExporter(bus)

	metrics.ObserveFrame(dev, 1, time.Now())
	exp.publish(time.Now())
	metrics.ObserveFrame(dev, 1, time.Now())
	metrics.ObserveFrame(dev, 1, time.Now())
	exp.publish(time.Now())

	got := bus.stats(dev)
	require.Len(t, got, 2)
	assert.InDelta(t, 1, got[0].FPS, 0.001)
	assert.InDelta(t, 2, got[1].FPS, 0.001)
}

func TestSSEExporterStopWithoutStart(t *testing.T) {
	NewSSEExporter(newRecordingBus()).Stop()
}
