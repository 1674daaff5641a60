package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/webcam/internal/events"
	"github.com/smazurov/webcam/internal/metrics"
)

// EventPublisher is the part of the bus the exporter needs.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter publishes a CaptureStatsEvent per device on a fixed interval.
type SSEExporter struct {
	bus      EventPublisher
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	prev   map[string]uint64
}

// NewSSEExporter publishes to bus once per second.
func NewSSEExporter(bus EventPublisher) *SSEExporter {
	return &SSEExporter{bus: bus, interval: time.Second, prev: make(map[string]uint64)}
}

// Start runs the export loop until ctx is done or Stop is called.
func (s *SSEExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop ends the loop and waits for it.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.publish(now)
		}
	}
}

// publish emits one event per device. FPS is measured from the frame count
// delta since the previous tick.
func (s *SSEExporter) publish(now time.Time) {
	for device, st := range metrics.AllStats() {
		rate := float64(st.Frames-min(s.prev[device], st.Frames)) / s.interval.Seconds()
		s.prev[device] = st.Frames
		s.bus.Publish(events.CaptureStatsEvent{
			Device:    device,
			Frames:    st.Frames,
			Bytes:     st.Bytes,
			Timeouts:  st.Timeouts,
			Errors:    st.Errors,
			Streaming: st.Streaming,
			FPS:       rate,
			Timestamp: now.UTC().Format(time.RFC3339),
		})
	}
}
