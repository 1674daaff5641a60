package events

import "github.com/kelindar/event"

// Tap buffers events of the given types for select-based consumers such
// as SSE handlers. Events are dropped while the buffer is full, so a slow
// reader never stalls a publisher. Call the returned func to unsubscribe.
func (b *Bus) Tap(size int, types ...uint32) (<-chan Event, func()) {
	ch := make(chan Event, size)
	offer := func(e Event) {
		select {
		case ch <- e:
		default:
		}
	}

	unsubs := make([]func(), 0, len(types))
	for _, t := range types {
		if unsub := tap(b.dispatcher, t, offer); unsub != nil {
			unsubs = append(unsubs, unsub)
		}
	}
	return ch, func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func tap(d *event.Dispatcher, t uint32, offer func(Event)) func() {
	switch t {
	case TypeSessionState:
		return event.Subscribe(d, func(e SessionStateEvent) { offer(e) })
	case TypeFrameCaptured:
		return event.Subscribe(d, func(e FrameCapturedEvent) { offer(e) })
	case TypeCaptureError:
		return event.Subscribe(d, func(e CaptureErrorEvent) { offer(e) })
	case TypeFormatNegotiated:
		return event.Subscribe(d, func(e FormatNegotiatedEvent) { offer(e) })
	case TypeDeviceHotplug:
		return event.Subscribe(d, func(e DeviceHotplugEvent) { offer(e) })
	case TypeLogEntry:
		return event.Subscribe(d, func(e LogEntryEvent) { offer(e) })
	case TypeCaptureStats:
		return event.Subscribe(d, func(e CaptureStatsEvent) { offer(e) })
	}
	return nil
}
