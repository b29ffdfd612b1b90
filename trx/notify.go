package trx

import "sync"

// FrequencyListener is notified when the confirmed VFO frequency changes.
type FrequencyListener interface {
	SetFrequency(frequency uint64)
}

// ModeListener is notified when the confirmed operating mode changes.
type ModeListener interface {
	SetMode(mode Mode)
}

// DirectionListener is notified when the half-duplex direction changes.
type DirectionListener interface {
	SetDirection(direction Direction)
}

// StreamingListener is notified when audio streaming is switched on or off.
type StreamingListener interface {
	SetStreaming(enabled bool)
}

// FrameListener is notified about every CAT frame coming in from the
// transceiver.
type FrameListener interface {
	Frame(cmd Command)
}

// RXAudioListener consumes received audio at the internal rate. The modem
// registers itself as a RXAudioListener on the engine.
type RXAudioListener interface {
	RXAudio(samples []float32)
}

func newNotifier() *notifier {
	return &notifier{}
}

// notifier fans state changes out to the registered listeners. Listeners are
// called on the engine's poll goroutine and must not block.
type notifier struct {
	mutex     sync.RWMutex
	listeners []interface{}
}

func (n *notifier) Notify(listener interface{}) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.listeners = append(n.listeners, listener)
}

func (n *notifier) all() []interface{} {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return n.listeners
}

func (n *notifier) frequencyChanged(frequency uint64) {
	for _, l := range n.all() {
		if listener, ok := l.(FrequencyListener); ok {
			listener.SetFrequency(frequency)
		}
	}
}

func (n *notifier) modeChanged(mode Mode) {
	for _, l := range n.all() {
		if listener, ok := l.(ModeListener); ok {
			listener.SetMode(mode)
		}
	}
}

func (n *notifier) directionChanged(direction Direction) {
	for _, l := range n.all() {
		if listener, ok := l.(DirectionListener); ok {
			listener.SetDirection(direction)
		}
	}
}

func (n *notifier) streamingChanged(enabled bool) {
	for _, l := range n.all() {
		if listener, ok := l.(StreamingListener); ok {
			listener.SetStreaming(enabled)
		}
	}
}

func (n *notifier) frame(cmd Command) {
	for _, l := range n.all() {
		if listener, ok := l.(FrameListener); ok {
			listener.Frame(cmd)
		}
	}
}

func (n *notifier) rxAudio(samples []float32) {
	for _, l := range n.all() {
		if listener, ok := l.(RXAudioListener); ok {
			listener.RXAudio(samples)
		}
	}
}
