package trx

import (
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// txChunkLength is the number of device samples per outbound audio write.
	txChunkLength = 48
	// txChunkPeriod is the playout time of one outbound audio chunk.
	txChunkPeriod = txChunkLength * time.Second / DeviceTXRate
	// txSettleDelay is the time the transceiver needs after a direction flip
	// to TX before audio may flow.
	txSettleDelay = 10 * time.Millisecond

	commandQueueSize = 32
	txAudioQueueSize = 128
)

// Open starts an engine that drives the transceiver over the given link. The
// engine owns the link exclusively until it is closed.
func Open(link Link) *Engine {
	engine := newEngine(link)
	go engine.pollLoop()
	return engine
}

func newEngine(link Link) *Engine {
	engine := &Engine{
		link:         link,
		bridge:       NewBridge(),
		keyer:        NewKeyer(),
		notifier:     newNotifier(),
		state:        NewStateCell(RadioState{Mode: ModeUSB, Speaker: true}),
		commands:     make(chan Command, commandQueueSize),
		txAudio:      make(chan []byte, txAudioQueueSize),
		keyRequests:  make(chan keyRequest),
		closed:       make(chan struct{}),
		disconnected: make(chan struct{}),
	}
	engine.codec = NewCodec(engine.state, engine.notifier)
	engine.demux = NewDemux(&engineSink{engine})
	return engine
}

// Engine is the scheduler of the single-cable transport. It owns the only
// read/write access to the link, separates the incoming byte stream into CAT
// frames and receive audio, and arbitrates outbound CAT commands, transmit
// audio, and the half-duplex direction. CAT commands always go out ahead of
// queued audio, so a direction flip is never delayed behind an audio buffer.
type Engine struct {
	link     Link
	demux    *Demux
	bridge   *Bridge
	codec    *Codec
	keyer    *Keyer
	notifier *notifier
	state    *StateCell

	commands    chan Command
	txAudio     chan []byte
	keyRequests chan keyRequest

	closed       chan struct{}
	disconnected chan struct{}
	keying       atomic.Bool
	linkFailed   atomic.Bool

	// poll goroutine only
	rxSamples []byte
	lastTX    time.Time
	lastTick  time.Time
}

type keyRequest struct {
	text   string
	wpm    int
	cancel bool
	result chan error
}

// engineSink routes the demultiplexer's output into the engine.
type engineSink struct {
	engine *Engine
}

func (s *engineSink) CatFrame(frame []byte) {
	s.engine.handleFrame(frame)
}

func (s *engineSink) AudioSample(sample byte) {
	s.engine.rxSamples = append(s.engine.rxSamples, sample)
}

func (s *engineSink) AudioRunEnd() {}

// Notify registers the given listener. Depending on the interfaces it
// implements, it is notified about state changes, incoming CAT frames, and
// receive audio. Listeners must be registered before any traffic flows.
func (e *Engine) Notify(listener interface{}) {
	e.notifier.Notify(listener)
}

// State returns a snapshot of the last confirmed radio state.
func (e *Engine) State() RadioState {
	return e.state.Get()
}

// Connected indicates if the link to the transceiver is still usable.
func (e *Engine) Connected() bool {
	select {
	case <-e.disconnected:
		return false
	default:
		return true
	}
}

// WhenDisconnected calls f as soon as the link is gone, whether through Close
// or through a transport failure.
func (e *Engine) WhenDisconnected(f func()) {
	go func() {
		<-e.disconnected
		f()
	}()
}

// Close shuts the engine down, switches the device's audio streaming off, and
// closes the link.
func (e *Engine) Close() {
	select {
	case <-e.closed:
		return
	default:
		close(e.closed)
	}
	<-e.disconnected
	if !e.linkFailed.Load() {
		farewell, _ := NewSetStreaming(StreamingOff)
		if err := e.link.Write(farewell.Bytes()); err != nil {
			log.Warnf("cannot switch off streaming: %v", err)
		}
	}
	e.link.Close()
}

// Send queues the given command for transmission. Commands are sent in order
// and ahead of any queued audio.
func (e *Engine) Send(cmd Command) error {
	select {
	case e.commands <- cmd:
		return nil
	case <-e.disconnected:
		return ErrLinkClosed
	}
}

// SetFrequency tunes the transceiver to the given frequency in Hz.
func (e *Engine) SetFrequency(frequency uint64) error {
	cmd, err := NewSetFrequency(frequency)
	if err != nil {
		return err
	}
	return e.Send(cmd)
}

// SetMode sets the operating mode of the transceiver.
func (e *Engine) SetMode(mode Mode) error {
	cmd, err := NewSetMode(mode)
	if err != nil {
		return err
	}
	return e.Send(cmd)
}

// SetDirection switches the half-duplex direction. Switching to TX or TUNE
// redirects the audio path from receive to transmit, switching to RX reverses
// it.
func (e *Engine) SetDirection(direction Direction) error {
	return e.Send(NewSetDirection(direction))
}

// SetStreaming switches the audio streaming of the single-cable transport.
// StreamingMuted additionally silences the device's local speaker.
func (e *Engine) SetStreaming(mode StreamingMode) error {
	cmd, err := NewSetStreaming(mode)
	if err != nil {
		return err
	}
	return e.Send(cmd)
}

// TransmitAudio converts the given modem audio at InternalRate to the
// device's transmit format and queues it. The audio goes out as soon as the
// direction is TX; submitting audio while the direction contradicts it is
// reported but the audio stays queued. TransmitAudio must only be called from
// a single goroutine, it drives the encode side of the sample rate bridge.
func (e *Engine) TransmitAudio(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	if state := e.state.Get(); state.Direction == DirectionRX {
		log.Warnf("transmit audio submitted while direction is %s", state.Direction)
	}

	chunk := e.bridge.EncodePush(samples)
	for len(chunk) > 0 {
		n := len(chunk)
		if n > txChunkLength {
			n = txChunkLength
		}
		select {
		case e.txAudio <- chunk[:n]:
			chunk = chunk[n:]
		case <-e.disconnected:
			return ErrLinkClosed
		}
	}
	return nil
}

// KeyText transmits the given text as CW at the given speed in words per
// minute. It fails with ErrAlreadyKeying while a previous keying session is
// still active.
func (e *Engine) KeyText(text string, wpm int) error {
	return e.requestKeyer(keyRequest{text: text, wpm: wpm, result: make(chan error, 1)})
}

// CancelKeying aborts the active keying session immediately and returns the
// link to RX.
func (e *Engine) CancelKeying() error {
	return e.requestKeyer(keyRequest{cancel: true, result: make(chan error, 1)})
}

func (e *Engine) requestKeyer(request keyRequest) error {
	select {
	case e.keyRequests <- request:
	case <-e.disconnected:
		return ErrLinkClosed
	}
	select {
	case err := <-request.result:
		return err
	case <-e.disconnected:
		return ErrLinkClosed
	}
}

func (e *Engine) pollLoop() {
	defer close(e.disconnected)
	defer e.reset()

	// terminate whatever frame the device may still be collecting
	if err := e.link.Write([]byte{Delimiter}); err != nil {
		log.Errorf("cannot reach the transceiver: %v", err)
		e.linkFailed.Store(true)
		return
	}

	buf := make([]byte, 256)
	e.lastTick = time.Now()
	for {
		select {
		case <-e.closed:
			return
		default:
		}
		if err := e.poll(buf); err != nil {
			log.Errorf("connection lost: %v", err)
			e.linkFailed.Store(true)
			return
		}
	}
}

// poll drives one iteration: read incoming bytes, service the keyer clock,
// send pending outbound work. A read timeout without data is not an error, it
// paces the keyer and the silence fill.
func (e *Engine) poll(buf []byte) error {
	n, err := e.link.Read(buf)
	if err != nil {
		return err
	}
	if n > 0 {
		e.rxSamples = e.rxSamples[:0]
		e.demux.FeedAll(buf[:n])
		if len(e.rxSamples) > 0 {
			e.notifier.rxAudio(e.bridge.DecodePush(e.rxSamples))
		}
	}

	e.serviceKeyer()
	return e.writePending()
}

func (e *Engine) serviceKeyer() {
	select {
	case request := <-e.keyRequests:
		if request.cancel {
			if cmd, ok := e.keyer.Cancel(); ok {
				e.sendCommand(cmd)
			}
			request.result <- nil
		} else {
			request.result <- e.keyer.Begin(request.text, request.wpm)
		}
	default:
	}

	now := time.Now()
	elapsed := now.Sub(e.lastTick)
	e.lastTick = now
	if cmd, ok := e.keyer.Tick(elapsed); ok {
		if err := e.sendCommand(cmd); err != nil {
			log.Errorf("cannot send keyer transition: %v", err)
		}
	}
	e.keying.Store(e.keyer.Active())
}

// Keying indicates if a CW keying session is in progress.
func (e *Engine) Keying() bool {
	return e.keying.Load()
}

func (e *Engine) writePending() error {
	for {
		select {
		case cmd := <-e.commands:
			if err := e.sendCommand(cmd); err != nil {
				return err
			}
			continue
		default:
		}
		break
	}

	state := e.state.Get()
	if state.Direction == DirectionRX || !state.Streaming {
		// queued audio stays queued until the direction allows it
		return nil
	}

	select {
	case chunk := <-e.txAudio:
		e.lastTX = time.Now()
		return e.writeAudio(chunk)
	default:
		if time.Since(e.lastTX) > txChunkPeriod {
			e.lastTX = time.Now()
			return e.writeAudio(Silence(txChunkLength))
		}
	}
	return nil
}

// sendCommand writes a CAT command to the wire, ahead of any audio. While
// transmitting, a lone delimiter goes out first so the command is never glued
// to the tail of an audio run.
func (e *Engine) sendCommand(cmd Command) error {
	if e.state.Get().Direction != DirectionRX {
		if err := e.link.Write([]byte{Delimiter}); err != nil {
			return err
		}
	}
	log.Debugf("CAT > %s", cmd)
	if err := e.link.Write(cmd.Bytes()); err != nil {
		return err
	}
	e.codec.Sent(cmd)

	if direction, err := cmd.Direction(); err == nil && direction != DirectionRX {
		time.Sleep(txSettleDelay)
		e.lastTX = time.Now()
	}
	return nil
}

// writeAudio sends transmit samples, substituting the delimiter byte. The
// substitution loses one sample value, that is a documented limitation of the
// transport, not recoverable.
func (e *Engine) writeAudio(chunk []byte) error {
	for i, sample := range chunk {
		if sample == Delimiter {
			chunk[i] = Delimiter + 1
		}
	}
	return e.link.Write(chunk)
}

func (e *Engine) handleFrame(frame []byte) {
	cmd, err := e.codec.Received(frame)
	if err != nil {
		log.Warnf("ignoring frame: %v", err)
		return
	}
	log.Debugf("CAT < %s", cmd)
	e.notifier.frame(cmd)
}

// reset discards all in-flight state when the session ends.
func (e *Engine) reset() {
	e.demux.Reset()
	e.bridge.Reset()
	e.keyer.Cancel()
	e.rxSamples = nil
}
