package trx

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLink struct {
	mutex    sync.Mutex
	incoming bytes.Buffer
	outgoing bytes.Buffer
	readErr  error
	closed   bool
}

func (l *testLink) push(data string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.incoming.WriteString(data)
}

func (l *testLink) written() string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.outgoing.String()
}

func (l *testLink) Read(p []byte) (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.readErr != nil {
		return 0, l.readErr
	}
	if l.incoming.Len() == 0 {
		l.mutex.Unlock()
		time.Sleep(time.Millisecond)
		l.mutex.Lock()
	}
	n, _ := l.incoming.Read(p)
	return n, nil
}

func (l *testLink) Write(p []byte) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	l.outgoing.Write(p)
	return nil
}

func (l *testLink) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.closed = true
	return nil
}

type testListener struct {
	frequencies chan uint64
	directions  chan Direction
	rxAudio     chan []float32
}

func newTestListener() *testListener {
	return &testListener{
		frequencies: make(chan uint64, 10),
		directions:  make(chan Direction, 10),
		rxAudio:     make(chan []float32, 10),
	}
}

func (l *testListener) SetFrequency(frequency uint64) {
	l.frequencies <- frequency
}

func (l *testListener) SetDirection(direction Direction) {
	l.directions <- direction
}

func (l *testListener) RXAudio(samples []float32) {
	l.rxAudio <- samples
}

func TestEngine_IncomingFrameUpdatesState(t *testing.T) {
	link := new(testLink)
	engine := newEngine(link)
	listener := newTestListener()
	engine.Notify(listener)

	link.push("FA00014074000;")
	buf := make([]byte, 256)
	require.NoError(t, engine.poll(buf))

	assert.Equal(t, uint64(14074000), engine.State().Frequency)
	select {
	case frequency := <-listener.frequencies:
		assert.Equal(t, uint64(14074000), frequency)
	default:
		t.Fatal("no frequency notification")
	}
}

func TestEngine_IncomingAudioReachesListener(t *testing.T) {
	link := new(testLink)
	engine := newEngine(link)
	listener := newTestListener()
	engine.Notify(listener)

	samples := strings.Repeat("\x80", 100)
	link.push(";US" + samples + ";")
	buf := make([]byte, 256)
	require.NoError(t, engine.poll(buf))

	select {
	case audio := <-listener.rxAudio:
		assert.NotEmpty(t, audio)
		for _, sample := range audio {
			assert.Equal(t, float32(0), sample)
		}
	default:
		t.Fatal("no rx audio")
	}
}

func TestEngine_CommandsGoOutAheadOfAudio(t *testing.T) {
	link := new(testLink)
	engine := newEngine(link)
	buf := make([]byte, 256)

	// direction TX with streaming enabled, so audio is allowed to flow
	require.NoError(t, engine.SetStreaming(StreamingOn))
	require.NoError(t, engine.SetDirection(DirectionTX))
	require.NoError(t, engine.poll(buf))
	engine.txAudio <- []byte{1, 2, 3}
	require.NoError(t, engine.SetFrequency(14074000))
	require.NoError(t, engine.poll(buf))

	written := link.written()
	commandAt := strings.Index(written, "FA00014074000;")
	audioAt := strings.Index(written, "\x01\x02\x03")
	require.NotEqual(t, -1, commandAt)
	require.NotEqual(t, -1, audioAt)
	assert.Less(t, commandAt, audioAt, "the command must not wait behind queued audio")
}

func TestEngine_AudioStaysQueuedWhileReceiving(t *testing.T) {
	link := new(testLink)
	engine := newEngine(link)
	buf := make([]byte, 256)

	engine.txAudio <- []byte{1, 2, 3}
	require.NoError(t, engine.poll(buf))

	assert.NotContains(t, link.written(), "\x01\x02\x03")
	assert.Len(t, engine.txAudio, 1, "the audio stays queued until the direction allows it")
}

func TestEngine_DelimiterSubstitutionOnTheWire(t *testing.T) {
	link := new(testLink)
	engine := newEngine(link)

	require.NoError(t, engine.writeAudio([]byte{0x3a, 0x3b, 0x3c}))

	assert.Equal(t, "\x3a\x3c\x3c", link.written())
}

func TestEngine_SilenceFillWhileTransmitting(t *testing.T) {
	link := new(testLink)
	engine := newEngine(link)
	buf := make([]byte, 256)

	require.NoError(t, engine.SetStreaming(StreamingOn))
	require.NoError(t, engine.SetDirection(DirectionTX))
	require.NoError(t, engine.poll(buf))

	// no audio queued for longer than one chunk period
	time.Sleep(2 * txChunkPeriod)
	require.NoError(t, engine.poll(buf))

	assert.Contains(t, link.written(), string(Silence(txChunkLength)))
}

func TestEngine_CommandWhileTransmittingIsSeparatedFromAudio(t *testing.T) {
	link := new(testLink)
	engine := newEngine(link)
	buf := make([]byte, 256)

	require.NoError(t, engine.SetDirection(DirectionTX))
	require.NoError(t, engine.poll(buf))
	before := link.written()
	require.NoError(t, engine.Send(NewSetDirection(DirectionRX)))
	require.NoError(t, engine.poll(buf))

	sent := link.written()[len(before):]
	assert.Equal(t, ";RX;", sent, "a lone delimiter must precede the command while transmitting")
}

func TestEngine_Disconnect(t *testing.T) {
	link := new(testLink)
	link.readErr = ErrLinkClosed
	engine := Open(link)

	disconnected := make(chan struct{})
	engine.WhenDisconnected(func() { close(disconnected) })

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("the engine did not notice the dead link")
	}
	assert.False(t, engine.Connected())
	assert.ErrorIs(t, engine.Send(NewFrequencyRequest()), ErrLinkClosed)
	assert.ErrorIs(t, engine.KeyText("CQ", 20), ErrLinkClosed)
}

func TestEngine_CloseSendsFarewell(t *testing.T) {
	link := new(testLink)
	engine := Open(link)

	engine.Close()

	assert.True(t, strings.HasSuffix(link.written(), "UA0;"), "streaming must be switched off on close")
}

func TestEngine_CloseAfterLinkFailureSkipsFarewell(t *testing.T) {
	link := new(testLink)
	link.readErr = ErrLinkClosed
	engine := Open(link)

	disconnected := make(chan struct{})
	engine.WhenDisconnected(func() { close(disconnected) })
	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("the engine did not notice the dead link")
	}
	engine.Close()

	assert.NotContains(t, link.written(), "UA0;", "no farewell on a dead link")
}

func TestEngine_KeyTextWhileKeying(t *testing.T) {
	link := new(testLink)
	engine := Open(link)
	defer engine.Close()

	require.NoError(t, engine.KeyText("CQ CQ CQ", 20))
	assert.ErrorIs(t, engine.KeyText("TEST", 20), ErrAlreadyKeying)
	require.NoError(t, engine.CancelKeying())
}

func TestEngine_StateSnapshot(t *testing.T) {
	link := new(testLink)
	engine := newEngine(link)
	buf := make([]byte, 256)

	require.NoError(t, engine.SetFrequency(7038600))
	require.NoError(t, engine.SetMode(ModeCW))
	require.NoError(t, engine.poll(buf))

	state := engine.State()
	assert.Equal(t, uint64(7038600), state.Frequency)
	assert.Equal(t, ModeCW, state.Mode)
	assert.Equal(t, DirectionRX, state.Direction)
}
