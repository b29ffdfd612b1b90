package trx

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// DialWebsocket opens a link to a transceiver whose serial byte stream is
// bridged over a websocket connection, for running the engine on a different
// machine than the one the USB cable is plugged into. Each binary websocket
// message carries a chunk of the raw byte stream.
func DialWebsocket(url string) (Link, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot open websocket connection: %w", err)
	}
	link := &websocketLink{
		conn:     conn,
		incoming: make(chan []byte, 1),
		failed:   make(chan struct{}),
		closed:   make(chan struct{}),
	}
	go link.readLoop()
	return link, nil
}

type websocketLink struct {
	conn     *websocket.Conn
	incoming chan []byte
	failed   chan struct{}
	readErr  error
	closed   chan struct{}
	pending  []byte
}

// readLoop is the only reader of the websocket connection. A read error on a
// websocket connection is permanent, so the loop stops on the first one and
// reports it through the failed channel.
func (l *websocketLink) readLoop() {
	for {
		messageType, data, err := l.conn.ReadMessage()
		if err != nil {
			l.readErr = err
			close(l.failed)
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case l.incoming <- data:
		case <-l.closed:
			return
		}
	}
}

func (l *websocketLink) Read(p []byte) (int, error) {
	select {
	case <-l.closed:
		return 0, ErrLinkClosed
	default:
	}
	if len(l.pending) == 0 {
		timeout := time.NewTimer(ReadTimeout)
		defer timeout.Stop()
		select {
		case data := <-l.incoming:
			l.pending = data
		case <-timeout.C:
			return 0, nil
		case <-l.failed:
			return 0, fmt.Errorf("%w: %v", ErrLinkClosed, l.readErr)
		case <-l.closed:
			return 0, ErrLinkClosed
		}
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

func (l *websocketLink) Write(p []byte) error {
	select {
	case <-l.closed:
		return ErrLinkClosed
	default:
	}
	err := l.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLinkClosed, err)
	}
	return nil
}

func (l *websocketLink) Close() error {
	select {
	case <-l.closed:
		return nil
	default:
		close(l.closed)
	}
	return l.conn.Close()
}
