package trx

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// ErrLinkClosed indicates that the link to the transceiver is closed or
// disconnected. The session is over, the caller has to re-establish the link
// and rebuild the engine from scratch.
var ErrLinkClosed = errors.New("link closed")

// DefaultBaudRate of the (tr)uSDX USB serial port.
const DefaultBaudRate = 115200

// ReadTimeout is the duration a Link.Read waits for incoming bytes before it
// returns empty-handed. It paces the engine's poll loop.
const ReadTimeout = 10 * time.Millisecond

// Link is a byte-oriented duplex connection to the transceiver.
//
// Read fills p with the bytes currently available and returns their count. It
// blocks for at most ReadTimeout; when no data arrives in time it returns
// n == 0 with no error. A disconnected link returns ErrLinkClosed.
type Link interface {
	Read(p []byte) (int, error)
	Write(p []byte) error
	Close() error
}

// OpenSerial opens the serial port with the given name as a link to the
// transceiver.
func OpenSerial(portName string, baudRate int) (Link, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        portName,
		Baud:        baudRate,
		ReadTimeout: ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open serial port %s: %w", portName, err)
	}
	return &serialLink{port: port}, nil
}

type serialLink struct {
	port   *serial.Port
	closed bool
}

func (l *serialLink) Read(p []byte) (int, error) {
	if l.closed {
		return 0, ErrLinkClosed
	}
	n, err := l.port.Read(p)
	switch {
	case errors.Is(err, io.EOF):
		// the port's read timeout expired without data
		return 0, nil
	case err != nil:
		return n, fmt.Errorf("%w: %v", ErrLinkClosed, err)
	default:
		return n, nil
	}
}

func (l *serialLink) Write(p []byte) error {
	if l.closed {
		return ErrLinkClosed
	}
	_, err := l.port.Write(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLinkClosed, err)
	}
	return nil
}

func (l *serialLink) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.port.Flush()
	return l.port.Close()
}
