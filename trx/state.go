package trx

import (
	"fmt"
	"sync/atomic"
)

// Sample rates of the single-cable transport. The device produces receive
// audio at DeviceRXRate and expects transmit audio at DeviceTXRate. The modem
// side of the engine always works at InternalRate, the bridge in between
// converts as needed.
const (
	DeviceRXRate = 7825
	DeviceTXRate = 11520
	InternalRate = 12000
)

// Delimiter terminates every CAT frame and every audio run on the wire.
const Delimiter = byte(';')

// MaxFrequency is the highest frequency in Hz that fits into the 11-digit
// frequency field of the CAT protocol.
const MaxFrequency = uint64(99_999_999_999)

// Mode represents the operating mode of the transceiver.
type Mode byte

// All modes available on the (tr)uSDX, with their CAT digit values.
const (
	ModeLSB = Mode('1')
	ModeUSB = Mode('2')
	ModeCW  = Mode('3')
	ModeFM  = Mode('4')
	ModeAM  = Mode('5')
)

func (m Mode) String() string {
	switch m {
	case ModeLSB:
		return "LSB"
	case ModeUSB:
		return "USB"
	case ModeCW:
		return "CW"
	case ModeFM:
		return "FM"
	case ModeAM:
		return "AM"
	default:
		return fmt.Sprintf("Mode(%c)", byte(m))
	}
}

// Valid indicates if this mode is one of the modes known to the transceiver.
func (m Mode) Valid() bool {
	return m >= ModeLSB && m <= ModeAM
}

// Direction represents the half-duplex direction of the transceiver. At any
// instant exactly one direction is active.
type Direction int

// All directions of the transceiver.
const (
	DirectionRX Direction = iota
	DirectionTX
	DirectionTune
)

func (d Direction) String() string {
	switch d {
	case DirectionRX:
		return "RX"
	case DirectionTX:
		return "TX"
	case DirectionTune:
		return "TUNE"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// StreamingMode represents the audio streaming mode of the single-cable
// transport, corresponding to the UA command.
type StreamingMode byte

// All streaming modes. StreamingMuted streams audio over the cable and
// additionally mutes the device's local speaker.
const (
	StreamingOff   = StreamingMode('0')
	StreamingOn    = StreamingMode('1')
	StreamingMuted = StreamingMode('2')
)

// Valid indicates if this streaming mode is one of the known UA values.
func (s StreamingMode) Valid() bool {
	return s >= StreamingOff && s <= StreamingMuted
}

// RadioState is the last confirmed state of the transceiver. It is updated
// only through the CAT codec, after a command was fully parsed or
// successfully written to the wire.
type RadioState struct {
	Frequency uint64
	Mode      Mode
	Direction Direction
	Streaming bool
	Speaker   bool
}

// NewStateCell returns a state cell with the given initial state.
func NewStateCell(initial RadioState) *StateCell {
	result := new(StateCell)
	result.value.Store(initial)
	return result
}

// StateCell holds the RadioState for concurrent readers. There is only a
// single writer, the CAT codec; readers always see a complete snapshot.
type StateCell struct {
	value atomic.Value
}

// Get returns a snapshot of the current radio state.
func (c *StateCell) Get() RadioState {
	return c.value.Load().(RadioState)
}

func (c *StateCell) put(state RadioState) {
	c.value.Store(state)
}
