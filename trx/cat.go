package trx

import (
	"errors"
	"fmt"
)

// TransceiverID is the fixed model identification the (tr)uSDX reports,
// matching the Kenwood TS-480 it emulates.
const TransceiverID = "020"

// ErrUnrecognized indicates a CAT frame that is not part of the supported
// command set. Such frames are reported and discarded, they never terminate
// the session.
var ErrUnrecognized = errors.New("unrecognized CAT frame")

// Command represents a single CAT command or report. The zero value is not a
// valid command. A command with an empty payload is a request that asks the
// transceiver to report the current value.
type Command struct {
	verb string
	arg  string
}

// ParseCommand parses the given frame, without the trailing delimiter, as a
// CAT command. It validates the payload shape of the known command set and
// returns ErrUnrecognized for anything else.
func ParseCommand(frame []byte) (Command, error) {
	if len(frame) < 2 {
		return Command{}, fmt.Errorf("%w: %q is too short", ErrUnrecognized, frame)
	}
	verb := string(frame[:2])
	arg := string(frame[2:])
	if !isLetters(verb) {
		return Command{}, fmt.Errorf("%w: %q has no valid mnemonic", ErrUnrecognized, frame)
	}

	valid := false
	switch verb {
	case "FA":
		valid = arg == "" || (len(arg) == 11 && isDigits(arg))
	case "MD":
		valid = arg == "" || (len(arg) == 1 && Mode(arg[0]).Valid())
	case "RX":
		valid = arg == "" || arg == "0"
	case "TX":
		valid = arg == "" || arg == "0" || arg == "1" || arg == "2"
	case "ID":
		valid = arg == "" || (len(arg) == 3 && isDigits(arg))
	case "PS":
		valid = arg == "" || arg == "0" || arg == "1"
	case "AI":
		valid = arg == "" || (len(arg) == 1 && isDigits(arg))
	case "UA":
		valid = arg == "" || (len(arg) == 1 && StreamingMode(arg[0]).Valid())
	case "IF":
		// status report, accepted as is
		valid = true
	}
	if !valid {
		return Command{}, fmt.Errorf("%w: %q", ErrUnrecognized, frame)
	}
	return Command{verb: verb, arg: arg}, nil
}

func isLetters(s string) bool {
	for _, b := range []byte(s) {
		if b < 'A' || b > 'Z' {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, b := range []byte(s) {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}

// NewFrequencyRequest returns the command to read the VFO A frequency.
func NewFrequencyRequest() Command {
	return Command{verb: "FA"}
}

// NewSetFrequency returns the command to set the VFO A frequency in Hz.
func NewSetFrequency(frequency uint64) (Command, error) {
	if frequency > MaxFrequency {
		return Command{}, fmt.Errorf("frequency %d out of range", frequency)
	}
	return Command{verb: "FA", arg: fmt.Sprintf("%011d", frequency)}, nil
}

// NewModeRequest returns the command to read the operating mode.
func NewModeRequest() Command {
	return Command{verb: "MD"}
}

// NewSetMode returns the command to set the operating mode.
func NewSetMode(mode Mode) (Command, error) {
	if !mode.Valid() {
		return Command{}, fmt.Errorf("invalid mode %q", byte(mode))
	}
	return Command{verb: "MD", arg: string(byte(mode))}, nil
}

// NewSetDirection returns the command to switch the transceiver to the given
// direction: RX, TX0 for transmit, TX2 for tune.
func NewSetDirection(direction Direction) Command {
	switch direction {
	case DirectionTX:
		return Command{verb: "TX", arg: "0"}
	case DirectionTune:
		return Command{verb: "TX", arg: "2"}
	default:
		return Command{verb: "RX"}
	}
}

// NewIDRequest returns the command to read the transceiver identification.
func NewIDRequest() Command {
	return Command{verb: "ID"}
}

// NewPowerStatusRequest returns the command to read the power on/off status.
func NewPowerStatusRequest() Command {
	return Command{verb: "PS"}
}

// NewSetAutoInfo returns the command to switch the automatic information
// reports on or off.
func NewSetAutoInfo(enabled bool) Command {
	if enabled {
		return Command{verb: "AI", arg: "1"}
	}
	return Command{verb: "AI", arg: "0"}
}

// NewSetStreaming returns the command to set the audio streaming mode of the
// single-cable transport.
func NewSetStreaming(mode StreamingMode) (Command, error) {
	if !mode.Valid() {
		return Command{}, fmt.Errorf("invalid streaming mode %q", byte(mode))
	}
	return Command{verb: "UA", arg: string(byte(mode))}, nil
}

// Verb returns the two-letter mnemonic of this command.
func (c Command) Verb() string {
	return c.verb
}

// IsRequest indicates if this command only asks for the current value.
func (c Command) IsRequest() bool {
	return c.arg == ""
}

// Bytes returns the wire representation of this command, including the
// trailing delimiter.
func (c Command) Bytes() []byte {
	result := make([]byte, 0, len(c.verb)+len(c.arg)+1)
	result = append(result, c.verb...)
	result = append(result, c.arg...)
	result = append(result, Delimiter)
	return result
}

func (c Command) String() string {
	return c.verb + c.arg + string(Delimiter)
}

// Frequency returns the frequency payload in Hz.
func (c Command) Frequency() (uint64, error) {
	if c.verb != "FA" || c.arg == "" {
		return 0, fmt.Errorf("%s carries no frequency", c)
	}
	var result uint64
	for _, b := range []byte(c.arg) {
		result = result*10 + uint64(b-'0')
	}
	return result, nil
}

// Mode returns the mode payload.
func (c Command) Mode() (Mode, error) {
	if c.verb != "MD" || c.arg == "" {
		return 0, fmt.Errorf("%s carries no mode", c)
	}
	return Mode(c.arg[0]), nil
}

// Direction returns the direction this command switches to.
func (c Command) Direction() (Direction, error) {
	switch {
	case c.verb == "RX":
		return DirectionRX, nil
	case c.verb == "TX" && c.arg == "2":
		return DirectionTune, nil
	case c.verb == "TX":
		return DirectionTX, nil
	default:
		return 0, fmt.Errorf("%s carries no direction", c)
	}
}

// Streaming returns the streaming mode payload.
func (c Command) Streaming() (StreamingMode, error) {
	if c.verb != "UA" || c.arg == "" {
		return 0, fmt.Errorf("%s carries no streaming mode", c)
	}
	return StreamingMode(c.arg[0]), nil
}

// NewCodec returns a codec that maintains the given state cell.
func NewCodec(state *StateCell, notifier *notifier) *Codec {
	return &Codec{state: state, notifier: notifier}
}

// Codec parses incoming CAT frames, serializes outgoing commands, and is the
// only writer of the radio state. It must be used from a single goroutine.
type Codec struct {
	state    *StateCell
	notifier *notifier
}

// Received parses a frame coming in from the transceiver and applies it to
// the radio state.
func (c *Codec) Received(frame []byte) (Command, error) {
	cmd, err := ParseCommand(frame)
	if err != nil {
		return Command{}, err
	}
	c.apply(cmd)
	return cmd, nil
}

// Sent applies a command that was successfully written to the transceiver to
// the radio state.
func (c *Codec) Sent(cmd Command) {
	if cmd.IsRequest() && cmd.verb != "RX" {
		return
	}
	c.apply(cmd)
}

func (c *Codec) apply(cmd Command) {
	state := c.state.Get()
	switch cmd.verb {
	case "FA":
		frequency, err := cmd.Frequency()
		if err != nil {
			return
		}
		state.Frequency = frequency
		c.notifier.frequencyChanged(frequency)
	case "MD":
		mode, err := cmd.Mode()
		if err != nil {
			return
		}
		state.Mode = mode
		c.notifier.modeChanged(mode)
	case "RX", "TX":
		direction, _ := cmd.Direction()
		state.Direction = direction
		c.notifier.directionChanged(direction)
	case "UA":
		streaming, err := cmd.Streaming()
		if err != nil {
			return
		}
		state.Streaming = streaming != StreamingOff
		state.Speaker = streaming != StreamingMuted
		c.notifier.streamingChanged(state.Streaming)
	default:
		return
	}
	c.state.put(state)
}
