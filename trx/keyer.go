package trx

import (
	"errors"
	"time"
	"unicode"
)

// ErrAlreadyKeying indicates that a keying session is still active. The
// caller has to cancel it before starting a new one.
var ErrAlreadyKeying = errors.New("already keying")

// Morse code per ITU-R M.1677.
var morseCode = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
	'.': ".-.-.-", ',': "--..--", '?': "..--..", '/': "-..-.",
	'=': "-...-", '-': "-....-", '+': ".-.-.", '@': ".--.-.",
}

// Timing relative to the unit length, per the PARIS standard.
const (
	dotUnits       = 1
	dashUnits      = 3
	symbolGapUnits = 1
	letterGapUnits = 3
	wordGapUnits   = 7
)

type keyElement struct {
	down  bool
	units int
}

// NewKeyer returns an idle keyer.
func NewKeyer() *Keyer {
	return &Keyer{}
}

// Keyer turns text into precisely timed key-down/key-up direction commands
// for CW transmission. It has no clock of its own, the owner advances it
// through Tick. Only one keying session can be active at a time.
type Keyer struct {
	unit     time.Duration
	elements []keyElement
	index    int
	elapsed  time.Duration
	active   bool
}

// Begin starts a keying session for the given text at the given speed in
// words per minute. It fails with ErrAlreadyKeying while another session is
// active. Characters without a Morse representation separate words.
func (k *Keyer) Begin(text string, wpm int) error {
	if k.active {
		return ErrAlreadyKeying
	}
	if wpm <= 0 {
		return errors.New("wpm must be positive")
	}

	elements := encodeMorse(text)
	if len(elements) == 0 {
		return nil
	}

	k.unit = 1200 * time.Millisecond / time.Duration(wpm)
	k.elements = elements
	k.index = -1
	k.elapsed = 0
	k.active = true
	return nil
}

// Active indicates if a keying session is in progress.
func (k *Keyer) Active() bool {
	return k.active
}

// Tick advances the keying session by the given elapsed time and returns the
// direction command to send now, if there is one.
func (k *Keyer) Tick(elapsed time.Duration) (Command, bool) {
	if !k.active {
		return Command{}, false
	}

	if k.index < 0 {
		k.index = 0
		return NewSetDirection(DirectionTX), true
	}

	k.elapsed += elapsed
	for k.elapsed >= time.Duration(k.elements[k.index].units)*k.unit {
		k.elapsed -= time.Duration(k.elements[k.index].units) * k.unit
		k.index++
		if k.index >= len(k.elements) {
			k.active = false
			return Command{}, false
		}
		if k.elements[k.index].down {
			return NewSetDirection(DirectionTX), true
		}
		return NewSetDirection(DirectionRX), true
	}
	return Command{}, false
}

// Cancel aborts the session immediately and returns the command that brings
// the link back to RX, if the key is still down.
func (k *Keyer) Cancel() (Command, bool) {
	if !k.active {
		return Command{}, false
	}
	keyDown := k.index >= 0 && k.index < len(k.elements) && k.elements[k.index].down
	k.active = false
	k.elements = nil
	return NewSetDirection(DirectionRX), keyDown
}

// encodeMorse turns text into a sequence of timed key elements. Consecutive
// gaps are merged into the longest applicable gap, the sequence always ends
// with a key-up element.
func encodeMorse(text string) []keyElement {
	var result []keyElement

	extendGap := func(units int) {
		if len(result) == 0 {
			return
		}
		if last := &result[len(result)-1]; !last.down {
			if last.units < units {
				last.units = units
			}
			return
		}
		result = append(result, keyElement{down: false, units: units})
	}

	for _, r := range text {
		symbols, ok := morseCode[unicode.ToUpper(r)]
		if !ok {
			extendGap(wordGapUnits)
			continue
		}
		if len(result) > 0 {
			extendGap(letterGapUnits)
		}
		for i, symbol := range symbols {
			if i > 0 {
				result = append(result, keyElement{down: false, units: symbolGapUnits})
			}
			units := dotUnits
			if symbol == '-' {
				units = dashUnits
			}
			result = append(result, keyElement{down: true, units: units})
		}
	}

	if len(result) > 0 && result[len(result)-1].down {
		result = append(result, keyElement{down: false, units: symbolGapUnits})
	}
	return result
}
