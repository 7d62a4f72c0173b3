package memory

import "github.com/kolibre-dev/swiftboy/jeebie/bit"

// JoypadKey represents a key on the Game Boy joypad.
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// Joypad snapshots the eight-button state and exposes it through the P1
// register's action/direction select lines. Bits read back active-low: 0
// means pressed. InterruptHandler fires once per press edge, per spec.md
// §4.8 ("any transition of an observed button from unpressed to pressed").
type Joypad struct {
	buttons uint8 // A, B, Select, Start in bits 0-3
	dpad    uint8 // Right, Left, Up, Down in bits 0-3

	selectLine uint8 // bits 4-5 of P1, as last written by the CPU

	InterruptHandler func()
}

// NewJoypad returns a joypad with no buttons pressed.
func NewJoypad() *Joypad {
	return &Joypad{
		buttons: 0x0F,
		dpad:    0x0F,
	}
}

// Read returns the P1 register as the CPU would see it: bits 6-7 always 1,
// bits 4-5 the selection as last written, bits 0-3 the selected button
// group (ANDed together if both groups are selected at once).
func (j *Joypad) Read() uint8 {
	result := uint8(0b11000000)
	result |= j.selectLine

	selectDpad := !bit.IsSet(4, j.selectLine)
	selectButtons := !bit.IsSet(5, j.selectLine)

	switch {
	case selectButtons && !selectDpad:
		result |= j.buttons & 0x0F
	case selectDpad && !selectButtons:
		result |= j.dpad & 0x0F
	case selectButtons && selectDpad:
		result |= j.buttons & j.dpad & 0x0F
	default:
		result |= 0x0F
	}

	return result
}

// Write updates the selection bits; only bits 4-5 of P1 are writable.
func (j *Joypad) Write(value uint8) {
	j.selectLine = value & 0b00110000
}

// Press marks a button down, firing InterruptHandler on the unpressed-to-
// pressed edge.
func (j *Joypad) Press(key JoypadKey) {
	oldButtons, oldDpad := j.buttons, j.dpad
	j.set(key, false)

	buttonEdge := oldButtons &^ j.buttons
	dpadEdge := oldDpad &^ j.dpad
	if buttonEdge|dpadEdge != 0 && j.InterruptHandler != nil {
		j.InterruptHandler()
	}
}

// Release marks a button up.
func (j *Joypad) Release(key JoypadKey) {
	j.set(key, true)
}

func (j *Joypad) set(key JoypadKey, released bool) {
	var group *uint8
	var bitIndex uint8

	switch key {
	case JoypadRight:
		group, bitIndex = &j.dpad, 0
	case JoypadLeft:
		group, bitIndex = &j.dpad, 1
	case JoypadUp:
		group, bitIndex = &j.dpad, 2
	case JoypadDown:
		group, bitIndex = &j.dpad, 3
	case JoypadA:
		group, bitIndex = &j.buttons, 0
	case JoypadB:
		group, bitIndex = &j.buttons, 1
	case JoypadSelect:
		group, bitIndex = &j.buttons, 2
	case JoypadStart:
		group, bitIndex = &j.buttons, 3
	default:
		return
	}

	if released {
		*group = bit.Set(bitIndex, *group)
	} else {
		*group = bit.Reset(bitIndex, *group)
	}
}
