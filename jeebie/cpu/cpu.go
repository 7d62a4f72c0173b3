package cpu

import (
	"fmt"

	"github.com/kolibre-dev/swiftboy/jeebie/bit"
	"github.com/kolibre-dev/swiftboy/jeebie/memory"
)

// Flag is one of the 4 possible flags used in the flag register (low byte of AF)
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// CPU is the main struct holding Z80-like state: the eight 8-bit registers
// (paired as AF/BC/DE/HL), SP, PC, the shared bus, and the handful of latches
// (IME delay, HALT, the HALT bug) that the instruction set reaches into
// directly rather than going through accessor methods.
type CPU struct {
	a, f, b, c, d, e, h, l uint8
	sp, pc                 uint16

	memory *memory.MMU

	currentOpcode uint16

	halted         bool
	haltBugPending bool
	stopped        bool

	// fault carries a fatal execution error raised by the opcode that just
	// ran (undefined opcode), for Tick to pick up once decode()'s function
	// returns - Opcode itself only returns a cycle count.
	fault error

	// imeDelay counts down the ticks until a pending EI takes effect: 2 when
	// EI just ran, decremented at the start of each of the next two ticks,
	// IME turns on when it reaches 0 so the instruction right after EI still
	// runs with interrupts disabled.
	imeDelay int
}

// New returns a CPU wired to the given bus, with registers in their
// documented post-boot-ROM state (spec.md §6).
func New(mmu *memory.MMU) *CPU {
	c := &CPU{memory: mmu}
	c.a, c.f = 0x01, 0xB0
	c.setBC(0x0013)
	c.setDE(0x00D8)
	c.setHL(0x014D)
	c.sp = 0xFFFE
	c.pc = 0x0100
	return c
}

// Tick executes one instruction (or one cycle of HALT, or one interrupt
// dispatch) and returns the number of M-cycles it took, after advancing the
// timer/DMA/serial devices on the bus by that same amount. It returns a
// non-nil error - wrapping one of ErrUndefinedOpcode, ErrStopExecuted, or
// ErrForbiddenFetch - on a fatal execution error per spec.md §7; the caller
// must stop calling Tick once that happens.
func (c *CPU) Tick() (int, error) {
	if c.imeDelay > 0 {
		c.imeDelay--
		if c.imeDelay == 0 {
			c.memory.Interrupts().SetIME(true)
		}
	}

	if cycles, serviced := c.serviceInterrupt(); serviced {
		c.memory.Tick(cycles)
		return cycles, nil
	}

	if c.halted {
		c.memory.Tick(1)
		return 1, nil
	}

	if c.memory.FetchBlocked(c.pc) {
		return 0, fmt.Errorf("%w: $%04X", ErrForbiddenFetch, c.pc)
	}

	opcode := c.fetchOpcode()
	cycles := decode(opcode)(c)

	if c.fault != nil {
		err := c.fault
		c.fault = nil
		return cycles, err
	}
	if c.stopped {
		return cycles, fmt.Errorf("%w: $%04X", ErrStopExecuted, c.pc)
	}

	c.memory.Tick(cycles)
	return cycles, nil
}

// raiseFault records a fatal execution error for Tick to return once the
// in-flight Opcode function (which only returns a cycle count) finishes.
// Called by the undefined-opcode handlers.
func (c *CPU) raiseFault(err error) int {
	c.fault = fmt.Errorf("%w: opcode $%02X at $%04X", err, c.currentOpcode, c.pc)
	return 0
}

// serviceInterrupt wakes the CPU from HALT on any pending+enabled interrupt
// (regardless of IME, per spec.md's HALT wake-up rule) and, if IME is set and
// one is pending, pushes PC and jumps to its vector.
func (c *CPU) serviceInterrupt() (int, bool) {
	ic := c.memory.Interrupts()

	if c.halted && ic.Pending() {
		c.halted = false
	}

	vector, src, ok := ic.NextToService()
	if !ok {
		return 0, false
	}

	ic.Acknowledge(src)
	c.pushStack(c.pc)
	c.pc = vector
	return 5, true
}

// fetchOpcode reads the next instruction byte, folding a $CB prefix and its
// following byte into a single 16-bit value that decode() can route on.
// It also implements the permissive HALT bug: if HALT executed with IME
// clear and an interrupt already pending, the next fetch doesn't advance PC,
// so the following opcode's first byte is read and executed a second time.
func (c *CPU) fetchOpcode() uint16 {
	pc := c.pc
	op := uint16(c.readImmediate())

	if c.haltBugPending {
		c.haltBugPending = false
		c.pc = pc
	}

	if op == 0xCB {
		sub := uint16(c.readImmediate())
		c.currentOpcode = 0xCB00 | sub
		return c.currentOpcode
	}

	c.currentOpcode = op
	return op
}

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

// flagToBit returns 1 if flag is set, 0 otherwise - used by the rotate-through-carry
// instructions (RL/RR and their CB-prefixed forms).
func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

func (c *CPU) getAF() uint16 { return bit.Combine(c.a, c.f&0xF0) }
func (c *CPU) getBC() uint16 { return bit.Combine(c.b, c.c) }
func (c *CPU) getDE() uint16 { return bit.Combine(c.d, c.e) }
func (c *CPU) getHL() uint16 { return bit.Combine(c.h, c.l) }

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	c.f = bit.Low(value) & 0xF0
}
func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}
func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}
func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

// readImmediate reads the byte at PC and advances PC past it.
func (c *CPU) readImmediate() uint8 {
	value := c.memory.Read(c.pc)
	c.pc++
	return value
}

// readSignedImmediate reads the byte at PC as a signed displacement and advances PC past it.
func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

// readImmediateWord reads the little-endian word at PC and advances PC past it.
func (c *CPU) readImmediateWord() uint16 {
	low := c.memory.Read(c.pc)
	high := c.memory.Read(c.pc + 1)
	c.pc += 2
	return bit.Combine(high, low)
}

// triggerHaltBug arms the HALT bug for the next fetch; called by opcode0x76
// when HALT executes with IME clear and an interrupt already pending.
func (c *CPU) triggerHaltBug() {
	c.haltBugPending = true
}

// enableInterruptsAfterNextInstruction arms the EI delay; called by the EI opcode.
func (c *CPU) enableInterruptsAfterNextInstruction() {
	c.imeDelay = 2
}

// disableInterrupts clears IME immediately; called by the DI opcode.
func (c *CPU) disableInterrupts() {
	c.imeDelay = 0
	c.memory.Interrupts().SetIME(false)
}
