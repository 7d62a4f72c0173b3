package jeebie

import (
	"errors"
	"testing"

	"github.com/kolibre-dev/swiftboy/jeebie/cpu"
	"github.com/kolibre-dev/swiftboy/jeebie/memory"
	"github.com/kolibre-dev/swiftboy/jeebie/timing"
)

func TestNewWiresPPUIntoBus(t *testing.T) {
	e := New()

	if e.mem.Interrupts() == nil {
		t.Fatal("emulator's bus has no interrupt controller")
	}

	// A freshly attached PPU starts in VBlank (spec.md §6 boot state); the
	// bus should see that through the gate it queries via AttachPPU.
	if got := e.gpu.Mode(); got != 1 {
		t.Fatalf("GPU boot mode = %d; want 1 (VBlank)", got)
	}
}

func TestRunUntilFrameAdvancesExactlyOneFrame(t *testing.T) {
	// A plain NoMBC cartridge is zero-filled, i.e. all NOPs: left running
	// unattended the CPU marches straight off the end of ROM into VRAM
	// within a single frame. Give it a self-loop (JR -2) at the reset
	// vector so it spins in place instead, the way any real ROM's boot
	// code eventually does.
	rom := make([]byte, 0x8000)
	rom[0x100] = 0x18
	rom[0x101] = 0xFE

	cart, err := memory.NewCartridgeWithData(rom)
	if err != nil {
		t.Fatalf("NewCartridgeWithData() returned an error for a plain ROM: %v", err)
	}

	e, err := newEmulator(cart)
	if err != nil {
		t.Fatalf("newEmulator() returned an error for a plain ROM: %v", err)
	}
	e.SetFrameLimiter(timing.NewNoOpLimiter())

	before := e.GetFrameCount()
	if err := e.RunUntilFrame(); err != nil {
		t.Fatalf("RunUntilFrame() returned an error on a looping ROM: %v", err)
	}

	if got := e.GetFrameCount(); got != before+1 {
		t.Fatalf("GetFrameCount() after RunUntilFrame = %d; want %d", got, before+1)
	}
}

func TestRunUntilFrameStopsOnUndefinedOpcode(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x100] = 0xD3 // one of the 11 undefined opcodes, right where execution starts
	rom[0x147] = 0x00 // cart type: NoMBC
	rom[0x148] = 0x00 // ROM size code 0 -> 0x8000 bytes, matches len(rom)

	cart, err := memory.NewCartridgeWithData(rom)
	if err != nil {
		t.Fatalf("NewCartridgeWithData() returned an error for a plain ROM: %v", err)
	}

	e, err := newEmulator(cart)
	if err != nil {
		t.Fatalf("newEmulator() returned an error for a plain ROM: %v", err)
	}
	e.SetFrameLimiter(timing.NewNoOpLimiter())

	if err := e.RunUntilFrame(); err == nil {
		t.Fatal("RunUntilFrame() = nil error; want a fatal error for the undefined opcode")
	} else if !errors.Is(err, cpu.ErrUndefinedOpcode) {
		t.Fatalf("RunUntilFrame() error = %v; want it to wrap cpu.ErrUndefinedOpcode", err)
	}
}

func TestHandleKeyPressReachesJoypad(t *testing.T) {
	e := New()

	// P1 with both select lines low (0) selects both groups; before any
	// press all buttons read 1 (released).
	e.GetMMU().Write(0xFF00, 0x00)
	before := e.GetMMU().Read(0xFF00)

	e.HandleKeyPress(0) // JoypadRight
	after := e.GetMMU().Read(0xFF00)

	if before == after {
		t.Fatal("P1 register unchanged after HandleKeyPress")
	}
}
