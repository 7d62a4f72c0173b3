package jeebie

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kolibre-dev/swiftboy/jeebie/cpu"
	"github.com/kolibre-dev/swiftboy/jeebie/memory"
	"github.com/kolibre-dev/swiftboy/jeebie/timing"
	"github.com/kolibre-dev/swiftboy/jeebie/video"
)

// Emulator is the root struct wiring the CPU, PPU, and bus together and
// driving them one frame (70224 M-cycles) at a time.
type Emulator struct {
	cpu *cpu.CPU
	gpu *video.GPU
	mem *memory.MMU

	limiter timing.Limiter

	frameCount uint64
}

// newEmulator wires a cartridge into a fresh bus/CPU/PPU triple. A cartridge
// load error (unsupported mapper, unsupported size code, ROM size mismatch -
// spec.md §7) is surfaced here and the emulator is never returned: the core
// never starts on a cartridge it can't run.
func newEmulator(cart *memory.Cartridge) (*Emulator, error) {
	mem, err := memory.NewWithCartridge(cart)
	if err != nil {
		return nil, fmt.Errorf("loading cartridge: %w", err)
	}

	g := video.NewGpu(mem)
	mem.AttachPPU(g)

	return &Emulator{
		cpu:     cpu.New(mem),
		gpu:     g,
		mem:     mem,
		limiter: timing.NewNoOpLimiter(),
	}, nil
}

// New creates an emulator with no cartridge loaded.
func New() *Emulator {
	e, err := newEmulator(memory.NewCartridge())
	if err != nil {
		// An empty cartridge is always NoMBCType, which newEmulator always
		// accepts - this can't actually happen.
		panic(err)
	}
	return e
}

// NewWithFile creates an emulator and loads the ROM at path into it.
func NewWithFile(path string) (*Emulator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	slog.Debug("loaded ROM data", "size", len(data))

	cart, err := memory.NewCartridgeWithData(data)
	if err != nil {
		return nil, fmt.Errorf("loading cartridge: %w", err)
	}

	return newEmulator(cart)
}

// SetFrameLimiter swaps the pacing strategy RunUntilFrame waits on between
// frames - a real-time limiter for interactive use, or a no-op one for
// headless/benchmark runs.
func (e *Emulator) SetFrameLimiter(limiter timing.Limiter) {
	e.limiter = limiter
}

// ResetFrameTiming resets the limiter's internal clock, useful after a pause.
func (e *Emulator) ResetFrameTiming() {
	e.limiter.Reset()
}

// RunUntilFrame ticks the CPU (which in turn ticks the bus) and the PPU
// until a full frame's worth of M-cycles has elapsed, then paces itself
// against the configured frame limiter. A fatal execution error (spec.md §7:
// undefined opcode, STOP, forbidden fetch) aborts the frame immediately and
// is returned to the caller, which must stop calling RunUntilFrame - there is
// no way to resume a CPU that has faulted.
func (e *Emulator) RunUntilFrame() error {
	total := 0
	for total < timing.CyclesPerFrame {
		cycles, err := e.cpu.Tick()
		if err != nil {
			return fmt.Errorf("frame %d: %w", e.frameCount, err)
		}
		e.gpu.Tick(cycles)
		total += cycles
	}

	e.frameCount++
	if e.frameCount%60 == 0 {
		slog.Debug("frame completed", "frame", e.frameCount)
	}

	e.limiter.WaitForNextFrame()
	return nil
}

// GetCurrentFrame returns the framebuffer the PPU last published to.
func (e *Emulator) GetCurrentFrame() *video.FrameBuffer {
	return e.gpu.GetFrameBuffer()
}

// HandleKeyPress forwards a joypad key press to the bus.
func (e *Emulator) HandleKeyPress(key memory.JoypadKey) {
	e.mem.HandleKeyPress(key)
}

// HandleKeyRelease forwards a joypad key release to the bus.
func (e *Emulator) HandleKeyRelease(key memory.JoypadKey) {
	e.mem.HandleKeyRelease(key)
}

// GetMMU exposes the bus, for callers that need direct register access
// (debuggers, test harnesses).
func (e *Emulator) GetMMU() *memory.MMU {
	return e.mem
}

// GetFrameCount returns the number of frames rendered so far.
func (e *Emulator) GetFrameCount() uint64 {
	return e.frameCount
}

// String implements fmt.Stringer for quick REPL/log inspection.
func (e *Emulator) String() string {
	return fmt.Sprintf("Emulator{frame=%d}", e.frameCount)
}
