package memory

import (
	"fmt"
	"log/slog"

	"github.com/kolibre-dev/swiftboy/jeebie/addr"
	"github.com/kolibre-dev/swiftboy/jeebie/audio"
	"github.com/kolibre-dev/swiftboy/jeebie/bit"
	"github.com/kolibre-dev/swiftboy/jeebie/interrupt"
	"github.com/kolibre-dev/swiftboy/jeebie/serial"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

// SerialPort is the minimal interface for a serial device connected to SB/SC.
// Implementations MUST only accept reads/writes to addr.SB and addr.SC.
type SerialPort interface {
	Write(address uint16, value byte)
	Read(address uint16) byte
	Tick(cycles int)
	Reset()
}

// MMU is the address decoder described in spec.md §4.2: it owns VRAM/WRAM/
// OAM/HRAM storage directly and routes everything else (cartridge, timer,
// APU, serial, joypad, interrupts) to its owning component.
type MMU struct {
	cart *Cartridge
	mbc  MBC

	memory    []byte
	regionMap [256]memRegion

	APU        *audio.APU
	joypad     *Joypad
	serial     SerialPort
	timer      Timer
	dma        dma
	interrupts *interrupt.Controller
	ppu        ppuModeSource
}

// ppuModeSource is the narrow view the bus needs of the PPU: its current
// scanline submode, used to gate CPU access to VRAM/OAM per spec.md §3.
// Defined here (rather than imported from video) so memory doesn't depend
// on video - video already depends on memory for register access.
type ppuModeSource interface {
	Mode() int
}

// PPU mode values, mirrored from video.GpuMode so the gate below doesn't
// need to import the video package.
const (
	ppuModeHBlank  = 0
	ppuModeVBlank  = 1
	ppuModeOAMScan = 2
	ppuModeDraw    = 3
)

// AttachPPU wires the PPU into the bus so VRAM/OAM accesses can be gated by
// its current mode. The PPU's own rendering reads bypass this gate through
// ReadForPPU.
func (m *MMU) AttachPPU(p ppuModeSource) {
	m.ppu = p
}

// New creates a memory unit with no cartridge loaded, equivalent to turning
// on the console with an empty cartridge slot.
func New() *MMU {
	mmu := &MMU{
		memory:     make([]byte, 0x10000),
		cart:       NewCartridge(),
		APU:        audio.New(),
		joypad:     NewJoypad(),
		interrupts: interrupt.New(),
	}
	mmu.serial = serial.NewLogSink(func() { mmu.interrupts.Raise(interrupt.Serial) })
	mmu.joypad.InterruptHandler = func() { mmu.interrupts.Raise(interrupt.Joypad) }
	mmu.timer.TimerInterruptHandler = func() { mmu.interrupts.Raise(interrupt.Timer) }
	mmu.timer.FrameSequencerHandler = func() { mmu.APU.StepSequencer() }
	initRegionMap(mmu)
	return mmu
}

// NewWithCartridge creates a memory unit with the given cartridge loaded,
// constructing whichever MBC its header calls for. An unsupported mapper type
// is a cartridge load error per spec.md §7: the MMU is not returned, and the
// core never starts.
func NewWithCartridge(cart *Cartridge) (*MMU, error) {
	mmu := New()
	mmu.cart = cart

	switch cart.mbcType {
	case NoMBCType:
		mmu.mbc = NewNoMBC(cart.data)
	case MBC1Type, MBC1MultiType:
		mmu.mbc = NewMBC1(cart.data, cart.ramBankCount, cart.hasBattery)
	case MBC2Type:
		mmu.mbc = NewMBC2(cart.data, cart.hasBattery)
	case MBC3Type:
		mmu.mbc = NewMBC3(cart.data, cart.ramBankCount, cart.hasBattery, cart.hasRTC)
	case MBC5Type:
		mmu.mbc = NewMBC5(cart.data, cart.ramBankCount, cart.hasBattery, cart.hasRumble)
	default:
		return nil, fmt.Errorf("%w: mapper type %v", ErrUnsupportedMapper, cart.mbcType)
	}

	return mmu, nil
}

func initRegionMap(m *MMU) {
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	m.regionMap[0xFE] = regionOAM
	m.regionMap[0xFF] = regionIO
}

// Tick advances the timer, serial sink, and DMA window by cycles M-cycles.
// The PPU is advanced separately by the core loop (spec.md §5 step 3), since
// it owns frame publication; the bus instead queries its live mode through
// AttachPPU to gate VRAM/OAM access (see ppuBlocks).
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
	m.dma.tick(cycles)
	if m.serial != nil {
		m.serial.Tick(cycles)
	}
}

// SetTimerSeed initializes the internal timer divider seed and DIV register.
func (m *MMU) SetTimerSeed(seed uint16) {
	m.timer.SetSeed(seed)
}

// DMAInProgress reports whether the bus gate from an OAM DMA transfer is
// currently up.
func (m *MMU) DMAInProgress() bool {
	return m.dma.active()
}

// RequestInterrupt sets the IF bit for the given interrupt source.
func (m *MMU) RequestInterrupt(i addr.Interrupt) {
	m.interrupts.Raise(interrupt.SourceFor(i))
}

// Interrupts returns the shared interrupt controller, for the CPU to poll
// and service.
func (m *MMU) Interrupts() *interrupt.Controller {
	return m.interrupts
}

func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

func (m *MMU) SetBit(index uint8, address uint16, set bool) {
	value := m.Read(address)
	if set {
		value = bit.Set(index, value)
	} else {
		value = bit.Reset(index, value)
	}
	m.Write(address, value)
}

// Read implements the bus gate from spec.md §4.2 and §3: while a DMA
// transfer is in progress, any address outside HRAM ($FF80-$FFFE) reads
// $FF, regardless of what device would otherwise own it. It also enforces
// the PPU mode gate: VRAM is unreadable during mode 3 (Drawing), OAM is
// unreadable during modes 2-3 (OAM Scan, Drawing).
func (m *MMU) Read(address uint16) byte {
	if m.dma.active() && !isHRAM(address) {
		return 0xFF
	}
	if blocked := m.ppuBlocks(address); blocked {
		return 0xFF
	}
	return m.readRaw(address)
}

// ReadForPPU is the privileged read path the PPU itself uses to fetch tile
// and sprite data while rendering; it bypasses the mode gate above (a real
// PPU is never blocked from its own VRAM/OAM) but still respects the DMA
// gate, since DMA overwrites OAM directly.
func (m *MMU) ReadForPPU(address uint16) byte {
	if m.dma.active() && !isHRAM(address) {
		return 0xFF
	}
	return m.readRaw(address)
}

// ppuBlocks reports whether the bus gate should mask a CPU access to
// address because of the PPU's current scanline submode.
func (m *MMU) ppuBlocks(address uint16) bool {
	if m.ppu == nil {
		return false
	}
	switch m.regionMap[address>>8] {
	case regionVRAM:
		return m.ppu.Mode() == ppuModeDraw
	case regionOAM:
		mode := m.ppu.Mode()
		return mode == ppuModeOAMScan || mode == ppuModeDraw
	default:
		return false
	}
}

// FetchBlocked reports whether an instruction fetch from address would be
// masked by the DMA or PPU bus gate - a forbidden-fetch condition per
// spec.md §4.1 and §7, distinct from an ordinary blocked data read (which is
// a guarded no-op): the CPU treats fetching from here as fatal rather than
// silently executing whatever $FF decodes to.
func (m *MMU) FetchBlocked(address uint16) bool {
	if m.dma.active() && !isHRAM(address) {
		return true
	}
	return m.ppuBlocks(address)
}

// readRaw performs the address decode without the DMA gate; it's the
// privileged path the DMA transfer itself uses to read its source bytes.
func (m *MMU) readRaw(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			slog.Warn("reading from ROM/external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM, regionWRAM:
		return m.memory[address]
	case regionEcho:
		return m.memory[address-0x2000]
	case regionOAM:
		if address > 0xFE9F {
			// $FEA0-$FEFF is prohibited; reads return $FF per spec.md §3.
			return 0xFF
		}
		return m.memory[address]
	case regionIO:
		return m.readIO(address)
	default:
		panic(fmt.Sprintf("attempted read at unmapped address: 0x%X", address))
	}
}

func (m *MMU) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		return m.joypad.Read()
	case address == addr.SB || address == addr.SC:
		return m.serial.Read(address)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		return m.timer.Read(address)
	case address >= 0xFF10 && address <= 0xFF3F:
		return m.APU.ReadRegister(address)
	case address == addr.IF:
		return m.interrupts.ReadIF()
	case address == addr.IE:
		return m.interrupts.ReadIE()
	case address == addr.DMA:
		return m.dma.lastSource
	case address >= 0xFF80:
		return m.memory[address]
	default:
		return m.memory[address]
	}
}

// Write implements the same DMA and PPU-mode bus gates as Read for the
// store path: a blocked write is silently dropped.
func (m *MMU) Write(address uint16, value byte) {
	if m.dma.active() && !isHRAM(address) {
		return
	}
	if m.ppuBlocks(address) {
		return
	}

	switch m.regionMap[address>>8] {
	case regionROM:
		if m.mbc == nil {
			slog.Warn("writing to ROM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionVRAM, regionWRAM:
		m.memory[address] = value
	case regionExtRAM:
		if m.mbc == nil {
			slog.Warn("writing to external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionEcho:
		m.memory[address-0x2000] = value
	case regionOAM:
		if address <= 0xFE9F {
			m.memory[address] = value
		}
		// $FEA0-$FEFF writes are silently dropped.
	case regionIO:
		m.writeIO(address, value)
	default:
		panic(fmt.Sprintf("attempted write at unmapped address: 0x%X", address))
	}
}

func (m *MMU) writeIO(address uint16, value byte) {
	switch {
	case address == addr.P1:
		m.joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		m.serial.Write(address, value)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		m.timer.Write(address, value)
	case address >= 0xFF10 && address <= 0xFF3F:
		m.APU.WriteRegister(address, value)
	case address == addr.IF:
		m.interrupts.WriteIF(value)
	case address == addr.IE:
		m.interrupts.WriteIE(value)
	case address == addr.DMA:
		m.startDMA(value)
	case address >= 0xFF80:
		m.memory[address] = value
	default:
		// Other I/O registers: either unimplemented (serve as scratch) or
		// genuinely read-only; spec.md §3 treats unrecognized I/O writes as
		// silently dropped, but the teacher's scratch-region behavior (kept
		// here) lets test ROMs round-trip values through unassigned bytes.
		m.memory[address] = value
	}
}

// startDMA performs the immediate 160-byte OAM copy (spec.md §4.5) and opens
// the 160 M-cycle bus gate. The copy uses readRaw so it isn't itself blocked
// by the gate it's about to raise.
func (m *MMU) startDMA(sourceHigh byte) {
	source := uint16(sourceHigh) << 8
	for i := uint16(0); i < dmaCycles; i++ {
		m.memory[0xFE00+i] = m.readRaw(source + i)
	}
	m.dma.start(sourceHigh)
}

func isHRAM(address uint16) bool {
	return address >= 0xFF80 && address <= 0xFFFE
}

func (m *MMU) HandleKeyPress(key JoypadKey) {
	m.joypad.Press(key)
}

func (m *MMU) HandleKeyRelease(key JoypadKey) {
	m.joypad.Release(key)
}
