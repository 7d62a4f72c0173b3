package memory

import "testing"

type fakePPU struct {
	mode int
}

func (f *fakePPU) Mode() int { return f.mode }

func TestPPUBusGate(t *testing.T) {
	const vramAddr = 0x8000
	const oamAddr = 0xFE00

	tests := []struct {
		name          string
		mode          int
		addr          uint16
		wantBlockRead bool
	}{
		{name: "VRAM readable in HBlank", mode: ppuModeHBlank, addr: vramAddr, wantBlockRead: false},
		{name: "VRAM readable in VBlank", mode: ppuModeVBlank, addr: vramAddr, wantBlockRead: false},
		{name: "VRAM readable in OAM scan", mode: ppuModeOAMScan, addr: vramAddr, wantBlockRead: false},
		{name: "VRAM blocked while drawing", mode: ppuModeDraw, addr: vramAddr, wantBlockRead: true},
		{name: "OAM readable in HBlank", mode: ppuModeHBlank, addr: oamAddr, wantBlockRead: false},
		{name: "OAM readable in VBlank", mode: ppuModeVBlank, addr: oamAddr, wantBlockRead: false},
		{name: "OAM blocked during OAM scan", mode: ppuModeOAMScan, addr: oamAddr, wantBlockRead: true},
		{name: "OAM blocked while drawing", mode: ppuModeDraw, addr: oamAddr, wantBlockRead: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mmu := New()
			ppu := &fakePPU{mode: ppuModeHBlank}
			mmu.AttachPPU(ppu)
			mmu.Write(tt.addr, 0x42) // written while unblocked, regardless of the case's mode

			ppu.mode = tt.mode
			got := mmu.Read(tt.addr)

			if tt.wantBlockRead {
				if got != 0xFF {
					t.Errorf("Read(0x%04X) in mode %d = 0x%02X; want 0xFF (blocked)", tt.addr, tt.mode, got)
				}
			} else if got != 0x42 {
				t.Errorf("Read(0x%04X) in mode %d = 0x%02X; want 0x42 (unblocked)", tt.addr, tt.mode, got)
			}
		})
	}

	t.Run("PPU's own reads bypass the gate", func(t *testing.T) {
		mmu := New()
		ppu := &fakePPU{mode: ppuModeHBlank}
		mmu.AttachPPU(ppu)
		mmu.Write(vramAddr, 0x7E)

		ppu.mode = ppuModeDraw
		if got := mmu.Read(vramAddr); got != 0xFF {
			t.Fatalf("CPU read during Drawing = 0x%02X; want 0xFF", got)
		}
		if got := mmu.ReadForPPU(vramAddr); got != 0x7E {
			t.Errorf("ReadForPPU during Drawing = 0x%02X; want 0x7E (bypasses mode gate)", got)
		}
	})

	t.Run("no PPU attached never gates", func(t *testing.T) {
		mmu := New()
		mmu.Write(vramAddr, 0x11)
		if got := mmu.Read(vramAddr); got != 0x11 {
			t.Errorf("Read(0x%04X) with no PPU attached = 0x%02X; want 0x11", vramAddr, got)
		}
	})
}

func TestDMABusGate(t *testing.T) {
	mmu := New()
	mmu.Write(0xC000, 0xAB)
	mmu.Write(0xFF80, 0xCD)

	mmu.startDMA(0xC0)

	if got := mmu.Read(0x8000); got != 0xFF {
		t.Errorf("Read(0x8000) during DMA = 0x%02X; want 0xFF", got)
	}
	if got := mmu.Read(0xFF80); got != 0xCD {
		t.Errorf("Read(0xFF80) during DMA = 0x%02X; want 0xCD (HRAM stays accessible)", got)
	}
	if got := mmu.Read(0xFE00); got != 0xFF {
		t.Errorf("Read(0xFE00) during DMA = 0x%02X; want 0xFF (only HRAM stays accessible)", got)
	}
}
