package memory

// dmaCycles is the M-cycle window the bus stays gated for after an OAM DMA
// transfer, per spec.md §4.5. The transfer itself is performed instantly by
// the triggering write (see MMU.Write); this type only tracks how long the
// "only HRAM accessible" gate stays up afterward.
const dmaCycles = 160

// dma tracks an in-progress OAM DMA window.
type dma struct {
	cyclesRemaining int
	lastSource      byte // high byte of the source address, read back from $FF46
}

// start begins a new transfer window; sourceHigh is the value written to
// $FF46.
func (d *dma) start(sourceHigh byte) {
	d.lastSource = sourceHigh
	d.cyclesRemaining = dmaCycles
}

// tick advances the window by cycles M-cycles.
func (d *dma) tick(cycles int) {
	if d.cyclesRemaining <= 0 {
		return
	}
	d.cyclesRemaining -= cycles
	if d.cyclesRemaining < 0 {
		d.cyclesRemaining = 0
	}
}

// active reports whether the bus gate should currently be up.
func (d *dma) active() bool {
	return d.cyclesRemaining > 0
}
