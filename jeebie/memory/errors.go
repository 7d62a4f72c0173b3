package memory

import "errors"

// Cartridge load errors per spec.md §7: these are surfaced at construction
// time, never as panics, so the core never starts on a cartridge it can't
// actually run. Header checksum mismatches are deliberately not among them
// (see NewCartridgeWithData) - real dumps sometimes carry a wrong checksum
// and still run fine.
var (
	ErrUnsupportedMapper   = errors.New("unsupported cartridge mapper")
	ErrUnsupportedSizeCode = errors.New("unsupported cartridge ROM/RAM size code")
	ErrROMSizeMismatch     = errors.New("cartridge ROM size disagrees with image")
)
