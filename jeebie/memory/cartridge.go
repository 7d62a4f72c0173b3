package memory

import (
	"fmt"
	"log/slog"

	"github.com/kolibre-dev/swiftboy/jeebie/bit"
)

const titleLength = 11

const (
	titleAddress          = 0x134
	cgbFlagAddress        = 0x143
	cartridgeTypeAddress  = 0x147
	romSizeAddress        = 0x148
	ramSizeAddress        = 0x149
	versionNumberAddress  = 0x14C
	headerChecksumAddress = 0x14D
	globalChecksumAddress = 0x14E
)

// MBCType identifies which bank-controller variant a cartridge requires, per
// spec.md §4.9's "polymorphic abstraction (NoMapper, MBC1, extensible)".
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC1MultiType // multicart MBC1 variant; never produced by decodeCartType, see DESIGN.md
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// Cartridge owns the raw ROM image plus the header fields the bus needs to
// pick and construct an MBC.
type Cartridge struct {
	data []byte

	title          string
	cgbFlag        byte
	headerChecksum uint8
	globalChecksum uint16
	version        uint8
	cartType       uint8
	romSizeCode    uint8
	ramSizeCode    uint8

	mbcType      MBCType
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	ramBankCount uint8

	headerChecksumValid bool
}

// NewCartridge creates an empty cartridge, useful only for debugging purposes
// (an MMU with no cartridge loaded).
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:    make([]byte, 0x10000),
		mbcType: NoMBCType,
	}
}

// NewCartridgeWithData parses the header of a raw ROM image and returns the
// resulting Cartridge. Per spec.md §7, a header checksum mismatch is logged
// as a warning and nothing more - some real-world dumps have a wrong checksum
// and still run - but an unsupported mapper, an unsupported ROM/RAM size
// code, or a ROM size that disagrees with the image itself are cartridge load
// errors: they're returned here, surfaced at load, so the core never starts.
func NewCartridgeWithData(raw []byte) (*Cartridge, error) {
	cart := &Cartridge{
		data: make([]byte, len(raw)),
	}
	copy(cart.data, raw)

	if len(raw) <= int(globalChecksumAddress)+1 {
		return nil, fmt.Errorf("%w: image is %d bytes, too small to contain a header", ErrROMSizeMismatch, len(raw))
	}

	cart.title = cleanGameboyTitle(raw[titleAddress : titleAddress+titleLength])
	cart.cgbFlag = raw[cgbFlagAddress]
	cart.cartType = raw[cartridgeTypeAddress]
	cart.romSizeCode = raw[romSizeAddress]
	cart.ramSizeCode = raw[ramSizeAddress]
	cart.version = raw[versionNumberAddress]
	cart.headerChecksum = raw[headerChecksumAddress]
	cart.globalChecksum = bit.Combine(raw[globalChecksumAddress], raw[globalChecksumAddress+1])

	mbcType, battery, rtc, rumble := decodeCartType(cart.cartType)
	if mbcType == MBCUnknownType {
		return nil, fmt.Errorf("%w: cartridge type code $%02X", ErrUnsupportedMapper, cart.cartType)
	}
	cart.mbcType, cart.hasBattery, cart.hasRTC, cart.hasRumble = mbcType, battery, rtc, rumble

	ramBanks, err := ramBankCountForCode(cart.ramSizeCode)
	if err != nil {
		return nil, err
	}
	cart.ramBankCount = ramBanks

	cart.headerChecksumValid = computeHeaderChecksum(raw) == cart.headerChecksum
	if !cart.headerChecksumValid {
		slog.Warn("cartridge header checksum mismatch", "title", cart.title)
	}

	if expected := romSizeForCode(cart.romSizeCode); expected != 0 && expected != len(raw) {
		return nil, fmt.Errorf("%w: header expects %d bytes, image is %d bytes", ErrROMSizeMismatch, expected, len(raw))
	}

	slog.Info("cartridge loaded", "title", cart.title, "mbc", cart.mbcType, "rom_bytes", len(raw), "ram_banks", cart.ramBankCount)

	return cart, nil
}

// computeHeaderChecksum reproduces the DMG boot ROM's header checksum: the
// running sum x = x - byte - 1 over $0134-$014C.
func computeHeaderChecksum(raw []byte) uint8 {
	var x uint8
	for i := 0x134; i <= 0x14C; i++ {
		x = x - raw[i] - 1
	}
	return x
}

// romSizeForCode returns the ROM size in bytes for a $0148 code, per spec.md
// §4.9: size = 0x8000 << code.
func romSizeForCode(code uint8) int {
	return 0x8000 << code
}

// ramBankCountForCode implements spec.md §4.9's RAM size table
// (00->0, 02->8KiB, 03->32KiB, 04->128KiB, 05->64KiB), in 8KiB banks. An
// unrecognized code is a cartridge load error per spec.md §7, not a silent
// zero-bank fallback.
func ramBankCountForCode(code uint8) (uint8, error) {
	switch code {
	case 0x00:
		return 0, nil
	case 0x02:
		return 1, nil
	case 0x03:
		return 4, nil
	case 0x04:
		return 16, nil
	case 0x05:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: RAM size code $%02X", ErrUnsupportedSizeCode, code)
	}
}

// decodeCartType maps the $0147 cartridge-type byte to an MBC selection plus
// the battery/RTC/rumble flags that accompany it. MBC1MultiType is never
// produced here: detecting the MBC1M multicart variant requires scanning the
// ROM body for repeated Nintendo logos at each 0x40000 boundary, which no
// SwiftBoy component currently needs (documented in DESIGN.md). An
// unrecognized type code comes back as MBCUnknownType; the caller turns that
// into ErrUnsupportedMapper.
func decodeCartType(code uint8) (mbc MBCType, battery, rtc, rumble bool) {
	switch code {
	case 0x00:
		return NoMBCType, false, false, false
	case 0x01:
		return MBC1Type, false, false, false
	case 0x02:
		return MBC1Type, false, false, false
	case 0x03:
		return MBC1Type, true, false, false
	case 0x05:
		return MBC2Type, false, false, false
	case 0x06:
		return MBC2Type, true, false, false
	case 0x08, 0x09:
		return NoMBCType, code == 0x09, false, false
	case 0x0F:
		return MBC3Type, true, true, false
	case 0x10:
		return MBC3Type, true, true, false
	case 0x11:
		return MBC3Type, false, false, false
	case 0x12:
		return MBC3Type, false, false, false
	case 0x13:
		return MBC3Type, true, false, false
	case 0x19:
		return MBC5Type, false, false, false
	case 0x1A:
		return MBC5Type, false, false, false
	case 0x1B:
		return MBC5Type, true, false, false
	case 0x1C:
		return MBC5Type, false, false, true
	case 0x1D:
		return MBC5Type, false, false, true
	case 0x1E:
		return MBC5Type, true, false, true
	default:
		slog.Warn("unrecognized cartridge type, treating as unsupported", "code", fmt.Sprintf("0x%02X", code))
		return MBCUnknownType, false, false, false
	}
}

// ReadByte reads a byte at the specified address. Does not check bounds; the
// caller must ensure the address is valid for the cartridge.
func (c *Cartridge) ReadByte(addr uint16) uint8 {
	return c.data[addr]
}

// Title returns the sanitized game title from the header.
func (c *Cartridge) Title() string {
	return c.title
}
