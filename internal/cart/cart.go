// Package cart implements cartridge header parsing and the bank-switching
// state machines (no-MBC, MBC1, MBC2, MBC3, MBC5) that translate
// CPU-visible writes into ROM/RAM window offsets.
package cart

// Cartridge is the minimal interface the MMU needs for ROM/RAM banking.
// Addresses passed in are full 16-bit CPU addresses; implementations are
// responsible for routing 0x0000-0x7FFF (ROM + control registers) and
// 0xA000-0xBFFF (external RAM) themselves.
type Cartridge interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

// BatteryBacked is implemented by cartridges that carry persistent external
// RAM. It is a distinct, optional interface: ROM-only cartridges and
// MBC variants without RAM don't implement it.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// New parses the header and constructs the matching MBC implementation.
// Header parsing failures (short ROM, unsupported type/size code, CGB-only
// tag) are returned as *HeaderError.
func New(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	switch h.CartType {
	case 0x00:
		return NewROMOnly(rom), nil
	case 0x01, 0x02, 0x03:
		return NewMBC1(rom, h.RAMSizeBytes), nil
	case 0x05, 0x06:
		return NewMBC2(rom), nil
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return NewMBC3(rom, h.RAMSizeBytes), nil
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return NewMBC5(rom, h.RAMSizeBytes), nil
	default:
		return nil, &HeaderError{Offset: 0x147, Reason: "unsupported cartridge type code"}
	}
}
