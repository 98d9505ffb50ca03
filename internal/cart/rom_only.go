package cart

// ROMOnly is the no-MBC cartridge: a single fixed 32 KiB ROM image and no
// external RAM.
type ROMOnly struct {
	rom []byte
}

func NewROMOnly(rom []byte) *ROMOnly {
	return &ROMOnly{rom: rom}
}

func (c *ROMOnly) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		return c.rom[int(addr)&(len(c.rom)-1)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		return 0xFF
	default:
		return 0xFF
	}
}

func (c *ROMOnly) Write(addr uint16, value byte) {
	// No control registers and no RAM: all writes to 0x0000-0x7FFF and
	// 0xA000-0xBFFF are dropped.
}
