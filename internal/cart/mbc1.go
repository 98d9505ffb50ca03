package cart

// MBC1 implements the standard 5-bit/2-bit banking scheme: bank1 selects
// the switchable ROM window directly, bank2 either extends the ROM bank
// number or selects a RAM bank depending on mode.
type MBC1 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	bank1      byte // 5 bits, coerced to 1 when written as 0
	bank2      byte // 2 bits
	mode       bool

	lowerOffset, upperOffset, ramOffset int
}

func NewMBC1(rom []byte, ramSize int) *MBC1 {
	m := &MBC1{rom: rom, bank1: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.recompute()
	return m
}

func (m *MBC1) recompute() {
	upperBank := (m.bank2 << 5) | m.bank1
	var lowerBank, ramBank byte
	if m.mode {
		lowerBank = m.bank2 << 5
		ramBank = m.bank2
	}
	m.lowerOffset = int(lowerBank) * 0x4000
	m.upperOffset = int(upperBank) * 0x4000
	m.ramOffset = int(ramBank) * 0x2000
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		return m.rom[(m.lowerOffset|int(addr&0x3FFF))&(len(m.rom)-1)]
	case addr < 0x8000:
		return m.rom[(m.upperOffset|int(addr&0x3FFF))&(len(m.rom)-1)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[(m.ramOffset|int(addr&0x1FFF))&(len(m.ram)-1)]
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		bank1 := value & 0x1F
		if bank1 == 0 {
			bank1 = 1
		}
		m.bank1 = bank1
		m.recompute()
	case addr < 0x6000:
		m.bank2 = value & 0x03
		m.recompute()
	case addr < 0x8000:
		m.mode = value&0x01 != 0
		m.recompute()
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		m.ram[(m.ramOffset|int(addr&0x1FFF))&(len(m.ram)-1)] = value
	}
}

func (m *MBC1) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC1) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}
