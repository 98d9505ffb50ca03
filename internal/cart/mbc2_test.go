package cart

import "testing"

func TestMBC2_BankZeroCoercedToOne(t *testing.T) {
	rom := make([]byte, 0x4000*4)
	for bank := 0; bank < 4; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC2(rom)
	m.Write(0x2100, 0x00) // address bit 8 set -> ROMB register, writing 0
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank=0 should coerce to 1, got bank byte %02X", got)
	}
}

func TestMBC2_RAMIsFourBitAndMirrored(t *testing.T) {
	rom := make([]byte, 0x4000)
	m := NewMBC2(rom)
	m.Write(0x0000, 0x0A) // address bit 8 clear -> RAMG register, enable
	m.Write(0xA000, 0xFE)
	if got := m.Read(0xA000); got != 0x0E {
		t.Fatalf("RAM cell read got %02X, want low nibble only (0x0E)", got)
	}
	if got := m.Read(0xA200); got != 0x0E { // 0xA200 & 0x1FF == 0
		t.Fatalf("mirrored RAM cell at 0xA200 got %02X, want 0x0E", got)
	}
}

func TestMBC2_DisabledRAMReadsFF(t *testing.T) {
	rom := make([]byte, 0x4000)
	m := NewMBC2(rom)
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read got %02X, want 0xFF", got)
	}
}
