package cart

import "testing"

func TestMBC5_BankZeroIsLegal(t *testing.T) {
	rom := make([]byte, 0x4000*2)
	rom[0x4000] = 0xAA
	m := NewMBC5(rom, 0)
	m.Write(0x2000, 0x00) // explicit bank 0, not coerced to 1
	if got := m.Read(0x4000); got != rom[0] {
		t.Fatalf("bank0 read got %02X, want rom[0] (%02X)", got, rom[0])
	}
}

func TestMBC5_NinthBitExtendsBank(t *testing.T) {
	rom := make([]byte, 0x4000*257)
	rom[256*0x4000] = 0x42
	m := NewMBC5(rom, 0)
	m.Write(0x2000, 0x00) // bank0 low byte = 0
	m.Write(0x3000, 0x01) // bank1 bit (bit8) = 1 -> bank 256
	if got := m.Read(0x4000); got != 0x42 {
		t.Fatalf("bank 256 read got %02X, want 0x42", got)
	}
}

func TestMBC5_RAMEnableRequiresExact0A(t *testing.T) {
	rom := make([]byte, 0x4000)
	m := NewMBC5(rom, 0x2000)
	m.Write(0x0000, 0x1A) // matches low nibble like MBC1 but isn't exact 0x0A
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("RAM should stay disabled for non-exact enable value, got %02X", got)
	}
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0x55)
	if got := m.Read(0xA000); got != 0x55 {
		t.Fatalf("RAM RW after exact enable failed: got %02X", got)
	}
}
