package emu

import "testing"

// buildROM returns a minimal 32KB ROM-only cartridge with a valid header,
// starting at 0x0100 with the given program bytes.
func buildROM(program []byte) []byte {
	rom := make([]byte, 32*1024)
	copy(rom[0x0100:], program)
	copy(rom[0x0134:0x0144], []byte("TESTROM"))
	rom[0x0147] = 0x00 // ROM ONLY
	rom[0x0148] = 0x00 // 32KB
	rom[0x0149] = 0x00 // no RAM
	return rom
}

func TestMachine_LoadROMAndStep(t *testing.T) {
	// 0x0100: NOP; NOP; JR -2 (spin in place)
	rom := buildROM([]byte{0x00, 0x00, 0x18, 0xFE})

	m := New(Config{})
	if err := m.LoadROM(rom, nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := m.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestMachine_RunUntilFrameAdvancesFramebuffer(t *testing.T) {
	rom := buildROM([]byte{0x18, 0xFE}) // JR -2, spins forever

	m := New(Config{})
	if err := m.LoadROM(rom, nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if err := m.RunUntilFrame(); err != nil {
		t.Fatalf("RunUntilFrame: %v", err)
	}

	fb := m.Framebuffer()
	if fb == nil {
		t.Fatalf("expected non-nil framebuffer after a frame")
	}
}

func TestMachine_DecodeErrorOnIllegalOpcode(t *testing.T) {
	rom := buildROM([]byte{0xD3}) // illegal primary opcode

	m := New(Config{})
	if err := m.LoadROM(rom, nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if _, err := m.Step(); err == nil {
		t.Fatalf("expected a decode error stepping onto an illegal opcode")
	}
}

func TestMachine_SetButtonsDoesNotPanicWithoutCartridge(t *testing.T) {
	rom := buildROM([]byte{0x00})
	m := New(Config{})
	if err := m.LoadROM(rom, nil); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	m.SetButtons(Buttons{A: true, Up: true})
	if _, err := m.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
}
