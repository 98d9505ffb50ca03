package ppu

import (
	"testing"

	"github.com/pixelclock/dmgcore/internal/intreq"
)

// helper to read mode bits from STAT (FF41)
func statMode(p *PPU) byte { return p.CPURead(0xFF41) & 0x03 }

func TestPPUModeSequenceOneLine(t *testing.T) {
	req := intreq.New()
	p := New(req)
	// Turn LCD on
	p.CPUWrite(0xFF40, 0x80)
	if m := statMode(p); m != 2 {
		t.Fatalf("expected mode 2 after LCD on, got %d", m)
	}
	// After 80 dots -> mode 3
	p.Tick(80)
	if m := statMode(p); m != 3 {
		t.Fatalf("expected mode 3 at dot 80, got %d", m)
	}
	// After 252 dots -> HBlank (mode 0)
	p.Tick(172)
	if m := statMode(p); m != 0 {
		t.Fatalf("expected mode 0 at dot 252, got %d", m)
	}
	// End of line -> next line mode 2 and LY increments
	p.Tick(456 - 252)
	if ly := p.CPURead(0xFF44); ly != 1 {
		t.Fatalf("expected LY=1, got %d", ly)
	}
	if m := statMode(p); m != 2 {
		t.Fatalf("expected mode 2 at new line, got %d", m)
	}
}

func TestPPUVBlankAndSTATOnVBlank(t *testing.T) {
	req := intreq.New()
	p := New(req)
	// Enable STAT interrupt on VBlank (bit4)
	p.CPUWrite(0xFF41, 1<<4)
	// Turn LCD on
	p.CPUWrite(0xFF40, 0x80)
	// Advance to start of LY=144: 144 lines * 456 dots
	p.Tick(144 * 456)
	if req.IF()&(1<<intreq.VBlank) == 0 {
		t.Fatalf("expected VBlank IF set at LY=144")
	}
	if req.IF()&(1<<intreq.Stat) == 0 {
		t.Fatalf("expected STAT IF set on VBlank when enabled")
	}
}

func TestSTATModeAndLYCCoincidence(t *testing.T) {
	req := intreq.New()
	p := New(req)
	// Enable STAT for HBlank (bit3), OAM (bit5), and LYC (bit6)
	p.CPUWrite(0xFF41, (1<<3)|(1<<5)|(1<<6))
	// Set LYC=2 to trigger coincidence on line 2
	p.CPUWrite(0xFF45, 2)
	// Turn LCD on
	p.CPUWrite(0xFF40, 0x80)
	// Advance to HBlank of first line
	p.Tick(80 + 172)
	if req.IF()&(1<<intreq.Stat) == 0 {
		t.Fatalf("expected STAT IRQ on HBlank when enabled")
	}
	req.WriteIF(0)
	// Finish line 0, then full line 1, then start of line 2 to update LYC
	p.Tick((456 - (80 + 172)) + 456 + 1)
	if req.IF()&(1<<intreq.Stat) == 0 {
		t.Fatalf("expected STAT IRQ on LYC coincidence at LY=2")
	}
}
