package joypad

import (
	"testing"

	"github.com/pixelclock/dmgcore/internal/intreq"
)

func TestUnselectedReadsAllOnes(t *testing.T) {
	j := New(intreq.New())
	if got := j.JOYP(); got != 0xCF {
		t.Fatalf("JOYP() = %#02x, want 0xCF with nothing selected or pressed", got)
	}
}

func TestDPadSelectionReflectsPressedBits(t *testing.T) {
	j := New(intreq.New())
	j.WriteSelect(0x20) // P14 low: select D-pad (bit4 clear), P15 set
	j.SetButtons(Right | Up)
	got := j.JOYP() & 0x0F
	want := byte(0x0F) &^ 0x01 &^ 0x04
	if got != want {
		t.Fatalf("JOYP low nibble = %#02x, want %#02x", got, want)
	}
}

func TestPressRaisesInterruptOnFallingEdge(t *testing.T) {
	req := intreq.New()
	req.WriteIE(1 << intreq.Joypad)
	j := New(req)
	j.WriteSelect(0x20)
	if req.Pending() {
		t.Fatalf("interrupt pending before any press")
	}
	j.SetButtons(A)
	if !req.Pending() {
		t.Fatalf("expected joypad interrupt on press edge")
	}
}
