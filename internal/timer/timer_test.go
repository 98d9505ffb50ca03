package timer

import (
	"testing"

	"github.com/pixelclock/dmgcore/internal/intreq"
)

func TestOverflowReloadsFromTMAndRequestsInterrupt(t *testing.T) {
	req := intreq.New()
	tm := New(req)
	tm.WriteTIMA(0xFF)
	tm.WriteTMA(0x20)
	tm.WriteTAC(0b0101) // enabled, period-4 select (bit3)

	for i := 0; i < 4; i++ {
		tm.Tick(1)
	}

	if tm.TIMA() != 0x20 {
		t.Fatalf("TIMA = %#02x, want 0x20", tm.TIMA())
	}
	req.WriteIE(1 << intreq.Timer)
	if !req.Pending() {
		t.Fatalf("timer interrupt not flagged after overflow")
	}
}

func TestDIVWriteResetsCounter(t *testing.T) {
	req := intreq.New()
	tm := New(req)
	tm.Tick(100)
	if tm.DIV() == 0 {
		t.Fatalf("expected DIV to have advanced")
	}
	tm.WriteDIV()
	if tm.DIV() != 0 {
		t.Fatalf("DIV = %#02x after write, want 0", tm.DIV())
	}
}

func TestCounterAdvancesFourTCyclesPerMCycle(t *testing.T) {
	req := intreq.New()
	tm := New(req)
	before := tm.counter
	tm.Tick(10)
	after := tm.counter
	if after-before != 40 {
		t.Fatalf("counter advanced by %d, want 40", after-before)
	}
}

func TestDisabledTimerNeverIncrementsTIMA(t *testing.T) {
	req := intreq.New()
	tm := New(req)
	tm.WriteTAC(0b0001) // select bit3, enable bit clear
	for i := 0; i < 1000; i++ {
		tm.Tick(1)
	}
	if tm.TIMA() != 0 {
		t.Fatalf("TIMA = %#02x, want 0 while timer disabled", tm.TIMA())
	}
}
