// Package timer implements the DIV/TIMA divider chain: a free-running
// 16-bit internal counter that DIV views the high byte of, and a
// TAC-selected falling-edge detector that drives TIMA.
package timer

import "github.com/pixelclock/dmgcore/internal/intreq"

// bit within the internal counter that TAC's period select watches for a
// falling edge, indexed by TAC bits 1..0.
var selectBit = [4]uint{9, 3, 5, 7}

// Timer holds the divider chain and TIMA/TMA/TAC registers.
type Timer struct {
	counter uint16 // internal 16-bit divider; DIV = counter>>8
	tima    byte
	tma     byte
	tac     byte // low 3 bits meaningful; bit2 enable, bits1..0 select

	req *intreq.IntReq
}

// New wires a Timer to the shared interrupt controller.
func New(req *intreq.IntReq) *Timer {
	return &Timer{req: req}
}

// DIV returns the divider register (counter's high byte).
func (t *Timer) DIV() byte { return byte(t.counter >> 8) }

// WriteDIV resets the internal counter and DIV to zero. Because this can
// clear a bit that was feeding a falling edge, it can itself trigger a
// TIMA increment.
func (t *Timer) WriteDIV() {
	before := t.input()
	t.counter = 0
	if before && !t.input() {
		t.increment()
	}
}

// TIMA returns the timer counter register.
func (t *Timer) TIMA() byte { return t.tima }

// WriteTIMA stores a direct CPU write to TIMA.
func (t *Timer) WriteTIMA(v byte) { t.tima = v }

// TMA returns the timer modulo register.
func (t *Timer) TMA() byte { return t.tma }

// WriteTMA stores a direct CPU write to TMA.
func (t *Timer) WriteTMA(v byte) { t.tma = v }

// TAC returns the timer control register, with unused bits read as 1.
func (t *Timer) TAC() byte { return 0xF8 | (t.tac & 0x07) }

// WriteTAC stores a CPU write to TAC. Changing the enable bit or the
// period select can itself produce a falling edge, same as DIV resets.
func (t *Timer) WriteTAC(v byte) {
	before := t.input()
	t.tac = v & 0x07
	if before && !t.input() {
		t.increment()
	}
}

// input reports the current state of the TAC-gated timer clock input.
func (t *Timer) input() bool {
	if t.tac&0x04 == 0 {
		return false
	}
	bit := selectBit[t.tac&0x03]
	return (t.counter>>bit)&1 != 0
}

// Tick advances the internal counter by m m-cycles (each m-cycle is 4
// t-cycles, so the counter advances by 4*m), raising the Timer interrupt
// and reloading TIMA from TMA on every 0xFF->0x00 wrap.
func (t *Timer) Tick(m int) {
	for i := 0; i < m; i++ {
		for step := 0; step < 4; step++ {
			before := t.input()
			t.counter++
			if before && !t.input() {
				t.increment()
			}
		}
	}
}

func (t *Timer) increment() {
	if t.tima == 0xFF {
		t.tima = t.tma
		t.req.SetFlag(intreq.Timer)
		return
	}
	t.tima++
}
