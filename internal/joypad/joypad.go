// Package joypad holds the two 4-bit button packs and the JOYP select
// latch exposed at 0xFF00.
package joypad

import "github.com/pixelclock/dmgcore/internal/intreq"

// Button bitmasks for SetButtons. A set bit means "pressed".
const (
	Right = 1 << iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// Joypad tracks which buttons are currently held and the host-visible
// select latch that picks which 4-bit pack shows up in JOYP's low nibble.
type Joypad struct {
	buttons byte // Right/Left/.../Start bitmask, 1=pressed
	select_ byte // bits 4,5 as last written
	lower4  byte // last computed active-low nibble, for edge detection

	req *intreq.IntReq
}

// New wires a Joypad to the shared interrupt controller.
func New(req *intreq.IntReq) *Joypad {
	j := &Joypad{req: req}
	j.lower4 = 0x0F
	return j
}

// JOYP returns the byte visible at 0xFF00: bits 6-7 read as 1, bits 4-5
// reflect the select latch, bits 0-3 are the active-low selected pack(s).
func (j *Joypad) JOYP() byte {
	return 0xC0 | (j.select_ & 0x30) | j.lower4
}

// WriteSelect stores a write to JOYP's select bits and re-derives the
// exposed nibble, raising the joypad interrupt on any 1->0 transition.
func (j *Joypad) WriteSelect(v byte) {
	j.select_ = v & 0x30
	j.recompute()
}

// SetButtons replaces the pressed-button bitmask (1=pressed) and
// re-derives the exposed nibble. Any button going from released to pressed
// raises the joypad interrupt, whichever pack the select latch exposes.
func (j *Joypad) SetButtons(mask byte) {
	pressed := mask &^ j.buttons
	j.buttons = mask
	j.recompute()
	if pressed != 0 {
		j.req.SetFlag(intreq.Joypad)
	}
}

func (j *Joypad) recompute() {
	next := byte(0x0F)
	if j.select_&0x10 == 0 { // P14 low selects D-pad
		if j.buttons&Right != 0 {
			next &^= 0x01
		}
		if j.buttons&Left != 0 {
			next &^= 0x02
		}
		if j.buttons&Up != 0 {
			next &^= 0x04
		}
		if j.buttons&Down != 0 {
			next &^= 0x08
		}
	}
	if j.select_&0x20 == 0 { // P15 low selects buttons
		if j.buttons&A != 0 {
			next &^= 0x01
		}
		if j.buttons&B != 0 {
			next &^= 0x02
		}
		if j.buttons&Select != 0 {
			next &^= 0x04
		}
		if j.buttons&Start != 0 {
			next &^= 0x08
		}
	}
	falling := j.lower4 &^ next
	if falling != 0 {
		j.req.SetFlag(intreq.Joypad)
	}
	j.lower4 = next
}
