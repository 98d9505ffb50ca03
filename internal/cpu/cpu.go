// Package cpu implements the Sharp SM83 instruction set: fetch/decode/
// execute, flag computation, HALT, and fixed-priority interrupt dispatch.
package cpu

import (
	"github.com/pixelclock/dmgcore/internal/intreq"
	"github.com/pixelclock/dmgcore/internal/mmu"
)

// CPU holds the SM83 register file and drives the MMU and shared interrupt
// controller.
type CPU struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	IME    bool
	halted bool
	// EI's effect is delayed until after the instruction following it: EI
	// sets eiPending, the next Step() promotes that to eiArmed (without
	// touching IME) before executing its instruction, and that same Step()
	// sets IME once its execute() has run.
	eiPending bool
	eiArmed   bool

	mmu *mmu.MMU
	req *intreq.IntReq
}

// New creates a CPU wired to the shared bus and interrupt controller.
func New(m *mmu.MMU, req *intreq.IntReq) *CPU {
	return &CPU{mmu: m, req: req, SP: 0xFFFE, PC: 0x0000}
}

// SetPC allows tests or a boot stub to set the program counter.
func (c *CPU) SetPC(pc uint16) { c.PC = pc }

// MMU exposes the underlying bus for tests/tools.
func (c *CPU) MMU() *mmu.MMU { return c.mmu }

// ResetNoBoot sets registers to typical DMG post-boot state, for running
// without a boot ROM.
func (c *CPU) ResetNoBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.IME = false
	c.halted = false
	c.eiPending = false
}

const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

func (c *CPU) setZNHC(z, n, h, carry bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if carry {
		f |= flagC
	}
	c.F = f
}

func (c *CPU) add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	z = res == 0
	n = false
	h = ((a & 0x0F) + (b & 0x0F)) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) adc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	z = res == 0
	n = false
	h = ((a & 0x0F) + (b & 0x0F) + ci) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) sub8(a, b byte) (res byte, z, n, h, cy bool) {
	r := int16(a) - int16(b)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < (b & 0x0F)
	cy = int16(a) < int16(b)
	return
}

func (c *CPU) sbc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := int16(a) - int16(b) - int16(ci)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < ((b & 0x0F) + ci)
	cy = int16(a) < int16(b)+int16(ci)
	return
}

func (c *CPU) and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	z = res == 0
	n = false
	h = true
	cy = false
	return
}

func (c *CPU) xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	z = res == 0
	n = false
	h = false
	cy = false
	return
}

func (c *CPU) or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	z = res == 0
	n = false
	h = false
	cy = false
	return
}

func (c *CPU) cp8(a, b byte) (z, n, h, cy bool) {
	_, z, n, h, cy = c.sub8(a, b)
	return
}

func (c *CPU) read8(addr uint16) byte     { return c.mmu.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.mmu.Write(addr, v) }

func (c *CPU) fetch8() byte {
	b := c.read8(c.PC)
	c.PC++
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | (hi << 8)
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.read8(addr))
	hi := uint16(c.read8(addr + 1))
	return lo | (hi << 8)
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v&0x00FF))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) getAF() uint16  { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) getBC() uint16  { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) getDE() uint16  { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) getHL() uint16  { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

func (c *CPU) push16(v uint16) {
	c.SP -= 2
	c.write16(c.SP, v)
}

func (c *CPU) pop16() uint16 {
	v := c.read16(c.SP)
	c.SP += 2
	return v
}

// serviceInterrupt dispatches the lowest-numbered (highest-priority) pending interrupt, if
// any, pushing PC and jumping to its vector. Returns the m-cycle cost (5)
// and true if one was dispatched.
func (c *CPU) serviceInterrupt() (int, bool) {
	bit, ok := c.req.Lowest()
	if !ok {
		return 0, false
	}
	c.req.Clear(bit)
	c.halted = false
	c.IME = false
	c.push16(c.PC)
	c.PC = intreq.Vectors[bit]
	return 5, true
}

// Step executes one instruction (or one interrupt dispatch, or one HALT
// wait cycle) and returns the m-cycles consumed. A DecodeError is returned,
// with zero cycles, for the eleven undefined primary opcodes and for STOP.
func (c *CPU) Step() (int, error) {
	if c.eiPending {
		c.eiPending = false
		c.eiArmed = true
	}

	if c.halted {
		if c.IME {
			if cyc, dispatched := c.serviceInterrupt(); dispatched {
				return cyc, nil
			}
			return 1, nil
		} else if c.req.Pending() {
			c.halted = false
		} else {
			return 1, nil
		}
	}

	if c.IME {
		if cyc, dispatched := c.serviceInterrupt(); dispatched {
			return cyc, nil
		}
	}

	cycles, err := c.execute()
	if c.eiArmed {
		c.IME = true
		c.eiArmed = false
	}
	return cycles, err
}

func (c *CPU) execute() (int, error) {
	opPC := c.PC
	op := c.fetch8()
	switch op {
	case 0x00: // NOP
		return 1, nil

	// the eleven undefined primary opcodes
	case 0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD:
		return 0, &DecodeError{Opcode: op, PC: opPC}
	// STOP: not emulated as a low-power mode
	case 0x10:
		return 0, &DecodeError{Opcode: op, PC: opPC}

	// LD r, d8
	case 0x06:
		c.B = c.fetch8()
		return 2, nil
	case 0x0E:
		c.C = c.fetch8()
		return 2, nil
	case 0x16:
		c.D = c.fetch8()
		return 2, nil
	case 0x1E:
		c.E = c.fetch8()
		return 2, nil
	case 0x26:
		c.H = c.fetch8()
		return 2, nil
	case 0x2E:
		c.L = c.fetch8()
		return 2, nil
	case 0x3E:
		c.A = c.fetch8()
		return 2, nil

	// LD r,r' and LD (HL),r / LD r,(HL)
	case 0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47,
		0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F,
		0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57,
		0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5E, 0x5F,
		0x60, 0x61, 0x62, 0x63, 0x64, 0x65, 0x66, 0x67,
		0x68, 0x69, 0x6A, 0x6B, 0x6C, 0x6D, 0x6E, 0x6F,
		0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x77,
		0x78, 0x79, 0x7A, 0x7B, 0x7C, 0x7D, 0x7E, 0x7F:
		d := (op >> 3) & 7
		s := op & 7
		val := c.getReg(s)
		c.setReg(d, val)
		if d == 6 || s == 6 {
			return 2, nil
		}
		return 1, nil

	// 16-bit loads
	case 0x01:
		c.setBC(c.fetch16())
		return 3, nil
	case 0x11:
		c.setDE(c.fetch16())
		return 3, nil
	case 0x21:
		c.setHL(c.fetch16())
		return 3, nil
	case 0x31:
		c.SP = c.fetch16()
		return 3, nil
	case 0x08: // LD (a16),SP
		addr := c.fetch16()
		c.write16(addr, c.SP)
		return 5, nil

	case 0x36: // LD (HL),d8
		v := c.fetch8()
		c.write8(c.getHL(), v)
		return 3, nil

	case 0x02:
		c.write8(c.getBC(), c.A)
		return 2, nil
	case 0x12:
		c.write8(c.getDE(), c.A)
		return 2, nil
	case 0x0A:
		c.A = c.read8(c.getBC())
		return 2, nil
	case 0x1A:
		c.A = c.read8(c.getDE())
		return 2, nil

	case 0x22: // LD (HL+),A
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl + 1)
		return 2, nil
	case 0x2A: // LD A,(HL+)
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl + 1)
		return 2, nil
	case 0x32: // LD (HL-),A
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl - 1)
		return 2, nil
	case 0x3A: // LD A,(HL-)
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl - 1)
		return 2, nil

	case 0xE0: // LDH (FF00+n),A
		n := uint16(c.fetch8())
		c.write8(0xFF00+n, c.A)
		return 3, nil
	case 0xF0: // LDH A,(FF00+n)
		n := uint16(c.fetch8())
		c.A = c.read8(0xFF00 + n)
		return 3, nil

	case 0x07: // RLCA
		cval := (c.A >> 7) & 1
		c.A = (c.A << 1) | cval
		c.setZNHC(false, false, false, cval == 1)
		return 1, nil
	case 0x0F: // RRCA
		cval := c.A & 1
		c.A = (c.A >> 1) | (cval << 7)
		c.setZNHC(false, false, false, cval == 1)
		return 1, nil
	case 0x17: // RLA
		cval := (c.A >> 7) & 1
		carry := byte(0)
		if (c.F & flagC) != 0 {
			carry = 1
		}
		c.A = (c.A << 1) | carry
		c.setZNHC(false, false, false, cval == 1)
		return 1, nil
	case 0x1F: // RRA
		cval := c.A & 1
		carry := byte(0)
		if (c.F & flagC) != 0 {
			carry = 1
		}
		c.A = (c.A >> 1) | (carry << 7)
		c.setZNHC(false, false, false, cval == 1)
		return 1, nil
	case 0x27: // DAA
		a := c.A
		cf := (c.F & flagC) != 0
		if (c.F & flagN) == 0 {
			if cf || a > 0x99 {
				a += 0x60
				cf = true
			}
			if (c.F&flagH) != 0 || (a&0x0F) > 9 {
				a += 0x06
			}
		} else {
			if cf {
				a -= 0x60
			}
			if (c.F & flagH) != 0 {
				a -= 0x06
			}
		}
		c.A = a
		c.setZNHC(c.A == 0, (c.F&flagN) != 0, false, cf)
		return 1, nil
	case 0x2F: // CPL
		c.A = ^c.A
		c.F = (c.F & (flagZ | flagC)) | flagN | flagH
		return 1, nil
	case 0x37: // SCF
		c.F = (c.F & flagZ) | flagC
		return 1, nil
	case 0x3F: // CCF
		if (c.F & flagC) != 0 {
			c.F = c.F &^ flagC
		} else {
			c.F |= flagC
		}
		c.F &^= flagN | flagH
		c.F &= flagZ | flagC
		return 1, nil

	case 0xE2: // LD (FF00+C),A
		c.write8(0xFF00+uint16(c.C), c.A)
		return 2, nil
	case 0xF2: // LD A,(FF00+C)
		c.A = c.read8(0xFF00 + uint16(c.C))
		return 2, nil

	case 0x04:
		c.B = c.incReg(c.B)
		return 1, nil
	case 0x0C:
		c.C = c.incReg(c.C)
		return 1, nil
	case 0x14:
		c.D = c.incReg(c.D)
		return 1, nil
	case 0x1C:
		c.E = c.incReg(c.E)
		return 1, nil
	case 0x24:
		c.H = c.incReg(c.H)
		return 1, nil
	case 0x2C:
		c.L = c.incReg(c.L)
		return 1, nil
	case 0x3C:
		c.A = c.incReg(c.A)
		return 1, nil
	case 0x34: // INC (HL)
		addr := c.getHL()
		c.write8(addr, c.incReg(c.read8(addr)))
		return 3, nil

	case 0x05:
		c.B = c.decReg(c.B)
		return 1, nil
	case 0x0D:
		c.C = c.decReg(c.C)
		return 1, nil
	case 0x15:
		c.D = c.decReg(c.D)
		return 1, nil
	case 0x1D:
		c.E = c.decReg(c.E)
		return 1, nil
	case 0x25:
		c.H = c.decReg(c.H)
		return 1, nil
	case 0x2D:
		c.L = c.decReg(c.L)
		return 1, nil
	case 0x3D:
		c.A = c.decReg(c.A)
		return 1, nil
	case 0x35: // DEC (HL)
		addr := c.getHL()
		c.write8(addr, c.decReg(c.read8(addr)))
		return 3, nil

	// ADD/ADC/SUB/SBC/AND/XOR/OR/CP with registers
	case 0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x87:
		r, z, n, h, cy := c.add8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 1, nil
	case 0x88, 0x89, 0x8A, 0x8B, 0x8C, 0x8D, 0x8F:
		r, z, n, h, cy := c.adc8(c.A, c.getReg(op&7), (c.F&flagC) != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 1, nil
	case 0x90, 0x91, 0x92, 0x93, 0x94, 0x95, 0x97:
		r, z, n, h, cy := c.sub8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 1, nil
	case 0x98, 0x99, 0x9A, 0x9B, 0x9C, 0x9D, 0x9F:
		r, z, n, h, cy := c.sbc8(c.A, c.getReg(op&7), (c.F&flagC) != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 1, nil
	case 0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA7:
		r, z, n, h, cy := c.and8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 1, nil
	case 0xA8, 0xA9, 0xAA, 0xAB, 0xAC, 0xAD, 0xAF:
		r, z, n, h, cy := c.xor8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 1, nil
	case 0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB7:
		r, z, n, h, cy := c.or8(c.A, c.getReg(op&7))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 1, nil
	case 0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBF:
		z, n, h, cy := c.cp8(c.A, c.getReg(op&7))
		c.setZNHC(z, n, h, cy)
		return 1, nil

	// ALU with (HL)
	case 0x86:
		r, z, n, h, cy := c.add8(c.A, c.read8(c.getHL()))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0x8E:
		r, z, n, h, cy := c.adc8(c.A, c.read8(c.getHL()), (c.F&flagC) != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0x96:
		r, z, n, h, cy := c.sub8(c.A, c.read8(c.getHL()))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0x9E:
		r, z, n, h, cy := c.sbc8(c.A, c.read8(c.getHL()), (c.F&flagC) != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0xA6:
		r, z, n, h, cy := c.and8(c.A, c.read8(c.getHL()))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0xAE:
		r, z, n, h, cy := c.xor8(c.A, c.read8(c.getHL()))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0xB6:
		r, z, n, h, cy := c.or8(c.A, c.read8(c.getHL()))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0xBE:
		z, n, h, cy := c.cp8(c.A, c.read8(c.getHL()))
		c.setZNHC(z, n, h, cy)
		return 2, nil

	// ALU immediate
	case 0xC6:
		r, z, n, h, cy := c.add8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0xCE:
		r, z, n, h, cy := c.adc8(c.A, c.fetch8(), (c.F&flagC) != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0xD6:
		r, z, n, h, cy := c.sub8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0xDE:
		r, z, n, h, cy := c.sbc8(c.A, c.fetch8(), (c.F&flagC) != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0xE6:
		r, z, n, h, cy := c.and8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0xEE:
		r, z, n, h, cy := c.xor8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0xF6:
		r, z, n, h, cy := c.or8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2, nil
	case 0xFE:
		z, n, h, cy := c.cp8(c.A, c.fetch8())
		c.setZNHC(z, n, h, cy)
		return 2, nil

	case 0xEA: // LD (a16),A
		addr := c.fetch16()
		c.write8(addr, c.A)
		return 4, nil
	case 0xFA: // LD A,(a16)
		addr := c.fetch16()
		c.A = c.read8(addr)
		return 4, nil

	case 0xC3: // JP a16
		addr := c.fetch16()
		c.PC = addr
		return 4, nil
	case 0xE9: // JP (HL)
		c.PC = c.getHL()
		return 1, nil
	case 0x18: // JR r8
		off := int8(c.fetch8())
		c.PC = uint16(int32(c.PC) + int32(off))
		return 3, nil

	case 0x20: // JR NZ
		off := int8(c.fetch8())
		if (c.F & flagZ) == 0 {
			c.PC = uint16(int32(c.PC) + int32(off))
			return 3, nil
		}
		return 2, nil
	case 0x28: // JR Z
		off := int8(c.fetch8())
		if (c.F & flagZ) != 0 {
			c.PC = uint16(int32(c.PC) + int32(off))
			return 3, nil
		}
		return 2, nil
	case 0x30: // JR NC
		off := int8(c.fetch8())
		if (c.F & flagC) == 0 {
			c.PC = uint16(int32(c.PC) + int32(off))
			return 3, nil
		}
		return 2, nil
	case 0x38: // JR C
		off := int8(c.fetch8())
		if (c.F & flagC) != 0 {
			c.PC = uint16(int32(c.PC) + int32(off))
			return 3, nil
		}
		return 2, nil

	case 0xCD: // CALL a16
		addr := c.fetch16()
		c.push16(c.PC)
		c.PC = addr
		return 6, nil
	case 0xC9: // RET
		c.PC = c.pop16()
		return 4, nil
	case 0xD9: // RETI
		c.PC = c.pop16()
		c.IME = true
		return 4, nil

	case 0xC7:
		c.push16(c.PC)
		c.PC = 0x00
		return 4, nil
	case 0xCF:
		c.push16(c.PC)
		c.PC = 0x08
		return 4, nil
	case 0xD7:
		c.push16(c.PC)
		c.PC = 0x10
		return 4, nil
	case 0xDF:
		c.push16(c.PC)
		c.PC = 0x18
		return 4, nil
	case 0xE7:
		c.push16(c.PC)
		c.PC = 0x20
		return 4, nil
	case 0xEF:
		c.push16(c.PC)
		c.PC = 0x28
		return 4, nil
	case 0xF7:
		c.push16(c.PC)
		c.PC = 0x30
		return 4, nil
	case 0xFF:
		c.push16(c.PC)
		c.PC = 0x38
		return 4, nil

	case 0xC4: // CALL NZ
		addr := c.fetch16()
		if (c.F & flagZ) == 0 {
			c.push16(c.PC)
			c.PC = addr
			return 6, nil
		}
		return 3, nil
	case 0xCC: // CALL Z
		addr := c.fetch16()
		if (c.F & flagZ) != 0 {
			c.push16(c.PC)
			c.PC = addr
			return 6, nil
		}
		return 3, nil
	case 0xD4: // CALL NC
		addr := c.fetch16()
		if (c.F & flagC) == 0 {
			c.push16(c.PC)
			c.PC = addr
			return 6, nil
		}
		return 3, nil
	case 0xDC: // CALL C
		addr := c.fetch16()
		if (c.F & flagC) != 0 {
			c.push16(c.PC)
			c.PC = addr
			return 6, nil
		}
		return 3, nil

	case 0xC0: // RET NZ
		if (c.F & flagZ) == 0 {
			c.PC = c.pop16()
			return 5, nil
		}
		return 2, nil
	case 0xC8: // RET Z
		if (c.F & flagZ) != 0 {
			c.PC = c.pop16()
			return 5, nil
		}
		return 2, nil
	case 0xD0: // RET NC
		if (c.F & flagC) == 0 {
			c.PC = c.pop16()
			return 5, nil
		}
		return 2, nil
	case 0xD8: // RET C
		if (c.F & flagC) != 0 {
			c.PC = c.pop16()
			return 5, nil
		}
		return 2, nil

	case 0xC2: // JP NZ
		addr := c.fetch16()
		if (c.F & flagZ) == 0 {
			c.PC = addr
			return 4, nil
		}
		return 3, nil
	case 0xCA: // JP Z
		addr := c.fetch16()
		if (c.F & flagZ) != 0 {
			c.PC = addr
			return 4, nil
		}
		return 3, nil
	case 0xD2: // JP NC
		addr := c.fetch16()
		if (c.F & flagC) == 0 {
			c.PC = addr
			return 4, nil
		}
		return 3, nil
	case 0xDA: // JP C
		addr := c.fetch16()
		if (c.F & flagC) != 0 {
			c.PC = addr
			return 4, nil
		}
		return 3, nil

	case 0x03:
		c.setBC(c.getBC() + 1)
		return 2, nil
	case 0x13:
		c.setDE(c.getDE() + 1)
		return 2, nil
	case 0x23:
		c.setHL(c.getHL() + 1)
		return 2, nil
	case 0x33:
		c.SP++
		return 2, nil
	case 0x0B:
		c.setBC(c.getBC() - 1)
		return 2, nil
	case 0x1B:
		c.setDE(c.getDE() - 1)
		return 2, nil
	case 0x2B:
		c.setHL(c.getHL() - 1)
		return 2, nil
	case 0x3B:
		c.SP--
		return 2, nil

	case 0x09: // ADD HL,BC
		c.addHL(c.getBC())
		return 2, nil
	case 0x19: // ADD HL,DE
		c.addHL(c.getDE())
		return 2, nil
	case 0x29: // ADD HL,HL
		c.addHL(c.getHL())
		return 2, nil
	case 0x39: // ADD HL,SP
		c.addHL(c.SP)
		return 2, nil

	case 0xF8: // LD HL,SP+r8
		off := int8(c.fetch8())
		res := uint16(int32(int16(c.SP)) + int32(off))
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := c.add8(low, byte(off))
		c.setHL(res)
		c.setZNHC(false, false, h, cy)
		return 3, nil
	case 0xF9: // LD SP,HL
		c.SP = c.getHL()
		return 2, nil
	case 0xE8: // ADD SP,r8
		off := int8(c.fetch8())
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := c.add8(low, byte(off))
		c.SP = uint16(int32(int16(c.SP)) + int32(off))
		c.setZNHC(false, false, h, cy)
		return 4, nil

	case 0xF3: // DI
		c.IME = false
		c.eiPending = false
		c.eiArmed = false
		return 1, nil
	case 0xFB: // EI (takes effect after the following instruction)
		c.eiPending = true
		return 1, nil

	case 0xCB:
		return c.executeCB()

	case 0xF5:
		c.push16(c.getAF())
		return 4, nil
	case 0xC5:
		c.push16(c.getBC())
		return 4, nil
	case 0xD5:
		c.push16(c.getDE())
		return 4, nil
	case 0xE5:
		c.push16(c.getHL())
		return 4, nil
	case 0xF1:
		c.setAF(c.pop16())
		return 3, nil
	case 0xC1:
		c.setBC(c.pop16())
		return 3, nil
	case 0xD1:
		c.setDE(c.pop16())
		return 3, nil
	case 0xE1:
		c.setHL(c.pop16())
		return 3, nil

	case 0x76: // HALT
		c.halted = true
		return 1, nil

	default:
		return 0, &DecodeError{Opcode: op, PC: opPC}
	}
}

// getReg/setReg implement the standard 3-bit register index used throughout
// the primary and CB-prefixed tables: 0=B,1=C,2=D,3=E,4=H,5=L,6=(HL),7=A.
func (c *CPU) getReg(idx byte) byte {
	switch idx {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.getHL())
	default:
		return c.A
	}
}

func (c *CPU) setReg(idx byte, v byte) {
	switch idx {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.getHL(), v)
	case 7:
		c.A = v
	}
}

func (c *CPU) incReg(v byte) byte {
	old := v
	v++
	c.setZNHC(v == 0, false, (old&0x0F) == 0x0F, (c.F&flagC) != 0)
	return v
}

func (c *CPU) decReg(v byte) byte {
	old := v
	v--
	c.setZNHC(v == 0, true, (old&0x0F) == 0x00, (c.F&flagC) != 0)
	return v
}

func (c *CPU) addHL(rr uint16) {
	hl := c.getHL()
	r := uint32(hl) + uint32(rr)
	h := ((hl & 0x0FFF) + (rr & 0x0FFF)) > 0x0FFF
	c.setHL(uint16(r))
	c.setZNHC((c.F&flagZ) != 0, false, h, r > 0xFFFF)
}

func (c *CPU) executeCB() (int, error) {
	cb := c.fetch8()
	reg := cb & 7
	opg := (cb >> 6) & 3
	y := (cb >> 3) & 7

	cycles := 2
	if reg == 6 {
		cycles = 4
	}
	switch opg {
	case 0: // rotate/shift/swap
		v := c.getReg(reg)
		var cflag byte
		switch y {
		case 0: // RLC
			cflag = (v >> 7) & 1
			v = (v << 1) | cflag
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 1: // RRC
			cflag = v & 1
			v = (v >> 1) | (cflag << 7)
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 2: // RL
			cflag = (v >> 7) & 1
			cin := byte(0)
			if (c.F & flagC) != 0 {
				cin = 1
			}
			v = (v << 1) | cin
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 3: // RR
			cflag = v & 1
			cin := byte(0)
			if (c.F & flagC) != 0 {
				cin = 1
			}
			v = (v >> 1) | (cin << 7)
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 4: // SLA
			cflag = (v >> 7) & 1
			v <<= 1
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 5: // SRA
			cflag = v & 1
			v = (v >> 1) | (v & 0x80)
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 6: // SWAP
			v = (v << 4) | (v >> 4)
			c.setZNHC(v == 0, false, false, false)
		case 7: // SRL
			cflag = v & 1
			v >>= 1
			c.setZNHC(v == 0, false, false, cflag == 1)
		}
		c.setReg(reg, v)
	case 1: // BIT y, r
		v := c.getReg(reg)
		bit := (v >> y) & 1
		c.F = (c.F & flagC) | flagH
		if bit == 0 {
			c.F |= flagZ
		}
	case 2: // RES y, r
		c.setReg(reg, c.getReg(reg)&^(1<<y))
	case 3: // SET y, r
		c.setReg(reg, c.getReg(reg)|(1<<y))
	}
	return cycles, nil
}
