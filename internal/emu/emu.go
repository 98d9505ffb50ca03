// Package emu wires CPU, MMU, PPU, Timer, IntReq, and Joypad into the
// outer tick loop: CPU.Step() returns an m-cycle cost, which Timer and
// MMU consume directly and which the PPU consumes scaled to dots.
package emu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pixelclock/dmgcore/internal/cart"
	"github.com/pixelclock/dmgcore/internal/cpu"
	"github.com/pixelclock/dmgcore/internal/intreq"
	"github.com/pixelclock/dmgcore/internal/joypad"
	"github.com/pixelclock/dmgcore/internal/mmu"
	"github.com/pixelclock/dmgcore/internal/ppu"
	"github.com/pixelclock/dmgcore/internal/timer"
)

// Buttons mirrors the eight DMG input lines; the host translates its own
// key-polling into this shape once per frame.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var dpad, bpad byte
	if b.Right {
		dpad |= 1 << 0
	}
	if b.Left {
		dpad |= 1 << 1
	}
	if b.Up {
		dpad |= 1 << 2
	}
	if b.Down {
		dpad |= 1 << 3
	}
	if b.A {
		bpad |= 1 << 0
	}
	if b.B {
		bpad |= 1 << 1
	}
	if b.Select {
		bpad |= 1 << 2
	}
	if b.Start {
		bpad |= 1 << 3
	}
	return dpad | bpad<<4
}

// Machine owns one running cartridge session: the CPU and its collaborators,
// plus the logger and run parameters that decide how decode failures and
// battery persistence are reported.
type Machine struct {
	cfg Config
	log *slog.Logger

	cpu  *cpu.CPU
	mmu  *mmu.MMU
	ppu  *ppu.PPU
	tim  *timer.Timer
	req  *intreq.IntReq
	pad  *joypad.Joypad
	cart cart.Cartridge
}

// New constructs an unloaded Machine. Call LoadROM before stepping it.
func New(cfg Config) *Machine {
	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Machine{cfg: cfg, log: lg}
}

// LoadROM parses the cartridge header, constructs the matching MBC, and
// wires a fresh CPU/MMU/PPU/Timer/IntReq/Joypad set around it. An optional
// 256-byte boot image is installed if provided; without one, the CPU starts
// in the post-boot register state at 0x0100 with the LCD already on.
func (m *Machine) LoadROM(rom []byte, boot []byte) error {
	c, err := cart.New(rom)
	if err != nil {
		var he *cart.HeaderError
		if errors.As(err, &he) {
			m.log.Error("cartridge header rejected", "reason", he.Reason, "offset", he.Offset)
		}
		return err
	}
	if h, herr := cart.ParseHeader(rom); herr == nil {
		m.log.Info("cartridge loaded", "title", h.Title, "cartType", fmt.Sprintf("%#02x", h.CartType),
			"romBytes", len(rom), "ramBytes", h.RAMSizeBytes)
	}

	req := intreq.New()
	p := ppu.New(req)
	t := timer.New(req)
	j := joypad.New(req)
	bus := mmu.New(c, p, t, req, j)
	if len(boot) > 0 {
		bus.SetBootROM(boot)
	}
	cp := cpu.New(bus, req)
	if len(boot) == 0 {
		cp.ResetNoBoot()
		bus.Write(0xFF40, 0x91) // LCDC as a boot ROM leaves it: LCD, BG on
	}

	m.cpu, m.mmu, m.ppu, m.tim, m.req, m.pad, m.cart = cp, bus, p, t, req, j, c
	return nil
}

// SetSerialWriter directs SB/SC loopback output (blargg-style PASS/FAIL
// text, typically) to w instead of discarding it.
func (m *Machine) SetSerialWriter(w io.Writer) { m.mmu.SetSerialWriter(w) }

// SetButtons applies the host's current button state to the joypad.
func (m *Machine) SetButtons(b Buttons) { m.pad.SetButtons(b.mask()) }

// Framebuffer exposes the PPU's live pixel buffer (160x144 ARGB words).
func (m *Machine) Framebuffer() *[ppu.ScreenWidth * ppu.ScreenHeight]uint32 {
	return m.ppu.Framebuffer()
}

// SaveRAM returns the cartridge's battery-backed RAM contents, or nil if
// the loaded cartridge carries none.
func (m *Machine) SaveRAM() []byte {
	if bb, ok := m.cart.(cart.BatteryBacked); ok {
		return bb.SaveRAM()
	}
	return nil
}

// LoadRAM restores previously-saved battery-backed RAM, if the cartridge
// supports it.
func (m *Machine) LoadRAM(data []byte) {
	if bb, ok := m.cart.(cart.BatteryBacked); ok {
		bb.LoadRAM(data)
	}
}

// Step executes exactly one CPU instruction (or one interrupt dispatch, or
// one HALT wait tick) and propagates its m-cycle cost to the Timer, PPU,
// and MMU (for OAM DMA). A *cpu.DecodeError means PC pointed at one of the
// eleven undefined primary opcodes or STOP; the caller decides whether that
// is fatal.
func (m *Machine) Step() (int, error) {
	cycles, err := m.cpu.Step()
	if cycles > 0 {
		m.tim.Tick(cycles)
		m.ppu.Tick(cycles * 4)
		m.mmu.Tick(cycles)
	}
	if err != nil {
		var de *cpu.DecodeError
		if errors.As(err, &de) {
			m.log.Error("illegal opcode", "opcode", fmt.Sprintf("%#02x", de.Opcode), "pc", fmt.Sprintf("%#04x", de.PC))
			if m.cfg.TraceOnDecodeError {
				c := m.cpu
				m.log.Error("register state at decode error",
					"a", fmt.Sprintf("%02x", c.A), "f", fmt.Sprintf("%02x", c.F),
					"b", fmt.Sprintf("%02x", c.B), "c", fmt.Sprintf("%02x", c.C),
					"d", fmt.Sprintf("%02x", c.D), "e", fmt.Sprintf("%02x", c.E),
					"h", fmt.Sprintf("%02x", c.H), "l", fmt.Sprintf("%02x", c.L),
					"sp", fmt.Sprintf("%04x", c.SP), "ime", c.IME)
			}
		}
		return cycles, err
	}
	return cycles, nil
}

// RunUntilFrame steps the machine until the PPU completes a frame (its
// update_screen flag transitions true on VBlank entry) or a decode error
// occurs, whichever comes first.
func (m *Machine) RunUntilFrame() error {
	for {
		if _, err := m.Step(); err != nil {
			return err
		}
		if m.ppu.TakeUpdateScreen() {
			return nil
		}
	}
}

// RunCycles steps the machine for approximately n m-cycles (the final
// instruction may overshoot slightly since instructions are indivisible),
// stopping early on a decode error. Used by headless/self-check runs that
// want a fixed budget rather than a frame boundary.
func (m *Machine) RunCycles(n int) error {
	spent := 0
	for spent < n {
		cycles, err := m.Step()
		spent += cycles
		if err != nil {
			return err
		}
	}
	return nil
}
