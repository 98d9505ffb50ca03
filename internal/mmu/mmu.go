// Package mmu implements the address-routed 16-bit memory bus: it
// multiplexes boot ROM, cartridge ROM/RAM, WRAM, OAM/VRAM (delegated to the
// PPU), the Timer/IntReq/Joypad register windows, HRAM, and IE, and drives
// OAM DMA.
package mmu

import (
	"io"

	"github.com/pixelclock/dmgcore/internal/cart"
	"github.com/pixelclock/dmgcore/internal/intreq"
	"github.com/pixelclock/dmgcore/internal/joypad"
	"github.com/pixelclock/dmgcore/internal/ppu"
	"github.com/pixelclock/dmgcore/internal/timer"
)

// MMU owns WRAM/HRAM directly and routes everything else to its
// collaborators: the Cartridge, the PPU (which itself owns VRAM/OAM and
// enforces CPU-visibility mode gating), the Timer, IntReq, and the Joypad.
type MMU struct {
	cart   cart.Cartridge
	ppu    *ppu.PPU
	timer  *timer.Timer
	req    *intreq.IntReq
	joypad *joypad.Joypad

	wram [0x2000]byte // 0xC000-0xDFFF
	hram [0x7F]byte   // 0xFF80-0xFFFE

	bootROM     []byte
	bootEnabled bool

	sb byte      // FF01
	sc byte      // FF02
	sw io.Writer // serial loopback sink

	dma      byte
	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int

	// io backs every 0xFF00-0xFF7F register this MMU doesn't otherwise
	// claim (audio, and other unimplemented registers): spec §4.2 treats
	// them as direct storage, so reads/writes round-trip instead of
	// returning a fixed sentinel or being silently dropped.
	io [0x80]byte
}

// New wires an MMU to its collaborators. Timer, IntReq, Joypad, and PPU are
// constructed by the caller (typically emu.Machine) and shared by reference
// with the CPU, since IntReq in particular is multi-writer per spec.
func New(c cart.Cartridge, p *ppu.PPU, t *timer.Timer, req *intreq.IntReq, j *joypad.Joypad) *MMU {
	return &MMU{cart: c, ppu: p, timer: t, req: req, joypad: j, sw: io.Discard}
}

// PPU exposes the wired PPU for host presentation (framebuffer, update flag).
func (m *MMU) PPU() *ppu.PPU { return m.ppu }

// Cart exposes the wired cartridge for battery persistence at process boundaries.
func (m *MMU) Cart() cart.Cartridge { return m.cart }

// SetSerialWriter directs the serial loopback sink (default io.Discard).
func (m *MMU) SetSerialWriter(w io.Writer) { m.sw = w }

// SetBootROM installs a 256-byte boot image overlaying 0x0000-0x00FF until
// 0xFF50 is written non-zero. Anything shorter disables the overlay.
func (m *MMU) SetBootROM(data []byte) {
	m.bootROM = nil
	m.bootEnabled = false
	if len(data) >= 0x100 {
		m.bootROM = make([]byte, 0x100)
		copy(m.bootROM, data[:0x100])
		m.bootEnabled = true
	}
}

func (m *MMU) Read(addr uint16) byte {
	switch {
	case addr < 0x0100 && m.bootEnabled:
		return m.bootROM[addr]
	case addr < 0x8000:
		return m.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return m.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return m.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return m.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return m.wram[addr-0x2000-0xC000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m.dmaActive {
			return 0xFF
		}
		return m.ppu.CPURead(addr)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		return 0xFF
	case addr == 0xFF00:
		return m.joypad.JOYP()
	case addr == 0xFF01:
		return m.sb
	case addr == 0xFF02:
		return 0x7E | (m.sc & 0x81)
	case addr == 0xFF04:
		return m.timer.DIV()
	case addr == 0xFF05:
		return m.timer.TIMA()
	case addr == 0xFF06:
		return m.timer.TMA()
	case addr == 0xFF07:
		return m.timer.TAC()
	case addr == 0xFF0F:
		return m.req.IF()
	case addr == 0xFF46:
		return m.dma
	case addr == 0xFF50:
		return 0xFF
	case addr >= 0xFF40 && addr <= 0xFF4B:
		return m.ppu.CPURead(addr)
	case addr >= 0xFF00 && addr <= 0xFF7F:
		return m.io[addr-0xFF00]
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return m.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return m.req.IE()
	default:
		return 0xFF
	}
}

func (m *MMU) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		m.cart.Write(addr, value)
	case addr >= 0x8000 && addr <= 0x9FFF:
		m.ppu.CPUWrite(addr, value)
	case addr >= 0xA000 && addr <= 0xBFFF:
		m.cart.Write(addr, value)
	case addr >= 0xC000 && addr <= 0xDFFF:
		m.wram[addr-0xC000] = value
	case addr >= 0xE000 && addr <= 0xFDFF:
		m.wram[addr-0x2000-0xC000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m.dmaActive {
			return
		}
		m.ppu.CPUWrite(addr, value)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		// unusable, writes dropped
	case addr == 0xFF00:
		m.joypad.WriteSelect(value)
	case addr == 0xFF01:
		m.sb = value
	case addr == 0xFF02:
		m.sc = value & 0x81
		if m.sc&0x80 != 0 {
			_, _ = m.sw.Write([]byte{m.sb})
			m.req.SetFlag(intreq.Serial)
			m.sc &^= 0x80
		}
	case addr == 0xFF04:
		m.timer.WriteDIV()
	case addr == 0xFF05:
		m.timer.WriteTIMA(value)
	case addr == 0xFF06:
		m.timer.WriteTMA(value)
	case addr == 0xFF07:
		m.timer.WriteTAC(value)
	case addr == 0xFF0F:
		m.req.WriteIF(value)
	case addr == 0xFF46:
		m.startDMA(value)
	case addr == 0xFF50:
		if value != 0x00 {
			m.bootEnabled = false
		}
	case addr >= 0xFF40 && addr <= 0xFF4B:
		m.ppu.CPUWrite(addr, value)
	case addr >= 0xFF00 && addr <= 0xFF7F:
		m.io[addr-0xFF00] = value
	case addr >= 0xFF80 && addr <= 0xFFFE:
		m.hram[addr-0xFF80] = value
	case addr == 0xFFFF:
		m.req.WriteIE(value)
	}
}

// startDMA begins a 160-byte OAM transfer from (v<<8). Source is clamped to
// 0xF1 per spec's allowed range rather than treated as fatal.
func (m *MMU) startDMA(v byte) {
	if v > 0xF1 {
		v = 0xF1
	}
	m.dma = v
	m.dmaActive = true
	m.dmaSrc = uint16(v) << 8
	m.dmaIndex = 0
}

// Tick advances OAM DMA by up to mCycles bytes, one byte per m-cycle,
// matching real hardware's one-cycle-per-byte transfer rate. Call it after
// each CPU step with that step's m-cycle count, alongside Timer.Tick and
// PPU.Tick.
func (m *MMU) Tick(mCycles int) {
	for i := 0; i < mCycles && m.dmaActive; i++ {
		v := m.Read(m.dmaSrc + uint16(m.dmaIndex))
		m.ppu.WriteOAM(m.dmaIndex, v)
		m.dmaIndex++
		if m.dmaIndex >= 0xA0 {
			m.dmaActive = false
		}
	}
}
