// Package ppu implements the scanline-timed pixel-processing unit: mode
// scheduling (OAMSearch/PixelTransfer/HBlank/VBlank), BG/window/sprite
// rasterization into an ARGB framebuffer, and STAT/LYC/VBlank interrupt
// generation.
package ppu

import "github.com/pixelclock/dmgcore/internal/intreq"

const (
	ScreenWidth  = 160
	ScreenHeight = 144
)

// The four canonical DMG shades, darkest to lightest, as opaque ARGB.
var shade = [4]uint32{
	0xFF000000,
	0xFF555555,
	0xFFAAAAAA,
	0xFFFFFFFF,
}

// PPU owns VRAM, OAM, the LCDC/STAT/scroll/palette registers, and the
// output framebuffer.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41: mode bits0-1, coincidence bit2, enables bits3-6
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	windowLine int // internal window-row counter, advances only on scanlines where window is drawn

	dot int // dots within current line, 0..455

	fb            [ScreenWidth * ScreenHeight]uint32
	updateScreen  bool
	rowColorIndex [ScreenWidth]byte // 2-bit BG/window color indices, pre-sprite, for this scanline

	req *intreq.IntReq
}

// New wires a PPU to the shared interrupt controller.
func New(req *intreq.IntReq) *PPU {
	return &PPU{req: req}
}

// CPURead returns bytes for VRAM, OAM, and the PPU IO register block.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.mode(); m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and the PPU IO register block.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.mode(); m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if prev&0x80 != 0 && value&0x80 == 0 {
			p.ly, p.dot, p.windowLine = 0, 0, 0
			p.setMode(0)
			p.updateLYC()
		} else if prev&0x80 == 0 && value&0x80 != 0 {
			p.ly, p.dot, p.windowLine = 0, 0, 0
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly, p.dot, p.windowLine = 0, 0, 0
		p.updateLYC()
		if p.lcdc&0x80 != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

func (p *PPU) mode() byte { return p.stat & 0x03 }

// WriteOAM writes raw OAM bytes bypassing CPU-visibility mode gating, for
// use by OAM DMA (which the real hardware drives independently of the CPU
// bus-conflict rules that block direct CPU access during modes 2/3).
func (p *PPU) WriteOAM(index int, value byte) { p.oam[index] = value }

// Tick advances the PPU by the given number of dots (1 dot per t-cycle;
// callers advance 4 dots per CPU m-cycle). While LCDC bit7 is clear the
// state machine is held at LY=0, dot=0, with STAT reporting mode 0
// (HBlank), not OAMSearch, so VRAM and OAM stay CPU-accessible.
func (p *PPU) Tick(dots int) {
	for i := 0; i < dots; i++ {
		if p.lcdc&0x80 == 0 {
			continue
		}
		p.dot++

		var mode byte
		switch {
		case p.ly >= 144:
			mode = 1
		case p.dot < 80:
			mode = 2
		case p.dot < 252:
			mode = 3
		default:
			mode = 0
		}
		wasMode := p.mode()
		p.setMode(mode)
		if wasMode != 3 && mode == 3 {
			p.renderScanline()
		}

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				p.req.SetFlag(intreq.VBlank)
				if p.stat&(1<<4) != 0 {
					p.req.SetFlag(intreq.Stat)
				}
				p.updateScreen = true
			} else if p.ly > 153 {
				p.ly = 0
				p.windowLine = 0
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0:
		if p.stat&(1<<3) != 0 {
			p.req.SetFlag(intreq.Stat)
		}
	case 2:
		if p.stat&(1<<5) != 0 {
			p.req.SetFlag(intreq.Stat)
		}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if p.stat&(1<<6) != 0 {
			p.req.SetFlag(intreq.Stat)
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// TakeUpdateScreen reports and clears the update_screen flag, matching the
// spec's "consumer drains the flag" external contract.
func (p *PPU) TakeUpdateScreen() bool {
	v := p.updateScreen
	p.updateScreen = false
	return v
}

// Framebuffer returns the current 160x144 ARGB framebuffer.
func (p *PPU) Framebuffer() *[ScreenWidth * ScreenHeight]uint32 { return &p.fb }

func (p *PPU) read(addr uint16) byte { return p.vram[addr-0x8000] }

// Read implements VRAMReader so backgroundRow/windowRow can pull tile data
// directly from live VRAM during rendering.
func (p *PPU) Read(addr uint16) byte { return p.read(addr) }

// renderScanline rasterizes BG, window, and sprites for the current LY
// into the framebuffer. Called once per line, at the PixelTransfer
// transition, per spec.
func (p *PPU) renderScanline() {
	p.renderBackgroundAndWindow()
	palette := decodePalette(p.bgp)
	row := int(p.ly) * ScreenWidth
	for x := 0; x < ScreenWidth; x++ {
		p.fb[row+x] = palette[p.rowColorIndex[x]&0x03]
	}
	if p.lcdc&0x02 != 0 {
		p.renderSprites()
	}
}

func decodePalette(reg byte) [4]uint32 {
	var out [4]uint32
	for i := 0; i < 4; i++ {
		out[i] = shade[(reg>>(uint(i)*2))&0x03]
	}
	return out
}

// renderBackgroundAndWindow fills rowColorIndex for the current scanline:
// one BG pass over the whole line (see backgroundRow in bgrow.go), then a
// window pass over whatever columns the window covers this line.
func (p *PPU) renderBackgroundAndWindow() {
	if p.lcdc&0x01 == 0 {
		p.rowColorIndex = [ScreenWidth]byte{}
		return
	}

	bgMapBase := uint16(0x9800)
	if p.lcdc&0x08 != 0 {
		bgMapBase = 0x9C00
	}
	unsignedTiles := p.lcdc&0x10 != 0

	p.rowColorIndex = backgroundRow(p, bgMapBase, unsignedTiles, p.scx, p.scy, p.ly)

	windowEnabled := p.lcdc&0x20 != 0
	wx := int(p.wx) - 7
	if windowEnabled && int(p.ly) >= int(p.wy) && wx < ScreenWidth {
		winMapBase := uint16(0x9800)
		if p.lcdc&0x40 != 0 {
			winMapBase = 0x9C00
		}
		winRow := windowRow(p, winMapBase, unsignedTiles, wx, byte(p.windowLine))
		start := wx
		if start < 0 {
			start = 0
		}
		for x := start; x < ScreenWidth; x++ {
			p.rowColorIndex[x] = winRow[x]
		}
		p.windowLine++
	}
}

func (p *PPU) renderSprites() {
	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}
	ly := int(p.ly)
	row := ly * ScreenWidth

	drawn := [ScreenWidth]bool{}
	for i := 0; i < 40; i++ {
		base := i * 4
		spriteY := int(p.oam[base+0]) - 16
		spriteX := int(p.oam[base+1]) - 8
		tileIdx := p.oam[base+2]
		attr := p.oam[base+3]

		if ly < spriteY || ly >= spriteY+height {
			continue
		}
		if height == 16 {
			tileIdx &^= 0x01
		}
		yFlip := attr&0x40 != 0
		xFlip := attr&0x20 != 0
		behindBG := attr&0x80 != 0
		useOBP1 := attr&0x10 != 0

		tileY := ly - spriteY
		if yFlip {
			tileY = height - 1 - tileY
		}
		tile := tileIdx
		if height == 16 && tileY >= 8 {
			tile = tileIdx + 1
			tileY -= 8
		}
		tileAddr := 0x8000 + uint16(tile)*16 + uint16(tileY)*2
		lo := p.read(tileAddr)
		hi := p.read(tileAddr + 1)

		palette := decodePalette(p.obp0)
		if useOBP1 {
			palette = decodePalette(p.obp1)
		}

		for col := 0; col < 8; col++ {
			sx := spriteX + col
			if sx < 0 || sx >= ScreenWidth || drawn[sx] {
				continue
			}
			bitPos := col
			if !xFlip {
				bitPos = 7 - col
			}
			ci := ((hi>>uint(bitPos))&1)<<1 | ((lo >> uint(bitPos)) & 1)
			if ci == 0 {
				continue
			}
			if behindBG && p.rowColorIndex[sx] != 0 {
				continue
			}
			p.fb[row+sx] = palette[ci]
			drawn[sx] = true
		}
	}
}
