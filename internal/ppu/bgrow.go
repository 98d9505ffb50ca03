package ppu

// VRAMReader is the tile/tilemap read access the background and window row
// assemblers need. The live PPU and tests both satisfy it.
type VRAMReader interface {
	Read(addr uint16) byte
}

// tileRow decodes one 8-pixel tile row from its two DMG bitplane bytes
// (low plane, high plane) into 2-bit color indices, leftmost pixel first.
func tileRow(lo, hi byte) [8]byte {
	var row [8]byte
	for px := 0; px < 8; px++ {
		bit := byte(7 - px)
		row[px] = ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
	}
	return row
}

// tileDataAddr resolves a tile index to the VRAM address of its fineY-th
// row, under either the unsigned 0x8000-relative addressing mode or the
// signed 0x8800/0x9000-relative mode.
func tileDataAddr(tileIdx byte, unsigned bool, fineY byte) uint16 {
	if unsigned {
		return 0x8000 + uint16(tileIdx)*16 + uint16(fineY)*2
	}
	return 0x9000 + uint16(int8(tileIdx))*16 + uint16(fineY)*2
}

// decodeTileAt reads the tile index at mapAddr and decodes its fineY-th row.
func decodeTileAt(mem VRAMReader, mapAddr uint16, unsigned bool, fineY byte) [8]byte {
	addr := tileDataAddr(mem.Read(mapAddr), unsigned, fineY)
	return tileRow(mem.Read(addr), mem.Read(addr+1))
}

// backgroundRow assembles 160 BG color indices for scanline ly. It walks
// the visible columns left to right, decoding a fresh tile row only when
// the scx-shifted source x crosses into the next map column, and indexing
// straight into that row rather than buffering pixels ahead of time.
func backgroundRow(mem VRAMReader, mapBase uint16, unsigned bool, scx, scy, ly byte) [160]byte {
	var out [160]byte
	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapRow := (bgY >> 3) & 31

	var tile [8]byte
	curCol := -1
	for x := 0; x < ScreenWidth; x++ {
		srcX := uint16(x) + uint16(scx)
		mapCol := int((srcX >> 3) & 31)
		if mapCol != curCol {
			tile = decodeTileAt(mem, mapBase+mapRow*32+uint16(mapCol), unsigned, fineY)
			curCol = mapCol
		}
		out[x] = tile[srcX&7]
	}
	return out
}

// windowRow assembles the window layer's color indices for the portion of
// the scanline at or past wxStart (WX-7); columns before wxStart are left
// at 0 so the caller can overlay this onto a background row already in
// place. winLine is the window's own internal row counter, not LY.
func windowRow(mem VRAMReader, mapBase uint16, unsigned bool, wxStart int, winLine byte) [160]byte {
	var out [160]byte
	if wxStart >= ScreenWidth {
		return out
	}
	start := wxStart
	if start < 0 {
		start = 0
	}
	mapRow := uint16(winLine>>3) & 31
	fineY := winLine & 7

	var tile [8]byte
	curCol := -1
	for x := start; x < ScreenWidth; x++ {
		winX := uint16(x - wxStart)
		mapCol := int((winX >> 3) & 31)
		if mapCol != curCol {
			tile = decodeTileAt(mem, mapBase+mapRow*32+uint16(mapCol), unsigned, fineY)
			curCol = mapCol
		}
		out[x] = tile[winX&7]
	}
	return out
}
