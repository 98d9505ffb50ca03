package ppu

import "testing"

type mockVRAM map[uint16]byte

func (m mockVRAM) Read(addr uint16) byte { return m[addr] }

func TestTileRowDecodesBitplanes(t *testing.T) {
	// lo=0x55 (01010101), hi=0x33 (00110011)
	row := tileRow(0x55, 0x33)
	lo, hi := byte(0x55), byte(0x33)
	for i := 0; i < 8; i++ {
		b := 7 - byte(i)
		want := ((hi>>b)&1)<<1 | ((lo >> b) & 1)
		if row[i] != want {
			t.Fatalf("px %d got %d want %d", i, row[i], want)
		}
	}
}

func TestTileDataAddrUnsignedAndSigned(t *testing.T) {
	if got, want := tileDataAddr(0x10, true, 3), uint16(0x8000+0x10*16+3*2); got != want {
		t.Fatalf("unsigned addr got %#04x want %#04x", got, want)
	}
	// Signed mode: index 0xFF (-1) at fineY=5 -> 0x9000 - 16 + 10 = 0x8FF0 + 10
	if got, want := tileDataAddr(0xFF, false, 5), uint16(0x8FF0+5*2); got != want {
		t.Fatalf("signed addr got %#04x want %#04x", got, want)
	}
}

func TestBackgroundRowSCXOffsetAndTileWrap(t *testing.T) {
	mapBase := uint16(0x9800)
	mem := mockVRAM{}
	fineY := byte(0)
	for tile := 0; tile < 32; tile++ {
		mem[mapBase+uint16(tile)] = byte(tile)
		base := uint16(0x8000+tile*16) + uint16(fineY)*2
		mem[base] = byte(tile)
		mem[base+1] = ^byte(tile)
	}
	// scx=5 discards the first 5 pixels of tile0; tile1 should start at out[3].
	out := backgroundRow(mem, mapBase, true, 5, 0, 0)

	lo0, hi0 := byte(0), ^byte(0)
	for i := 0; i < 3; i++ {
		b := byte(2 - i)
		want := ((hi0>>b)&1)<<1 | ((lo0 >> b) & 1)
		if out[i] != want {
			t.Fatalf("px %d got %d want %d", i, out[i], want)
		}
	}
	lo1, hi1 := byte(1), ^byte(1)
	for i := 0; i < 8; i++ {
		b := byte(7 - i)
		want := ((hi1>>b)&1)<<1 | ((lo1 >> b) & 1)
		if out[3+i] != want {
			t.Fatalf("tile1 px %d got %d want %d", i, out[3+i], want)
		}
	}
}

func TestBackgroundRowSCYRowSelectAndMapWrap(t *testing.T) {
	// ly=0, scy=11 -> bgY=11, mapRow=1, fineY=3
	mapBase := uint16(0x9800)
	mem := mockVRAM{}
	fineY := byte(3)
	mem[mapBase+32+0] = 0
	mem[mapBase+32+1] = 1
	base0 := uint16(0x8000+0*16) + uint16(fineY)*2
	mem[base0], mem[base0+1] = 0x12, 0x34
	base1 := uint16(0x8000+1*16) + uint16(fineY)*2
	mem[base1], mem[base1+1] = 0x56, 0x78

	out := backgroundRow(mem, mapBase, true, 0, 11, 0)

	lo0, hi0 := byte(0x12), byte(0x34)
	for i := 0; i < 8; i++ {
		b := byte(7 - i)
		want := ((hi0>>b)&1)<<1 | ((lo0 >> b) & 1)
		if out[i] != want {
			t.Fatalf("tile0 px %d got %d want %d", i, out[i], want)
		}
	}
	lo1, hi1 := byte(0x56), byte(0x78)
	for i := 0; i < 8; i++ {
		b := byte(7 - i)
		want := ((hi1>>b)&1)<<1 | ((lo1 >> b) & 1)
		if out[8+i] != want {
			t.Fatalf("tile1 px %d got %d want %d", i, out[8+i], want)
		}
	}

	// ly=140, scy=127 -> bgY=267, which wraps past the 32-row map back to
	// mapRow=1, fineY=3: the same row as above.
	if wrapped := backgroundRow(mem, mapBase, true, 0, 127, 140); wrapped != out {
		t.Fatalf("wrapped map row differs from mapRow=1 fineY=3 row")
	}
}

func TestBackgroundRowSignedTileAddressing8800(t *testing.T) {
	mem := mockVRAM{}
	mapBase := uint16(0x9C00)
	mem[mapBase] = 0xFF // index -1 under signed addressing
	fineY := byte(5)
	rowAddr := uint16(0x8FF0) + uint16(fineY)*2
	lo, hi := byte(0xA5), byte(0x5A)
	mem[rowAddr], mem[rowAddr+1] = lo, hi

	out := backgroundRow(mem, mapBase, false, 0, fineY, 0) // scy=5 -> row 5 of map row 0
	for i := 0; i < 8; i++ {
		b := byte(7 - i)
		want := ((hi>>b)&1)<<1 | ((lo >> b) & 1)
		if out[i] != want {
			t.Fatalf("px %d got %d want %d", i, out[i], want)
		}
	}
}

func TestWindowRowWXAndTiles(t *testing.T) {
	mem := mockVRAM{}
	mapBase := uint16(0x9800)
	mem[mapBase+0] = 0
	mem[mapBase+1] = 1
	fineY := byte(2)
	base0 := uint16(0x8000) + 0*16 + uint16(fineY)*2
	mem[base0], mem[base0+1] = 0xAA, 0x0F
	base1 := uint16(0x8000) + 1*16 + uint16(fineY)*2
	mem[base1], mem[base1+1] = 0x55, 0xF0

	out := windowRow(mem, mapBase, true, 20, fineY)

	for x := 0; x < 20; x++ {
		if out[x] != 0 {
			t.Fatalf("pre-window px %d = %d, want 0", x, out[x])
		}
	}
	lo0, hi0 := byte(0xAA), byte(0x0F)
	for i := 0; i < 8; i++ {
		b := byte(7 - i)
		want := ((hi0>>b)&1)<<1 | ((lo0 >> b) & 1)
		if out[20+i] != want {
			t.Fatalf("tile0 px %d got %d want %d", i, out[20+i], want)
		}
	}
	lo1, hi1 := byte(0x55), byte(0xF0)
	for i := 0; i < 8; i++ {
		b := byte(7 - i)
		want := ((hi1>>b)&1)<<1 | ((lo1 >> b) & 1)
		if out[28+i] != want {
			t.Fatalf("tile1 px %d got %d want %d", i, out[28+i], want)
		}
	}
}

func TestWindowRowOffscreenWXReturnsAllZero(t *testing.T) {
	mem := mockVRAM{}
	out := windowRow(mem, 0x9800, true, 200, 0)
	for x, ci := range out {
		if ci != 0 {
			t.Fatalf("expected zeroed row for offscreen window, px %d = %d", x, ci)
		}
	}
}
