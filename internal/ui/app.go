// Package ui hosts the window, presents Machine's framebuffer, and maps
// keyboard state into joypad input. Everything about save slots, menus,
// palettes, and audio mixing is deliberately left to the core's callers.
package ui

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/pixelclock/dmgcore/internal/emu"
	"github.com/pixelclock/dmgcore/internal/ppu"
)

// App is an ebiten.Game that drives one Machine: one RunUntilFrame per
// Update tick, one blit per Draw.
type App struct {
	cfg Config
	m   *emu.Machine
	tex *ebiten.Image
	err error
}

// NewApp wires an ebiten game around an already-loaded Machine.
func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(ppu.ScreenWidth*cfg.Scale, ppu.ScreenHeight*cfg.Scale)
	return &App{cfg: cfg, m: m, tex: ebiten.NewImage(ppu.ScreenWidth, ppu.ScreenHeight)}
}

// Run starts the ebiten event loop. It returns once the window closes or
// the machine hits a fatal decode error.
func (a *App) Run() error {
	if err := ebiten.RunGame(a); err != nil {
		return err
	}
	return a.err
}

func (a *App) Update() error {
	if a.err != nil {
		return a.err
	}
	a.m.SetButtons(pollButtons())
	if err := a.m.RunUntilFrame(); err != nil {
		a.err = fmt.Errorf("machine halted: %w", err)
		return a.err
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	fb := a.m.Framebuffer()
	pix := make([]byte, ppu.ScreenWidth*ppu.ScreenHeight*4)
	for i, px := range fb {
		o := i * 4
		pix[o+0] = byte(px >> 16) // R
		pix[o+1] = byte(px >> 8)  // G
		pix[o+2] = byte(px)       // B
		pix[o+3] = byte(px >> 24) // A
	}
	a.tex.WritePixels(pix)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(a.cfg.Scale), float64(a.cfg.Scale))
	screen.DrawImage(a.tex, op)
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ppu.ScreenWidth * a.cfg.Scale, ppu.ScreenHeight * a.cfg.Scale
}
