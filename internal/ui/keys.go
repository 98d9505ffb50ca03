package ui

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/pixelclock/dmgcore/internal/emu"
)

// pollButtons maps the keyboard onto the eight DMG input lines: arrow keys
// for the dpad, Z/X for A/B, Enter for Start, Backspace for Select.
func pollButtons() emu.Buttons {
	return emu.Buttons{
		Up:     ebiten.IsKeyPressed(ebiten.KeyArrowUp),
		Down:   ebiten.IsKeyPressed(ebiten.KeyArrowDown),
		Left:   ebiten.IsKeyPressed(ebiten.KeyArrowLeft),
		Right:  ebiten.IsKeyPressed(ebiten.KeyArrowRight),
		A:      ebiten.IsKeyPressed(ebiten.KeyZ),
		B:      ebiten.IsKeyPressed(ebiten.KeyX),
		Start:  ebiten.IsKeyPressed(ebiten.KeyEnter),
		Select: ebiten.IsKeyPressed(ebiten.KeyBackspace),
	}
}
