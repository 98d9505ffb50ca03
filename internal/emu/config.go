package emu

import "log/slog"

// Config holds run parameters populated by CLI flags. There is no
// file-based config format in this core; host-level settings (palette
// choice, window chrome) belong to the ui package, not here.
type Config struct {
	// Logger receives load/decode-error/battery-persistence diagnostics.
	// Defaults to slog.Default() when nil.
	Logger *slog.Logger

	// TraceOnDecodeError dumps register state to the logger when Step
	// returns a *cpu.DecodeError, instead of just the opcode/PC pair.
	TraceOnDecodeError bool

	// BootROMPath, if set, is loaded by the caller and passed to LoadROM;
	// Config itself does no file I/O.
	BootROMPath string

	// BatterySavePath is where the caller persists SaveRAM()/LoadRAM().
	BatterySavePath string

	// HeadlessFrameBudget bounds RunCycles-style headless self-checks.
	HeadlessFrameBudget int
}
