// Command dmgcore runs the emulator core either windowed (default) or
// headless, for a fixed number of frames with an optional PNG snapshot and
// CRC32 self-check — handy for CI regression pinning against known-good
// framebuffers.
package main

import (
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/pixelclock/dmgcore/internal/emu"
	"github.com/pixelclock/dmgcore/internal/ui"
)

func main() {
	app := cli.NewApp()
	app.Name = "dmgcore"
	app.Usage = "run a DMG ROM"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "rom", Usage: "path to ROM (.gb)"},
		cli.StringFlag{Name: "bootrom", Usage: "optional 256-byte boot ROM"},
		cli.IntFlag{Name: "scale", Value: 3, Usage: "window scale"},
		cli.StringFlag{Name: "title", Value: "dmgcore", Usage: "window title"},
		cli.BoolFlag{Name: "trace", Usage: "log a trace entry on decode error"},
		cli.BoolTFlag{Name: "save", Usage: "persist battery RAM to ROM.sav on exit and load on start"},
		cli.BoolFlag{Name: "headless", Usage: "run without a window"},
		cli.IntFlag{Name: "frames", Value: 300, Usage: "frames to run in headless mode"},
		cli.StringFlag{Name: "outpng", Usage: "write last framebuffer to PNG at path"},
		cli.StringFlag{Name: "expect", Usage: "assert framebuffer CRC32 (hex)"},
		cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug|info|warn|error"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(c.String("log-level"))}))

	romPath := c.String("rom")
	var rom []byte
	if romPath != "" {
		var err error
		rom, err = os.ReadFile(romPath)
		if err != nil {
			return fmt.Errorf("read ROM: %w", err)
		}
	}
	boot, err := readOptional(c.String("bootrom"))
	if err != nil {
		return fmt.Errorf("read boot ROM: %w", err)
	}

	m := emu.New(emu.Config{Logger: logger, TraceOnDecodeError: c.Bool("trace")})
	if len(rom) == 0 {
		return fmt.Errorf("no ROM provided; pass -rom")
	}
	if err := m.LoadROM(rom, boot); err != nil {
		return fmt.Errorf("load ROM: %w", err)
	}

	saveEnabled := c.BoolT("save")
	savPath := ""
	if saveEnabled && romPath != "" {
		savPath = strings.TrimSuffix(romPath, ".gb") + ".sav"
		if data, err := os.ReadFile(savPath); err == nil {
			m.LoadRAM(data)
			logger.Info("loaded battery RAM", "path", savPath, "bytes", len(data))
		}
	}
	persistRAM := func() {
		if !saveEnabled || savPath == "" {
			return
		}
		if data := m.SaveRAM(); data != nil {
			if err := os.WriteFile(savPath, data, 0o644); err == nil {
				logger.Info("wrote battery RAM", "path", savPath, "bytes", len(data))
			}
		}
	}

	if c.Bool("headless") {
		if err := runHeadless(m, c.Int("frames"), c.String("outpng"), c.String("expect"), logger); err != nil {
			return err
		}
		persistRAM()
		return nil
	}

	uiCfg := ui.Config{Title: c.String("title"), Scale: c.Int("scale")}
	app := ui.NewApp(uiCfg, m)
	runErr := app.Run()
	persistRAM()
	return runErr
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runHeadless(m *emu.Machine, frames int, pngPath, expectCRC string, logger *slog.Logger) error {
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := m.RunUntilFrame(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	dur := time.Since(start)

	fb := m.Framebuffer()
	pix := make([]byte, len(fb)*4)
	for i, px := range fb {
		o := i * 4
		pix[o+0] = byte(px >> 16)
		pix[o+1] = byte(px >> 8)
		pix[o+2] = byte(px)
		pix[o+3] = byte(px >> 24)
	}
	crc := crc32.ChecksumIEEE(pix)
	fps := float64(frames) / dur.Seconds()
	logger.Info("headless run complete", "frames", frames, "elapsed", dur.Truncate(time.Millisecond), "fps", fps, "fbCRC32", fmt.Sprintf("%08x", crc))

	if pngPath != "" {
		if err := saveFramePNG(pix, 160, 144, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		logger.Info("wrote framebuffer PNG", "path", pngPath)
	}

	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    pix,
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
