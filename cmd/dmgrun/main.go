// Command dmgrun drives the CPU directly against a ROM's serial output,
// watching for a test ROM's own PASS/FAIL report (the blargg test suite
// convention) instead of rendering anything. It is a debugging tool, not
// a player: it exposes per-instruction tracing and a recent-trace dump on
// detected failure.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/pixelclock/dmgcore/internal/cart"
	"github.com/pixelclock/dmgcore/internal/cpu"
	"github.com/pixelclock/dmgcore/internal/intreq"
	"github.com/pixelclock/dmgcore/internal/joypad"
	"github.com/pixelclock/dmgcore/internal/mmu"
	"github.com/pixelclock/dmgcore/internal/ppu"
	"github.com/pixelclock/dmgcore/internal/timer"
)

type writerFunc func(p []byte) (n int, err error)

func (f writerFunc) Write(p []byte) (n int, err error) { return f(p) }

func main() {
	app := cli.NewApp()
	app.Name = "dmgrun"
	app.Usage = "run a ROM against the CPU directly, watching serial output for pass/fail"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "rom", Usage: "path to ROM (.gb)"},
		cli.StringFlag{Name: "bootrom", Usage: "optional DMG boot ROM to run from 0x0000 until FF50 disables it"},
		cli.IntFlag{Name: "steps", Value: 5_000_000, Usage: "max CPU steps to run"},
		cli.IntFlag{Name: "pc", Value: 0x0100, Usage: "initial PC value (ignored when a boot ROM is supplied)"},
		cli.BoolFlag{Name: "trace", Usage: "print PC/opcode/register state every step"},
		cli.StringFlag{Name: "until", Value: "Passed", Usage: "stop when serial output contains this substring (case-insensitive); empty to disable"},
		cli.BoolFlag{Name: "auto", Usage: "auto-detect 'Passed' or 'Failed N tests' in serial output and exit with code 0/1"},
		cli.DurationFlag{Name: "timeout", Usage: "optional wall-clock timeout (e.g. 30s, 2m); 0 disables"},
		cli.BoolFlag{Name: "traceOnFail", Usage: "when -auto detects failure, print a recent trace window"},
		cli.IntFlag{Name: "traceWindow", Value: 200, Usage: "number of recent instructions to include in the traceOnFail dump"},
		cli.IntFlag{Name: "serialWindow", Value: 8192, Usage: "number of recent serial bytes to retain for diagnostics on fail"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type traceEntry struct {
	pc                     uint16
	op                     byte
	cyc                    int
	a, f, b, c, d, e, h, l byte
	sp                     uint16
	ime                    bool
	ifreg                  byte
	ie                     byte
}

func printTrace(te traceEntry) {
	fmt.Printf("PC=%04X OP=%02X cyc=%d A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X SP=%04X IME=%t IF=%02X IE=%02X\n",
		te.pc, te.op, te.cyc, te.a, te.f, te.b, te.c, te.d, te.e, te.h, te.l, te.sp, te.ime, te.ifreg, te.ie)
}

func run(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		return fmt.Errorf("-rom is required")
	}
	rom, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("read rom: %w", err)
	}
	var boot []byte
	if bp := c.String("bootrom"); bp != "" {
		boot, err = os.ReadFile(bp)
		if err != nil {
			return fmt.Errorf("read bootrom: %w", err)
		}
	}

	ct, err := cart.New(rom)
	if err != nil {
		return fmt.Errorf("parse cartridge: %w", err)
	}
	req := intreq.New()
	p := ppu.New(req)
	t := timer.New(req)
	j := joypad.New(req)
	bus := mmu.New(ct, p, t, req, j)
	if len(boot) >= 0x100 {
		bus.SetBootROM(boot)
	}

	serialWindow := c.Int("serialWindow")
	if serialWindow < 256 {
		serialWindow = 256
	}
	var ser bytes.Buffer
	serRing := make([]byte, serialWindow)
	serRingIdx, serRingFill := 0, 0
	until := c.String("until")
	auto := c.Bool("auto")
	w := io.Writer(os.Stdout)
	if until != "" || auto {
		w = io.MultiWriter(os.Stdout, &ser, writerFunc(func(p []byte) (int, error) {
			for _, ch := range p {
				serRing[serRingIdx] = ch
				serRingIdx = (serRingIdx + 1) % serialWindow
				if serRingFill < serialWindow {
					serRingFill++
				}
			}
			return len(p), nil
		}))
	}
	bus.SetSerialWriter(w)

	cp := cpu.New(bus, req)
	if len(boot) >= 0x100 {
		cp.SP = 0xFFFE
		cp.SetPC(0x0000)
	} else {
		cp.ResetNoBoot()
		cp.SetPC(uint16(c.Int("pc")))
		bus.Write(0xFF00, 0xCF)
		bus.Write(0xFF05, 0x00)
		bus.Write(0xFF06, 0x00)
		bus.Write(0xFF07, 0x00)
		bus.Write(0xFF40, 0x91)
		bus.Write(0xFF42, 0x00)
		bus.Write(0xFF43, 0x00)
		bus.Write(0xFF45, 0x00)
		bus.Write(0xFF47, 0xFC)
		bus.Write(0xFF48, 0xFF)
		bus.Write(0xFF49, 0xFF)
		bus.Write(0xFF4A, 0x00)
		bus.Write(0xFF4B, 0x00)
		bus.Write(0xFFFF, 0x00)
	}

	trace := c.Bool("trace")
	traceOnFail := c.Bool("traceOnFail")
	traceWindow := c.Int("traceWindow")
	steps := c.Int("steps")
	timeout := c.Duration("timeout")

	start := time.Now()
	var deadline time.Time
	if timeout > 0 {
		deadline = start.Add(timeout)
	}
	failRe := regexp.MustCompile(`(?i)failed\s+(\d+)\s+tests?`)
	stageRe := regexp.MustCompile(`\b(\d{2}:\d{2})\b`)
	lastStage := ""

	ring := make([]traceEntry, traceWindow)
	ringIdx, ringFill := 0, 0
	var cycles int

	for i := 0; i < steps; i++ {
		pc := cp.PC
		var op byte
		if trace || traceOnFail {
			op = bus.Read(pc)
		}
		cyc, stepErr := cp.Step()
		cycles += cyc
		if stepErr != nil {
			fmt.Printf("\nCPU halted: %v\n", stepErr)
			fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", i+1, cycles, time.Since(start).Truncate(time.Millisecond))
			os.Exit(1)
		}
		t.Tick(cyc)
		p.Tick(cyc * 4)
		bus.Tick(cyc)

		if trace || traceOnFail {
			te := traceEntry{
				pc: pc, op: op, cyc: cyc,
				a: cp.A, f: cp.F, b: cp.B, c: cp.C, d: cp.D, e: cp.E, h: cp.H, l: cp.L,
				sp: cp.SP, ime: cp.IME, ifreg: req.IF(), ie: req.IE(),
			}
			if trace {
				printTrace(te)
			}
			if traceOnFail && traceWindow > 0 {
				ring[ringIdx] = te
				ringIdx = (ringIdx + 1) % traceWindow
				if ringFill < traceWindow {
					ringFill++
				}
			}
		}

		if auto {
			s := ser.String()
			if mm := stageRe.FindAllString(s, -1); len(mm) > 0 {
				lastStage = mm[len(mm)-1]
			}
			if strings.Contains(strings.ToLower(s), "passed") {
				fmt.Printf("\nDetected PASS in serial output.\n")
				if lastStage != "" {
					fmt.Printf("Last stage seen: %s\n", lastStage)
				}
				fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", i+1, cycles, time.Since(start).Truncate(time.Millisecond))
				os.Exit(0)
			}
			if m := failRe.FindStringSubmatch(s); m != nil {
				fmt.Printf("\nDetected %s in serial output.\n", m[0])
				if lastStage != "" {
					fmt.Printf("Last stage seen: %s\n", lastStage)
				}
				if traceOnFail && ringFill > 0 {
					fmt.Printf("\n--- recent trace (last %d instructions) ---\n", ringFill)
					startIdx := (ringIdx - ringFill + traceWindow) % traceWindow
					for j := 0; j < ringFill; j++ {
						printTrace(ring[(startIdx+j)%traceWindow])
					}
					fmt.Printf("--- end trace ---\n")
				}
				if serRingFill > 0 {
					fmt.Printf("\n--- recent serial (last %d bytes) ---\n", serRingFill)
					startIdx := (serRingIdx - serRingFill + serialWindow) % serialWindow
					for j := 0; j < serRingFill; j++ {
						fmt.Printf("%c", serRing[(startIdx+j)%serialWindow])
					}
					fmt.Printf("\n--- end serial ---\n")
				}
				fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", i+1, cycles, time.Since(start).Truncate(time.Millisecond))
				os.Exit(1)
			}
		} else if until != "" {
			if strings.Contains(strings.ToLower(ser.String()), strings.ToLower(until)) {
				fmt.Printf("\nDetected '%s' in serial output.\n", until)
				fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", i+1, cycles, time.Since(start).Truncate(time.Millisecond))
				return nil
			}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("\nTimeout after %s.\n", time.Since(start).Truncate(time.Millisecond))
			fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", i+1, cycles, time.Since(start).Truncate(time.Millisecond))
			os.Exit(2)
		}
	}
	dur := time.Since(start)
	fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", steps, cycles, dur.Truncate(time.Millisecond))
	return nil
}
