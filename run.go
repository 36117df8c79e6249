package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"debug80/emu"
	"debug80/emu/debugger"
	"debug80/emu/log"
	"debug80/hw/input"
	"debug80/hw/platform"
)

// setupMachine loads the configuration and the program and builds the
// machine.
func setupMachine(cli CLI, prog Program) (emu.Config, *emu.Machine, error) {
	cfg, err := emu.LoadConfig(cli.Config)
	if err != nil {
		return cfg, nil, err
	}
	if prog.Platform != "" {
		cfg.Machine.Platform = prog.Platform
	}
	if cli.Trace != nil {
		cfg.TraceOut = cli.Trace
	}

	p, err := emu.LoadProgram(prog.Path, uint16(prog.Origin))
	if err != nil {
		return cfg, nil, err
	}
	m, err := emu.NewMachine(cfg)
	if err != nil {
		return cfg, nil, err
	}
	m.Load(p)
	return cfg, m, nil
}

// startAudio streams the speaker to the configured output file. The returned
// function closes it.
func startAudio(cfg emu.Config, m *emu.Machine) (func() error, error) {
	if !cfg.Audio.Enabled {
		return func() error { return nil }, nil
	}
	if cfg.Audio.Output == "" {
		log.ModSound.WarnZ("audio enabled without output file").End()
		return func() error { return nil }, nil
	}
	f, err := os.Create(cfg.Audio.Output)
	if err != nil {
		return nil, fmt.Errorf("audio output: %w", err)
	}
	m.EnableAudio(f)
	log.ModSound.InfoZ("audio output").
		String("path", cfg.Audio.Output).
		Int("rate", cfg.Audio.SampleRate).
		End()
	return f.Close, nil
}

// startBridge opens the configured host serial port, if any, and adds it to
// g.
func startBridge(ctx context.Context, g *errgroup.Group, cfg emu.Config, e *emu.Emulator) error {
	if cfg.Serial.Device == "" {
		return nil
	}
	b, err := emu.OpenSerialBridge(cfg.Serial)
	if err != nil {
		return err
	}
	b.Attach(e)
	g.Go(func() error { return b.Run(ctx, e) })
	return nil
}

// runMain runs the program with the terminal as keypad and display.
func runMain(cli CLI) error {
	args := cli.Run
	if cli.Trace != nil {
		defer cli.Trace.Close()
	}

	cfg, m, err := setupMachine(cli, args.Program)
	if err != nil {
		return err
	}
	if args.Slow {
		m.SetSpeed(platform.SpeedSlow)
	}
	closeAudio, err := startAudio(cfg, m)
	if err != nil {
		return err
	}
	defer closeAudio()

	e := emu.NewEmulator(m)
	e.ResumeOnHalt = true

	scr := newScreen(os.Stdout)
	e.OnSnapshot(scr.draw)
	e.OnSerial(scr.serial)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if err := startBridge(ctx, g, cfg, e); err != nil {
		return err
	}

	fd := int(os.Stdin.Fd())
	interactive := term.IsTerminal(fd)
	if interactive {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to set terminal raw mode: %w", err)
		}
		defer term.Restore(fd, old)
	}

	// The keypad reader blocks on stdin, it is not part of the group.
	go func() {
		err := input.NewProvider(cfg.Input).Run(ctx, os.Stdin, e.Key)
		if err != nil && ctx.Err() == nil {
			log.ModInput.WarnZ("keypad input failed").Error("err", err).End()
		}
		if interactive {
			cancel()
		}
	}()

	e.Continue()
	g.Go(func() error { return e.Run(ctx) })
	return g.Wait()
}

// debugMain loads the program paused and serves the debugger until
// interrupted.
func debugMain(cli CLI) error {
	args := cli.Debug
	if cli.Trace != nil {
		defer cli.Trace.Close()
	}

	cfg, m, err := setupMachine(cli, args.Program)
	if err != nil {
		return err
	}
	closeAudio, err := startAudio(cfg, m)
	if err != nil {
		return err
	}
	defer closeAudio()

	e := emu.NewEmulator(m)
	srv := debugger.NewServer(e)
	e.OnState(srv.PublishState)
	e.OnSnapshot(srv.PublishSnapshot)
	e.OnSerial(srv.PublishSerial)

	addr := cfg.Debugger.Addr
	if args.Addr != "" {
		addr = args.Addr
	}
	if err := srv.Listen(addr); err != nil {
		return err
	}
	fmt.Printf("debugger listening on ws://%s/ws\n", srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if err := startBridge(ctx, g, cfg, e); err != nil {
		return err
	}
	g.Go(func() error { return srv.Serve(ctx) })
	g.Go(func() error { return e.Run(ctx) })
	if args.Go {
		e.Continue()
	}
	return g.Wait()
}

// infoMain prints the segments of a program.
func infoMain(w io.Writer, prog Program) error {
	p, err := emu.LoadProgram(prog.Path, uint16(prog.Origin))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "program: %s\n", p.Path)
	fmt.Fprintf(w, "entry:   $%04X\n", p.Entry)
	fmt.Fprintf(w, "size:    %d bytes\n", p.Size())
	fmt.Fprintf(w, "segments:\n")
	for _, s := range p.Segments {
		fmt.Fprintf(w, "  $%04X-$%04X  %5d bytes\n", s.Addr, s.End(), len(s.Data))
	}
	return nil
}
