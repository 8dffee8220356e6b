// debug_repl.go - Terminal front end for the Machine Monitor
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// MonitorREPL drives a MachineMonitor from a readline prompt. While the
// machine runs after g, Ctrl-C drops back into the monitor.
type MonitorREPL struct {
	mon    *MachineMonitor
	runner *CPUX86Runner
	rl     *readline.Instance
	out    io.Writer
	color  bool
}

func monitorCompleter(mon *MachineMonitor) *readline.PrefixCompleter {
	devices := func(string) []string { return listIODevices(mon.machine.System) }
	return readline.NewPrefixCompleter(
		readline.PcItem("r"),
		readline.PcItem("s"),
		readline.PcItem("g"),
		readline.PcItem("d"),
		readline.PcItem("m"),
		readline.PcItem("w"),
		readline.PcItem("f"),
		readline.PcItem("h"),
		readline.PcItem("t"),
		readline.PcItem("b"),
		readline.PcItem("bc"),
		readline.PcItem("bl"),
		readline.PcItem("bt"),
		readline.PcItem("i"),
		readline.PcItem("io", readline.PcItemDynamic(devices)),
		readline.PcItem("save"),
		readline.PcItem("load"),
		readline.PcItem("trace", readline.PcItem("off")),
		readline.PcItem("x"),
		readline.PcItem("help"),
	)
}

// NewMonitorREPL opens the prompt. historyFile may be empty.
func NewMonitorREPL(mon *MachineMonitor, runner *CPUX86Runner, historyFile string) (*MonitorREPL, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile,
		AutoComplete:    monitorCompleter(mon),
		InterruptPrompt: "^C",
		EOFPrompt:       "x",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start readline: %w", err)
	}
	return &MonitorREPL{
		mon:    mon,
		runner: runner,
		rl:     rl,
		out:    rl.Stdout(),
		color:  term.IsTerminal(int(os.Stdout.Fd())),
	}, nil
}

func (r *MonitorREPL) Close() error {
	return r.rl.Close()
}

// Run enters the monitor and reads commands until x, EOF or ctx ends.
func (r *MonitorREPL) Run(ctx context.Context) error {
	r.mon.Activate()
	for {
		r.flush()
		if err := ctx.Err(); err != nil {
			return err
		}
		r.rl.SetPrompt(r.prompt())

		line, err := r.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if !r.mon.ExecuteCommand(line) {
			continue
		}
		if !r.mon.GoRequested() {
			r.flush()
			return nil
		}
		r.mon.Deactivate()
		if err := r.waitStop(ctx); err != nil {
			return err
		}
	}
}

// waitStop blocks while the machine runs, re-entering the monitor when it
// stops on its own or on Ctrl-C.
func (r *MonitorREPL) waitStop(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- r.runner.Wait() }()

	select {
	case <-done:
		select {
		case ev := <-r.mon.Breakpoints():
			r.mon.handleBreakpointHit(ev)
		default:
			r.mon.Activate()
		}
	case <-sigCtx.Done():
		r.mon.Activate()
		<-done
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *MonitorREPL) prompt() string {
	cs, _ := r.mon.cpu.GetRegister("CS")
	ip, _ := r.mon.cpu.GetRegister("IP")
	return formatSegOff(uint16(cs), uint16(ip)) + "> "
}

func (r *MonitorREPL) flush() {
	for _, line := range r.mon.DrainOutput() {
		fmt.Fprintln(r.out, r.paint(line))
	}
}

// paint turns a scrollback colour into a 24-bit ANSI escape.
func (r *MonitorREPL) paint(line OutputLine) string {
	if !r.color || line.Color == colorWhite {
		return line.Text
	}
	red, green, blue := line.Color>>24, (line.Color>>16)&0xFF, (line.Color>>8)&0xFF
	var sb strings.Builder
	fmt.Fprintf(&sb, "\x1b[38;2;%d;%d;%dm%s\x1b[0m", red, green, blue, line.Text)
	return sb.String()
}
