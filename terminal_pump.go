// terminal_pump.go - Console output pump shared by the terminal hosts
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ConsoleIO is the side of the debug console a host talks to.
type ConsoleIO interface {
	RouteHostKey(b byte)
	DrainOutput() string
}

const (
	terminalPumpInterval = 10 * time.Millisecond
	hostEscapeKey        = 0x1D // Ctrl-]
)

// translateHostKey maps raw-mode terminal bytes to what DOS-era guests expect.
func translateHostKey(b byte) byte {
	switch b {
	case '\r':
		// Raw mode sends CR for Enter
		return '\n'
	case 0x7F:
		// Modern terminals send DEL for Backspace
		return 0x08
	}
	return b
}

func (h *TerminalHost) route(b byte) {
	if b == hostEscapeKey && h.OnEscape != nil {
		h.OnEscape()
		return
	}
	h.console.RouteHostKey(translateHostKey(b))
}

// PrintOutput drains the console output buffer and prints it to stdout.
func (h *TerminalHost) PrintOutput() {
	writeConsoleOutput(os.Stdout, h.console.DrainOutput())
}

// writeConsoleOutput prints guest text. The terminal is in raw mode, so a
// bare LF needs a CR to return the cursor.
func writeConsoleOutput(w io.Writer, out string) {
	if out == "" {
		return
	}
	out = strings.ReplaceAll(out, "\r\n", "\n")
	fmt.Fprint(w, strings.ReplaceAll(out, "\n", "\r\n"))
}

// Pump prints console output until ctx ends.
func (h *TerminalHost) Pump(ctx context.Context) error {
	return PumpConsole(ctx, h.console, os.Stdout)
}

// PumpConsole copies console output to w until ctx ends. Used directly when
// stdin belongs to someone else (the monitor prompt, a pipe).
func PumpConsole(ctx context.Context, c ConsoleIO, w io.Writer) error {
	ticker := time.NewTicker(terminalPumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			writeConsoleOutput(w, c.DrainOutput())
			return nil
		case <-ticker.C:
			writeConsoleOutput(w, c.DrainOutput())
		}
	}
}
