// debug_monitor.go - machine monitor core (freeze/resume, activate/deactivate)

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▒██   ██▒▄▄▄█████▓
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▒▒ █ █ ▒░▓  ██▒ ▓▒
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ░░  █   ░▒ ▓██░ ▒░
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒    ░ █ █ ▒ ░ ▓██▓ ░
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ▒██▒ ▒██▒  ▒██▒ ░
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ▒▒ ░ ░▓ ░  ▒ ░░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░   ░░   ░▒ ░    ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░     ░    ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░     ░    ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionXT
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"sync"
)

// MonitorState represents whether the monitor is active.
type MonitorState int

const (
	MonitorInactive MonitorState = iota
	MonitorActive
)

// OutputLine holds styled text for the monitor scrollback buffer.
type OutputLine struct {
	Text  string
	Color uint32 // RGBA packed
}

// MachineMonitor is the debugger state machine for one machine.
type MachineMonitor struct {
	mu    sync.Mutex
	state MonitorState

	cpu     *DebugX86
	machine *Machine

	breakpointChan chan BreakpointEvent

	outputLines []OutputLine
	maxOutput   int
	drained     int // lines already handed to DrainOutput

	history []string

	wasRunning bool
	goPending  bool // set by g: the front end should run the machine

	prevRegs map[string]uint64 // for change highlighting

	// where d and m continue from when given no address
	nextDisSeg, nextDisOff uint16
	nextDump               uint32
}

// NewMachineMonitor creates a monitor over a machine and its runner.
func NewMachineMonitor(machine *Machine, runner *CPUX86Runner) *MachineMonitor {
	m := &MachineMonitor{
		state:          MonitorInactive,
		cpu:            NewDebugX86(runner),
		machine:        machine,
		breakpointChan: make(chan BreakpointEvent, 1),
		maxOutput:      500,
		prevRegs:       make(map[string]uint64),
	}
	m.cpu.SetBreakpointChannel(m.breakpointChan)
	return m
}

// CPU returns the debug adapter.
func (m *MachineMonitor) CPU() *DebugX86 {
	return m.cpu
}

// IsActive returns whether the monitor is currently shown.
func (m *MachineMonitor) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == MonitorActive
}

// Activate freezes the machine and enters the monitor.
func (m *MachineMonitor) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == MonitorActive {
		return
	}
	m.state = MonitorActive
	m.wasRunning = m.cpu.IsRunning()
	if m.wasRunning {
		m.cpu.Freeze()
	}
	m.enter("MACHINE MONITOR - Type ? for help", colorCyan)
}

// enter prints the banner and the current state. Callers hold m.mu.
func (m *MachineMonitor) enter(banner string, color uint32) {
	m.appendOutput(banner, color)
	if err := m.cpu.runner.Err(); err != nil && err != ErrBreakpoint {
		m.appendOutput(fmt.Sprintf("Machine stopped: %v", err), colorRed)
	}
	m.showRegisters()
	m.saveCurrentRegs()
	m.showDisassembly(8)
}

// Deactivate resumes the machine if it was running, or if g asked for it.
func (m *MachineMonitor) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == MonitorInactive {
		return
	}
	m.state = MonitorInactive
	if m.wasRunning || m.goPending {
		m.goPending = false
		m.cpu.Resume()
	}
}

// appendOutput adds a line to the scrollback buffer.
func (m *MachineMonitor) appendOutput(text string, color uint32) {
	m.outputLines = append(m.outputLines, OutputLine{Text: text, Color: color})
	if len(m.outputLines) > m.maxOutput {
		cut := len(m.outputLines) - m.maxOutput
		m.outputLines = m.outputLines[cut:]
		m.drained = max(0, m.drained-cut)
	}
}

// DrainOutput returns the lines added since the previous call.
func (m *MachineMonitor) DrainOutput() []OutputLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]OutputLine(nil), m.outputLines[m.drained:]...)
	m.drained = len(m.outputLines)
	return out
}

// Output returns the whole scrollback buffer.
func (m *MachineMonitor) Output() []OutputLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutputLine(nil), m.outputLines...)
}

// saveCurrentRegs snapshots the registers for change detection.
func (m *MachineMonitor) saveCurrentRegs() {
	m.prevRegs = make(map[string]uint64)
	for _, r := range m.cpu.GetRegisters() {
		m.prevRegs[r.Name] = r.Value
	}
}

// StartBreakpointListener runs a background goroutine that watches for
// breakpoint events and activates the monitor.
func (m *MachineMonitor) StartBreakpointListener() {
	go func() {
		for ev := range m.breakpointChan {
			m.handleBreakpointHit(ev)
		}
	}()
}

// Breakpoints exposes the event channel to front ends that wait on it.
func (m *MachineMonitor) Breakpoints() <-chan BreakpointEvent {
	return m.breakpointChan
}

func (m *MachineMonitor) handleBreakpointHit(ev BreakpointEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The runner already stopped itself before publishing the event.
	m.wasRunning = true
	m.state = MonitorActive
	m.enter(fmt.Sprintf("BREAK at %s ($%05X)", formatSegOff(ev.CS, ev.IP), ev.Address), colorRed)
	logDebug(modMonitor, "breakpoint hit", "at", formatSegOff(ev.CS, ev.IP))
}

// Color constants (RGBA packed as 0xRRGGBBAA)
const (
	colorWhite  = 0xFFFFFFFF
	colorCyan   = 0x64C8FFFF
	colorYellow = 0xFFFF55FF
	colorRed    = 0xFF5555FF
	colorGreen  = 0x55FF55FF
	colorDim    = 0x5555FFFF
)
