// status_text.go - Text shown by the status window
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"strings"
)

const (
	statusConsoleLines = 16
	pasteLimit         = 4096
)

// StatusReport is everything the status window draws for one frame. Each
// part is read under its own lock.
type StatusReport struct {
	CPU     CPUSnapshot
	Running bool
	Err     error

	HasRTC bool
	RTC    string

	HasPIC bool
	PIC    string

	HasSpeaker bool
	ToneHz     float64
	ToneOn     bool

	Console []string
	Lua     int
}

// CollectStatus reads the machine for the status window. Device state comes
// through each device handle, one handle at a time.
func CollectStatus(m *Machine, runner *CPUX86Runner) StatusReport {
	r := StatusReport{
		CPU:     m.Snapshot(),
		Running: runner.IsRunning(),
		Err:     runner.Err(),
		Lua:     len(m.Lua),
	}
	if h := m.Device("cmos"); h != nil {
		h.With(func(dev Device) {
			r.HasRTC = true
			r.RTC = formatRTC(dev.(*CMOS))
		})
	}
	if h := m.Device("pic"); h != nil {
		h.With(func(dev Device) {
			r.HasPIC = true
			r.PIC = formatPIC(dev.(*DualPIC))
		})
	}
	if h := m.Device("speaker"); h != nil {
		h.With(func(dev Device) {
			r.HasSpeaker = true
			r.ToneHz, r.ToneOn = dev.(*Speaker).Tone()
		})
	}
	if m.Console != nil {
		r.Console = tailLines(m.Console.Screen(), statusConsoleLines)
	}
	return r
}

// formatRTC renders the clock as HH:MM:SS DD/MM/YY.
func formatRTC(c *CMOS) string {
	return fmt.Sprintf("%02d:%02d:%02d %02d/%02d/%02d",
		c.Register(CMOS_REG_HOURS), c.Register(CMOS_REG_MINUTES), c.Register(CMOS_REG_SECONDS),
		c.Register(CMOS_REG_DAY_OF_MONTH), c.Register(CMOS_REG_MONTH), c.Register(CMOS_REG_YEAR))
}

func formatPIC(p *DualPIC) string {
	mIRR, mISR, mIMR := p.Registers(0)
	sIRR, sISR, sIMR := p.Registers(1)
	mb, sb := p.VectorOffsets()
	return fmt.Sprintf("M IRR=%02X ISR=%02X IMR=%02X @%02X  S IRR=%02X ISR=%02X IMR=%02X @%02X",
		mIRR, mISR, mIMR, mb, sIRR, sISR, sIMR, sb)
}

// Lines flattens the report for drawing.
func (r StatusReport) Lines() []string {
	state := "STOPPED"
	switch {
	case r.Running:
		state = "RUNNING"
	case r.CPU.Halted:
		state = "HALTED"
	}
	lines := strings.Split(r.CPU.String(), "\n")
	lines = append(lines, fmt.Sprintf("%s  decoded %d", state, r.CPU.Decoded))
	if r.Err != nil {
		lines = append(lines, "stop: "+r.Err.Error())
	}
	if r.HasRTC {
		lines = append(lines, "RTC  "+r.RTC)
	}
	if r.HasPIC {
		lines = append(lines, "PIC  "+r.PIC)
	}
	if r.HasSpeaker {
		if r.ToneOn {
			lines = append(lines, fmt.Sprintf("SPK  %.1f Hz", r.ToneHz))
		} else {
			lines = append(lines, "SPK  off")
		}
	}
	if r.Console != nil {
		lines = append(lines, "", "--- console (port E9) ---")
		lines = append(lines, r.Console...)
	}
	return lines
}

// RegisterDump is what the window copies to the clipboard.
func (r StatusReport) RegisterDump() string {
	return r.CPU.String() + "\n"
}

// tailLines returns the last n lines of s.
func tailLines(s string, n int) []string {
	s = strings.TrimRight(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if s == "" {
		return []string{}
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func normalizePasteText(raw []byte) []byte {
	norm := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\r' {
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			norm = append(norm, '\n')
			continue
		}
		norm = append(norm, raw[i])
	}
	return norm
}

func capPasteText(raw []byte, max int) []byte {
	if len(raw) <= max {
		return raw
	}
	return raw[:max]
}
