// debug_ioview.go - I/O register viewer for Machine Monitor

package main

import (
	"fmt"
	"slices"
	"strings"
)

// IORegisterDesc describes a single device register for display. Value reads
// device state directly; a port read could have side effects (key queues,
// PIT read flip-flops).
type IORegisterDesc struct {
	Name   string
	Port   uint16
	Access string // "RW", "RO", "WO"
	Value  func(dev Device) uint16
}

// IODeviceDesc describes the registers of one device type.
type IODeviceDesc struct {
	Name      string
	Registers []IORegisterDesc
}

func picReg(chip, which int) func(Device) uint16 {
	return func(dev Device) uint16 {
		irr, isr, imr := dev.(*DualPIC).Registers(chip)
		return uint16([]byte{irr, isr, imr}[which])
	}
}

func cmosReg(idx byte) func(Device) uint16 {
	return func(dev Device) uint16 { return uint16(dev.(*CMOS).Register(idx)) }
}

func pitReload(channel int) func(Device) uint16 {
	return func(dev Device) uint16 { return dev.(*PIT).Reload(channel) }
}

func pitCount(channel int) func(Device) uint16 {
	return func(dev Device) uint16 {
		_, count, _ := dev.(*PIT).Channel(channel)
		return count
	}
}

var ioDevices = map[string]*IODeviceDesc{
	"pic": {
		Name: "8259 PIC",
		Registers: []IORegisterDesc{
			{"MASTER_IRR", PIC_MASTER_COMMAND, "RO", picReg(0, 0)},
			{"MASTER_ISR", PIC_MASTER_COMMAND, "RO", picReg(0, 1)},
			{"MASTER_IMR", PIC_MASTER_DATA, "RW", picReg(0, 2)},
			{"MASTER_BASE", PIC_MASTER_DATA, "WO", func(dev Device) uint16 {
				m, _ := dev.(*DualPIC).VectorOffsets()
				return uint16(m)
			}},
			{"SLAVE_IRR", PIC_SLAVE_COMMAND, "RO", picReg(1, 0)},
			{"SLAVE_ISR", PIC_SLAVE_COMMAND, "RO", picReg(1, 1)},
			{"SLAVE_IMR", PIC_SLAVE_DATA, "RW", picReg(1, 2)},
			{"SLAVE_BASE", PIC_SLAVE_DATA, "WO", func(dev Device) uint16 {
				_, s := dev.(*DualPIC).VectorOffsets()
				return uint16(s)
			}},
		},
	},
	"cmos": {
		Name: "CMOS RTC",
		Registers: []IORegisterDesc{
			{"INDEX", CMOS_PORT_INDEX, "WO", func(dev Device) uint16 { return uint16(dev.(*CMOS).Selected()) }},
			{"SECONDS", CMOS_PORT_DATA, "RW", cmosReg(CMOS_REG_SECONDS)},
			{"MINUTES", CMOS_PORT_DATA, "RW", cmosReg(CMOS_REG_MINUTES)},
			{"HOURS", CMOS_PORT_DATA, "RW", cmosReg(CMOS_REG_HOURS)},
			{"DAY_OF_WEEK", CMOS_PORT_DATA, "RW", cmosReg(CMOS_REG_DAY_OF_WEEK)},
			{"DAY_OF_MONTH", CMOS_PORT_DATA, "RW", cmosReg(CMOS_REG_DAY_OF_MONTH)},
			{"MONTH", CMOS_PORT_DATA, "RW", cmosReg(CMOS_REG_MONTH)},
			{"YEAR", CMOS_PORT_DATA, "RW", cmosReg(CMOS_REG_YEAR)},
			{"STATUS_A", CMOS_PORT_DATA, "RW", cmosReg(CMOS_REG_STATUS_A)},
			{"STATUS_B", CMOS_PORT_DATA, "RW", cmosReg(CMOS_REG_STATUS_B)},
		},
	},
	"pit": {
		Name: "8253 PIT",
		Registers: []IORegisterDesc{
			{"CH0_RELOAD", PIT_PORT_CHANNEL0, "WO", pitReload(0)},
			{"CH0_COUNT", PIT_PORT_CHANNEL0, "RO", pitCount(0)},
			{"CH1_RELOAD", PIT_PORT_CHANNEL0 + 1, "WO", pitReload(1)},
			{"CH1_COUNT", PIT_PORT_CHANNEL0 + 1, "RO", pitCount(1)},
			{"CH2_RELOAD", PIT_PORT_CHANNEL2, "WO", pitReload(2)},
			{"CH2_COUNT", PIT_PORT_CHANNEL2, "RO", pitCount(2)},
		},
	},
	"speaker": {
		Name: "PC Speaker",
		Registers: []IORegisterDesc{
			{"CONTROL", SPEAKER_PORT, "RW", func(dev Device) uint16 { return uint16(dev.(*Speaker).Control()) }},
		},
	},
	"console": {
		Name: "Debug Console",
		Registers: []IORegisterDesc{
			{"WRITTEN", CONSOLE_PORT, "RO", func(dev Device) uint16 { return uint16(dev.(*Console).Written()) }},
		},
	},
}

// formatIOView renders the register view for an attached device.
func formatIOView(sys *System, deviceName string) []string {
	h := sys.Device(deviceName)
	if h == nil {
		return []string{fmt.Sprintf("Unknown device: %s", deviceName)}
	}

	var lines []string
	h.With(func(dev Device) {
		if l, ok := dev.(*LuaDevice); ok {
			lines = append(lines, fmt.Sprintf("--- Lua device %s ---", l.Name()))
			for _, p := range l.Ports() {
				lines = append(lines, fmt.Sprintf("  port $%04X", p))
			}
			return
		}
		desc, ok := ioDevices[deviceName]
		if !ok {
			lines = append(lines, fmt.Sprintf("No register view for %s", deviceName))
			return
		}
		lines = append(lines, fmt.Sprintf("--- %s Registers ---", desc.Name))
		for _, reg := range desc.Registers {
			val := reg.Value(dev)
			lines = append(lines, fmt.Sprintf("  %-14s ($%04X) = $%04X [%d] %s", reg.Name, reg.Port, val, val, reg.Access))
		}
	})
	return lines
}

// listIODevices returns the names of the attached devices.
func listIODevices(sys *System) []string {
	var names []string
	for _, h := range sys.Devices() {
		names = append(names, h.Name())
	}
	slices.Sort(names)
	return names
}

func (m *MachineMonitor) cmdIOView(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		m.appendOutput("Devices: "+strings.Join(listIODevices(m.machine.System), " "), colorCyan)
		return false
	}
	for _, line := range formatIOView(m.machine.System, strings.ToLower(cmd.Args[0])) {
		m.appendOutput(line, colorWhite)
	}
	return false
}
