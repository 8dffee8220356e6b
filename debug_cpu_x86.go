// debug_cpu_x86.go - x86 debug adapter for the machine monitor

package main

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

type DebugX86 struct {
	sys    *System
	runner *CPUX86Runner

	bpMu        sync.RWMutex
	breakpoints map[uint64]*ConditionalBreakpoint
	bpChan      chan<- BreakpointEvent
}

func NewDebugX86(runner *CPUX86Runner) *DebugX86 {
	d := &DebugX86{
		sys:         runner.System(),
		runner:      runner,
		breakpoints: make(map[uint64]*ConditionalBreakpoint),
	}
	d.sys.BreakCheck = d.checkBreak
	runner.OnStop = d.stopped
	return d
}

func (d *DebugX86) CPUName() string { return "X86" }

var x86DebugRegs = []struct {
	name  string
	group string
	idx   int
}{
	{"AX", "general", x86RegAX},
	{"BX", "general", x86RegBX},
	{"CX", "general", x86RegCX},
	{"DX", "general", x86RegDX},
	{"SI", "general", x86RegSI},
	{"DI", "general", x86RegDI},
	{"BP", "general", x86RegBP},
	{"SP", "general", x86RegSP},
	{"CS", "segment", x86SegCS},
	{"DS", "segment", x86SegDS},
	{"ES", "segment", x86SegES},
	{"SS", "segment", x86SegSS},
}

func (d *DebugX86) GetRegisters() []RegisterInfo {
	c := d.sys.CPU
	regs := make([]RegisterInfo, 0, len(x86DebugRegs)+2)
	for _, r := range x86DebugRegs {
		var v uint16
		if r.group == "segment" {
			v = c.Seg(r.idx)
		} else {
			v = c.Reg16(byte(r.idx))
		}
		regs = append(regs, RegisterInfo{Name: r.name, BitWidth: 16, Value: uint64(v), Group: r.group})
	}
	regs = append(regs,
		RegisterInfo{Name: "IP", BitWidth: 16, Value: uint64(c.IP), Group: "ip"},
		RegisterInfo{Name: "FLAGS", BitWidth: 16, Value: uint64(c.Flags.Pack16()), Group: "flags"},
	)
	return regs
}

func (d *DebugX86) GetRegister(name string) (uint64, bool) {
	c := d.sys.CPU
	name = strings.ToUpper(name)
	switch name {
	case "IP":
		return uint64(c.IP), true
	case "FLAGS":
		return uint64(c.Flags.Pack16()), true
	}
	for i, n := range x86Reg8Names {
		if n == name {
			return uint64(c.Reg8(byte(i))), true
		}
	}
	for _, r := range x86DebugRegs {
		if r.name != name {
			continue
		}
		if r.group == "segment" {
			return uint64(c.Seg(r.idx)), true
		}
		return uint64(c.Reg16(byte(r.idx))), true
	}
	return 0, false
}

func (d *DebugX86) SetRegister(name string, value uint64) bool {
	c := d.sys.CPU
	name = strings.ToUpper(name)
	switch name {
	case "IP":
		c.IP = uint16(value)
		return true
	case "FLAGS":
		c.Flags = Unpack16(uint16(value))
		return true
	}
	for i, n := range x86Reg8Names {
		if n == name {
			c.SetReg8(byte(i), byte(value))
			return true
		}
	}
	for _, r := range x86DebugRegs {
		if r.name != name {
			continue
		}
		if r.group == "segment" {
			c.SetSeg(r.idx, uint16(value))
		} else {
			c.SetReg16(byte(r.idx), uint16(value))
		}
		return true
	}
	return false
}

func (d *DebugX86) GetPC() uint64 {
	c := d.sys.CPU
	return uint64(Linear(c.CS(), c.IP))
}

func (d *DebugX86) IsRunning() bool {
	return d.runner.IsRunning()
}

func (d *DebugX86) Freeze() {
	d.runner.Stop()
}

func (d *DebugX86) Resume() {
	d.runner.StartExecution()
}

func (d *DebugX86) Step() error {
	return d.runner.Step()
}

// checkBreak is installed as the System's BreakCheck and runs under the
// system lock.
func (d *DebugX86) checkBreak(cs, ip uint16) bool {
	addr := uint64(Linear(cs, ip))
	d.bpMu.RLock()
	bp := d.breakpoints[addr]
	d.bpMu.RUnlock()
	if bp == nil {
		return false
	}
	d.bpMu.Lock()
	bp.HitCount++
	hits := bp.HitCount
	d.bpMu.Unlock()
	return evaluateConditionWithHitCount(bp.Condition, d, hits)
}

// stopped runs on the runner goroutine when execution ends by itself.
func (d *DebugX86) stopped(err error) {
	if !errors.Is(err, ErrBreakpoint) {
		return
	}
	c := d.sys.CPU
	ev := BreakpointEvent{Address: d.GetPC(), CS: c.CS(), IP: c.IP}
	if d.bpChan != nil {
		select {
		case d.bpChan <- ev:
		default:
		}
	}
}

func (d *DebugX86) Disassemble(seg, off uint16, count int) []DisassembledLine {
	c := d.sys.CPU
	lines := disassembleX86(d.sys.Memory.Read8, seg, off, count)
	for i := range lines {
		if lines[i].Segment == c.CS() && lines[i].Offset == c.IP {
			lines[i].IsPC = true
		}
	}
	return lines
}

func (d *DebugX86) SetBreakpoint(addr uint64) bool {
	return d.SetConditionalBreakpoint(addr, nil)
}

func (d *DebugX86) SetConditionalBreakpoint(addr uint64, cond *BreakpointCondition) bool {
	d.bpMu.Lock()
	defer d.bpMu.Unlock()
	d.breakpoints[addr&x86AddressMask] = &ConditionalBreakpoint{Address: addr & x86AddressMask, Condition: cond}
	return true
}

func (d *DebugX86) ClearBreakpoint(addr uint64) bool {
	d.bpMu.Lock()
	defer d.bpMu.Unlock()
	addr &= x86AddressMask
	if _, ok := d.breakpoints[addr]; ok {
		delete(d.breakpoints, addr)
		return true
	}
	return false
}

func (d *DebugX86) ClearAllBreakpoints() {
	d.bpMu.Lock()
	defer d.bpMu.Unlock()
	d.breakpoints = make(map[uint64]*ConditionalBreakpoint)
}

// ListConditionalBreakpoints returns the breakpoints sorted by address.
func (d *DebugX86) ListConditionalBreakpoints() []*ConditionalBreakpoint {
	d.bpMu.RLock()
	defer d.bpMu.RUnlock()
	result := make([]*ConditionalBreakpoint, 0, len(d.breakpoints))
	for _, bp := range d.breakpoints {
		result = append(result, bp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Address < result[j].Address })
	return result
}

func (d *DebugX86) ReadMemory(addr uint64, size int) []byte {
	return d.sys.Memory.DumpRange(uint32(addr), uint32(size))
}

// WriteMemory stores through the bus, so ROM stays protected.
func (d *DebugX86) WriteMemory(addr uint64, data []byte) {
	for i, b := range data {
		d.sys.Memory.Write8(uint32(addr)+uint32(i), b)
	}
}

func (d *DebugX86) SetBreakpointChannel(ch chan<- BreakpointEvent) {
	d.bpChan = ch
}
