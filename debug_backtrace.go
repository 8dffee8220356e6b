// debug_backtrace.go - Stack walk for the Machine Monitor

package main

import (
	"encoding/binary"
	"fmt"
)

// StackSlot is one word on the guest stack.
type StackSlot struct {
	Seg, Off uint16
	Value    uint16
}

// backtraceX86 reads depth words upward from SS:SP. Without frame pointers
// this is a raw stack view: return offsets show up mixed with saved data.
func backtraceX86(cpu DebuggableCPU, depth int) []StackSlot {
	ss, _ := cpu.GetRegister("SS")
	sp, _ := cpu.GetRegister("SP")
	seg, off := uint16(ss), uint16(sp)

	var result []StackSlot
	for range depth {
		// each byte separately so the word wraps inside the segment
		lo := cpu.ReadMemory(uint64(Linear(seg, off)), 1)
		hi := cpu.ReadMemory(uint64(Linear(seg, off+1)), 1)
		if len(lo) < 1 || len(hi) < 1 {
			break
		}
		result = append(result, StackSlot{Seg: seg, Off: off, Value: binary.LittleEndian.Uint16([]byte{lo[0], hi[0]})})
		off += 2
		if off == 0 {
			break
		}
	}
	return result
}

// frameChain follows saved BP values (the ENTER/LEAVE or push bp; mov bp,sp
// convention) and returns the return offset of each frame.
func frameChain(cpu DebuggableCPU, depth int) []StackSlot {
	ss, _ := cpu.GetRegister("SS")
	bp, _ := cpu.GetRegister("BP")
	seg, off := uint16(ss), uint16(bp)

	var result []StackSlot
	for range depth {
		frame := cpu.ReadMemory(uint64(Linear(seg, off)), 4)
		if len(frame) < 4 {
			break
		}
		saved := binary.LittleEndian.Uint16(frame[0:2])
		ret := binary.LittleEndian.Uint16(frame[2:4])
		result = append(result, StackSlot{Seg: seg, Off: off + 2, Value: ret})
		// frames grow upward in memory as we unwind
		if saved <= off {
			break
		}
		off = saved
	}
	return result
}

func (m *MachineMonitor) cmdBacktrace(cmd MonitorCommand) bool {
	depth := 8
	if len(cmd.Args) >= 1 {
		if v, ok := parseNumber(cmd.Args[0]); ok && v > 0 && v <= 256 {
			depth = int(v)
		}
	}

	m.appendOutput("Stack (SS:SP upward):", colorCyan)
	for i, slot := range backtraceX86(m.cpu, depth) {
		m.appendOutput(fmt.Sprintf("  #%-3d %s  $%04X", i, formatSegOff(slot.Seg, slot.Off), slot.Value), colorWhite)
	}

	frames := frameChain(m.cpu, depth)
	if len(frames) == 0 {
		return false
	}
	m.appendOutput("BP frames:", colorCyan)
	for i, f := range frames {
		m.appendOutput(fmt.Sprintf("  #%-3d ret $%04X  (at %s)", i, f.Value, formatSegOff(f.Seg, f.Off)), colorWhite)
	}
	return false
}
