// debug_disasm_x86.go - 16-bit x86 disassembly for the monitor, trace and disasm command

package main

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// x86MaxInstrLen is the longest encoding the CPU accepts (prefix run included).
const x86MaxInstrLen = 15

// disasmOne decodes the instruction at seg:off. Offsets wrap within the
// segment the same way instruction fetch does.
func disasmOne(read func(addr uint32) byte, seg, off uint16) DisassembledLine {
	var buf [x86MaxInstrLen]byte
	for i := range buf {
		buf[i] = read(Linear(seg, off+uint16(i)))
	}
	line := DisassembledLine{
		Address: uint64(Linear(seg, off)),
		Segment: seg,
		Offset:  off,
	}
	inst, err := x86asm.Decode(buf[:], 16)
	if err != nil || inst.Len == 0 {
		line.Size = 1
		line.HexBytes = fmt.Sprintf("%02X", buf[0])
		line.Mnemonic = fmt.Sprintf("db 0x%02x", buf[0])
		return line
	}
	line.Size = inst.Len
	line.HexBytes = hexBytes(buf[:inst.Len])
	line.Mnemonic = strings.ToLower(x86asm.IntelSyntax(inst, uint64(off), nil))
	return line
}

// disassembleX86 returns count instructions starting at seg:off.
func disassembleX86(read func(addr uint32) byte, seg, off uint16, count int) []DisassembledLine {
	lines := make([]DisassembledLine, 0, count)
	for range count {
		l := disasmOne(read, seg, off)
		lines = append(lines, l)
		off += uint16(l.Size)
	}
	return lines
}

// DisassembleImage renders a flat image loaded at origin. Used by the disasm
// command on ROM files.
func DisassembleImage(code []byte, origin uint32) string {
	var sb strings.Builder
	offset := 0
	for offset < len(code) {
		inst, err := x86asm.Decode(code[offset:], 16)
		if err != nil || inst.Len == 0 {
			fmt.Fprintf(&sb, "%05X: %-20s db 0x%02x\n", origin+uint32(offset), fmt.Sprintf("%02X", code[offset]), code[offset])
			offset++
			continue
		}
		fmt.Fprintf(&sb, "%05X: %-20s %s\n",
			origin+uint32(offset),
			hexBytes(code[offset:offset+inst.Len]),
			strings.ToLower(x86asm.IntelSyntax(inst, uint64(origin)+uint64(offset), nil)))
		offset += inst.Len
	}
	return sb.String()
}

func hexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}

// FormatDisassembly renders monitor lines with a marker on the current IP.
func FormatDisassembly(lines []DisassembledLine) string {
	var sb strings.Builder
	for _, l := range lines {
		marker := "  "
		if l.IsPC {
			marker = "> "
		}
		fmt.Fprintf(&sb, "%s%s  %-20s %s\n", marker, formatSegOff(l.Segment, l.Offset), l.HexBytes, l.Mnemonic)
	}
	return sb.String()
}

// EnableTrace logs every executed instruction at trace level under the cpu
// module as "CS:IP  bytes  mnemonic".
func EnableTrace(cpu *CPU_X86) {
	cpu.OnDecode = func(in *Instruction) {
		if !logEnabled(LevelTrace, modCPU) {
			return
		}
		raw := make([]byte, in.Length)
		for i := range raw {
			raw[i] = cpu.bus.Read(Linear(in.CS, in.IP+uint16(i)))
		}
		text := in.String()
		if inst, err := x86asm.Decode(raw, 16); err == nil {
			text = strings.ToLower(x86asm.IntelSyntax(inst, uint64(in.IP), nil))
		}
		logTrace(modCPU, fmt.Sprintf("%s  %-20s %s", formatSegOff(in.CS, in.IP), hexBytes(raw), text))
	}
	logInfo(modCPU, "instruction trace enabled")
}

// DisableTrace removes the trace hook.
func DisableTrace(cpu *CPU_X86) {
	cpu.OnDecode = nil
}
