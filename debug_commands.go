// debug_commands.go - command parser and handlers for the machine monitor

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
	"strconv"
	"strings"
)

// MonitorCommand is a parsed command with name and arguments.
type MonitorCommand struct {
	Name string
	Args []string
}

// ParseCommand splits a raw input line into a command name and arguments.
func ParseCommand(input string) MonitorCommand {
	input = strings.TrimSpace(input)
	if input == "" {
		return MonitorCommand{}
	}
	parts := strings.Fields(input)
	return MonitorCommand{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
	}
}

// parseNumber parses $hex, 0xhex, #decimal or bare hex.
func parseNumber(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	switch {
	case strings.HasPrefix(s, "#"):
		v, err := strconv.ParseUint(s[1:], 10, 64)
		return v, err == nil
	case strings.HasPrefix(s, "$"):
		v, err := strconv.ParseUint(s[1:], 16, 64)
		return v, err == nil
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil
	}
	v, err := strconv.ParseUint(s, 16, 64)
	return v, err == nil
}

// ParseAddress parses a monitor address in various formats:
// seg:off, $hex, 0xhex, bare hex, #decimal. seg:off yields the linear
// address.
func ParseAddress(s string) (uint64, bool) {
	if seg, off, ok := strings.Cut(s, ":"); ok {
		sv, ok1 := parseNumber(seg)
		ov, ok2 := parseNumber(off)
		if !ok1 || !ok2 || sv > 0xFFFF || ov > 0xFFFF {
			return 0, false
		}
		return uint64(Linear(uint16(sv), uint16(ov))), true
	}
	return parseNumber(s)
}

// EvalAddress evaluates a simple expression: <term> [+|- <term>]*
// Each term is either a register name or a number. "seg:off" evaluates
// each side and combines them into a linear address.
func EvalAddress(expr string, cpu DebuggableCPU) (uint64, bool) {
	seg, off, ok := evalSegOff(expr, cpu)
	if !ok {
		return 0, false
	}
	if seg < 0 {
		return uint64(off), true
	}
	return uint64(Linear(uint16(seg), uint16(off))), true
}

// evalSegOff evaluates an address expression. seg is -1 when the expression
// had no segment part, and off is then the full linear value.
func evalSegOff(expr string, cpu DebuggableCPU) (seg int, off uint64, ok bool) {
	expr = strings.TrimSpace(expr)
	if s, o, found := strings.Cut(expr, ":"); found {
		sv, ok1 := evalTerms(s, cpu)
		ov, ok2 := evalTerms(o, cpu)
		if !ok1 || !ok2 {
			return 0, 0, false
		}
		return int(uint16(sv)), uint64(uint16(ov)), true
	}
	v, ok := evalTerms(expr, cpu)
	return -1, v, ok
}

func evalTerms(expr string, cpu DebuggableCPU) (uint64, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, false
	}

	type token struct {
		text string
		op   byte // 0 for first term, '+' or '-'
	}

	var tokens []token
	current := strings.Builder{}
	currentOp := byte(0)

	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		if (ch == '+' || ch == '-') && i > 0 {
			if t := strings.TrimSpace(current.String()); t != "" {
				tokens = append(tokens, token{text: t, op: currentOp})
			}
			currentOp = ch
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}
	if t := strings.TrimSpace(current.String()); t != "" {
		tokens = append(tokens, token{text: t, op: currentOp})
	}
	if len(tokens) == 0 {
		return 0, false
	}

	var result uint64
	for _, tok := range tokens {
		var val uint64
		var ok bool
		// Register names win over bare hex ("BH" is a register, not 0xBH)
		if cpu != nil && isX86RegisterName(tok.text) {
			val, ok = cpu.GetRegister(tok.text)
		}
		if !ok {
			val, ok = parseNumber(tok.text)
		}
		if !ok {
			return 0, false
		}
		switch tok.op {
		case 0, '+':
			result += val
		case '-':
			result -= val
		}
	}
	return result, true
}

// resolveSegOff turns an address argument into a segment:offset pair.
// A plain linear address is split as paragraph:low nibble.
func (m *MachineMonitor) resolveSegOff(arg string) (uint16, uint16, bool) {
	seg, off, ok := evalSegOff(arg, m.cpu)
	if !ok {
		return 0, 0, false
	}
	if seg >= 0 {
		return uint16(seg), uint16(off), true
	}
	lin := uint32(off) & x86AddressMask
	return uint16(lin >> 4), uint16(lin & 0xF), true
}

// ExecuteCommand dispatches a command line to its handler.
// Returns true if the monitor should exit.
func (m *MachineMonitor) ExecuteCommand(input string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := ParseCommand(input)
	if cmd.Name == "" {
		return false
	}

	if len(m.history) == 0 || m.history[len(m.history)-1] != input {
		m.history = append(m.history, input)
	}

	switch cmd.Name {
	case "r":
		return m.cmdRegisters(cmd)
	case "s":
		return m.cmdStep(cmd)
	case "g":
		return m.cmdGo(cmd)
	case "d":
		return m.cmdDisassemble(cmd)
	case "m":
		return m.cmdMemoryDump(cmd)
	case "w":
		return m.cmdWrite(cmd)
	case "f":
		return m.cmdFill(cmd)
	case "h":
		return m.cmdHunt(cmd)
	case "t":
		return m.cmdTransfer(cmd)
	case "b":
		return m.cmdBreakpointSet(cmd)
	case "bc":
		return m.cmdBreakpointClear(cmd)
	case "bl":
		return m.cmdBreakpointList(cmd)
	case "bt":
		return m.cmdBacktrace(cmd)
	case "i":
		return m.cmdInfo(cmd)
	case "io":
		return m.cmdIOView(cmd)
	case "save":
		return m.cmdSaveState(cmd)
	case "load":
		return m.cmdLoadState(cmd)
	case "trace":
		return m.cmdTrace(cmd)
	case "x":
		return m.cmdExit(cmd)
	case "?", "help":
		return m.cmdHelp(cmd)
	default:
		m.appendOutput(fmt.Sprintf("Unknown command: %s", cmd.Name), colorRed)
		return false
	}
}

// History returns the commands entered so far.
func (m *MachineMonitor) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...)
}

func (m *MachineMonitor) cmdRegisters(cmd MonitorCommand) bool {
	if len(cmd.Args) >= 2 {
		name := cmd.Args[0]
		val, ok := EvalAddress(cmd.Args[1], m.cpu)
		if !ok {
			m.appendOutput(fmt.Sprintf("Invalid value: %s", cmd.Args[1]), colorRed)
			return false
		}
		if m.cpu.SetRegister(name, val) {
			m.appendOutput(fmt.Sprintf("%s = $%X", strings.ToUpper(name), val&0xFFFF), colorGreen)
		} else {
			m.appendOutput(fmt.Sprintf("Unknown register: %s", name), colorRed)
		}
		return false
	}
	m.showRegisters()
	m.saveCurrentRegs()
	return false
}

func (m *MachineMonitor) showRegisters() {
	var row []string
	var changed []string
	for _, r := range m.cpu.GetRegisters() {
		if r.Name == "FLAGS" {
			continue
		}
		row = append(row, fmt.Sprintf("%s=%04X", r.Name, r.Value))
		if prev, ok := m.prevRegs[r.Name]; ok && prev != r.Value {
			changed = append(changed, r.Name)
		}
	}
	m.appendOutput(strings.Join(row[:8], " "), colorWhite)
	m.appendOutput(strings.Join(row[8:], " ")+"  "+m.cpu.sys.CPU.Flags.String(), colorWhite)
	if len(changed) > 0 {
		m.appendOutput("changed: "+strings.Join(changed, " "), colorGreen)
	}
}

func (m *MachineMonitor) cmdDisassemble(cmd MonitorCommand) bool {
	c := m.cpu.sys.CPU
	seg, off := c.CS(), c.IP
	if m.nextDisSeg != 0 || m.nextDisOff != 0 {
		seg, off = m.nextDisSeg, m.nextDisOff
	}
	count := 16

	if len(cmd.Args) >= 1 {
		s, o, ok := m.resolveSegOff(cmd.Args[0])
		if !ok {
			m.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
			return false
		}
		seg, off = s, o
	}
	if len(cmd.Args) >= 2 {
		if v, ok := parseNumber(cmd.Args[1]); ok && v > 0 {
			count = int(v)
		}
	}
	m.showDisassemblyAt(seg, off, count)
	return false
}

// showDisassembly lists count instructions from the current CS:IP.
func (m *MachineMonitor) showDisassembly(count int) {
	c := m.cpu.sys.CPU
	m.showDisassemblyAt(c.CS(), c.IP, count)
}

func (m *MachineMonitor) showDisassemblyAt(seg, off uint16, count int) {
	lines := m.cpu.Disassemble(seg, off, count)
	bps := make(map[uint64]bool)
	for _, bp := range m.cpu.ListConditionalBreakpoints() {
		bps[bp.Address] = true
	}
	for _, line := range lines {
		color := uint32(colorWhite)
		prefix := "  "
		if line.IsPC {
			color = colorYellow
			prefix = "> "
		}
		if bps[line.Address] {
			prefix = "* "
			if !line.IsPC {
				color = colorRed
			}
		}
		m.appendOutput(fmt.Sprintf("%s%s  %-20s %s", prefix, formatSegOff(line.Segment, line.Offset), line.HexBytes, line.Mnemonic), color)
	}
	if n := len(lines); n > 0 {
		last := lines[n-1]
		m.nextDisSeg, m.nextDisOff = last.Segment, last.Offset+uint16(last.Size)
	}
}

func (m *MachineMonitor) cmdMemoryDump(cmd MonitorCommand) bool {
	addr := uint64(m.nextDump)
	length := uint64(128)
	radix := RadixHex

	if len(cmd.Args) >= 1 {
		v, ok := EvalAddress(cmd.Args[0], m.cpu)
		if !ok {
			m.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
			return false
		}
		addr = v
	}
	if len(cmd.Args) >= 2 {
		v, ok := parseNumber(cmd.Args[1])
		if !ok || v == 0 || v > X86_MEMORY_SIZE {
			m.appendOutput(fmt.Sprintf("Invalid length: %s", cmd.Args[1]), colorRed)
			return false
		}
		length = v
	}
	if len(cmd.Args) >= 3 {
		r, err := ParseRadix(cmd.Args[2])
		if err != nil {
			m.appendOutput(err.Error(), colorRed)
			return false
		}
		radix = r
	}

	perLine := uint64(16)
	if radix != RadixHex {
		perLine = 8
	}
	addr &= x86AddressMask
	for done := uint64(0); done < length; done += perLine {
		n := min(perLine, length-done)
		at := (addr + done) & x86AddressMask
		data := m.cpu.ReadMemory(at, int(n))
		text := fmt.Sprintf("%05X: %s", at, FormatDump(radix, data))
		if radix == RadixHex {
			text = fmt.Sprintf("%05X: %-47s  %s", at, FormatDump(radix, data), printable(data))
		}
		m.appendOutput(text, colorWhite)
	}
	m.nextDump = uint32(addr+length) & x86AddressMask
	return false
}

func printable(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b >= 0x20 && b < 0x7F {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

func (m *MachineMonitor) cmdStep(cmd MonitorCommand) bool {
	count := 1
	if len(cmd.Args) >= 1 {
		if v, ok := parseNumber(cmd.Args[0]); ok && v > 0 {
			count = int(v)
		}
	}

	executed := 0
	for ; executed < count; executed++ {
		if err := m.cpu.Step(); err != nil {
			m.appendOutput(fmt.Sprintf("Fault: %v", err), colorRed)
			break
		}
	}
	m.appendOutput(fmt.Sprintf("Step: %d instruction(s)", executed), colorCyan)

	for _, r := range m.cpu.GetRegisters() {
		if prev, ok := m.prevRegs[r.Name]; ok && prev != r.Value {
			m.appendOutput(fmt.Sprintf("  %s: $%04X -> $%04X", r.Name, prev, r.Value), colorGreen)
		}
	}
	m.saveCurrentRegs()
	m.nextDisSeg, m.nextDisOff = 0, 0
	m.showDisassembly(1)
	return false
}

func (m *MachineMonitor) cmdGo(cmd MonitorCommand) bool {
	if len(cmd.Args) >= 1 {
		seg, off, ok := m.resolveSegOff(cmd.Args[0])
		if !ok {
			m.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
			return false
		}
		m.cpu.SetRegister("CS", uint64(seg))
		m.cpu.SetRegister("IP", uint64(off))
	}
	m.goPending = true
	m.nextDisSeg, m.nextDisOff = 0, 0
	return true
}

func (m *MachineMonitor) cmdExit(_ MonitorCommand) bool {
	return true
}

// GoRequested reports whether g asked for the machine to run.
func (m *MachineMonitor) GoRequested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goPending
}

func (m *MachineMonitor) cmdBreakpointSet(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		m.appendOutput("Usage: b <addr> [condition]", colorRed)
		return false
	}
	addr, ok := EvalAddress(cmd.Args[0], m.cpu)
	if !ok {
		m.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
		return false
	}

	var cond *BreakpointCondition
	if len(cmd.Args) >= 2 {
		var err error
		cond, err = ParseCondition(strings.Join(cmd.Args[1:], ""))
		if err != nil {
			m.appendOutput(fmt.Sprintf("Bad condition: %v", err), colorRed)
			return false
		}
	}
	m.cpu.SetConditionalBreakpoint(addr, cond)
	if cond != nil {
		m.appendOutput(fmt.Sprintf("Breakpoint set at $%05X if %s", addr&x86AddressMask, FormatCondition(cond)), colorCyan)
	} else {
		m.appendOutput(fmt.Sprintf("Breakpoint set at $%05X", addr&x86AddressMask), colorCyan)
	}
	return false
}

func (m *MachineMonitor) cmdBreakpointClear(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		m.appendOutput("Usage: bc <addr|*>", colorRed)
		return false
	}
	if cmd.Args[0] == "*" {
		m.cpu.ClearAllBreakpoints()
		m.appendOutput("All breakpoints cleared", colorCyan)
		return false
	}
	addr, ok := EvalAddress(cmd.Args[0], m.cpu)
	if !ok {
		m.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
		return false
	}
	if m.cpu.ClearBreakpoint(addr) {
		m.appendOutput(fmt.Sprintf("Breakpoint cleared at $%05X", addr&x86AddressMask), colorCyan)
	} else {
		m.appendOutput(fmt.Sprintf("No breakpoint at $%05X", addr&x86AddressMask), colorRed)
	}
	return false
}

func (m *MachineMonitor) cmdBreakpointList(_ MonitorCommand) bool {
	bps := m.cpu.ListConditionalBreakpoints()
	if len(bps) == 0 {
		m.appendOutput("No breakpoints", colorDim)
		return false
	}
	for _, bp := range bps {
		condStr := ""
		if bp.Condition != nil {
			condStr = " if " + FormatCondition(bp.Condition)
		}
		hitStr := ""
		if bp.HitCount > 0 {
			hitStr = fmt.Sprintf(" (hits:%d)", bp.HitCount)
		}
		m.appendOutput(fmt.Sprintf("$%05X%s%s", bp.Address, condStr, hitStr), colorCyan)
	}
	return false
}

// rangeArgs parses "<start> <len>" into a linear start and a length.
func (m *MachineMonitor) rangeArgs(startArg, lenArg string) (uint64, int, bool) {
	start, ok1 := EvalAddress(startArg, m.cpu)
	n, ok2 := parseNumber(lenArg)
	if !ok1 || !ok2 || n == 0 || n > X86_MEMORY_SIZE {
		return 0, 0, false
	}
	return start & x86AddressMask, int(n), true
}

func (m *MachineMonitor) cmdFill(cmd MonitorCommand) bool {
	if len(cmd.Args) < 3 {
		m.appendOutput("Usage: f <addr> <len> <byte>", colorRed)
		return false
	}
	start, n, ok := m.rangeArgs(cmd.Args[0], cmd.Args[1])
	val, ok2 := parseNumber(cmd.Args[2])
	if !ok || !ok2 {
		m.appendOutput("Invalid argument", colorRed)
		return false
	}
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(val)
	}
	m.cpu.WriteMemory(start, data)
	m.appendOutput(fmt.Sprintf("Filled %d byte(s) at $%05X with $%02X", n, start, byte(val)), colorCyan)
	return false
}

func (m *MachineMonitor) cmdWrite(cmd MonitorCommand) bool {
	if len(cmd.Args) < 2 {
		m.appendOutput("Usage: w <addr> <bytes..>", colorRed)
		return false
	}
	addr, ok := EvalAddress(cmd.Args[0], m.cpu)
	if !ok {
		m.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
		return false
	}
	var data []byte
	for _, arg := range cmd.Args[1:] {
		v, ok := parseNumber(arg)
		if !ok || v > 0xFF {
			m.appendOutput(fmt.Sprintf("Invalid byte: %s", arg), colorRed)
			return false
		}
		data = append(data, byte(v))
	}
	m.cpu.WriteMemory(addr, data)
	m.appendOutput(fmt.Sprintf("Wrote %d byte(s) at $%05X", len(data), addr&x86AddressMask), colorCyan)
	return false
}

func (m *MachineMonitor) cmdHunt(cmd MonitorCommand) bool {
	if len(cmd.Args) < 3 {
		m.appendOutput("Usage: h <addr> <len> <bytes..>", colorRed)
		return false
	}
	start, n, ok := m.rangeArgs(cmd.Args[0], cmd.Args[1])
	if !ok {
		m.appendOutput("Invalid range", colorRed)
		return false
	}
	var pattern []byte
	for _, arg := range cmd.Args[2:] {
		v, ok := parseNumber(arg)
		if !ok || v > 0xFF {
			m.appendOutput(fmt.Sprintf("Invalid byte: %s", arg), colorRed)
			return false
		}
		pattern = append(pattern, byte(v))
	}
	data := m.cpu.ReadMemory(start, n)
	found := 0
	for i := 0; i+len(pattern) <= len(data); i++ {
		if string(data[i:i+len(pattern)]) == string(pattern) {
			m.appendOutput(fmt.Sprintf("$%05X", (start+uint64(i))&x86AddressMask), colorWhite)
			found++
		}
	}
	m.appendOutput(fmt.Sprintf("%d match(es)", found), colorCyan)
	return false
}

func (m *MachineMonitor) cmdTransfer(cmd MonitorCommand) bool {
	if len(cmd.Args) < 3 {
		m.appendOutput("Usage: t <src> <len> <dest>", colorRed)
		return false
	}
	start, n, ok := m.rangeArgs(cmd.Args[0], cmd.Args[1])
	dest, ok2 := EvalAddress(cmd.Args[2], m.cpu)
	if !ok || !ok2 {
		m.appendOutput("Invalid argument", colorRed)
		return false
	}
	m.cpu.WriteMemory(dest, m.cpu.ReadMemory(start, n))
	m.appendOutput(fmt.Sprintf("Copied %d byte(s) $%05X -> $%05X", n, start, dest&x86AddressMask), colorCyan)
	return false
}

func (m *MachineMonitor) cmdInfo(_ MonitorCommand) bool {
	for _, line := range strings.Split(strings.TrimRight(MachineInfoTree(m.machine), "\n"), "\n") {
		m.appendOutput(line, colorWhite)
	}
	return false
}

func (m *MachineMonitor) cmdSaveState(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		m.appendOutput("Usage: save <file>", colorRed)
		return false
	}
	if err := SaveSnapshotToFile(TakeSnapshot(m.cpu), cmd.Args[0]); err != nil {
		m.appendOutput(fmt.Sprintf("Save failed: %v", err), colorRed)
		return false
	}
	m.appendOutput(fmt.Sprintf("State saved to %s", cmd.Args[0]), colorCyan)
	return false
}

func (m *MachineMonitor) cmdLoadState(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		m.appendOutput("Usage: load <file>", colorRed)
		return false
	}
	snap, err := LoadSnapshotFromFile(cmd.Args[0])
	if err != nil {
		m.appendOutput(fmt.Sprintf("Load failed: %v", err), colorRed)
		return false
	}
	RestoreSnapshot(m.cpu, snap)
	m.appendOutput(fmt.Sprintf("State loaded from %s", cmd.Args[0]), colorCyan)
	m.showRegisters()
	m.saveCurrentRegs()
	return false
}

func (m *MachineMonitor) cmdTrace(cmd MonitorCommand) bool {
	c := m.cpu.sys.CPU
	if len(cmd.Args) >= 1 && strings.EqualFold(cmd.Args[0], "off") {
		DisableTrace(c)
		m.appendOutput("Trace off", colorCyan)
		return false
	}
	EnableTrace(c)
	SetLogLevel(LevelTrace)
	m.appendOutput("Trace on (cpu module, trace level)", colorCyan)
	return false
}

func (m *MachineMonitor) cmdHelp(_ MonitorCommand) bool {
	helpLines := []string{
		"Machine Monitor Commands:",
		"  r                  Show registers",
		"  r <name> <value>   Set register",
		"  s [count]          Single-step",
		"  g [addr]           Go/continue (exit monitor)",
		"  d [addr] [count]   Disassemble",
		"  m [addr] [len] [radix]  Memory dump (hex, dec, oct, bin)",
		"  w <addr> <bytes..>      Write bytes",
		"  f <addr> <len> <byte>   Fill memory",
		"  h <addr> <len> <bytes..> Hunt/search",
		"  t <src> <len> <dest>    Transfer/copy memory",
		"  b <addr> [cond]    Set breakpoint (optional condition)",
		"  bc <addr|*>        Clear breakpoint(s)",
		"  bl                 List breakpoints",
		"  bt [depth]         Stack backtrace",
		"  i                  Memory map and device tree",
		"  io [device]        Device register viewer",
		"  save <file>        Save machine state",
		"  load <file>        Load machine state",
		"  trace [off]        Log every instruction",
		"  x                  Exit monitor",
		"",
		"Addresses: seg:off, $hex, 0xhex, bare hex, #decimal, registers, expr+expr",
		"Conditions: AX==$10, [$400]!=0, hitcount>=3",
	}
	for _, line := range helpLines {
		m.appendOutput(line, colorCyan)
	}
	return false
}
