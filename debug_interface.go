// debug_interface.go - debug adapter interface and breakpoint types for the machine monitor

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

// RegisterInfo describes a single CPU register for display in the monitor.
type RegisterInfo struct {
	Name     string // "AX", "CS", "FLAGS"
	BitWidth int    // 8 or 16
	Value    uint64
	Group    string // "general", "segment", "ip", "flags"
}

// DisassembledLine represents one disassembled instruction.
type DisassembledLine struct {
	Address  uint64 // linear
	Segment  uint16
	Offset   uint16
	HexBytes string
	Mnemonic string
	Size     int
	IsPC     bool // true if this is the current CS:IP
}

// BreakpointEvent is published when execution stops on a breakpoint.
type BreakpointEvent struct {
	Address uint64 // linear address of the breakpoint
	CS, IP  uint16
}

type ConditionSource int

const (
	CondSourceRegister ConditionSource = iota
	CondSourceMemory
	CondSourceHitCount
)

type ConditionOp int

const (
	CondOpEqual ConditionOp = iota
	CondOpNotEqual
	CondOpLess
	CondOpGreater
	CondOpLessEqual
	CondOpGreaterEqual
)

// BreakpointCondition guards a breakpoint: the break only fires when the
// comparison holds.
type BreakpointCondition struct {
	Source  ConditionSource
	RegName string
	MemAddr uint64
	Op      ConditionOp
	Value   uint64
}

// ConditionalBreakpoint is a breakpoint at a linear address.
type ConditionalBreakpoint struct {
	Address   uint64
	Condition *BreakpointCondition
	HitCount  uint64
}

// DebuggableCPU is what the monitor needs from a CPU debug adapter.
type DebuggableCPU interface {
	CPUName() string

	GetRegisters() []RegisterInfo
	GetRegister(name string) (uint64, bool)
	SetRegister(name string, value uint64) bool
	GetPC() uint64 // linear CS:IP

	IsRunning() bool
	Freeze()
	Resume()

	Step() error

	Disassemble(seg, off uint16, count int) []DisassembledLine

	SetBreakpoint(addr uint64) bool
	SetConditionalBreakpoint(addr uint64, cond *BreakpointCondition) bool
	ClearBreakpoint(addr uint64) bool
	ClearAllBreakpoints()
	ListConditionalBreakpoints() []*ConditionalBreakpoint

	ReadMemory(addr uint64, size int) []byte
	WriteMemory(addr uint64, data []byte)
}
