// cpu_x86.go - 16-bit x86 CPU Emulator (8086 core + 80186/Am186 instruction extensions)
//
// This implements a real-mode x86 CPU with:
// - Full 8086/8088 instruction set (testable via SingleStepTests/8088)
// - Optional 80186 instruction extensions gated by a CPU feature
// - Segmented 20-bit addressing with wraparound
// - Port I/O through the machine's device port bus
// - Hardware interrupts from an attached interrupt controller
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// X86Bus connects the CPU to the address space and the port bus.
// Memory addresses are linear 20-bit addresses.
type X86Bus interface {
	Read(addr uint32) byte
	Write(addr uint32, value byte)
	In(port uint16, width PortWidth) (uint16, error)
	Out(port uint16, width PortWidth, value uint16) error
}

// InterruptSource is polled before every instruction while IF is set.
// A true result means the vector has been acknowledged and must be serviced.
type InterruptSource interface {
	PendingInterrupt() (vector byte, ok bool)
}

// Feature is an optional instruction-set capability of the CPU.
type Feature uint32

const (
	// FeatureInstr186 enables the 80186/Am186 instruction additions.
	FeatureInstr186 Feature = 1 << iota
)

func (f Feature) String() string {
	switch f {
	case FeatureInstr186:
		return "186"
	}
	return "unknown"
}

// ParseFeature accepts the names used in machine configs ("186", "80186",
// "am186", "instr186").
func ParseFeature(s string) (Feature, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "186", "80186", "am186", "instr186":
		return FeatureInstr186, nil
	}
	return 0, fmt.Errorf("unknown cpu feature %q", s)
}

// General word register indices, in ModRM encoding order
const (
	x86RegAX = iota
	x86RegCX
	x86RegDX
	x86RegBX
	x86RegSP
	x86RegBP
	x86RegSI
	x86RegDI
)

// Byte register indices, in ModRM encoding order
const (
	x86RegAL = iota
	x86RegCL
	x86RegDL
	x86RegBL
	x86RegAH
	x86RegCH
	x86RegDH
	x86RegBH
)

// Segment register indices
const (
	x86SegES = iota
	x86SegCS
	x86SegSS
	x86SegDS
)

const (
	x86AddressSpaceSize = 1 << 20
	x86AddressMask      = x86AddressSpaceSize - 1

	x86ResetCS = 0xFFFF
	x86ResetIP = 0x0000
)

// CPU_X86 represents the x86 CPU state
type CPU_X86 struct {
	// General registers, one word store each. Byte registers are views.
	regs [8]uint16
	segs [4]uint16

	IP    uint16
	Flags Flags

	// Decoded counts every instruction decoded since creation.
	Decoded uint64

	Halted  bool
	running atomic.Bool

	features Feature
	bus      X86Bus
	irq      InterruptSource

	baseOps [256]opEntry

	// Set by a handler that hits a fatal condition; returned by Step.
	fault error

	// OnDecode, when set, sees every instruction before it executes.
	OnDecode func(in *Instruction)
}

// NewCPU_X86 creates a new x86 CPU instance
func NewCPU_X86(bus X86Bus, features ...Feature) *CPU_X86 {
	cpu := &CPU_X86{bus: bus}
	for _, f := range features {
		cpu.features |= f
	}
	cpu.initBaseOps()
	cpu.Reset()
	return cpu
}

// Init is the one-time initialisation hook run by the System after all
// devices are initialised.
func (c *CPU_X86) Init() {
	c.initBaseOps()
	logDebug(modCPU, "cpu initialised", "features", c.featureNames())
}

// Reset puts the CPU in its power-on state. Execution starts at FFFF:0000.
func (c *CPU_X86) Reset() {
	c.regs = [8]uint16{}
	c.segs = [4]uint16{}
	c.segs[x86SegCS] = x86ResetCS
	c.IP = x86ResetIP
	c.Flags = 0
	c.Halted = false
	c.fault = nil
	c.running.Store(true)
}

// SetBus replaces the bus the CPU is attached to.
func (c *CPU_X86) SetBus(bus X86Bus) {
	c.bus = bus
}

// SetInterruptSource attaches an interrupt controller.
func (c *CPU_X86) SetInterruptSource(src InterruptSource) {
	c.irq = src
}

// AddFeature enables an instruction-set feature and rebuilds the opcode table.
func (c *CPU_X86) AddFeature(f Feature) {
	c.features |= f
	c.initBaseOps()
}

// HasFeature reports whether every bit of f is enabled.
func (c *CPU_X86) HasFeature(f Feature) bool {
	return c.features&f == f
}

func (c *CPU_X86) featureNames() []string {
	var names []string
	for f := FeatureInstr186; f != 0 && f <= FeatureInstr186; f <<= 1 {
		if c.HasFeature(f) {
			names = append(names, f.String())
		}
	}
	return names
}

// Running returns the execution state (thread-safe)
func (c *CPU_X86) Running() bool {
	return c.running.Load()
}

// SetRunning sets the execution state (thread-safe)
func (c *CPU_X86) SetRunning(state bool) {
	c.running.Store(state)
}

// -----------------------------------------------------------------------------
// Register Access
// -----------------------------------------------------------------------------

// Reg16 returns a general word register by index (AX CX DX BX SP BP SI DI)
func (c *CPU_X86) Reg16(idx byte) uint16 {
	return c.regs[idx&7]
}

// SetReg16 writes both bytes of a general word register
func (c *CPU_X86) SetReg16(idx byte, v uint16) {
	c.regs[idx&7] = v
}

// Reg8 returns a byte register by index (AL CL DL BL AH CH DH BH).
// Indices 0-3 are the low halves of AX..BX, 4-7 the high halves.
func (c *CPU_X86) Reg8(idx byte) byte {
	idx &= 7
	if idx < 4 {
		return byte(c.regs[idx])
	}
	return byte(c.regs[idx-4] >> 8)
}

// SetReg8 writes one half of a word register, leaving the other half alone
func (c *CPU_X86) SetReg8(idx byte, v byte) {
	idx &= 7
	if idx < 4 {
		c.regs[idx] = c.regs[idx]&0xFF00 | uint16(v)
		return
	}
	c.regs[idx-4] = c.regs[idx-4]&0x00FF | uint16(v)<<8
}

// Seg returns a segment register by index (ES CS SS DS)
func (c *CPU_X86) Seg(idx int) uint16 {
	return c.segs[idx&3]
}

// SetSeg writes a segment register
func (c *CPU_X86) SetSeg(idx int, v uint16) {
	c.segs[idx&3] = v
}

// IncReg16 adds one to a word register, wrapping at 16 bits
func (c *CPU_X86) IncReg16(idx byte) {
	c.regs[idx&7]++
}

// DecReg16 subtracts one from a word register, wrapping at 16 bits
func (c *CPU_X86) DecReg16(idx byte) {
	c.regs[idx&7]--
}

func (c *CPU_X86) AX() uint16 { return c.regs[x86RegAX] }
func (c *CPU_X86) CX() uint16 { return c.regs[x86RegCX] }
func (c *CPU_X86) DX() uint16 { return c.regs[x86RegDX] }
func (c *CPU_X86) BX() uint16 { return c.regs[x86RegBX] }
func (c *CPU_X86) SP() uint16 { return c.regs[x86RegSP] }
func (c *CPU_X86) BP() uint16 { return c.regs[x86RegBP] }
func (c *CPU_X86) SI() uint16 { return c.regs[x86RegSI] }
func (c *CPU_X86) DI() uint16 { return c.regs[x86RegDI] }

func (c *CPU_X86) SetAX(v uint16) { c.regs[x86RegAX] = v }
func (c *CPU_X86) SetCX(v uint16) { c.regs[x86RegCX] = v }
func (c *CPU_X86) SetDX(v uint16) { c.regs[x86RegDX] = v }
func (c *CPU_X86) SetBX(v uint16) { c.regs[x86RegBX] = v }
func (c *CPU_X86) SetSP(v uint16) { c.regs[x86RegSP] = v }
func (c *CPU_X86) SetBP(v uint16) { c.regs[x86RegBP] = v }
func (c *CPU_X86) SetSI(v uint16) { c.regs[x86RegSI] = v }
func (c *CPU_X86) SetDI(v uint16) { c.regs[x86RegDI] = v }

func (c *CPU_X86) AL() byte { return c.Reg8(x86RegAL) }
func (c *CPU_X86) AH() byte { return c.Reg8(x86RegAH) }
func (c *CPU_X86) CL() byte { return c.Reg8(x86RegCL) }

func (c *CPU_X86) SetAL(v byte) { c.SetReg8(x86RegAL, v) }
func (c *CPU_X86) SetAH(v byte) { c.SetReg8(x86RegAH, v) }

func (c *CPU_X86) CS() uint16 { return c.segs[x86SegCS] }
func (c *CPU_X86) DS() uint16 { return c.segs[x86SegDS] }
func (c *CPU_X86) ES() uint16 { return c.segs[x86SegES] }
func (c *CPU_X86) SS() uint16 { return c.segs[x86SegSS] }

// -----------------------------------------------------------------------------
// Flag Helpers
// -----------------------------------------------------------------------------

func (c *CPU_X86) setFlag(flag Flags, set bool) {
	c.Flags.Set(flag, set)
}

func (c *CPU_X86) CF() bool { return c.Flags.Has(x86FlagCF) }
func (c *CPU_X86) PF() bool { return c.Flags.Has(x86FlagPF) }
func (c *CPU_X86) AF() bool { return c.Flags.Has(x86FlagAF) }
func (c *CPU_X86) ZF() bool { return c.Flags.Has(x86FlagZF) }
func (c *CPU_X86) SF() bool { return c.Flags.Has(x86FlagSF) }
func (c *CPU_X86) TF() bool { return c.Flags.Has(x86FlagTF) }
func (c *CPU_X86) IF() bool { return c.Flags.Has(x86FlagIF) }
func (c *CPU_X86) DF() bool { return c.Flags.Has(x86FlagDF) }
func (c *CPU_X86) OF() bool { return c.Flags.Has(x86FlagOF) }

// -----------------------------------------------------------------------------
// Memory Access
// -----------------------------------------------------------------------------

// Linear translates segment:offset into a 20-bit linear address.
func Linear(segment, offset uint16) uint32 {
	return (uint32(segment)<<4 + uint32(offset)) & x86AddressMask
}

func (c *CPU_X86) linear(seg int, off uint16) uint32 {
	return Linear(c.segs[seg&3], off)
}

func (c *CPU_X86) read8(seg int, off uint16) byte {
	return c.bus.Read(c.linear(seg, off))
}

// read16 reads a little-endian word; the high byte wraps within the segment.
func (c *CPU_X86) read16(seg int, off uint16) uint16 {
	lo := c.bus.Read(c.linear(seg, off))
	hi := c.bus.Read(c.linear(seg, off+1))
	return uint16(lo) | uint16(hi)<<8
}

func (c *CPU_X86) write8(seg int, off uint16, v byte) {
	c.bus.Write(c.linear(seg, off), v)
}

func (c *CPU_X86) write16(seg int, off uint16, v uint16) {
	c.bus.Write(c.linear(seg, off), byte(v))
	c.bus.Write(c.linear(seg, off+1), byte(v>>8))
}

// fetch8 fetches a byte at CS:IP and advances IP
func (c *CPU_X86) fetch8() byte {
	v := c.read8(x86SegCS, c.IP)
	c.IP++
	return v
}

// fetch16 fetches a little-endian word at CS:IP and advances IP by two
func (c *CPU_X86) fetch16() uint16 {
	lo := c.fetch8()
	hi := c.fetch8()
	return uint16(lo) | uint16(hi)<<8
}

// peek8 reads the byte at CS:IP without consuming it
func (c *CPU_X86) peek8() byte {
	return c.read8(x86SegCS, c.IP)
}

// -----------------------------------------------------------------------------
// Stack Operations
// -----------------------------------------------------------------------------

func (c *CPU_X86) push16(v uint16) {
	c.regs[x86RegSP] -= 2
	c.write16(x86SegSS, c.regs[x86RegSP], v)
}

func (c *CPU_X86) pop16() uint16 {
	v := c.read16(x86SegSS, c.regs[x86RegSP])
	c.regs[x86RegSP] += 2
	return v
}

// -----------------------------------------------------------------------------
// Interrupts
// -----------------------------------------------------------------------------

// interrupt pushes FLAGS, CS and IP, clears IF and TF, then vectors through
// the interrupt vector table at linear vector*4.
func (c *CPU_X86) interrupt(vector byte) {
	c.push16(c.Flags.Pack16())
	c.setFlag(x86FlagIF, false)
	c.setFlag(x86FlagTF, false)
	c.push16(c.segs[x86SegCS])
	c.push16(c.IP)

	addr := uint32(vector) * 4
	ip := uint16(c.bus.Read(addr)) | uint16(c.bus.Read(addr+1))<<8
	cs := uint16(c.bus.Read(addr+2)) | uint16(c.bus.Read(addr+3))<<8
	c.IP = ip
	c.segs[x86SegCS] = cs
	logTrace(modCPU, "interrupt", "vector", vector, "target", formatSegOff(cs, ip))
}

// Interrupt raises a software-visible interrupt from outside the CPU
// (used by the monitor and tests).
func (c *CPU_X86) Interrupt(vector byte) {
	c.Halted = false
	c.interrupt(vector)
}

// fail records a fatal condition for the instruction being executed.
func (c *CPU_X86) fail(err error) {
	if c.fault == nil {
		c.fault = err
	}
}

// -----------------------------------------------------------------------------
// Instruction Execution
// -----------------------------------------------------------------------------

// Step services a pending hardware interrupt, then decodes and executes
// exactly one instruction. A non-nil error is fatal for the machine.
func (c *CPU_X86) Step() error {
	if c.fault != nil {
		return c.fault
	}

	if c.irq != nil && c.IF() {
		if vector, ok := c.irq.PendingInterrupt(); ok {
			c.Halted = false
			c.interrupt(vector)
		}
	}
	if c.Halted {
		return nil
	}

	trap := c.TF()

	in, err := c.Decode()
	if err != nil {
		c.fault = err
		return err
	}
	if c.OnDecode != nil {
		c.OnDecode(in)
	}
	in.exec(c, in)

	if c.fault != nil {
		return c.fault
	}
	if trap && c.TF() {
		c.interrupt(x86VecStep)
	}
	return nil
}
