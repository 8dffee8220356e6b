// cpu_x86_decode.go - x86 instruction decoder: prefixes, ModRM, operands
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidOpcode is returned for an opcode (or group extension) with no handler.
	ErrInvalidOpcode = errors.New("invalid opcode")
	// ErrMalformedModRM is returned when an instruction that needs a memory
	// operand is encoded with a register ModRM.
	ErrMalformedModRM = errors.New("register operand where memory is required")
	// ErrPrefixRun is returned when an instruction carries too many prefix bytes.
	ErrPrefixRun = errors.New("prefix run too long")
)

// DecodeError is a fatal decode failure at a given CS:IP.
type DecodeError struct {
	Opcode byte
	Ext    int // -1 when the opcode is not a group
	CS, IP uint16
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Ext >= 0 {
		return fmt.Sprintf("%v: %02X /%d at %04X:%04X", e.Err, e.Opcode, e.Ext, e.CS, e.IP)
	}
	return fmt.Sprintf("%v: %02X at %04X:%04X", e.Err, e.Opcode, e.CS, e.IP)
}

func (e *DecodeError) Unwrap() error { return e.Err }

const x86MaxPrefixes = 15

// Prefixes records the prefix bytes seen before an opcode
type Prefixes struct {
	Segment  int // effective segment for DS-default memory operands
	Override bool
	Lock     bool
	Rep      bool // F3: REP/REPE/REPZ
	Repne    bool // F2: REPNE/REPNZ
}

// OperandKind classifies a decoded operand
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandReg8
	OperandReg16
	OperandSeg
	OperandMem
)

var x86Reg16Names = [8]string{"AX", "CX", "DX", "BX", "SP", "BP", "SI", "DI"}
var x86Reg8Names = [8]string{"AL", "CL", "DL", "BL", "AH", "CH", "DH", "BH"}
var x86SegNames = [4]string{"ES", "CS", "SS", "DS"}

// RmPtr is a memory operand in segment:(base+index+disp) form. It is resolved
// against the register file every time it is used, so an instruction that
// modifies a base register before writing back sees the new address.
type RmPtr struct {
	Segment int
	Base    [2]int8 // word register indices, -1 unused
	Disp    uint16
}

var x86RmBases = [8][2]int8{
	{x86RegBX, x86RegSI},
	{x86RegBX, x86RegDI},
	{x86RegBP, x86RegSI},
	{x86RegBP, x86RegDI},
	{x86RegSI, -1},
	{x86RegDI, -1},
	{x86RegBP, -1},
	{x86RegBX, -1},
}

// Offset returns the effective address within the segment.
func (p RmPtr) Offset(c *CPU_X86) uint16 {
	off := p.Disp
	for _, b := range p.Base {
		if b >= 0 {
			off += c.regs[b]
		}
	}
	return off
}

func (p RmPtr) String() string {
	var parts []string
	for _, b := range p.Base {
		if b >= 0 {
			parts = append(parts, x86Reg16Names[b])
		}
	}
	if p.Disp != 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%04X", p.Disp))
	}
	return fmt.Sprintf("%s:[%s]", x86SegNames[p.Segment&3], strings.Join(parts, "+"))
}

// Operand is a decoded register or memory operand
type Operand struct {
	Kind OperandKind
	Reg  byte
	Ptr  RmPtr
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandReg8:
		return x86Reg8Names[o.Reg&7]
	case OperandReg16:
		return x86Reg16Names[o.Reg&7]
	case OperandSeg:
		return x86SegNames[o.Reg&3]
	case OperandMem:
		return o.Ptr.String()
	}
	return ""
}

// IsMem reports whether the operand refers to memory
func (o Operand) IsMem() bool { return o.Kind == OperandMem }

type execFunc func(c *CPU_X86, in *Instruction)

// Instruction is one fully decoded instruction, ready to execute
type Instruction struct {
	Opcode   byte
	Ext      int // group extension (ModRM bits 3-5), -1 if none
	Prefixes Prefixes
	Reg      Operand // ModRM reg field, or the register coded in the opcode
	RM       Operand // ModRM r/m field
	Imm      uint16  // immediate, displacement, moffs or far offset
	Imm2     uint16  // far segment, or ENTER nesting level
	CS, IP   uint16  // address of the first byte, prefixes included
	Length   int
	Mnemonic string

	exec execFunc
}

func (in *Instruction) String() string {
	var ops []string
	for _, o := range []Operand{in.Reg, in.RM} {
		if s := o.String(); s != "" {
			ops = append(ops, s)
		}
	}
	s := in.Mnemonic
	if len(ops) > 0 {
		s += " " + strings.Join(ops, ",")
	}
	return s
}

func formatSegOff(seg, off uint16) string {
	return fmt.Sprintf("%04X:%04X", seg, off)
}

// -----------------------------------------------------------------------------
// Operand Access
// -----------------------------------------------------------------------------

func (c *CPU_X86) readOp8(o *Operand) byte {
	if o.Kind == OperandMem {
		return c.read8(o.Ptr.Segment, o.Ptr.Offset(c))
	}
	return c.Reg8(o.Reg)
}

func (c *CPU_X86) writeOp8(o *Operand, v byte) {
	if o.Kind == OperandMem {
		c.write8(o.Ptr.Segment, o.Ptr.Offset(c), v)
		return
	}
	c.SetReg8(o.Reg, v)
}

func (c *CPU_X86) readOp16(o *Operand) uint16 {
	switch o.Kind {
	case OperandMem:
		return c.read16(o.Ptr.Segment, o.Ptr.Offset(c))
	case OperandSeg:
		return c.segs[o.Reg&3]
	}
	return c.regs[o.Reg&7]
}

func (c *CPU_X86) writeOp16(o *Operand, v uint16) {
	switch o.Kind {
	case OperandMem:
		c.write16(o.Ptr.Segment, o.Ptr.Offset(c), v)
	case OperandSeg:
		c.segs[o.Reg&3] = v
	default:
		c.regs[o.Reg&7] = v
	}
}

// readFar reads a 32-bit offset:segment pair from a memory operand
func (c *CPU_X86) readFar(o *Operand) (off, seg uint16) {
	base := o.Ptr.Offset(c)
	return c.read16(o.Ptr.Segment, base), c.read16(o.Ptr.Segment, base+2)
}

// -----------------------------------------------------------------------------
// Decoder
// -----------------------------------------------------------------------------

// decodeModRM consumes a ModRM byte and any displacement. regKind and rmKind
// say how the reg field and a register-form r/m field are interpreted.
func (c *CPU_X86) decodeModRM(in *Instruction, regKind, rmKind OperandKind) {
	b := c.fetch8()
	mod, reg, rm := b>>6, (b>>3)&7, b&7

	if regKind != OperandNone {
		in.Reg = Operand{Kind: regKind, Reg: reg}
		if regKind == OperandSeg {
			in.Reg.Reg &= 3
		}
	}

	if mod == 3 {
		in.RM = Operand{Kind: rmKind, Reg: rm}
		return
	}

	p := RmPtr{Segment: x86SegDS, Base: x86RmBases[rm]}
	switch {
	case mod == 0 && rm == 6:
		p.Base = [2]int8{-1, -1}
		p.Disp = c.fetch16()
	case mod == 1:
		p.Disp = uint16(int16(int8(c.fetch8())))
	case mod == 2:
		p.Disp = c.fetch16()
	}
	if p.Base[0] == x86RegBP {
		p.Segment = x86SegSS
	}
	if in.Prefixes.Override {
		p.Segment = in.Prefixes.Segment
	}
	in.RM = Operand{Kind: OperandMem, Ptr: p}
}

func signExtend8(b byte) uint16 {
	return uint16(int16(int8(b)))
}

// Decode reads prefixes, opcode and operands at CS:IP, leaving IP after the
// instruction. Fatal errors are *DecodeError.
func (c *CPU_X86) Decode() (*Instruction, error) {
	in := &Instruction{
		Ext:      -1,
		CS:       c.segs[x86SegCS],
		IP:       c.IP,
		Prefixes: Prefixes{Segment: x86SegDS},
	}

	for n := 0; ; n++ {
		b := c.fetch8()
		if n >= x86MaxPrefixes {
			return nil, &DecodeError{Opcode: b, Ext: -1, CS: in.CS, IP: in.IP, Err: ErrPrefixRun}
		}
		switch b {
		case 0x26, 0x2E, 0x36, 0x3E:
			in.Prefixes.Segment = int(b>>3) & 3
			in.Prefixes.Override = true
			continue
		case 0xF0:
			in.Prefixes.Lock = true
			continue
		case 0xF2:
			in.Prefixes.Repne, in.Prefixes.Rep = true, false
			continue
		case 0xF3:
			in.Prefixes.Rep, in.Prefixes.Repne = true, false
			continue
		}
		in.Opcode = b
		break
	}

	entry := &c.baseOps[in.Opcode]
	if entry.group != nil {
		in.Ext = int(c.peek8()>>3) & 7
		entry = &entry.group[in.Ext]
	}
	if entry.exec == nil {
		return nil, &DecodeError{Opcode: in.Opcode, Ext: in.Ext, CS: in.CS, IP: in.IP, Err: ErrInvalidOpcode}
	}
	in.Mnemonic = entry.mnemonic
	in.exec = entry.exec

	op := in.Opcode
	switch entry.shape {
	case shapeRM8R8:
		c.decodeModRM(in, OperandReg8, OperandReg8)
	case shapeRM16R16:
		c.decodeModRM(in, OperandReg16, OperandReg16)
	case shapeRM16Seg:
		c.decodeModRM(in, OperandSeg, OperandReg16)
	case shapeRM8:
		c.decodeModRM(in, OperandNone, OperandReg8)
	case shapeRM16:
		c.decodeModRM(in, OperandNone, OperandReg16)
	case shapeRM8Imm8:
		c.decodeModRM(in, OperandNone, OperandReg8)
		in.Imm = uint16(c.fetch8())
	case shapeRM16Imm16:
		c.decodeModRM(in, OperandNone, OperandReg16)
		in.Imm = c.fetch16()
	case shapeRM16Imm8:
		c.decodeModRM(in, OperandNone, OperandReg16)
		in.Imm = signExtend8(c.fetch8())
	case shapeR16RM16Imm16:
		c.decodeModRM(in, OperandReg16, OperandReg16)
		in.Imm = c.fetch16()
	case shapeR16RM16Imm8:
		c.decodeModRM(in, OperandReg16, OperandReg16)
		in.Imm = signExtend8(c.fetch8())
	case shapeImm8:
		in.Imm = uint16(c.fetch8())
	case shapeImm16:
		in.Imm = c.fetch16()
	case shapeImm16Imm8:
		in.Imm = c.fetch16()
		in.Imm2 = uint16(c.fetch8())
	case shapeRel8, shapeImm8S:
		in.Imm = signExtend8(c.fetch8())
	case shapeRel16, shapeMoffs:
		in.Imm = c.fetch16()
	case shapeFarPtr:
		in.Imm = c.fetch16()
		in.Imm2 = c.fetch16()
	case shapeReg8:
		in.Reg = Operand{Kind: OperandReg8, Reg: op & 7}
	case shapeReg16:
		in.Reg = Operand{Kind: OperandReg16, Reg: op & 7}
	case shapeReg8Imm8:
		in.Reg = Operand{Kind: OperandReg8, Reg: op & 7}
		in.Imm = uint16(c.fetch8())
	case shapeReg16Imm16:
		in.Reg = Operand{Kind: OperandReg16, Reg: op & 7}
		in.Imm = c.fetch16()
	case shapeSeg:
		in.Reg = Operand{Kind: OperandSeg, Reg: (op >> 3) & 3}
	}

	if entry.memOnly && !in.RM.IsMem() {
		return nil, &DecodeError{Opcode: in.Opcode, Ext: in.Ext, CS: in.CS, IP: in.IP, Err: ErrMalformedModRM}
	}

	in.Length = int(c.IP - in.IP)
	c.Decoded++
	return in, nil
}
