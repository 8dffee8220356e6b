// cpu_x86_ops.go - x86 instruction handlers
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// Interrupt vectors raised by the CPU itself
const (
	x86VecDivide   = 0
	x86VecStep     = 1
	x86VecBreak    = 3
	x86VecOverflow = 4
	x86VecBound    = 5
)

// =============================================================================
// ALU block (0x00-0x3F) and group 1 (0x80-0x83)
// =============================================================================

func aluEbGb(op int) execFunc {
	return func(c *CPU_X86, in *Instruction) {
		if r, ok := c.alu8(op, c.readOp8(&in.RM), c.readOp8(&in.Reg)); ok {
			c.writeOp8(&in.RM, r)
		}
	}
}

func aluEvGv(op int) execFunc {
	return func(c *CPU_X86, in *Instruction) {
		if r, ok := c.alu16(op, c.readOp16(&in.RM), c.readOp16(&in.Reg)); ok {
			c.writeOp16(&in.RM, r)
		}
	}
}

func aluGbEb(op int) execFunc {
	return func(c *CPU_X86, in *Instruction) {
		if r, ok := c.alu8(op, c.readOp8(&in.Reg), c.readOp8(&in.RM)); ok {
			c.writeOp8(&in.Reg, r)
		}
	}
}

func aluGvEv(op int) execFunc {
	return func(c *CPU_X86, in *Instruction) {
		if r, ok := c.alu16(op, c.readOp16(&in.Reg), c.readOp16(&in.RM)); ok {
			c.writeOp16(&in.Reg, r)
		}
	}
}

func aluALIb(op int) execFunc {
	return func(c *CPU_X86, in *Instruction) {
		if r, ok := c.alu8(op, c.AL(), byte(in.Imm)); ok {
			c.SetAL(r)
		}
	}
}

func aluAXIv(op int) execFunc {
	return func(c *CPU_X86, in *Instruction) {
		if r, ok := c.alu16(op, c.AX(), in.Imm); ok {
			c.SetAX(r)
		}
	}
}

func aluEbIb(op int) execFunc {
	return func(c *CPU_X86, in *Instruction) {
		if r, ok := c.alu8(op, c.readOp8(&in.RM), byte(in.Imm)); ok {
			c.writeOp8(&in.RM, r)
		}
	}
}

func aluEvIv(op int) execFunc {
	return func(c *CPU_X86, in *Instruction) {
		if r, ok := c.alu16(op, c.readOp16(&in.RM), in.Imm); ok {
			c.writeOp16(&in.RM, r)
		}
	}
}

func opTEST_Eb_Gb(c *CPU_X86, in *Instruction) {
	c.setFlagsLogic8(c.readOp8(&in.RM) & c.readOp8(&in.Reg))
}

func opTEST_Ev_Gv(c *CPU_X86, in *Instruction) {
	c.setFlagsLogic16(c.readOp16(&in.RM) & c.readOp16(&in.Reg))
}

func opTEST_AL_Ib(c *CPU_X86, in *Instruction) {
	c.setFlagsLogic8(c.AL() & byte(in.Imm))
}

func opTEST_AX_Iv(c *CPU_X86, in *Instruction) {
	c.setFlagsLogic16(c.AX() & in.Imm)
}

func opTEST_Eb_Ib(c *CPU_X86, in *Instruction) {
	c.setFlagsLogic8(c.readOp8(&in.RM) & byte(in.Imm))
}

func opTEST_Ev_Iv(c *CPU_X86, in *Instruction) {
	c.setFlagsLogic16(c.readOp16(&in.RM) & in.Imm)
}

// =============================================================================
// INC / DEC
// =============================================================================

func opINC_Reg16(c *CPU_X86, in *Instruction) {
	c.regs[in.Reg.Reg] = c.inc16(c.regs[in.Reg.Reg])
}

func opDEC_Reg16(c *CPU_X86, in *Instruction) {
	c.regs[in.Reg.Reg] = c.dec16(c.regs[in.Reg.Reg])
}

func opINC_Eb(c *CPU_X86, in *Instruction) {
	c.writeOp8(&in.RM, c.inc8(c.readOp8(&in.RM)))
}

func opDEC_Eb(c *CPU_X86, in *Instruction) {
	c.writeOp8(&in.RM, c.dec8(c.readOp8(&in.RM)))
}

func opINC_Ev(c *CPU_X86, in *Instruction) {
	c.writeOp16(&in.RM, c.inc16(c.readOp16(&in.RM)))
}

func opDEC_Ev(c *CPU_X86, in *Instruction) {
	c.writeOp16(&in.RM, c.dec16(c.readOp16(&in.RM)))
}

// =============================================================================
// Data Transfer
// =============================================================================

func opNOP(c *CPU_X86, in *Instruction) {}

func opMOV_Eb_Gb(c *CPU_X86, in *Instruction) { c.writeOp8(&in.RM, c.readOp8(&in.Reg)) }
func opMOV_Ev_Gv(c *CPU_X86, in *Instruction) { c.writeOp16(&in.RM, c.readOp16(&in.Reg)) }
func opMOV_Gb_Eb(c *CPU_X86, in *Instruction) { c.writeOp8(&in.Reg, c.readOp8(&in.RM)) }
func opMOV_Gv_Ev(c *CPU_X86, in *Instruction) { c.writeOp16(&in.Reg, c.readOp16(&in.RM)) }
func opMOV_Ev_Sw(c *CPU_X86, in *Instruction) { c.writeOp16(&in.RM, c.readOp16(&in.Reg)) }
func opMOV_Sw_Ev(c *CPU_X86, in *Instruction) { c.writeOp16(&in.Reg, c.readOp16(&in.RM)) }
func opMOV_Eb_Ib(c *CPU_X86, in *Instruction) { c.writeOp8(&in.RM, byte(in.Imm)) }
func opMOV_Ev_Iv(c *CPU_X86, in *Instruction) { c.writeOp16(&in.RM, in.Imm) }

func opMOV_Reg8_Ib(c *CPU_X86, in *Instruction)  { c.SetReg8(in.Reg.Reg, byte(in.Imm)) }
func opMOV_Reg16_Iv(c *CPU_X86, in *Instruction) { c.regs[in.Reg.Reg] = in.Imm }

func opMOV_AL_Moffs(c *CPU_X86, in *Instruction) {
	c.SetAL(c.read8(in.Prefixes.Segment, in.Imm))
}

func opMOV_AX_Moffs(c *CPU_X86, in *Instruction) {
	c.SetAX(c.read16(in.Prefixes.Segment, in.Imm))
}

func opMOV_Moffs_AL(c *CPU_X86, in *Instruction) {
	c.write8(in.Prefixes.Segment, in.Imm, c.AL())
}

func opMOV_Moffs_AX(c *CPU_X86, in *Instruction) {
	c.write16(in.Prefixes.Segment, in.Imm, c.AX())
}

func opXCHG_Eb_Gb(c *CPU_X86, in *Instruction) {
	a, b := c.readOp8(&in.RM), c.readOp8(&in.Reg)
	c.writeOp8(&in.RM, b)
	c.writeOp8(&in.Reg, a)
}

func opXCHG_Ev_Gv(c *CPU_X86, in *Instruction) {
	a, b := c.readOp16(&in.RM), c.readOp16(&in.Reg)
	c.writeOp16(&in.RM, b)
	c.writeOp16(&in.Reg, a)
}

func opXCHG_AX_Reg16(c *CPU_X86, in *Instruction) {
	r := in.Reg.Reg
	c.regs[x86RegAX], c.regs[r] = c.regs[r], c.regs[x86RegAX]
}

func opLEA(c *CPU_X86, in *Instruction) {
	c.regs[in.Reg.Reg] = in.RM.Ptr.Offset(c)
}

func opLES(c *CPU_X86, in *Instruction) {
	off, seg := c.readFar(&in.RM)
	c.regs[in.Reg.Reg] = off
	c.segs[x86SegES] = seg
}

func opLDS(c *CPU_X86, in *Instruction) {
	off, seg := c.readFar(&in.RM)
	c.regs[in.Reg.Reg] = off
	c.segs[x86SegDS] = seg
}

func opCBW(c *CPU_X86, in *Instruction) {
	c.SetAX(signExtend8(c.AL()))
}

func opCWD(c *CPU_X86, in *Instruction) {
	if c.AX()&0x8000 != 0 {
		c.SetDX(0xFFFF)
	} else {
		c.SetDX(0)
	}
}

func opXLAT(c *CPU_X86, in *Instruction) {
	c.SetAL(c.read8(in.Prefixes.Segment, c.BX()+uint16(c.AL())))
}

func opLAHF(c *CPU_X86, in *Instruction) {
	c.SetAH(c.Flags.Pack8())
}

func opSAHF(c *CPU_X86, in *Instruction) {
	c.Flags = c.Flags.Unpack8(c.AH())
}

func opSALC(c *CPU_X86, in *Instruction) {
	if c.CF() {
		c.SetAL(0xFF)
	} else {
		c.SetAL(0)
	}
}

func flagOp(flag Flags, set bool) execFunc {
	return func(c *CPU_X86, in *Instruction) {
		c.setFlag(flag, set)
	}
}

func opCMC(c *CPU_X86, in *Instruction) {
	c.setFlag(x86FlagCF, !c.CF())
}

// =============================================================================
// Stack
// =============================================================================

// opPUSH_Reg16 stores SP after the decrement when pushing SP itself, as the
// 8086 and 80186 do.
func opPUSH_Reg16(c *CPU_X86, in *Instruction) {
	if in.Reg.Reg == x86RegSP {
		c.regs[x86RegSP] -= 2
		c.write16(x86SegSS, c.regs[x86RegSP], c.regs[x86RegSP])
		return
	}
	c.push16(c.regs[in.Reg.Reg])
}

func opPOP_Reg16(c *CPU_X86, in *Instruction) {
	c.regs[in.Reg.Reg] = c.pop16()
}

func opPUSH_Seg(c *CPU_X86, in *Instruction) {
	c.push16(c.segs[in.Reg.Reg&3])
}

func opPOP_Seg(c *CPU_X86, in *Instruction) {
	c.segs[in.Reg.Reg&3] = c.pop16()
}

func opPUSH_Ev(c *CPU_X86, in *Instruction) {
	c.push16(c.readOp16(&in.RM))
}

func opPOP_Ev(c *CPU_X86, in *Instruction) {
	c.writeOp16(&in.RM, c.pop16())
}

func opPUSHF(c *CPU_X86, in *Instruction) {
	c.push16(c.Flags.Pack16())
}

func opPOPF(c *CPU_X86, in *Instruction) {
	c.Flags = Unpack16(c.pop16())
}

// =============================================================================
// Control Transfer
// =============================================================================

func jccRel8(cc byte) execFunc {
	return func(c *CPU_X86, in *Instruction) {
		if c.condition(cc) {
			c.IP += in.Imm
		}
	}
}

func opJMP_Rel(c *CPU_X86, in *Instruction) {
	c.IP += in.Imm
}

func opJMP_Far(c *CPU_X86, in *Instruction) {
	c.IP = in.Imm
	c.segs[x86SegCS] = in.Imm2
}

func opJMP_Ev(c *CPU_X86, in *Instruction) {
	c.IP = c.readOp16(&in.RM)
}

func opJMP_Mp(c *CPU_X86, in *Instruction) {
	off, seg := c.readFar(&in.RM)
	c.IP = off
	c.segs[x86SegCS] = seg
}

func opCALL_Rel16(c *CPU_X86, in *Instruction) {
	c.push16(c.IP)
	c.IP += in.Imm
}

func opCALL_Far(c *CPU_X86, in *Instruction) {
	c.push16(c.segs[x86SegCS])
	c.push16(c.IP)
	c.IP = in.Imm
	c.segs[x86SegCS] = in.Imm2
}

func opCALL_Ev(c *CPU_X86, in *Instruction) {
	target := c.readOp16(&in.RM)
	c.push16(c.IP)
	c.IP = target
}

func opCALL_Mp(c *CPU_X86, in *Instruction) {
	off, seg := c.readFar(&in.RM)
	c.push16(c.segs[x86SegCS])
	c.push16(c.IP)
	c.IP = off
	c.segs[x86SegCS] = seg
}

func opRET(c *CPU_X86, in *Instruction) {
	c.IP = c.pop16()
}

func opRET_Iw(c *CPU_X86, in *Instruction) {
	c.IP = c.pop16()
	c.regs[x86RegSP] += in.Imm
}

func opRETF(c *CPU_X86, in *Instruction) {
	c.IP = c.pop16()
	c.segs[x86SegCS] = c.pop16()
}

func opRETF_Iw(c *CPU_X86, in *Instruction) {
	opRETF(c, in)
	c.regs[x86RegSP] += in.Imm
}

func opLOOP(c *CPU_X86, in *Instruction) {
	c.regs[x86RegCX]--
	if c.regs[x86RegCX] != 0 {
		c.IP += in.Imm
	}
}

func opLOOPZ(c *CPU_X86, in *Instruction) {
	c.regs[x86RegCX]--
	if c.regs[x86RegCX] != 0 && c.ZF() {
		c.IP += in.Imm
	}
}

func opLOOPNZ(c *CPU_X86, in *Instruction) {
	c.regs[x86RegCX]--
	if c.regs[x86RegCX] != 0 && !c.ZF() {
		c.IP += in.Imm
	}
}

func opJCXZ(c *CPU_X86, in *Instruction) {
	if c.regs[x86RegCX] == 0 {
		c.IP += in.Imm
	}
}

func opINT3(c *CPU_X86, in *Instruction) {
	c.interrupt(x86VecBreak)
}

func opINT_Ib(c *CPU_X86, in *Instruction) {
	c.interrupt(byte(in.Imm))
}

func opINTO(c *CPU_X86, in *Instruction) {
	if c.OF() {
		c.interrupt(x86VecOverflow)
	}
}

func opIRET(c *CPU_X86, in *Instruction) {
	c.IP = c.pop16()
	c.segs[x86SegCS] = c.pop16()
	c.Flags = Unpack16(c.pop16())
}

func opHLT(c *CPU_X86, in *Instruction) {
	c.Halted = true
	logDebug(modCPU, "halted", "at", formatSegOff(in.CS, in.IP), "if", c.IF())
}

// =============================================================================
// Port I/O
// =============================================================================

func (c *CPU_X86) portIn(port uint16, width PortWidth) uint16 {
	v, err := c.bus.In(port, width)
	if err != nil {
		c.fail(err)
	}
	return v
}

func (c *CPU_X86) portOut(port uint16, width PortWidth, v uint16) {
	if err := c.bus.Out(port, width, v); err != nil {
		c.fail(err)
	}
}

func opIN_AL_Ib(c *CPU_X86, in *Instruction) { c.SetAL(byte(c.portIn(in.Imm&0xFF, Width8))) }
func opIN_AX_Ib(c *CPU_X86, in *Instruction) { c.SetAX(c.portIn(in.Imm&0xFF, Width16)) }
func opIN_AL_DX(c *CPU_X86, in *Instruction) { c.SetAL(byte(c.portIn(c.DX(), Width8))) }
func opIN_AX_DX(c *CPU_X86, in *Instruction) { c.SetAX(c.portIn(c.DX(), Width16)) }

func opOUT_Ib_AL(c *CPU_X86, in *Instruction) { c.portOut(in.Imm&0xFF, Width8, uint16(c.AL())) }
func opOUT_Ib_AX(c *CPU_X86, in *Instruction) { c.portOut(in.Imm&0xFF, Width16, c.AX()) }
func opOUT_DX_AL(c *CPU_X86, in *Instruction) { c.portOut(c.DX(), Width8, uint16(c.AL())) }
func opOUT_DX_AX(c *CPU_X86, in *Instruction) { c.portOut(c.DX(), Width16, c.AX()) }

// =============================================================================
// BCD Adjust
// =============================================================================

func opDAA(c *CPU_X86, in *Instruction) {
	al, cf := c.AL(), c.CF()
	c.setFlag(x86FlagCF, false)
	if al&0x0F > 9 || c.AF() {
		c.SetAL(c.AL() + 6)
		c.setFlag(x86FlagCF, cf || al > 0xF9)
		c.setFlag(x86FlagAF, true)
	} else {
		c.setFlag(x86FlagAF, false)
	}
	if al > 0x99 || cf {
		c.SetAL(c.AL() + 0x60)
		c.setFlag(x86FlagCF, true)
	}
	c.setSZP8(c.AL())
}

func opDAS(c *CPU_X86, in *Instruction) {
	al, cf := c.AL(), c.CF()
	c.setFlag(x86FlagCF, false)
	if al&0x0F > 9 || c.AF() {
		c.SetAL(c.AL() - 6)
		c.setFlag(x86FlagCF, cf || al < 6)
		c.setFlag(x86FlagAF, true)
	} else {
		c.setFlag(x86FlagAF, false)
	}
	if al > 0x99 || cf {
		c.SetAL(c.AL() - 0x60)
		c.setFlag(x86FlagCF, true)
	}
	c.setSZP8(c.AL())
}

func opAAA(c *CPU_X86, in *Instruction) {
	adjust := c.AL()&0x0F > 9 || c.AF()
	if adjust {
		c.SetAL(c.AL() + 6)
		c.SetAH(c.AH() + 1)
	}
	c.setFlag(x86FlagAF, adjust)
	c.setFlag(x86FlagCF, adjust)
	c.SetAL(c.AL() & 0x0F)
}

func opAAS(c *CPU_X86, in *Instruction) {
	adjust := c.AL()&0x0F > 9 || c.AF()
	if adjust {
		c.SetAL(c.AL() - 6)
		c.SetAH(c.AH() - 1)
	}
	c.setFlag(x86FlagAF, adjust)
	c.setFlag(x86FlagCF, adjust)
	c.SetAL(c.AL() & 0x0F)
}

func opAAM(c *CPU_X86, in *Instruction) {
	base := byte(in.Imm)
	if base == 0 {
		c.interrupt(x86VecDivide)
		return
	}
	al := c.AL()
	c.SetAH(al / base)
	c.SetAL(al % base)
	c.setSZP8(c.AL())
}

func opAAD(c *CPU_X86, in *Instruction) {
	c.SetAL(c.AL() + c.AH()*byte(in.Imm))
	c.SetAH(0)
	c.setSZP8(c.AL())
}

// =============================================================================
// Group 3: NOT NEG MUL IMUL DIV IDIV
// =============================================================================

func opNOT_Eb(c *CPU_X86, in *Instruction) { c.writeOp8(&in.RM, ^c.readOp8(&in.RM)) }
func opNOT_Ev(c *CPU_X86, in *Instruction) { c.writeOp16(&in.RM, ^c.readOp16(&in.RM)) }

func opNEG_Eb(c *CPU_X86, in *Instruction) {
	c.writeOp8(&in.RM, c.sub8(0, c.readOp8(&in.RM), 0))
}

func opNEG_Ev(c *CPU_X86, in *Instruction) {
	c.writeOp16(&in.RM, c.sub16(0, c.readOp16(&in.RM), 0))
}

func (c *CPU_X86) setMulFlags(overflow bool) {
	c.setFlag(x86FlagCF, overflow)
	c.setFlag(x86FlagOF, overflow)
}

func opMUL_Eb(c *CPU_X86, in *Instruction) {
	r := uint16(c.AL()) * uint16(c.readOp8(&in.RM))
	c.SetAX(r)
	c.setMulFlags(r&0xFF00 != 0)
}

func opMUL_Ev(c *CPU_X86, in *Instruction) {
	r := uint32(c.AX()) * uint32(c.readOp16(&in.RM))
	c.SetAX(uint16(r))
	c.SetDX(uint16(r >> 16))
	c.setMulFlags(r&0xFFFF0000 != 0)
}

func opIMUL_Eb(c *CPU_X86, in *Instruction) {
	r := int16(int8(c.AL())) * int16(int8(c.readOp8(&in.RM)))
	c.SetAX(uint16(r))
	c.setMulFlags(r != int16(int8(r)))
}

func opIMUL_Ev(c *CPU_X86, in *Instruction) {
	r := int32(int16(c.AX())) * int32(int16(c.readOp16(&in.RM)))
	c.SetAX(uint16(r))
	c.SetDX(uint16(uint32(r) >> 16))
	c.setMulFlags(r != int32(int16(r)))
}

// divideError raises INT 0. AX and DX are left untouched and the pushed IP
// is that of the following instruction.
func (c *CPU_X86) divideError(in *Instruction) {
	logDebug(modCPU, "divide error", "at", formatSegOff(in.CS, in.IP))
	c.interrupt(x86VecDivide)
}

func opDIV_Eb(c *CPU_X86, in *Instruction) {
	d := uint16(c.readOp8(&in.RM))
	if d == 0 {
		c.divideError(in)
		return
	}
	q, r := c.AX()/d, c.AX()%d
	if q > 0xFF {
		c.divideError(in)
		return
	}
	c.SetAL(byte(q))
	c.SetAH(byte(r))
}

func opDIV_Ev(c *CPU_X86, in *Instruction) {
	d := uint32(c.readOp16(&in.RM))
	if d == 0 {
		c.divideError(in)
		return
	}
	n := uint32(c.DX())<<16 | uint32(c.AX())
	q, r := n/d, n%d
	if q > 0xFFFF {
		c.divideError(in)
		return
	}
	c.SetAX(uint16(q))
	c.SetDX(uint16(r))
}

// idivMin is the most negative quotient IDIV stores. The 8086 faults on
// -128 and -32768, the 80186 accepts them.
func (c *CPU_X86) idivMin(width uint) int32 {
	lim := int32(-1) << (width - 1)
	if !c.HasFeature(FeatureInstr186) {
		lim++
	}
	return lim
}

func opIDIV_Eb(c *CPU_X86, in *Instruction) {
	d := int16(int8(c.readOp8(&in.RM)))
	if d == 0 {
		c.divideError(in)
		return
	}
	n := int16(c.AX())
	if n == -0x8000 && d == -1 {
		c.divideError(in)
		return
	}
	q, r := n/d, n%d
	if q > 127 || int32(q) < c.idivMin(8) {
		c.divideError(in)
		return
	}
	c.SetAL(byte(q))
	c.SetAH(byte(r))
}

func opIDIV_Ev(c *CPU_X86, in *Instruction) {
	d := int32(int16(c.readOp16(&in.RM)))
	if d == 0 {
		c.divideError(in)
		return
	}
	n := int32(uint32(c.DX())<<16 | uint32(c.AX()))
	if n == -0x80000000 && d == -1 {
		c.divideError(in)
		return
	}
	q, r := n/d, n%d
	if q > 32767 || q < c.idivMin(16) {
		c.divideError(in)
		return
	}
	c.SetAX(uint16(q))
	c.SetDX(uint16(r))
}

// =============================================================================
// Group 2: shifts and rotates
// =============================================================================

const (
	shiftROL = iota
	shiftROR
	shiftRCL
	shiftRCR
	shiftSHL
	shiftSHR
	shiftSAL // undocumented mirror of SHL
	shiftSAR
)

// shiftRotate applies a shift or rotate one bit at a time. A zero count
// leaves the operand and every flag unchanged. With the 80186 feature the
// count is masked to five bits.
func (c *CPU_X86) shiftRotate(op int, v uint16, count byte, width uint) uint16 {
	if c.HasFeature(FeatureInstr186) {
		count &= 0x1F
	}
	if count == 0 {
		return v
	}

	msb := uint16(1) << (width - 1)
	mask := msb<<1 - 1
	v &= mask

	cf := c.CF()
	of := c.OF()
	for i := byte(0); i < count; i++ {
		switch op {
		case shiftROL:
			cf = v&msb != 0
			v = (v << 1) & mask
			if cf {
				v |= 1
			}
			of = (v&msb != 0) != cf
		case shiftROR:
			cf = v&1 != 0
			v >>= 1
			if cf {
				v |= msb
			}
			of = (v&msb != 0) != (v&(msb>>1) != 0)
		case shiftRCL:
			out := v&msb != 0
			v = (v << 1) & mask
			if cf {
				v |= 1
			}
			cf = out
			of = (v&msb != 0) != cf
		case shiftRCR:
			out := v&1 != 0
			v >>= 1
			if cf {
				v |= msb
			}
			cf = out
			of = (v&msb != 0) != (v&(msb>>1) != 0)
		case shiftSHL, shiftSAL:
			cf = v&msb != 0
			v = (v << 1) & mask
			of = (v&msb != 0) != cf
		case shiftSHR:
			of = v&msb != 0
			cf = v&1 != 0
			v >>= 1
		case shiftSAR:
			cf = v&1 != 0
			v = v>>1 | v&msb
			of = false
		}
	}

	c.setFlag(x86FlagCF, cf)
	c.setFlag(x86FlagOF, of)
	switch op {
	case shiftSHL, shiftSHR, shiftSAL, shiftSAR:
		if width == 8 {
			c.setSZP8(byte(v))
		} else {
			c.setSZP16(v)
		}
	}
	return v
}

// =============================================================================
// 80186 additions
// =============================================================================

func opPUSH_Imm(c *CPU_X86, in *Instruction) {
	c.push16(in.Imm)
}

func opPUSHA(c *CPU_X86, in *Instruction) {
	sp := c.regs[x86RegSP]
	for r := byte(x86RegAX); r <= x86RegDI; r++ {
		if r == x86RegSP {
			c.push16(sp)
			continue
		}
		c.push16(c.regs[r])
	}
}

func opPOPA(c *CPU_X86, in *Instruction) {
	for r := int(x86RegDI); r >= x86RegAX; r-- {
		v := c.pop16()
		if r != x86RegSP {
			c.regs[r] = v
		}
	}
}

// opBOUND raises INT 5 when the signed index lies outside [lower, upper].
// The pushed IP points at the BOUND instruction so a handler can retry it.
func opBOUND(c *CPU_X86, in *Instruction) {
	lower, upper := c.readFar(&in.RM)
	idx := int16(c.readOp16(&in.Reg))
	if idx < int16(lower) || idx > int16(upper) {
		c.IP = in.IP
		c.interrupt(x86VecBound)
	}
}

func opIMUL_Gv_Ev_I(c *CPU_X86, in *Instruction) {
	r := int32(int16(c.readOp16(&in.RM))) * int32(int16(in.Imm))
	c.writeOp16(&in.Reg, uint16(r))
	c.setMulFlags(r != int32(int16(r)))
}

func opENTER(c *CPU_X86, in *Instruction) {
	size, level := in.Imm, in.Imm2&0x1F
	c.push16(c.regs[x86RegBP])
	frame := c.regs[x86RegSP]
	if level > 0 {
		for i := uint16(1); i < level; i++ {
			c.regs[x86RegBP] -= 2
			c.push16(c.read16(x86SegSS, c.regs[x86RegBP]))
		}
		c.push16(frame)
	}
	c.regs[x86RegBP] = frame
	c.regs[x86RegSP] -= size
}

func opLEAVE(c *CPU_X86, in *Instruction) {
	c.regs[x86RegSP] = c.regs[x86RegBP]
	c.regs[x86RegBP] = c.pop16()
}
