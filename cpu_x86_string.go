// cpu_x86_string.go - x86 string instructions and REP handling
//
// A repeated string instruction runs to completion within a single Step.
// The source operand honours a segment override; the destination is always
// ES:DI.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// stringDelta returns the per-element SI/DI adjustment for the current DF
func (c *CPU_X86) stringDelta(size uint16) uint16 {
	if c.DF() {
		return -size
	}
	return size
}

// repeat runs body once, or CX times under a REP prefix. For CMPS and SCAS
// (compares=true) REP stops when ZF is clear and REPNE when ZF is set.
func (c *CPU_X86) repeat(in *Instruction, compares bool, body func()) {
	if !in.Prefixes.Rep && !in.Prefixes.Repne {
		body()
		return
	}
	for c.regs[x86RegCX] != 0 {
		body()
		c.regs[x86RegCX]--
		if c.fault != nil {
			return
		}
		if compares {
			if in.Prefixes.Rep && !c.ZF() {
				return
			}
			if in.Prefixes.Repne && c.ZF() {
				return
			}
		}
	}
}

func opMOVSB(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(1)
	c.repeat(in, false, func() {
		c.write8(x86SegES, c.DI(), c.read8(in.Prefixes.Segment, c.SI()))
		c.regs[x86RegSI] += d
		c.regs[x86RegDI] += d
	})
}

func opMOVSW(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(2)
	c.repeat(in, false, func() {
		c.write16(x86SegES, c.DI(), c.read16(in.Prefixes.Segment, c.SI()))
		c.regs[x86RegSI] += d
		c.regs[x86RegDI] += d
	})
}

func opCMPSB(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(1)
	c.repeat(in, true, func() {
		c.sub8(c.read8(in.Prefixes.Segment, c.SI()), c.read8(x86SegES, c.DI()), 0)
		c.regs[x86RegSI] += d
		c.regs[x86RegDI] += d
	})
}

func opCMPSW(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(2)
	c.repeat(in, true, func() {
		c.sub16(c.read16(in.Prefixes.Segment, c.SI()), c.read16(x86SegES, c.DI()), 0)
		c.regs[x86RegSI] += d
		c.regs[x86RegDI] += d
	})
}

func opSTOSB(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(1)
	c.repeat(in, false, func() {
		c.write8(x86SegES, c.DI(), c.AL())
		c.regs[x86RegDI] += d
	})
}

func opSTOSW(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(2)
	c.repeat(in, false, func() {
		c.write16(x86SegES, c.DI(), c.AX())
		c.regs[x86RegDI] += d
	})
}

func opLODSB(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(1)
	c.repeat(in, false, func() {
		c.SetAL(c.read8(in.Prefixes.Segment, c.SI()))
		c.regs[x86RegSI] += d
	})
}

func opLODSW(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(2)
	c.repeat(in, false, func() {
		c.SetAX(c.read16(in.Prefixes.Segment, c.SI()))
		c.regs[x86RegSI] += d
	})
}

func opSCASB(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(1)
	c.repeat(in, true, func() {
		c.sub8(c.AL(), c.read8(x86SegES, c.DI()), 0)
		c.regs[x86RegDI] += d
	})
}

func opSCASW(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(2)
	c.repeat(in, true, func() {
		c.sub16(c.AX(), c.read16(x86SegES, c.DI()), 0)
		c.regs[x86RegDI] += d
	})
}

func opINSB(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(1)
	c.repeat(in, false, func() {
		c.write8(x86SegES, c.DI(), byte(c.portIn(c.DX(), Width8)))
		c.regs[x86RegDI] += d
	})
}

func opINSW(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(2)
	c.repeat(in, false, func() {
		c.write16(x86SegES, c.DI(), c.portIn(c.DX(), Width16))
		c.regs[x86RegDI] += d
	})
}

func opOUTSB(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(1)
	c.repeat(in, false, func() {
		c.portOut(c.DX(), Width8, uint16(c.read8(in.Prefixes.Segment, c.SI())))
		c.regs[x86RegSI] += d
	})
}

func opOUTSW(c *CPU_X86, in *Instruction) {
	d := c.stringDelta(2)
	c.repeat(in, false, func() {
		c.portOut(c.DX(), Width16, c.read16(in.Prefixes.Segment, c.SI()))
		c.regs[x86RegSI] += d
	})
}
