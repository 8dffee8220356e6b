// cpu_x86_flags.go - x86 FLAGS register model and flag computation helpers
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "strings"

// Flags holds the nine defined condition and control bits at their
// hardware positions. Reserved bits are never stored.
type Flags uint16

const (
	x86FlagCF Flags = 1 << 0
	x86FlagPF Flags = 1 << 2
	x86FlagAF Flags = 1 << 4
	x86FlagZF Flags = 1 << 6
	x86FlagSF Flags = 1 << 7
	x86FlagTF Flags = 1 << 8
	x86FlagIF Flags = 1 << 9
	x86FlagDF Flags = 1 << 10
	x86FlagOF Flags = 1 << 11

	x86FlagsDefined = x86FlagCF | x86FlagPF | x86FlagAF | x86FlagZF | x86FlagSF |
		x86FlagTF | x86FlagIF | x86FlagDF | x86FlagOF

	// Bit 1 always reads as one. On the 8086 bits 12-15 do as well.
	x86FlagsFixed8  = 0x0002
	x86FlagsFixed16 = 0xF002
)

// Has reports whether the given bit is set
func (f Flags) Has(bit Flags) bool {
	return f&bit != 0
}

// Set sets or clears a bit
func (f *Flags) Set(bit Flags, on bool) {
	if on {
		*f |= bit
	} else {
		*f &^= bit
	}
}

// Pack16 returns the FLAGS word as PUSHF stores it.
func (f Flags) Pack16() uint16 {
	return uint16(f&x86FlagsDefined) | x86FlagsFixed16
}

// Pack8 returns the low FLAGS byte as LAHF loads it.
func (f Flags) Pack8() byte {
	return byte(f&x86FlagsDefined) | x86FlagsFixed8
}

// Unpack16 returns the flags held in a FLAGS word. Reserved bits are ignored.
func Unpack16(v uint16) Flags {
	return Flags(v) & x86FlagsDefined
}

// Unpack8 replaces the low-byte flags (SF ZF AF PF CF) from v, as SAHF does.
func (f Flags) Unpack8(v byte) Flags {
	const low = x86FlagCF | x86FlagPF | x86FlagAF | x86FlagZF | x86FlagSF
	return f&^low | Flags(v)&low
}

// String renders the set flags the way the monitor shows them, e.g. "O-----ZP-C"
func (f Flags) String() string {
	var sb strings.Builder
	for _, e := range []struct {
		bit Flags
		ch  byte
	}{
		{x86FlagOF, 'O'}, {x86FlagDF, 'D'}, {x86FlagIF, 'I'}, {x86FlagTF, 'T'},
		{x86FlagSF, 'S'}, {x86FlagZF, 'Z'}, {x86FlagAF, 'A'}, {x86FlagPF, 'P'}, {x86FlagCF, 'C'},
	} {
		if f.Has(e.bit) {
			sb.WriteByte(e.ch)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// parity returns true if the low byte has an even number of set bits
func parity(v byte) bool {
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v&1 == 0
}

// SetParityFrom sets PF from the low byte of v
func (f *Flags) SetParityFrom(v uint16) { f.Set(x86FlagPF, parity(byte(v))) }

func (f *Flags) SetZeroFrom8(v byte)    { f.Set(x86FlagZF, v == 0) }
func (f *Flags) SetZeroFrom16(v uint16) { f.Set(x86FlagZF, v == 0) }
func (f *Flags) SetSignFrom8(v byte)    { f.Set(x86FlagSF, v&0x80 != 0) }
func (f *Flags) SetSignFrom16(v uint16) { f.Set(x86FlagSF, v&0x8000 != 0) }

// setSZP8 sets SF, ZF and PF from a byte result
func (c *CPU_X86) setSZP8(r byte) {
	c.Flags.SetSignFrom8(r)
	c.Flags.SetZeroFrom8(r)
	c.Flags.SetParityFrom(uint16(r))
}

// setSZP16 sets SF, ZF and PF from a word result
func (c *CPU_X86) setSZP16(r uint16) {
	c.Flags.SetSignFrom16(r)
	c.Flags.SetZeroFrom16(r)
	c.Flags.SetParityFrom(r)
}

// -----------------------------------------------------------------------------
// Arithmetic with flag side effects
// -----------------------------------------------------------------------------

func (c *CPU_X86) add8(a, b, carry byte) byte {
	wide := uint16(a) + uint16(b) + uint16(carry)
	r := byte(wide)
	c.setFlag(x86FlagCF, wide > 0xFF)
	c.setFlag(x86FlagOF, (a^r)&(b^r)&0x80 != 0)
	c.setFlag(x86FlagAF, (a^b^r)&0x10 != 0)
	c.setSZP8(r)
	return r
}

func (c *CPU_X86) add16(a, b, carry uint16) uint16 {
	wide := uint32(a) + uint32(b) + uint32(carry)
	r := uint16(wide)
	c.setFlag(x86FlagCF, wide > 0xFFFF)
	c.setFlag(x86FlagOF, (a^r)&(b^r)&0x8000 != 0)
	c.setFlag(x86FlagAF, (a^b^r)&0x10 != 0)
	c.setSZP16(r)
	return r
}

func (c *CPU_X86) sub8(a, b, borrow byte) byte {
	wide := uint16(a) - uint16(b) - uint16(borrow)
	r := byte(wide)
	c.setFlag(x86FlagCF, wide > 0xFF)
	c.setFlag(x86FlagOF, (a^b)&(a^r)&0x80 != 0)
	c.setFlag(x86FlagAF, (a^b^r)&0x10 != 0)
	c.setSZP8(r)
	return r
}

func (c *CPU_X86) sub16(a, b, borrow uint16) uint16 {
	wide := uint32(a) - uint32(b) - uint32(borrow)
	r := uint16(wide)
	c.setFlag(x86FlagCF, wide > 0xFFFF)
	c.setFlag(x86FlagOF, (a^b)&(a^r)&0x8000 != 0)
	c.setFlag(x86FlagAF, (a^b^r)&0x10 != 0)
	c.setSZP16(r)
	return r
}

// setFlagsLogic8 sets flags after AND/OR/XOR/TEST: CF and OF cleared, AF cleared
func (c *CPU_X86) setFlagsLogic8(r byte) {
	c.setFlag(x86FlagCF, false)
	c.setFlag(x86FlagOF, false)
	c.setFlag(x86FlagAF, false)
	c.setSZP8(r)
}

func (c *CPU_X86) setFlagsLogic16(r uint16) {
	c.setFlag(x86FlagCF, false)
	c.setFlag(x86FlagOF, false)
	c.setFlag(x86FlagAF, false)
	c.setSZP16(r)
}

// ALU operation numbers as encoded in opcode bits 3-5 and group 1 extensions
const (
	aluADD = iota
	aluOR
	aluADC
	aluSBB
	aluAND
	aluSUB
	aluXOR
	aluCMP
)

var aluNames = [8]string{"ADD", "OR", "ADC", "SBB", "AND", "SUB", "XOR", "CMP"}

// alu8 performs one of the eight classic ALU operations. The boolean result
// is false for CMP, whose result is discarded.
func (c *CPU_X86) alu8(op int, a, b byte) (byte, bool) {
	var carry byte
	if c.CF() {
		carry = 1
	}
	switch op {
	case aluADD:
		return c.add8(a, b, 0), true
	case aluOR:
		r := a | b
		c.setFlagsLogic8(r)
		return r, true
	case aluADC:
		return c.add8(a, b, carry), true
	case aluSBB:
		return c.sub8(a, b, carry), true
	case aluAND:
		r := a & b
		c.setFlagsLogic8(r)
		return r, true
	case aluSUB:
		return c.sub8(a, b, 0), true
	case aluXOR:
		r := a ^ b
		c.setFlagsLogic8(r)
		return r, true
	default:
		c.sub8(a, b, 0)
		return a, false
	}
}

func (c *CPU_X86) alu16(op int, a, b uint16) (uint16, bool) {
	var carry uint16
	if c.CF() {
		carry = 1
	}
	switch op {
	case aluADD:
		return c.add16(a, b, 0), true
	case aluOR:
		r := a | b
		c.setFlagsLogic16(r)
		return r, true
	case aluADC:
		return c.add16(a, b, carry), true
	case aluSBB:
		return c.sub16(a, b, carry), true
	case aluAND:
		r := a & b
		c.setFlagsLogic16(r)
		return r, true
	case aluSUB:
		return c.sub16(a, b, 0), true
	case aluXOR:
		r := a ^ b
		c.setFlagsLogic16(r)
		return r, true
	default:
		c.sub16(a, b, 0)
		return a, false
	}
}

// inc8 and friends preserve CF
func (c *CPU_X86) inc8(v byte) byte {
	cf := c.CF()
	r := c.add8(v, 1, 0)
	c.setFlag(x86FlagCF, cf)
	return r
}

func (c *CPU_X86) dec8(v byte) byte {
	cf := c.CF()
	r := c.sub8(v, 1, 0)
	c.setFlag(x86FlagCF, cf)
	return r
}

func (c *CPU_X86) inc16(v uint16) uint16 {
	cf := c.CF()
	r := c.add16(v, 1, 0)
	c.setFlag(x86FlagCF, cf)
	return r
}

func (c *CPU_X86) dec16(v uint16) uint16 {
	cf := c.CF()
	r := c.sub16(v, 1, 0)
	c.setFlag(x86FlagCF, cf)
	return r
}

// condition evaluates a Jcc condition code (low nibble of 70-7F)
func (c *CPU_X86) condition(cc byte) bool {
	var r bool
	switch cc >> 1 {
	case 0: // O
		r = c.OF()
	case 1: // B/C
		r = c.CF()
	case 2: // Z
		r = c.ZF()
	case 3: // BE
		r = c.CF() || c.ZF()
	case 4: // S
		r = c.SF()
	case 5: // P
		r = c.PF()
	case 6: // L
		r = c.SF() != c.OF()
	case 7: // LE
		r = c.ZF() || c.SF() != c.OF()
	}
	if cc&1 != 0 {
		return !r
	}
	return r
}
