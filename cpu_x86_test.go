// cpu_x86_test.go - x86 CPU Unit Tests
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"errors"
	"math/bits"
	"testing"
)

// TestX86Bus is a flat 1MB memory and a port array.
type TestX86Bus struct {
	memory [1024 * 1024]byte // 1MB test memory
	ports  [65536]uint16     // Port I/O space
	// portErr, when set, is returned from every port access
	portErr error
}

func NewTestX86Bus() *TestX86Bus {
	return &TestX86Bus{}
}

func (b *TestX86Bus) Read(addr uint32) byte {
	return b.memory[addr&x86AddressMask]
}

func (b *TestX86Bus) Write(addr uint32, value byte) {
	b.memory[addr&x86AddressMask] = value
}

func (b *TestX86Bus) In(port uint16, width PortWidth) (uint16, error) {
	if b.portErr != nil {
		return 0, b.portErr
	}
	return b.ports[port] & width.mask(), nil
}

func (b *TestX86Bus) Out(port uint16, width PortWidth, value uint16) error {
	if b.portErr != nil {
		return b.portErr
	}
	b.ports[port] = value & width.mask()
	return nil
}

func (b *TestX86Bus) write16(addr uint32, v uint16) {
	b.Write(addr, byte(v))
	b.Write(addr+1, byte(v>>8))
}

func (b *TestX86Bus) read16(addr uint32) uint16 {
	return uint16(b.Read(addr)) | uint16(b.Read(addr+1))<<8
}

// setVector points interrupt vector n at seg:off
func (b *TestX86Bus) setVector(n byte, seg, off uint16) {
	b.write16(uint32(n)*4, off)
	b.write16(uint32(n)*4+2, seg)
}

// testIRQ is a one-shot interrupt source
type testIRQ struct {
	vector  byte
	pending bool
}

func (s *testIRQ) PendingInterrupt() (byte, bool) {
	if !s.pending {
		return 0, false
	}
	s.pending = false
	return s.vector, true
}

const testX86Origin = 0x0100

// newTestX86 places code at 0000:0100 with all segments zero and the stack
// at 0000:FFFE.
func newTestX86(code ...byte) (*CPU_X86, *TestX86Bus) {
	return newTestX86With(nil, code...)
}

func newTestX86With(features []Feature, code ...byte) (*CPU_X86, *TestX86Bus) {
	bus := NewTestX86Bus()
	cpu := NewCPU_X86(bus, features...)
	for seg := x86SegES; seg <= x86SegDS; seg++ {
		cpu.SetSeg(seg, 0)
	}
	cpu.SetSP(0xFFFE)
	cpu.IP = testX86Origin
	copy(bus.memory[testX86Origin:], code)
	return cpu, bus
}

func stepX86(t *testing.T, cpu *CPU_X86, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := cpu.Step(); err != nil {
			t.Fatalf("step %d at %s: %v", i, formatSegOff(cpu.CS(), cpu.IP), err)
		}
	}
}

// =============================================================================
// Register Access Tests
// =============================================================================

func TestX86_RegisterAccess(t *testing.T) {
	cpu, _ := newTestX86()

	cpu.SetAX(0x1234)
	if cpu.AL() != 0x34 {
		t.Errorf("AL: got 0x%02X, want 0x34", cpu.AL())
	}
	if cpu.AH() != 0x12 {
		t.Errorf("AH: got 0x%02X, want 0x12", cpu.AH())
	}

	cpu.SetAL(0xAB)
	if cpu.AX() != 0x12AB {
		t.Errorf("SetAL: AX got 0x%04X, want 0x12AB", cpu.AX())
	}
	cpu.SetAH(0xCD)
	if cpu.AX() != 0xCDAB {
		t.Errorf("SetAH: AX got 0x%04X, want 0xCDAB", cpu.AX())
	}

	cpu.SetBX(0x1111)
	cpu.SetReg8(x86RegBH, 0x55)
	if cpu.BX() != 0x5511 {
		t.Errorf("SetReg8(BH): BX got 0x%04X, want 0x5511", cpu.BX())
	}
	if cpu.Reg8(x86RegBL) != 0x11 || cpu.Reg8(x86RegBH) != 0x55 {
		t.Errorf("Reg8(BL/BH): got %02X/%02X", cpu.Reg8(x86RegBL), cpu.Reg8(x86RegBH))
	}
	if cpu.Reg16(x86RegBX) != 0x5511 {
		t.Errorf("Reg16(BX): got 0x%04X", cpu.Reg16(x86RegBX))
	}
}

func TestX86_RegisterIncDecWrap(t *testing.T) {
	cpu, _ := newTestX86()

	cpu.SetCX(0xFFFF)
	cpu.IncReg16(x86RegCX)
	if cpu.CX() != 0 {
		t.Errorf("IncReg16: got 0x%04X, want 0", cpu.CX())
	}
	cpu.DecReg16(x86RegCX)
	if cpu.CX() != 0xFFFF {
		t.Errorf("DecReg16: got 0x%04X, want 0xFFFF", cpu.CX())
	}
}

func TestX86_ResetVector(t *testing.T) {
	cpu := NewCPU_X86(NewTestX86Bus())
	if cpu.CS() != 0xFFFF || cpu.IP != 0 {
		t.Errorf("reset at %s, want FFFF:0000", formatSegOff(cpu.CS(), cpu.IP))
	}
	if Linear(cpu.CS(), cpu.IP) != 0xFFFF0 {
		t.Errorf("first fetch at %05X, want FFFF0", Linear(cpu.CS(), cpu.IP))
	}
}

// =============================================================================
// Flag Tests
// =============================================================================

func TestX86_FlagDerivation(t *testing.T) {
	for v := 0; v < 256; v++ {
		b := byte(v)
		if parity(b) != (bits.OnesCount8(b)%2 == 0) {
			t.Errorf("parity(0x%02X) = %v", b, parity(b))
		}
		var f Flags
		f.SetZeroFrom8(b)
		f.SetSignFrom8(b)
		f.SetParityFrom(uint16(b))
		if f.Has(x86FlagZF) != (b == 0) {
			t.Errorf("zero(0x%02X) = %v", b, f.Has(x86FlagZF))
		}
		if f.Has(x86FlagSF) != (b&0x80 != 0) {
			t.Errorf("sign(0x%02X) = %v", b, f.Has(x86FlagSF))
		}
		if f.Has(x86FlagPF) != parity(b) {
			t.Errorf("SetParityFrom(0x%02X) = %v", b, f.Has(x86FlagPF))
		}
	}

	var f Flags
	f.SetSignFrom16(0x8000)
	f.SetZeroFrom16(0x0100)
	if !f.Has(x86FlagSF) || f.Has(x86FlagZF) {
		t.Errorf("16-bit sign/zero: got %s", f)
	}
}

func TestX86_FlagPacking(t *testing.T) {
	if got := Flags(0).Pack16(); got != 0xF002 {
		t.Errorf("Pack16(0) = 0x%04X, want 0xF002", got)
	}
	if got := Flags(0).Pack8(); got != 0x02 {
		t.Errorf("Pack8(0) = 0x%02X, want 0x02", got)
	}
	if got := Unpack16(0xFFFF); got != x86FlagsDefined {
		t.Errorf("Unpack16(0xFFFF) = 0x%04X, want 0x%04X", uint16(got), uint16(x86FlagsDefined))
	}

	f := x86FlagCF | x86FlagOF | x86FlagIF
	if got := Unpack16(f.Pack16()); got != f {
		t.Errorf("Unpack16(Pack16) = %s, want %s", got, f)
	}
	if got := (x86FlagCF | x86FlagZF).Pack8(); got != 0x43 {
		t.Errorf("Pack8(CF|ZF) = 0x%02X, want 0x43", got)
	}

	// Unpack8 only touches SF ZF AF PF CF
	g := x86FlagOF.Unpack8(0xFF)
	want := x86FlagOF | x86FlagSF | x86FlagZF | x86FlagAF | x86FlagPF | x86FlagCF
	if g != want {
		t.Errorf("Unpack8(0xFF) = %s, want %s", g, want)
	}
}

func TestX86_FlagsString(t *testing.T) {
	if got := (x86FlagOF | x86FlagZF | x86FlagCF).String(); got != "O----Z--C" {
		t.Errorf("String() = %q", got)
	}
	if got := Flags(0).String(); got != "---------" {
		t.Errorf("String() = %q", got)
	}
}

// =============================================================================
// Addressing Tests
// =============================================================================

func TestX86_Linear(t *testing.T) {
	tests := []struct {
		seg, off uint16
		want     uint32
	}{
		{0x1000, 0x0010, 0x10010},
		{0x0000, 0x0000, 0x00000},
		{0xFFFF, 0x0000, 0xFFFF0},
		{0xFFFF, 0x0010, 0x00000}, // wraps at 1MB
		{0xFFFF, 0xFFFF, 0x0FFEF},
	}
	for _, tt := range tests {
		if got := Linear(tt.seg, tt.off); got != tt.want {
			t.Errorf("Linear(%04X, %04X) = %05X, want %05X", tt.seg, tt.off, got, tt.want)
		}
	}
}

func TestX86_FetchWrapsIP(t *testing.T) {
	cpu, bus := newTestX86()
	cpu.IP = 0xFFFF
	bus.memory[0xFFFF] = 0x90

	stepX86(t, cpu, 1)
	if cpu.IP != 0 {
		t.Errorf("IP after NOP at FFFF: got 0x%04X, want 0", cpu.IP)
	}
}

func TestX86_WordReadWrapsInSegment(t *testing.T) {
	// MOV AX, [FFFF]
	cpu, bus := newTestX86(0xA1, 0xFF, 0xFF)
	cpu.SetSeg(x86SegDS, 0x1000)
	bus.memory[0x1FFFF] = 0x34
	bus.memory[0x10000] = 0x12

	stepX86(t, cpu, 1)
	if cpu.AX() != 0x1234 {
		t.Errorf("AX: got 0x%04X, want 0x1234", cpu.AX())
	}
}

// =============================================================================
// ModRM Decode Tests
// =============================================================================

func TestX86_ModRMRegisterDirect(t *testing.T) {
	cpu, _ := newTestX86(0xC1) // 11 000 001

	in := &Instruction{Ext: -1}
	cpu.decodeModRM(in, OperandReg8, OperandReg8)

	if in.Reg.Kind != OperandReg8 || in.Reg.Reg != 0 {
		t.Errorf("reg: got %v/%d, want AL", in.Reg.Kind, in.Reg.Reg)
	}
	if in.RM.Kind != OperandReg8 || in.RM.Reg != 1 {
		t.Errorf("r/m: got %v/%d, want CL", in.RM.Kind, in.RM.Reg)
	}
	if cpu.IP != testX86Origin+1 {
		t.Errorf("IP: got 0x%04X, want 0x%04X (no displacement)", cpu.IP, testX86Origin+1)
	}
}

func TestX86_ModRMMemoryForms(t *testing.T) {
	tests := []struct {
		name     string
		bytes    []byte
		override int // -1 for none
		wantSeg  int
		wantOff  uint16
		wantLen  uint16
	}{
		{"[BX+SI]", []byte{0x00}, -1, x86SegDS, 0x0030, 1},
		{"[BP+SI+5]", []byte{0x42, 0x05}, -1, x86SegSS, 0x0065, 2},
		{"[BP-2]", []byte{0x46, 0xFE}, -1, x86SegSS, 0x003E, 2},
		{"[disp16]", []byte{0x06, 0x34, 0x12}, -1, x86SegDS, 0x1234, 3},
		{"[BX+1000]", []byte{0x87, 0x00, 0x10}, -1, x86SegDS, 0x1010, 3},
		{"ES:[BP]", []byte{0x46, 0x00}, x86SegES, x86SegES, 0x0040, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, _ := newTestX86(tt.bytes...)
			cpu.SetBX(0x10)
			cpu.SetSI(0x20)
			cpu.SetDI(0x30)
			cpu.SetBP(0x40)

			in := &Instruction{Ext: -1, Prefixes: Prefixes{Segment: x86SegDS}}
			if tt.override >= 0 {
				in.Prefixes = Prefixes{Segment: tt.override, Override: true}
			}
			cpu.decodeModRM(in, OperandReg16, OperandReg16)

			if !in.RM.IsMem() {
				t.Fatalf("r/m is not memory: %v", in.RM)
			}
			if in.RM.Ptr.Segment != tt.wantSeg {
				t.Errorf("segment: got %s, want %s", x86SegNames[in.RM.Ptr.Segment], x86SegNames[tt.wantSeg])
			}
			if off := in.RM.Ptr.Offset(cpu); off != tt.wantOff {
				t.Errorf("offset: got 0x%04X, want 0x%04X", off, tt.wantOff)
			}
			if cpu.IP-testX86Origin != tt.wantLen {
				t.Errorf("consumed %d bytes, want %d", cpu.IP-testX86Origin, tt.wantLen)
			}
		})
	}
}

func TestX86_RmPtrResolvesLate(t *testing.T) {
	cpu, _ := newTestX86(0x07) // [BX]
	cpu.SetBX(0x100)
	in := &Instruction{Ext: -1, Prefixes: Prefixes{Segment: x86SegDS}}
	cpu.decodeModRM(in, OperandReg16, OperandReg16)

	cpu.SetBX(0x200)
	if off := in.RM.Ptr.Offset(cpu); off != 0x200 {
		t.Errorf("offset after BX change: got 0x%04X, want 0x0200", off)
	}
}

// =============================================================================
// Basic Instruction Tests
// =============================================================================

func TestX86_NOP(t *testing.T) {
	cpu, _ := newTestX86(0x90)

	stepX86(t, cpu, 1)
	if cpu.IP != 0x101 {
		t.Errorf("IP after NOP: got 0x%04X, want 0x0101", cpu.IP)
	}
	if cpu.Decoded != 1 {
		t.Errorf("Decoded: got %d, want 1", cpu.Decoded)
	}
}

func TestX86_DecodeInstruction(t *testing.T) {
	cpu, _ := newTestX86(0xB8, 0x34, 0x12)

	in, err := cpu.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Mnemonic != "MOV" || in.Length != 3 || in.Imm != 0x1234 {
		t.Errorf("decoded %q len %d imm %04X", in.Mnemonic, in.Length, in.Imm)
	}
	if in.String() != "MOV AX" {
		t.Errorf("String() = %q", in.String())
	}
}

func TestX86_OnDecodeHook(t *testing.T) {
	cpu, _ := newTestX86(0x90, 0x90)
	var seen []uint16
	cpu.OnDecode = func(in *Instruction) { seen = append(seen, in.IP) }

	stepX86(t, cpu, 2)
	if len(seen) != 2 || seen[0] != 0x100 || seen[1] != 0x101 {
		t.Errorf("OnDecode saw %v", seen)
	}
}

func TestX86_MOV_reg_imm(t *testing.T) {
	cpu, _ := newTestX86(0xB8, 0x34, 0x12) // MOV AX, 0x1234

	stepX86(t, cpu, 1)
	if cpu.AX() != 0x1234 {
		t.Errorf("AX: got 0x%04X, want 0x1234", cpu.AX())
	}
	if cpu.IP != 0x103 {
		t.Errorf("IP: got 0x%04X, want 0x0103", cpu.IP)
	}
}

func TestX86_MOV_r8_imm8(t *testing.T) {
	cpu, _ := newTestX86(0xB4, 0x56) // MOV AH, 0x56
	cpu.SetAX(0x0011)

	stepX86(t, cpu, 1)
	if cpu.AX() != 0x5611 {
		t.Errorf("AX: got 0x%04X, want 0x5611", cpu.AX())
	}
}

func TestX86_MOV_SegmentOverride(t *testing.T) {
	cpu, bus := newTestX86(0x26, 0xA0, 0x10, 0x00) // MOV AL, ES:[0010]
	cpu.SetSeg(x86SegES, 0x0100)
	bus.memory[0x1010] = 0x5A

	stepX86(t, cpu, 1)
	if cpu.AL() != 0x5A {
		t.Errorf("AL: got 0x%02X, want 0x5A", cpu.AL())
	}
}

func TestX86_MOV_SegmentRegister(t *testing.T) {
	cpu, _ := newTestX86(0x8E, 0xD8) // MOV DS, AX
	cpu.SetAX(0x1234)

	stepX86(t, cpu, 1)
	if cpu.DS() != 0x1234 {
		t.Errorf("DS: got 0x%04X, want 0x1234", cpu.DS())
	}
}

func TestX86_LEA(t *testing.T) {
	cpu, _ := newTestX86(0x8D, 0x47, 0x05) // LEA AX, [BX+5]
	cpu.SetBX(0x100)

	stepX86(t, cpu, 1)
	if cpu.AX() != 0x105 {
		t.Errorf("AX: got 0x%04X, want 0x0105", cpu.AX())
	}
}

func TestX86_XCHG(t *testing.T) {
	cpu, _ := newTestX86(0x93) // XCHG AX, BX
	cpu.SetAX(1)
	cpu.SetBX(2)

	stepX86(t, cpu, 1)
	if cpu.AX() != 2 || cpu.BX() != 1 {
		t.Errorf("AX/BX: got %d/%d, want 2/1", cpu.AX(), cpu.BX())
	}
}

func TestX86_CBW_CWD(t *testing.T) {
	cpu, _ := newTestX86(0x98, 0x99) // CBW; CWD
	cpu.SetAX(0x0080)

	stepX86(t, cpu, 1)
	if cpu.AX() != 0xFF80 {
		t.Errorf("CBW: AX got 0x%04X, want 0xFF80", cpu.AX())
	}
	stepX86(t, cpu, 1)
	if cpu.DX() != 0xFFFF {
		t.Errorf("CWD: DX got 0x%04X, want 0xFFFF", cpu.DX())
	}
}

func TestX86_LAHF_SAHF(t *testing.T) {
	cpu, _ := newTestX86(0x9F, 0x9E) // LAHF; SAHF
	cpu.Flags = x86FlagCF | x86FlagZF | x86FlagOF

	stepX86(t, cpu, 1)
	if cpu.AH() != 0x43 {
		t.Errorf("LAHF: AH got 0x%02X, want 0x43", cpu.AH())
	}

	cpu.SetAH(0xD5)
	stepX86(t, cpu, 1)
	want := x86FlagSF | x86FlagZF | x86FlagAF | x86FlagPF | x86FlagCF | x86FlagOF
	if cpu.Flags != want {
		t.Errorf("SAHF: flags %s, want %s", cpu.Flags, want)
	}
}

// =============================================================================
// Arithmetic Tests
// =============================================================================

func TestX86_ADD(t *testing.T) {
	cpu, _ := newTestX86(0xB0, 0xFF, 0x04, 0x01) // MOV AL, FF; ADD AL, 1

	stepX86(t, cpu, 2)
	if cpu.AL() != 0x00 {
		t.Errorf("AL: got 0x%02X, want 0x00", cpu.AL())
	}
	if !cpu.CF() {
		t.Error("CF should be set")
	}
	if !cpu.ZF() {
		t.Error("ZF should be set")
	}
	if cpu.SF() {
		t.Error("SF should be clear")
	}
	if cpu.OF() {
		t.Error("OF should be clear")
	}
	if !cpu.AF() {
		t.Error("AF should be set")
	}
	if !cpu.PF() {
		t.Error("PF should be set")
	}
}

func TestX86_ADD_overflow(t *testing.T) {
	cpu, _ := newTestX86(0xB0, 0x7F, 0x04, 0x01) // MOV AL, 7F; ADD AL, 1

	stepX86(t, cpu, 2)
	if cpu.AL() != 0x80 {
		t.Errorf("AL: got 0x%02X, want 0x80", cpu.AL())
	}
	if !cpu.OF() || !cpu.SF() || cpu.CF() {
		t.Errorf("flags: got %s, want OF SF without CF", cpu.Flags)
	}
}

func TestX86_ADC(t *testing.T) {
	cpu, _ := newTestX86(0xF9, 0x14, 0x01) // STC; ADC AL, 1
	cpu.SetAL(0x10)

	stepX86(t, cpu, 2)
	if cpu.AL() != 0x12 {
		t.Errorf("AL: got 0x%02X, want 0x12", cpu.AL())
	}
}

func TestX86_SUB(t *testing.T) {
	cpu, _ := newTestX86(0xB8, 0x05, 0x00, 0x2D, 0x03, 0x00) // MOV AX, 5; SUB AX, 3

	stepX86(t, cpu, 2)
	if cpu.AX() != 2 {
		t.Errorf("AX: got %d, want 2", cpu.AX())
	}
	if cpu.CF() || cpu.ZF() {
		t.Errorf("flags: got %s", cpu.Flags)
	}
}

func TestX86_SUB_borrow(t *testing.T) {
	cpu, _ := newTestX86(0xB0, 0x00, 0x2C, 0x01) // MOV AL, 0; SUB AL, 1

	stepX86(t, cpu, 2)
	if cpu.AL() != 0xFF {
		t.Errorf("AL: got 0x%02X, want 0xFF", cpu.AL())
	}
	if !cpu.CF() || !cpu.SF() || cpu.OF() {
		t.Errorf("flags: got %s, want CF SF", cpu.Flags)
	}
}

func TestX86_CMP_MatchesSUBWithoutWriteback(t *testing.T) {
	pairs := [][2]uint16{{5, 5}, {0, 1}, {0x8000, 1}, {0x7FFF, 0xFFFF}, {0x1234, 0x0034}}
	for _, p := range pairs {
		cmp, _ := newTestX86(0x39, 0xD8) // CMP AX, BX
		sub, _ := newTestX86(0x29, 0xD8) // SUB AX, BX
		for _, c := range []*CPU_X86{cmp, sub} {
			c.SetAX(p[0])
			c.SetBX(p[1])
		}
		stepX86(t, cmp, 1)
		stepX86(t, sub, 1)

		if cmp.AX() != p[0] || cmp.BX() != p[1] {
			t.Errorf("CMP %04X,%04X modified operands: AX=%04X BX=%04X", p[0], p[1], cmp.AX(), cmp.BX())
		}
		if cmp.Flags != sub.Flags {
			t.Errorf("CMP %04X,%04X flags %s, SUB flags %s", p[0], p[1], cmp.Flags, sub.Flags)
		}
	}
}

func TestX86_CMP_memory(t *testing.T) {
	cpu, bus := newTestX86(0x38, 0x06, 0x00, 0x02) // CMP [0200], AL
	bus.memory[0x200] = 0x42
	cpu.SetAL(0x42)

	stepX86(t, cpu, 1)
	if !cpu.ZF() {
		t.Error("ZF should be set")
	}
	if bus.memory[0x200] != 0x42 {
		t.Errorf("memory changed to 0x%02X", bus.memory[0x200])
	}
}

func TestX86_CMP_zero(t *testing.T) {
	cpu, _ := newTestX86(0x3D, 0x00, 0x00) // CMP AX, 0

	stepX86(t, cpu, 1)
	if !cpu.ZF() {
		t.Error("ZF should be set when comparing 0 with 0")
	}
}

func TestX86_XOR_self(t *testing.T) {
	cpu, _ := newTestX86(0x31, 0xC0) // XOR AX, AX
	cpu.SetAX(0xBEEF)
	cpu.Flags = x86FlagCF | x86FlagOF

	stepX86(t, cpu, 1)
	if cpu.AX() != 0 {
		t.Errorf("AX: got 0x%04X, want 0", cpu.AX())
	}
	if !cpu.ZF() || !cpu.PF() || cpu.CF() || cpu.OF() {
		t.Errorf("flags: got %s, want ZF PF", cpu.Flags)
	}
}

func TestX86_INC_DEC(t *testing.T) {
	cpu, _ := newTestX86(0x40, 0x48, 0x48) // INC AX; DEC AX; DEC AX
	cpu.SetAX(0x7FFF)
	cpu.Flags = x86FlagCF

	stepX86(t, cpu, 1)
	if cpu.AX() != 0x8000 || !cpu.OF() {
		t.Errorf("INC: AX %04X flags %s", cpu.AX(), cpu.Flags)
	}
	if !cpu.CF() {
		t.Error("INC must not touch CF")
	}
	stepX86(t, cpu, 2)
	if cpu.AX() != 0x7FFE {
		t.Errorf("DEC: AX got 0x%04X, want 0x7FFE", cpu.AX())
	}
}

func TestX86_NEG(t *testing.T) {
	cpu, _ := newTestX86(0xF6, 0xD8) // NEG AL
	cpu.SetAL(1)

	stepX86(t, cpu, 1)
	if cpu.AL() != 0xFF || !cpu.CF() {
		t.Errorf("NEG 1: AL %02X flags %s", cpu.AL(), cpu.Flags)
	}
}

func TestX86_MUL(t *testing.T) {
	cpu, _ := newTestX86(0xF6, 0xE3) // MUL BL
	cpu.SetAL(0x10)
	cpu.SetBX(0x10)

	stepX86(t, cpu, 1)
	if cpu.AX() != 0x100 {
		t.Errorf("AX: got 0x%04X, want 0x0100", cpu.AX())
	}
	if !cpu.CF() || !cpu.OF() {
		t.Errorf("high half non-zero: flags %s, want CF OF", cpu.Flags)
	}

	cpu, _ = newTestX86(0xF6, 0xE3)
	cpu.SetAL(2)
	cpu.SetBX(3)
	stepX86(t, cpu, 1)
	if cpu.AX() != 6 || cpu.CF() || cpu.OF() {
		t.Errorf("MUL 2*3: AX %d flags %s", cpu.AX(), cpu.Flags)
	}
}

func TestX86_IMUL(t *testing.T) {
	cpu, _ := newTestX86(0xF6, 0xEB) // IMUL BL
	cpu.SetAL(0xFF)
	cpu.SetBX(2)

	stepX86(t, cpu, 1)
	if cpu.AX() != 0xFFFE {
		t.Errorf("AX: got 0x%04X, want 0xFFFE", cpu.AX())
	}
	if cpu.CF() || cpu.OF() {
		t.Errorf("sign-extended product: flags %s, want clear", cpu.Flags)
	}
}

func TestX86_DIV(t *testing.T) {
	cpu, _ := newTestX86(0xF6, 0xF3) // DIV BL
	cpu.SetAX(100)
	cpu.SetBX(7)

	stepX86(t, cpu, 1)
	if cpu.AL() != 14 || cpu.AH() != 2 {
		t.Errorf("AL/AH: got %d/%d, want 14/2", cpu.AL(), cpu.AH())
	}
}

func TestX86_IDIV(t *testing.T) {
	cpu, _ := newTestX86(0xF6, 0xFB) // IDIV BL
	cpu.SetAX(0xFFF9)                // -7
	cpu.SetBX(2)

	stepX86(t, cpu, 1)
	if int8(cpu.AL()) != -3 || int8(cpu.AH()) != -1 {
		t.Errorf("AL/AH: got %d/%d, want -3/-1", int8(cpu.AL()), int8(cpu.AH()))
	}
}

func TestX86_DIV_ByZeroRaisesVector0(t *testing.T) {
	cpu, bus := newTestX86(0xF6, 0xF3) // DIV BL
	bus.setVector(x86VecDivide, 0x0500, 0x0010)
	cpu.SetAX(0x1234)
	cpu.SetDX(0x5678)
	cpu.SetBX(0)

	stepX86(t, cpu, 1)
	if cpu.AX() != 0x1234 || cpu.DX() != 0x5678 {
		t.Errorf("AX/DX modified: %04X/%04X", cpu.AX(), cpu.DX())
	}
	if cpu.CS() != 0x0500 || cpu.IP != 0x0010 {
		t.Errorf("handler at %s, want 0500:0010", formatSegOff(cpu.CS(), cpu.IP))
	}
	if cpu.SP() != 0xFFF8 {
		t.Errorf("SP: got 0x%04X, want 0xFFF8", cpu.SP())
	}
	if ip := bus.read16(0xFFF8); ip != 0x102 {
		t.Errorf("pushed IP: got 0x%04X, want 0x0102", ip)
	}
	if cs := bus.read16(0xFFFA); cs != 0 {
		t.Errorf("pushed CS: got 0x%04X, want 0", cs)
	}
}

func TestX86_DIV_OverflowRaisesVector0(t *testing.T) {
	// byte: 0x1000 / 2 does not fit AL
	cpu, bus := newTestX86(0xF6, 0xF3)
	bus.setVector(x86VecDivide, 0x0000, 0x0800)
	cpu.SetAX(0x1000)
	cpu.SetBX(2)

	stepX86(t, cpu, 1)
	if cpu.IP != 0x0800 || cpu.AX() != 0x1000 {
		t.Errorf("byte overflow: IP %04X AX %04X", cpu.IP, cpu.AX())
	}

	// word: 0x00020000 / 1 does not fit AX
	cpu, bus = newTestX86(0xF7, 0xF1) // DIV CX
	bus.setVector(x86VecDivide, 0x0000, 0x0800)
	cpu.SetDX(0x0002)
	cpu.SetAX(0x0000)
	cpu.SetCX(1)

	stepX86(t, cpu, 1)
	if cpu.IP != 0x0800 {
		t.Errorf("word overflow: IP %04X, want 0800", cpu.IP)
	}
	if cpu.AX() != 0 || cpu.DX() != 2 {
		t.Errorf("AX/DX modified: %04X/%04X", cpu.AX(), cpu.DX())
	}
}

func TestX86_IDIV_MostNegativeQuotient(t *testing.T) {
	tests := []struct {
		name     string
		features []Feature
		code     []byte
		dx, ax   uint16
		wantAX   uint16
		fault    bool
	}{
		{"8086 byte faults", nil, []byte{0xF6, 0xFB}, 0, 0xFF80, 0xFF80, true},
		{"186 byte stores -128", []Feature{FeatureInstr186}, []byte{0xF6, 0xFB}, 0, 0xFF80, 0x0080, false},
		{"8086 word faults", nil, []byte{0xF7, 0xF9}, 0xFFFF, 0x8000, 0x8000, true},
		{"186 word stores -32768", []Feature{FeatureInstr186}, []byte{0xF7, 0xF9}, 0xFFFF, 0x8000, 0x8000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, bus := newTestX86With(tt.features, tt.code...) // IDIV BL / IDIV CX
			bus.setVector(x86VecDivide, 0x0000, 0x0800)
			cpu.SetDX(tt.dx)
			cpu.SetAX(tt.ax)
			cpu.SetBX(1)
			cpu.SetCX(1)

			stepX86(t, cpu, 1)
			if faulted := cpu.IP == 0x0800; faulted != tt.fault {
				t.Errorf("fault: got %v, want %v (IP %04X)", faulted, tt.fault, cpu.IP)
			}
			if cpu.AX() != tt.wantAX {
				t.Errorf("AX: got 0x%04X, want 0x%04X", cpu.AX(), tt.wantAX)
			}
		})
	}
}

func TestX86_DAA(t *testing.T) {
	cpu, _ := newTestX86(0x04, 0x27, 0x27) // ADD AL, 27; DAA
	cpu.SetAL(0x15)

	stepX86(t, cpu, 2)
	if cpu.AL() != 0x42 {
		t.Errorf("AL: got 0x%02X, want 0x42", cpu.AL())
	}
}

// =============================================================================
// Shift / Rotate Tests
// =============================================================================

func TestX86_ShiftRotateByOne(t *testing.T) {
	tests := []struct {
		name   string
		modrm  byte
		in     byte
		carry  bool
		want   byte
		wantCF bool
		wantOF bool
	}{
		{"SHL", 0xE0, 0x81, false, 0x02, true, true},
		{"SHR", 0xE8, 0x81, false, 0x40, true, true},
		{"SAR", 0xF8, 0x81, false, 0xC0, true, false},
		{"ROL", 0xC0, 0x81, false, 0x03, true, true},
		{"ROL sign kept", 0xC0, 0xC0, false, 0x81, true, false},
		{"ROR", 0xC8, 0x01, false, 0x80, true, true},
		{"ROR no overflow", 0xC8, 0x02, false, 0x01, false, false},
		{"RCL", 0xD0, 0x80, true, 0x01, true, true},
		{"RCL into sign", 0xD0, 0x40, false, 0x80, false, true},
		{"RCR", 0xD8, 0x01, true, 0x80, true, true},
		{"RCR no carry", 0xD8, 0x02, false, 0x01, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, _ := newTestX86(0xD0, tt.modrm)
			cpu.SetAL(tt.in)
			cpu.setFlag(x86FlagCF, tt.carry)

			stepX86(t, cpu, 1)
			if cpu.AL() != tt.want {
				t.Errorf("AL: got 0x%02X, want 0x%02X", cpu.AL(), tt.want)
			}
			if cpu.CF() != tt.wantCF {
				t.Errorf("CF: got %v, want %v", cpu.CF(), tt.wantCF)
			}
			if cpu.OF() != tt.wantOF {
				t.Errorf("OF: got %v, want %v", cpu.OF(), tt.wantOF)
			}
		})
	}
}

func TestX86_ShiftRotateByCount(t *testing.T) {
	tests := []struct {
		name   string
		modrm  byte
		in     uint16
		count  uint16
		carry  bool
		want   uint16
		wantCF bool
	}{
		{"ROL 4", 0xC0, 0x1234, 4, false, 0x2341, true},
		{"ROR 4", 0xC8, 0x1234, 4, false, 0x4123, false},
		{"RCL 3 feeds carry", 0xD0, 0x8001, 3, true, 0x000E, false},
		{"RCR 2 feeds carry", 0xD8, 0x0003, 2, false, 0x8000, true},
		{"RCR 17 is a full turn", 0xD8, 0x1234, 17, false, 0x1234, false},
		{"SHL 4", 0xE0, 0x1234, 4, false, 0x2340, true},
		{"SHR 3", 0xE8, 0x8010, 3, false, 0x1002, false},
		{"SAR 3 keeps sign", 0xF8, 0x8010, 3, false, 0xF002, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, _ := newTestX86(0xD3, tt.modrm) // op AX, CL
			cpu.SetAX(tt.in)
			cpu.SetCX(tt.count)
			cpu.setFlag(x86FlagCF, tt.carry)

			stepX86(t, cpu, 1)
			if cpu.AX() != tt.want {
				t.Errorf("AX: got 0x%04X, want 0x%04X", cpu.AX(), tt.want)
			}
			if cpu.CF() != tt.wantCF {
				t.Errorf("CF: got %v, want %v", cpu.CF(), tt.wantCF)
			}
		})
	}
}

func TestX86_SAR_NegativeStaysNegative(t *testing.T) {
	cpu, _ := newTestX86(0xD3, 0xF8) // SAR AX, CL
	cpu.SetAX(0x8000)
	cpu.SetCX(16)

	stepX86(t, cpu, 1)
	if cpu.AX() != 0xFFFF {
		t.Errorf("AX: got 0x%04X, want 0xFFFF", cpu.AX())
	}
	if !cpu.SF() || !cpu.CF() {
		t.Errorf("flags: got %s, want SF and CF", cpu.Flags)
	}
}

func TestX86_SHL_OverflowOnCountOne(t *testing.T) {
	cpu, _ := newTestX86(0xD0, 0xE0) // SHL AL, 1
	cpu.SetAL(0x40)

	stepX86(t, cpu, 1)
	if !cpu.OF() {
		t.Error("OF should be set when the top bit changes")
	}
	if !cpu.SF() {
		t.Error("SF should follow the result")
	}
}

func TestX86_ShiftZeroCountKeepsFlags(t *testing.T) {
	cpu, _ := newTestX86(0xD2, 0xE0) // SHL AL, CL
	cpu.SetAL(0x81)
	cpu.SetCX(0)
	cpu.Flags = x86FlagZF | x86FlagCF

	stepX86(t, cpu, 1)
	if cpu.AL() != 0x81 {
		t.Errorf("AL: got 0x%02X, want 0x81", cpu.AL())
	}
	if cpu.Flags != x86FlagZF|x86FlagCF {
		t.Errorf("flags: got %s", cpu.Flags)
	}
}

func TestX86_ShiftCountMasking(t *testing.T) {
	// 8086: all 33 shifts happen
	cpu, _ := newTestX86(0xD2, 0xE0) // SHL AL, CL
	cpu.SetAL(0x01)
	cpu.SetCX(0x21)
	stepX86(t, cpu, 1)
	if cpu.AL() != 0 {
		t.Errorf("8086 SHL by 33: AL got 0x%02X, want 0", cpu.AL())
	}

	// 80186: count masked to 5 bits, so one shift
	cpu, _ = newTestX86With([]Feature{FeatureInstr186}, 0xD2, 0xE0)
	cpu.SetAL(0x01)
	cpu.SetCX(0x21)
	stepX86(t, cpu, 1)
	if cpu.AL() != 0x02 {
		t.Errorf("186 SHL by 33: AL got 0x%02X, want 0x02", cpu.AL())
	}
}

func TestX86_SHL16(t *testing.T) {
	cpu, _ := newTestX86(0xD1, 0xE0) // SHL AX, 1
	cpu.SetAX(0x8001)

	stepX86(t, cpu, 1)
	if cpu.AX() != 0x0002 || !cpu.CF() {
		t.Errorf("AX %04X flags %s", cpu.AX(), cpu.Flags)
	}
}

// =============================================================================
// Stack Tests
// =============================================================================

func TestX86_StackRoundTrip(t *testing.T) {
	cpu, _ := newTestX86()
	for v := 0; v <= 0xFFFF; v += 0x0FFF {
		for _, w := range []uint16{uint16(v), uint16(v) ^ 0x8001} {
			cpu.SetSP(0x1000)
			cpu.push16(w)
			if got := cpu.pop16(); got != w {
				t.Fatalf("push/pop 0x%04X: got 0x%04X", w, got)
			}
			if cpu.SP() != 0x1000 {
				t.Fatalf("SP after round trip: 0x%04X", cpu.SP())
			}
		}
	}
}

func TestX86_PUSH_POP(t *testing.T) {
	cpu, bus := newTestX86(0x50, 0x5B) // PUSH AX; POP BX
	cpu.SetAX(0x1234)

	stepX86(t, cpu, 1)
	if cpu.SP() != 0xFFFC {
		t.Errorf("SP after PUSH: got 0x%04X, want 0xFFFC", cpu.SP())
	}
	if bus.read16(0xFFFC) != 0x1234 {
		t.Errorf("stack: got 0x%04X, want 0x1234", bus.read16(0xFFFC))
	}
	stepX86(t, cpu, 1)
	if cpu.BX() != 0x1234 || cpu.SP() != 0xFFFE {
		t.Errorf("POP: BX %04X SP %04X", cpu.BX(), cpu.SP())
	}
}

func TestX86_PUSH_SP(t *testing.T) {
	cpu, bus := newTestX86(0x54) // PUSH SP

	stepX86(t, cpu, 1)
	if got := bus.read16(0xFFFC); got != 0xFFFC {
		t.Errorf("pushed SP: got 0x%04X, want the decremented 0xFFFC", got)
	}
}

func TestX86_PUSHF_POPF(t *testing.T) {
	cpu, bus := newTestX86(0x9C, 0x9D) // PUSHF; POPF
	cpu.Flags = x86FlagCF | x86FlagDF

	stepX86(t, cpu, 1)
	if got := bus.read16(0xFFFC); got != 0xF403 {
		t.Errorf("pushed flags: got 0x%04X, want 0xF403", got)
	}
	cpu.Flags = 0
	stepX86(t, cpu, 1)
	if cpu.Flags != x86FlagCF|x86FlagDF {
		t.Errorf("POPF: got %s", cpu.Flags)
	}
}

// =============================================================================
// Control Flow Tests
// =============================================================================

func TestX86_JMP_rel8(t *testing.T) {
	cpu, _ := newTestX86(0xEB, 0x02) // JMP +2

	stepX86(t, cpu, 1)
	if cpu.IP != 0x104 {
		t.Errorf("IP: got 0x%04X, want 0x0104", cpu.IP)
	}
}

func TestX86_JMP_rel8_backward(t *testing.T) {
	cpu, _ := newTestX86(0xEB, 0xFE) // JMP $

	stepX86(t, cpu, 1)
	if cpu.IP != 0x100 {
		t.Errorf("IP: got 0x%04X, want 0x0100", cpu.IP)
	}
}

func TestX86_JMP_far(t *testing.T) {
	cpu, _ := newTestX86(0xEA, 0x34, 0x12, 0x00, 0xF0) // JMP F000:1234

	stepX86(t, cpu, 1)
	if cpu.CS() != 0xF000 || cpu.IP != 0x1234 {
		t.Errorf("at %s, want F000:1234", formatSegOff(cpu.CS(), cpu.IP))
	}
}

func TestX86_Jcc(t *testing.T) {
	tests := []struct {
		name  string
		op    byte
		flags Flags
		taken bool
	}{
		{"JZ taken", 0x74, x86FlagZF, true},
		{"JZ not taken", 0x74, 0, false},
		{"JNZ taken", 0x75, 0, true},
		{"JB taken", 0x72, x86FlagCF, true},
		{"JBE on ZF", 0x76, x86FlagZF, true},
		{"JA not taken", 0x77, x86FlagCF, false},
		{"JL taken", 0x7C, x86FlagSF, true},
		{"JGE taken", 0x7D, x86FlagSF | x86FlagOF, true},
		{"JG taken", 0x7F, 0, true},
		{"JG not taken on ZF", 0x7F, x86FlagZF, false},
		{"JG not taken on SF!=OF", 0x7F, x86FlagOF, false},
		{"JLE taken", 0x7E, x86FlagZF, true},
		{"JP taken", 0x7A, x86FlagPF, true},
		{"JO not taken", 0x70, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, _ := newTestX86(tt.op, 0x10)
			cpu.Flags = tt.flags

			stepX86(t, cpu, 1)
			want := uint16(0x102)
			if tt.taken {
				want = 0x112
			}
			if cpu.IP != want {
				t.Errorf("IP: got 0x%04X, want 0x%04X", cpu.IP, want)
			}
		})
	}
}

func TestX86_CALL_RET(t *testing.T) {
	// 0100: CALL 0106; 0103: HLT; 0106: RET
	cpu, bus := newTestX86(0xE8, 0x03, 0x00, 0xF4, 0x90, 0x90, 0xC3)

	stepX86(t, cpu, 1)
	if cpu.IP != 0x106 {
		t.Errorf("IP after CALL: got 0x%04X, want 0x0106", cpu.IP)
	}
	if bus.read16(uint32(cpu.SP())) != 0x103 {
		t.Errorf("return address: got 0x%04X, want 0x0103", bus.read16(uint32(cpu.SP())))
	}
	stepX86(t, cpu, 1)
	if cpu.IP != 0x103 || cpu.SP() != 0xFFFE {
		t.Errorf("after RET: IP %04X SP %04X", cpu.IP, cpu.SP())
	}
}

func TestX86_RET_imm16(t *testing.T) {
	cpu, bus := newTestX86(0xC2, 0x04, 0x00) // RET 4
	cpu.SetSP(0xFFF8)
	bus.write16(0xFFF8, 0x0200)

	stepX86(t, cpu, 1)
	if cpu.IP != 0x200 || cpu.SP() != 0xFFFE {
		t.Errorf("IP %04X SP %04X, want 0200/FFFE", cpu.IP, cpu.SP())
	}
}

func TestX86_CALL_far_RETF(t *testing.T) {
	cpu, bus := newTestX86(0x9A, 0x00, 0x00, 0x00, 0x20) // CALL 2000:0000
	bus.memory[0x20000] = 0xCB                          // RETF

	stepX86(t, cpu, 1)
	if cpu.CS() != 0x2000 || cpu.IP != 0 || cpu.SP() != 0xFFFA {
		t.Errorf("after CALL far: %s SP %04X", formatSegOff(cpu.CS(), cpu.IP), cpu.SP())
	}
	stepX86(t, cpu, 1)
	if cpu.CS() != 0 || cpu.IP != 0x105 || cpu.SP() != 0xFFFE {
		t.Errorf("after RETF: %s SP %04X", formatSegOff(cpu.CS(), cpu.IP), cpu.SP())
	}
}

func TestX86_LOOP(t *testing.T) {
	// MOV CX, 3; L: INC AX; LOOP L
	cpu, _ := newTestX86(0xB9, 0x03, 0x00, 0x40, 0xE2, 0xFD)

	stepX86(t, cpu, 7)
	if cpu.AX() != 3 {
		t.Errorf("AX: got %d, want 3", cpu.AX())
	}
	if cpu.CX() != 0 {
		t.Errorf("CX: got %d, want 0", cpu.CX())
	}
	if cpu.IP != 0x106 {
		t.Errorf("IP: got 0x%04X, want 0x0106", cpu.IP)
	}
}

func TestX86_LOOPZ_NotTakenWhenZFClear(t *testing.T) {
	cpu, _ := newTestX86(0xE1, 0x10) // LOOPZ +10
	cpu.SetCX(5)

	stepX86(t, cpu, 1)
	if cpu.CX() != 4 || cpu.IP != 0x102 {
		t.Errorf("CX %d IP %04X, want 4/0102", cpu.CX(), cpu.IP)
	}
}

func TestX86_LOOPZ_TakenWhenZFSet(t *testing.T) {
	cpu, _ := newTestX86(0xE1, 0x10) // LOOPZ +10
	cpu.SetCX(5)
	cpu.setFlag(x86FlagZF, true)

	stepX86(t, cpu, 1)
	if cpu.CX() != 4 || cpu.IP != 0x112 {
		t.Errorf("CX %d IP %04X, want 4/0112", cpu.CX(), cpu.IP)
	}
}

func TestX86_LOOPNZ(t *testing.T) {
	tests := []struct {
		name   string
		cx     uint16
		zf     bool
		wantCX uint16
		wantIP uint16
	}{
		{"taken when ZF clear", 5, false, 4, 0x112},
		{"not taken when ZF set", 5, true, 4, 0x102},
		{"not taken when CX runs out", 1, false, 0, 0x102},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, _ := newTestX86(0xE0, 0x10) // LOOPNZ +10
			cpu.SetCX(tt.cx)
			cpu.setFlag(x86FlagZF, tt.zf)

			stepX86(t, cpu, 1)
			if cpu.CX() != tt.wantCX || cpu.IP != tt.wantIP {
				t.Errorf("CX %d IP %04X, want %d/%04X", cpu.CX(), cpu.IP, tt.wantCX, tt.wantIP)
			}
		})
	}
}

func TestX86_JCXZ(t *testing.T) {
	cpu, _ := newTestX86(0xE3, 0x10)

	stepX86(t, cpu, 1)
	if cpu.IP != 0x112 {
		t.Errorf("IP: got 0x%04X, want 0x0112", cpu.IP)
	}
}

// =============================================================================
// Interrupt Tests
// =============================================================================

func TestX86_INT_IRET(t *testing.T) {
	cpu, bus := newTestX86(0xFB, 0xCD, 0x21, 0x90) // STI; INT 21h; NOP
	bus.setVector(0x21, 0x0000, 0x0600)
	bus.memory[0x600] = 0xCF // IRET

	stepX86(t, cpu, 2)
	if cpu.IP != 0x600 {
		t.Errorf("IP in handler: got 0x%04X, want 0x0600", cpu.IP)
	}
	if cpu.IF() {
		t.Error("IF should be clear in the handler")
	}
	if flags := bus.read16(0xFFFC); flags&uint16(x86FlagIF) == 0 {
		t.Errorf("pushed flags 0x%04X lack IF", flags)
	}

	stepX86(t, cpu, 1)
	if cpu.IP != 0x103 || !cpu.IF() || cpu.SP() != 0xFFFE {
		t.Errorf("after IRET: IP %04X IF %v SP %04X", cpu.IP, cpu.IF(), cpu.SP())
	}
}

func TestX86_TrapFlag(t *testing.T) {
	cpu, bus := newTestX86(0x90)
	bus.setVector(x86VecStep, 0x0000, 0x0700)
	cpu.setFlag(x86FlagTF, true)

	stepX86(t, cpu, 1)
	if cpu.IP != 0x700 {
		t.Errorf("IP: got 0x%04X, want the step handler", cpu.IP)
	}
	if bus.read16(uint32(cpu.SP())) != 0x101 {
		t.Errorf("pushed IP: got 0x%04X, want 0x0101", bus.read16(uint32(cpu.SP())))
	}
	if cpu.TF() {
		t.Error("TF should be clear in the handler")
	}
}

func TestX86_HLT(t *testing.T) {
	cpu, _ := newTestX86(0xF4, 0x90)

	stepX86(t, cpu, 1)
	if !cpu.Halted {
		t.Fatal("CPU should be halted")
	}
	stepX86(t, cpu, 3)
	if cpu.IP != 0x101 {
		t.Errorf("halted CPU advanced to 0x%04X", cpu.IP)
	}
}

func TestX86_HLT_WakesOnInterrupt(t *testing.T) {
	cpu, bus := newTestX86(0xF4)
	bus.setVector(0x08, 0x0000, 0x0800)
	bus.memory[0x800] = 0x90
	irq := &testIRQ{vector: 0x08}
	cpu.SetInterruptSource(irq)

	// IF clear: the request is not taken
	stepX86(t, cpu, 1)
	irq.pending = true
	stepX86(t, cpu, 1)
	if !cpu.Halted || !irq.pending {
		t.Fatal("interrupt taken with IF clear")
	}

	cpu.setFlag(x86FlagIF, true)
	stepX86(t, cpu, 1)
	if cpu.Halted {
		t.Error("CPU still halted")
	}
	if cpu.IP != 0x801 {
		t.Errorf("IP: got 0x%04X, want 0x0801", cpu.IP)
	}
	if bus.read16(uint32(cpu.SP())) != 0x101 {
		t.Errorf("return IP: got 0x%04X, want 0x0101", bus.read16(uint32(cpu.SP())))
	}
}

// =============================================================================
// I/O Tests
// =============================================================================

func TestX86_IN_OUT(t *testing.T) {
	// IN AL, 60h; MOV AL, 55h; OUT 61h, AL; MOV DX, 300h; MOV AX, 1234h; OUT DX, AX
	cpu, bus := newTestX86(0xE4, 0x60, 0xB0, 0x55, 0xE6, 0x61, 0xBA, 0x00, 0x03, 0xB8, 0x34, 0x12, 0xEF)
	bus.ports[0x60] = 0xAB

	stepX86(t, cpu, 1)
	if cpu.AL() != 0xAB {
		t.Errorf("IN: AL got 0x%02X, want 0xAB", cpu.AL())
	}
	stepX86(t, cpu, 2)
	if bus.ports[0x61] != 0x55 {
		t.Errorf("OUT imm: port 61 got 0x%02X", bus.ports[0x61])
	}
	stepX86(t, cpu, 3)
	if bus.ports[0x300] != 0x1234 {
		t.Errorf("OUT DX: port 300 got 0x%04X", bus.ports[0x300])
	}
}

func TestX86_PortErrorIsFatal(t *testing.T) {
	cpu, bus := newTestX86(0xE4, 0x60)
	bus.portErr = ErrUnmappedPort

	err := cpu.Step()
	if !errors.Is(err, ErrUnmappedPort) {
		t.Fatalf("Step: got %v, want ErrUnmappedPort", err)
	}
	if err2 := cpu.Step(); !errors.Is(err2, ErrUnmappedPort) {
		t.Errorf("fault not sticky: %v", err2)
	}
}

// =============================================================================
// String Instruction Tests
// =============================================================================

func TestX86_REP_MOVSB(t *testing.T) {
	cpu, bus := newTestX86(0xF3, 0xA4) // REP MOVSB
	copy(bus.memory[0x200:], []byte{1, 2, 3, 4, 5})
	cpu.SetSI(0x200)
	cpu.SetDI(0x300)
	cpu.SetCX(5)

	stepX86(t, cpu, 1)
	for i := 0; i < 5; i++ {
		if bus.memory[0x300+i] != byte(i+1) {
			t.Errorf("dest[%d]: got %d, want %d", i, bus.memory[0x300+i], i+1)
		}
	}
	if cpu.CX() != 0 || cpu.SI() != 0x205 || cpu.DI() != 0x305 {
		t.Errorf("CX %d SI %04X DI %04X", cpu.CX(), cpu.SI(), cpu.DI())
	}
	if cpu.IP != 0x102 {
		t.Errorf("IP: got 0x%04X, want 0x0102", cpu.IP)
	}
}

func TestX86_MOVSB_SingleWithoutRep(t *testing.T) {
	cpu, bus := newTestX86(0xA4)
	bus.memory[0x200] = 0x77
	cpu.SetSI(0x200)
	cpu.SetDI(0x300)
	cpu.SetCX(5)

	stepX86(t, cpu, 1)
	if bus.memory[0x300] != 0x77 || bus.memory[0x301] != 0 {
		t.Error("MOVSB copied the wrong amount")
	}
	if cpu.CX() != 5 {
		t.Errorf("CX: got %d, want 5", cpu.CX())
	}
}

func TestX86_MOVSB_SourceOverride(t *testing.T) {
	cpu, bus := newTestX86(0x26, 0xA4) // ES: MOVSB
	cpu.SetSeg(x86SegES, 0x0100)
	bus.memory[0x1010] = 0x99
	cpu.SetSI(0x10)
	cpu.SetDI(0x20)

	stepX86(t, cpu, 1)
	if bus.memory[0x1020] != 0x99 {
		t.Errorf("dest: got 0x%02X, want 0x99", bus.memory[0x1020])
	}
}

func TestX86_STOSB_Backward(t *testing.T) {
	cpu, bus := newTestX86(0xFD, 0xAA) // STD; STOSB
	cpu.SetAL(0x77)
	cpu.SetDI(0x300)

	stepX86(t, cpu, 2)
	if bus.memory[0x300] != 0x77 {
		t.Errorf("mem: got 0x%02X", bus.memory[0x300])
	}
	if cpu.DI() != 0x2FF {
		t.Errorf("DI: got 0x%04X, want 0x02FF", cpu.DI())
	}
}

func TestX86_REP_STOSW(t *testing.T) {
	cpu, bus := newTestX86(0xF3, 0xAB)
	cpu.SetAX(0xBEEF)
	cpu.SetDI(0x400)
	cpu.SetCX(3)

	stepX86(t, cpu, 1)
	for i := uint32(0); i < 3; i++ {
		if got := bus.read16(0x400 + 2*i); got != 0xBEEF {
			t.Errorf("word %d: got 0x%04X", i, got)
		}
	}
	if cpu.DI() != 0x406 {
		t.Errorf("DI: got 0x%04X, want 0x0406", cpu.DI())
	}
}

func TestX86_REPE_CMPSB_StopsOnMismatch(t *testing.T) {
	cpu, bus := newTestX86(0xF3, 0xA6)
	copy(bus.memory[0x200:], "AXCDEF")
	copy(bus.memory[0x300:], "ABCDEF")
	cpu.SetSI(0x200)
	cpu.SetDI(0x300)
	cpu.SetCX(6)

	stepX86(t, cpu, 1)
	if cpu.ZF() {
		t.Error("ZF should be clear after the mismatch")
	}
	if cpu.CX() != 4 || cpu.SI() != 0x202 {
		t.Errorf("CX %d SI %04X, want 4/0202", cpu.CX(), cpu.SI())
	}
}

func TestX86_REPNE_CMPSB_StopsOnMatch(t *testing.T) {
	cpu, bus := newTestX86(0xF2, 0xA6)
	copy(bus.memory[0x200:], "ABCDEF")
	copy(bus.memory[0x300:], "XYCDEF")
	cpu.SetSI(0x200)
	cpu.SetDI(0x300)
	cpu.SetCX(6)

	stepX86(t, cpu, 1)
	if !cpu.ZF() {
		t.Error("ZF should be set after the match")
	}
	if cpu.CX() != 3 || cpu.SI() != 0x203 || cpu.DI() != 0x303 {
		t.Errorf("CX %d SI %04X DI %04X, want 3/0203/0303", cpu.CX(), cpu.SI(), cpu.DI())
	}
}

func TestX86_REPNE_SCASB(t *testing.T) {
	cpu, bus := newTestX86(0xF2, 0xAE)
	copy(bus.memory[0x300:], "ABCD")
	cpu.SetAL('C')
	cpu.SetDI(0x300)
	cpu.SetCX(4)

	stepX86(t, cpu, 1)
	if !cpu.ZF() {
		t.Error("ZF should be set on the match")
	}
	if cpu.CX() != 1 || cpu.DI() != 0x303 {
		t.Errorf("CX %d DI %04X, want 1/0303", cpu.CX(), cpu.DI())
	}
}

func TestX86_LODSW(t *testing.T) {
	cpu, bus := newTestX86(0xAD)
	bus.write16(0x200, 0x4321)
	cpu.SetSI(0x200)

	stepX86(t, cpu, 1)
	if cpu.AX() != 0x4321 || cpu.SI() != 0x202 {
		t.Errorf("AX %04X SI %04X", cpu.AX(), cpu.SI())
	}
}

// =============================================================================
// Decode Failure Tests
// =============================================================================

func TestX86_InvalidGroupExtension(t *testing.T) {
	cpu, _ := newTestX86(0xFE, 0xD0) // FE /2 is undefined

	err := cpu.Step()
	if !errors.Is(err, ErrInvalidOpcode) {
		t.Fatalf("Step: got %v, want ErrInvalidOpcode", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error is not a DecodeError: %T", err)
	}
	if de.Opcode != 0xFE || de.Ext != 2 || de.IP != 0x100 {
		t.Errorf("DecodeError: %+v", de)
	}
	if err2 := cpu.Step(); !errors.Is(err2, ErrInvalidOpcode) {
		t.Errorf("fault not sticky: %v", err2)
	}
}

func TestX86_MalformedModRM(t *testing.T) {
	cpu, _ := newTestX86(0x8D, 0xC0) // LEA AX, AX

	if err := cpu.Step(); !errors.Is(err, ErrMalformedModRM) {
		t.Fatalf("Step: got %v, want ErrMalformedModRM", err)
	}
}

func TestX86_PrefixRunLimit(t *testing.T) {
	code := make([]byte, 0, 16)
	for i := 0; i < 14; i++ {
		code = append(code, 0x26)
	}
	cpu, _ := newTestX86(append(code, 0x90)...)
	if err := cpu.Step(); err != nil {
		t.Fatalf("14 prefixes: %v", err)
	}

	cpu, _ = newTestX86(append(append(code, 0x26), 0x90)...)
	if err := cpu.Step(); !errors.Is(err, ErrPrefixRun) {
		t.Fatalf("15 prefixes: got %v, want ErrPrefixRun", err)
	}
}

// =============================================================================
// 8086 Aliases and 80186 Extensions
// =============================================================================

func TestX86_8086Aliases(t *testing.T) {
	// 0x60 decodes as JO
	cpu, _ := newTestX86(0x60, 0x05)
	cpu.Flags = x86FlagOF
	stepX86(t, cpu, 1)
	if cpu.IP != 0x107 {
		t.Errorf("0x60 as JO: IP got 0x%04X, want 0x0107", cpu.IP)
	}

	// 0xC0 decodes as RET imm16
	cpu, bus := newTestX86(0xC0, 0x02, 0x00)
	cpu.SetSP(0xFFFA)
	bus.write16(0xFFFA, 0x0200)
	stepX86(t, cpu, 1)
	if cpu.IP != 0x200 || cpu.SP() != 0xFFFE {
		t.Errorf("0xC0 as RET: IP %04X SP %04X", cpu.IP, cpu.SP())
	}

	// 0x0F is POP CS
	cpu, _ = newTestX86(0x0F)
	cpu.push16(0x2000)
	stepX86(t, cpu, 1)
	if cpu.CS() != 0x2000 || cpu.IP != 0x101 {
		t.Errorf("POP CS: at %s", formatSegOff(cpu.CS(), cpu.IP))
	}
}

func TestX86_AddFeature(t *testing.T) {
	cpu, _ := newTestX86(0x60) // PUSHA once enabled
	if cpu.HasFeature(FeatureInstr186) {
		t.Fatal("8086 CPU reports 186 feature")
	}
	cpu.AddFeature(FeatureInstr186)
	if !cpu.HasFeature(FeatureInstr186) {
		t.Fatal("AddFeature did not enable 186")
	}
	stepX86(t, cpu, 1)
	if cpu.SP() != 0xFFEE {
		t.Errorf("PUSHA: SP got 0x%04X, want 0xFFEE", cpu.SP())
	}
}

func TestX86_ParseFeature(t *testing.T) {
	for _, name := range []string{"186", "80186", "Am186", " instr186 "} {
		if f, err := ParseFeature(name); err != nil || f != FeatureInstr186 {
			t.Errorf("ParseFeature(%q) = %v, %v", name, f, err)
		}
	}
	if _, err := ParseFeature("286"); err == nil {
		t.Error("ParseFeature(286) should fail")
	}
}

var x86With186 = []Feature{FeatureInstr186}

func TestX86_PUSHA_POPA(t *testing.T) {
	cpu, bus := newTestX86With(x86With186, 0x60, 0x61)
	for r := byte(0); r < 8; r++ {
		if r != x86RegSP {
			cpu.SetReg16(r, 0x1000+uint16(r))
		}
	}

	stepX86(t, cpu, 1)
	if cpu.SP() != 0xFFEE {
		t.Fatalf("SP after PUSHA: 0x%04X", cpu.SP())
	}
	if bus.read16(0xFFFC) != 0x1000 || bus.read16(0xFFEE) != 0x1007 {
		t.Errorf("PUSHA order: AX slot %04X DI slot %04X", bus.read16(0xFFFC), bus.read16(0xFFEE))
	}
	if bus.read16(0xFFF4) != 0xFFFE {
		t.Errorf("pushed SP: got 0x%04X, want original 0xFFFE", bus.read16(0xFFF4))
	}

	bus.write16(0xFFF4, 0x1234) // the stored SP is discarded
	for r := byte(0); r < 8; r++ {
		if r != x86RegSP {
			cpu.SetReg16(r, 0)
		}
	}
	stepX86(t, cpu, 1)
	for r := byte(0); r < 8; r++ {
		if r == x86RegSP {
			continue
		}
		if cpu.Reg16(r) != 0x1000+uint16(r) {
			t.Errorf("%s: got 0x%04X", x86Reg16Names[r], cpu.Reg16(r))
		}
	}
	if cpu.SP() != 0xFFFE {
		t.Errorf("SP after POPA: 0x%04X", cpu.SP())
	}
}

func TestX86_ENTER_LEAVE(t *testing.T) {
	cpu, _ := newTestX86With(x86With186, 0xC8, 0x08, 0x00, 0x00, 0xC9) // ENTER 8,0; LEAVE
	cpu.SetBP(0x5555)

	stepX86(t, cpu, 1)
	if cpu.BP() != 0xFFFC || cpu.SP() != 0xFFF4 {
		t.Errorf("ENTER: BP %04X SP %04X", cpu.BP(), cpu.SP())
	}
	stepX86(t, cpu, 1)
	if cpu.BP() != 0x5555 || cpu.SP() != 0xFFFE {
		t.Errorf("LEAVE: BP %04X SP %04X", cpu.BP(), cpu.SP())
	}
}

func TestX86_ENTER_Nested(t *testing.T) {
	cpu, bus := newTestX86With(x86With186, 0xC8, 0x04, 0x00, 0x01) // ENTER 4,1

	stepX86(t, cpu, 1)
	if cpu.BP() != 0xFFFC {
		t.Errorf("BP: got 0x%04X, want 0xFFFC", cpu.BP())
	}
	if bus.read16(0xFFFA) != 0xFFFC {
		t.Errorf("frame pointer slot: got 0x%04X", bus.read16(0xFFFA))
	}
	if cpu.SP() != 0xFFF6 {
		t.Errorf("SP: got 0x%04X, want 0xFFF6", cpu.SP())
	}
}

func TestX86_BOUND(t *testing.T) {
	// BOUND AX, [0200]
	cpu, bus := newTestX86With(x86With186, 0x62, 0x06, 0x00, 0x02)
	bus.write16(0x200, 0x0000)
	bus.write16(0x202, 0x0010)
	bus.setVector(x86VecBound, 0x0000, 0x0900)
	cpu.SetAX(5)

	stepX86(t, cpu, 1)
	if cpu.IP != 0x104 {
		t.Errorf("in range: IP got 0x%04X, want 0x0104", cpu.IP)
	}

	cpu.IP = 0x100
	cpu.SetAX(0x20)
	stepX86(t, cpu, 1)
	if cpu.IP != 0x900 {
		t.Fatalf("out of range: IP got 0x%04X, want 0x0900", cpu.IP)
	}
	if bus.read16(uint32(cpu.SP())) != 0x100 {
		t.Errorf("pushed IP: got 0x%04X, want the BOUND at 0x0100", bus.read16(uint32(cpu.SP())))
	}
}

func TestX86_PUSH_imm(t *testing.T) {
	cpu, bus := newTestX86With(x86With186, 0x6A, 0xFF, 0x68, 0x34, 0x12)

	stepX86(t, cpu, 1)
	if bus.read16(0xFFFC) != 0xFFFF {
		t.Errorf("PUSH imm8: got 0x%04X, want sign-extended 0xFFFF", bus.read16(0xFFFC))
	}
	stepX86(t, cpu, 1)
	if bus.read16(0xFFFA) != 0x1234 {
		t.Errorf("PUSH imm16: got 0x%04X", bus.read16(0xFFFA))
	}
}

func TestX86_IMUL_imm(t *testing.T) {
	cpu, _ := newTestX86With(x86With186, 0x6B, 0xC3, 0xFD) // IMUL AX, BX, -3
	cpu.SetBX(10)

	stepX86(t, cpu, 1)
	if int16(cpu.AX()) != -30 {
		t.Errorf("AX: got %d, want -30", int16(cpu.AX()))
	}
	if cpu.CF() || cpu.OF() {
		t.Errorf("flags: %s", cpu.Flags)
	}
}

func TestX86_ShiftImm(t *testing.T) {
	cpu, _ := newTestX86With(x86With186, 0xC1, 0xE0, 0x04) // SHL AX, 4
	cpu.SetAX(0x0123)

	stepX86(t, cpu, 1)
	if cpu.AX() != 0x1230 {
		t.Errorf("AX: got 0x%04X, want 0x1230", cpu.AX())
	}
}

func TestX86_OUTSB(t *testing.T) {
	cpu, bus := newTestX86With(x86With186, 0x6E) // OUTSB
	bus.memory[0x200] = 0x42
	cpu.SetSI(0x200)
	cpu.SetDX(0xE9)

	stepX86(t, cpu, 1)
	if bus.ports[0xE9] != 0x42 || cpu.SI() != 0x201 {
		t.Errorf("port %02X SI %04X", bus.ports[0xE9], cpu.SI())
	}
}
