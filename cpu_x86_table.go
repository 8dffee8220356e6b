// cpu_x86_table.go - x86 opcode dispatch table
//
// Each opcode maps to a mnemonic, an operand shape that tells the decoder
// what follows the opcode, and the handler that executes it. Group opcodes
// (80-83, 8F, C0/C1, C6/C7, D0-D3, F6/F7, FE, FF) point at an eight entry
// sub-table selected by ModRM bits 3-5.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// opShape describes the operand bytes that follow an opcode
type opShape uint8

const (
	shapeNone         opShape = iota
	shapeRM8R8                // ModRM, byte reg and byte r/m
	shapeRM16R16              // ModRM, word reg and word r/m
	shapeRM16Seg              // ModRM, segment reg and word r/m
	shapeRM8                  // ModRM, byte r/m only (groups)
	shapeRM16                 // ModRM, word r/m only (groups, ESC)
	shapeRM8Imm8              // ModRM then imm8
	shapeRM16Imm16            // ModRM then imm16
	shapeRM16Imm8             // ModRM then imm8 sign-extended to 16 bits
	shapeR16RM16Imm16         // ModRM (reg and r/m) then imm16
	shapeR16RM16Imm8          // ModRM (reg and r/m) then sign-extended imm8
	shapeImm8
	shapeImm8S // imm8 sign-extended to 16 bits
	shapeImm16
	shapeImm16Imm8 // ENTER: frame size, nesting level
	shapeRel8      // sign-extended displacement
	shapeRel16
	shapeFarPtr     // offset, segment
	shapeMoffs      // direct 16-bit memory offset
	shapeReg8       // byte register coded in opcode bits 0-2
	shapeReg16      // word register coded in opcode bits 0-2
	shapeReg8Imm8   // byte register in opcode, then imm8
	shapeReg16Imm16 // word register in opcode, then imm16
	shapeSeg        // segment register coded in opcode bits 3-4
)

type opEntry struct {
	mnemonic string
	shape    opShape
	exec     execFunc
	memOnly  bool // register ModRM forms are malformed
	group    *[8]opEntry
}

var jccNames = [16]string{
	"JO", "JNO", "JB", "JNB", "JZ", "JNZ", "JBE", "JA",
	"JS", "JNS", "JP", "JNP", "JL", "JGE", "JLE", "JG",
}

var shiftNames = [8]string{"ROL", "ROR", "RCL", "RCR", "SHL", "SHR", "SAL", "SAR"}

// initBaseOps builds the dispatch table for the CPU's current feature set.
func (c *CPU_X86) initBaseOps() {
	t := &c.baseOps
	*t = [256]opEntry{}

	// 0x00-0x3F: ADD OR ADC SBB AND SUB XOR CMP, six encodings each
	for i := 0; i < 8; i++ {
		alu := i
		base := i << 3
		name := aluNames[alu]
		t[base+0] = opEntry{mnemonic: name, shape: shapeRM8R8, exec: aluEbGb(alu)}
		t[base+1] = opEntry{mnemonic: name, shape: shapeRM16R16, exec: aluEvGv(alu)}
		t[base+2] = opEntry{mnemonic: name, shape: shapeRM8R8, exec: aluGbEb(alu)}
		t[base+3] = opEntry{mnemonic: name, shape: shapeRM16R16, exec: aluGvEv(alu)}
		t[base+4] = opEntry{mnemonic: name, shape: shapeImm8, exec: aluALIb(alu)}
		t[base+5] = opEntry{mnemonic: name, shape: shapeImm16, exec: aluAXIv(alu)}
	}

	// 0x06/0x0E/0x16/0x1E: PUSH seg, 0x07/0x17/0x1F: POP seg
	for _, op := range []int{0x06, 0x0E, 0x16, 0x1E} {
		t[op] = opEntry{mnemonic: "PUSH", shape: shapeSeg, exec: opPUSH_Seg}
	}
	for _, op := range []int{0x07, 0x17, 0x1F} {
		t[op] = opEntry{mnemonic: "POP", shape: shapeSeg, exec: opPOP_Seg}
	}

	// BCD adjust
	t[0x27] = opEntry{mnemonic: "DAA", exec: opDAA}
	t[0x2F] = opEntry{mnemonic: "DAS", exec: opDAS}
	t[0x37] = opEntry{mnemonic: "AAA", exec: opAAA}
	t[0x3F] = opEntry{mnemonic: "AAS", exec: opAAS}

	// 0x40-0x5F: INC/DEC/PUSH/POP r16
	for i := 0; i < 8; i++ {
		t[0x40+i] = opEntry{mnemonic: "INC", shape: shapeReg16, exec: opINC_Reg16}
		t[0x48+i] = opEntry{mnemonic: "DEC", shape: shapeReg16, exec: opDEC_Reg16}
		t[0x50+i] = opEntry{mnemonic: "PUSH", shape: shapeReg16, exec: opPUSH_Reg16}
		t[0x58+i] = opEntry{mnemonic: "POP", shape: shapeReg16, exec: opPOP_Reg16}
	}

	// 0x70-0x7F: Jcc rel8
	for i := 0; i < 16; i++ {
		t[0x70+i] = opEntry{mnemonic: jccNames[i], shape: shapeRel8, exec: jccRel8(byte(i))}
	}

	// 0x80-0x83: group 1, ALU with immediate
	var grp1Eb, grp1Ev, grp1EvIb [8]opEntry
	for i := 0; i < 8; i++ {
		grp1Eb[i] = opEntry{mnemonic: aluNames[i], shape: shapeRM8Imm8, exec: aluEbIb(i)}
		grp1Ev[i] = opEntry{mnemonic: aluNames[i], shape: shapeRM16Imm16, exec: aluEvIv(i)}
		grp1EvIb[i] = opEntry{mnemonic: aluNames[i], shape: shapeRM16Imm8, exec: aluEvIv(i)}
	}
	t[0x80] = opEntry{group: &grp1Eb}
	t[0x81] = opEntry{group: &grp1Ev}
	t[0x82] = opEntry{group: &grp1Eb}
	t[0x83] = opEntry{group: &grp1EvIb}

	t[0x84] = opEntry{mnemonic: "TEST", shape: shapeRM8R8, exec: opTEST_Eb_Gb}
	t[0x85] = opEntry{mnemonic: "TEST", shape: shapeRM16R16, exec: opTEST_Ev_Gv}
	t[0x86] = opEntry{mnemonic: "XCHG", shape: shapeRM8R8, exec: opXCHG_Eb_Gb}
	t[0x87] = opEntry{mnemonic: "XCHG", shape: shapeRM16R16, exec: opXCHG_Ev_Gv}
	t[0x88] = opEntry{mnemonic: "MOV", shape: shapeRM8R8, exec: opMOV_Eb_Gb}
	t[0x89] = opEntry{mnemonic: "MOV", shape: shapeRM16R16, exec: opMOV_Ev_Gv}
	t[0x8A] = opEntry{mnemonic: "MOV", shape: shapeRM8R8, exec: opMOV_Gb_Eb}
	t[0x8B] = opEntry{mnemonic: "MOV", shape: shapeRM16R16, exec: opMOV_Gv_Ev}
	t[0x8C] = opEntry{mnemonic: "MOV", shape: shapeRM16Seg, exec: opMOV_Ev_Sw}
	t[0x8D] = opEntry{mnemonic: "LEA", shape: shapeRM16R16, exec: opLEA, memOnly: true}
	t[0x8E] = opEntry{mnemonic: "MOV", shape: shapeRM16Seg, exec: opMOV_Sw_Ev}
	t[0x8F] = opEntry{group: &[8]opEntry{0: {mnemonic: "POP", shape: shapeRM16, exec: opPOP_Ev}}}

	// 0x90-0x97: XCHG AX, r16 (0x90 is NOP)
	t[0x90] = opEntry{mnemonic: "NOP", exec: opNOP}
	for i := 1; i < 8; i++ {
		t[0x90+i] = opEntry{mnemonic: "XCHG", shape: shapeReg16, exec: opXCHG_AX_Reg16}
	}

	t[0x98] = opEntry{mnemonic: "CBW", exec: opCBW}
	t[0x99] = opEntry{mnemonic: "CWD", exec: opCWD}
	t[0x9A] = opEntry{mnemonic: "CALL", shape: shapeFarPtr, exec: opCALL_Far}
	t[0x9B] = opEntry{mnemonic: "WAIT", exec: opNOP}
	t[0x9C] = opEntry{mnemonic: "PUSHF", exec: opPUSHF}
	t[0x9D] = opEntry{mnemonic: "POPF", exec: opPOPF}
	t[0x9E] = opEntry{mnemonic: "SAHF", exec: opSAHF}
	t[0x9F] = opEntry{mnemonic: "LAHF", exec: opLAHF}

	t[0xA0] = opEntry{mnemonic: "MOV", shape: shapeMoffs, exec: opMOV_AL_Moffs}
	t[0xA1] = opEntry{mnemonic: "MOV", shape: shapeMoffs, exec: opMOV_AX_Moffs}
	t[0xA2] = opEntry{mnemonic: "MOV", shape: shapeMoffs, exec: opMOV_Moffs_AL}
	t[0xA3] = opEntry{mnemonic: "MOV", shape: shapeMoffs, exec: opMOV_Moffs_AX}

	// String instructions
	t[0xA4] = opEntry{mnemonic: "MOVSB", exec: opMOVSB}
	t[0xA5] = opEntry{mnemonic: "MOVSW", exec: opMOVSW}
	t[0xA6] = opEntry{mnemonic: "CMPSB", exec: opCMPSB}
	t[0xA7] = opEntry{mnemonic: "CMPSW", exec: opCMPSW}
	t[0xA8] = opEntry{mnemonic: "TEST", shape: shapeImm8, exec: opTEST_AL_Ib}
	t[0xA9] = opEntry{mnemonic: "TEST", shape: shapeImm16, exec: opTEST_AX_Iv}
	t[0xAA] = opEntry{mnemonic: "STOSB", exec: opSTOSB}
	t[0xAB] = opEntry{mnemonic: "STOSW", exec: opSTOSW}
	t[0xAC] = opEntry{mnemonic: "LODSB", exec: opLODSB}
	t[0xAD] = opEntry{mnemonic: "LODSW", exec: opLODSW}
	t[0xAE] = opEntry{mnemonic: "SCASB", exec: opSCASB}
	t[0xAF] = opEntry{mnemonic: "SCASW", exec: opSCASW}

	// 0xB0-0xBF: MOV reg, imm
	for i := 0; i < 8; i++ {
		t[0xB0+i] = opEntry{mnemonic: "MOV", shape: shapeReg8Imm8, exec: opMOV_Reg8_Ib}
		t[0xB8+i] = opEntry{mnemonic: "MOV", shape: shapeReg16Imm16, exec: opMOV_Reg16_Iv}
	}

	t[0xC2] = opEntry{mnemonic: "RET", shape: shapeImm16, exec: opRET_Iw}
	t[0xC3] = opEntry{mnemonic: "RET", exec: opRET}
	t[0xC4] = opEntry{mnemonic: "LES", shape: shapeRM16R16, exec: opLES, memOnly: true}
	t[0xC5] = opEntry{mnemonic: "LDS", shape: shapeRM16R16, exec: opLDS, memOnly: true}
	t[0xC6] = opEntry{group: &[8]opEntry{0: {mnemonic: "MOV", shape: shapeRM8Imm8, exec: opMOV_Eb_Ib}}}
	t[0xC7] = opEntry{group: &[8]opEntry{0: {mnemonic: "MOV", shape: shapeRM16Imm16, exec: opMOV_Ev_Iv}}}
	t[0xCA] = opEntry{mnemonic: "RETF", shape: shapeImm16, exec: opRETF_Iw}
	t[0xCB] = opEntry{mnemonic: "RETF", exec: opRETF}
	t[0xCC] = opEntry{mnemonic: "INT3", exec: opINT3}
	t[0xCD] = opEntry{mnemonic: "INT", shape: shapeImm8, exec: opINT_Ib}
	t[0xCE] = opEntry{mnemonic: "INTO", exec: opINTO}
	t[0xCF] = opEntry{mnemonic: "IRET", exec: opIRET}

	// 0xD0-0xD3: group 2, shift by one and by CL
	t[0xD0] = opEntry{group: shiftGroup(shapeRM8, 8, shiftCountOne)}
	t[0xD1] = opEntry{group: shiftGroup(shapeRM16, 16, shiftCountOne)}
	t[0xD2] = opEntry{group: shiftGroup(shapeRM8, 8, shiftCountCL)}
	t[0xD3] = opEntry{group: shiftGroup(shapeRM16, 16, shiftCountCL)}

	t[0xD4] = opEntry{mnemonic: "AAM", shape: shapeImm8, exec: opAAM}
	t[0xD5] = opEntry{mnemonic: "AAD", shape: shapeImm8, exec: opAAD}
	t[0xD6] = opEntry{mnemonic: "SALC", exec: opSALC}
	t[0xD7] = opEntry{mnemonic: "XLAT", exec: opXLAT}

	// 0xD8-0xDF: coprocessor escape. The ModRM is consumed and ignored.
	for i := 0; i < 8; i++ {
		t[0xD8+i] = opEntry{mnemonic: "ESC", shape: shapeRM16, exec: opNOP}
	}

	t[0xE0] = opEntry{mnemonic: "LOOPNZ", shape: shapeRel8, exec: opLOOPNZ}
	t[0xE1] = opEntry{mnemonic: "LOOPZ", shape: shapeRel8, exec: opLOOPZ}
	t[0xE2] = opEntry{mnemonic: "LOOP", shape: shapeRel8, exec: opLOOP}
	t[0xE3] = opEntry{mnemonic: "JCXZ", shape: shapeRel8, exec: opJCXZ}
	t[0xE4] = opEntry{mnemonic: "IN", shape: shapeImm8, exec: opIN_AL_Ib}
	t[0xE5] = opEntry{mnemonic: "IN", shape: shapeImm8, exec: opIN_AX_Ib}
	t[0xE6] = opEntry{mnemonic: "OUT", shape: shapeImm8, exec: opOUT_Ib_AL}
	t[0xE7] = opEntry{mnemonic: "OUT", shape: shapeImm8, exec: opOUT_Ib_AX}
	t[0xE8] = opEntry{mnemonic: "CALL", shape: shapeRel16, exec: opCALL_Rel16}
	t[0xE9] = opEntry{mnemonic: "JMP", shape: shapeRel16, exec: opJMP_Rel}
	t[0xEA] = opEntry{mnemonic: "JMP", shape: shapeFarPtr, exec: opJMP_Far}
	t[0xEB] = opEntry{mnemonic: "JMP", shape: shapeRel8, exec: opJMP_Rel}
	t[0xEC] = opEntry{mnemonic: "IN", exec: opIN_AL_DX}
	t[0xED] = opEntry{mnemonic: "IN", exec: opIN_AX_DX}
	t[0xEE] = opEntry{mnemonic: "OUT", exec: opOUT_DX_AL}
	t[0xEF] = opEntry{mnemonic: "OUT", exec: opOUT_DX_AX}

	t[0xF4] = opEntry{mnemonic: "HLT", exec: opHLT}
	t[0xF5] = opEntry{mnemonic: "CMC", exec: opCMC}
	t[0xF6] = opEntry{group: &[8]opEntry{
		{mnemonic: "TEST", shape: shapeRM8Imm8, exec: opTEST_Eb_Ib},
		{mnemonic: "TEST", shape: shapeRM8Imm8, exec: opTEST_Eb_Ib},
		{mnemonic: "NOT", shape: shapeRM8, exec: opNOT_Eb},
		{mnemonic: "NEG", shape: shapeRM8, exec: opNEG_Eb},
		{mnemonic: "MUL", shape: shapeRM8, exec: opMUL_Eb},
		{mnemonic: "IMUL", shape: shapeRM8, exec: opIMUL_Eb},
		{mnemonic: "DIV", shape: shapeRM8, exec: opDIV_Eb},
		{mnemonic: "IDIV", shape: shapeRM8, exec: opIDIV_Eb},
	}}
	t[0xF7] = opEntry{group: &[8]opEntry{
		{mnemonic: "TEST", shape: shapeRM16Imm16, exec: opTEST_Ev_Iv},
		{mnemonic: "TEST", shape: shapeRM16Imm16, exec: opTEST_Ev_Iv},
		{mnemonic: "NOT", shape: shapeRM16, exec: opNOT_Ev},
		{mnemonic: "NEG", shape: shapeRM16, exec: opNEG_Ev},
		{mnemonic: "MUL", shape: shapeRM16, exec: opMUL_Ev},
		{mnemonic: "IMUL", shape: shapeRM16, exec: opIMUL_Ev},
		{mnemonic: "DIV", shape: shapeRM16, exec: opDIV_Ev},
		{mnemonic: "IDIV", shape: shapeRM16, exec: opIDIV_Ev},
	}}
	t[0xF8] = opEntry{mnemonic: "CLC", exec: flagOp(x86FlagCF, false)}
	t[0xF9] = opEntry{mnemonic: "STC", exec: flagOp(x86FlagCF, true)}
	t[0xFA] = opEntry{mnemonic: "CLI", exec: flagOp(x86FlagIF, false)}
	t[0xFB] = opEntry{mnemonic: "STI", exec: flagOp(x86FlagIF, true)}
	t[0xFC] = opEntry{mnemonic: "CLD", exec: flagOp(x86FlagDF, false)}
	t[0xFD] = opEntry{mnemonic: "STD", exec: flagOp(x86FlagDF, true)}
	t[0xFE] = opEntry{group: &[8]opEntry{
		{mnemonic: "INC", shape: shapeRM8, exec: opINC_Eb},
		{mnemonic: "DEC", shape: shapeRM8, exec: opDEC_Eb},
	}}
	t[0xFF] = opEntry{group: &[8]opEntry{
		{mnemonic: "INC", shape: shapeRM16, exec: opINC_Ev},
		{mnemonic: "DEC", shape: shapeRM16, exec: opDEC_Ev},
		{mnemonic: "CALL", shape: shapeRM16, exec: opCALL_Ev},
		{mnemonic: "CALL", shape: shapeRM16, exec: opCALL_Mp, memOnly: true},
		{mnemonic: "JMP", shape: shapeRM16, exec: opJMP_Ev},
		{mnemonic: "JMP", shape: shapeRM16, exec: opJMP_Mp, memOnly: true},
		{mnemonic: "PUSH", shape: shapeRM16, exec: opPUSH_Ev},
	}}

	if c.HasFeature(FeatureInstr186) {
		c.init186Ops()
	} else {
		c.init8086Aliases()
	}
}

// init186Ops installs the 80186 additions
func (c *CPU_X86) init186Ops() {
	t := &c.baseOps

	t[0x60] = opEntry{mnemonic: "PUSHA", exec: opPUSHA}
	t[0x61] = opEntry{mnemonic: "POPA", exec: opPOPA}
	t[0x62] = opEntry{mnemonic: "BOUND", shape: shapeRM16R16, exec: opBOUND, memOnly: true}
	t[0x68] = opEntry{mnemonic: "PUSH", shape: shapeImm16, exec: opPUSH_Imm}
	t[0x69] = opEntry{mnemonic: "IMUL", shape: shapeR16RM16Imm16, exec: opIMUL_Gv_Ev_I}
	t[0x6A] = opEntry{mnemonic: "PUSH", shape: shapeImm8S, exec: opPUSH_Imm}
	t[0x6B] = opEntry{mnemonic: "IMUL", shape: shapeR16RM16Imm8, exec: opIMUL_Gv_Ev_I}
	t[0x6C] = opEntry{mnemonic: "INSB", exec: opINSB}
	t[0x6D] = opEntry{mnemonic: "INSW", exec: opINSW}
	t[0x6E] = opEntry{mnemonic: "OUTSB", exec: opOUTSB}
	t[0x6F] = opEntry{mnemonic: "OUTSW", exec: opOUTSW}

	t[0xC0] = opEntry{group: shiftGroup(shapeRM8Imm8, 8, shiftCountImm)}
	t[0xC1] = opEntry{group: shiftGroup(shapeRM16Imm8, 16, shiftCountImm)}

	t[0xC8] = opEntry{mnemonic: "ENTER", shape: shapeImm16Imm8, exec: opENTER}
	t[0xC9] = opEntry{mnemonic: "LEAVE", exec: opLEAVE}
}

// init8086Aliases fills the opcodes the 8086 decodes as mirrors of others
func (c *CPU_X86) init8086Aliases() {
	t := &c.baseOps

	for i := 0; i < 16; i++ {
		t[0x60+i] = t[0x70+i]
	}
	t[0xC0] = t[0xC2]
	t[0xC1] = t[0xC3]
	t[0xC8] = t[0xCA]
	t[0xC9] = t[0xCB]

	t[0x0F] = opEntry{mnemonic: "POP", shape: shapeSeg, exec: opPOP_Seg}
}

type shiftCount func(c *CPU_X86, in *Instruction) byte

func shiftCountOne(c *CPU_X86, in *Instruction) byte { return 1 }
func shiftCountCL(c *CPU_X86, in *Instruction) byte  { return c.CL() }
func shiftCountImm(c *CPU_X86, in *Instruction) byte { return byte(in.Imm) }

func shiftGroup(shape opShape, width uint, count shiftCount) *[8]opEntry {
	var g [8]opEntry
	for i := 0; i < 8; i++ {
		op := i
		g[i] = opEntry{mnemonic: shiftNames[i], shape: shape, exec: func(c *CPU_X86, in *Instruction) {
			n := count(c, in)
			if width == 8 {
				v := c.readOp8(&in.RM)
				c.writeOp8(&in.RM, byte(c.shiftRotate(op, uint16(v), n, 8)))
				return
			}
			v := c.readOp16(&in.RM)
			c.writeOp16(&in.RM, c.shiftRotate(op, v, n, 16))
		}}
	}
	return &g
}
