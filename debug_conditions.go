// debug_conditions.go - Breakpoint condition parser and evaluator for the machine monitor

package main

import (
	"fmt"
	"strings"
)

var conditionOps = []struct {
	text string
	op   ConditionOp
}{
	// two-character operators first so "<=" is not read as "<"
	{"==", CondOpEqual},
	{"!=", CondOpNotEqual},
	{"<=", CondOpLessEqual},
	{">=", CondOpGreaterEqual},
	{"<", CondOpLess},
	{">", CondOpGreater},
}

// ParseCondition parses a condition string into a BreakpointCondition.
// Formats:
//
//	AX==$10        - register AX, op ==, value 0x10
//	[$400]!=0      - byte at linear 0x400, op !=, value 0
//	[0040:0017]==1 - byte at segment:offset
//	hitcount>=3    - breakpoint hit count
func ParseCondition(text string) (*BreakpointCondition, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty condition")
	}

	opIdx := -1
	var opText string
	var op ConditionOp
	for _, candidate := range conditionOps {
		if idx := strings.Index(text, candidate.text); idx >= 0 {
			opIdx, opText, op = idx, candidate.text, candidate.op
			break
		}
	}
	if opIdx < 0 {
		return nil, fmt.Errorf("no operator found (use ==, !=, <, >, <=, >=)")
	}

	lhs := strings.TrimSpace(text[:opIdx])
	rhs := strings.TrimSpace(text[opIdx+len(opText):])

	value, ok := ParseAddress(rhs)
	if !ok {
		return nil, fmt.Errorf("invalid value: %s", rhs)
	}

	if strings.HasPrefix(lhs, "[") && strings.HasSuffix(lhs, "]") {
		addrStr := lhs[1 : len(lhs)-1]
		addr, ok := ParseAddress(addrStr)
		if !ok {
			return nil, fmt.Errorf("invalid memory address: %s", addrStr)
		}
		return &BreakpointCondition{
			Source:  CondSourceMemory,
			MemAddr: addr,
			Op:      op,
			Value:   value,
		}, nil
	}

	if strings.EqualFold(lhs, "hitcount") {
		return &BreakpointCondition{
			Source: CondSourceHitCount,
			Op:     op,
			Value:  value,
		}, nil
	}

	if !isX86RegisterName(lhs) {
		return nil, fmt.Errorf("unknown register: %s", lhs)
	}
	return &BreakpointCondition{
		Source:  CondSourceRegister,
		RegName: strings.ToUpper(lhs),
		Op:      op,
		Value:   value,
	}, nil
}

func isX86RegisterName(s string) bool {
	s = strings.ToUpper(s)
	if s == "IP" || s == "FLAGS" {
		return true
	}
	for _, names := range [][]string{x86Reg16Names[:], x86Reg8Names[:], x86SegNames[:]} {
		for _, n := range names {
			if n == s {
				return true
			}
		}
	}
	return false
}

// evaluateConditionWithHitCount reports whether a breakpoint should fire.
// A nil condition always fires.
func evaluateConditionWithHitCount(cond *BreakpointCondition, cpu DebuggableCPU, hitCount uint64) bool {
	if cond == nil {
		return true
	}

	var actual uint64
	switch cond.Source {
	case CondSourceRegister:
		val, ok := cpu.GetRegister(cond.RegName)
		if !ok {
			return false
		}
		actual = val
	case CondSourceMemory:
		data := cpu.ReadMemory(cond.MemAddr, 1)
		if len(data) == 0 {
			return false
		}
		actual = uint64(data[0])
	case CondSourceHitCount:
		actual = hitCount
	}

	return compareValues(actual, cond.Op, cond.Value)
}

func compareValues(actual uint64, op ConditionOp, expected uint64) bool {
	switch op {
	case CondOpEqual:
		return actual == expected
	case CondOpNotEqual:
		return actual != expected
	case CondOpLess:
		return actual < expected
	case CondOpGreater:
		return actual > expected
	case CondOpLessEqual:
		return actual <= expected
	case CondOpGreaterEqual:
		return actual >= expected
	}
	return false
}

// FormatCondition returns a human-readable string for a condition.
func FormatCondition(cond *BreakpointCondition) string {
	if cond == nil {
		return ""
	}

	var lhs string
	switch cond.Source {
	case CondSourceRegister:
		lhs = cond.RegName
	case CondSourceMemory:
		lhs = fmt.Sprintf("[$%05X]", cond.MemAddr)
	case CondSourceHitCount:
		lhs = "hitcount"
	}

	opStr := ""
	for _, c := range conditionOps {
		if c.op == cond.Op {
			opStr = c.text
			break
		}
	}
	return fmt.Sprintf("%s%s$%X", lhs, opStr, cond.Value)
}
