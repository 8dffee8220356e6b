// memory_dump.go - Address space dumps in several radixes
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"os"
	"strings"
)

// DumpRadix selects the per-byte format of a textual dump
type DumpRadix int

const (
	RadixBinary DumpRadix = iota
	RadixOctal
	RadixDecimal
	RadixHex
)

// ParseRadix accepts the radix names and single-letter forms used by the monitor.
func ParseRadix(s string) (DumpRadix, error) {
	switch strings.ToLower(s) {
	case "b", "bin", "binary", "2":
		return RadixBinary, nil
	case "o", "oct", "octal", "8":
		return RadixOctal, nil
	case "d", "dec", "decimal", "10":
		return RadixDecimal, nil
	case "", "h", "x", "hex", "hexadecimal", "16":
		return RadixHex, nil
	}
	return RadixHex, fmt.Errorf("unknown radix %q", s)
}

func formatByte(radix DumpRadix, b byte) string {
	switch radix {
	case RadixBinary:
		return fmt.Sprintf("%08b", b)
	case RadixOctal:
		return fmt.Sprintf("%03o", b)
	case RadixDecimal:
		return fmt.Sprintf("%03d", b)
	}
	return fmt.Sprintf("%02x", b)
}

// FormatDump renders bytes space-separated in the given radix.
func FormatDump(radix DumpRadix, data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = formatByte(radix, b)
	}
	return strings.Join(parts, " ")
}

// DumpRange returns n bytes starting at addr, wrapping at the top of memory.
func (as *AddressSpace) DumpRange(addr, n uint32) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = as.Read8((addr + uint32(i)) % as.size)
	}
	return out
}

// Dump returns the whole address space as seen by the CPU.
func (as *AddressSpace) Dump() []byte {
	return as.DumpRange(0, as.size)
}

func (as *AddressSpace) DumpString(radix DumpRadix) string {
	return FormatDump(radix, as.Dump())
}

func (as *AddressSpace) DumpToFile(path string) error {
	if err := os.WriteFile(path, as.Dump(), 0o644); err != nil {
		return fmt.Errorf("failed to write memory dump: %w", err)
	}
	return nil
}
