package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// resetVectorOffset is where the CPU starts (FFFF:0000) relative to the top
// of the 1MB space.
const resetVectorOffset = 16

var ErrImageTooLarge = errors.New("image larger than ROM")

// Line is one decoded instruction (or undecodable byte) of an image.
type Line struct {
	Addr     uint32
	Bytes    []byte
	Mnemonic string
}

// Decode walks code as 16-bit x86 loaded at origin. Bytes x86asm cannot
// decode become single-byte "db" lines.
func Decode(code []byte, origin uint32) []Line {
	var lines []Line
	for off := 0; off < len(code); {
		inst, err := x86asm.Decode(code[off:], 16)
		if err != nil || inst.Len == 0 {
			lines = append(lines, Line{
				Addr:     origin + uint32(off),
				Bytes:    code[off : off+1],
				Mnemonic: fmt.Sprintf("db 0x%02x", code[off]),
			})
			off++
			continue
		}
		lines = append(lines, Line{
			Addr:     origin + uint32(off),
			Bytes:    code[off : off+inst.Len],
			Mnemonic: strings.ToLower(x86asm.IntelSyntax(inst, uint64(origin)+uint64(off), nil)),
		})
		off += inst.Len
	}
	return lines
}

// WriteListing prints lines as "AAAAA: bytes  mnemonic".
func WriteListing(w io.Writer, lines []Line) error {
	for _, l := range lines {
		hex := make([]string, len(l.Bytes))
		for i, b := range l.Bytes {
			hex[i] = fmt.Sprintf("%02X", b)
		}
		if _, err := fmt.Fprintf(w, "%05X: %-20s %s\n", l.Addr, strings.Join(hex, " "), l.Mnemonic); err != nil {
			return err
		}
	}
	return nil
}

// Pad places image at the top of a size-byte ROM, filling the front with
// fill, so the last 16 bytes land on the reset vector when the ROM is mapped
// at the top of memory.
func Pad(image []byte, size int, fill byte) ([]byte, error) {
	if len(image) > size {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrImageTooLarge, len(image), size)
	}
	out := make([]byte, size)
	front := size - len(image)
	for i := 0; i < front; i++ {
		out[i] = fill
	}
	copy(out[front:], image)
	return out, nil
}

// ResetVector returns the instructions at FFFF:0000 of a top-mapped ROM.
func ResetVector(rom []byte) []Line {
	if len(rom) < resetVectorOffset {
		return Decode(rom, 0x100000-uint32(len(rom)))
	}
	return Decode(rom[len(rom)-resetVectorOffset:], 0x100000-resetVectorOffset)
}
