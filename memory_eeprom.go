// memory_eeprom.go - ROM/EEPROM images for the address space
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"os"
)

// EEPROM holds a firmware image. It is write-protected unless SetWritable
// is called, in which case guest writes are stored.
type EEPROM struct {
	data     []byte
	writable bool
}

// NewEEPROM wraps a copy of image, sized exactly to it.
func NewEEPROM(image []byte) *EEPROM {
	data := make([]byte, len(image))
	copy(data, image)
	return &EEPROM{data: data}
}

// NewEEPROMWithSize builds an EEPROM of the given size. A smaller image is
// padded with zeros at the front so it ends at the top of the device, which
// puts a BIOS reset stub at FFFF:0000. A larger image is truncated to its
// first size bytes.
func NewEEPROMWithSize(size uint32, image []byte) *EEPROM {
	data := make([]byte, size)
	if uint32(len(image)) >= size {
		copy(data, image[:size])
	} else {
		copy(data[size-uint32(len(image)):], image)
	}
	return &EEPROM{data: data}
}

// LoadEEPROM reads an image file. A size of zero keeps the file's size.
func LoadEEPROM(path string, size uint32) (*EEPROM, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ROM image: %w", err)
	}
	if size == 0 {
		return NewEEPROM(image), nil
	}
	return NewEEPROMWithSize(size, image), nil
}

func (e *EEPROM) Size() uint32          { return uint32(len(e.data)) }
func (e *EEPROM) Read8(off uint32) byte { return e.data[off] }

func (e *EEPROM) Write8(off uint32, v byte) bool {
	if !e.writable {
		return false
	}
	e.data[off] = v
	return true
}

func (e *EEPROM) SetWritable(on bool) { e.writable = on }
func (e *EEPROM) Writable() bool      { return e.writable }
func (e *EEPROM) Bytes() []byte       { return e.data }
