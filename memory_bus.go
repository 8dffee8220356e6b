// memory_bus.go - Segmented 20-bit address space for IntuitionXT

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▒██   ██▒▄▄▄█████▓
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▒▒ █ █ ▒░▓  ██▒ ▓▒
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ░░  █   ░▒ ▓██░ ▒░
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒    ░ █ █ ▒ ░ ▓██▓ ░
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ▒██▒ ▒██▒  ▒██▒ ░
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ▒▒ ░ ░▓ ░  ▒ ░░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░   ░░   ░▒ ░    ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░     ░    ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░     ░    ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionXT
License: GPLv3 or later
*/

/*
memory_bus.go - Address Space for IntuitionXT

This module implements the 1MB real-mode address space the x86 core fetches from and stores to. Storage is provided by layered regions (RAM, EEPROM) mapped over linear address ranges.

Core Features:

    Fixed capacity (1MB), linear addresses wrap modulo the capacity.
    Regions keep their mapping order and lookups search the newest mapping first, so a ROM mapped over RAM shadows it.
    Addresses with no backing region read as zero and swallow writes.
    Little-endian 16-bit access; a word may straddle two regions or the wrap point.

Concurrency:

    A sync.RWMutex protects the mapping table and region contents so the monitor and GUI can dump memory while the machine runs.

*/

package main

import (
	"errors"
	"fmt"
	"sync"
)

const (
	X86_MEMORY_SIZE  = x86AddressSpaceSize
	DEFAULT_RAM_SIZE = 640 * 1024
	DEFAULT_ROM_BASE = 0xC0000
	DEFAULT_ROM_SIZE = 256 * 1024
)

var (
	ErrRegionSize   = errors.New("mapped range does not match region size")
	ErrRegionBounds = errors.New("mapped range outside address space")
)

// MemoryRegion is a block of storage that can be mapped into an AddressSpace.
type MemoryRegion interface {
	Size() uint32
	Read8(off uint32) byte
	// Write8 stores a byte and reports whether the region accepted it.
	Write8(off uint32, value byte) bool
}

type mappedRegion struct {
	name   string
	start  uint32
	end    uint32
	region MemoryRegion
}

// RegionInfo describes a mapping, for reports.
type RegionInfo struct {
	Name       string
	Start, End uint32
	Kind       string
}

type AddressSpace struct {
	/*
		AddressSpace is the machine's physical memory.

		Mappings are held in the order they were made. Lookups walk
		them newest first so later mappings win.
	*/

	size    uint32
	mutex   sync.RWMutex
	regions []mappedRegion
}

func NewAddressSpace(size uint32) *AddressSpace {
	/*
		NewAddressSpace returns an empty address space of the given
		capacity. Nothing is mapped, so every byte reads as zero.
	*/

	if size == 0 {
		size = X86_MEMORY_SIZE
	}
	return &AddressSpace{size: size}
}

// NewDefaultAddressSpace builds the reference layout: 640KB of RAM at 0 and,
// when rom is non-nil, a ROM top-aligned in the 256KB window at 0xC0000.
func NewDefaultAddressSpace(rom []byte) (*AddressSpace, error) {
	as := NewAddressSpace(X86_MEMORY_SIZE)
	if err := as.Map("ram", 0, DEFAULT_RAM_SIZE-1, NewRAM(DEFAULT_RAM_SIZE)); err != nil {
		return nil, fmt.Errorf("failed to map ram: %w", err)
	}
	if rom != nil {
		if err := as.Map("rom", DEFAULT_ROM_BASE, DEFAULT_ROM_BASE+DEFAULT_ROM_SIZE-1, NewEEPROMWithSize(DEFAULT_ROM_SIZE, rom)); err != nil {
			return nil, fmt.Errorf("failed to map rom: %w", err)
		}
	}
	return as, nil
}

// Size returns the capacity in bytes
func (as *AddressSpace) Size() uint32 {
	return as.size
}

func (as *AddressSpace) Map(name string, start, end uint32, region MemoryRegion) error {
	/*
		Map places a region over the inclusive range [start, end].

		The range must be exactly the region's size and must lie
		inside the address space.
	*/

	if end < start || end >= as.size {
		return fmt.Errorf("map %s %05X-%05X: %w", name, start, end, ErrRegionBounds)
	}
	if end-start+1 != region.Size() {
		return fmt.Errorf("map %s %05X-%05X (%d bytes, region %d): %w",
			name, start, end, end-start+1, region.Size(), ErrRegionSize)
	}

	as.mutex.Lock()
	defer as.mutex.Unlock()
	as.regions = append(as.regions, mappedRegion{name: name, start: start, end: end, region: region})
	logDebug(modMem, "region mapped", "name", name, "start", fmt.Sprintf("%05X", start), "end", fmt.Sprintf("%05X", end))
	return nil
}

// MapFull maps a region at address zero covering its whole size.
func (as *AddressSpace) MapFull(name string, region MemoryRegion) error {
	if region.Size() == 0 {
		return fmt.Errorf("map %s: %w", name, ErrRegionSize)
	}
	return as.Map(name, 0, region.Size()-1, region)
}

// Regions lists the mappings in mapping order.
func (as *AddressSpace) Regions() []RegionInfo {
	as.mutex.RLock()
	defer as.mutex.RUnlock()
	out := make([]RegionInfo, 0, len(as.regions))
	for _, m := range as.regions {
		out = append(out, RegionInfo{Name: m.name, Start: m.start, End: m.end, Kind: regionKind(m.region)})
	}
	return out
}

func regionKind(r MemoryRegion) string {
	switch v := r.(type) {
	case *RAM:
		return "ram"
	case *EEPROM:
		if v.Writable() {
			return "eeprom (rw)"
		}
		return "eeprom"
	}
	return fmt.Sprintf("%T", r)
}

// Linear translates segment:offset to a linear address within this space.
func (as *AddressSpace) Linear(segment, offset uint16) uint32 {
	return (uint32(segment)<<4 + uint32(offset)) % as.size
}

// lookup returns the newest region containing addr and the offset into it.
// Callers hold the mutex.
func (as *AddressSpace) lookup(addr uint32) (MemoryRegion, uint32, bool) {
	for i := len(as.regions) - 1; i >= 0; i-- {
		m := &as.regions[i]
		if addr >= m.start && addr <= m.end {
			return m.region, addr - m.start, true
		}
	}
	return nil, 0, false
}

// Read8 reads one byte. Unbacked addresses read as zero.
func (as *AddressSpace) Read8(addr uint32) byte {
	addr %= as.size
	as.mutex.RLock()
	defer as.mutex.RUnlock()
	if r, off, ok := as.lookup(addr); ok {
		return r.Read8(off)
	}
	return 0
}

// Write8 writes one byte. Writes to unbacked addresses are discarded.
func (as *AddressSpace) Write8(addr uint32, value byte) {
	addr %= as.size
	as.mutex.Lock()
	defer as.mutex.Unlock()
	r, off, ok := as.lookup(addr)
	if !ok {
		logTrace(modMem, "write to unbacked address dropped", "addr", fmt.Sprintf("%05X", addr))
		return
	}
	if !r.Write8(off, value) {
		logTrace(modMem, "write to read-only region dropped", "addr", fmt.Sprintf("%05X", addr))
	}
}

// Read16 reads a little-endian word; the high byte wraps at the top of memory.
func (as *AddressSpace) Read16(addr uint32) uint16 {
	return uint16(as.Read8(addr)) | uint16(as.Read8((addr+1)%as.size))<<8
}

func (as *AddressSpace) Write16(addr uint32, value uint16) {
	as.Write8(addr, byte(value))
	as.Write8((addr+1)%as.size, byte(value>>8))
}

// Load copies data into memory at addr through the normal write path.
func (as *AddressSpace) Load(addr uint32, data []byte) {
	for i, b := range data {
		as.Write8((addr+uint32(i))%as.size, b)
	}
}

func (as *AddressSpace) Reset() {
	/*
		Reset clears every RAM region. ROM contents are kept.
	*/

	as.mutex.Lock()
	defer as.mutex.Unlock()
	for _, m := range as.regions {
		if ram, ok := m.region.(*RAM); ok {
			clear(ram.data)
		}
	}
}

// -----------------------------------------------------------------------------
// RAM
// -----------------------------------------------------------------------------

// RAM is zero-initialised writable storage.
type RAM struct {
	data []byte
}

func NewRAM(size uint32) *RAM {
	return &RAM{data: make([]byte, size)}
}

func (r *RAM) Size() uint32                   { return uint32(len(r.data)) }
func (r *RAM) Read8(off uint32) byte          { return r.data[off] }
func (r *RAM) Write8(off uint32, v byte) bool { r.data[off] = v; return true }

// Bytes exposes the backing store (used by snapshots).
func (r *RAM) Bytes() []byte { return r.data }
