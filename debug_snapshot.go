// debug_snapshot.go - Machine state snapshot for the monitor's save/load

package main

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	snapshotMagic   = "IXTS"
	snapshotVersion = 1
)

var ErrBadSnapshot = errors.New("invalid snapshot")

// MachineSnapshot captures CPU registers and the whole 1MB address space.
type MachineSnapshot struct {
	CPUType   string
	Registers []RegisterInfo
	Memory    []byte
}

// TakeSnapshot captures the current CPU registers and full memory.
func TakeSnapshot(cpu DebuggableCPU) *MachineSnapshot {
	return &MachineSnapshot{
		CPUType:   cpu.CPUName(),
		Registers: cpu.GetRegisters(),
		Memory:    cpu.ReadMemory(0, X86_MEMORY_SIZE),
	}
}

// RestoreSnapshot restores CPU registers and memory from a snapshot.
// Memory goes through the bus, so write-protected ROM keeps its contents.
func RestoreSnapshot(cpu DebuggableCPU, snap *MachineSnapshot) {
	for _, r := range snap.Registers {
		cpu.SetRegister(r.Name, r.Value)
	}
	if len(snap.Memory) > 0 {
		cpu.WriteMemory(0, snap.Memory)
	}
}

// WriteSnapshot encodes a snapshot: magic, version, CPU name, registers,
// then the memory length followed by the gzip-compressed memory.
func WriteSnapshot(w io.Writer, snap *MachineSnapshot) error {
	if len(snap.CPUType) > 0xFF {
		return fmt.Errorf("%w: cpu name too long", ErrBadSnapshot)
	}
	bw := bufio.NewWriter(w)
	sw := &snapshotWriter{w: bw}

	sw.bytes([]byte(snapshotMagic))
	sw.u32(snapshotVersion)
	sw.str(snap.CPUType)
	sw.u32(uint32(len(snap.Registers)))
	for _, r := range snap.Registers {
		sw.str(r.Name)
		sw.u64(r.Value)
		sw.u32(uint32(r.BitWidth))
	}
	sw.u32(uint32(len(snap.Memory)))
	if sw.err != nil {
		return sw.err
	}

	gz := gzip.NewWriter(bw)
	if _, err := gz.Write(snap.Memory); err != nil {
		return fmt.Errorf("compressing memory: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("closing gzip: %w", err)
	}
	return bw.Flush()
}

// ReadSnapshot decodes what WriteSnapshot produced.
func ReadSnapshot(r io.Reader) (*MachineSnapshot, error) {
	br := bufio.NewReader(r)
	sr := &snapshotReader{r: br}

	magic := sr.bytes(len(snapshotMagic))
	if sr.err == nil && string(magic) != snapshotMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadSnapshot, string(magic))
	}
	if version := sr.u32(); sr.err == nil && version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, version)
	}
	snap := &MachineSnapshot{CPUType: sr.str()}
	count := sr.u32()
	if sr.err == nil && count > 64 {
		return nil, fmt.Errorf("%w: %d registers", ErrBadSnapshot, count)
	}
	for i := uint32(0); i < count && sr.err == nil; i++ {
		name := sr.str()
		value := sr.u64()
		width := sr.u32()
		snap.Registers = append(snap.Registers, RegisterInfo{Name: name, Value: value, BitWidth: int(width)})
	}
	memLen := sr.u32()
	if sr.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, sr.err)
	}
	if memLen > X86_MEMORY_SIZE {
		return nil, fmt.Errorf("%w: memory length %d", ErrBadSnapshot, memLen)
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: opening gzip reader: %v", ErrBadSnapshot, err)
	}
	defer gz.Close()
	snap.Memory = make([]byte, memLen)
	if _, err := io.ReadFull(gz, snap.Memory); err != nil {
		return nil, fmt.Errorf("%w: decompressing memory: %v", ErrBadSnapshot, err)
	}
	return snap, nil
}

// SaveSnapshotToFile writes a snapshot to disk.
func SaveSnapshotToFile(snap *MachineSnapshot, path string) error {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, snap); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// LoadSnapshotFromFile reads a snapshot from disk.
func LoadSnapshotFromFile(path string) (*MachineSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshot(f)
}

// snapshotWriter keeps the first error so the encoder reads straight through.
type snapshotWriter struct {
	w   io.Writer
	err error
}

func (s *snapshotWriter) bytes(b []byte) {
	if s.err == nil {
		_, s.err = s.w.Write(b)
	}
}

func (s *snapshotWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	s.bytes(b[:])
}

func (s *snapshotWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	s.bytes(b[:])
}

func (s *snapshotWriter) str(v string) {
	s.bytes([]byte{byte(len(v))})
	s.bytes([]byte(v))
}

type snapshotReader struct {
	r   *bufio.Reader
	err error
}

func (s *snapshotReader) bytes(n int) []byte {
	if s.err != nil {
		return nil
	}
	b := make([]byte, n)
	_, s.err = io.ReadFull(s.r, b)
	return b
}

func (s *snapshotReader) u32() uint32 {
	b := s.bytes(4)
	if s.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (s *snapshotReader) u64() uint64 {
	b := s.bytes(8)
	if s.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (s *snapshotReader) str() string {
	n := s.bytes(1)
	if s.err != nil {
		return ""
	}
	return string(s.bytes(int(n[0])))
}
