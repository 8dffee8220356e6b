// system.go - IntuitionXT machine: CPU, address space, devices and the run loop
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotInitialized = errors.New("system not initialised")
	ErrAlreadyRunning = errors.New("system already running")
	// ErrHalted is returned by Start when the CPU halts with interrupts
	// disabled and ExitOnHalt is set.
	ErrHalted = errors.New("cpu halted with interrupts disabled")
	// ErrBreakpoint is returned by Start when BreakCheck stops the machine.
	ErrBreakpoint = errors.New("breakpoint")
)

type SystemState int

const (
	StateUninitialized SystemState = iota
	StateInitialized
	StateRunning
)

func (s SystemState) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	}
	return "uninitialized"
}

// InterruptController is a device that can raise and deliver hardware
// interrupts. The System routes CPU acknowledge cycles to the first one
// attached.
type InterruptController interface {
	Device
	RaiseIRQ(line int)
	PendingInterrupt() (vector byte, ok bool)
}

// System owns the CPU, the address space and the devices, and is the only
// scheduler: each iteration steps every device, then one instruction.
type System struct {
	// Held for one loop iteration; observers take it to read a consistent state.
	mu sync.Mutex

	state SystemState

	CPU    *CPU_X86
	Memory *AddressSpace
	Ports  *PortBus

	pic *DeviceHandle

	// ExitOnHalt makes a halt with IF clear end Start with ErrHalted
	// instead of idling until the context ends.
	ExitOnHalt bool

	// BreakCheck, when set, is consulted before every instruction.
	BreakCheck func(cs, ip uint16) bool
}

func NewSystem(mem *AddressSpace, policy UnmappedPortPolicy, features ...Feature) *System {
	s := &System{
		Memory: mem,
		Ports:  NewPortBus(policy),
	}
	s.CPU = NewCPU_X86(s, features...)
	s.CPU.SetInterruptSource(s)
	return s
}

// AddDevice attaches a device to the port bus. The first InterruptController
// attached becomes the CPU's interrupt source.
func (s *System) AddDevice(dev Device) *DeviceHandle {
	h := s.Ports.Attach(dev)
	if _, ok := dev.(InterruptController); ok && s.pic == nil {
		s.pic = h
	}
	logDebug(modSystem, "device attached", "name", dev.Name())
	return h
}

// Devices returns the device handles in attach order
func (s *System) Devices() []*DeviceHandle {
	return s.Ports.Handles()
}

// Device finds an attached device by name
func (s *System) Device(name string) *DeviceHandle {
	for _, h := range s.Ports.Handles() {
		if h.Name() == name {
			return h
		}
	}
	return nil
}

// State returns the lifecycle state
func (s *System) State() SystemState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Init initialises every device, then the CPU.
func (s *System) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return ErrAlreadyRunning
	}
	for _, h := range s.Ports.Handles() {
		if err := h.init(s); err != nil {
			return fmt.Errorf("init %s: %w", h.Name(), err)
		}
	}
	s.CPU.Init()
	s.state = StateInitialized
	logInfo(modSystem, "system initialised", "devices", len(s.Ports.Handles()))
	return nil
}

// Reset puts the CPU at the reset vector FFFF:0000.
func (s *System) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CPU.Reset()
}

// Start resets the CPU and runs until a fatal error, a breakpoint, or ctx
// ends. Cancellation returns ctx.Err().
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateUninitialized:
		s.mu.Unlock()
		return ErrNotInitialized
	case StateRunning:
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.CPU.Reset()
	s.mu.Unlock()
	return s.run(ctx)
}

// Resume continues from the current CPU state without a reset.
func (s *System) Resume(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateUninitialized:
		s.mu.Unlock()
		return ErrNotInitialized
	case StateRunning:
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.mu.Unlock()
	return s.run(ctx)
}

func (s *System) run(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.state = StateInitialized
		s.mu.Unlock()
	}()

	logInfo(modSystem, "machine started", "cs", s.CPU.CS(), "ip", s.CPU.IP)
	done := ctx.Done()
	first := true
	for n := uint64(0); ; n++ {
		if n&0x3FF == 0 {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
		}

		s.mu.Lock()
		if s.BreakCheck != nil && !first && !s.CPU.Halted && s.BreakCheck(s.CPU.CS(), s.CPU.IP) {
			s.mu.Unlock()
			return ErrBreakpoint
		}
		first = false
		err := s.step()
		deadHalt := s.CPU.Halted && !s.CPU.IF()
		s.mu.Unlock()

		if err != nil {
			logError(modSystem, "machine stopped", "err", err)
			return err
		}
		if deadHalt {
			if s.ExitOnHalt {
				return ErrHalted
			}
			logInfo(modSystem, "cpu halted with interrupts disabled, idling")
			<-done
			return ctx.Err()
		}
	}
}

// step is one loop iteration. Callers hold s.mu.
func (s *System) step() error {
	for _, h := range s.Ports.Handles() {
		h.step()
	}
	return s.CPU.Step()
}

// StepOnce runs a single loop iteration outside Start (monitor, tests).
func (s *System) StepOnce() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUninitialized {
		return ErrNotInitialized
	}
	return s.step()
}

// WithLock runs fn with the loop paused between iterations.
func (s *System) WithLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// RaiseIRQ asserts a hardware interrupt line on the interrupt controller.
func (s *System) RaiseIRQ(line int) {
	if s.pic == nil {
		return
	}
	s.pic.With(func(dev Device) {
		dev.(InterruptController).RaiseIRQ(line)
	})
}

// PendingInterrupt implements InterruptSource for the CPU.
func (s *System) PendingInterrupt() (vector byte, ok bool) {
	if s.pic == nil {
		return 0, false
	}
	s.pic.With(func(dev Device) {
		vector, ok = dev.(InterruptController).PendingInterrupt()
	})
	return vector, ok
}

// -----------------------------------------------------------------------------
// X86Bus
// -----------------------------------------------------------------------------

func (s *System) Read(addr uint32) byte {
	return s.Memory.Read8(addr)
}

func (s *System) Write(addr uint32, value byte) {
	s.Memory.Write8(addr, value)
}

func (s *System) In(port uint16, width PortWidth) (uint16, error) {
	return s.Ports.In(port, width)
}

func (s *System) Out(port uint16, width PortWidth, value uint16) error {
	return s.Ports.Out(port, width, value)
}

// -----------------------------------------------------------------------------
// Observer snapshots
// -----------------------------------------------------------------------------

// CPUSnapshot is a copy of the register file taken between instructions.
type CPUSnapshot struct {
	Regs    [8]uint16
	Segs    [4]uint16
	IP      uint16
	Flags   Flags
	Decoded uint64
	Halted  bool
}

func (c *CPU_X86) Snapshot() CPUSnapshot {
	return CPUSnapshot{
		Regs:    c.regs,
		Segs:    c.segs,
		IP:      c.IP,
		Flags:   c.Flags,
		Decoded: c.Decoded,
		Halted:  c.Halted,
	}
}

// Snapshot copies the CPU registers under the loop lock.
func (s *System) Snapshot() CPUSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CPU.Snapshot()
}

func (snap CPUSnapshot) String() string {
	return fmt.Sprintf("AX=%04X BX=%04X CX=%04X DX=%04X SP=%04X BP=%04X SI=%04X DI=%04X\n"+
		"DS=%04X ES=%04X SS=%04X CS=%04X IP=%04X FLAGS=%s",
		snap.Regs[x86RegAX], snap.Regs[x86RegBX], snap.Regs[x86RegCX], snap.Regs[x86RegDX],
		snap.Regs[x86RegSP], snap.Regs[x86RegBP], snap.Regs[x86RegSI], snap.Regs[x86RegDI],
		snap.Segs[x86SegDS], snap.Segs[x86SegES], snap.Segs[x86SegSS], snap.Segs[x86SegCS],
		snap.IP, snap.Flags)
}
