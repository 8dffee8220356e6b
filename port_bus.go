// port_bus.go - x86 I/O port bus and device handles
//
// Every IN/OUT is offered to the attached devices in attach order; the first
// device that claims the exact (port, direction, width) handles it alone.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// PortDirection is the transfer direction of a port access
type PortDirection uint8

const (
	PortIn PortDirection = iota
	PortOut
)

func (d PortDirection) String() string {
	if d == PortOut {
		return "out"
	}
	return "in"
}

// PortWidth is the size of a port access in bytes
type PortWidth uint8

const (
	Width8  PortWidth = 1
	Width16 PortWidth = 2
)

func (w PortWidth) mask() uint16 {
	if w == Width8 {
		return 0x00FF
	}
	return 0xFFFF
}

// PortRequest is one port access. Value is the data for an OUT.
type PortRequest struct {
	Port  uint16
	Dir   PortDirection
	Width PortWidth
	Value uint16
}

// Key drops the value, leaving what devices match on
func (r PortRequest) Key() PortKey {
	return PortKey{Port: r.Port, Dir: r.Dir, Width: r.Width}
}

func (r PortRequest) String() string {
	if r.Dir == PortOut {
		return fmt.Sprintf("out%d %04X <- %04X", r.Width*8, r.Port, r.Value)
	}
	return fmt.Sprintf("in%d %04X", r.Width*8, r.Port)
}

// PortKey is the tuple a device claims
type PortKey struct {
	Port  uint16
	Dir   PortDirection
	Width PortWidth
}

// Byte port helpers for device claim tables
func InB(port uint16) PortKey  { return PortKey{Port: port, Dir: PortIn, Width: Width8} }
func OutB(port uint16) PortKey { return PortKey{Port: port, Dir: PortOut, Width: Width8} }
func InW(port uint16) PortKey  { return PortKey{Port: port, Dir: PortIn, Width: Width16} }
func OutW(port uint16) PortKey { return PortKey{Port: port, Dir: PortOut, Width: Width16} }

// UnmappedPortPolicy decides what happens to a request no device claims
type UnmappedPortPolicy int

const (
	// UnmappedIgnore reads zero and drops writes
	UnmappedIgnore UnmappedPortPolicy = iota
	// UnmappedFatal stops the machine with a *PortError
	UnmappedFatal
)

func ParseUnmappedPolicy(s string) (UnmappedPortPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ignore":
		return UnmappedIgnore, nil
	case "fatal":
		return UnmappedFatal, nil
	}
	return UnmappedIgnore, fmt.Errorf("unknown unmapped port policy %q", s)
}

func (p UnmappedPortPolicy) String() string {
	if p == UnmappedFatal {
		return "fatal"
	}
	return "ignore"
}

// ErrUnmappedPort is wrapped by *PortError
var ErrUnmappedPort = errors.New("unmapped port")

type PortError struct {
	Request PortRequest
}

func (e *PortError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnmappedPort, e.Request)
}

func (e *PortError) Unwrap() error { return ErrUnmappedPort }

// Device is a peripheral attached to the System.
type Device interface {
	Name() string
	// Init runs once before the machine starts.
	Init(sys *System) error
	// Step runs once per loop iteration, before the CPU instruction.
	Step()
	// HandlePort answers a request; claimed is false if the device ignores it.
	HandlePort(req PortRequest) (value uint16, claimed bool)
}

// DeviceHandle serialises all access to one device. The machine loop and
// any observer (GUI, monitor) go through the same handle.
type DeviceHandle struct {
	mu  sync.Mutex
	dev Device
}

func NewDeviceHandle(dev Device) *DeviceHandle {
	return &DeviceHandle{dev: dev}
}

func (h *DeviceHandle) Name() string {
	return h.dev.Name()
}

// With runs fn while holding the device's lock.
func (h *DeviceHandle) With(fn func(dev Device)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.dev)
}

func (h *DeviceHandle) init(sys *System) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.Init(sys)
}

func (h *DeviceHandle) step() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dev.Step()
}

func (h *DeviceHandle) handle(req PortRequest) (uint16, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dev.HandlePort(req)
}

// PortBus routes port requests to devices
type PortBus struct {
	handles []*DeviceHandle
	Policy  UnmappedPortPolicy
}

func NewPortBus(policy UnmappedPortPolicy) *PortBus {
	return &PortBus{Policy: policy}
}

// Attach adds a device at the lowest priority and returns its handle.
func (b *PortBus) Attach(dev Device) *DeviceHandle {
	h := NewDeviceHandle(dev)
	b.handles = append(b.handles, h)
	return h
}

// Handles lists attached devices in priority order
func (b *PortBus) Handles() []*DeviceHandle {
	return b.handles
}

// Dispatch offers req to each device in order.
func (b *PortBus) Dispatch(req PortRequest) (uint16, error) {
	req.Value &= req.Width.mask()
	for _, h := range b.handles {
		if v, ok := h.handle(req); ok {
			logTrace(modPorts, "port access", "req", req.String(), "device", h.Name(), "value", v)
			return v & req.Width.mask(), nil
		}
	}
	if b.Policy == UnmappedFatal {
		return 0, &PortError{Request: req}
	}
	logTrace(modPorts, "unmapped port access ignored", "req", req.String())
	return 0, nil
}

func (b *PortBus) In(port uint16, width PortWidth) (uint16, error) {
	return b.Dispatch(PortRequest{Port: port, Dir: PortIn, Width: width})
}

func (b *PortBus) Out(port uint16, width PortWidth, value uint16) error {
	_, err := b.Dispatch(PortRequest{Port: port, Dir: PortOut, Width: width, Value: value})
	return err
}
