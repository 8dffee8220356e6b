// cpu_x86_runner.go - x86 machine runner
//
// Runs a System on its own goroutine so front ends (monitor, status window,
// terminal host) can start, stop and single-step it.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// CPUX86Runner manages execution of one System
type CPUX86Runner struct {
	sys *System

	// Program entry, when a raw program was loaded instead of booting a ROM
	entryCS, entryIP uint16
	hasEntry         bool
	// primed is set once the CPU state was placed by hand (Reset, monitor),
	// so Run continues from it instead of resetting.
	primed bool

	// Performance monitoring
	PerfEnabled    bool // Enable MIPS reporting
	perfStartTime  time.Time
	perfStartCount uint64

	execMu     sync.Mutex
	execDone   chan struct{}
	execActive bool
	cancel     context.CancelFunc
	lastErr    error

	// OnStop is called from the run goroutine when execution ends on its
	// own (halt, breakpoint, fault). It is not called for Stop.
	OnStop func(err error)
}

// NewCPUX86Runner creates a runner for an initialised System
func NewCPUX86Runner(sys *System) *CPUX86Runner {
	return &CPUX86Runner{sys: sys}
}

// LoadProgramData copies a raw program to seg:off and makes it the entry
// point, bypassing the reset vector.
func (r *CPUX86Runner) LoadProgramData(data []byte, seg, off uint16) error {
	if len(data) > X86_MEMORY_SIZE {
		return fmt.Errorf("program too large: %d bytes", len(data))
	}
	r.sys.WithLock(func() {
		r.sys.Memory.Load(Linear(seg, off), data)
		r.entryCS, r.entryIP, r.hasEntry = seg, off, true
		r.placeEntry()
	})
	logInfo(modSystem, "program loaded", "bytes", len(data), "at", formatSegOff(seg, off))
	return nil
}

// LoadProgram loads a raw program file to seg:off
func (r *CPUX86Runner) LoadProgram(filename string, seg, off uint16) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return r.LoadProgramData(data, seg, off)
}

// placeEntry points CS:IP at the loaded program with a stack below it.
// Callers hold the system lock.
func (r *CPUX86Runner) placeEntry() {
	c := r.sys.CPU
	c.SetSeg(x86SegCS, r.entryCS)
	c.SetSeg(x86SegDS, r.entryCS)
	c.SetSeg(x86SegES, r.entryCS)
	c.SetSeg(x86SegSS, r.entryCS)
	c.SetSP(0xFFFE)
	c.IP = r.entryIP
}

// Reset puts the CPU back at the reset vector, or at the loaded program.
func (r *CPUX86Runner) Reset() {
	r.sys.WithLock(func() {
		r.sys.CPU.Reset()
		if r.hasEntry {
			r.placeEntry()
		}
	})
	r.primed = true
}

// Run executes on the calling goroutine until ctx ends or the machine stops.
// A cancelled context is a clean stop and returns nil.
func (r *CPUX86Runner) Run(ctx context.Context) error {
	if r.PerfEnabled {
		ctx2, stop := context.WithCancel(ctx)
		defer stop()
		ctx = ctx2
		go r.reportPerf(ctx)
	}

	var err error
	if r.hasEntry || r.primed || r.sys.CPU.Decoded > 0 {
		err = r.sys.Resume(ctx)
	} else {
		err = r.sys.Start(ctx)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *CPUX86Runner) reportPerf(ctx context.Context) {
	r.perfStartTime = time.Now()
	r.perfStartCount = r.sys.Snapshot().Decoded
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			count := r.sys.Snapshot().Decoded - r.perfStartCount
			elapsed := now.Sub(r.perfStartTime).Seconds()
			mips := float64(count) / elapsed / 1_000_000
			fmt.Printf("x86: %.2f MIPS (%.0f instructions in %.1fs)\n", mips, float64(count), elapsed)
		}
	}
}

// Step executes a single loop iteration
func (r *CPUX86Runner) Step() error {
	return r.sys.StepOnce()
}

// System returns the machine being run
func (r *CPUX86Runner) System() *System {
	return r.sys
}

// IsRunning returns whether the run goroutine is active
func (r *CPUX86Runner) IsRunning() bool {
	r.execMu.Lock()
	defer r.execMu.Unlock()
	return r.execActive
}

// Err returns the error that ended the last background run, if any
func (r *CPUX86Runner) Err() error {
	r.execMu.Lock()
	defer r.execMu.Unlock()
	return r.lastErr
}

func (r *CPUX86Runner) StartExecution() {
	r.execMu.Lock()
	defer r.execMu.Unlock()
	if r.execActive {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.execActive = true
	r.cancel = cancel
	r.lastErr = nil
	r.execDone = make(chan struct{})
	r.sys.CPU.SetRunning(true)
	go func() {
		err := r.Run(ctx)
		stopped := ctx.Err() != nil
		r.execMu.Lock()
		r.execActive = false
		r.lastErr = err
		r.sys.CPU.SetRunning(false)
		onStop := r.OnStop
		done := r.execDone
		r.execMu.Unlock()
		cancel()
		// OnStop runs before done closes so Wait observes its effects.
		if !stopped && onStop != nil {
			onStop(err)
		}
		close(done)
	}()
}

func (r *CPUX86Runner) Stop() {
	r.execMu.Lock()
	if !r.execActive {
		r.execMu.Unlock()
		return
	}
	r.cancel()
	done := r.execDone
	r.execMu.Unlock()
	<-done
}

// Wait blocks until the background run ends and returns its error
func (r *CPUX86Runner) Wait() error {
	r.execMu.Lock()
	done := r.execDone
	r.execMu.Unlock()
	if done != nil {
		<-done
	}
	return r.Err()
}
