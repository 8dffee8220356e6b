// device_console.go - Bochs-style debug console on port 0xE9
//
// OUT 0xE9 appends a byte to the output buffer, IN 0xE9 returns the next
// queued host key or zero when none is waiting.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"strings"
	"sync"
)

const (
	CONSOLE_PORT = 0xE9

	consoleKeyQueueSize = 256
	consoleOutputLimit  = 64 * 1024
)

// Console is fed by the terminal host goroutine and drained by whichever
// front end is showing the output, so it carries its own lock.
type Console struct {
	mu     sync.Mutex
	keys   []byte
	out    strings.Builder
	scroll strings.Builder // last consoleOutputLimit bytes, for the status window
	total  int
}

func NewConsole() *Console {
	return &Console{}
}

func (c *Console) Name() string            { return "console" }
func (c *Console) Init(sys *System) error { return nil }
func (c *Console) Step()                   {}

func (c *Console) HandlePort(req PortRequest) (uint16, bool) {
	if req.Port != CONSOLE_PORT || req.Width != Width8 {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.Dir == PortOut {
		b := byte(req.Value)
		c.out.WriteByte(b)
		c.appendScroll(b)
		c.total++
		logTrace(modConsole, "out", "byte", b)
		return 0, true
	}
	if len(c.keys) == 0 {
		return 0, true
	}
	k := c.keys[0]
	c.keys = c.keys[1:]
	return uint16(k), true
}

func (c *Console) appendScroll(b byte) {
	if c.scroll.Len() >= consoleOutputLimit {
		tail := c.scroll.String()[consoleOutputLimit/2:]
		c.scroll.Reset()
		c.scroll.WriteString(tail)
	}
	c.scroll.WriteByte(b)
}

// RouteHostKey queues a key for the guest. Keys beyond the queue size are
// dropped.
func (c *Console) RouteHostKey(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.keys) >= consoleKeyQueueSize {
		logWarn(modConsole, "key queue full, dropping", "key", b)
		return
	}
	c.keys = append(c.keys, b)
}

// DrainOutput returns and clears everything written since the last drain.
func (c *Console) DrainOutput() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.out.String()
	c.out.Reset()
	return s
}

// Screen returns recent output without draining it.
func (c *Console) Screen() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scroll.String()
}

// Written returns the total number of bytes the guest has written.
func (c *Console) Written() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
