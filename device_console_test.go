package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleOutput(t *testing.T) {
	c := NewConsole()
	for _, b := range []byte("hi\n") {
		_, claimed := c.HandlePort(PortRequest{Port: CONSOLE_PORT, Dir: PortOut, Width: Width8, Value: uint16(b)})
		require.True(t, claimed)
	}

	assert.Equal(t, "hi\n", c.Screen())
	assert.Equal(t, "hi\n", c.DrainOutput())
	assert.Equal(t, "", c.DrainOutput())
	assert.Equal(t, "hi\n", c.Screen(), "drain must not clear the screen")
	assert.Equal(t, 3, c.Written())
}

func TestConsoleKeyQueue(t *testing.T) {
	c := NewConsole()
	in := func() uint16 {
		v, _ := c.HandlePort(PortRequest{Port: CONSOLE_PORT, Dir: PortIn, Width: Width8})
		return v
	}

	assert.Zero(t, in())
	c.RouteHostKey('a')
	c.RouteHostKey('b')
	assert.Equal(t, uint16('a'), in())
	assert.Equal(t, uint16('b'), in())
	assert.Zero(t, in())
}

func TestConsoleKeyQueueFull(t *testing.T) {
	c := NewConsole()
	for i := 0; i < consoleKeyQueueSize+10; i++ {
		c.RouteHostKey(byte(i))
	}

	assert.Len(t, c.keys, consoleKeyQueueSize)
}

func TestConsoleScrollBounded(t *testing.T) {
	c := NewConsole()
	for i := 0; i < consoleOutputLimit+100; i++ {
		c.HandlePort(PortRequest{Port: CONSOLE_PORT, Dir: PortOut, Width: Width8, Value: 'x'})
	}

	assert.LessOrEqual(t, len(c.Screen()), consoleOutputLimit)
	assert.Len(t, c.DrainOutput(), consoleOutputLimit+100)
}

func TestConsoleIgnoresOtherPorts(t *testing.T) {
	c := NewConsole()

	_, claimed := c.HandlePort(PortRequest{Port: CONSOLE_PORT, Dir: PortOut, Width: Width16, Value: 'x'})
	assert.False(t, claimed)
	_, claimed = c.HandlePort(PortRequest{Port: 0xE8, Dir: PortIn, Width: Width8})
	assert.False(t, claimed)
}

func TestConsoleHelloWorldProgram(t *testing.T) {
	// MOV SI, msg; LODSB; OR AL, AL; JZ done; OUT E9, AL; JMP loop; done: HLT
	code := []byte{
		0xBE, 0x0F, 0x00, // 0000: MOV SI, 000F
		0xAC,       // 0003: LODSB
		0x08, 0xC0, // 0004: OR AL, AL
		0x74, 0x04, // 0006: JZ 000C
		0xE6, 0xE9, // 0008: OUT E9, AL
		0xEB, 0xF7, // 000A: JMP 0003
		0xF4,             // 000C: HLT
		0x90, 0x90,       // 000D
		'O', 'K', '\n', 0, // 000F
	}
	mem := NewAddressSpace(X86_MEMORY_SIZE)
	require.NoError(t, mem.MapFull("ram", NewRAM(X86_MEMORY_SIZE)))
	mem.Load(0x10000, code)
	sys := NewSystem(mem, UnmappedFatal)
	con := NewConsole()
	sys.AddDevice(con)
	require.NoError(t, sys.Init())
	sys.ExitOnHalt = true

	sys.WithLock(func() {
		sys.CPU.SetSeg(x86SegCS, 0x1000)
		sys.CPU.SetSeg(x86SegDS, 0x1000)
		sys.CPU.IP = 0
	})
	assert.ErrorIs(t, sys.Resume(context.Background()), ErrHalted)
	assert.Equal(t, "OK\n", con.DrainOutput())
}

func TestTranslateHostKey(t *testing.T) {
	assert.Equal(t, byte('\n'), translateHostKey('\r'))
	assert.Equal(t, byte(0x08), translateHostKey(0x7F))
	assert.Equal(t, byte('q'), translateHostKey('q'))
}

func TestWriteConsoleOutputCRLF(t *testing.T) {
	var buf bytes.Buffer
	writeConsoleOutput(&buf, "a\nb\r\nc")
	assert.Equal(t, "a\r\nb\r\nc", buf.String())

	buf.Reset()
	writeConsoleOutput(&buf, "")
	assert.Zero(t, buf.Len())
}

func TestPumpConsoleFlushesOnCancel(t *testing.T) {
	c := NewConsole()
	c.HandlePort(PortRequest{Port: CONSOLE_PORT, Dir: PortOut, Width: Width8, Value: 'z'})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf strings.Builder
	require.NoError(t, PumpConsole(ctx, c, &buf))
	assert.Equal(t, "z", buf.String())
}
