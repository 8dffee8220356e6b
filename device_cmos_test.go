package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCMOS(t *testing.T, start time.Time) (*CMOS, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: start}
	c := NewCMOS(clk.Now)
	require.NoError(t, c.Init(nil))
	return c, clk
}

func cmosRead(c *CMOS, reg byte) byte {
	c.HandlePort(PortRequest{Port: CMOS_PORT_INDEX, Dir: PortOut, Width: Width8, Value: uint16(reg)})
	v, _ := c.HandlePort(PortRequest{Port: CMOS_PORT_DATA, Dir: PortIn, Width: Width8})
	return byte(v)
}

func TestCMOSInitFromClock(t *testing.T) {
	c, _ := newTestCMOS(t, time.Date(2026, time.March, 14, 15, 9, 26, 0, time.UTC))

	assert.Equal(t, byte(26), cmosRead(c, CMOS_REG_SECONDS))
	assert.Equal(t, byte(9), cmosRead(c, CMOS_REG_MINUTES))
	assert.Equal(t, byte(15), cmosRead(c, CMOS_REG_HOURS))
	assert.Equal(t, byte(14), cmosRead(c, CMOS_REG_DAY_OF_MONTH))
	assert.Equal(t, byte(3), cmosRead(c, CMOS_REG_MONTH))
	assert.Equal(t, byte(26), cmosRead(c, CMOS_REG_YEAR))
	// Saturday is day 7
	assert.Equal(t, byte(7), cmosRead(c, CMOS_REG_DAY_OF_WEEK))
	assert.Zero(t, cmosRead(c, CMOS_REG_STATUS_A)&cmosUpdating)
}

func TestCMOSTicksOncePerSecond(t *testing.T) {
	c, clk := newTestCMOS(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))

	clk.Advance(500 * time.Millisecond)
	c.Step()
	assert.Equal(t, byte(0), c.Register(CMOS_REG_SECONDS))

	clk.Advance(600 * time.Millisecond)
	c.Step()
	assert.Equal(t, byte(1), c.Register(CMOS_REG_SECONDS))

	c.Step()
	assert.Equal(t, byte(1), c.Register(CMOS_REG_SECONDS))
}

func TestCMOSRollover(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		want  [6]byte // sec min hour dom month year
	}{
		{"minute", time.Date(2026, 5, 10, 12, 30, 59, 0, time.UTC), [6]byte{0, 31, 12, 10, 5, 26}},
		{"day", time.Date(2026, 5, 10, 23, 59, 59, 0, time.UTC), [6]byte{0, 0, 0, 11, 5, 26}},
		{"30-day month", time.Date(2026, 4, 30, 23, 59, 59, 0, time.UTC), [6]byte{0, 0, 0, 1, 5, 26}},
		{"february", time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC), [6]byte{0, 0, 0, 1, 3, 26}},
		{"leap february", time.Date(2028, 2, 28, 23, 59, 59, 0, time.UTC), [6]byte{0, 0, 0, 29, 2, 28}},
		{"year", time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC), [6]byte{0, 0, 0, 1, 1, 27}},
		{"century", time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC), [6]byte{0, 0, 0, 1, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clk := newTestCMOS(t, tt.start)
			clk.Advance(time.Second)
			c.Step()

			got := [6]byte{
				c.Register(CMOS_REG_SECONDS), c.Register(CMOS_REG_MINUTES), c.Register(CMOS_REG_HOURS),
				c.Register(CMOS_REG_DAY_OF_MONTH), c.Register(CMOS_REG_MONTH), c.Register(CMOS_REG_YEAR),
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCMOSDayOfWeekWraps(t *testing.T) {
	// Saturday 23:59:59 rolls to Sunday (1)
	c, clk := newTestCMOS(t, time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC))
	clk.Advance(time.Second)
	c.Step()

	assert.Equal(t, byte(1), c.Register(CMOS_REG_DAY_OF_WEEK))
}

func TestCMOSIndexPortNMIBit(t *testing.T) {
	c, _ := newTestCMOS(t, time.Now())

	_, claimed := c.HandlePort(PortRequest{Port: CMOS_PORT_INDEX, Dir: PortOut, Width: Width8, Value: 0x8B})
	require.True(t, claimed)
	assert.Equal(t, byte(CMOS_REG_STATUS_B), c.Selected())
	assert.True(t, c.NMIDisabled())

	cmosRead(c, 0x0B)
	assert.False(t, c.NMIDisabled())
}

func TestCMOSScratchRegisters(t *testing.T) {
	c, _ := newTestCMOS(t, time.Now())

	c.HandlePort(PortRequest{Port: CMOS_PORT_INDEX, Dir: PortOut, Width: Width8, Value: 0x40})
	c.HandlePort(PortRequest{Port: CMOS_PORT_DATA, Dir: PortOut, Width: Width8, Value: 0x5A})
	assert.Equal(t, byte(0x5A), cmosRead(c, 0x40))
}

func TestCMOSIgnoresOtherPorts(t *testing.T) {
	c, _ := newTestCMOS(t, time.Now())

	_, claimed := c.HandlePort(PortRequest{Port: CMOS_PORT_INDEX, Dir: PortIn, Width: Width8})
	assert.False(t, claimed)
	_, claimed = c.HandlePort(PortRequest{Port: CMOS_PORT_DATA, Dir: PortIn, Width: Width16})
	assert.False(t, claimed)
}
