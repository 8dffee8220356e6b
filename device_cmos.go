// device_cmos.go - CMOS real-time clock on ports 0x70/0x71
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"time"
)

const (
	CMOS_PORT_INDEX = 0x70
	CMOS_PORT_DATA  = 0x71

	CMOS_REG_SECONDS      = 0x00
	CMOS_REG_MINUTES      = 0x02
	CMOS_REG_HOURS        = 0x04
	CMOS_REG_DAY_OF_WEEK  = 0x06
	CMOS_REG_DAY_OF_MONTH = 0x07
	CMOS_REG_MONTH        = 0x08
	CMOS_REG_YEAR         = 0x09
	CMOS_REG_STATUS_A     = 0x0A
	CMOS_REG_STATUS_B     = 0x0B

	cmosResetRegister = 0x0D
	cmosNMIDisable    = 0x80
	cmosUpdating      = 0x80 // status A: update in progress
)

// CMOS is a battery-backed RTC holding 128 registers. Time values are
// binary, not BCD, and the year is two digits.
type CMOS struct {
	selected   byte
	nmiDisable bool
	regs       [128]byte

	clock      func() time.Time
	lastUpdate time.Time
}

// NewCMOS returns a CMOS that reads wall time from clock (time.Now if nil).
func NewCMOS(clock func() time.Time) *CMOS {
	if clock == nil {
		clock = time.Now
	}
	return &CMOS{selected: cmosResetRegister, clock: clock}
}

func (c *CMOS) Name() string { return "cmos" }

func (c *CMOS) Init(sys *System) error {
	c.sync(c.clock())
	return nil
}

// sync loads the time registers from t
func (c *CMOS) sync(t time.Time) {
	c.beginUpdate(t)
	c.regs[CMOS_REG_SECONDS] = byte(t.Second())
	c.regs[CMOS_REG_MINUTES] = byte(t.Minute())
	c.regs[CMOS_REG_HOURS] = byte(t.Hour())
	c.regs[CMOS_REG_DAY_OF_WEEK] = byte(t.Weekday()) + 1
	c.regs[CMOS_REG_DAY_OF_MONTH] = byte(t.Day())
	c.regs[CMOS_REG_MONTH] = byte(t.Month())
	c.regs[CMOS_REG_YEAR] = byte(t.Year() % 100)
	c.endUpdate()
	logDebug(modCMOS, "rtc synced", "time", t.Format(time.DateTime))
}

func (c *CMOS) beginUpdate(t time.Time) {
	c.regs[CMOS_REG_STATUS_A] |= cmosUpdating
	c.lastUpdate = t
}

func (c *CMOS) endUpdate() {
	c.regs[CMOS_REG_STATUS_A] &^= cmosUpdating
}

func cmosDaysInMonth(month, year byte) byte {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 2:
		if year%4 == 0 {
			return 29
		}
		return 28
	}
	return 30
}

// Step advances the clock by one second once a second of wall time has passed.
func (c *CMOS) Step() {
	now := c.clock()
	if now.Sub(c.lastUpdate) < time.Second {
		return
	}

	sec := c.regs[CMOS_REG_SECONDS] + 1
	min := c.regs[CMOS_REG_MINUTES]
	hour := c.regs[CMOS_REG_HOURS]
	dow := c.regs[CMOS_REG_DAY_OF_WEEK]
	dom := c.regs[CMOS_REG_DAY_OF_MONTH]
	month := c.regs[CMOS_REG_MONTH]
	year := c.regs[CMOS_REG_YEAR]

	if sec >= 60 {
		sec = 0
		min++
	}
	if min >= 60 {
		min = 0
		hour++
	}
	if hour >= 24 {
		hour = 0
		dow++
		dom++
	}
	if dow > 7 {
		dow = 1
	}
	if dom > cmosDaysInMonth(month, year) {
		dom = 1
		month++
	}
	if month > 12 {
		month = 1
		year++
	}
	if year > 99 {
		year = 0
	}

	c.beginUpdate(now)
	c.regs[CMOS_REG_SECONDS] = sec
	c.regs[CMOS_REG_MINUTES] = min
	c.regs[CMOS_REG_HOURS] = hour
	c.regs[CMOS_REG_DAY_OF_WEEK] = dow
	c.regs[CMOS_REG_DAY_OF_MONTH] = dom
	c.regs[CMOS_REG_MONTH] = month
	c.regs[CMOS_REG_YEAR] = year
	c.endUpdate()
}

func (c *CMOS) HandlePort(req PortRequest) (uint16, bool) {
	switch req.Key() {
	case OutB(CMOS_PORT_INDEX):
		c.nmiDisable = req.Value&cmosNMIDisable != 0
		c.selected = byte(req.Value) &^ cmosNMIDisable
		logTrace(modCMOS, "register selected", "reg", c.selected, "nmi_disable", c.nmiDisable)
		return 0, true
	case InB(CMOS_PORT_DATA):
		return uint16(c.regs[c.selected]), true
	case OutB(CMOS_PORT_DATA):
		c.regs[c.selected] = byte(req.Value)
		logTrace(modCMOS, "register written", "reg", c.selected, "value", byte(req.Value))
		return 0, true
	}
	return 0, false
}

// Register reads a register directly (status window, tests).
func (c *CMOS) Register(idx byte) byte {
	return c.regs[idx&0x7F]
}

// Selected returns the register the index port points at.
func (c *CMOS) Selected() byte { return c.selected }

// NMIDisabled reports the NMI mask bit last written to the index port.
func (c *CMOS) NMIDisabled() bool { return c.nmiDisable }
