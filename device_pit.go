// device_pit.go - 8253 programmable interval timer on ports 0x40-0x43
//
// Channel 0 raises IRQ0 at terminal count. Channel 2 is gated by port 0x61
// and drives the PC speaker. The counters advance a fixed number of ticks
// per machine loop iteration rather than at the real 1.19MHz rate.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const (
	PIT_PORT_CHANNEL0 = 0x40
	PIT_PORT_CHANNEL2 = 0x42
	PIT_PORT_COMMAND  = 0x43

	PIT_INPUT_HZ = 1193182

	DEFAULT_PIT_TICKS_PER_STEP = 3
)

// Access modes from control word bits 4-5
const (
	pitAccessLatch = iota
	pitAccessLo
	pitAccessHi
	pitAccessLoHi
)

type pitChannel struct {
	reload  uint16 // 0 means 65536
	count   uint16
	mode    byte
	access  byte
	armed   bool
	gate    bool
	output  bool
	fired   bool
	writeHi bool
	readHi  bool

	latched bool
	latch   uint16
}

func (ch *pitChannel) period() uint32 {
	if ch.reload == 0 {
		return 0x10000
	}
	return uint32(ch.reload)
}

// tick advances the counter by one input clock and reports a terminal
// count that should raise an interrupt. Square wave mode counts by two and
// interrupts on the rising edge only.
func (ch *pitChannel) tick() bool {
	if !ch.armed || !ch.gate {
		return false
	}
	dec := uint16(1)
	square := ch.mode == 3 || ch.mode == 7
	if square {
		dec = 2
	}
	if ch.count == 0 || ch.count > dec {
		ch.count -= dec
		return false
	}

	switch {
	case square:
		ch.count = ch.reload
		ch.output = !ch.output
		return ch.output
	case ch.mode == 2 || ch.mode == 6:
		ch.count = ch.reload
		return true
	default:
		// one-shot modes fire once then keep counting
		ch.count = 0
		if ch.fired {
			return false
		}
		ch.fired = true
		ch.output = true
		return true
	}
}

func (ch *pitChannel) writeCount(v byte) {
	switch ch.access {
	case pitAccessLo:
		ch.reload = ch.reload&0xFF00 | uint16(v)
	case pitAccessHi:
		ch.reload = ch.reload&0x00FF | uint16(v)<<8
	default:
		if !ch.writeHi {
			ch.reload = ch.reload&0xFF00 | uint16(v)
			ch.writeHi = true
			return
		}
		ch.reload = ch.reload&0x00FF | uint16(v)<<8
		ch.writeHi = false
	}
	ch.count = ch.reload
	ch.armed = true
	ch.fired = false
	ch.output = ch.mode != 0
}

func (ch *pitChannel) readCount() byte {
	v := ch.count
	if ch.latched {
		v = ch.latch
	}
	switch ch.access {
	case pitAccessLo:
		ch.latched = false
		return byte(v)
	case pitAccessHi:
		ch.latched = false
		return byte(v >> 8)
	}
	if !ch.readHi {
		ch.readHi = true
		return byte(v)
	}
	ch.readHi = false
	ch.latched = false
	return byte(v >> 8)
}

// PIT is the three-channel interval timer.
type PIT struct {
	ch           [3]pitChannel
	TicksPerStep int

	sys *System
}

func NewPIT(ticksPerStep int) *PIT {
	if ticksPerStep <= 0 {
		ticksPerStep = DEFAULT_PIT_TICKS_PER_STEP
	}
	p := &PIT{TicksPerStep: ticksPerStep}
	p.ch[0].gate = true
	p.ch[1].gate = true
	return p
}

func (p *PIT) Name() string { return "pit" }

func (p *PIT) Init(sys *System) error {
	p.sys = sys
	return nil
}

func (p *PIT) Step() {
	for i := 0; i < p.TicksPerStep; i++ {
		if p.ch[0].tick() && p.sys != nil {
			p.sys.RaiseIRQ(0)
		}
		p.ch[1].tick()
		p.ch[2].tick()
	}
}

func (p *PIT) HandlePort(req PortRequest) (uint16, bool) {
	if req.Width != Width8 || req.Port < PIT_PORT_CHANNEL0 || req.Port > PIT_PORT_COMMAND {
		return 0, false
	}
	idx := int(req.Port - PIT_PORT_CHANNEL0)
	if req.Port == PIT_PORT_COMMAND {
		if req.Dir == PortOut {
			p.control(byte(req.Value))
		}
		return 0, true
	}
	if req.Dir == PortOut {
		p.ch[idx].writeCount(byte(req.Value))
		return 0, true
	}
	return uint16(p.ch[idx].readCount()), true
}

func (p *PIT) control(v byte) {
	sel := v >> 6
	if sel == 3 {
		return // read-back is an 8254 feature
	}
	ch := &p.ch[sel]
	access := (v >> 4) & 3
	if access == pitAccessLatch {
		ch.latched = true
		ch.latch = ch.count
		return
	}
	ch.access = access
	ch.mode = (v >> 1) & 7
	ch.armed = false
	ch.writeHi = false
	ch.readHi = false
	logTrace(modPIT, "channel programmed", "channel", sel, "mode", ch.mode, "access", access)
}

// SetGate drives a channel's gate input (channel 2 from port 0x61).
func (p *PIT) SetGate(channel int, on bool) {
	if channel < 0 || channel > 2 {
		return
	}
	ch := &p.ch[channel]
	if on && !ch.gate && ch.armed && (ch.mode == 1 || ch.mode == 5) {
		ch.count = ch.reload
	}
	ch.gate = on
}

// Output returns the current OUT pin of a channel.
func (p *PIT) Output(channel int) bool {
	return p.ch[channel].output
}

// Frequency returns the output frequency of a channel in Hz, or zero when
// the channel is not counting.
func (p *PIT) Frequency(channel int) float64 {
	ch := &p.ch[channel]
	if !ch.armed {
		return 0
	}
	return float64(PIT_INPUT_HZ) / float64(ch.period())
}

// Reload returns the programmed reload value of a channel.
func (p *PIT) Reload(channel int) uint16 {
	return p.ch[channel].reload
}

// Channel returns the mode, current count and gate of a channel.
func (p *PIT) Channel(channel int) (mode byte, count uint16, gate bool) {
	ch := &p.ch[channel]
	return ch.mode, ch.count, ch.gate
}
