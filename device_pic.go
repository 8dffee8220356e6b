// device_pic.go - Dual 8259A programmable interrupt controller
//
// Master on 0x20/0x21, slave on 0xA0/0xA1 cascaded into master IRQ2.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

const (
	PIC_MASTER_COMMAND = 0x20
	PIC_MASTER_DATA    = 0x21
	PIC_SLAVE_COMMAND  = 0xA0
	PIC_SLAVE_DATA     = 0xA1

	picCascadeLine = 2

	// Vector bases the PC BIOS programs, used until the guest sends ICW2
	picMasterDefaultBase = 0x08
	picSlaveDefaultBase  = 0x70
)

// ICW1 and OCW bits
const (
	picICW1Init   = 0x10
	picICW1ICW4   = 0x01
	picICW1Single = 0x02
	picICW4AEOI   = 0x02
	picOCW3       = 0x08
	picOCW3ReadRR = 0x02
	picOCW3RIS    = 0x01
	picOCW2EOI    = 0x20
	picOCW2SL     = 0x40
)

// Initialisation sequence position: which word the data port expects next
const (
	picReady = iota
	picAwaitICW2
	picAwaitICW3
	picAwaitICW4
)

// pic8259 is one controller chip
type pic8259 struct {
	name         string
	vectorOffset byte
	imr, irr     byte
	isr          byte
	readISR      bool
	autoEOI      bool
	icw3         byte

	await    int
	needICW3 bool
	needICW4 bool
}

func (p *pic8259) command(v byte) {
	switch {
	case v&picICW1Init != 0:
		p.needICW4 = v&picICW1ICW4 != 0
		p.needICW3 = v&picICW1Single == 0
		p.await = picAwaitICW2
		p.imr, p.isr, p.irr = 0, 0, 0
		p.readISR = false
		p.autoEOI = false
		logDebug(modPIC, "ICW1", "pic", p.name, "icw4", p.needICW4, "cascade", p.needICW3)
	case v&picOCW3 != 0:
		if v&picOCW3ReadRR != 0 {
			p.readISR = v&picOCW3RIS != 0
		}
	default:
		if v&picOCW2EOI == 0 {
			return // rotate and priority commands are not modelled
		}
		if v&picOCW2SL != 0 {
			p.isr &^= 1 << (v & 7)
			return
		}
		p.isr &^= lowestBit(p.isr)
	}
}

func (p *pic8259) data(v byte) {
	switch p.await {
	case picAwaitICW2:
		p.vectorOffset = v &^ 7
		p.await = p.after(picAwaitICW3)
		logDebug(modPIC, "ICW2", "pic", p.name, "base", p.vectorOffset)
	case picAwaitICW3:
		p.icw3 = v
		p.await = p.after(picAwaitICW4)
	case picAwaitICW4:
		p.autoEOI = v&picICW4AEOI != 0
		p.await = picReady
	default:
		p.imr = v
		logTrace(modPIC, "mask set", "pic", p.name, "imr", v)
	}
}

// after returns the first word at or past next that the ICW1 asked for
func (p *pic8259) after(next int) int {
	if next == picAwaitICW3 && !p.needICW3 {
		next = picAwaitICW4
	}
	if next == picAwaitICW4 && !p.needICW4 {
		next = picReady
	}
	return next
}

func (p *pic8259) readCommand() byte {
	if p.readISR {
		return p.isr
	}
	return p.irr
}

// pending returns the highest-priority unmasked request that outranks
// everything in service.
func (p *pic8259) pending() (byte, bool) {
	req := p.irr &^ p.imr
	if req == 0 {
		return 0, false
	}
	line := bitIndex(lowestBit(req))
	if p.isr != 0 && line >= bitIndex(lowestBit(p.isr)) {
		return 0, false
	}
	return line, true
}

func (p *pic8259) ack(line byte) {
	p.irr &^= 1 << line
	if !p.autoEOI {
		p.isr |= 1 << line
	}
}

func lowestBit(v byte) byte { return v & -v }

func bitIndex(bit byte) byte {
	var n byte
	for bit > 1 {
		bit >>= 1
		n++
	}
	return n
}

// DualPIC is the AT-style master/slave pair.
type DualPIC struct {
	master pic8259
	slave  pic8259
}

func NewDualPIC() *DualPIC {
	return &DualPIC{
		master: pic8259{name: "master", vectorOffset: picMasterDefaultBase},
		slave:  pic8259{name: "slave", vectorOffset: picSlaveDefaultBase},
	}
}

func (d *DualPIC) Name() string            { return "pic" }
func (d *DualPIC) Init(sys *System) error { return nil }
func (d *DualPIC) Step()                   {}

func (d *DualPIC) HandlePort(req PortRequest) (uint16, bool) {
	v := byte(req.Value)
	switch req.Key() {
	case OutB(PIC_MASTER_COMMAND):
		d.master.command(v)
	case OutB(PIC_MASTER_DATA):
		d.master.data(v)
	case OutB(PIC_SLAVE_COMMAND):
		d.slave.command(v)
	case OutB(PIC_SLAVE_DATA):
		d.slave.data(v)
	case InB(PIC_MASTER_COMMAND):
		return uint16(d.master.readCommand()), true
	case InB(PIC_MASTER_DATA):
		return uint16(d.master.imr), true
	case InB(PIC_SLAVE_COMMAND):
		return uint16(d.slave.readCommand()), true
	case InB(PIC_SLAVE_DATA):
		return uint16(d.slave.imr), true
	default:
		return 0, false
	}
	return 0, true
}

// RaiseIRQ latches request line 0-15. Lines 8-15 arrive through the slave.
func (d *DualPIC) RaiseIRQ(line int) {
	switch {
	case line >= 0 && line < 8:
		d.master.irr |= 1 << line
	case line >= 8 && line < 16:
		d.slave.irr |= 1 << (line - 8)
	default:
		return
	}
	logTrace(modPIC, "irq raised", "line", line)
}

// PendingInterrupt acknowledges the highest-priority request and returns
// its vector.
func (d *DualPIC) PendingInterrupt() (byte, bool) {
	if _, ok := d.slave.pending(); ok {
		d.master.irr |= 1 << picCascadeLine
	} else {
		d.master.irr &^= 1 << picCascadeLine
	}

	line, ok := d.master.pending()
	if !ok {
		return 0, false
	}
	if line == picCascadeLine {
		sl, _ := d.slave.pending()
		d.master.ack(line)
		d.slave.ack(sl)
		return d.slave.vectorOffset + sl, true
	}
	d.master.ack(line)
	return d.master.vectorOffset + line, true
}

// VectorOffsets returns the ICW2 bases of master and slave.
func (d *DualPIC) VectorOffsets() (master, slave byte) {
	return d.master.vectorOffset, d.slave.vectorOffset
}

// Registers returns IRR, ISR and IMR of master (index 0) or slave (index 1).
func (d *DualPIC) Registers(chip int) (irr, isr, imr byte) {
	p := &d.master
	if chip == 1 {
		p = &d.slave
	}
	return p.irr, p.isr, p.imr
}
