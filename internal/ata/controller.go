/*
 * axpbox-sub000 - ALI M1543C IDE controller state.
 *
 * Copyright 2026, the axpbox-sub000 authors.
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package ata emulates the ALI M1543C legacy storage controller: two
// channels of two devices each, an ATA-5 register file behind the legacy
// I/O ports, the command sequencer, the ATAPI packet state machine, and
// the busmaster PRD DMA engine. Each channel runs a sequencer worker and a
// busmaster worker; the MMIO dispatcher only touches channel state between
// commands, arbitrated by the per-channel mutex pair.
package ata

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lenticularis39/axpbox-sub000/internal/media"
	"github.com/lenticularis39/axpbox-sub000/internal/memory"
	"github.com/lenticularis39/axpbox-sub000/internal/scsi"
)

// 64K words: 256 sectors of 512 bytes, the largest single PIO/DMA burst.
const dataBufferWords = 65536

const maxMultipleSectors = 128

// ATAPI interrupt-reason bits, aliased onto the sector count register.
const (
	irCD = 0x01
	irIO = 0x02
)

// Packet protocol states.
type packetPhase int

const (
	packetNone packetPhase = iota
	packetDP1
	packetDP2
	packetDP34
	packetDI
)

// driveStatus is the per-device status latch. The ATAPI names overlay the
// ATA bits: DMRD on fault, SERV on seek-complete, CHK on err.
type driveStatus struct {
	busy          bool
	driveReady    bool
	fault         bool
	seekComplete  bool
	drq           bool
	indexPulse    bool
	err           bool
	indexPulseCnt int
}

// driveRegs is the per-device register file. REASON aliases sectorCount
// and BYTE COUNT aliases cylinderNo while a packet command is live.
type driveRegs struct {
	lbaMode     bool
	features    uint8
	error       uint8
	sectorCount int
	sectorNo    int
	cylinderNo  int
	headNo      int
}

// driveCmd is the per-device command context.
type driveCmd struct {
	inProgress   bool
	current      uint8
	cycle        int
	packetDMA    bool
	packetPhase  packetPhase
	packetCmd    [12]byte
	packetBufLen int
}

// drive couples the register state with the attached media and its SCSI
// target engine (for ATAPI devices).
type drive struct {
	status driveStatus
	regs   driveRegs
	cmd    driveCmd

	multipleSize int

	disk   media.Backend
	target *scsi.Disk
	model  string
	serial string
	rev    string
}

type dmaRequest struct {
	buffer    []byte
	toDisk    bool // true: guest memory -> buffer (ATA write)
	completed chan int
}

// channel is one of the controller's two cables.
type channel struct {
	index int

	selected        int
	reset           bool
	disableIRQ      bool
	resetInProgress bool
	irqPending      bool

	busmaster [8]byte
	dmaMode   int

	data     [dataBufferWords]uint16
	dataPtr  int
	dataSize int

	drives [2]drive

	scsiBus *scsi.Bus

	// regMu guards the alt-status snapshot; bmMu guards the busmaster
	// register bytes against the busmaster worker's PRD reads.
	regMu     sync.RWMutex
	bmMu      sync.RWMutex
	altStatus uint8

	kick    chan struct{}
	ready   chan struct{}
	bmKick  chan struct{}
	bmReady chan struct{}
	dmaReq  chan dmaRequest
}

// Interrupt is the controller's upward IRQ edge: channel 0 asserts line
// 14-equivalent, channel 1 the next one. cmd/axpbox wires this to the
// CPU's external IRQ lines via the interrupt router.
type Interrupt interface {
	Assert(channel int)
	Deassert(channel int)
}

// Controller is the single IDE controller instance. Configuring a
// second one is a configuration error caught at wiring time.
type Controller struct {
	mem memory.Fabric
	irq Interrupt
	log *slog.Logger

	channels [2]channel

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	dead [2]atomic.Bool

	// refireGrace, when non-zero, re-raises an interrupt the OS failed
	// to acknowledge within the grace period.
	refireGrace time.Duration
}

// NewController wires a controller to the memory fabric and interrupt
// router.
func NewController(mem memory.Fabric, irq Interrupt, log *slog.Logger) *Controller {
	c := &Controller{mem: mem, irq: irq, log: log, stop: make(chan struct{})}
	for i := range c.channels {
		ch := &c.channels[i]
		ch.index = i
		ch.scsiBus = scsi.NewBus()
		ch.kick = make(chan struct{}, 1)
		ch.ready = make(chan struct{}, 1)
		ch.bmKick = make(chan struct{}, 1)
		ch.bmReady = make(chan struct{}, 1)
		ch.dmaReq = make(chan dmaRequest, 1)
		ch.ready <- struct{}{}
		ch.bmReady <- struct{}{}
	}
	c.Reset()
	return c
}

// RegisterDisk attaches a media backend as device dev on the given
// channel. ATAPI (CD-ROM) devices also get a SCSI target on the channel's
// private bus, selected by device index.
func (c *Controller) RegisterDisk(chIdx, dev int, disk media.Backend, model, serial, rev string) {
	ch := &c.channels[chIdx]
	d := &ch.drives[dev]
	d.disk = disk
	d.model = model
	d.serial = serial
	d.rev = rev
	d.multipleSize = 1
	if disk.IsCDROM() {
		d.target = scsi.NewDisk(disk)
		ch.scsiBus.Register(dev, d.target)
	}
	c.setSignature(ch, dev)
}

// Reset restores the power-on register contents on both channels.
func (c *Controller) Reset() {
	for i := range c.channels {
		ch := &c.channels[i]
		ch.busmaster = [8]byte{}
		ch.selected = 0
		for j := range ch.drives {
			d := &ch.drives[j]
			d.regs.error = 0
			d.cmd = driveCmd{}
			d.status = driveStatus{}
			if d.multipleSize == 0 {
				d.multipleSize = 1
			}
			c.setSignature(ch, j)
		}
		c.updateAltStatus(ch)
	}
}

func (c *Controller) selDrive(ch *channel) *drive {
	return &ch.drives[ch.selected]
}

func (c *Controller) hasDisk(ch *channel, dev int) bool {
	return ch.drives[dev].disk != nil
}

// setSignature asserts the post-reset device signature: packet devices
// report 0xEB14 in the cylinder registers, plain disks 0x0000, empty
// slots 0xFFFF.
func (c *Controller) setSignature(ch *channel, dev int) {
	d := &ch.drives[dev]
	d.regs.headNo = 0
	d.regs.sectorCount = 1
	d.regs.sectorNo = 1
	switch {
	case d.disk == nil:
		d.regs.cylinderNo = 0xffff
	case d.disk.IsCDROM():
		d.regs.cylinderNo = 0xeb14
	default:
		d.regs.cylinderNo = 0
		ch.selected = 0
	}
}

// statusByte composes the guest-visible status register for a guest
// status read, which also advances the index-pulse counter.
func (c *Controller) statusByte(ch *channel) uint8 {
	return c.composeStatus(ch, true)
}

// composeStatus builds the status byte; advance steps the index-pulse
// counter.
func (c *Controller) composeStatus(ch *channel, advance bool) uint8 {
	if c.selDrive(ch).disk == nil {
		return 0
	}
	st := &c.selDrive(ch).status
	var data uint8
	if st.busy {
		data |= 0x80
	}
	if st.driveReady {
		data |= 0x40
	}
	if st.fault {
		data |= 0x20
	}
	if st.seekComplete {
		data |= 0x10
	}
	if st.drq {
		data |= 0x08
	}
	if st.indexPulse {
		data |= 0x02
	}
	if st.err {
		data |= 0x01
	}
	if advance {
		st.indexPulseCnt++
		st.indexPulse = false
		if st.indexPulseCnt >= 10 {
			st.indexPulseCnt = 0
			st.indexPulse = true
		}
	}
	return data
}

// updateAltStatus refreshes the latched alt-status snapshot. Called only
// at quiescent points so polling loops read a stable byte.
func (c *Controller) updateAltStatus(ch *channel) {
	ch.regMu.Lock()
	ch.altStatus = c.composeStatus(ch, false)
	ch.regMu.Unlock()
}

// SetRefireGrace enables re-raising an unacknowledged interrupt after
// the grace period; zero disables the workaround.
func (c *Controller) SetRefireGrace(d time.Duration) {
	c.refireGrace = d
}

// raiseInterrupt latches the busmaster interrupt bit and pulses the IRQ
// line, unless the guest disabled interrupts on this channel. Sequencer
// state is made guest-visible before the pulse.
func (c *Controller) raiseInterrupt(ch *channel) {
	if ch.disableIRQ {
		return
	}
	ch.bmMu.Lock()
	ch.busmaster[2] |= 0x04
	ch.irqPending = true
	ch.bmMu.Unlock()
	c.updateAltStatus(ch)
	c.irq.Assert(ch.index)

	if c.refireGrace > 0 {
		time.AfterFunc(c.refireGrace, func() {
			ch.bmMu.Lock()
			pending := ch.irqPending
			ch.bmMu.Unlock()
			if pending {
				c.irq.Assert(ch.index)
			}
		})
	}
}

// ackInterrupt records the guest's status-read acknowledge.
func (c *Controller) ackInterrupt(ch *channel) {
	ch.bmMu.Lock()
	ch.irqPending = false
	ch.bmMu.Unlock()
	c.irq.Deassert(ch.index)
}

// commandAborted reflects an unsupported or failed command back to the
// guest: ERR plus ABRT, DRQ off, one interrupt.
func (c *Controller) commandAborted(ch *channel, cmd uint8) {
	c.log.Debug("ata: command aborted", "channel", ch.index,
		"device", ch.selected, "command", cmd)
	d := c.selDrive(ch)
	d.status.busy = false
	d.status.driveReady = true
	d.status.err = true
	d.status.drq = false
	d.regs.error |= 0x04
	ch.dataPtr = 0
	d.cmd.inProgress = false
	c.updateAltStatus(ch)
	c.raiseInterrupt(ch)
}
