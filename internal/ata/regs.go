/*
 * axpbox-sub000 - IDE register file and legacy port dispatch.
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

package ata

import (
	"github.com/lenticularis39/axpbox-sub000/internal/device"
	"github.com/lenticularis39/axpbox-sub000/internal/pci"
)

// Command block register offsets (ATA-5).
const (
	regData        = 0
	regErrFeatures = 1
	regSectorCount = 2
	regSectorNo    = 3
	regCylLow      = 4
	regCylHigh     = 5
	regDriveHead   = 6
	regStatusCmd   = 7
)

// Legacy port bases.
const (
	PriCommandBase   = 0x1f0
	PriControlBase   = 0x3f6
	SecCommandBase   = 0x170
	SecControlBase   = 0x376
	PriBusmasterBase = 0xf000
	SecBusmasterBase = 0xf008
)

type regionKind int

const (
	regionCommand regionKind = iota
	regionControl
	regionBusmaster
)

type ioRegion struct {
	c    *Controller
	ch   int
	kind regionKind
}

func (r *ioRegion) ReadIO(offset uint32, widthBits int) (uint32, error) {
	switch r.kind {
	case regionCommand:
		return r.c.commandRead(&r.c.channels[r.ch], offset, widthBits)
	case regionControl:
		return r.c.controlRead(&r.c.channels[r.ch], offset), nil
	default:
		return r.c.busmasterRead(&r.c.channels[r.ch], offset, widthBits)
	}
}

func (r *ioRegion) WriteIO(offset uint32, widthBits int, value uint32) error {
	switch r.kind {
	case regionCommand:
		r.c.commandWrite(&r.c.channels[r.ch], offset, widthBits, value)
		return nil
	case regionControl:
		r.c.controlWrite(&r.c.channels[r.ch], offset, value)
		return nil
	default:
		return r.c.busmasterWrite(&r.c.channels[r.ch], offset, widthBits, value)
	}
}

// MapLegacy registers the six legacy I/O regions on m.
func (c *Controller) MapLegacy(m *pci.IOMap) error {
	regions := []struct {
		base   uint32
		length uint32
		ch     int
		kind   regionKind
	}{
		{PriCommandBase, 8, 0, regionCommand},
		{PriControlBase, 2, 0, regionControl},
		{SecCommandBase, 8, 1, regionCommand},
		{SecControlBase, 2, 1, regionControl},
		{PriBusmasterBase, 8, 0, regionBusmaster},
		{SecBusmasterBase, 8, 1, regionBusmaster},
	}
	for _, reg := range regions {
		h := &ioRegion{c: c, ch: reg.ch, kind: reg.kind}
		if err := m.RegisterIO(reg.base, reg.length, h); err != nil {
			return err
		}
	}
	return nil
}

// signalWorker wakes the channel's sequencer: wait for its ready barrier,
// then hand it the start token.
func (c *Controller) signalWorker(ch *channel) {
	<-ch.ready
	ch.kick <- struct{}{}
}

func (c *Controller) commandRead(ch *channel, offset uint32, widthBits int) (uint32, error) {
	if !c.hasDisk(ch, 0) && !c.hasDisk(ch, 1) {
		// No drives: the data lines float high.
		return 0xffffffff >> (32 - widthBits), nil
	}

	d := c.selDrive(ch)
	var data uint32
	switch offset {
	case regData:
		if !d.status.drq {
			break
		}
		switch widthBits {
		case 32:
			data = uint32(ch.data[ch.dataPtr])
			data |= uint32(ch.data[ch.dataPtr+1]) << 16
			ch.dataPtr += 2
		case 16:
			data = uint32(ch.data[ch.dataPtr])
			ch.dataPtr++
		default:
			return 0, device.Fatal("ata", device.InvalidArgument,
				"%d-bit read from data port", widthBits)
		}
		if ch.dataPtr >= ch.dataSize {
			// Buffer drained: hand the channel back to the sequencer.
			d.status.drq = false
			if d.cmd.inProgress {
				d.status.busy = true
				d.status.driveReady = false
				c.updateAltStatus(ch)
				c.signalWorker(ch)
			}
		}
		if ch.dataPtr > dataBufferWords {
			c.log.Warn("ata: data pointer past end of buffer", "channel", ch.index)
			ch.dataPtr = 0
			d.status.drq = false
			c.updateAltStatus(ch)
		}

	case regErrFeatures:
		data = uint32(d.regs.error)

	case regSectorCount:
		data = uint32(d.regs.sectorCount) & 0xff

	case regSectorNo:
		data = uint32(d.regs.sectorNo) & 0xff

	case regCylLow:
		data = uint32(d.regs.cylinderNo) & 0xff

	case regCylHigh:
		data = uint32(d.regs.cylinderNo>>8) & 0xff

	case regDriveHead:
		data = 0x80 | 0x20 | uint32(d.regs.headNo&0x0f)
		if d.regs.lbaMode {
			data |= 0x40
		}
		if ch.selected != 0 {
			data |= 0x10
		}

	case regStatusCmd:
		// Status read acknowledges the pending interrupt.
		data = uint32(c.statusByte(ch))
		c.ackInterrupt(ch)
	}
	return data, nil
}

func (c *Controller) commandWrite(ch *channel, offset uint32, widthBits int, value uint32) {
	d := c.selDrive(ch)
	switch offset {
	case regData:
		if !d.status.drq {
			break
		}
		switch widthBits {
		case 32:
			ch.data[ch.dataPtr] = uint16(value)
			ch.data[ch.dataPtr+1] = uint16(value >> 16)
			ch.dataPtr += 2
		case 16:
			ch.data[ch.dataPtr] = uint16(value)
			ch.dataPtr++
		}
		if ch.dataPtr >= ch.dataSize {
			// Buffer full: the sequencer consumes it.
			d.status.drq = false
			d.status.busy = true
			c.updateAltStatus(ch)
			c.signalWorker(ch)
		}
		if ch.dataPtr > dataBufferWords {
			c.log.Warn("ata: data pointer overflow", "channel", ch.index)
			ch.dataPtr = 0
			d.status.drq = false
			c.updateAltStatus(ch)
		}

	case regErrFeatures:
		ch.drives[0].regs.features = uint8(value)
		ch.drives[1].regs.features = uint8(value)

	case regSectorCount:
		ch.drives[0].regs.sectorCount = int(value) & 0xff
		ch.drives[1].regs.sectorCount = int(value) & 0xff

	case regSectorNo:
		ch.drives[0].regs.sectorNo = int(value) & 0xff
		ch.drives[1].regs.sectorNo = int(value) & 0xff

	case regCylLow:
		for i := range ch.drives {
			r := &ch.drives[i].regs
			r.cylinderNo = (r.cylinderNo & 0xff00) | int(value)&0xff
		}

	case regCylHigh:
		for i := range ch.drives {
			r := &ch.drives[i].regs
			r.cylinderNo = (r.cylinderNo & 0xff) | (int(value)<<8)&0xff00
		}

	case regDriveHead:
		ch.selected = int(value>>4) & 1
		for i := range ch.drives {
			r := &ch.drives[i].regs
			r.headNo = int(value) & 0x0f
			r.lbaMode = value&0x40 != 0
		}

	case regStatusCmd:
		c.ackInterrupt(ch) // command write clears the interrupt
		cmd := uint8(value)
		if (cmd & 0xf0) == 0x10 {
			cmd = 0x10 // all recalibrate variants fold together
		}
		d = c.selDrive(ch)
		d.cmd.inProgress = false
		d.cmd.current = cmd
		d.cmd.cycle = 0
		d.status.drq = false
		c.updateAltStatus(ch)
		ch.dataPtr = 0

		if cmd != 0x00 {
			d.status.busy = true
			c.updateAltStatus(ch)
			d.cmd.inProgress = true
			d.cmd.packetPhase = packetNone
			c.signalWorker(ch)
		} else if d.disk != nil {
			// NOP: fail fast without waking the sequencer.
			c.commandAborted(ch, cmd)
		}
	}
}

func (c *Controller) controlRead(ch *channel, offset uint32) uint32 {
	switch offset {
	case 0:
		ch.regMu.RLock()
		data := uint32(ch.altStatus)
		ch.regMu.RUnlock()
		return data
	case 1:
		// Drive address register: inverted selection and head bits.
		var data uint32
		if ch.selected == 0 {
			data |= 1
		} else {
			data |= 2
		}
		data |= uint32(c.selDrive(ch).regs.headNo) << 2
		return (^data) & 0xff
	}
	return 0
}

func (c *Controller) controlWrite(ch *channel, offset uint32, value uint32) {
	if offset != 0 {
		return
	}
	prevReset := ch.reset
	ch.reset = value&0x04 != 0
	ch.disableIRQ = value&0x02 != 0

	if !prevReset && ch.reset {
		for i := range ch.drives {
			d := &ch.drives[i]
			d.status.busy = true
			d.status.driveReady = false
			d.status.seekComplete = true
			d.status.drq = false
			d.status.err = false
			d.cmd.current = 0
			d.cmd.inProgress = false
		}
		ch.resetInProgress = true
		c.selDrive(ch).regs.error = 0x01
		ch.disableIRQ = false
	} else if prevReset && !ch.reset {
		for i := range ch.drives {
			d := &ch.drives[i]
			d.status.busy = false
			d.status.driveReady = true
		}
		ch.resetInProgress = false
		c.setSignature(ch, 0)
		c.setSignature(ch, 1)
	}
	c.updateAltStatus(ch)
}

func (c *Controller) busmasterRead(ch *channel, offset uint32, widthBits int) (uint32, error) {
	ch.bmMu.RLock()
	defer ch.bmMu.RUnlock()
	switch widthBits {
	case 8:
		return uint32(ch.busmaster[offset]), nil
	case 32:
		return uint32(ch.busmaster[offset]) |
			uint32(ch.busmaster[offset+1])<<8 |
			uint32(ch.busmaster[offset+2])<<16 |
			uint32(ch.busmaster[offset+3])<<24, nil
	default:
		return 0, device.Fatal("ata", device.InvalidArgument, "16-bit read from busmaster")
	}
}

func (c *Controller) busmasterWrite(ch *channel, offset uint32, widthBits int, value uint32) error {
	switch widthBits {
	case 32:
		for i := uint32(0); i < 4; i++ {
			if err := c.busmasterWrite(ch, offset+i, 8, (value>>(8*i))&0xff); err != nil {
				return err
			}
		}
		return nil
	case 16:
		for i := uint32(0); i < 2; i++ {
			if err := c.busmasterWrite(ch, offset+i, 8, (value>>(8*i))&0xff); err != nil {
				return err
			}
		}
		return nil
	}

	switch offset {
	case 0: // command: bit 3 = direction, bit 0 = start
		ch.bmMu.Lock()
		ch.busmaster[0] = uint8(value) & 0x09
		if value&0x01 != 0 {
			ch.busmaster[2] |= 0x01
			ch.bmMu.Unlock()
			<-ch.bmReady
			ch.bmKick <- struct{}{}
		} else {
			ch.busmaster[2] &^= 0x01
			ch.bmMu.Unlock()
		}

	case 2: // status: W1C on interrupt/error/active
		ch.bmMu.Lock()
		ch.busmaster[2] = ch.busmaster[2]&^0x60 | uint8(value)&0x60
		if value&0x04 != 0 {
			ch.busmaster[2] &^= 0x04
		}
		if value&0x02 != 0 {
			ch.busmaster[2] &^= 0x02
		}
		if value&0x01 != 0 {
			ch.busmaster[2] &^= 0x01
		}
		ch.bmMu.Unlock()

	case 4, 5, 6, 7: // PRD table pointer
		ch.bmMu.Lock()
		ch.busmaster[offset] = uint8(value)
		ch.bmMu.Unlock()
	}
	return nil
}
