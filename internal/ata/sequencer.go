/*
 * axpbox-sub000 - ATA command sequencer.
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
)

// lba composes the 28-bit logical block address from the register file.
func (d *drive) lba() uint64 {
	return uint64(d.regs.headNo&0x0f)<<24 | uint64(d.regs.cylinderNo)<<8 |
		uint64(d.regs.sectorNo)
}

// advanceLBA steps the register file to the next block.
func (d *drive) advanceLBA() {
	d.regs.sectorNo++
	if d.regs.sectorNo > 255 {
		d.regs.sectorNo = 0
		d.regs.cylinderNo++
		if d.regs.cylinderNo > 65535 {
			d.regs.cylinderNo = 0
			d.regs.headNo++
		}
	}
}

// readBlocks fills the channel buffer with count sectors starting at lba.
func (c *Controller) readBlocks(ch *channel, d *drive, lba, count uint64) error {
	n := count * 512
	buf := make([]byte, n)
	if err := d.disk.SeekByte(lba * 512); err != nil {
		return err
	}
	if _, err := d.disk.ReadBytes(buf); err != nil {
		return err
	}
	for i := uint64(0); i < n/2; i++ {
		ch.data[i] = uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
	}
	return nil
}

// writeBlocks flushes count sectors from the channel buffer to lba.
func (c *Controller) writeBlocks(ch *channel, d *drive, lba, count uint64) error {
	n := count * 512
	buf := make([]byte, n)
	for i := uint64(0); i < n/2; i++ {
		buf[2*i] = byte(ch.data[i])
		buf[2*i+1] = byte(ch.data[i] >> 8)
	}
	if err := d.disk.SeekByte(lba * 512); err != nil {
		return err
	}
	_, err := d.disk.WriteBytes(buf)
	return err
}

// finishPIOCommand marks a command done with the usual good-completion
// status bits.
func (c *Controller) finishPIOCommand(ch *channel, d *drive, drq bool) {
	d.status.busy = false
	d.status.driveReady = true
	d.status.fault = false
	d.status.drq = drq
	d.status.err = false
	d.cmd.inProgress = false
}

// execute runs one sequencer step for the selected device. It is
// called from the channel worker each time the MMIO side hands over the
// channel.
func (c *Controller) execute(ch *channel) error {
	d := c.selDrive(ch)
	if d.disk == nil && d.cmd.current != 0x90 {
		// No device: let the command time out quietly.
		d.cmd.inProgress = false
		d.cmd.cycle++
		return nil
	}

	var err error
	switch d.cmd.current {
	case 0x00: // nop
		d.regs.error = 0x04
		d.status.busy = false
		d.status.driveReady = true
		d.status.fault = true
		d.status.drq = false
		d.status.err = true
		d.cmd.inProgress = false
		c.raiseInterrupt(ch)

	case 0x08: // device reset
		// Non-packet devices should ignore this, but Tru64 needs the
		// permissive behavior to recognize plain disks.
		d.cmd.inProgress = false
		if ch.selected == 0 {
			ch.drives[0].regs.error = 0x01
			ch.drives[1].regs.error = 0x01
		} else {
			ch.drives[1].regs.error = 0x01
		}
		c.setSignature(ch, ch.selected)
		d.status.drq = false
		d.status.err = false
		if d.disk.IsCDROM() {
			d.status.fault = false
			d.status.driveReady = false
		} else {
			d.status.driveReady = true
		}
		d.status.busy = false

	case 0x10: // recalibrate
		d.status.busy = false
		d.status.driveReady = true
		d.status.seekComplete = true
		d.status.fault = false
		d.status.drq = false
		d.status.err = false
		d.regs.cylinderNo = 0
		d.cmd.inProgress = false
		c.raiseInterrupt(ch)

	case 0x20, 0x21: // read sectors
		err = c.readSectors(ch, d)

	case 0x30, 0x31: // write sectors
		err = c.writeSectors(ch, d)

	case 0x70: // seek
		if d.disk.IsCDROM() {
			c.commandAborted(ch, d.cmd.current)
			break
		}
		d.status.busy = false
		d.status.driveReady = true
		d.status.seekComplete = true
		d.status.fault = false
		d.status.drq = false
		d.status.err = false
		d.cmd.inProgress = false
		c.raiseInterrupt(ch)

	case 0x91: // initialize device parameters
		d.cmd.inProgress = false
		if d.disk.IsCDROM() {
			c.commandAborted(ch, d.cmd.current)
			break
		}
		if d.disk.Heads() == uint64(d.regs.headNo+1) &&
			d.disk.Sectors() == uint64(d.regs.sectorCount) {
			c.finishPIOCommand(ch, d, false)
			c.raiseInterrupt(ch)
		} else {
			d.status.busy = false
			d.status.driveReady = true
			d.status.fault = false
			d.status.drq = false
			d.status.err = true
			d.regs.error = 0x04
			c.raiseInterrupt(ch)
		}

	case 0xa0: // packet
		err = c.executePacket(ch, d)

	case 0xa1: // identify packet device
		if !d.disk.IsCDROM() {
			c.commandAborted(ch, d.cmd.current)
			break
		}
		c.identifyDrive(ch, d, true)
		d.status.seekComplete = true
		c.finishPIOCommand(ch, d, true)
		c.raiseInterrupt(ch)

	case 0xc4: // read multiple
		err = c.readMultiple(ch, d)

	case 0xc5: // write multiple
		err = c.writeMultiple(ch, d)

	case 0xc6: // set multiple mode
		if d.disk.IsCDROM() {
			c.commandAborted(ch, d.cmd.current)
			break
		}
		d.multipleSize = d.regs.sectorCount
		c.finishPIOCommand(ch, d, false)
		c.raiseInterrupt(ch)

	case 0xc8, 0xc9: // read dma
		err = c.readDMA(ch, d)

	case 0xca, 0xcb: // write dma
		err = c.writeDMA(ch, d)

	case 0xec: // identify device
		if d.disk.IsCDROM() {
			c.setSignature(ch, ch.selected)
			c.commandAborted(ch, 0xec)
			break
		}
		c.identifyDrive(ch, d, false)
		d.status.seekComplete = true
		c.finishPIOCommand(ch, d, true)
		c.raiseInterrupt(ch)

	case 0xef: // set features
		c.setFeatures(ch, d)

	case 0xe0, 0xe1, 0xe2, 0xe3, 0xe6, 0xe7, 0xea:
		// standby/idle/sleep/flush: immediate success
		d.status.busy = false
		d.status.driveReady = true
		d.status.drq = false
		d.status.err = false
		d.cmd.inProgress = false
		c.raiseInterrupt(ch)

	default:
		return device.Fatal("ata", device.NotImplemented,
			"unknown IDE command %#02x", d.cmd.current)
	}

	d.cmd.cycle++
	return err
}

func (c *Controller) readSectors(ch *channel, d *drive) error {
	if d.cmd.cycle == 0 && d.regs.sectorCount == 0 {
		d.regs.sectorCount = 256
	}
	if d.status.drq {
		return nil // host still draining the buffer
	}
	if !d.regs.lbaMode {
		return device.Fatal("ata", device.NotImplemented, "non-LBA disk read")
	}
	if err := c.readBlocks(ch, d, d.lba(), 1); err != nil {
		c.commandAborted(ch, d.cmd.current)
		return nil
	}
	d.status.busy = false
	d.status.driveReady = true
	d.status.fault = false
	d.status.drq = true
	d.status.err = false
	ch.dataPtr = 0
	ch.dataSize = 256
	d.regs.sectorCount--
	if d.regs.sectorCount == 0 {
		d.cmd.inProgress = false
		if d.disk.IsCDROM() {
			c.setSignature(ch, ch.selected)
		}
	} else {
		d.advanceLBA()
	}
	c.raiseInterrupt(ch)
	return nil
}

func (c *Controller) writeSectors(ch *channel, d *drive) error {
	if d.cmd.cycle == 0 {
		if d.disk.IsCDROM() || d.disk.ReadOnly() {
			c.log.Warn("ata: write attempt to read-only disk",
				"channel", ch.index, "device", ch.selected)
			c.commandAborted(ch, d.cmd.current)
			return nil
		}
		d.status.drq = true
		d.status.busy = false
		ch.dataSize = 256
		if d.regs.sectorCount == 0 {
			d.regs.sectorCount = 256
		}
		return nil
	}
	if d.status.drq {
		return nil
	}
	// The host filled the buffer; commit it.
	if !d.regs.lbaMode {
		return device.Fatal("ata", device.NotImplemented, "non-LBA disk write")
	}
	if err := c.writeBlocks(ch, d, d.lba(), 1); err != nil {
		c.commandAborted(ch, d.cmd.current)
		return nil
	}
	d.status.busy = false
	d.status.driveReady = true
	d.status.fault = false
	d.status.drq = true
	d.status.err = false
	ch.dataPtr = 0
	d.regs.sectorCount--
	if d.regs.sectorCount == 0 {
		d.status.drq = false
		d.cmd.inProgress = false
	} else {
		d.advanceLBA()
	}
	c.raiseInterrupt(ch)
	return nil
}

// burstSize picks the next multi-sector burst and debits sectorCount.
func (d *drive) burstSize() int {
	if d.regs.sectorCount >= d.multipleSize {
		d.regs.sectorCount -= d.multipleSize
		return d.multipleSize
	}
	n := d.regs.sectorCount
	d.regs.sectorCount = 0
	return n
}

func (c *Controller) readMultiple(ch *channel, d *drive) error {
	if d.disk.IsCDROM() {
		c.commandAborted(ch, d.cmd.current)
		return nil
	}
	if d.cmd.cycle == 0 {
		if d.regs.sectorCount == 0 {
			d.regs.sectorCount = 256
		}
		d.status.drq = false
	}
	if d.status.drq {
		return nil
	}
	if !d.regs.lbaMode {
		return device.Fatal("ata", device.NotImplemented, "non-LBA disk read")
	}
	lba := d.lba()
	sectors := d.burstSize()
	ch.dataSize = 256 * sectors
	if err := c.readBlocks(ch, d, lba, uint64(sectors)); err != nil {
		c.commandAborted(ch, d.cmd.current)
		return nil
	}
	d.status.busy = false
	d.status.driveReady = true
	d.status.fault = false
	d.status.drq = true
	d.status.err = false
	ch.dataPtr = 0
	if d.regs.sectorCount == 0 {
		d.cmd.inProgress = false
	} else {
		for i := 0; i < sectors; i++ {
			d.advanceLBA()
		}
	}
	c.raiseInterrupt(ch)
	return nil
}

func (c *Controller) writeMultiple(ch *channel, d *drive) error {
	if d.disk.IsCDROM() {
		c.commandAborted(ch, d.cmd.current)
		return nil
	}
	if d.cmd.cycle == 0 {
		if d.disk.ReadOnly() {
			c.log.Warn("ata: write attempt to read-only disk",
				"channel", ch.index, "device", ch.selected)
			c.commandAborted(ch, d.cmd.current)
			return nil
		}
		d.status.drq = true
		d.status.busy = false
		if d.regs.sectorCount == 0 {
			d.regs.sectorCount = 256
		}
		ch.dataSize = 256 * d.burstSize()
		return nil
	}
	if d.status.drq {
		return nil
	}
	if !d.regs.lbaMode {
		return device.Fatal("ata", device.NotImplemented, "non-LBA disk write")
	}
	sectors := uint64(ch.dataSize / 256)
	if err := c.writeBlocks(ch, d, d.lba(), sectors); err != nil {
		c.commandAborted(ch, d.cmd.current)
		return nil
	}
	d.status.busy = false
	d.status.driveReady = true
	d.status.fault = false
	d.status.drq = true
	d.status.err = false
	ch.dataPtr = 0
	if d.regs.sectorCount == 0 {
		d.status.drq = false
		d.cmd.inProgress = false
	} else {
		ch.dataSize = 256 * d.burstSize()
		for i := uint64(0); i < sectors; i++ {
			d.advanceLBA()
		}
	}
	c.raiseInterrupt(ch)
	return nil
}

func (c *Controller) readDMA(ch *channel, d *drive) error {
	if d.disk.IsCDROM() {
		c.commandAborted(ch, d.cmd.current)
		d.cmd.inProgress = false
		return nil
	}
	if d.regs.sectorCount == 0 {
		d.regs.sectorCount = 256
	}
	if err := c.readBlocks(ch, d, d.lba(), uint64(d.regs.sectorCount)); err != nil {
		c.commandAborted(ch, d.cmd.current)
		return nil
	}
	buf := make([]byte, d.regs.sectorCount*512)
	for i := range buf {
		if i%2 == 0 {
			buf[i] = byte(ch.data[i/2])
		} else {
			buf[i] = byte(ch.data[i/2] >> 8)
		}
	}
	if _, err := c.dmaTransfer(ch, buf, false); err != nil {
		return err
	}
	d.cmd.inProgress = false
	d.status.driveReady = true
	d.status.seekComplete = true
	d.status.fault = false
	d.status.drq = false
	d.status.err = false
	d.status.busy = false
	return nil
}

func (c *Controller) writeDMA(ch *channel, d *drive) error {
	if d.disk.IsCDROM() || d.disk.ReadOnly() {
		c.commandAborted(ch, d.cmd.current)
		d.cmd.inProgress = false
		return nil
	}
	if d.regs.sectorCount == 0 {
		d.regs.sectorCount = 256
	}
	buf := make([]byte, d.regs.sectorCount*512)
	if _, err := c.dmaTransfer(ch, buf, true); err != nil {
		return err
	}
	for i := 0; i < len(buf)/2; i++ {
		ch.data[i] = uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
	}
	if err := c.writeBlocks(ch, d, d.lba(), uint64(d.regs.sectorCount)); err != nil {
		c.commandAborted(ch, d.cmd.current)
		return nil
	}
	d.cmd.inProgress = false
	d.status.driveReady = true
	d.status.seekComplete = true
	d.status.fault = false
	d.status.drq = false
	d.status.err = false
	d.status.busy = false
	return nil
}

func (c *Controller) setFeatures(ch *channel, d *drive) {
	d.cmd.inProgress = false
	switch d.regs.features {
	case 0x03: // set transfer mode
		count := d.regs.sectorCount
		switch {
		case count < 16:
			// any PIO mode
			d.status.seekComplete = true
			c.finishPIOCommand(ch, d, false)
			c.raiseInterrupt(ch)
		case count >= 0x20 && count <= 0x22:
			// multiword DMA
			ch.dmaMode = count & 0x03
			d.status.seekComplete = true
			c.finishPIOCommand(ch, d, false)
			c.raiseInterrupt(ch)
		case count >= 0x40 && count <= 0x42:
			// ultra DMA: not supported
			c.commandAborted(ch, d.cmd.current)
		default:
			c.commandAborted(ch, d.cmd.current)
		}
	default:
		c.log.Debug("ata: unhandled set-features subcommand",
			"subcommand", d.regs.features)
		c.commandAborted(ch, d.cmd.current)
	}
}
