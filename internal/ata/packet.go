/*
 * axpbox-sub000 - ATAPI packet state machine.
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
	"github.com/lenticularis39/axpbox-sub000/internal/scsi"
)

// The controller claims the channel's private SCSI bus with this
// initiator id; targets sit at their device index.
const scsiInitiatorID = 7

// executePacket advances the ATAPI packet protocol:
// NONE -> DP1 (receive 12-byte packet) -> DP2 (prepare) -> DP34
// (transfer) -> DI (done). The state machine derives from ATA/ATAPI-5
// (D1321R3); state names were taken from that document.
func (c *Controller) executePacket(ch *channel, d *drive) error {
	if !d.disk.IsCDROM() {
		c.commandAborted(ch, d.cmd.current)
		return nil
	}
	if d.regs.features&0x02 != 0 {
		// overlap not supported
		c.commandAborted(ch, d.cmd.current)
		return nil
	}

	if d.cmd.packetPhase == packetNone {
		// First time through: claim the bus and ask the host for the
		// packet bytes.
		if !ch.scsiBus.Arbitrate(scsiInitiatorID) ||
			!ch.scsiBus.Select(scsiInitiatorID, ch.selected) {
			// Selection timeout: nobody answered.
			c.log.Warn("ata: ATAPI selection timed out", "channel", ch.index)
			ch.scsiBus.Free(scsiInitiatorID)
			d.cmd.packetPhase = packetDI
			c.commandAborted(ch, d.cmd.current)
			return nil
		}
		d.regs.sectorCount = irCD // REASON: command to device
		d.status.busy = false
		d.status.drq = true
		d.status.fault = false        // DMRD
		d.status.seekComplete = false // SERV
		ch.dataPtr = 0
		ch.dataSize = 6 // words: 12 packet bytes
		d.cmd.packetDMA = d.regs.features&0x01 != 0
		d.cmd.packetPhase = packetDP1
		// Yield: the host's PIO writes complete the packet and wake us.
		return nil
	}

	for {
		yield, err := c.packetStep(ch, d)
		if err != nil || yield {
			return err
		}
	}
}

// packetStep runs one state of the packet machine; yield means drop out
// of the worker until the host advances the transfer.
func (c *Controller) packetStep(ch *channel, d *drive) (bool, error) {
	switch d.cmd.packetPhase {
	case packetDP1: // receive packet
		if ch.scsiBus.Phase() != scsi.PhaseCommand {
			return false, device.Fatal("ata", device.IllegalState,
				"SCSI command phase expected, got %s", ch.scsiBus.Phase())
		}
		for i := 0; i < 6; i++ {
			d.cmd.packetCmd[2*i] = byte(ch.data[i])
			d.cmd.packetCmd[2*i+1] = byte(ch.data[i] >> 8)
		}
		dst, err := ch.scsiBus.XferPtr(12)
		if err != nil {
			return false, err
		}
		copy(dst, d.cmd.packetCmd[:])
		if err := ch.scsiBus.XferDone(); err != nil {
			return false, err
		}
		d.cmd.packetPhase = packetDP2
		d.cmd.packetBufLen = d.regs.cylinderNo // BYTE COUNT
		d.status.busy = true
		return false, nil

	case packetDP2: // prepare
		d.status.busy = true
		d.status.drq = false
		if !d.cmd.inProgress {
			d.cmd.packetPhase = packetDI
			return false, nil
		}
		switch ch.scsiBus.Phase() {
		case scsi.PhaseDataIn:
			n, err := ch.scsiBus.ExpectedXfer()
			if err != nil {
				return false, err
			}
			if n > 2*dataBufferWords {
				return false, device.Fatal("ata", device.InvalidArgument,
					"ATAPI transfer of %d bytes exceeds channel buffer", n)
			}
			src, err := ch.scsiBus.XferPtr(n)
			if err != nil {
				return false, err
			}
			for i := 0; i < n; i++ {
				if i%2 == 0 {
					ch.data[i/2] = uint16(src[i])
				} else {
					ch.data[i/2] |= uint16(src[i]) << 8
				}
			}
			if err := ch.scsiBus.XferDone(); err != nil {
				return false, err
			}
			d.cmd.packetPhase = packetDP34
			d.regs.cylinderNo = n // BYTE COUNT
			ch.dataSize = n / 2
			ch.dataPtr = 0
			return false, nil

		case scsi.PhaseDataOut:
			return false, device.Fatal("ata", device.NotImplemented,
				"ATAPI write operations")

		case scsi.PhaseStatus:
			if err := c.consumeStatusFree(ch); err != nil {
				return false, err
			}
			d.cmd.packetPhase = packetDI
			return false, nil

		default:
			return false, device.Fatal("ata", device.IllegalState,
				"unexpected SCSI phase %s", ch.scsiBus.Phase())
		}

	case packetDP34: // transfer
		if d.cmd.packetDMA {
			buf := make([]byte, d.regs.cylinderNo)
			for i := range buf {
				if i%2 == 0 {
					buf[i] = byte(ch.data[i/2])
				} else {
					buf[i] = byte(ch.data[i/2] >> 8)
				}
			}
			if _, err := c.dmaTransfer(ch, buf, false); err != nil {
				return false, err
			}
			if err := c.consumeStatusFree(ch); err != nil {
				return false, err
			}
			d.status.drq = true
			d.status.busy = false
			d.cmd.packetPhase = packetDI
			return false, nil
		}
		// PIO: one burst per DRQ cycle, interrupt at end of setup; the
		// host's data-port reads drive the rest.
		d.status.drq = true
		d.status.busy = false
		d.regs.sectorCount = irIO // REASON: data to host
		if err := c.consumeStatusFree(ch); err != nil {
			return false, err
		}
		c.raiseInterrupt(ch)
		d.cmd.packetPhase = packetDI
		return true, nil

	case packetDI: // done
		d.regs.sectorCount = irCD | irIO
		d.status.busy = false
		d.status.driveReady = true
		d.status.seekComplete = false // SERV
		d.status.err = false          // CHK
		d.status.drq = false
		c.raiseInterrupt(ch)
		d.cmd.inProgress = false
		return true, nil
	}
	return false, device.Fatal("ata", device.InvalidArgument,
		"unknown packet phase %d", d.cmd.packetPhase)
}

// consumeStatusFree drains the target's status byte and verifies the bus
// returns to free.
func (c *Controller) consumeStatusFree(ch *channel) error {
	if ch.scsiBus.Phase() != scsi.PhaseStatus {
		return device.Fatal("ata", device.IllegalState,
			"SCSI status phase expected, got %s", ch.scsiBus.Phase())
	}
	n, err := ch.scsiBus.ExpectedXfer()
	if err != nil {
		return err
	}
	if _, err := ch.scsiBus.XferPtr(n); err != nil {
		return err
	}
	if err := ch.scsiBus.XferDone(); err != nil {
		return err
	}
	if ch.scsiBus.Phase() != scsi.PhaseFree {
		return device.Fatal("ata", device.IllegalState,
			"SCSI bus free phase expected, got %s", ch.scsiBus.Phase())
	}
	return nil
}
