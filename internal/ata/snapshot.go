/*
 * axpbox-sub000 - Controller save/restore.
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
	"io"

	"github.com/lenticularis39/axpbox-sub000/internal/state"
)

type driveSnapshot struct {
	Busy         uint8
	DriveReady   uint8
	Fault        uint8
	SeekComplete uint8
	DRQ          uint8
	IndexPulse   uint8
	Err          uint8

	LBAMode     uint8
	Features    uint8
	Error       uint8
	SectorCount int32
	SectorNo    int32
	CylinderNo  int32
	HeadNo      int32

	CmdInProgress uint8
	CurrentCmd    uint8
	CmdCycle      int32
	PacketDMA     uint8
	PacketPhase   int32
	PacketCmd     [12]byte
	PacketBufLen  int32

	MultipleSize int32
}

type channelSnapshot struct {
	Selected   int32
	Reset      uint8
	DisableIRQ uint8
	ResetInPrg uint8
	Busmaster  [8]byte
	DMAMode    int32
	DataPtr    int32
	DataSize   int32
	Data       [dataBufferWords]uint16
	Drives     [2]driveSnapshot
}

type controllerSnapshot struct {
	Channels [2]channelSnapshot
}

func snapDrive(d *drive) driveSnapshot {
	return driveSnapshot{
		Busy:         b8(d.status.busy),
		DriveReady:   b8(d.status.driveReady),
		Fault:        b8(d.status.fault),
		SeekComplete: b8(d.status.seekComplete),
		DRQ:          b8(d.status.drq),
		IndexPulse:   b8(d.status.indexPulse),
		Err:          b8(d.status.err),

		LBAMode:     b8(d.regs.lbaMode),
		Features:    d.regs.features,
		Error:       d.regs.error,
		SectorCount: int32(d.regs.sectorCount),
		SectorNo:    int32(d.regs.sectorNo),
		CylinderNo:  int32(d.regs.cylinderNo),
		HeadNo:      int32(d.regs.headNo),

		CmdInProgress: b8(d.cmd.inProgress),
		CurrentCmd:    d.cmd.current,
		CmdCycle:      int32(d.cmd.cycle),
		PacketDMA:     b8(d.cmd.packetDMA),
		PacketPhase:   int32(d.cmd.packetPhase),
		PacketCmd:     d.cmd.packetCmd,
		PacketBufLen:  int32(d.cmd.packetBufLen),

		MultipleSize: int32(d.multipleSize),
	}
}

func (d *drive) restore(s *driveSnapshot) {
	d.status.busy = s.Busy != 0
	d.status.driveReady = s.DriveReady != 0
	d.status.fault = s.Fault != 0
	d.status.seekComplete = s.SeekComplete != 0
	d.status.drq = s.DRQ != 0
	d.status.indexPulse = s.IndexPulse != 0
	d.status.err = s.Err != 0

	d.regs.lbaMode = s.LBAMode != 0
	d.regs.features = s.Features
	d.regs.error = s.Error
	d.regs.sectorCount = int(s.SectorCount)
	d.regs.sectorNo = int(s.SectorNo)
	d.regs.cylinderNo = int(s.CylinderNo)
	d.regs.headNo = int(s.HeadNo)

	d.cmd.inProgress = s.CmdInProgress != 0
	d.cmd.current = s.CurrentCmd
	d.cmd.cycle = int(s.CmdCycle)
	d.cmd.packetDMA = s.PacketDMA != 0
	d.cmd.packetPhase = packetPhase(s.PacketPhase)
	d.cmd.packetCmd = s.PacketCmd
	d.cmd.packetBufLen = int(s.PacketBufLen)

	d.multipleSize = int(s.MultipleSize)
}

func b8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// SaveState writes the entire controller state framed by the IDE magics.
// Callers quiesce the workers first.
func (c *Controller) SaveState(w io.Writer) error {
	var s controllerSnapshot
	for i := range c.channels {
		ch := &c.channels[i]
		cs := &s.Channels[i]
		cs.Selected = int32(ch.selected)
		cs.Reset = b8(ch.reset)
		cs.DisableIRQ = b8(ch.disableIRQ)
		cs.ResetInPrg = b8(ch.resetInProgress)
		cs.Busmaster = ch.busmaster
		cs.DMAMode = int32(ch.dmaMode)
		cs.DataPtr = int32(ch.dataPtr)
		cs.DataSize = int32(ch.dataSize)
		cs.Data = ch.data
		for j := range ch.drives {
			cs.Drives[j] = snapDrive(&ch.drives[j])
		}
	}
	return state.WriteSection(w, state.IDEMagic1, state.IDEMagic2, &s)
}

// RestoreState reads the controller state back, refusing mismatched
// framing.
func (c *Controller) RestoreState(r io.Reader) error {
	var s controllerSnapshot
	if err := state.ReadSection(r, state.IDEMagic1, state.IDEMagic2, &s); err != nil {
		return err
	}
	for i := range c.channels {
		ch := &c.channels[i]
		cs := &s.Channels[i]
		ch.selected = int(cs.Selected)
		ch.reset = cs.Reset != 0
		ch.disableIRQ = cs.DisableIRQ != 0
		ch.resetInProgress = cs.ResetInPrg != 0
		ch.busmaster = cs.Busmaster
		ch.dmaMode = int(cs.DMAMode)
		ch.dataPtr = int(cs.DataPtr)
		ch.dataSize = int(cs.DataSize)
		ch.data = cs.Data
		for j := range ch.drives {
			ch.drives[j].restore(&cs.Drives[j])
		}
		c.updateAltStatus(ch)
	}
	return nil
}
