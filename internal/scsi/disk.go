/*
 * axpbox-sub000 - SCSI disk target engine.
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

package scsi

import (
	"fmt"

	"github.com/lenticularis39/axpbox-sub000/internal/device"
	"github.com/lenticularis39/axpbox-sub000/internal/media"
)

// SCSI operation codes handled by the disk target.
const (
	cmdTestUnitReady = 0x00
	cmdRequestSense  = 0x03
	cmdRead6         = 0x08
	cmdWrite6        = 0x0a
	cmdInquiry       = 0x12
	cmdModeSense6    = 0x1a
	cmdStartStopUnit = 0x1b
	cmdPreventAllow  = 0x1e
	cmdReadCapacity  = 0x25
	cmdRead10        = 0x28
	cmdWrite10       = 0x2a
	cmdReadTOC       = 0x43
	cmdModeSense10   = 0x5a
	cmdRead12        = 0xa8
)

// SCSI status codes.
const (
	StatusGood           = 0x00
	StatusCheckCondition = 0x02
)

// Sense keys.
const (
	SenseNone           = 0x0
	SenseNotReady       = 0x2
	SenseMediumError    = 0x3
	SenseIllegalRequest = 0x5
)

// Largest single data-in/out transfer the controller can request.
const (
	dataBufSize  = 256 * 1024
	smallBufSize = 256
	senseLen     = 18
)

type inBuf struct {
	data      []byte
	available int
	read      int
}

type outBuf struct {
	data     []byte
	expected int
	written  int
}

// Disk is the target engine embedded in each emulated disk: per-phase
// buffers plus the command interpreter that drives the bus phases.
type Disk struct {
	backend media.Backend
	bus     *Bus

	cmd  outBuf
	dati inBuf
	dato outBuf
	stat inBuf
	msgi inBuf
	msgo outBuf

	sense struct {
		data      [smallBufSize]byte
		available int
	}

	blockSize uint64
	bytePos   uint64
	locked    bool
}

// NewDisk builds the target engine for backend. Block size follows the
// media: 512 for disks, 2048 for ATAPI CD.
func NewDisk(backend media.Backend) *Disk {
	return &Disk{
		backend:   backend,
		blockSize: backend.BlockSize(),
		cmd:       outBuf{data: make([]byte, smallBufSize)},
		dati:      inBuf{data: make([]byte, dataBufSize)},
		dato:      outBuf{data: make([]byte, dataBufSize)},
		stat:      inBuf{data: make([]byte, smallBufSize)},
		msgi:      inBuf{data: make([]byte, smallBufSize)},
		msgo:      outBuf{data: make([]byte, smallBufSize)},
	}
}

// SelectMe implements Target: a freshly selected disk expects a command.
func (d *Disk) SelectMe(bus *Bus) error {
	d.bus = bus
	d.cmd.written = 0
	d.cmd.expected = 0
	bus.SetPhase(PhaseCommand)
	return nil
}

// ExpectedXfer implements Target for the current phase.
func (d *Disk) ExpectedXfer() int {
	switch d.bus.Phase() {
	case PhaseDataIn:
		return d.dati.available - d.dati.read
	case PhaseDataOut:
		return d.dato.expected - d.dato.written
	case PhaseCommand:
		return d.cmd.expected - d.cmd.written
	case PhaseStatus:
		return d.stat.available - d.stat.read
	case PhaseMsgIn:
		return d.msgi.available - d.msgi.read
	case PhaseMsgOut:
		return d.msgo.expected - d.msgo.written
	}
	return 0
}

// XferPtr implements Target: a window the initiator reads or writes for
// the current phase.
func (d *Disk) XferPtr(bytes int) ([]byte, error) {
	switch d.bus.Phase() {
	case PhaseDataIn:
		return d.dati.data[d.dati.read : d.dati.read+bytes], nil
	case PhaseDataOut:
		return d.dato.data[d.dato.written : d.dato.written+bytes], nil
	case PhaseCommand:
		// Command length is the size of the first command-phase transfer.
		if d.cmd.written == 0 {
			d.cmd.expected = bytes
		}
		return d.cmd.data[d.cmd.written : d.cmd.written+bytes], nil
	case PhaseStatus:
		return d.stat.data[d.stat.read : d.stat.read+bytes], nil
	case PhaseMsgIn:
		return d.msgi.data[d.msgi.read : d.msgi.read+bytes], nil
	case PhaseMsgOut:
		return d.msgo.data[d.msgo.written : d.msgo.written+bytes], nil
	}
	return nil, device.Fatal("scsi", device.IllegalState, "xfer in phase %s", d.bus.Phase())
}

// XferDone implements Target: account for the transfer the initiator just
// performed and drive the next phase.
func (d *Disk) XferDone() error {
	switch d.bus.Phase() {
	case PhaseCommand:
		d.cmd.written = d.cmd.expected
		return d.execute()
	case PhaseDataIn:
		d.dati.read = d.dati.available
		d.enterStatus(StatusGood)
		return nil
	case PhaseDataOut:
		// Initiator data-out is not implemented (no ATAPI CD writes).
		return device.Fatal("scsi", device.NotImplemented, "initiator data-out")
	case PhaseStatus:
		d.stat.read = d.stat.available
		d.bus.SetPhase(PhaseFree)
		d.bus.Free(-1)
		return nil
	case PhaseMsgIn:
		d.msgi.read = d.msgi.available
		d.bus.SetPhase(PhaseFree)
		d.bus.Free(-1)
		return nil
	}
	return device.Fatal("scsi", device.IllegalState, "xfer done in phase %s", d.bus.Phase())
}

// enterStatus queues the status byte and moves the bus to STATUS.
func (d *Disk) enterStatus(status byte) {
	d.stat.data[0] = status
	d.stat.available = 1
	d.stat.read = 0
	d.bus.SetPhase(PhaseStatus)
}

// enterDataIn publishes n bytes already staged in the data-in buffer.
func (d *Disk) enterDataIn(n int) {
	d.dati.available = n
	d.dati.read = 0
	if n == 0 {
		d.enterStatus(StatusGood)
		return
	}
	d.bus.SetPhase(PhaseDataIn)
}

// checkCondition records extended sense data and reports CHECK CONDITION.
func (d *Disk) checkCondition(key byte, asc byte, ascq byte) {
	for i := range d.sense.data[:senseLen] {
		d.sense.data[i] = 0
	}
	d.sense.data[0] = 0xf0 // valid + current error
	d.sense.data[2] = key
	d.sense.data[7] = senseLen - 8 // additional sense length
	d.sense.data[12] = asc
	d.sense.data[13] = ascq
	d.sense.available = senseLen
	d.enterStatus(StatusCheckCondition)
}

// execute interprets the completed command descriptor block.
func (d *Disk) execute() error {
	op := d.cmd.data[0]
	switch op {
	case cmdTestUnitReady:
		d.enterStatus(StatusGood)

	case cmdRequestSense:
		n := int(d.cmd.data[4])
		if d.sense.available == 0 {
			// No pending sense: report NO SENSE.
			for i := range d.sense.data[:senseLen] {
				d.sense.data[i] = 0
			}
			d.sense.data[0] = 0xf0
			d.sense.data[7] = senseLen - 8
			d.sense.available = senseLen
		}
		if n > d.sense.available {
			n = d.sense.available
		}
		copy(d.dati.data, d.sense.data[:n])
		d.sense.available = 0
		d.enterDataIn(n)

	case cmdInquiry:
		d.doInquiry(int(d.cmd.data[4]))

	case cmdReadCapacity:
		last := d.backend.LBASize() - 1
		d.putBE32(0, uint32(last))
		d.putBE32(4, uint32(d.blockSize))
		d.enterDataIn(8)

	case cmdRead6:
		lba := uint64(d.cmd.data[1]&0x1f)<<16 | uint64(d.cmd.data[2])<<8 | uint64(d.cmd.data[3])
		count := uint64(d.cmd.data[4])
		if count == 0 {
			count = 256
		}
		return d.doRead(lba, count)

	case cmdRead10:
		lba := uint64(d.getBE32(2))
		count := uint64(d.cmd.data[7])<<8 | uint64(d.cmd.data[8])
		return d.doRead(lba, count)

	case cmdRead12:
		lba := uint64(d.getBE32(2))
		count := uint64(d.getBE32(6))
		return d.doRead(lba, count)

	case cmdWrite6, cmdWrite10:
		// Initiator writes through the packet path are not supported.
		d.checkCondition(SenseIllegalRequest, 0x20, 0x00)

	case cmdModeSense6, cmdModeSense10:
		d.doModeSense(op)

	case cmdPreventAllow:
		d.locked = d.cmd.data[4]&1 != 0
		d.enterStatus(StatusGood)

	case cmdStartStopUnit:
		d.enterStatus(StatusGood)

	case cmdReadTOC:
		d.doReadTOC()

	default:
		d.checkCondition(SenseIllegalRequest, 0x20, 0x00)
	}
	return nil
}

func (d *Disk) doInquiry(alloc int) {
	buf := d.dati.data
	for i := 0; i < 36; i++ {
		buf[i] = 0
	}
	if d.backend.IsCDROM() {
		buf[0] = 0x05 // CD-ROM device
		buf[1] = 0x80 // removable
	}
	buf[2] = 0x02 // SCSI-2
	buf[3] = 0x02 // response data format
	buf[4] = 36 - 5
	copy(buf[8:16], []byte("AXPBOX  "))
	if d.backend.IsCDROM() {
		copy(buf[16:32], []byte("CD-ROM DRIVE    "))
	} else {
		copy(buf[16:32], []byte("DISK DRIVE      "))
	}
	copy(buf[32:36], []byte("1.0 "))
	n := 36
	if alloc < n {
		n = alloc
	}
	d.enterDataIn(n)
}

func (d *Disk) doRead(lba, count uint64) error {
	bytes := count * d.blockSize
	if bytes > dataBufSize {
		return device.Fatal("scsi", device.InvalidArgument,
			"read of %d bytes exceeds data-in buffer", bytes)
	}
	if (lba+count)*d.blockSize > d.backend.ByteSize() {
		d.checkCondition(SenseIllegalRequest, 0x21, 0x00) // LBA out of range
		return nil
	}
	d.bytePos = lba * d.blockSize
	if err := d.backend.SeekByte(d.bytePos); err != nil {
		d.checkCondition(SenseMediumError, 0x11, 0x00)
		return nil
	}
	if _, err := d.backend.ReadBytes(d.dati.data[:bytes]); err != nil {
		d.checkCondition(SenseMediumError, 0x11, 0x00)
		return nil
	}
	d.bytePos += bytes
	d.enterDataIn(int(bytes))
	return nil
}

func (d *Disk) doModeSense(op byte) {
	var alloc int
	if op == cmdModeSense6 {
		alloc = int(d.cmd.data[4])
	} else {
		alloc = int(d.cmd.data[7])<<8 | int(d.cmd.data[8])
	}
	page := d.cmd.data[2] & 0x3f

	buf := d.dati.data
	// Mode parameter header (6-byte form) plus one block descriptor.
	blocks := d.backend.LBASize()
	if blocks > 0xffffff {
		blocks = 0xffffff
	}
	buf[0] = 0 // mode data length, patched below
	buf[1] = 0 // medium type
	buf[2] = 0
	buf[3] = 8 // block descriptor length
	buf[4] = 0
	buf[5] = byte(blocks >> 16)
	buf[6] = byte(blocks >> 8)
	buf[7] = byte(blocks)
	buf[8] = 0
	buf[9] = byte(d.blockSize >> 16)
	buf[10] = byte(d.blockSize >> 8)
	buf[11] = byte(d.blockSize)
	n := 12

	switch page {
	case 0x01: // read error recovery
		buf[n] = 0x01
		buf[n+1] = 10
		for i := 2; i < 12; i++ {
			buf[n+i] = 0
		}
		n += 12
	case 0x3f: // all pages: none beyond the descriptor
	default:
		d.checkCondition(SenseIllegalRequest, 0x24, 0x00) // invalid field in CDB
		return
	}

	buf[0] = byte(n - 1)
	if alloc < n {
		n = alloc
	}
	d.enterDataIn(n)
}

// doReadTOC returns the single-track table of contents: one data track at
// LBA 0 and the lead-out at the image end.
func (d *Disk) doReadTOC() {
	alloc := int(d.cmd.data[7])<<8 | int(d.cmd.data[8])
	msf := d.cmd.data[1]&0x02 != 0

	buf := d.dati.data
	buf[2] = 1 // first track
	buf[3] = 1 // last track

	n := 4
	n += d.tocEntry(buf[n:], 1, 0, msf)
	n += d.tocEntry(buf[n:], 0xaa, d.backend.LBASize(), msf)
	buf[0] = byte((n - 2) >> 8)
	buf[1] = byte(n - 2)

	if alloc < n {
		n = alloc
	}
	d.enterDataIn(n)
}

func (d *Disk) tocEntry(buf []byte, track byte, lba uint64, msf bool) int {
	buf[0] = 0
	buf[1] = 0x14 // data track, digital copy permitted
	buf[2] = track
	buf[3] = 0
	if msf {
		frames := lba + 150
		buf[4] = 0
		buf[5] = byte(frames / (60 * 75))
		buf[6] = byte((frames / 75) % 60)
		buf[7] = byte(frames % 75)
	} else {
		buf[4] = byte(lba >> 24)
		buf[5] = byte(lba >> 16)
		buf[6] = byte(lba >> 8)
		buf[7] = byte(lba)
	}
	return 8
}

func (d *Disk) getBE32(off int) uint32 {
	return uint32(d.cmd.data[off])<<24 | uint32(d.cmd.data[off+1])<<16 |
		uint32(d.cmd.data[off+2])<<8 | uint32(d.cmd.data[off+3])
}

func (d *Disk) putBE32(off int, v uint32) {
	d.dati.data[off] = byte(v >> 24)
	d.dati.data[off+1] = byte(v >> 16)
	d.dati.data[off+2] = byte(v >> 8)
	d.dati.data[off+3] = byte(v)
}

// Locked reports whether PREVENT MEDIUM REMOVAL is in effect.
func (d *Disk) Locked() bool {
	return d.locked
}

// String identifies the target for fatal-error messages.
func (d *Disk) String() string {
	return fmt.Sprintf("scsi-disk(%d-byte blocks)", d.blockSize)
}
