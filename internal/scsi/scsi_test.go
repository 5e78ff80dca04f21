/*
 * axpbox-sub000 - SCSI bus and target tests.
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
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeMedia is an in-memory media.Backend.
type fakeMedia struct {
	data      []byte
	blockSize uint64
	pos       uint64
	cdrom     bool
}

func (f *fakeMedia) SeekByte(offset uint64) error { f.pos = offset; return nil }
func (f *fakeMedia) ReadBytes(dest []byte) (int, error) {
	n := copy(dest, f.data[f.pos:])
	f.pos += uint64(n)
	return n, nil
}

func (f *fakeMedia) WriteBytes(src []byte) (int, error) {
	n := copy(f.data[f.pos:], src)
	f.pos += uint64(n)
	return n, nil
}
func (f *fakeMedia) BlockSize() uint64 { return f.blockSize }
func (f *fakeMedia) ByteSize() uint64  { return uint64(len(f.data)) }
func (f *fakeMedia) LBASize() uint64   { return uint64(len(f.data)) / f.blockSize }
func (f *fakeMedia) CHSSize() uint64   { return f.LBASize() }
func (f *fakeMedia) Cylinders() uint64 { return 1 }
func (f *fakeMedia) Heads() uint64     { return 1 }
func (f *fakeMedia) Sectors() uint64   { return f.LBASize() }
func (f *fakeMedia) ReadOnly() bool    { return f.cdrom }
func (f *fakeMedia) IsCDROM() bool     { return f.cdrom }

func newCD(t *testing.T, blocks int) (*Bus, *Disk) {
	t.Helper()
	m := &fakeMedia{data: make([]byte, blocks*2048), blockSize: 2048, cdrom: true}
	for i := range m.data {
		m.data[i] = byte(i >> 3)
	}
	bus := NewBus()
	disk := NewDisk(m)
	bus.Register(0, disk)
	return bus, disk
}

// sendCommand arbitrates, selects target 0 and pushes cdb.
func sendCommand(t *testing.T, bus *Bus, cdb []byte) {
	t.Helper()
	require.True(t, bus.Arbitrate(7))
	require.True(t, bus.Select(7, 0))
	require.Equal(t, PhaseCommand, bus.Phase())
	dst, err := bus.XferPtr(len(cdb))
	require.NoError(t, err)
	copy(dst, cdb)
	require.NoError(t, bus.XferDone())
}

// drainStatus consumes the status byte and expects the bus to go free.
func drainStatus(t *testing.T, bus *Bus) byte {
	t.Helper()
	require.Equal(t, PhaseStatus, bus.Phase())
	n, err := bus.ExpectedXfer()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	p, err := bus.XferPtr(1)
	require.NoError(t, err)
	status := p[0]
	require.NoError(t, bus.XferDone())
	require.Equal(t, PhaseFree, bus.Phase())
	return status
}

func TestArbitrationNonFree(t *testing.T) {
	bus, _ := newCD(t, 4)
	require.True(t, bus.Arbitrate(7))
	require.False(t, bus.Arbitrate(6))
	bus.Free(7)
	require.True(t, bus.Arbitrate(6))
}

func TestTestUnitReady(t *testing.T) {
	bus, _ := newCD(t, 4)
	sendCommand(t, bus, []byte{cmdTestUnitReady, 0, 0, 0, 0, 0})
	require.Equal(t, byte(StatusGood), drainStatus(t, bus))
}

func TestInquiry(t *testing.T) {
	bus, _ := newCD(t, 4)
	sendCommand(t, bus, []byte{cmdInquiry, 0, 0, 0, 36, 0})
	require.Equal(t, PhaseDataIn, bus.Phase())
	n, err := bus.ExpectedXfer()
	require.NoError(t, err)
	require.Equal(t, 36, n)
	p, err := bus.XferPtr(n)
	require.NoError(t, err)
	require.Equal(t, byte(0x05), p[0]) // CD-ROM
	require.Equal(t, byte(0x80), p[1]) // removable
	require.Equal(t, []byte("AXPBOX  "), p[8:16])
	require.NoError(t, bus.XferDone())
	require.Equal(t, byte(StatusGood), drainStatus(t, bus))
}

func TestReadCapacity(t *testing.T) {
	bus, _ := newCD(t, 16)
	sendCommand(t, bus, []byte{cmdReadCapacity, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	p, err := bus.XferPtr(8)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 15}, p[0:4])    // last LBA
	require.Equal(t, []byte{0, 0, 8, 0}, p[4:8])     // 2048-byte blocks
	require.NoError(t, bus.XferDone())
	drainStatus(t, bus)
}

func TestRead10(t *testing.T) {
	bus, _ := newCD(t, 16)
	// READ(10), LBA 2, 2 blocks.
	sendCommand(t, bus, []byte{cmdRead10, 0, 0, 0, 0, 2, 0, 0, 2, 0})
	require.Equal(t, PhaseDataIn, bus.Phase())
	n, err := bus.ExpectedXfer()
	require.NoError(t, err)
	require.Equal(t, 2*2048, n)
	p, err := bus.XferPtr(n)
	require.NoError(t, err)
	off := 2 * 2048
	require.Equal(t, byte(off>>3), p[0])
	require.NoError(t, bus.XferDone())
	require.Equal(t, byte(StatusGood), drainStatus(t, bus))
}

func TestReadOutOfRange(t *testing.T) {
	bus, _ := newCD(t, 4)
	sendCommand(t, bus, []byte{cmdRead10, 0, 0, 0, 0, 8, 0, 0, 4, 0})
	require.Equal(t, byte(StatusCheckCondition), drainStatus(t, bus))

	// REQUEST SENSE reports ILLEGAL REQUEST / LBA out of range.
	sendCommand(t, bus, []byte{cmdRequestSense, 0, 0, 0, 18, 0})
	p, err := bus.XferPtr(18)
	require.NoError(t, err)
	require.Equal(t, byte(SenseIllegalRequest), p[2]&0x0f)
	require.Equal(t, byte(0x21), p[12])
	require.NoError(t, bus.XferDone())
	drainStatus(t, bus)
}

func TestWriteRejected(t *testing.T) {
	bus, _ := newCD(t, 4)
	sendCommand(t, bus, []byte{cmdWrite10, 0, 0, 0, 0, 0, 0, 0, 1, 0})
	require.Equal(t, byte(StatusCheckCondition), drainStatus(t, bus))

	sendCommand(t, bus, []byte{cmdRequestSense, 0, 0, 0, 18, 0})
	p, err := bus.XferPtr(18)
	require.NoError(t, err)
	require.Equal(t, byte(SenseIllegalRequest), p[2]&0x0f)
	require.NoError(t, bus.XferDone())
	drainStatus(t, bus)
}

func TestReadTOCZeroAllocation(t *testing.T) {
	bus, _ := newCD(t, 4)
	// Zero allocation length: zero bytes back, status success.
	sendCommand(t, bus, []byte{cmdReadTOC, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	require.Equal(t, byte(StatusGood), drainStatus(t, bus))
}

func TestReadTOCSingleTrack(t *testing.T) {
	bus, _ := newCD(t, 300)
	sendCommand(t, bus, []byte{cmdReadTOC, 0, 0, 0, 0, 0, 0, 0, 20, 0})
	require.Equal(t, PhaseDataIn, bus.Phase())
	n, err := bus.ExpectedXfer()
	require.NoError(t, err)
	require.Equal(t, 20, n)
	p, err := bus.XferPtr(n)
	require.NoError(t, err)
	require.Equal(t, byte(1), p[2]) // first track
	require.Equal(t, byte(1), p[3]) // last track
	require.Equal(t, byte(1), p[6]) // track number
	require.Equal(t, byte(0xaa), p[14])
	require.Equal(t, []byte{0, 0, 1, 0x2c}, p[16:20]) // lead-out at LBA 300
	require.NoError(t, bus.XferDone())
	drainStatus(t, bus)
}

func TestPreventAllowLocks(t *testing.T) {
	bus, disk := newCD(t, 4)
	sendCommand(t, bus, []byte{cmdPreventAllow, 0, 0, 0, 1, 0})
	drainStatus(t, bus)
	require.True(t, disk.Locked())
	sendCommand(t, bus, []byte{cmdPreventAllow, 0, 0, 0, 0, 0})
	drainStatus(t, bus)
	require.False(t, disk.Locked())
}
