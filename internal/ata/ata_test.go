/*
 * axpbox-sub000 - IDE controller tests.
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
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lenticularis39/axpbox-sub000/internal/memory"
	"github.com/lenticularis39/axpbox-sub000/util/logger"
)

// fakeMedia is an in-memory media.Backend.
type fakeMedia struct {
	data      []byte
	blockSize uint64
	pos       uint64
	cdrom     bool
	cyl       uint64
	heads     uint64
	sectors   uint64
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
func (f *fakeMedia) CHSSize() uint64   { return f.cyl * f.heads * f.sectors }
func (f *fakeMedia) Cylinders() uint64 { return f.cyl }
func (f *fakeMedia) Heads() uint64     { return f.heads }
func (f *fakeMedia) Sectors() uint64   { return f.sectors }
func (f *fakeMedia) ReadOnly() bool    { return f.cdrom }
func (f *fakeMedia) IsCDROM() bool     { return f.cdrom }

// irqRecorder counts interrupt pulses per channel.
type irqRecorder struct {
	asserts [2]atomic.Int32
}

func (r *irqRecorder) Assert(channel int)   { r.asserts[channel].Add(1) }
func (r *irqRecorder) Deassert(channel int) {}

func testLogger() *slog.Logger {
	return slog.New(logger.NewDiscardHandler(false))
}

func newTestController(t *testing.T) (*Controller, *memory.RAM, *irqRecorder) {
	t.Helper()
	ram := memory.NewRAM(1 << 20)
	irq := &irqRecorder{}
	c := NewController(ram, irq, testLogger())
	c.StartWorkers()
	t.Cleanup(c.StopWorkers)
	return c, ram, irq
}

func newDisk(blocks int) *fakeMedia {
	m := &fakeMedia{data: make([]byte, blocks*512), blockSize: 512,
		cyl: 1041, heads: 16, sectors: 63}
	for i := range m.data {
		m.data[i] = byte(i + i>>9)
	}
	return m
}

// waitIdle blocks until the channel worker has finished its current step.
func waitIdle(c *Controller, ch int) {
	<-c.channels[ch].ready
	c.channels[ch].ready <- struct{}{}
}

func cmdWrite(c *Controller, ch int, offset uint32, v uint32) {
	c.commandWrite(&c.channels[ch], offset, 8, v)
}

func cmdRead(c *Controller, ch int, offset uint32) uint32 {
	v, _ := c.commandRead(&c.channels[ch], offset, 8)
	return v
}

func dataRead16(c *Controller, ch int) uint16 {
	v, _ := c.commandRead(&c.channels[ch], regData, 16)
	return uint16(v)
}

func dataWrite16(c *Controller, ch int, v uint16) {
	c.commandWrite(&c.channels[ch], regData, 16, uint32(v))
}

func TestIdentifyDevice(t *testing.T) {
	c, _, irq := newTestController(t)
	// 512 MiB disk: 1048576 blocks, CHS 1041/16/63.
	disk := &fakeMedia{data: nil, blockSize: 512, cyl: 1041, heads: 16, sectors: 63}
	disk.data = make([]byte, 0)
	c.RegisterDisk(0, 0, &sizedMedia{fakeMedia: disk, lba: 1048576}, "AXPBOX SUB000 DISK", "SN0001", "V1.0")

	cmdWrite(c, 0, regStatusCmd, 0xec)
	waitIdle(c, 0)

	require.Equal(t, int32(1), irq.asserts[0].Load())
	st := cmdRead(c, 0, regStatusCmd)
	require.Equal(t, uint32(0x08), st&0x08) // DRQ
	require.Equal(t, uint32(0x40), st&0x40) // DRDY
	require.Equal(t, uint32(0), st&0x01)    // no ERR

	var words [256]uint16
	for i := range words {
		words[i] = dataRead16(c, 0)
	}
	require.Equal(t, uint16(0x0000), words[60])
	require.Equal(t, uint16(0x0010), words[61])
	// model string, ATA byte order, space padded
	require.Equal(t, uint16('A')<<8|uint16('X'), words[27])
	require.Equal(t, uint16(' ')<<8|uint16(' '), words[46])
	require.Equal(t, uint16(1041), words[1])
	require.Equal(t, uint16(16), words[3])
	require.Equal(t, uint16(63), words[6])
}

// sizedMedia fakes a large LBA size without allocating the image.
type sizedMedia struct {
	*fakeMedia
	lba uint64
}

func (s *sizedMedia) LBASize() uint64  { return s.lba }
func (s *sizedMedia) ByteSize() uint64 { return s.lba * 512 }

func TestReadSectorsCount0Means256(t *testing.T) {
	c, _, irq := newTestController(t)
	disk := newDisk(300)
	c.RegisterDisk(0, 0, disk, "TEST DISK", "SN", "V1")

	cmdWrite(c, 0, regDriveHead, 0x40) // LBA mode, device 0
	cmdWrite(c, 0, regSectorCount, 0)
	cmdWrite(c, 0, regSectorNo, 0)
	cmdWrite(c, 0, regCylLow, 0)
	cmdWrite(c, 0, regCylHigh, 0)
	cmdWrite(c, 0, regStatusCmd, 0x20)
	waitIdle(c, 0)

	got := make([]byte, 0, 256*512)
	for sector := 0; sector < 256; sector++ {
		require.Equal(t, uint32(0x08), cmdRead(c, 0, regStatusCmd)&0x08,
			"sector %d should have DRQ", sector)
		for w := 0; w < 256; w++ {
			v := dataRead16(c, 0)
			got = append(got, byte(v), byte(v>>8))
		}
		waitIdle(c, 0)
	}
	require.Equal(t, disk.data[:256*512], got)
	require.Equal(t, int32(256), irq.asserts[0].Load())

	// command done: BSY clear, DRQ clear, no error
	st := cmdRead(c, 0, regStatusCmd)
	require.Equal(t, uint32(0), st&0x80)
	require.Equal(t, uint32(0), st&0x08)
	require.Equal(t, uint32(0), st&0x01)
	require.Equal(t, uint32(0), cmdRead(c, 0, regErrFeatures)&0x04)
}

func TestWriteSectorRoundTrip(t *testing.T) {
	c, _, _ := newTestController(t)
	disk := newDisk(16)
	c.RegisterDisk(0, 0, disk, "TEST DISK", "SN", "V1")

	cmdWrite(c, 0, regDriveHead, 0x40)
	cmdWrite(c, 0, regSectorCount, 1)
	cmdWrite(c, 0, regSectorNo, 3)
	cmdWrite(c, 0, regCylLow, 0)
	cmdWrite(c, 0, regCylHigh, 0)
	cmdWrite(c, 0, regStatusCmd, 0x30)
	waitIdle(c, 0)

	require.Equal(t, uint32(0x08), cmdRead(c, 0, regStatusCmd)&0x08)
	for w := 0; w < 256; w++ {
		dataWrite16(c, 0, uint16(w)|0xa000)
	}
	waitIdle(c, 0)

	st := cmdRead(c, 0, regStatusCmd)
	require.Equal(t, uint32(0), st&0x88) // BSY and DRQ clear
	for w := 0; w < 256; w++ {
		off := 3*512 + 2*w
		require.Equal(t, byte(w), disk.data[off])
		require.Equal(t, byte((uint16(w)|0xa000)>>8), disk.data[off+1])
	}
}

func TestInitDevParamsMismatchAborts(t *testing.T) {
	c, _, _ := newTestController(t)
	disk := newDisk(16)
	c.RegisterDisk(0, 0, disk, "TEST DISK", "SN", "V1")

	cmdWrite(c, 0, regDriveHead, 0x05) // heads+1 = 6, native is 16
	cmdWrite(c, 0, regSectorCount, 70) // native is 63
	cmdWrite(c, 0, regStatusCmd, 0x91)
	waitIdle(c, 0)

	require.Equal(t, uint32(0x01), cmdRead(c, 0, regStatusCmd)&0x01)
	require.Equal(t, uint32(0x04), cmdRead(c, 0, regErrFeatures)&0x04)
}

func TestSetMultipleThenSetFeatures(t *testing.T) {
	c, _, _ := newTestController(t)
	disk := newDisk(16)
	c.RegisterDisk(0, 0, disk, "TEST DISK", "SN", "V1")

	cmdWrite(c, 0, regSectorCount, 8)
	cmdWrite(c, 0, regStatusCmd, 0xc6)
	waitIdle(c, 0)
	require.Equal(t, 8, c.channels[0].drives[0].multipleSize)

	// multiword DMA mode 2 accepted
	cmdWrite(c, 0, regErrFeatures, 0x03)
	cmdWrite(c, 0, regSectorCount, 0x22)
	cmdWrite(c, 0, regStatusCmd, 0xef)
	waitIdle(c, 0)
	require.Equal(t, 2, c.channels[0].dmaMode)
	require.Equal(t, uint32(0), cmdRead(c, 0, regErrFeatures)&0x04)

	// ultra DMA aborted
	cmdWrite(c, 0, regErrFeatures, 0x03)
	cmdWrite(c, 0, regSectorCount, 0x41)
	cmdWrite(c, 0, regStatusCmd, 0xef)
	waitIdle(c, 0)
	require.Equal(t, uint32(0x04), cmdRead(c, 0, regErrFeatures)&0x04)
}

func writePRDEntry(t *testing.T, ram *memory.RAM, addr uint64, base uint32, length uint16, eol bool) {
	t.Helper()
	require.NoError(t, ram.Write(addr, 32, uint64(base)))
	require.NoError(t, ram.Write(addr+4, 16, uint64(length)))
	flag := uint64(0)
	if eol {
		flag = 0x80
	}
	require.NoError(t, ram.Write(addr+6, 8, 0))
	require.NoError(t, ram.Write(addr+7, 8, flag))
}

func TestBusmasterDMARead(t *testing.T) {
	c, ram, irq := newTestController(t)
	disk := newDisk(16)
	c.RegisterDisk(0, 0, disk, "TEST DISK", "SN", "V1")

	// PRD chain at 0x1000: 1024 bytes to 0x2000, 1024 bytes to 0x4000.
	writePRDEntry(t, ram, 0x1000, 0x2000, 1024, false)
	writePRDEntry(t, ram, 0x1008, 0x4000, 1024, true)

	cmdWrite(c, 0, regDriveHead, 0x40)
	cmdWrite(c, 0, regSectorCount, 4) // 2048 bytes
	cmdWrite(c, 0, regSectorNo, 0)
	cmdWrite(c, 0, regCylLow, 0)
	cmdWrite(c, 0, regCylHigh, 0)
	require.NoError(t, c.busmasterWrite(&c.channels[0], 4, 32, 0x1000))
	cmdWrite(c, 0, regStatusCmd, 0xc8)
	// start the busmaster engine, direction = to memory
	require.NoError(t, c.busmasterWrite(&c.channels[0], 0, 8, 0x09))
	waitIdle(c, 0)

	for i := 0; i < 1024; i++ {
		v, err := ram.Read(0x2000+uint64(i), 8)
		require.NoError(t, err)
		require.Equal(t, uint64(disk.data[i]), v)
		v, err = ram.Read(0x4000+uint64(i), 8)
		require.NoError(t, err)
		require.Equal(t, uint64(disk.data[1024+i]), v)
	}

	bm, err := c.busmasterRead(&c.channels[0], 2, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(0), bm&0x01)    // active clear
	require.Equal(t, uint32(0x04), bm&0x04) // interrupt latched
	require.Equal(t, int32(1), irq.asserts[0].Load())
}

func TestBusmasterCompletionCodes(t *testing.T) {
	c, ram, _ := newTestController(t)
	ch := &c.channels[0]

	// Chain shorter than buffer: code 1.
	writePRDEntry(t, ram, 0x1000, 0x2000, 512, true)
	require.NoError(t, c.busmasterWrite(ch, 4, 32, 0x1000))
	code, err := c.walkPRD(ch, dmaRequest{buffer: make([]byte, 1024)})
	require.NoError(t, err)
	require.Equal(t, dmaChainShort, code)

	// Chain longer than buffer: code 2.
	writePRDEntry(t, ram, 0x1000, 0x2000, 2048, true)
	code, err = c.walkPRD(ch, dmaRequest{buffer: make([]byte, 1024)})
	require.NoError(t, err)
	require.Equal(t, dmaBufferShort, code)

	// Chain matches buffer: code 0.
	writePRDEntry(t, ram, 0x1000, 0x2000, 1024, true)
	code, err = c.walkPRD(ch, dmaRequest{buffer: make([]byte, 1024)})
	require.NoError(t, err)
	require.Equal(t, dmaComplete, code)

	// Runaway chain: hard stop.
	for i := uint64(0); i < 40; i++ {
		writePRDEntry(t, ram, 0x1000+8*i, 0x2000, 1, false)
	}
	code, err = c.walkPRD(ch, dmaRequest{buffer: make([]byte, 65536)})
	require.NoError(t, err)
	require.Equal(t, -1, code)
}

func newCDMedia(blocks int) *fakeMedia {
	m := &fakeMedia{data: make([]byte, blocks*2048), blockSize: 2048, cdrom: true,
		cyl: 1, heads: 1, sectors: uint64(blocks)}
	for i := range m.data {
		m.data[i] = byte(i * 7)
	}
	return m
}

func TestAtapiPacketRead10(t *testing.T) {
	c, _, irq := newTestController(t)
	cd := newCDMedia(16)
	c.RegisterDisk(0, 0, cd, "AXPBOX CD", "SN", "V1")

	cmdWrite(c, 0, regDriveHead, 0x00) // device 0
	cmdWrite(c, 0, regErrFeatures, 0)  // PIO, no overlap
	cmdWrite(c, 0, regStatusCmd, 0xa0)
	waitIdle(c, 0)

	// REASON = C/D, DRQ set, 12 bytes expected.
	require.Equal(t, uint32(irCD), cmdRead(c, 0, regSectorCount))
	require.Equal(t, uint32(0x08), cmdRead(c, 0, regStatusCmd)&0x08)

	// READ(10), LBA 0, 2 blocks.
	packet := []byte{0x28, 0, 0, 0, 0, 0, 0, 0, 0x02, 0, 0, 0}
	for i := 0; i < 6; i++ {
		dataWrite16(c, 0, uint16(packet[2*i])|uint16(packet[2*i+1])<<8)
	}
	waitIdle(c, 0)

	// Data ready: REASON = I/O, byte count 4096, one interrupt so far.
	require.Equal(t, uint32(irIO), cmdRead(c, 0, regSectorCount))
	require.Equal(t, int32(1), irq.asserts[0].Load())
	require.Equal(t, uint32(4096&0xff), cmdRead(c, 0, regCylLow))
	require.Equal(t, uint32(4096>>8), cmdRead(c, 0, regCylHigh))

	got := make([]byte, 0, 4096)
	for w := 0; w < 2048; w++ {
		v := dataRead16(c, 0)
		got = append(got, byte(v), byte(v>>8))
	}
	waitIdle(c, 0)
	require.Equal(t, cd.data[:4096], got)

	// Command complete: REASON = C/D | I/O, DRDY set, BSY/DRQ clear.
	require.Equal(t, uint32(irCD|irIO), cmdRead(c, 0, regSectorCount))
	st := cmdRead(c, 0, regStatusCmd)
	require.Equal(t, uint32(0x40), st&0x40)
	require.Equal(t, uint32(0), st&0x88)
	require.Equal(t, int32(2), irq.asserts[0].Load())
}

func TestDeviceResetIdempotent(t *testing.T) {
	c, _, _ := newTestController(t)
	cd := newCDMedia(4)
	c.RegisterDisk(0, 0, cd, "AXPBOX CD", "SN", "V1")

	reset := func() {
		cmdWrite(c, 0, regStatusCmd, 0x08)
		waitIdle(c, 0)
	}
	reset()
	first := c.channels[0].drives[0]
	reset()
	second := c.channels[0].drives[0]
	require.Equal(t, first.regs, second.regs)
	require.Equal(t, first.status, second.status)
	require.Equal(t, 0xeb14, second.regs.cylinderNo)
}

func TestUnknownCommandKillsWorker(t *testing.T) {
	c, _, _ := newTestController(t)
	disk := newDisk(4)
	c.RegisterDisk(0, 0, disk, "TEST DISK", "SN", "V1")

	cmdWrite(c, 0, regStatusCmd, 0xfe)
	require.Eventually(t, func() bool { return c.dead[0].Load() },
		time.Second, time.Millisecond)
	require.Error(t, c.CheckState())
}
