/*
 * axpbox-sub000 - Disk target save/restore.
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
	"io"

	"github.com/lenticularis39/axpbox-sub000/internal/state"
)

// diskSnapshot is the SCSI sub-state carried in the save file: cursor
// positions and sense data; the bulk data buffers refill from the
// command stream.
type diskSnapshot struct {
	BlockSize uint64
	BytePos   uint64
	Locked    uint8

	CmdWritten   int32
	CmdExpected  int32
	Cmd          [smallBufSize]byte
	StatAvail    int32
	StatRead     int32
	Stat         [smallBufSize]byte
	SenseAvail   int32
	Sense        [smallBufSize]byte
	DatiAvail    int32
	DatiRead     int32
	DatoExpected int32
	DatoWritten  int32
}

// SaveState writes the target's sub-state framed by the disk magics.
func (d *Disk) SaveState(w io.Writer) error {
	s := diskSnapshot{
		BlockSize:    d.blockSize,
		BytePos:      d.bytePos,
		CmdWritten:   int32(d.cmd.written),
		CmdExpected:  int32(d.cmd.expected),
		StatAvail:    int32(d.stat.available),
		StatRead:     int32(d.stat.read),
		SenseAvail:   int32(d.sense.available),
		DatiAvail:    int32(d.dati.available),
		DatiRead:     int32(d.dati.read),
		DatoExpected: int32(d.dato.expected),
		DatoWritten:  int32(d.dato.written),
	}
	if d.locked {
		s.Locked = 1
	}
	copy(s.Cmd[:], d.cmd.data)
	copy(s.Stat[:], d.stat.data)
	copy(s.Sense[:], d.sense.data[:])
	return state.WriteSection(w, state.DiskMagic1, state.DiskMagic2, &s)
}

// RestoreState reads the target's sub-state back.
func (d *Disk) RestoreState(r io.Reader) error {
	var s diskSnapshot
	if err := state.ReadSection(r, state.DiskMagic1, state.DiskMagic2, &s); err != nil {
		return err
	}
	d.blockSize = s.BlockSize
	d.bytePos = s.BytePos
	d.locked = s.Locked != 0
	d.cmd.written = int(s.CmdWritten)
	d.cmd.expected = int(s.CmdExpected)
	d.stat.available = int(s.StatAvail)
	d.stat.read = int(s.StatRead)
	d.sense.available = int(s.SenseAvail)
	d.dati.available = int(s.DatiAvail)
	d.dati.read = int(s.DatiRead)
	d.dato.expected = int(s.DatoExpected)
	d.dato.written = int(s.DatoWritten)
	copy(d.cmd.data, s.Cmd[:])
	copy(d.stat.data, s.Stat[:])
	copy(d.sense.data[:], s.Sense[:])
	return nil
}
