/*
 * axpbox-sub000 - Save/restore framing.
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

// Package state frames component snapshots in the save/restore file: each
// section is a pair of 32-bit magic values around a size-checked binary
// image. A restore refuses a section whose magics or size disagree with
// the running build.
package state

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Component magics.
const (
	CPUMagic1 uint32 = 0xa1fac0de
	CPUMagic2 uint32 = 0xedc0caf1

	IDEMagic1 uint32 = 0xb222654d
	IDEMagic2 uint32 = 0xd456222c

	PCIMagic1 uint32 = 0x0c1f0c1f
	PCIMagic2 uint32 = 0xf1c0f1c0

	DiskMagic1 uint32 = 0xd15cd15c
	DiskMagic2 uint32 = 0xc51dc51d
)

// WriteSection frames v (a fixed-size struct) between the two magics.
func WriteSection(w io.Writer, magic1, magic2 uint32, v any) error {
	var body bytes.Buffer
	if err := binary.Write(&body, binary.LittleEndian, v); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, magic1); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(body.Len())); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, magic2)
}

// ReadSection verifies the magics and the stored size against v's own
// size, then fills v.
func ReadSection(r io.Reader, magic1, magic2 uint32, v any) error {
	var m1, size uint32
	if err := binary.Read(r, binary.LittleEndian, &m1); err != nil {
		return err
	}
	if m1 != magic1 {
		return fmt.Errorf("state: bad leading magic %#x, want %#x", m1, magic1)
	}
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return err
	}
	want := binary.Size(v)
	if want < 0 || uint32(want) != size {
		return fmt.Errorf("state: section size %d does not match %d", size, want)
	}
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return err
	}
	var m2 uint32
	if err := binary.Read(r, binary.LittleEndian, &m2); err != nil {
		return err
	}
	if m2 != magic2 {
		return fmt.Errorf("state: bad trailing magic %#x, want %#x", m2, magic2)
	}
	return nil
}
