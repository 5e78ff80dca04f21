/*
 * axpbox-sub000 - PCI configuration space tests.
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

package pci

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ideFunction() *Function {
	var data, mask [configWords]uint32
	data[0] = 0x522910b9 // device/vendor
	data[2] = 0x0101fac1 // class code / revision
	mask[1] = 0x00000107 // command register writable bits
	mask[4] = 0xfffffff8 // BAR0
	mask[15] = 0x000000ff
	return NewFunction(0, 13, 1, data, mask)
}

func TestConfigReadWidths(t *testing.T) {
	f := ideFunction()
	require.Equal(t, uint32(0x522910b9), f.ConfigRead(0, 32))
	require.Equal(t, uint32(0x10b9), f.ConfigRead(0, 16))
	require.Equal(t, uint32(0x5229), f.ConfigRead(2, 16))
	require.Equal(t, uint32(0x52), f.ConfigRead(3, 8))
}

func TestConfigWriteMasked(t *testing.T) {
	f := ideFunction()

	// Vendor/device is read-only.
	f.ConfigWrite(0, 32, 0xdeadbeef)
	require.Equal(t, uint32(0x522910b9), f.ConfigRead(0, 32))

	// BAR0 keeps its I/O indicator bits.
	f.ConfigWrite(0x10, 32, 0xffffffff)
	require.Equal(t, uint32(0xfffffff8), f.ConfigRead(0x10, 32))
	f.ConfigWrite(0x10, 32, 0x1f01)
	require.Equal(t, uint32(0x1f00), f.ConfigRead(0x10, 32))

	// Interrupt line byte.
	f.ConfigWrite(0x3c, 8, 0x0e)
	require.Equal(t, uint32(0x0e), f.ConfigRead(0x3c, 8))
}

type recordingHandler struct {
	lastOffset uint32
	lastValue  uint32
}

func (h *recordingHandler) ReadIO(offset uint32, widthBits int) (uint32, error) {
	h.lastOffset = offset
	return 0x42, nil
}

func (h *recordingHandler) WriteIO(offset uint32, widthBits int, value uint32) error {
	h.lastOffset = offset
	h.lastValue = value
	return nil
}

func TestIOMapDispatch(t *testing.T) {
	var m IOMap
	h := &recordingHandler{}
	require.NoError(t, m.RegisterIO(0x1f0, 8, h))

	v, err := m.ReadIO(0x1f7, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(0x42), v)
	require.Equal(t, uint32(7), h.lastOffset)

	require.NoError(t, m.WriteIO(0x1f1, 8, 0x55))
	require.Equal(t, uint32(1), h.lastOffset)
	require.Equal(t, uint32(0x55), h.lastValue)
}

func TestIOMapUnclaimed(t *testing.T) {
	var m IOMap
	v, err := m.ReadIO(0x300, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(0xff), v)
	require.NoError(t, m.WriteIO(0x300, 8, 1))
}

func TestIOMapOverlapRejected(t *testing.T) {
	var m IOMap
	h := &recordingHandler{}
	require.NoError(t, m.RegisterIO(0x1f0, 8, h))
	require.Error(t, m.RegisterIO(0x1f4, 8, h))
}
