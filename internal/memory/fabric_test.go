/*
 * axpbox-sub000 - Memory fabric test set.
 *
 * Copyright 2026, the axpbox-sub000 authors
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

package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRegion struct {
	readWidth  int
	lastOffset uint64
	lastValue  uint64
}

func (f *fakeRegion) ReadAt(offset uint64, widthBits int) (uint64, error) {
	f.lastOffset = offset
	f.readWidth = widthBits
	return 0xdeadbeef, nil
}

func (f *fakeRegion) WriteAt(offset uint64, widthBits int, value uint64) error {
	f.lastOffset = offset
	f.lastValue = value
	return nil
}

func TestRAMReadWriteRoundTrip(t *testing.T) {
	ram := NewRAM(4096)
	require.NoError(t, ram.Write(0x100, 32, 0x11223344))
	v, err := ram.Read(0x100, 32)
	require.NoError(t, err)
	require.Equal(t, uint64(0x11223344), v)
}

func TestRAMReadOutOfRange(t *testing.T) {
	ram := NewRAM(16)
	_, err := ram.Read(0x100, 64)
	require.Error(t, err)
}

func TestRAMDeviceRegionDispatch(t *testing.T) {
	ram := NewRAM(4096)
	dev := &fakeRegion{}
	ram.MapDevice(0x1f0, 8, dev)

	require.NoError(t, ram.Write(0x1f3, 8, 0x42))
	require.Equal(t, uint64(3), dev.lastOffset)
	require.Equal(t, uint64(0x42), dev.lastValue)

	v, err := ram.Read(0x1f0, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(0xdeadbeef), v)
}

func TestRAMMapDeviceOverlapPanics(t *testing.T) {
	ram := NewRAM(4096)
	ram.MapDevice(0x1f0, 8, &fakeRegion{})
	require.Panics(t, func() {
		ram.MapDevice(0x1f4, 8, &fakeRegion{})
	})
}

func TestRAMPointerWindow(t *testing.T) {
	ram := NewRAM(4096)
	require.NoError(t, ram.Write(0x200, 8, 0xab))
	p := ram.Pointer(0x200, 4)
	require.NotNil(t, p)
	require.Equal(t, byte(0xab), p[0])

	p[1] = 0xcd
	v, err := ram.Read(0x201, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(0xcd), v)
}

func TestRAMPointerDeniedOnDeviceRegion(t *testing.T) {
	ram := NewRAM(4096)
	ram.MapDevice(0x1f0, 8, &fakeRegion{})
	require.Nil(t, ram.Pointer(0x1f0, 4))
}

func TestRAMLockUnlockSucceedsWithoutInterveningStore(t *testing.T) {
	ram := NewRAM(4096)
	ram.Lock(0, 0x300)
	require.True(t, ram.Unlock(0, 0x300))
}

func TestRAMLockUnlockFailsAfterInterveningStore(t *testing.T) {
	ram := NewRAM(4096)
	ram.Lock(0, 0x300)
	require.NoError(t, ram.Write(0x300, 8, 1))
	require.False(t, ram.Unlock(0, 0x300))
}

func TestRAMLockUnlockFailsOnAddressMismatch(t *testing.T) {
	ram := NewRAM(4096)
	ram.Lock(0, 0x300)
	require.False(t, ram.Unlock(0, 0x304))
}

func TestRAMUnlockWithoutLockFails(t *testing.T) {
	ram := NewRAM(4096)
	require.False(t, ram.Unlock(0, 0x300))
}
