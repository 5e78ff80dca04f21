/*
 * axpbox-sub000 - Disk image backend tests.
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

package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeImage(t *testing.T, blocks int, blockSize int) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "disk.img")
	data := make([]byte, blocks*blockSize)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(name, data, 0o644))
	return name
}

func TestGeometry512MiB(t *testing.T) {
	// 1048576 blocks of 512 bytes is the canonical 512 MiB disk.
	cyl, heads, secs := deriveGeometry(1048576)
	require.Equal(t, uint64(1041), cyl)
	require.Equal(t, uint64(16), heads)
	require.Equal(t, uint64(63), secs)
}

func TestGeometryTiny(t *testing.T) {
	cyl, heads, secs := deriveGeometry(63)
	require.Equal(t, uint64(1), cyl)
	require.Equal(t, uint64(1), heads)
	require.Equal(t, uint64(63), secs)
}

func TestOpenDisk(t *testing.T) {
	name := makeImage(t, 16, 512)
	img, err := Open(name, false, false)
	require.NoError(t, err)
	defer img.Close()

	require.Equal(t, uint64(512), img.BlockSize())
	require.Equal(t, uint64(16), img.LBASize())
	require.False(t, img.ReadOnly())
	require.False(t, img.IsCDROM())

	buf := make([]byte, 512)
	require.NoError(t, img.SeekByte(512))
	n, err := img.ReadBytes(buf)
	require.NoError(t, err)
	require.Equal(t, 512, n)
	require.Equal(t, byte(512&0xff), buf[0])
}

func TestOpenCDROM(t *testing.T) {
	name := makeImage(t, 4, 2048)
	img, err := Open(name, true, false)
	require.NoError(t, err)
	defer img.Close()

	require.Equal(t, uint64(2048), img.BlockSize())
	require.True(t, img.ReadOnly())
	require.True(t, img.IsCDROM())

	_, err = img.WriteBytes([]byte{1})
	require.Error(t, err)
}

func TestWriteReadBack(t *testing.T) {
	name := makeImage(t, 8, 512)
	img, err := Open(name, false, false)
	require.NoError(t, err)
	defer img.Close()

	out := make([]byte, 512)
	for i := range out {
		out[i] = 0x5a
	}
	require.NoError(t, img.SeekByte(1024))
	_, err = img.WriteBytes(out)
	require.NoError(t, err)

	in := make([]byte, 512)
	require.NoError(t, img.SeekByte(1024))
	_, err = img.ReadBytes(in)
	require.NoError(t, err)
	require.Equal(t, out, in)
}
