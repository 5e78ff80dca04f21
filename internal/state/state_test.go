/*
 * axpbox-sub000 - Save/restore framing tests.
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

package state

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	A uint64
	B [4]uint32
	C uint8
}

func TestRoundTrip(t *testing.T) {
	in := sample{A: 0x1122334455667788, B: [4]uint32{1, 2, 3, 4}, C: 9}
	var buf bytes.Buffer
	require.NoError(t, WriteSection(&buf, CPUMagic1, CPUMagic2, &in))

	var out sample
	require.NoError(t, ReadSection(&buf, CPUMagic1, CPUMagic2, &out))
	require.Equal(t, in, out)
}

func TestBadMagicRefused(t *testing.T) {
	in := sample{A: 1}
	var buf bytes.Buffer
	require.NoError(t, WriteSection(&buf, CPUMagic1, CPUMagic2, &in))

	var out sample
	require.Error(t, ReadSection(&buf, IDEMagic1, IDEMagic2, &out))
}

func TestSizeMismatchRefused(t *testing.T) {
	in := sample{A: 1}
	var buf bytes.Buffer
	require.NoError(t, WriteSection(&buf, CPUMagic1, CPUMagic2, &in))

	var out struct {
		A uint64
		B uint64
	}
	require.Error(t, ReadSection(&buf, CPUMagic1, CPUMagic2, &out))
}
