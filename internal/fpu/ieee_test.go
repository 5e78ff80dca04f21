/*
 * axpbox-sub000 - IEEE floating-point kernel test set.
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

package fpu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddTOnePointFivePlusTwoPointTwoFive(t *testing.T) {
	f := &FPCR{}
	f1 := uint64(0x3FF8000000000000) // 1.5
	f2 := uint64(0x4002000000000000) // 2.25
	got := Add(f1, f2, PrecT, RoundNearest, f)
	require.Equal(t, uint64(0x400E000000000000), got)
	require.False(t, f.Inexact)
}

func TestAddInfinityMinusInfinityIsInvalid(t *testing.T) {
	f := &FPCR{}
	posInf := packInf(false)
	negInf := packInf(true)
	got := Add(posInf, negInf, PrecT, RoundNearest, f)
	require.Equal(t, QuietNaN, got)
	require.True(t, f.Invalid)
}

func TestDivByZeroRaisesDivZero(t *testing.T) {
	f := &FPCR{}
	one := Add(packZero(false), LoadT(0x3FF0000000000000), PrecT, RoundNearest, &FPCR{})
	got := Div(one, packZero(false), PrecT, RoundNearest, f)
	require.True(t, f.DivZero)
	require.Equal(t, ClassInf, unpackIEEE(got).Class)
}

func TestZeroDivZeroIsInvalid(t *testing.T) {
	f := &FPCR{}
	got := Div(packZero(false), packZero(true), PrecT, RoundNearest, f)
	require.True(t, f.Invalid)
	require.Equal(t, QuietNaN, got)
}

func TestNaNPropagationReturnsFirstWhenBothNaN(t *testing.T) {
	f := &FPCR{}
	n1 := quiet(pack(false, ieeeExpMax, 1))
	n2 := quiet(pack(true, ieeeExpMax, 2))
	got := Add(n1, n2, PrecT, RoundNearest, f)
	require.Equal(t, n1, got)
}

func TestMulByZero(t *testing.T) {
	f := &FPCR{}
	got := Mul(packZero(false), LoadT(0x4002000000000000), PrecT, RoundNearest, f)
	require.Equal(t, packZero(false), got)
}

func TestSubUsesAddWithFlippedSign(t *testing.T) {
	f := &FPCR{}
	five := LoadT(0x4014000000000000)
	three := LoadT(0x4008000000000000)
	got := Sub(five, three, PrecT, RoundNearest, f)
	require.Equal(t, LoadT(0x4000000000000000), got) // 2.0
}

func TestCmpOrdersFiniteValues(t *testing.T) {
	f := &FPCR{}
	lo := LoadT(0x3FF0000000000000) // 1.0
	hi := LoadT(0x4000000000000000) // 2.0
	r, unordered := Cmp(lo, hi, f)
	require.False(t, unordered)
	require.Equal(t, -1, r)
}

func TestSqrtOfFour(t *testing.T) {
	f := &FPCR{}
	four := LoadT(0x4010000000000000)
	got := Sqrt(four, PrecT, RoundNearest, f)
	gotExp := (got >> ieeeFracBits) & ieeeExpMax
	require.Equal(t, uint64(ieeeExpBias+1), gotExp) // 2.0 has exponent 1
}

func TestSqrtOfNegativeIsInvalid(t *testing.T) {
	f := &FPCR{}
	negOne := LoadT(0x3FF0000000000000) | (1 << 63)
	got := Sqrt(negOne, PrecT, RoundNearest, f)
	require.True(t, f.Invalid)
	require.Equal(t, QuietNaN, got)
}

func TestLoadStoreSRoundTrip(t *testing.T) {
	mem := uint32(0x40000000) // 2.0 in S format
	reg := LoadS(mem)
	require.Equal(t, mem, StoreS(reg))
}

func TestWidenExpTableBoundaries(t *testing.T) {
	require.Equal(t, uint64(0), widenExp(0))
	require.Equal(t, uint64(0x7ff), widenExp(0xff))
	require.Equal(t, uint64(0x400), widenExp(0x80))
	require.Equal(t, uint64(0x381), widenExp(0x01))
}
