/*
 * axpbox-sub000 - Floating-point kernel.
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

// Package fpu implements the IEEE S/T and VAX F/G floating-point kernel:
// unpack/classify, NaN propagation, infinity arithmetic, round/pack to S or
// T precision, square root, integer conversion, and FPCR trap-summary
// bookkeeping. Every floating register holds its value in a 64-bit
// T-shaped container (11-bit biased exponent, 52-bit fraction) regardless
// of the instruction's precision, matching the widened memory forms
// described for S/T loads.
package fpu

import "math/bits"

// Class is the result of unpacking an operand.
type Class int

const (
	ClassZero Class = iota
	ClassFinite
	ClassDenorm
	ClassInf
	ClassNaN
)

// Unpacked is the internal operand form: sign, biased exponent, and a
// 64-bit fraction with an explicit hidden bit plus four guard bits below
// the binary point, matching the kernel's working precision.
type Unpacked struct {
	Sign  bool
	Exp   int // biased exponent as stored in the container (0..0x7ff for IEEE)
	Frac  uint64
	Class Class
}

const (
	ieeeExpBits  = 11
	ieeeExpBias  = 1023
	ieeeFracBits = 52
	ieeeExpMax   = (1 << ieeeExpBits) - 1
	guardBits    = 4
)

// unpackIEEE splits a 64-bit T-container into sign/exponent/fraction and
// classifies it, left-justifying the fraction with guardBits of headroom
// for the rounder.
func unpackIEEE(v uint64) Unpacked {
	sign := v>>63 != 0
	exp := int((v >> ieeeFracBits) & ieeeExpMax)
	frac := v & (1<<ieeeFracBits - 1)

	u := Unpacked{Sign: sign, Exp: exp}

	switch {
	case exp == 0 && frac == 0:
		u.Class = ClassZero
	case exp == 0:
		u.Class = ClassDenorm
		u.Frac = frac << guardBits
	case exp == ieeeExpMax && frac == 0:
		u.Class = ClassInf
	case exp == ieeeExpMax:
		u.Class = ClassNaN
		u.Frac = frac << guardBits
	default:
		u.Class = ClassFinite
		u.Frac = (frac | (1 << ieeeFracBits)) << guardBits
	}
	return u
}

// packIEEE reassembles a T-container, rounding frac (with guardBits of
// headroom) to fracBits of significand per mode. fracBits is 23 for S
// (then widened back into the 52-bit container) or 52 for T.
func packIEEE(sign bool, exp int, frac uint64, fracBits int, mode RoundMode) uint64 {
	shift := uint(ieeeFracBits + guardBits - fracBits)
	rounded, carry := roundShift(frac, shift, mode, sign)
	if carry {
		exp++
	}
	if exp >= ieeeExpMax {
		return packInf(sign)
	}
	mant := rounded & (1<<ieeeFracBits - 1)
	if fracBits < ieeeFracBits {
		mant <<= uint(ieeeFracBits - fracBits)
	}
	return pack(sign, exp, mant)
}

func pack(sign bool, exp int, frac uint64) uint64 {
	var v uint64
	if sign {
		v |= 1 << 63
	}
	v |= uint64(exp&ieeeExpMax) << ieeeFracBits
	v |= frac & (1<<ieeeFracBits - 1)
	return v
}

func packInf(sign bool) uint64 {
	return pack(sign, ieeeExpMax, 0)
}

func packZero(sign bool) uint64 {
	return pack(sign, 0, 0)
}

// QuietNaN is the canonical quiet NaN used for invalid-operation results.
const QuietNaN = uint64(0x7ff8000000000000)

func isSignaling(v uint64) bool {
	return (v>>ieeeFracBits)&ieeeExpMax == ieeeExpMax && v&(1<<(ieeeFracBits-1)) == 0 && v&(1<<ieeeFracBits-1) != 0
}

// quiet sets the is-quiet bit on a NaN payload, leaving the rest alone.
func quiet(v uint64) uint64 {
	return v | (1 << (ieeeFracBits - 1))
}

// RoundMode selects the rounding applied when packing a result.
type RoundMode int

const (
	RoundChopped RoundMode = iota
	RoundMinusInf
	RoundNearest
	RoundDynamic
	// RoundPlusInf is only reachable through the FPCR's dynamic mode
	// field; the instruction rounding field encodes at most Dynamic.
	RoundPlusInf
)

// resolve maps Dynamic to the mode recorded in the FPCR.
func (m RoundMode) resolve(f *FPCR) RoundMode {
	if m == RoundDynamic {
		return f.DynamicMode
	}
	return m
}

// roundShift shifts frac right by shift bits under mode, reporting whether
// the rounded result carried into bit shift (mantissa overflow).
func roundShift(frac uint64, shift uint, mode RoundMode, sign bool) (uint64, bool) {
	if shift == 0 {
		return frac, false
	}
	if shift >= 64 {
		if frac != 0 && roundsUp(false, true, mode, sign) {
			return 1, false
		}
		return 0, false
	}
	kept := frac >> shift
	rem := frac & (1<<shift - 1)
	half := uint64(1) << (shift - 1)
	atLeastHalf := rem >= half

	if rem != 0 && roundsUp(atLeastHalf, rem != 0, mode, sign) {
		kept++
	}
	carry := bits.Len64(kept) > ieeeFracBits+1
	return kept, carry
}

// roundsUp reports whether a truncated result should be incremented.
// atLeastHalf distinguishes ties (>= half) from a plain sticky remainder
// for the nearest/dynamic modes; lost is always true when called.
func roundsUp(atLeastHalf, lost bool, mode RoundMode, sign bool) bool {
	if !lost {
		return false
	}
	switch mode {
	case RoundChopped:
		return false
	case RoundMinusInf:
		return sign
	case RoundPlusInf:
		return !sign
	default: // RoundNearest, RoundDynamic already resolved by caller
		return atLeastHalf
	}
}

// FPCR is the floating-point control register: trap-enable bits, the
// dynamic rounding mode, and the accumulated exception summary.
type FPCR struct {
	DynamicMode RoundMode

	InvalidDisable  bool
	DivZeroDisable  bool
	OverflowDisable bool
	UnderflowDisable bool
	InexactDisable  bool
	IntOverflowDisable bool

	Invalid  bool
	DivZero  bool
	Overflow bool
	Underflow bool
	Inexact  bool
	IntOverflow bool

	Summary bool
}

// raise sets the named summary bit and, if its disable bit is clear, the
// Summary (SUM) bit that triggers an arithmetic trap at instruction
// completion.
func (f *FPCR) raiseInvalid() {
	f.Invalid = true
	if !f.InvalidDisable {
		f.Summary = true
	}
}

func (f *FPCR) raiseDivZero() {
	f.DivZero = true
	if !f.DivZeroDisable {
		f.Summary = true
	}
}

func (f *FPCR) raiseOverflow() {
	f.Overflow = true
	if !f.OverflowDisable {
		f.Summary = true
	}
}

func (f *FPCR) raiseUnderflow() {
	f.Underflow = true
	if !f.UnderflowDisable {
		f.Summary = true
	}
}

func (f *FPCR) raiseInexact() {
	f.Inexact = true
	if !f.InexactDisable {
		f.Summary = true
	}
}

func (f *FPCR) raiseIntOverflow() {
	f.IntOverflow = true
	if !f.IntOverflowDisable {
		f.Summary = true
	}
}
