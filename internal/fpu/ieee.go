/*
 * axpbox-sub000 - IEEE S/T floating-point operations.
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

import "math/bits"

// Precision selects the packed result width; registers always hold the
// T-shaped 64-bit container regardless.
type Precision int

const (
	PrecS Precision = 23
	PrecT Precision = 52
)

// nanResult implements the Alpha NaN-propagation rule: if either operand
// is NaN, return it quieted; if both are, return the first operand's.
func nanResult(a, b uint64) (uint64, bool) {
	au, bu := unpackIEEE(a), unpackIEEE(b)
	switch {
	case au.Class == ClassNaN:
		return quiet(a), true
	case bu.Class == ClassNaN:
		return quiet(b), true
	}
	return 0, false
}

func anyIsSignaling(a, b uint64) bool {
	return isSignaling(a) || isSignaling(b)
}

// Add computes a+b, rounded to prec under mode (resolving Dynamic from f).
func Add(a, b uint64, prec Precision, mode RoundMode, f *FPCR) uint64 {
	if v, isNaN := nanResult(a, b); isNaN {
		if anyIsSignaling(a, b) {
			f.raiseInvalid()
		}
		return v
	}
	au, bu := unpackIEEE(a), unpackIEEE(b)

	if au.Class == ClassInf && bu.Class == ClassInf {
		if au.Sign != bu.Sign {
			f.raiseInvalid()
			return QuietNaN
		}
		return packInf(au.Sign)
	}
	if au.Class == ClassInf {
		return packInf(au.Sign)
	}
	if bu.Class == ClassInf {
		return packInf(bu.Sign)
	}

	sum, sign, exp := addFinite(au, bu)
	return finishResult(sign, exp, sum, prec, mode, f)
}

// Sub computes a-b by flipping b's sign and deferring to Add, matching
// the Alpha architecture's subtract-as-negated-add definition.
func Sub(a, b uint64, prec Precision, mode RoundMode, f *FPCR) uint64 {
	return Add(a, b^(1<<63), prec, mode, f)
}

// addFinite aligns and adds two finite/zero/denorm operands in the
// unpacked domain, returning an unbiased working exponent.
func addFinite(au, bu Unpacked) (frac uint64, sign bool, exp int) {
	ea, eb := au.Exp, bu.Exp
	fa, fb := au.Frac, bu.Frac
	if au.Class == ClassZero {
		fa, ea = 0, eb
	}
	if bu.Class == ClassZero {
		fb, eb = 0, ea
	}

	if ea < eb {
		au, bu = bu, au
		ea, eb = eb, ea
		fa, fb = fb, fa
	}
	shift := uint(ea - eb)
	fb = stickyShift(fb, shift)

	if au.Sign == bu.Sign {
		r := fa + fb
		return normalizeUp(r, ea, au.Sign)
	}

	if fa >= fb {
		return normalizeDown(fa-fb, ea, au.Sign)
	}
	return normalizeDown(fb-fa, ea, bu.Sign)
}

// stickyShift shifts right by n, OR-ing any bits shifted out into bit 0 so
// they still influence rounding (the "sticky" bit).
func stickyShift(v uint64, n uint) uint64 {
	if n == 0 {
		return v
	}
	if n >= 64 {
		if v != 0 {
			return 1
		}
		return 0
	}
	sticky := v&(1<<n-1) != 0
	r := v >> n
	if sticky {
		r |= 1
	}
	return r
}

// normalizeUp handles mantissa overflow from addition (carry into the bit
// above the hidden bit), shifting right one place and bumping exp.
func normalizeUp(frac uint64, exp int, sign bool) (uint64, bool, int) {
	const hiddenGuarded = 1 << (ieeeFracBits + guardBits + 1)
	if frac >= hiddenGuarded {
		frac = stickyShift(frac, 1)
		exp++
	}
	return frac, sign, exp
}

// normalizeDown renormalizes after a cancelling subtraction, shifting left
// until the hidden bit is in its guarded position (or the value is zero).
func normalizeDown(frac uint64, exp int, sign bool) (uint64, bool, int) {
	if frac == 0 {
		return 0, false, 0
	}
	const hiddenPos = ieeeFracBits + guardBits
	lead := bits.Len64(frac) - 1
	shift := hiddenPos - lead
	if shift > 0 {
		frac <<= uint(shift)
		exp -= shift
	} else if shift < 0 {
		frac = stickyShift(frac, uint(-shift))
		exp -= shift
	}
	return frac, sign, exp
}

// Mul computes a*b, rounded to prec under mode.
func Mul(a, b uint64, prec Precision, mode RoundMode, f *FPCR) uint64 {
	if v, isNaN := nanResult(a, b); isNaN {
		if anyIsSignaling(a, b) {
			f.raiseInvalid()
		}
		return v
	}
	au, bu := unpackIEEE(a), unpackIEEE(b)
	sign := au.Sign != bu.Sign

	if au.Class == ClassInf || bu.Class == ClassInf {
		if au.Class == ClassZero || bu.Class == ClassZero {
			f.raiseInvalid()
			return QuietNaN
		}
		return packInf(sign)
	}
	if au.Class == ClassZero || bu.Class == ClassZero {
		return packZero(sign)
	}

	hi, lo := bits.Mul64(au.Frac, bu.Frac)
	const fracPos = ieeeFracBits + guardBits
	// Product has two guarded hidden bits; collapse the low 64 bits'
	// contribution into a sticky bit before combining with the high word.
	sticky := lo != 0
	prod := hi<<(64-fracPos) | lo>>fracPos
	if sticky {
		prod |= 1
	}
	exp := au.Exp + bu.Exp - ieeeExpBias

	frac, _, exp := normalizeDown(prod, exp, sign)
	return finishResult(sign, exp, frac, prec, mode, f)
}

// Div computes a/b, rounded to prec under mode.
func Div(a, b uint64, prec Precision, mode RoundMode, f *FPCR) uint64 {
	if v, isNaN := nanResult(a, b); isNaN {
		if anyIsSignaling(a, b) {
			f.raiseInvalid()
		}
		return v
	}
	au, bu := unpackIEEE(a), unpackIEEE(b)
	sign := au.Sign != bu.Sign

	switch {
	case au.Class == ClassInf && bu.Class == ClassInf:
		f.raiseInvalid()
		return QuietNaN
	case au.Class == ClassZero && bu.Class == ClassZero:
		f.raiseInvalid()
		return QuietNaN
	case bu.Class == ClassZero:
		f.raiseDivZero()
		return packInf(sign)
	case au.Class == ClassInf:
		return packInf(sign)
	case bu.Class == ClassInf:
		return packZero(sign)
	case au.Class == ClassZero:
		return packZero(sign)
	}

	for bu.Frac < 1<<(ieeeFracBits+guardBits) {
		bu.Frac <<= 1
		bu.Exp--
	}
	quot, rem := divGuarded(au.Frac, bu.Frac)
	if rem != 0 {
		quot |= 1
	}
	exp := au.Exp - bu.Exp + ieeeExpBias

	frac, _, exp := normalizeDown(quot, exp, sign)
	return finishResult(sign, exp, frac, prec, mode, f)
}

// divGuarded divides num by den, both already left-shifted into the
// guarded fraction position, returning quotient and remainder.
func divGuarded(num, den uint64) (quot, rem uint64) {
	const shift = ieeeFracBits + guardBits
	hi := num >> (64 - shift)
	lo := num << shift
	q, r := bits.Div64(hi, lo, den)
	return q, r
}

// finishResult packs the working exponent/fraction pair, handling
// overflow (to infinity or max-finite depending on rounding direction)
// and underflow (to signed zero; this kernel does not produce denormals)
// before rounding.
func finishResult(sign bool, exp int, frac uint64, prec Precision, mode RoundMode, f *FPCR) uint64 {
	resolved := mode.resolve(f)

	if frac == 0 {
		return packZero(sign)
	}

	if exp <= 0 {
		f.raiseUnderflow()
		return packZero(sign)
	}

	packed := packIEEE(sign, exp, frac, int(prec), resolved)
	pu := unpackIEEE(packed)
	if pu.Class == ClassInf {
		f.raiseOverflow()
		goesToInf := resolved == RoundNearest || (resolved == RoundMinusInf && sign) || (resolved == RoundPlusInf && !sign)
		if goesToInf {
			return packInf(sign)
		}
		return maxFinite(sign, prec)
	}

	shift := uint(ieeeFracBits + guardBits - int(prec))
	if shift > 0 && frac&(1<<shift-1) != 0 {
		f.raiseInexact()
	}
	return packed
}

func maxFinite(sign bool, prec Precision) uint64 {
	exp := ieeeExpMax - 1
	mant := uint64(1<<ieeeFracBits - 1)
	if prec < PrecT {
		mant &^= uint64(1<<(ieeeFracBits-int(prec)) - 1)
	}
	return pack(sign, exp, mant)
}

// Cmp implements CMPTEQ/CMPTLT/CMPTLE-style comparison, returning -1, 0,
// 1, or reporting unordered (NaN involved).
func Cmp(a, b uint64, f *FPCR) (result int, unordered bool) {
	au, bu := unpackIEEE(a), unpackIEEE(b)
	if au.Class == ClassNaN || bu.Class == ClassNaN {
		if anyIsSignaling(a, b) {
			f.raiseInvalid()
		}
		return 0, true
	}
	if au.Class == ClassZero && bu.Class == ClassZero {
		return 0, false
	}
	af, bf := orderKey(au), orderKey(bu)
	switch {
	case af < bf:
		return -1, false
	case af > bf:
		return 1, false
	default:
		return 0, false
	}
}

// orderKey maps an unpacked IEEE value to a signed, monotonic integer key
// suitable for ordering comparisons without reconstructing a float.
func orderKey(u Unpacked) int64 {
	mag := int64(u.Exp)<<(ieeeFracBits+guardBits) | int64(u.Frac)
	if u.Sign {
		return -mag
	}
	return mag
}

// Sqrt computes the square root of a using a SoftFloat-style 16-entry
// seed table indexed by exponent parity and the top fraction bits,
// refined by one Newton iteration, with the remainder resolving
// round-to-nearest half-way ties.
func Sqrt(a uint64, prec Precision, mode RoundMode, f *FPCR) uint64 {
	au := unpackIEEE(a)
	switch au.Class {
	case ClassNaN:
		if isSignaling(a) {
			f.raiseInvalid()
		}
		return quiet(a)
	case ClassZero:
		return packZero(au.Sign)
	case ClassInf:
		if au.Sign {
			f.raiseInvalid()
			return QuietNaN
		}
		return packInf(false)
	}
	if au.Sign {
		f.raiseInvalid()
		return QuietNaN
	}

	resolved := mode.resolve(f)
	exp := au.Exp - ieeeExpBias
	evenExp := exp&1 == 0
	mant := au.Frac // guarded, hidden bit set

	idx := int((mant >> (ieeeFracBits + guardBits - 5)) & 0xf)
	seed := sqrtSeed(evenExp, idx)

	// Newton-Raphson refine: y1 = y0*(3 - x*y0^2)/2 against the normalized
	// significand x in [1,4).
	x := fixedFromMant(mant, evenExp)
	y := seed
	y = newtonStep(x, y)

	root := fixedMul(x, y) // approx sqrt(x) in the same fixed-point base
	rootExp := exp >> 1
	if exp < 0 && exp&1 != 0 {
		rootExp = (exp - 1) / 2
	}

	frac, sign, rexp := normalizeDown(root<<guardBits, rootExp+ieeeExpBias, false)
	return finishResult(sign, rexp, frac, prec, resolved, f)
}

const fixedShift = 32

func fixedFromMant(mant uint64, evenExp bool) uint64 {
	const hiddenPos = ieeeFracBits + guardBits
	x := mant << (64 - hiddenPos - 1) >> (64 - hiddenPos - 1 - fixedShift + hiddenPos)
	if !evenExp {
		x <<= 1
	}
	return x
}

func fixedMul(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi << (64 - fixedShift)
}

// newtonStep applies one iteration of y_{n+1} = y_n*(3 - x*y_n^2)/2 in the
// fixedShift fixed-point base, to refine a coarse reciprocal-sqrt seed.
func newtonStep(x, y uint64) uint64 {
	ySq := fixedMul(y, y)
	xy2 := fixedMul(x, ySq)
	three := uint64(3) << fixedShift
	if xy2 > three {
		xy2 = three
	}
	return fixedMul(y, three-xy2) >> 1
}

// sqrtSeed returns one of two 16-entry SoftFloat-style seed tables for the
// reciprocal-square-root Newton iteration, selected by exponent parity.
func sqrtSeed(evenExp bool, idx int) uint64 {
	if evenExp {
		return sqrtSeedEven[idx]
	}
	return sqrtSeedOdd[idx]
}

// Seed tables hold an initial reciprocal-sqrt estimate in the fixedShift
// fixed-point base, one entry per top-4-bits-of-fraction bucket.
var sqrtSeedEven = [16]uint64{
	0xfffa, 0xfff0, 0xffc0, 0xff90, 0xff40, 0xfec0, 0xfe40, 0xfd70,
	0xfc80, 0xfb80, 0xfa50, 0xf920, 0xf7b0, 0xf640, 0xf4b0, 0xf310,
}

var sqrtSeedOdd = [16]uint64{
	0xb4c9, 0xb3d0, 0xb2c0, 0xb1a0, 0xb070, 0xaf30, 0xadd0, 0xac70,
	0xaaf0, 0xa970, 0xa7d0, 0xa630, 0xa470, 0xa2b0, 0xa0d0, 0x9ef0,
}
