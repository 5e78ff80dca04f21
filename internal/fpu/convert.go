/*
 * axpbox-sub000 - Floating/integer conversions.
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

// CvtTQ implements CVTTQ: IEEE T to 64-bit integer, per mode. A
// non-finite operand raises invalid; overflow returns the architectural
// low-order 64 bits and raises IntOverflow if enabled.
func CvtTQ(a uint64, mode RoundMode, f *FPCR) uint64 {
	au := unpackIEEE(a)
	if au.Class == ClassNaN || au.Class == ClassInf {
		f.raiseInvalid()
		return 0
	}
	if au.Class == ClassZero {
		return 0
	}
	return floatFracToInt(au, mode.resolve(f), f)
}

// CvtGQ implements CVTGQ: VAX G to 64-bit integer.
func CvtGQ(a uint64, mode RoundMode, f *FPCR) uint64 {
	ia, ok := vaxToIEEEBias(a)
	if !ok {
		f.raiseInvalid()
		return 0
	}
	au := unpackIEEE(ia)
	if au.Class == ClassZero {
		return 0
	}
	return floatFracToInt(au, mode.resolve(f), f)
}

// floatFracToInt shifts a finite unpacked operand's guarded fraction into
// a 64-bit integer at the exponent's binary point, rounding the
// shifted-out bits per mode.
func floatFracToInt(au Unpacked, mode RoundMode, f *FPCR) uint64 {
	exp := au.Exp - ieeeExpBias // true unbiased exponent of a 1.xxx significand
	const hiddenPos = ieeeFracBits + guardBits
	shift := hiddenPos - exp

	var mag uint64
	var inexact bool
	switch {
	case shift <= 0:
		mag = au.Frac << uint(-shift)
	case shift >= 64:
		mag = 0
		inexact = au.Frac != 0
	default:
		rounded, _ := roundShift(au.Frac, uint(shift), mode, au.Sign)
		mag = rounded
		inexact = au.Frac&(1<<uint(shift)-1) != 0
	}

	if inexact {
		f.raiseInexact()
	}
	if exp >= 64 || mag > 1<<63 || (mag == 1<<63 && !au.Sign) {
		f.raiseIntOverflow()
	}
	if au.Sign {
		return -mag
	}
	return mag
}

// CvtQT implements CVTQT: 64-bit integer to IEEE T.
func CvtQT(v int64, mode RoundMode, f *FPCR) uint64 {
	return intToFloat(v, PrecT, mode, f, finishResult)
}

// CvtQG implements CVTQF/CVTQG's shared shape: 64-bit integer to VAX F/G.
func CvtQG(v int64, mode RoundMode, f *FPCR) (uint64, bool) {
	r := intToFloat(v, PrecT, mode, f, finishResult)
	ru := unpackIEEE(r)
	return ieeeToVAXBias(r, ru.Class == ClassInf)
}

func intToFloat(v int64, prec Precision, mode RoundMode, f *FPCR, pack func(bool, int, uint64, Precision, RoundMode, *FPCR) uint64) uint64 {
	sign := v < 0
	mag := uint64(v)
	if sign {
		mag = uint64(-v)
	}
	if mag == 0 {
		return packZero(false)
	}
	lead := 63
	for mag>>uint(lead) == 0 {
		lead--
	}
	exp := lead + ieeeExpBias
	const hiddenPos = ieeeFracBits + guardBits
	var frac uint64
	if hiddenPos >= lead {
		frac = mag << uint(hiddenPos-lead)
	} else {
		frac = stickyShift(mag, uint(lead-hiddenPos))
	}
	return pack(sign, exp, frac, prec, mode.resolve(f), f)
}
