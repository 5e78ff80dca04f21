/*
 * axpbox-sub000 - VAX F/G floating-point operations.
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

// VAX floating point has no infinities, NaNs, or denormals. A
// reserved-operand pattern (sign=1, exponent=0) raises invalid rather than
// being treated as a value. VAX exponents are biased by 128 rather than
// IEEE's 1023; VAXAdd/VAXMul/VAXDiv convert the bias before reusing the
// IEEE kernel's align/normalize/round plumbing, then convert it back.
const vaxExpBias = 128

// vaxToIEEEBias rewrites a VAX-biased container as if it were IEEE-biased,
// so the shared normalize/round helpers operate on a single bias.
func vaxToIEEEBias(v uint64) (uint64, bool) {
	sign := v>>63 != 0
	exp := int((v >> ieeeFracBits) & ieeeExpMax)
	if sign && exp == 0 {
		return 0, false // reserved operand
	}
	if exp == 0 {
		return v, true // true zero: sign must also be clear
	}
	rebiased := exp - vaxExpBias + ieeeExpBias
	if rebiased <= 0 || rebiased >= ieeeExpMax {
		return 0, false
	}
	return pack(sign, rebiased, v&(1<<ieeeFracBits-1)), true
}

func ieeeToVAXBias(v uint64, overflowedToInf bool) (uint64, bool) {
	if overflowedToInf {
		return 0, false
	}
	sign := v>>63 != 0
	exp := int((v >> ieeeFracBits) & ieeeExpMax)
	if exp == 0 {
		return packZero(false), true
	}
	rebiased := exp - ieeeExpBias + vaxExpBias
	if rebiased <= 0 || rebiased > 255 {
		return 0, false // overflow: VAX has no infinity to fall back to
	}
	return pack(sign, rebiased, v&(1<<ieeeFracBits-1)), true
}

// VAXAdd computes a+b in VAX F/G arithmetic.
func VAXAdd(a, b uint64, prec Precision, f *FPCR) (uint64, bool) {
	return vaxBinary(a, b, prec, f, Add)
}

// VAXSub computes a-b in VAX F/G arithmetic.
func VAXSub(a, b uint64, prec Precision, f *FPCR) (uint64, bool) {
	return vaxBinary(a, b, prec, f, Sub)
}

// VAXMul computes a*b in VAX F/G arithmetic.
func VAXMul(a, b uint64, prec Precision, f *FPCR) (uint64, bool) {
	return vaxBinary(a, b, prec, f, Mul)
}

// VAXDiv computes a/b in VAX F/G arithmetic.
func VAXDiv(a, b uint64, prec Precision, f *FPCR) (uint64, bool) {
	return vaxBinary(a, b, prec, f, Div)
}

type ieeeBinaryOp func(a, b uint64, prec Precision, mode RoundMode, f *FPCR) uint64

// vaxBinary rebiases both operands into the IEEE kernel, runs op at fixed
// round-to-nearest (VAX has no dynamic rounding mode), and rebiases the
// result back, reporting ok=false on reserved-operand or exponent
// overflow (there being no VAX infinity to represent it).
func vaxBinary(a, b uint64, prec Precision, f *FPCR, op ieeeBinaryOp) (uint64, bool) {
	ia, ok := vaxToIEEEBias(a)
	if !ok {
		f.raiseInvalid()
		return 0, false
	}
	ib, ok := vaxToIEEEBias(b)
	if !ok {
		f.raiseInvalid()
		return 0, false
	}
	r := op(ia, ib, prec, RoundNearest, f)
	ru := unpackIEEE(r)
	out, ok := ieeeToVAXBias(r, ru.Class == ClassInf)
	if !ok {
		f.raiseOverflow()
		return 0, false
	}
	return out, true
}

// VAXSqrt computes the square root of a VAX F/G operand.
func VAXSqrt(a uint64, prec Precision, f *FPCR) (uint64, bool) {
	ia, ok := vaxToIEEEBias(a)
	if !ok {
		f.raiseInvalid()
		return 0, false
	}
	if ia>>63 != 0 {
		f.raiseInvalid()
		return 0, false
	}
	r := Sqrt(ia, prec, RoundNearest, f)
	out, ok := ieeeToVAXBias(r, false)
	if !ok {
		f.raiseOverflow()
		return 0, false
	}
	return out, true
}

// VAXCmp compares two VAX F/G operands, reserved operands reporting
// ok=false.
func VAXCmp(a, b uint64, f *FPCR) (result int, ok bool) {
	ia, ok1 := vaxToIEEEBias(a)
	ib, ok2 := vaxToIEEEBias(b)
	if !ok1 || !ok2 {
		f.raiseInvalid()
		return 0, false
	}
	r, unordered := Cmp(ia, ib, f)
	return r, !unordered
}
