/*
 * axpbox-sub000 - Floating-point operate instructions.
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

package cpu

import "github.com/lenticularis39/axpbox-sub000/internal/fpu"

// roundModeOf decodes the instruction's rounding field.
func roundModeOf(fn11 int) fpu.RoundMode {
	switch (fn11 >> 6) & 3 {
	case 0:
		return fpu.RoundChopped
	case 1:
		return fpu.RoundMinusInf
	case 2:
		return fpu.RoundNearest
	default:
		return fpu.RoundDynamic
	}
}

// fpcrBits packs the FPCR struct into the architectural register image.
func fpcrBits(f *fpu.FPCR) uint64 {
	var v uint64
	set := func(bit uint, b bool) {
		if b {
			v |= 1 << bit
		}
	}
	set(62, f.InexactDisable)
	set(61, f.UnderflowDisable)
	set(57, f.IntOverflow)
	set(56, f.Inexact)
	set(55, f.Underflow)
	set(54, f.Overflow)
	set(53, f.DivZero)
	set(52, f.Invalid)
	set(51, f.OverflowDisable)
	set(50, f.DivZeroDisable)
	set(49, f.InvalidDisable)
	if v&(0x3f<<52) != 0 {
		v |= 1 << 63 // SUM
	}
	var dyn uint64
	switch f.DynamicMode {
	case fpu.RoundChopped:
		dyn = 0
	case fpu.RoundMinusInf:
		dyn = 1
	case fpu.RoundNearest:
		dyn = 2
	case fpu.RoundPlusInf:
		dyn = 3
	}
	v |= dyn << 58
	return v
}

// setFPCRBits unpacks a register image into the FPCR struct.
func setFPCRBits(f *fpu.FPCR, v uint64) {
	get := func(bit uint) bool { return v&(1<<bit) != 0 }
	f.InexactDisable = get(62)
	f.UnderflowDisable = get(61)
	f.IntOverflow = get(57)
	f.IntOverflowDisable = get(62) // INED covers integer overflow too
	f.Inexact = get(56)
	f.Underflow = get(55)
	f.Overflow = get(54)
	f.DivZero = get(53)
	f.Invalid = get(52)
	f.OverflowDisable = get(51)
	f.DivZeroDisable = get(50)
	f.InvalidDisable = get(49)
	f.Summary = v&(0x3f<<52) != 0
	switch (v >> 58) & 3 {
	case 0:
		f.DynamicMode = fpu.RoundChopped
	case 1:
		f.DynamicMode = fpu.RoundMinusInf
	case 2:
		f.DynamicMode = fpu.RoundNearest
	default:
		f.DynamicMode = fpu.RoundPlusInf
	}
}

// fpFinish raises the arithmetic trap for exception bits newly set by
// the operation, unless each one's disable bit suppressed it.
func (c *Context) fpFinish(before fpu.FPCR, dst int) {
	f := &c.IPR.FPCR
	var flags uint64
	if f.Invalid && !before.Invalid && !f.InvalidDisable {
		flags |= trapINV
	}
	if f.DivZero && !before.DivZero && !f.DivZeroDisable {
		flags |= trapDZE
	}
	if f.Overflow && !before.Overflow && !f.OverflowDisable {
		flags |= trapOVF
	}
	if f.Underflow && !before.Underflow && !f.UnderflowDisable {
		flags |= trapUNF
	}
	if f.Inexact && !before.Inexact && !f.InexactDisable {
		flags |= trapINE
	}
	if f.IntOverflow && !before.IntOverflow && !f.IntOverflowDisable {
		flags |= trapIOV
	}
	if flags != 0 {
		c.arithTrap(flags|trapSWC, dst)
	}
}

// opItfp dispatches opcode 0x14: integer-to-float transfers and square
// roots.
func (c *Context) opItfp(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	fn11 := int(ins>>5) & 0x7ff
	dst := c.rmap(rc(ins))
	f := &c.IPR.FPCR
	before := *f
	switch fn11 & 0x3f {
	case 0x04: // ITOFS
		c.setF(dst, fpu.LoadS(uint32(c.effR(c.rmap(ra(ins))))))
	case 0x14: // ITOFF
		c.setF(dst, fpu.LoadF(uint32(c.effR(c.rmap(ra(ins))))))
	case 0x24: // ITOFT
		c.setF(dst, c.effR(c.rmap(ra(ins))))
	case 0x0b: // SQRTS
		c.setF(dst, fpu.Sqrt(c.effF(c.rmap(rb(ins))), fpu.PrecS, roundModeOf(fn11), f))
		c.fpFinish(before, rc(ins))
	case 0x2b: // SQRTT
		c.setF(dst, fpu.Sqrt(c.effF(c.rmap(rb(ins))), fpu.PrecT, roundModeOf(fn11), f))
		c.fpFinish(before, rc(ins))
	case 0x0a: // SQRTF
		v, ok := fpu.VAXSqrt(c.effF(c.rmap(rb(ins))), fpu.PrecS, f)
		c.setF(dst, v)
		if !ok {
			c.arithTrap(trapINV|trapSWC, rc(ins))
			return
		}
		c.fpFinish(before, rc(ins))
	case 0x2a: // SQRTG
		v, ok := fpu.VAXSqrt(c.effF(c.rmap(rb(ins))), fpu.PrecT, f)
		c.setF(dst, v)
		if !ok {
			c.arithTrap(trapINV|trapSWC, rc(ins))
			return
		}
		c.fpFinish(before, rc(ins))
	default:
		c.goPAL(palOpcDec)
	}
}

// opFlti dispatches opcode 0x16: IEEE arithmetic.
func (c *Context) opFlti(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	fn11 := int(ins>>5) & 0x7ff
	mode := roundModeOf(fn11)
	fa := c.effF(c.rmap(ra(ins)))
	fb := c.effF(c.rmap(rb(ins)))
	dst := c.rmap(rc(ins))
	f := &c.IPR.FPCR
	before := *f

	switch fn11 & 0x3f {
	case 0x00: // ADDS
		c.setF(dst, fpu.Add(fa, fb, fpu.PrecS, mode, f))
	case 0x01: // SUBS
		c.setF(dst, fpu.Sub(fa, fb, fpu.PrecS, mode, f))
	case 0x02: // MULS
		c.setF(dst, fpu.Mul(fa, fb, fpu.PrecS, mode, f))
	case 0x03: // DIVS
		c.setF(dst, fpu.Div(fa, fb, fpu.PrecS, mode, f))
	case 0x20: // ADDT
		c.setF(dst, fpu.Add(fa, fb, fpu.PrecT, mode, f))
	case 0x21: // SUBT
		c.setF(dst, fpu.Sub(fa, fb, fpu.PrecT, mode, f))
	case 0x22: // MULT
		c.setF(dst, fpu.Mul(fa, fb, fpu.PrecT, mode, f))
	case 0x23: // DIVT
		c.setF(dst, fpu.Div(fa, fb, fpu.PrecT, mode, f))
	case 0x24: // CMPTUN
		_, unordered := fpu.Cmp(fa, fb, f)
		c.setF(dst, cmpResult(unordered))
	case 0x25: // CMPTEQ
		r, unordered := fpu.Cmp(fa, fb, f)
		c.setF(dst, cmpResult(!unordered && r == 0))
	case 0x26: // CMPTLT
		r, unordered := fpu.Cmp(fa, fb, f)
		c.setF(dst, cmpResult(!unordered && r < 0))
	case 0x27: // CMPTLE
		r, unordered := fpu.Cmp(fa, fb, f)
		c.setF(dst, cmpResult(!unordered && r <= 0))
	case 0x2c: // CVTTS
		c.setF(dst, fpu.Add(fb, packedZero, fpu.PrecS, mode, f))
	case 0x2f: // CVTTQ
		c.setF(dst, fpu.CvtTQ(fb, mode, f))
	case 0x3c: // CVTQS
		c.setF(dst, fpu.Add(fpu.CvtQT(int64(fb), mode, f), packedZero, fpu.PrecS, mode, f))
	case 0x3e: // CVTQT
		c.setF(dst, fpu.CvtQT(int64(fb), mode, f))
	default:
		c.goPAL(palOpcDec)
		return
	}
	c.fpFinish(before, rc(ins))
}

const packedZero = uint64(0)

// cmpResult encodes a FP compare outcome: 2.0 for true, +0 for false.
func cmpResult(b bool) uint64 {
	if b {
		return 0x4000000000000000
	}
	return 0
}

// opFltv dispatches opcode 0x15: VAX arithmetic.
func (c *Context) opFltv(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	fn11 := int(ins>>5) & 0x7ff
	fa := c.effF(c.rmap(ra(ins)))
	fb := c.effF(c.rmap(rb(ins)))
	dst := c.rmap(rc(ins))
	f := &c.IPR.FPCR
	before := *f

	vaxOp := func(v uint64, ok bool) {
		c.setF(dst, v)
		if !ok {
			c.arithTrap(trapINV|trapSWC, rc(ins))
			return
		}
		c.fpFinish(before, rc(ins))
	}

	switch fn11 & 0x3f {
	case 0x00: // ADDF
		vaxOp(fpu.VAXAdd(fa, fb, fpu.PrecS, f))
	case 0x01: // SUBF
		vaxOp(fpu.VAXSub(fa, fb, fpu.PrecS, f))
	case 0x02: // MULF
		vaxOp(fpu.VAXMul(fa, fb, fpu.PrecS, f))
	case 0x03: // DIVF
		vaxOp(fpu.VAXDiv(fa, fb, fpu.PrecS, f))
	case 0x20: // ADDG
		vaxOp(fpu.VAXAdd(fa, fb, fpu.PrecT, f))
	case 0x21: // SUBG
		vaxOp(fpu.VAXSub(fa, fb, fpu.PrecT, f))
	case 0x22: // MULG
		vaxOp(fpu.VAXMul(fa, fb, fpu.PrecT, f))
	case 0x23: // DIVG
		vaxOp(fpu.VAXDiv(fa, fb, fpu.PrecT, f))
	case 0x25: // CMPGEQ
		r, ok := fpu.VAXCmp(fa, fb, f)
		c.setF(dst, cmpResult(ok && r == 0))
	case 0x26: // CMPGLT
		r, ok := fpu.VAXCmp(fa, fb, f)
		c.setF(dst, cmpResult(ok && r < 0))
	case 0x27: // CMPGLE
		r, ok := fpu.VAXCmp(fa, fb, f)
		c.setF(dst, cmpResult(ok && r <= 0))
	case 0x2c: // CVTGF
		vaxOp(fpu.VAXAdd(fb, 0, fpu.PrecS, f))
	case 0x1e, 0x2d: // CVTDG / CVTGD: D carried in the G container
		vaxOp(fpu.VAXAdd(fb, 0, fpu.PrecT, f))
	case 0x2f: // CVTGQ
		c.setF(dst, fpu.CvtGQ(fb, fpu.RoundNearest, f))
		c.fpFinish(before, rc(ins))
	case 0x3c: // CVTQF
		v, ok := fpu.CvtQG(int64(fb), fpu.RoundNearest, f)
		vaxOp(v, ok)
	case 0x3e: // CVTQG
		v, ok := fpu.CvtQG(int64(fb), fpu.RoundNearest, f)
		vaxOp(v, ok)
	default:
		c.goPAL(palOpcDec)
	}
}

// opFltl dispatches opcode 0x17: sign-copy, FP conditional move, FPCR
// transfers and longword converts.
func (c *Context) opFltl(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	fn11 := int(ins>>5) & 0x7ff
	fa := c.effF(c.rmap(ra(ins)))
	fb := c.effF(c.rmap(rb(ins)))
	dst := c.rmap(rc(ins))

	switch fn11 {
	case 0x010: // CVTLQ
		c.setF(dst, sext((fb>>32&0xc0000000)|(fb>>29&0x3fffffff), 32))
	case 0x030: // CVTQL
		c.setF(dst, (fb&0xc0000000)<<32|(fb&0x3fffffff)<<29)
	case 0x020: // CPYS
		c.setF(dst, fa&(1<<63)|fb&^uint64(1<<63))
	case 0x021: // CPYSN
		c.setF(dst, (fa^1<<63)&(1<<63)|fb&^uint64(1<<63))
	case 0x022: // CPYSE
		c.setF(dst, fa&0xfff0000000000000|fb&0x000fffffffffffff)
	case 0x024: // MT_FPCR
		setFPCRBits(&c.IPR.FPCR, fa)
	case 0x025: // MF_FPCR
		c.setF(dst, fpcrBits(&c.IPR.FPCR))
	case 0x02a: // FCMOVEQ
		if fa&^uint64(1<<63) == 0 {
			c.setF(dst, fb)
		}
	case 0x02b: // FCMOVNE
		if fa&^uint64(1<<63) != 0 {
			c.setF(dst, fb)
		}
	case 0x02c: // FCMOVLT
		if fa>>63 != 0 && fa&^uint64(1<<63) != 0 {
			c.setF(dst, fb)
		}
	case 0x02d: // FCMOVGE
		if fa>>63 == 0 || fa == 1<<63 {
			c.setF(dst, fb)
		}
	case 0x02e: // FCMOVLE
		if fa>>63 != 0 || fa == 0 {
			c.setF(dst, fb)
		}
	case 0x02f: // FCMOVGT
		if fa>>63 == 0 && fa != 0 {
			c.setF(dst, fb)
		}
	default:
		c.goPAL(palOpcDec)
	}
}
