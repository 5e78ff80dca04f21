/*
 * axpbox-sub000 - S/T/F/G memory-form conversions.
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

// LoadS widens a 32-bit memory S-format value into the 64-bit T-shaped
// register container: the 8-bit exponent maps to 11 bits (0 -> 0,
// 0xff -> 0x7ff, 0x80..0xfe -> 0x400|low7, 0x00..0x7f -> 0x380|low7) and
// the 23-bit fraction spreads into the register's 52-bit field.
func LoadS(mem uint32) uint64 {
	sign := uint64(mem>>31) & 1
	exp8 := uint64(mem>>23) & 0xff
	frac := uint64(mem & 0x7fffff)

	exp11 := widenExp(exp8)
	return sign<<63 | exp11<<ieeeFracBits | frac<<(ieeeFracBits-23)
}

// StoreS narrows a register value back to 32-bit memory S-format,
// inverting LoadS's exponent map.
func StoreS(reg uint64) uint32 {
	sign := uint32(reg>>63) & 1
	exp11 := (reg >> ieeeFracBits) & ieeeExpMax
	frac := uint32(reg >> (ieeeFracBits - 23) & 0x7fffff)
	return sign<<31 | narrowExp(exp11)<<23 | frac
}

func widenExp(e8 uint64) uint64 {
	switch {
	case e8 == 0:
		return 0
	case e8 == 0xff:
		return 0x7ff
	case e8 >= 0x80:
		return 0x400 | (e8 & 0x7f)
	default:
		return 0x380 | (e8 & 0x7f)
	}
}

func narrowExp(e11 uint64) uint32 {
	switch {
	case e11 == 0:
		return 0
	case e11 == 0x7ff:
		return 0xff
	case e11&0x400 != 0:
		return uint32(0x80 | (e11 & 0x7f))
	default:
		return uint32(e11 & 0x7f)
	}
}

// LoadT is the identity map: T memory format equals the register
// container bit-for-bit.
func LoadT(mem uint64) uint64 { return mem }

// StoreT is the identity map, the T inverse of LoadT.
func StoreT(reg uint64) uint64 { return reg }

// LoadF widens a 32-bit VAX F memory value (16-bit-halves swapped to
// counteract VAX byte order) into the 64-bit register container, using
// the same exponent-widening rule as LoadS but with VAX's 128 bias
// untouched (VAX ops rebias on demand).
func LoadF(mem uint32) uint64 {
	unswapped := mem>>16 | mem<<16
	sign := uint64(unswapped>>31) & 1
	exp8 := uint64(unswapped>>23) & 0xff
	frac := uint64(unswapped & 0x7fffff)
	return sign<<63 | widenExp(exp8)<<ieeeFracBits | frac<<(ieeeFracBits-23)
}

// StoreF narrows a register value to 32-bit VAX F memory format.
func StoreF(reg uint64) uint32 {
	sign := uint32(reg>>63) & 1
	exp11 := (reg >> ieeeFracBits) & ieeeExpMax
	frac := uint32(reg >> (ieeeFracBits - 23) & 0x7fffff)
	unswapped := sign<<31 | narrowExp(exp11)<<23 | frac
	return unswapped>>16 | unswapped<<16
}

// LoadG widens a 64-bit VAX G memory value (16-bit halves swapped) into
// the register container. G already carries an 11-bit exponent and
// 52-bit fraction, so only the byte-order swap is needed.
func LoadG(mem uint64) uint64 {
	return swapHalves(mem)
}

// StoreG narrows a register value to 64-bit VAX G memory format.
func StoreG(reg uint64) uint64 {
	return swapHalves(reg)
}

// swapHalves exchanges the two 16-bit halves of each 32-bit word,
// undoing the VAX PDP-11-derived word order for F and G formats.
func swapHalves(v uint64) uint64 {
	lo := uint32(v)
	hi := uint32(v >> 32)
	return uint64(hi>>16|hi<<16) | uint64(lo>>16|lo<<16)<<32
}
