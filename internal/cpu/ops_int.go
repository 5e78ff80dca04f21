/*
 * axpbox-sub000 - Integer operate instructions.
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

import (
	"math/bits"

	"github.com/lenticularis39/axpbox-sub000/internal/fpu"
)

func boolTo64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// opInta dispatches the 0x10 add/subtract/compare family.
func (c *Context) opInta(ins uint32) {
	va, vb := c.va(ins), c.vb(ins)
	dst := c.rmap(rc(ins))
	switch (ins >> 5) & 0x7f {
	case 0x00: // ADDL
		c.setR(dst, sext32(va+vb))
	case 0x40: // ADDL/V
		sum := va + vb
		c.setR(dst, sext32(sum))
		if sext32(sum) != uint64(int64(sext32(va))+int64(sext32(vb))) {
			c.arithTrap(trapIOV, rc(ins))
		}
	case 0x02: // S4ADDL
		c.setR(dst, sext32(va*4+vb))
	case 0x12: // S8ADDL
		c.setR(dst, sext32(va*8+vb))
	case 0x09: // SUBL
		c.setR(dst, sext32(va-vb))
	case 0x49: // SUBL/V
		diff := va - vb
		c.setR(dst, sext32(diff))
		if sext32(diff) != uint64(int64(sext32(va))-int64(sext32(vb))) {
			c.arithTrap(trapIOV, rc(ins))
		}
	case 0x0b: // S4SUBL
		c.setR(dst, sext32(va*4-vb))
	case 0x1b: // S8SUBL
		c.setR(dst, sext32(va*8-vb))
	case 0x0f: // CMPBGE
		var r uint64
		for i := 0; i < 8; i++ {
			if byte(va>>(8*i)) >= byte(vb>>(8*i)) {
				r |= 1 << i
			}
		}
		c.setR(dst, r)
	case 0x20: // ADDQ
		c.setR(dst, va+vb)
	case 0x60: // ADDQ/V
		sum := va + vb
		c.setR(dst, sum)
		if (^(va^vb)&(va^sum))>>63 != 0 {
			c.arithTrap(trapIOV, rc(ins))
		}
	case 0x22: // S4ADDQ
		c.setR(dst, va*4+vb)
	case 0x32: // S8ADDQ
		c.setR(dst, va*8+vb)
	case 0x29: // SUBQ
		c.setR(dst, va-vb)
	case 0x69: // SUBQ/V
		diff := va - vb
		c.setR(dst, diff)
		if ((va^vb)&(va^diff))>>63 != 0 {
			c.arithTrap(trapIOV, rc(ins))
		}
	case 0x2b: // S4SUBQ
		c.setR(dst, va*4-vb)
	case 0x3b: // S8SUBQ
		c.setR(dst, va*8-vb)
	case 0x1d: // CMPULT
		c.setR(dst, boolTo64(va < vb))
	case 0x2d: // CMPEQ
		c.setR(dst, boolTo64(va == vb))
	case 0x3d: // CMPULE
		c.setR(dst, boolTo64(va <= vb))
	case 0x4d: // CMPLT
		c.setR(dst, boolTo64(int64(va) < int64(vb)))
	case 0x6d: // CMPLE
		c.setR(dst, boolTo64(int64(va) <= int64(vb)))
	default:
		c.goPAL(palOpcDec)
	}
}

// opIntl dispatches the 0x11 logical/conditional-move family.
func (c *Context) opIntl(ins uint32) {
	va, vb := c.va(ins), c.vb(ins)
	dst := c.rmap(rc(ins))
	switch (ins >> 5) & 0x7f {
	case 0x00: // AND
		c.setR(dst, va&vb)
	case 0x08: // BIC
		c.setR(dst, va&^vb)
	case 0x20: // BIS
		c.setR(dst, va|vb)
	case 0x28: // ORNOT
		c.setR(dst, va|^vb)
	case 0x40: // XOR
		c.setR(dst, va^vb)
	case 0x48: // EQV
		c.setR(dst, va^(^vb))
	case 0x14: // CMOVLBS
		if va&1 != 0 {
			c.setR(dst, vb)
		}
	case 0x16: // CMOVLBC
		if va&1 == 0 {
			c.setR(dst, vb)
		}
	case 0x24: // CMOVEQ
		if va == 0 {
			c.setR(dst, vb)
		}
	case 0x26: // CMOVNE
		if va != 0 {
			c.setR(dst, vb)
		}
	case 0x44: // CMOVLT
		if int64(va) < 0 {
			c.setR(dst, vb)
		}
	case 0x46: // CMOVGE
		if int64(va) >= 0 {
			c.setR(dst, vb)
		}
	case 0x64: // CMOVLE
		if int64(va) <= 0 {
			c.setR(dst, vb)
		}
	case 0x66: // CMOVGT
		if int64(va) > 0 {
			c.setR(dst, vb)
		}
	case 0x61: // AMASK
		c.setR(dst, vb&^cpuAMASK)
	case 0x6c: // IMPLVER
		c.setR(dst, 2) // EV6
	default:
		c.goPAL(palOpcDec)
	}
}

// Architecture mask: BWX, FIX, CIX, MVI, precise arithmetic traps.
const cpuAMASK = 0x307

// byteMask expands the 8-bit mask operand into a byte-lane mask.
func byteMask(m uint64) uint64 {
	var r uint64
	for i := 0; i < 8; i++ {
		if m&(1<<i) != 0 {
			r |= 0xff << (8 * i)
		}
	}
	return r
}

// opInts dispatches the 0x12 shift/byte-manipulation family.
func (c *Context) opInts(ins uint32) {
	va, vb := c.va(ins), c.vb(ins)
	dst := c.rmap(rc(ins))
	switch (ins >> 5) & 0x7f {
	case 0x39: // SLL
		c.setR(dst, va<<(vb&63))
	case 0x34: // SRL
		c.setR(dst, va>>(vb&63))
	case 0x3c: // SRA
		c.setR(dst, uint64(int64(va)>>(vb&63)))

	case 0x06: // EXTBL
		c.setR(dst, (va>>(8*(vb&7)))&0xff)
	case 0x16: // EXTWL
		c.setR(dst, (va>>(8*(vb&7)))&0xffff)
	case 0x26: // EXTLL
		c.setR(dst, (va>>(8*(vb&7)))&0xffffffff)
	case 0x36: // EXTQL
		c.setR(dst, va>>(8*(vb&7)))
	case 0x5a: // EXTWH
		c.setR(dst, (va<<((64-8*(vb&7))&63))&0xffff)
	case 0x6a: // EXTLH
		c.setR(dst, (va<<((64-8*(vb&7))&63))&0xffffffff)
	case 0x7a: // EXTQH
		c.setR(dst, va<<((64-8*(vb&7))&63))

	case 0x0b: // INSBL
		c.setR(dst, (va&0xff)<<(8*(vb&7)))
	case 0x1b: // INSWL
		c.setR(dst, (va&0xffff)<<(8*(vb&7)))
	case 0x2b: // INSLL
		c.setR(dst, (va&0xffffffff)<<(8*(vb&7)))
	case 0x3b: // INSQL
		c.setR(dst, va<<(8*(vb&7)))
	case 0x57: // INSWH
		if vb&7 == 0 {
			c.setR(dst, 0)
		} else {
			c.setR(dst, (va&0xffff)>>(64-8*(vb&7)))
		}
	case 0x67: // INSLH
		if vb&7 == 0 {
			c.setR(dst, 0)
		} else {
			c.setR(dst, (va&0xffffffff)>>(64-8*(vb&7)))
		}
	case 0x77: // INSQH
		if vb&7 == 0 {
			c.setR(dst, 0)
		} else {
			c.setR(dst, va>>(64-8*(vb&7)))
		}

	case 0x02: // MSKBL
		c.setR(dst, va&^(uint64(0xff)<<(8*(vb&7))))
	case 0x12: // MSKWL
		c.setR(dst, va&^(uint64(0xffff)<<(8*(vb&7))))
	case 0x22: // MSKLL
		c.setR(dst, va&^(uint64(0xffffffff)<<(8*(vb&7))))
	case 0x32: // MSKQL
		c.setR(dst, va&^(^uint64(0)<<(8*(vb&7))))
	case 0x52: // MSKWH
		if vb&7 == 0 {
			c.setR(dst, va)
		} else {
			c.setR(dst, va&^(uint64(0xffff)>>(64-8*(vb&7))))
		}
	case 0x62: // MSKLH
		if vb&7 == 0 {
			c.setR(dst, va)
		} else {
			c.setR(dst, va&^(uint64(0xffffffff)>>(64-8*(vb&7))))
		}
	case 0x72: // MSKQH
		if vb&7 == 0 {
			c.setR(dst, va)
		} else {
			c.setR(dst, va&^(^uint64(0)>>(64-8*(vb&7))))
		}

	case 0x30: // ZAP
		c.setR(dst, va&^byteMask(vb))
	case 0x31: // ZAPNOT
		c.setR(dst, va&byteMask(vb))
	default:
		c.goPAL(palOpcDec)
	}
}

// opIntm dispatches the 0x13 multiply family.
func (c *Context) opIntm(ins uint32) {
	va, vb := c.va(ins), c.vb(ins)
	dst := c.rmap(rc(ins))
	switch (ins >> 5) & 0x7f {
	case 0x00: // MULL
		c.setR(dst, sext32(va*vb))
	case 0x40: // MULL/V
		full := int64(sext32(va)) * int64(sext32(vb))
		c.setR(dst, sext32(uint64(full)))
		if full != int64(int32(full)) {
			c.arithTrap(trapIOV, rc(ins))
		}
	case 0x20: // MULQ
		c.setR(dst, va*vb)
	case 0x60: // MULQ/V
		hi, lo := bits.Mul64(va, vb)
		c.setR(dst, lo)
		// signed overflow: the signed high half must be the sign
		// extension of the low half
		signHi := hi
		if int64(va) < 0 {
			signHi -= vb
		}
		if int64(vb) < 0 {
			signHi -= va
		}
		if signHi != uint64(int64(lo)>>63) {
			c.arithTrap(trapIOV, rc(ins))
		}
	case 0x30: // UMULH
		hi, _ := bits.Mul64(va, vb)
		c.setR(dst, hi)
	default:
		c.goPAL(palOpcDec)
	}
}

// opMisc dispatches the 0x18 barrier/counter family on the low 16 bits.
func (c *Context) opMisc(ins uint32) {
	switch ins & 0xffff {
	case 0x0000: // TRAPB
	case 0x0400: // EXCB
	case 0x4000: // MB
	case 0x4400: // WMB
	case 0x8000: // FETCH
	case 0xa000: // FETCH_M
	case 0xe800: // ECB
	case 0xf800: // WH64
	case 0xfc00: // WH64EN
	case 0xc000: // RPCC
		c.setR(c.rmap(ra(ins)), c.CycleOffset<<32|(c.Cycles&0xffffffff))
	case 0xe000: // RC
		c.setR(c.rmap(ra(ins)), boolTo64(c.intrFlag))
		c.intrFlag = false
	case 0xf000: // RS
		c.setR(c.rmap(ra(ins)), boolTo64(c.intrFlag))
		c.intrFlag = true
	default:
		c.goPAL(palOpcDec)
	}
}

// opFpti dispatches the 0x1c sign-extend/count/multimedia family.
func (c *Context) opFpti(ins uint32) {
	vb := c.vb(ins)
	dst := c.rmap(rc(ins))
	switch (ins >> 5) & 0x7f {
	case 0x00: // SEXTB
		c.setR(dst, sext(vb, 8))
	case 0x01: // SEXTW
		c.setR(dst, sext(vb, 16))
	case 0x30: // CTPOP
		c.setR(dst, uint64(bits.OnesCount64(vb)))
	case 0x32: // CTLZ
		c.setR(dst, uint64(bits.LeadingZeros64(vb)))
	case 0x33: // CTTZ
		c.setR(dst, uint64(bits.TrailingZeros64(vb)))
	case 0x31: // PERR
		va := c.va(ins)
		var sum uint64
		for i := 0; i < 8; i++ {
			a, b := byte(va>>(8*i)), byte(vb>>(8*i))
			if a >= b {
				sum += uint64(a - b)
			} else {
				sum += uint64(b - a)
			}
		}
		c.setR(dst, sum)
	case 0x34: // UNPKBW
		c.setR(dst, vb&0xff|(vb&0xff00)<<8|(vb&0xff0000)<<16|(vb&0xff000000)<<24)
	case 0x35: // UNPKBL
		c.setR(dst, vb&0xff|(vb&0xff00)<<24)
	case 0x36: // PKWB
		c.setR(dst, vb&0xff|(vb>>8)&0xff00|(vb>>16)&0xff0000|(vb>>24)&0xff000000)
	case 0x37: // PKLB
		c.setR(dst, vb&0xff|(vb>>24)&0xff00)
	case 0x38: // MINSB8
		c.setR(dst, minMaxBytes(c.va(ins), vb, true, true))
	case 0x39: // MINSW4
		c.setR(dst, minMaxWords(c.va(ins), vb, true, true))
	case 0x3a: // MINUB8
		c.setR(dst, minMaxBytes(c.va(ins), vb, false, true))
	case 0x3b: // MINUW4
		c.setR(dst, minMaxWords(c.va(ins), vb, false, true))
	case 0x3c: // MAXUB8
		c.setR(dst, minMaxBytes(c.va(ins), vb, false, false))
	case 0x3d: // MAXUW4
		c.setR(dst, minMaxWords(c.va(ins), vb, false, false))
	case 0x3e: // MAXSB8
		c.setR(dst, minMaxBytes(c.va(ins), vb, true, false))
	case 0x3f: // MAXSW4
		c.setR(dst, minMaxWords(c.va(ins), vb, true, false))
	case 0x70: // FTOIT
		if !c.fpEnabled() {
			return
		}
		c.setR(dst, c.effF(c.rmap(ra(ins))))
	case 0x78: // FTOIS
		if !c.fpEnabled() {
			return
		}
		c.setR(dst, sext32(uint64(fpu.StoreS(c.effF(c.rmap(ra(ins)))))))
	default:
		c.goPAL(palOpcDec)
	}
}

func minMaxBytes(va, vb uint64, signed, min bool) uint64 {
	var r uint64
	for i := 0; i < 8; i++ {
		a, b := byte(va>>(8*i)), byte(vb>>(8*i))
		var pick byte
		if signed {
			if (int8(a) < int8(b)) == min {
				pick = a
			} else {
				pick = b
			}
		} else {
			if (a < b) == min {
				pick = a
			} else {
				pick = b
			}
		}
		r |= uint64(pick) << (8 * i)
	}
	return r
}

func minMaxWords(va, vb uint64, signed, min bool) uint64 {
	var r uint64
	for i := 0; i < 4; i++ {
		a, b := uint16(va>>(16*i)), uint16(vb>>(16*i))
		var pick uint16
		if signed {
			if (int16(a) < int16(b)) == min {
				pick = a
			} else {
				pick = b
			}
		} else {
			if (a < b) == min {
				pick = a
			} else {
				pick = b
			}
		}
		r |= uint64(pick) << (16 * i)
	}
	return r
}
