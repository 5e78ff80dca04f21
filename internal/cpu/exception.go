/*
 * axpbox-sub000 - Exception entry and PAL vectors.
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

// PALcode entry offsets (HRM interrupt vectors).
const (
	palDTBMDouble3 = 0x100
	palDTBMDouble4 = 0x180
	palFEN         = 0x200
	palUnalign     = 0x280
	palDTBMSingle  = 0x300
	palDFault      = 0x380
	palOpcDec      = 0x400
	palIACV        = 0x480
	palMchk        = 0x500
	palITBMiss     = 0x580
	palArith       = 0x600
	palInterrupt   = 0x680
	palMTFPCR      = 0x700
	palReset       = 0x780
)

// goPAL is the generic exception entry: save the faulting
// instruction's address, enter PALmode at pal_base | offset | 1, abandon
// the current instruction.
func (c *Context) goPAL(offset uint64) {
	c.IPR.ExcAddr = c.currentPC
	c.PC = c.IPR.PalBase | offset | 1
	c.IC.remInsInPage = 0
}

// Arithmetic trap summary bits for exc_sum.
const (
	trapSWC = 1 << 0 // software completion
	trapINV = 1 << 1 // invalid operation
	trapDZE = 1 << 2 // division by zero
	trapOVF = 1 << 3 // overflow
	trapUNF = 1 << 4 // underflow
	trapINE = 1 << 5 // inexact
	trapIOV = 1 << 6 // integer overflow
)

// arithTrap records the trap summary with the destination register
// encoded at bit 8 and enters the ARITH vector.
func (c *Context) arithTrap(flags uint64, reg int) {
	c.IPR.ExcSum = flags | uint64(reg)<<8
	c.goPAL(palArith)
}
