/*
 * axpbox-sub000 - Internal processor registers.
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

// iplIERMask maps an IPL written through MTPR_IPL to the six per-level
// enable masks: external, serial-line, correctable, performance-counter,
// software, AST.
var iplIERMask = [32][6]uint32{
	{0x3f, 0, 1, 3, 0xfffe, 1}, {0x3f, 0, 1, 3, 0xfffc, 1},
	{0x3f, 0, 1, 3, 0xfff8, 0}, {0x3f, 0, 1, 3, 0xfff0, 0},
	{0x3f, 0, 1, 3, 0xffe0, 0}, {0x3f, 0, 1, 3, 0xffc0, 0},
	{0x3f, 0, 1, 3, 0xff80, 0}, {0x3f, 0, 1, 3, 0xff00, 0},
	{0x3f, 0, 1, 3, 0xfe00, 0}, {0x3f, 0, 1, 3, 0xfc00, 0},
	{0x3f, 0, 1, 3, 0xf800, 0}, {0x3f, 0, 1, 3, 0xf000, 0},
	{0x3f, 0, 1, 3, 0xe000, 0}, {0x3f, 0, 1, 3, 0xc000, 0},
	{0x3f, 0, 1, 3, 0x8000, 0}, {0x3f, 0, 1, 3, 0, 0},
	{0x3f, 0, 1, 3, 0, 0}, {0x3f, 0, 1, 3, 0, 0},
	{0x3f, 0, 1, 3, 0, 0}, {0x3f, 0, 1, 3, 0, 0},
	{0x3f, 0, 1, 3, 0, 0}, {0x3d, 0, 1, 3, 0, 0},
	{0x31, 0, 1, 3, 0, 0}, {0x31, 0, 1, 3, 0, 0},
	{0x31, 0, 1, 3, 0, 0}, {0x31, 0, 1, 3, 0, 0},
	{0x31, 0, 1, 3, 0, 0}, {0x31, 0, 1, 3, 0, 0},
	{0x31, 0, 1, 3, 0, 0}, {0x31, 0, 1, 0, 0, 0},
	{0x31, 0, 1, 3, 0, 0}, {0x10, 0, 1, 3, 0, 0},
}

// setIPL loads the enable-mask row for the given interrupt priority
// level.
func (c *Context) setIPL(ipl int) {
	row := &iplIERMask[ipl&31]
	c.IPR.EIEN = uint8(row[0])
	c.IPR.SLEN = row[1]
	c.IPR.CREN = uint8(row[2])
	c.IPR.PCEN = uint8(row[3])
	c.IPR.SIEN = row[4]
	c.IPR.ASTEN = uint8(row[5])
	c.MustCheckIRQ = true
}

// AddTBD decodes a DTB_PTE-format quadword and inserts the translation.
// PA<43:13> sits at bits <63:32>; the low half carries the permission,
// fault, granularity and ASM bits.
func (c *Context) AddTBD(virt, pte uint64) {
	c.DTB.Insert(virt, c.IPR.ASN0, decodePTE(pte>>19, pte))
}

// AddTBI inserts an ITB translation: PA<43:13> in place, flags masked to
// the RE/GH/ASM field.
func (c *Context) AddTBI(virt, pte uint64) {
	c.ITB.Insert(virt, c.IPR.ASN, decodePTE(pte, pte&0xf70))
}

func decodePTE(phys, flags uint64) InsertFlags {
	f := InsertFlags{
		Phys:        phys,
		Granularity: int(flags>>5) & 3,
		ASM:         flags&0x10 != 0,
	}
	for m := 0; m < 4; m++ {
		re := flags&(0x100<<m) != 0
		we := flags&(0x1000<<m) != 0
		f.Perm[AccessRead][m] = re
		f.Perm[AccessWrite][m] = we
		f.Perm[AccessExec][m] = re
		f.FaultOn[AccessRead][m] = flags&0x02 != 0
		f.FaultOn[AccessWrite][m] = flags&0x04 != 0
		f.FaultOn[AccessExec][m] = flags&0x08 != 0
	}
	return f
}

// vaForm builds the virtual PTE address for the three-level page tables.
func (c *Context) vaForm(va uint64, istream bool) uint64 {
	vptb := c.IPR.VACtl &^ uint64(0x3fffffff)
	if istream {
		vptb = c.IPR.ICtl &^ uint64(0x3fffffff)
	}
	return vptb | ((va >> 13 << 3) & 0x3ffffff8)
}

// ierValue composes the IER_CM register image.
func (c *Context) ierValue() uint64 {
	return uint64(c.IPR.EIEN)<<33 | uint64(c.IPR.SLEN)<<32 |
		uint64(c.IPR.CREN)<<31 | uint64(c.IPR.PCEN)<<29 |
		uint64(c.IPR.SIEN)<<13 | uint64(c.IPR.ASTEN)<<13 |
		uint64(c.IPR.CurMode)<<3
}

// astPending returns the AST requests deliverable at or below the
// current mode.
func (c *Context) astPending() uint8 {
	return c.IPR.ASTER & c.IPR.ASTRR & uint8((1<<(int(c.IPR.CurMode)+1))-1)
}

// hwMFPR implements the HW_MFPR instruction (PALmode only).
func (c *Context) hwMFPR(function int, ra int) {
	if function&0xc0 == 0x40 { // PCTX
		v := uint64(c.IPR.ASN)<<39 | uint64(c.IPR.ASTRR)<<9 | uint64(c.IPR.ASTER)<<5
		if c.IPR.FPEN {
			v |= 1 << 2
		}
		if c.IPR.PPCEN {
			v |= 1 << 1
		}
		c.setR(ra, v)
		return
	}
	switch function {
	case 0x06: // EXC_ADDR
		c.setR(ra, c.IPR.ExcAddr)
	case 0x07: // IVA_FORM
		c.setR(ra, c.vaForm(c.IPR.ExcAddr, true))
	case 0x08, 0x09, 0x0a, 0x0b: // IER_CM / CM / IER
		c.setR(ra, c.ierValue())
	case 0x0c: // SIRR
		c.setR(ra, uint64(c.IPR.SIR)<<13)
	case 0x0d: // ISUM
		v := uint64(uint32(c.pendingExternalIRQ())&uint32(c.IPR.EIEN))<<33 |
			uint64(c.IPR.SIR&c.IPR.SIEN)<<13
		ast := uint64(c.astPending())
		v |= (ast & uint64(c.IPR.ASTEN*0x3)) << 3
		v |= (ast & uint64(c.IPR.ASTEN*0xc)) << 7
		c.setR(ra, v)
	case 0x0f: // EXC_SUM
		c.setR(ra, c.IPR.ExcSum)
	case 0x10: // PAL_BASE
		c.setR(ra, c.IPR.PalBase)
	case 0x11: // I_CTL
		c.setR(ra, c.IPR.ICtl|uint64(c.IPR.ICtlSPE)<<3)
	case 0x27: // MM_STAT
		c.setR(ra, c.IPR.MMStat)
	case 0x2a, 0x2b: // DC_STAT / C_DATA
		c.setR(ra, c.IPR.DCCtl)
	case 0xc0: // CC
		c.setR(ra, c.CycleOffset<<32|(c.Cycles&0xffffffff))
	case 0xc2: // VA
		c.setR(ra, c.IPR.FaultVA)
	case 0xc3: // VA_FORM
		c.setR(ra, c.vaForm(c.IPR.FaultVA, false))
	default:
		c.setR(ra, 0)
	}
}

// hwMTPR implements the HW_MTPR instruction (PALmode only).
func (c *Context) hwMTPR(function int, rb int) {
	v := c.effR(rb)
	if function&0xc0 == 0x40 { // PCTX
		if function&1 != 0 {
			c.IPR.ASN = uint32(v>>39) & 0xff
		}
		if function&2 != 0 {
			c.IPR.ASTER = uint8(v>>5) & 0xf
			c.MustCheckIRQ = true
		}
		if function&4 != 0 {
			c.IPR.ASTRR = uint8(v>>9) & 0xf
			c.MustCheckIRQ = true
		}
		if function&8 != 0 {
			c.IPR.PPCEN = v>>1&1 != 0
		}
		if function&16 != 0 {
			c.IPR.FPEN = v>>2&1 != 0
		}
		return
	}
	switch function {
	case 0x00: // ITB_TAG
		c.lastTBVirt = v
	case 0x01: // ITB_PTE
		c.AddTBI(c.lastTBVirt, v)
	case 0x02: // ITB_IAP
		c.ITB.InvalidateProcess()
		c.IC.FlushProcess()
	case 0x03: // ITB_IA
		c.ITB.InvalidateAll()
		c.IC.FlushAll()
	case 0x04: // ITB_IS
		c.ITB.InvalidateSingle(v, c.IPR.ASN)
	case 0x09: // CM
		c.IPR.CurMode = Mode(v>>3) & 3
		c.MustCheckIRQ = true
	case 0x0b: // IER_CM
		c.IPR.CurMode = Mode(v>>3) & 3
		fallthrough
	case 0x0a: // IER
		c.IPR.ASTEN = uint8(v>>13) & 1
		c.IPR.SIEN = uint32(v>>13) & 0xfffe
		c.IPR.PCEN = uint8(v>>29) & 3
		c.IPR.CREN = uint8(v>>31) & 1
		c.IPR.SLEN = uint32(v>>32) & 1
		c.IPR.EIEN = uint8(v>>33) & 0x3f
		c.MustCheckIRQ = true
	case 0x0c: // SIRR
		c.IPR.SIR = uint32(v>>13) & 0xfffe
		c.MustCheckIRQ = true
	case 0x0e: // HW_INT_CLR
		// performance/correctable/serial latches are not modeled
	case 0x10: // PAL_BASE
		c.IPR.PalBase = v & 0x00000fffffff8000
	case 0x11: // I_CTL
		c.IPR.ICtl = v
		c.IPR.ICtlSPE = uint8(v>>3) & 3
	case 0x12: // IC_FLUSH_ASM
		c.IC.FlushProcess()
	case 0x13: // IC_FLUSH
		c.IC.FlushAll()
	case 0x16: // I_STAT (W1C)
	case 0x20, 0xa0: // DTB_TAG0/1
		c.lastTBVirt = v
	case 0x21, 0xa1: // DTB_PTE0/1
		c.AddTBD(c.lastTBVirt, v)
	case 0x24, 0xa4: // DTB_IS0/1
		c.DTB.InvalidateSingle(v, c.IPR.ASN0)
	case 0x25: // DTB_ASN0
		c.IPR.ASN0 = uint32(v >> 56)
	case 0xa5: // DTB_ASN1
		c.IPR.ASN1 = uint32(v >> 56)
	case 0x26: // DTB_ALTMODE
		c.IPR.AltCM = Mode(v & 3)
	case 0x28: // M_CTL
		c.IPR.MCtlSPE = uint8(v>>1) & 7
	case 0x29: // DC_CTL
		c.IPR.DCCtl = v
	case 0x2a: // DC_STAT (W1C)
	case 0xa2: // DTB_IAP
		c.DTB.InvalidateProcess()
	case 0xa3: // DTB_IA
		c.DTB.InvalidateAll()
	case 0xc0: // CC
		c.CycleOffset = v >> 32
	case 0xc1: // CC_CTL
		c.ClockEnable = v>>32&1 != 0
		c.Cycles = v & 0xfffffff0
	case 0xc4: // VA_CTL
		c.IPR.VACtl = v
	}
}
