/*
 * axpbox-sub000 - CALL_PAL dispatch and native PALcode shims.
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

// The VMS PALcode base that enables the native replacement shims.
const vmsPALBase = 0x8000

// VMS CALL_PAL function codes handled natively.
const (
	palCFlush    = 0x01
	palDrainA    = 0x02
	palLDQP      = 0x03
	palSTQP      = 0x04
	palMFPRASN   = 0x06
	palMFPRFEN   = 0x0b
	palMTPRFEN   = 0x0c
	palMFPRIPL   = 0x0e
	palMTPRIPL   = 0x0f
	palMFPRWHAMI = 0x3f
	palTBI       = 0x33
	palIMB       = 0x86
)

// callPAL implements the CALL_PAL instruction: function 0-63 is
// privileged (kernel only), 128-191 unprivileged, everything else is an
// illegal opcode. With the VMS PALcode base installed a set of hot
// routines completes natively without branching into the PAL image.
func (c *Context) callPAL(function int) {
	privileged := function < 0x40
	unprivileged := function >= 0x80 && function < 0xc0
	if !(privileged && c.IPR.CurMode == ModeKernel) && !unprivileged {
		c.goPAL(palOpcDec)
		return
	}

	if c.IPR.PalBase == vmsPALBase && c.nativePAL(function) {
		return
	}

	// Branch into the PAL image: return address in PALshadow R23.
	c.R[32+23] = c.PC
	c.IPR.ExcAddr = c.currentPC
	target := c.IPR.PalBase | uint64(function&0x3f)<<6 | 1
	if function&0x80 != 0 {
		target |= 1 << 13
	}
	c.PC = target
	c.IC.remInsInPage = 0
}

// nativePAL completes a VMS PALcode routine without entering the PAL
// image; reports false when the routine must run from the image. Only
// the routines that touch no HWPCB state are replaced natively — the
// rest branch into the PAL image, which is always correct.
func (c *Context) nativePAL(function int) bool {
	switch function {
	case palCFlush, palDrainA, palIMB:
		return true

	case palLDQP: // r0 <- (r16) physical
		v, err := c.Mem.Read(c.R[16], 64)
		if err != nil {
			return false
		}
		c.R[0] = v
		return true

	case palSTQP: // (r16) <- r17 physical
		return c.Mem.Write(c.R[16], 64, c.R[17]) == nil

	case palMFPRASN:
		c.R[0] = uint64(c.IPR.ASN)
		return true

	case palMFPRFEN:
		c.R[0] = boolTo64(c.IPR.FPEN)
		return true

	case palMTPRFEN:
		c.IPR.FPEN = c.R[16]&1 != 0
		return true

	case palMFPRIPL:
		c.R[0] = uint64(c.IPL)
		return true

	case palMTPRIPL:
		c.R[0] = uint64(c.IPL)
		c.IPL = int(c.R[16]) & 31
		c.setIPL(c.IPL)
		return true

	case palMFPRWHAMI:
		c.R[0] = uint64(c.ID)
		return true

	case palTBI:
		return c.tbi(int64(c.R[16]), c.R[17])

	default:
		return false
	}
}

// tbi implements the TBI PALcode routine's invalidate selector.
func (c *Context) tbi(selector int64, va uint64) bool {
	switch selector {
	case -2: // TBIA
		c.ITB.InvalidateAll()
		c.DTB.InvalidateAll()
		c.IC.FlushAll()
	case -1: // TBIAP
		c.ITB.InvalidateProcess()
		c.DTB.InvalidateProcess()
		c.IC.FlushProcess()
	case 1: // TBISI
		c.ITB.InvalidateSingle(va, c.IPR.ASN)
		c.IC.FlushAll()
	case 2: // TBISD
		c.DTB.InvalidateSingle(va, c.IPR.ASN0)
	case 3: // TBIS
		c.ITB.InvalidateSingle(va, c.IPR.ASN)
		c.DTB.InvalidateSingle(va, c.IPR.ASN0)
		c.IC.FlushAll()
	default:
		return false
	}
	return true
}
