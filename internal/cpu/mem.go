/*
 * axpbox-sub000 - Virtual memory access.
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

const (
	pageSize = 8192
	pageMask = pageSize - 1
)

// Superpage window constants (HRM 5.3.9).
const (
	spe2Mask  = uint64(0x0000c00000000000) // <47:46>
	spe2Match = uint64(0x0000800000000000)
	spe2Map   = uint64(0x00000fffffffffff) // <43:0>

	spe1Mask  = uint64(0x0000fe0000000000) // <47:41>
	spe1Match = uint64(0x0000fc0000000000)
	spe1Map   = uint64(0x000001ffffffffff) // <40:0>
	spe1Test  = uint64(0x0000010000000000) // <40>
	spe1Add   = uint64(0x00000e0000000000) // <43:41>

	spe0Mask  = uint64(0x0000ffffc0000000) // <47:30>
	spe0Match = uint64(0x0000ffff80000000)
	spe0Map   = uint64(0x000000003fffffff) // <29:0>
)

// superpage applies the three kernel-mode window tests that bypass the TB
// entirely. ASN never affects these mappings.
func (c *Context) superpage(virt uint64, spe uint8) (uint64, bool) {
	switch {
	case spe&4 != 0 && virt&spe2Mask == spe2Match:
		return virt & spe2Map, true
	case spe&2 != 0 && virt&spe1Mask == spe1Match:
		pa := virt & spe1Map
		if virt&spe1Test != 0 {
			pa |= spe1Add
		}
		return pa, true
	case spe&1 != 0 && virt&spe0Mask == spe0Match:
		return virt & spe0Map, true
	}
	return 0, false
}

// translateFetch maps an instruction-stream virtual address. On a miss or
// access violation the PAL entry has been taken and ok is false.
func (c *Context) translateFetch(virt uint64) (phys uint64, asmBit bool, ok bool) {
	if c.IPR.CurMode == ModeKernel {
		if pa, hit := c.superpage(virt, c.IPR.ICtlSPE); hit {
			return pa, false, true
		}
	}
	res, err := c.ITB.Lookup(virt, c.IPR.ASN, AccessExec)
	if err != nil {
		c.goPAL(palITBMiss)
		return 0, false, false
	}
	if !res.Perm[c.IPR.CurMode] {
		c.IPR.ExcSum = 0
		c.goPAL(palIACV)
		return 0, false, false
	}
	return res.Phys, res.ASM, true
}

// dataAccess captures one data-stream translation request.
type dataAccess struct {
	virt  uint64
	write bool
	alt   bool // use alt-cm instead of the current mode
	ins   uint32
}

// mmStat encodes the faulting opcode and direction for MM_STAT, folding
// the HW_LD/HW_ST opcodes the way the hardware does.
func mmStat(ins uint32, write bool) uint64 {
	opcode := uint64(ins >> 26)
	if opcode == 0x1b || opcode == 0x1f {
		opcode -= 0x18
	}
	v := opcode << 4
	if write {
		v |= 1
	}
	return v
}

// translateData maps a data-stream virtual address, entering PALcode on a
// miss or fault. faultVirt is the address reported on a miss; for an
// access that crosses into an unmapped page the caller passes the far
// page's base.
func (c *Context) translateData(a dataAccess, faultVirt uint64) (uint64, bool) {
	mode := c.IPR.CurMode
	if a.alt {
		mode = c.IPR.AltCM
	}
	if mode == ModeKernel {
		if pa, hit := c.superpage(a.virt, c.IPR.MCtlSPE); hit {
			return pa, true
		}
	}

	acc := AccessRead
	if a.write {
		acc = AccessWrite
	}
	res, err := c.DTB.Lookup(a.virt, c.IPR.ASN, acc)
	if err != nil {
		c.IPR.FaultVA = faultVirt
		c.IPR.ExcSum = uint64((a.ins>>21)&31) << 8
		c.IPR.MMStat = mmStat(a.ins, a.write)
		c.goPAL(palDTBMSingle)
		return 0, false
	}
	if !res.Perm[mode] || res.FaultOn[mode] {
		c.IPR.FaultVA = a.virt
		c.IPR.ExcSum = uint64((a.ins>>21)&31) << 8
		c.IPR.MMStat = mmStat(a.ins, a.write)
		c.goPAL(palDFault)
		return 0, false
	}
	return res.Phys, true
}

// readVirt performs a data load of widthBits. An access crossing a page
// boundary is split; the far page is translated ahead of time and a miss
// there reports the far page's base as the fault VA.
func (c *Context) readVirt(a dataAccess, widthBits int) (uint64, bool) {
	n := uint64(widthBits / 8)
	pa, ok := c.translateData(a, a.virt)
	if !ok {
		return 0, false
	}
	if (a.virt&pageMask)+n <= pageSize {
		v, err := c.Mem.Read(pa, widthBits)
		if err != nil {
			c.machineCheck()
			return 0, false
		}
		return v, true
	}

	// Crosses a page: translate the far page first, then gather bytes.
	farBase := (a.virt &^ uint64(pageMask)) + pageSize
	far := a
	far.virt = farBase
	paFar, ok := c.translateData(far, farBase)
	if !ok {
		return 0, false
	}
	var v uint64
	for i := uint64(0); i < n; i++ {
		src := pa + i
		if a.virt+i >= farBase {
			src = paFar + (a.virt + i - farBase)
		}
		b, err := c.Mem.Read(src, 8)
		if err != nil {
			c.machineCheck()
			return 0, false
		}
		v |= b << (8 * i)
	}
	return v, true
}

// writeVirt performs a data store of widthBits with the same
// page-crossing discipline as readVirt.
func (c *Context) writeVirt(a dataAccess, widthBits int, value uint64) bool {
	a.write = true
	n := uint64(widthBits / 8)
	pa, ok := c.translateData(a, a.virt)
	if !ok {
		return false
	}
	if (a.virt&pageMask)+n <= pageSize {
		if err := c.Mem.Write(pa, widthBits, value); err != nil {
			c.machineCheck()
			return false
		}
		return true
	}

	farBase := (a.virt &^ uint64(pageMask)) + pageSize
	far := a
	far.virt = farBase
	paFar, ok := c.translateData(far, farBase)
	if !ok {
		return false
	}
	for i := uint64(0); i < n; i++ {
		dst := pa + i
		if a.virt+i >= farBase {
			dst = paFar + (a.virt + i - farBase)
		}
		if err := c.Mem.Write(dst, 8, (value>>(8*i))&0xff); err != nil {
			c.machineCheck()
			return false
		}
	}
	return true
}

// machineCheck reflects an unserviceable physical access to the guest.
func (c *Context) machineCheck() {
	c.goPAL(palMchk)
}
