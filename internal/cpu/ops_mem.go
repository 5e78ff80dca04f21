/*
 * axpbox-sub000 - Memory-format instructions.
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

func (c *Context) ea(ins uint32) uint64 {
	return c.effR(c.rmap(rb(ins))) + disp16(ins)
}

// load performs LDBU/LDWU/LDL/LDQ and the locked variants.
func (c *Context) load(ins uint32, widthBits int, signed, locked bool) {
	va := c.ea(ins)
	if locked {
		// The lock registers the physical address; translate first.
		pa, ok := c.translateData(dataAccess{virt: va, ins: ins}, va)
		if !ok {
			return
		}
		c.Mem.Lock(c.ID, pa)
	}
	v, ok := c.readVirt(dataAccess{virt: va, ins: ins}, widthBits)
	if !ok {
		return
	}
	if signed {
		v = sext32(v)
	}
	c.setR(c.rmap(ra(ins)), v)
}

func (c *Context) store(ins uint32, widthBits int) {
	va := c.ea(ins)
	c.writeVirt(dataAccess{virt: va, ins: ins}, widthBits, c.va(ins))
}

// loadUnaligned is LDQ_U: quadword load with the low address bits
// ignored.
func (c *Context) loadUnaligned(ins uint32) {
	va := c.ea(ins) &^ 7
	v, ok := c.readVirt(dataAccess{virt: va, ins: ins}, 64)
	if !ok {
		return
	}
	c.setR(c.rmap(ra(ins)), v)
}

func (c *Context) storeUnaligned(ins uint32) {
	va := c.ea(ins) &^ 7
	c.writeVirt(dataAccess{virt: va, ins: ins}, 64, c.va(ins))
}

// storeConditional is STL_C/STQ_C: the store succeeds only if the lock
// from the matching LDx_L is still intact.
func (c *Context) storeConditional(ins uint32, widthBits int) {
	va := c.ea(ins)
	pa, ok := c.translateData(dataAccess{virt: va, write: true, ins: ins}, va)
	if !ok {
		return
	}
	if c.Mem.Unlock(c.ID, pa) {
		if !c.writeVirt(dataAccess{virt: va, ins: ins}, widthBits, c.va(ins)) {
			return
		}
		c.setR(c.rmap(ra(ins)), 1)
	} else {
		c.setR(c.rmap(ra(ins)), 0)
	}
}

// hwLoad is the PALmode HW_LD: physical and virtual loads with a 12-bit
// displacement.
func (c *Context) hwLoad(ins uint32) {
	function := int(ins>>12) & 0xf
	addr := c.effR(c.rmap(rb(ins))) + sext(uint64(ins&0xfff), 12)
	dst := c.rmap(ra(ins))

	switch function {
	case 0x0: // longword physical
		if v, err := c.Mem.Read(addr, 32); err == nil {
			c.setR(dst, sext32(v))
		}
	case 0x1: // quadword physical
		if v, err := c.Mem.Read(addr, 64); err == nil {
			c.setR(dst, v)
		}
	case 0x2: // longword physical locked
		c.Mem.Lock(c.ID, addr)
		if v, err := c.Mem.Read(addr, 32); err == nil {
			c.setR(dst, sext32(v))
		}
	case 0x3: // quadword physical locked
		c.Mem.Lock(c.ID, addr)
		if v, err := c.Mem.Read(addr, 64); err == nil {
			c.setR(dst, v)
		}
	case 0x4, 0x5: // longword/quadword virtual vpte
		width := 32 + 32*(function&1)
		if v, ok := c.readVirt(dataAccess{virt: addr, ins: ins}, width); ok {
			if function == 4 {
				v = sext32(v)
			}
			c.setR(dst, v)
		}
	case 0x8, 0xa: // longword virtual (check, alt)
		if v, ok := c.readVirt(dataAccess{virt: addr, alt: function == 0xa, ins: ins}, 32); ok {
			c.setR(dst, sext32(v))
		}
	case 0x9, 0xb: // quadword virtual (check, alt)
		if v, ok := c.readVirt(dataAccess{virt: addr, alt: function == 0xb, ins: ins}, 64); ok {
			c.setR(dst, v)
		}
	default:
		c.goPAL(palOpcDec)
	}
}

// hwStore is the PALmode HW_ST.
func (c *Context) hwStore(ins uint32) {
	function := int(ins>>12) & 0xf
	addr := c.effR(c.rmap(rb(ins))) + sext(uint64(ins&0xfff), 12)
	v := c.effR(c.rmap(ra(ins)))

	switch function {
	case 0x0: // longword physical
		c.Mem.Write(addr, 32, v&0xffffffff)
	case 0x1: // quadword physical
		c.Mem.Write(addr, 64, v)
	case 0x2: // longword physical conditional
		c.setR(c.rmap(ra(ins)), 0)
		if c.Mem.Unlock(c.ID, addr) {
			c.Mem.Write(addr, 32, v&0xffffffff)
			c.setR(c.rmap(ra(ins)), 1)
		}
	case 0x3: // quadword physical conditional
		c.setR(c.rmap(ra(ins)), 0)
		if c.Mem.Unlock(c.ID, addr) {
			c.Mem.Write(addr, 64, v)
			c.setR(c.rmap(ra(ins)), 1)
		}
	case 0x4, 0xc: // longword virtual (alt)
		c.writeVirt(dataAccess{virt: addr, alt: function == 0xc, ins: ins}, 32, v&0xffffffff)
	case 0x5, 0xd: // quadword virtual (alt)
		c.writeVirt(dataAccess{virt: addr, alt: function == 0xd, ins: ins}, 64, v)
	default:
		c.goPAL(palOpcDec)
	}
}

// fpEnabled guards every floating-point touch behind the FEN bit.
func (c *Context) fpEnabled() bool {
	if !c.IPR.FPEN {
		c.goPAL(palFEN)
		return false
	}
	return true
}

func (c *Context) loadS(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	v, ok := c.readVirt(dataAccess{virt: c.ea(ins), ins: ins}, 32)
	if !ok {
		return
	}
	c.setF(c.rmap(ra(ins)), fpu.LoadS(uint32(v)))
}

func (c *Context) loadT(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	v, ok := c.readVirt(dataAccess{virt: c.ea(ins), ins: ins}, 64)
	if !ok {
		return
	}
	c.setF(c.rmap(ra(ins)), fpu.LoadT(v))
}

func (c *Context) loadF(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	v, ok := c.readVirt(dataAccess{virt: c.ea(ins), ins: ins}, 32)
	if !ok {
		return
	}
	c.setF(c.rmap(ra(ins)), fpu.LoadF(uint32(v)))
}

func (c *Context) loadG(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	v, ok := c.readVirt(dataAccess{virt: c.ea(ins), ins: ins}, 64)
	if !ok {
		return
	}
	c.setF(c.rmap(ra(ins)), fpu.LoadG(v))
}

func (c *Context) storeS(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	v := fpu.StoreS(c.effF(c.rmap(ra(ins))))
	c.writeVirt(dataAccess{virt: c.ea(ins), ins: ins}, 32, uint64(v))
}

func (c *Context) storeT(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	c.writeVirt(dataAccess{virt: c.ea(ins), ins: ins}, 64, fpu.StoreT(c.effF(c.rmap(ra(ins)))))
}

func (c *Context) storeF(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	v := fpu.StoreF(c.effF(c.rmap(ra(ins))))
	c.writeVirt(dataAccess{virt: c.ea(ins), ins: ins}, 32, uint64(v))
}

func (c *Context) storeG(ins uint32) {
	if !c.fpEnabled() {
		return
	}
	c.writeVirt(dataAccess{virt: c.ea(ins), ins: ins}, 64, fpu.StoreG(c.effF(c.rmap(ra(ins)))))
}
