/*
 * axpbox-sub000 - Instruction cache.
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
	icacheEntries  = 1024
	icacheLineSize = 512 // 32-bit words per line

	icacheMatchMask = ^uint64(icacheLineSize*4 - 1)
	icacheIndexMask = icacheLineSize - 1
)

// icacheLine caches one decoded line of instruction words with its
// virtual tag, physical base, and ASN/ASM match bits.
type icacheLine struct {
	valid   bool
	address uint64
	phys    uint64
	asn     uint32
	asmBit  bool
	data    [icacheLineSize]uint32
}

// ICache is the per-CPU line-granular instruction cache. When disabled at
// configuration time the fetcher bypasses it and tracks instructions
// remaining in the current page instead, so the ITB is still consulted
// only once per page.
type ICache struct {
	lines     [icacheEntries]icacheLine
	lastFound int
	next      int

	enabled bool

	// bypass-mode state
	pcPhys       uint64
	remInsInPage int
}

func (ic *ICache) init() {
	ic.enabled = true
	ic.FlushAll()
}

// SetEnabled selects between the cache and the bypass fetcher; a
// configuration-time choice, not flipped at runtime.
func (ic *ICache) SetEnabled(enabled bool) {
	ic.enabled = enabled
	ic.FlushAll()
}

// FlushAll invalidates every line and resets the fill pointer.
func (ic *ICache) FlushAll() {
	for i := range ic.lines {
		ic.lines[i].valid = false
	}
	ic.next = 0
	ic.lastFound = 0
	ic.remInsInPage = 0
}

// FlushProcess invalidates lines whose ASM bit is clear.
func (ic *ICache) FlushProcess() {
	for i := range ic.lines {
		if !ic.lines[i].asmBit {
			ic.lines[i].valid = false
		}
	}
	ic.remInsInPage = 0
}

func (ic *ICache) match(l *icacheLine, address uint64, asn uint32) bool {
	return l.valid && (l.asn == asn || l.asmBit) && l.address == address&icacheMatchMask
}

// fetch returns the instruction word at the (PALmode-tagged) virtual
// address, filling a line on miss. A translation failure has already
// redirected the PC into PALcode; ok is false in that case.
func (c *Context) fetch(address uint64) (ins uint32, ok bool) {
	ic := &c.IC
	if !ic.enabled {
		return c.fetchBypass(address)
	}

	asn := c.IPR.ASN
	if l := &ic.lines[ic.lastFound]; ic.match(l, address, asn) {
		return l.data[(address>>2)&icacheIndexMask], true
	}
	for i := range ic.lines {
		l := &ic.lines[i]
		if ic.match(l, address, asn) {
			ic.lastFound = i
			return l.data[(address>>2)&icacheIndexMask], true
		}
	}

	// Miss: translate the line base and bulk-copy from host RAM.
	va := address & icacheMatchMask
	var pa uint64
	asmBit := false
	if address&1 != 0 {
		// PALmode: the PC is a physical address.
		pa = va &^ 1
		asmBit = true
	} else {
		var ok bool
		pa, asmBit, ok = c.translateFetch(va)
		if !ok {
			return 0, false
		}
	}

	l := &ic.lines[ic.next]
	if raw := c.Mem.Pointer(pa, icacheLineSize*4); raw != nil {
		for i := 0; i < icacheLineSize; i++ {
			l.data[i] = uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 |
				uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
		}
	} else {
		// Device-backed instruction fetch: fall back to discrete reads.
		for i := 0; i < icacheLineSize; i++ {
			v, err := c.Mem.Read(pa+uint64(4*i), 32)
			if err != nil {
				return 0, false
			}
			l.data[i] = uint32(v)
		}
	}
	l.valid = true
	l.asn = asn
	l.asmBit = asmBit
	l.address = va
	l.phys = pa

	ic.lastFound = ic.next
	ic.next++
	if ic.next == icacheEntries {
		ic.next = 0
	}
	return l.data[(address>>2)&icacheIndexMask], true
}

// fetchBypass services fetches with the icache disabled: re-translate only
// when the remaining-instructions counter for the current page runs out.
func (c *Context) fetchBypass(address uint64) (uint32, bool) {
	ic := &c.IC
	if address&1 != 0 {
		ic.pcPhys = address &^ 3
		ic.remInsInPage = 1
	} else if ic.remInsInPage == 0 {
		pa, _, ok := c.translateFetch(address)
		if !ok {
			return 0, false
		}
		ic.pcPhys = pa
		ic.remInsInPage = 2048 - int((address>>2)&2047)
	}
	v, err := c.Mem.Read(ic.pcPhys, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}
