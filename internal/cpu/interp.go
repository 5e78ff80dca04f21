/*
 * axpbox-sub000 - Instruction interpreter.
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

// sext sign-extends the low bits of v to 64.
func sext(v uint64, bits uint) uint64 {
	shift := 64 - bits
	return uint64(int64(v<<shift) >> shift)
}

func sext32(v uint64) uint64 { return sext(v, 32) }

// rmap applies PALshadow mapping: in PALmode with shadow enable, R4-R7
// address the shadow bank.
func (c *Context) rmap(n int) int {
	n &= 31
	if c.InPALMode() && c.IPR.PALShadowEnable && n >= 4 && n <= 7 {
		return n + 32
	}
	return n
}

// Instruction field accessors.
func ra(ins uint32) int      { return int(ins>>21) & 31 }
func rb(ins uint32) int      { return int(ins>>16) & 31 }
func rc(ins uint32) int      { return int(ins) & 31 }
func disp16(ins uint32) uint64 {
	return sext(uint64(ins&0xffff), 16)
}

func disp21(ins uint32) uint64 {
	return sext(uint64(ins&0x1fffff), 21)
}

// vb resolves operand B: register or 8-bit literal.
func (c *Context) vb(ins uint32) uint64 {
	if ins&0x1000 != 0 {
		return uint64(ins>>13) & 0xff
	}
	return c.effR(c.rmap(rb(ins)))
}

func (c *Context) va(ins uint32) uint64 {
	return c.effR(c.rmap(ra(ins)))
}

// Step executes one instruction of the per-tick loop.
func (c *Context) Step() {
	c.currentPC = c.PC

	// Advance the cycle counter; past the timer threshold, raise the
	// clock interrupt and move the threshold one tick ahead.
	c.instructions++
	c.ccLarge += uint64(c.CyclesPerIns)
	if c.ccLarge > c.NextTimerInt {
		c.NextTimerInt += c.CPUHz / 1024
		if c.OnClockTick != nil {
			c.OnClockTick()
		}
	}
	if c.ClockEnable {
		c.Cycles += uint64(c.CyclesPerIns)
	}

	// Collect delayed-IRQ arms posted by I/O goroutines.
	if c.timerArm.Load() {
		c.timerMu.Lock()
		for i, t := range c.pendingTimers {
			if t != 0 {
				c.IRQTimers[i] = t
				c.pendingTimers[i] = 0
			}
		}
		c.timerMu.Unlock()
		c.timerArm.Store(false)
		c.checkTimers = true
	}

	// Delayed external IRQ timers.
	if c.checkTimers {
		c.checkTimers = false
		for i := range c.IRQTimers {
			if c.IRQTimers[i] == 0 {
				continue
			}
			c.IRQTimers[i]--
			if c.IRQTimers[i] != 0 {
				c.checkTimers = true
			} else {
				c.AssertIRQ(uint(i))
				c.MustCheckIRQ = true
			}
		}
	}

	// Interrupt delivery, only outside PALmode.
	if c.MustCheckIRQ && !c.InPALMode() {
		eir := uint8(c.pendingExternalIRQ())
		if eir&c.IPR.EIEN != 0 || c.IPR.SIR&c.IPR.SIEN != 0 ||
			(c.IPR.ASTEN != 0 && c.astPending() != 0) {
			c.goPAL(palInterrupt)
			return
		}
		c.MustCheckIRQ = false
	}

	ins, ok := c.fetch(c.PC)
	if !ok {
		// The PAL entry for the ITB miss or IACV has been taken.
		return
	}

	c.PC += 4
	if !c.IC.enabled {
		c.IC.pcPhys += 4
		if c.IC.remInsInPage > 0 {
			c.IC.remInsInPage--
		}
	}

	c.R[31] = 0
	c.R[63] = 0
	c.F[31] = 0
	c.F[63] = 0

	c.dispatch(ins)
}

func (c *Context) dispatch(ins uint32) {
	switch ins >> 26 {
	case 0x00:
		c.callPAL(int(ins & 0x1fffffff))
	case 0x08: // LDA
		c.setR(c.rmap(ra(ins)), c.vb(insNoLit(ins))+disp16(ins))
	case 0x09: // LDAH
		c.setR(c.rmap(ra(ins)), c.vb(insNoLit(ins))+disp16(ins)<<16)
	case 0x0a: // LDBU
		c.load(ins, 8, false, false)
	case 0x0b: // LDQ_U
		c.loadUnaligned(ins)
	case 0x0c: // LDWU
		c.load(ins, 16, false, false)
	case 0x0d: // STW
		c.store(ins, 16)
	case 0x0e: // STB
		c.store(ins, 8)
	case 0x0f: // STQ_U
		c.storeUnaligned(ins)
	case 0x10:
		c.opInta(ins)
	case 0x11:
		c.opIntl(ins)
	case 0x12:
		c.opInts(ins)
	case 0x13:
		c.opIntm(ins)
	case 0x14:
		c.opItfp(ins)
	case 0x15:
		c.opFltv(ins)
	case 0x16:
		c.opFlti(ins)
	case 0x17:
		c.opFltl(ins)
	case 0x18:
		c.opMisc(ins)
	case 0x19: // HW_MFPR
		if !c.InPALMode() {
			c.goPAL(palOpcDec)
			return
		}
		c.hwMFPR(int(ins>>8)&0xff, c.rmap(ra(ins)))
	case 0x1a: // JMP/JSR/RET/JSR_COROUTINE
		target := c.effR(c.rmap(rb(ins))) &^ 3
		c.setR(c.rmap(ra(ins)), c.PC&^uint64(3))
		c.PC = target | (c.PC & 1)
		c.IC.remInsInPage = 0
	case 0x1b: // HW_LD
		if !c.InPALMode() {
			c.goPAL(palOpcDec)
			return
		}
		c.hwLoad(ins)
	case 0x1c:
		c.opFpti(ins)
	case 0x1d: // HW_MTPR
		if !c.InPALMode() {
			c.goPAL(palOpcDec)
			return
		}
		c.hwMTPR(int(ins>>8)&0xff, c.rmap(rb(ins)))
	case 0x1e: // HW_RET
		if !c.InPALMode() {
			c.goPAL(palOpcDec)
			return
		}
		c.PC = c.effR(c.rmap(rb(ins)))
		c.IC.remInsInPage = 0
	case 0x1f: // HW_ST
		if !c.InPALMode() {
			c.goPAL(palOpcDec)
			return
		}
		c.hwStore(ins)
	case 0x20: // LDF
		c.loadF(ins)
	case 0x21: // LDG
		c.loadG(ins)
	case 0x22: // LDS
		c.loadS(ins)
	case 0x23: // LDT
		c.loadT(ins)
	case 0x24: // STF
		c.storeF(ins)
	case 0x25: // STG
		c.storeG(ins)
	case 0x26: // STS
		c.storeS(ins)
	case 0x27: // STT
		c.storeT(ins)
	case 0x28: // LDL
		c.load(ins, 32, true, false)
	case 0x29: // LDQ
		c.load(ins, 64, false, false)
	case 0x2a: // LDL_L
		c.load(ins, 32, true, true)
	case 0x2b: // LDQ_L
		c.load(ins, 64, false, true)
	case 0x2c: // STL
		c.store(ins, 32)
	case 0x2d: // STQ
		c.store(ins, 64)
	case 0x2e: // STL_C
		c.storeConditional(ins, 32)
	case 0x2f: // STQ_C
		c.storeConditional(ins, 64)
	case 0x30: // BR
		c.setR(c.rmap(ra(ins)), c.PC&^uint64(3))
		c.branch(ins)
	case 0x31: // FBEQ
		c.fbranch(ins, func(v uint64) bool { return v&^(1<<63) == 0 })
	case 0x32: // FBLT
		c.fbranch(ins, func(v uint64) bool { return v>>63 != 0 && v&^(1<<63) != 0 })
	case 0x33: // FBLE
		c.fbranch(ins, func(v uint64) bool { return v>>63 != 0 || v&^(1<<63) == 0 })
	case 0x34: // BSR
		c.setR(c.rmap(ra(ins)), c.PC&^uint64(3))
		c.branch(ins)
	case 0x35: // FBNE
		c.fbranch(ins, func(v uint64) bool { return v&^(1<<63) != 0 })
	case 0x36: // FBGE
		c.fbranch(ins, func(v uint64) bool { return v>>63 == 0 || v == 1<<63 })
	case 0x37: // FBGT
		c.fbranch(ins, func(v uint64) bool { return v>>63 == 0 && v&^(1<<63) != 0 })
	case 0x38: // BLBC
		c.cbranch(ins, c.va(ins)&1 == 0)
	case 0x39: // BEQ
		c.cbranch(ins, c.va(ins) == 0)
	case 0x3a: // BLT
		c.cbranch(ins, int64(c.va(ins)) < 0)
	case 0x3b: // BLE
		c.cbranch(ins, int64(c.va(ins)) <= 0)
	case 0x3c: // BLBS
		c.cbranch(ins, c.va(ins)&1 != 0)
	case 0x3d: // BNE
		c.cbranch(ins, c.va(ins) != 0)
	case 0x3e: // BGE
		c.cbranch(ins, int64(c.va(ins)) >= 0)
	case 0x3f: // BGT
		c.cbranch(ins, int64(c.va(ins)) > 0)
	default:
		c.goPAL(palOpcDec)
	}
}

// insNoLit masks off the literal bit so vb() resolves Rb for the memory
// format, which shares the 16-bit displacement with bit 12.
func insNoLit(ins uint32) uint32 {
	return ins &^ 0x1000
}

func (c *Context) branch(ins uint32) {
	c.PC = (c.PC + disp21(ins)*4) | (c.PC & 1)
	c.IC.remInsInPage = 0
}

func (c *Context) cbranch(ins uint32, taken bool) {
	if taken {
		c.branch(ins)
	}
}

func (c *Context) fbranch(ins uint32, cond func(uint64) bool) {
	if !c.IPR.FPEN {
		c.goPAL(palFEN)
		return
	}
	if cond(c.effF(c.rmap(ra(ins)))) {
		c.branch(ins)
	}
}
