/*
 * axpbox-sub000 - CPU context.
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

// Package cpu implements a single Alpha 21264-class logical processor:
// its register file, translation buffers, instruction cache, PALcode
// replacement shims, and per-tick interpreter loop. One Context belongs
// to exactly one worker goroutine; other goroutines touch it only
// through AssertIRQ/DeassertIRQ.
package cpu

import (
	"sync"
	"sync/atomic"

	"github.com/lenticularis39/axpbox-sub000/internal/event"
	"github.com/lenticularis39/axpbox-sub000/internal/fpu"
	"github.com/lenticularis39/axpbox-sub000/internal/memory"
)

// Mode is the current privilege mode, used to index per-mode permission
// and interrupt-enable vectors.
type Mode int

const (
	ModeKernel Mode = iota
	ModeExec
	ModeSuper
	ModeUser
)

// Number of external interrupt request lines with their own delayed-IRQ
// timer.
const numIRQLines = 6

// IPRs holds the internal processor registers. Fields are named after
// the architectural registers so a reviewer can cross-reference the
// Alpha Architecture Reference Manual directly.
type IPRs struct {
	PalBase   uint64
	ExcAddr   uint64
	FaultVA   uint64
	ExcSum    uint64
	MMStat    uint64
	ICtl      uint64
	DCCtl     uint64
	VACtl     uint64
	AltCM     Mode
	ASN       uint32
	ASN0      uint32
	ASN1      uint32
	CurMode   Mode

	// Per-level interrupt enables, selected as a row of iplIERMask by
	// MTPR IPL writes.
	EIEN  uint8  // external interrupt enable, one bit per IRQ line
	SLEN  uint32 // serial-line interrupt enable
	CREN  uint8  // clock/correctable-error enable
	PCEN  uint8  // performance-counter enable
	SIEN  uint32 // software interrupt enable mask
	ASTEN uint8  // AST delivery enable

	SIR   uint32 // pending software interrupt request word
	ASTER uint8  // AST enable nibble, indexed by mode
	ASTRR uint8  // AST request nibble, indexed by mode

	PALShadowEnable bool
	ICtlSPE         uint8 // superpage enable nibble in I_CTL
	MCtlSPE         uint8 // superpage enable nibble in M_CTL
	FPEN            bool
	PPCEN           bool

	FPCR fpu.FPCR
}

// Context is the complete per-processor state.
type Context struct {
	ID int

	PC        uint64
	currentPC uint64 // address of the instruction being executed

	R [64]uint64 // 32 integer regs + 32 PAL shadow regs
	F [64]uint64 // 32 float regs + 32 PAL shadow regs (T-shaped container)

	Cycles       uint64
	CycleOffset  uint64
	CyclesPerIns int // calibrated cycles-per-instruction knob, clamped [0,200]
	ClockEnable  bool
	NextTimerInt uint64
	CPUHz        uint64

	IPR IPRs

	IRQTimers    [numIRQLines]int
	MustCheckIRQ bool
	checkTimers  bool
	externalIRQ  atomic.Uint32 // asserted/deasserted from other goroutines

	timerMu       sync.Mutex
	timerArm      atomic.Bool
	pendingTimers [numIRQLines]int

	// OnClockTick delivers the crossed-timer-threshold interrupt to the
	// interrupt fabric.
	OnClockTick func()

	instructions uint64
	ccLarge      uint64 // cycle counter used for the timer threshold
	intrFlag     bool   // RC/RS interrupt flag
	lastTBVirt   uint64 // tag latched by the ITB/DTB tag IPR writes

	ITB ITB
	DTB DTB
	IC  ICache

	WaitForStart bool

	// IPL is the interrupt priority level most recently set through
	// MTPR_IPL; the enable masks are its iplIERMask row.
	IPL int

	Timers event.Queue

	Mem memory.Fabric

	halted bool
}

// NewContext builds a processor context bound to the given memory fabric,
// with register 31 (and its PAL shadow) permanently zero.
func NewContext(id int, mem memory.Fabric, cpuHz uint64) *Context {
	c := &Context{
		ID:           id,
		Mem:          mem,
		CPUHz:        cpuHz,
		CyclesPerIns: 1,
	}
	c.IPR.PalBase = 0x8000
	c.ITB.init()
	c.DTB.init()
	c.IC.init()
	return c
}

// effR reads integer register n, forcing r31/r63 to zero.
func (c *Context) effR(n int) uint64 {
	if n&31 == 31 {
		return 0
	}
	return c.R[n]
}

// setR writes integer register n, discarding writes to r31/r63.
func (c *Context) setR(n int, v uint64) {
	if n&31 == 31 {
		return
	}
	c.R[n] = v
}

func (c *Context) effF(n int) uint64 {
	if n&31 == 31 {
		return 0
	}
	return c.F[n]
}

func (c *Context) setF(n int, v uint64) {
	if n&31 == 31 {
		return
	}
	c.F[n] = v
}

// InPALMode reports whether the PC's low bit (the PALmode indicator) is
// set.
func (c *Context) InPALMode() bool {
	return c.PC&1 != 0
}

// AssertIRQ and DeassertIRQ are the idempotent, concurrency-safe
// operations other goroutines use to drive this context's external
// interrupt lines.
func (c *Context) AssertIRQ(line uint) {
	for {
		old := c.externalIRQ.Load()
		nw := old | (1 << line)
		if c.externalIRQ.CompareAndSwap(old, nw) {
			return
		}
	}
}

// AssertIRQDelayed arms line's delayed-IRQ timer: the interrupt fires
// after the owning worker has executed ticks more instructions. Safe to
// call from I/O goroutines.
func (c *Context) AssertIRQDelayed(line uint, ticks int) {
	if ticks <= 0 {
		c.AssertIRQ(line)
		return
	}
	c.timerMu.Lock()
	c.pendingTimers[line] = ticks
	c.timerMu.Unlock()
	c.timerArm.Store(true)
}

func (c *Context) DeassertIRQ(line uint) {
	for {
		old := c.externalIRQ.Load()
		nw := old &^ (1 << line)
		if c.externalIRQ.CompareAndSwap(old, nw) {
			return
		}
	}
}

func (c *Context) pendingExternalIRQ() uint32 {
	return c.externalIRQ.Load()
}
