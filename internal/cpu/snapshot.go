/*
 * axpbox-sub000 - CPU context save/restore.
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
	"io"

	"github.com/lenticularis39/axpbox-sub000/internal/state"
)

// snapshot is the fixed-size on-disk image of one processor. TB
// and icache contents are deliberately not carried: both refill on
// demand and a restore starts them cold, which is architecturally
// invisible.
type snapshot struct {
	PC        uint64
	CurrentPC uint64
	R         [64]uint64
	F         [64]uint64

	Cycles       uint64
	CycleOffset  uint64
	CyclesPerIns int64
	ClockEnable  uint8
	NextTimerInt uint64

	PalBase uint64
	ExcAddr uint64
	FaultVA uint64
	ExcSum  uint64
	MMStat  uint64
	ICtl    uint64
	DCCtl   uint64
	VACtl   uint64
	AltCM   int32
	ASN     uint32
	ASN0    uint32
	ASN1    uint32
	CurMode int32

	EIEN  uint8
	SLEN  uint32
	CREN  uint8
	PCEN  uint8
	SIEN  uint32
	ASTEN uint8
	SIR   uint32
	ASTER uint8
	ASTRR uint8

	PALShadowEnable uint8
	ICtlSPE         uint8
	MCtlSPE         uint8
	FPEN            uint8
	PPCEN           uint8

	FPCRBits uint64
	IPL      int32

	IRQTimers    [numIRQLines]int64
	ExternalIRQ  uint32
	WaitForStart uint8
}

func b8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// SaveState writes the processor snapshot framed by the CPU magics.
func (c *Context) SaveState(w io.Writer) error {
	s := snapshot{
		PC:           c.PC,
		CurrentPC:    c.currentPC,
		R:            c.R,
		F:            c.F,
		Cycles:       c.Cycles,
		CycleOffset:  c.CycleOffset,
		CyclesPerIns: int64(c.CyclesPerIns),
		ClockEnable:  b8(c.ClockEnable),
		NextTimerInt: c.NextTimerInt,

		PalBase: c.IPR.PalBase,
		ExcAddr: c.IPR.ExcAddr,
		FaultVA: c.IPR.FaultVA,
		ExcSum:  c.IPR.ExcSum,
		MMStat:  c.IPR.MMStat,
		ICtl:    c.IPR.ICtl,
		DCCtl:   c.IPR.DCCtl,
		VACtl:   c.IPR.VACtl,
		AltCM:   int32(c.IPR.AltCM),
		ASN:     c.IPR.ASN,
		ASN0:    c.IPR.ASN0,
		ASN1:    c.IPR.ASN1,
		CurMode: int32(c.IPR.CurMode),

		EIEN:  c.IPR.EIEN,
		SLEN:  c.IPR.SLEN,
		CREN:  c.IPR.CREN,
		PCEN:  c.IPR.PCEN,
		SIEN:  c.IPR.SIEN,
		ASTEN: c.IPR.ASTEN,
		SIR:   c.IPR.SIR,
		ASTER: c.IPR.ASTER,
		ASTRR: c.IPR.ASTRR,

		PALShadowEnable: b8(c.IPR.PALShadowEnable),
		ICtlSPE:         c.IPR.ICtlSPE,
		MCtlSPE:         c.IPR.MCtlSPE,
		FPEN:            b8(c.IPR.FPEN),
		PPCEN:           b8(c.IPR.PPCEN),

		FPCRBits: fpcrBits(&c.IPR.FPCR),
		IPL:      int32(c.IPL),

		ExternalIRQ:  c.externalIRQ.Load(),
		WaitForStart: b8(c.WaitForStart),
	}
	for i, t := range c.IRQTimers {
		s.IRQTimers[i] = int64(t)
	}
	return state.WriteSection(w, state.CPUMagic1, state.CPUMagic2, &s)
}

// RestoreState reads back a snapshot, refusing mismatched magics or
// size. The TB and icache restart cold.
func (c *Context) RestoreState(r io.Reader) error {
	var s snapshot
	if err := state.ReadSection(r, state.CPUMagic1, state.CPUMagic2, &s); err != nil {
		return err
	}
	c.PC = s.PC
	c.currentPC = s.CurrentPC
	c.R = s.R
	c.F = s.F
	c.Cycles = s.Cycles
	c.CycleOffset = s.CycleOffset
	c.CyclesPerIns = int(s.CyclesPerIns)
	c.ClockEnable = s.ClockEnable != 0
	c.NextTimerInt = s.NextTimerInt

	c.IPR.PalBase = s.PalBase
	c.IPR.ExcAddr = s.ExcAddr
	c.IPR.FaultVA = s.FaultVA
	c.IPR.ExcSum = s.ExcSum
	c.IPR.MMStat = s.MMStat
	c.IPR.ICtl = s.ICtl
	c.IPR.DCCtl = s.DCCtl
	c.IPR.VACtl = s.VACtl
	c.IPR.AltCM = Mode(s.AltCM)
	c.IPR.ASN = s.ASN
	c.IPR.ASN0 = s.ASN0
	c.IPR.ASN1 = s.ASN1
	c.IPR.CurMode = Mode(s.CurMode)

	c.IPR.EIEN = s.EIEN
	c.IPR.SLEN = s.SLEN
	c.IPR.CREN = s.CREN
	c.IPR.PCEN = s.PCEN
	c.IPR.SIEN = s.SIEN
	c.IPR.ASTEN = s.ASTEN
	c.IPR.SIR = s.SIR
	c.IPR.ASTER = s.ASTER
	c.IPR.ASTRR = s.ASTRR

	c.IPR.PALShadowEnable = s.PALShadowEnable != 0
	c.IPR.ICtlSPE = s.ICtlSPE
	c.IPR.MCtlSPE = s.MCtlSPE
	c.IPR.FPEN = s.FPEN != 0
	c.IPR.PPCEN = s.PPCEN != 0

	setFPCRBits(&c.IPR.FPCR, s.FPCRBits)
	c.IPL = int(s.IPL)

	for i := range c.IRQTimers {
		c.IRQTimers[i] = int(s.IRQTimers[i])
	}
	c.externalIRQ.Store(s.ExternalIRQ)
	c.WaitForStart = s.WaitForStart != 0
	c.MustCheckIRQ = true

	c.ITB.InvalidateAll()
	c.DTB.InvalidateAll()
	c.IC.FlushAll()
	return nil
}
