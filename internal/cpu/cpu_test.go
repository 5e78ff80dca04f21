/*
 * axpbox-sub000 - CPU interpreter tests.
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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lenticularis39/axpbox-sub000/internal/memory"
)

const (
	kre = 0x100
	kwe = 0x1000
)

// opr builds an operate-format instruction with register operands.
func opr(opcode, rega, regb, fn, regc int) uint32 {
	return uint32(opcode)<<26 | uint32(rega)<<21 | uint32(regb)<<16 |
		uint32(fn)<<5 | uint32(regc)
}

// memf builds a memory-format instruction.
func memf(opcode, rega, regb int, disp uint16) uint32 {
	return uint32(opcode)<<26 | uint32(rega)<<21 | uint32(regb)<<16 | uint32(disp)
}

// newTestCPU maps a code page at virtual codeVA backed by the same
// physical address and returns the context ready to step.
func newTestCPU(t *testing.T, program []uint32) (*Context, *memory.RAM) {
	t.Helper()
	ram := memory.NewRAM(1 << 20)
	c := NewContext(0, ram, 500_000_000)
	c.IPR.CurMode = ModeKernel
	c.IPR.FPEN = true

	const codeVA = 0x4000
	for i, ins := range program {
		require.NoError(t, ram.Write(codeVA+uint64(4*i), 32, uint64(ins)))
	}
	c.AddTBI(codeVA, codeVA|kre)
	c.PC = codeVA
	return c, ram
}

func TestIntegerArithmetic(t *testing.T) {
	c, _ := newTestCPU(t, []uint32{
		opr(0x10, 1, 2, 0x20, 3), // ADDQ r1,r2,r3
		opr(0x10, 1, 2, 0x29, 4), // SUBQ r1,r2,r4
		opr(0x13, 1, 2, 0x20, 5), // MULQ r1,r2,r5
	})
	c.R[1] = 5
	c.R[2] = 3
	c.Step()
	require.Equal(t, uint64(8), c.R[3])
	require.Equal(t, uint64(0), c.R[31])
	c.Step()
	require.Equal(t, uint64(2), c.R[4])
	require.Equal(t, uint64(0), c.R[31])
	c.Step()
	require.Equal(t, uint64(15), c.R[5])
	require.Equal(t, uint64(0), c.R[31])
}

func TestIEEEAddT(t *testing.T) {
	// ADDT f1,f2,f3 with round-to-nearest
	c, _ := newTestCPU(t, []uint32{
		opr(0x16, 1, 2, 0x0a0, 3),
	})
	c.F[1] = 0x3FF8000000000000 // 1.5
	c.F[2] = 0x4002000000000000 // 2.25
	inexactBefore := c.IPR.FPCR.Inexact
	c.Step()
	require.Equal(t, uint64(0x400E000000000000), c.F[3]) // 3.75
	require.Equal(t, inexactBefore, c.IPR.FPCR.Inexact)
	require.Equal(t, uint64(0), c.F[31])
}

func TestICacheTBIAMiss(t *testing.T) {
	ram := memory.NewRAM(1 << 20)
	c := NewContext(0, ram, 500_000_000)
	c.IPR.CurMode = ModeKernel

	// Map virtual 0x10000 to physical 0x40000 and park an ADDQ there.
	require.NoError(t, ram.Write(0x40000, 32, uint64(opr(0x10, 1, 2, 0x20, 3))))
	c.AddTBI(0x10000, 0x40000|kre)
	c.R[1], c.R[2] = 1, 2
	c.PC = 0x10000
	c.Step()
	require.Equal(t, uint64(3), c.R[3])
	require.Equal(t, uint64(0x10004), c.PC)

	// TBIA: the next fetch from the same page must take the ITB miss.
	c.tbi(-2, 0)
	c.PC = 0x10000
	c.Step()
	require.Equal(t, c.IPR.PalBase|0x580|1, c.PC)
	require.Equal(t, uint64(0x10000), c.IPR.ExcAddr)
}

func TestTBInsertLookupProperty(t *testing.T) {
	ram := memory.NewRAM(1 << 20)
	c := NewContext(0, ram, 500_000_000)

	c.AddTBD(0x20000, (uint64(0x8000)>>13)<<32|kre|kwe)
	res, err := c.DTB.Lookup(0x20000|0x1abc, 0, AccessRead)
	require.NoError(t, err)
	require.Equal(t, uint64(0x8000|0x1abc), res.Phys)

	// Idempotence: two TBIAs leave the buffer in the same state as one.
	c.DTB.InvalidateAll()
	once := c.DTB
	c.DTB.InvalidateAll()
	require.Equal(t, once, c.DTB)
	_, err = c.DTB.Lookup(0x20000, 0, AccessRead)
	require.Error(t, err)
}

func TestSuperpageIgnoresASN(t *testing.T) {
	ram := memory.NewRAM(1 << 20)
	c := NewContext(0, ram, 500_000_000)
	c.IPR.CurMode = ModeKernel
	c.IPR.MCtlSPE = 1 // SPE[0] window

	require.NoError(t, ram.Write(0x1234, 64, 0xdeadbeefcafef00d))
	va := uint64(0x0000ffff80000000 | 0x1234)
	for _, asn := range []uint32{0, 7, 200} {
		c.IPR.ASN = asn
		v, ok := c.readVirt(dataAccess{virt: va}, 64)
		require.True(t, ok)
		require.Equal(t, uint64(0xdeadbeefcafef00d), v)
	}
}

func TestCallPALEntry(t *testing.T) {
	// CALL_PAL 0x86 (IMB, unprivileged) with a non-VMS PAL base takes
	// the branch with the low bit set.
	c, _ := newTestCPU(t, []uint32{
		uint32(0x86), // CALL_PAL IMB
	})
	c.IPR.PalBase = 0x10000 // not the VMS base, no native shim
	c.Step()
	require.Equal(t, uint64(1), c.PC&1)
	require.Equal(t, c.IPR.PalBase|1<<13|uint64(0x06)<<6|1, c.PC)
	require.Equal(t, uint64(0x4000), c.IPR.ExcAddr)
}

func TestLoadStoreRoundTrip(t *testing.T) {
	c, _ := newTestCPU(t, []uint32{
		memf(0x2d, 1, 2, 0x10), // STQ r1, 0x10(r2)
		memf(0x29, 3, 2, 0x10), // LDQ r3, 0x10(r2)
	})
	c.AddTBD(0x8000, (uint64(0x8000)>>13)<<32|kre|kwe)
	c.R[1] = 0x1122334455667788
	c.R[2] = 0x8000
	c.Step()
	c.Step()
	require.Equal(t, uint64(0x1122334455667788), c.R[3])
}

func TestUnalignedCrossPageFarMiss(t *testing.T) {
	// LDQ spanning the end of a mapped page into an unmapped one: the
	// DTB-single trap reports the far page's base.
	c, _ := newTestCPU(t, []uint32{
		memf(0x29, 3, 2, 0x1ffc), // LDQ r3, 0x1ffc(r2)
	})
	c.AddTBD(0x8000, (uint64(0x8000)>>13)<<32|kre|kwe)
	c.R[2] = 0x8000
	c.Step()
	require.Equal(t, c.IPR.PalBase|0x300|1, c.PC)
	require.Equal(t, uint64(0xa000), c.IPR.FaultVA)
}

func TestBranchAndConditional(t *testing.T) {
	c, _ := newTestCPU(t, []uint32{
		0x39<<26 | 1<<21 | 1, // BEQ r1, +1
		opr(0x10, 2, 2, 0x20, 3), // skipped when r1 == 0
		opr(0x10, 2, 2, 0x20, 4), // ADDQ r2,r2,r4
	})
	c.R[1] = 0
	c.R[2] = 21
	c.Step()
	require.Equal(t, uint64(0x4008), c.PC)
	c.Step()
	require.Equal(t, uint64(42), c.R[4])
	require.Equal(t, uint64(0), c.R[3])
}

func TestLoadLockedStoreConditional(t *testing.T) {
	c, ram := newTestCPU(t, []uint32{
		memf(0x2b, 1, 2, 0), // LDQ_L r1, (r2)
		memf(0x2f, 3, 2, 0), // STQ_C r3, (r2)
	})
	c.AddTBD(0x8000, (uint64(0x8000)>>13)<<32|kre|kwe)
	require.NoError(t, ram.Write(0x8000, 64, 7))
	c.R[2] = 0x8000
	c.R[3] = 9
	c.Step()
	require.Equal(t, uint64(7), c.R[1])
	c.Step()
	require.Equal(t, uint64(1), c.R[3]) // store succeeded
	v, err := ram.Read(0x8000, 64)
	require.NoError(t, err)
	require.Equal(t, uint64(9), v)
}

func TestStoreConditionalFailsAfterConflict(t *testing.T) {
	c, ram := newTestCPU(t, []uint32{
		memf(0x2b, 1, 2, 0), // LDQ_L r1, (r2)
		memf(0x2f, 3, 2, 0), // STQ_C r3, (r2)
	})
	c.AddTBD(0x8000, (uint64(0x8000)>>13)<<32|kre|kwe)
	c.R[2] = 0x8000
	c.R[3] = 9
	c.Step()
	// Conflicting store from another agent between the pair.
	require.NoError(t, ram.Write(0x8000, 64, 0x55))
	c.Step()
	require.Equal(t, uint64(0), c.R[3])
	v, err := ram.Read(0x8000, 64)
	require.NoError(t, err)
	require.Equal(t, uint64(0x55), v)
}

func TestInterruptDelivery(t *testing.T) {
	c, _ := newTestCPU(t, []uint32{
		opr(0x10, 1, 2, 0x20, 3),
		opr(0x10, 1, 2, 0x20, 3),
	})
	c.setIPL(0) // all external lines enabled
	c.Step()    // no interrupt pending yet

	c.AssertIRQ(1)
	c.MustCheckIRQ = true
	c.Step()
	require.Equal(t, c.IPR.PalBase|0x680|1, c.PC)
}

func TestDelayedIRQTimer(t *testing.T) {
	c, _ := newTestCPU(t, []uint32{
		opr(0x10, 1, 2, 0x20, 3),
		opr(0x10, 1, 2, 0x20, 3),
		opr(0x10, 1, 2, 0x20, 3),
		opr(0x10, 1, 2, 0x20, 3),
	})
	c.setIPL(0)
	c.AssertIRQDelayed(2, 3)
	c.Step()
	c.Step()
	require.NotEqual(t, c.IPR.PalBase|0x680|1, c.PC)
	c.Step() // timer reaches zero: the interrupt is taken this tick
	require.Equal(t, c.IPR.PalBase|0x680|1, c.PC)
}

func TestFPCRRoundTrip(t *testing.T) {
	ram := memory.NewRAM(1 << 20)
	c := NewContext(0, ram, 500_000_000)
	c.IPR.FPCR.Invalid = true
	c.IPR.FPCR.OverflowDisable = true

	bits := fpcrBits(&c.IPR.FPCR)
	require.NotZero(t, bits&(1<<52)) // INV
	require.NotZero(t, bits&(1<<51)) // OVFD
	require.NotZero(t, bits&(1<<63)) // SUM

	var out Context
	setFPCRBits(&out.IPR.FPCR, bits)
	require.True(t, out.IPR.FPCR.Invalid)
	require.True(t, out.IPR.FPCR.OverflowDisable)
}
