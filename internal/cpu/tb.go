/*
 * axpbox-sub000 - Translation buffer (ITB/DTB).
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

const tbEntries = 128

// Granularity hints map to (match_mask, keep_mask) pairs: 0 is a
// plain 8 KiB page, 1/2/3 are 64 KiB/512 KiB/4 MiB superpages.
var granularityMasks = [4]struct {
	match uint64
	keep  uint64
}{
	{match: ^uint64(0x1fff), keep: 0x1fff},
	{match: ^uint64(0xffff), keep: 0xffff},
	{match: ^uint64(0x7ffff), keep: 0x7ffff},
	{match: ^uint64(0x3fffff), keep: 0x3fffff},
}

// Access is the per-mode permission/fault matrix index, [read|write|exec] x
// [kernel|exec|super|user].
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessExec
)

// TBEntry is one translation.
type TBEntry struct {
	Valid   bool
	Virt    uint64
	Phys    uint64
	Match   uint64
	Keep    uint64
	ASN     uint32
	ASM     bool
	Perm    [3][4]bool // [AccessRead/Write/Exec][Mode]
	FaultOn [3][4]bool
}

// Flags passed to Insert, derived from a PALcode PTE.
type InsertFlags struct {
	Phys        uint64
	Granularity int
	ASM         bool
	Perm        [3][4]bool
	FaultOn     [3][4]bool
}

type tb struct {
	entries [tbEntries]TBEntry
	next    int      // round-robin insert cursor
	memo    [2]int   // last-found index per access kind (read vs write/exec)
}

// ITB is the instruction translation buffer.
type ITB struct{ tb }

// DTB is the data translation buffer.
type DTB struct{ tb }

func (t *tb) init() {
	t.next = 0
	t.memo[0], t.memo[1] = -1, -1
}

// TBMiss is returned by Lookup when no entry covers virt for the given
// ASN/ASM combination.
type TBMiss struct{}

func (TBMiss) Error() string { return "translation buffer miss" }

// LookupResult is the successful outcome of a TB lookup. Perm and FaultOn
// are the per-mode vectors for the access kind the caller asked about.
type LookupResult struct {
	Phys    uint64
	ASM     bool
	Perm    [4]bool
	FaultOn [4]bool
}

// Lookup is a linear scan starting from the memo
// slot for acc, honoring the ASM override.
func (t *tb) Lookup(virt uint64, asn uint32, acc Access) (LookupResult, error) {
	memoIdx := 0
	if acc != AccessRead {
		memoIdx = 1
	}
	if m := t.memo[memoIdx]; m >= 0 && t.matches(&t.entries[m], virt, asn) {
		return t.result(&t.entries[m], virt, acc), nil
	}
	for i := range t.entries {
		e := &t.entries[i]
		if t.matches(e, virt, asn) {
			t.memo[memoIdx] = i
			return t.result(e, virt, acc), nil
		}
	}
	return LookupResult{}, TBMiss{}
}

func (t *tb) matches(e *TBEntry, virt uint64, asn uint32) bool {
	return e.Valid && (virt&e.Match) == e.Virt && (e.ASM || e.ASN == asn)
}

func (t *tb) result(e *TBEntry, virt uint64, acc Access) LookupResult {
	return LookupResult{
		Phys:    (e.Phys &^ e.Keep) | (virt & e.Keep),
		ASM:     e.ASM,
		Perm:    e.Perm[acc],
		FaultOn: e.FaultOn[acc],
	}
}

// Insert is the PALcode TB-insert primitive: reuse a matching entry in
// place, else allocate round-robin.
func (t *tb) Insert(virt uint64, asn uint32, f InsertFlags) {
	gm := granularityMasks[f.Granularity]
	virtBase := virt & gm.match

	for i := range t.entries {
		e := &t.entries[i]
		if e.Valid && e.Virt == virtBase && e.ASN == asn {
			t.fill(e, virtBase, asn, gm, f)
			return
		}
	}

	e := &t.entries[t.next]
	t.next = (t.next + 1) % tbEntries
	t.fill(e, virtBase, asn, gm, f)
	t.memo[0], t.memo[1] = -1, -1
}

func (t *tb) fill(e *TBEntry, virtBase uint64, asn uint32, gm struct{ match, keep uint64 }, f InsertFlags) {
	e.Valid = true
	e.Virt = virtBase
	e.Phys = f.Phys &^ gm.keep
	e.Match = gm.match
	e.Keep = gm.keep
	e.ASN = asn
	e.ASM = f.ASM
	e.Perm = f.Perm
	e.FaultOn = f.FaultOn
}

// InvalidateSingle clears the entry covering virt, if any.
func (t *tb) InvalidateSingle(virt uint64, asn uint32) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.Valid && t.matches(e, virt, asn) {
			e.Valid = false
		}
	}
	t.memo[0], t.memo[1] = -1, -1
}

// InvalidateAll clears every entry (TBIA).
func (t *tb) InvalidateAll() {
	for i := range t.entries {
		t.entries[i].Valid = false
	}
	t.memo[0], t.memo[1] = -1, -1
}

// InvalidateProcess clears entries whose ASM bit is clear (TBIAP).
func (t *tb) InvalidateProcess() {
	for i := range t.entries {
		if !t.entries[i].ASM {
			t.entries[i].Valid = false
		}
	}
	t.memo[0], t.memo[1] = -1, -1
}

// FindEntry returns the matching entry pointer for callers (the icache
// and the fault path) that need the full entry rather than LookupResult's
// single-access-kind view.
func (t *tb) FindEntry(virt uint64, asn uint32) (*TBEntry, bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if t.matches(e, virt, asn) {
			return e, true
		}
	}
	return nil, false
}
