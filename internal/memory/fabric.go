/*
 * axpbox-sub000 - Memory fabric facade.
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

// Package memory is the physical memory fabric:
// address space, routed either to host-owned RAM or to a device's
// read/write callback. The CPU and the storage controller consume it only
// through the Fabric interface; they never reach into RAM directly.
package memory

import (
	"fmt"
	"sort"
	"sync"
)

// Region is a device's read/write callback surface, mapped into the
// physical address space at a fixed base.
type Region interface {
	ReadAt(offset uint64, widthBits int) (uint64, error)
	WriteAt(offset uint64, widthBits int, value uint64) error
}

// Fabric is the interface consumed by the CPU interpreter and the storage
// controller. width_bits is always one of 8/16/32/64; callers split
// any access that crosses a page before calling in.
type Fabric interface {
	Read(paddr uint64, widthBits int) (uint64, error)
	Write(paddr uint64, widthBits int, value uint64) error
	// Pointer returns a byte-slice window directly into host RAM covering
	// [paddr, paddr+length), or nil if the range is device-backed (the
	// caller must fall back to Read/Write).
	Pointer(paddr uint64, length int) []byte
	// Lock begins a load-locked sequence for processor id at paddr.
	Lock(cpu int, paddr uint64)
	// Unlock completes a store-conditional: reports true if no store
	// (from any processor) has touched paddr since the matching Lock.
	Unlock(cpu int, paddr uint64) bool
}

type mappedRegion struct {
	base uint64
	size uint64
	r    Region
}

// RAM is the default Fabric: a flat byte array plus a sorted list of
// device regions. It is the implementation cmd/axpbox wires up; tests may
// substitute a smaller fake satisfying Fabric.
type RAM struct {
	mu      sync.Mutex
	bytes   []byte
	regions []mappedRegion

	lockMu    sync.Mutex
	lockedCPU map[int]uint64 // cpu -> locked address
	lockGen   map[int]uint64 // cpu -> generation counter at lock time
	storeGen  map[uint64]uint64
	gen       uint64
}

// NewRAM allocates size bytes of host-owned guest RAM.
func NewRAM(size uint64) *RAM {
	return &RAM{
		bytes:     make([]byte, size),
		lockedCPU: make(map[int]uint64),
		lockGen:   make(map[int]uint64),
		storeGen:  make(map[uint64]uint64),
	}
}

// MapDevice registers r to service [base, base+size). Ranges must not
// overlap RAM or each other; panics at setup time on overlap since this is
// a configuration error, not a runtime guest fault.
func (m *RAM) MapDevice(base, size uint64, r Region) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.regions {
		if base < existing.base+existing.size && existing.base < base+size {
			panic(fmt.Sprintf("memory: device region [%#x,%#x) overlaps [%#x,%#x)",
				base, base+size, existing.base, existing.base+existing.size))
		}
	}
	m.regions = append(m.regions, mappedRegion{base: base, size: size, r: r})
	sort.Slice(m.regions, func(i, j int) bool { return m.regions[i].base < m.regions[j].base })
}

func (m *RAM) findRegion(paddr uint64) *mappedRegion {
	for i := range m.regions {
		reg := &m.regions[i]
		if paddr >= reg.base && paddr < reg.base+reg.size {
			return reg
		}
	}
	return nil
}

func (m *RAM) inRAM(paddr uint64, widthBits int) bool {
	return paddr+uint64(widthBits/8) <= uint64(len(m.bytes))
}

// Read implements Fabric.
func (m *RAM) Read(paddr uint64, widthBits int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reg := m.findRegion(paddr); reg != nil {
		return reg.r.ReadAt(paddr-reg.base, widthBits)
	}
	if !m.inRAM(paddr, widthBits) {
		return 0, fmt.Errorf("memory: read out of range at %#x", paddr)
	}
	n := widthBits / 8
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(m.bytes[int(paddr)+i]) << (8 * i)
	}
	return v, nil
}

// Write implements Fabric.
func (m *RAM) Write(paddr uint64, widthBits int, value uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reg := m.findRegion(paddr); reg != nil {
		return reg.r.WriteAt(paddr-reg.base, widthBits, value)
	}
	if !m.inRAM(paddr, widthBits) {
		return fmt.Errorf("memory: write out of range at %#x", paddr)
	}
	n := widthBits / 8
	for i := 0; i < n; i++ {
		m.bytes[int(paddr)+i] = byte(value >> (8 * i))
	}

	m.lockMu.Lock()
	for i := 0; i < n; i++ {
		m.gen++
		m.storeGen[paddr+uint64(i)] = m.gen
	}
	m.lockMu.Unlock()
	return nil
}

// Pointer implements Fabric. Device regions never hand out a raw window.
func (m *RAM) Pointer(paddr uint64, length int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findRegion(paddr) != nil {
		return nil
	}
	end := paddr + uint64(length)
	if end > uint64(len(m.bytes)) {
		return nil
	}
	return m.bytes[paddr:end]
}

// Lock records the load-locked address for cpu together with the current
// store generation.
func (m *RAM) Lock(cpu int, paddr uint64) {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	m.lockedCPU[cpu] = paddr
	m.lockGen[cpu] = m.gen
}

// Unlock implements the store-conditional half: succeeds only if no store
// made through Write has touched paddr since the matching Lock snapshotted
// the generation counter. Bytes changed through a Pointer window are not
// tracked.
func (m *RAM) Unlock(cpu int, paddr uint64) bool {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	locked, ok := m.lockedCPU[cpu]
	gen := m.lockGen[cpu]
	delete(m.lockedCPU, cpu)
	delete(m.lockGen, cpu)
	if !ok || locked != paddr {
		return false
	}
	return m.storeGen[paddr] <= gen
}

// Size reports the RAM backing size in bytes.
func (m *RAM) Size() uint64 {
	return uint64(len(m.bytes))
}
