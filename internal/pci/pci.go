/*
 * axpbox-sub000 - PCI configuration space and legacy I/O dispatch.
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

// Package pci models the guest-visible PCI surface of the south bridge:
// per-function 256-byte configuration windows with writable-bit masks, and
// the legacy I/O port dispatcher that routes byte/word/long accesses to a
// device's register handlers.
package pci

import (
	"sort"
	"sync"

	"github.com/lenticularis39/axpbox-sub000/internal/device"
)

const configWords = 64

// Function is one 256-byte configuration window, addressed by
// (bus, device, function). Writes are filtered by the writable-bit mask
// before being committed.
type Function struct {
	Bus  int
	Dev  int
	Func int

	data [configWords]uint32
	mask [configWords]uint32
}

// NewFunction seeds a configuration window with its power-on contents and
// writable-bit masks.
func NewFunction(bus, dev, fn int, data, mask [configWords]uint32) *Function {
	return &Function{Bus: bus, Dev: dev, Func: fn, data: data, mask: mask}
}

// ConfigRead returns widthBits of configuration space at byte offset.
func (f *Function) ConfigRead(offset uint32, widthBits int) uint32 {
	word := f.data[(offset/4)%configWords]
	shift := (offset & 3) * 8
	switch widthBits {
	case 8:
		return (word >> shift) & 0xff
	case 16:
		return (word >> shift) & 0xffff
	default:
		return word
	}
}

// ConfigWrite commits the writable bits of value at byte offset.
func (f *Function) ConfigWrite(offset uint32, widthBits int, value uint32) {
	idx := (offset / 4) % configWords
	shift := (offset & 3) * 8
	var fieldMask uint32
	switch widthBits {
	case 8:
		fieldMask = 0xff << shift
	case 16:
		fieldMask = 0xffff << shift
	default:
		fieldMask = 0xffffffff
	}
	writable := f.mask[idx] & fieldMask
	f.data[idx] = (f.data[idx] &^ writable) | ((value << shift) & writable)
}

// Word reads a raw 32-bit config word; used by devices tracking their own
// BAR assignments.
func (f *Function) Word(idx int) uint32 {
	return f.data[idx]
}

// SetWord stores a raw 32-bit config word without mask filtering. Device
// reset paths use it to reassert power-on contents.
func (f *Function) SetWord(idx int, v uint32) {
	f.data[idx] = v
}

// Raw exposes the config arrays for save/restore.
func (f *Function) Raw() (data, mask [configWords]uint32) {
	return f.data, f.mask
}

// SetRaw replaces the config arrays from a restored state.
func (f *Function) SetRaw(data, mask [configWords]uint32) {
	f.data = data
	f.mask = mask
}

// IOHandler services legacy port accesses for one registered region.
// offset is relative to the region base.
type IOHandler interface {
	ReadIO(offset uint32, widthBits int) (uint32, error)
	WriteIO(offset uint32, widthBits int, value uint32) error
}

type ioRange struct {
	base    uint32
	length  uint32
	handler IOHandler
}

// IOMap routes legacy I/O port accesses to registered handlers. Lookup is
// under a read lock so the CPU worker and the driver can dispatch
// concurrently; handlers do their own serialization.
type IOMap struct {
	mu     sync.RWMutex
	ranges []ioRange
}

// RegisterIO maps [base, base+length) to handler. Overlap is a
// configuration error.
func (m *IOMap) RegisterIO(base, length uint32, handler IOHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.ranges {
		if base < r.base+r.length && r.base < base+length {
			return device.Fatal("pci", device.Configuration,
				"I/O range %#x..%#x overlaps %#x..%#x",
				base, base+length-1, r.base, r.base+r.length-1)
		}
	}
	m.ranges = append(m.ranges, ioRange{base: base, length: length, handler: handler})
	sort.Slice(m.ranges, func(i, j int) bool { return m.ranges[i].base < m.ranges[j].base })
	return nil
}

func (m *IOMap) find(port uint32) (ioRange, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.ranges {
		if port >= r.base && port < r.base+r.length {
			return r, true
		}
	}
	return ioRange{}, false
}

// ReadIO dispatches a legacy port read. Unclaimed ports read as all-ones,
// matching an empty ISA bus.
func (m *IOMap) ReadIO(port uint32, widthBits int) (uint32, error) {
	r, ok := m.find(port)
	if !ok {
		return 0xffffffff >> (32 - widthBits), nil
	}
	return r.handler.ReadIO(port-r.base, widthBits)
}

// WriteIO dispatches a legacy port write. Writes to unclaimed ports are
// dropped.
func (m *IOMap) WriteIO(port uint32, widthBits int, value uint32) error {
	r, ok := m.find(port)
	if !ok {
		return nil
	}
	return r.handler.WriteIO(port-r.base, widthBits, value)
}
