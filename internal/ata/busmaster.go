/*
 * axpbox-sub000 - Busmaster PRD DMA engine.
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

package ata

import (
	"github.com/lenticularis39/axpbox-sub000/internal/device"
)

// Busmaster completion codes: 0 = buffer matched chain, 1 = chain
// exhausted with buffer left, 2 = buffer exhausted with chain left.
const (
	dmaComplete    = 0
	dmaChainShort  = 1
	dmaBufferShort = 2

	maxPRDEntries = 32
)

// dmaTransfer hands buffer to the busmaster worker and waits for the
// guest to start the engine. direction toDisk means guest memory feeds
// the buffer (an ATA write); otherwise the buffer lands in guest memory.
func (c *Controller) dmaTransfer(ch *channel, buffer []byte, toDisk bool) (int, error) {
	req := dmaRequest{buffer: buffer, toDisk: toDisk, completed: make(chan int, 1)}
	select {
	case ch.dmaReq <- req:
	case <-c.stop:
		return 0, nil
	}
	select {
	case code := <-req.completed:
		if code < 0 {
			return 0, device.Fatal("ata", device.InvalidArgument,
				"PRD chain exceeds %d entries", maxPRDEntries)
		}
		return code, nil
	case <-c.stop:
		return 0, nil
	}
}

// prdPointer reads the PRD table base under the busmaster lock.
func (c *Controller) prdPointer(ch *channel) uint64 {
	ch.bmMu.RLock()
	defer ch.bmMu.RUnlock()
	return uint64(ch.busmaster[4]) | uint64(ch.busmaster[5])<<8 |
		uint64(ch.busmaster[6])<<16 | uint64(ch.busmaster[7])<<24
}

// walkPRD performs the chain walk once the start bit woke the worker.
// Returns a completion code, or -1 on a runaway chain.
func (c *Controller) walkPRD(ch *channel, req dmaRequest) (int, error) {
	prd := c.prdPointer(ch)
	buffer := req.buffer
	xfersize := 0
	status := dmaComplete
	count := 0

	for {
		base, err := c.mem.Read(prd, 32)
		if err != nil {
			return 0, err
		}
		length, err := c.mem.Read(prd+4, 16)
		if err != nil {
			return 0, err
		}
		flag, err := c.mem.Read(prd+7, 8)
		if err != nil {
			return 0, err
		}
		size := int(length)
		if size == 0 {
			size = 65536
		}
		eol := flag&0x80 != 0

		if xfersize+size > len(req.buffer) {
			// Only move as much as the disk side holds.
			size = len(req.buffer) - xfersize
			status = dmaBufferShort
		}

		if req.toDisk {
			if err := c.copyFromGuest(base, buffer[:size]); err != nil {
				return 0, err
			}
		} else {
			if err := c.copyToGuest(base, buffer[:size]); err != nil {
				return 0, err
			}
		}
		buffer = buffer[size:]
		xfersize += size
		prd += 8

		if eol && xfersize < len(req.buffer) {
			status = dmaChainShort
		}
		if count++; count > maxPRDEntries {
			return -1, nil
		}
		if xfersize == len(req.buffer) && !eol {
			status = dmaBufferShort
		}
		if eol || status != dmaComplete {
			break
		}
	}

	switch status {
	case dmaComplete:
		ch.bmMu.Lock()
		ch.busmaster[2] &^= 0x01
		ch.bmMu.Unlock()
		c.raiseInterrupt(ch)
	case dmaChainShort:
		ch.bmMu.Lock()
		ch.busmaster[2] &^= 0x01
		ch.bmMu.Unlock()
		// no interrupt
	case dmaBufferShort:
		// active bit stays set
		c.raiseInterrupt(ch)
	}
	return status, nil
}

func (c *Controller) copyToGuest(base uint64, src []byte) error {
	if dst := c.mem.Pointer(base, len(src)); dst != nil {
		copy(dst, src)
		return nil
	}
	for i, b := range src {
		if err := c.mem.Write(base+uint64(i), 8, uint64(b)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) copyFromGuest(base uint64, dst []byte) error {
	if src := c.mem.Pointer(base, len(dst)); src != nil {
		copy(dst, src)
		return nil
	}
	for i := range dst {
		v, err := c.mem.Read(base+uint64(i), 8)
		if err != nil {
			return err
		}
		dst[i] = byte(v)
	}
	return nil
}
