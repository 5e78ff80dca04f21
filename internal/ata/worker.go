/*
 * axpbox-sub000 - Channel worker goroutines.
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

// StartWorkers launches both channels' sequencer and busmaster
// goroutines.
func (c *Controller) StartWorkers() {
	for i := range c.channels {
		ch := &c.channels[i]
		c.wg.Add(2)
		go c.runSequencer(ch)
		go c.runBusmaster(ch)
	}
}

// StopWorkers performs the cooperative shutdown: flip the stop flag,
// wake every worker, join.
func (c *Controller) StopWorkers() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// CheckState is the driver's periodic health probe: a dead worker is
// an emulator-fatal condition.
func (c *Controller) CheckState() error {
	for i := range c.channels {
		if c.dead[i].Load() {
			return device.Fatal("ata", device.Thread,
				"IDE %d worker has died", i)
		}
	}
	return nil
}

// runSequencer is the channel command worker: wait for the start token,
// run one sequencer step, publish the alt-status snapshot, re-arm the
// ready barrier.
func (c *Controller) runSequencer(ch *channel) {
	defer c.wg.Done()
	for {
		select {
		case <-ch.kick:
		case <-c.stop:
			return
		}
		if c.selDrive(ch).cmd.inProgress {
			if err := c.execute(ch); err != nil {
				c.log.Error("ata: sequencer worker died",
					"channel", ch.index, "err", err)
				c.dead[ch.index].Store(true)
				return
			}
		}
		c.updateAltStatus(ch)
		select {
		case ch.ready <- struct{}{}:
		case <-c.stop:
			return
		}
	}
}

// runBusmaster is the channel DMA worker: wait for the guest's start-bit
// write, pick up the sequencer's staged transfer, walk the PRD chain.
func (c *Controller) runBusmaster(ch *channel) {
	defer c.wg.Done()
	for {
		select {
		case <-ch.bmKick:
		case <-c.stop:
			return
		}
		var req dmaRequest
		select {
		case req = <-ch.dmaReq:
		case <-c.stop:
			return
		}
		code, err := c.walkPRD(ch, req)
		if err != nil {
			c.log.Error("ata: busmaster worker died",
				"channel", ch.index, "err", err)
			c.dead[ch.index].Store(true)
			req.completed <- -1
			return
		}
		req.completed <- code
		select {
		case ch.bmReady <- struct{}{}:
		case <-c.stop:
			return
		}
	}
}
