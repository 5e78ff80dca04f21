/*
 * axpbox-sub000 - Cross-goroutine control packets.
 *
 * Copyright 2024, Richard Cornwell
 * Copyright 2026, the axpbox-sub000 authors
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

// Package master defines the small set of packets exchanged between the
// emulator's worker goroutines (CPU, channel sequencer, busmaster, driver)
// and the driver that owns process-wide lifecycle concerns: startup,
// shutdown, periodic health checks, and wall-clock timer ticks. Per-device
// register access never goes through this channel — it's a direct call from
// the CPU worker's own goroutine.
package master

type Msg int

const (
	// Start releases a waiting secondary CPU ("wait-for-start" flag).
	Start Msg = iota
	// Stop asks a CPU worker to idle without exiting.
	Stop
	// Shutdown is the cooperative stop signal joined by the driver.
	Shutdown
	// ClockTick is the wall-clock driver's periodic nudge.
	ClockTick
	// WorkerDied reports a worker's fatal error up to the driver.
	WorkerDied
)

// Packet is the payload carried on the driver's control channel.
type Packet struct {
	Msg       Msg
	CPU       int   // target/origin CPU index, where applicable
	Err       error // set for WorkerDied
	Component string
}
