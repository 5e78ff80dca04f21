/*
 * axpbox-sub000 - CPU worker goroutine.
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
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Worker owns a Context and runs it continuously in its own goroutine.
// Secondary processors idle on the wait-for-start flag until processor 0
// releases them.
type Worker struct {
	Ctx *Context
	Log *slog.Logger

	stop     atomic.Bool
	released chan struct{}
	done     chan struct{}
	dead     atomic.Bool
	err      error
}

// NewWorker wraps ctx; the context's wait-for-start flag decides whether
// Run idles until Release.
func NewWorker(ctx *Context, log *slog.Logger) *Worker {
	return &Worker{
		Ctx:      ctx,
		Log:      log,
		released: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Release lets a waiting secondary processor start executing.
func (w *Worker) Release() {
	select {
	case <-w.released:
	default:
		close(w.released)
	}
}

// Stop asks the worker to exit and waits for it.
func (w *Worker) Stop() {
	w.stop.Store(true)
	<-w.done
}

// Dead reports whether the worker terminated on a fatal error, for the
// driver's periodic health check.
func (w *Worker) Dead() (bool, error) {
	return w.dead.Load(), w.err
}

// Calibration interval, in instructions.
const calibrateEvery = 1_000_000

// Run is the worker body: release gate, then the per-tick loop with
// periodic wall-clock calibration of the cycles-per-instruction knob.
func (w *Worker) Run() {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.Log.Error("cpu: worker died", "cpu", w.Ctx.ID, "panic", r)
			if e, ok := r.(error); ok {
				w.err = e
			} else {
				w.err = fmt.Errorf("cpu %d: %v", w.Ctx.ID, r)
			}
			w.dead.Store(true)
		}
	}()

	if w.Ctx.WaitForStart {
		for {
			select {
			case <-w.released:
			default:
				if w.stop.Load() {
					return
				}
				time.Sleep(time.Millisecond)
				continue
			}
			break
		}
	}
	w.Log.Info("cpu: starting", "cpu", w.Ctx.ID)

	lastWall := time.Now()
	lastIns := w.Ctx.instructions
	for !w.stop.Load() {
		for i := 0; i < calibrateEvery; i++ {
			w.Ctx.Step()
		}
		w.calibrate(&lastWall, &lastIns)
	}
}

// calibrate nudges cycles-per-instruction toward the configured target
// frequency, clamped to [0, 200].
func (w *Worker) calibrate(lastWall *time.Time, lastIns *uint64) {
	now := time.Now()
	elapsed := now.Sub(*lastWall).Seconds()
	executed := w.Ctx.instructions - *lastIns
	*lastWall = now
	*lastIns = w.Ctx.instructions
	if elapsed <= 0 || executed == 0 {
		return
	}

	ips := float64(executed) / elapsed
	cpi := float64(w.Ctx.CPUHz) / ips
	knob := int(cpi)
	if knob < 0 {
		knob = 0
	}
	if knob > 200 {
		knob = 200
	}
	w.Ctx.CyclesPerIns = knob
}
