/*
 * axpbox-sub000 - SCSI bus.
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

// Package scsi implements the SCSI bus phase machine and the disk target
// engine that services ATAPI packet commands. The bus carries a single
// initiator-target pair at a time; phase transitions are driven by the
// target.
package scsi

import (
	"github.com/lenticularis39/axpbox-sub000/internal/device"
)

// Phase is the current SCSI bus phase.
type Phase int

const (
	PhaseFree        Phase = -2
	PhaseArbitration Phase = -1
	PhaseDataOut     Phase = 0
	PhaseDataIn      Phase = 1
	PhaseCommand     Phase = 2
	PhaseStatus      Phase = 3
	PhaseMsgOut      Phase = 6
	PhaseMsgIn       Phase = 7
)

func (p Phase) String() string {
	switch p {
	case PhaseFree:
		return "FREE"
	case PhaseArbitration:
		return "ARBITRATION"
	case PhaseDataOut:
		return "DATA OUT"
	case PhaseDataIn:
		return "DATA IN"
	case PhaseCommand:
		return "COMMAND"
	case PhaseStatus:
		return "STATUS"
	case PhaseMsgOut:
		return "MESSAGE OUT"
	case PhaseMsgIn:
		return "MESSAGE IN"
	default:
		return "?"
	}
}

// Target is a device that can be selected on the bus. The initiator drives
// each transfer the same way: check the phase, ask ExpectedXfer, obtain the
// buffer window with XferPtr, move the bytes, then call XferDone so the
// target processes them and picks the next phase.
type Target interface {
	SelectMe(bus *Bus) error
	ExpectedXfer() int
	XferPtr(bytes int) ([]byte, error)
	XferDone() error
}

const maxTargets = 16

// Bus connects up to 16 targets with one initiator-target pair active at a
// time.
type Bus struct {
	targets [maxTargets]Target

	initiator int
	target    int
	phase     Phase
}

// NewBus starts with the bus free.
func NewBus() *Bus {
	return &Bus{initiator: -1, target: -1, phase: PhaseFree}
}

// Register attaches a target at the given SCSI id.
func (b *Bus) Register(id int, t Target) {
	b.targets[id] = t
}

// Arbitrate claims the bus for initiator; fails if the bus is not free.
func (b *Bus) Arbitrate(initiator int) bool {
	if b.phase != PhaseFree {
		return false
	}
	b.initiator = initiator
	b.phase = PhaseArbitration
	return true
}

// Select moves from arbitration to the target-chosen start phase. The
// target decides the phase inside SelectMe.
func (b *Bus) Select(initiator, target int) bool {
	if b.phase != PhaseArbitration || b.initiator != initiator {
		return false
	}
	t := b.targets[target]
	if t == nil {
		return false
	}
	b.target = target
	if err := t.SelectMe(b); err != nil {
		b.Free(initiator)
		return false
	}
	return true
}

// SetPhase is called by the selected target to drive a transition.
func (b *Bus) SetPhase(p Phase) {
	b.phase = p
}

// Phase reports the current bus phase.
func (b *Bus) Phase() Phase {
	return b.phase
}

// Free releases the bus.
func (b *Bus) Free(initiator int) {
	if b.initiator == initiator || initiator < 0 {
		b.initiator = -1
		b.target = -1
		b.phase = PhaseFree
	}
}

func (b *Bus) selected() (Target, error) {
	if b.target < 0 || b.targets[b.target] == nil {
		return nil, device.Fatal("scsi", device.IllegalState, "no target selected")
	}
	return b.targets[b.target], nil
}

// ExpectedXfer asks the selected target how many bytes it expects or has
// available in the current phase.
func (b *Bus) ExpectedXfer() (int, error) {
	t, err := b.selected()
	if err != nil {
		return 0, err
	}
	return t.ExpectedXfer(), nil
}

// XferPtr obtains the selected target's buffer window for the current
// phase.
func (b *Bus) XferPtr(bytes int) ([]byte, error) {
	t, err := b.selected()
	if err != nil {
		return nil, err
	}
	return t.XferPtr(bytes)
}

// XferDone tells the selected target the transfer completed.
func (b *Bus) XferDone() error {
	t, err := b.selected()
	if err != nil {
		return err
	}
	return t.XferDone()
}
