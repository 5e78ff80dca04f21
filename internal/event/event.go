/*
 * axpbox-sub000 - Delta-queue event scheduler.
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

// Package event implements a delta (relative-time) queue. Each queue is owned by a single goroutine (a CPU worker or a channel
// worker) and is not safe for concurrent use from more than one goroutine —
// workers never share a queue.
package event

// Callback fires when an event's relative time reaches zero.
type Callback func(arg int)

type entry struct {
	time int
	cb   Callback
	tag  int
	arg  int
	prev *entry
	next *entry
}

// Queue is a singly-owned delta queue of pending callbacks.
type Queue struct {
	head *entry
	tail *entry
}

// Add schedules cb to fire after the given number of relative ticks. A
// ticks of 0 runs cb immediately, synchronously.
func (q *Queue) Add(ticks int, tag int, arg int, cb Callback) {
	if ticks <= 0 {
		cb(arg)
		return
	}

	ev := &entry{time: ticks, cb: cb, tag: tag, arg: arg}

	cur := q.head
	if cur == nil {
		q.head = ev
		q.tail = ev
		return
	}

	for cur != nil {
		if ev.time <= cur.time {
			cur.time -= ev.time
			ev.prev = cur.prev
			ev.next = cur
			cur.prev = ev
			if ev.prev != nil {
				ev.prev.next = ev
			} else {
				q.head = ev
			}
			return
		}
		ev.time -= cur.time
		cur = cur.next
	}

	ev.prev = q.tail
	q.tail.next = ev
	q.tail = ev
}

// Cancel removes the first pending event matching tag/arg, if any.
func (q *Queue) Cancel(tag int, arg int) {
	cur := q.head
	for cur != nil {
		if cur.tag == tag && cur.arg == arg {
			if cur.next != nil {
				cur.next.time += cur.time
				cur.next.prev = cur.prev
			} else {
				q.tail = cur.prev
			}
			if cur.prev != nil {
				cur.prev.next = cur.next
			} else {
				q.head = cur.next
			}
			return
		}
		cur = cur.next
	}
}

// Pending reports whether any event is queued.
func (q *Queue) Pending() bool {
	return q.head != nil
}

// Advance moves the queue forward by ticks, firing every event whose
// relative time reaches zero or below, in order.
func (q *Queue) Advance(ticks int) {
	cur := q.head
	if cur == nil {
		return
	}
	cur.time -= ticks
	for cur != nil && cur.time <= 0 {
		cur.cb(cur.arg)
		q.head = cur.next
		if q.head != nil {
			q.head.prev = nil
		} else {
			q.tail = nil
		}
		cur = q.head
	}
}
