// Package sched implements a cycle-stamped event queue. Peripherals use it to
// react at exact future CPU cycles instead of polling on every instruction.
package sched

import (
	"slices"

	"debug80/emu/log"
)

// EventID identifies a scheduled event. The zero value is never returned.
type EventID uint64

type event struct {
	id       EventID
	due      uint64
	interval uint64 // 0 for one-shot events
	seq      uint64 // insertion order, breaks ties on due
	fn       func()
}

// Clock is the virtual cycle counter of an emulated machine along with the
// queue of events waiting for it. A Clock is not safe for concurrent use.
type Clock struct {
	now    uint64
	nextID EventID
	seq    uint64

	queue []*event // sorted by (due, seq)

	firing    *event
	cancelled bool // firing event was cancelled from its own callback
}

// Now returns the current cycle.
func (c *Clock) Now() uint64 { return c.now }

// Pending returns the number of queued events.
func (c *Clock) Pending() int { return len(c.queue) }

// ScheduleAt schedules fn to run when the clock reaches cycle. A cycle in the
// past is clamped to the current cycle and fires on the next Advance.
func (c *Clock) ScheduleAt(cycle uint64, fn func()) EventID {
	return c.insert(&event{due: max(cycle, c.now), fn: fn})
}

// ScheduleIn schedules fn to run delta cycles from now.
func (c *Clock) ScheduleIn(delta uint64, fn func()) EventID {
	return c.insert(&event{due: c.now + delta, fn: fn})
}

// ScheduleEvery schedules fn to run every interval cycles, starting interval
// cycles from now. An interval of 0 is treated as 1.
func (c *Clock) ScheduleEvery(interval uint64, fn func()) EventID {
	interval = max(interval, 1)
	return c.insert(&event{due: c.now + interval, interval: interval, fn: fn})
}

func (c *Clock) insert(ev *event) EventID {
	if ev.id == 0 {
		c.nextID++
		ev.id = c.nextID
	}
	c.seq++
	ev.seq = c.seq

	i, _ := slices.BinarySearchFunc(c.queue, ev, func(a, b *event) int {
		switch {
		case a.due < b.due:
			return -1
		case a.due > b.due:
			return 1
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	c.queue = slices.Insert(c.queue, i, ev)
	return ev.id
}

// Cancel removes the event with the given id. It reports whether an event was
// found. A repeating event may cancel itself from its own callback.
func (c *Clock) Cancel(id EventID) bool {
	if c.firing != nil && c.firing.id == id {
		c.cancelled = true
		return true
	}
	for i, ev := range c.queue {
		if ev.id == id {
			c.queue = slices.Delete(c.queue, i, i+1)
			return true
		}
	}
	return false
}

// Advance moves the clock forward by cycles, firing every event due on the
// way in order. While a callback runs, Now returns the due cycle of its
// event. Events scheduled by callbacks that fall within the advanced window
// fire during the same call.
func (c *Clock) Advance(cycles uint64) {
	target := c.now + cycles

	for len(c.queue) > 0 && c.queue[0].due <= target {
		ev := c.queue[0]
		c.queue = slices.Delete(c.queue, 0, 1)

		c.now = ev.due
		c.firing, c.cancelled = ev, false
		ev.fn()
		c.firing = nil

		if ev.interval != 0 && !c.cancelled {
			ev.due += ev.interval
			c.insert(ev)
		}
	}
	c.now = target
}

// Clear drops every pending event, including a repeating event currently
// firing. The current cycle is kept.
func (c *Clock) Clear() {
	if n := len(c.queue); n > 0 {
		log.ModSched.DebugZ("clearing events").Int("count", n).End()
	}
	clear(c.queue)
	c.queue = c.queue[:0]
	if c.firing != nil {
		c.cancelled = true
	}
}
