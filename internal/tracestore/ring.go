// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tracestore

import "github.com/h3nok/AgentHive-sub001/internal/routing"

// ring is a FIFO of traces bounded by capacity. Storage grows on demand up to the
// bound and then wraps, overwriting the oldest entry.
type ring struct {
	buf      []*routing.RouterTrace
	head     int // index of the oldest entry once buf is full; 0 while growing
	capacity int
}

func newRing(capacity int) *ring {
	return &ring{capacity: capacity}
}

func (r *ring) len() int { return len(r.buf) }

// push appends t and returns the entry it displaced, if any.
func (r *ring) push(t *routing.RouterTrace) *routing.RouterTrace {
	if len(r.buf) < r.capacity {
		r.buf = append(r.buf, t)
		return nil
	}
	evicted := r.buf[r.head]
	r.buf[r.head] = t
	r.head = (r.head + 1) % len(r.buf)
	return evicted
}

// items returns the entries oldest first in a fresh slice.
func (r *ring) items() []*routing.RouterTrace {
	out := make([]*routing.RouterTrace, 0, len(r.buf))
	out = append(out, r.buf[r.head:]...)
	return append(out, r.buf[:r.head]...)
}

// each visits entries oldest first until fn returns false.
func (r *ring) each(fn func(*routing.RouterTrace) bool) {
	n := len(r.buf)
	for i := 0; i < n; i++ {
		if !fn(r.buf[(r.head+i)%n]) {
			return
		}
	}
}

// resize changes the bound, evicting from the front when shrinking. Evicted entries are
// returned oldest first.
func (r *ring) resize(capacity int) []*routing.RouterTrace {
	items := r.items()
	var evicted []*routing.RouterTrace
	if len(items) > capacity {
		evicted = items[:len(items)-capacity]
		items = items[len(items)-capacity:]
	}
	r.buf = append(make([]*routing.RouterTrace, 0, len(items)), items...)
	r.head = 0
	r.capacity = capacity
	return evicted
}

func (r *ring) clear() {
	r.buf = nil
	r.head = 0
}
