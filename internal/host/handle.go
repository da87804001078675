// SPDX-License-Identifier: MIT
package host

import (
	"fmt"
	"sync"
)

// Handle is an opaque reference to a plan or voice processor owned by a
// Host. The low 32 bits hold slot+1 and the high 32 bits the slot generation,
// so the zero Handle is never valid and a handle to a destroyed object stays
// invalid after its slot is reused.
type Handle uint64

// NullHandle is never returned by a successful create call.
const NullHandle Handle = 0

func makeHandle(slot int, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot+1))
}

func (h Handle) slot() int      { return int(uint32(h)) - 1 }
func (h Handle) gen() uint32    { return uint32(h >> 32) }
func (h Handle) String() string { return fmt.Sprintf("%d.%d", h.slot(), h.gen()) }

type entry[T any] struct {
	gen  uint32
	live bool
	val  T
}

// table maps handles to values. Freed slots are recycled with a bumped
// generation.
type table[T any] struct {
	mu    sync.Mutex
	slots []entry[T]
	free  []int
	count int
}

func (t *table[T]) insert(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var slot int
	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		slot = len(t.slots)
		t.slots = append(t.slots, entry[T]{})
	}
	e := &t.slots[slot]
	e.live = true
	e.val = v
	t.count++
	return makeHandle(slot, e.gen)
}

// lookupLocked returns the live entry for h or nil. The caller holds t.mu.
func (t *table[T]) lookupLocked(h Handle) *entry[T] {
	slot := h.slot()
	if h == NullHandle || slot < 0 || slot >= len(t.slots) {
		return nil
	}
	e := &t.slots[slot]
	if !e.live || e.gen != h.gen() {
		return nil
	}
	return e
}

func (t *table[T]) get(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.lookupLocked(h); e != nil {
		return e.val, true
	}
	var zero T
	return zero, false
}

// remove invalidates h and returns its value. The slot is free for reuse
// immediately; the bumped generation rejects the old handle.
func (t *table[T]) remove(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	e := t.lookupLocked(h)
	if e == nil {
		return zero, false
	}
	v := e.val
	e.val = zero
	e.live = false
	e.gen++
	t.free = append(t.free, h.slot())
	t.count--
	return v, true
}

// drain removes every live value.
func (t *table[T]) drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []T
	for i := range t.slots {
		e := &t.slots[i]
		if !e.live {
			continue
		}
		out = append(out, e.val)
		var zero T
		e.val = zero
		e.live = false
		e.gen++
		t.free = append(t.free, i)
	}
	t.count = 0
	return out
}

func (t *table[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}
