package hotreload

import (
	"sync"
	"weak"
)

// sweepRatio triggers an amortized sweep: when stale entries outnumber
// live ones by this factor, the next insert walks the table and drops
// them.
const sweepRatio = 2

// weakAssoc associates keys with values without keeping the values
// alive. Entries whose value has been collected are swept in bulk once
// the stale-to-live ratio crosses sweepRatio, so cleanup cost is
// amortized over inserts rather than tied to collector timing.
type weakAssoc[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]weak.Pointer[V]

	// sizeFloor is the table size right after the last sweep; the next
	// ratio check waits until the table has grown past it.
	sizeFloor int
}

func newWeakAssoc[K comparable, V any]() *weakAssoc[K, V] {
	return &weakAssoc[K, V]{entries: make(map[K]weak.Pointer[V])}
}

func (a *weakAssoc[K, V]) put(key K, value *V) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maybeSweep()
	a.entries[key] = weak.Make(value)
}

func (a *weakAssoc[K, V]) get(key K) (*V, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.entries[key]
	if !ok {
		return nil, false
	}
	v := p.Value()
	if v == nil {
		delete(a.entries, key)
		return nil, false
	}
	return v, true
}

func (a *weakAssoc[K, V]) remove(key K) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, key)
}

// live counts entries whose value is still reachable.
func (a *weakAssoc[K, V]) live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, p := range a.entries {
		if p.Value() != nil {
			n++
		}
	}
	return n
}

func (a *weakAssoc[K, V]) maybeSweep() {
	if len(a.entries) <= a.sizeFloor+8 {
		return
	}
	stale, liveCount := 0, 0
	for _, p := range a.entries {
		if p.Value() == nil {
			stale++
		} else {
			liveCount++
		}
	}
	if stale <= liveCount*sweepRatio {
		a.sizeFloor = len(a.entries)
		return
	}
	for k, p := range a.entries {
		if p.Value() == nil {
			delete(a.entries, k)
		}
	}
	a.sizeFloor = len(a.entries)
}
