package services

import (
	"sync"

	"spendwise/internal/core"
)

// SnapshotFunc receives an owner's full ledger after every applied write.
// It runs on the write queue goroutine and must not block.
type SnapshotFunc func(snapshot []core.Transaction)

// Hub fans ledger snapshots out to per-owner subscribers.
type Hub struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]SnapshotFunc
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]SnapshotFunc)}
}

// Subscribe registers fn for owner. The returned cancel func is idempotent.
func (h *Hub) Subscribe(owner string, fn SnapshotFunc) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	if h.subs[owner] == nil {
		h.subs[owner] = make(map[int]SnapshotFunc)
	}
	h.subs[owner][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[owner], id)
			if len(h.subs[owner]) == 0 {
				delete(h.subs, owner)
			}
		})
	}
}

// Publish hands each subscriber of owner its own copy of snapshot.
func (h *Hub) Publish(owner string, snapshot []core.Transaction) {
	h.mu.RLock()
	fns := make([]SnapshotFunc, 0, len(h.subs[owner]))
	for _, fn := range h.subs[owner] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(append([]core.Transaction(nil), snapshot...))
	}
}

// Subscribers reports how many listeners owner has.
func (h *Hub) Subscribers(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[owner])
}
