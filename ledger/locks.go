/*
locks.go - Exclusive critical sections over collection sets

PURPOSE:
  Every settlement or reversal is a read-modify-write spanning two or
  more collections with no transactional database underneath. Two
  concurrent requests touching the same collection would race (lost
  update), so every multi-collection mutation acquires the lock of
  every collection it will write BEFORE reading anything.

  Locks are always acquired in sorted collection-name order. The global
  order means two operations with overlapping collection sets serialize
  instead of deadlocking.
*/
package ledger

import (
	"sort"
	"sync"
)

// PairLocker hands out one mutex per collection and acquires them in a
// deadlock-free global order.
type PairLocker struct {
	mu    sync.Mutex
	locks map[Collection]*sync.Mutex
}

func NewPairLocker() *PairLocker {
	return &PairLocker{locks: make(map[Collection]*sync.Mutex)}
}

func (pl *PairLocker) lockFor(col Collection) *sync.Mutex {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	lock, ok := pl.locks[col]
	if !ok {
		lock = &sync.Mutex{}
		pl.locks[col] = lock
	}
	return lock
}

// Lock acquires the exclusive section for the given collections and
// returns the unlock function. Duplicates are collapsed; caller-side
// order does not matter.
func (pl *PairLocker) Lock(cols ...Collection) func() {
	distinct := make([]Collection, 0, len(cols))
	seen := make(map[Collection]bool, len(cols))
	for _, c := range cols {
		if !seen[c] {
			seen[c] = true
			distinct = append(distinct, c)
		}
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })

	held := make([]*sync.Mutex, 0, len(distinct))
	for _, c := range distinct {
		lock := pl.lockFor(c)
		lock.Lock()
		held = append(held, lock)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
