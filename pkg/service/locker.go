package service

import (
	"slices"
	"sync"
)

// taskLocker serializes read-modify-write cycles per task id. Entries are
// reference counted and dropped once nobody holds or waits for them.
type taskLocker struct {
	mu    sync.Mutex
	locks map[string]*taskLock
}

type taskLock struct {
	mu   sync.Mutex
	refs int
}

func newTaskLocker() *taskLocker {
	return &taskLocker{locks: make(map[string]*taskLock)}
}

// Lock acquires the locks for all ids in a stable order and returns the
// matching unlock function.
func (l *taskLocker) Lock(ids ...string) func() {
	keys := slices.Clone(ids)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]*taskLock, 0, len(keys))
	for _, id := range keys {
		l.mu.Lock()
		lk, ok := l.locks[id]
		if !ok {
			lk = &taskLock{}
			l.locks[id] = lk
		}
		lk.refs++
		l.mu.Unlock()

		lk.mu.Lock()
		held = append(held, lk)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			lk := held[i]
			lk.mu.Unlock()
			l.mu.Lock()
			lk.refs--
			if lk.refs == 0 {
				delete(l.locks, keys[i])
			}
			l.mu.Unlock()
		}
	}
}
