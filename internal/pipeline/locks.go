package pipeline

import (
	"sync"

	"github.com/banshee-data/barn.report/internal/livestock"
)

// keyedMutex hands out one mutex per animal. Entries are reference counted
// and dropped once no caller holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[livestock.AnimalID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[livestock.AnimalID]*refMutex)}
}

// Lock blocks until the caller owns id and returns the matching unlock.
func (k *keyedMutex) Lock(id livestock.AnimalID) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
