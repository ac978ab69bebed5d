package workflow

import "sync"

// keyedLocker serialises work per requisition id. Entries are reference
// counted and removed once no goroutine holds or waits on them.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[int64]*keyedLock)}
}

// Lock blocks until id is free and returns the matching unlock func.
func (k *keyedLocker) Lock(id int64) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyedLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

// size is the number of ids currently tracked
func (k *keyedLocker) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
