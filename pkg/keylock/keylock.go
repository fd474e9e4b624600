package keylock

import (
	"sync"
)

// KeyLock serializes callers contending on the same key while letting
// operations on distinct keys proceed in parallel.
type KeyLock interface {
	Lock(key int)
	Unlock(key int)
}

type entry struct {
	mu   sync.Mutex
	refs int
}

type keyLock struct {
	mu      sync.Mutex
	entries map[int]*entry
}

func New() KeyLock {
	return &keyLock{
		entries: make(map[int]*entry),
	}
}

func (l *keyLock) Lock(key int) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

func (l *keyLock) Unlock(key int) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		l.mu.Unlock()
		panic("keylock: unlock of unheld key")
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}
