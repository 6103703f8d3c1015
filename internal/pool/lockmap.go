package pool

import "sync"

type holderLock struct {
	holders int
	mu      sync.Mutex
}

// lockmap serialises work per key and drops a key's mutex once nobody holds
// or waits on it.
type lockmap struct {
	l sync.Mutex
	m map[string]*holderLock
}

func newLockmap(initSize int) *lockmap {
	return &lockmap{m: make(map[string]*holderLock, initSize)}
}

func (l *lockmap) Lock(key string) {
	l.l.Lock()
	hl, ok := l.m[key]
	if !ok {
		hl = &holderLock{}
		l.m[key] = hl
	}
	hl.holders++
	l.l.Unlock()

	hl.mu.Lock()
}

func (l *lockmap) Unlock(key string) {
	l.l.Lock()
	hl := l.m[key]
	hl.holders--
	if hl.holders == 0 {
		delete(l.m, key)
	}
	l.l.Unlock()

	hl.mu.Unlock()
}

func (l *lockmap) Len() int {
	l.l.Lock()
	defer l.l.Unlock()
	return len(l.m)
}
