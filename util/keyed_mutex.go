package util

import "sync"

// KeyedMutex serializes work per string key. Locks are created on first
// use and never released back; the key space here (tenant:contact) is
// small enough that this is fine.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*sync.Mutex),
	}
}

func (km *KeyedMutex) Lock(key string) {
	km.get(key).Lock()
}

func (km *KeyedMutex) Unlock(key string) {
	km.get(key).Unlock()
}

func (km *KeyedMutex) get(key string) *sync.Mutex {
	km.mu.Lock()
	defer km.mu.Unlock()
	lock, ok := km.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		km.locks[key] = lock
	}
	return lock
}
