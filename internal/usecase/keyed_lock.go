package usecase

import "sync"

// KeyedLock serializes work per session key inside this process. The
// reference platform got this for free from its host; on a general-purpose
// runtime the read-modify-write window of a chat turn must be guarded
// explicitly or concurrent requests against one key race on history and
// step state. Different keys proceed in parallel.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the key is exclusively held and returns the release
// function. Entries are dropped once the last holder releases.
func (k *KeyedLock) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
