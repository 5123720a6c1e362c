package cryptox

import "sync"

// KeyCache memoizes unwrapped file keys for the lifetime of a session.
// It is an explicit, injectable object rather than package-level state so
// tests can run with isolated instances. Clear must be called on logout so
// no key material survives a user switch.
type KeyCache struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

func NewKeyCache() *KeyCache {
	return &KeyCache{keys: make(map[string][]byte)}
}

func (c *KeyCache) Get(id string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.keys[id]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(k))
	copy(out, k)
	return out, true
}

func (c *KeyCache) Put(id string, key []byte) {
	stored := make([]byte, len(key))
	copy(stored, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[id] = stored
}

// Clear wipes every cached key and empties the map.
func (c *KeyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, k := range c.keys {
		for i := range k {
			k[i] = 0
		}
		delete(c.keys, id)
	}
}

func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
