package cache

import "sync"

// SeqCache tracks the last accepted control sequence number per vehicle.
type SeqCache struct {
	mu   sync.RWMutex
	seqs map[string]uint64
}

// NewSeqCache creates a new SeqCache
func NewSeqCache() *SeqCache {
	return &SeqCache{
		seqs: make(map[string]uint64),
	}
}

// Get retrieves the last sequence number for a vehicle
func (c *SeqCache) Get(name string) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seq, ok := c.seqs[name]
	return seq, ok
}

// Advance stores seq if it is newer than the cached one. It reports false
// for a stale or repeated sequence number. Zero is always accepted.
func (c *SeqCache) Advance(name string, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.seqs[name]; ok && seq != 0 && seq <= last {
		return false
	}
	c.seqs[name] = seq
	return true
}

// Delete forgets a vehicle
func (c *SeqCache) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seqs, name)
}

// Reset clears the cache
func (c *SeqCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seqs = make(map[string]uint64)
}
