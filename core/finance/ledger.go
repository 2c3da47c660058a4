package finance

import "sync"

// keyedMutex serializes ledger regeneration per (transaction, pillar, source)
// so two concurrent writers cannot interleave delete and insert for the
// same batch. Locks are never released back to the map; the key space is
// bounded by the transactions actively being reprocessed.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[LedgerKey]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[LedgerKey]*sync.Mutex)}
}

// lock acquires the mutex for key and returns its unlock func.
func (km *keyedMutex) lock(key LedgerKey) func() {
	km.mu.Lock()
	m, ok := km.locks[key]
	if !ok {
		m = &sync.Mutex{}
		km.locks[key] = m
	}
	km.mu.Unlock()

	m.Lock()
	return m.Unlock
}
