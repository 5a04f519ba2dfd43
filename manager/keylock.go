package manager

import "sync"

// keyLock serializes lifecycle transitions per account: a grant from the
// stream loop and a revoke from the sweep loop can never interleave for
// the same account, while independent accounts proceed concurrently.
// Locks are never removed; the set is bounded by the registry, which
// never deletes accounts.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the account's lock and returns its release function.
func (k *keyLock) lock(account string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[account]
	if !ok {
		m = &sync.Mutex{}
		k.locks[account] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
