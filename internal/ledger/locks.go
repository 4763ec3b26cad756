package ledger

import "sync"

// accountLocks serializes order commits per account; orders against
// different accounts proceed in parallel. Lock entries are never removed,
// so the map grows with the number of distinct accounts that traded in
// this process.
type accountLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[int64]*sync.Mutex)}
}

// lock acquires the mutex for one account and returns its unlock function.
func (a *accountLocks) lock(accountID int64) func() {
	a.mu.Lock()
	l, ok := a.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[accountID] = l
	}
	a.mu.Unlock()

	l.Lock()
	return l.Unlock
}
