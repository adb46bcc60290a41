package dataimport

import "sync"

// importLocks serializes operations per import session. Entries are dropped
// once no goroutine holds or waits for them.
type importLocks struct {
	mu    sync.Mutex
	locks map[int64]*importLock
}

type importLock struct {
	mu   sync.Mutex
	refs int
}

func newImportLocks() *importLocks {
	return &importLocks{locks: make(map[int64]*importLock)}
}

// lock acquires the mutex for importID and returns its release func.
func (l *importLocks) lock(importID int64) func() {
	l.mu.Lock()
	entry, ok := l.locks[importID]
	if !ok {
		entry = &importLock{}
		l.locks[importID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, importID)
		}
		l.mu.Unlock()
	}
}
