package extras

import "sync"

// seriesLocks serializes reconciliation per series. Different series never
// block each other.
type seriesLocks struct {
	mu    sync.Mutex
	locks map[int]*seriesLock
}

type seriesLock struct {
	sync.Mutex
	refs int
}

func newSeriesLocks() *seriesLocks {
	return &seriesLocks{locks: make(map[int]*seriesLock)}
}

// lock blocks until seriesID is free and returns the matching unlock.
func (l *seriesLocks) lock(seriesID int) func() {
	l.mu.Lock()
	sl, ok := l.locks[seriesID]
	if !ok {
		sl = &seriesLock{}
		l.locks[seriesID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, seriesID)
		}
		l.mu.Unlock()
	}
}
