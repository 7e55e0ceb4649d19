package coherence

import "sync"

// LevelLock serializes the requests that cross a level.
//
// Accesses flowing toward the memory take the up lock and then the down
// lock. Invalidations flowing toward the cores take only the down lock. The
// locks are released down first, then up. Keeping the same order on every
// path is what makes the hierarchy deadlock free.
//
// A level that calls its parent lends its down lock to the parent as the
// ChildLock of the request. The parent releases that lock when it enters and
// takes it back before it leaves, so that the parent can invalidate the
// level while the access is in flight.
type LevelLock struct {
	up   sync.Mutex
	down sync.Mutex
}

// Enter hands over from the lock of the caller to the locks of the level.
func (l *LevelLock) Enter(childLock sync.Locker) {
	if childLock != nil {
		childLock.Unlock()
	}

	l.up.Lock()
	l.down.Lock()
}

// Exit takes back the lock of the caller before releasing the locks of the
// level.
func (l *LevelLock) Exit(childLock sync.Locker) {
	if childLock != nil {
		childLock.Lock()
	}

	l.down.Unlock()
	l.up.Unlock()
}

// EnterInv locks the level for an invalidation.
func (l *LevelLock) EnterInv() {
	l.down.Lock()
}

// ExitInv releases the level after an invalidation.
func (l *LevelLock) ExitInv() {
	l.down.Unlock()
}

// Down returns the lock that the level lends to its parents.
func (l *LevelLock) Down() sync.Locker {
	return &l.down
}
