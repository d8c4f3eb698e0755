package polling

import "sync/atomic"

// tryLocker guards one request binding. A held lock means a request of that
// kind is bound; a failed TryLock is an overlap and the caller rejects the
// request instead of queueing it.
type tryLocker struct {
	locker int32
}

func (l *tryLocker) TryLock() bool {
	return atomic.CompareAndSwapInt32(&l.locker, 0, 1)
}

func (l *tryLocker) Unlock() {
	atomic.StoreInt32(&l.locker, 0)
}
