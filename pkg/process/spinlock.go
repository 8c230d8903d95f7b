package process

import (
	"sync"
	"sync/atomic"
)

// spinlock is the table lock. Ownership belongs to a CPU rather than a
// goroutine: the scheduler goroutine acquires it and the process it
// dispatches releases it, because both run on the same CPU. A Go mutex
// may be unlocked by a goroutine other than the one that locked it, which
// is what makes that handoff legal.
type spinlock struct {
	name   string
	mu     sync.Mutex
	holder atomic.Pointer[CPU]
	k      *Kernel
}

// acquire takes the lock on behalf of c. Re-entry on the same CPU would
// deadlock, so it halts instead.
func (l *spinlock) acquire(c *CPU) {
	if l.holding(c) {
		l.k.fatalf("acquire", "%s already held by cpu %d", l.name, c.ID)
	}
	l.mu.Lock()
	l.holder.Store(c)
}

// release drops the lock held by c.
func (l *spinlock) release(c *CPU) {
	if !l.holding(c) {
		l.k.fatalf("release", "%s not held by cpu %d", l.name, c.ID)
	}
	l.holder.Store(nil)
	l.mu.Unlock()
}

// holding reports whether c holds the lock.
func (l *spinlock) holding(c *CPU) bool {
	return c != nil && l.holder.Load() == c
}

// swap trades an already-held caller lock for the table lock. Taking the
// table lock before dropping lk closes the window in which a wakeup could
// slip between the caller's condition check and its registration as a
// sleeper.
func (l *spinlock) swap(c *CPU, lk sync.Locker) {
	l.acquire(c)
	lk.Unlock()
}

// swapBack undoes swap: it drops the table lock and retakes lk.
func (l *spinlock) swapBack(c *CPU, lk sync.Locker) {
	l.release(c)
	lk.Lock()
}
