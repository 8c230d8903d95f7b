package process

import "sync"

// sleep atomically releases lk and blocks p on ch, reacquiring lk before
// it returns. The caller must hold lk and must recheck its condition
// afterwards: a kill or a wakeup for someone else can end the sleep early.
func (k *Kernel) sleep(p *Process, ch Channel, lk sync.Locker) {
	if lk == nil {
		k.fatalf("sleep", "pid %d: sleep without lock", p.PID)
	}

	// Once the table lock is held no wakeup can run, so dropping lk is safe.
	k.table.swap(p.cpu, lk)
	k.block(p, ch)
	k.table.swapBack(p.cpu, lk)
}

// block puts p to sleep on ch and switches away. It returns, still
// holding the table lock, once p has been made runnable and dispatched
// again, possibly on a different CPU.
// Caller must hold the table lock.
func (k *Kernel) block(p *Process, ch Channel) {
	p.channel = ch
	k.transition(p, StateSleeping)
	k.sched(p)
	p.channel = nil
}

// wakeup1 makes every process sleeping on ch runnable.
// Caller must hold the table lock.
func (k *Kernel) wakeup1(ch Channel) {
	for i := range k.procs {
		p := &k.procs[i]
		if p.State == StateSleeping && p.channel == ch {
			k.makeRunnable(p)
		}
	}
}

func (k *Kernel) wakeup(c *CPU, ch Channel) {
	k.table.acquire(c)
	k.wakeup1(ch)
	k.table.release(c)
}

// Wakeup wakes every process sleeping on ch. It is meant for callers that
// are not processes, such as device completion paths.
func (k *Kernel) Wakeup(ch Channel) {
	k.wakeup(k.outside(), ch)
}
