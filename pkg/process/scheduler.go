package process

import (
	"context"
	"runtime"
)

// CPU is one scheduler loop. Its level cursor is private to the loop and
// needs no locking.
type CPU struct {
	// ID identifies the CPU in logs; out-of-band callers use -1.
	ID int

	k         *Kernel
	scheduler *Context
	proc      *Process
	level     int
}

// Run is the per-CPU scheduler loop. Each pass it takes the table lock,
// drops stale queue entries, and either dispatches the oldest process at
// the current level or moves on to the next level.
//
// A non-empty level is drained before any lower level is tried, so lower
// levels starve for as long as higher ones stay busy.
func (c *CPU) Run(ctx context.Context) {
	k := c.k
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		k.table.acquire(c)
		k.pruneQueues()

		p := k.queues[c.level].Dequeue()
		if p != nil {
			c.dispatch(p)
		}
		c.level = k.nextLevel(c.level, p != nil)
		k.table.release(c)

		// Let everything else at the lock between passes.
		runtime.Gosched()
	}
}

// dispatch runs p until it gives the CPU back. The table lock stays held
// across the switch; p releases it and takes it again before returning.
func (c *CPU) dispatch(p *Process) {
	k := c.k
	k.log.Debug("selected process", "cpu", c.ID, "pid", p.PID, "priority", p.Priority)

	c.proc = p
	p.cpu = c
	k.mem.Switch(p.AddressSpace)
	k.transition(p, StateRunning)
	k.dispatches++

	swtch(c.scheduler, p.context)

	// p has changed its own state before switching back.
	k.mem.SwitchKernel()
	c.proc = nil
}

// pruneQueues drops entries for processes that are no longer Runnable.
// Caller must hold the table lock.
func (k *Kernel) pruneQueues() {
	for _, q := range k.queues {
		if n := q.Prune(func(p *Process) bool { return p.State == StateRunnable }); n > 0 {
			k.log.Debug("pruned stale queue entries", "level", q.Level(), "count", n)
		}
	}
}

// nextLevel returns the level a CPU tries after a pass at level. After a
// dispatch it stays put unless a higher level has work, in which case it
// starts again from 0. After an empty pass it moves one level down,
// wrapping to 0.
// Caller must hold the table lock.
func (k *Kernel) nextLevel(level int, dispatched bool) int {
	if !dispatched {
		return (level + 1) % len(k.queues)
	}
	if k.higherNonEmpty(level) {
		return 0
	}
	return level
}

// higherNonEmpty reports whether any level above level has work.
func (k *Kernel) higherNonEmpty(level int) bool {
	for i := 0; i < level; i++ {
		if !k.queues[i].Empty() {
			return true
		}
	}
	return false
}

// sched switches from p back to its CPU's scheduler. p must have left the
// Running state and must hold the table lock and nothing else.
func (k *Kernel) sched(p *Process) {
	c := k.checkSched(p)
	swtch(p.context, c.scheduler)
}

// schedFinal is sched for a process that will never run again.
func (k *Kernel) schedFinal(p *Process) {
	c := k.checkSched(p)
	swtchFinal(c.scheduler)
}

func (k *Kernel) checkSched(p *Process) *CPU {
	c := p.cpu
	if !k.table.holding(c) {
		k.fatalf("sched", "pid %d: table lock not held", p.PID)
	}
	if p.State == StateRunning {
		k.fatalf("sched", "pid %d: still running", p.PID)
	}
	return c
}

// yield gives up the CPU for one scheduling round.
func (k *Kernel) yield(p *Process) {
	k.table.acquire(p.cpu)
	k.makeRunnable(p)
	k.sched(p)
	k.table.release(p.cpu)
}

// forkret is where a new process first runs. It still holds the table
// lock taken by the scheduler that dispatched it.
func (k *Kernel) forkret(p *Process) {
	k.table.release(p.cpu)

	t := &Task{k: k, p: p}
	if pc := p.tf.PC; pc != nil {
		pc(t)
	}
	t.Exit()
}

// SchedulerStats contains scheduler statistics.
type SchedulerStats struct {
	// Dispatches counts processes handed a CPU.
	Dispatches int64
	// Dropped counts enqueues rejected by a full run queue.
	Dropped int64
	// QueueLengths holds the length of each level's run queue.
	QueueLengths []int
	// Levels holds each CPU's current level cursor.
	Levels []int
}

// Stats returns scheduler statistics.
func (k *Kernel) Stats() SchedulerStats {
	c := k.outside()
	k.table.acquire(c)
	defer k.table.release(c)

	s := SchedulerStats{
		Dispatches:   k.dispatches,
		Dropped:      k.dropped,
		QueueLengths: make([]int, len(k.queues)),
		Levels:       make([]int, len(k.cpus)),
	}
	for i, q := range k.queues {
		s.QueueLengths[i] = q.Len()
	}
	for i, cpu := range k.cpus {
		s.Levels[i] = cpu.level
	}
	return s
}
