/*
Package process provides the scheduler and process-lifecycle core of a
simulated multiprocessor kernel.

Every process is backed by a goroutine and every CPU runs a scheduler
loop on its own goroutine. Control passes between them only through an
explicit context switch, so at any moment exactly one flow runs per CPU.
It includes:

  - A fixed-size process table addressed by slot and generation
  - One bounded FIFO run queue per priority level
  - Per-CPU scheduler loops with strict priority and round-robin fallback
  - Process lifecycle: create, fork, exit, wait, kill
  - Sleep and wakeup on arbitrary channels without lost wakeups
  - Priority control with inheritance to direct children and nice

# Process States

A process slot moves through the following states:

  - Free: the slot is unused
  - Embryo: the slot is claimed and being set up
  - Runnable: queued, waiting for a CPU
  - Running: executing on a CPU
  - Sleeping: blocked on a channel until a wakeup or kill
  - Zombie: exited, waiting for its parent to reap it

# Locking

One table lock guards the process table and every run queue. A scheduler
takes it before choosing a process and still holds it when it switches to
that process; the process releases it, and takes it again before
switching back. The lock therefore belongs to the CPU, not to a goroutine.

# Usage

Booting a kernel with one CPU:

	k := process.New(process.Config{NCPU: 1})

	err := k.Userinit(func(t *process.Task) {
		pid, err := t.Fork(func(t *process.Task) {
			// child: t.Ret() == 0
		})
		if err != nil {
			// Handle error
		}
		t.Wait()
		_ = pid
	})
	if err != nil {
		// Handle error
	}

	go k.Run(ctx)

# Priorities

Level 0 is the most favoured. A scheduler drains a non-empty level before
it looks at any lower one, so lower levels can starve. A child starts at
its parent's level and may never be placed above it.
*/
package process
