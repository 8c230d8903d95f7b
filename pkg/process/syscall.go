package process

import "sync"

// Task is the handle a running program uses to enter the kernel. It is
// only valid on the goroutine that backs its process, and system calls
// must not be deferred: Exit ends that goroutine.
type Task struct {
	k *Kernel
	p *Process
}

// PID returns the pid of the calling process.
func (t *Task) PID() int {
	return t.p.PID
}

// Ret returns the result of the last system call as seen in the trap
// frame. A freshly forked child sees 0.
func (t *Task) Ret() int {
	return t.p.tf.Ret
}

// Fork creates a child process that resumes at child with Ret() == 0.
// The parent gets the child's pid.
func (t *Task) Fork(child Program) (int, error) {
	t.p.tf.PC = child
	pid, err := t.k.fork(t.p)
	t.p.tf.Ret = pid
	t.trapret()
	return pid, err
}

// Exit terminates the calling process. It does not return.
func (t *Task) Exit() {
	t.k.exit(t.p)
}

// Wait reaps a zombie child, blocking until one exits.
func (t *Task) Wait() (int, error) {
	pid, err := t.k.wait(t.p)
	t.p.tf.Ret = pid
	t.trapret()
	return pid, err
}

// Kill requests termination of the process with pid.
func (t *Task) Kill(pid int) error {
	err := t.k.kill(t.p.cpu, pid)
	t.trapret()
	return err
}

// Yield gives up the CPU for one scheduling round.
func (t *Task) Yield() {
	t.k.yield(t.p)
	t.trapret()
}

// Nice shifts the caller's own priority by delta and returns the new level.
func (t *Task) Nice(delta int) (int, error) {
	n, err := t.k.nice(t.p, delta)
	t.trapret()
	return n, err
}

// SetPriority moves the process with pid to level n.
func (t *Task) SetPriority(pid, n int) error {
	err := t.k.setPriorityByPID(t.p.cpu, pid, n)
	t.trapret()
	return err
}

// GetPriority returns the level of the process with pid.
func (t *Task) GetPriority(pid int) (int, error) {
	n, err := t.k.getPriority(t.p.cpu, pid)
	t.trapret()
	return n, err
}

// Grow resizes the caller's address space by n bytes.
func (t *Task) Grow(n int) error {
	err := t.k.grow(t.p, n)
	t.trapret()
	return err
}

// Files returns the caller's open-file handle.
func (t *Task) Files() Files {
	return t.p.Files
}

// SetFiles installs a new open-file handle for the caller. Fork hands a
// duplicate to children and Exit closes it.
func (t *Task) SetFiles(f Files) {
	t.p.Files = f
}

// Sleep releases lk, blocks on ch, and holds lk again on return. The
// caller must hold lk and recheck its condition after waking.
func (t *Task) Sleep(ch Channel, lk sync.Locker) {
	t.k.sleep(t.p, ch, lk)
}

// Wakeup wakes every process sleeping on ch.
func (t *Task) Wakeup(ch Channel) {
	t.k.wakeup(t.p.cpu, ch)
}

// Killed reports whether the caller has been marked for termination.
func (t *Task) Killed() bool {
	c := t.p.cpu
	t.k.table.acquire(c)
	defer t.k.table.release(c)
	return t.p.killed
}

// trapret is the return-to-user boundary: a killed process exits here.
func (t *Task) trapret() {
	if t.Killed() {
		t.Exit()
	}
}
