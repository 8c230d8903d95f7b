package process

import "errors"

// Priority errors.
var (
	ErrPriorityRange = errors.New("priority out of range")
	ErrPriorityFloor = errors.New("priority above parent's")
)

func (k *Kernel) validPriority(n int) bool {
	return n >= 0 && n < len(k.queues)
}

// setPriority moves p to level n and shifts each direct child by the same
// amount. Grandchildren keep their level. An out-of-range n, for p or for
// a child, is ignored.
// Caller must hold the table lock.
func (k *Kernel) setPriority(p *Process, n int) {
	old := p.Priority
	if !k.reprioritise(p, n) {
		return
	}
	delta := n - old
	self := p.Ref()
	for i := range k.procs {
		child := &k.procs[i]
		if child.State != StateFree && child.parent == self {
			k.reprioritise(child, child.Priority+delta)
		}
	}
}

// reprioritise sets p's level to n and, if p is waiting in a run queue,
// moves it to the queue for n. It reports false and does nothing when n
// is out of range.
func (k *Kernel) reprioritise(p *Process, n int) bool {
	if !k.validPriority(n) {
		return false
	}
	old := p.Priority
	p.Priority = n
	if old != n && p.State == StateRunnable && k.queues[old].RemovePID(p.PID) {
		k.enqueue(p)
	}
	return true
}

// checkFloor enforces that p never becomes more favoured than its parent.
// The root process has no parent and so cannot be re-prioritised.
func (k *Kernel) checkFloor(p *Process, n int) error {
	parent := k.deref(p.parent)
	if parent == nil || n < parent.Priority {
		return ErrPriorityFloor
	}
	return nil
}

func (k *Kernel) setPriorityByPID(c *CPU, pid, n int) error {
	if !k.validPriority(n) {
		return ErrPriorityRange
	}
	k.table.acquire(c)
	defer k.table.release(c)

	p := k.findByPID(pid)
	if p == nil {
		return ErrNoProcess
	}
	if err := k.checkFloor(p, n); err != nil {
		return err
	}
	k.setPriority(p, n)
	return nil
}

func (k *Kernel) nice(cur *Process, delta int) (int, error) {
	k.table.acquire(cur.cpu)
	defer k.table.release(cur.cpu)

	n := cur.Priority + delta
	if !k.validPriority(n) {
		return cur.Priority, ErrPriorityRange
	}
	if err := k.checkFloor(cur, n); err != nil {
		return cur.Priority, err
	}
	k.setPriority(cur, n)
	return n, nil
}

func (k *Kernel) getPriority(c *CPU, pid int) (int, error) {
	k.table.acquire(c)
	defer k.table.release(c)

	p := k.findByPID(pid)
	if p == nil {
		return -1, ErrNoProcess
	}
	return p.Priority, nil
}

// SetPriorityByPID moves the process with pid to level n. The process may
// not be placed above its parent.
func (k *Kernel) SetPriorityByPID(pid, n int) error {
	return k.setPriorityByPID(k.outside(), pid, n)
}

// GetPriority returns the level of the process with pid.
func (k *Kernel) GetPriority(pid int) (int, error) {
	return k.getPriority(k.outside(), pid)
}
