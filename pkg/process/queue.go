package process

import "errors"

// ErrQueueFull is returned when a run queue is at capacity.
var ErrQueueFull = errors.New("run queue is full")

// RunQueue is a bounded circular FIFO of runnable processes.
// It has no lock of its own; the kernel's table lock guards it.
type RunQueue struct {
	items []*Process
	head  int
	tail  int
	size  int
	level int
}

// NewRunQueue creates an empty queue for the given level.
func NewRunQueue(level, capacity int) *RunQueue {
	return &RunQueue{
		items: make([]*Process, capacity),
		level: level,
	}
}

// Level returns the priority level served by the queue.
func (q *RunQueue) Level() int { return q.level }

// Len returns the number of queued processes.
func (q *RunQueue) Len() int { return q.size }

// Cap returns the queue capacity.
func (q *RunQueue) Cap() int { return len(q.items) }

// Empty reports whether the queue holds nothing.
func (q *RunQueue) Empty() bool { return q.size <= 0 }

// Full reports whether the queue is at capacity.
func (q *RunQueue) Full() bool { return q.size >= len(q.items) }

// Enqueue appends p. A full queue rejects p and is left unchanged.
func (q *RunQueue) Enqueue(p *Process) error {
	if q.Full() {
		return ErrQueueFull
	}
	q.items[q.tail] = p
	q.tail = q.next(q.tail)
	q.size++
	return nil
}

// Dequeue removes and returns the oldest entry, or nil if the queue is empty.
func (q *RunQueue) Dequeue() *Process {
	if q.Empty() {
		return nil
	}
	p := q.items[q.head]
	q.items[q.head] = nil
	q.head = q.next(q.head)
	q.size--
	return p
}

// Peek returns the oldest entry without removing it.
func (q *RunQueue) Peek() *Process {
	if q.Empty() {
		return nil
	}
	return q.items[q.head]
}

// Contains reports whether a process with pid is queued.
func (q *RunQueue) Contains(pid int) bool {
	return q.find(pid) >= 0
}

// RemovePID removes the entry for pid, keeping the order of the rest.
func (q *RunQueue) RemovePID(pid int) bool {
	n := q.find(pid)
	if n < 0 {
		return false
	}
	q.removeAt(n)
	return true
}

// Prune drops every entry for which keep returns false and returns how
// many were dropped.
func (q *RunQueue) Prune(keep func(*Process) bool) int {
	dropped := 0
	for n := 0; n < q.size; {
		if keep(q.at(n)) {
			n++
			continue
		}
		q.removeAt(n)
		dropped++
	}
	return dropped
}

// Each calls fn for every entry, oldest first.
func (q *RunQueue) Each(fn func(*Process)) {
	for n := 0; n < q.size; n++ {
		fn(q.at(n))
	}
}

// find returns the position of pid counted from head, or -1.
func (q *RunQueue) find(pid int) int {
	for n := 0; n < q.size; n++ {
		if q.at(n).PID == pid {
			return n
		}
	}
	return -1
}

// removeAt shifts every entry after position n one place towards head.
func (q *RunQueue) removeAt(n int) {
	i := (q.head + n) % len(q.items)
	for m := n; m < q.size-1; m++ {
		j := q.next(i)
		q.items[i] = q.items[j]
		i = j
	}
	q.tail = q.prev(q.tail)
	q.items[q.tail] = nil
	q.size--
}

func (q *RunQueue) at(n int) *Process {
	return q.items[(q.head+n)%len(q.items)]
}

func (q *RunQueue) next(i int) int {
	return (i + 1) % len(q.items)
}

func (q *RunQueue) prev(i int) int {
	return (i - 1 + len(q.items)) % len(q.items)
}
