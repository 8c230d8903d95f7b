package process

import (
	"errors"
	"strings"
	"testing"
)

// spawn allocates a runnable process without starting its goroutine, so
// table and queue state can be checked without a scheduler running.
func spawn(t *testing.T, k *Kernel, parent *Process) *Process {
	t.Helper()
	c := k.outside()
	p, err := k.allocProc(c)
	if err != nil {
		t.Fatalf("allocProc() error = %v", err)
	}
	k.table.acquire(c)
	if parent != nil {
		p.parent = parent.Ref()
		k.setPriority(p, parent.Priority)
	} else {
		k.setPriority(p, 0)
	}
	k.makeRunnable(p)
	k.table.release(c)
	p.cpu = c
	return p
}

// queued counts how many times pid appears across all run queues.
func queued(k *Kernel, pid int) (count, level int) {
	level = -1
	for _, q := range k.queues {
		q.Each(func(p *Process) {
			if p.PID == pid {
				count++
				level = q.Level()
			}
		})
	}
	return count, level
}

// TestProcessStateTransitions tests valid state transitions.
func TestProcessStateTransitions(t *testing.T) {
	valid := []struct {
		name string
		from State
		to   State
	}{
		{"Free to Embryo", StateFree, StateEmbryo},
		{"Embryo to Free", StateEmbryo, StateFree},
		{"Embryo to Runnable", StateEmbryo, StateRunnable},
		{"Runnable to Running", StateRunnable, StateRunning},
		{"Running to Runnable", StateRunning, StateRunnable},
		{"Running to Sleeping", StateRunning, StateSleeping},
		{"Sleeping to Runnable", StateSleeping, StateRunnable},
		{"Running to Zombie", StateRunning, StateZombie},
		{"Zombie to Free", StateZombie, StateFree},
	}
	for _, tt := range valid {
		t.Run(tt.name, func(t *testing.T) {
			if !IsValidTransition(tt.from, tt.to) {
				t.Errorf("IsValidTransition(%s, %s) = false, want true", tt.from, tt.to)
			}
			p := &Process{State: tt.from}
			if !p.CanTransition(tt.to) {
				t.Errorf("CanTransition(%s) from %s = false, want true", tt.to, tt.from)
			}
		})
	}

	invalid := []struct {
		name string
		from State
		to   State
	}{
		{"Running to Running", StateRunning, StateRunning},
		{"Runnable to Sleeping", StateRunnable, StateSleeping},
		{"Sleeping to Zombie", StateSleeping, StateZombie},
		{"Zombie to Runnable", StateZombie, StateRunnable},
		{"Free to Runnable", StateFree, StateRunnable},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if IsValidTransition(tt.from, tt.to) {
				t.Errorf("IsValidTransition(%s, %s) = true, want false", tt.from, tt.to)
			}
			p := &Process{State: tt.from}
			if p.CanTransition(tt.to) {
				t.Errorf("CanTransition(%s) from %s = true, want false", tt.to, tt.from)
			}
		})
	}
}

// TestTransitionHalts tests that an illegal transition halts the kernel.
func TestTransitionHalts(t *testing.T) {
	k := New(Config{})
	p := &Process{PID: 7, State: StateRunning}

	defer func() {
		var ie *InvariantError
		err, _ := recover().(error)
		if !errors.As(err, &ie) || ie.Op != "transition" {
			t.Errorf("recover() = %v, want transition InvariantError", err)
		}
	}()
	k.transition(p, StateRunning)
	t.Error("transition() returned for Running -> Running")
}

// TestStateString tests state names.
func TestStateString(t *testing.T) {
	if StateRunnable.String() != "runble" {
		t.Errorf("String() = %q, want runble", StateRunnable.String())
	}
	if State(42).String() != "???" {
		t.Errorf("String() = %q, want ???", State(42).String())
	}
}

// TestAllocProc tests pid assignment and table exhaustion.
func TestAllocProc(t *testing.T) {
	k := New(Config{NProc: 2})
	a := spawn(t, k, nil)
	b := spawn(t, k, a)

	if a.PID != 1 || b.PID != 2 {
		t.Errorf("PIDs = %d, %d, want 1, 2", a.PID, b.PID)
	}
	if _, err := k.allocProc(k.outside()); !errors.Is(err, ErrNoFreeSlot) {
		t.Errorf("allocProc() error = %v, want %v", err, ErrNoFreeSlot)
	}
}

// TestSlotGeneration tests that a reused slot does not alias old references.
func TestSlotGeneration(t *testing.T) {
	k := New(Config{NProc: 1})
	p := spawn(t, k, nil)
	old := p.Ref()

	c := k.outside()
	k.table.acquire(c)
	k.queues[0].RemovePID(p.PID)
	p.State = StateZombie
	k.reclaim(p)
	k.table.release(c)

	q := spawn(t, k, nil)
	if q.slot != old.Slot {
		t.Fatalf("slot = %d, want reuse of %d", q.slot, old.Slot)
	}
	if q.PID == 1 {
		t.Errorf("PID = %d, want a fresh pid", q.PID)
	}

	k.table.acquire(c)
	defer k.table.release(c)
	if k.deref(old) != nil {
		t.Error("deref(old) != nil, want stale reference rejected")
	}
	if k.deref(q.Ref()) != q {
		t.Error("deref(new) did not resolve to the new occupant")
	}
}

// TestReclaimResetsPriority tests that a freed slot forgets the level of
// its last occupant.
func TestReclaimResetsPriority(t *testing.T) {
	k := New(Config{NProc: 2, PriorityLevels: 3})
	root := spawn(t, k, nil)
	p := spawn(t, k, root)
	if err := k.SetPriorityByPID(p.PID, 2); err != nil {
		t.Fatalf("SetPriorityByPID() error = %v", err)
	}

	c := k.outside()
	k.table.acquire(c)
	k.queues[2].RemovePID(p.PID)
	p.State = StateZombie
	k.reclaim(p)
	if p.Priority != 0 {
		t.Errorf("Priority after reclaim = %d, want 0", p.Priority)
	}
	k.table.release(c)

	q, err := k.allocProc(c)
	if err != nil {
		t.Fatalf("allocProc() error = %v", err)
	}
	if q != p || q.Priority != 0 {
		t.Errorf("reused slot Priority = %d, want 0", q.Priority)
	}
}

// TestSetPriority tests set-then-get and the out-of-range no-op.
func TestSetPriority(t *testing.T) {
	k := New(Config{PriorityLevels: 4})
	root := spawn(t, k, nil)
	p := spawn(t, k, root)

	for _, n := range []int{3, 1, 2} {
		if err := k.SetPriorityByPID(p.PID, n); err != nil {
			t.Fatalf("SetPriorityByPID(%d) error = %v", n, err)
		}
		got, err := k.GetPriority(p.PID)
		if err != nil || got != n {
			t.Errorf("GetPriority() = %d, %v, want %d", got, err, n)
		}
	}

	c := k.outside()
	k.table.acquire(c)
	k.setPriority(p, 4)
	k.setPriority(p, -1)
	k.table.release(c)

	if got, _ := k.GetPriority(p.PID); got != 2 {
		t.Errorf("GetPriority() after out-of-range = %d, want 2", got)
	}
	if err := k.SetPriorityByPID(p.PID, 4); !errors.Is(err, ErrPriorityRange) {
		t.Errorf("SetPriorityByPID(4) error = %v, want %v", err, ErrPriorityRange)
	}
	if _, err := k.GetPriority(999); !errors.Is(err, ErrNoProcess) {
		t.Errorf("GetPriority(999) error = %v, want %v", err, ErrNoProcess)
	}
}

// TestSetPriorityMovesQueue tests that a runnable process changes queue
// without being duplicated.
func TestSetPriorityMovesQueue(t *testing.T) {
	k := New(Config{PriorityLevels: 3})
	root := spawn(t, k, nil)
	p := spawn(t, k, root)

	if err := k.SetPriorityByPID(p.PID, 2); err != nil {
		t.Fatalf("SetPriorityByPID() error = %v", err)
	}
	count, level := queued(k, p.PID)
	if count != 1 || level != 2 {
		t.Errorf("queued() = %d at level %d, want 1 at level 2", count, level)
	}
	count, level = queued(k, root.PID)
	if count != 1 || level != 0 {
		t.Errorf("root queued() = %d at level %d, want 1 at level 0", count, level)
	}
}

// TestPriorityPropagation tests that direct children follow a parent's
// change and grandchildren do not.
func TestPriorityPropagation(t *testing.T) {
	k := New(Config{PriorityLevels: 4})
	root := spawn(t, k, nil)
	a := spawn(t, k, root)
	child := spawn(t, k, a)
	grandchild := spawn(t, k, child)

	if child.Parent() != a.Ref() || grandchild.Parent() != child.Ref() {
		t.Fatalf("Parent() = %v, %v, want %v, %v", child.Parent(), grandchild.Parent(), a.Ref(), child.Ref())
	}
	if !root.Parent().IsZero() {
		t.Errorf("root Parent() = %v, want zero", root.Parent())
	}

	if err := k.SetPriorityByPID(a.PID, 2); err != nil {
		t.Fatalf("SetPriorityByPID() error = %v", err)
	}

	tests := []struct {
		name string
		p    *Process
		want int
	}{
		{"target", a, 2},
		{"direct child", child, 2},
		{"grandchild", grandchild, 0},
		{"parent", root, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := k.GetPriority(tt.p.PID)
			if got != tt.want {
				t.Errorf("GetPriority() = %d, want %d", got, tt.want)
			}
			if count, level := queued(k, tt.p.PID); count != 1 || level != tt.want {
				t.Errorf("queued() = %d at level %d, want 1 at level %d", count, level, tt.want)
			}
		})
	}
}

// TestPriorityPropagationOutOfRange tests that a child pushed out of range
// keeps its level.
func TestPriorityPropagationOutOfRange(t *testing.T) {
	k := New(Config{PriorityLevels: 3})
	root := spawn(t, k, nil)
	a := spawn(t, k, root)
	child := spawn(t, k, a)

	if err := k.SetPriorityByPID(child.PID, 2); err != nil {
		t.Fatalf("SetPriorityByPID(child) error = %v", err)
	}
	if err := k.SetPriorityByPID(a.PID, 1); err != nil {
		t.Fatalf("SetPriorityByPID(a) error = %v", err)
	}
	if got, _ := k.GetPriority(child.PID); got != 2 {
		t.Errorf("GetPriority(child) = %d, want 2", got)
	}
}

// TestPriorityFloor tests that no process is placed above its parent.
func TestPriorityFloor(t *testing.T) {
	k := New(Config{PriorityLevels: 3})
	root := spawn(t, k, nil)
	a := spawn(t, k, root)
	child := spawn(t, k, a)

	if err := k.SetPriorityByPID(a.PID, 1); err != nil {
		t.Fatalf("SetPriorityByPID() error = %v", err)
	}

	tests := []struct {
		name string
		pid  int
		n    int
		want error
	}{
		{"above parent", child.PID, 0, ErrPriorityFloor},
		{"equal to parent", child.PID, 1, nil},
		{"below parent", child.PID, 2, nil},
		{"root has no parent", root.PID, 1, ErrPriorityFloor},
		{"unknown pid", 99, 1, ErrNoProcess},
		{"out of range", child.PID, 3, ErrPriorityRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := k.SetPriorityByPID(tt.pid, tt.n)
			if !errors.Is(err, tt.want) {
				t.Errorf("SetPriorityByPID(%d, %d) error = %v, want %v", tt.pid, tt.n, err, tt.want)
			}
		})
	}
}

// TestNice tests relative priority changes.
func TestNice(t *testing.T) {
	k := New(Config{PriorityLevels: 3})
	root := spawn(t, k, nil)
	p := spawn(t, k, root)

	steps := []struct {
		delta int
		want  int
		err   error
	}{
		{1, 1, nil},
		{1, 2, nil},
		{1, 2, ErrPriorityRange},
		{-2, 0, nil},
		{-1, 0, ErrPriorityRange},
	}
	for _, s := range steps {
		got, err := k.nice(p, s.delta)
		if !errors.Is(err, s.err) || got != s.want {
			t.Errorf("nice(%d) = %d, %v, want %d, %v", s.delta, got, err, s.want, s.err)
		}
	}

	if _, err := k.nice(root, 1); !errors.Is(err, ErrPriorityFloor) {
		t.Errorf("nice() on root error = %v, want %v", err, ErrPriorityFloor)
	}
}

// TestNiceFloor tests that nice cannot rise above the parent.
func TestNiceFloor(t *testing.T) {
	k := New(Config{PriorityLevels: 3})
	root := spawn(t, k, nil)
	a := spawn(t, k, root)
	child := spawn(t, k, a)

	if err := k.SetPriorityByPID(a.PID, 1); err != nil {
		t.Fatalf("SetPriorityByPID() error = %v", err)
	}
	if _, err := k.nice(child, -1); !errors.Is(err, ErrPriorityFloor) {
		t.Errorf("nice(-1) error = %v, want %v", err, ErrPriorityFloor)
	}
}

// TestQueueOverflow tests that a full level drops the extra process.
func TestQueueOverflow(t *testing.T) {
	k := New(Config{NProc: 8, QueueCapacity: 2})
	spawn(t, k, nil)
	spawn(t, k, nil)
	spawn(t, k, nil)

	stats := k.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
	if stats.QueueLengths[0] != 2 {
		t.Errorf("QueueLengths[0] = %d, want 2", stats.QueueLengths[0])
	}
}

// TestKillUnknown tests killing a pid that does not exist.
func TestKillUnknown(t *testing.T) {
	k := New(Config{})
	if err := k.Kill(42); !errors.Is(err, ErrNoProcess) {
		t.Errorf("Kill(42) error = %v, want %v", err, ErrNoProcess)
	}
}

// TestDumps tests the diagnostic listings.
func TestDumps(t *testing.T) {
	k := New(Config{PriorityLevels: 2})
	root := spawn(t, k, nil)
	child := spawn(t, k, root)
	if err := k.SetPriorityByPID(child.PID, 1); err != nil {
		t.Fatalf("SetPriorityByPID() error = %v", err)
	}

	var procs strings.Builder
	if err := k.ProcDump(&procs); err != nil {
		t.Fatalf("ProcDump() error = %v", err)
	}
	if got := strings.Count(procs.String(), "runble"); got != 2 {
		t.Errorf("ProcDump() lists %d runnable processes, want 2:\n%s", got, procs.String())
	}

	var queues strings.Builder
	if err := k.QueueDump(&queues); err != nil {
		t.Fatalf("QueueDump() error = %v", err)
	}
	out := queues.String()
	for _, want := range []string{"level 0 (1/", "level 1 (1/", "pid:2", "priority:1", "parent:1", "parent:-"} {
		if !strings.Contains(out, want) {
			t.Errorf("QueueDump() missing %q:\n%s", want, out)
		}
	}
}

// TestSpinlockReentry tests that re-acquiring the table lock halts.
func TestSpinlockReentry(t *testing.T) {
	k := New(Config{})
	c := k.outside()
	k.table.acquire(c)

	defer func() {
		var ie *InvariantError
		err, _ := recover().(error)
		if !errors.As(err, &ie) || ie.Op != "acquire" {
			t.Errorf("recover() = %v, want acquire InvariantError", err)
		}
	}()
	k.table.acquire(c)
}

// TestSpinlockForeignRelease tests that releasing from a non-holder halts.
func TestSpinlockForeignRelease(t *testing.T) {
	k := New(Config{})
	k.table.acquire(k.outside())

	defer func() {
		var ie *InvariantError
		err, _ := recover().(error)
		if !errors.As(err, &ie) || ie.Op != "release" {
			t.Errorf("recover() = %v, want release InvariantError", err)
		}
	}()
	k.table.release(k.outside())
}

// TestSchedWithoutLock tests that sched halts unless the table lock is held.
func TestSchedWithoutLock(t *testing.T) {
	k := New(Config{})
	p := spawn(t, k, nil)

	defer func() {
		var ie *InvariantError
		err, _ := recover().(error)
		if !errors.As(err, &ie) || ie.Op != "sched" {
			t.Errorf("recover() = %v, want sched InvariantError", err)
		}
	}()
	k.sched(p)
}
