package process

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"kproc/pkg/process/fs"
	"kproc/pkg/process/vm"
)

// Config holds kernel configuration. Zero fields take the defaults below.
type Config struct {
	// NProc is the size of the process table. Default 64.
	NProc int
	// PriorityLevels is the number of scheduling levels. Default 3.
	PriorityLevels int
	// QueueCapacity bounds each level's run queue. Default NProc, which
	// makes overflow impossible because a process is queued at most once.
	QueueCapacity int
	// NCPU is the number of scheduler loops started by Run. Default 1.
	NCPU int
	// Memory allocates kernel stacks and address spaces. Default vm.New.
	Memory Memory
	// Files duplicates and releases open files and directories. Default fs.New.
	Files FileLayer
	// Logger receives scheduling and lifecycle events. Default discards.
	Logger *slog.Logger
	// Halt is called with an *InvariantError when a core invariant breaks.
	// It must not return; the default panics.
	Halt func(err error)
}

// InvariantError describes a broken core invariant. It is never returned
// to callers; it is what the kernel halts with.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Kernel owns the process table, the run queues and the table lock that
// serialises every change to either.
type Kernel struct {
	cfg    Config
	table  spinlock
	procs  []Process
	queues []*RunQueue
	cpus   []*CPU

	nextPID  int
	initProc *Process

	mem   Memory
	files FileLayer
	log   *slog.Logger
	halt  func(err error)

	dispatches int64
	dropped    int64
}

// New creates a kernel with an empty process table.
func New(cfg Config) *Kernel {
	if cfg.NProc <= 0 {
		cfg.NProc = 64
	}
	if cfg.PriorityLevels <= 0 {
		cfg.PriorityLevels = 3
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = cfg.NProc
	}
	if cfg.NCPU <= 0 {
		cfg.NCPU = 1
	}
	if cfg.Memory == nil {
		cfg.Memory = vm.New(vm.Config{})
	}
	if cfg.Files == nil {
		cfg.Files = fs.New(fs.Config{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Halt == nil {
		cfg.Halt = func(err error) { panic(err) }
	}

	k := &Kernel{
		cfg:     cfg,
		procs:   make([]Process, cfg.NProc),
		queues:  make([]*RunQueue, cfg.PriorityLevels),
		nextPID: 1,
		mem:     cfg.Memory,
		files:   cfg.Files,
		log:     cfg.Logger,
		halt:    cfg.Halt,
	}
	k.table = spinlock{name: "ptable", k: k}
	for i := range k.procs {
		k.procs[i].slot = i
	}
	for i := range k.queues {
		k.queues[i] = NewRunQueue(i, cfg.QueueCapacity)
	}
	for i := 0; i < cfg.NCPU; i++ {
		k.cpus = append(k.cpus, &CPU{ID: i, k: k, scheduler: newContext()})
	}
	return k
}

// Levels returns the number of priority levels.
func (k *Kernel) Levels() int {
	return len(k.queues)
}

// Run starts one scheduler loop per CPU and blocks until ctx is cancelled
// and every loop has returned. A loop only notices cancellation between
// dispatches, so a process that never gives up its CPU keeps Run waiting.
func (k *Kernel) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range k.cpus {
		wg.Go(func() { c.Run(ctx) })
	}
	wg.Wait()
}

// outside returns a lock identity for callers that are not running on a
// CPU: consoles, tests and interrupt-like collaborators.
func (k *Kernel) outside() *CPU {
	return &CPU{ID: -1, k: k}
}

// fatalf halts the kernel with an InvariantError.
func (k *Kernel) fatalf(op, format string, args ...any) {
	err := &InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)}
	k.log.Error("invariant violated", "op", op, "msg", err.Msg)
	k.halt(err)
	panic(err)
}

// findByPID returns the live process with pid, or nil.
// Caller must hold the table lock.
func (k *Kernel) findByPID(pid int) *Process {
	for i := range k.procs {
		p := &k.procs[i]
		if p.State != StateFree && p.PID == pid {
			return p
		}
	}
	return nil
}

// deref resolves r to the process it was taken from, or nil if that slot
// has since been freed or reused. Caller must hold the table lock.
func (k *Kernel) deref(r Ref) *Process {
	if r.IsZero() || r.Slot < 0 || r.Slot >= len(k.procs) {
		return nil
	}
	p := &k.procs[r.Slot]
	if p.gen != r.Gen || p.State == StateFree {
		return nil
	}
	return p
}

// allocProc claims a free slot and prepares it to run in the kernel.
// The slot is claimed under the table lock; the stack and context are set
// up after the lock is dropped, and a failed setup returns the slot.
func (k *Kernel) allocProc(c *CPU) (*Process, error) {
	k.table.acquire(c)
	var p *Process
	for i := range k.procs {
		if k.procs[i].State == StateFree {
			p = &k.procs[i]
			break
		}
	}
	if p == nil {
		k.table.release(c)
		return nil, ErrNoFreeSlot
	}
	k.transition(p, StateEmbryo)
	p.gen++
	p.PID = k.nextPID
	k.nextPID++
	k.table.release(c)

	stack, err := k.mem.AllocStack()
	if err != nil {
		k.abandon(c, p)
		return nil, fmt.Errorf("%w: kernel stack: %w", ErrNoMemory, err)
	}
	p.Stack = stack
	p.tf = &TrapFrame{}
	p.context = newContext()
	return p, nil
}

// abandon hands an embryo slot back after a failed setup.
func (k *Kernel) abandon(c *CPU, p *Process) {
	if p.Stack != nil {
		k.mem.FreeStack(p.Stack)
	}
	if p.AddressSpace != nil {
		k.mem.Free(p.AddressSpace)
	}
	k.table.acquire(c)
	k.transition(p, StateFree)
	k.clear(p)
	k.table.release(c)
}

// reclaim frees a zombie slot. Only wait calls it.
// Caller must hold the table lock.
func (k *Kernel) reclaim(p *Process) {
	k.mem.FreeStack(p.Stack)
	k.mem.Free(p.AddressSpace)
	k.transition(p, StateFree)
	k.clear(p)
}

func (k *Kernel) clear(p *Process) {
	p.PID = 0
	p.Name = ""
	p.Priority = 0
	p.parent = Ref{}
	p.channel = nil
	p.killed = false
	p.AddressSpace = nil
	p.Files = nil
	p.Cwd = nil
	p.Stack = nil
	p.context = nil
	p.tf = nil
	p.cpu = nil
}

// enqueue puts p on the run queue of its level. A full queue drops p:
// it stays Runnable but no scheduler will find it.
// Caller must hold the table lock.
func (k *Kernel) enqueue(p *Process) {
	if err := k.queues[p.Priority].Enqueue(p); err != nil {
		k.dropped++
		k.log.Warn("run queue full, process dropped",
			"pid", p.PID, "priority", p.Priority, "capacity", k.queues[p.Priority].Cap())
	}
}

// makeRunnable marks p Runnable and queues it.
// Caller must hold the table lock.
func (k *Kernel) makeRunnable(p *Process) {
	k.transition(p, StateRunnable)
	k.enqueue(p)
}

// launch starts the goroutine that backs p. It parks until the first
// dispatch and then enters forkret.
func (k *Kernel) launch(p *Process) {
	ctx := p.context
	go func() {
		ctx.park()
		k.forkret(p)
	}()
}
