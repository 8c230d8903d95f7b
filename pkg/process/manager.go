package process

import (
	"errors"
	"fmt"
)

// Process lifecycle errors.
var (
	ErrNoFreeSlot = errors.New("process table full")
	ErrNoMemory   = errors.New("out of memory")
	ErrNoChild    = errors.New("no child processes")
	ErrNoProcess  = errors.New("process not found")
	ErrInitExists = errors.New("initial process already created")
)

// Userinit creates the root process. It runs image once a scheduler
// picks it, starts at priority 0, has no parent and adopts orphans.
func (k *Kernel) Userinit(image Program) error {
	c := k.outside()

	k.table.acquire(c)
	exists := k.initProc != nil
	k.table.release(c)
	if exists {
		return ErrInitExists
	}

	p, err := k.allocProc(c)
	if err != nil {
		return fmt.Errorf("userinit: %w", err)
	}
	as, err := k.mem.Setup()
	if err != nil {
		k.abandon(c, p)
		return fmt.Errorf("userinit: %w: %w", ErrNoMemory, err)
	}
	p.AddressSpace = as
	if err := k.mem.InitImage(as); err != nil {
		k.abandon(c, p)
		return fmt.Errorf("userinit: %w: %w", ErrNoMemory, err)
	}
	p.tf.PC = image
	p.Cwd = k.files.Root()

	k.table.acquire(c)
	defer k.table.release(c)
	if k.initProc != nil {
		cwd := p.Cwd
		k.files.ReleaseCwd(cwd)
		k.mem.FreeStack(p.Stack)
		k.mem.Free(p.AddressSpace)
		k.transition(p, StateFree)
		k.clear(p)
		return ErrInitExists
	}
	p.Name = "initcode"
	p.parent = Ref{}
	k.initProc = p
	k.setPriority(p, 0)
	k.launch(p)
	k.makeRunnable(p)
	k.log.Debug("created initial process", "pid", p.PID)
	return nil
}

// fork creates a copy of cur. The parent gets the child's pid; the child
// starts at cur's saved PC with a zero result in its trap frame.
func (k *Kernel) fork(cur *Process) (int, error) {
	np, err := k.allocProc(cur.cpu)
	if err != nil {
		return -1, err
	}

	as, err := k.mem.Copy(cur.AddressSpace)
	if err != nil {
		k.abandon(cur.cpu, np)
		return -1, fmt.Errorf("%w: copy address space: %w", ErrNoMemory, err)
	}
	np.AddressSpace = as
	*np.tf = *cur.tf
	np.tf.Ret = 0
	np.Files = k.files.Dup(cur.Files)
	np.Cwd = k.files.DupCwd(cur.Cwd)

	k.table.acquire(cur.cpu)
	np.parent = cur.Ref()
	np.Name = cur.Name
	pid := np.PID
	k.setPriority(np, cur.Priority)
	k.launch(np)
	k.makeRunnable(np)
	k.table.release(cur.cpu)

	k.log.Debug("forked", "parent", cur.PID, "child", pid, "priority", cur.Priority)
	return pid, nil
}

// exit terminates cur. cur stays a zombie until its parent waits for it.
// exit never returns.
func (k *Kernel) exit(cur *Process) {
	if cur == k.initProc {
		k.fatalf("exit", "init exiting")
	}

	k.files.Close(cur.Files)
	cur.Files = nil
	k.files.ReleaseCwd(cur.Cwd)
	cur.Cwd = nil

	k.table.acquire(cur.cpu)

	// Parent might be sleeping in wait.
	k.wakeup1(cur.parent)

	// Pass abandoned children to init.
	self, root := cur.Ref(), k.initProc.Ref()
	for i := range k.procs {
		p := &k.procs[i]
		if p.State == StateFree || p.parent != self {
			continue
		}
		p.parent = root
		if p.State == StateZombie {
			k.wakeup1(root)
		}
	}

	k.transition(cur, StateZombie)
	k.log.Debug("exited", "pid", cur.PID)
	k.schedFinal(cur)
	k.fatalf("exit", "zombie pid %d resumed", cur.PID)
}

// wait reaps one zombie child of cur and returns its pid.
func (k *Kernel) wait(cur *Process) (int, error) {
	k.table.acquire(cur.cpu)
	for {
		havekids := false
		self := cur.Ref()
		for i := range k.procs {
			p := &k.procs[i]
			if p.State == StateFree || p.parent != self {
				continue
			}
			havekids = true
			if p.State == StateZombie {
				pid := p.PID
				k.reclaim(p)
				k.table.release(cur.cpu)
				return pid, nil
			}
		}

		if !havekids || cur.killed {
			k.table.release(cur.cpu)
			return -1, ErrNoChild
		}

		// Woken by a child's exit, or spuriously; rescan either way.
		k.block(cur, self)
	}
}

// kill marks the process with pid for termination. A sleeping target is
// made runnable so it can notice; nothing stops a running one here.
func (k *Kernel) kill(c *CPU, pid int) error {
	k.table.acquire(c)
	defer k.table.release(c)

	p := k.findByPID(pid)
	if p == nil {
		return ErrNoProcess
	}
	p.killed = true
	if p.State == StateSleeping {
		k.makeRunnable(p)
	}
	return nil
}

// grow resizes cur's address space by n bytes and reloads it.
func (k *Kernel) grow(cur *Process, n int) error {
	if n == 0 {
		return nil
	}
	if err := k.mem.Resize(cur.AddressSpace, n); err != nil {
		return fmt.Errorf("%w: resize by %d: %w", ErrNoMemory, n, err)
	}
	k.mem.Switch(cur.AddressSpace)
	return nil
}

// Kill marks the process with pid for termination on behalf of a caller
// outside any process.
func (k *Kernel) Kill(pid int) error {
	return k.kill(k.outside(), pid)
}
