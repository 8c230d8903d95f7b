package process

import "fmt"

// State represents the lifecycle state of a process slot.
type State int

const (
	// StateFree marks an unused slot.
	StateFree State = iota
	// StateEmbryo marks a slot that has been claimed but is still being set up.
	StateEmbryo
	// StateSleeping indicates the process is blocked on a channel.
	StateSleeping
	// StateRunnable indicates the process is queued and waiting for a CPU.
	StateRunnable
	// StateRunning indicates the process is executing on a CPU.
	StateRunning
	// StateZombie indicates the process has exited but its parent hasn't waited for it.
	StateZombie
)

var stateNames = [...]string{
	StateFree:     "unused",
	StateEmbryo:   "embryo",
	StateSleeping: "sleep",
	StateRunnable: "runble",
	StateRunning:  "run",
	StateZombie:   "zombie",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "???"
}

// Channel identifies what a sleeping process is waiting for.
// Values must be comparable; wakeup matches them with ==.
type Channel any

// Ref addresses a process slot. Gen is bumped every time the slot is
// allocated, so a Ref kept past a reclaim stops resolving instead of
// aliasing the slot's next occupant.
type Ref struct {
	Slot int
	Gen  uint32
}

// IsZero reports whether r refers to no process.
func (r Ref) IsZero() bool {
	return r == Ref{}
}

func (r Ref) String() string {
	return fmt.Sprintf("%d/%d", r.Slot, r.Gen)
}

// Program is the code a process runs once it is first scheduled. Returning
// from it exits the process.
//
// A Program must not defer Task calls. Exit ends the goroutine with
// runtime.Goexit after the CPU has already moved on, so deferred functions
// run concurrently with the scheduler while the process is a zombie, and a
// deferred system call would take the table lock a second time.
type Program func(t *Task)

// TrapFrame is the user-visible return state of a process. Fork copies it
// into the child with Ret cleared, which is how the child observes a zero
// result from the same fork call.
type TrapFrame struct {
	// PC is where the process resumes when it returns to user mode.
	PC Program
	// Ret holds the result of the last system call.
	Ret int
}

// Process is one slot of the process table.
// All fields are guarded by the kernel's table lock.
type Process struct {
	// PID is the process identifier; zero while the slot is free.
	PID int
	// Name is used in diagnostics only.
	Name string
	// State is the current lifecycle state.
	State State
	// Priority is the scheduling level, 0 being the most favoured.
	Priority int

	// AddressSpace, Files, Cwd and Stack are owned by collaborators.
	AddressSpace AddressSpace
	Files        Files
	Cwd          Cwd
	Stack        Stack

	slot    int
	gen     uint32
	parent  Ref
	channel Channel
	killed  bool
	context *Context
	tf      *TrapFrame
	cpu     *CPU
}

// Ref returns the slot reference of p.
func (p *Process) Ref() Ref {
	return Ref{Slot: p.slot, Gen: p.gen}
}

// Parent returns the reference of p's parent; zero for the root process.
func (p *Process) Parent() Ref {
	return p.parent
}

// Killed reports whether termination was requested.
func (p *Process) Killed() bool {
	return p.killed
}
