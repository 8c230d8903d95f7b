package process

// StateTransition represents a valid state transition.
type StateTransition struct {
	From State
	To   State
}

// ValidTransitions defines all valid state transitions.
var ValidTransitions = []StateTransition{
	// Slot claimed by allocation: Free -> Embryo
	{From: StateFree, To: StateEmbryo},
	// Setup failed, slot handed back: Embryo -> Free
	{From: StateEmbryo, To: StateFree},
	// Setup complete: Embryo -> Runnable
	{From: StateEmbryo, To: StateRunnable},
	// Picked by a scheduler: Runnable -> Running
	{From: StateRunnable, To: StateRunning},
	// Yield CPU: Running -> Runnable
	{From: StateRunning, To: StateRunnable},
	// Block on a channel: Running -> Sleeping
	{From: StateRunning, To: StateSleeping},
	// Wakeup or kill: Sleeping -> Runnable
	{From: StateSleeping, To: StateRunnable},
	// Exit: Running -> Zombie
	{From: StateRunning, To: StateZombie},
	// Reaped by the parent: Zombie -> Free
	{From: StateZombie, To: StateFree},
}

// IsValidTransition checks if a state transition is valid.
func IsValidTransition(from, to State) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// CanTransition checks if a process can transition to the given state.
func (p *Process) CanTransition(to State) bool {
	return IsValidTransition(p.State, to)
}

// transition is the only place a process changes state. An illegal
// transition means the table is corrupt and halts the kernel.
// Caller must hold the table lock.
func (k *Kernel) transition(p *Process, to State) {
	if !IsValidTransition(p.State, to) {
		k.fatalf("transition", "pid %d: %s -> %s", p.PID, p.State, to)
	}
	p.State = to
}
