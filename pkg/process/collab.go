package process

// Handles owned by collaborators. The kernel stores and passes them along
// but never looks inside.
type (
	AddressSpace = any
	Files        = any
	Cwd          = any
	Stack        = any
)

// Memory is the address-space and kernel-stack allocator.
type Memory interface {
	// AllocStack allocates a kernel stack for a new process.
	AllocStack() (Stack, error)
	// FreeStack releases a stack obtained from AllocStack.
	FreeStack(s Stack)
	// Setup creates an empty address space.
	Setup() (AddressSpace, error)
	// InitImage installs the initial program image into as.
	InitImage(as AddressSpace) error
	// Copy duplicates as for fork.
	Copy(as AddressSpace) (AddressSpace, error)
	// Free destroys as.
	Free(as AddressSpace)
	// Resize grows (n > 0) or shrinks (n < 0) as by n bytes.
	Resize(as AddressSpace, n int) error
	// Switch makes as the active address space.
	Switch(as AddressSpace)
	// SwitchKernel switches back to the kernel-only address space.
	SwitchKernel()
}

// FileLayer owns open files and working directories.
type FileLayer interface {
	Dup(f Files) Files
	Close(f Files)
	Root() Cwd
	DupCwd(c Cwd) Cwd
	ReleaseCwd(c Cwd)
}
