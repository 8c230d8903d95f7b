// Package vm provides a simulated address-space and kernel-stack allocator.
//
// Memory is accounted in pages drawn from one fixed budget shared by all
// address spaces and kernel stacks. Each address space may additionally be
// capped, the way a resource limit caps a single process.
package vm

import (
	"errors"
	"fmt"
	"sync"
)

// PageSize is the size of one page in bytes.
const PageSize = 4096

// Allocation errors.
var (
	ErrOutOfMemory  = errors.New("physical memory exhausted")
	ErrInvalidSpace = errors.New("invalid address space")
	ErrShrinkBelow  = errors.New("shrink below zero")
)

// Config sizes the simulated machine. Zero fields take the defaults.
type Config struct {
	// TotalPages is the physical page budget. Default 4096.
	TotalPages int
	// StackPages is the size of one kernel stack. Default 1.
	StackPages int
	// MaxSpacePages caps a single address space; 0 means no cap.
	MaxSpacePages int
}

// Space is one simulated address space.
type Space struct {
	// ID is unique per manager.
	ID int
	// Size is the user size in bytes.
	Size  int
	pages int
	freed bool
}

// Pages returns the number of pages backing the space.
func (s *Space) Pages() int { return s.pages }

// KernelStack is one allocated kernel stack.
type KernelStack struct {
	pages int
}

// LimitError reports an address space growing past its cap.
type LimitError struct {
	Space int
	Limit int
	Want  int
}

// Error returns the error message.
func (e *LimitError) Error() string {
	return fmt.Sprintf("address space %d: %d pages exceeds limit of %d", e.Space, e.Want, e.Limit)
}

// IsLimitError checks if an error is a limit error.
func IsLimitError(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}

// Usage is a snapshot of the manager's accounting.
type Usage struct {
	TotalPages int
	UsedPages  int
	Spaces     int
	Stacks     int
	Switches   int64
}

// Manager allocates address spaces and kernel stacks.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	used     int
	nextID   int
	spaces   int
	stacks   int
	active   *Space
	switches int64
}

// New creates a manager with the given configuration.
func New(cfg Config) *Manager {
	if cfg.TotalPages <= 0 {
		cfg.TotalPages = 4096
	}
	if cfg.StackPages <= 0 {
		cfg.StackPages = 1
	}
	return &Manager{cfg: cfg, nextID: 1}
}

// reserve takes n pages from the budget. Caller must hold m.mu.
func (m *Manager) reserve(n int) error {
	if m.used+n > m.cfg.TotalPages {
		return fmt.Errorf("%w: want %d pages, %d free", ErrOutOfMemory, n, m.cfg.TotalPages-m.used)
	}
	m.used += n
	return nil
}

func (m *Manager) checkLimit(s *Space, pages int) error {
	if m.cfg.MaxSpacePages > 0 && pages > m.cfg.MaxSpacePages {
		return &LimitError{Space: s.ID, Limit: m.cfg.MaxSpacePages, Want: pages}
	}
	return nil
}

func space(as any) (*Space, error) {
	s, ok := as.(*Space)
	if !ok || s == nil || s.freed {
		return nil, ErrInvalidSpace
	}
	return s, nil
}

// AllocStack allocates a kernel stack.
func (m *Manager) AllocStack() (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.reserve(m.cfg.StackPages); err != nil {
		return nil, err
	}
	m.stacks++
	return &KernelStack{pages: m.cfg.StackPages}, nil
}

// FreeStack releases a kernel stack.
func (m *Manager) FreeStack(st any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ks, ok := st.(*KernelStack)
	if !ok || ks == nil || ks.pages == 0 {
		return
	}
	m.used -= ks.pages
	m.stacks--
	ks.pages = 0
}

// Setup creates an empty address space.
func (m *Manager) Setup() (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Space{ID: m.nextID}
	m.nextID++
	m.spaces++
	return s, nil
}

// InitImage backs the first page of as with the initial program.
func (m *Manager) InitImage(as any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := space(as)
	if err != nil {
		return err
	}

	if err := m.reserve(1); err != nil {
		return err
	}
	s.pages++
	s.Size = PageSize
	return nil
}

// Copy duplicates as page for page.
func (m *Manager) Copy(as any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := space(as)
	if err != nil {
		return nil, err
	}

	if err := m.reserve(s.pages); err != nil {
		return nil, err
	}
	c := &Space{ID: m.nextID, Size: s.Size, pages: s.pages}
	m.nextID++
	m.spaces++
	return c, nil
}

// Free destroys as and returns its pages.
func (m *Manager) Free(as any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := space(as)
	if err != nil {
		return
	}

	m.used -= s.pages
	m.spaces--
	s.pages = 0
	s.freed = true
	if m.active == s {
		m.active = nil
	}
}

// Resize grows or shrinks as by n bytes, rounding to whole pages.
func (m *Manager) Resize(as any, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := space(as)
	if err != nil {
		return err
	}

	size := s.Size + n
	if size < 0 {
		return ErrShrinkBelow
	}
	pages := (size + PageSize - 1) / PageSize
	if pages > s.pages {
		if err := m.checkLimit(s, pages); err != nil {
			return err
		}
		if err := m.reserve(pages - s.pages); err != nil {
			return err
		}
	} else {
		m.used -= s.pages - pages
	}
	s.pages = pages
	s.Size = size
	return nil
}

// Switch makes as the active address space.
func (m *Manager) Switch(as any) {
	s, _ := as.(*Space)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = s
	m.switches++
}

// SwitchKernel leaves only the kernel mappings active.
func (m *Manager) SwitchKernel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = nil
}

// Active returns the active address space, or nil in kernel context.
func (m *Manager) Active() *Space {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Usage returns a snapshot of the page accounting.
func (m *Manager) Usage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Usage{
		TotalPages: m.cfg.TotalPages,
		UsedPages:  m.used,
		Spaces:     m.spaces,
		Stacks:     m.stacks,
		Switches:   m.switches,
	}
}
