// Package fs provides a simulated file layer: per-process descriptor
// tables of reference-counted open files, and reference-counted
// working directories.
package fs

import (
	"errors"
	"sync"
)

// File errors.
var (
	ErrTooManyFiles = errors.New("too many open files")
	ErrBadFD        = errors.New("bad file descriptor")
)

// Config sizes the file layer. Zero fields take the defaults.
type Config struct {
	// MaxFiles is the number of descriptor slots per table. Default 16.
	MaxFiles int
	// RootPath names the root directory. Default "/".
	RootPath string
}

// File represents an open file shared by every descriptor pointing at it.
type File struct {
	// Name is the file name.
	Name string
	// Mode is the file mode.
	Mode string
	// Offset is the current file offset.
	Offset int64
	refs   int
}

// Refs returns the number of descriptors referring to f.
func (f *File) Refs() int { return f.refs }

// Dir is a working directory handle.
type Dir struct {
	// Path is the directory path.
	Path string
	refs int
}

// Refs returns the number of holders of d.
func (d *Dir) Refs() int { return d.refs }

// Table is a descriptor table owned by one process.
type Table struct {
	fds []*File
}

// Layer implements the file collaborator of the process kernel.
type Layer struct {
	cfg  Config
	mu   sync.Mutex
	root *Dir
	open int
}

// New creates a file layer with the given configuration.
func New(cfg Config) *Layer {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 16
	}
	if cfg.RootPath == "" {
		cfg.RootPath = "/"
	}
	return &Layer{cfg: cfg, root: &Dir{Path: cfg.RootPath}}
}

// NewTable creates an empty descriptor table.
func (l *Layer) NewTable() *Table {
	return &Table{fds: make([]*File, l.cfg.MaxFiles)}
}

// Open opens name in the lowest free descriptor slot of t.
func (l *Layer) Open(t *Table, name string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for fd, f := range t.fds {
		if f == nil {
			t.fds[fd] = &File{Name: name, Mode: "rw", refs: 1}
			l.open++
			return fd, nil
		}
	}
	return -1, ErrTooManyFiles
}

// Get returns the file behind fd.
func (l *Layer) Get(t *Table, fd int) (*File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t == nil || fd < 0 || fd >= len(t.fds) || t.fds[fd] == nil {
		return nil, ErrBadFD
	}
	return t.fds[fd], nil
}

// Dup returns a copy of a *Table sharing every open file.
func (l *Layer) Dup(files any) any {
	t, ok := files.(*Table)
	if !ok || t == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	nt := &Table{fds: make([]*File, len(t.fds))}
	for fd, f := range t.fds {
		if f != nil {
			f.refs++
			nt.fds[fd] = f
		}
	}
	return nt
}

// Close drops every descriptor of a *Table.
func (l *Layer) Close(files any) {
	t, ok := files.(*Table)
	if !ok || t == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for fd, f := range t.fds {
		if f == nil {
			continue
		}
		f.refs--
		if f.refs == 0 {
			l.open--
		}
		t.fds[fd] = nil
	}
}

// Root returns a new reference to the root directory.
func (l *Layer) Root() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.root.refs++
	return l.root
}

// DupCwd returns a new reference to a *Dir.
func (l *Layer) DupCwd(cwd any) any {
	d, ok := cwd.(*Dir)
	if !ok || d == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	d.refs++
	return d
}

// ReleaseCwd drops a reference to a *Dir.
func (l *Layer) ReleaseCwd(cwd any) {
	d, ok := cwd.(*Dir)
	if !ok || d == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if d.refs > 0 {
		d.refs--
	}
}

// OpenFiles returns the number of distinct open files.
func (l *Layer) OpenFiles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

// RootRefs returns the number of references held on the root directory.
func (l *Layer) RootRefs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.root.refs
}
