// Package ipc provides inter-process communication built on the kernel's
// sleep and wakeup primitives.
package ipc

import (
	"errors"
	"sync"

	"kproc/pkg/process"
)

// PipeSize is the capacity of a pipe's ring buffer in bytes.
const PipeSize = 512

// Pipe errors.
var (
	ErrPipeClosed = errors.New("pipe is closed")
	ErrBrokenPipe = errors.New("pipe is broken")
	ErrKilled     = errors.New("process killed")
)

// Pipe is a bounded byte channel between processes. A reader with nothing
// to read, or a writer with no room, sleeps until the other side acts.
type Pipe struct {
	mu        sync.Mutex
	data      [PipeSize]byte
	nread     uint
	nwrite    uint
	readOpen  bool
	writeOpen bool
}

// NewPipe creates a pipe with both ends open.
func NewPipe() *Pipe {
	return &Pipe{readOpen: true, writeOpen: true}
}

// Write copies b into the pipe, sleeping while it is full.
func (p *Pipe) Write(t *process.Task, b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.writeOpen {
		return 0, ErrPipeClosed
	}
	for i := range b {
		for p.nwrite == p.nread+PipeSize {
			if !p.readOpen {
				return i, ErrBrokenPipe
			}
			if t.Killed() {
				return i, ErrKilled
			}
			t.Wakeup(&p.nread)
			t.Sleep(&p.nwrite, &p.mu)
		}
		p.data[p.nwrite%PipeSize] = b[i]
		p.nwrite++
	}
	t.Wakeup(&p.nread)
	return len(b), nil
}

// Read copies up to len(b) bytes out of the pipe, sleeping while it is
// empty and a writer remains. It returns 0, nil at end of stream.
func (p *Pipe) Read(t *process.Task, b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.readOpen {
		return 0, ErrPipeClosed
	}
	for p.nread == p.nwrite && p.writeOpen {
		if t.Killed() {
			return 0, ErrKilled
		}
		t.Sleep(&p.nread, &p.mu)
	}
	n := 0
	for ; n < len(b) && p.nread != p.nwrite; n++ {
		b[n] = p.data[p.nread%PipeSize]
		p.nread++
	}
	t.Wakeup(&p.nwrite)
	return n, nil
}

// CloseWrite closes the write end and wakes any reader.
func (p *Pipe) CloseWrite(t *process.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeOpen = false
	t.Wakeup(&p.nread)
}

// CloseRead closes the read end and wakes any writer.
func (p *Pipe) CloseRead(t *process.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readOpen = false
	t.Wakeup(&p.nwrite)
}

// Buffered returns the number of unread bytes.
func (p *Pipe) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.nwrite - p.nread)
}
