package process

import "runtime"

// Context is a saved flow of control: the goroutine parked on resume.
type Context struct {
	resume chan struct{}
}

func newContext() *Context {
	return &Context{resume: make(chan struct{})}
}

// swtch hands the CPU from the flow saved in old to the flow saved in new
// and parks the caller until something switches back to old.
func swtch(old, new *Context) {
	new.resume <- struct{}{}
	<-old.resume
}

// swtchFinal hands the CPU to new and ends the calling flow for good.
func swtchFinal(new *Context) {
	new.resume <- struct{}{}
	runtime.Goexit()
}

// park blocks a freshly created flow until its first dispatch.
func (c *Context) park() {
	<-c.resume
}
