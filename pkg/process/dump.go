package process

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// ProcDump writes one line per live process: pid, state and name.
func (k *Kernel) ProcDump(w io.Writer) error {
	c := k.outside()
	k.table.acquire(c)
	defer k.table.release(c)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tSTATE\tNAME")
	for i := range k.procs {
		p := &k.procs[i]
		if p.State == StateFree {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.PID, p.State, p.Name)
	}
	return tw.Flush()
}

// QueueDump writes the run queues level by level, oldest entry first,
// with each entry's pid, name, priority and parent pid.
func (k *Kernel) QueueDump(w io.Writer) error {
	c := k.outside()
	k.table.acquire(c)
	defer k.table.release(c)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, q := range k.queues {
		fmt.Fprintf(tw, "level %d (%d/%d)\n", q.Level(), q.Len(), q.Cap())
		q.Each(func(p *Process) {
			ppid := "-"
			if parent := k.deref(p.parent); parent != nil {
				ppid = fmt.Sprint(parent.PID)
			}
			fmt.Fprintf(tw, "  pid:%d\tname:%s\tpriority:%d\tparent:%s\n", p.PID, p.Name, p.Priority, ppid)
		})
	}
	return tw.Flush()
}
