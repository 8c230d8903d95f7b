// sched-demo boots the process kernel, runs a small workload across three
// priority levels, and prints the process and run-queue dumps.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	flags "kproc/cmd/utils"
	"kproc/pkg/config"
	"kproc/pkg/klog"
	"kproc/pkg/process"
	"kproc/pkg/process/ipc"
)

// demoConfig is the JSON config file layout.
type demoConfig struct {
	NProc          int    `json:"nproc"`
	PriorityLevels int    `json:"priority_levels"`
	QueueCapacity  int    `json:"queue_capacity"`
	NCPU           int    `json:"ncpu"`
	Rounds         int    `json:"rounds"`
	LogLevel       string `json:"log_level"`
	LogFile        string `json:"log_file"`
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, closeLog, err := klog.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to open log: %v", err)
	}
	defer closeLog()

	k := process.New(process.Config{
		NProc:          cfg.NProc,
		PriorityLevels: cfg.PriorityLevels,
		QueueCapacity:  cfg.QueueCapacity,
		NCPU:           cfg.NCPU,
		Logger:         logger,
	})

	fmt.Println("=== Process Scheduler Demo ===")
	fmt.Printf("CPUs: %d, levels: %d, table: %d\n", cfg.NCPU, k.Levels(), cfg.NProc)

	done := make(chan struct{})
	if err := k.Userinit(func(t *process.Task) {
		workload(t, k, cfg.Rounds)
		close(done)
		idle(t)
	}); err != nil {
		log.Fatalf("Failed to create init: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Go(func() { k.Run(ctx) })

	select {
	case <-done:
	case <-ctx.Done():
		fmt.Println("Interrupted")
	}
	cancel()
	wg.Wait()

	fmt.Println("\n--- Final Process Table ---")
	k.ProcDump(os.Stdout)

	s := k.Stats()
	fmt.Println("\n--- Scheduler Statistics ---")
	fmt.Printf("Dispatches: %d\n", s.Dispatches)
	fmt.Printf("Dropped enqueues: %d\n", s.Dropped)
	fmt.Printf("Queue lengths: %v\n", s.QueueLengths)
}

// loadConfig layers defaults, the optional config file, KPROC_*
// environment variables, and explicitly set flags, in that order.
func loadConfig(args []string) (demoConfig, error) {
	cfg := demoConfig{
		NProc:          64,
		PriorityLevels: 3,
		NCPU:           2,
		Rounds:         3,
		LogLevel:       "INFO",
	}

	fs := flag.NewFlagSet("sched-demo", flag.ContinueOnError)
	path := fs.String("config", "", "JSON config file")
	nproc := fs.Int("nproc", cfg.NProc, "process table size")
	levels := fs.Int("levels", cfg.PriorityLevels, "number of priority levels")
	capacity := fs.Int("capacity", cfg.QueueCapacity, "run queue capacity per level (0 = nproc)")
	ncpu := fs.Int("ncpu", cfg.NCPU, "number of CPUs")
	rounds := fs.Int("rounds", cfg.Rounds, "yields per worker")
	level := fs.String("log-level", cfg.LogLevel, "log level (DEBUG, INFO, WARN, ERROR)")
	file := fs.String("log-file", "", "also append logs to this file")
	if _, err := flags.ParseFlags(fs, args); err != nil {
		return cfg, err
	}

	flags.EnvString("KPROC_CONFIG", path)
	if *path != "" {
		if err := config.Load(*path, &cfg); err != nil {
			return cfg, err
		}
	}

	for key, dst := range map[string]*int{
		"KPROC_NPROC":    &cfg.NProc,
		"KPROC_LEVELS":   &cfg.PriorityLevels,
		"KPROC_CAPACITY": &cfg.QueueCapacity,
		"KPROC_NCPU":     &cfg.NCPU,
		"KPROC_ROUNDS":   &cfg.Rounds,
	} {
		if err := flags.EnvInt(key, dst); err != nil {
			return cfg, err
		}
	}
	flags.EnvString("KPROC_LOG_LEVEL", &cfg.LogLevel)
	flags.EnvString("KPROC_LOG_FILE", &cfg.LogFile)

	set := flags.Visited(fs)
	if set["nproc"] {
		cfg.NProc = *nproc
	}
	if set["levels"] {
		cfg.PriorityLevels = *levels
	}
	if set["capacity"] {
		cfg.QueueCapacity = *capacity
	}
	if set["ncpu"] {
		cfg.NCPU = *ncpu
	}
	if set["rounds"] {
		cfg.Rounds = *rounds
	}
	if set["log-level"] {
		cfg.LogLevel = *level
	}
	if set["log-file"] {
		cfg.LogFile = *file
	}
	return cfg, nil
}

// workload runs inside init. It forks one worker per level, a pipe
// producer and consumer, and reaps them all.
func workload(t *process.Task, k *process.Kernel, rounds int) {
	fmt.Println("\n--- Process Creation ---")
	var workers []int
	for level := range k.Levels() {
		pid, err := t.Fork(func(w *process.Task) {
			for i := range rounds {
				n, _ := w.GetPriority(w.PID())
				fmt.Printf("pid %d at level %d: round %d\n", w.PID(), n, i+1)
				w.Yield()
			}
		})
		if err != nil {
			fmt.Printf("fork failed: %v\n", err)
			continue
		}
		if err := t.SetPriority(pid, level); err != nil {
			fmt.Printf("set priority of pid %d: %v\n", pid, err)
		}
		workers = append(workers, pid)
	}
	fmt.Printf("Forked workers: %v\n", workers)

	p := ipc.NewPipe()
	t.Fork(func(w *process.Task) {
		p.Write(w, []byte("hello through the pipe"))
		p.CloseWrite(w)
	})
	t.Fork(func(r *process.Task) {
		buf := make([]byte, 64)
		n, err := p.Read(r, buf)
		if err != nil {
			fmt.Printf("pipe read: %v\n", err)
			return
		}
		fmt.Printf("pid %d read %q\n", r.PID(), buf[:n])
	})

	fmt.Println("\n--- Run Queues ---")
	k.QueueDump(os.Stdout)

	fmt.Println("\n--- Running ---")
	for {
		pid, err := t.Wait()
		if err != nil {
			break
		}
		fmt.Printf("reaped pid %d\n", pid)
	}
}

// idle parks init once the workload is done; init may never exit.
func idle(t *process.Task) {
	var mu sync.Mutex
	mu.Lock()
	for {
		t.Sleep(&mu, &mu)
	}
}
