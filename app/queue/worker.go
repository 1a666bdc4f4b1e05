package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Handler runs one task. A returned error is logged; retries are the handler's business.
type Handler func(ctx context.Context, task Task) error

// WorkerConfig controls how a Worker drains its source
type WorkerConfig struct {
	Workers      int
	PollInterval time.Duration
	BatchSize    int
	// TaskTimeout bounds one handler run. Runs are not cut short by Stop.
	TaskTimeout time.Duration
}

// Worker claims due tasks from a Source and runs them on a fixed pool of goroutines
type Worker struct {
	source   Source
	cfg      WorkerConfig
	logger   *log.Logger
	mu       sync.RWMutex
	handlers map[TaskKind]Handler
	now      func() time.Time
}

func NewWorker(source Source, cfg WorkerConfig, logger *log.Logger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Workers * 4
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		source:   source,
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[TaskKind]Handler),
		now:      time.Now,
	}
}

// Handle registers the handler for a task kind, replacing any previous one
func (w *Worker) Handle(kind TaskKind, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = h
}

// Start launches the poll loop and the pool. The returned func stops both and waits.
// On stop, tasks already running finish; claimed tasks that have not started are
// handed back to the source when it can take them.
func (w *Worker) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	runCtx := context.WithoutCancel(parent)
	tasks := make(chan Task, w.cfg.BatchSize)

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				if ctx.Err() != nil {
					w.requeue(runCtx, t)
					continue
				}
				taskCtx, done := context.WithTimeout(runCtx, w.cfg.TaskTimeout)
				w.Run(taskCtx, t)
				done()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(tasks)
		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()
		for {
			w.poll(ctx, runCtx, tasks)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// requeue puts a claimed task back so another worker or replica can run it
func (w *Worker) requeue(ctx context.Context, t Task) {
	q, ok := w.source.(Queue)
	if !ok {
		w.logger.Printf("queue: shutting down with claimed task %s dropped", t)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.Enqueue(ctx, t, 0); err != nil {
		w.logger.Printf("queue: requeue of task %s failed: %v", t, err)
	}
}

func (w *Worker) poll(ctx, runCtx context.Context, out chan<- Task) {
	for {
		if ctx.Err() != nil {
			return
		}
		claimed, err := w.source.Claim(ctx, w.now(), w.cfg.BatchSize)
		if err != nil {
			w.logger.Printf("queue: claim failed: %v", err)
			return
		}
		for i, t := range claimed {
			select {
			case out <- t:
			case <-ctx.Done():
				for _, rest := range claimed[i:] {
					w.requeue(runCtx, rest)
				}
				return
			}
		}
		if len(claimed) < w.cfg.BatchSize {
			return
		}
	}
}

// Run executes a single task synchronously, recovering from handler panics
func (w *Worker) Run(ctx context.Context, t Task) {
	w.mu.RLock()
	h, ok := w.handlers[t.Kind]
	w.mu.RUnlock()
	if !ok {
		w.logger.Printf("queue: no handler for %s", t)
		return
	}

	if err := safeRun(ctx, h, t); err != nil {
		w.logger.Printf("queue: task %s failed: %v", t, err)
	}
}

func safeRun(ctx context.Context, h Handler, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, t)
}
