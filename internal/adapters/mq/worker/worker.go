// Package worker runs the per-update pipeline over planned batches.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/pkg/logger"
	"github.com/okian/fantasylive/pkg/metrics"
)

// Default worker configuration constants.
const (
	maxDefaultWorkers   = 8
	poolShutdownTimeout = 30 * time.Second
)

// Item is the update type workers process.
type Item = model.ClassifiedUpdate

// Processor applies one update.
type Processor interface {
	Process(ctx context.Context, u Item) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, u Item) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, u Item) error { //nolint:gocritic // hugeParam
	return f(ctx, u)
}

// Failure is one update that could not be processed.
type Failure struct {
	Update Item
	Err    error
}

// Report is what a worker did with one batch.
type Report struct {
	Worker    string
	Processed []Item
	Failed    []Failure
	Duration  time.Duration
}

type job struct {
	batch []Item
	reply chan<- Report
}

// InMemoryWorker processes batches handed to it by a Pool.
type InMemoryWorker struct {
	proc Processor
	name string
	jobs chan job

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(proc Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		proc:     proc,
		name:     "worker",
		jobs:     make(chan job),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run serves batches until ctx is canceled or the worker is shut down.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j := <-w.jobs:
			j.reply <- w.RunBatch(ctx, j.batch)
		}
	}
}

// RunBatch processes a batch synchronously. A failing update is recorded and
// the worker moves on to the next one.
func (w *InMemoryWorker) RunBatch(ctx context.Context, batch []Item) Report {
	start := time.Now()
	rep := Report{Worker: w.name, Processed: make([]Item, 0, len(batch))}
	for _, u := range batch {
		if err := w.processUpdate(ctx, u); err != nil {
			rep.Failed = append(rep.Failed, Failure{Update: u, Err: err})
			continue
		}
		u.Processed = true
		rep.Processed = append(rep.Processed, u)
	}
	rep.Duration = time.Since(start)
	metrics.RecordBatchSize(len(batch))
	return rep
}

// Shutdown stops the worker after its current batch.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.once.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processUpdate runs the pipeline for one update, turning a panic into an
// error.
func (w *InMemoryWorker) processUpdate(ctx context.Context, u Item) (err error) { //nolint:gocritic // hugeParam
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: update %s: panic: %v", ErrProcessing, u.ID, r)
			metrics.RecordProcessingError("panic")
			w.logger.Error(ctx, "panic processing update",
				logger.String("update_id", u.ID),
				logger.String("kind", string(u.Kind)),
				logger.Any("panic", r),
			)
		}
	}()

	if perr := w.proc.Process(ctx, u); perr != nil {
		metrics.RecordErrorByComponent("worker", "process_error")
		w.logger.Debug(ctx, "update failed",
			logger.String("update_id", u.ID),
			logger.String("kind", string(u.Kind)),
			logger.Error(perr),
		)
		return fmt.Errorf("%w: update %s: %w", ErrProcessing, u.ID, perr)
	}
	return nil
}

// Pool runs one batch per worker per tick.
type Pool struct {
	mu      sync.Mutex
	workers []*InMemoryWorker
	proc    Processor
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	next    int

	logger logger.Logger
}

// DefaultWorkerCount is min(NumCPU, 8).
func DefaultWorkerCount() int {
	return min(runtime.NumCPU(), maxDefaultWorkers)
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, proc Processor) *Pool {
	if workerCount < 1 {
		workerCount = DefaultWorkerCount()
	}
	p := &Pool{
		proc:   proc,
		logger: logger.Get().Named("worker-pool"),
	}
	for range workerCount {
		p.workers = append(p.workers, p.newWorker())
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

func (p *Pool) newWorker() *InMemoryWorker {
	w := NewInMemoryWorker(p.proc, WithName("worker-"+strconv.Itoa(p.next)))
	p.next++
	return w
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(p.ctx)
	}
	p.started = true
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Dispatch hands batch i to worker i and waits for every handed-out batch to
// finish. Batches beyond the worker count are an error.
func (p *Pool) Dispatch(ctx context.Context, batches [][]Item) ([]Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil, ErrStopped
	}
	if len(batches) > len(p.workers) {
		return nil, fmt.Errorf("%d batches for %d workers", len(batches), len(p.workers))
	}

	replies := make(chan Report, len(batches))
	sent := 0
	var sendErr error
	for i, b := range batches {
		if len(b) == 0 {
			continue
		}
		select {
		case p.workers[i].jobs <- job{batch: b, reply: replies}:
			sent++
		case <-ctx.Done():
			sendErr = ctx.Err()
		case <-p.ctx.Done():
			sendErr = ErrStopped
		}
		if sendErr != nil {
			break
		}
	}

	reports := make([]Report, 0, sent)
	for range sent {
		reports = append(reports, <-replies)
	}
	return reports, sendErr
}

// Resize grows or shrinks the pool. It waits for any in-flight dispatch, so
// the change takes effect between ticks.
func (p *Pool) Resize(ctx context.Context, workerCount int) error {
	if workerCount < 1 {
		return fmt.Errorf("worker count must be positive, got %d", workerCount)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.workers) < workerCount {
		w := p.newWorker()
		if p.started {
			go w.Run(p.ctx)
		}
		p.workers = append(p.workers, w)
	}

	var retired []*InMemoryWorker
	if len(p.workers) > workerCount {
		retired = p.workers[workerCount:]
		p.workers = p.workers[:workerCount:workerCount]
	}
	for _, w := range retired {
		if !p.started {
			continue
		}
		if err := w.Shutdown(ctx); err != nil {
			return err
		}
	}

	metrics.UpdateWorkerCount(len(p.workers))
	p.logger.Info(ctx, "worker pool resized", logger.Int("workers", len(p.workers)))
	return nil
}

// Stop stops all workers, waiting up to the default shutdown timeout.
func (p *Pool) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()
	_ = p.Shutdown(ctx)
}

// Shutdown stops all workers after their current batch.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	p.started = false

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
		p.workers[i] = p.newWorker()
	}
	p.cancel()
	return firstErr
}
