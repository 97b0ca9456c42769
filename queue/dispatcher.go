// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docpipe/core"
)

// Lane names used by the ingestion pipeline.
const (
	LaneIngest  = "ingest-jobs"
	LaneConvert = "convert-jobs"
	LaneVector  = "vector-jobs"
	LaneGraph   = "graph-jobs"
)

// DefaultTaskTimeout bounds a single task execution unless the lane
// overrides it.
const DefaultTaskTimeout = 10 * time.Minute

// Handler processes one job pulled from a lane.
type Handler func(ctx context.Context, job *core.Job) error

// LaneStats is a point-in-time snapshot of a lane's accounting.
type LaneStats struct {
	Submitted int64
	Failed    int64
}

type lane struct {
	name      string
	pool      *ants.Pool
	handler   Handler
	timeout   time.Duration
	submitted atomic.Int64
	failed    atomic.Int64
}

// Dispatcher routes jobs to named lanes, each backed by its own bounded
// worker pool. Delivery is at-least-once: a task is handed to its handler
// after submission succeeds, and handler errors are counted and logged but
// the job record itself carries the failure state.
type Dispatcher struct {
	mu      sync.RWMutex
	lanes   map[string]*lane
	closed  bool
	timeout time.Duration
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithTaskTimeout sets the default per-task timeout for all lanes.
func WithTaskTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) error {
		if d <= 0 {
			d = DefaultTaskTimeout
		}
		dp.timeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(dp *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		dp.logger = logger
		return nil
	}
}

// NewDispatcher creates a dispatcher with no lanes registered.
func NewDispatcher(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		lanes:   make(map[string]*lane),
		timeout: DefaultTaskTimeout,
		logger:  slog.Default().With("component", "dispatcher"),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// RegisterLane creates a named lane with its own pool of concurrency workers.
// The lane inherits the dispatcher's default task timeout.
func (d *Dispatcher) RegisterLane(name string, handler Handler, concurrency int) error {
	return d.RegisterLaneWithTimeout(name, handler, concurrency, d.timeout)
}

// RegisterLaneWithTimeout creates a named lane with an explicit per-task
// timeout.
func (d *Dispatcher) RegisterLaneWithTimeout(name string, handler Handler, concurrency int, timeout time.Duration) error {
	if handler == nil {
		return ErrHandlerRequired
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = d.timeout
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	if _, exists := d.lanes[name]; exists {
		return ErrLaneExists
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return err
	}

	d.lanes[name] = &lane{
		name:    name,
		pool:    pool,
		handler: handler,
		timeout: timeout,
	}
	d.logger.Info("lane registered", "lane", name, "concurrency", concurrency, "timeout", timeout)
	return nil
}

// Enqueue submits a job to the named lane. The call returns once the task is
// accepted by the lane's pool; execution happens asynchronously under the
// lane's timeout. The ctx only bounds submission, not execution, so queued
// work survives the producing request.
func (d *Dispatcher) Enqueue(ctx context.Context, laneName string, job *core.Job) error {
	d.mu.RLock()
	ln, ok := d.lanes[laneName]
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return ErrDispatcherClosed
	}
	if !ok {
		return ErrUnknownLane
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.wg.Add(1)
	err := ln.pool.Submit(func() {
		defer d.wg.Done()
		d.run(ln, job)
	})
	if err != nil {
		d.wg.Done()
		d.logger.Error("failed to submit task", "lane", laneName, "job", job.ID, "err", err)
		return err
	}

	ln.submitted.Add(1)
	d.logger.Debug("task enqueued", "lane", laneName, "job", job.ID, "action", job.Action)
	return nil
}

// run executes a single task under the lane's timeout. Handler errors are
// accounted to the lane; the handler is responsible for recording the
// failure on the job itself.
func (d *Dispatcher) run(ln *lane, job *core.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), ln.timeout)
	defer cancel()

	if err := ln.handler(ctx, job); err != nil {
		ln.failed.Add(1)
		d.logger.Error("task failed", "lane", ln.name, "job", job.ID, "err", err)
	}
}

// Stats returns the accounting snapshot for a lane.
func (d *Dispatcher) Stats(laneName string) (LaneStats, error) {
	d.mu.RLock()
	ln, ok := d.lanes[laneName]
	d.mu.RUnlock()
	if !ok {
		return LaneStats{}, ErrUnknownLane
	}
	return LaneStats{
		Submitted: ln.submitted.Load(),
		Failed:    ln.failed.Load(),
	}, nil
}

// Drain stops accepting new tasks, waits for in-flight tasks to finish, then
// releases the lane pools. The dispatcher cannot be reused after Drain.
func (d *Dispatcher) Drain() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	lanes := make([]*lane, 0, len(d.lanes))
	for _, ln := range d.lanes {
		lanes = append(lanes, ln)
	}
	d.mu.Unlock()

	d.wg.Wait()
	for _, ln := range lanes {
		ln.pool.Release()
	}
	d.logger.Info("dispatcher drained", "lanes", len(lanes))
}
