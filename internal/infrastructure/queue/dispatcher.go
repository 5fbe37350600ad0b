package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/disciplina/discipline-kernel/internal/core/ports"
	"github.com/disciplina/discipline-kernel/internal/metrics"
)

const (
	defaultWorkers      = 8
	defaultCycleTimeout = 30 * time.Second
	channelBuffer       = 256
)

// Deduper remembers trace IDs of jobs that already ran.
type Deduper interface {
	IsDuplicate(ctx context.Context, traceID string) (bool, error)
	Mark(ctx context.Context, traceID string) error
}

// Dispatcher routes cycle requests to a fixed set of workers using consistent
// hashing on the user ID, so cycles for one user run one at a time and in
// arrival order.
type Dispatcher struct {
	workers []chan ports.CycleRequest
	kernel  ports.Kernel
	dedup   Deduper
	timeout time.Duration
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used. dedup may be nil.
func NewDispatcher(numWorkers int, kernel ports.Kernel, dedup Deduper, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if timeout <= 0 {
		timeout = defaultCycleTimeout
	}
	d := &Dispatcher{
		workers: make([]chan ports.CycleRequest, numWorkers),
		kernel:  kernel,
		dedup:   dedup,
		timeout: timeout,
		log:     log.With().Str("component", "dispatcher").Logger(),
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.CycleRequest, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends a request to the worker responsible for its user. It blocks
// while that worker's buffer is full, until ctx is done.
func (d *Dispatcher) Enqueue(ctx context.Context, req ports.CycleRequest) error {
	idx := d.shardIndex(req.UserID)
	select {
	case d.workers[idx] <- req:
		metrics.JobsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps a user ID deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.CycleRequest) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-ch:
			if !ok {
				return
			}
			metrics.JobsQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.process(ctx, id, req)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, workerID int, req ports.CycleRequest) {
	log := d.log.With().
		Str("user_id", req.UserID).
		Str("trace_id", req.TraceID).
		Int("worker_id", workerID).
		Logger()

	if d.dedup != nil && req.TraceID != "" {
		dup, err := d.dedup.IsDuplicate(ctx, req.TraceID)
		if err != nil {
			// Fail open: running a cycle twice is harmless.
			log.Warn().Err(err).Msg("dedup check failed")
		}
		if dup {
			metrics.JobsDedupTotal.WithLabelValues("hit").Inc()
			log.Debug().Msg("duplicate job skipped")
			return
		}
		metrics.JobsDedupTotal.WithLabelValues("miss").Inc()
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.kernel.RunCycle(cctx, req.UserID, req.TraceID, ts); err != nil {
		log.Error().Err(err).Msg("cycle job failed")
		return
	}

	if d.dedup != nil && req.TraceID != "" {
		if err := d.dedup.Mark(ctx, req.TraceID); err != nil {
			log.Warn().Err(err).Msg("dedup mark failed")
		}
	}
}
