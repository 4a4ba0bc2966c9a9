package push

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/metrics"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when every slot is taken; the delivery is dropped.
	ErrQueueFull = stderrors.New("push queue is full")
	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = stderrors.New("push dispatcher stopped")
)

// DeliveryHandler is what the workers call for each queued delivery.
type DeliveryHandler interface {
	Deliver(ctx context.Context, userID string, payload Payload) Outcome
}

// Delivery is one queued push.
type Delivery struct {
	UserID     string
	Payload    Payload
	EnqueuedAt time.Time
}

// DispatcherOptions sizes the worker pool.
type DispatcherOptions struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per delivery
}

// Dispatcher runs deliveries on a fixed pool so callers never wait on the
// push service.
type Dispatcher struct {
	handler DeliveryHandler
	jobs    chan Delivery
	workers int
	timeout time.Duration

	mu      sync.RWMutex
	stopped bool
	started bool
	wg      sync.WaitGroup

	hookMu    sync.RWMutex
	onOutcome func(Delivery, Outcome)
}

func NewDispatcher(handler DeliveryHandler, opts DispatcherOptions) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		handler: handler,
		jobs:    make(chan Delivery, opts.QueueSize),
		workers: opts.Workers,
		timeout: opts.Timeout,
	}
}

// SetOutcomeHook registers a callback run after every delivery.
func (d *Dispatcher) SetOutcomeHook(fn func(Delivery, Outcome)) {
	d.hookMu.Lock()
	defer d.hookMu.Unlock()
	d.onOutcome = fn
}

// Start launches the workers; calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	logger.Log.Info("Starting push dispatcher",
		zap.Int("workers", d.workers),
		zap.Int("queue_size", cap(d.jobs)),
	)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop refuses new deliveries and waits for queued ones to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	logger.Log.Info("Push dispatcher stopped")
}

// Enqueue hands a delivery to the pool without blocking.
func (d *Dispatcher) Enqueue(userID string, payload Payload) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.jobs <- Delivery{UserID: userID, Payload: payload, EnqueuedAt: time.Now()}:
		metrics.Get().PushQueueDepth.Set(float64(len(d.jobs)))
		return nil
	default:
		metrics.Get().PushQueueDropped.Inc()
		logger.Log.Warn("Push queue full, dropping delivery", logger.WithUserID(userID))
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for job := range d.jobs {
		metrics.Get().PushQueueDepth.Set(float64(len(d.jobs)))
		d.run(id, job)
	}
}

func (d *Dispatcher) run(workerID int, job Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Push worker panicked",
				zap.Int("worker", workerID),
				logger.WithUserID(job.UserID),
				zap.Any("panic", r),
			)
		}
	}()

	outcome := d.handler.Deliver(ctx, job.UserID, job.Payload)

	d.hookMu.RLock()
	hook := d.onOutcome
	d.hookMu.RUnlock()
	if hook != nil {
		hook(job, outcome)
	}
}
