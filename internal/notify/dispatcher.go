package notify

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/storage"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultDeliveryTimeout bounds a single delivery attempt
	DefaultDeliveryTimeout = 5 * time.Second
	DefaultQueueSize       = 256
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrStopped   = errors.New("dispatcher is stopped")
)

// Sink delivers one notification to its final destination.
type Sink interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// StoreSink persists notifications so clients can fetch them later.
type StoreSink struct {
	Store storage.Store
}

func (s StoreSink) Deliver(ctx context.Context, n models.Notification) error {
	return s.Store.SaveNotification(ctx, n)
}

// LogSink only writes notifications to the log.
type LogSink struct {
	Logger logrus.FieldLogger
}

func (s LogSink) Deliver(_ context.Context, n models.Notification) error {
	s.Logger.WithFields(logrus.Fields{
		"recipient": n.Recipient,
		"sender":    n.Sender,
		"type":      n.Type,
		"task":      n.TaskID,
	}).Info(n.Message)
	return nil
}

// Dispatcher is a fire-and-forget notification queue drained by a pool of
// workers. Notify never blocks; delivery failures are logged and dropped.
type Dispatcher struct {
	sink    Sink
	logger  logrus.FieldLogger
	timeout time.Duration
	queue   chan models.Notification
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	ctx     context.Context
}

func NewDispatcher(ctx context.Context, sink Sink, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		sink:    sink,
		logger:  logger,
		timeout: DefaultDeliveryTimeout,
		ctx:     ctx,
	}
}

// Start begins the worker pool with the specified number of workers
func (d *Dispatcher) Start(workers, queueSize int) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d.queue = make(chan models.Notification, queueSize)
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Infof("Started notification dispatcher with %d workers", workers)
}

// Notify enqueues n for delivery.
func (d *Dispatcher) Notify(_ context.Context, n models.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped || d.queue == nil {
		return ErrStopped
	}
	select {
	case d.queue <- n:
		return nil
	default:
		return errors.Wrapf(ErrQueueFull, "dropping %s notification for %s", n.Type, n.Recipient)
	}
}

// Stop stops accepting notifications and waits until queued ones are delivered.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped || d.queue == nil {
		d.stopped = true
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Infof("Notification dispatcher stopped")
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(id, n)
	}
}

func (d *Dispatcher) deliver(workerID int, n models.Notification) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	if err := d.sink.Deliver(ctx, n); err != nil {
		d.logger.WithFields(logrus.Fields{
			"worker":    workerID,
			"recipient": n.Recipient,
			"task":      n.TaskID,
		}).Errorf("Failed to deliver %s notification: %v", n.Type, err)
	}
}
