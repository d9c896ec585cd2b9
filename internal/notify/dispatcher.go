package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/tidepool/internal/logfields"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 5 * time.Second
)

// DeadLetterFunc records a permanently failed send, typically by appending
// to the durable audit log.
type DeadLetterFunc func(ctx context.Context, text string, err error)

// Dispatcher is the asynchronous delivery worker behind Notifier.
type Dispatcher struct {
	sink        Sink
	queue       chan string
	sendTimeout time.Duration
	deadLetter  DeadLetterFunc
	logger      *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize overrides the default queue capacity.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan string, n)
		}
	}
}

// WithSendTimeout overrides the per-send timeout.
func WithSendTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.sendTimeout = t
		}
	}
}

// WithDeadLetter installs a dead-letter recorder for exhausted sends.
func WithDeadLetter(fn DeadLetterFunc) DispatcherOption {
	return func(d *Dispatcher) { d.deadLetter = fn }
}

// NewDispatcher creates and starts a dispatcher delivering to sink.
func NewDispatcher(sink Sink, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		sink:        sink,
		queue:       make(chan string, defaultQueueSize),
		sendTimeout: defaultSendTimeout,
		logger:      logger,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.run()
	return d
}

// Notify queues text for delivery without blocking the caller.
func (d *Dispatcher) Notify(text string) {
	select {
	case d.queue <- text:
	default:
		d.logger.Warn("notification queue full, dropping message",
			slog.Int("queue_size", cap(d.queue)))
	}
}

// Stop drains nothing and stops the worker. Queued messages not yet picked
// up are discarded; delivery is best-effort by contract.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case text := <-d.queue:
			d.deliver(text)
		}
	}
}

// deliver sends with a bounded timeout and a single retry; exhausted sends
// go to the dead-letter recorder.
func (d *Dispatcher) deliver(text string) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		lastErr = d.sink.Send(ctx, text)
		cancel()
		if lastErr == nil {
			return
		}
		d.logger.Warn("notification send failed",
			slog.Int("attempt", attempt+1),
			logfields.Error(lastErr))
	}

	if d.deadLetter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		d.deadLetter(ctx, text, lastErr)
		cancel()
	}
}
