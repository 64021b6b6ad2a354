// internal/analytics/dispatcher.go
package analytics

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink persists or forwards a finalized game summary.
type Sink interface {
	Record(ctx context.Context, s Summary) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, s Summary) error

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, s Summary) error { return f(ctx, s) }

// Dispatcher hands summaries to every configured sink on a background goroutine.
// Publish never blocks and never reports failure to the caller; sink errors are logged.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  logrus.FieldLogger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a Dispatcher. A nil logger discards sink errors.
func NewDispatcher(logger logrus.FieldLogger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Add registers another sink. Not safe to call concurrently with Publish.
func (d *Dispatcher) Add(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Len returns the number of registered sinks.
func (d *Dispatcher) Len() int { return len(d.sinks) }

// Publish fans s out to all sinks asynchronously.
func (d *Dispatcher) Publish(s Summary) {
	d.mu.Lock()
	if d.closed || len(d.sinks) == 0 {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Errorf("analytics sink panicked for room %s: %v", s.RoomCode, r)
			}
		}()
		for _, sink := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			err := sink.Record(ctx, s)
			cancel()
			if err != nil {
				d.logger.WithFields(logrus.Fields{
					"room":    s.RoomCode,
					"summary": s.ID,
				}).Warnf("failed to record game summary: %v", err)
			}
		}
	}()
}

// Close stops accepting summaries and waits for in-flight publishes, bounded by ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
