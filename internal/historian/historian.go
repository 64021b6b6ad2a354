// internal/historian/historian.go
package historian

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kimlj/Multiwordle-sub000/internal/analytics"
	"github.com/kimlj/Multiwordle-sub000/internal/cache"
	"github.com/sirupsen/logrus"
)

// Source yields queued summaries. Pop returns nil, nil when nothing arrived within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*analytics.Summary, error)
}

// Sink persists a batch of summaries atomically.
type Sink interface {
	RecordBatch(ctx context.Context, batch []analytics.Summary) error
}

// Options tunes the drain loop. Zero values select defaults.
type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	PopTimeout time.Duration
	// MaxPending caps how many unflushed summaries are kept while the sink is failing.
	MaxPending int
	Clock      clockwork.Clock
	Logger     logrus.FieldLogger
}

// Service drains the summary queue into the database in batches.
type Service struct {
	src  Source
	sink Sink
	opts Options

	batch     []analytics.Summary
	lastFlush time.Time
}

// New creates a Service.
func New(src Source, sink Sink, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = time.Second
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = opts.BatchSize * 50
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Service{
		src:   src,
		sink:  sink,
		opts:  opts,
		batch: make([]analytics.Summary, 0, opts.BatchSize),
	}
}

// Run pops summaries until ctx is cancelled, flushing whenever the batch is full or the
// flush delay has passed. Whatever is pending at shutdown gets one last flush attempt.
func (s *Service) Run(ctx context.Context) error {
	log := s.opts.Logger
	log.Info("historian started")
	s.lastFlush = s.opts.Clock.Now()
	defer func() {
		final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.flush(final)
		log.Info("historian stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		sum, err := s.src.Pop(ctx, s.opts.PopTimeout)
		switch {
		case err == nil && sum != nil:
			s.batch = append(s.batch, *sum)
		case errors.Is(err, cache.ErrBadPayload):
			log.Warnf("dropping queue entry: %v", err)
		case err != nil && ctx.Err() == nil:
			log.Errorf("queue pop: %v", err)
			// back off so a dead queue does not spin
			select {
			case <-ctx.Done():
			case <-s.opts.Clock.After(s.opts.PopTimeout):
			}
		}

		if len(s.batch) >= s.opts.BatchSize || s.opts.Clock.Since(s.lastFlush) >= s.opts.FlushDelay {
			s.flush(ctx)
		}
	}
}

// Pending returns the number of summaries waiting to be flushed.
func (s *Service) Pending() int { return len(s.batch) }

func (s *Service) flush(ctx context.Context) {
	s.lastFlush = s.opts.Clock.Now()
	if len(s.batch) == 0 {
		return
	}
	if err := s.sink.RecordBatch(ctx, s.batch); err != nil {
		s.opts.Logger.Errorf("flush %d summaries: %v", len(s.batch), err)
		if over := len(s.batch) - s.opts.MaxPending; over > 0 {
			s.opts.Logger.Warnf("dropping %d oldest summaries", over)
			s.batch = append(s.batch[:0], s.batch[over:]...)
		}
		return
	}
	s.opts.Logger.Infof("flushed %d summaries", len(s.batch))
	s.batch = s.batch[:0]
}
