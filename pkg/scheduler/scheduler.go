// Package scheduler drives the request pipeline from a single goroutine:
// every tick it asks the mailbox for work, dispatches at most one
// request, and waits for the poll interval. There is no queue and no
// retry; exactly one request is ever in flight.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"localagent/pkg/clock"
	"localagent/pkg/dispatch"
	"localagent/pkg/logging"
	"localagent/pkg/mailbox"
)

// DefaultInterval is the poll interval used when Options.Interval is zero.
const DefaultInterval = time.Second

// Source is the mailbox side of the pipeline.
type Source interface {
	Ensure() error
	Consume() (mailbox.Message, bool)
	Clear() error
}

// Dispatcher is the dispatch side of the pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw any) dispatch.Outcome
}

// Options configures a Scheduler.
type Options struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
	// OnOutcome, if set, is called with the outcome of every pass that
	// found work.
	OnOutcome func(dispatch.Outcome)
}

// Scheduler is a one-state machine: it is always idle between ticks and
// its only transition is RunOnce.
type Scheduler struct {
	source     Source
	dispatcher Dispatcher
	interval   time.Duration
	clock      clock.Clock
	logger     *slog.Logger
	onOutcome  func(dispatch.Outcome)
}

// New creates a scheduler over source and dispatcher.
func New(source Source, dispatcher Dispatcher, options Options) *Scheduler {
	s := &Scheduler{
		source:     source,
		dispatcher: dispatcher,
		interval:   options.Interval,
		clock:      options.Clock,
		logger:     options.Logger,
		onOutcome:  options.OnOutcome,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Interval returns the effective poll interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// RunOnce performs one pipeline pass and reports whether the mailbox
// held work. A payload that dispatches as Ignored (an empty or
// non-object request) is a no-op tick and does not count as work. Any
// consumed payload is followed by a clear of the slot whatever the
// outcome. A panic anywhere in the pass is logged rather than
// propagated.
func (s *Scheduler) RunOnce(ctx context.Context) (found bool) {
	consumed := false
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.ErrorContext(ctx, "An unexpected error occurred while processing the command file", "panic", recovered)
		}
		if !consumed {
			return
		}
		if err := s.source.Clear(); err != nil {
			s.logger.ErrorContext(ctx, "Could not clear command file", "error", err)
		}
	}()

	message, ok := s.source.Consume()
	if !ok {
		return false
	}
	consumed = true
	found = true

	ctx = logging.WithAttrs(ctx,
		slog.String("pass", uuid.NewString()),
		slog.String("fingerprint", message.Fingerprint))

	outcome := s.dispatcher.Dispatch(ctx, message.Payload)
	if s.onOutcome != nil {
		s.onOutcome(outcome)
	}
	return outcome.Kind != dispatch.Ignored
}

// Run polls until ctx is cancelled. It creates the mailbox slot if it
// does not exist, then alternates RunOnce with a wait of one interval.
// Cancellation is only observed between passes; a running capability is
// never interrupted by the loop itself. Run returns nil on shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.source.Ensure(); err != nil {
		s.logger.ErrorContext(ctx, "Could not create command file", "error", err)
	}
	s.logger.InfoContext(ctx, "LocalAgent started", "interval", s.interval)
	defer s.logger.InfoContext(ctx, "LocalAgent has stopped.")

	for {
		if ctx.Err() != nil {
			s.logger.InfoContext(ctx, "LocalAgent shutting down.")
			return nil
		}
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "LocalAgent shutting down.")
			return nil
		case <-s.clock.After(s.interval):
		}
	}
}
