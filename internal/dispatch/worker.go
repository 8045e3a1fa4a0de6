// Package dispatch turns asynchronous button edges into serialized
// exchanges. Each source gets one worker goroutine, one wake signal and one
// action. Edge handlers only raise the signal; everything else happens on
// the worker.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siotlab/bdsc/internal/exchange"
	"github.com/siotlab/bdsc/internal/logging"
	"github.com/siotlab/bdsc/internal/wake"
)

// Handler returns the edge callback for sig. It raises the signal and
// does nothing else, so it is safe to call from any goroutine at any rate.
func Handler(sig *wake.Signal) func() {
	return sig.Raise
}

// Worker serves one source. It runs at most one exchange at a time and
// edges that arrive meanwhile collapse into a single pending wake.
type Worker struct {
	name      string
	signal    *wake.Signal
	action    Action
	exchanger exchange.Exchanger

	// OnResult, if set, is called after every exchange on the worker
	// goroutine.
	OnResult func(exchange.Result)
}

// NewWorker creates a worker. The worker owns action from now on.
func NewWorker(name string, sig *wake.Signal, action Action, ex exchange.Exchanger) *Worker {
	return &Worker{
		name:      name,
		signal:    sig,
		action:    action,
		exchanger: ex,
	}
}

// Name returns the source name
func (w *Worker) Name() string {
	return w.name
}

// Signal returns the wake signal the worker waits on
func (w *Worker) Signal() *wake.Signal {
	return w.signal
}

// Run loops until ctx is cancelled: wait for a wake, build the next
// command, exchange it. Exchange failures never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	logging.Debug("Worker started",
		zap.String("source", w.name),
		zap.String("action", w.action.Name()),
	)
	defer logging.Debug("Worker stopped", zap.String("source", w.name))

	for {
		if err := w.signal.Wait(ctx); err != nil {
			return err
		}

		res := w.exchanger.Exchange(ctx, w.name, w.action.Next())
		logging.Debug("Worker exchange finished", res.Fields()...)
		if w.OnResult != nil {
			w.OnResult(res)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Dispatcher runs a set of workers.
type Dispatcher struct {
	workers []*Worker
}

// New creates a dispatcher. Worker names must be unique.
func New(workers ...*Worker) (*Dispatcher, error) {
	seen := make(map[string]bool, len(workers))
	for _, w := range workers {
		if seen[w.name] {
			return nil, fmt.Errorf("duplicate source %q", w.name)
		}
		seen[w.name] = true
	}
	return &Dispatcher{workers: workers}, nil
}

// Workers returns the managed workers
func (d *Dispatcher) Workers() []*Worker {
	return d.workers
}

// Run starts every worker and blocks until ctx is cancelled. Cancellation
// is the normal way to stop and is not reported as an error.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range d.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
