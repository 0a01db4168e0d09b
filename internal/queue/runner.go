package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/classtrack/classtrack/internal/errors"
)

// State is the runner's position in the poll-process-acknowledge cycle.
type State int

const (
	// StateIdle: not yet polling.
	StateIdle State = iota
	// StateDraining: the last batch was non-empty, poll again immediately.
	StateDraining
	// StateSleeping: the last batch was empty, waiting out the poll interval.
	StateSleeping
	// StateStopped: the runner has returned.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// ProcessFunc handles one raw message body. Returning a recognized
// processing failure leaves the message for redelivery; any other error
// is fatal to the runner.
type ProcessFunc func(ctx context.Context, body string) error

// Runner drives the poll-process-acknowledge loop over one consumer.
type Runner struct {
	consumer     *Consumer
	process      ProcessFunc
	pollInterval time.Duration
	daemonize    bool

	mu    sync.Mutex
	state State
}

// NewRunner creates a runner. With daemonize false the runner processes a
// single batch and stops; otherwise it polls until the context ends,
// sleeping pollInterval after each empty batch.
func NewRunner(consumer *Consumer, process ProcessFunc, pollInterval time.Duration, daemonize bool) *Runner {
	return &Runner{
		consumer:     consumer,
		process:      process,
		pollInterval: pollInterval,
		daemonize:    daemonize,
		state:        StateIdle,
	}
}

// State reports the runner's current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run executes the loop. It returns nil on a clean stop (single batch
// done, or context cancelled) and an error only on a fatal condition.
func (r *Runner) Run(ctx context.Context) error {
	defer r.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			return nil
		}

		messages, err := r.consumer.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		for _, msg := range messages {
			if err := r.process(ctx, aws.ToString(msg.Body)); err != nil {
				if errors.IsProcessingFailure(err) {
					// Leave the message for transport-level redelivery.
					log.Printf("runner: failed processing message: %v", err)
					continue
				}
				return err
			}

			if err := r.consumer.Delete(ctx, aws.ToString(msg.ReceiptHandle)); err != nil {
				return err
			}
		}

		if !r.daemonize {
			return nil
		}

		// A non-empty batch suggests burst traffic: poll again right away
		// to drain the queue. An empty response is only a heuristic that
		// the queue is idle, but it is the signal we sleep on.
		if len(messages) == 0 {
			r.setState(StateSleeping)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.pollInterval):
			}
		} else {
			r.setState(StateDraining)
			log.Printf("runner: received %d messages", len(messages))
		}
	}
}
