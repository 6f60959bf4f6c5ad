// Package runner coordinates the long-running tasks of a daemon process.
package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrManagerAlreadyStarted = errors.New("runner manager already started")

// Runner is one long-running task of the daemon.
type Runner func(ctx context.Context) error

// RunnerManager runs a set of runners in parallel. The first runner to
// return stops the rest.
type RunnerManager interface {
	Add(runner ...Runner) error
	Run(ctx context.Context) error
}

type runnerManager struct {
	runners []Runner
	lock    sync.Mutex
	running atomic.Bool
}

// NewRunnerManager creates a RunnerManager with the given runners.
func NewRunnerManager(runners ...Runner) RunnerManager {
	return &runnerManager{
		runners: runners,
	}
}

// Add registers additional runners. It fails once Run has been called.
func (r *runnerManager) Add(runner ...Runner) error {
	if r.running.Load() {
		return ErrManagerAlreadyStarted
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.runners = append(r.runners, runner...)
	return nil
}

// Run starts every runner and blocks until all of them have returned. When
// one runner returns, the shared context is cancelled so the others wind
// down too; the joined non-cancellation errors are returned.
func (r *runnerManager) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrManagerAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan error)
	for _, task := range r.runners {
		go func(task Runner) {
			// The first task to return takes the others down with it.
			defer cancel()

			// Cancellation is the expected shutdown path, not a failure
			// worth surfacing in the exit status.
			err := task(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				results <- err
				return
			}
			results <- nil
		}(task)
	}

	failures := make([]error, 0)
	for i := 0; i < len(r.runners); i++ {
		if err := <-results; err != nil {
			failures = append(failures, err)
		}
	}
	close(results)

	return errors.Join(failures...)
}
