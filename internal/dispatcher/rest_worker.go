package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

// LockdownActivator applies a guild-wide lockdown.
type LockdownActivator interface {
	ActivateLockdown(ctx context.Context, guildID uint64, reason string) (bool, error)
}

// Dispatcher is the moderation executor. REST actions run on a fixed set of
// workers in priority order; Execute waits for the outcome so callers can act
// on it, such as evaluating a lockdown after a ban.
type Dispatcher struct {
	queue    *PriorityQueue
	rest     *RESTExecutor
	lockdown LockdownActivator
	workers  int

	started atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewDispatcher(rest *RESTExecutor, lockdown LockdownActivator, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		queue:    NewPriorityQueue(),
		rest:     rest,
		lockdown: lockdown,
		workers:  workers,
		stop:     make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.runLoop(i)
	}
	logging.Info("Dispatcher started with %d workers", d.workers)
}

func (d *Dispatcher) Stop() {
	if !d.started.Load() {
		return
	}
	close(d.stop)
	d.wg.Wait()
}

// Execute applies action and reports the platform error, if any.
func (d *Dispatcher) Execute(ctx context.Context, action models.Action) error {
	switch action.Type {
	case models.ActionTypeNone:
		return nil
	case models.ActionTypeMonitor:
		logging.Info("Monitoring user %d in guild %d", action.TargetID, action.GuildID)
		metrics.ActionsExecuted.WithLabelValues(action.Name(), "ok").Inc()
		return nil
	case models.ActionTypeLockdown:
		return d.record(action, d.applyLockdown(ctx, action))
	}

	if !d.started.Load() {
		return d.record(action, d.run(ctx, action))
	}

	job := NewJob(ctx, action)
	d.queue.Enqueue(job)

	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) applyLockdown(ctx context.Context, action models.Action) error {
	if d.lockdown == nil {
		return fmt.Errorf("no lockdown handler configured")
	}
	_, err := d.lockdown.ActivateLockdown(ctx, action.GuildID, action.Reason)
	return err
}

func (d *Dispatcher) run(ctx context.Context, action models.Action) error {
	switch action.Type {
	case models.ActionTypeTimeout:
		return d.rest.Timeout(ctx, action.GuildID, action.TargetID, action.Minutes, action.Reason)
	case models.ActionTypeKick:
		return d.rest.Kick(ctx, action.GuildID, action.TargetID, action.Reason)
	case models.ActionTypeBan:
		return d.rest.Ban(ctx, action.GuildID, action.TargetID, action.Reason, action.DeleteDays)
	default:
		return fmt.Errorf("unsupported action %s", action.Name())
	}
}

func (d *Dispatcher) record(action models.Action, err error) error {
	if err != nil {
		metrics.ActionsExecuted.WithLabelValues(action.Name(), "error").Inc()
		logging.Error("%s failed for user %d in guild %d: %v", action, action.TargetID, action.GuildID, err)
		return err
	}
	metrics.ActionsExecuted.WithLabelValues(action.Name(), "ok").Inc()
	logging.Info("%s applied to user %d in guild %d", action, action.TargetID, action.GuildID)
	return nil
}

func (d *Dispatcher) runLoop(workerID int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case <-d.queue.Ready():
		}

		for {
			job, ok := d.queue.Dequeue()
			if !ok {
				break
			}
			if err := job.ctx.Err(); err != nil {
				job.result <- err
				continue
			}
			logging.Debug("Worker %d executing %s", workerID, job.Action)
			job.result <- d.record(job.Action, d.run(job.ctx, job.Action))
		}
	}
}

func (d *Dispatcher) QueueDepth() int {
	return d.queue.Size()
}
