package watchdog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go-antiraid/internal/logging"
)

// Task is a periodic maintenance job such as a ledger sweep.
type Task func(ctx context.Context) error

// Watchdog runs registered maintenance tasks on their own intervals and
// tracks whether each is still completing. A task is unhealthy when it has
// failed alertThreshold times in a row or has not completed within three
// intervals.
type Watchdog struct {
	mu             sync.RWMutex
	components     map[string]*ComponentHealth
	checkInterval  time.Duration
	alertThreshold int32
	now            func() time.Time
	wg             sync.WaitGroup
}

type ComponentHealth struct {
	Name          string
	Interval      time.Duration
	LastHeartbeat int64
	Failures      int32
	IsHealthy     uint32
	task          Task
}

func NewWatchdog(checkInterval time.Duration) *Watchdog {
	return &Watchdog{
		components:     make(map[string]*ComponentHealth),
		checkInterval:  checkInterval,
		alertThreshold: 3,
		now:            time.Now,
	}
}

// RegisterComponent adds a task. Register everything before Start.
func (w *Watchdog) RegisterComponent(name string, interval time.Duration, task Task) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.components[name] = &ComponentHealth{
		Name:      name,
		Interval:  interval,
		IsHealthy: 1,
		task:      task,
	}
}

// Heartbeat marks a component alive without running its task.
func (w *Watchdog) Heartbeat(name string) {
	w.mu.RLock()
	comp, exists := w.components[name]
	w.mu.RUnlock()
	if !exists {
		return
	}
	atomic.StoreInt64(&comp.LastHeartbeat, w.now().UnixNano())
	atomic.StoreInt32(&comp.Failures, 0)
	atomic.StoreUint32(&comp.IsHealthy, 1)
}

// RunOnce executes a single task immediately.
func (w *Watchdog) RunOnce(ctx context.Context, name string) error {
	w.mu.RLock()
	comp, exists := w.components[name]
	w.mu.RUnlock()
	if !exists || comp.task == nil {
		return nil
	}

	if err := comp.task(ctx); err != nil {
		failures := atomic.AddInt32(&comp.Failures, 1)
		logging.Warn("Watchdog: %s failed (%d in a row): %v", name, failures, err)
		if failures >= w.alertThreshold {
			atomic.StoreUint32(&comp.IsHealthy, 0)
		}
		return err
	}

	w.Heartbeat(name)
	return nil
}

// Start launches one loop per task plus the health check loop. All of them
// exit when ctx is cancelled; Wait blocks until they have.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for name, comp := range w.components {
		if comp.task == nil || comp.Interval <= 0 {
			continue
		}
		w.wg.Add(1)
		go w.taskLoop(ctx, name, comp.Interval)
	}

	w.wg.Add(1)
	go w.monitorLoop(ctx)
}

func (w *Watchdog) Wait() {
	w.wg.Wait()
}

func (w *Watchdog) taskLoop(ctx context.Context, name string, interval time.Duration) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx, name)
		}
	}
}

func (w *Watchdog) monitorLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkAllComponents()
		}
	}
}

func (w *Watchdog) checkAllComponents() {
	now := w.now().UnixNano()

	w.mu.RLock()
	defer w.mu.RUnlock()

	for name, comp := range w.components {
		lastBeat := atomic.LoadInt64(&comp.LastHeartbeat)
		if lastBeat == 0 || comp.Interval <= 0 {
			continue
		}

		elapsed := time.Duration(now - lastBeat)
		if elapsed > 3*comp.Interval {
			atomic.StoreUint32(&comp.IsHealthy, 0)
			logging.Error("Watchdog: %s unhealthy (no heartbeat for %v)", name, elapsed)
		}
	}
}

func (w *Watchdog) IsHealthy(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if comp, exists := w.components[name]; exists {
		return atomic.LoadUint32(&comp.IsHealthy) == 1
	}
	return false
}

func (w *Watchdog) GetStatus() map[string]bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	status := make(map[string]bool, len(w.components))
	for name, comp := range w.components {
		status[name] = atomic.LoadUint32(&comp.IsHealthy) == 1
	}
	return status
}
