package dispatcher

import (
	"context"
	"sync"

	"go-antiraid/internal/models"
)

type JobPriority uint8

const (
	PriorityLow JobPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// PriorityFor ranks bans and lockdowns ahead of kicks and timeouts.
func PriorityFor(t models.ActionType) JobPriority {
	switch t {
	case models.ActionTypeBan, models.ActionTypeLockdown:
		return PriorityCritical
	case models.ActionTypeKick:
		return PriorityHigh
	case models.ActionTypeTimeout:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// Job carries the caller's context so a cancelled request is never sent.
type Job struct {
	ctx      context.Context
	Priority JobPriority
	Action   models.Action
	result   chan error
}

func NewJob(ctx context.Context, action models.Action) *Job {
	return &Job{
		ctx:      ctx,
		Priority: PriorityFor(action.Type),
		Action:   action,
		result:   make(chan error, 1),
	}
}

// PriorityQueue is a FIFO per priority level. Dequeue always serves the
// highest non-empty level first.
type PriorityQueue struct {
	mu     sync.Mutex
	levels [PriorityCritical + 1][]*Job
	size   int
	ready  chan struct{}
}

func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{ready: make(chan struct{}, 1)}
}

func (pq *PriorityQueue) Enqueue(job *Job) {
	pq.mu.Lock()
	pq.levels[job.Priority] = append(pq.levels[job.Priority], job)
	pq.size++
	pq.mu.Unlock()

	select {
	case pq.ready <- struct{}{}:
	default:
	}
}

func (pq *PriorityQueue) Dequeue() (*Job, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	for p := len(pq.levels) - 1; p >= 0; p-- {
		if len(pq.levels[p]) == 0 {
			continue
		}
		job := pq.levels[p][0]
		pq.levels[p][0] = nil
		pq.levels[p] = pq.levels[p][1:]
		pq.size--
		if pq.size > 0 {
			select {
			case pq.ready <- struct{}{}:
			default:
			}
		}
		return job, true
	}
	return nil, false
}

// Ready fires whenever the queue may hold work.
func (pq *PriorityQueue) Ready() <-chan struct{} {
	return pq.ready
}

func (pq *PriorityQueue) Size() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.size
}
