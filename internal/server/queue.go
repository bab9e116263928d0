package server

import (
	"context"
	"sync"
	"time"

	"synctrust/internal/domain/types"
)

// queue holds the unacknowledged events of one client instance.
type queue struct {
	mu     sync.Mutex
	seq    uint64
	events []types.EventEnvelope
	limit  int
	wake   chan struct{}

	onDrop func()
}

func newQueue(limit int, onDrop func()) *queue {
	return &queue{limit: limit, wake: make(chan struct{}), onDrop: onDrop}
}

func (q *queue) push(env types.EventEnvelope) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	env.Seq = q.seq
	env.Timestamp = time.Now().UTC()
	q.events = append(q.events, env)
	if q.limit > 0 && len(q.events) > q.limit {
		q.events = q.events[1:]
		if q.onDrop != nil {
			q.onDrop()
		}
	}
	close(q.wake)
	q.wake = make(chan struct{})
}

// fetch returns the queued events, waiting up to wait for one to arrive when
// the queue is empty.
func (q *queue) fetch(ctx context.Context, wait time.Duration) []types.EventEnvelope {
	q.mu.Lock()
	if len(q.events) > 0 || wait <= 0 {
		out := append([]types.EventEnvelope(nil), q.events...)
		q.mu.Unlock()
		return out
	}
	wake := q.wake
	q.mu.Unlock()

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-wake:
	case <-t.C:
	case <-ctx.Done():
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]types.EventEnvelope(nil), q.events...)
}

// ack drops every event with a sequence number up to upTo.
func (q *queue) ack(upTo uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := 0
	for i < len(q.events) && q.events[i].Seq <= upTo {
		i++
	}
	q.events = q.events[i:]
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
