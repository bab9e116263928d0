package events

import (
	"sync"

	"synctrust/internal/domain"
)

// Topic fans out values of one type to its subscribers.
type Topic[T any] struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]func(T)
}

// Subscribe registers fn and returns the func that removes it. Calling the
// returned func more than once is harmless.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	if t.subs == nil {
		t.subs = make(map[uint64]func(T))
	}
	id := t.next
	t.next++
	t.subs[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}

// Publish delivers v to every current subscriber and returns how many there
// were.
func (t *Topic[T]) Publish(v T) int {
	t.mu.RLock()
	fns := make([]func(T), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
	return len(fns)
}

// Len returns the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Sessioned is implemented by every event through its embedded header.
type Sessioned interface {
	Session() domain.SessionID
}

// ForSession wraps fn so it only sees events of one session.
func ForSession[T Sessioned](sessionID domain.SessionID, fn func(T)) func(T) {
	return func(ev T) {
		if ev.Session() == sessionID {
			fn(ev)
		}
	}
}
