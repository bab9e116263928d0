package peertrust

import (
	"errors"
	"sync"
)

// ErrStaleCheck is returned for a decision that belongs to another check
// than the live one.
var ErrStaleCheck = errors.New("peertrust: decision for a replaced check")

type key struct {
	session string
	peer    string
}

type entry struct {
	check string
	p     *Process
}

// early is a message of the other side that arrived before its check was
// started locally.
type early struct {
	check    string
	decision *bool
	aborted  bool
}

// Registry owns the live processes of one client. Every process belongs to
// one check, identified by the id the joining side picks when it asks for
// the check. Messages carrying another id never touch it.
type Registry struct {
	mu    sync.Mutex
	procs map[key]entry
	early map[key]early
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		procs: make(map[key]entry),
		early: make(map[key]early),
	}
}

// Start returns the process of check for (session, peer), creating it if
// needed. A live process of another check is aborted and replaced. Buffered
// messages are applied only when they belong to check.
func (r *Registry) Start(session, peer, check string) (p *Process, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{session, peer}
	if cur, ok := r.procs[k]; ok {
		if cur.check == check {
			return cur.p, false
		}
		cur.p.Abort()
	}
	p = New()
	if e, ok := r.early[k]; ok {
		delete(r.early, k)
		if e.check == check {
			if e.decision != nil {
				_ = p.SetOtherPartyChecked(*e.decision)
			}
			if e.aborted {
				p.Abort()
			}
		}
	}
	r.procs[k] = entry{check: check, p: p}
	return p, true
}

// Get returns the live process for (session, peer).
func (r *Registry) Get(session, peer string) (*Process, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.procs[key{session, peer}]
	return cur.p, ok
}

// RecordOtherDecision applies the peer's decision in check and returns the
// process it applied to. Without a live process the decision is buffered
// for Start and the returned process is nil.
func (r *Registry) RecordOtherDecision(session, peer, check string, trusted bool) (*Process, error) {
	r.mu.Lock()
	k := key{session, peer}
	cur, ok := r.procs[k]
	if !ok {
		e := r.early[k]
		if e.check != check {
			e = early{check: check}
		}
		e.decision = &trusted
		r.early[k] = e
		r.mu.Unlock()
		return nil, nil
	}
	r.mu.Unlock()
	if cur.check != check {
		return nil, ErrStaleCheck
	}
	return cur.p, cur.p.SetOtherPartyChecked(trusted)
}

// Abort aborts the process of check for (session, peer), or remembers the
// abort for Start.
func (r *Registry) Abort(session, peer, check string) error {
	r.mu.Lock()
	k := key{session, peer}
	cur, ok := r.procs[k]
	if !ok {
		e := r.early[k]
		if e.check != check {
			e = early{check: check}
		}
		e.aborted = true
		r.early[k] = e
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	if cur.check != check {
		return ErrStaleCheck
	}
	cur.p.Abort()
	return nil
}

// Finish removes the process for (session, peer) if it is still p.
func (r *Registry) Finish(session, peer string, p *Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{session, peer}
	if cur, ok := r.procs[k]; ok && cur.p == p {
		delete(r.procs, k)
	}
}

// ForgetSession aborts and drops every process and buffered message of a
// session.
func (r *Registry) ForgetSession(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, cur := range r.procs {
		if k.session == session {
			cur.p.Abort()
			delete(r.procs, k)
		}
	}
	for k := range r.early {
		if k.session == session {
			delete(r.early, k)
		}
	}
}

// Len returns the number of live processes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}
