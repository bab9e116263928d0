package peertrust

import (
	"context"
	"errors"
	"sync"
)

// State is the progress of a Process.
type State int

const (
	Unchecked State = iota
	MyDecisionRecorded
	OtherDecisionRecorded
	BothDecided
)

func (s State) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case MyDecisionRecorded:
		return "my-decision-recorded"
	case OtherDecisionRecorded:
		return "other-decision-recorded"
	case BothDecided:
		return "both-decided"
	default:
		return "unknown"
	}
}

// Outcome is the resolution of a Process.
type Outcome int

const (
	Pending Outcome = iota
	Trusted
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Trusted:
		return "trusted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ErrDecisionConflict is returned when a side tries to change a decision it
// already recorded.
var ErrDecisionConflict = errors.New("peertrust: decision already recorded with a different value")

// Process is the bilateral confirmation state of one pairwise trust check.
// The zero value is not usable; use New.
type Process struct {
	mu      sync.Mutex
	my      *bool
	other   *bool
	aborted bool

	otherCh chan struct{}
	abortCh chan struct{}
}

// New returns an unchecked Process.
func New() *Process {
	return &Process{otherCh: make(chan struct{}), abortCh: make(chan struct{})}
}

// SetMyPartyChecked records the local decision. Recording the same value
// again is a no-op.
func (p *Process) SetMyPartyChecked(trusted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return set(&p.my, trusted, nil)
}

// SetOtherPartyChecked records the remote decision. Recording the same value
// again is a no-op.
func (p *Process) SetOtherPartyChecked(trusted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return set(&p.other, trusted, p.otherCh)
}

func set(slot **bool, v bool, ch chan struct{}) error {
	if *slot != nil {
		if **slot != v {
			return ErrDecisionConflict
		}
		return nil
	}
	*slot = &v
	if ch != nil {
		close(ch)
	}
	return nil
}

// MyPartyChecked returns the local decision and whether it was recorded.
func (p *Process) MyPartyChecked() (trusted, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.my == nil {
		return false, false
	}
	return *p.my, true
}

// OtherPartyChecked returns the remote decision and whether it was recorded.
func (p *Process) OtherPartyChecked() (trusted, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.other == nil {
		return false, false
	}
	return *p.other, true
}

// State reports which decisions have been recorded.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.my != nil && p.other != nil:
		return BothDecided
	case p.my != nil:
		return MyDecisionRecorded
	case p.other != nil:
		return OtherDecisionRecorded
	default:
		return Unchecked
	}
}

// Outcome resolves the pair. A reject from either side is final even while
// the other side is still undecided.
func (p *Process) Outcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcomeLocked()
}

func (p *Process) outcomeLocked() Outcome {
	if (p.my != nil && !*p.my) || (p.other != nil && !*p.other) {
		return Rejected
	}
	if p.my != nil && p.other != nil {
		return Trusted
	}
	if p.aborted {
		return Rejected
	}
	return Pending
}

// Abort ends a check that cannot resolve any more, because the other side
// gave up or a newer check replaced it. An unresolved pair becomes Rejected;
// a pair already Trusted stays Trusted.
func (p *Process) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.aborted {
		p.aborted = true
		close(p.abortCh)
	}
}

// Aborted is closed by Abort.
func (p *Process) Aborted() <-chan struct{} {
	return p.abortCh
}

// WasAborted reports whether Abort was called.
func (p *Process) WasAborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted
}

// OtherDecided is closed once the other side's decision is recorded.
func (p *Process) OtherDecided() <-chan struct{} {
	return p.otherCh
}

// WaitForPeerTrustProcessFinished blocks until the other side has decided,
// the process was aborted or ctx is done, and returns the outcome at that
// point.
func (p *Process) WaitForPeerTrustProcessFinished(ctx context.Context) (Outcome, error) {
	select {
	case <-p.otherCh:
		return p.Outcome(), nil
	case <-p.abortCh:
		return p.Outcome(), nil
	case <-ctx.Done():
		return p.Outcome(), ctx.Err()
	}
}

// Settle records a local reject if no local decision exists yet. It reports
// whether a decision was recorded, in which case the caller must inform the
// other side.
func (p *Process) Settle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.my != nil {
		return false
	}
	_ = set(&p.my, false, nil)
	return true
}
