package trust

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gopkg.in/op/go-logging.v1"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/events"
	"synctrust/internal/protocol/peertrust"
	"synctrust/internal/util/worker"
)

// informTimeout bounds the reject or abort sent to a peer when a check ends
// early.
const informTimeout = 5 * time.Second

// Timing bounds the waits of the trust protocol.
type Timing struct {
	// WaitTimeSpan bounds every wait on a relayed answer.
	WaitTimeSpan time.Duration
	// PeerTrustWait bounds the wait for the peer's decision once ours is
	// recorded.
	PeerTrustWait time.Duration
}

// Service runs both sides of the trust protocol for one local party.
type Service struct {
	worker.Worker

	party   domain.LocalParty
	relay   domain.RelayClient
	store   domain.TrustStore
	confirm domain.Confirmer
	bus     *events.Bus
	procs   *peertrust.Registry
	log     *logging.Logger
	timing  Timing

	mu      sync.Mutex
	checked map[domain.SessionID]map[domain.InstanceID]bool
	// pending holds the keys we trusted while the peer's decision is
	// outstanding. Whoever sees the pair resolve first persists the key.
	pending map[peerKey]domain.TrustedPublicKey
	unsub   []func()
}

type peerKey struct {
	session domain.SessionID
	peer    domain.InstanceID
	check   string
}

var _ domain.TrustVerifier = (*Service)(nil)

// New returns a Service subscribed to the member side events of bus. Call
// Close to unsubscribe and stop running checks.
func New(
	party domain.LocalParty,
	relay domain.RelayClient,
	store domain.TrustStore,
	confirm domain.Confirmer,
	bus *events.Bus,
	log *logging.Logger,
	timing Timing,
) *Service {
	s := &Service{
		party:   party,
		relay:   relay,
		store:   store,
		confirm: confirm,
		bus:     bus,
		procs:   peertrust.NewRegistry(),
		log:     log,
		timing:  timing,
		checked: make(map[domain.SessionID]map[domain.InstanceID]bool),
		pending: make(map[peerKey]domain.TrustedPublicKey),
	}
	s.unsub = []func(){
		bus.AskPublicKeyCheckData.Subscribe(s.onAskPublicKeyCheckData),
		bus.RequestTrustPublicKey.Subscribe(s.onRequestTrustPublicKey),
		bus.InformPublicKeyValidationIsFinished.Subscribe(s.onValidationFinished),
	}
	return s
}

// Close unsubscribes from the bus and stops member side checks.
func (s *Service) Close() {
	for _, fn := range s.unsub {
		fn()
	}
	s.Halt()
}

// Forget drops the per-session state kept for sessionID.
func (s *Service) Forget(sessionID domain.SessionID) {
	s.procs.ForgetSession(string(sessionID))
	s.mu.Lock()
	delete(s.checked, sessionID)
	for k := range s.pending {
		if k.session == sessionID {
			delete(s.pending, k)
		}
	}
	s.mu.Unlock()
}

// ListTrusted returns every trusted key on record.
func (s *Service) ListTrusted() ([]domain.TrustedPublicKey, error) {
	return s.store.List()
}

// Revoke forgets the trusted key of clientID. The next join involving that
// client asks for confirmation again.
func (s *Service) Revoke(clientID domain.ClientID) error {
	return s.store.Revoke(clientID)
}

func (s *Service) markChecked(sessionID domain.SessionID, member domain.InstanceID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.checked[sessionID]
	if m == nil {
		m = make(map[domain.InstanceID]bool)
		s.checked[sessionID] = m
	}
	m[member] = true
}

func (s *Service) isChecked(sessionID domain.SessionID, member domain.InstanceID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked[sessionID][member]
}

func (s *Service) setPending(k peerKey, rec domain.TrustedPublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[k] = rec
}

func (s *Service) takePending(k peerKey) (domain.TrustedPublicKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.pending[k]
	delete(s.pending, k)
	return rec, ok
}

// persist stores the pending key of k, if nobody did yet.
func (s *Service) persist(k peerKey) error {
	rec, ok := s.takePending(k)
	if !ok {
		return nil
	}
	if err := s.store.Trust(rec); err != nil {
		return fmt.Errorf("trust: persist key of %s: %w", rec.ClientID, err)
	}
	s.log.Noticef("Session %s: trusted %s (%s)", k.session, rec.ClientID, crypto.ShortFingerprint(rec.PublicKeyHash))
	return nil
}

func (s *Service) myKeyInfo() domain.PublicKeyInfo { return s.party.PublicKeyInfo() }

func (s *Service) inform(ctx context.Context, pr pair, trusted bool) error {
	return s.finished(ctx, pr, types.InformPublicKeyValidationIsFinishedRequest{IsTrusted: trusted})
}

func (s *Service) finished(ctx context.Context, pr pair, req types.InformPublicKeyValidationIsFinishedRequest) error {
	req.To = pr.peer.InstanceID
	req.CheckID = pr.check
	st, err := s.relay.InformPublicKeyValidationIsFinished(ctx, pr.sessionID, req)
	if err != nil {
		return err
	}
	if st != types.RelayOk {
		return fmt.Errorf("%w: inform validation finished: %s", ErrRelay, st)
	}
	return nil
}
