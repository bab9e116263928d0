package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/op/go-logging.v1"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/events"
	"synctrust/internal/services/connection"
	"synctrust/internal/util/memzero"
	"synctrust/internal/util/worker"
)

// Timing bounds the waits of joins.
type Timing struct {
	// WaitTimeSpan bounds every wait on a relayed answer.
	WaitTimeSpan time.Duration
	// FinalizeRetries is how many times finalization is attempted while
	// signatures are not cross-verified yet.
	FinalizeRetries int
	// FinalizeRetryDelay is the pause between finalization attempts.
	FinalizeRetryDelay time.Duration
}

// Service implements domain.SessionService.
type Service struct {
	worker.Worker

	party  domain.LocalParty
	relay  domain.RelayClient
	trust  domain.TrustVerifier
	sigs   domain.SignatureExchanger
	store  domain.TrustStore
	conns  *connection.Store
	bus    *events.Bus
	log    *logging.Logger
	timing Timing

	unsub []func()
}

var _ domain.SessionService = (*Service)(nil)

// New returns a Service subscribed to the member side events of bus. Call
// Close to unsubscribe. Joins subscribe to their answers for as long as they
// run.
func New(
	party domain.LocalParty,
	relay domain.RelayClient,
	trust domain.TrustVerifier,
	sigs domain.SignatureExchanger,
	store domain.TrustStore,
	conns *connection.Store,
	bus *events.Bus,
	log *logging.Logger,
	timing Timing,
) *Service {
	s := &Service{
		party:  party,
		relay:  relay,
		trust:  trust,
		sigs:   sigs,
		store:  store,
		conns:  conns,
		bus:    bus,
		log:    log,
		timing: timing,
	}
	s.unsub = []func(){
		bus.AskPasswordExchangeKey.Subscribe(s.onAskPasswordExchangeKey),
		bus.AskJoinCloudSession.Subscribe(s.onAskJoinCloudSession),
		bus.MemberJoinedSession.Subscribe(s.onMemberJoinedSession),
		bus.MemberQuittedSession.Subscribe(s.onMemberQuittedSession),
	}
	return s
}

// Close unsubscribes from the bus and waits for member side work.
func (s *Service) Close() {
	for _, fn := range s.unsub {
		fn()
	}
	s.Halt()
}

// Status returns the connection status of sessionID.
func (s *Service) Status(sessionID domain.SessionID) domain.SessionConnectionStatus {
	return s.conns.Status(sessionID)
}

// Session returns the info of a joined session.
func (s *Service) Session(sessionID domain.SessionID) (domain.SessionInfo, bool) {
	sess, ok := s.conns.Session(sessionID)
	if !ok {
		return domain.SessionInfo{}, false
	}
	memzero.Zero(sess.SessionKey, sess.Password)
	return sess.Info, true
}

// CancelJoin aborts the join or creation of sessionID. It reports whether
// an attempt was running.
func (s *Service) CancelJoin(sessionID domain.SessionID) bool {
	return s.conns.Cancel(sessionID)
}

// CreateSession opens a new session on the relay with us as its only member
// and validator.
func (s *Service) CreateSession(ctx context.Context, password string) (domain.SessionInfo, error) {
	if password == "" {
		return domain.SessionInfo{}, errors.New("session: empty password")
	}
	// The relay assigns the id; hold the attempt under a placeholder.
	a, err := s.conns.Begin(ctx, domain.SessionID("pending-"+uuid.NewString()), password, types.StatusCreatingSession, s.timing.WaitTimeSpan)
	if err != nil {
		return domain.SessionInfo{}, err
	}
	defer s.conns.End(a)

	key, err := crypto.NewSessionKey()
	if err != nil {
		return domain.SessionInfo{}, err
	}
	a.SetSessionKey(key)
	memzero.Zero(key)

	resp, err := s.relay.CreateSession(a.Context(), types.CreateSessionRequest{ProtocolVersion: s.party.ProtocolVersion()})
	if err != nil {
		return domain.SessionInfo{}, fmt.Errorf("session: create: %w", err)
	}
	if resp.Status != types.RelayOk {
		return domain.SessionInfo{}, fmt.Errorf("session: create: relay answered %s", resp.Status)
	}
	if err := s.conns.Rekey(a, resp.Session.SessionID); err != nil {
		return domain.SessionInfo{}, err
	}
	if err := s.conns.Promote(a, resp.Session); err != nil {
		return domain.SessionInfo{}, err
	}
	s.log.Noticef("Created session %s", resp.Session.SessionID)
	return resp.Session, nil
}

// QuitSession leaves a joined session.
func (s *Service) QuitSession(ctx context.Context, sessionID domain.SessionID) error {
	if _, ok := s.conns.Session(sessionID); !ok {
		return ErrNotInSession
	}
	st, err := s.relay.QuitSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session: quit: %w", err)
	}
	if st != types.RelayOk && st != types.RelaySessionNotFound {
		s.log.Warningf("Relay answered %s to quitting %s", st, sessionID)
	}
	s.conns.Leave(sessionID)
	s.trust.Forget(sessionID)
	s.sigs.Forget(sessionID)
	s.log.Noticef("Left session %s", sessionID)
	return nil
}
