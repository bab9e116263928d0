package trust

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/events"
	"synctrust/internal/protocol/signal"
)

// checkData collects the check data of members as it arrives, possibly
// before the member list is known.
type checkData struct {
	mu sync.Mutex
	m  map[domain.InstanceID]*signal.Future[types.PublicKeyCheckData]
}

func (c *checkData) get(id domain.InstanceID) *signal.Future[types.PublicKeyCheckData] {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.m[id]
	if !ok {
		f = signal.NewFuture[types.PublicKeyCheckData]()
		c.m[id] = f
	}
	return f
}

// TrustAllMembersPublicKeys checks the keys of every current member of
// sessionID.
func (s *Service) TrustAllMembersPublicKeys(ctx context.Context, sessionID domain.SessionID) (domain.TrustResult, error) {
	return s.trustMembers(ctx, sessionID, nil)
}

// TrustMissingMembersPublicKeys checks the members not checked yet during
// this join, such as members who joined meanwhile.
func (s *Service) TrustMissingMembersPublicKeys(
	ctx context.Context,
	sessionID domain.SessionID,
	members []domain.InstanceID,
) (domain.TrustResult, error) {
	var missing []domain.InstanceID
	for _, id := range members {
		if id != s.party.Endpoint.InstanceID && !s.isChecked(sessionID, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return domain.TrustResult{OK: true, Status: types.JoinOk}, nil
	}
	return s.trustMembers(ctx, sessionID, missing)
}

func (s *Service) trustMembers(ctx context.Context, sessionID domain.SessionID, only []domain.InstanceID) (domain.TrustResult, error) {
	fail := func(err error) (domain.TrustResult, error) {
		return domain.TrustResult{Status: Status(err)}, err
	}

	data := &checkData{m: make(map[domain.InstanceID]*signal.Future[types.PublicKeyCheckData])}
	incompatible := signal.NewFuture[types.InformProtocolVersionIncompatibleEvent]()

	// Subscribe before asking so no answer is missed.
	unsubData := s.bus.GiveMemberPublicKeyCheckData.Subscribe(events.ForSession(sessionID,
		func(ev types.GiveMemberPublicKeyCheckDataEvent) {
			data.get(ev.From.InstanceID).Set(ev.CheckData)
		}))
	defer unsubData()
	unsubIncompat := s.bus.InformProtocolVersionIncompatible.Subscribe(events.ForSession(sessionID,
		func(ev types.InformProtocolVersionIncompatibleEvent) {
			incompatible.Set(ev)
		}))
	defer unsubIncompat()

	resp, err := s.relay.StartTrustCheck(ctx, sessionID, types.StartTrustCheckRequest{
		ProtocolVersion: s.party.ProtocolVersion(),
		Members:         only,
	})
	if err != nil {
		return fail(fmt.Errorf("%w: start trust check: %v", ErrRelay, err))
	}
	switch resp.Status {
	case types.RelayOk:
	case types.RelayProtocolVersionIncompatible:
		s.log.Warningf("Session %s speaks protocol v%d, we speak v%d",
			sessionID, resp.SessionProtocolVersion, s.party.ProtocolVersion())
		return fail(fmt.Errorf("%w: session v%d, local v%d", ErrIncompatible, resp.SessionProtocolVersion, s.party.ProtocolVersion()))
	default:
		return domain.TrustResult{Status: resp.Status.JoinStatus()}, fmt.Errorf("%w: start trust check: %s", ErrRelay, resp.Status)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range resp.Members {
		g.Go(func() error {
			return s.checkMember(gctx, sessionID, m, i, len(resp.Members), data.get(m.Endpoint.InstanceID), incompatible)
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warningf("Session %s: trust check failed: %v", sessionID, err)
		return fail(err)
	}

	res := domain.TrustResult{OK: true, Status: types.JoinOk}
	for _, m := range resp.Members {
		res.CheckedMemberIDs = append(res.CheckedMemberIDs, m.Endpoint.InstanceID)
	}
	return res, nil
}

func (s *Service) checkMember(
	ctx context.Context,
	sessionID domain.SessionID,
	m domain.SessionMember,
	index, count int,
	data *signal.Future[types.PublicKeyCheckData],
	incompatible *signal.Future[types.InformProtocolVersionIncompatibleEvent],
) error {
	id := m.Endpoint.InstanceID

	t := time.NewTimer(s.timing.WaitTimeSpan)
	defer t.Stop()
	select {
	case <-data.Done():
	case <-incompatible.Done():
		ev, _ := incompatible.Peek()
		return fmt.Errorf("%w: member %s speaks v%d", ErrIncompatible, ev.From.InstanceID, ev.ProtocolVersion)
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return fmt.Errorf("trust: check data of %s: %w", id, signal.ErrTimeout)
	}
	cd, _ := data.Peek()

	if crypto.Fingerprint(cd.IssuerPublicKeyInfo.PublicKey) != cd.IssuerPublicKeyHash ||
		!bytes.Equal(cd.IssuerPublicKeyInfo.PublicKey, m.PublicKeyInfo.PublicKey) ||
		cd.IssuerPublicKeyInfo.ClientID != m.Endpoint.ClientID {
		return fmt.Errorf("%w: member %s", ErrKeyMismatch, id)
	}

	if mine := s.party.ProtocolVersion(); cd.ProtocolVersion != mine {
		_, err := s.relay.InformProtocolVersionIncompatible(ctx, sessionID, types.InformProtocolVersionIncompatibleRequest{
			To:                  id,
			ProtocolVersion:     mine,
			PeerProtocolVersion: cd.ProtocolVersion,
		})
		if err != nil {
			s.log.Warningf("Session %s: failed to report incompatibility to %s: %v", sessionID, id, err)
		}
		return fmt.Errorf("%w: member %s speaks v%d", ErrIncompatible, id, cd.ProtocolVersion)
	}

	trusted, err := s.store.IsTrusted(cd.IssuerPublicKeyInfo)
	if err != nil {
		return err
	}
	if trusted && cd.IsTrustedByIssuer {
		s.log.Debugf("Session %s: %s already trusted both ways", sessionID, id)
		s.markChecked(sessionID, id)
		return nil
	}

	err = s.checkPair(ctx, pair{
		sessionID:    sessionID,
		check:        uuid.NewString(),
		peer:         m.Endpoint,
		peerKey:      cd.IssuerPublicKeyInfo,
		clientIndex:  index,
		clientsCount: count,
		joinerSide:   true,
	})
	if err != nil {
		return err
	}
	s.markChecked(sessionID, id)
	return nil
}
