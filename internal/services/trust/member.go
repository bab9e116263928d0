package trust

import (
	"context"
	"errors"

	"synctrust/internal/crypto"
	"synctrust/internal/domain/types"
	"synctrust/internal/protocol/peertrust"
)

func (s *Service) onAskPublicKeyCheckData(ev types.AskPublicKeyCheckDataEvent) {
	s.Go(func() {
		ctx, cancel := s.Context(context.Background())
		defer cancel()
		ctx, cancelWait := context.WithTimeout(ctx, s.timing.WaitTimeSpan)
		defer cancelWait()

		mine := s.myKeyInfo()
		if v := s.party.ProtocolVersion(); ev.ProtocolVersion != v {
			s.log.Warningf("Session %s: %s speaks protocol v%d, we speak v%d",
				ev.SessionID, ev.From.InstanceID, ev.ProtocolVersion, v)
			_, err := s.relay.InformProtocolVersionIncompatible(ctx, ev.SessionID, types.InformProtocolVersionIncompatibleRequest{
				To:                  ev.From.InstanceID,
				ProtocolVersion:     v,
				PeerProtocolVersion: ev.ProtocolVersion,
			})
			if err != nil {
				s.log.Warningf("Session %s: failed to report incompatibility: %v", ev.SessionID, err)
			}
			return
		}

		trusted, err := s.store.IsTrusted(ev.PublicKeyInfo)
		if err != nil {
			s.log.Errorf("Trust store lookup failed: %v", err)
		}
		st, err := s.relay.GiveMemberPublicKeyCheckData(ctx, ev.SessionID, types.GiveMemberPublicKeyCheckDataRequest{
			To: ev.From.InstanceID,
			CheckData: types.PublicKeyCheckData{
				IssuerPublicKeyInfo:    mine,
				IssuerClientInstanceID: s.party.Endpoint.InstanceID,
				IssuerPublicKeyHash:    crypto.Fingerprint(mine.PublicKey),
				ProtocolVersion:        s.party.ProtocolVersion(),
				IsTrustedByIssuer:      trusted,
			},
		})
		if err != nil || st != types.RelayOk {
			s.log.Warningf("Session %s: failed to give check data to %s: %v %s", ev.SessionID, ev.From.InstanceID, err, st)
		}
	})
}

func (s *Service) onRequestTrustPublicKey(ev types.RequestTrustPublicKeyEvent) {
	if ev.PublicKeyInfo.ClientID != ev.From.ClientID {
		s.log.Warningf("Session %s: %s asked to trust a key of %s", ev.SessionID, ev.From.InstanceID, ev.PublicKeyInfo.ClientID)
		return
	}
	s.Go(func() {
		ctx, cancel := s.Context(context.Background())
		defer cancel()
		err := s.checkPair(ctx, pair{
			sessionID:    ev.SessionID,
			check:        ev.CheckID,
			peer:         ev.From,
			peerKey:      ev.PublicKeyInfo,
			clientIndex:  ev.ClientIndex,
			clientsCount: ev.ClientsCount,
		})
		if err != nil {
			s.log.Infof("Session %s: key of %s not trusted: %v", ev.SessionID, ev.From.InstanceID, err)
		}
	})
}

// onValidationFinished routes the peer's decision to the process of the
// same check. It serves both sides. A pair resolved as trusted is persisted
// before the next event is dispatched, so requests that follow the decision
// see the key.
func (s *Service) onValidationFinished(ev types.InformPublicKeyValidationIsFinishedEvent) {
	sid, peer := ev.SessionID, ev.From.InstanceID
	if ev.Aborted {
		if err := s.procs.Abort(string(sid), string(peer), ev.CheckID); err != nil {
			s.log.Debugf("Session %s: abort from %s ignored: %v", sid, peer, err)
		}
		return
	}
	p, err := s.procs.RecordOtherDecision(string(sid), string(peer), ev.CheckID, ev.IsTrusted)
	switch {
	case errors.Is(err, peertrust.ErrStaleCheck):
		s.log.Debugf("Session %s: decision of %s ignored: %v", sid, peer, err)
		return
	case err != nil:
		s.log.Warningf("Session %s: %s changed its decision: %v", sid, peer, err)
		return
	}
	if p == nil || p.Outcome() != peertrust.Trusted {
		return
	}
	if err := s.persist(peerKey{sid, peer, ev.CheckID}); err != nil {
		s.log.Errorf("Session %s: %v", sid, err)
	}
}
