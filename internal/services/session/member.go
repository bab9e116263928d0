package session

import (
	"context"
	"crypto/subtle"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/util/memzero"
)

func (s *Service) memberContext() (context.Context, context.CancelFunc) {
	ctx, cancel := s.Context(context.Background())
	ctx, cancelWait := context.WithTimeout(ctx, s.timing.WaitTimeSpan)
	return ctx, func() {
		cancelWait()
		cancel()
	}
}

// onAskPasswordExchangeKey answers a joiner that asked us, as validator,
// for the key to encrypt its password to. Joiners whose key we do not
// trust get no answer.
func (s *Service) onAskPasswordExchangeKey(ev types.AskPasswordExchangeKeyEvent) {
	if _, ok := s.conns.Session(ev.SessionID); !ok {
		return
	}
	s.Go(func() {
		ctx, cancel := s.memberContext()
		defer cancel()

		trusted, err := s.store.IsTrusted(ev.PublicKeyInfo)
		if err != nil || !trusted || ev.PublicKeyInfo.ClientID != ev.From.ClientID {
			s.log.Warningf("Session %s: not giving exchange key to untrusted %s", ev.SessionID, ev.From.InstanceID)
			return
		}
		st, err := s.relay.GivePasswordExchangeKey(ctx, ev.SessionID, types.GivePasswordExchangeKeyRequest{
			To:            ev.From.InstanceID,
			PublicKeyInfo: s.party.PublicKeyInfo(),
		})
		if err != nil || st != types.RelayOk {
			s.log.Warningf("Session %s: failed to give exchange key to %s: %v %s", ev.SessionID, ev.From.InstanceID, err, st)
		}
	})
}

// onAskJoinCloudSession checks a joiner's password and either seals the
// session key to it or reports the password as wrong.
func (s *Service) onAskJoinCloudSession(ev types.AskJoinCloudSessionEvent) {
	sess, ok := s.conns.Session(ev.SessionID)
	if !ok {
		return
	}
	s.Go(func() {
		defer memzero.Zero(sess.SessionKey, sess.Password)
		ctx, cancel := s.memberContext()
		defer cancel()

		joiner := ev.From.InstanceID
		rec, ok, err := s.store.Get(ev.From.ClientID)
		if err != nil || !ok {
			s.log.Warningf("Session %s: join request from untrusted %s", ev.SessionID, joiner)
			return
		}

		if !s.passwordMatches(sess.Password, ev.EncryptedPassword) {
			s.log.Infof("Session %s: %s gave a wrong password", ev.SessionID, joiner)
			st, err := s.relay.InformPasswordIsWrong(ctx, ev.SessionID, types.InformPasswordIsWrongRequest{Joiner: joiner})
			if err != nil || st != types.RelayOk {
				s.log.Warningf("Session %s: failed to reject %s: %v %s", ev.SessionID, joiner, err, st)
			}
			return
		}

		sealed, err := crypto.Encrypt(rec.PublicKey, sess.SessionKey)
		if err != nil {
			s.log.Errorf("Session %s: failed to seal session key for %s: %v", ev.SessionID, joiner, err)
			return
		}
		st, err := s.relay.ValidateJoinCloudSession(ctx, ev.SessionID, types.ValidateJoinCloudSessionRequest{
			Joiner:              joiner,
			EncryptedSessionKey: sealed,
		})
		if err != nil || st != types.RelayOk {
			s.log.Warningf("Session %s: failed to validate %s: %v %s", ev.SessionID, joiner, err, st)
			return
		}
		s.log.Infof("Session %s: validated %s", ev.SessionID, joiner)
	})
}

func (s *Service) passwordMatches(want, sealed []byte) bool {
	got, err := crypto.Decrypt(s.party.Identity, sealed)
	if err != nil {
		return false
	}
	defer memzero.Zero(got)
	return len(want) > 0 && subtle.ConstantTimeCompare(want, got) == 1
}

func (s *Service) onMemberJoinedSession(ev types.MemberJoinedSessionEvent) {
	s.conns.UpdateMembers(ev.SessionID, func(ms []domain.SessionMember) []domain.SessionMember {
		for _, m := range ms {
			if m.Endpoint.InstanceID == ev.Member.Endpoint.InstanceID {
				return ms
			}
		}
		return append(ms, ev.Member)
	})
	s.log.Infof("Session %s: %s joined", ev.SessionID, ev.Member.Endpoint.InstanceID)
}

func (s *Service) onMemberQuittedSession(ev types.MemberQuittedSessionEvent) {
	s.conns.UpdateMembers(ev.SessionID, func(ms []domain.SessionMember) []domain.SessionMember {
		out := make([]domain.SessionMember, 0, len(ms))
		for _, m := range ms {
			if m.Endpoint.InstanceID != ev.From.InstanceID {
				out = append(out, m)
			}
		}
		return out
	})
	s.log.Infof("Session %s: %s left", ev.SessionID, ev.From.InstanceID)
}
