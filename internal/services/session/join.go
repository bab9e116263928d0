package session

import (
	"context"
	"errors"
	"time"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/events"
	"synctrust/internal/protocol/signal"
	"synctrust/internal/services/connection"
	"synctrust/internal/util/memzero"
)

// JoinSession joins sessionID with password.
//
// Steps:
//  1. Register the attempt; joining a session twice fails.
//  2. Establish trust in the key of every current member.
//  3. Ask the validator for its exchange key and encrypt the password to it.
//  4. Wait for the validator's verdict and decrypt the session key.
//  5. Check members that joined meanwhile, cross-verify signatures with
//     every member and finalize.
//
// The attempt is removed on every exit path. A failed attempt also leaves
// the relay's pre-members. Failures are *JoinError.
func (s *Service) JoinSession(
	ctx context.Context,
	sessionID domain.SessionID,
	password string,
	opts domain.JoinOptions,
) (domain.SessionInfo, error) {
	a, err := s.conns.Begin(ctx, sessionID, password, types.StatusJoiningSession, s.timing.WaitTimeSpan)
	if err != nil {
		if errors.Is(err, connection.ErrAlreadyConnected) {
			return domain.SessionInfo{}, joinErr(types.JoinAlreadyInSession, err)
		}
		return domain.SessionInfo{}, joinErr(types.JoinUnexpectedError, err)
	}
	defer s.conns.End(a)
	defer s.listen(a)()
	defer s.trust.Forget(sessionID)
	s.sigs.Track(sessionID)
	defer s.sigs.Forget(sessionID)

	info, jerr := s.join(a, opts)
	if jerr != nil {
		s.log.Warningf("Joining %s failed: %v", sessionID, jerr)
		s.withdraw(sessionID)
		return domain.SessionInfo{}, jerr
	}
	if err := s.conns.Promote(a, info); err != nil {
		return domain.SessionInfo{}, joinErr(types.JoinUnexpectedError, err)
	}
	s.log.Noticef("Joined session %s with %d members", sessionID, len(info.Members))
	return info, nil
}

func (s *Service) join(a *connection.Attempt, opts domain.JoinOptions) (domain.SessionInfo, *JoinError) {
	ctx := a.Context()
	sid := a.SessionID

	res, err := s.trust.TrustAllMembersPublicKeys(ctx, sid)
	if err != nil || !res.OK {
		return domain.SessionInfo{}, s.trustFailed(ctx, res, err)
	}

	st, err := s.relay.AskPasswordExchangeKey(ctx, sid, types.AskPasswordExchangeKeyRequest{
		PublicKeyInfo:   s.party.PublicKeyInfo(),
		ProfileClientID: opts.ProfileClientID,
		LobbyID:         opts.LobbyID,
	})
	if err != nil {
		return domain.SessionInfo{}, relayFailed(ctx, "ask password exchange key", err)
	}
	if st != types.RelayOk {
		return domain.SessionInfo{}, relayRefused("ask password exchange key", st)
	}

	keyEv, jerr := wait(ctx, a.PasswordExchangeKey, a.WaitTimeSpan)
	if jerr != nil {
		return domain.SessionInfo{}, jerr
	}
	trusted, err := s.store.IsTrusted(keyEv.PublicKeyInfo)
	if err != nil {
		return domain.SessionInfo{}, joinErr(types.JoinUnexpectedError, err)
	}
	if !trusted || keyEv.PublicKeyInfo.ClientID != keyEv.From.ClientID {
		return domain.SessionInfo{}, joinErr(types.JoinUntrustedPublicKey, ErrUntrustedValidator)
	}

	pw := a.Password()
	sealed, err := crypto.Encrypt(keyEv.PublicKeyInfo.PublicKey, pw)
	memzero.Zero(pw)
	if err != nil {
		return domain.SessionInfo{}, joinErr(types.JoinUnexpectedError, err)
	}
	st, err = s.relay.AskJoinCloudSession(ctx, sid, types.AskJoinCloudSessionRequest{EncryptedPassword: sealed})
	if err != nil {
		return domain.SessionInfo{}, relayFailed(ctx, "ask join", err)
	}
	if st != types.RelayOk {
		return domain.SessionInfo{}, relayRefused("ask join", st)
	}

	out, jerr := wait(ctx, a.JoinResult, a.WaitTimeSpan)
	if jerr != nil {
		return domain.SessionInfo{}, jerr
	}
	if out.WrongPassword || out.Joined == nil {
		return domain.SessionInfo{}, joinErr(types.JoinWrongPassword, nil)
	}
	joined := out.Joined

	key, err := crypto.Decrypt(s.party.Identity, joined.EncryptedSessionKey)
	if err != nil {
		return domain.SessionInfo{}, joinErr(types.JoinUnexpectedError, err)
	}
	if len(key) != crypto.SessionKeySize {
		memzero.Zero(key)
		return domain.SessionInfo{}, joinErr(types.JoinUnexpectedError, errors.New("session: malformed session key"))
	}
	a.SetSessionKey(key)
	memzero.Zero(key)

	ids := make([]domain.InstanceID, 0, len(joined.Session.Members))
	for _, m := range joined.Session.Members {
		ids = append(ids, m.Endpoint.InstanceID)
	}
	res, err = s.trust.TrustMissingMembersPublicKeys(ctx, sid, ids)
	if err != nil || !res.OK {
		return domain.SessionInfo{}, s.trustFailed(ctx, res, err)
	}

	if err := s.sigs.SendToMembers(ctx, sid, joined.Session.Members); err != nil {
		return domain.SessionInfo{}, relayFailed(ctx, "send signatures", err)
	}
	return s.finalize(ctx, sid, joined.Session.Members)
}

func (s *Service) trustFailed(ctx context.Context, res domain.TrustResult, err error) *JoinError {
	if ctx.Err() != nil {
		return stopped(ctx)
	}
	st := res.Status
	if st == "" || st == types.JoinOk {
		st = types.JoinUnexpectedError
	}
	return joinErr(st, err)
}

// finalize asks the relay to admit us, retrying while it has not seen every
// signature cross-verified yet.
func (s *Service) finalize(ctx context.Context, sid domain.SessionID, members []domain.SessionMember) (domain.SessionInfo, *JoinError) {
	attempts := max(s.timing.FinalizeRetries, 1)
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return domain.SessionInfo{}, stopped(ctx)
			case <-time.After(s.timing.FinalizeRetryDelay):
			}
			// Members whose answer was not verified yet get our
			// signature again.
			if err := s.sigs.SendToMembers(ctx, sid, members); err != nil {
				s.log.Warningf("Session %s: resending signatures failed: %v", sid, err)
			}
		}

		resp, err := s.relay.FinalizeJoinCloudSession(ctx, sid)
		if err != nil {
			return domain.SessionInfo{}, relayFailed(ctx, "finalize", err)
		}
		switch resp.Status {
		case types.RelayOk:
			return resp.Session, nil
		case types.RelayAuthIsNotChecked:
			s.log.Debugf("Session %s: finalize attempt %d/%d: signatures not cross-verified yet", sid, i+1, attempts)
		default:
			return domain.SessionInfo{}, relayRefused("finalize", resp.Status)
		}
	}
	return domain.SessionInfo{}, joinErr(types.JoinRelayRejected, ErrAuthNotChecked)
}

// wait races f against ctx and the wait span of the attempt.
func wait[T any](ctx context.Context, f *signal.Future[T], span time.Duration) (T, *JoinError) {
	v, out := f.Wait(ctx, span)
	switch out {
	case signal.Cancelled:
		return v, stopped(ctx)
	case signal.TimedOut:
		return v, joinErr(types.JoinTimeout, signal.ErrTimeout)
	default:
		return v, nil
	}
}

// listen routes the validator's answers for a to its futures until the
// returned func is called.
func (s *Service) listen(a *connection.Attempt) (unsubscribe func()) {
	sid := a.SessionID
	unsub := []func(){
		s.bus.GivePasswordExchangeKey.Subscribe(events.ForSession(sid, func(ev types.GivePasswordExchangeKeyEvent) {
			a.PasswordExchangeKey.Set(ev)
		})),
		s.bus.YouJoinedSession.Subscribe(events.ForSession(sid, func(ev types.YouJoinedSessionEvent) {
			a.JoinResult.Set(connection.JoinOutcome{Joined: &ev})
		})),
		s.bus.YouGaveAWrongPassword.Subscribe(events.ForSession(sid, func(types.YouGaveAWrongPasswordEvent) {
			a.JoinResult.Set(connection.JoinOutcome{WrongPassword: true})
		})),
	}
	return func() {
		for _, fn := range unsub {
			fn()
		}
	}
}

// withdraw leaves the pre-members of sessionID after a failed join, even
// when the join was cancelled.
func (s *Service) withdraw(sessionID domain.SessionID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timing.WaitTimeSpan)
	defer cancel()
	st, err := s.relay.QuitSession(ctx, sessionID)
	if err != nil {
		s.log.Debugf("Session %s: leaving pre-members failed: %v", sessionID, err)
		return
	}
	if st != types.RelayOk {
		s.log.Debugf("Session %s: relay answered %s to leaving pre-members", sessionID, st)
	}
}
