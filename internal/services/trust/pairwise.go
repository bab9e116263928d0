package trust

import (
	"context"
	"fmt"
	"time"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/protocol/peertrust"
)

// pair describes one pairwise check from our side.
type pair struct {
	sessionID    domain.SessionID
	check        string
	peer         domain.ClientEndpoint
	peerKey      domain.PublicKeyInfo
	clientIndex  int
	clientsCount int
	joinerSide   bool
}

// checkPair runs our half of a pairwise check with safety words and
// persists the peer's key when both sides trust each other.
//
// Steps:
//  1. Start the peer process and derive the safety key. A process of an
//     older check with the same peer is aborted.
//  2. On the joiner side, ask the member to start its half.
//  3. Ask the local user to compare the safety words. A reject or an abort
//     from the peer withdraws the question.
//  4. Record and announce our decision, then wait for the peer's.
//
// Every error path leaves the peer with a final answer: a reject when we
// had not decided yet, an abort when we had trusted it.
func (s *Service) checkPair(ctx context.Context, pr pair) (err error) {
	peerID := string(pr.peer.InstanceID)
	p, created := s.procs.Start(string(pr.sessionID), peerID, pr.check)
	if !created {
		s.log.Debugf("Session %s: check %s with %s is already running", pr.sessionID, pr.check, pr.peer.InstanceID)
		return nil
	}
	defer s.procs.Finish(string(pr.sessionID), peerID, p)
	defer func() {
		if err != nil {
			s.release(pr, p)
		}
	}()

	mine := s.myKeyInfo()
	sk, err := crypto.ComputeSafetyKey(mine.PublicKey, pr.peerKey.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}

	if pr.joinerSide {
		st, err := s.relay.RequestTrustPublicKey(ctx, pr.sessionID, types.RequestTrustPublicKeyRequest{
			To:            pr.peer.InstanceID,
			CheckID:       pr.check,
			PublicKeyInfo: mine,
			ClientIndex:   pr.clientIndex,
			ClientsCount:  pr.clientsCount,
		})
		if err != nil {
			return err
		}
		if st != types.RelayOk {
			return fmt.Errorf("%w: request trust public key: %s", ErrRelay, st)
		}
	}

	d, err := s.askUser(ctx, p, types.ConfirmationRequest{
		Peer:              pr.peer,
		PeerPublicKeyHash: crypto.Fingerprint(pr.peerKey.PublicKey),
		MyPublicKeyHash:   crypto.Fingerprint(mine.PublicKey),
		SafetyKey:         sk,
		SafetyWords:       crypto.SafetyWords(sk),
		Parameters: types.TrustDataParameters{
			ClientIndex:  pr.clientIndex,
			ClientsCount: pr.clientsCount,
			IsJoinerSide: pr.joinerSide,
			SessionID:    pr.sessionID,
			Process:      p,
		},
	})
	if err != nil {
		return err
	}
	s.log.Infof("Session %s: %s the key of %s", pr.sessionID, d, pr.peer.InstanceID)

	switch d {
	case types.DecisionValidate:
	case types.DecisionReject:
		_ = p.SetMyPartyChecked(false)
		s.informDetached(pr, types.InformPublicKeyValidationIsFinishedRequest{IsTrusted: false})
		return ErrRejected
	default:
		return ErrCancelled
	}

	if err := p.SetMyPartyChecked(true); err != nil {
		return err
	}
	k := peerKey{pr.sessionID, pr.peer.InstanceID, pr.check}
	s.setPending(k, types.TrustedPublicKey{
		ClientID:       pr.peerKey.ClientID,
		PublicKey:      pr.peerKey.PublicKey,
		PublicKeyHash:  crypto.Fingerprint(pr.peerKey.PublicKey),
		SafetyKey:      sk,
		ValidationDate: time.Now().UTC(),
	})
	defer s.takePending(k)
	if p.Outcome() == peertrust.Trusted {
		// The peer decided first; store before it hears from us.
		if err := s.persist(k); err != nil {
			return err
		}
	}
	if err := s.inform(ctx, pr, true); err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, s.timing.PeerTrustWait)
	defer cancel()
	out, err := p.WaitForPeerTrustProcessFinished(wctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("trust: waiting for %s: %w", pr.peer.InstanceID, context.DeadlineExceeded)
	}
	if out != peertrust.Trusted {
		return peerFailure(p)
	}
	return s.persist(k)
}

// release tells the peer that our half of an unfinished check ended.
func (s *Service) release(pr pair, p *peertrust.Process) {
	if v, ok := p.OtherPartyChecked(); p.WasAborted() || (ok && !v) {
		return
	}
	mine, decided := p.MyPartyChecked()
	switch {
	case p.Settle():
		s.informDetached(pr, types.InformPublicKeyValidationIsFinishedRequest{IsTrusted: false})
	case decided && mine:
		s.informDetached(pr, types.InformPublicKeyValidationIsFinishedRequest{IsTrusted: true, Aborted: true})
	}
}

// informDetached reports to the peer even when ctx of the check is done.
func (s *Service) informDetached(pr pair, req types.InformPublicKeyValidationIsFinishedRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), informTimeout)
	defer cancel()
	if err := s.finished(ctx, pr, req); err != nil {
		s.log.Warningf("Session %s: failed to report end of check to %s: %v", pr.sessionID, pr.peer.InstanceID, err)
	}
}

func peerFailure(p *peertrust.Process) error {
	if v, ok := p.OtherPartyChecked(); ok && !v {
		return ErrPeerRejected
	}
	return ErrPeerAborted
}

// askUser waits for the user's decision. A reject or an abort from the
// peer meanwhile withdraws the question.
func (s *Service) askUser(ctx context.Context, p *peertrust.Process, req types.ConfirmationRequest) (types.Decision, error) {
	uctx, cancel := context.WithCancel(ctx)
	defer cancel()

	answer := s.confirm.RequestConfirmation(uctx, req)
	other := p.OtherDecided()
	for {
		select {
		case d, ok := <-answer:
			if !ok {
				return types.DecisionCancel, nil
			}
			return d, nil
		case <-other:
			other = nil
			if p.Outcome() == peertrust.Rejected {
				return 0, ErrPeerRejected
			}
		case <-p.Aborted():
			return 0, peerFailure(p)
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
