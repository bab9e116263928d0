package signature

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/op/go-logging.v1"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/events"
	"synctrust/internal/util/worker"
)

const sendTimeout = 10 * time.Second

var (
	// ErrUntrustedIssuer means no trusted key is on record for the issuer.
	ErrUntrustedIssuer = errors.New("signature: issuer key is not trusted")
	// ErrBadSignature means the signature does not cover the expected
	// statement.
	ErrBadSignature = errors.New("signature: invalid signature")
)

// Service signs and verifies DigitalSignatureCheckInfo statements.
type Service struct {
	worker.Worker

	party domain.LocalParty
	relay domain.RelayClient
	store domain.TrustStore
	log   *logging.Logger
	enc   cbor.EncMode

	mu sync.Mutex
	// joining holds the sessions we are joining and the members whose
	// signature we verified.
	joining map[domain.SessionID]map[domain.InstanceID]bool
	// answered holds, per session, the joiners we sent our signature to.
	answered map[domain.SessionID]map[domain.InstanceID]bool
	unsub    []func()
}

var _ domain.SignatureExchanger = (*Service)(nil)

// New returns a Service listening for signatures on bus.
func New(party domain.LocalParty, relay domain.RelayClient, store domain.TrustStore, bus *events.Bus, log *logging.Logger) (*Service, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	s := &Service{
		party:    party,
		relay:    relay,
		store:    store,
		log:      log,
		enc:      enc,
		joining:  make(map[domain.SessionID]map[domain.InstanceID]bool),
		answered: make(map[domain.SessionID]map[domain.InstanceID]bool),
	}
	s.unsub = []func(){
		bus.RequestCheckDigitalSignature.Subscribe(s.onRequestCheck),
		bus.MemberJoinedSession.Subscribe(s.onMemberJoined),
	}
	return s, nil
}

// Close unsubscribes and waits for running verifications.
func (s *Service) Close() {
	for _, fn := range s.unsub {
		fn()
	}
	s.Halt()
}

// onMemberJoined ends the exchange with a joiner once it was admitted, so a
// later rejoin is answered again.
func (s *Service) onMemberJoined(ev types.MemberJoinedSessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answered[ev.SessionID], ev.Member.Endpoint.InstanceID)
}

// Track marks sessionID as being joined by us.
func (s *Service) Track(sessionID domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joining[sessionID] == nil {
		s.joining[sessionID] = make(map[domain.InstanceID]bool)
	}
}

// Forget drops everything kept for sessionID.
func (s *Service) Forget(sessionID domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.joining, sessionID)
	delete(s.answered, sessionID)
}

// Verified returns the members whose signature we verified while joining
// sessionID.
func (s *Service) Verified(sessionID domain.SessionID) []domain.InstanceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.InstanceID, 0, len(s.joining[sessionID]))
	for id := range s.joining[sessionID] {
		out = append(out, id)
	}
	return out
}

// payload encodes the statement "issuer, holding issuerKey, addresses
// recipient, holding recipientKey, in sessionID".
func (s *Service) payload(
	sessionID domain.SessionID,
	issuer, recipient domain.InstanceID,
	issuerKey, recipientKey domain.Fingerprint,
) ([]byte, error) {
	return s.enc.Marshal(types.SignedPayload{
		SessionID:           sessionID,
		IssuerInstanceID:    issuer,
		RecipientInstanceID: recipient,
		IssuerKeyHash:       issuerKey,
		RecipientKeyHash:    recipientKey,
	})
}

func (s *Service) sign(sessionID domain.SessionID, to domain.ClientEndpoint, toKey domain.Fingerprint) (domain.DigitalSignatureCheckInfo, error) {
	mine := s.party.PublicKeyInfo()
	msg, err := s.payload(sessionID, s.party.Endpoint.InstanceID, to.InstanceID, crypto.Fingerprint(mine.PublicKey), toKey)
	if err != nil {
		return domain.DigitalSignatureCheckInfo{}, err
	}
	return domain.DigitalSignatureCheckInfo{
		Issuer:    s.party.Endpoint,
		Recipient: to,
		Signature: crypto.Sign(s.party.Identity, msg),
	}, nil
}

// verify checks a signature addressed to us against the trusted key of its
// issuer and returns that key.
func (s *Service) verify(sessionID domain.SessionID, info domain.DigitalSignatureCheckInfo) (domain.TrustedPublicKey, error) {
	rec, ok, err := s.store.Get(info.Issuer.ClientID)
	if err != nil {
		return rec, err
	}
	if !ok {
		return rec, fmt.Errorf("%w: %s", ErrUntrustedIssuer, info.Issuer.ClientID)
	}
	mine := s.party.PublicKeyInfo()
	msg, err := s.payload(sessionID, info.Issuer.InstanceID, s.party.Endpoint.InstanceID, rec.PublicKeyHash, crypto.Fingerprint(mine.PublicKey))
	if err != nil {
		return rec, err
	}
	valid, err := crypto.VerifySignature(rec.PublicKey, msg, info.Signature)
	if err != nil {
		return rec, err
	}
	if !valid {
		return rec, ErrBadSignature
	}
	return rec, nil
}

func (s *Service) send(ctx context.Context, sessionID domain.SessionID, sigs []domain.DigitalSignatureCheckInfo, authChecked bool) error {
	st, err := s.relay.SendDigitalSignatures(ctx, sessionID, types.SendDigitalSignaturesRequest{
		Signatures:    sigs,
		IsAuthCheckOK: authChecked,
	})
	if err != nil {
		return err
	}
	if st != types.RelayOk {
		return fmt.Errorf("signature: relay answered %s", st)
	}
	return nil
}

// SendToMembers sends our signature to every member whose signature we have
// not verified yet. Members answer with theirs; each valid answer is
// confirmed back to its member.
func (s *Service) SendToMembers(ctx context.Context, sessionID domain.SessionID, members []domain.SessionMember) error {
	s.mu.Lock()
	verified := make(map[domain.InstanceID]bool, len(s.joining[sessionID]))
	for id := range s.joining[sessionID] {
		verified[id] = true
	}
	s.mu.Unlock()

	sigs := make([]domain.DigitalSignatureCheckInfo, 0, len(members))
	for _, m := range members {
		if m.Endpoint.InstanceID == s.party.Endpoint.InstanceID || verified[m.Endpoint.InstanceID] {
			continue
		}
		sig, err := s.sign(sessionID, m.Endpoint, crypto.Fingerprint(m.PublicKeyInfo.PublicKey))
		if err != nil {
			return err
		}
		sigs = append(sigs, sig)
	}
	if len(sigs) == 0 {
		return nil
	}
	return s.send(ctx, sessionID, sigs, false)
}

func (s *Service) onRequestCheck(ev types.RequestCheckDigitalSignatureEvent) {
	if ev.Info.Recipient.InstanceID != s.party.Endpoint.InstanceID || ev.Info.Issuer.InstanceID != ev.From.InstanceID {
		s.log.Warningf("Session %s: dropping misaddressed signature from %s", ev.SessionID, ev.From.InstanceID)
		return
	}
	s.Go(func() {
		ctx, cancel := s.Context(context.Background())
		defer cancel()
		ctx, cancelSend := context.WithTimeout(ctx, sendTimeout)
		defer cancelSend()
		if err := s.handle(ctx, ev); err != nil {
			s.log.Warningf("Session %s: signature of %s: %v", ev.SessionID, ev.From.InstanceID, err)
		}
	})
}

func (s *Service) handle(ctx context.Context, ev types.RequestCheckDigitalSignatureEvent) error {
	sid := ev.SessionID
	issuer := ev.Info.Issuer.InstanceID

	s.mu.Lock()
	verified, joining := s.joining[sid]
	s.mu.Unlock()
	if joining {
		// A member answered our signature with its own.
		s.mu.Lock()
		done := verified[issuer]
		s.mu.Unlock()
		if done {
			return nil
		}
		rec, err := s.verify(sid, ev.Info)
		if err != nil {
			return err
		}
		sig, err := s.sign(sid, ev.Info.Issuer, rec.PublicKeyHash)
		if err != nil {
			return err
		}
		if err := s.send(ctx, sid, []domain.DigitalSignatureCheckInfo{sig}, true); err != nil {
			return err
		}
		s.mu.Lock()
		if v := s.joining[sid]; v != nil {
			v[issuer] = true
		}
		s.mu.Unlock()
		return nil
	}

	// We are a member and a joiner introduced itself.
	if ev.IsAuthCheckOK {
		s.log.Debugf("Session %s: %s confirmed our signature", sid, issuer)
		return nil
	}
	rec, err := s.verify(sid, ev.Info)
	if err != nil {
		return err
	}
	s.mu.Lock()
	m := s.answered[sid]
	if m == nil {
		m = make(map[domain.InstanceID]bool)
		s.answered[sid] = m
	}
	done := m[issuer]
	m[issuer] = true
	s.mu.Unlock()
	if done {
		return nil
	}
	sig, err := s.sign(sid, ev.Info.Issuer, rec.PublicKeyHash)
	if err == nil {
		err = s.send(ctx, sid, []domain.DigitalSignatureCheckInfo{sig}, true)
	}
	if err != nil {
		s.mu.Lock()
		delete(m, issuer)
		s.mu.Unlock()
	}
	return err
}
