package signature

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/events"
	"synctrust/internal/log"
)

type memTrust struct {
	domain.TrustStore
	recs map[domain.ClientID]domain.TrustedPublicKey
}

func (m *memTrust) Get(id domain.ClientID) (domain.TrustedPublicKey, bool, error) {
	rec, ok := m.recs[id]
	return rec, ok, nil
}

type captureRelay struct {
	domain.RelayClient
	mu   sync.Mutex
	sent []types.SendDigitalSignaturesRequest
}

func (c *captureRelay) SendDigitalSignatures(_ context.Context, _ domain.SessionID, req types.SendDigitalSignaturesRequest) (domain.RelayStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, req)
	return types.RelayOk, nil
}

func (c *captureRelay) take() []types.SendDigitalSignaturesRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sent
	c.sent = nil
	return out
}

type side struct {
	svc   *Service
	relay *captureRelay
	trust *memTrust
	party domain.LocalParty
}

func newSide(t *testing.T) *side {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edPriv, edPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	cid := domain.ClientID(uuid.NewString())
	party := domain.LocalParty{
		Endpoint: domain.ClientEndpoint{ClientID: cid, InstanceID: domain.InstanceID(uuid.NewString())},
		Identity: domain.Identity{ClientID: cid, XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv},
	}
	backend, err := log.NewWriter(io.Discard, "DEBUG")
	require.NoError(t, err)

	rc := &captureRelay{}
	ts := &memTrust{recs: make(map[domain.ClientID]domain.TrustedPublicKey)}
	svc, err := New(party, rc, ts, events.NewBus(), backend.GetLogger("signature"))
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return &side{svc: svc, relay: rc, trust: ts, party: party}
}

func (s *side) trustKeyOf(o *side) {
	pub := o.party.PublicKeyInfo().PublicKey
	s.trust.recs[o.party.Endpoint.ClientID] = domain.TrustedPublicKey{
		ClientID:      o.party.Endpoint.ClientID,
		PublicKey:     pub,
		PublicKeyHash: crypto.Fingerprint(pub),
	}
}

func (s *side) member() domain.SessionMember {
	return domain.SessionMember{Endpoint: s.party.Endpoint, PublicKeyInfo: s.party.PublicKeyInfo()}
}

func deliver(from *side, req types.SendDigitalSignaturesRequest) types.RequestCheckDigitalSignatureEvent {
	return types.RequestCheckDigitalSignatureEvent{
		Header:        types.Header{SessionID: "s1", From: from.party.Endpoint},
		Info:          req.Signatures[0],
		IsAuthCheckOK: req.IsAuthCheckOK,
	}
}

func TestExchange_CrossVerifies(t *testing.T) {
	ctx := t.Context()
	member, joiner := newSide(t), newSide(t)
	member.trustKeyOf(joiner)
	joiner.trustKeyOf(member)

	joiner.svc.Track("s1")
	require.NoError(t, joiner.svc.SendToMembers(ctx, "s1", []domain.SessionMember{member.member(), joiner.member()}))
	hello := joiner.relay.take()
	require.Len(t, hello, 1)
	require.Len(t, hello[0].Signatures, 1, "no signature to ourselves")
	assert.False(t, hello[0].IsAuthCheckOK)

	require.NoError(t, member.svc.handle(ctx, deliver(joiner, hello[0])))
	reply := member.relay.take()
	require.Len(t, reply, 1)
	assert.True(t, reply[0].IsAuthCheckOK)
	assert.Equal(t, joiner.party.Endpoint.InstanceID, reply[0].Signatures[0].Recipient.InstanceID)

	// A duplicate introduction is answered once.
	require.NoError(t, member.svc.handle(ctx, deliver(joiner, hello[0])))
	assert.Empty(t, member.relay.take())

	require.NoError(t, joiner.svc.handle(ctx, deliver(member, reply[0])))
	confirm := joiner.relay.take()
	require.Len(t, confirm, 1)
	assert.True(t, confirm[0].IsAuthCheckOK)
	assert.Equal(t, []domain.InstanceID{member.party.Endpoint.InstanceID}, joiner.svc.Verified("s1"))

	// Verified members are skipped on a resend.
	require.NoError(t, joiner.svc.SendToMembers(ctx, "s1", []domain.SessionMember{member.member()}))
	assert.Empty(t, joiner.relay.take())
}

func TestVerify_Failures(t *testing.T) {
	ctx := t.Context()
	member, joiner := newSide(t), newSide(t)

	joiner.svc.Track("s1")
	require.NoError(t, joiner.svc.SendToMembers(ctx, "s1", []domain.SessionMember{member.member()}))
	hello := joiner.relay.take()
	require.Len(t, hello, 1)

	err := member.svc.handle(ctx, deliver(joiner, hello[0]))
	assert.ErrorIs(t, err, ErrUntrustedIssuer)

	member.trustKeyOf(joiner)
	hello[0].Signatures[0].Signature[0] ^= 0xff
	err = member.svc.handle(ctx, deliver(joiner, hello[0]))
	assert.ErrorIs(t, err, ErrBadSignature)

	// A signature for another session does not verify either.
	hello[0].Signatures[0].Signature[0] ^= 0xff
	ev := deliver(joiner, hello[0])
	ev.SessionID = "s2"
	assert.ErrorIs(t, member.svc.handle(ctx, ev), ErrBadSignature)
	assert.Empty(t, member.relay.take())
}
