package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synctrust/internal/config"
	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/log"
	"synctrust/internal/relay"
	"synctrust/internal/server"
)

func newRelay(t *testing.T) string {
	t.Helper()
	backend, err := log.NewWriter(io.Discard, "DEBUG")
	require.NoError(t, err)
	srv, err := server.New(&config.RelayServer{}, backend)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Halt()
	})
	return ts.URL
}

func newParty(t *testing.T, version domain.ProtocolVersion) domain.LocalParty {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edPriv, edPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	cid := domain.ClientID(uuid.NewString())
	return domain.LocalParty{
		Endpoint: domain.ClientEndpoint{ClientID: cid, InstanceID: domain.InstanceID(uuid.NewString()), Platform: "test"},
		Identity: domain.Identity{ClientID: cid, XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv},
		Version:  version,
	}
}

type peer struct {
	party domain.LocalParty
	rc    *relay.Client
}

func login(t *testing.T, url string, version domain.ProtocolVersion) peer {
	t.Helper()
	p := newParty(t, version)
	rc := relay.New(url, nil)
	require.NoError(t, rc.Authenticate(t.Context(), p))
	p.Endpoint = rc.Endpoint()
	return peer{party: p, rc: rc}
}

func kinds(t *testing.T, rc *relay.Client) []domain.EventKind {
	t.Helper()
	evs, err := rc.FetchEvents(t.Context(), 0)
	require.NoError(t, err)
	out := make([]domain.EventKind, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Kind)
	}
	if len(evs) > 0 {
		require.NoError(t, rc.AckEvents(t.Context(), evs[len(evs)-1].Seq))
	}
	return out
}

func httpStatus(err error) int {
	var se *relay.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func TestAuth_RejectsBadSignature(t *testing.T) {
	url := newRelay(t)
	p := newParty(t, 0)
	other := newParty(t, 0)
	// Sign with a key that is not the announced one.
	p.Identity.EdPriv = other.Identity.EdPriv

	err := relay.New(url, nil).Authenticate(t.Context(), p)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, httpStatus(err))
}

func TestAuth_ProtectedRoutesNeedToken(t *testing.T) {
	url := newRelay(t)
	_, err := relay.New(url, nil).CreateSession(t.Context(), types.CreateSessionRequest{ProtocolVersion: 1})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, httpStatus(err))

	_, err = relay.New(url, nil).QuitSession(t.Context(), "nope")
	assert.ErrorIs(t, err, relay.ErrNotAuthenticated)
}

func TestSession_CreateAndGet(t *testing.T) {
	url := newRelay(t)
	alice := login(t, url, 0)
	bob := login(t, url, 0)

	resp, err := alice.rc.CreateSession(t.Context(), types.CreateSessionRequest{ProtocolVersion: 1})
	require.NoError(t, err)
	require.Equal(t, types.RelayOk, resp.Status)
	require.Len(t, resp.Session.Members, 1)
	assert.Equal(t, alice.party.Endpoint.InstanceID, resp.Session.CreatorInstanceID)

	got, err := alice.rc.GetSession(t.Context(), resp.Session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, types.RelayOk, got.Status)

	got, err = bob.rc.GetSession(t.Context(), resp.Session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, types.RelayNotMember, got.Status)

	got, err = bob.rc.GetSession(t.Context(), "missing")
	require.NoError(t, err)
	assert.Equal(t, types.RelaySessionNotFound, got.Status)
}

func TestStartTrustCheck_VersionGate(t *testing.T) {
	url := newRelay(t)
	alice := login(t, url, 0)
	bob := login(t, url, 2)

	resp, err := alice.rc.CreateSession(t.Context(), types.CreateSessionRequest{ProtocolVersion: 1})
	require.NoError(t, err)
	sid := resp.Session.SessionID

	st, err := bob.rc.StartTrustCheck(t.Context(), sid, types.StartTrustCheckRequest{ProtocolVersion: 2})
	require.NoError(t, err)
	assert.Equal(t, types.RelayProtocolVersionIncompatible, st.Status)
	assert.EqualValues(t, 1, st.SessionProtocolVersion)
	assert.Empty(t, st.Members)

	assert.Empty(t, kinds(t, alice.rc), "no member is contacted")
	assert.Equal(t, []domain.EventKind{types.EventInformProtocolVersionIncompatible}, kinds(t, bob.rc))

	// Not registered as a pre-member either.
	fs, err := bob.rc.RequestTrustPublicKey(t.Context(), sid, types.RequestTrustPublicKeyRequest{To: alice.party.Endpoint.InstanceID})
	require.NoError(t, err)
	assert.Equal(t, types.RelayNotPreMember, fs)
}

func TestStartTrustCheck_ForwardsToMembers(t *testing.T) {
	url := newRelay(t)
	alice := login(t, url, 0)
	bob := login(t, url, 0)
	mallory := login(t, url, 0)

	resp, err := alice.rc.CreateSession(t.Context(), types.CreateSessionRequest{ProtocolVersion: 1})
	require.NoError(t, err)
	sid := resp.Session.SessionID

	st, err := bob.rc.StartTrustCheck(t.Context(), sid, types.StartTrustCheckRequest{ProtocolVersion: 1})
	require.NoError(t, err)
	require.Equal(t, types.RelayOk, st.Status)
	require.Len(t, st.Members, 1)
	assert.Equal(t, alice.party.Endpoint.InstanceID, st.Members[0].Endpoint.InstanceID)

	evs, err := alice.rc.FetchEvents(t.Context(), time.Second)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, types.EventAskPublicKeyCheckData, evs[0].Kind)
	var ask types.AskPublicKeyCheckDataEvent
	require.NoError(t, json.Unmarshal(evs[0].Payload, &ask))
	assert.Equal(t, bob.party.Endpoint.InstanceID, ask.From.InstanceID)
	assert.Equal(t, bob.party.PublicKeyInfo().PublicKey, ask.PublicKeyInfo.PublicKey)

	// Members and pre-members may talk; outsiders may not.
	fs, err := alice.rc.GiveMemberPublicKeyCheckData(t.Context(), sid, types.GiveMemberPublicKeyCheckDataRequest{To: bob.party.Endpoint.InstanceID})
	require.NoError(t, err)
	assert.Equal(t, types.RelayOk, fs)

	fs, err = mallory.rc.InformPublicKeyValidationIsFinished(t.Context(), sid, types.InformPublicKeyValidationIsFinishedRequest{To: alice.party.Endpoint.InstanceID, IsTrusted: true})
	require.NoError(t, err)
	assert.Equal(t, types.RelayNotPreMember, fs)

	// A pre-member may only address members.
	fs, err = bob.rc.GiveMemberPublicKeyCheckData(t.Context(), sid, types.GiveMemberPublicKeyCheckDataRequest{To: alice.party.Endpoint.InstanceID})
	require.NoError(t, err)
	assert.Equal(t, types.RelayNotMember, fs)
}

func TestSignatures_IssuerMustBeCaller(t *testing.T) {
	url := newRelay(t)
	alice := login(t, url, 0)
	bob := login(t, url, 0)

	resp, err := alice.rc.CreateSession(t.Context(), types.CreateSessionRequest{ProtocolVersion: 1})
	require.NoError(t, err)
	sid := resp.Session.SessionID
	_, err = bob.rc.StartTrustCheck(t.Context(), sid, types.StartTrustCheckRequest{ProtocolVersion: 1})
	require.NoError(t, err)

	_, err = bob.rc.SendDigitalSignatures(t.Context(), sid, types.SendDigitalSignaturesRequest{
		Signatures: []domain.DigitalSignatureCheckInfo{{
			Issuer:    alice.party.Endpoint,
			Recipient: alice.party.Endpoint,
		}},
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httpStatus(err))
}

func TestFinalize_RequiresCrossVerification(t *testing.T) {
	url := newRelay(t)
	alice := login(t, url, 0)
	bob := login(t, url, 0)
	ctx := t.Context()

	resp, err := alice.rc.CreateSession(ctx, types.CreateSessionRequest{ProtocolVersion: 1})
	require.NoError(t, err)
	sid := resp.Session.SessionID
	bobID := bob.party.Endpoint.InstanceID

	_, err = bob.rc.StartTrustCheck(ctx, sid, types.StartTrustCheckRequest{ProtocolVersion: 1})
	require.NoError(t, err)

	fin, err := bob.rc.FinalizeJoinCloudSession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, types.RelayAuthIsNotChecked, fin.Status, "not validated yet")

	st, err := bob.rc.AskPasswordExchangeKey(ctx, sid, types.AskPasswordExchangeKeyRequest{PublicKeyInfo: bob.party.PublicKeyInfo()})
	require.NoError(t, err)
	require.Equal(t, types.RelayOk, st)
	st, err = alice.rc.ValidateJoinCloudSession(ctx, sid, types.ValidateJoinCloudSessionRequest{Joiner: bobID})
	require.NoError(t, err)
	require.Equal(t, types.RelayOk, st)

	sig := func(from, to peer) []domain.DigitalSignatureCheckInfo {
		return []domain.DigitalSignatureCheckInfo{{Issuer: from.party.Endpoint, Recipient: to.party.Endpoint}}
	}

	// Only one direction verified.
	st, err = alice.rc.SendDigitalSignatures(ctx, sid, types.SendDigitalSignaturesRequest{Signatures: sig(alice, bob), IsAuthCheckOK: true})
	require.NoError(t, err)
	require.Equal(t, types.RelayOk, st)
	fin, err = bob.rc.FinalizeJoinCloudSession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, types.RelayAuthIsNotChecked, fin.Status)

	st, err = bob.rc.SendDigitalSignatures(ctx, sid, types.SendDigitalSignaturesRequest{Signatures: sig(bob, alice), IsAuthCheckOK: true})
	require.NoError(t, err)
	require.Equal(t, types.RelayOk, st)
	fin, err = bob.rc.FinalizeJoinCloudSession(ctx, sid)
	require.NoError(t, err)
	require.Equal(t, types.RelayOk, fin.Status)
	assert.Len(t, fin.Session.Members, 2)

	assert.Contains(t, kinds(t, alice.rc), types.EventMemberJoinedSession)
}

func TestJoin_OnlyValidatorMayAnswer(t *testing.T) {
	url := newRelay(t)
	alice := login(t, url, 0)
	bob := login(t, url, 0)
	ctx := t.Context()

	resp, err := alice.rc.CreateSession(ctx, types.CreateSessionRequest{ProtocolVersion: 1})
	require.NoError(t, err)
	sid := resp.Session.SessionID

	st, err := bob.rc.AskPasswordExchangeKey(ctx, sid, types.AskPasswordExchangeKeyRequest{})
	require.NoError(t, err)
	assert.Equal(t, types.RelayNotPreMember, st, "trust check comes first")

	_, err = bob.rc.StartTrustCheck(ctx, sid, types.StartTrustCheckRequest{ProtocolVersion: 1})
	require.NoError(t, err)
	st, err = bob.rc.AskPasswordExchangeKey(ctx, sid, types.AskPasswordExchangeKeyRequest{})
	require.NoError(t, err)
	require.Equal(t, types.RelayOk, st)

	st, err = bob.rc.ValidateJoinCloudSession(ctx, sid, types.ValidateJoinCloudSessionRequest{Joiner: bob.party.Endpoint.InstanceID})
	require.NoError(t, err)
	assert.Equal(t, types.RelayNotMember, st)

	st, err = alice.rc.InformPasswordIsWrong(ctx, sid, types.InformPasswordIsWrongRequest{Joiner: bob.party.Endpoint.InstanceID})
	require.NoError(t, err)
	assert.Equal(t, types.RelayOk, st)
	assert.Contains(t, kinds(t, bob.rc), types.EventYouGaveAWrongPassword)
}

func TestStartTrustCheck_NewAttemptVoidsEarlierChecks(t *testing.T) {
	url := newRelay(t)
	alice := login(t, url, 0)
	bob := login(t, url, 0)
	ctx := t.Context()

	resp, err := alice.rc.CreateSession(ctx, types.CreateSessionRequest{ProtocolVersion: 1})
	require.NoError(t, err)
	sid := resp.Session.SessionID
	bobID := bob.party.Endpoint.InstanceID

	validate := func() {
		t.Helper()
		_, err := bob.rc.StartTrustCheck(ctx, sid, types.StartTrustCheckRequest{ProtocolVersion: 1})
		require.NoError(t, err)
		st, err := bob.rc.AskPasswordExchangeKey(ctx, sid, types.AskPasswordExchangeKeyRequest{PublicKeyInfo: bob.party.PublicKeyInfo()})
		require.NoError(t, err)
		require.Equal(t, types.RelayOk, st)
		st, err = alice.rc.ValidateJoinCloudSession(ctx, sid, types.ValidateJoinCloudSessionRequest{Joiner: bobID})
		require.NoError(t, err)
		require.Equal(t, types.RelayOk, st)
	}
	validate()
	for _, from := range []peer{alice, bob} {
		to := bob
		if from.party.Endpoint == bob.party.Endpoint {
			to = alice
		}
		st, err := from.rc.SendDigitalSignatures(ctx, sid, types.SendDigitalSignaturesRequest{
			Signatures:    []domain.DigitalSignatureCheckInfo{{Issuer: from.party.Endpoint, Recipient: to.party.Endpoint}},
			IsAuthCheckOK: true,
		})
		require.NoError(t, err)
		require.Equal(t, types.RelayOk, st)
	}

	// The first attempt failed on the client; it starts over.
	validate()
	fin, err := bob.rc.FinalizeJoinCloudSession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, types.RelayAuthIsNotChecked, fin.Status, "signatures of the failed attempt do not count")

	st, err := bob.rc.QuitSession(ctx, sid)
	require.NoError(t, err)
	require.Equal(t, types.RelayOk, st)
	fin, err = bob.rc.FinalizeJoinCloudSession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, types.RelayNotPreMember, fin.Status)

	got, err := alice.rc.GetSession(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, got.Session.Members, 1)
}

func TestQuit_ClosesEmptySession(t *testing.T) {
	url := newRelay(t)
	alice := login(t, url, 0)

	resp, err := alice.rc.CreateSession(t.Context(), types.CreateSessionRequest{ProtocolVersion: 1})
	require.NoError(t, err)
	sid := resp.Session.SessionID

	st, err := alice.rc.QuitSession(t.Context(), sid)
	require.NoError(t, err)
	assert.Equal(t, types.RelayOk, st)

	got, err := alice.rc.GetSession(t.Context(), sid)
	require.NoError(t, err)
	assert.Equal(t, types.RelaySessionNotFound, got.Status)
}

func TestEvents_LongPollWakesOnPush(t *testing.T) {
	url := newRelay(t)
	alice := login(t, url, 0)
	bob := login(t, url, 0)

	resp, err := alice.rc.CreateSession(t.Context(), types.CreateSessionRequest{ProtocolVersion: 1})
	require.NoError(t, err)

	done := make(chan []domain.EventEnvelope, 1)
	go func() {
		evs, _ := alice.rc.FetchEvents(context.Background(), 10*time.Second)
		done <- evs
	}()
	time.Sleep(50 * time.Millisecond)
	_, err = bob.rc.StartTrustCheck(t.Context(), resp.Session.SessionID, types.StartTrustCheckRequest{ProtocolVersion: 1})
	require.NoError(t, err)

	select {
	case evs := <-done:
		require.Len(t, evs, 1)
		assert.EqualValues(t, 1, evs[0].Seq)
	case <-time.After(5 * time.Second):
		t.Fatal("long poll did not wake up")
	}

	require.NoError(t, alice.rc.AckEvents(t.Context(), 1))
	assert.Empty(t, kinds(t, alice.rc))
}

func TestMetrics(t *testing.T) {
	url := newRelay(t)
	login(t, url, 0)

	resp, err := http.Get(url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "synctrust_relay_clients 1")
}
