package app_test

import (
	"context"
	"io"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synctrust/internal/app"
	"synctrust/internal/config"
	"synctrust/internal/crypto"
	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/log"
	"synctrust/internal/server"
	"synctrust/internal/services/session"
)

const password = "hunter2-but-longer"

// confirmer answers the n-th safety-word comparison with the n-th scripted
// decision, repeating the last one. A zero decision never answers; such
// prompts count as withdrawn once the asker gives up on them.
type confirmer struct {
	script    []domain.Decision
	calls     atomic.Int32
	withdrawn atomic.Int32
	asked     chan domain.ConfirmationRequest
}

func newConfirmer(script ...domain.Decision) *confirmer {
	return &confirmer{script: script, asked: make(chan domain.ConfirmationRequest, 16)}
}

func (c *confirmer) RequestConfirmation(ctx context.Context, req domain.ConfirmationRequest) <-chan domain.Decision {
	n := int(c.calls.Add(1)) - 1
	d := c.script[min(n, len(c.script)-1)]
	select {
	case c.asked <- req:
	default:
	}
	ch := make(chan domain.Decision, 1)
	if d != 0 {
		ch <- d
		return ch
	}
	go func() {
		<-ctx.Done()
		c.withdrawn.Add(1)
	}()
	return ch
}

type harness struct {
	t   *testing.T
	url string
	log *log.Backend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend, err := log.NewWriter(io.Discard, "DEBUG")
	require.NoError(t, err)

	srv, err := server.New(&config.RelayServer{Server: &config.Server{MaxPollWaitSec: 1}}, backend)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Halt()
	})
	return &harness{t: t, url: ts.URL, log: backend}
}

type client struct {
	*app.App
	wire    *app.Wire
	confirm *confirmer
}

func newIdentity(t *testing.T) domain.Identity {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edPriv, edPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	return domain.Identity{
		ClientID: domain.ClientID(uuid.NewString()),
		XPub:     xPub,
		XPriv:    xPriv,
		EdPub:    edPub,
		EdPriv:   edPriv,
	}
}

func (h *harness) client(c *confirmer, tweak func(*app.Config)) *client {
	t := h.t
	t.Helper()

	cfg := &config.Client{
		Relay: &config.Relay{URL: h.url, PollWaitSec: 1},
		Protocol: &config.Protocol{
			WaitTimeSpanMs:       5_000,
			PeerTrustWaitMs:      5_000,
			FinalizeRetries:      20,
			FinalizeRetryDelayMs: 100,
		},
	}
	require.NoError(t, cfg.FixupAndValidate())
	acfg := app.Config{Home: t.TempDir(), Client: cfg, Log: h.log, Confirmer: c}
	if tweak != nil {
		tweak(&acfg)
	}

	w, err := app.NewWire(acfg)
	require.NoError(t, err)
	a, err := app.Start(t.Context(), w, newIdentity(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Close(ctx)
		_ = w.Close()
	})
	return &client{App: a, wire: w, confirm: c}
}

func (c *client) trusts(t *testing.T, other *client) bool {
	t.Helper()
	ok, err := c.wire.Trust.IsTrusted(other.Party.PublicKeyInfo())
	require.NoError(t, err)
	return ok
}

func TestJoin_FreshTrustPersistedOnBothSides(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(types.DecisionValidate), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), nil)

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)
	require.Len(t, info.Members, 1)

	joined, err := bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.NoError(t, err)
	assert.Len(t, joined.Members, 2)
	assert.Equal(t, types.StatusInSession, bob.Sessions.Status(info.SessionID))

	assert.True(t, alice.trusts(t, bob))
	assert.True(t, bob.trusts(t, alice))

	// Both sides compared the same words.
	a := <-alice.confirm.asked
	b := <-bob.confirm.asked
	assert.Equal(t, a.SafetyWords, b.SafetyWords)
	assert.Equal(t, a.SafetyKey, b.SafetyKey)
	assert.True(t, b.Parameters.IsJoinerSide)
	assert.False(t, a.Parameters.IsJoinerSide)

	recs, err := bob.Trust.ListTrusted()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, alice.Party.Endpoint.ClientID, recs[0].ClientID)
	assert.Equal(t, b.SafetyKey, recs[0].SafetyKey)

	// Both hold the same session key.
	as, ok := alice.Connections.Session(info.SessionID)
	require.True(t, ok)
	bs, ok := bob.Connections.Session(info.SessionID)
	require.True(t, ok)
	assert.Equal(t, as.SessionKey, bs.SessionKey)
	assert.Len(t, bs.SessionKey, crypto.SessionKeySize)

	require.Eventually(t, func() bool {
		s, ok := alice.Sessions.Session(info.SessionID)
		return ok && len(s.Members) == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestJoin_PriorMutualTrustSkipsConfirmation(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(types.DecisionValidate), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), nil)

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)
	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, alice.confirm.calls.Load())
	require.EqualValues(t, 1, bob.confirm.calls.Load())

	require.NoError(t, bob.Sessions.QuitSession(t.Context(), info.SessionID))
	assert.Equal(t, types.StatusNone, bob.Sessions.Status(info.SessionID))

	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, alice.confirm.calls.Load(), "no second confirmation")
	assert.EqualValues(t, 1, bob.confirm.calls.Load(), "no second confirmation")
}

func TestJoin_RevokedKeyAsksAgain(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(types.DecisionValidate), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), nil)

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)
	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.NoError(t, err)
	require.NoError(t, bob.Sessions.QuitSession(t.Context(), info.SessionID))

	require.NoError(t, bob.Trust.Revoke(alice.Party.Endpoint.ClientID))
	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, bob.confirm.calls.Load())
	assert.EqualValues(t, 2, alice.confirm.calls.Load())
}

func TestJoin_MemberRejects(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(types.DecisionReject), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), nil)

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)

	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.Error(t, err)
	assert.Equal(t, types.JoinUntrustedPublicKey, session.StatusOf(err))
	assert.False(t, alice.trusts(t, bob))
	assert.False(t, bob.trusts(t, alice))
	assert.Equal(t, types.StatusNone, bob.Sessions.Status(info.SessionID))
}

func TestJoin_IncompatibleProtocolVersion(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(types.DecisionValidate), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), func(c *app.Config) {
		c.ProtocolVersion = domain.CurrentProtocolVersion + 1
	})

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)

	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.Error(t, err)
	assert.Equal(t, types.JoinProtocolVersionIncompatible, session.StatusOf(err))
	assert.Zero(t, alice.confirm.calls.Load())
	assert.Zero(t, bob.confirm.calls.Load())
}

func TestJoin_WrongPassword(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(types.DecisionValidate), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), nil)

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)

	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, "not-the-password", domain.JoinOptions{})
	require.Error(t, err)
	assert.Equal(t, types.JoinWrongPassword, session.StatusOf(err))

	// Trust survives a wrong password; a retry goes straight to the
	// password check.
	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, bob.confirm.calls.Load())
}

func TestJoin_AlreadyInSession(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(types.DecisionValidate), nil)

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)

	_, err = alice.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	assert.Equal(t, types.JoinAlreadyInSession, session.StatusOf(err))
}

func TestJoin_TimeoutWithoutValidatorAnswer(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(types.DecisionValidate), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), func(c *app.Config) {
		c.Client.Protocol.WaitTimeSpanMs = 500
	})

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)
	// Alice stays a member but stops answering joins.
	alice.Sessions.Close()

	start := time.Now()
	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.Error(t, err)
	assert.Equal(t, types.JoinTimeout, session.StatusOf(err))
	assert.Less(t, time.Since(start), 4*time.Second)

	_, ok := bob.Connections.Attempt(info.SessionID)
	assert.False(t, ok, "attempt is removed")
	assert.Equal(t, types.StatusNone, bob.Sessions.Status(info.SessionID))
}

func TestJoin_CancelDuringConfirmation(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(0), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), nil)

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)

	go func() {
		<-bob.confirm.asked
		<-alice.confirm.asked
		bob.Sessions.CancelJoin(info.SessionID)
	}()

	start := time.Now()
	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.Error(t, err)
	assert.Equal(t, types.JoinUserCancelled, session.StatusOf(err))
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, types.StatusNone, bob.Sessions.Status(info.SessionID))
	assert.False(t, alice.trusts(t, bob))
}

func TestJoin_ThirdMemberChecksEveryone(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(types.DecisionValidate), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), nil)
	carol := h.client(newConfirmer(types.DecisionValidate), nil)

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)
	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.NoError(t, err)

	joined, err := carol.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.NoError(t, err)
	assert.Len(t, joined.Members, 3)
	assert.EqualValues(t, 2, carol.confirm.calls.Load())
	assert.True(t, carol.trusts(t, alice))
	assert.True(t, carol.trusts(t, bob))
	assert.True(t, bob.trusts(t, carol))
}

func TestJoin_RetryAfterCancelAfterValidating(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(0, types.DecisionValidate), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), nil)

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)

	go func() {
		<-bob.confirm.asked
		<-alice.confirm.asked
		// Let Bob's decision reach Alice first.
		time.Sleep(200 * time.Millisecond)
		bob.Sessions.CancelJoin(info.SessionID)
	}()
	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.Error(t, err)
	assert.Equal(t, types.JoinUserCancelled, session.StatusOf(err))

	// Alice's question is withdrawn instead of waiting for an answer
	// nobody needs anymore.
	require.Eventually(t, func() bool {
		return alice.confirm.withdrawn.Load() == 1
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(500 * time.Millisecond)
	joined, err := bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.NoError(t, err)
	assert.Len(t, joined.Members, 2)
	assert.EqualValues(t, 2, alice.confirm.calls.Load())
	assert.EqualValues(t, 2, bob.confirm.calls.Load())
	assert.True(t, alice.trusts(t, bob))
	assert.True(t, bob.trusts(t, alice))
}

func TestJoin_RetryAfterRejecting(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(0, types.DecisionValidate), nil)
	bob := h.client(newConfirmer(types.DecisionReject, types.DecisionValidate), nil)

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)

	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.Error(t, err)
	assert.Equal(t, types.JoinUntrustedPublicKey, session.StatusOf(err))
	require.Eventually(t, func() bool {
		return alice.confirm.withdrawn.Load() == 1
	}, 3*time.Second, 20*time.Millisecond)

	// Alice answers the first check after Bob's reject; that answer must not
	// leak into the second check.
	time.Sleep(500 * time.Millisecond)
	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.NoError(t, err)
	assert.True(t, alice.trusts(t, bob))
	assert.True(t, bob.trusts(t, alice))
	assert.EqualValues(t, 2, bob.confirm.calls.Load())
}

func TestJoin_CancelWhileWaitingForExchangeKey(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(types.DecisionValidate), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), nil)

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)
	// Alice still checks keys but never hands out her exchange key.
	alice.Sessions.Close()

	go func() {
		<-bob.confirm.asked
		for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); {
			if ok, _ := alice.wire.Trust.IsTrusted(bob.Party.PublicKeyInfo()); ok {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		time.Sleep(300 * time.Millisecond)
		bob.Sessions.CancelJoin(info.SessionID)
	}()

	start := time.Now()
	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.Error(t, err)
	assert.Equal(t, types.JoinUserCancelled, session.StatusOf(err))
	assert.Less(t, time.Since(start), 4*time.Second, "cancel does not wait for the timeout")
	assert.Equal(t, types.StatusNone, bob.Sessions.Status(info.SessionID))
	assert.True(t, bob.trusts(t, alice), "trust outlives the cancelled join")
}

func TestJoin_ChangedKeyAsksAgain(t *testing.T) {
	h := newHarness(t)
	alice := h.client(newConfirmer(types.DecisionValidate), nil)
	bob := h.client(newConfirmer(types.DecisionValidate), nil)

	// Bob trusted another key under Alice's client id.
	stale := newIdentity(t)
	stale.ClientID = alice.Party.Endpoint.ClientID
	staleKey := domain.LocalParty{Identity: stale}.PublicKeyInfo().PublicKey
	require.NoError(t, bob.wire.Trust.Trust(domain.TrustedPublicKey{
		ClientID:  stale.ClientID,
		PublicKey: staleKey,
	}))
	require.False(t, bob.trusts(t, alice))

	info, err := alice.Sessions.CreateSession(t.Context(), password)
	require.NoError(t, err)
	_, err = bob.Sessions.JoinSession(t.Context(), info.SessionID, password, domain.JoinOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, bob.confirm.calls.Load())
	assert.EqualValues(t, 1, alice.confirm.calls.Load())

	rec, ok, err := bob.wire.Trust.Get(alice.Party.Endpoint.ClientID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, alice.Party.PublicKeyInfo().PublicKey, rec.PublicKey)
	assert.NotEqual(t, staleKey, rec.PublicKey)
}
