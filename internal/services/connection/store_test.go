package connection_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synctrust/internal/domain"
	"synctrust/internal/domain/types"
	"synctrust/internal/protocol/signal"
	"synctrust/internal/services/connection"
)

func TestStore_BeginRejectsDuplicate(t *testing.T) {
	s := connection.NewStore()
	a, err := s.Begin(context.Background(), "s1", "pw", types.StatusJoiningSession, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, types.StatusJoiningSession, s.Status("s1"))
	assert.Equal(t, "pw", string(a.Password()))

	_, err = s.Begin(context.Background(), "s1", "pw", types.StatusJoiningSession, time.Minute)
	assert.ErrorIs(t, err, connection.ErrAlreadyConnected)
}

func TestStore_PromoteThenAlreadyInSession(t *testing.T) {
	s := connection.NewStore()
	a, err := s.Begin(context.Background(), "s1", "pw", types.StatusJoiningSession, time.Minute)
	require.NoError(t, err)
	a.SetSessionKey([]byte{9, 9})

	require.NoError(t, s.Promote(a, domain.SessionInfo{SessionID: "s1"}))
	assert.Equal(t, types.StatusInSession, s.Status("s1"))
	assert.Equal(t, types.StatusInSession, a.Status())
	assert.Empty(t, a.Password(), "password is wiped once joined")
	assert.True(t, a.Cancelled())

	sess, ok := s.Session("s1")
	require.True(t, ok)
	assert.Equal(t, []byte{9, 9}, sess.SessionKey)
	assert.Equal(t, []domain.SessionID{"s1"}, s.Sessions())

	_, err = s.Begin(context.Background(), "s1", "pw", types.StatusJoiningSession, time.Minute)
	assert.ErrorIs(t, err, connection.ErrAlreadyConnected)

	assert.True(t, s.Leave("s1"))
	assert.Equal(t, types.StatusNone, s.Status("s1"))
}

func TestStore_EndRemovesAttempt(t *testing.T) {
	s := connection.NewStore()
	a, err := s.Begin(context.Background(), "s1", "pw", types.StatusJoiningSession, time.Minute)
	require.NoError(t, err)

	s.End(a)
	s.End(a)
	_, ok := s.Attempt("s1")
	assert.False(t, ok)
	assert.Equal(t, types.StatusFatalError, a.Status())
	assert.ErrorIs(t, a.Transition(types.StatusInSession), connection.ErrIllegalTransition)
	assert.ErrorIs(t, s.Promote(a, domain.SessionInfo{}), connection.ErrIllegalTransition)
}

func TestStore_CancelResolvesWaits(t *testing.T) {
	s := connection.NewStore()
	a, err := s.Begin(context.Background(), "s1", "pw", types.StatusJoiningSession, time.Minute)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		assert.True(t, s.Cancel("s1"))
	}()

	start := time.Now()
	_, out := a.PasswordExchangeKey.Wait(a.Context(), a.WaitTimeSpan)
	assert.Equal(t, signal.Cancelled, out)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, s.Cancel("unknown"))
}

func TestStore_Rekey(t *testing.T) {
	s := connection.NewStore()
	a, err := s.Begin(context.Background(), "pending", "pw", types.StatusCreatingSession, time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Rekey(a, "real"))
	_, ok := s.Attempt("pending")
	assert.False(t, ok)
	got, ok := s.Attempt("real")
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, types.StatusNone.CanTransition(types.StatusJoiningSession))
	assert.True(t, types.StatusNone.CanTransition(types.StatusCreatingSession))
	assert.False(t, types.StatusNone.CanTransition(types.StatusInSession))
	assert.True(t, types.StatusJoiningSession.CanTransition(types.StatusInSession))
	assert.True(t, types.StatusCreatingSession.CanTransition(types.StatusFatalError))
	assert.False(t, types.StatusJoiningSession.CanTransition(types.StatusCreatingSession))
	assert.False(t, types.StatusInSession.CanTransition(types.StatusFatalError))
	assert.False(t, types.StatusFatalError.CanTransition(types.StatusNone))
}

func TestUpdateMembers(t *testing.T) {
	s := connection.NewStore()
	a, err := s.Begin(context.Background(), "s1", "pw", types.StatusCreatingSession, time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Promote(a, domain.SessionInfo{SessionID: "s1"}))

	ok := s.UpdateMembers("s1", func(m []domain.SessionMember) []domain.SessionMember {
		return append(m, domain.SessionMember{Endpoint: domain.ClientEndpoint{InstanceID: "i2"}})
	})
	require.True(t, ok)
	sess, _ := s.Session("s1")
	assert.Len(t, sess.Info.Members, 1)
	assert.False(t, s.UpdateMembers("nope", nil))
}

func TestStore_SessionIsACopy(t *testing.T) {
	s := connection.NewStore()
	a, err := s.Begin(context.Background(), "s1", "pw", types.StatusCreatingSession, time.Minute)
	require.NoError(t, err)
	a.SetSessionKey([]byte{1, 2, 3})
	require.NoError(t, s.Promote(a, domain.SessionInfo{
		SessionID: "s1",
		Members:   []domain.SessionMember{{Endpoint: domain.ClientEndpoint{InstanceID: "i1"}}},
	}))

	got, ok := s.Session("s1")
	require.True(t, ok)
	got.Info.Members[0].Endpoint.InstanceID = "changed"
	got.SessionKey[0] = 0
	got.Password[0] = 0

	again, _ := s.Session("s1")
	assert.Equal(t, domain.InstanceID("i1"), again.Info.Members[0].Endpoint.InstanceID)
	assert.Equal(t, []byte{1, 2, 3}, again.SessionKey)
	assert.Equal(t, "pw", string(again.Password))

	require.True(t, s.Leave("s1"))
	assert.Equal(t, []byte{1, 2, 3}, again.SessionKey, "leaving does not wipe copies held by callers")
}

func TestStore_ReadsWhileMembersChange(t *testing.T) {
	s := connection.NewStore()
	a, err := s.Begin(context.Background(), "s1", "pw", types.StatusCreatingSession, time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Promote(a, domain.SessionInfo{SessionID: "s1"}))

	member := func(i int) domain.SessionMember {
		return domain.SessionMember{Endpoint: domain.ClientEndpoint{InstanceID: domain.InstanceID(fmt.Sprintf("i%d", i))}}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			s.UpdateMembers("s1", func(ms []domain.SessionMember) []domain.SessionMember {
				ms = append(ms, member(i))
				if len(ms) > 4 {
					// Filter in place; readers hold their own copies.
					out := ms[:0]
					for _, m := range ms[1:] {
						out = append(out, m)
					}
					ms = out
				}
				return ms
			})
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			sess, ok := s.Session("s1")
			if !assert.True(t, ok) {
				return
			}
			seen := make(map[domain.InstanceID]bool)
			for _, m := range sess.Info.Members {
				assert.False(t, seen[m.Endpoint.InstanceID], "duplicate member in a snapshot")
				seen[m.Endpoint.InstanceID] = true
			}
		}
	}()
	wg.Wait()

	sess, _ := s.Session("s1")
	assert.Len(t, sess.Info.Members, 4)
}
