package peertrust_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synctrust/internal/protocol/peertrust"
)

func TestProcess_ResolvesIndependentOfOrder(t *testing.T) {
	cases := []struct {
		name      string
		my, other bool
		myFirst   bool
		want      peertrust.Outcome
	}{
		{"both trust, mine first", true, true, true, peertrust.Trusted},
		{"both trust, other first", true, true, false, peertrust.Trusted},
		{"i reject, mine first", false, true, true, peertrust.Rejected},
		{"i reject, other first", false, true, false, peertrust.Rejected},
		{"other rejects, mine first", true, false, true, peertrust.Rejected},
		{"other rejects, other first", true, false, false, peertrust.Rejected},
		{"both reject", false, false, true, peertrust.Rejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := peertrust.New()
			if tc.myFirst {
				require.NoError(t, p.SetMyPartyChecked(tc.my))
				require.NoError(t, p.SetOtherPartyChecked(tc.other))
			} else {
				require.NoError(t, p.SetOtherPartyChecked(tc.other))
				require.NoError(t, p.SetMyPartyChecked(tc.my))
			}
			assert.Equal(t, peertrust.BothDecided, p.State())
			assert.Equal(t, tc.want, p.Outcome())
		})
	}
}

func TestProcess_States(t *testing.T) {
	p := peertrust.New()
	assert.Equal(t, peertrust.Unchecked, p.State())
	assert.Equal(t, peertrust.Pending, p.Outcome())

	require.NoError(t, p.SetMyPartyChecked(true))
	assert.Equal(t, peertrust.MyDecisionRecorded, p.State())
	assert.Equal(t, peertrust.Pending, p.Outcome())

	q := peertrust.New()
	require.NoError(t, q.SetOtherPartyChecked(false))
	assert.Equal(t, peertrust.OtherDecisionRecorded, q.State())
	assert.Equal(t, peertrust.Rejected, q.Outcome(), "a single reject is final")
}

func TestProcess_RepeatAndConflict(t *testing.T) {
	p := peertrust.New()
	require.NoError(t, p.SetMyPartyChecked(true))
	require.NoError(t, p.SetMyPartyChecked(true))
	assert.ErrorIs(t, p.SetMyPartyChecked(false), peertrust.ErrDecisionConflict)

	require.NoError(t, p.SetOtherPartyChecked(false))
	require.NoError(t, p.SetOtherPartyChecked(false))
	assert.ErrorIs(t, p.SetOtherPartyChecked(true), peertrust.ErrDecisionConflict)

	v, ok := p.MyPartyChecked()
	assert.True(t, ok)
	assert.True(t, v)
}

func TestProcess_WaitResolvesOnOtherDecision(t *testing.T) {
	p := peertrust.New()
	require.NoError(t, p.SetMyPartyChecked(true))

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = p.SetOtherPartyChecked(true)
	}()

	out, err := p.WaitForPeerTrustProcessFinished(context.Background())
	require.NoError(t, err)
	assert.Equal(t, peertrust.Trusted, out)
}

func TestProcess_WaitHonoursContext(t *testing.T) {
	p := peertrust.New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out, err := p.WaitForPeerTrustProcessFinished(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, peertrust.Pending, out)
}

func TestProcess_Settle(t *testing.T) {
	p := peertrust.New()
	assert.True(t, p.Settle())
	assert.False(t, p.Settle())
	assert.Equal(t, peertrust.Rejected, p.Outcome())

	q := peertrust.New()
	require.NoError(t, q.SetMyPartyChecked(true))
	assert.False(t, q.Settle(), "an existing decision is never overwritten")
}

func TestProcess_Abort(t *testing.T) {
	p := peertrust.New()
	require.NoError(t, p.SetMyPartyChecked(true))
	p.Abort()
	p.Abort()
	assert.True(t, p.WasAborted())
	assert.Equal(t, peertrust.Rejected, p.Outcome())

	out, err := p.WaitForPeerTrustProcessFinished(t.Context())
	require.NoError(t, err)
	assert.Equal(t, peertrust.Rejected, out)

	done := peertrust.New()
	require.NoError(t, done.SetMyPartyChecked(true))
	require.NoError(t, done.SetOtherPartyChecked(true))
	done.Abort()
	assert.Equal(t, peertrust.Trusted, done.Outcome(), "a resolved pair stays resolved")
}

func TestRegistry_BuffersEarlyDecision(t *testing.T) {
	r := peertrust.NewRegistry()
	p, err := r.RecordOtherDecision("s1", "peer", "c1", true)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, created := r.Start("s1", "peer", "c1")
	require.True(t, created)
	v, ok := p.OtherPartyChecked()
	assert.True(t, ok)
	assert.True(t, v)

	same, created := r.Start("s1", "peer", "c1")
	assert.False(t, created)
	assert.Same(t, p, same)
}

func TestRegistry_DropsDecisionOfOtherCheck(t *testing.T) {
	r := peertrust.NewRegistry()
	// A reject of an earlier check lands after that check was finished.
	_, err := r.RecordOtherDecision("s1", "peer", "old", false)
	require.NoError(t, err)

	p, created := r.Start("s1", "peer", "new")
	require.True(t, created)
	assert.Equal(t, peertrust.Unchecked, p.State())

	_, err = r.RecordOtherDecision("s1", "peer", "old", false)
	assert.ErrorIs(t, err, peertrust.ErrStaleCheck)
	assert.ErrorIs(t, r.Abort("s1", "peer", "old"), peertrust.ErrStaleCheck)
	assert.Equal(t, peertrust.Pending, p.Outcome())

	got, err := r.RecordOtherDecision("s1", "peer", "new", true)
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestRegistry_NewCheckReplacesStaleOne(t *testing.T) {
	r := peertrust.NewRegistry()
	old, _ := r.Start("s1", "peer", "c1")
	require.NoError(t, old.SetMyPartyChecked(true))

	p, created := r.Start("s1", "peer", "c2")
	require.True(t, created)
	assert.NotSame(t, old, p)
	assert.True(t, old.WasAborted())
	assert.False(t, p.WasAborted())

	// The replaced check finishing later leaves the new one alone.
	r.Finish("s1", "peer", old)
	cur, ok := r.Get("s1", "peer")
	require.True(t, ok)
	assert.Same(t, p, cur)
}

func TestRegistry_AbortBeforeStart(t *testing.T) {
	r := peertrust.NewRegistry()
	require.NoError(t, r.Abort("s1", "peer", "c1"))
	p, _ := r.Start("s1", "peer", "c1")
	assert.True(t, p.WasAborted())

	live, _ := r.Start("s1", "other", "c2")
	require.NoError(t, r.Abort("s1", "other", "c2"))
	assert.True(t, live.WasAborted())
}

func TestRegistry_FinishAndForget(t *testing.T) {
	r := peertrust.NewRegistry()
	p, _ := r.Start("s1", "a", "c1")
	b, _ := r.Start("s1", "b", "c2")
	r.Start("s2", "a", "c3")
	assert.Equal(t, 3, r.Len())

	r.Finish("s1", "a", peertrust.New())
	assert.Equal(t, 3, r.Len(), "finish with a stale process is ignored")
	r.Finish("s1", "a", p)
	assert.Equal(t, 2, r.Len())

	r.ForgetSession("s1")
	_, ok := r.Get("s1", "b")
	assert.False(t, ok)
	assert.True(t, b.WasAborted())
	_, ok = r.Get("s2", "a")
	assert.True(t, ok)
}
