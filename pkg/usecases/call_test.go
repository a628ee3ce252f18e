package usecases

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatline/pkg/cache"
	"chatline/pkg/consts"
	"chatline/pkg/entities"
)

// alwaysOnline satisfies the presence dependency without running the whole
// presence machinery.
type alwaysOnline struct {
	online bool
}

func (a *alwaysOnline) Start(context.Context) error { return nil }
func (a *alwaysOnline) IsOnline(string) bool        { return a.online }
func (a *alwaysOnline) LastSeenOf(string) int64     { return 0 }
func (a *alwaysOnline) Stop(context.Context) error  { return nil }

func newCallPair(t *testing.T) (CallUseCaseImply, CallUseCaseImply) {
	t.Helper()
	db := newSharedStore()
	alice := newFixture(t, "alice", db)
	bob := newFixture(t, "bob", db)

	aliceCalls := NewCallUseCases("alice", alice.conf, alice.callRepo, &alwaysOnline{online: true}, nil)
	bobCalls := NewCallUseCases("bob", bob.conf, bob.callRepo, &alwaysOnline{online: true}, nil)
	aliceCalls.Start(testCtx(t))
	bobCalls.Start(testCtx(t))
	t.Cleanup(aliceCalls.Stop)
	t.Cleanup(bobCalls.Stop)
	return aliceCalls, bobCalls
}

func TestCallInviteRingsCallee(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	aliceCalls, bobCalls := newCallPair(t)

	session, err := aliceCalls.Initiate(ctx, "bob", consts.CallTypeVideo, json.RawMessage(`{"sdp":"offer"}`))
	require.NoError(t, err)
	assert.Equal(t, consts.CallStatusRinging, session.Status)
	assert.NotEmpty(t, session.CallID)

	waitFor(t, func() bool {
		current := bobCalls.Current()
		return current != nil && current.Status == consts.CallStatusRinging
	}, "callee never saw the ring")

	incoming := bobCalls.Current()
	assert.Equal(t, "alice", incoming.From)
	assert.Equal(t, session.CallID, incoming.CallID)
	assert.JSONEq(t, `{"sdp":"offer"}`, string(incoming.Offer))
}

func TestCallAcceptReachesCaller(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	aliceCalls, bobCalls := newCallPair(t)

	_, err := aliceCalls.Initiate(ctx, "bob", consts.CallTypeAudio, json.RawMessage(`{"sdp":"offer"}`))
	require.NoError(t, err)

	waitFor(t, func() bool { return bobCalls.Current() != nil }, "callee never saw the ring")
	require.NoError(t, bobCalls.Accept(ctx, json.RawMessage(`{"sdp":"answer"}`)))

	waitFor(t, func() bool {
		current := aliceCalls.Current()
		return current != nil && current.Status == consts.CallStatusAccepted
	}, "caller never saw the accept")

	live := aliceCalls.Current()
	assert.JSONEq(t, `{"sdp":"answer"}`, string(live.Answer))
}

func TestCallRejectClearsBothSides(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	aliceCalls, bobCalls := newCallPair(t)

	_, err := aliceCalls.Initiate(ctx, "bob", consts.CallTypeAudio, nil)
	require.NoError(t, err)

	waitFor(t, func() bool { return bobCalls.Current() != nil }, "callee never saw the ring")
	require.NoError(t, bobCalls.Reject(ctx))

	waitFor(t, func() bool { return aliceCalls.Current() == nil }, "caller state not cleared after reject")
	assert.Nil(t, bobCalls.Current())
}

func TestCallEndFromEitherSide(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	aliceCalls, bobCalls := newCallPair(t)

	_, err := aliceCalls.Initiate(ctx, "bob", consts.CallTypeAudio, nil)
	require.NoError(t, err)
	waitFor(t, func() bool { return bobCalls.Current() != nil }, "callee never saw the ring")
	require.NoError(t, bobCalls.Accept(ctx, nil))
	waitFor(t, func() bool {
		current := aliceCalls.Current()
		return current != nil && current.Status == consts.CallStatusAccepted
	}, "caller never saw the accept")

	require.NoError(t, bobCalls.End(ctx))
	waitFor(t, func() bool { return aliceCalls.Current() == nil }, "caller state not cleared after end")
	assert.Nil(t, bobCalls.Current())
}

func TestCallRingTimeoutExpiresOnce(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)

	// no callee session: the ring can only die by timeout
	aliceCalls := NewCallUseCases("alice", alice.conf, alice.callRepo, &alwaysOnline{online: true}, nil)
	aliceCalls.Start(ctx)
	t.Cleanup(aliceCalls.Stop)

	_, err := aliceCalls.Initiate(ctx, "bob", consts.CallTypeAudio, nil)
	require.NoError(t, err)
	require.NotNil(t, aliceCalls.Current())

	waitFor(t, func() bool { return aliceCalls.Current() == nil }, "ring never timed out")

	// after expiry a fresh call is possible again
	session, err := aliceCalls.Initiate(ctx, "bob", consts.CallTypeAudio, nil)
	require.NoError(t, err)
	assert.Equal(t, consts.CallStatusRinging, session.Status)
}

func TestCallInitiatePreconditions(t *testing.T) {
	resetCaches()
	ctx := testCtx(t)

	db := newSharedStore()
	alice := newFixture(t, "alice", db)

	offline := NewCallUseCases("alice", alice.conf, alice.callRepo, &alwaysOnline{online: false}, nil)
	_, err := offline.Initiate(ctx, "bob", consts.CallTypeAudio, nil)
	assert.ErrorIs(t, err, ErrPeerOffline)

	cache.BlockedUserCache.Add("alice", "bob", entities.BlockRelation{BlockedBy: "alice"})
	online := NewCallUseCases("alice", alice.conf, alice.callRepo, &alwaysOnline{online: true}, nil)
	_, err = online.Initiate(ctx, "bob", consts.CallTypeAudio, nil)
	assert.ErrorIs(t, err, ErrPeerBlocked)

	cache.BlockedUserCache.Remove("alice", "bob")
	_, err = online.Initiate(ctx, "carol", consts.CallTypeAudio, nil)
	require.NoError(t, err)
	_, err = online.Initiate(ctx, "dave", consts.CallTypeAudio, nil)
	assert.ErrorIs(t, err, ErrCallInProgress)
	online.Stop()
}
