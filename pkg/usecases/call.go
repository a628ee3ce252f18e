package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	uuidLib "github.com/google/uuid"

	"chatline/config"
	"chatline/pkg/cache"
	"chatline/pkg/consts"
	"chatline/pkg/entities"
	"chatline/pkg/repo"
	"chatline/pkg/repo/driver/medium"
	"chatline/pkg/repo/driver/store"
	"chatline/utilities"
)

var (
	ErrCallInProgress = errors.New("another call is already in progress")
	ErrPeerOffline    = errors.New("peer is not online")
	ErrNoCall         = errors.New("no call in progress")
	ErrNotRinging     = errors.New("call is not in the ringing state")
)

const (
	RoleCaller = "caller"
	RoleCallee = "callee"
)

// CallUseCases runs call signaling over per-user store mailboxes. An invite
// is written into the callee's mailbox; every response goes to the other
// party's mailbox; the only self-write is deleting the own mailbox on
// cleanup. A ring left unanswered expires after the configured timeout.
type CallUseCases struct {
	user     string
	conf     *config.ChatlineConfModel
	callRepo repo.CallRepoImpl
	presence PresenceUseCaseImply
	ws       *medium.Socket

	mu        sync.Mutex
	current   *entities.CallSession
	role      string
	ringTimer *time.Timer
	unsub     store.UnsubscribeFunc
}

func (c *CallUseCases) ringTimeout() time.Duration {
	secs := c.conf.Call.RingTimeoutSeconds
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

func (c *CallUseCases) Start(ctx context.Context) {
	log := utilities.NewLogger("CallStart")

	c.mu.Lock()
	c.unsub = c.callRepo.WatchMailbox(c.user, c.onMailbox, func(err error) {
		log.WithError(err).Warn("call mailbox watch error")
	})
	c.mu.Unlock()
}

func (c *CallUseCases) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.stopTimerLocked()
	c.current = nil
	c.role = ""
}

// Current returns a copy of the in-flight session, nil when idle.
func (c *CallUseCases) Current() *entities.CallSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	session := *c.current
	return &session
}

// Initiate rings callee. Preconditions: no call in flight, callee not
// blocked and currently online. The ring expires by timeout if the callee
// never responds.
func (c *CallUseCases) Initiate(ctx context.Context, callee, callType string, offer json.RawMessage) (*entities.CallSession, error) {
	if cache.BlockedUserCache.IsBlocked(c.user, callee) {
		return nil, ErrPeerBlocked
	}
	if !c.presence.IsOnline(callee) {
		return nil, ErrPeerOffline
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil, ErrCallInProgress
	}
	session := &entities.CallSession{
		From:      c.user,
		To:        callee,
		Type:      callType,
		Status:    consts.CallStatusRinging,
		CallID:    uuidLib.NewString(),
		Timestamp: utilities.UnixMilli(utilities.TimeNow()),
		Offer:     offer,
	}
	c.current = session
	c.role = RoleCaller
	c.armTimerLocked(session.CallID)
	c.mu.Unlock()

	if err := c.callRepo.WriteInvite(ctx, session); err != nil {
		c.mu.Lock()
		c.stopTimerLocked()
		c.current = nil
		c.role = ""
		c.mu.Unlock()
		return nil, err
	}

	c.pushCall(session, "")
	copied := *session
	return &copied, nil
}

// Accept answers an incoming ring: the SDP answer travels to the caller's
// mailbox and the local state moves to accepted.
func (c *CallUseCases) Accept(ctx context.Context, answer json.RawMessage) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoCall
	}
	if c.role != RoleCallee || c.current.Status != consts.CallStatusRinging {
		c.mu.Unlock()
		return ErrNotRinging
	}
	caller := c.current.From
	callID := c.current.CallID
	c.current.Status = consts.CallStatusAccepted
	c.current.Answer = answer
	c.stopTimerLocked()
	session := *c.current
	c.mu.Unlock()

	err := c.callRepo.UpdateMailbox(ctx, caller, map[string]interface{}{
		"callId": callID,
		"status": consts.CallStatusAccepted,
		"answer": answer,
	})
	if err != nil {
		return err
	}
	c.pushCall(&session, "")
	return nil
}

func (c *CallUseCases) Reject(ctx context.Context) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoCall
	}
	if c.role != RoleCallee || c.current.Status != consts.CallStatusRinging {
		c.mu.Unlock()
		return ErrNotRinging
	}
	caller := c.current.From
	callID := c.current.CallID
	c.stopTimerLocked()
	c.current = nil
	c.role = ""
	c.mu.Unlock()

	err := c.callRepo.UpdateMailbox(ctx, caller, map[string]interface{}{
		"callId":  callID,
		"status":  consts.CallStatusRejected,
		"endedBy": c.user,
	})
	if err != nil {
		return err
	}
	return c.callRepo.ClearMailbox(ctx, c.user)
}

// End hangs up from either side: the peer's mailbox gets the terminal
// status, the own mailbox is deleted.
func (c *CallUseCases) End(ctx context.Context) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoCall
	}
	peer := c.peerLocked()
	callID := c.current.CallID
	c.stopTimerLocked()
	session := *c.current
	c.current = nil
	c.role = ""
	c.mu.Unlock()

	err := c.callRepo.UpdateMailbox(ctx, peer, map[string]interface{}{
		"callId":  callID,
		"status":  consts.CallStatusEnded,
		"endedBy": c.user,
	})
	if err != nil {
		return err
	}
	if err := c.callRepo.ClearMailbox(ctx, c.user); err != nil {
		return err
	}

	session.Status = consts.CallStatusEnded
	session.EndedBy = c.user
	c.pushCall(&session, "")
	return nil
}

func (c *CallUseCases) SendCandidate(ctx context.Context, candidate json.RawMessage) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoCall
	}
	peer := c.peerLocked()
	c.mu.Unlock()

	return c.callRepo.AppendCandidate(ctx, peer, candidate)
}

func (c *CallUseCases) peerLocked() string {
	if c.current.From == c.user {
		return c.current.To
	}
	return c.current.From
}

// armTimerLocked starts the ring expiry for callID. Transitions stop the
// timer; the callID check inside makes a late fire for a superseded call a
// no-op, so expiry acts at most once per call.
func (c *CallUseCases) armTimerLocked(callID string) {
	c.stopTimerLocked()
	c.ringTimer = time.AfterFunc(c.ringTimeout(), func() {
		c.onRingExpired(callID)
	})
}

func (c *CallUseCases) stopTimerLocked() {
	if c.ringTimer != nil {
		c.ringTimer.Stop()
		c.ringTimer = nil
	}
}

func (c *CallUseCases) onRingExpired(callID string) {
	log := utilities.NewLoggerWithFields("onRingExpired", map[string]interface{}{"callId": callID})

	c.mu.Lock()
	if c.current == nil || c.current.CallID != callID || c.current.Status != consts.CallStatusRinging {
		c.mu.Unlock()
		return
	}
	role := c.role
	session := *c.current
	c.ringTimer = nil
	c.current = nil
	c.role = ""
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if role == RoleCaller {
		err := c.callRepo.UpdateMailbox(ctx, session.To, map[string]interface{}{
			"callId":  callID,
			"status":  consts.CallStatusEnded,
			"endedBy": "timeout",
		})
		if err != nil {
			log.WithError(err).Warn("failed to expire outgoing ring")
		}
	}
	if err := c.callRepo.ClearMailbox(ctx, c.user); err != nil {
		log.WithError(err).Warn("failed to clear call mailbox")
	}

	session.Status = consts.CallStatusEnded
	session.EndedBy = "timeout"
	c.pushCall(&session, "timeout")
}

// onMailbox folds mailbox snapshots into the state machine. Invites arrive
// when idle; responses are matched to the in-flight call by call id; an
// invite ringing in while busy is rejected straight back.
func (c *CallUseCases) onMailbox(snap store.Snapshot) {
	log := utilities.NewLogger("onMailbox")

	if len(snap.Children) == 0 {
		return
	}
	var session entities.CallSession
	if err := snap.Decode(&session); err != nil {
		log.WithError(err).Warn("undecodable call mailbox")
		return
	}
	if session.CallID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c.mu.Lock()
	if c.current == nil {
		if session.Status == consts.CallStatusRinging && session.To == c.user {
			incoming := session
			c.current = &incoming
			c.role = RoleCallee
			c.armTimerLocked(session.CallID)
			c.mu.Unlock()
			c.pushCall(&incoming, "")
			return
		}
		// leftover of a call already terminated locally
		c.mu.Unlock()
		_ = c.callRepo.ClearMailbox(ctx, c.user)
		return
	}

	if session.CallID != c.current.CallID {
		if session.Status == consts.CallStatusRinging && session.To == c.user {
			// busy: bounce the new invite without disturbing the live call
			caller := session.From
			callID := session.CallID
			c.mu.Unlock()
			err := c.callRepo.UpdateMailbox(ctx, caller, map[string]interface{}{
				"callId":  callID,
				"status":  consts.CallStatusRejected,
				"endedBy": c.user,
			})
			if err != nil {
				log.WithError(err).Warn("failed to reject while busy")
			}
			_ = c.callRepo.ClearMailbox(ctx, c.user)
			return
		}
		c.mu.Unlock()
		return
	}

	switch session.Status {
	case consts.CallStatusAccepted:
		if c.role == RoleCaller && c.current.Status == consts.CallStatusRinging {
			c.stopTimerLocked()
			c.current.Status = consts.CallStatusAccepted
			c.current.Answer = session.Answer
		}
		c.current.ICECandidates = session.ICECandidates
		live := *c.current
		c.mu.Unlock()
		c.pushCall(&live, "")
	case consts.CallStatusRejected, consts.CallStatusEnded:
		c.stopTimerLocked()
		ended := *c.current
		ended.Status = session.Status
		ended.EndedBy = session.EndedBy
		c.current = nil
		c.role = ""
		c.mu.Unlock()
		_ = c.callRepo.ClearMailbox(ctx, c.user)
		c.pushCall(&ended, "")
	default:
		c.current.ICECandidates = session.ICECandidates
		live := *c.current
		c.mu.Unlock()
		c.pushCall(&live, "")
	}
}

func (c *CallUseCases) pushCall(session *entities.CallSession, reason string) {
	if c.ws == nil {
		return
	}
	data := map[string]interface{}{"session": session}
	if reason != "" {
		data["reason"] = reason
	}
	_ = c.ws.PushEvent(c.user, entities.GatewayEvent{Kind: consts.EventCall, Data: data})
}

type CallUseCaseImply interface {
	Start(ctx context.Context)
	Stop()
	Current() *entities.CallSession
	Initiate(ctx context.Context, callee, callType string, offer json.RawMessage) (*entities.CallSession, error)
	Accept(ctx context.Context, answer json.RawMessage) error
	Reject(ctx context.Context) error
	End(ctx context.Context) error
	SendCandidate(ctx context.Context, candidate json.RawMessage) error
}

func NewCallUseCases(
	user string, conf *config.ChatlineConfModel, callRepo repo.CallRepoImpl,
	presence PresenceUseCaseImply, ws *medium.Socket,
) CallUseCaseImply {
	return &CallUseCases{
		user:     user,
		conf:     conf,
		callRepo: callRepo,
		presence: presence,
		ws:       ws,
	}
}
