package repo

import (
	"context"
	"errors"
	"fmt"

	"chatline/config"
	"chatline/pkg/consts"
	"chatline/pkg/entities"
	"chatline/pkg/repo/driver/store"
)

type CallRepo struct {
	Db   store.Client
	Conf *config.ChatlineConfModel
}

// WriteInvite places a ringing session in the callee's mailbox. Each user
// has a single mailbox slot, so a new invite replaces whatever was there.
func (c CallRepo) WriteInvite(ctx context.Context, session *entities.CallSession) error {
	if err := c.Db.Set(ctx, store.Join(consts.CallsRoot, session.To), session); err != nil {
		return fmt.Errorf("failed to write call invite: %w", err)
	}
	return nil
}

// UpdateMailbox merges fields into a user's call mailbox, used for status
// transitions and SDP answers addressed to the peer.
func (c CallRepo) UpdateMailbox(ctx context.Context, user string, fields map[string]interface{}) error {
	if err := c.Db.Update(ctx, store.Join(consts.CallsRoot, user), fields); err != nil {
		return fmt.Errorf("failed to update call mailbox of %s: %w", user, err)
	}
	return nil
}

func (c CallRepo) GetMailbox(ctx context.Context, user string) (*entities.CallSession, error) {
	var session entities.CallSession
	err := c.Db.Get(ctx, store.Join(consts.CallsRoot, user), &session)
	if errors.Is(err, store.ErrPathNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch call mailbox of %s: %w", user, err)
	}
	return &session, nil
}

func (c CallRepo) AppendCandidate(ctx context.Context, peer string, candidate interface{}) error {
	_, err := c.Db.Push(ctx, store.Join(consts.CallsRoot, peer, "iceCandidates"), candidate)
	if err != nil {
		return fmt.Errorf("failed to append ice candidate for %s: %w", peer, err)
	}
	return nil
}

func (c CallRepo) ClearMailbox(ctx context.Context, user string) error {
	if err := c.Db.Delete(ctx, store.Join(consts.CallsRoot, user)); err != nil {
		return fmt.Errorf("failed to clear call mailbox of %s: %w", user, err)
	}
	return nil
}

func (c CallRepo) WatchMailbox(user string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc {
	return c.Db.Subscribe(store.Join(consts.CallsRoot, user), onSnapshot, onError)
}

type CallRepoImpl interface {
	WriteInvite(ctx context.Context, session *entities.CallSession) error
	UpdateMailbox(ctx context.Context, user string, fields map[string]interface{}) error
	GetMailbox(ctx context.Context, user string) (*entities.CallSession, error)
	AppendCandidate(ctx context.Context, peer string, candidate interface{}) error
	ClearMailbox(ctx context.Context, user string) error
	WatchMailbox(user string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc
}

func NewCallRepo(db store.Client, conf *config.ChatlineConfModel) CallRepoImpl {
	return &CallRepo{Db: db, Conf: conf}
}
