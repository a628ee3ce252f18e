package repo

import (
	"context"
	"errors"
	"fmt"

	"chatline/config"
	"chatline/pkg/consts"
	"chatline/pkg/entities"
	"chatline/pkg/repo/driver/store"
	"chatline/utilities"
)

type ChatRepo struct {
	Db   store.Client
	Conf *config.ChatlineConfModel
}

// StorePersonalChat appends a message to the shared conversation node. The
// timestamp is client-assigned millis; the store key breaks same-millisecond
// ties.
func (c ChatRepo) StorePersonalChat(ctx context.Context, key string, msg *entities.Message) (string, error) {
	pushKey, err := c.Db.Push(ctx, store.Join(consts.ChatsRoot, key), msg)
	if err != nil {
		return "", fmt.Errorf("failed to store chat %s: %w", key, err)
	}
	return pushKey, nil
}

func (c ChatRepo) StoreGroupChat(ctx context.Context, gid string, msg *entities.Message) (string, error) {
	pushKey, err := c.Db.Push(ctx, store.Join(consts.GroupChatsRoot, gid, consts.GroupMessagesNode), msg)
	if err != nil {
		return "", fmt.Errorf("failed to store group chat %s: %w", gid, err)
	}
	return pushKey, nil
}

// WatchMessages subscribes to a conversation's message node. kind selects
// between the individual and group layouts.
func (c ChatRepo) WatchMessages(key, kind string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc {
	path := store.Join(consts.ChatsRoot, key)
	if kind == consts.ChatKindGroup {
		path = store.Join(consts.GroupChatsRoot, key, consts.GroupMessagesNode)
	}
	return c.Db.Subscribe(path, onSnapshot, onError)
}

// ClearChat writes the user's tombstone for the conversation. Nothing is
// deleted from the shared node; other participants keep their history.
func (c ChatRepo) ClearChat(ctx context.Context, user, key string, clearedAt int64) error {
	if err := c.Db.Set(ctx, store.Join(consts.ClearedRoot, user, key), clearedAt); err != nil {
		return fmt.Errorf("failed to clear chat %s: %w", key, err)
	}
	return nil
}

func (c ChatRepo) GetTombstones(ctx context.Context, user string) (map[string]int64, error) {
	tombstones := make(map[string]int64)
	err := c.Db.Get(ctx, store.Join(consts.ClearedRoot, user), &tombstones)
	if errors.Is(err, store.ErrPathNotFound) {
		return tombstones, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cleared chats: %w", err)
	}
	return tombstones, nil
}

func (c ChatRepo) WatchCleared(user string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc {
	return c.Db.Subscribe(store.Join(consts.ClearedRoot, user), onSnapshot, onError)
}

func (c ChatRepo) BlockUser(ctx context.Context, user, target string) (*entities.Response, error) {
	relation := entities.BlockRelation{
		BlockedAt: utilities.UnixMilli(utilities.TimeNow()),
		BlockedBy: user,
	}
	if err := c.Db.Set(ctx, store.Join(consts.BlockedRoot, user, target), relation); err != nil {
		return nil, fmt.Errorf("failed to block %s: %w", target, err)
	}
	return &entities.Response{Message: "Successfully blocked user"}, nil
}

func (c ChatRepo) UnblockUser(ctx context.Context, user, target string) (*entities.Response, error) {
	if err := c.Db.Delete(ctx, store.Join(consts.BlockedRoot, user, target)); err != nil {
		return nil, fmt.Errorf("failed to unblock %s: %w", target, err)
	}
	return &entities.Response{Message: "Successfully unblocked user"}, nil
}

func (c ChatRepo) GetBlocked(ctx context.Context, user string) (map[string]entities.BlockRelation, error) {
	relations := make(map[string]entities.BlockRelation)
	err := c.Db.Get(ctx, store.Join(consts.BlockedRoot, user), &relations)
	if errors.Is(err, store.ErrPathNotFound) {
		return relations, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blocked users: %w", err)
	}
	return relations, nil
}

func (c ChatRepo) WatchBlocked(user string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc {
	return c.Db.Subscribe(store.Join(consts.BlockedRoot, user), onSnapshot, onError)
}

// StoreGroupInfo creates the group node. The creator is always a member.
func (c ChatRepo) StoreGroupInfo(ctx context.Context, info *entities.GroupInfo) (*entities.Response, error) {
	if !utilities.ContainsString(info.Members, info.CreatedBy) {
		info.Members = append(info.Members, info.CreatedBy)
	}
	if err := c.Db.Set(ctx, store.Join(consts.GroupChatsRoot, info.GID), info); err != nil {
		return nil, fmt.Errorf("failed to create group %s: %w", info.GID, err)
	}
	return &entities.Response{Message: "Successfully created group"}, nil
}

func (c ChatRepo) GetGroupInfo(ctx context.Context, gid string) (*entities.GroupInfo, error) {
	var info entities.GroupInfo
	if err := c.Db.Get(ctx, store.Join(consts.GroupChatsRoot, gid), &info); err != nil {
		return nil, fmt.Errorf("failed to fetch group %s: %w", gid, err)
	}
	info.GID = gid
	return &info, nil
}

func (c ChatRepo) WatchGroups(onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc {
	return c.Db.Subscribe(consts.GroupChatsRoot, onSnapshot, onError)
}

type ChatRepoImpl interface {
	StorePersonalChat(ctx context.Context, key string, msg *entities.Message) (string, error)
	StoreGroupChat(ctx context.Context, gid string, msg *entities.Message) (string, error)
	WatchMessages(key, kind string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc

	ClearChat(ctx context.Context, user, key string, clearedAt int64) error
	GetTombstones(ctx context.Context, user string) (map[string]int64, error)
	WatchCleared(user string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc

	BlockUser(ctx context.Context, user, target string) (*entities.Response, error)
	UnblockUser(ctx context.Context, user, target string) (*entities.Response, error)
	GetBlocked(ctx context.Context, user string) (map[string]entities.BlockRelation, error)
	WatchBlocked(user string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc

	StoreGroupInfo(ctx context.Context, info *entities.GroupInfo) (*entities.Response, error)
	GetGroupInfo(ctx context.Context, gid string) (*entities.GroupInfo, error)
	WatchGroups(onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc
}

func NewChatRepo(db store.Client, conf *config.ChatlineConfModel) ChatRepoImpl {
	return &ChatRepo{Db: db, Conf: conf}
}
