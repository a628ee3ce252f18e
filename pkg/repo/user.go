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

var ErrUsernameTaken = errors.New("username is already taken")

type UserRepo struct {
	Db   store.Client
	Conf *config.ChatlineConfModel
}

// ReserveUsername claims a handle in the usernames index. Reservation is
// first-writer-wins; losing the race surfaces as ErrUsernameTaken.
func (u UserRepo) ReserveUsername(ctx context.Context, username, uid string) error {
	path := store.Join(consts.UsernamesRoot, username)

	var existing entities.UsernameReservation
	err := u.Db.Get(ctx, path, &existing)
	if err == nil {
		if existing.UID == uid {
			return nil
		}
		return ErrUsernameTaken
	}
	if !errors.Is(err, store.ErrPathNotFound) {
		return fmt.Errorf("failed to check username %s: %w", username, err)
	}

	reservation := entities.UsernameReservation{
		UID:        uid,
		ReservedAt: utilities.UnixMilli(utilities.TimeNow()),
	}
	if err := u.Db.Set(ctx, path, reservation); err != nil {
		return fmt.Errorf("failed to reserve username %s: %w", username, err)
	}
	return nil
}

// StoreProfile merges the profile fields into the peer record. Presence
// fields written by a live session stay untouched.
func (u UserRepo) StoreProfile(ctx context.Context, peer *entities.Peer) error {
	fields := map[string]interface{}{
		"username": peer.Username,
		"uid":      peer.UID,
		"email":    peer.Email,
	}
	if peer.ProfilePhotoURL != "" {
		fields["profilePhotoUrl"] = peer.ProfilePhotoURL
	}
	err := u.Db.Update(ctx, store.Join(consts.UsersRoot, peer.Username), fields)
	if err != nil {
		return fmt.Errorf("failed to store profile %s: %w", peer.Username, err)
	}
	return nil
}

func (u UserRepo) GetPeer(ctx context.Context, username string) (*entities.Peer, error) {
	var peer entities.Peer
	if err := u.Db.Get(ctx, store.Join(consts.UsersRoot, username), &peer); err != nil {
		return nil, fmt.Errorf("failed to fetch peer %s: %w", username, err)
	}
	peer.Username = username
	return &peer, nil
}

// RegisterPresence marks the user online and arms the disconnect write that
// flips them offline with a lastSeen stamp when the session goes away.
func (u UserRepo) RegisterPresence(ctx context.Context, user string) error {
	now := utilities.UnixMilli(utilities.TimeNow())
	err := u.Db.Update(ctx, store.Join(consts.UsersRoot, user), map[string]interface{}{
		"online":   true,
		"lastSeen": now,
	})
	if err != nil {
		return fmt.Errorf("failed to register presence: %w", err)
	}

	u.Db.OnDisconnectPut(store.Join(consts.UsersRoot, user, "online"), false)
	u.Db.OnDisconnectPut(store.Join(consts.UsersRoot, user, "lastSeen"), now)
	return nil
}

func (u UserRepo) Heartbeat(ctx context.Context, user string) error {
	err := u.Db.Update(ctx, store.Join(consts.UsersRoot, user), map[string]interface{}{
		"lastSeen": utilities.UnixMilli(utilities.TimeNow()),
	})
	if err != nil {
		return fmt.Errorf("failed to send heartbeat: %w", err)
	}
	return nil
}

func (u UserRepo) SetOffline(ctx context.Context, user string) error {
	err := u.Db.Update(ctx, store.Join(consts.UsersRoot, user), map[string]interface{}{
		"online":   false,
		"lastSeen": utilities.UnixMilli(utilities.TimeNow()),
	})
	if err != nil {
		return fmt.Errorf("failed to set offline: %w", err)
	}
	return nil
}

func (u UserRepo) WatchUsers(onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc {
	return u.Db.Subscribe(consts.UsersRoot, onSnapshot, onError)
}

type UserRepoImpl interface {
	ReserveUsername(ctx context.Context, username, uid string) error
	StoreProfile(ctx context.Context, peer *entities.Peer) error
	GetPeer(ctx context.Context, username string) (*entities.Peer, error)

	RegisterPresence(ctx context.Context, user string) error
	Heartbeat(ctx context.Context, user string) error
	SetOffline(ctx context.Context, user string) error
	WatchUsers(onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.UnsubscribeFunc
}

func NewUserRepo(db store.Client, conf *config.ChatlineConfModel) UserRepoImpl {
	return &UserRepo{Db: db, Conf: conf}
}
