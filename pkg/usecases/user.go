package usecases

import (
	"context"
	"errors"
	"time"

	uuidLib "github.com/google/uuid"

	"chatline/config"
	"chatline/pkg/entities"
	"chatline/pkg/repo"
	"chatline/utilities"
	"chatline/utilities/jwt"
)

var ErrInvalidHandle = errors.New("handle may only contain letters, digits and underscore")

type UserUseCases struct {
	conf     *config.ChatlineConfModel
	userRepo repo.UserRepoImpl
}

func (u *UserUseCases) tokenTTL() time.Duration {
	ttl, err := time.ParseDuration(u.conf.LoginTokenExpiry)
	if err != nil || ttl <= 0 {
		return 720 * time.Hour
	}
	return ttl
}

// Signup reserves the handle, writes the profile and issues a session
// token. Handles are restricted so conversation keys stay unambiguous.
func (u *UserUseCases) Signup(ctx context.Context, req *entities.SignupRequest) (*entities.LoginResponse, error) {
	log := utilities.NewLoggerWithFields("Signup", map[string]interface{}{"handle": req.Username})

	if !utilities.ValidHandle(req.Username) {
		return nil, ErrInvalidHandle
	}

	uid := uuidLib.NewString()
	if err := u.userRepo.ReserveUsername(ctx, req.Username, uid); err != nil {
		return nil, err
	}

	peer := &entities.Peer{
		Username:        req.Username,
		UID:             uid,
		Email:           req.Email,
		ProfilePhotoURL: req.ProfilePhotoURL,
		LastSeen:        utilities.UnixMilli(utilities.TimeNow()),
	}
	if err := u.userRepo.StoreProfile(ctx, peer); err != nil {
		return nil, err
	}

	token, expiresIn, err := jwt.GenerateJWT(req.Username, "user", uid, u.tokenTTL())
	if err != nil {
		log.WithError(err).Error("failed to issue token")
		return nil, err
	}

	return &entities.LoginResponse{Username: req.Username, Token: token, ExpiresIn: expiresIn}, nil
}

// Attach signs an existing profile into this engine instance and returns a
// fresh session token.
func (u *UserUseCases) Attach(ctx context.Context, username string) (*entities.LoginResponse, error) {
	peer, err := u.userRepo.GetPeer(ctx, username)
	if err != nil {
		return nil, err
	}

	token, expiresIn, err := jwt.GenerateJWT(peer.Username, "user", peer.UID, u.tokenTTL())
	if err != nil {
		return nil, err
	}

	return &entities.LoginResponse{Username: peer.Username, Token: token, ExpiresIn: expiresIn}, nil
}

func (u *UserUseCases) GetPeer(ctx context.Context, username string) (*entities.Peer, error) {
	return u.userRepo.GetPeer(ctx, username)
}

type UserUseCaseImply interface {
	Signup(ctx context.Context, req *entities.SignupRequest) (*entities.LoginResponse, error)
	Attach(ctx context.Context, username string) (*entities.LoginResponse, error)
	GetPeer(ctx context.Context, username string) (*entities.Peer, error)
}

func NewUserUseCases(conf *config.ChatlineConfModel, userRepo repo.UserRepoImpl) UserUseCaseImply {
	return &UserUseCases{conf: conf, userRepo: userRepo}
}
