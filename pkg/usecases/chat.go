package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

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
	ErrNoActiveChat = errors.New("no conversation is selected")
	ErrEmptyMessage = errors.New("message text is empty")
	ErrPeerBlocked  = errors.New("peer is blocked")
	ErrSelfChat     = errors.New("cannot open a conversation with yourself")
)

// ChatUseCases drives the active conversation: exactly one message
// subscription exists at a time, its snapshots are reconciled into an
// ordered visible view and pushed to the UI.
type ChatUseCases struct {
	user     string
	conf     *config.ChatlineConfModel
	chatRepo repo.ChatRepoImpl
	unread   UnreadUseCaseImply
	media    *medium.MediaClient
	ws       *medium.Socket

	mu           sync.Mutex
	activeTarget string
	activePeer   string
	activeKind   string
	unsubActive  store.UnsubscribeFunc
}

// SetActiveChat switches the message subscription. For individual chats
// target is the peer's handle and the conversation key is derived here;
// for groups it is the group id. Selecting a blocked peer tears the old
// subscription down and renders an empty view without touching the store.
func (c *ChatUseCases) SetActiveChat(ctx context.Context, target, kind string) error {
	log := utilities.NewLoggerWithFields("SetActiveChat", map[string]interface{}{"target": target})

	key, peer := target, ""
	if kind == consts.ChatKindIndividual {
		if target == c.user {
			return ErrSelfChat
		}
		peer = target
		key = entities.ChatKey(c.user, peer)
	}

	c.mu.Lock()
	if c.unsubActive != nil {
		c.unsubActive()
		c.unsubActive = nil
	}
	c.activeTarget = key
	c.activePeer = peer
	c.activeKind = kind

	if peer != "" && cache.BlockedUserCache.IsBlocked(c.user, peer) {
		c.mu.Unlock()
		c.pushChat(key, nil)
		return nil
	}

	c.unsubActive = c.chatRepo.WatchMessages(key, kind, func(snap store.Snapshot) {
		c.onMessages(key, snap)
	}, func(err error) {
		log.WithError(err).Warn("message watch error")
	})
	c.mu.Unlock()
	return nil
}

func (c *ChatUseCases) DeactivateChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubActive != nil {
		c.unsubActive()
		c.unsubActive = nil
	}
	c.activeTarget = ""
	c.activePeer = ""
	c.activeKind = ""
}

func (c *ChatUseCases) ActiveChat() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeTarget, c.activeKind
}

// onMessages reconciles one snapshot into the visible, ordered view:
// tombstoned entries are dropped, the rest sorted by timestamp with the
// store key as tie breaker. Viewing the conversation counts as reading it.
func (c *ChatUseCases) onMessages(target string, snap store.Snapshot) {
	tombstone := cache.TombstoneCache.Get(target)

	msgs := make([]entities.Message, 0, len(snap.Children))
	for _, child := range snap.Children {
		var msg entities.Message
		if err := json.Unmarshal(child.Value, &msg); err != nil {
			continue
		}
		if msg.Timestamp <= tombstone {
			continue
		}
		msg.Key = child.Key
		msg.Time = utilities.DisplayTime(msg.Timestamp)
		msgs = append(msgs, msg)
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].Key < msgs[j].Key
	})

	if len(msgs) > 0 {
		cache.LastMessageCache.Set(target, msgs[len(msgs)-1])
	} else {
		cache.LastMessageCache.Drop(target)
	}

	_ = c.unread.MarkRead(context.Background(), target)
	c.pushChat(target, msgs)
}

func (c *ChatUseCases) pushChat(target string, msgs []entities.Message) {
	if c.ws == nil {
		return
	}
	if msgs == nil {
		msgs = []entities.Message{}
	}
	_ = c.ws.PushEvent(c.user, entities.GatewayEvent{Kind: consts.EventChat, Data: map[string]interface{}{
		"target":   target,
		"messages": msgs,
	}})
}

// Send appends a message to the active conversation. The timestamp is
// client-assigned millis. Attachments are uploaded first; an upload
// failure aborts the send entirely.
func (c *ChatUseCases) Send(ctx context.Context, msg *entities.Message, attachment io.Reader, size int64) (*entities.Response, error) {
	c.mu.Lock()
	target, peer, kind := c.activeTarget, c.activePeer, c.activeKind
	c.mu.Unlock()

	if target == "" {
		return nil, ErrNoActiveChat
	}
	if peer != "" && cache.BlockedUserCache.IsBlocked(c.user, peer) {
		return nil, ErrPeerBlocked
	}

	if msg.Type == "" {
		msg.Type = consts.MsgTypeText
	}
	if msg.Type == consts.MsgTypeText && strings.TrimSpace(msg.Message) == "" {
		return nil, ErrEmptyMessage
	}

	if attachment != nil {
		upload, err := c.media.Upload(msg.FileName, msg.Type, attachment, size)
		if err != nil {
			return nil, err
		}
		msg.Message = upload.SecureURL
		msg.Format = upload.Format
		msg.Duration = upload.Duration
	}

	msg.Username = c.user
	if msg.Timestamp == 0 {
		msg.Timestamp = utilities.UnixMilli(utilities.TimeNow())
	}

	var err error
	if kind == consts.ChatKindGroup {
		_, err = c.chatRepo.StoreGroupChat(ctx, target, msg)
	} else {
		_, err = c.chatRepo.StorePersonalChat(ctx, target, msg)
	}
	if err != nil {
		return nil, err
	}

	return &entities.Response{Message: "Successfully sent message"}, nil
}

// ClearChat writes the user's tombstone. History stays in the store for the
// other participants; locally everything at or before the tombstone
// disappears from view and from unread counting.
func (c *ChatUseCases) ClearChat(ctx context.Context, target string) (*entities.Response, error) {
	clearedAt := utilities.UnixMilli(utilities.TimeNow())
	if err := c.chatRepo.ClearChat(ctx, c.user, target, clearedAt); err != nil {
		return nil, err
	}
	cache.TombstoneCache.Set(target, clearedAt)
	cache.LastMessageCache.Drop(target)
	cache.UnreadCache.Reset(target, clearedAt)

	c.mu.Lock()
	isActive := c.activeTarget == target
	c.mu.Unlock()
	if isActive {
		c.pushChat(target, nil)
	}

	return &entities.Response{Message: "Successfully cleared chat"}, nil
}

// Block records the directed relation. If the blocked peer's conversation
// is the active one it is deselected; its badge and watch go away on the
// next reconcile.
func (c *ChatUseCases) Block(ctx context.Context, target string) (*entities.Response, error) {
	if target == c.user {
		return nil, ErrSelfChat
	}

	resp, err := c.chatRepo.BlockUser(ctx, c.user, target)
	if err != nil {
		return nil, err
	}
	cache.BlockedUserCache.Add(c.user, target, entities.BlockRelation{
		BlockedAt: utilities.UnixMilli(utilities.TimeNow()),
		BlockedBy: c.user,
	})

	key := entities.ChatKey(c.user, target)
	cache.UnreadCache.Drop(key)

	c.mu.Lock()
	deselect := c.activePeer == target
	c.mu.Unlock()
	if deselect {
		c.DeactivateChat()
		c.pushChat(key, nil)
	}

	return resp, nil
}

func (c *ChatUseCases) Unblock(ctx context.Context, target string) (*entities.Response, error) {
	resp, err := c.chatRepo.UnblockUser(ctx, c.user, target)
	if err != nil {
		return nil, err
	}
	cache.BlockedUserCache.Remove(c.user, target)
	return resp, nil
}

// CreateGroup derives the group id from name and creation time and writes
// the metadata node. The creator is always a member.
func (c *ChatUseCases) CreateGroup(ctx context.Context, name string, members []string) (*entities.GroupInfo, error) {
	createdAt := utilities.UnixMilli(utilities.TimeNow())
	info := &entities.GroupInfo{
		GID:       entities.GroupID(name, createdAt),
		GroupName: name,
		CreatedBy: c.user,
		CreatedAt: createdAt,
		Members:   members,
	}
	if _, err := c.chatRepo.StoreGroupInfo(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

// CommandProcessor consumes UI commands from the gateway until the channel
// closes or the context ends.
func (c *ChatUseCases) CommandProcessor(ctx context.Context) {
	log := utilities.NewLogger("CommandProcessor")

	ch := c.ws.GetReadChannel()
	if ch == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-ch:
			if !ok {
				return
			}
			c.handleCommand(ctx, cmd, log)
		}
	}
}

func (c *ChatUseCases) handleCommand(ctx context.Context, cmd medium.Command, log *logrus.Entry) {
	switch cmd.Kind {
	case consts.CommandActivate:
		if cmd.Target == "" {
			c.DeactivateChat()
			return
		}
		kind := cmd.ChatKind
		if kind == "" {
			kind = consts.ChatKindIndividual
		}
		if err := c.SetActiveChat(ctx, cmd.Target, kind); err != nil {
			log.Warnf("activate %s failed: %v", cmd.Target, err)
		}
	case consts.CommandMarkRead:
		if err := c.unread.MarkRead(ctx, cmd.Target); err != nil {
			log.Warnf("mark read %s failed: %v", cmd.Target, err)
		}
	case consts.CommandSend:
		msg := &entities.Message{
			Message:   cmd.Message,
			Type:      cmd.Type,
			FileName:  cmd.FileName,
			Timestamp: cmd.Time,
		}
		if _, err := c.Send(ctx, msg, nil, 0); err != nil {
			c.pushError(err)
		}
	case consts.CommandStatus:
		_ = c.ws.PushEvent(c.user, entities.GatewayEvent{Kind: consts.EventPresence, Data: map[string]interface{}{
			"target":   cmd.Target,
			"online":   cache.PresenceCache.IsOnline(cmd.Target),
			"lastSeen": cache.PresenceCache.LastSeenOf(cmd.Target),
		}})
	default:
		log.Warnf("unknown gateway command %q", cmd.Kind)
	}
}

func (c *ChatUseCases) pushError(err error) {
	if c.ws == nil {
		return
	}
	_ = c.ws.PushEvent(c.user, entities.GatewayEvent{Kind: consts.EventError, Data: map[string]interface{}{
		"error": err.Error(),
	}})
}

type ChatUseCaseImply interface {
	SetActiveChat(ctx context.Context, target, kind string) error
	DeactivateChat()
	ActiveChat() (string, string)
	Send(ctx context.Context, msg *entities.Message, attachment io.Reader, size int64) (*entities.Response, error)
	ClearChat(ctx context.Context, target string) (*entities.Response, error)
	Block(ctx context.Context, target string) (*entities.Response, error)
	Unblock(ctx context.Context, target string) (*entities.Response, error)
	CreateGroup(ctx context.Context, name string, members []string) (*entities.GroupInfo, error)
	CommandProcessor(ctx context.Context)
}

func NewChatUseCases(
	user string, conf *config.ChatlineConfModel, chatRepo repo.ChatRepoImpl,
	unread UnreadUseCaseImply, media *medium.MediaClient, ws *medium.Socket,
) ChatUseCaseImply {
	return &ChatUseCases{
		user:     user,
		conf:     conf,
		chatRepo: chatRepo,
		unread:   unread,
		media:    media,
		ws:       ws,
	}
}
