package usecases

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"chatline/config"
	"chatline/pkg/cache"
	"chatline/pkg/consts"
	"chatline/pkg/entities"
	"chatline/pkg/repo"
	"chatline/pkg/repo/driver/medium"
	"chatline/pkg/repo/driver/store"
	"chatline/utilities"
)

// ContactUseCases assembles and ranks the contact list from the caches and
// the users/groups watches, and keeps the unread subscription set in step
// with it.
type ContactUseCases struct {
	user     string
	conf     *config.ChatlineConfModel
	userRepo repo.UserRepoImpl
	chatRepo repo.ChatRepoImpl
	unread   UnreadUseCaseImply
	ws       *medium.Socket

	mu           sync.Mutex
	peers        []entities.Peer
	groups       []entities.GroupInfo
	unsubUsers   store.UnsubscribeFunc
	unsubGroups  store.UnsubscribeFunc
	unsubBlocked store.UnsubscribeFunc
	unsubCleared store.UnsubscribeFunc
}

// Start hydrates the store-synced block and tombstone state, then opens the
// watches. Hydration runs first so blocked sends and cleared history are
// gated correctly from the first moment of the session.
func (c *ContactUseCases) Start(ctx context.Context) {
	log := utilities.NewLogger("ContactsStart")

	if blocked, err := c.chatRepo.GetBlocked(ctx, c.user); err != nil {
		log.WithError(err).Warn("failed to hydrate block list")
	} else {
		cache.BlockedUserCache.ReplaceAll(c.user, blocked)
	}
	if tombstones, err := c.chatRepo.GetTombstones(ctx, c.user); err != nil {
		log.WithError(err).Warn("failed to hydrate clear tombstones")
	} else {
		cache.TombstoneCache.ReplaceAll(tombstones)
	}

	c.mu.Lock()
	c.unsubBlocked = c.chatRepo.WatchBlocked(c.user, func(snap store.Snapshot) {
		c.onBlocked(ctx, snap)
	}, func(err error) {
		log.WithError(err).Warn("block list watch error")
	})
	c.unsubCleared = c.chatRepo.WatchCleared(c.user, func(snap store.Snapshot) {
		c.onCleared(ctx, snap)
	}, func(err error) {
		log.WithError(err).Warn("cleared chats watch error")
	})
	c.unsubUsers = c.userRepo.WatchUsers(func(snap store.Snapshot) {
		c.onUsers(ctx, snap)
	}, func(err error) {
		log.WithError(err).Warn("users watch error")
	})
	c.unsubGroups = c.chatRepo.WatchGroups(func(snap store.Snapshot) {
		c.onGroups(ctx, snap)
	}, func(err error) {
		log.WithError(err).Warn("groups watch error")
	})
	c.mu.Unlock()
}

func (c *ContactUseCases) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, unsub := range []*store.UnsubscribeFunc{&c.unsubUsers, &c.unsubGroups, &c.unsubBlocked, &c.unsubCleared} {
		if *unsub != nil {
			(*unsub)()
			*unsub = nil
		}
	}
}

func (c *ContactUseCases) onUsers(ctx context.Context, snap store.Snapshot) {
	peers := make([]entities.Peer, 0, len(snap.Children))
	for _, child := range snap.Children {
		var peer entities.Peer
		if err := json.Unmarshal(child.Value, &peer); err != nil {
			continue
		}
		peer.Username = child.Key
		peers = append(peers, peer)
	}

	c.mu.Lock()
	c.peers = peers
	c.mu.Unlock()
	c.Refresh(ctx)
}

func (c *ContactUseCases) onGroups(ctx context.Context, snap store.Snapshot) {
	groups := make([]entities.GroupInfo, 0, len(snap.Children))
	for _, child := range snap.Children {
		var info entities.GroupInfo
		if err := json.Unmarshal(child.Value, &info); err != nil {
			continue
		}
		info.GID = child.Key
		if !utilities.ContainsString(info.Members, c.user) {
			continue
		}
		groups = append(groups, info)
	}

	c.mu.Lock()
	c.groups = groups
	c.mu.Unlock()
	c.Refresh(ctx)
}

// onBlocked replaces the block cache from the store snapshot, so blocks and
// unblocks made on other devices take effect here too.
func (c *ContactUseCases) onBlocked(ctx context.Context, snap store.Snapshot) {
	relations := make(map[string]entities.BlockRelation, len(snap.Children))
	for _, child := range snap.Children {
		var relation entities.BlockRelation
		if err := json.Unmarshal(child.Value, &relation); err != nil {
			continue
		}
		relations[child.Key] = relation
	}
	cache.BlockedUserCache.ReplaceAll(c.user, relations)
	c.Refresh(ctx)
}

func (c *ContactUseCases) onCleared(ctx context.Context, snap store.Snapshot) {
	tombstones := make(map[string]int64, len(snap.Children))
	for _, child := range snap.Children {
		var clearedAt int64
		if err := json.Unmarshal(child.Value, &clearedAt); err != nil {
			continue
		}
		tombstones[child.Key] = clearedAt
	}
	cache.TombstoneCache.ReplaceAll(tombstones)
	c.Refresh(ctx)
}

// Refresh pushes the current ranked list to the UI and reconciles the
// unread watches against the conversations it contains.
func (c *ContactUseCases) Refresh(ctx context.Context) {
	rows := c.ContactRows("", consts.FilterAll)

	targets := make(map[string]ConversationRef, len(rows))
	for _, row := range rows {
		targets[row.Target] = ConversationRef{Kind: row.Kind, Peer: row.Peer}
	}
	c.unread.Reconcile(ctx, targets)

	if c.ws != nil {
		_ = c.ws.PushEvent(c.user, entities.GatewayEvent{Kind: consts.EventContacts, Data: rows})
	}
}

// ContactRows builds the list for one query/filter combination. With a
// non-empty query, matching is a case-insensitive substring test and rows
// keep their source order; otherwise the recency ranking applies.
func (c *ContactUseCases) ContactRows(query, filter string) []entities.ContactRow {
	c.mu.Lock()
	peers := c.peers
	groups := c.groups
	c.mu.Unlock()

	rows := make([]entities.ContactRow, 0, len(peers)+len(groups))
	for _, peer := range peers {
		if peer.Username == c.user {
			continue
		}
		target := entities.ChatKey(c.user, peer.Username)
		row := entities.ContactRow{
			Target:      target,
			Kind:        consts.ChatKindIndividual,
			Peer:        peer.Username,
			DisplayName: peer.Username,
			PhotoURL:    peer.ProfilePhotoURL,
			Online:      cache.PresenceCache.IsOnline(peer.Username),
			LastSeen:    cache.PresenceCache.LastSeenOf(peer.Username),
			UnreadCount: cache.UnreadCache.Get(target),
			Blocked:     cache.BlockedUserCache.IsBlocked(c.user, peer.Username),
		}
		if msg, ok := cache.LastMessageCache.Get(target); ok {
			msg := msg
			row.LastMessage = &msg
		}
		rows = append(rows, row)
	}
	for _, group := range groups {
		row := entities.ContactRow{
			Target:      group.GID,
			Kind:        consts.ChatKindGroup,
			DisplayName: group.GroupName,
			UnreadCount: cache.UnreadCache.Get(group.GID),
			Members:     group.Members,
		}
		if msg, ok := cache.LastMessageCache.Get(group.GID); ok {
			msg := msg
			row.LastMessage = &msg
		}
		rows = append(rows, row)
	}

	rows = applyFilter(rows, filter)

	if query != "" {
		return searchRows(rows, query)
	}
	return rankRows(rows)
}

// applyFilter keeps only the rows the active filter selects. Blocked rows
// surface solely under the blocked filter; every other filter hides them.
func applyFilter(rows []entities.ContactRow, filter string) []entities.ContactRow {
	kept := make([]entities.ContactRow, 0, len(rows))
	for _, row := range rows {
		switch filter {
		case consts.FilterUnread:
			if row.UnreadCount > 0 && !row.Blocked {
				kept = append(kept, row)
			}
		case consts.FilterGroups:
			if row.Kind == consts.ChatKindGroup {
				kept = append(kept, row)
			}
		case consts.FilterBlocked:
			if row.Blocked {
				kept = append(kept, row)
			}
		default:
			if !row.Blocked {
				kept = append(kept, row)
			}
		}
	}
	return kept
}

// searchRows bypasses ranking: matches keep the order their sources have.
func searchRows(rows []entities.ContactRow, query string) []entities.ContactRow {
	query = strings.ToLower(query)
	matched := make([]entities.ContactRow, 0, len(rows))
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.DisplayName), query) {
			matched = append(matched, row)
		}
	}
	return matched
}

// rankRows orders by conversation recency: rows with a last message first,
// newest on top; rows without one follow, unread before read, then by name.
// The sort is stable so equal rows keep source order and the whole ranking
// is deterministic for identical inputs.
func rankRows(rows []entities.ContactRow) []entities.ContactRow {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		aTs, bTs := int64(0), int64(0)
		if a.LastMessage != nil {
			aTs = a.LastMessage.Timestamp
		}
		if b.LastMessage != nil {
			bTs = b.LastMessage.Timestamp
		}
		if aTs != bTs {
			return aTs > bTs
		}
		if aTs == 0 {
			aUnread := a.UnreadCount > 0
			bUnread := b.UnreadCount > 0
			if aUnread != bUnread {
				return aUnread
			}
			return a.DisplayName < b.DisplayName
		}
		return false
	})
	return rows
}

type ContactUseCaseImply interface {
	Start(ctx context.Context)
	Stop()
	Refresh(ctx context.Context)
	ContactRows(query, filter string) []entities.ContactRow
}

func NewContactUseCases(
	user string, conf *config.ChatlineConfModel, userRepo repo.UserRepoImpl,
	chatRepo repo.ChatRepoImpl, unread UnreadUseCaseImply, ws *medium.Socket,
) ContactUseCaseImply {
	return &ContactUseCases{
		user:     user,
		conf:     conf,
		userRepo: userRepo,
		chatRepo: chatRepo,
		unread:   unread,
		ws:       ws,
	}
}
