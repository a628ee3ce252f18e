package entities

import (
	"fmt"
	"strings"
)

// Message is one append-only entry in a conversation. Timestamps are assigned
// by the sending client in epoch millis; Key is the store-native child key
// used to break timestamp ties.
type Message struct {
	Key       string `json:"-"`
	Username  string `json:"username,omitempty"`
	Message   string `json:"message,omitempty"`
	Type      string `json:"type,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	Format    string `json:"format,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Time      string `json:"time,omitempty"`
}

// GroupInfo is the metadata of a group conversation at groupChats/{gid}.
type GroupInfo struct {
	GID       string   `json:"gid,omitempty"`
	GroupName string   `json:"groupName,omitempty"`
	CreatedBy string   `json:"createdBy,omitempty"`
	CreatedAt int64    `json:"createdAt,omitempty"`
	Members   []string `json:"members,omitempty"`
}

// BlockRelation is the directed edge at blockedUsers/{blocker}/{blocked}.
type BlockRelation struct {
	BlockedAt int64  `json:"blockedAt"`
	BlockedBy string `json:"blockedBy"`
}

// ContactRow is one entry of the rendered contact list. Peer carries the
// handle for individual rows; the conversation key is not parseable back
// into handles.
type ContactRow struct {
	Target        string   `json:"target"`
	Kind          string   `json:"kind"`
	Peer          string   `json:"peer,omitempty"`
	DisplayName   string   `json:"display_name"`
	PhotoURL      string   `json:"photo_url,omitempty"`
	Online        bool     `json:"online"`
	LastSeen      int64    `json:"last_seen,omitempty"`
	LastMessage   *Message `json:"last_message,omitempty"`
	UnreadCount   int      `json:"unread_count"`
	Blocked       bool     `json:"blocked"`
	Members       []string `json:"members,omitempty"`
}

// ChatKey derives the canonical key of a 1:1 conversation. Both sides compute
// the same key without coordination because the two handles are joined in
// lexicographic order. Handles are restricted to alphanumerics plus
// underscore, so the separator cannot collide.
func ChatKey(a, b string) string {
	if a < b {
		return a + "_" + b
	}
	return b + "_" + a
}

// GroupID derives a group conversation id from its name and creation time.
func GroupID(groupName string, createdAt int64) string {
	return fmt.Sprintf("%s_%d", strings.ReplaceAll(groupName, " ", "_"), createdAt)
}
