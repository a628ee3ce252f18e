package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrPathNotFound     = errors.New("store: path not found")
	ErrPermissionDenied = errors.New("store: permission denied")
	ErrClosed           = errors.New("store: client closed")
)

// Child is one direct child of a subscribed path, in store-native key order.
type Child struct {
	Key   string
	Value json.RawMessage
}

// Snapshot carries the full current set of children of a path. Every change
// under the path yields a fresh full snapshot, never a diff, so consumers are
// self-correcting against missed intermediate states.
type Snapshot struct {
	Path     string
	Children []Child
}

// Decode rebuilds the object form of the snapshot (children as fields) into v.
func (s Snapshot) Decode(v interface{}) error {
	fields := make(map[string]json.RawMessage, len(s.Children))
	for _, c := range s.Children {
		fields[c.Key] = c.Value
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Decode unmarshals the child value into v.
func (c Child) Decode(v interface{}) error {
	return json.Unmarshal(c.Value, v)
}

type (
	SnapshotFunc    func(Snapshot)
	ErrorFunc       func(error)
	UnsubscribeFunc func()
)

// Client is the shared mutable store every durable chat state lives in.
// Conversation keys partition writes, so no client-side locking is layered on
// top: append-only pushes never conflict and presence/block/clear subtrees are
// only ever written by their owning peer.
type Client interface {
	Get(ctx context.Context, path string, v interface{}) error
	Set(ctx context.Context, path string, v interface{}) error
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	Push(ctx context.Context, path string, v interface{}) (string, error)
	Delete(ctx context.Context, path string) error

	// Subscribe opens a change feed on path. The callback receives at least
	// one initial snapshot with the current state (possibly empty) and a full
	// snapshot after every subsequent change. The returned handle is
	// idempotent. Failures go to onError; the adapter never retries on its
	// own, that policy belongs to the caller.
	Subscribe(path string, onSnapshot SnapshotFunc, onError ErrorFunc) UnsubscribeFunc

	// OnDisconnectPut registers a write the store should apply when this
	// session goes away.
	OnDisconnectPut(path string, v interface{})

	Close() error
}

// Join builds a slash-separated store path.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}
