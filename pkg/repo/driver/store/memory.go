package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryStore is an in-process Client used in local mode and by tests. It
// mirrors the external store's contract: full-children snapshots on every
// change, coalesced so a slow consumer converges on the latest state rather
// than replaying every intermediate one.
type MemoryStore struct {
	mu          sync.Mutex
	root        map[string]interface{}
	subs        map[int64]*memSub
	nextSubID   int64
	pushSeq     int64
	disconnects []disconnectWrite
	closed      bool
}

type memSub struct {
	path       string
	ch         chan Snapshot
	stop       chan struct{}
	closed     atomic.Bool
	onSnapshot SnapshotFunc
}

type disconnectWrite struct {
	path  string
	value json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root: make(map[string]interface{}),
		subs: make(map[int64]*memSub),
	}
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// decompose turns JSON objects into nested maps so that path-level writes,
// merges and child listings all operate on one uniform tree shape.
func decompose(raw json.RawMessage) interface{} {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return raw
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return raw
	}
	node := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		node[k] = decompose(v)
	}
	return node
}

func rebuild(node interface{}) json.RawMessage {
	switch n := node.(type) {
	case json.RawMessage:
		return n
	case map[string]interface{}:
		fields := make(map[string]json.RawMessage, len(n))
		for k, v := range n {
			fields[k] = rebuild(v)
		}
		raw, _ := json.Marshal(fields)
		return raw
	default:
		return nil
	}
}

func (m *MemoryStore) nodeAt(segs []string) (interface{}, bool) {
	var node interface{} = m.root
	for _, seg := range segs {
		asMap, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		node, ok = asMap[seg]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

func (m *MemoryStore) setNode(segs []string, node interface{}) {
	parent := m.root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := parent[seg].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			parent[seg] = next
		}
		parent = next
	}
	parent[segs[len(segs)-1]] = node
}

func (m *MemoryStore) deleteNode(segs []string) {
	if len(segs) == 0 {
		m.root = make(map[string]interface{})
		return
	}
	parents := make([]map[string]interface{}, 0, len(segs))
	node := m.root
	for _, seg := range segs[:len(segs)-1] {
		parents = append(parents, node)
		next, ok := node[seg].(map[string]interface{})
		if !ok {
			return
		}
		node = next
	}
	parents = append(parents, node)
	delete(node, segs[len(segs)-1])

	// empty nodes do not exist in the store
	for i := len(segs) - 2; i >= 0; i-- {
		child, ok := parents[i][segs[i]].(map[string]interface{})
		if ok && len(child) == 0 {
			delete(parents[i], segs[i])
		}
	}
}

func (m *MemoryStore) snapshotAt(path string) Snapshot {
	snap := Snapshot{Path: path}
	node, ok := m.nodeAt(splitPath(path))
	if !ok {
		return snap
	}
	asMap, ok := node.(map[string]interface{})
	if !ok {
		return snap
	}
	keys := make([]string, 0, len(asMap))
	for k := range asMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		snap.Children = append(snap.Children, Child{Key: k, Value: rebuild(asMap[k])})
	}
	return snap
}

// notify fans the current state of every subscription touching mutatedPath
// out to its delivery channel, coalescing when the consumer lags.
func (m *MemoryStore) notify(mutatedPath string) {
	mutated := strings.Trim(mutatedPath, "/") + "/"
	for _, sub := range m.subs {
		subPath := strings.Trim(sub.path, "/") + "/"
		if !strings.HasPrefix(mutated, subPath) && !strings.HasPrefix(subPath, mutated) {
			continue
		}
		sub.deliver(m.snapshotAt(sub.path))
	}
}

func (s *memSub) deliver(snap Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	// consumer lagging: replace the queued snapshot with the newest one
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

func (m *MemoryStore) write(path string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("memory store: marshal for %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	segs := splitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("memory store: empty path")
	}
	m.setNode(segs, decompose(raw))
	m.notify(path)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, path string, v interface{}) error {
	m.mu.Lock()
	node, ok := m.nodeAt(splitPath(path))
	var raw json.RawMessage
	if ok {
		raw = rebuild(node)
	}
	m.mu.Unlock()

	if !ok || raw == nil {
		return ErrPathNotFound
	}
	return json.Unmarshal(raw, v)
}

func (m *MemoryStore) Set(_ context.Context, path string, v interface{}) error {
	return m.write(path, v)
}

func (m *MemoryStore) Update(_ context.Context, path string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("memory store: marshal for %s/%s: %w", path, k, err)
		}
		m.setNode(append(splitPath(path), k), decompose(raw))
	}
	m.notify(path)
	return nil
}

func (m *MemoryStore) Push(_ context.Context, path string, v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("memory store: marshal for %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}
	m.pushSeq++
	// zero-padded so key order matches insertion order, like the store's
	// native push ids
	key := fmt.Sprintf("-K%013d", m.pushSeq)
	m.setNode(append(splitPath(path), key), decompose(raw))
	m.notify(path)
	return key, nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.deleteNode(splitPath(path))
	m.notify(path)
	return nil
}

func (m *MemoryStore) Subscribe(path string, onSnapshot SnapshotFunc, onError ErrorFunc) UnsubscribeFunc {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if onError != nil {
			go onError(ErrClosed)
		}
		return func() {}
	}

	m.nextSubID++
	id := m.nextSubID
	sub := &memSub{
		path:       path,
		ch:         make(chan Snapshot, 1),
		stop:       make(chan struct{}),
		onSnapshot: onSnapshot,
	}
	m.subs[id] = sub
	sub.deliver(m.snapshotAt(path))
	m.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.stop:
				return
			case snap := <-sub.ch:
				if sub.closed.Load() {
					return
				}
				sub.onSnapshot(snap)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.closed.Store(true)
			close(sub.stop)
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

func (m *MemoryStore) OnDisconnectPut(path string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects = append(m.disconnects, disconnectWrite{path: path, value: raw})
}

// Close applies registered disconnect writes and tears every subscription
// down, mirroring the session going away against the real store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	for _, w := range m.disconnects {
		m.setNode(splitPath(w.path), decompose(w.value))
		m.notify(w.path)
	}
	m.disconnects = nil
	m.closed = true
	subs := m.subs
	m.subs = make(map[int64]*memSub)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.closed.Store(true)
		close(sub.stop)
	}
	return nil
}

var _ Client = (*MemoryStore)(nil)
