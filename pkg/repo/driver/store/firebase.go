package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"chatline/config"
	"chatline/utilities"
	"chatline/utilities/http_client"
)

// FirebaseStore backs the Client interface with a Firebase Realtime Database.
// One-shot reads and writes go through the admin SDK; the admin SDK exposes
// no realtime listeners, so Subscribe streams the REST API's
// text/event-stream feed and folds put/patch events into a local tree.
type FirebaseStore struct {
	client      *db.Client
	baseURL     string
	authToken   string
	cancel      context.CancelFunc
	ctx         context.Context
	mu          sync.Mutex
	disconnects []disconnectWrite
	closed      bool
}

func NewFirebaseStore(ctx context.Context, conf *config.ChatlineConfModel) (*FirebaseStore, error) {
	log := utilities.NewLogger("NewFirebaseStore")

	var opts []option.ClientOption
	if conf.Store.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.Store.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: conf.Store.DatabaseURL}, opts...)
	if err != nil {
		log.WithError(err).Error("initialising firebase app")
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		log.WithError(err).Error("initialising realtime database client")
		return nil, fmt.Errorf("firebase database: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	return &FirebaseStore{
		client:    client,
		baseURL:   strings.TrimRight(conf.Store.DatabaseURL, "/"),
		authToken: conf.Store.AuthToken,
		ctx:       streamCtx,
		cancel:    cancel,
	}, nil
}

func (f *FirebaseStore) Get(ctx context.Context, path string, v interface{}) error {
	var raw json.RawMessage
	if err := f.client.NewRef(path).Get(ctx, &raw); err != nil {
		return fmt.Errorf("store get %s: %w", path, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return ErrPathNotFound
	}
	return json.Unmarshal(raw, v)
}

func (f *FirebaseStore) Set(ctx context.Context, path string, v interface{}) error {
	if err := f.client.NewRef(path).Set(ctx, v); err != nil {
		return fmt.Errorf("store set %s: %w", path, err)
	}
	return nil
}

func (f *FirebaseStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := f.client.NewRef(path).Update(ctx, fields); err != nil {
		return fmt.Errorf("store update %s: %w", path, err)
	}
	return nil
}

func (f *FirebaseStore) Push(ctx context.Context, path string, v interface{}) (string, error) {
	ref, err := f.client.NewRef(path).Push(ctx, v)
	if err != nil {
		return "", fmt.Errorf("store push %s: %w", path, err)
	}
	return ref.Key, nil
}

func (f *FirebaseStore) Delete(ctx context.Context, path string) error {
	if err := f.client.NewRef(path).Delete(ctx); err != nil {
		return fmt.Errorf("store delete %s: %w", path, err)
	}
	return nil
}

func (f *FirebaseStore) streamURL(path string) string {
	u := fmt.Sprintf("%s/%s.json", f.baseURL, strings.Trim(path, "/"))
	if f.authToken != "" {
		u += "?auth=" + url.QueryEscape(f.authToken)
	}
	return u
}

// Subscribe streams one SSE connection for path. A dropped or rejected
// stream surfaces through onError and the subscription goes inactive; the
// retry decision stays with the caller.
func (f *FirebaseStore) Subscribe(path string, onSnapshot SnapshotFunc, onError ErrorFunc) UnsubscribeFunc {
	log := utilities.NewLoggerWithFields("Subscribe", map[string]interface{}{"path": path})

	subCtx, cancel := context.WithCancel(f.ctx)
	go func() {
		tree := make(map[string]interface{})
		err := f.stream(subCtx, path, tree, onSnapshot)
		if subCtx.Err() != nil {
			return
		}
		log.WithError(err).Warn("event stream dropped")
		if onError != nil {
			onError(err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
	}
}

// stream holds one SSE connection open and applies its events to tree,
// emitting a full child snapshot after every server-sent change.
func (f *FirebaseStore) stream(ctx context.Context, path string, tree map[string]interface{}, onSnapshot SnapshotFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.streamURL(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http_client.GetStreamingClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream for %s: status %s", path, resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "put", "patch":
				if applySSE(tree, event, data) {
					onSnapshot(treeSnapshot(path, tree))
				}
			case "auth_revoked", "cancel":
				return fmt.Errorf("event stream for %s: %s", path, event)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("event stream for %s: closed by server", path)
}

type sseEvent struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

func applySSE(tree map[string]interface{}, event, data string) bool {
	var ev sseEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return false
	}
	segs := splitPath(ev.Path)
	isNull := len(ev.Data) == 0 || string(ev.Data) == "null"

	if event == "patch" {
		var fields map[string]json.RawMessage
		if isNull || json.Unmarshal(ev.Data, &fields) != nil {
			return false
		}
		for k, v := range fields {
			if string(v) == "null" {
				treeDelete(tree, append(segs, k))
				continue
			}
			treeSet(tree, append(segs, k), decompose(v))
		}
		return true
	}

	if isNull {
		if len(segs) == 0 {
			for k := range tree {
				delete(tree, k)
			}
			return true
		}
		treeDelete(tree, segs)
		return true
	}
	if len(segs) == 0 {
		for k := range tree {
			delete(tree, k)
		}
		node, ok := decompose(ev.Data).(map[string]interface{})
		if !ok {
			return false
		}
		for k, v := range node {
			tree[k] = v
		}
		return true
	}
	treeSet(tree, segs, decompose(ev.Data))
	return true
}

func treeSet(tree map[string]interface{}, segs []string, node interface{}) {
	parent := tree
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

func treeDelete(tree map[string]interface{}, segs []string) {
	parent := tree
	for _, seg := range segs[:len(segs)-1] {
		next, ok := parent[seg].(map[string]interface{})
		if !ok {
			return
		}
		parent = next
	}
	delete(parent, segs[len(segs)-1])
}

func treeSnapshot(path string, tree map[string]interface{}) Snapshot {
	snap := Snapshot{Path: path}
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		snap.Children = append(snap.Children, Child{Key: k, Value: rebuild(tree[k])})
	}
	return snap
}

// OnDisconnectPut registers a write applied when the session ends. The REST
// transport has no connection-scoped disconnect hooks, so these flush on
// graceful Close; abrupt exits are covered by presence staleness windows.
func (f *FirebaseStore) OnDisconnectPut(path string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects = append(f.disconnects, disconnectWrite{path: path, value: raw})
}

func (f *FirebaseStore) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	writes := f.disconnects
	f.disconnects = nil
	f.mu.Unlock()

	f.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	for _, w := range writes {
		var v json.RawMessage = w.value
		if err := f.client.NewRef(w.path).Set(ctx, v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Client = (*FirebaseStore)(nil)
