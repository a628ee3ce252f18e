package medium

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	uuidLib "github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatline/pkg/entities"
	"chatline/utilities"
)

type ErrWSConnAbsent struct {
	Message string
	ID      string
}

func (e *ErrWSConnAbsent) Error() string {
	return fmt.Sprintf("%s, ID: %s", e.Message, e.ID)
}

// Socket fans engine events out to the UI connections of each signed-in
// user and funnels their commands into a single read channel.
type Socket struct {
	*sync.RWMutex
	ConnSet     map[string]*UserConnObject
	ReadChannel chan Command
	WithReader  bool
}

type UserConnObject struct {
	ConnObjs    []*ConnObject
	IsOnline    bool
	LastChecked time.Time
}

type ConnObject struct {
	ID    string
	Conn  *websocket.Conn
	Close chan bool
}

// Command is what the UI sends over the gateway: chat activation, sends,
// read markers and presence/status queries.
type Command struct {
	Kind     string `json:"kind"`
	Target   string `json:"target"`
	ChatKind string `json:"chatKind"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	FileName string `json:"fileName"`
	Sender   string `json:"sender"`
	Time     int64  `json:"time"`
	UUID     string `json:"uuid"`
}

const (
	pingInterval = time.Second * 30
)

func (s *Socket) GetReadChannel() chan Command {
	if !s.WithReader {
		return nil
	}
	return s.ReadChannel
}

func (s *Socket) Add(user string, newUserConn *websocket.Conn) {
	s.Lock()
	defer s.Unlock()
	log := utilities.NewLoggerWithFields(
		"websocket.Add", map[string]interface{}{
			"id": user,
		},
	)

	if _, ok := s.ConnSet[user]; !ok {
		s.ConnSet[user] = &UserConnObject{
			ConnObjs: make([]*ConnObject, 0),
		}
	}

	connObj := &ConnObject{
		Conn:  newUserConn,
		Close: make(chan bool),
		ID:    uuidLib.NewString(),
	}

	err := connObj.Conn.SetWriteDeadline(time.Time{})
	if err != nil {
		log.WithError(err).Errorf("setting SetWriteDeadline failed for user %s", user)
	}

	connObj.Conn.SetCloseHandler(
		func(code int, text string) error {
			close(connObj.Close)
			log.Infof("Received close message with code %d and text %s for %s:%s", code, text, user, connObj.ID)
			return nil
		},
	)

	readerFn := func(connObj *ConnObject, user string) {
		defer close(connObj.Close)
		thisConn := connObj.Conn
		for {
			messageType, message, err := thisConn.ReadMessage()
			if err != nil {
				closeErr := &websocket.CloseError{}
				if !errors.As(err, &closeErr) {
					log.WithError(err).Errorf("error reading msg of type %d", messageType)
				}
				return
			}
			_ = thisConn.SetReadDeadline(time.Now().Add(pingInterval))

			var cmd Command
			if err = json.Unmarshal(message, &cmd); err != nil {
				log.WithError(err).Errorf("failed to unmarshal command %v", string(message))
				continue
			}
			if cmd.Sender == "" {
				cmd.Sender = user
			}
			if cmd.Time == 0 {
				cmd.Time = utilities.UnixMilli(utilities.TimeNow())
			}
			s.ReadChannel <- cmd
		}
	}

	if s.WithReader {
		go readerFn(connObj, user)
	}

	// to check health of connection
	go func(s *Socket, connObj *ConnObject, user string) {
		thisConn := connObj.Conn
		ticker := time.NewTicker(pingInterval)
		defer func() {
			log.Infof("Closing the ws connection for %s:%s", user, connObj.ID)
			ticker.Stop()
			err = thisConn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			if err != nil {
				log.WithError(err).Error("sending close msg failed")
			}
			s.Remove(user, connObj.ID)
		}()

		_ = thisConn.SetReadDeadline(time.Now().Add(pingInterval))
		thisConn.SetPongHandler(func(string) error { _ = thisConn.SetReadDeadline(time.Now().Add(pingInterval)); return nil })

		for {
			if err = thisConn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				log.WithError(err).Errorf("ping failed, user: %s", user)
				return
			}

			s.ConnSet[user].IsOnline = true
			s.ConnSet[user].LastChecked = time.Now()

			select {
			case <-connObj.Close:
				log.Debugf("Received ping close for %s", user)
				return
			case <-ticker.C:
			}
		}
	}(s, connObj, user)

	s.ConnSet[user].ConnObjs = append(s.ConnSet[user].ConnObjs, connObj)
	log.Debugf("Adding new ws connection %s for user %s, total conns: %d", connObj.ID, user, len(s.ConnSet[user].ConnObjs))
}

func (s *Socket) Remove(user string, connID string) {
	log := utilities.NewLoggerWithFields(
		"websocket.Remove", map[string]interface{}{
			"id": user,
		},
	)

	s.Lock()
	defer s.Unlock()
	userConnObj, ok := s.ConnSet[user]
	if !ok || userConnObj == nil {
		// nothing to remove
		return
	}

	acceptedConns := make([]*ConnObject, 0)
	for _, connObj := range userConnObj.ConnObjs {
		if connObj.ID == connID {
			err := connObj.Conn.Close()
			if err != nil {
				log.WithError(err).Errorf("error closing ws conn for user %s", user)
			}
			continue
		}
		acceptedConns = append(acceptedConns, connObj)
	}

	if len(acceptedConns) == 0 {
		delete(s.ConnSet, user)
	} else {
		s.ConnSet[user].ConnObjs = acceptedConns
	}
}

func NewWebSocket(withReader bool) *Socket {
	return &Socket{
		RWMutex:     new(sync.RWMutex),
		ConnSet:     make(map[string]*UserConnObject),
		ReadChannel: make(chan Command, 1000),
		WithReader:  withReader,
	}
}

func Upgrade() websocket.Upgrader {
	return websocket.Upgrader{
		Subprotocols: []string{"websocket"},
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// PushEvent sends an engine event to every active connection of user.
func (s *Socket) PushEvent(user string, event entities.GatewayEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling gateway event: %w", err)
	}
	return s.PushMessage(user, data, true)
}

func (s *Socket) PushMessage(user string, data []byte, broadcast bool) error {
	s.RLock()
	defer s.RUnlock()
	log := utilities.NewLoggerWithFields(
		"websocket.PushMessage", map[string]interface{}{
			"id": user,
		},
	)

	userConnObj, ok := s.ConnSet[user]
	if !ok || userConnObj == nil || len(userConnObj.ConnObjs) < 1 {
		return &ErrWSConnAbsent{
			Message: "ws connection absent",
			ID:      user,
		}
	}

	connObjs := userConnObj.ConnObjs
	if !broadcast {
		connObjs = []*ConnObject{userConnObj.ConnObjs[len(userConnObj.ConnObjs)-1]}
	}

	sent := false
	var pushErrors []string
	for _, connObj := range connObjs {
		err := connObj.Conn.WriteMessage(websocket.TextMessage, data)
		if err != nil {
			pushErrors = append(pushErrors, err.Error())
			continue
		}
		sent = true
		log.Debugf("ws message %s sent to %s", string(data), user)
	}

	if !sent {
		return fmt.Errorf("ws message %s failed for %s: %s", string(data), user, strings.Join(pushErrors, ":"))
	}

	return nil
}
