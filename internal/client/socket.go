package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/driftchat/internal/logger"
	"github.com/driftchat/internal/model"
	"github.com/driftchat/internal/ws"
)

// Socket consumes the server's event stream and folds every event into the
// State. Reconnects are the caller's concern: when Run returns, dial again
// and refetch — the state machine absorbs the replay.
type Socket struct {
	url       string
	sessionID string
	selfID    string
	state     *State
}

// NewSocket prepares a socket for the given server URL (http(s)://host).
func NewSocket(baseURL, sessionID, selfID string, state *State) *Socket {
	wsURL := strings.Replace(strings.TrimRight(baseURL, "/"), "http", "ws", 1)
	return &Socket{
		url:       wsURL + "/ws?session_id=" + url.QueryEscape(sessionID),
		sessionID: sessionID,
		selfID:    selfID,
		state:     state,
	}
}

// envelope defers payload decoding until the event type is known.
type envelope struct {
	Type    ws.EventType    `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Run dials the server and processes events until ctx cancels or the
// connection drops. Returns nil on clean shutdown.
func (s *Socket) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.dispatch(data)
	}
}

func (s *Socket) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Errorf("socket: bad frame: %v", err)
		return
	}
	switch env.Type {
	case ws.EventNewMessage:
		var msg model.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			logger.Errorf("socket: bad message payload: %v", err)
			return
		}
		s.state.ApplyIncoming(s.selfID, &msg)
	case ws.EventNewNotification:
		var n model.Notification
		if err := json.Unmarshal(env.Payload, &n); err != nil {
			logger.Errorf("socket: bad notification payload: %v", err)
			return
		}
		s.state.AddNotification(&n)
	case ws.EventOnlineUsers:
		var ids []string
		if err := json.Unmarshal(env.Payload, &ids); err != nil {
			logger.Errorf("socket: bad presence payload: %v", err)
			return
		}
		s.state.SetOnline(ids)
	default:
		// Unknown events are skipped so old clients survive new servers.
	}
}
