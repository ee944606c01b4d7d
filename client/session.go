package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studentos/chat_backend/models"
)

// SendError reports a failed send, correlated to the optimistic entry that
// was removed from its timeline.
type SendError struct {
	TempID  string
	Message string
	Code    string
}

// Session is one websocket connection to the relay. Sends are optimistic: a
// pending entry appears in the room's timeline before the request leaves the
// process, and is reconciled when the server confirms or rejects it.
type Session struct {
	conn     *websocket.Conn
	userID   string
	userName string

	writeMu sync.Mutex

	mu        sync.Mutex
	timelines map[string]*Timeline

	nextTemp atomic.Int64
	errs     chan SendError
	done     chan struct{}
	closeOne sync.Once
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type sendPayload struct {
	RoomID      string          `json:"roomId"`
	SenderID    string          `json:"senderId"`
	SenderName  string          `json:"senderName"`
	MessageText string          `json:"messageText"`
	TempID      json.RawMessage `json:"tempId"`
}

// Dial connects a websocket session. wsURL is the ws:// or wss:// endpoint;
// the bearer token authenticates the upgrade.
func Dial(ctx context.Context, wsURL, token, userID, userName string) (*Session, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	s := &Session{
		conn:      conn,
		userID:    userID,
		userName:  userName,
		timelines: make(map[string]*Timeline),
		errs:      make(chan SendError, 16),
		done:      make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Join subscribes this connection to a room's broadcast group. There is no
// acknowledgement; failures arrive as error events.
func (s *Session) Join(roomID string) error {
	return s.writeEvent("joinRoom", map[string]string{
		"roomId":   roomID,
		"callerId": s.userID,
	})
}

// Leave unsubscribes from a room's broadcast group.
func (s *Session) Leave(roomID string) error {
	return s.writeEvent("leaveRoom", map[string]string{"roomId": roomID})
}

// Send appends a pending entry to the room's timeline and forwards the send
// request. The local append happens before any network I/O. The returned
// correlation token identifies the pending entry in SendError reports.
func (s *Session) Send(roomID, text string) (string, error) {
	tempID := strconv.Quote(fmt.Sprintf("temp-%d", s.nextTemp.Add(1)))

	pending := models.Message{
		RoomID:      roomID,
		SenderID:    s.userID,
		SenderName:  s.userName,
		MessageText: text,
		CreatedAt:   time.Now(),
	}
	tl := s.Timeline(roomID)
	tl.AppendPending(pending, tempID)

	err := s.writeEvent("sendMessage", sendPayload{
		RoomID:      roomID,
		SenderID:    s.userID,
		SenderName:  s.userName,
		MessageText: text,
		TempID:      json.RawMessage(tempID),
	})
	if err != nil {
		tl.Fail(tempID)
		return "", err
	}
	return tempID, nil
}

// Timeline returns the ordered message view for a room, creating it if
// needed.
func (s *Session) Timeline(roomID string) *Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.timelines[roomID]
	if !ok {
		tl = NewTimeline()
		s.timelines[roomID] = tl
	}
	return tl
}

// SendErrors exposes rejected sends. The channel is buffered; unread errors
// beyond the buffer are dropped.
func (s *Session) SendErrors() <-chan SendError {
	return s.errs
}

// Done is closed when the read loop exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears down the connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) writeEvent(event string, payload interface{}) error {
	data, err := json.Marshal(struct {
		Type    string      `json:"type"`
		Payload interface{} `json:"payload"`
	}{Type: event, Payload: payload})
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) readLoop() {
	defer s.closeOne.Do(func() { close(s.done) })

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Type {
		case "message":
			var m models.Message
			if err := json.Unmarshal(env.Payload, &m); err != nil {
				continue
			}
			s.confirmIncoming(m)

		case "messageError":
			var p struct {
				TempID  json.RawMessage `json:"tempId"`
				Message string          `json:"message"`
				Error   string          `json:"error"`
			}
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				continue
			}
			tempID := string(p.TempID)
			s.failPending(tempID)
			s.report(SendError{TempID: tempID, Message: p.Message, Code: p.Error})

		case "error":
			var p struct {
				Message string `json:"message"`
				Error   string `json:"error"`
			}
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				continue
			}
			s.report(SendError{Message: p.Message, Code: p.Error})
		}
	}
}

// confirmIncoming reconciles one broadcast message into the room's timeline.
// Correlation tokens are minted per session, so another sender's tempId must
// not be matched against this session's pending entries; it is cleared before
// reconciliation and the message is treated as foreign.
func (s *Session) confirmIncoming(m models.Message) {
	if m.SenderID != s.userID {
		m.TempID = nil
	}
	s.Timeline(m.RoomID).Confirm(m)
}

func (s *Session) failPending(tempID string) {
	s.mu.Lock()
	timelines := make([]*Timeline, 0, len(s.timelines))
	for _, tl := range s.timelines {
		timelines = append(timelines, tl)
	}
	s.mu.Unlock()

	for _, tl := range timelines {
		if tl.Fail(tempID) {
			return
		}
	}
}

func (s *Session) report(err SendError) {
	select {
	case s.errs <- err:
	default:
	}
}
