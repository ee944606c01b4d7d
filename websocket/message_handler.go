package websocket

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/studentos/chat_backend/relay"
)

// EventRouter maps inbound websocket events to relay operations. Each event
// is one handler invocation; the only shared state is the hub registry,
// reached through its mailbox.
type EventRouter struct {
	relay  *relay.Relay
	logger zerolog.Logger
}

func NewEventRouter(r *relay.Relay, logger zerolog.Logger) *EventRouter {
	return &EventRouter{relay: r, logger: logger}
}

type joinRoomPayload struct {
	RoomID   string `json:"roomId"`
	CallerID string `json:"callerId"`
}

type leaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type messageErrorPayload struct {
	TempID  json.RawMessage `json:"tempId"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (r *EventRouter) dispatch(c *Client, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.logger.Warn().Err(err).Str("user_id", c.userID).Msg("malformed websocket frame")
		return
	}

	ctx := context.Background()

	switch env.Type {
	case "joinRoom":
		var p joinRoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.sendError(c, "Malformed joinRoom payload.", relay.CodeValidation)
			return
		}
		if p.CallerID != "" && p.CallerID != c.userID {
			r.sendError(c, "callerId does not match the authenticated connection.", relay.CodeAuthorization)
			return
		}
		if err := r.relay.HandleJoin(ctx, p.RoomID, c.userID); err != nil {
			r.logger.Warn().Err(err).Str("user_id", c.userID).Str("room_id", p.RoomID).Msg("join rejected")
			r.sendError(c, relay.UserMessage(err), relay.Code(err))
			return
		}
		c.hub.subscribeRoom(c, p.RoomID)

	case "leaveRoom":
		var p leaveRoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		c.hub.unsubscribeRoom(c, p.RoomID)

	case "sendMessage":
		var req relay.SendRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			r.sendError(c, "Malformed sendMessage payload.", relay.CodeValidation)
			return
		}
		if req.SenderID != "" && req.SenderID != c.userID {
			r.sendMessageError(c, req.TempID, "senderId does not match the authenticated connection.", relay.CodeAuthorization)
			return
		}
		req.SenderID = c.userID
		if req.SenderName == "" {
			req.SenderName = c.userName
		}
		if _, err := r.relay.HandleSend(ctx, req); err != nil {
			r.sendMessageError(c, req.TempID, relay.UserMessage(err), relay.Code(err))
		}

	default:
		r.logger.Debug().Str("type", env.Type).Str("user_id", c.userID).Msg("unknown websocket event")
	}
}

// sendMessageError delivers a messageError event to the originating
// connection only, carrying the correlation token of the failed send.
func (r *EventRouter) sendMessageError(c *Client, tempID json.RawMessage, message, code string) {
	data, err := marshalEvent("messageError", messageErrorPayload{
		TempID:  tempID,
		Message: message,
		Error:   code,
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("marshal messageError event")
		return
	}
	c.enqueue(data)
}

// sendError delivers a generic error event to the originating connection,
// used for failures outside the send path (join, malformed frames).
func (r *EventRouter) sendError(c *Client, message, code string) {
	data, err := marshalEvent("error", map[string]string{
		"message": message,
		"error":   code,
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("marshal error event")
		return
	}
	c.enqueue(data)
}
