package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/studentos/chat_backend/metrics"
	"github.com/studentos/chat_backend/models"
	"github.com/studentos/chat_backend/store"
)

// Broadcaster delivers an event to every connection currently subscribed to
// a room. The websocket hub implements it.
type Broadcaster interface {
	BroadcastToRoom(roomID, event string, payload interface{})
}

// SendRequest is the payload of a sendMessage event. TempID is opaque to the
// server and echoed back verbatim.
type SendRequest struct {
	RoomID      string          `json:"roomId"`
	SenderID    string          `json:"senderId"`
	SenderName  string          `json:"senderName"`
	MessageText string          `json:"messageText"`
	TempID      json.RawMessage `json:"tempId"`
}

// Options tunes the relay. Zero values fall back to defaults.
type Options struct {
	// HistoryLimit caps ListMessages results.
	HistoryLimit int
	// MessageRate and MessageBurst configure the per-sender token bucket.
	MessageRate  float64
	MessageBurst int
}

const (
	defaultHistoryLimit = 50
	defaultMessageRate  = 5
	defaultMessageBurst = 10
)

// Relay persists one message per send request and hands the stored form to
// the broadcaster. It makes exactly one persistence attempt per request; a
// failure is propagated to the caller and never broadcast.
type Relay struct {
	store       store.ChatStore
	broadcaster Broadcaster
	logger      zerolog.Logger
	opts        Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(st store.ChatStore, b Broadcaster, logger zerolog.Logger, opts Options) *Relay {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.MessageRate <= 0 {
		opts.MessageRate = defaultMessageRate
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = defaultMessageBurst
	}
	return &Relay{
		store:       st,
		broadcaster: b,
		logger:      logger,
		opts:        opts,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// HandleJoin authorizes a joinRoom request. The transport performs the
// actual group subscription after this returns nil; there is no
// acknowledgement to the client.
func (r *Relay) HandleJoin(ctx context.Context, roomID, userID string) error {
	if roomID == "" {
		return &ValidationError{Field: "roomId"}
	}
	if userID == "" {
		return &ValidationError{Field: "callerId"}
	}

	member, err := r.store.IsMember(ctx, roomID, userID)
	if err != nil {
		return &PersistenceError{Err: err}
	}
	if !member {
		return &AuthorizationError{RoomID: roomID, UserID: userID}
	}
	return nil
}

// HandleSend validates, rate-limits, persists, and broadcasts one message.
// On success the stored message, with the request's tempId attached, has
// been handed to the broadcaster; the sender's own connection receives it
// through its room subscription like everyone else.
func (r *Relay) HandleSend(ctx context.Context, req SendRequest) (*models.Message, error) {
	if err := validate(req); err != nil {
		metrics.MessageErrors.WithLabelValues(CodeValidation).Inc()
		return nil, err
	}

	if !r.limiter(req.SenderID).Allow() {
		metrics.MessageErrors.WithLabelValues(CodeRateLimited).Inc()
		return nil, &RateLimitError{SenderID: req.SenderID}
	}

	member, err := r.store.IsMember(ctx, req.RoomID, req.SenderID)
	if err != nil {
		metrics.MessageErrors.WithLabelValues(CodePersistence).Inc()
		return nil, &PersistenceError{Err: err}
	}
	if !member {
		metrics.MessageErrors.WithLabelValues(CodeAuthorization).Inc()
		return nil, &AuthorizationError{RoomID: req.RoomID, UserID: req.SenderID}
	}

	message, err := r.store.AppendMessage(ctx, req.RoomID, req.SenderID, req.SenderName, req.MessageText)
	if err != nil {
		r.logger.Error().Err(err).Str("room_id", req.RoomID).Msg("message append failed")
		metrics.MessageErrors.WithLabelValues(CodePersistence).Inc()
		return nil, &PersistenceError{Err: err}
	}
	metrics.MessagesPersisted.Inc()

	message.TempID = req.TempID
	r.broadcaster.BroadcastToRoom(message.RoomID, "message", message)

	r.logger.Debug().
		Str("room_id", message.RoomID).
		Str("message_id", message.ID).
		Str("sender_id", message.SenderID).
		Msg("message relayed")
	return message, nil
}

// History returns the most recent messages for a room in ascending
// timestamp order, for initial population when a client opens a room.
func (r *Relay) History(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > r.opts.HistoryLimit {
		limit = r.opts.HistoryLimit
	}
	return r.store.ListMessages(ctx, roomID, limit)
}

func validate(req SendRequest) error {
	switch {
	case req.RoomID == "":
		return &ValidationError{Field: "roomId"}
	case req.SenderID == "":
		return &ValidationError{Field: "senderId"}
	case req.SenderName == "":
		return &ValidationError{Field: "senderName"}
	case req.MessageText == "":
		return &ValidationError{Field: "messageText"}
	case len(req.TempID) == 0:
		return &ValidationError{Field: "tempId"}
	}
	return nil
}

func (r *Relay) limiter(senderID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[senderID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.opts.MessageRate), r.opts.MessageBurst)
		r.limiters[senderID] = l
	}
	return l
}
