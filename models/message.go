package models

import (
	"encoding/json"
	"time"
)

// Message is one entry in a room's append-only log. Messages are immutable
// once persisted; there is no update path.
type Message struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID      string    `gorm:"size:255;not null;index" json:"roomId"`
	SenderID    string    `gorm:"size:255;not null" json:"senderId"`
	SenderName  string    `gorm:"size:255;not null" json:"senderName"`
	MessageText string    `gorm:"type:text;not null" json:"messageText"`
	CreatedAt   time.Time `json:"timestamp"`

	// TempID is the client-supplied correlation token, echoed verbatim on
	// broadcast so the sender can reconcile its optimistic entry. Never
	// persisted.
	TempID json.RawMessage `gorm:"-" json:"tempId,omitempty"`
}
