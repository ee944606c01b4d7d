package models

import (
	"fmt"
	"time"
)

// Room types.
const (
	RoomTypePrivate = "private"
	RoomTypeGroup   = "group"
)

type Room struct {
	ID        string    `gorm:"primaryKey;size:255" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Type      string    `gorm:"size:20;not null" json:"type"`
	CreatedBy string    `gorm:"size:255" json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`

	// Member user IDs, loaded from room_members.
	Members []string `gorm:"-" json:"members"`
}

type RoomMember struct {
	RoomID    string    `gorm:"primaryKey;size:255" json:"room_id"`
	UserID    string    `gorm:"primaryKey;size:255" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PrivateRoomID derives the identifier of the direct room for an unordered
// pair of users. Sorting the pair guarantees at most one direct room exists
// for any two users regardless of who initiated the chat.
func PrivateRoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("private_%s_%s", a, b)
}
