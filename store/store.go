package store

import (
	"context"
	"errors"

	"github.com/studentos/chat_backend/models"
)

// Sentinel errors returned by ChatStore implementations.
var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadyMember = errors.New("user is already a member of this room")
	ErrNotGroupRoom  = errors.New("members can only be added to group rooms")
)

// ChatStore is the storage client for rooms and message logs. It is
// constructed once at process start and injected into the relay and the
// REST handlers. GormStore backs it with Postgres; MemoryStore backs it
// with process memory for tests and local development.
type ChatStore interface {
	// Room operations.
	ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error)
	CreateGroupRoom(ctx context.Context, name, creatorID string) (*models.Room, error)
	// GetOrCreatePrivateRoom resolves the direct room for the unordered
	// pair, creating it on first contact. The bool reports whether the
	// room was created by this call.
	GetOrCreatePrivateRoom(ctx context.Context, userA, userB string) (*models.Room, bool, error)
	AddMember(ctx context.Context, roomID, userID string) (*models.Room, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)

	// Message log operations. AppendMessage assigns the message ID and
	// timestamp; ListMessages returns the most recent limit messages in
	// ascending timestamp order.
	AppendMessage(ctx context.Context, roomID, senderID, senderName, text string) (*models.Message, error)
	ListMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
}
