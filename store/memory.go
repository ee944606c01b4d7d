package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studentos/chat_backend/models"
)

// MemoryStore implements ChatStore in process memory. It mirrors GormStore's
// semantics (server-assigned IDs, append order visibility) and backs tests
// and local development without a database.
type MemoryStore struct {
	mu       sync.Mutex
	rooms    map[string]*models.Room
	members  map[string]map[string]bool
	messages map[string][]models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[string]*models.Room),
		members:  make(map[string]map[string]bool),
		messages: make(map[string][]models.Message),
	}
}

func (s *MemoryStore) ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := []models.Room{}
	for roomID, members := range s.members {
		if members[userID] {
			rooms = append(rooms, s.snapshotLocked(roomID))
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms, nil
}

func (s *MemoryStore) CreateGroupRoom(ctx context.Context, name, creatorID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := &models.Room{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      models.RoomTypeGroup,
		CreatedBy: creatorID,
		CreatedAt: time.Now().UTC(),
	}
	s.rooms[room.ID] = room
	s.members[room.ID] = map[string]bool{creatorID: true}

	out := s.snapshotLocked(room.ID)
	return &out, nil
}

func (s *MemoryStore) GetOrCreatePrivateRoom(ctx context.Context, userA, userB string) (*models.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID := models.PrivateRoomID(userA, userB)
	if _, ok := s.rooms[roomID]; ok {
		out := s.snapshotLocked(roomID)
		return &out, false, nil
	}

	s.rooms[roomID] = &models.Room{
		ID:        roomID,
		Name:      "Private Chat",
		Type:      models.RoomTypePrivate,
		CreatedBy: userA,
		CreatedAt: time.Now().UTC(),
	}
	s.members[roomID] = map[string]bool{userA: true, userB: true}

	out := s.snapshotLocked(roomID)
	return &out, true, nil
}

func (s *MemoryStore) AddMember(ctx context.Context, roomID, userID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Type != models.RoomTypeGroup {
		return nil, ErrNotGroupRoom
	}
	if s.members[roomID][userID] {
		return nil, ErrAlreadyMember
	}
	s.members[roomID][userID] = true

	out := s.snapshotLocked(roomID)
	return &out, nil
}

func (s *MemoryStore) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[roomID][userID], nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, roomID, senderID, senderName, text string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	message := models.Message{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		SenderID:    senderID,
		SenderName:  senderName,
		MessageText: text,
		CreatedAt:   time.Now().UTC(),
	}
	s.messages[roomID] = append(s.messages[roomID], message)
	return &message, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[roomID]
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]models.Message, len(log))
	copy(out, log)
	return out, nil
}

func (s *MemoryStore) snapshotLocked(roomID string) models.Room {
	room := *s.rooms[roomID]
	members := make([]string, 0, len(s.members[roomID]))
	for userID := range s.members[roomID] {
		members = append(members, userID)
	}
	sort.Strings(members)
	room.Members = members
	return room
}
