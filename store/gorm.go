package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studentos/chat_backend/models"
)

// GormStore implements ChatStore on top of a gorm Postgres handle.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	var memberships []models.RoomMember
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, err
	}

	roomIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		roomIDs = append(roomIDs, m.RoomID)
	}

	rooms := []models.Room{}
	if len(roomIDs) == 0 {
		return rooms, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", roomIDs).Order("created_at ASC").Find(&rooms).Error; err != nil {
		return nil, err
	}

	for i := range rooms {
		members, err := s.roomMembers(ctx, rooms[i].ID)
		if err != nil {
			return nil, err
		}
		rooms[i].Members = members
	}
	return rooms, nil
}

func (s *GormStore) CreateGroupRoom(ctx context.Context, name, creatorID string) (*models.Room, error) {
	room := models.Room{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      models.RoomTypeGroup,
		CreatedBy: creatorID,
		CreatedAt: time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		return tx.Create(&models.RoomMember{
			RoomID:    room.ID,
			UserID:    creatorID,
			CreatedAt: room.CreatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	room.Members = []string{creatorID}
	return &room, nil
}

func (s *GormStore) GetOrCreatePrivateRoom(ctx context.Context, userA, userB string) (*models.Room, bool, error) {
	roomID := models.PrivateRoomID(userA, userB)

	var existing models.Room
	err := s.db.WithContext(ctx).First(&existing, "id = ?", roomID).Error
	if err == nil {
		members, err := s.roomMembers(ctx, roomID)
		if err != nil {
			return nil, false, err
		}
		existing.Members = members
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	room := models.Room{
		ID:        roomID,
		Name:      "Private Chat",
		Type:      models.RoomTypePrivate,
		CreatedBy: userA,
		CreatedAt: time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		for _, userID := range []string{userA, userB} {
			if err := tx.Create(&models.RoomMember{
				RoomID:    roomID,
				UserID:    userID,
				CreatedAt: room.CreatedAt,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	members := []string{userA, userB}
	if userB < userA {
		members = []string{userB, userA}
	}
	room.Members = members
	return &room, true, nil
}

func (s *GormStore) AddMember(ctx context.Context, roomID, userID string) (*models.Room, error) {
	var room models.Room
	if err := s.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if room.Type != models.RoomTypeGroup {
		return nil, ErrNotGroupRoom
	}

	member, err := s.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, ErrAlreadyMember
	}

	if err := s.db.WithContext(ctx).Create(&models.RoomMember{
		RoomID:    roomID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}).Error; err != nil {
		return nil, err
	}

	members, err := s.roomMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	room.Members = members
	return &room, nil
}

func (s *GormStore) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) AppendMessage(ctx context.Context, roomID, senderID, senderName, text string) (*models.Message, error) {
	message := models.Message{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		SenderID:    senderID,
		SenderName:  senderName,
		MessageText: text,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (s *GormStore) ListMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// The query returns newest first; clients want ascending order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *GormStore) roomMembers(ctx context.Context, roomID string) ([]string, error) {
	var memberships []models.RoomMember
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("user_id ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(memberships))
	for _, m := range memberships {
		members = append(members, m.UserID)
	}
	return members, nil
}
