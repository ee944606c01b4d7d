package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/studentos/chat_backend/relay"
	"github.com/studentos/chat_backend/store"
)

type CreateRoomInput struct {
	RoomName string `json:"roomName" binding:"required" example:"Study Group"`
}

type CreatePrivateChatInput struct {
	TargetUserID string `json:"targetUserId" binding:"required" example:"user-42"`
}

type AddMemberInput struct {
	UserIDToAdd string `json:"userIdToAdd" binding:"required" example:"user-42"`
}

// ChatController serves the REST surface around the relay: room listing and
// creation, direct-room resolution, membership, and message history.
type ChatController struct {
	store  store.ChatStore
	relay  *relay.Relay
	logger zerolog.Logger
}

func NewChatController(st store.ChatStore, r *relay.Relay, logger zerolog.Logger) *ChatController {
	return &ChatController{store: st, relay: r, logger: logger}
}

// GetRooms godoc
// @Summary Get all chat rooms for the authenticated user
// @Description Returns every room the authenticated user is a member of
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "List of rooms"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/chat/rooms [get]
func (ctl *ChatController) GetRooms(c *gin.Context) {
	userID := c.MustGet("userID").(string)

	rooms, err := ctl.store.ListRoomsForUser(c.Request.Context(), userID)
	if err != nil {
		ctl.logger.Error().Err(err).Str("user_id", userID).Msg("list rooms failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch chat rooms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// CreateRoom godoc
// @Summary Create a new group chat room
// @Description Creates a group room with the authenticated user as its only initial member
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param room body CreateRoomInput true "Room Creation"
// @Success 201 {object} map[string]interface{} "Room created"
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/chat/rooms [post]
func (ctl *ChatController) CreateRoom(c *gin.Context) {
	userID := c.MustGet("userID").(string)

	var input CreateRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(input.RoomName)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room name is required"})
		return
	}

	room, err := ctl.store.CreateGroupRoom(c.Request.Context(), name, userID)
	if err != nil {
		ctl.logger.Error().Err(err).Str("user_id", userID).Msg("create room failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create chat room"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// CreatePrivateChat godoc
// @Summary Get or create a direct chat room
// @Description Resolves the direct room for the caller and the target user, creating it on first contact. The room identifier is derived from the sorted user pair, so repeated requests resolve to the same room.
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param target body CreatePrivateChatInput true "Target user"
// @Success 200 {object} map[string]interface{} "Existing room"
// @Success 201 {object} map[string]interface{} "Room created"
// @Failure 400 {object} map[string]string "Invalid target user"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/chat/private [post]
func (ctl *ChatController) CreatePrivateChat(c *gin.Context) {
	userID := c.MustGet("userID").(string)

	var input CreatePrivateChatInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.TargetUserID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target user ID"})
		return
	}

	room, created, err := ctl.store.GetOrCreatePrivateRoom(c.Request.Context(), userID, input.TargetUserID)
	if err != nil {
		ctl.logger.Error().Err(err).Str("user_id", userID).Msg("private chat resolution failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create private chat"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"room": room})
}

// AddMember godoc
// @Summary Add a member to a group chat room
// @Description Adds a user to an existing group room. Private rooms cannot gain members.
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomId path string true "Room ID"
// @Param member body AddMemberInput true "User to add"
// @Success 200 {object} map[string]interface{} "Updated room"
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Not a group room"
// @Failure 404 {object} map[string]string "Room not found"
// @Failure 409 {object} map[string]string "Already a member"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/chat/rooms/{roomId}/members [post]
func (ctl *ChatController) AddMember(c *gin.Context) {
	roomID := c.Param("roomId")

	var input AddMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := ctl.store.AddMember(c.Request.Context(), roomID, input.UserIDToAdd)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat room not found"})
		case errors.Is(err, store.ErrNotGroupRoom):
			c.JSON(http.StatusForbidden, gin.H{"error": "Cannot add members to a private chat"})
		case errors.Is(err, store.ErrAlreadyMember):
			c.JSON(http.StatusConflict, gin.H{"error": "User is already a member of this room"})
		default:
			ctl.logger.Error().Err(err).Str("room_id", roomID).Msg("add member failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": room})
}

// GetMessages godoc
// @Summary Get recent messages for a room
// @Description Returns the most recent messages for a room in ascending timestamp order
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomId path string true "Room ID"
// @Param limit query int false "Maximum number of messages"
// @Success 200 {object} map[string]interface{} "List of messages"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/chat/messages/{roomId} [get]
func (ctl *ChatController) GetMessages(c *gin.Context) {
	userID := c.MustGet("userID").(string)
	roomID := c.Param("roomId")

	member, err := ctl.store.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		ctl.logger.Error().Err(err).Str("room_id", roomID).Msg("membership check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have access to this room"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	messages, err := ctl.relay.History(c.Request.Context(), roomID, limit)
	if err != nil {
		ctl.logger.Error().Err(err).Str("room_id", roomID).Msg("history fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
