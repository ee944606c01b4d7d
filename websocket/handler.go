package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/studentos/chat_backend/middleware"
	"github.com/studentos/chat_backend/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Handler upgrades authenticated HTTP requests to websocket connections.
type Handler struct {
	hub       *Hub
	router    *EventRouter
	jwtSecret string
	logger    zerolog.Logger
}

func NewHandler(hub *Hub, r *relay.Relay, jwtSecret string, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:       hub,
		router:    NewEventRouter(r, logger),
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// HandleConnection authenticates the bearer token, upgrades the connection,
// and starts the read/write pumps.
func (h *Handler) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = middleware.BearerToken(c.Request)
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}

	userID, userName, err := middleware.ParseToken(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		router:   h.router,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
		userID:   userID,
		userName: userName,
	}

	h.hub.addClient(client)
	h.logger.Info().Str("user_id", userID).Msg("websocket client connected")

	go client.readPump()
	go client.writePump()
}
