package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"

	"github.com/studentos/chat_backend/middleware"
	"github.com/studentos/chat_backend/models"
	"github.com/studentos/chat_backend/relay"
	"github.com/studentos/chat_backend/store"
)

const testSecret = "test-secret"

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastToRoom(roomID, event string, payload interface{}) {}

func newTestAPI(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	rel := relay.New(st, noopBroadcaster{}, zerolog.Nop(), relay.Options{})
	ctl := NewChatController(st, rel, zerolog.Nop())

	router := gin.New()
	api := router.Group("/api/chat")
	api.Use(middleware.JWTAuth(testSecret))
	{
		api.GET("/rooms", ctl.GetRooms)
		api.POST("/rooms", ctl.CreateRoom)
		api.POST("/private", ctl.CreatePrivateChat)
		api.POST("/rooms/:roomId/members", ctl.AddMember)
		api.GET("/messages/:roomId", ctl.GetMessages)
	}
	return router, st
}

func token(t *testing.T, userID, name string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func doJSON(t *testing.T, router *gin.Engine, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeRoom(t *testing.T, w *httptest.ResponseRecorder) models.Room {
	t.Helper()
	var out struct {
		Room models.Room `json:"room"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	return out.Room
}

func TestRoutesRequireAuth(t *testing.T) {
	router, _ := newTestAPI(t)

	w := doJSON(t, router, http.MethodGet, "/api/chat/rooms", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCreateRoomAndList(t *testing.T) {
	router, _ := newTestAPI(t)
	alice := token(t, "alice", "Alice")

	w := doJSON(t, router, http.MethodPost, "/api/chat/rooms", alice, gin.H{"roomName": "Study Group"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	room := decodeRoom(t, w)
	if room.ID == "" || room.Type != models.RoomTypeGroup {
		t.Fatalf("unexpected room %+v", room)
	}
	if len(room.Members) != 1 || room.Members[0] != "alice" {
		t.Fatalf("creator must be the only initial member, got %v", room.Members)
	}

	w = doJSON(t, router, http.MethodGet, "/api/chat/rooms", alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var listed struct {
		Rooms []models.Room `json:"rooms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Rooms) != 1 || listed.Rooms[0].ID != room.ID {
		t.Fatalf("expected the created room in the listing, got %+v", listed.Rooms)
	}
}

func TestCreateRoomRejectsBlankName(t *testing.T) {
	router, _ := newTestAPI(t)
	alice := token(t, "alice", "Alice")

	w := doJSON(t, router, http.MethodPost, "/api/chat/rooms", alice, gin.H{"roomName": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreatePrivateChatIsIdempotentAcrossSessions(t *testing.T) {
	router, _ := newTestAPI(t)
	alice := token(t, "alice", "Alice")
	bob := token(t, "bob", "Bob")

	w := doJSON(t, router, http.MethodPost, "/api/chat/private", alice, gin.H{"targetUserId": "bob"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	first := decodeRoom(t, w)

	// The counterpart requests the same pair from its own session.
	w = doJSON(t, router, http.MethodPost, "/api/chat/private", bob, gin.H{"targetUserId": "alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for existing room, got %d", w.Code)
	}
	second := decodeRoom(t, w)

	if first.ID != second.ID {
		t.Fatalf("expected one direct room per pair, got %q and %q", first.ID, second.ID)
	}
}

func TestCreatePrivateChatRejectsSelf(t *testing.T) {
	router, _ := newTestAPI(t)
	alice := token(t, "alice", "Alice")

	w := doJSON(t, router, http.MethodPost, "/api/chat/private", alice, gin.H{"targetUserId": "alice"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAddMember(t *testing.T) {
	router, st := newTestAPI(t)
	alice := token(t, "alice", "Alice")
	ctx := context.Background()

	group, err := st.CreateGroupRoom(ctx, "Study Group", "alice")
	if err != nil {
		t.Fatal(err)
	}
	private, _, err := st.GetOrCreatePrivateRoom(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, router, http.MethodPost, "/api/chat/rooms/"+group.ID+"/members", alice, gin.H{"userIdToAdd": "carol"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	room := decodeRoom(t, w)
	if len(room.Members) != 2 {
		t.Fatalf("expected 2 members, got %v", room.Members)
	}

	w = doJSON(t, router, http.MethodPost, "/api/chat/rooms/"+group.ID+"/members", alice, gin.H{"userIdToAdd": "carol"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate member, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/chat/rooms/missing/members", alice, gin.H{"userIdToAdd": "carol"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/chat/rooms/"+private.ID+"/members", alice, gin.H{"userIdToAdd": "carol"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for private room, got %d", w.Code)
	}
}

func TestGetMessages(t *testing.T) {
	router, st := newTestAPI(t)
	alice := token(t, "alice", "Alice")
	mallory := token(t, "mallory", "Mallory")
	ctx := context.Background()

	room, _, err := st.GetOrCreatePrivateRoom(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"one", "two", "three"} {
		if _, err := st.AppendMessage(ctx, room.ID, "alice", "Alice", text); err != nil {
			t.Fatal(err)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/api/chat/messages/"+room.ID, mallory, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/chat/messages/"+room.ID+"?limit=2", alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out.Messages))
	}
	if out.Messages[0].MessageText != "two" || out.Messages[1].MessageText != "three" {
		t.Fatalf("expected most recent messages in ascending order, got %+v", out.Messages)
	}
}
