// Package client provides a Go client for the chat backend: REST calls for
// rooms and history, and a websocket session with optimistic sends.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/studentos/chat_backend/models"
)

// Client calls the chat REST API with a bearer token.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// ListRooms returns every room the authenticated user belongs to.
func (c *Client) ListRooms(ctx context.Context) ([]models.Room, error) {
	var out struct {
		Rooms []models.Room `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

// CreateRoom creates a group room with the caller as its only member.
func (c *Client) CreateRoom(ctx context.Context, name string) (*models.Room, error) {
	var out struct {
		Room *models.Room `json:"room"`
	}
	body := map[string]string{"roomName": name}
	if err := c.do(ctx, http.MethodPost, "/api/chat/rooms", body, &out); err != nil {
		return nil, err
	}
	return out.Room, nil
}

// CreatePrivateChat resolves the direct room with the target user, creating
// it on first contact.
func (c *Client) CreatePrivateChat(ctx context.Context, targetUserID string) (*models.Room, error) {
	var out struct {
		Room *models.Room `json:"room"`
	}
	body := map[string]string{"targetUserId": targetUserID}
	if err := c.do(ctx, http.MethodPost, "/api/chat/private", body, &out); err != nil {
		return nil, err
	}
	return out.Room, nil
}

// AddMember adds a user to a group room.
func (c *Client) AddMember(ctx context.Context, roomID, userID string) (*models.Room, error) {
	var out struct {
		Room *models.Room `json:"room"`
	}
	body := map[string]string{"userIdToAdd": userID}
	path := "/api/chat/rooms/" + url.PathEscape(roomID) + "/members"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return out.Room, nil
}

// ListMessages returns the most recent messages for a room in ascending
// timestamp order. A non-positive limit uses the server default.
func (c *Client) ListMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	path := "/api/chat/messages/" + url.PathEscape(roomID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
