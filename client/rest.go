package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Identity is the authenticated principal as reported by the server.
type Identity struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Approved    bool   `json:"approved"`
	Enabled     bool   `json:"enabled"`
	IsOnline    bool   `json:"is_online"`
	LastSeenAt  *int64 `json:"last_seen_at,omitempty"`
}

// AuthResult is the outcome of a successful register or login.
type AuthResult struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// Room is one chat room.
type Room struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RoomMessage is one stored message as returned by the history endpoint.
type RoomMessage struct {
	ID       int64  `json:"id"`
	RoomID   int64  `json:"room_id"`
	SenderID int64  `json:"sender_id"`
	Content  string `json:"content"`
	SentAt   int64  `json:"sent_at"`
}

type chatTokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// REST provides HTTP API access to the server.
type REST struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewREST creates an API client for the given base URL, e.g.
// "http://localhost:8080".
func NewREST(baseURL string) *REST {
	return &REST{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *REST) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// SetToken sets the session token for authenticated requests.
func (c *REST) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *REST) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Register creates a new account and stores the returned session token.
func (c *REST) Register(ctx context.Context, username, password, displayName string) (*AuthResult, error) {
	body := map[string]string{
		"username":     username,
		"password":     password,
		"display_name": displayName,
	}
	var resp AuthResult
	if err := c.post(ctx, "/api/register", body, &resp, false); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// Login authenticates with existing credentials and stores the session token.
func (c *REST) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}
	var resp AuthResult
	if err := c.post(ctx, "/api/login", body, &resp, false); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// Logout ends the session server-side and clears the stored token.
func (c *REST) Logout(ctx context.Context) error {
	err := c.post(ctx, "/api/logout", nil, nil, true)
	c.SetToken("")
	return err
}

// CurrentIdentity fetches the identity attached to the stored session.
// An unauthenticated session returns (nil, nil): absent, not an error.
func (c *REST) CurrentIdentity(ctx context.Context) (*Identity, error) {
	var ident Identity
	if err := c.get(ctx, "/api/user", &ident, true); err != nil {
		if CodeOf(err) == ErrorUnauthenticated {
			return nil, nil
		}
		return nil, err
	}
	return &ident, nil
}

// ChatToken exchanges the session for a short-lived messaging token.
// Each call yields a fresh token; tokens are never cached.
func (c *REST) ChatToken(ctx context.Context) (string, error) {
	var resp chatTokenResponse
	if err := c.get(ctx, "/api/chat/token", &resp, true); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// ListRooms returns all rooms.
func (c *REST) ListRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.get(ctx, "/api/chat/rooms", &rooms, true); err != nil {
		return nil, err
	}
	return rooms, nil
}

// ListMessages retrieves message history for a room in chronological order.
// before, when non-nil, pages backward from that message ID.
func (c *REST) ListMessages(ctx context.Context, roomID int64, limit int, before *int64) ([]RoomMessage, error) {
	path := fmt.Sprintf("/api/chat/rooms/%d/messages?limit=%d", roomID, limit)
	if before != nil {
		path += fmt.Sprintf("&before=%d", *before)
	}
	var msgs []RoomMessage
	if err := c.get(ctx, path, &msgs, true); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a message to a room over HTTP.
func (c *REST) SendMessage(ctx context.Context, roomID int64, content string) (*RoomMessage, error) {
	body := map[string]string{"content": content}
	var msg RoomMessage
	path := fmt.Sprintf("/api/chat/rooms/%d/messages", roomID)
	if err := c.post(ctx, path, body, &msg, true); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Admin operations. These require an admin session; the server rejects
// anything less with ErrorForbidden.

// ListIdentities returns every registered identity.
func (c *REST) ListIdentities(ctx context.Context) ([]Identity, error) {
	var idents []Identity
	if err := c.get(ctx, "/api/users", &idents, true); err != nil {
		return nil, err
	}
	return idents, nil
}

// SetApproved flips the approved flag on an identity.
func (c *REST) SetApproved(ctx context.Context, identityID int64, approved bool) error {
	body := map[string]bool{"approved": approved}
	return c.post(ctx, fmt.Sprintf("/api/users/%d/approve", identityID), body, nil, true)
}

// SetRole changes an identity's role.
func (c *REST) SetRole(ctx context.Context, identityID int64, role string) error {
	body := map[string]string{"role": role}
	return c.post(ctx, fmt.Sprintf("/api/users/%d/role", identityID), body, nil, true)
}

// SetEnabled enables or disables an identity.
func (c *REST) SetEnabled(ctx context.Context, identityID int64, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.post(ctx, fmt.Sprintf("/api/users/%d/enabled", identityID), body, nil, true)
}

func (c *REST) post(ctx context.Context, path string, body, dest any, withAuth bool) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return WrapError(ErrorSerialization, "marshal request", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return WrapError(ErrorBadRequest, "create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req, withAuth)

	return c.do(req, dest)
}

func (c *REST) get(ctx context.Context, path string, dest any, withAuth bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return WrapError(ErrorBadRequest, "create request", err)
	}
	c.authorize(req, withAuth)

	return c.do(req, dest)
}

func (c *REST) authorize(req *http.Request, withAuth bool) {
	if !withAuth {
		return
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *REST) do(req *http.Request, dest any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return WrapError(ErrorConnection, "http request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return WrapError(ErrorConnection, "read response", err)
	}

	if resp.StatusCode >= 400 {
		msg := string(body)
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return NewError(codeForStatus(resp.StatusCode), msg)
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return WrapError(ErrorSerialization, "unmarshal response", err)
		}
	}
	return nil
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusUnauthorized:
		return ErrorUnauthenticated
	case http.StatusForbidden:
		return ErrorForbidden
	case http.StatusNotFound:
		return ErrorRoomNotFound
	case http.StatusConflict, http.StatusBadRequest:
		return ErrorBadRequest
	case http.StatusTooManyRequests:
		return ErrorRateLimited
	default:
		return ErrorInternalServer
	}
}
