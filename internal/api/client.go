// Package api implements the HTTP client for the gochat service. All
// requests share one cookie jar, which is where the server-managed
// session token lives: the client never inspects it, it only carries it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/dkim-dev/gochat-client/internal/types"
)

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        *log.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		log: logger,
	}, nil
}

// Jar exposes the client's cookie jar so the STOMP dialer can present
// the same session cookie during the websocket handshake.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.log.Printf("%s %s returned %d", method, path, resp.StatusCode)
		return nil, newApiError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// Login submits credentials to the auth service. The session token
// arrives as a cookie and is retained by the jar. Callers surface any
// failure as a single generic message: the server does not distinguish
// an unknown user from a wrong password and neither do we.
func (c *Client) Login(ctx context.Context, req types.LoginRequest) error {
	if _, err := c.do(ctx, http.MethodPost, "/auth/login", nil, req); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	return nil
}

// CreateAccount registers a new user. On rejection the returned error
// is an *ApiError whose Message is the server's response text verbatim.
func (c *Client) CreateAccount(ctx context.Context, req types.SignupRequest) error {
	if _, err := c.do(ctx, http.MethodPost, "/user", nil, req); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	return nil
}

// ValidateSession asks the auth service whether the current session
// token is still good. The second return value reports whether a user
// payload was present: the server answers an expired-but-refreshable
// session with an empty 200.
func (c *Client) ValidateSession(ctx context.Context) (types.User, bool, error) {
	body, err := c.do(ctx, http.MethodGet, "/auth/validate", nil, nil)
	if err != nil {
		return types.User{}, false, fmt.Errorf("validate session: %w", err)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return types.User{}, false, nil
	}

	var u types.User
	if err := json.Unmarshal(body, &u); err != nil {
		return types.User{}, false, fmt.Errorf("decode validate response: %w", err)
	}
	if u.UserId == "" {
		return types.User{}, false, nil
	}

	return u, true, nil
}

// RefreshSession exchanges the refresh token cookie for a new session
// token.
func (c *Client) RefreshSession(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, nil); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}

	return nil
}

// ListUsers fetches the full registered-user directory. The result is
// never nil.
func (c *Client) ListUsers(ctx context.Context) ([]types.User, error) {
	body, err := c.do(ctx, http.MethodGet, "/user", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := []types.User{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &users); err != nil {
			return nil, fmt.Errorf("decode user list: %w", err)
		}
	}

	return users, nil
}

// GetChatRoom looks up the room for an unordered participant pair,
// returning ErrNoRoom when none exists yet.
func (c *Client) GetChatRoom(ctx context.Context, participant1Id, participant2Id string) (string, error) {
	query := url.Values{}
	query.Set("participant1Id", participant1Id)
	query.Set("participant2Id", participant2Id)

	body, err := c.do(ctx, http.MethodGet, "/chat/room", query, nil)
	if err != nil {
		var apiErr *ApiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return "", ErrNoRoom
		}
		return "", fmt.Errorf("get chat room: %w", err)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return "", ErrNoRoom
	}

	var room types.ChatRoom
	if err := json.Unmarshal(body, &room); err != nil {
		return "", fmt.Errorf("decode chat room: %w", err)
	}
	if room.ChatRoomId == "" {
		return "", ErrNoRoom
	}

	return room.ChatRoomId, nil
}

// CreateChatRoom creates a room for the pair and returns its id.
func (c *Client) CreateChatRoom(ctx context.Context, participant1Id, participant2Id string) (string, error) {
	req := types.CreateChatRoomRequest{
		Participant1Id: participant1Id,
		Participant2Id: participant2Id,
	}

	body, err := c.do(ctx, http.MethodPost, "/chat/room", nil, req)
	if err != nil {
		return "", fmt.Errorf("create chat room: %w", err)
	}

	var room types.ChatRoom
	if err := json.Unmarshal(body, &room); err != nil {
		return "", fmt.Errorf("decode chat room: %w", err)
	}
	if room.ChatRoomId == "" {
		return "", fmt.Errorf("create chat room: server returned no chatroomId")
	}

	return room.ChatRoomId, nil
}

// GetMessages fetches the message history for a room in server order.
// An empty history is an empty slice, never nil.
func (c *Client) GetMessages(ctx context.Context, chatRoomId string) ([]types.Message, error) {
	query := url.Values{}
	query.Set("chatRoomId", chatRoomId)

	body, err := c.do(ctx, http.MethodGet, "/chat/messages", query, nil)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}

	msgs := []types.Message{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &msgs); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	}

	return msgs, nil
}
