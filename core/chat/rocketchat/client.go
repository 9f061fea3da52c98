// Package rocketchat implements chat.Transport over the Rocket.Chat REST API v1.
package rocketchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/rocketbot/core/chat"
	"github.com/m3rciful/rocketbot/core/chat/netutil"
	"github.com/m3rciful/rocketbot/core/logger"
)

const (
	apiPrefix    = "/api/v1"
	listPageSize = 100
	maxBodyBytes = 4 << 20
)

// Options configures the client. Either User/Password or UserID/AuthToken is required.
type Options struct {
	ServerURL  string
	User       string
	Password   string
	UserID     string
	AuthToken  string
	HTTPClient *http.Client
}

// APIError is a non-successful Rocket.Chat response.
type APIError struct {
	Endpoint   string
	HTTPStatus int
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.HTTPStatus)
	}
	return fmt.Sprintf("rocketchat %s: %s (%d)", e.Endpoint, msg, e.HTTPStatus)
}

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int { return e.HTTPStatus }

// Code is used by log error classification.
func (e *APIError) Code() string { return "ROCKETCHAT_HTTP_" + strconv.Itoa(e.HTTPStatus) }

// Is matches chat.ErrUnauthorized for 401 responses.
func (e *APIError) Is(target error) bool {
	return target == chat.ErrUnauthorized && e.HTTPStatus == http.StatusUnauthorized
}

// Client talks to one Rocket.Chat server.
type Client struct {
	http     *http.Client
	baseURL  string
	user     string
	password string

	mu       sync.RWMutex
	userID   string
	token    string
	username string
	loggedIn bool
}

var _ chat.Transport = (*Client)(nil)

// New constructs a Client. Nothing is sent until Connect.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = netutil.BuildHTTPClient()
	}
	return &Client{
		http:     httpClient,
		baseURL:  strings.TrimRight(strings.TrimSpace(opts.ServerURL), "/"),
		user:     strings.TrimSpace(opts.User),
		password: opts.Password,
		userID:   strings.TrimSpace(opts.UserID),
		token:    strings.TrimSpace(opts.AuthToken),
	}
}

// Name implements chat.Transport.
func (c *Client) Name() string { return "rocketchat" }

type loginResponse struct {
	Status string `json:"status"`
	Data   struct {
		UserID    string `json:"userId"`
		AuthToken string `json:"authToken"`
		Me        struct {
			Username string `json:"username"`
		} `json:"me"`
	} `json:"data"`
}

type meResponse struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Success  bool   `json:"success"`
}

// Connect logs in with the password when one is configured, otherwise verifies the access token.
func (c *Client) Connect(ctx context.Context) (chat.Identity, error) {
	if c.baseURL == "" {
		return chat.Identity{}, errors.New("rocketchat: server url is required")
	}
	start := time.Now()

	var id chat.Identity
	if c.user != "" && c.password != "" {
		var out loginResponse
		body := map[string]string{"user": c.user, "password": c.password}
		if err := c.call(ctx, http.MethodPost, "/login", nil, body, false, &out); err != nil {
			return chat.Identity{}, fmt.Errorf("rocketchat login: %w", err)
		}
		if out.Data.AuthToken == "" || out.Data.UserID == "" {
			return chat.Identity{}, fmt.Errorf("rocketchat login: %w: empty credentials in response", chat.ErrUnauthorized)
		}
		c.mu.Lock()
		c.userID, c.token, c.username, c.loggedIn = out.Data.UserID, out.Data.AuthToken, out.Data.Me.Username, true
		c.mu.Unlock()
		id = chat.Identity{UserID: out.Data.UserID, Username: out.Data.Me.Username}
	} else {
		var out meResponse
		if err := c.call(ctx, http.MethodGet, "/me", nil, nil, true, &out); err != nil {
			return chat.Identity{}, fmt.Errorf("rocketchat me: %w", err)
		}
		c.mu.Lock()
		if out.ID != "" {
			c.userID = out.ID
		}
		c.username = out.Username
		c.mu.Unlock()
		id = chat.Identity{UserID: c.currentUserID(), Username: out.Username}
	}

	logger.LogEvent(ctx, logger.Chat, slog.LevelInfo, "chat.connect",
		slog.String("status", "ok"),
		slog.String("transport", c.Name()),
		slog.String("server_url", c.baseURL),
		slog.String("username", id.Username),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return id, nil
}

type imListResponse struct {
	IMs []struct {
		ID        string   `json:"_id"`
		Usernames []string `json:"usernames"`
	} `json:"ims"`
	Offset  int  `json:"offset"`
	Count   int  `json:"count"`
	Total   int  `json:"total"`
	Success bool `json:"success"`
}

// ListDirectRooms returns every direct-message room of the bot.
func (c *Client) ListDirectRooms(ctx context.Context) ([]chat.Room, error) {
	self := c.currentUsername()
	var rooms []chat.Room
	for offset := 0; ; {
		q := url.Values{}
		q.Set("offset", strconv.Itoa(offset))
		q.Set("count", strconv.Itoa(listPageSize))
		var out imListResponse
		if err := c.call(ctx, http.MethodGet, "/im.list", q, nil, true, &out); err != nil {
			return nil, fmt.Errorf("rocketchat im.list: %w", err)
		}
		for _, im := range out.IMs {
			rooms = append(rooms, chat.Room{ID: im.ID, Name: peerName(im.Usernames, self)})
		}
		offset += len(out.IMs)
		if len(out.IMs) == 0 || offset >= out.Total {
			break
		}
	}
	return rooms, nil
}

func peerName(usernames []string, self string) string {
	var peers []string
	for _, u := range usernames {
		if u != self {
			peers = append(peers, u)
		}
	}
	sort.Strings(peers)
	return strings.Join(peers, ",")
}

type historyResponse struct {
	Messages []struct {
		ID   string `json:"_id"`
		RID  string `json:"rid"`
		Msg  string `json:"msg"`
		TS   string `json:"ts"`
		Type string `json:"t"`
		U    struct {
			ID       string `json:"_id"`
			Username string `json:"username"`
		} `json:"u"`
	} `json:"messages"`
	Success bool `json:"success"`
}

// FetchRecentMessages returns the newest count messages of a room, oldest first.
// System messages and the bot's own messages are filtered out.
func (c *Client) FetchRecentMessages(ctx context.Context, roomID string, count int) ([]chat.Message, error) {
	if count <= 0 {
		count = 1
	}
	q := url.Values{}
	q.Set("roomId", roomID)
	q.Set("count", strconv.Itoa(count))
	var out historyResponse
	if err := c.call(ctx, http.MethodGet, "/im.history", q, nil, true, &out); err != nil {
		return nil, fmt.Errorf("rocketchat im.history: %w", err)
	}

	self := c.currentUserID()
	msgs := make([]chat.Message, 0, len(out.Messages))
	// The API returns newest first.
	for i := len(out.Messages) - 1; i >= 0; i-- {
		m := out.Messages[i]
		if m.Type != "" || m.U.ID == self {
			continue
		}
		ts, _ := time.Parse(time.RFC3339Nano, m.TS)
		room := m.RID
		if room == "" {
			room = roomID
		}
		msgs = append(msgs, chat.Message{
			ID:         m.ID,
			Sender:     m.U.ID,
			SenderName: m.U.Username,
			Room:       room,
			Text:       m.Msg,
			Timestamp:  ts,
		})
	}
	return msgs, nil
}

// SendMessage posts text into a room.
func (c *Client) SendMessage(ctx context.Context, roomID, text string) error {
	body := map[string]string{"roomId": roomID, "text": text}
	if err := c.call(ctx, http.MethodPost, "/chat.postMessage", nil, body, true, nil); err != nil {
		return fmt.Errorf("rocketchat chat.postMessage: %w", err)
	}
	return nil
}

// Close logs out sessions opened with a password. Personal access tokens are left intact.
func (c *Client) Close() error {
	c.mu.RLock()
	loggedIn := c.loggedIn
	c.mu.RUnlock()
	if !loggedIn {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.call(ctx, http.MethodPost, "/logout", nil, nil, true, nil)
	c.mu.Lock()
	c.loggedIn = false
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("rocketchat logout: %w", err)
	}
	return nil
}

func (c *Client) currentUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) currentUsername() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

type statusEnvelope struct {
	Success *bool  `json:"success"`
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method, endpoint string, query url.Values, body any, auth bool, out any) error {
	u := c.baseURL + apiPrefix + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", endpoint, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(raw)), nil }
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		c.mu.RLock()
		req.Header.Set("X-User-Id", c.userID)
		req.Header.Set("X-Auth-Token", c.token)
		c.mu.RUnlock()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s: %w", endpoint, err)
	}

	var env statusEnvelope
	_ = json.Unmarshal(data, &env)
	failed := resp.StatusCode < 200 || resp.StatusCode >= 300 ||
		(env.Success != nil && !*env.Success) || env.Status == "error"
	if failed {
		msg := strings.TrimSpace(env.Error)
		if msg == "" {
			msg = strings.TrimSpace(env.Message)
		}
		status := resp.StatusCode
		if status >= 200 && status < 300 {
			status = http.StatusBadRequest
		}
		return &APIError{Endpoint: endpoint, HTTPStatus: status, Message: logger.SanitizeLimit(msg, 200)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
