// Package client is a small Go SDK for the messenger API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"messenger-service/internal/models"
)

type (
	User          = models.User
	PublicProfile = models.PublicProfile
	Settings      = models.Settings
	SettingsPatch = models.SettingsPatch
	Chat          = models.Chat
	ChatSummary   = models.ChatSummary
	Message       = models.Message
	Reaction      = models.Reaction
	Event         = models.ChatEvent
	FeedEvent     = models.FeedEvent
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messenger api: %d %s", e.Status, e.Message)
}

// ErrNotAuthenticated is returned by calls that need a token before Login or Register.
var ErrNotAuthenticated = errors.New("messenger api: not authenticated")

// Client talks to one messenger deployment. It is safe for sequential use; share it across
// goroutines only after authentication.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient swaps the transport, e.g. for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Token returns the current bearer token.
func (c *Client) Token() string { return c.token }

// SetToken reuses a token obtained earlier.
func (c *Client) SetToken(token string) { c.token = token }

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

func (c *Client) Register(ctx context.Context, name, username, email, password string) (User, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"name": name, "username": username, "email": email, "password": password,
	}, &resp)
	if err != nil {
		return User{}, err
	}
	c.token = resp.Token
	return resp.User, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &resp); err != nil {
		return User{}, err
	}
	c.token = resp.Token
	return resp.User, nil
}

// Logout revokes the token server-side and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// StartChat returns the chat with peerID, creating it if needed.
func (c *Client) StartChat(ctx context.Context, peerID string) (Chat, error) {
	var resp struct {
		Chat Chat `json:"chat"`
	}
	if err := c.do(ctx, http.MethodPost, "/chats", map[string]string{"peer_id": peerID}, &resp); err != nil {
		return Chat{}, err
	}
	return resp.Chat, nil
}

func (c *Client) Chats(ctx context.Context) ([]ChatSummary, error) {
	var resp struct {
		Chats []ChatSummary `json:"chats"`
	}
	err := c.do(ctx, http.MethodGet, "/chats", nil, &resp)
	return resp.Chats, err
}

// SendOptions are the optional parts of a message.
type SendOptions struct {
	ReplyToID string
	Uploading bool
}

func (c *Client) SendMessage(ctx context.Context, chatID, text string, opts SendOptions) (Message, error) {
	var msg Message
	err := c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/messages", map[string]any{
		"text": text, "reply_to_id": opts.ReplyToID, "uploading": opts.Uploading,
	}, &msg)
	return msg, err
}

// Cursor is a paging position: the timestamp and id of the oldest message already held.
type Cursor struct {
	At time.Time
	ID string
}

// CursorOf returns the cursor that pages back from m.
func CursorOf(m Message) Cursor {
	return Cursor{At: m.CreatedAt, ID: m.ID}
}

// Messages returns up to limit messages older than before, oldest first. A zero cursor means newest.
func (c *Client) Messages(ctx context.Context, chatID string, before Cursor, limit int) ([]Message, error) {
	q := url.Values{}
	if !before.At.IsZero() {
		q.Set("before", before.At.UTC().Format(time.RFC3339Nano))
		if before.ID != "" {
			q.Set("before_id", before.ID)
		}
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/chats/" + url.PathEscape(chatID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Messages []Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Messages, err
}

func (c *Client) MarkSeen(ctx context.Context, chatID, messageID string) (Message, error) {
	var msg Message
	err := c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/messages/"+url.PathEscape(messageID)+"/seen", nil, &msg)
	return msg, err
}

func (c *Client) React(ctx context.Context, chatID, messageID string, reaction *Reaction) (Message, error) {
	path := "/chats/" + url.PathEscape(chatID) + "/messages/" + url.PathEscape(messageID) + "/reaction"
	var msg Message
	if reaction == nil {
		return msg, c.do(ctx, http.MethodDelete, path, nil, &msg)
	}
	return msg, c.do(ctx, http.MethodPut, path, reaction, &msg)
}

// Typing reports a keystroke in chatID.
func (c *Client) Typing(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/typing", nil, nil)
}

func (c *Client) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	err := c.do(ctx, http.MethodGet, "/users/me/settings", nil, &s)
	return s, err
}

func (c *Client) UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error) {
	var s Settings
	err := c.do(ctx, http.MethodPatch, "/users/me/settings", patch, &s)
	return s, err
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]PublicProfile, error) {
	var resp struct {
		Users []PublicProfile `json:"users"`
	}
	err := c.do(ctx, http.MethodGet, "/users/search?q="+url.QueryEscape(query), nil, &resp)
	return resp.Users, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if !strings.HasPrefix(path, "/auth/register") && !strings.HasPrefix(path, "/auth/login") {
		return ErrNotAuthenticated
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
