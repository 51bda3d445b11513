package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Subscribe opens the live event stream of a chat. The channel closes when ctx ends or the
// connection drops.
func (c *Client) Subscribe(ctx context.Context, chatID string) (<-chan Event, error) {
	return subscribe[Event](ctx, c, "/ws/chats/"+url.PathEscape(chatID))
}

// SubscribeFeed opens the caller's feed. While it is open the user counts as online.
func (c *Client) SubscribeFeed(ctx context.Context) (<-chan FeedEvent, error) {
	return subscribe[FeedEvent](ctx, c, "/ws/feed")
}

func subscribe[T any](ctx context.Context, c *Client, path string) (<-chan T, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + path

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: "websocket handshake failed"}
		}
		return nil, err
	}

	out := make(chan T, 16)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var ev T
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
