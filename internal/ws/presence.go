package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"messenger-service/internal/models"
)

// PresenceStore persists the online flag.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

// PeerLister finds users that share a chat with a user.
type PeerLister interface {
	ListPeers(ctx context.Context, userID string) ([]string, error)
}

// Presence keeps the stored online flag in line with live feed connections.
type Presence struct {
	hub   *Hub
	store PresenceStore
	peers PeerLister
	log   *zap.Logger

	mu     sync.Mutex
	online map[string]bool
}

func NewPresence(hub *Hub, store PresenceStore, peers PeerLister, log *zap.Logger) *Presence {
	return &Presence{hub: hub, store: store, peers: peers, log: log, online: make(map[string]bool)}
}

// Sync writes the user's current connection state and announces a change to peers.
func (p *Presence) Sync(ctx context.Context, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	online := p.hub.IsOnline(userID)
	if p.online[userID] == online {
		return
	}
	if err := p.store.SetOnline(ctx, userID, online); err != nil {
		p.log.Warn("presence_update_failed", zap.String("user_id", userID), zap.Bool("online", online), zap.Error(err))
		return
	}
	if online {
		p.online[userID] = true
	} else {
		delete(p.online, userID)
	}
	p.Announce(ctx, userID, online)
}

// Announce sends a presence event to the feeds of the user's peers.
func (p *Presence) Announce(ctx context.Context, userID string, online bool) {
	peers, err := p.peers.ListPeers(ctx, userID)
	if err != nil {
		p.log.Warn("presence_peers_failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	for _, peer := range peers {
		p.hub.SendFeedEvent(peer, models.FeedEvent{Type: models.EventPresence, UserID: userID, Online: &online})
	}
}
