package chat

import (
	"context"

	"grouptalk/internal/models"

	"github.com/c-pro/geche"
)

const defaultPresenceShards = 64

// Handle is a live client connection that frames can be pushed to.
type Handle interface {
	// Push hands frame to the connection. It must return once ctx is done.
	Push(ctx context.Context, frame models.ServerMessage) error
	Close() error
}

// Presence maps a user id to at most one live handle. It lives in memory
// only and is rebuilt from connect and disconnect events.
type Presence struct {
	shards []*geche.Locker[string, Handle]
}

func NewPresence(shards int) *Presence {
	if shards <= 0 {
		shards = defaultPresenceShards
	}
	p := &Presence{shards: make([]*geche.Locker[string, Handle], shards)}
	for i := range p.shards {
		p.shards[i] = geche.NewLocker[string, Handle](geche.NewMapCache[string, Handle]())
	}
	return p
}

func (p *Presence) shard(userID string) *geche.Locker[string, Handle] {
	return p.shards[stripe(userID, len(p.shards))]
}

// Bind makes h the live handle of userID and returns the handle it
// superseded, if any. Closing the old handle is up to the caller.
func (p *Presence) Bind(userID string, h Handle) (Handle, bool) {
	tx := p.shard(userID).Lock()
	defer tx.Unlock()

	prev, err := tx.Get(userID)
	tx.Set(userID, h)
	if err != nil || prev == h {
		return nil, false
	}
	return prev, true
}

// Unbind removes the binding of userID only while it still points at h,
// so a late disconnect cannot drop a newer connection.
func (p *Presence) Unbind(userID string, h Handle) bool {
	tx := p.shard(userID).Lock()
	defer tx.Unlock()

	cur, err := tx.Get(userID)
	if err != nil || cur != h {
		return false
	}
	tx.Del(userID)
	return true
}

func (p *Presence) Lookup(userID string) (Handle, bool) {
	tx := p.shard(userID).Lock()
	defer tx.Unlock()

	h, err := tx.Get(userID)
	if err != nil {
		return nil, false
	}
	return h, true
}
