package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"grouptalk/internal/models"

	"github.com/rs/zerolog"
)

const defaultDeliveryTimeout = 2 * time.Second

// Delivery is one committed change to push to the online members of a group.
type Delivery struct {
	GroupID string
	Frame   models.ServerMessage
}

type target struct {
	userID string
	handle Handle
}

// Router pushes deliveries to the live handles of group members.
// Delivery is best effort: a push that fails or times out is logged, its
// handle is unbound and closed, and the remaining members still get theirs.
type Router struct {
	registry *Registry
	presence *Presence
	timeout  time.Duration
	log      *zerolog.Logger
}

func NewRouter(registry *Registry, presence *Presence, timeout time.Duration, logger *zerolog.Logger) *Router {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &Router{registry: registry, presence: presence, timeout: timeout, log: logger}
}

// Deliver pushes d to every online member of its group and returns how many
// pushes succeeded. Pushes to different members run in parallel and each is
// bounded by the delivery timeout, so slow members cost the caller at most
// one timeout. Deliver returns only after every push has finished.
func (r *Router) Deliver(ctx context.Context, d Delivery) int {
	members, err := r.registry.ListMembers(ctx, d.GroupID)
	if err != nil {
		r.log.Warn().Err(err).Str("group_id", d.GroupID).Msg("fan-out skipped")
		return 0
	}

	targets := make([]target, 0, len(members))
	for _, m := range members {
		if h, ok := r.presence.Lookup(m.ID); ok {
			targets = append(targets, target{userID: m.ID, handle: h})
		}
	}
	return r.push(ctx, targets, d.Frame)
}

func (r *Router) push(ctx context.Context, targets []target, frame models.ServerMessage) int {
	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)
	for _, t := range targets {
		wg.Go(func() {
			if r.pushOne(ctx, t, frame) {
				delivered.Add(1)
			}
		})
	}
	wg.Wait()
	return int(delivered.Load())
}

func (r *Router) pushOne(ctx context.Context, t target, frame models.ServerMessage) bool {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := t.handle.Push(pctx, frame)
	if err == nil {
		return true
	}

	failure := models.DeliveryFailed(t.userID, err)
	r.log.Warn().Err(failure).Str("code", failure.Code).Str("user_id", t.userID).Msg("dropping stale connection")
	if r.presence.Unbind(t.userID, t.handle) {
		_ = t.handle.Close()
	}
	return false
}
