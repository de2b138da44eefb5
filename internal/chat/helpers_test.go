package chat

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"grouptalk/internal/models"
	"grouptalk/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewBboltStorage(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := zerolog.Nop()
	return NewService(newTestStore(t), Config{
		DeliveryTimeout: 50 * time.Millisecond,
		LockStripes:     16,
		PresenceShards:  4,
	}, &logger)
}

func mustUser(t *testing.T, s *Service, name string) models.User {
	t.Helper()
	u, err := s.RegisterUser(context.Background(), name)
	require.NoError(t, err)
	return u
}

func mustGroup(t *testing.T, s *Service, name string, members ...models.User) models.Group {
	t.Helper()
	ctx := context.Background()
	g, err := s.CreateGroup(ctx, name)
	require.NoError(t, err)
	for _, m := range members {
		g, err = s.AddMember(ctx, g.ID, m.ID)
		require.NoError(t, err)
	}
	return g
}

// fakeHandle records pushed frames. A nil buffer blocks every push until the
// push context expires.
type fakeHandle struct {
	frames chan models.ServerMessage
	fail   error
	closed atomic.Bool
}

func newFakeHandle(buffer int) *fakeHandle {
	return &fakeHandle{frames: make(chan models.ServerMessage, buffer)}
}

func (h *fakeHandle) Push(ctx context.Context, frame models.ServerMessage) error {
	if h.fail != nil {
		return h.fail
	}
	select {
	case h.frames <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

// drain returns every frame pushed so far.
func (h *fakeHandle) drain() []models.ServerMessage {
	var frames []models.ServerMessage
	for {
		select {
		case f := <-h.frames:
			frames = append(frames, f)
		default:
			return frames
		}
	}
}
