package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"grouptalk/internal/models"
	"grouptalk/internal/storage"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, "Team", alice)

	first, err := s.Append(ctx, g.ID, alice.ID, "first")
	require.NoError(t, err)
	m, err := s.Append(ctx, g.ID, alice.ID, "  **hello**  ")
	require.NoError(t, err)

	require.NotEmpty(t, m.ID)
	require.Equal(t, "**hello**", m.Text)
	require.Equal(t, "<p><strong>hello</strong></p>", m.HTML)
	require.Equal(t, "alice", m.Sender)
	require.Equal(t, alice.ID, m.SenderID)
	require.Equal(t, g.ID, m.GroupID)
	require.NotNil(t, m.Likes)
	require.Empty(t, m.Likes)
	require.Equal(t, m.CreatedAt, m.UpdatedAt)

	messages, err := s.ListMessages(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, first.ID, messages[0].ID)
	last := messages[len(messages)-1]
	require.Equal(t, m.ID, last.ID)
	require.Empty(t, last.Likes)
	require.Equal(t, "alice", last.Sender)
}

func TestAppend_KeepsTextVerbatim(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	g := mustGroup(t, s, "Team", alice, bob)

	h := newFakeHandle(10)
	require.NoError(t, s.Connect(ctx, bob.ID, h))

	const text = "if a < b && c > d <script>alert(1)</script>"
	m, err := s.Append(ctx, g.ID, alice.ID, "  "+text+"\n")
	require.NoError(t, err)
	require.Equal(t, text, m.Text)
	require.NotContains(t, m.HTML, "<script>")
	require.Contains(t, m.HTML, "a &lt; b &amp;&amp; c &gt; d")

	messages, err := s.ListMessages(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, text, messages[0].Text)

	frames := h.drain()
	require.Len(t, frames, 1)
	require.Equal(t, text, frames[0].Message.Text)

	liked, err := s.ToggleLike(ctx, m.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, text, liked.Text)
}

func TestAppend_Errors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, "Team", alice)

	_, err := s.Append(ctx, g.ID, alice.ID, " \n\t ")
	require.ErrorIs(t, err, models.ErrValidation)
	require.Equal(t, models.ErrCodeValidation, models.Code(err))

	_, err = s.Append(ctx, "missing", alice.ID, "hi")
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.Append(ctx, g.ID, "ghost", "hi")
	require.ErrorIs(t, err, models.ErrNotFound)

	// Nothing half-written by the failed appends.
	messages, err := s.ListMessages(ctx, g.ID)
	require.NoError(t, err)
	require.Empty(t, messages)
	require.NoError(t, s.ledger.store.View(ctx, func(tx storage.Tx) error {
		left, err := tx.ListMessagesByGroup(g.ID)
		require.NoError(t, err)
		require.Empty(t, left)
		return nil
	}))

	_, err = s.ListMessages(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestAppend_ConcurrentKeepsEveryMessage(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, "Team", alice)

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Go(func() {
			_, err := s.Append(ctx, g.ID, alice.ID, fmt.Sprintf("msg %d", i))
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	messages, err := s.ListMessages(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, messages, n)
	for i := 1; i < len(messages); i++ {
		require.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}
}

func TestToggleLike(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	g := mustGroup(t, s, "Team", alice, bob)

	m, err := s.Append(ctx, g.ID, alice.ID, "hi")
	require.NoError(t, err)

	liked, err := s.ToggleLike(ctx, m.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, []string{bob.ID}, liked.Likes)
	require.Equal(t, "alice", liked.Sender)
	require.Equal(t, "hi", liked.Text)
	require.False(t, liked.UpdatedAt.Before(liked.CreatedAt))

	_, err = s.ToggleLike(ctx, m.ID, bob.ID)
	require.ErrorIs(t, err, models.ErrAlreadyLiked)
	require.Equal(t, models.ErrCodeAlreadyLiked, models.Code(err))

	_, err = s.ToggleLike(ctx, "missing", bob.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.ToggleLike(ctx, m.ID, "ghost")
	require.ErrorIs(t, err, models.ErrNotFound)

	messages, err := s.ListMessages(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, []string{bob.ID}, messages[0].Likes)
}

func TestToggleLike_Concurrent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	author := mustUser(t, s, "author")
	g := mustGroup(t, s, "Team", author)
	m, err := s.Append(ctx, g.ID, author.ID, "like me")
	require.NoError(t, err)

	const n = 20
	users := make([]models.User, n)
	for i := range users {
		users[i] = mustUser(t, s, fmt.Sprintf("fan%d", i))
	}

	var wg sync.WaitGroup
	for _, u := range users {
		// Every user likes twice; exactly one of the two must win.
		for range 2 {
			wg.Go(func() {
				_, err := s.ToggleLike(ctx, m.ID, u.ID)
				if err != nil {
					assert.ErrorIs(t, err, models.ErrAlreadyLiked)
				}
			})
		}
	}
	wg.Wait()

	messages, err := s.ListMessages(ctx, g.ID)
	require.NoError(t, err)
	likes := messages[0].Likes
	require.Len(t, likes, n)
	require.Len(t, lo.Uniq(likes), n)
	for _, u := range users {
		require.Contains(t, likes, u.ID)
	}
}
