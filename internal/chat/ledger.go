package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grouptalk/internal/content"
	"grouptalk/internal/models"
	"grouptalk/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Ledger is the append-only message log of every group. It also owns the
// like set of each message.
type Ledger struct {
	store storage.Store
	log   *zerolog.Logger
	now   func() time.Time
}

func NewLedger(store storage.Store, logger *zerolog.Logger) *Ledger {
	return &Ledger{store: store, log: logger, now: time.Now}
}

// Append stores a new message and appends its id to the group's sequence.
// Both writes share one transaction.
func (l *Ledger) Append(ctx context.Context, groupID, senderID, text string) (models.MessageView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.MessageView{}, models.Invalid("message text is required")
	}

	var (
		msg    models.Message
		sender models.User
	)
	err := l.store.Update(ctx, func(tx storage.Tx) error {
		group, err := tx.GetGroup(groupID)
		if err != nil {
			return resolve(err, "group", groupID)
		}
		sender, err = tx.GetUser(senderID)
		if err != nil {
			return resolve(err, "user", senderID)
		}

		now := l.now().UTC()
		msg = models.Message{
			ID:        uuid.NewString(),
			GroupID:   groupID,
			SenderID:  senderID,
			Text:      text,
			Likes:     []string{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.PutMessage(msg); err != nil {
			return fmt.Errorf("put message: %w", err)
		}

		group.MessageIDs = append(group.MessageIDs, msg.ID)
		if err := tx.PutGroup(group); err != nil {
			return fmt.Errorf("append message id: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.MessageView{}, err
	}

	return l.view(msg, sender.UserName), nil
}

// ToggleLike adds userID to the message's like set. Likes cannot be taken
// back, so a second like by the same user is rejected.
func (l *Ledger) ToggleLike(ctx context.Context, messageID, userID string) (models.MessageView, error) {
	var (
		msg    models.Message
		sender string
	)
	err := l.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		msg, err = tx.GetMessage(messageID)
		if err != nil {
			return resolve(err, "message", messageID)
		}
		if _, err := tx.GetUser(userID); err != nil {
			return resolve(err, "user", userID)
		}
		if msg.LikedBy(userID) {
			return models.AlreadyLiked(messageID, userID)
		}

		msg.Likes = append(msg.Likes, userID)
		msg.UpdatedAt = l.now().UTC()
		if err := tx.PutMessage(msg); err != nil {
			return fmt.Errorf("put message: %w", err)
		}

		sender = senderName(tx, msg.SenderID)
		return nil
	})
	if err != nil {
		return models.MessageView{}, err
	}

	return l.view(msg, sender), nil
}

// GroupOf returns the id of the group messageID was appended to.
func (l *Ledger) GroupOf(ctx context.Context, messageID string) (string, error) {
	var groupID string
	err := l.store.View(ctx, func(tx storage.Tx) error {
		msg, err := tx.GetMessage(messageID)
		if err != nil {
			return resolve(err, "message", messageID)
		}
		groupID = msg.GroupID
		return nil
	})
	return groupID, err
}

// ListMessages returns the group's messages in append order.
func (l *Ledger) ListMessages(ctx context.Context, groupID string) ([]models.MessageView, error) {
	var views []models.MessageView
	err := l.store.View(ctx, func(tx storage.Tx) error {
		group, err := tx.GetGroup(groupID)
		if err != nil {
			return resolve(err, "group", groupID)
		}

		names := make(map[string]string)
		views = make([]models.MessageView, 0, len(group.MessageIDs))
		for _, id := range group.MessageIDs {
			msg, err := tx.GetMessage(id)
			if err != nil {
				return fmt.Errorf("message %s of group %s: %w", id, groupID, err)
			}
			name, ok := names[msg.SenderID]
			if !ok {
				name = senderName(tx, msg.SenderID)
				names[msg.SenderID] = name
			}
			views = append(views, l.view(msg, name))
		}
		return nil
	})
	return views, err
}

// DeleteAllForGroup removes every message of groupID within tx.
// Only the registry's cascading delete calls it.
func (l *Ledger) DeleteAllForGroup(tx storage.Tx, groupID string) error {
	messages, err := tx.ListMessagesByGroup(groupID)
	if err != nil {
		return fmt.Errorf("list messages of group %s: %w", groupID, err)
	}
	for _, msg := range messages {
		if err := tx.DeleteMessage(msg.ID); err != nil {
			return fmt.Errorf("delete message %s: %w", msg.ID, err)
		}
	}
	return nil
}

func (l *Ledger) view(msg models.Message, sender string) models.MessageView {
	html, err := content.Render(msg.Text)
	if err != nil {
		l.log.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to render message")
	}
	return models.MessageView{Message: msg, Sender: sender, HTML: html}
}

// senderName falls back to the raw id when the user record is gone.
func senderName(tx storage.Tx, senderID string) string {
	user, err := tx.GetUser(senderID)
	if err != nil {
		return senderID
	}
	return user.UserName
}
