package ws

import (
	"context"

	"grouptalk/internal/chat"
	"grouptalk/internal/models"

	"github.com/rs/zerolog"
)

type chatService interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	Connect(ctx context.Context, userID string, conn chat.Handle) error
	Disconnect(userID string, conn chat.Handle)
	Append(ctx context.Context, groupID, senderID, text string) (models.MessageView, error)
	ToggleLike(ctx context.Context, messageID, userID string) (models.MessageView, error)
}

// Hub connects websocket sessions to the chat service. Deliveries reach a
// session through the service's fan-out, not through the hub.
type Hub struct {
	svc chatService
	log *zerolog.Logger
}

func NewHub(svc chatService, logger *zerolog.Logger) *Hub {
	return &Hub{svc: svc, log: logger}
}

// Resolve checks that userID names a registered user.
func (h *Hub) Resolve(ctx context.Context, userID string) error {
	_, err := h.svc.GetUser(ctx, userID)
	return err
}

func (h *Hub) Join(ctx context.Context, userID string, conn *Connection) error {
	if err := h.svc.Connect(ctx, userID, conn); err != nil {
		h.log.Debug().Err(err).Str("user_id", userID).Msg("connect rejected")
		return err
	}
	h.log.Info().Str("user_id", userID).Msg("websocket connected")
	return nil
}

func (h *Hub) Leave(userID string, conn *Connection) {
	h.svc.Disconnect(userID, conn)
	h.log.Info().Str("user_id", userID).Msg("websocket disconnected")
}

// Dispatch runs one client frame as userID. The sender learns about success
// through the regular fan-out, so only failures produce a reply.
func (h *Hub) Dispatch(ctx context.Context, userID string, msg models.ClientMessage) *models.ServerMessage {
	var err error
	switch msg.Type {
	case models.ClientMessageTypeSend:
		_, err = h.svc.Append(ctx, msg.GroupID, userID, msg.Text)
	case models.ClientMessageTypeLike:
		_, err = h.svc.ToggleLike(ctx, msg.MessageID, userID)
	default:
		err = models.Invalid("unknown frame type %q", msg.Type)
	}
	if err == nil {
		return nil
	}

	h.log.Debug().Err(err).Str("user_id", userID).Str("type", string(msg.Type)).Msg("client frame rejected")
	frame := errorFrame(err)
	return &frame
}
