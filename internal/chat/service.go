package chat

import (
	"context"
	"time"

	"grouptalk/internal/models"
	"grouptalk/internal/storage"

	"github.com/rs/zerolog"
)

type Config struct {
	DeliveryTimeout time.Duration
	LockStripes     int
	PresenceShards  int
}

// Service is the entry point used by the HTTP and websocket layers.
// Every group mutation holds the group's lock from the store commit until its
// fan-out returns. Members therefore see messages in append order, and a
// like never arrives before the message it refers to.
//
// Fan-out runs after the store commit and is never part of the transaction.
type Service struct {
	registry *Registry
	ledger   *Ledger
	presence *Presence
	router   *Router

	groupLocks *keyedMutex

	log *zerolog.Logger
}

func NewService(store storage.Store, cfg Config, logger *zerolog.Logger) *Service {
	ledger := NewLedger(store, logger)
	registry := NewRegistry(store, ledger)
	presence := NewPresence(cfg.PresenceShards)

	return &Service{
		registry:   registry,
		ledger:     ledger,
		presence:   presence,
		router:     NewRouter(registry, presence, cfg.DeliveryTimeout, logger),
		groupLocks: newKeyedMutex(cfg.LockStripes),
		log:        logger,
	}
}

func (s *Service) RegisterUser(ctx context.Context, username string) (models.User, error) {
	user, err := s.registry.RegisterUser(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info().Str("user_id", user.ID).Str("username", user.UserName).Msg("user registered")
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (models.User, error) {
	return s.registry.GetUser(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.registry.ListUsers(ctx)
}

func (s *Service) CreateGroup(ctx context.Context, name string) (models.Group, error) {
	group, err := s.registry.CreateGroup(ctx, name)
	if err != nil {
		return models.Group{}, err
	}
	s.log.Info().Str("group_id", group.ID).Str("name", group.Name).Msg("group created")
	return group, nil
}

func (s *Service) DeleteGroup(ctx context.Context, groupID string) error {
	defer s.groupLocks.Lock(groupID)()

	if err := s.registry.DeleteGroup(ctx, groupID); err != nil {
		return err
	}
	s.log.Info().Str("group_id", groupID).Msg("group deleted")
	return nil
}

func (s *Service) AddMember(ctx context.Context, groupID, userID string) (models.Group, error) {
	defer s.groupLocks.Lock(groupID)()
	return s.registry.AddMember(ctx, groupID, userID)
}

func (s *Service) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	return s.registry.GetGroup(ctx, groupID)
}

func (s *Service) ListGroups(ctx context.Context) ([]models.Group, error) {
	return s.registry.ListGroups(ctx)
}

func (s *Service) SearchGroups(ctx context.Context, query string) ([]models.Group, error) {
	return s.registry.SearchGroups(ctx, query)
}

func (s *Service) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	return s.registry.ListMembers(ctx, groupID)
}

// Append stores the message and pushes it to every online member,
// the sender included. Clients drop duplicates by message id.
func (s *Service) Append(ctx context.Context, groupID, senderID, text string) (models.MessageView, error) {
	defer s.groupLocks.Lock(groupID)()

	view, err := s.ledger.Append(ctx, groupID, senderID, text)
	if err != nil {
		return models.MessageView{}, err
	}

	s.router.Deliver(context.WithoutCancel(ctx), Delivery{
		GroupID: groupID,
		Frame:   models.ServerMessage{Type: models.ServerMessageTypeMessage, Message: &view},
	})
	return view, nil
}

// ToggleLike records the like and pushes the updated message to the group.
// It takes the lock of the message's group, so the like is queued behind any
// fan-out of that message still in flight.
func (s *Service) ToggleLike(ctx context.Context, messageID, userID string) (models.MessageView, error) {
	groupID, err := s.ledger.GroupOf(ctx, messageID)
	if err != nil {
		return models.MessageView{}, err
	}
	defer s.groupLocks.Lock(groupID)()

	view, err := s.ledger.ToggleLike(ctx, messageID, userID)
	if err != nil {
		return models.MessageView{}, err
	}

	s.router.Deliver(context.WithoutCancel(ctx), Delivery{
		GroupID: view.GroupID,
		Frame:   models.ServerMessage{Type: models.ServerMessageTypeLike, Message: &view},
	})
	return view, nil
}

func (s *Service) ListMessages(ctx context.Context, groupID string) ([]models.MessageView, error) {
	return s.ledger.ListMessages(ctx, groupID)
}

// Connect binds h as the live connection of userID. A connection it
// supersedes is closed.
func (s *Service) Connect(ctx context.Context, userID string, h Handle) error {
	if _, err := s.registry.GetUser(ctx, userID); err != nil {
		return err
	}

	if prev, ok := s.presence.Bind(userID, h); ok {
		s.log.Debug().Str("user_id", userID).Msg("superseding previous connection")
		_ = prev.Close()
	}
	s.log.Debug().Str("user_id", userID).Msg("user online")
	return nil
}

// Disconnect unbinds h. It is a no-op if a newer connection took over.
func (s *Service) Disconnect(userID string, h Handle) {
	if s.presence.Unbind(userID, h) {
		s.log.Debug().Str("user_id", userID).Msg("user offline")
	}
}

// Online reports whether userID has a live connection.
func (s *Service) Online(userID string) bool {
	_, ok := s.presence.Lookup(userID)
	return ok
}
