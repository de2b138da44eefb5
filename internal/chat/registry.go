package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"grouptalk/internal/content"
	"grouptalk/internal/models"
	"grouptalk/internal/storage"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry owns groups, their member sets and the users they resolve to.
// Every mutation is a single store transaction, so it either applies in
// full or not at all.
type Registry struct {
	store  storage.Store
	ledger *Ledger
	now    func() time.Time
}

func NewRegistry(store storage.Store, ledger *Ledger) *Registry {
	return &Registry{store: store, ledger: ledger, now: time.Now}
}

// RegisterUser creates a user with a fresh id. Usernames are unique.
func (r *Registry) RegisterUser(ctx context.Context, username string) (models.User, error) {
	username = strings.TrimSpace(username)
	if err := content.ValidateUsername(username); err != nil {
		return models.User{}, models.Invalid("%v", err)
	}

	user := models.User{
		ID:        uuid.NewString(),
		UserName:  username,
		CreatedAt: r.now().UTC(),
	}
	err := r.store.Update(ctx, func(tx storage.Tx) error {
		users, err := tx.ListUsers()
		if err != nil {
			return err
		}
		if lo.ContainsBy(users, func(u models.User) bool { return strings.EqualFold(u.UserName, username) }) {
			return models.Invalid("username %s is taken", username)
		}
		return tx.PutUser(user)
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *Registry) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.store.View(ctx, func(tx storage.Tx) error {
		var err error
		user, err = tx.GetUser(userID)
		return resolve(err, "user", userID)
	})
	return user, err
}

func (r *Registry) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.store.View(ctx, func(tx storage.Tx) error {
		var err error
		users, err = tx.ListUsers()
		return err
	})
	return users, err
}

// CreateGroup creates an empty group. The name is sanitized and must not be
// blank.
func (r *Registry) CreateGroup(ctx context.Context, name string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, models.Invalid("group name is required")
	}

	group := models.Group{
		ID:         uuid.NewString(),
		Name:       name,
		Members:    []string{},
		MessageIDs: []string{},
		CreatedAt:  r.now().UTC(),
	}
	if err := r.store.Update(ctx, func(tx storage.Tx) error {
		return tx.PutGroup(group)
	}); err != nil {
		return models.Group{}, fmt.Errorf("create group: %w", err)
	}
	return group, nil
}

// DeleteGroup removes the group and every message it owns in one transaction.
func (r *Registry) DeleteGroup(ctx context.Context, groupID string) error {
	return r.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetGroup(groupID); err != nil {
			return resolve(err, "group", groupID)
		}
		if err := r.ledger.DeleteAllForGroup(tx, groupID); err != nil {
			return err
		}
		return tx.DeleteGroup(groupID)
	})
}

// AddMember appends userID to the group's member set.
func (r *Registry) AddMember(ctx context.Context, groupID, userID string) (models.Group, error) {
	var group models.Group
	err := r.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		group, err = tx.GetGroup(groupID)
		if err != nil {
			return resolve(err, "group", groupID)
		}
		if _, err := tx.GetUser(userID); err != nil {
			return resolve(err, "user", userID)
		}
		if group.HasMember(userID) {
			return models.AlreadyMember(groupID, userID)
		}
		group.Members = append(group.Members, userID)
		return tx.PutGroup(group)
	})
	if err != nil {
		return models.Group{}, err
	}
	return group, nil
}

func (r *Registry) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	var group models.Group
	err := r.store.View(ctx, func(tx storage.Tx) error {
		var err error
		group, err = tx.GetGroup(groupID)
		return resolve(err, "group", groupID)
	})
	return group, err
}

// ListMembers resolves the group's member ids in member order.
func (r *Registry) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	var members []models.Member
	err := r.store.View(ctx, func(tx storage.Tx) error {
		group, err := tx.GetGroup(groupID)
		if err != nil {
			return resolve(err, "group", groupID)
		}
		members = make([]models.Member, 0, len(group.Members))
		for _, id := range group.Members {
			user, err := tx.GetUser(id)
			if err != nil {
				return resolve(err, "user", id)
			}
			members = append(members, models.Member{ID: user.ID, UserName: user.UserName})
		}
		return nil
	})
	return members, err
}

// ListGroups returns every group in creation order.
func (r *Registry) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := r.store.View(ctx, func(tx storage.Tx) error {
		var err error
		groups, err = tx.ListGroups()
		return err
	})
	return groups, err
}

// SearchGroups matches query against group names, ignoring case.
// An empty query matches every group.
func (r *Registry) SearchGroups(ctx context.Context, query string) ([]models.Group, error) {
	groups, err := r.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return groups, nil
	}
	return lo.Filter(groups, func(g models.Group, _ int) bool {
		return strings.Contains(strings.ToLower(g.Name), query)
	}), nil
}

// resolve turns a store miss into a coded NotFound error.
func resolve(err error, kind, id string) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.NotFound(kind, id)
	}
	return err
}
