package storage

import (
	"context"
	"fmt"

	"grouptalk/internal/models"
)

const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Tx is a unit of work against the store. All reads and writes made through
// a Tx passed to Store.Update commit together or not at all.
// Lookups of missing records return an error wrapping models.ErrNotFound.
type Tx interface {
	GetUser(id string) (models.User, error)
	PutUser(user models.User) error
	ListUsers() ([]models.User, error)

	GetGroup(id string) (models.Group, error)
	PutGroup(group models.Group) error
	DeleteGroup(id string) error
	ListGroups() ([]models.Group, error)

	GetMessage(id string) (models.Message, error)
	PutMessage(message models.Message) error
	DeleteMessage(id string) error
	// ListMessagesByGroup returns every message whose group id matches, in no particular order.
	ListMessagesByGroup(groupID string) ([]models.Message, error)
}

// Store is the durable source of truth for users, groups and messages.
type Store interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
	// Update runs fn in a read-write transaction. Returning an error rolls it back.
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Open returns a store for the given driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverBolt, "":
		return NewBboltStorage(path)
	case DriverSQLite:
		return NewSQLiteStorage(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
