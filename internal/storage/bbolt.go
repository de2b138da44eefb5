package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"grouptalk/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketUsers    = []byte("users")
	bucketGroups   = []byte("groups")
	bucketMessages = []byte("messages")
)

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketGroups, bucketMessages} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// View runs fn in a read-only bbolt transaction.
func (s *BboltStorage) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(&bboltTx{tx: tx})
	})
}

// Update runs fn in a read-write bbolt transaction. bbolt allows a single
// writer at a time, so fn should not block on anything but the store.
func (s *BboltStorage) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&bboltTx{tx: tx})
	})
}

type bboltTx struct {
	tx *bbolt.Tx
}

func (t *bboltTx) get(bucket []byte, kind, id string, v Storeable) error {
	data := t.tx.Bucket(bucket).Get([]byte(id))
	if data == nil {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	if err := v.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}
	return nil
}

func (t *bboltTx) put(bucket []byte, v Storeable) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return t.tx.Bucket(bucket).Put(v.Key(), data)
}

func (t *bboltTx) GetUser(id string) (models.User, error) {
	var u DBUser
	if err := t.get(bucketUsers, "user", id, &u); err != nil {
		return models.User{}, err
	}
	return u.model(), nil
}

func (t *bboltTx) PutUser(user models.User) error {
	return t.put(bucketUsers, newDBUser(user))
}

func (t *bboltTx) ListUsers() ([]models.User, error) {
	users := []models.User{}
	err := t.tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
		var u DBUser
		if err := u.UnmarshalBinary(v); err != nil {
			return err
		}
		users = append(users, u.model())
		return nil
	})
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, err
}

func (t *bboltTx) GetGroup(id string) (models.Group, error) {
	var g DBGroup
	if err := t.get(bucketGroups, "group", id, &g); err != nil {
		return models.Group{}, err
	}
	return g.model(), nil
}

func (t *bboltTx) PutGroup(group models.Group) error {
	return t.put(bucketGroups, newDBGroup(group))
}

func (t *bboltTx) DeleteGroup(id string) error {
	return t.tx.Bucket(bucketGroups).Delete([]byte(id))
}

// ListGroups returns all groups in creation order.
func (t *bboltTx) ListGroups() ([]models.Group, error) {
	groups := []models.Group{}
	err := t.tx.Bucket(bucketGroups).ForEach(func(k, v []byte) error {
		var g DBGroup
		if err := g.UnmarshalBinary(v); err != nil {
			return err
		}
		groups = append(groups, g.model())
		return nil
	})
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].CreatedAt.Before(groups[j].CreatedAt)
	})
	return groups, err
}

func (t *bboltTx) GetMessage(id string) (models.Message, error) {
	var m DBMessage
	if err := t.get(bucketMessages, "message", id, &m); err != nil {
		return models.Message{}, err
	}
	return m.model(), nil
}

func (t *bboltTx) PutMessage(message models.Message) error {
	if message.GroupID == "" {
		return fmt.Errorf("message %s missing group id", message.ID)
	}
	return t.put(bucketMessages, newDBMessage(message))
}

func (t *bboltTx) DeleteMessage(id string) error {
	return t.tx.Bucket(bucketMessages).Delete([]byte(id))
}

func (t *bboltTx) ListMessagesByGroup(groupID string) ([]models.Message, error) {
	var messages []models.Message
	err := t.tx.Bucket(bucketMessages).ForEach(func(k, v []byte) error {
		var m DBMessage
		if err := m.UnmarshalBinary(v); err != nil {
			return err
		}
		if m.GroupID == groupID {
			messages = append(messages, m.model())
		}
		return nil
	})
	return messages, err
}
