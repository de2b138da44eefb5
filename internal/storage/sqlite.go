package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"grouptalk/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vmihailenco/msgpack/v5"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_groups (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	members     BLOB,
	message_ids BLOB,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	group_id   TEXT NOT NULL,
	sender_id  TEXT NOT NULL,
	text       TEXT NOT NULL,
	likes      BLOB,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_id);
`

// SQLiteStorage implements Store on top of SQLite. List columns are stored
// as msgpack blobs so the record shapes match the bbolt engine.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) View(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&sqliteTx{ctx: ctx, tx: tx})
}

func (s *SQLiteStorage) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func encodeList(list []string) ([]byte, error) {
	return msgpack.Marshal(nonNil(list))
}

func decodeList(data []byte) ([]string, error) {
	var list []string
	if len(data) == 0 {
		return []string{}, nil
	}
	if err := msgpack.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return nonNil(list), nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return fmt.Errorf("query %s: %w", kind, err)
}

// ==== users ====

func (t *sqliteTx) GetUser(id string) (models.User, error) {
	u := DBUser{}
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT id, username, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.UserName, &u.CreatedAt)
	if err != nil {
		return models.User{}, notFound(err, "user", id)
	}
	return u.model(), nil
}

func (t *sqliteTx) PutUser(user models.User) error {
	u := newDBUser(user)
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username
	`, u.ID, u.UserName, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListUsers() ([]models.User, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT id, username, created_at FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u DBUser
		if err := rows.Scan(&u.ID, &u.UserName, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u.model())
	}
	return users, rows.Err()
}

// ==== groups ====

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (models.Group, error) {
	var g DBGroup
	var members, messageIDs []byte
	if err := row.Scan(&g.ID, &g.Name, &members, &messageIDs, &g.CreatedAt); err != nil {
		return models.Group{}, err
	}
	var err error
	if g.Members, err = decodeList(members); err != nil {
		return models.Group{}, fmt.Errorf("decode members of group %s: %w", g.ID, err)
	}
	if g.MessageIDs, err = decodeList(messageIDs); err != nil {
		return models.Group{}, fmt.Errorf("decode message ids of group %s: %w", g.ID, err)
	}
	return g.model(), nil
}

func (t *sqliteTx) GetGroup(id string) (models.Group, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT id, name, members, message_ids, created_at FROM chat_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err != nil {
		return models.Group{}, notFound(err, "group", id)
	}
	return g, nil
}

func (t *sqliteTx) PutGroup(group models.Group) error {
	g := newDBGroup(group)
	members, err := encodeList(g.Members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}
	messageIDs, err := encodeList(g.MessageIDs)
	if err != nil {
		return fmt.Errorf("encode message ids: %w", err)
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO chat_groups (id, name, members, message_ids, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			members = excluded.members,
			message_ids = excluded.message_ids
	`, g.ID, g.Name, members, messageIDs, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeleteGroup(id string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM chat_groups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListGroups() ([]models.Group, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT id, name, members, message_ids, created_at FROM chat_groups ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ==== messages ====

func scanMessage(row rowScanner) (models.Message, error) {
	var m DBMessage
	var likes []byte
	if err := row.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.Text, &likes, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return models.Message{}, err
	}
	var err error
	if m.Likes, err = decodeList(likes); err != nil {
		return models.Message{}, fmt.Errorf("decode likes of message %s: %w", m.ID, err)
	}
	return m.model(), nil
}

const messageColumns = `id, group_id, sender_id, text, likes, created_at, updated_at`

func (t *sqliteTx) GetMessage(id string) (models.Message, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err != nil {
		return models.Message{}, notFound(err, "message", id)
	}
	return m, nil
}

func (t *sqliteTx) PutMessage(message models.Message) error {
	if message.GroupID == "" {
		return fmt.Errorf("message %s missing group id", message.ID)
	}
	m := newDBMessage(message)
	likes, err := encodeList(m.Likes)
	if err != nil {
		return fmt.Errorf("encode likes: %w", err)
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			likes = excluded.likes,
			updated_at = excluded.updated_at
	`, m.ID, m.GroupID, m.SenderID, m.Text, likes, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeleteMessage(id string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListMessagesByGroup(groupID string) ([]models.Message, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+messageColumns+` FROM messages WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
