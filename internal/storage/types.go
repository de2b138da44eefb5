package storage

import (
	"encoding"
	"time"

	"grouptalk/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBUser struct {
	ID        string `msgpack:"id"`
	UserName  string `msgpack:"userName"`
	CreatedAt int64  `msgpack:"createdAt"` // Unix nanoseconds
}

func (u *DBUser) Key() []byte {
	return []byte(u.ID)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

func newDBUser(u models.User) *DBUser {
	return &DBUser{ID: u.ID, UserName: u.UserName, CreatedAt: u.CreatedAt.UnixNano()}
}

func (u *DBUser) model() models.User {
	return models.User{ID: u.ID, UserName: u.UserName, CreatedAt: time.Unix(0, u.CreatedAt).UTC()}
}

type DBGroup struct {
	ID         string   `msgpack:"id"`
	Name       string   `msgpack:"name"`
	Members    []string `msgpack:"members"`
	MessageIDs []string `msgpack:"messageIds"`
	CreatedAt  int64    `msgpack:"createdAt"`
}

func (g *DBGroup) Key() []byte {
	return []byte(g.ID)
}

func (g *DBGroup) MarshalBinary() (data []byte, err error) {
	type alias DBGroup
	return msgpack.Marshal((*alias)(g))
}

func (g *DBGroup) UnmarshalBinary(data []byte) error {
	type alias DBGroup
	return msgpack.Unmarshal(data, (*alias)(g))
}

func newDBGroup(g models.Group) *DBGroup {
	return &DBGroup{
		ID:         g.ID,
		Name:       g.Name,
		Members:    g.Members,
		MessageIDs: g.MessageIDs,
		CreatedAt:  g.CreatedAt.UnixNano(),
	}
}

func (g *DBGroup) model() models.Group {
	return models.Group{
		ID:         g.ID,
		Name:       g.Name,
		Members:    nonNil(g.Members),
		MessageIDs: nonNil(g.MessageIDs),
		CreatedAt:  time.Unix(0, g.CreatedAt).UTC(),
	}
}

type DBMessage struct {
	ID        string   `msgpack:"id"`
	GroupID   string   `msgpack:"groupId"`
	SenderID  string   `msgpack:"senderId"`
	Text      string   `msgpack:"text"`
	Likes     []string `msgpack:"likes"`
	CreatedAt int64    `msgpack:"createdAt"` // Unix nanoseconds
	UpdatedAt int64    `msgpack:"updatedAt"`
}

func (m *DBMessage) Key() []byte {
	return []byte(m.ID)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

func newDBMessage(m models.Message) *DBMessage {
	return &DBMessage{
		ID:        m.ID,
		GroupID:   m.GroupID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Likes:     m.Likes,
		CreatedAt: m.CreatedAt.UnixNano(),
		UpdatedAt: m.UpdatedAt.UnixNano(),
	}
}

func (m *DBMessage) model() models.Message {
	return models.Message{
		ID:        m.ID,
		GroupID:   m.GroupID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Likes:     nonNil(m.Likes),
		CreatedAt: time.Unix(0, m.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, m.UpdatedAt).UTC(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
