package models

import (
	"time"

	"github.com/samber/lo"
)

// User is an identity known to the chat core. It is referenced by ID only.
type User struct {
	ID        string    `json:"id"`
	UserName  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Group is a named set of members with an append-only message sequence.
type Group struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Members    []string  `json:"members"`
	MessageIDs []string  `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HasMember reports whether userID is in the member set.
func (g Group) HasMember(userID string) bool {
	return lo.Contains(g.Members, userID)
}

// Message is a single chat message in a group.
type Message struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	Likes     []string  `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LikedBy reports whether userID is in the liker set.
func (m Message) LikedBy(userID string) bool {
	return lo.Contains(m.Likes, userID)
}

// MessageView is a Message as returned to clients, with the sender resolved.
type MessageView struct {
	Message
	Sender string `json:"sender"`
	HTML   string `json:"html,omitempty"`
}

// Member is the public projection of a group member.
type Member struct {
	ID       string `json:"id"`
	UserName string `json:"username"`
}

// ClientMessage represents a frame sent from the client over the websocket.
type ClientMessage struct {
	Type      ClientMessageType `json:"type"`
	GroupID   string            `json:"groupId,omitempty"`
	MessageID string            `json:"messageId,omitempty"`
	Text      string            `json:"text,omitempty"`
}

// ServerMessage represents a frame pushed to the client.
type ServerMessage struct {
	Type    ServerMessageType `json:"type"`
	Message *MessageView      `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type ClientMessageType string

const (
	ClientMessageTypeSend ClientMessageType = "send"
	ClientMessageTypeLike ClientMessageType = "like"
)

type ServerMessageType string

const (
	ServerMessageTypeMessage ServerMessageType = "message"
	ServerMessageTypeLike    ServerMessageType = "like"
	ServerMessageTypeError   ServerMessageType = "error"
)
