package models

import (
	"encoding/json"
	"time"
)

// EventKind discriminates realtime payloads pushed over a session connection.
type EventKind string

const (
	EventConnected           EventKind = "connected"
	EventDirectMessage       EventKind = "message.direct"
	EventGroupMessage        EventKind = "message.group"
	EventFriendRequest       EventKind = "friend.request"
	EventFriendRequestUpdate EventKind = "friend.request.update"
	EventAnnouncement        EventKind = "announcement"
)

// EventPayload is the closed set of payloads the dispatcher can push. Each
// variant carries its own kind so the dispatcher's switch stays exhaustive.
type EventPayload interface {
	Kind() EventKind
}

// ConnectedPayload acknowledges a completed session handshake.
type ConnectedPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	ConnID      string `json:"conn_id"`
}

func (ConnectedPayload) Kind() EventKind { return EventConnected }

// DirectMessagePayload carries a new private message to its recipient.
type DirectMessagePayload struct {
	Message Message `json:"message"`
}

func (DirectMessagePayload) Kind() EventKind { return EventDirectMessage }

// GroupMessagePayload carries a new group message to the group's room.
type GroupMessagePayload struct {
	GroupID string  `json:"group_id"`
	Message Message `json:"message"`
}

func (GroupMessagePayload) Kind() EventKind { return EventGroupMessage }

// FriendRequestPayload notifies a user of a new incoming friend request.
type FriendRequestPayload struct {
	RequestID       string    `json:"request_id"`
	FromUserID      string    `json:"from_user_id"`
	FromDisplayName string    `json:"from_display_name"`
	Note            string    `json:"note,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (FriendRequestPayload) Kind() EventKind { return EventFriendRequest }

// FriendRequestUpdatePayload notifies the original sender of a status change.
type FriendRequestUpdatePayload struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	ByUserID  string `json:"by_user_id"`
}

func (FriendRequestUpdatePayload) Kind() EventKind { return EventFriendRequestUpdate }

// AnnouncementPayload is what the inform pipeline fans out to recipients.
type AnnouncementPayload struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Importance string    `json:"importance"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
}

func (AnnouncementPayload) Kind() EventKind { return EventAnnouncement }

type eventEnvelope struct {
	Type EventKind    `json:"type"`
	Data EventPayload `json:"data"`
}

// EncodeEvent wraps a payload in the wire envelope clients consume.
func EncodeEvent(p EventPayload) ([]byte, error) {
	return json.Marshal(eventEnvelope{Type: p.Kind(), Data: p})
}
