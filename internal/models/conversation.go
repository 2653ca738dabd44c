package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ConversationTypePrivate = "private"
	ConversationTypeGroup   = "group"
)

// Conversation is a durable thread binding either two users (private) or one
// group to its message history.
type Conversation struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Type           string              `bson:"type" json:"type"`
	Participants   []string            `bson:"participants" json:"participants"`
	PairKey        string              `bson:"pair_key,omitempty" json:"-"`
	GroupID        *primitive.ObjectID `bson:"group_id,omitempty" json:"group_id,omitempty"`
	LastMessageID  *primitive.ObjectID `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	LastActivityAt time.Time           `bson:"last_activity_at" json:"last_activity_at"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
	IsDeleted      bool                `bson:"is_deleted" json:"-"`
}

// PrivatePairKey builds the canonical key for a private conversation so that
// (a,b) and (b,a) resolve to the same document. A partial unique index on the
// key is what makes concurrent get-or-create converge on one winner.
func PrivatePairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// OtherParticipant returns the peer in a private conversation.
func (c Conversation) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// HasParticipant reports whether the user belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ConversationSetting is one user's private view-state of a conversation.
// There is exactly one row per (user, conversation); rows are upserted.
type ConversationSetting struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"-"`
	UserID            string              `bson:"user_id" json:"user_id"`
	ConversationID    primitive.ObjectID  `bson:"conversation_id" json:"conversation_id"`
	IsPinned          bool                `bson:"is_pinned" json:"is_pinned"`
	IsVisible         bool                `bson:"is_visible" json:"is_visible"`
	IsMuted           bool                `bson:"is_muted" json:"is_muted"`
	UnreadCount       int64               `bson:"unread_count" json:"unread_count"`
	LastReadMessageID *primitive.ObjectID `bson:"last_read_message_id,omitempty" json:"last_read_message_id,omitempty"`
	Nickname          string              `bson:"nickname,omitempty" json:"nickname,omitempty"`
	UpdatedAt         time.Time           `bson:"updated_at" json:"-"`
}

// ConversationEntry is a conversation annotated with the requesting user's
// setting and a resolved display profile, as returned by the listing endpoint.
type ConversationEntry struct {
	Conversation  Conversation        `json:"conversation"`
	Setting       ConversationSetting `json:"setting"`
	DisplayName   string              `json:"display_name,omitempty"`
	DisplayAvatar string              `json:"display_avatar,omitempty"`
}
