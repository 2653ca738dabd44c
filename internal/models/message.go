package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeAudio  = "audio"
	MessageTypeVideo  = "video"
	MessageTypeSystem = "system"
)

// Attachment carries metadata for a file already stored by the upload
// service; the URL is input, not something this service produces.
type Attachment struct {
	FileName string `bson:"file_name" json:"file_name"`
	URL      string `bson:"url" json:"url"`
	MimeType string `bson:"mime_type" json:"mime_type"`
	Size     int64  `bson:"size" json:"size"`
}

// Message is a chat message. ConversationID is the authoritative routing key;
// ReceiverID/GroupID are denormalized for direct lookup. ReadBy only grows.
type Message struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID  `bson:"conversation_id" json:"conversation_id"`
	SenderID       string              `bson:"sender_id" json:"sender_id"`
	ReceiverID     string              `bson:"receiver_id,omitempty" json:"receiver_id,omitempty"`
	GroupID        *primitive.ObjectID `bson:"group_id,omitempty" json:"group_id,omitempty"`
	Type           string              `bson:"type" json:"type"`
	Content        string              `bson:"content" json:"content"`
	Attachments    []Attachment        `bson:"attachments,omitempty" json:"attachments,omitempty"`
	ReadBy         []string            `bson:"read_by" json:"read_by"`
	IsDeleted      bool                `bson:"is_deleted" json:"-"`
	Metadata       bson.M              `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
}
