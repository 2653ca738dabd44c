package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Ranaran315/campus-backend-sub000/internal/db"
	"github.com/Ranaran315/campus-backend-sub000/internal/models"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotMessageSender = errors.New("only the sender can delete a message")
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// MessageRepository defines interactions with the message store.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, id primitive.ObjectID) (models.Message, error)
	History(ctx context.Context, conversationID primitive.ObjectID, limit int64, before *time.Time) ([]models.Message, error)
	MarkRead(ctx context.Context, userID string, conversationID primitive.ObjectID) error
	SoftDelete(ctx context.Context, id primitive.ObjectID, requesterID string) error
	DeleteByConversation(ctx context.Context, conversationID primitive.ObjectID) (int64, error)
}

// MessageRepo is a mongo-backed MessageRepository.
type MessageRepo struct {
	db     *mongo.Database
	logger *zap.Logger
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(database *mongo.Database, logger *zap.Logger) *MessageRepo {
	return &MessageRepo{db: database, logger: logger}
}

func (r *MessageRepo) messages() *mongo.Collection {
	return r.db.Collection(db.CollMessages)
}

// Create persists a message. The sender is always in read_by from creation.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if len(msg.ReadBy) == 0 {
		msg.ReadBy = []string{msg.SenderID}
	}
	res, err := r.messages().InsertOne(ctx, msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	msg.ID = res.InsertedID.(primitive.ObjectID)

	r.logger.Debug("message stored",
		zap.String("message_id", msg.ID.Hex()),
		zap.String("conversation_id", msg.ConversationID.Hex()),
		zap.String("sender_id", msg.SenderID),
	)
	return msg, nil
}

// GetMessage fetches a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, id primitive.ObjectID) (models.Message, error) {
	var msg models.Message
	err := r.messages().FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// History returns non-deleted messages in descending creation order, bounded
// by an optional cursor timestamp. Cursor pagination stays correct under
// concurrent inserts where offset pagination would not.
func (r *MessageRepo) History(ctx context.Context, conversationID primitive.ObjectID, limit int64, before *time.Time) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	filter := bson.M{"conversation_id": conversationID, "is_deleted": false}
	if before != nil {
		filter["created_at"] = bson.M{"$lt": *before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := r.messages().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	var msgs []models.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return msgs, nil
}

// MarkRead adds the user to read_by on every message of the conversation not
// already read by them. $addToSet keeps the set monotonic; the operation is
// not atomic across messages, and the caller's counter reset is the
// idempotent recovery point.
func (r *MessageRepo) MarkRead(ctx context.Context, userID string, conversationID primitive.ObjectID) error {
	res, err := r.messages().UpdateMany(ctx,
		bson.M{
			"conversation_id": conversationID,
			"is_deleted":      false,
			"read_by":         bson.M{"$ne": userID},
		},
		bson.M{"$addToSet": bson.M{"read_by": userID}},
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if res.ModifiedCount > 0 {
		r.logger.Debug("messages marked read",
			zap.String("conversation_id", conversationID.Hex()),
			zap.String("user_id", userID),
			zap.Int64("count", res.ModifiedCount),
		)
	}
	return nil
}

// SoftDelete marks a message deleted when the requester is its sender.
func (r *MessageRepo) SoftDelete(ctx context.Context, id primitive.ObjectID, requesterID string) error {
	res, err := r.messages().UpdateOne(ctx,
		bson.M{"_id": id, "sender_id": requesterID, "is_deleted": false},
		bson.M{"$set": bson.M{"is_deleted": true}},
	)
	if err != nil {
		return fmt.Errorf("soft delete message: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Distinguish a missing message from a wrong requester.
	if _, err := r.GetMessage(ctx, id); err != nil {
		return err
	}
	return ErrNotMessageSender
}

// DeleteByConversation hard-deletes every message of the conversation; only
// the group-disband cascade calls this.
func (r *MessageRepo) DeleteByConversation(ctx context.Context, conversationID primitive.ObjectID) (int64, error) {
	res, err := r.messages().DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	if err != nil {
		return 0, fmt.Errorf("delete conversation messages: %w", err)
	}
	return res.DeletedCount, nil
}
