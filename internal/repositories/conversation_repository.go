package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Ranaran315/campus-backend-sub000/internal/db"
	"github.com/Ranaran315/campus-backend-sub000/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation and per-user setting
// persistence. Every setting operation is an upsert: missing rows are never
// an error.
type ConversationRepository interface {
	GetOrCreatePrivate(ctx context.Context, userA, userB string) (models.Conversation, error)
	GetOrCreateGroupConversation(ctx context.Context, groupID primitive.ObjectID) (models.Conversation, error)
	GetGroupConversation(ctx context.Context, groupID primitive.ObjectID) (models.Conversation, error)
	GetConversation(ctx context.Context, id primitive.ObjectID) (models.Conversation, error)
	UpdateActivity(ctx context.Context, id, lastMessageID primitive.ObjectID) error
	ListForUser(ctx context.Context, userID string) ([]models.ConversationEntry, error)
	AddParticipant(ctx context.Context, id primitive.ObjectID, userID string) error
	RemoveParticipant(ctx context.Context, id primitive.ObjectID, userID string) error
	EnsureVisible(ctx context.Context, id primitive.ObjectID, userIDs []string) error
	SetPinned(ctx context.Context, userID string, id primitive.ObjectID, pinned bool) error
	SetVisible(ctx context.Context, userID string, id primitive.ObjectID, visible bool) error
	SetMuted(ctx context.Context, userID string, id primitive.ObjectID, muted bool) error
	SetNickname(ctx context.Context, userID string, id primitive.ObjectID, nickname string) error
	IncrementUnread(ctx context.Context, id primitive.ObjectID, exceptUserID string) error
	ResetUnread(ctx context.Context, userID string, id primitive.ObjectID) error
	UnreadTotal(ctx context.Context, userID string) (int64, error)
	DeleteSetting(ctx context.Context, userID string, id primitive.ObjectID) error
	DeleteSettings(ctx context.Context, id primitive.ObjectID) error
	DeleteConversation(ctx context.Context, id primitive.ObjectID) error
}

// ConversationRepo is a mongo-backed ConversationRepository.
type ConversationRepo struct {
	db     *mongo.Database
	logger *zap.Logger
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(database *mongo.Database, logger *zap.Logger) *ConversationRepo {
	return &ConversationRepo{db: database, logger: logger}
}

func (r *ConversationRepo) conversations() *mongo.Collection {
	return r.db.Collection(db.CollConversations)
}

func (r *ConversationRepo) settings() *mongo.Collection {
	return r.db.Collection(db.CollSettings)
}

// GetOrCreatePrivate returns the non-deleted private conversation between the
// pair, creating it if absent. A duplicate-creation race is resolved by
// re-reading the winner, not by erroring the loser.
func (r *ConversationRepo) GetOrCreatePrivate(ctx context.Context, userA, userB string) (models.Conversation, error) {
	pairKey := models.PrivatePairKey(userA, userB)
	filter := bson.M{
		"type":       models.ConversationTypePrivate,
		"pair_key":   pairKey,
		"is_deleted": false,
	}

	var conv models.Conversation
	err := r.conversations().FindOne(ctx, filter).Decode(&conv)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Conversation{}, fmt.Errorf("find private conversation: %w", err)
	}

	now := time.Now().UTC()
	conv = models.Conversation{
		Type:           models.ConversationTypePrivate,
		Participants:   []string{userA, userB},
		PairKey:        pairKey,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	res, err := r.conversations().InsertOne(ctx, conv)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the race; the unique pair_key index picked a winner.
			if err := r.conversations().FindOne(ctx, filter).Decode(&conv); err != nil {
				return models.Conversation{}, fmt.Errorf("re-read private conversation: %w", err)
			}
			return conv, nil
		}
		return models.Conversation{}, fmt.Errorf("insert private conversation: %w", err)
	}
	conv.ID = res.InsertedID.(primitive.ObjectID)

	if err := r.EnsureVisible(ctx, conv.ID, conv.Participants); err != nil {
		r.logger.Warn("failed to seed settings for new private conversation",
			zap.String("conversation_id", conv.ID.Hex()),
			zap.Error(err),
		)
	}
	return conv, nil
}

// GetOrCreateGroupConversation returns the single conversation tied to the
// group, creating it with empty participants if absent. Participants are
// populated by group membership operations.
func (r *ConversationRepo) GetOrCreateGroupConversation(ctx context.Context, groupID primitive.ObjectID) (models.Conversation, error) {
	filter := bson.M{
		"type":       models.ConversationTypeGroup,
		"group_id":   groupID,
		"is_deleted": false,
	}

	var conv models.Conversation
	err := r.conversations().FindOne(ctx, filter).Decode(&conv)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Conversation{}, fmt.Errorf("find group conversation: %w", err)
	}

	now := time.Now().UTC()
	conv = models.Conversation{
		Type:           models.ConversationTypeGroup,
		Participants:   []string{},
		GroupID:        &groupID,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	res, err := r.conversations().InsertOne(ctx, conv)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if err := r.conversations().FindOne(ctx, filter).Decode(&conv); err != nil {
				return models.Conversation{}, fmt.Errorf("re-read group conversation: %w", err)
			}
			return conv, nil
		}
		return models.Conversation{}, fmt.Errorf("insert group conversation: %w", err)
	}
	conv.ID = res.InsertedID.(primitive.ObjectID)
	return conv, nil
}

// GetGroupConversation fetches the group's conversation without creating one.
func (r *ConversationRepo) GetGroupConversation(ctx context.Context, groupID primitive.ObjectID) (models.Conversation, error) {
	var conv models.Conversation
	err := r.conversations().FindOne(ctx, bson.M{
		"type":     models.ConversationTypeGroup,
		"group_id": groupID,
	}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, id primitive.ObjectID) (models.Conversation, error) {
	var conv models.Conversation
	err := r.conversations().FindOne(ctx, bson.M{"_id": id, "is_deleted": false}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// UpdateActivity bumps last_activity_at and the last-message reference; called
// once per successful message send.
func (r *ConversationRepo) UpdateActivity(ctx context.Context, id, lastMessageID primitive.ObjectID) error {
	_, err := r.conversations().UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"last_message_id":  lastMessageID,
		"last_activity_at": time.Now().UTC(),
	}})
	return err
}

// ListForUser returns the user's visible conversations annotated with their
// setting, pinned first then descending activity. Display profiles are
// resolved by the caller.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]models.ConversationEntry, error) {
	cursor, err := r.settings().Find(ctx, bson.M{"user_id": userID, "is_visible": true})
	if err != nil {
		return nil, fmt.Errorf("find settings: %w", err)
	}
	var settings []models.ConversationSetting
	if err := cursor.All(ctx, &settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if len(settings) == 0 {
		return []models.ConversationEntry{}, nil
	}

	byConv := make(map[primitive.ObjectID]models.ConversationSetting, len(settings))
	ids := make([]primitive.ObjectID, 0, len(settings))
	for _, s := range settings {
		byConv[s.ConversationID] = s
		ids = append(ids, s.ConversationID)
	}

	convCursor, err := r.conversations().Find(ctx, bson.M{
		"_id":          bson.M{"$in": ids},
		"participants": userID,
		"is_deleted":   false,
	})
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	var convs []models.Conversation
	if err := convCursor.All(ctx, &convs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}

	entries := make([]models.ConversationEntry, 0, len(convs))
	for _, conv := range convs {
		entries = append(entries, models.ConversationEntry{
			Conversation: conv,
			Setting:      byConv[conv.ID],
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Setting.IsPinned != entries[j].Setting.IsPinned {
			return entries[i].Setting.IsPinned
		}
		return entries[i].Conversation.LastActivityAt.After(entries[j].Conversation.LastActivityAt)
	})
	return entries, nil
}

// AddParticipant adds the user to the participant set (idempotent).
func (r *ConversationRepo) AddParticipant(ctx context.Context, id primitive.ObjectID, userID string) error {
	_, err := r.conversations().UpdateByID(ctx, id, bson.M{"$addToSet": bson.M{"participants": userID}})
	return err
}

// RemoveParticipant removes the user from the participant set.
func (r *ConversationRepo) RemoveParticipant(ctx context.Context, id primitive.ObjectID, userID string) error {
	_, err := r.conversations().UpdateByID(ctx, id, bson.M{"$pull": bson.M{"participants": userID}})
	return err
}

// EnsureVisible upserts a visible setting row for each user, undoing a prior
// hide without touching pin/mute/unread state on existing rows.
func (r *ConversationRepo) EnsureVisible(ctx context.Context, id primitive.ObjectID, userIDs []string) error {
	for _, userID := range userIDs {
		if err := r.upsertSetting(ctx, userID, id, bson.M{"is_visible": true}); err != nil {
			return err
		}
	}
	return nil
}

func (r *ConversationRepo) upsertSetting(ctx context.Context, userID string, id primitive.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now().UTC()
	_, err := r.settings().UpdateOne(ctx,
		bson.M{"user_id": userID, "conversation_id": id},
		bson.M{
			"$set": set,
			"$setOnInsert": bson.M{
				"is_pinned":    false,
				"is_muted":     false,
				"unread_count": int64(0),
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// SetPinned flips the pin flag for the user's view of the conversation.
func (r *ConversationRepo) SetPinned(ctx context.Context, userID string, id primitive.ObjectID, pinned bool) error {
	return r.upsertSetting(ctx, userID, id, bson.M{"is_pinned": pinned})
}

// SetVisible hides or restores the conversation for the user.
func (r *ConversationRepo) SetVisible(ctx context.Context, userID string, id primitive.ObjectID, visible bool) error {
	return r.upsertSetting(ctx, userID, id, bson.M{"is_visible": visible})
}

// SetMuted flips the mute flag for the user's view of the conversation.
func (r *ConversationRepo) SetMuted(ctx context.Context, userID string, id primitive.ObjectID, muted bool) error {
	return r.upsertSetting(ctx, userID, id, bson.M{"is_muted": muted})
}

// SetNickname sets the user's custom name for the conversation.
func (r *ConversationRepo) SetNickname(ctx context.Context, userID string, id primitive.ObjectID, nickname string) error {
	return r.upsertSetting(ctx, userID, id, bson.M{"nickname": nickname})
}

// IncrementUnread atomically bumps the unread counter for every participant
// setting except the sender's. A $inc at the store level avoids lost updates
// under concurrent sends to the same conversation.
func (r *ConversationRepo) IncrementUnread(ctx context.Context, id primitive.ObjectID, exceptUserID string) error {
	_, err := r.settings().UpdateMany(ctx,
		bson.M{"conversation_id": id, "user_id": bson.M{"$ne": exceptUserID}},
		bson.M{"$inc": bson.M{"unread_count": 1}},
	)
	return err
}

// ResetUnread zeroes the user's unread counter; idempotent to re-run.
func (r *ConversationRepo) ResetUnread(ctx context.Context, userID string, id primitive.ObjectID) error {
	return r.upsertSetting(ctx, userID, id, bson.M{"unread_count": int64(0)})
}

// UnreadTotal sums unread counts across the user's visible settings rows.
// An O(conversations) scan; the per-user set is small.
func (r *ConversationRepo) UnreadTotal(ctx context.Context, userID string) (int64, error) {
	cursor, err := r.settings().Find(ctx, bson.M{"user_id": userID, "is_visible": true})
	if err != nil {
		return 0, fmt.Errorf("find settings: %w", err)
	}
	var settings []models.ConversationSetting
	if err := cursor.All(ctx, &settings); err != nil {
		return 0, fmt.Errorf("decode settings: %w", err)
	}
	var total int64
	for _, s := range settings {
		total += s.UnreadCount
	}
	return total, nil
}

// DeleteSetting hard-deletes one user's setting row (member removal, unlike a
// hide).
func (r *ConversationRepo) DeleteSetting(ctx context.Context, userID string, id primitive.ObjectID) error {
	_, err := r.settings().DeleteOne(ctx, bson.M{"user_id": userID, "conversation_id": id})
	return err
}

// DeleteSettings hard-deletes every setting row of the conversation (disband
// cascade).
func (r *ConversationRepo) DeleteSettings(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.settings().DeleteMany(ctx, bson.M{"conversation_id": id})
	return err
}

// DeleteConversation hard-deletes the conversation document (disband cascade).
func (r *ConversationRepo) DeleteConversation(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.conversations().DeleteOne(ctx, bson.M{"_id": id})
	return err
}
