package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Ranaran315/campus-backend-sub000/internal/db"
	"github.com/Ranaran315/campus-backend-sub000/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrGroupFull     = errors.New("group is at capacity")
	ErrAlreadyMember = errors.New("user is already a member")
	ErrNotMember     = errors.New("user is not a member")
	ErrOwnerImmune   = errors.New("the owner cannot be removed")
)

// GroupRepository abstracts group persistence. Membership mutations are
// conditional updates re-validated at write time, so a capacity check on
// stale data can never produce an over-capacity group.
type GroupRepository interface {
	CreateGroup(ctx context.Context, ownerID, name, description string, maxMembers int, isPublic bool) (models.Group, error)
	GetGroup(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error)
	AddMember(ctx context.Context, id primitive.ObjectID, userID string) error
	RemoveMember(ctx context.Context, id primitive.ObjectID, userID string) error
	SetAdmin(ctx context.Context, id primitive.ObjectID, userID string, isAdmin bool) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, name, description, avatar *string) error
	Disband(ctx context.Context, id primitive.ObjectID) error
}

// GroupRepo is a mongo-backed GroupRepository.
type GroupRepo struct {
	db     *mongo.Database
	logger *zap.Logger
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(database *mongo.Database, logger *zap.Logger) *GroupRepo {
	return &GroupRepo{db: database, logger: logger}
}

func (r *GroupRepo) groups() *mongo.Collection {
	return r.db.Collection(db.CollGroups)
}

// CreateGroup creates a group with the creator as sole member, owner and
// admin.
func (r *GroupRepo) CreateGroup(ctx context.Context, ownerID, name, description string, maxMembers int, isPublic bool) (models.Group, error) {
	if maxMembers <= 0 {
		maxMembers = models.DefaultMaxMembers
	}
	now := time.Now().UTC()
	group := models.Group{
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		Members:     []string{ownerID},
		Admins:      []string{ownerID},
		MaxMembers:  maxMembers,
		IsPublic:    isPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := r.groups().InsertOne(ctx, group)
	if err != nil {
		return models.Group{}, fmt.Errorf("insert group: %w", err)
	}
	group.ID = res.InsertedID.(primitive.ObjectID)

	r.logger.Info("group created",
		zap.String("group_id", group.ID.Hex()),
		zap.String("owner_id", ownerID),
	)
	return group, nil
}

// GetGroup fetches a non-disbanded group.
func (r *GroupRepo) GetGroup(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var group models.Group
	err := r.groups().FindOne(ctx, bson.M{"_id": id, "is_deleted": false}).Decode(&group)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// ListGroupsForUser returns the non-disbanded groups the user belongs to.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	cursor, err := r.groups().Find(ctx, bson.M{"members": userID, "is_deleted": false})
	if err != nil {
		return nil, fmt.Errorf("find groups: %w", err)
	}
	var groups []models.Group
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	return groups, nil
}

// AddMember pushes the user into the member set only when they are absent and
// the group is under capacity, as one conditional update. Two concurrent adds
// at capacity-1 serialize at the store: exactly one matches.
func (r *GroupRepo) AddMember(ctx context.Context, id primitive.ObjectID, userID string) error {
	filter := bson.M{
		"_id":        id,
		"is_deleted": false,
		"members":    bson.M{"$ne": userID},
		"$expr":      bson.M{"$lt": bson.A{bson.M{"$size": "$members"}, "$max_members"}},
	}
	res, err := r.groups().UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"members": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	group, err := r.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if group.IsMember(userID) {
		return ErrAlreadyMember
	}
	return ErrGroupFull
}

// RemoveMember pulls the user from members and admins. The owner never
// matches the filter, so they can never be removed.
func (r *GroupRepo) RemoveMember(ctx context.Context, id primitive.ObjectID, userID string) error {
	filter := bson.M{
		"_id":        id,
		"is_deleted": false,
		"owner_id":   bson.M{"$ne": userID},
		"members":    userID,
	}
	res, err := r.groups().UpdateOne(ctx, filter, bson.M{
		"$pull": bson.M{"members": userID, "admins": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	group, err := r.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if group.OwnerID == userID {
		return ErrOwnerImmune
	}
	return ErrNotMember
}

// SetAdmin grants or revokes admin on an existing member; idempotent.
func (r *GroupRepo) SetAdmin(ctx context.Context, id primitive.ObjectID, userID string, isAdmin bool) error {
	filter := bson.M{"_id": id, "is_deleted": false, "members": userID}
	var update bson.M
	if isAdmin {
		update = bson.M{"$addToSet": bson.M{"admins": userID}}
	} else {
		update = bson.M{"$pull": bson.M{"admins": userID}}
	}
	res, err := r.groups().UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	if _, err := r.GetGroup(ctx, id); err != nil {
		return err
	}
	return ErrNotMember
}

// UpdateProfile applies the provided profile fields; nil fields are left
// untouched.
func (r *GroupRepo) UpdateProfile(ctx context.Context, id primitive.ObjectID, name, description, avatar *string) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if name != nil {
		set["name"] = *name
	}
	if description != nil {
		set["description"] = *description
	}
	if avatar != nil {
		set["avatar"] = *avatar
	}
	res, err := r.groups().UpdateOne(ctx, bson.M{"_id": id, "is_deleted": false}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update group profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// Disband marks the group deleted; the terminal state. The caller cascades
// the conversation, messages and settings keyed by the conversation id.
func (r *GroupRepo) Disband(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.groups().UpdateOne(ctx,
		bson.M{"_id": id, "is_deleted": false},
		bson.M{"$set": bson.M{"is_deleted": true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("disband group: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrGroupNotFound
	}
	r.logger.Info("group disbanded", zap.String("group_id", id.Hex()))
	return nil
}
