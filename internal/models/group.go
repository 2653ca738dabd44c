package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultMaxMembers bounds group size when the creator does not specify one.
const DefaultMaxMembers = 200

// Group is a chat group. The owner is always a member and can never be
// removed; admins are a subset of members.
type Group struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Avatar      string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	OwnerID     string             `bson:"owner_id" json:"owner_id"`
	Members     []string           `bson:"members" json:"members"`
	Admins      []string           `bson:"admins" json:"admins"`
	MaxMembers  int                `bson:"max_members" json:"max_members"`
	IsPublic    bool               `bson:"is_public" json:"is_public"`
	IsDeleted   bool               `bson:"is_deleted" json:"-"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

func (g Group) IsMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

func (g Group) IsAdmin(userID string) bool {
	for _, a := range g.Admins {
		if a == userID {
			return true
		}
	}
	return false
}

// CanManage reports whether the user may run owner/admin operations
// (add member, remove member, edit profile).
func (g Group) CanManage(userID string) bool {
	return g.OwnerID == userID || g.IsAdmin(userID)
}
