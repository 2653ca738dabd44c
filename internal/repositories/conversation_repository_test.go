package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"

	"github.com/Ranaran315/campus-backend-sub000/internal/models"
)

func conversationDoc(id primitive.ObjectID, pairKey string, participants ...string) bson.D {
	members := bson.A{}
	for _, p := range participants {
		members = append(members, p)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "type", Value: models.ConversationTypePrivate},
		{Key: "participants", Value: members},
		{Key: "pair_key", Value: pairKey},
		{Key: "last_activity_at", Value: now},
		{Key: "created_at", Value: now},
		{Key: "is_deleted", Value: false},
	}
}

func TestGetOrCreatePrivateReturnsExisting(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("existing conversation short-circuits", func(mt *mtest.T) {
		repo := NewConversationRepo(mt.DB, zap.NewNop())
		ns := mt.DB.Name() + ".conversations"
		existingID := primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			conversationDoc(existingID, "u1:u2", "u1", "u2")))

		conv, err := repo.GetOrCreatePrivate(context.Background(), "u2", "u1")
		require.NoError(mt, err)
		assert.Equal(mt, existingID, conv.ID)
		assert.Equal(mt, "u1:u2", conv.PairKey)
	})
}

func TestGetOrCreatePrivateLostRaceReReadsWinner(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate key resolves to the winner", func(mt *mtest.T) {
		repo := NewConversationRepo(mt.DB, zap.NewNop())
		ns := mt.DB.Name() + ".conversations"
		winnerID := primitive.NewObjectID()

		mt.AddMockResponses(
			// First lookup misses, so the loser attempts an insert.
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			// The pair_key unique index rejects the insert.
			mtest.CreateWriteErrorsResponse(mtest.WriteError{
				Index:   0,
				Code:    11000,
				Message: "E11000 duplicate key error collection: conversations index: pair_key",
			}),
			// Re-read returns the concurrent winner.
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				conversationDoc(winnerID, "u1:u2", "u1", "u2")),
		)

		conv, err := repo.GetOrCreatePrivate(context.Background(), "u1", "u2")
		require.NoError(mt, err)
		assert.Equal(mt, winnerID, conv.ID)
		assert.ElementsMatch(mt, []string{"u1", "u2"}, conv.Participants)
	})
}

func TestGetOrCreatePrivateCreatesAndSeedsSettings(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert path seeds both settings rows", func(mt *mtest.T) {
		repo := NewConversationRepo(mt.DB, zap.NewNop())
		ns := mt.DB.Name() + ".conversations"

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
			// One settings upsert per participant.
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		conv, err := repo.GetOrCreatePrivate(context.Background(), "u2", "u1")
		require.NoError(mt, err)
		assert.False(mt, conv.ID.IsZero())
		assert.Equal(mt, "u1:u2", conv.PairKey)
		assert.Equal(mt, []string{"u2", "u1"}, conv.Participants)
	})
}
