package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrivatePairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PrivatePairKey("alice", "bob"), PrivatePairKey("bob", "alice"))
	assert.Equal(t, "alice:bob", PrivatePairKey("bob", "alice"))
}

func TestOtherParticipant(t *testing.T) {
	conv := Conversation{Type: ConversationTypePrivate, Participants: []string{"u1", "u2"}}
	assert.Equal(t, "u2", conv.OtherParticipant("u1"))
	assert.Equal(t, "u1", conv.OtherParticipant("u2"))
}

func TestHasParticipant(t *testing.T) {
	conv := Conversation{Participants: []string{"u1", "u2"}}
	assert.True(t, conv.HasParticipant("u1"))
	assert.False(t, conv.HasParticipant("u3"))
}
