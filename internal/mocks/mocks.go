package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Ranaran315/campus-backend-sub000/internal/models"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetOrCreatePrivate(ctx context.Context, userA, userB string) (models.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetOrCreateGroupConversation(ctx context.Context, groupID primitive.ObjectID) (models.Conversation, error) {
	args := m.Called(ctx, groupID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetGroupConversation(ctx context.Context, groupID primitive.ObjectID) (models.Conversation, error) {
	args := m.Called(ctx, groupID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, id primitive.ObjectID) (models.Conversation, error) {
	args := m.Called(ctx, id)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) UpdateActivity(ctx context.Context, id, lastMessageID primitive.ObjectID) error {
	args := m.Called(ctx, id, lastMessageID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.ConversationEntry, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationEntry
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationEntry)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) AddParticipant(ctx context.Context, id primitive.ObjectID, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) RemoveParticipant(ctx context.Context, id primitive.ObjectID, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) EnsureVisible(ctx context.Context, id primitive.ObjectID, userIDs []string) error {
	args := m.Called(ctx, id, userIDs)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) SetPinned(ctx context.Context, userID string, id primitive.ObjectID, pinned bool) error {
	args := m.Called(ctx, userID, id, pinned)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) SetVisible(ctx context.Context, userID string, id primitive.ObjectID, visible bool) error {
	args := m.Called(ctx, userID, id, visible)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) SetMuted(ctx context.Context, userID string, id primitive.ObjectID, muted bool) error {
	args := m.Called(ctx, userID, id, muted)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) SetNickname(ctx context.Context, userID string, id primitive.ObjectID, nickname string) error {
	args := m.Called(ctx, userID, id, nickname)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) IncrementUnread(ctx context.Context, id primitive.ObjectID, exceptUserID string) error {
	args := m.Called(ctx, id, exceptUserID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ResetUnread(ctx context.Context, userID string, id primitive.ObjectID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) UnreadTotal(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ConversationRepositoryMock) DeleteSetting(ctx context.Context, userID string, id primitive.ObjectID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) DeleteSettings(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) DeleteConversation(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, id primitive.ObjectID) (models.Message, error) {
	args := m.Called(ctx, id)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) History(ctx context.Context, conversationID primitive.ObjectID, limit int64, before *time.Time) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit, before)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, userID string, conversationID primitive.ObjectID) error {
	args := m.Called(ctx, userID, conversationID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, id primitive.ObjectID, requesterID string) error {
	args := m.Called(ctx, id, requesterID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) DeleteByConversation(ctx context.Context, conversationID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, ownerID, name, description string, maxMembers int, isPublic bool) (models.Group, error) {
	args := m.Called(ctx, ownerID, name, description, maxMembers, isPublic)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	args := m.Called(ctx, id)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var list []models.Group
	if val := args.Get(0); val != nil {
		list = val.([]models.Group)
	}
	return list, args.Error(1)
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, id primitive.ObjectID, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, id primitive.ObjectID, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) SetAdmin(ctx context.Context, id primitive.ObjectID, userID string, isAdmin bool) error {
	args := m.Called(ctx, id, userID, isAdmin)
	return args.Error(0)
}

func (m *GroupRepositoryMock) UpdateProfile(ctx context.Context, id primitive.ObjectID, name, description, avatar *string) error {
	args := m.Called(ctx, id, name, description, avatar)
	return args.Error(0)
}

func (m *GroupRepositoryMock) Disband(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type FriendDirectoryMock struct {
	mock.Mock
}

func (m *FriendDirectoryMock) Remark(ctx context.Context, userID, otherID string) (string, error) {
	args := m.Called(ctx, userID, otherID)
	return args.String(0), args.Error(1)
}
