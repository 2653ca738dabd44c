package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Ranaran315/campus-backend-sub000/internal/mocks"
	"github.com/Ranaran315/campus-backend-sub000/internal/models"
	"github.com/Ranaran315/campus-backend-sub000/internal/repositories"
	"github.com/Ranaran315/campus-backend-sub000/internal/ws"
)

type stubConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *stubConn) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, data)
	return nil
}

func (s *stubConn) Close() error { return nil }

func (s *stubConn) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Next()
	})
	r.GET("/conversations", handler.ListConversations)
	r.POST("/conversations/private", handler.OpenPrivate)
	r.GET("/conversations/unread-total", handler.UnreadTotal)
	r.GET("/conversations/:conversation_id/messages", handler.GetMessages)
	r.PATCH("/conversations/:conversation_id/settings", handler.UpdateSetting)
	r.POST("/conversations/:conversation_id/read", handler.MarkRead)
	r.POST("/messages", handler.SendMessage)
	r.DELETE("/messages/:message_id", handler.DeleteMessage)
	return r
}

func privateConversation(id primitive.ObjectID) models.Conversation {
	return models.Conversation{
		ID:           id,
		Type:         models.ConversationTypePrivate,
		Participants: []string{"u1", "u2"},
	}
}

func TestListConversationsResolvesRemark(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	friends := new(mocks.FriendDirectoryMock)
	handler := NewChatHandler(convRepo, nil, nil, friends, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	entry := models.ConversationEntry{Conversation: privateConversation(primitive.NewObjectID())}
	convRepo.On("ListForUser", mock.Anything, "u1").Return([]models.ConversationEntry{entry}, nil).Once()
	friends.On("Remark", mock.Anything, "u1", "u2").Return("Bestie", nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.ConversationEntry `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, "Bestie", resp.Conversations[0].DisplayName)
	convRepo.AssertExpectations(t)
	friends.AssertExpectations(t)
}

func TestListConversationsNicknameWinsOverRemark(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	friends := new(mocks.FriendDirectoryMock)
	handler := NewChatHandler(convRepo, nil, nil, friends, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	entry := models.ConversationEntry{
		Conversation: privateConversation(primitive.NewObjectID()),
		Setting:      models.ConversationSetting{Nickname: "study buddy"},
	}
	convRepo.On("ListForUser", mock.Anything, "u1").Return([]models.ConversationEntry{entry}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.ConversationEntry `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "study buddy", resp.Conversations[0].DisplayName)
	friends.AssertNotCalled(t, "Remark", mock.Anything, mock.Anything, mock.Anything)
}

func TestListConversationsRepoError(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewChatHandler(convRepo, nil, nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convRepo.On("ListForUser", mock.Anything, "u1").Return(([]models.ConversationEntry)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOpenPrivateSelf(t *testing.T) {
	handler := NewChatHandler(new(mocks.ConversationRepositoryMock), nil, nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/conversations/private", bytes.NewBufferString(`{"user_id":"u1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenPrivateSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewChatHandler(convRepo, nil, nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convRepo.On("GetOrCreatePrivate", mock.Anything, "u1", "u2").Return(privateConversation(primitive.NewObjectID()), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/private", bytes.NewBufferString(`{"user_id":"u2"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestSendMessageDirectDelivers(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	receiver := &stubConn{}
	hub.Register(receiver, ws.ConnInfo{ConnID: "c1", UserID: "u2"})

	handler := NewChatHandler(convRepo, msgRepo, nil, nil, hub, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convID := primitive.NewObjectID()
	msgID := primitive.NewObjectID()
	conv := privateConversation(convID)
	stored := models.Message{ID: msgID, ConversationID: convID, SenderID: "u1", ReceiverID: "u2", Type: models.MessageTypeText, Content: "hi"}

	convRepo.On("GetOrCreatePrivate", mock.Anything, "u1", "u2").Return(conv, nil).Once()
	msgRepo.On("Create", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.SenderID == "u1" && m.ReceiverID == "u2" && m.Content == "hi"
	})).Return(stored, nil).Once()
	convRepo.On("UpdateActivity", mock.Anything, convID, msgID).Return(nil).Once()
	convRepo.On("EnsureVisible", mock.Anything, convID, []string{"u1", "u2"}).Return(nil).Once()
	convRepo.On("IncrementUnread", mock.Anything, convID, "u1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"receiver_id":"u2","content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, receiver.frameCount())
	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
}

func TestSendMessageSideEffectFailuresStillCreated(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(convRepo, msgRepo, nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convID := primitive.NewObjectID()
	conv := privateConversation(convID)
	stored := models.Message{ID: primitive.NewObjectID(), ConversationID: convID, SenderID: "u1", ReceiverID: "u2", Content: "hi"}

	convRepo.On("GetOrCreatePrivate", mock.Anything, "u1", "u2").Return(conv, nil).Once()
	msgRepo.On("Create", mock.Anything, mock.Anything).Return(stored, nil).Once()
	convRepo.On("UpdateActivity", mock.Anything, convID, stored.ID).Return(assert.AnError).Once()
	convRepo.On("EnsureVisible", mock.Anything, convID, []string{"u1", "u2"}).Return(assert.AnError).Once()
	convRepo.On("IncrementUnread", mock.Anything, convID, "u1").Return(assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"receiver_id":"u2","content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestSendMessageAmbiguousTarget(t *testing.T) {
	handler := NewChatHandler(new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock), nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	body := bytes.NewBufferString(`{"receiver_id":"u2","group_id":"` + primitive.NewObjectID().Hex() + `","content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageEmpty(t *testing.T) {
	handler := NewChatHandler(new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock), nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"receiver_id":"u2"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageGroupNonMember(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewChatHandler(new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock), groupRepo, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	groupID := primitive.NewObjectID()
	groupRepo.On("GetGroup", mock.Anything, groupID).Return(models.Group{ID: groupID, OwnerID: "u9", Members: []string{"u9"}}, nil).Once()

	body := bytes.NewBufferString(`{"group_id":"` + groupID.Hex() + `","content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestGetMessagesInvalidBefore(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewChatHandler(convRepo, new(mocks.MessageRepositoryMock), nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convID := primitive.NewObjectID()
	convRepo.On("GetConversation", mock.Anything, convID).Return(privateConversation(convID), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/"+convID.Hex()+"/messages?before=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesNonParticipant(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewChatHandler(convRepo, new(mocks.MessageRepositoryMock), nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convID := primitive.NewObjectID()
	conv := models.Conversation{ID: convID, Type: models.ConversationTypePrivate, Participants: []string{"u5", "u6"}}
	convRepo.On("GetConversation", mock.Anything, convID).Return(conv, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/"+convID.Hex()+"/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetMessagesNotFound(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewChatHandler(convRepo, new(mocks.MessageRepositoryMock), nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convID := primitive.NewObjectID()
	convRepo.On("GetConversation", mock.Anything, convID).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/"+convID.Hex()+"/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkReadResetsUnread(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(convRepo, msgRepo, nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convID := primitive.NewObjectID()
	convRepo.On("GetConversation", mock.Anything, convID).Return(privateConversation(convID), nil).Once()
	msgRepo.On("MarkRead", mock.Anything, "u1", convID).Return(nil).Once()
	convRepo.On("ResetUnread", mock.Anything, "u1", convID).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/"+convID.Hex()+"/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
}

func TestMarkReadResetFailure(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(convRepo, msgRepo, nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convID := primitive.NewObjectID()
	convRepo.On("GetConversation", mock.Anything, convID).Return(privateConversation(convID), nil).Once()
	msgRepo.On("MarkRead", mock.Anything, "u1", convID).Return(nil).Once()
	convRepo.On("ResetUnread", mock.Anything, "u1", convID).Return(assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/"+convID.Hex()+"/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUnreadTotal(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewChatHandler(convRepo, nil, nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convRepo.On("UnreadTotal", mock.Anything, "u1").Return(int64(7), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/unread-total", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int64
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(7), resp["unread_total"])
}

func TestDeleteMessageNotSender(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(new(mocks.ConversationRepositoryMock), msgRepo, nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	msgID := primitive.NewObjectID()
	msgRepo.On("SoftDelete", mock.Anything, msgID, "u1").Return(repositories.ErrNotMessageSender).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/"+msgID.Hex(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteMessageNotFound(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(new(mocks.ConversationRepositoryMock), msgRepo, nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	msgID := primitive.NewObjectID()
	msgRepo.On("SoftDelete", mock.Anything, msgID, "u1").Return(repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/"+msgID.Hex(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateSettingPinned(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewChatHandler(convRepo, nil, nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convID := primitive.NewObjectID()
	convRepo.On("GetConversation", mock.Anything, convID).Return(privateConversation(convID), nil).Once()
	convRepo.On("SetPinned", mock.Anything, "u1", convID, true).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/conversations/"+convID.Hex()+"/settings", bytes.NewBufferString(`{"is_pinned":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestUpdateSettingEmptyBody(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	handler := NewChatHandler(convRepo, nil, nil, nil, nil, nil, zap.NewNop())
	router := setupChatRouter(handler)

	convID := primitive.NewObjectID()
	convRepo.On("GetConversation", mock.Anything, convID).Return(privateConversation(convID), nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/conversations/"+convID.Hex()+"/settings", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
