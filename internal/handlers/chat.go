package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Ranaran315/campus-backend-sub000/internal/clients"
	"github.com/Ranaran315/campus-backend-sub000/internal/models"
	"github.com/Ranaran315/campus-backend-sub000/internal/observability"
	"github.com/Ranaran315/campus-backend-sub000/internal/repositories"
	"github.com/Ranaran315/campus-backend-sub000/internal/telemetry"
	"github.com/Ranaran315/campus-backend-sub000/internal/ws"
)

// ChatHandler manages conversation and message endpoints.
type ChatHandler struct {
	convRepo  repositories.ConversationRepository
	msgRepo   repositories.MessageRepository
	groupRepo repositories.GroupRepository
	friends   clients.FriendDirectory
	hub       *ws.Hub
	audit     *telemetry.AuditEmitter
	logger    *zap.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, groupRepo repositories.GroupRepository, friends clients.FriendDirectory, hub *ws.Hub, audit *telemetry.AuditEmitter, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		groupRepo: groupRepo,
		friends:   friends,
		hub:       hub,
		audit:     audit,
		logger:    logger,
	}
}

// ListConversations returns the conversations visible to the authenticated
// user, pinned first, then newest activity first.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")

	entries, err := h.convRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	for i := range entries {
		h.resolveDisplay(c.Request.Context(), userID, &entries[i])
	}

	c.JSON(http.StatusOK, gin.H{"conversations": entries})
}

// resolveDisplay fills in what the list should show for the entry: the user's
// own nickname wins, then the friend remark, then the group profile or the
// raw peer id.
func (h *ChatHandler) resolveDisplay(ctx context.Context, userID string, entry *models.ConversationEntry) {
	if entry.Setting.Nickname != "" {
		entry.DisplayName = entry.Setting.Nickname
	}

	switch entry.Conversation.Type {
	case models.ConversationTypeGroup:
		if entry.Conversation.GroupID == nil {
			return
		}
		group, err := h.groupRepo.GetGroup(ctx, *entry.Conversation.GroupID)
		if err != nil {
			h.logger.Warn("resolve group display failed",
				zap.String("conversation_id", entry.Conversation.ID.Hex()),
				zap.Error(err),
			)
			return
		}
		if entry.DisplayName == "" {
			entry.DisplayName = group.Name
		}
		entry.DisplayAvatar = group.Avatar
	case models.ConversationTypePrivate:
		peer := entry.Conversation.OtherParticipant(userID)
		if entry.DisplayName == "" && h.friends != nil {
			remark, err := h.friends.Remark(ctx, userID, peer)
			if err != nil {
				h.logger.Warn("resolve friend remark failed",
					zap.String("peer_id", peer),
					zap.Error(err),
				)
			} else if remark != "" {
				entry.DisplayName = remark
			}
		}
		if entry.DisplayName == "" {
			entry.DisplayName = peer
		}
	}
}

// OpenPrivate creates or returns the single private conversation between the
// authenticated user and the given peer.
func (h *ChatHandler) OpenPrivate(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if userID == req.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open a conversation with yourself"})
		return
	}

	conv, err := h.convRepo.GetOrCreatePrivate(c.Request.Context(), userID, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// GetConversation returns one conversation the user participates in.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, ok := h.loadAuthorizedConversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// UpdateSetting patches the user's own view-state of a conversation. Only the
// fields present in the body are touched.
func (h *ChatHandler) UpdateSetting(c *gin.Context) {
	conv, ok := h.loadAuthorizedConversation(c)
	if !ok {
		return
	}

	var req struct {
		IsPinned  *bool   `json:"is_pinned"`
		IsVisible *bool   `json:"is_visible"`
		IsMuted   *bool   `json:"is_muted"`
		Nickname  *string `json:"nickname"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.IsPinned == nil && req.IsVisible == nil && req.IsMuted == nil && req.Nickname == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no settings to update"})
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString("userID")
	if req.IsPinned != nil {
		if err := h.convRepo.SetPinned(ctx, userID, conv.ID, *req.IsPinned); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update setting"})
			return
		}
	}
	if req.IsVisible != nil {
		if err := h.convRepo.SetVisible(ctx, userID, conv.ID, *req.IsVisible); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update setting"})
			return
		}
	}
	if req.IsMuted != nil {
		if err := h.convRepo.SetMuted(ctx, userID, conv.ID, *req.IsMuted); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update setting"})
			return
		}
	}
	if req.Nickname != nil {
		if err := h.convRepo.SetNickname(ctx, userID, conv.ID, *req.Nickname); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update setting"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetMessages returns a page of a conversation's history, newest first. The
// before parameter (RFC 3339) pages further back.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	conv, ok := h.loadAuthorizedConversation(c)
	if !ok {
		return
	}

	var limit int64
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp"})
			return
		}
		before = &parsed
	}

	msgs, err := h.msgRepo.History(c.Request.Context(), conv.ID, limit, before)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage persists a message and then fans it out: side effects after the
// write are best effort, so a stored message always yields a 201 even when
// unread counters or live delivery fail.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req struct {
		ConversationID string              `json:"conversation_id"`
		ReceiverID     string              `json:"receiver_id"`
		GroupID        string              `json:"group_id"`
		Type           string              `json:"type"`
		Content        string              `json:"content"`
		Attachments    []models.Attachment `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = models.MessageTypeText
	}
	if req.Content == "" && len(req.Attachments) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message has no content"})
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString("userID")

	conv, ok := h.resolveTarget(c, userID, req.ConversationID, req.ReceiverID, req.GroupID)
	if !ok {
		return
	}

	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       userID,
		Type:           req.Type,
		Content:        req.Content,
		Attachments:    req.Attachments,
	}
	if conv.Type == models.ConversationTypePrivate {
		msg.ReceiverID = conv.OtherParticipant(userID)
	} else {
		msg.GroupID = conv.GroupID
	}

	stored, err := h.msgRepo.Create(ctx, msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store message"})
		return
	}
	observability.IncMessageStored(conv.Type)

	// The message is durable from here on. Everything below is best effort.
	if err := h.convRepo.UpdateActivity(ctx, conv.ID, stored.ID); err != nil {
		h.logger.Warn("update activity failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
	}
	if err := h.convRepo.EnsureVisible(ctx, conv.ID, conv.Participants); err != nil {
		h.logger.Warn("ensure visibility failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
	}
	if err := h.convRepo.IncrementUnread(ctx, conv.ID, userID); err != nil {
		h.logger.Warn("increment unread failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
	}

	if h.hub != nil {
		if conv.Type == models.ConversationTypePrivate {
			h.hub.SendToUser(stored.ReceiverID, models.DirectMessagePayload{Message: stored})
		} else if stored.GroupID != nil {
			h.hub.BroadcastToGroupRoom(stored.GroupID.Hex(), models.GroupMessagePayload{
				GroupID: stored.GroupID.Hex(),
				Message: stored,
			})
		}
	}

	h.audit.Emit(ctx, "INFO",
		fmt.Sprintf("message %s stored in conversation %s", stored.ID.Hex(), conv.ID.Hex()),
		requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusCreated, gin.H{"message": stored})
}

// resolveTarget turns whichever addressing field the client sent into an
// authorized conversation. Exactly one of the three may be set.
func (h *ChatHandler) resolveTarget(c *gin.Context, userID, conversationID, receiverID, groupID string) (models.Conversation, bool) {
	ctx := c.Request.Context()

	set := 0
	for _, v := range []string{conversationID, receiverID, groupID} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of conversation_id, receiver_id, group_id is required"})
		return models.Conversation{}, false
	}

	switch {
	case conversationID != "":
		id, err := primitive.ObjectIDFromHex(conversationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
			return models.Conversation{}, false
		}
		conv, err := h.convRepo.GetConversation(ctx, id)
		if errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return models.Conversation{}, false
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
			return models.Conversation{}, false
		}
		if !h.authorizeConversation(c, userID, conv) {
			return models.Conversation{}, false
		}
		return conv, true

	case receiverID != "":
		if receiverID == userID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
			return models.Conversation{}, false
		}
		conv, err := h.convRepo.GetOrCreatePrivate(ctx, userID, receiverID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open conversation"})
			return models.Conversation{}, false
		}
		return conv, true

	default:
		id, err := primitive.ObjectIDFromHex(groupID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
			return models.Conversation{}, false
		}
		group, err := h.groupRepo.GetGroup(ctx, id)
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return models.Conversation{}, false
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
			return models.Conversation{}, false
		}
		if !group.IsMember(userID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
			return models.Conversation{}, false
		}
		conv, err := h.convRepo.GetOrCreateGroupConversation(ctx, group.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open conversation"})
			return models.Conversation{}, false
		}
		return conv, true
	}
}

// MarkRead stamps every message in the conversation as read by the user and
// zeroes their unread counter.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	conv, ok := h.loadAuthorizedConversation(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString("userID")

	if err := h.msgRepo.MarkRead(ctx, userID, conv.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}
	if err := h.convRepo.ResetUnread(ctx, userID, conv.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset unread count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UnreadTotal sums the user's unread counters across visible conversations.
func (h *ChatHandler) UnreadTotal(c *gin.Context) {
	total, err := h.convRepo.UnreadTotal(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread total"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_total": total})
}

// DeleteMessage soft-deletes one of the user's own messages.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := c.GetString("userID")
	err = h.msgRepo.SoftDelete(c.Request.Context(), id, userID)
	switch {
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	case errors.Is(err, repositories.ErrNotMessageSender):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can delete a message"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("message %s deleted", id.Hex()),
		requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// loadAuthorizedConversation parses :conversation_id, loads the conversation
// and verifies the user participates in it.
func (h *ChatHandler) loadAuthorizedConversation(c *gin.Context) (models.Conversation, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return models.Conversation{}, false
	}

	conv, err := h.convRepo.GetConversation(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return models.Conversation{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return models.Conversation{}, false
	}

	if !h.authorizeConversation(c, c.GetString("userID"), conv) {
		return models.Conversation{}, false
	}
	return conv, true
}

// authorizeConversation checks membership: participant list for private
// conversations, live group membership for group conversations.
func (h *ChatHandler) authorizeConversation(c *gin.Context, userID string, conv models.Conversation) bool {
	if conv.Type == models.ConversationTypeGroup && conv.GroupID != nil {
		group, err := h.groupRepo.GetGroup(c.Request.Context(), *conv.GroupID)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
			return false
		}
		if !group.IsMember(userID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
			return false
		}
		return true
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return false
	}
	return true
}
