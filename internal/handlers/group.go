package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Ranaran315/campus-backend-sub000/internal/models"
	"github.com/Ranaran315/campus-backend-sub000/internal/repositories"
	"github.com/Ranaran315/campus-backend-sub000/internal/telemetry"
)

// GroupHandler manages group lifecycle and membership endpoints.
type GroupHandler struct {
	groupRepo repositories.GroupRepository
	convRepo  repositories.ConversationRepository
	msgRepo   repositories.MessageRepository
	audit     *telemetry.AuditEmitter
	logger    *zap.Logger
}

// NewGroupHandler builds a GroupHandler.
func NewGroupHandler(groupRepo repositories.GroupRepository, convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, audit *telemetry.AuditEmitter, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{
		groupRepo: groupRepo,
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		audit:     audit,
		logger:    logger,
	}
}

// CreateGroup creates a group with the caller as owner, plus its backing
// conversation.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		MaxMembers  int    `json:"max_members"`
		IsPublic    bool   `json:"is_public"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxMembers < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_members"})
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString("userID")

	group, err := h.groupRepo.CreateGroup(ctx, userID, req.Name, req.Description, req.MaxMembers, req.IsPublic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	conv, err := h.convRepo.GetOrCreateGroupConversation(ctx, group.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group conversation"})
		return
	}
	if err := h.convRepo.AddParticipant(ctx, conv.ID, userID); err != nil {
		h.logger.Warn("add owner participant failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
	}
	if err := h.convRepo.EnsureVisible(ctx, conv.ID, []string{userID}); err != nil {
		h.logger.Warn("ensure visibility failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
	}

	h.audit.Emit(ctx, "INFO",
		fmt.Sprintf("group %s created", group.ID.Hex()),
		requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusCreated, gin.H{"group": group, "conversation_id": conv.ID})
}

// ListGroups returns the groups the authenticated user belongs to.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groupRepo.ListGroupsForUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup returns one group; members only.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	if !group.IsMember(c.GetString("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// UpdateProfile patches the group's name, description or avatar. Owner and
// admins only.
func (h *GroupHandler) UpdateProfile(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	if !group.CanManage(c.GetString("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group manager"})
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Avatar      *string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == nil && req.Description == nil && req.Avatar == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	if req.Name != nil && *req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
		return
	}

	if err := h.groupRepo.UpdateProfile(c.Request.Context(), group.ID, req.Name, req.Description, req.Avatar); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update group"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("group %s profile updated", group.ID.Hex()),
		requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AddMember adds a user to the group. Owner and admins only; the capacity
// check happens atomically in the store.
func (h *GroupHandler) AddMember(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	if !group.CanManage(c.GetString("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group manager"})
		return
	}

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	err := h.groupRepo.AddMember(ctx, group.ID, req.UserID)
	switch {
	case errors.Is(err, repositories.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	case errors.Is(err, repositories.ErrAlreadyMember):
		c.JSON(http.StatusBadRequest, gin.H{"error": "already a member"})
		return
	case errors.Is(err, repositories.ErrGroupFull):
		c.JSON(http.StatusBadRequest, gin.H{"error": "group is full"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add member"})
		return
	}

	// Membership changed durably; mirror it onto the conversation.
	if conv, err := h.convRepo.GetGroupConversation(ctx, group.ID); err == nil {
		if err := h.convRepo.AddParticipant(ctx, conv.ID, req.UserID); err != nil {
			h.logger.Warn("add participant failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
		}
		if err := h.convRepo.EnsureVisible(ctx, conv.ID, []string{req.UserID}); err != nil {
			h.logger.Warn("ensure visibility failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
		}
	} else {
		h.logger.Warn("load group conversation failed", zap.String("group_id", group.ID.Hex()), zap.Error(err))
	}

	h.audit.Emit(ctx, "INFO",
		fmt.Sprintf("user %s added to group %s", req.UserID, group.ID.Hex()),
		requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RemoveMember removes a member. The owner can never be removed; admins and
// the owner can remove others, and anyone can remove themselves.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	targetID := c.Param("user_id")
	operatorID := c.GetString("userID")
	if targetID != operatorID && !group.CanManage(operatorID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group manager"})
		return
	}

	h.removeMember(c, group, targetID)
}

// Leave removes the authenticated user from the group.
func (h *GroupHandler) Leave(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	h.removeMember(c, group, c.GetString("userID"))
}

func (h *GroupHandler) removeMember(c *gin.Context, group models.Group, targetID string) {
	ctx := c.Request.Context()

	err := h.groupRepo.RemoveMember(ctx, group.ID, targetID)
	switch {
	case errors.Is(err, repositories.ErrOwnerImmune):
		c.JSON(http.StatusForbidden, gin.H{"error": "the owner cannot leave the group"})
		return
	case errors.Is(err, repositories.ErrNotMember):
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a member"})
		return
	case errors.Is(err, repositories.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove member"})
		return
	}

	if conv, err := h.convRepo.GetGroupConversation(ctx, group.ID); err == nil {
		if err := h.convRepo.RemoveParticipant(ctx, conv.ID, targetID); err != nil {
			h.logger.Warn("remove participant failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
		}
		if err := h.convRepo.DeleteSetting(ctx, targetID, conv.ID); err != nil {
			h.logger.Warn("delete setting failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
		}
	} else {
		h.logger.Warn("load group conversation failed", zap.String("group_id", group.ID.Hex()), zap.Error(err))
	}

	h.audit.Emit(ctx, "INFO",
		fmt.Sprintf("user %s removed from group %s", targetID, group.ID.Hex()),
		requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetAdmin grants or revokes admin on a member. Owner only.
func (h *GroupHandler) SetAdmin(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	if group.OwnerID != c.GetString("userID") {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can manage admins"})
		return
	}

	var req struct {
		UserID  string `json:"user_id" binding:"required"`
		IsAdmin *bool  `json:"is_admin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.groupRepo.SetAdmin(c.Request.Context(), group.ID, req.UserID, *req.IsAdmin)
	switch {
	case errors.Is(err, repositories.ErrNotMember):
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a member"})
		return
	case errors.Is(err, repositories.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update admins"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("admin=%v set for user %s in group %s", *req.IsAdmin, req.UserID, group.ID.Hex()),
		requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Disband terminates the group and hard-deletes its conversation, settings
// and message history. Owner only; there is no undo.
func (h *GroupHandler) Disband(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	if group.OwnerID != c.GetString("userID") {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can disband the group"})
		return
	}

	ctx := c.Request.Context()
	if err := h.groupRepo.Disband(ctx, group.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disband group"})
		return
	}

	conv, err := h.convRepo.GetGroupConversation(ctx, group.ID)
	if err == nil {
		if _, err := h.msgRepo.DeleteByConversation(ctx, conv.ID); err != nil {
			h.logger.Warn("delete conversation messages failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
		}
		if err := h.convRepo.DeleteSettings(ctx, conv.ID); err != nil {
			h.logger.Warn("delete settings failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
		}
		if err := h.convRepo.DeleteConversation(ctx, conv.ID); err != nil {
			h.logger.Warn("delete conversation failed", zap.String("conversation_id", conv.ID.Hex()), zap.Error(err))
		}
	} else if !errors.Is(err, repositories.ErrConversationNotFound) {
		h.logger.Warn("load group conversation failed", zap.String("group_id", group.ID.Hex()), zap.Error(err))
	}

	h.audit.Emit(ctx, "WARN",
		fmt.Sprintf("group %s disbanded", group.ID.Hex()),
		requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *GroupHandler) loadGroup(c *gin.Context) (models.Group, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return models.Group{}, false
	}

	group, err := h.groupRepo.GetGroup(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return models.Group{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return models.Group{}, false
	}
	return group, true
}
