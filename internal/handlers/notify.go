package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ranaran315/campus-backend-sub000/internal/models"
	"github.com/Ranaran315/campus-backend-sub000/internal/ws"
)

// NotifyHandler exposes the internal fan-in surface other services use to
// push realtime notifications through the session hub. Delivery is best
// effort; callers learn who was offline and handle persistence themselves.
type NotifyHandler struct {
	hub *ws.Hub
}

// NewNotifyHandler builds a NotifyHandler.
func NewNotifyHandler(hub *ws.Hub) *NotifyHandler {
	return &NotifyHandler{hub: hub}
}

// PushAnnouncement fans an announcement out to each recipient's live
// connection and reports who was reached.
func (h *NotifyHandler) PushAnnouncement(c *gin.Context) {
	var req struct {
		Announcement models.AnnouncementPayload `json:"announcement" binding:"required"`
		RecipientIDs []string                   `json:"recipient_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Announcement.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "announcement id is required"})
		return
	}

	delivered := make([]string, 0, len(req.RecipientIDs))
	offline := make([]string, 0)
	for _, userID := range req.RecipientIDs {
		if h.hub.SendToUser(userID, req.Announcement) {
			delivered = append(delivered, userID)
		} else {
			offline = append(offline, userID)
		}
	}

	c.JSON(http.StatusOK, gin.H{"delivered": delivered, "offline": offline})
}

// PushFriendRequest notifies the recipient of a new friend request.
func (h *NotifyHandler) PushFriendRequest(c *gin.Context) {
	var req struct {
		RecipientID string                      `json:"recipient_id" binding:"required"`
		Request     models.FriendRequestPayload `json:"request" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Request.RequestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request id is required"})
		return
	}

	delivered := h.hub.SendToUser(req.RecipientID, req.Request)
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

// PushFriendRequestUpdate notifies the original sender of a status change.
func (h *NotifyHandler) PushFriendRequestUpdate(c *gin.Context) {
	var req struct {
		RecipientID string                            `json:"recipient_id" binding:"required"`
		Update      models.FriendRequestUpdatePayload `json:"update" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Update.RequestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request id is required"})
		return
	}

	delivered := h.hub.SendToUser(req.RecipientID, req.Update)
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}
