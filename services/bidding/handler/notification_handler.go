package handler

import (
	"net/http"

	model "livebid/internal/models"
	"livebid/services/bidding/helpers"
	"livebid/utils"

	"github.com/gin-gonic/gin"
)

// ListNotificationsHandler handles GET /users/:user_id/notifications
func (h *BiddingHandler) ListNotificationsHandler(c *gin.Context) {
	userID := c.Param("user_id")
	notes, err := h.notifications.List(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "ListNotificationsHandler", err, map[string]any{"user_id": userID})
		return
	}
	if notes == nil {
		notes = []model.Notification{}
	}

	utils.JSONResponse(c, http.StatusOK, notes, "notifications retrieved successfully")
}

// UnreadCountHandler handles GET /users/:user_id/notifications/unread-count
func (h *BiddingHandler) UnreadCountHandler(c *gin.Context) {
	userID := c.Param("user_id")
	count, err := h.notifications.CountUnread(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "UnreadCountHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.UnreadCountResponse{Count: count}, "unread count retrieved successfully")
}

// MarkReadHandler handles POST /users/:user_id/notifications/:notification_id/read
func (h *BiddingHandler) MarkReadHandler(c *gin.Context) {
	userID := c.Param("user_id")
	notificationID := c.Param("notification_id")
	if err := h.notifications.MarkRead(c.Request.Context(), userID, notificationID); err != nil {
		helpers.RespondError(c, "MarkReadHandler", err, map[string]any{
			"user_id":         userID,
			"notification_id": notificationID,
		})
		return
	}

	utils.JSONMessage(c, http.StatusOK, "notification marked as read")
}

// MarkAllReadHandler handles POST /users/:user_id/notifications/mark-all-read
func (h *BiddingHandler) MarkAllReadHandler(c *gin.Context) {
	userID := c.Param("user_id")
	if err := h.notifications.MarkAllRead(c.Request.Context(), userID); err != nil {
		helpers.RespondError(c, "MarkAllReadHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONMessage(c, http.StatusOK, "all notifications marked as read")
	helpers.LogSuccess("MarkAllReadHandler", "all notifications marked as read", map[string]any{"user_id": userID})
}
