package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/smallbiznis/coverdesk/internal/notification/domain"
)

// Inbox routes always act on the caller's own notifications.

func (s *Server) ListNotifications(c *gin.Context) {
	var req notificationdomain.ListNotificationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inbox.List(c.Request.Context(), mustActor(c).UserID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Notifications, "page_info": resp.PageInfo})
}

func (s *Server) UnreadNotificationCount(c *gin.Context) {
	count, err := s.inbox.UnreadCount(c.Request.Context(), mustActor(c).UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"unread": count}})
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	notification, err := s.inbox.MarkRead(c.Request.Context(), mustActor(c).UserID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": notification})
}

func (s *Server) MarkAllNotificationsRead(c *gin.Context) {
	updated, err := s.inbox.MarkAllRead(c.Request.Context(), mustActor(c).UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"updated": updated}})
}
