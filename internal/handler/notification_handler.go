package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-reg-api/internal/models"
	appErrors "github.com/noah-isme/course-reg-api/pkg/errors"
	"github.com/noah-isme/course-reg-api/pkg/response"
)

type inboxReader interface {
	Inbox(ctx context.Context, username string, page, pageSize int) ([]models.Notification, *models.Pagination, error)
}

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	service inboxReader
}

// NewNotificationHandler builds a new handler.
func NewNotificationHandler(svc inboxReader) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// Inbox godoc
// @Summary List my notifications, newest first
// @Tags Notifications
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me/notifications [get]
func (h *NotificationHandler) Inbox(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, pagination, err := h.service.Inbox(c.Request.Context(), claims.Username, queryInt(c, "page", 1), queryInt(c, "page_size", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}
