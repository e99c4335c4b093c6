package notification

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"notifyhub/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the notification domain.
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Send handles POST /api/v1/send
// Dispatches an ad hoc message synchronously and returns the per-channel results.
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	msg, err := req.toMessage(time.Now())
	if err != nil {
		common.HandleError(c, err)
		return
	}
	if err := validateChannels(req.Channels); err != nil {
		common.HandleError(c, err)
		return
	}

	results := h.service.Send(c.Request.Context(), msg, req.Channels, SendOptions{
		Phone:       req.Phone,
		Email:       req.Email,
		RichText:    req.RichText,
		Details:     req.Details,
		ExpiryHours: req.ExpiryHours,
	})
	sum := summarize(results)
	common.Success(c, http.StatusOK, gin.H{
		"success": sum.Succeeded > 0,
		"results": results,
		"summary": sum,
	})
}

func (req *SendRequest) toMessage(now time.Time) (*Message, error) {
	msg := &Message{
		Title:        req.Title,
		Content:      req.Content,
		TitleEN:      req.TitleEN,
		ContentEN:    req.ContentEN,
		Type:         req.Type,
		Importance:   req.Importance,
		TargetRole:   req.TargetRole,
		TargetUserID: req.TargetUserID,
		ActionURL:    req.ActionURL,
		Extra: Extra{
			ExpiryHours: req.ExpiryHours,
			CreatedAt:   now,
			RichText:    req.RichText,
			Details:     req.Details,
		},
	}
	if msg.Type == "" {
		msg.Type = TypeSystem
	}
	if msg.Importance == "" {
		msg.Importance = ImportanceNormal
	}
	if msg.TargetRole == "" {
		msg.TargetRole = RoleAll
	}
	if msg.Extra.ExpiryHours == 0 {
		msg.Extra.ExpiryHours = DefaultExpiryHours
	}

	switch {
	case !IsValidType(msg.Type):
		return nil, common.NewValidationError(fmt.Sprintf("unsupported notification type: %s", msg.Type))
	case !IsValidImportance(msg.Importance):
		return nil, common.NewValidationError(fmt.Sprintf("unsupported importance: %s", msg.Importance))
	case !IsValidRole(msg.TargetRole):
		return nil, common.NewValidationError(fmt.Sprintf("unsupported target role: %s", msg.TargetRole))
	}
	return msg, nil
}

func validateChannels(channels []Channel) error {
	for _, ch := range channels {
		if !IsValidChannel(ch) {
			return common.NewValidationError(fmt.Sprintf("unsupported channel: %s", ch))
		}
	}
	return nil
}

// SendByTemplate handles POST /api/v1/templates/:id/send
func (h *Handler) SendByTemplate(c *gin.Context) {
	var req TemplateSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validateChannels(req.Channels); err != nil {
		common.HandleError(c, err)
		return
	}

	templateID := c.Param("id")
	resp, err := h.service.SendByTemplate(c.Request.Context(), TemplateSend{
		TemplateID: templateID,
		Params:     req.Params,
		Render: RenderOptions{
			TargetUserID: req.TargetUserID,
			ActionURL:    req.ActionURL,
			Overrides: Overrides{
				Type:        req.Type,
				Importance:  req.Importance,
				TargetRole:  req.TargetRole,
				ExpiryHours: req.ExpiryHours,
			},
			Details: req.Details,
		},
		Channels: req.Channels,
		Options:  SendOptions{Phone: req.Phone, Email: req.Email},
	})
	if err != nil {
		slog.Error("template send failed", "template_id", templateID, "error", err)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, resp)
}

// ProjectInactivityWarning handles POST /api/v1/warnings/project-inactivity
func (h *Handler) ProjectInactivityWarning(c *gin.Context) {
	var req ProjectInactivity
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	report := h.service.SendProjectInactivityWarning(c.Request.Context(), req)
	common.Success(c, http.StatusOK, report)
}

// MarkRead handles POST /api/v1/notifications/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), id, req.UserID); err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"notification_id": id, "user_id": req.UserID, "read": true})
}

// ListForUser handles GET /api/v1/users/:id/notifications
func (h *Handler) ListForUser(c *gin.Context) {
	userID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}
	lang := q.Language
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
	}

	items, err := h.service.ListForUser(c.Request.Context(), InboxQuery{
		UserID:     userID,
		Role:       q.Role,
		Type:       q.Type,
		Importance: q.Importance,
		UnreadOnly: q.UnreadOnly,
		Limit:      q.Limit,
		Offset:     q.Offset,
		Language:   lang,
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"notifications": items, "count": len(items)})
}

// UnreadCount handles GET /api/v1/users/:id/notifications/unread-count
func (h *Handler) UnreadCount(c *gin.Context) {
	userID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	n, err := h.service.UnreadCount(c.Request.Context(), userID, TargetRole(c.Query("role")))
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"user_id": userID, "unread_count": n})
}

// SystemStatus handles GET /api/v1/status
func (h *Handler) SystemStatus(c *gin.Context) {
	common.Success(c, http.StatusOK, h.service.SystemStatus())
}

// UpdateRule handles PUT /api/v1/rules/:channel
func (h *Handler) UpdateRule(c *gin.Context) {
	var rule Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ch := Channel(c.Param("channel"))
	if err := h.service.UpdateRule(ch, rule); err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"channel": ch, "rule": rule})
}

// GetTemplate handles GET /api/v1/templates/:id
func (h *Handler) GetTemplate(c *gin.Context) {
	t, err := h.service.Template(c.Param("id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, t)
}

// UpdateTemplate handles PUT /api/v1/templates/:id
func (h *Handler) UpdateTemplate(c *gin.Context) {
	var t Template
	if err := c.ShouldBindJSON(&t); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t.ID = c.Param("id")

	if err := h.service.UpdateTemplate(t); err != nil {
		common.HandleError(c, err)
		return
	}
	stored, err := h.service.Template(t.ID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, stored)
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		common.Error(c, http.StatusBadRequest, fmt.Sprintf("invalid %s: %s", name, c.Param(name)))
		return 0, false
	}
	return v, true
}

// RegisterRoutes registers notification routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/send", h.Send)
	rg.POST("/templates/:id/send", h.SendByTemplate)
	rg.GET("/templates/:id", h.GetTemplate)
	rg.PUT("/templates/:id", h.UpdateTemplate)
	rg.POST("/warnings/project-inactivity", h.ProjectInactivityWarning)
	rg.POST("/notifications/:id/read", h.MarkRead)
	rg.GET("/users/:id/notifications", h.ListForUser)
	rg.GET("/users/:id/notifications/unread-count", h.UnreadCount)
	rg.GET("/status", h.SystemStatus)
	rg.PUT("/rules/:channel", h.UpdateRule)
}
