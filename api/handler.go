// Package api is the HTTP edge for queries and mutations. It binds and
// validates payloads, resolves the principal, delegates to the service, and
// maps taxonomy errors to status codes. No business rules live here.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chat-relay/auth"
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"chat-relay/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const defaultSearchLimit = 20

var validate = validator.New()

type Handler struct {
	service services.IChatService
	log     *slog.Logger
}

func NewHandler(log *slog.Logger, service services.IChatService) *Handler {
	return &Handler{service: service, log: log}
}

// Register mounts the message routes on an authenticated router group.
func (h *Handler) Register(r *gin.RouterGroup) {
	r.GET("/messages", h.GetMessages)
	r.GET("/messages/search", h.SearchMessages)
	r.POST("/messages", h.SendMessage)
	r.PUT("/messages/:id", h.EditMessage)
	r.DELETE("/messages/:id", h.DeleteMessage)
}

type contentRequest struct {
	Content string `json:"content" validate:"required"`
}

type messageResponse struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	Content   string     `json:"content"`
	Lang      string     `json:"lang,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}

func toMessageResponse(message domain.Message) messageResponse {
	return messageResponse{
		ID:        message.ID.String(),
		Author:    message.Author,
		Content:   message.Content,
		Lang:      message.Lang,
		CreatedAt: message.CreatedAt,
		EditedAt:  message.EditedAt,
	}
}

func toMessageResponses(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(item domain.Message, _ int) messageResponse {
		return toMessageResponse(item)
	})
}

func (h *Handler) GetMessages(c *gin.Context) {
	messages, err := h.service.GetMessages(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": toMessageResponses(messages)})
}

func (h *Handler) SendMessage(c *gin.Context) {
	req, ok := h.bindContent(c)
	if !ok {
		return
	}
	message, err := h.service.SendMessage(c.Request.Context(), auth.PrincipalFrom(c), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(message))
}

func (h *Handler) EditMessage(c *gin.Context) {
	id, ok := h.messageID(c)
	if !ok {
		return
	}
	req, ok := h.bindContent(c)
	if !ok {
		return
	}
	message, err := h.service.EditMessage(c.Request.Context(), auth.PrincipalFrom(c), id, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageResponse(message))
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	id, ok := h.messageID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteMessage(c.Request.Context(), auth.PrincipalFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id.String()})
}

func (h *Handler) SearchMessages(c *gin.Context) {
	terms := c.Query("q")
	if terms == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	messages, err := h.service.SearchMessages(c.Request.Context(), terms, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": toMessageResponses(messages)})
}

func (h *Handler) bindContent(c *gin.Context) (contentRequest, bool) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return req, false
	}
	return req, true
}

func (h *Handler) messageID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
