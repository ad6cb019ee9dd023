package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driftlinehq/driftline-site/internal/services"
	"github.com/driftlinehq/driftline-site/pkg/response"
)

// NewsletterHandler exposes the subscriber registry and the bulk-send pipeline.
type NewsletterHandler struct {
	subscribers *services.SubscriberService
	newsletter  *services.NewsletterService
}

func NewNewsletterHandler(subscribers *services.SubscriberService, newsletter *services.NewsletterService) *NewsletterHandler {
	return &NewsletterHandler{subscribers: subscribers, newsletter: newsletter}
}

type subscribeRequest struct {
	Email string `json:"email" validate:"required"`
}

// POST /api/newsletter/subscribe
func (h *NewsletterHandler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	subscriber, err := h.subscribers.Subscribe(requestContext(c), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"subscriber": subscriber})
}

// POST /api/newsletter/unsubscribe
func (h *NewsletterHandler) Unsubscribe(c *gin.Context) {
	var req subscribeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.subscribers.Unsubscribe(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unsubscribed": true})
}

// GET /api/admin/subscribers
func (h *NewsletterHandler) ListSubscribers(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	subscribers, total, err := h.subscribers.List(requestContext(c), c.Query("status"), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{"subscribers": subscribers}, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages(int(total), perPage),
	})
}

type sendNewsletterRequest struct {
	Subject   string `json:"subject" validate:"required,max=200"`
	Body      string `json:"body" validate:"required"`
	FromEmail string `json:"from_email" validate:"omitempty,email"`
	FromName  string `json:"from_name" validate:"omitempty,max=100"`
}

// POST /api/admin/newsletter/send
func (h *NewsletterHandler) Send(c *gin.Context) {
	var req sendNewsletterRequest
	if !bindAndValidate(c, &req) {
		return
	}

	report, err := h.newsletter.SendToActive(requestContext(c), services.Newsletter{
		Subject:   req.Subject,
		Body:      req.Body,
		FromEmail: req.FromEmail,
		FromName:  req.FromName,
	}, currentAdminID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// GET /api/admin/newsletter/history
func (h *NewsletterHandler) History(c *gin.Context) {
	sends, err := h.newsletter.History(requestContext(c), parseIntQuery(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sends": sends})
}

func totalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	pages := total / perPage
	if total%perPage != 0 {
		pages++
	}
	return pages
}
