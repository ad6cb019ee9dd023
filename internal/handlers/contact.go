package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driftlinehq/driftline-site/internal/services"
	"github.com/driftlinehq/driftline-site/pkg/response"
)

// ContactHandler receives contact-form submissions and serves the lead list.
type ContactHandler struct {
	contacts *services.ContactService
}

func NewContactHandler(contacts *services.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// POST /api/contact/submit
func (h *ContactHandler) Submit(c *gin.Context) {
	var req services.ContactSubmission
	if !bindAndValidate(c, &req) {
		return
	}

	lead, err := h.contacts.Submit(requestContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"lead": gin.H{
		"id":           lead.ID,
		"submitted_at": lead.SubmittedAt,
	}})
}

// GET /api/admin/leads
func (h *ContactHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	leads, total, err := h.contacts.List(requestContext(c), c.Query("status"), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{"leads": leads}, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages(int(total), perPage),
	})
}

type leadStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// PATCH /api/admin/leads/:id
func (h *ContactHandler) UpdateStatus(c *gin.Context) {
	var req leadStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.contacts.UpdateStatus(requestContext(c), c.Param("id"), req.Status); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": true})
}
