package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/driftlinehq/driftline-site/internal/services"
	"github.com/driftlinehq/driftline-site/pkg/response"
)

// ContentHandler serves case studies and testimonials for the public site.
type ContentHandler struct {
	content *services.ContentService
}

func NewContentHandler(content *services.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// GET /api/case-studies
func (h *ContentHandler) ListCaseStudies(c *gin.Context) {
	studies, err := h.content.ListCaseStudies(requestContext(c), c.Query("industry"), c.Query("solution_type"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"case_studies": studies})
}

// GET /api/case-studies/:slug
func (h *ContentHandler) GetCaseStudy(c *gin.Context) {
	study, err := h.content.GetCaseStudyBySlug(requestContext(c), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"case_study": study})
}

// GET /api/testimonials
func (h *ContentHandler) ListTestimonials(c *gin.Context) {
	featuredOnly, _ := strconv.ParseBool(c.Query("featured"))

	testimonials, err := h.content.ListTestimonials(requestContext(c), featuredOnly)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"testimonials": testimonials})
}
