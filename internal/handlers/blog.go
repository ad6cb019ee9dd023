package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driftlinehq/driftline-site/internal/services"
	"github.com/driftlinehq/driftline-site/pkg/response"
)

// BlogHandler serves public blog reads and admin post management.
type BlogHandler struct {
	blog *services.BlogService
}

func NewBlogHandler(blog *services.BlogService) *BlogHandler {
	return &BlogHandler{blog: blog}
}

// GET /api/blog/posts
func (h *BlogHandler) ListPublished(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 10)

	posts, total, err := h.blog.ListPublished(requestContext(c), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{"posts": posts}, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages(int(total), perPage),
	})
}

// GET /api/blog/posts/:slug
func (h *BlogHandler) GetBySlug(c *gin.Context) {
	post, err := h.blog.GetBySlug(requestContext(c), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"post": post})
}

// GET /api/admin/blog/posts
func (h *BlogHandler) ListAll(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 10)

	posts, total, err := h.blog.ListAll(requestContext(c), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{"posts": posts}, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages(int(total), perPage),
	})
}

// POST /api/admin/blog/posts
func (h *BlogHandler) Create(c *gin.Context) {
	var req services.BlogPostInput
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.blog.Create(requestContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"post": post})
}

// PUT /api/admin/blog/posts/:id
func (h *BlogHandler) Update(c *gin.Context) {
	var req services.BlogPostInput
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.blog.Update(requestContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"post": post})
}

// DELETE /api/admin/blog/posts/:id
func (h *BlogHandler) Delete(c *gin.Context) {
	if err := h.blog.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
