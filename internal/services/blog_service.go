package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/driftlinehq/driftline-site/internal/models"
	apperrors "github.com/driftlinehq/driftline-site/pkg/errors"
	"github.com/driftlinehq/driftline-site/pkg/validator"
)

// ErrSlugTaken is returned when a blog post slug is already in use.
var ErrSlugTaken = apperrors.NewBadRequest("A post with this slug already exists")

var slugStripPattern = regexp.MustCompile(`[^a-z0-9]+`)

// BlogPostInput carries the editable fields of a blog post.
type BlogPostInput struct {
	Title            string `json:"title" validate:"required,max=200"`
	Slug             string `json:"slug" validate:"max=200"`
	Content          string `json:"content" validate:"required"`
	Excerpt          string `json:"excerpt" validate:"max=1000"`
	Author           string `json:"author" validate:"max=120"`
	FeaturedImageURL string `json:"featured_image_url" validate:"omitempty,url"`
	Status           string `json:"status" validate:"omitempty,oneof=draft published"`
}

// BlogOption customises the BlogService.
type BlogOption func(*BlogService)

// WithBlogClock injects a custom time source.
func WithBlogClock(clock func() time.Time) BlogOption {
	return func(s *BlogService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// BlogService manages blog posts. Public reads only ever see published
// posts; drafts are visible through the admin surface alone.
type BlogService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewBlogService constructs a blog service.
func NewBlogService(db *gorm.DB, opts ...BlogOption) (*BlogService, error) {
	if db == nil {
		return nil, errors.New("blog service: db is required")
	}

	service := &BlogService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create stores a new post. An empty slug is derived from the title, and
// publishing stamps the publication date.
func (s *BlogService) Create(ctx context.Context, input BlogPostInput) (*models.BlogPost, error) {
	ctx = ensureContext(ctx)

	input.Title = strings.TrimSpace(input.Title)
	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = Slugify(input.Title)
	}

	post := models.BlogPost{
		Title:            input.Title,
		Slug:             slug,
		Content:          input.Content,
		Excerpt:          input.Excerpt,
		FeaturedImageURL: input.FeaturedImageURL,
		Status:           models.PostDraft,
	}
	if author := strings.TrimSpace(input.Author); author != "" {
		post.Author = author
	}
	if input.Status == models.PostPublished {
		now := s.now()
		post.Status = models.PostPublished
		post.PublishedDate = &now
	}

	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("blog service: create post: %w", err)
	}

	return &post, nil
}

// Update edits an existing post. Moving a draft to published stamps the
// publication date once; republishing keeps the original date.
func (s *BlogService) Update(ctx context.Context, id string, input BlogPostInput) (*models.BlogPost, error) {
	ctx = ensureContext(ctx)

	input.Title = strings.TrimSpace(input.Title)
	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	var post models.BlogPost
	if err := s.db.WithContext(ctx).Take(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("blog service: find post: %w", err)
	}

	post.Title = input.Title
	post.Content = input.Content
	post.Excerpt = input.Excerpt
	post.FeaturedImageURL = input.FeaturedImageURL
	if slug := strings.TrimSpace(input.Slug); slug != "" {
		post.Slug = slug
	}
	if author := strings.TrimSpace(input.Author); author != "" {
		post.Author = author
	}
	if input.Status != "" {
		if input.Status == models.PostPublished && post.PublishedDate == nil {
			now := s.now()
			post.PublishedDate = &now
		}
		post.Status = input.Status
	}

	if err := s.db.WithContext(ctx).Save(&post).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("blog service: update post: %w", err)
	}

	return &post, nil
}

// Delete removes a post permanently.
func (s *BlogService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Delete(&models.BlogPost{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("blog service: delete post: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// GetBySlug returns one published post for the public site.
func (s *BlogService) GetBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	ctx = ensureContext(ctx)

	var post models.BlogPost
	err := s.db.WithContext(ctx).
		Where("slug = ? AND status = ?", slug, models.PostPublished).
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blog service: get post: %w", err)
	}
	return &post, nil
}

// ListPublished returns a page of published posts, newest first.
func (s *BlogService) ListPublished(ctx context.Context, page, perPage int) ([]models.BlogPost, int64, error) {
	return s.list(ctx, true, page, perPage)
}

// ListAll returns a page of posts in every status for the admin surface.
func (s *BlogService) ListAll(ctx context.Context, page, perPage int) ([]models.BlogPost, int64, error) {
	return s.list(ctx, false, page, perPage)
}

func (s *BlogService) list(ctx context.Context, publishedOnly bool, page, perPage int) ([]models.BlogPost, int64, error) {
	ctx = ensureContext(ctx)

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	query := s.db.WithContext(ctx).Model(&models.BlogPost{})
	if publishedOnly {
		query = query.Where("status = ?", models.PostPublished)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("blog service: count posts: %w", err)
	}

	order := "created_at DESC"
	if publishedOnly {
		order = "published_date DESC"
	}

	var posts []models.BlogPost
	err := query.
		Order(order).
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("blog service: list posts: %w", err)
	}

	return posts, total, nil
}

// Slugify derives a URL-safe slug from a title.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugStripPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
