package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/driftlinehq/driftline-site/internal/models"
	apperrors "github.com/driftlinehq/driftline-site/pkg/errors"
)

// ContentService serves the static marketing content: case studies and
// testimonials. Both are read-mostly and managed out of band, so the
// service only exposes reads plus simple admin writes.
type ContentService struct {
	db *gorm.DB
}

// NewContentService constructs a content service.
func NewContentService(db *gorm.DB) (*ContentService, error) {
	if db == nil {
		return nil, errors.New("content service: db is required")
	}
	return &ContentService{db: db}, nil
}

// ListCaseStudies returns published case studies, optionally filtered by
// industry or solution type.
func (s *ContentService) ListCaseStudies(ctx context.Context, industry, solutionType string) ([]models.CaseStudy, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).
		Where("status = ?", models.PostPublished).
		Order("published_date DESC")
	if industry != "" {
		query = query.Where("industry = ?", industry)
	}
	if solutionType != "" {
		query = query.Where("solution_type = ?", solutionType)
	}

	var studies []models.CaseStudy
	if err := query.Find(&studies).Error; err != nil {
		return nil, fmt.Errorf("content service: list case studies: %w", err)
	}
	return studies, nil
}

// GetCaseStudyBySlug returns one published case study.
func (s *ContentService) GetCaseStudyBySlug(ctx context.Context, slug string) (*models.CaseStudy, error) {
	ctx = ensureContext(ctx)

	var study models.CaseStudy
	err := s.db.WithContext(ctx).
		Where("slug = ? AND status = ?", slug, models.PostPublished).
		Take(&study).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("content service: get case study: %w", err)
	}
	return &study, nil
}

// ListTestimonials returns testimonials, featured first.
func (s *ContentService) ListTestimonials(ctx context.Context, featuredOnly bool) ([]models.Testimonial, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("featured DESC, created_at ASC")
	if featuredOnly {
		query = query.Where("featured = ?", true)
	}

	var testimonials []models.Testimonial
	if err := query.Find(&testimonials).Error; err != nil {
		return nil, fmt.Errorf("content service: list testimonials: %w", err)
	}
	return testimonials, nil
}

// SaveCaseStudy creates or updates a case study from the admin surface.
func (s *ContentService) SaveCaseStudy(ctx context.Context, study *models.CaseStudy) error {
	ctx = ensureContext(ctx)

	if err := s.db.WithContext(ctx).Save(study).Error; err != nil {
		if isUniqueConstraintError(err) {
			return apperrors.NewBadRequest("A case study with this slug already exists")
		}
		return fmt.Errorf("content service: save case study: %w", err)
	}
	return nil
}

// SaveTestimonial creates or updates a testimonial from the admin surface.
func (s *ContentService) SaveTestimonial(ctx context.Context, testimonial *models.Testimonial) error {
	ctx = ensureContext(ctx)

	if err := s.db.WithContext(ctx).Save(testimonial).Error; err != nil {
		return fmt.Errorf("content service: save testimonial: %w", err)
	}
	return nil
}
