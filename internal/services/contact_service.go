package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/driftlinehq/driftline-site/internal/models"
	apperrors "github.com/driftlinehq/driftline-site/pkg/errors"
	"github.com/driftlinehq/driftline-site/pkg/logger"
	"github.com/driftlinehq/driftline-site/pkg/mail"
	"github.com/driftlinehq/driftline-site/pkg/validator"
)

var leadStatuses = map[string]bool{
	models.LeadNew:       true,
	models.LeadContacted: true,
	models.LeadQualified: true,
	models.LeadClosed:    true,
}

// ContactSubmission carries one contact-form entry.
type ContactSubmission struct {
	Name            string `json:"name" validate:"required,min=2,max=120"`
	Email           string `json:"email" validate:"required,email"`
	Company         string `json:"company" validate:"max=120"`
	Phone           string `json:"phone" validate:"max=40"`
	Message         string `json:"message" validate:"required,min=10,max=5000"`
	ServiceInterest string `json:"service_interest" validate:"max=120"`
}

// ContactOption customises the ContactService.
type ContactOption func(*ContactService)

// WithContactClock injects a custom time source.
func WithContactClock(clock func() time.Time) ContactOption {
	return func(s *ContactService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLeadNotify sets the address that receives a heads-up email for each
// new lead. Empty disables notification.
func WithLeadNotify(address string) ContactOption {
	return func(s *ContactService) {
		s.notifyAddress = strings.TrimSpace(address)
	}
}

// ContactService stores inbound leads and notifies the team about them.
type ContactService struct {
	db            *gorm.DB
	mailer        mail.Mailer
	notifyAddress string
	now           func() time.Time
	log           *zap.Logger
}

// NewContactService constructs a contact service.
func NewContactService(db *gorm.DB, mailer mail.Mailer, opts ...ContactOption) (*ContactService, error) {
	if db == nil {
		return nil, errors.New("contact service: db is required")
	}

	service := &ContactService{
		db:     db,
		mailer: mailer,
		now:    time.Now,
		log:    logger.WithModule("contact"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Submit validates and persists a lead. The notification email is best
// effort; the lead is stored regardless of its outcome.
func (s *ContactService) Submit(ctx context.Context, submission ContactSubmission) (*models.ContactLead, error) {
	ctx = ensureContext(ctx)

	submission.Name = strings.TrimSpace(submission.Name)
	submission.Email = normaliseEmail(submission.Email)
	submission.Message = strings.TrimSpace(submission.Message)

	if err := validator.ValidateStruct(submission); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	lead := models.ContactLead{
		Name:            submission.Name,
		Email:           submission.Email,
		Company:         strings.TrimSpace(submission.Company),
		Phone:           strings.TrimSpace(submission.Phone),
		Message:         submission.Message,
		ServiceInterest: strings.TrimSpace(submission.ServiceInterest),
		Status:          models.LeadNew,
		SubmittedAt:     s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
		return nil, fmt.Errorf("contact service: create lead: %w", err)
	}

	if s.notifyAddress != "" && mail.Enabled(s.mailer) {
		go s.notify(context.WithoutCancel(ctx), &lead)
	}

	return &lead, nil
}

// List returns a page of leads, newest first, optionally filtered by status.
func (s *ContactService) List(ctx context.Context, status string, page, perPage int) ([]models.ContactLead, int64, error) {
	ctx = ensureContext(ctx)

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.ContactLead{})
	if status != "" {
		if !leadStatuses[status] {
			return nil, 0, apperrors.NewBadRequest("Unknown lead status")
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("contact service: count leads: %w", err)
	}

	var leads []models.ContactLead
	err := query.
		Order("submitted_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&leads).Error
	if err != nil {
		return nil, 0, fmt.Errorf("contact service: list leads: %w", err)
	}

	return leads, total, nil
}

// UpdateStatus moves a lead through the triage pipeline.
func (s *ContactService) UpdateStatus(ctx context.Context, leadID, status string) error {
	ctx = ensureContext(ctx)

	if !leadStatuses[status] {
		return apperrors.NewBadRequest("Unknown lead status")
	}

	result := s.db.WithContext(ctx).
		Model(&models.ContactLead{}).
		Where("id = ?", leadID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("contact service: update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (s *ContactService) notify(ctx context.Context, lead *models.ContactLead) {
	body := fmt.Sprintf("New contact form submission.\n\nName: %s\nEmail: %s\nCompany: %s\nPhone: %s\nInterest: %s\n\n%s\n",
		lead.Name, lead.Email, lead.Company, lead.Phone, lead.ServiceInterest, lead.Message)

	message := mail.Message{
		To:      []string{s.notifyAddress},
		Subject: fmt.Sprintf("New lead: %s", lead.Name),
		Body:    body,
	}
	if err := s.mailer.Send(ctx, message); err != nil {
		s.log.Warn("failed to send lead notification", zap.Error(err))
	}
}
