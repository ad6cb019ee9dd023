package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/driftlinehq/driftline-site/internal/models"
	apperrors "github.com/driftlinehq/driftline-site/pkg/errors"
	"github.com/driftlinehq/driftline-site/pkg/logger"
	"github.com/driftlinehq/driftline-site/pkg/mail"
	"github.com/driftlinehq/driftline-site/pkg/metrics"
	"github.com/driftlinehq/driftline-site/pkg/validator"
)

var (
	// ErrAlreadySubscribed is returned when the address is already an active
	// subscriber.
	ErrAlreadySubscribed = apperrors.New(
		"ALREADY_SUBSCRIBED", "This email is already subscribed", http.StatusBadRequest)
	// ErrInvalidEmail rejects malformed subscription addresses.
	ErrInvalidEmail = apperrors.New(
		"VALIDATION_ERROR", "Please provide a valid email address", http.StatusBadRequest)
)

// SubscriberOption customises the SubscriberService.
type SubscriberOption func(*SubscriberService)

// WithSubscriberClock injects a custom time source.
func WithSubscriberClock(clock func() time.Time) SubscriberOption {
	return func(s *SubscriberService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithWelcomeSender overrides how welcome emails are dispatched. Tests use it
// to run the dispatch synchronously.
func WithWelcomeSender(send func(ctx context.Context, email string)) SubscriberOption {
	return func(s *SubscriberService) {
		if send != nil {
			s.sendWelcome = send
		}
	}
}

// SubscriberService manages the newsletter subscriber registry.
type SubscriberService struct {
	db          *gorm.DB
	mailer      mail.Mailer
	now         func() time.Time
	sendWelcome func(ctx context.Context, email string)
	log         *zap.Logger
}

// NewSubscriberService constructs a subscriber service.
func NewSubscriberService(db *gorm.DB, mailer mail.Mailer, opts ...SubscriberOption) (*SubscriberService, error) {
	if db == nil {
		return nil, errors.New("subscriber service: db is required")
	}

	service := &SubscriberService{
		db:     db,
		mailer: mailer,
		now:    time.Now,
		log:    logger.WithModule("subscribers"),
	}
	service.sendWelcome = service.dispatchWelcome

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Subscribe registers an email address. A previously unsubscribed or bounced
// address is reactivated with a fresh subscription timestamp; an address that
// is already active is rejected. New subscribers get a welcome email in the
// background, and its outcome never affects the result.
func (s *SubscriberService) Subscribe(ctx context.Context, email string) (*models.Subscriber, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if err := validator.ValidateVar(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}

	now := s.now()

	var existing models.Subscriber
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&existing).Error
	switch {
	case err == nil:
		if existing.Status == models.SubscriberActive {
			return nil, ErrAlreadySubscribed
		}

		updates := map[string]interface{}{
			"status":        models.SubscriberActive,
			"bounce_reason": "",
			"subscribed_at": now,
		}
		if err := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("subscriber service: reactivate: %w", err)
		}
		existing.Status = models.SubscriberActive
		existing.BounceReason = ""
		existing.SubscribedAt = now
		metrics.SubscriberEvents.WithLabelValues("resubscribed").Inc()
		return &existing, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		subscriber := models.Subscriber{
			Email:        email,
			Status:       models.SubscriberActive,
			SubscribedAt: now,
		}
		if err := s.db.WithContext(ctx).Create(&subscriber).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, ErrAlreadySubscribed
			}
			return nil, fmt.Errorf("subscriber service: create: %w", err)
		}

		metrics.SubscriberEvents.WithLabelValues("subscribed").Inc()
		go s.sendWelcome(context.WithoutCancel(ctx), email)
		return &subscriber, nil

	default:
		return nil, fmt.Errorf("subscriber service: lookup: %w", err)
	}
}

// Unsubscribe deactivates an address whatever its current status. Unknown
// addresses and already unsubscribed ones succeed silently so the operation
// is safe to repeat.
func (s *SubscriberService) Unsubscribe(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if err := validator.ValidateVar(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}

	result := s.db.WithContext(ctx).
		Model(&models.Subscriber{}).
		Where("email = ? AND status <> ?", email, models.SubscriberUnsubscribed).
		Update("status", models.SubscriberUnsubscribed)
	if result.Error != nil {
		return fmt.Errorf("subscriber service: unsubscribe: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.SubscriberEvents.WithLabelValues("unsubscribed").Inc()
	}

	return nil
}

// MarkBounced flags an address as bounced. Bounced subscribers are excluded
// from future sends until they explicitly re-subscribe.
func (s *SubscriberService) MarkBounced(ctx context.Context, email, reason string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Subscriber{}).
		Where("email = ?", normaliseEmail(email)).
		Updates(map[string]any{
			"status":        models.SubscriberBounced,
			"bounce_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("subscriber service: mark bounced: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.SubscriberEvents.WithLabelValues("bounced").Inc()
	}

	return nil
}

// ListActive returns every active subscriber, oldest first.
func (s *SubscriberService) ListActive(ctx context.Context) ([]models.Subscriber, error) {
	ctx = ensureContext(ctx)

	var subscribers []models.Subscriber
	err := s.db.WithContext(ctx).
		Where("status = ?", models.SubscriberActive).
		Order("subscribed_at ASC").
		Find(&subscribers).Error
	if err != nil {
		return nil, fmt.Errorf("subscriber service: list active: %w", err)
	}
	return subscribers, nil
}

var subscriberStatuses = map[string]bool{
	models.SubscriberActive:       true,
	models.SubscriberUnsubscribed: true,
	models.SubscriberBounced:      true,
}

// List returns a page of subscribers, newest first, along with the total
// count. An empty status matches all statuses.
func (s *SubscriberService) List(ctx context.Context, status string, page, perPage int) ([]models.Subscriber, int64, error) {
	ctx = ensureContext(ctx)

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.Subscriber{})
	if status != "" {
		if !subscriberStatuses[status] {
			return nil, 0, apperrors.NewBadRequest("Unknown subscriber status")
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("subscriber service: count: %w", err)
	}

	var subscribers []models.Subscriber
	err := query.
		Order("subscribed_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&subscribers).Error
	if err != nil {
		return nil, 0, fmt.Errorf("subscriber service: list: %w", err)
	}

	return subscribers, total, nil
}

func (s *SubscriberService) dispatchWelcome(ctx context.Context, email string) {
	if !mail.Enabled(s.mailer) {
		return
	}

	message := mail.Message{
		To:      []string{email},
		Subject: "Welcome to the Driftline newsletter",
		Body:    "Thanks for subscribing to the Driftline newsletter.\n\nWe send a short update every few weeks. You can unsubscribe at any time from the link in each issue.\n",
	}
	if err := s.mailer.Send(ctx, message); err != nil {
		s.log.Warn("failed to send welcome email", zap.Error(err))
	}
}
