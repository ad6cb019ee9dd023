package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/driftlinehq/driftline-site/internal/models"
	apperrors "github.com/driftlinehq/driftline-site/pkg/errors"
	"github.com/driftlinehq/driftline-site/pkg/logger"
	"github.com/driftlinehq/driftline-site/pkg/mail"
	"github.com/driftlinehq/driftline-site/pkg/metrics"
)

const (
	defaultSendBatchSize = 10
	defaultBatchDelay    = time.Second
)

// bouncePatterns are matched case-insensitively against provider error text
// to separate dead addresses from transient delivery failures.
var bouncePatterns = []string{"bounce", "invalid", "not found"}

// Newsletter is the message for one bulk send. FromEmail and FromName are
// optional; when empty the mailer's configured sender is used.
type Newsletter struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	FromEmail string `json:"from_email,omitempty"`
	FromName  string `json:"from_name,omitempty"`
}

func (n Newsletter) fromHeader() string {
	email := strings.TrimSpace(n.FromEmail)
	if email == "" {
		return ""
	}
	if name := strings.TrimSpace(n.FromName); name != "" {
		return fmt.Sprintf("%s <%s>", name, email)
	}
	return email
}

// SendReport summarises one bulk send.
type SendReport struct {
	Success bool     `json:"success"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
	Bounced []string `json:"bounced,omitempty"`
}

// NewsletterOption customises the NewsletterService.
type NewsletterOption func(*NewsletterService)

// WithBatchSize sets how many recipients are attempted concurrently.
func WithBatchSize(size int) NewsletterOption {
	return func(s *NewsletterService) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithBatchDelay sets the pause between consecutive batches.
func WithBatchDelay(d time.Duration) NewsletterOption {
	return func(s *NewsletterService) {
		if d >= 0 {
			s.batchDelay = d
		}
	}
}

// NewsletterService fans a newsletter out to subscribers in rate-limited
// batches and records the outcome.
type NewsletterService struct {
	db          *gorm.DB
	subscribers *SubscriberService
	mailer      mail.Mailer
	batchSize   int
	batchDelay  time.Duration
	log         *zap.Logger
}

// NewNewsletterService constructs a newsletter service.
func NewNewsletterService(db *gorm.DB, subscribers *SubscriberService, mailer mail.Mailer, opts ...NewsletterOption) (*NewsletterService, error) {
	if db == nil {
		return nil, errors.New("newsletter service: db is required")
	}
	if subscribers == nil {
		return nil, errors.New("newsletter service: subscriber service is required")
	}

	service := &NewsletterService{
		db:          db,
		subscribers: subscribers,
		mailer:      mailer,
		batchSize:   defaultSendBatchSize,
		batchDelay:  defaultBatchDelay,
		log:         logger.WithModule("newsletter"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Send delivers the message to each recipient in batches. Recipients within
// a batch are attempted concurrently; between batches the service pauses so
// the upstream provider is not flooded. onBounce is invoked once per address
// whose failure looks like a hard bounce, after that address's batch settles.
// A partial failure does not abort the run.
func (s *NewsletterService) Send(ctx context.Context, recipients []string, msg Newsletter, onBounce func(email, reason string)) (*SendReport, error) {
	ctx = ensureContext(ctx)

	if !mail.Enabled(s.mailer) {
		return nil, apperrors.ErrServiceUnavailable
	}

	// Once a run starts it completes every batch; the caller going away must
	// not change which recipients get attempted.
	ctx = context.WithoutCancel(ctx)

	report := &SendReport{}
	if len(recipients) == 0 {
		report.Success = true
		return report, nil
	}

	from := msg.fromHeader()

	for start := 0; start < len(recipients); start += s.batchSize {
		end := start + s.batchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batch := recipients[start:end]

		type bouncedAddress struct {
			email  string
			reason string
		}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			bounced []bouncedAddress
		)

		for _, email := range batch {
			wg.Add(1)
			go func(email string) {
				defer wg.Done()

				err := s.mailer.Send(ctx, mail.Message{
					From:    from,
					To:      []string{email},
					Subject: msg.Subject,
					Body:    msg.Body,
					HTML:    true,
				})

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failed++
					report.Errors = append(report.Errors, fmt.Sprintf("Failed to send to %s: %v", email, err))
					metrics.NewsletterEmails.WithLabelValues("failed").Inc()
					if looksLikeBounce(err) {
						bounced = append(bounced, bouncedAddress{email: email, reason: err.Error()})
					}
					return
				}
				report.Sent++
				metrics.NewsletterEmails.WithLabelValues("sent").Inc()
			}(email)
		}

		wg.Wait()

		for _, b := range bounced {
			report.Bounced = append(report.Bounced, b.email)
			metrics.NewsletterEmails.WithLabelValues("bounced").Inc()
			if onBounce != nil {
				onBounce(b.email, b.reason)
			}
		}

		if end < len(recipients) && s.batchDelay > 0 {
			time.Sleep(s.batchDelay)
		}
	}

	report.Success = report.Failed == 0
	return report, nil
}

// SendToActive sends the newsletter to every active subscriber, marks hard
// bounces in the registry, and persists an audit record of the run.
func (s *NewsletterService) SendToActive(ctx context.Context, msg Newsletter, sentBy string) (*SendReport, error) {
	ctx = ensureContext(ctx)

	msg.Subject = strings.TrimSpace(msg.Subject)
	if msg.Subject == "" || strings.TrimSpace(msg.Body) == "" {
		return nil, apperrors.NewBadRequest("Subject and body are required")
	}

	active, err := s.subscribers.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	recipients := make([]string, len(active))
	for i, subscriber := range active {
		recipients[i] = subscriber.Email
	}

	report, err := s.Send(ctx, recipients, msg, func(email, reason string) {
		if markErr := s.subscribers.MarkBounced(ctx, email, reason); markErr != nil {
			s.log.Error("failed to mark subscriber bounced", zap.Error(markErr))
		}
	})
	if err != nil {
		return report, err
	}

	if auditErr := s.recordSend(ctx, msg.Subject, len(recipients), report, sentBy); auditErr != nil {
		// The emails are already out; losing the audit row is worth a log
		// line, not a failed request.
		s.log.Error("failed to record newsletter send", zap.Error(auditErr))
	}

	s.log.Info("newsletter send finished",
		zap.Int("recipients", len(recipients)),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("bounced", len(report.Bounced)),
	)

	return report, nil
}

// History returns past sends, newest first.
func (s *NewsletterService) History(ctx context.Context, limit int) ([]models.NewsletterSend, error) {
	ctx = ensureContext(ctx)

	if limit < 1 || limit > 100 {
		limit = 20
	}

	var sends []models.NewsletterSend
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&sends).Error
	if err != nil {
		return nil, fmt.Errorf("newsletter service: history: %w", err)
	}
	return sends, nil
}

func (s *NewsletterService) recordSend(ctx context.Context, subject string, recipients int, report *SendReport, sentBy string) error {
	errorsJSON, err := json.Marshal(report.Errors)
	if err != nil {
		return fmt.Errorf("newsletter service: marshal errors: %w", err)
	}
	bouncedJSON, err := json.Marshal(report.Bounced)
	if err != nil {
		return fmt.Errorf("newsletter service: marshal bounced: %w", err)
	}

	record := models.NewsletterSend{
		Subject:    subject,
		Recipients: recipients,
		Sent:       report.Sent,
		Failed:     report.Failed,
		Errors:     datatypes.JSON(errorsJSON),
		Bounced:    datatypes.JSON(bouncedJSON),
		SentBy:     sentBy,
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

func looksLikeBounce(err error) bool {
	message := strings.ToLower(err.Error())
	for _, pattern := range bouncePatterns {
		if strings.Contains(message, pattern) {
			return true
		}
	}
	return false
}
