package service

import (
	"context"
	"fmt"
	"html"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/traininjapan/booking-api/internal/models"
	"github.com/traininjapan/booking-api/pkg/jobs"
	"github.com/traininjapan/booking-api/pkg/mail"
	"github.com/traininjapan/booking-api/pkg/signing"
)

const jobTypeWaitlistOffer = "waitlist_offer"

// NotificationConfig tunes offer delivery.
type NotificationConfig struct {
	Enabled        bool
	Workers        int
	MaxRetries     int
	RetryDelay     time.Duration
	RatePerSecond  int
	ClaimURLPrefix string
}

// NotificationService delivers waitlist offers through a background queue, throttled to the
// provider's send rate.
type NotificationService struct {
	queue    *jobs.Queue
	mailer   mail.Mailer
	signer   *signing.OfferSigner
	limiter  *rate.Limiter
	claimURL string
	enabled  bool
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService constructs the service and its worker queue.
func NewNotificationService(mailer mail.Mailer, signer *signing.OfferSigner, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = mail.NewLogMailer(logger)
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	svc := &NotificationService{
		mailer:   mailer,
		signer:   signer,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond),
		claimURL: strings.TrimRight(cfg.ClaimURLPrefix, "/"),
		enabled:  cfg.Enabled,
		metrics:  metrics,
		logger:   logger,
	}
	svc.queue = jobs.NewQueue("notifications", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains workers. Undelivered offers stay recorded on the waitlist entry.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Stats exposes queue counters.
func (s *NotificationService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// NotifyWaitlistOffer schedules the offer email. Repeated offers for the same entry collapse while
// one is pending.
func (s *NotificationService) NotifyWaitlistOffer(ctx context.Context, offer models.WaitlistOffer) error {
	if !s.enabled {
		s.logger.Info("waitlist offer notification disabled",
			zap.String("waitlist_id", offer.WaitlistID),
			zap.String("course_id", offer.CourseID))
		return nil
	}
	if s.signer != nil {
		token, err := s.signer.Generate(signing.OfferClaim{
			WaitlistID: offer.WaitlistID,
			CourseID:   offer.CourseID,
			ExpiresAt:  offer.ExpiresAt,
		})
		if err != nil {
			return fmt.Errorf("sign waitlist offer: %w", err)
		}
		offer.ClaimToken = token
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeWaitlistOffer,
		Key:     "offer:" + offer.WaitlistID,
		Payload: offer,
	})
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	offer, ok := job.Payload.(models.WaitlistOffer)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, s.offerMessage(offer)); err != nil {
		s.metrics.NotificationResult(false)
		return err
	}
	s.metrics.NotificationResult(true)
	s.logger.Info("waitlist offer sent", zap.String("waitlist_id", offer.WaitlistID), zap.Int("attempt", job.Attempt))
	return nil
}

func (s *NotificationService) offerMessage(offer models.WaitlistOffer) mail.Message {
	expires := offer.ExpiresAt.UTC().Format("2006-01-02 15:04 MST")
	claim := ""
	if s.claimURL != "" && offer.ClaimToken != "" {
		claim = s.claimURL + "/" + offer.ClaimToken
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nA place has opened up in %s. ", offer.StudentName, offer.CourseTitle)
	fmt.Fprintf(&text, "Your offer is held until %s.\n", expires)
	if claim != "" {
		fmt.Fprintf(&text, "\nClaim it here: %s\n", claim)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "<p>Hi %s,</p><p>A place has opened up in <strong>%s</strong>. Your offer is held until %s.</p>",
		html.EscapeString(offer.StudentName), html.EscapeString(offer.CourseTitle), expires)
	if claim != "" {
		fmt.Fprintf(&body, `<p><a href="%s">Claim your place</a></p>`, html.EscapeString(claim))
	}

	return mail.Message{
		To:       []netmail.Address{{Name: offer.StudentName, Address: offer.StudentEmail}},
		Subject:  fmt.Sprintf("A place is available in %s", offer.CourseTitle),
		Text:     text.String(),
		HTML:     body.String(),
		Category: jobTypeWaitlistOffer,
	}
}
