package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/traininjapan/booking-api/internal/models"
	"github.com/traininjapan/booking-api/pkg/mail"
	"github.com/traininjapan/booking-api/pkg/signing"
)

type channelMailer struct {
	sent chan mail.Message
}

func (m *channelMailer) Send(ctx context.Context, msg mail.Message) error {
	m.sent <- msg
	return nil
}

func testOffer() models.WaitlistOffer {
	return models.WaitlistOffer{
		WaitlistID:   "wl-1",
		CourseID:     "course-1",
		CourseTitle:  "Kendo <Basics>",
		StudentName:  "Aiko",
		StudentEmail: "aiko@example.com",
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
	}
}

func TestNotificationServiceDeliversSignedOffer(t *testing.T) {
	mailer := &channelMailer{sent: make(chan mail.Message, 1)}
	signer := signing.NewOfferSigner("offer-secret")
	metrics := NewMetricsService()
	svc := NewNotificationService(mailer, signer, NotificationConfig{
		Enabled:        true,
		Workers:        1,
		RatePerSecond:  10,
		ClaimURLPrefix: "https://traininjapan.example/claim/",
	}, metrics, zap.NewNop())
	svc.Start(context.Background())
	defer svc.Stop()

	require.NoError(t, svc.NotifyWaitlistOffer(context.Background(), testOffer()))

	select {
	case msg := <-mailer.sent:
		require.Len(t, msg.To, 1)
		assert.Equal(t, "aiko@example.com", msg.To[0].Address)
		assert.Equal(t, "A place is available in Kendo <Basics>", msg.Subject)
		assert.Contains(t, msg.HTML, "Kendo &lt;Basics&gt;")
		assert.Equal(t, jobTypeWaitlistOffer, msg.Category)

		idx := strings.Index(msg.Text, "https://traininjapan.example/claim/")
		require.GreaterOrEqual(t, idx, 0)
		token := strings.TrimSpace(msg.Text[idx+len("https://traininjapan.example/claim/"):])
		claim, err := signer.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, "wl-1", claim.WaitlistID)
		assert.Equal(t, "course-1", claim.CourseID)
	case <-time.After(2 * time.Second):
		t.Fatal("offer email was not sent")
	}
}

func TestNotificationServiceDisabledSkipsQueue(t *testing.T) {
	mailer := &channelMailer{sent: make(chan mail.Message, 1)}
	svc := NewNotificationService(mailer, nil, NotificationConfig{Enabled: false}, nil, nil)

	require.NoError(t, svc.NotifyWaitlistOffer(context.Background(), testOffer()))
	assert.Zero(t, svc.Stats().Pending)
	assert.Empty(t, mailer.sent)
}

func TestNotificationServiceRequiresStartedQueue(t *testing.T) {
	svc := NewNotificationService(nil, nil, NotificationConfig{Enabled: true}, nil, nil)
	err := svc.NotifyWaitlistOffer(context.Background(), testOffer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}
