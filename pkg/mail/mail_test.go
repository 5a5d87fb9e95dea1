package mail

import (
	"context"
	"errors"
	"net/http"
	netmail "net/mail"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offerMessage() Message {
	return Message{
		To:       []netmail.Address{{Name: "Aiko", Address: "aiko@example.com"}},
		Subject:  "A spot opened up",
		Text:     "Claim it within 24 hours",
		Category: "waitlist_offer",
	}
}

func TestMessageValidate(t *testing.T) {
	assert.NoError(t, offerMessage().Validate())
	assert.ErrorIs(t, Message{Text: "x"}.Validate(), ErrNoRecipients)

	empty := offerMessage()
	empty.Text = ""
	assert.Error(t, empty.Validate())
}

func TestLogMailerSend(t *testing.T) {
	assert.NoError(t, NewLogMailer(nil).Send(context.Background(), offerMessage()))
}

func TestSendGridMailerSend(t *testing.T) {
	m := NewSendGridMailer("key", "Train in Japan", "no-reply@example.com")
	var captured rest.Request
	m.call = func(req rest.Request) (*rest.Response, error) {
		captured = req
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}

	require.NoError(t, m.Send(context.Background(), offerMessage()))
	assert.Equal(t, rest.Method(http.MethodPost), captured.Method)
	assert.Contains(t, string(captured.Body), "aiko@example.com")
	assert.Contains(t, string(captured.Body), "waitlist_offer")
}

func TestSendGridMailerSurfacesFailures(t *testing.T) {
	m := NewSendGridMailer("key", "Train in Japan", "no-reply@example.com")
	m.call = func(req rest.Request) (*rest.Response, error) {
		return &rest.Response{StatusCode: http.StatusTooManyRequests, Body: "slow down"}, nil
	}
	assert.Error(t, m.Send(context.Background(), offerMessage()))

	m.call = func(req rest.Request) (*rest.Response, error) {
		return nil, errors.New("dial tcp")
	}
	assert.Error(t, m.Send(context.Background(), offerMessage()))
}
