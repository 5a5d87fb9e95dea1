package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedToken = errors.New("invalid token format")
	ErrBadSignature   = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("token expired")
)

// OfferClaim is the payload carried by a waitlist offer link.
type OfferClaim struct {
	WaitlistID string
	CourseID   string
	ExpiresAt  time.Time
}

// OfferSigner issues tamper-proof claim tokens for waitlist offers.
type OfferSigner struct {
	secret []byte
	now    func() time.Time
}

// NewOfferSigner constructs a signer with the provided secret.
func NewOfferSigner(secret string) *OfferSigner {
	return &OfferSigner{secret: []byte(secret), now: time.Now}
}

// Generate returns a token bound to the entry, course and offer expiry.
func (s *OfferSigner) Generate(claim OfferClaim) (string, error) {
	if claim.WaitlistID == "" || claim.CourseID == "" {
		return "", fmt.Errorf("waitlist id and course id required")
	}
	if claim.ExpiresAt.IsZero() {
		return "", fmt.Errorf("offer expiry required")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	ts := strconv.FormatInt(claim.ExpiresAt.Unix(), 10)
	signature := s.sign(claim.WaitlistID, claim.CourseID, ts)
	return strings.Join([]string{claim.WaitlistID, claim.CourseID, ts, signature}, "."), nil
}

// Parse validates a token and returns the embedded claim. Expired offers are rejected.
func (s *OfferSigner) Parse(token string) (*OfferClaim, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, ErrMalformedToken
	}
	waitlistID, courseID, ts, signature := parts[0], parts[1], parts[2], parts[3]

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, ErrMalformedToken
	}

	expected := s.sign(waitlistID, courseID, ts)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrBadSignature
	}
	expiresAt := time.Unix(expUnix, 0).UTC()
	if s.now().After(expiresAt) {
		return nil, ErrTokenExpired
	}
	return &OfferClaim{WaitlistID: waitlistID, CourseID: courseID, ExpiresAt: expiresAt}, nil
}

func (s *OfferSigner) sign(waitlistID, courseID, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(waitlistID + "|" + courseID + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
