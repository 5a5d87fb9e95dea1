package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traininjapan/booking-api/internal/middleware"
	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

const maxBodyBytes = 1 << 20

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims
}

// bindStrict decodes the JSON body into dst rejecting unknown fields and trailing data.
func bindStrict(c *gin.Context, dst interface{}) error {
	if c.Request.Body == nil {
		return appErrors.Clone(appErrors.ErrValidation, "request body required")
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read request body")
	}
	if len(body) > maxBodyBytes {
		return appErrors.Clone(appErrors.ErrValidation, "request body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "request body required")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, describeDecodeError(err))
	}
	if dec.More() {
		return appErrors.Clone(appErrors.ErrValidation, "request body must contain a single JSON object")
	}
	return nil
}

func describeDecodeError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q must be %s", typeErr.Field, typeErr.Type)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "malformed JSON"
	default:
		return "invalid request body: " + err.Error()
	}
}
