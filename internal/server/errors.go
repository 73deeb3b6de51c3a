package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	auditdomain "github.com/chartschool/chartschool/internal/audit/domain"
	entitlementdomain "github.com/chartschool/chartschool/internal/entitlement/domain"
	"github.com/chartschool/chartschool/internal/gateway"
	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
	"github.com/chartschool/chartschool/internal/reconcile"
	userdomain "github.com/chartschool/chartschool/internal/user/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	// The gateway being down is the caller's problem to retry, never
	// ours: single attempt, honest status.
	var tErr *gateway.TransportError
	if errors.As(err, &tErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_error",
			Message: "upstream access gateway failure",
		}
	}

	switch {
	case errors.Is(err, entitlementdomain.ErrAlreadyActive):
		return http.StatusConflict, errorPayload{
			Type:    "already_active",
			Message: "entitlement already active",
		}
	case errors.Is(err, userdomain.ErrOnboardingIncomplete):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "onboarding_incomplete",
			Message: "user has not completed onboarding",
		}
	case errors.Is(err, indicatordomain.ErrIndicatorUnavailable):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "indicator_unavailable",
			Message: "indicator missing or disabled",
		}
	case errors.Is(err, entitlementdomain.ErrNothingToGrant):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "nothing_to_grant",
			Message: "tier has no active indicators",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "rate limit exceeded",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, entitlementdomain.ErrInvalidDuration),
		errors.Is(err, entitlementdomain.ErrInvalidSource),
		errors.Is(err, entitlementdomain.ErrActorRequired),
		errors.Is(err, indicatordomain.ErrInvalidTier),
		errors.Is(err, auditdomain.ErrInvalidOperation),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrUserNotFound),
		errors.Is(err, reconcile.ErrReportNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if code == "actor_required" {
		return "actor"
	}
	return ""
}
