package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/services"
)

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var partial *core.PartialImportError
	switch {
	case errors.As(err, &partial):
		return http.StatusInternalServerError
	case core.IsValidation(err),
		errors.Is(err, core.ErrMalformedBackup),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotAuthenticated), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, services.ErrCloudDisabled), errors.Is(err, services.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage keeps internal failures out of response bodies.
func errorMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusUnauthorized:
		return "a valid bearer token is required"
	case http.StatusNotFound:
		if errors.Is(err, core.ErrNoData) {
			return "there is no data for this request yet"
		}
	case http.StatusServiceUnavailable:
		if errors.Is(err, services.ErrCloudDisabled) {
			return "cloud backup is not configured on this server"
		}
		return "server is shutting down"
	}
	return err.Error()
}

// writeError aborts the request with the mapped status and a JSON body.
// Partial imports also report how many records made it in.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		log.FromContext(ctx).ErrorContext(ctx, "Request failed",
			log.FieldPath, c.FullPath(),
			log.FieldError, err)
	}

	body := gin.H{"error": errorMessage(status, err)}
	var partial *core.PartialImportError
	if errors.As(err, &partial) {
		body["error"] = "import stopped part way; the records counted as inserted were saved"
		body["inserted"] = partial.Inserted
		body["failed"] = partial.Failed
	}
	c.AbortWithStatusJSON(status, body)
}
