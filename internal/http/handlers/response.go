// Package handlers implements the HTTP endpoints of the donation backend.
//
// Response helpers in this file keep every endpoint, webhook ingestion and
// read APIs alike, on the same wire shape. Failures always carry an
// ErrorResponse with a stable `code` (see errors.go) so dispatch clients and
// overlay pages can branch without parsing message text; 5xx failures are
// additionally logged through the request-scoped logger.
//
// A 404 looks like:
//
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "donation not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamrig/go-donation-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope shared by every endpoint.
type ErrorResponse struct {
	// Echo of the X-Request-ID header so callers can quote it in reports.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message, safe to surface to operators
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with an ErrorResponse at the given status.
// Statuses at or above 500 are logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail exposes fail to the router for fallback routes (404, 405) so they
// share the handler error envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes a bodiless 204.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
