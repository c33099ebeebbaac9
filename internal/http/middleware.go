package http

import (
	"fmt"
	nethttp "net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/exmatrikulator-bot/internal/common/errors"
)

const requestIDKey = "request_id"

// RequestID tags each request with an id taken from X-Request-ID or generated.
// The id is also attached to the request logger.
func RequestID(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		l := base.With().Str(requestIDKey, requestID).Logger()
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Next()
	}
}

// Logger logs every request after it completes.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		zerolog.Ctx(c.Request.Context()).Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("body_size", c.Writer.Size()).
			Msg("Request processed")
	}
}

// Recovery turns a handler panic into a 500 with an INTERNAL_ERROR body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		zerolog.Ctx(c.Request.Context()).Error().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("panic", fmt.Sprintf("%v", recovered)).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		abortWithError(c, apperrors.New(apperrors.ErrCodeInternal, "Internal server error"))
	})
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func abortWithError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(statusCode(appErr), ErrorResponse{
		Success:   false,
		Code:      string(appErr.Code),
		Message:   appErr.Message,
		RequestID: c.GetString(requestIDKey),
		Timestamp: time.Now().UTC(),
	})
}

func statusCode(appErr *apperrors.AppError) int {
	switch appErr.Code {
	case apperrors.ErrCodeValidation:
		return nethttp.StatusBadRequest
	case apperrors.ErrCodeRateLimit:
		return nethttp.StatusTooManyRequests
	case apperrors.ErrCodeCache, apperrors.ErrCodeDatabase:
		return nethttp.StatusServiceUnavailable
	case apperrors.ErrCodeTelegramAPI:
		return nethttp.StatusBadGateway
	default:
		return nethttp.StatusInternalServerError
	}
}
