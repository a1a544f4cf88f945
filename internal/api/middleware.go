package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"teslo/internal/auth"
	apperrors "teslo/internal/errors"
	"teslo/internal/models"
	"teslo/internal/sentry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userKey = "user"

// requestLogger writes one structured line per request.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// requireAuth resolves the bearer token to an active user and, when roles
// are given, checks that the user holds at least one of them.
func (s *Server) requireAuth(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.auth.Authenticate(auth.BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			s.fail(c, err)
			return
		}
		if len(roles) > 0 && !user.HasAnyRole(roles...) {
			msg := fmt.Sprintf("User %s need a valid role: [%s]", user.FullName, strings.Join(roles, ", "))
			s.fail(c, apperrors.Public(apperrors.ErrForbidden, msg))
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// fail writes err as a JSON error body and aborts the chain.
// Unexpected errors are reported and hidden behind a generic message.
func (s *Server) fail(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	msg := apperrors.Message(err, "")
	if msg == "" {
		switch {
		case status >= http.StatusInternalServerError:
			sentry.CaptureErrorWithContext(c, err, "request failed")
			msg = "Unexpected error, check the logs"
		case errors.Is(err, apperrors.ErrDuplicateKey):
			msg = err.Error()
		default:
			msg = http.StatusText(status)
		}
	}
	c.AbortWithStatusJSON(status, gin.H{
		"statusCode": status,
		"message":    msg,
		"error":      http.StatusText(status),
	})
}

// badRequest wraps a binding or validation failure.
func badRequest(err error) error {
	return apperrors.Public(apperrors.ErrInvalidInput, err.Error())
}
