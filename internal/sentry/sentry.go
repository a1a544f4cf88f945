package sentry

import (
	"fmt"
	"strings"
	"time"

	"teslo/internal/logger"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ignoredErrors contains error messages that should be logged but not sent to Sentry.
// These are typically caused by bots/scanners or normal client disconnects and create noise.
var ignoredErrors = []string{
	"acme/autocert: missing server name",              // TLS connections without SNI
	"first record does not look like a TLS handshake", // Plain TCP connections to the TLS port
	"tls: unsupported SSLv2 handshake received",       // Ancient/invalid handshake (usually scanners)
	"host not configured",                             // TLS SNI is not covered by autocert HostPolicy
	"connection reset by peer",                        // Client disconnected abruptly (sleep mode, network loss)
	"EOF",                                             // Client closed connection without graceful shutdown
	"broken pipe",                                     // Write to closed connection (client already gone)
	"use of closed network connection",                // Operation on already closed connection
	"websocket: close",                                // Peer sent a close frame
	"websocket: the client is not using the websocket protocol",
}

var enabled bool

// Init configures the global Sentry client. An empty DSN leaves reporting off;
// errors are then only logged.
func Init(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	enabled = true
	return nil
}

// Enabled reports whether Init configured a DSN.
func Enabled() bool { return enabled }

// Middleware attaches a Sentry hub to every gin request.
func Middleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true})
}

// Flush waits for buffered events before the process exits.
func Flush() {
	if enabled {
		sentry.Flush(2 * time.Second)
	}
}

// shouldIgnore checks if an error should be filtered out from Sentry.
func shouldIgnore(err error) bool {
	if err == nil {
		return true
	}

	// Idle sockets that never speak end in timeouts; not worth an event.
	type timeoutError interface{ Timeout() bool }
	if te, ok := err.(timeoutError); ok && te.Timeout() {
		return true
	}

	errStr := err.Error()
	for _, ignored := range ignoredErrors {
		if strings.Contains(errStr, ignored) {
			return true
		}
	}
	return false
}

// CaptureError logs an error locally and reports it to Sentry.
// Use this for errors outside of HTTP request context (startup, background tasks).
func CaptureError(err error, message string) {
	logger.Error(message, zap.Error(err))
	if shouldIgnore(err) || !enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetExtra("message", message)
		sentry.CaptureException(err)
	})
}

// CaptureErrorWithContext logs an error and reports it to Sentry with HTTP request context.
func CaptureErrorWithContext(c *gin.Context, err error, message string) {
	if c == nil || c.Request == nil {
		CaptureError(err, message)
		return
	}
	logger.Error(message,
		zap.Error(err),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	)
	if shouldIgnore(err) || !enabled {
		return
	}
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("message", message)
			// Request diagnostics without dumping sensitive headers.
			scope.SetTag("http.method", c.Request.Method)
			scope.SetTag("http.path", c.FullPath())
			scope.SetExtra("http.query", c.Request.URL.RawQuery)
			scope.SetExtra("http.remote_ip", c.ClientIP())
			scope.SetExtra("http.user_agent", c.Request.UserAgent())
			if rid := c.Request.Header.Get("X-Request-Id"); rid != "" {
				scope.SetTag("request_id", rid)
			}
			hub.CaptureException(err)
		})
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetExtra("message", message)
		sentry.CaptureException(err)
	})
}

// CaptureErrorf logs and reports an error with a formatted message.
func CaptureErrorf(err error, format string, args ...interface{}) {
	CaptureError(err, fmt.Sprintf(format, args...))
}
