package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tofu-suite/tofu/internal/infrastructure/logger"
	"github.com/tofu-suite/tofu/internal/infrastructure/metrics"
)

const requestTimeout = 30 * time.Second

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			reqLogger := s.logger.WithRequestID(values.RequestID)
			latency := float64(values.Latency.Nanoseconds()) / 1000000

			if values.Error != nil {
				reqLogger.Errorw("HTTP request failed",
					"method", values.Method,
					"uri", values.URI,
					"status", values.Status,
					"latency_ms", latency,
					"remote_ip", values.RemoteIP,
					"error", values.Error.Error(),
				)
				return nil
			}

			reqLogger.LogHTTPRequest(values.Method, values.URI, values.UserAgent, values.RemoteIP, values.Status, latency)
			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: splitOrigins(s.config.Security.CORSAllowedOrigins),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.POST, echo.DELETE},
	}))

	// Rate limiting middleware
	if s.config.Security.RateLimitRequests > 0 {
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(s.config.Security.RateLimitRequests),
					Burst:     s.config.Security.RateLimitRequests,
					ExpiresIn: s.config.Security.RateLimitWindow,
				},
			),
			IdentifierExtractor: func(ctx echo.Context) (string, error) {
				return ctx.RealIP(), nil
			},
			ErrorHandler: func(context echo.Context, err error) error {
				return context.JSON(http.StatusForbidden, map[string]string{"message": "rate limit exceeded"})
			},
			DenyHandler: func(context echo.Context, identifier string, err error) error {
				return context.JSON(http.StatusTooManyRequests, map[string]string{"message": "rate limit exceeded"})
			},
		}))
	}

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'self'",
	}))

	// Timeout middleware
	s.echo.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
		Timeout: requestTimeout,
	}))
}

// metricsMiddleware records count and latency per route
func metricsMiddleware(recorder *metrics.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if err != nil && errors.As(err, &he) {
				status = he.Code
			}
			recorder.ObserveRequest(c.Request().Method, c.Path(), status, time.Since(start))

			return err
		}
	}
}

func splitOrigins(origins string) []string {
	var out []string
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		var he *echo.HTTPError
		var ve validator.ValidationErrors
		switch {
		case errors.As(err, &he):
			code = he.Code
			msg = map[string]interface{}{"message": he.Message}
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		case errors.As(err, &ve):
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": ve.Error()}
		default:
			msg = map[string]string{"message": http.StatusText(code)}
		}

		if code >= http.StatusInternalServerError {
			logger.Errorw("Server error", "error", err, "status", code, "path", c.Request().URL.Path)
		}

		// Send response
		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}
