package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"transhub/internal/logger"
)

// RequestIDMiddleware tags each request with a UUID for log correlation.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := uuid.NewString()
			c.Set("request_id", id)
			c.Response().Header().Set("X-Request-Id", id)
			return next(c)
		}
	}
}

// RequestLoggerMiddleware logs HTTP requests through the shared logger.
func RequestLoggerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			requestID, _ := c.Get("request_id").(string)

			args := []any{
				"module", "http", "action", "request", "resource", "http",
				"method", req.Method,
				"path", req.URL.Path,
				"status_code", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestID,
			}
			switch {
			case res.Status >= 500:
				logger.Error("http request", append(args, "result", "failed")...)
			case res.Status >= 400:
				logger.Warn("http request", append(args, "result", "failed")...)
			default:
				logger.Debug("http request", append(args, "result", "ok")...)
			}
			return nil
		}
	}
}
