package middleware

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/logger"
	"github.com/iliyamo/auth-service/internal/metrics"
)

// RequestLogger assigns a request id (reusing X-Request-ID when sent),
// propagates it through the request context and logs one line per request.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	log = log.Named("http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			c.SetRequest(req.WithContext(logger.ContextWithRequestID(req.Context(), rid)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err) // commit the status before logging it
			}

			log.WithContext(c.Request().Context()).Info("request",
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			)
			return nil
		}
	}
}

// Metrics records request counts and latency per route.
func Metrics(m *metrics.Collectors) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.HTTPRequests.WithLabelValues(path, c.Request().Method, strconv.Itoa(c.Response().Status)).Inc()
			m.HTTPDuration.WithLabelValues(path, c.Request().Method).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
