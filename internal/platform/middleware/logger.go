package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger emits one structured log line per request. Only routing metadata is
// logged; request and response bodies may carry PHI and never reach the log
// stream.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			res := c.Response()
			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			evt = evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())

			// Practice attribution when the request made it past auth or
			// practice scoping. Widget traffic before scoping has neither.
			if pid, ok := c.Get("practice_id").(string); ok && pid != "" {
				evt = evt.Str("practice_id", pid)
			}

			evt.Msg("request")
			return err
		}
	}
}
