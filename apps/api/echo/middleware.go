package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/somo/core"
)

// metricsMiddleware records every request against its route pattern (not its raw path).
func metricsMiddleware(metrics core.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				// let the error handler write the response so the final status is known
				ctx.Error(err)
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveRequest(ctx.Request().Method, route, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}
