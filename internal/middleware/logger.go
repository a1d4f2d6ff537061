package middleware

import (
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/bidmaster/internal/utils"
)

// RequestLogger logs method, path, status and latency of every request.
func RequestLogger(next echo.HandlerFunc) echo.HandlerFunc {
    return func(c echo.Context) error {
        start := time.Now()
        err := next(c)
        if err != nil {
            // let echo's error handler write the response before we read the status
            c.Error(err)
        }
        utils.Info("HTTP Request", map[string]any{
            "method":  c.Request().Method,
            "path":    c.Request().URL.Path,
            "route":   c.Path(),
            "status":  c.Response().Status,
            "latency": time.Since(start).String(),
        })
        return nil
    }
}
