package handler // handler package contains the echo HTTP handlers

import (
    "context"
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/bidmaster/internal/service"
    "github.com/iliyamo/bidmaster/internal/utils"
)

const (
    defaultLimit = 10
    maxLimit     = 100
)

// Invalidator drops cached report responses after a write that changes
// report data.  A nil Invalidator is a no-op.
type Invalidator func(ctx context.Context)

func (f Invalidator) run(ctx context.Context) {
    if f != nil {
        f(ctx)
    }
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, errors.New("invalid " + name)
    }
    return id, nil
}

// pagination reads ?skip= and ?limit= (defaults 0 and 10, limit capped at 100).
func pagination(c echo.Context) (skip, limit int, err error) {
    skip, limit = 0, defaultLimit
    if v := c.QueryParam("skip"); v != "" {
        if skip, err = strconv.Atoi(v); err != nil || skip < 0 {
            return 0, 0, errors.New("invalid skip")
        }
    }
    if v := c.QueryParam("limit"); v != "" {
        if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
            return 0, 0, errors.New("invalid limit")
        }
    }
    if limit > maxLimit {
        limit = maxLimit
    }
    return skip, limit, nil
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// writeError maps workflow errors to HTTP responses.  Client errors carry
// their message; internal errors are logged and answered generically.
func writeError(c echo.Context, op string, err error) error {
    switch {
    case errors.Is(err, service.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrConflict),
        errors.Is(err, service.ErrInvalidState),
        errors.Is(err, service.ErrInvalidAmount),
        errors.Is(err, service.ErrInsufficientFunds),
        errors.Is(err, service.ErrValidation):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    utils.Error(op+" failed", map[string]any{
        "path":  c.Request().URL.Path,
        "error": err.Error(),
    })
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
