package handler

import (
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/bidmaster/internal/model"
    "github.com/iliyamo/bidmaster/internal/repository"
    "github.com/iliyamo/bidmaster/internal/utils"
)

// ItemHandler serves CRUD endpoints for items directly on the repositories.
type ItemHandler struct {
    Items *repository.ItemRepo // ItemRepo provides item persistence
    Users *repository.UserRepo // UserRepo verifies owners
}

// NewItemHandler panics if any dependency is nil.
func NewItemHandler(items *repository.ItemRepo, users *repository.UserRepo) *ItemHandler {
    if items == nil || users == nil {
        panic("nil repository passed to NewItemHandler")
    }
    return &ItemHandler{Items: items, Users: users}
}

// Create handles POST /items/.
func (h *ItemHandler) Create(c echo.Context) error {
    var body struct {
        OwnerID     uint64  `json:"owner_id"`
        Title       string  `json:"title"`
        Description *string `json:"description"`
        YearCreated int     `json:"year_created"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    title := strings.TrimSpace(body.Title)
    if title == "" {
        return badRequest(c, "title is required")
    }
    if body.OwnerID == 0 {
        return badRequest(c, "owner_id is required")
    }
    ctx := c.Request().Context()
    if status, msg := h.checkOwner(c, body.OwnerID); status != 0 {
        return c.JSON(status, echo.Map{"error": msg})
    }
    it := &model.Item{OwnerID: body.OwnerID, Title: title, Description: body.Description, YearCreated: body.YearCreated}
    if err := h.Items.Create(ctx, it); err != nil {
        return h.internal(c, "create item", err)
    }
    return c.JSON(http.StatusOK, it)
}

// List handles GET /items/?skip=&limit=.
func (h *ItemHandler) List(c echo.Context) error {
    skip, limit, err := pagination(c)
    if err != nil {
        return badRequest(c, err.Error())
    }
    items, err := h.Items.List(c.Request().Context(), skip, limit)
    if err != nil {
        return h.internal(c, "list items", err)
    }
    return c.JSON(http.StatusOK, items)
}

// Get handles GET /items/:id.
func (h *ItemHandler) Get(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    it, err := h.Items.GetByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
        }
        return h.internal(c, "get item", err)
    }
    return c.JSON(http.StatusOK, it)
}

// Update handles PUT /items/:id.  Only the fields present in the body are
// changed.
func (h *ItemHandler) Update(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    var body struct {
        OwnerID     *uint64 `json:"owner_id"`
        Title       *string `json:"title"`
        Description *string `json:"description"`
        YearCreated *int    `json:"year_created"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if body.Title != nil {
        t := strings.TrimSpace(*body.Title)
        if t == "" {
            return badRequest(c, "title must not be empty")
        }
        body.Title = &t
    }
    if body.OwnerID != nil {
        if status, msg := h.checkOwner(c, *body.OwnerID); status != 0 {
            return c.JSON(status, echo.Map{"error": msg})
        }
    }
    it, err := h.Items.Update(c.Request().Context(), id, repository.ItemPatch{
        OwnerID:     body.OwnerID,
        Title:       body.Title,
        Description: body.Description,
        YearCreated: body.YearCreated,
    })
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
        }
        return h.internal(c, "update item", err)
    }
    return c.JSON(http.StatusOK, it)
}

// Delete handles DELETE /items/:id.
func (h *ItemHandler) Delete(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    switch err := h.Items.Delete(c.Request().Context(), id); {
    case err == nil:
        return c.JSON(http.StatusOK, echo.Map{"detail": "Item deleted successfully"})
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
    case errors.Is(err, repository.ErrConflict):
        return badRequest(c, "item is referenced by an auction")
    default:
        return h.internal(c, "delete item", err)
    }
}

// checkOwner returns a non-zero status and message when ownerID cannot
// own an item.
func (h *ItemHandler) checkOwner(c echo.Context, ownerID uint64) (int, string) {
    if ownerID == 0 {
        return http.StatusBadRequest, "owner_id is required"
    }
    if _, err := h.Users.GetByID(c.Request().Context(), ownerID); err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return http.StatusNotFound, "owner not found"
        }
        utils.Error("load owner failed", map[string]any{"owner_id": ownerID, "error": err.Error()})
        return http.StatusInternalServerError, "internal server error"
    }
    return 0, ""
}

func (h *ItemHandler) internal(c echo.Context, op string, err error) error {
    utils.Error(op+" failed", map[string]any{"path": c.Request().URL.Path, "error": err.Error()})
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
