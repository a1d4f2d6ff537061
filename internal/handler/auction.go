package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/bidmaster/internal/model"
    "github.com/iliyamo/bidmaster/internal/service"
)

const defaultDurationMinutes = 60

//go:generate mockgen -destination=mock_auction_service.go -package=handler . AuctionService

// AuctionService is the workflow behind the /auctions routes.
type AuctionService interface {
    CreateAuction(ctx context.Context, itemID uint64, startPrice decimal.Decimal, durationMinutes int) (*model.Auction, error)
    GetAuction(ctx context.Context, id uint64) (*model.Auction, error)
    ListAuctions(ctx context.Context, skip, limit int) ([]model.Auction, error)
    PlaceBid(ctx context.Context, auctionID, userID uint64, amount decimal.Decimal) (*service.BidResult, error)
    CloseAuction(ctx context.Context, auctionID uint64) (*service.CloseResult, error)
    DeleteAuction(ctx context.Context, auctionID uint64) error
    ListBids(ctx context.Context, auctionID uint64) ([]model.Bid, error)
    GetEscrow(ctx context.Context, auctionID uint64) (*model.EscrowAccount, error)
}

// AuctionHandler serves the auction endpoints.
type AuctionHandler struct {
    Svc        AuctionService
    Invalidate Invalidator // called after writes that change report data
}

// NewAuctionHandler panics on a nil service.
func NewAuctionHandler(svc AuctionService, invalidate Invalidator) *AuctionHandler {
    if svc == nil {
        panic("nil service passed to NewAuctionHandler")
    }
    return &AuctionHandler{Svc: svc, Invalidate: invalidate}
}

// Create handles POST /auctions/.
func (h *AuctionHandler) Create(c echo.Context) error {
    var body struct {
        ItemID          uint64          `json:"item_id"`
        StartPrice      decimal.Decimal `json:"start_price"`
        DurationMinutes *int            `json:"duration_minutes"` // defaults to 60
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if body.ItemID == 0 {
        return badRequest(c, "item_id is required")
    }
    duration := defaultDurationMinutes
    if body.DurationMinutes != nil {
        duration = *body.DurationMinutes
    }
    a, err := h.Svc.CreateAuction(c.Request().Context(), body.ItemID, body.StartPrice, duration)
    if err != nil {
        return writeError(c, "create auction", err)
    }
    h.Invalidate.run(c.Request().Context())
    return c.JSON(http.StatusOK, a)
}

// List handles GET /auctions/?skip=&limit=.
func (h *AuctionHandler) List(c echo.Context) error {
    skip, limit, err := pagination(c)
    if err != nil {
        return badRequest(c, err.Error())
    }
    list, err := h.Svc.ListAuctions(c.Request().Context(), skip, limit)
    if err != nil {
        return writeError(c, "list auctions", err)
    }
    return c.JSON(http.StatusOK, list)
}

// Get handles GET /auctions/:id.
func (h *AuctionHandler) Get(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    a, err := h.Svc.GetAuction(c.Request().Context(), id)
    if err != nil {
        return writeError(c, "get auction", err)
    }
    return c.JSON(http.StatusOK, a)
}

// Bid handles POST /auctions/:id/bid.  The amount may be sent as a JSON
// number or string.
func (h *AuctionHandler) Bid(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    var body struct {
        UserID uint64          `json:"user_id"`
        Amount decimal.Decimal `json:"amount"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    res, err := h.Svc.PlaceBid(c.Request().Context(), id, body.UserID, body.Amount)
    if err != nil {
        // A bid on an expired auction settles it before being refused.
        if errors.Is(err, service.ErrInvalidState) {
            h.Invalidate.run(c.Request().Context())
        }
        return writeError(c, "place bid", err)
    }
    h.Invalidate.run(c.Request().Context())
    return c.JSON(http.StatusOK, res)
}

// Close handles POST /auctions/:id/close.
func (h *AuctionHandler) Close(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    res, err := h.Svc.CloseAuction(c.Request().Context(), id)
    if err != nil {
        return writeError(c, "close auction", err)
    }
    h.Invalidate.run(c.Request().Context())
    return c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /auctions/:id.
func (h *AuctionHandler) Delete(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    if err := h.Svc.DeleteAuction(c.Request().Context(), id); err != nil {
        return writeError(c, "delete auction", err)
    }
    h.Invalidate.run(c.Request().Context())
    return c.JSON(http.StatusOK, echo.Map{"detail": "Auction deleted"})
}

// Bids handles GET /auctions/:id/bids.
func (h *AuctionHandler) Bids(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    bids, err := h.Svc.ListBids(c.Request().Context(), id)
    if err != nil {
        return writeError(c, "list bids", err)
    }
    return c.JSON(http.StatusOK, bids)
}

// Escrow handles GET /auctions/:id/escrow.
func (h *AuctionHandler) Escrow(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return badRequest(c, err.Error())
    }
    e, err := h.Svc.GetEscrow(c.Request().Context(), id)
    if err != nil {
        return writeError(c, "get escrow", err)
    }
    return c.JSON(http.StatusOK, e)
}
