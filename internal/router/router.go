package router // package router registers the HTTP routes of the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bidmaster/internal/handler"
)

// RegisterRoutes registers routes that need no dependencies.  Currently it
// exposes only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuctions registers the auction workflow.  bidLimit guards the
// bid endpoint; pass a pass-through middleware to disable it.
func RegisterAuctions(e *echo.Echo, h *handler.AuctionHandler, bidLimit echo.MiddlewareFunc) {
	g := e.Group("/auctions")
	for _, root := range []string{"", "/"} {
		g.POST(root, h.Create)
		g.GET(root, h.List)
	}
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/bid", h.Bid, bidLimit)
	g.POST("/:id/close", h.Close)
	g.GET("/:id/bids", h.Bids)
	g.GET("/:id/escrow", h.Escrow)
}

// RegisterItems registers the item CRUD endpoints.
func RegisterItems(e *echo.Echo, h *handler.ItemHandler) {
	g := e.Group("/items")
	for _, root := range []string{"", "/"} {
		g.POST(root, h.Create)
		g.GET(root, h.List)
	}
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// RegisterImport registers POST /import/:kind.
func RegisterImport(e *echo.Echo, h *handler.ImportHandler) {
	e.POST("/import/:kind", h.Import)
}

// RegisterAnalytics registers the report endpoints behind the response
// cache.
func RegisterAnalytics(e *echo.Echo, h *handler.ReportHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/analytics", cache)
	g.GET("/active-lots", h.ActiveLots)
	g.GET("/category-sales", h.CategorySales)
	g.GET("/top-bidders", h.TopBidders)
}
