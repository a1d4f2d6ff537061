package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/bidmaster/internal/repository"
)

// ReportSource reads the rows of a reporting view.
type ReportSource interface {
    Rows(ctx context.Context, report repository.Report) ([]map[string]any, error)
}

// ReportHandler serves the /analytics endpoints.
type ReportHandler struct {
    Reports ReportSource
}

func NewReportHandler(src ReportSource) *ReportHandler {
    if src == nil {
        panic("nil report source passed to NewReportHandler")
    }
    return &ReportHandler{Reports: src}
}

// ActiveLots handles GET /analytics/active-lots.
func (h *ReportHandler) ActiveLots(c echo.Context) error {
    return h.serve(c, repository.ReportActiveLots)
}

// CategorySales handles GET /analytics/category-sales.
func (h *ReportHandler) CategorySales(c echo.Context) error {
    return h.serve(c, repository.ReportCategorySales)
}

// TopBidders handles GET /analytics/top-bidders.
func (h *ReportHandler) TopBidders(c echo.Context) error {
    return h.serve(c, repository.ReportTopBidders)
}

func (h *ReportHandler) serve(c echo.Context, report repository.Report) error {
    rows, err := h.Reports.Rows(c.Request().Context(), report)
    if err != nil {
        return writeError(c, "report "+string(report), err)
    }
    return c.JSON(http.StatusOK, rows)
}
