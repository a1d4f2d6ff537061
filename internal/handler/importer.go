package handler

import (
    "context"
    "errors"
    "io"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/bidmaster/internal/importer"
)

// Importer loads one CSV file of a kind.
type Importer interface {
    Import(ctx context.Context, kind string, src io.Reader) (int, error)
}

// ImportHandler serves POST /import/:kind.
type ImportHandler struct {
    Importer   Importer
    Invalidate Invalidator
}

func NewImportHandler(im Importer, invalidate Invalidator) *ImportHandler {
    if im == nil {
        panic("nil importer passed to NewImportHandler")
    }
    return &ImportHandler{Importer: im, Invalidate: invalidate}
}

// Import reads the multipart field "file" and imports it as :kind.  Any
// row error fails the whole file with 500; the cause is also written to
// system_logs by the importer.
func (h *ImportHandler) Import(c echo.Context) error {
    kind := c.Param("kind")
    if _, ok := importer.Lookup(kind); !ok {
        return badRequest(c, "unknown import kind: "+kind)
    }
    fh, err := c.FormFile("file")
    if err != nil {
        return badRequest(c, "multipart field \"file\" is required")
    }
    f, err := fh.Open()
    if err != nil {
        return badRequest(c, "cannot read uploaded file")
    }
    defer f.Close()

    n, err := h.Importer.Import(c.Request().Context(), kind, f)
    if err != nil {
        if errors.Is(err, importer.ErrUnknownKind) {
            return badRequest(c, err.Error())
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Import failed: " + err.Error()})
    }
    h.Invalidate.run(c.Request().Context())
    return c.JSON(http.StatusOK, echo.Map{"status": "success", "imported_count": n})
}
