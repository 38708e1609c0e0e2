package api

import (
	"brainapi/internal/engine"
	"brainapi/internal/logging"
	"brainapi/internal/models"
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	categoryImports = "Imports"
	categoryExports = "Exports"

	arrowStreamMIME = "application/vnd.apache.arrow.stream"
)

type Handler struct {
	svc            *engine.Service
	refreshTimeout time.Duration
}

// NewHandler serves queries against svc. refreshTimeout bounds each
// refresh triggered over HTTP.
func NewHandler(svc *engine.Service, refreshTimeout time.Duration) *Handler {
	return &Handler{svc: svc, refreshTimeout: refreshTimeout}
}

// RegisterRoutes mounts the API under /api. refreshMW wraps only the
// refresh routes.
func (h *Handler) RegisterRoutes(e *echo.Echo, refreshMW ...echo.MiddlewareFunc) {
	api := e.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/raw", h.GetRaw)
	api.GET("/raw.arrow", h.GetRawArrow)
	api.GET("/pie", h.GetPie)
	api.GET("/search", h.GetSummary)
	api.GET("/summary", h.GetSummary)
	api.GET("/imports/by-country", h.GetImportsByCountry)
	api.GET("/import-names", h.GetImportNames)
	api.GET("/export-names", h.GetExportNames)
	api.GET("/names", h.GetNames)
	api.GET("/refresh", h.Refresh, refreshMW...)
	api.POST("/refresh", h.Refresh, refreshMW...)
	api.POST("/in-use", h.SetInUse)
}

// --- HANDLERS ---

// withSnapshot answers 503 until the first dataset is published.
func (h *Handler) withSnapshot(c echo.Context, view func(ds *engine.Dataset) any) error {
	ds, err := h.svc.Snapshot()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, view(ds))
}

func (h *Handler) GetStatus(c echo.Context) error {
	st := h.svc.Status()
	total, loaded := h.svc.Rows()
	return c.JSON(http.StatusOK, models.StatusResponse{
		DataLoaded:  loaded,
		Total:       total,
		LastUpdated: models.FormatTime(st.LastUpdated),
		Fetched:     st.Fetched,
		Ready:       st.Ready,
		InUse:       st.InUse,
	})
}

func (h *Handler) GetRaw(c echo.Context) error {
	return h.withSnapshot(c, func(ds *engine.Dataset) any { return engine.RawRows(ds) })
}

// GetRawArrow streams the current snapshot in Arrow IPC stream format.
// The status line is already sent when the stream starts, so a failed
// write can only be logged; the client sees a truncated stream.
func (h *Handler) GetRawArrow(c echo.Context) error {
	ds, err := h.svc.Snapshot()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: err.Error()})
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, arrowStreamMIME)
	res.WriteHeader(http.StatusOK)
	if err := ds.WriteIPC(res); err != nil {
		logging.Error().Err(err).
			Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
			Int("rows", ds.Len()).
			Int64("bytes_written", res.Size).
			Msg("arrow stream aborted")
	}
	return nil
}

// category -> count
func (h *Handler) GetPie(c echo.Context) error {
	return h.withSnapshot(c, func(ds *engine.Dataset) any { return engine.GroupByCategory(ds) })
}

// country -> count
func (h *Handler) GetSummary(c echo.Context) error {
	return h.withSnapshot(c, func(ds *engine.Dataset) any { return engine.GroupByCountry(ds) })
}

func (h *Handler) GetImportsByCountry(c echo.Context) error {
	return h.withSnapshot(c, func(ds *engine.Dataset) any {
		return engine.GroupWhere(ds, engine.FieldCountry, engine.FieldCategory, categoryImports)
	})
}

func (h *Handler) GetImportNames(c echo.Context) error {
	return h.withSnapshot(c, func(ds *engine.Dataset) any {
		return engine.UniqueNamesWhereCategory(ds, categoryImports)
	})
}

func (h *Handler) GetExportNames(c echo.Context) error {
	return h.withSnapshot(c, func(ds *engine.Dataset) any {
		return engine.UniqueNamesWhereCategory(ds, categoryExports)
	})
}

// GetNames is the general form of import-names/export-names: ?category=X.
func (h *Handler) GetNames(c echo.Context) error {
	category := c.QueryParam("category")
	if category == "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "category query parameter is required"})
	}
	return h.withSnapshot(c, func(ds *engine.Dataset) any {
		return engine.UniqueNamesWhereCategory(ds, category)
	})
}

// Refresh re-ingests the dataset. The run is detached from the client
// connection so a dropped request does not abort a half-done refresh.
func (h *Handler) Refresh(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), h.refreshTimeout)
	defer cancel()

	res, err := h.svc.Refresh(ctx)
	if err != nil {
		return c.JSON(http.StatusBadGateway, models.RefreshFailure{OK: false, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, models.RefreshResponse{
		OK:          true,
		Total:       res.Total,
		LastUpdated: models.FormatTime(res.LastUpdated),
	})
}

// SetInUse marks the dataset as in use by a consumer: {"in_use": true}.
func (h *Handler) SetInUse(c echo.Context) error {
	var req models.InUseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: errorMessage(err)})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	}

	h.svc.SetInUse(*req.InUse)
	return h.GetStatus(c)
}
