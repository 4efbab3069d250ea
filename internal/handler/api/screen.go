package api

import (
	"errors"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"EmaScreen/internal/domain/models"
	"EmaScreen/internal/domain/repository"
	"EmaScreen/internal/usecase"
	xhttp "EmaScreen/pkg/http"
	"EmaScreen/pkg/logger"
)

// Handler serves the screening API.
type Handler struct {
	screener *usecase.Screener
	updater  *usecase.Updater
	history  repository.HistoryStore
	logger   *logger.Logger

	universe map[string]struct{}
	total    int
}

// NewHandler creates the API handler.
func NewHandler(
	screener *usecase.Screener,
	updater *usecase.Updater,
	history repository.HistoryStore,
	registry repository.Registry,
	log *logger.Logger,
) *Handler {
	symbols := registry.Symbols()
	universe := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		universe[s] = struct{}{}
	}
	return &Handler{
		screener: screener,
		updater:  updater,
		history:  history,
		logger:   log,
		universe: universe,
		total:    len(symbols),
	}
}

// RegisterRoutes mounts the API on the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/screen", h.Screen)
	g.POST("/update", h.TriggerUpdate)
	g.GET("/status", h.Status)
	g.GET("/history/:symbol", h.History)

	e.GET("/healthz", h.Health)
}

// Screen returns the instruments matching the position and band filters,
// plus universe-level counts. Warming-up instruments never appear in rows.
func (h *Handler) Screen(c echo.Context) error {
	req := new(models.ScreenRequest)
	if payload := xhttp.ReadAndValidateRequest(c, req); payload != nil {
		return xhttp.BadRequestResponse(c, payload)
	}

	rows := make([]models.ScreenRow, 0)
	for _, e := range h.screener.SnapshotAll() {
		if !e.Ready() {
			continue
		}
		pos := e.PositionToEma()
		if req.Position != "all" && string(pos) != req.Position {
			continue
		}
		if req.WithinBand && !e.WithinBand(req.BandPct) {
			continue
		}
		rows = append(rows, models.ScreenRow{
			Symbol:      e.Symbol,
			LastClose:   e.LastClose,
			EmaValue:    e.EmaValue,
			DistancePct: e.DistancePct(),
			Position:    pos,
			UpdatedAt:   e.UpdatedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })

	return xhttp.SuccessResponse(c, map[string]interface{}{
		"rows":    rows,
		"summary": h.screener.Summary(h.total),
	})
}

// TriggerUpdate kicks off a batch run unless one is already active.
func (h *Handler) TriggerUpdate(c echo.Context) error {
	result, err := h.updater.TriggerUpdate(c.Request().Context())
	if err != nil {
		if errors.Is(err, models.ErrRunActive) {
			// a trigger that lands during a run is a no-op, not a fault
			return xhttp.SuccessResponse(c, models.TriggerResult{
				Started: false,
				Reason:  "an update run is already active",
			})
		}
		h.logger.Error("trigger update failed", logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, result)
}

// Status reports the orchestrator state and outstanding run counts.
func (h *Handler) Status(c echo.Context) error {
	status, err := h.updater.Status(c.Request().Context())
	if err != nil {
		h.logger.Error("status read failed", logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, status)
}

// History returns the stored bars for one instrument, optionally bounded
// by from/to dates.
func (h *Handler) History(c echo.Context) error {
	symbol := c.Param("symbol")
	if _, ok := h.universe[symbol]; !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("unknown symbol: "+symbol))
	}

	req := new(models.HistoryRequest)
	if payload := xhttp.ReadAndValidateRequest(c, req); payload != nil {
		return xhttp.BadRequestResponse(c, payload)
	}
	from := xhttp.ParseTimeDefault(req.From, time.Time{})
	to := xhttp.ParseTimeDefault(req.To, time.Now().UTC())

	bars, err := h.history.ReadRange(c.Request().Context(), symbol, from, to)
	if err != nil {
		h.logger.Error("history read failed", logger.String("symbol", symbol), logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.ListResponse(c, bars, int64(len(bars)))
}

// Health reports storage reachability.
func (h *Handler) Health(c echo.Context) error {
	if err := h.history.Health(c.Request().Context()); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("storage unreachable").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
