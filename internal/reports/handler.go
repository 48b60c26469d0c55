package reports

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/almoxarifado/almoxarifado/internal/inventory"
	"github.com/almoxarifado/almoxarifado/internal/platform/httpx"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// Handler exposes reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the report handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers /api/reports routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.stock)
	r.Get("/movements", h.movements)
	r.Get("/summary", h.summary)
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStockFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.StockReport(r.Context(), filter)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "stock report failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMovementFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.MovementReport(r.Context(), filter)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "movement report failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "summary report failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func parseStockFilter(r *http.Request) (StockFilter, error) {
	q := r.URL.Query()
	filter := StockFilter{Owner: q.Get("owner"), Search: q.Get("search")}
	var err error
	if filter.CategoryID, err = httpx.QueryInt64Ptr(r, "category_id"); err != nil {
		return StockFilter{}, err
	}
	if filter.MinQty, err = httpx.QueryInt64Ptr(r, "min_qty"); err != nil {
		return StockFilter{}, err
	}
	if filter.MaxQty, err = httpx.QueryInt64Ptr(r, "max_qty"); err != nil {
		return StockFilter{}, err
	}
	if raw := q.Get("status"); raw != "" {
		st, err := status.Parse(raw)
		if err != nil {
			return StockFilter{}, fmt.Errorf("%w: %w", shared.ErrValidation, err)
		}
		filter.Status = st
	}
	if filter.Page, err = httpx.QueryInt(r, "page", 1); err != nil {
		return StockFilter{}, err
	}
	if filter.Limit, err = httpx.QueryInt(r, "limit", shared.DefaultPerPage); err != nil {
		return StockFilter{}, err
	}
	return filter, nil
}

func parseMovementFilter(r *http.Request) (MovementFilter, error) {
	q := r.URL.Query()
	filter := MovementFilter{
		Owner: q.Get("owner"),
		Type:  inventory.MovementType(strings.ToUpper(strings.TrimSpace(q.Get("type")))),
	}
	var err error
	if filter.ItemID, err = httpx.QueryInt64Ptr(r, "item_id"); err != nil {
		return MovementFilter{}, err
	}
	if filter.LocationID, err = httpx.QueryInt64Ptr(r, "location_id"); err != nil {
		return MovementFilter{}, err
	}
	if filter.From, err = httpx.QueryDate(r, "from"); err != nil {
		return MovementFilter{}, err
	}
	if filter.To, err = httpx.QueryDate(r, "to"); err != nil {
		return MovementFilter{}, err
	}
	if !filter.To.IsZero() {
		filter.To = filter.To.Add(24 * time.Hour)
	}
	if filter.Page, err = httpx.QueryInt(r, "page", 1); err != nil {
		return MovementFilter{}, err
	}
	if filter.Limit, err = httpx.QueryInt(r, "limit", shared.DefaultPerPage); err != nil {
		return MovementFilter{}, err
	}
	return filter, nil
}
