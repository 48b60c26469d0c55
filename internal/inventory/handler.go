package inventory

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/almoxarifado/almoxarifado/internal/platform/httpx"
	"github.com/almoxarifado/almoxarifado/internal/shared"
)

// IdempotencyHeader carries an optional client key for safe retries.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountMovementRoutes registers /api/movements routes.
func (h *Handler) MountMovementRoutes(r chi.Router) {
	r.Get("/", h.listMovements)
	r.Post("/", h.postMovement)
}

// MountItemStockRoutes registers stock reads under /api/items.
func (h *Handler) MountItemStockRoutes(r chi.Router) {
	r.Get("/{id}/stock", h.itemStock)
	r.Get("/{id}/stock/{locationID}", h.locationStock)
}

func (h *Handler) postMovement(w http.ResponseWriter, r *http.Request) {
	var raw RawMovementRequest
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := ParseMovementRequest(raw)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.Actor = shared.ActorFromContext(r.Context())
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyHeader))

	result, err := h.service.ProcessMovement(r.Context(), req)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "process movement failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

type movementPage struct {
	Data       []Movement        `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMovementFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	moves, total, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "list movements failed", err)
		return
	}
	if moves == nil {
		moves = []Movement{}
	}
	httpx.JSON(w, http.StatusOK, movementPage{Data: moves, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)})
}

func (h *Handler) itemStock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.ListItemStock(r.Context(), id)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "item stock failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) locationStock(w http.ResponseWriter, r *http.Request) {
	itemID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	locationID, err := httpx.IDParam(r, "locationID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	qty, err := h.service.GetStock(r.Context(), itemID, locationID)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "location stock failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, StockEntry{ItemID: itemID, LocationID: locationID, Quantity: qty})
}

func parseMovementFilter(r *http.Request) (MovementFilter, error) {
	q := r.URL.Query()
	page, err := httpx.QueryInt(r, "page", 1)
	if err != nil {
		return MovementFilter{}, err
	}
	limit, err := httpx.QueryInt(r, "limit", shared.DefaultPerPage)
	if err != nil {
		return MovementFilter{}, err
	}
	itemID, err := httpx.QueryInt64Ptr(r, "item_id")
	if err != nil {
		return MovementFilter{}, err
	}
	locationID, err := httpx.QueryInt64Ptr(r, "location_id")
	if err != nil {
		return MovementFilter{}, err
	}
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		return MovementFilter{}, err
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		return MovementFilter{}, err
	}
	if !to.IsZero() {
		to = to.Add(24 * time.Hour)
	}
	page, limit = shared.NormalizePage(page, limit)
	return MovementFilter{
		ItemID:     itemID,
		LocationID: locationID,
		Type:       MovementType(strings.ToUpper(q.Get("type"))),
		From:       from,
		To:         to,
		Page:       page,
		Limit:      limit,
	}, nil
}
