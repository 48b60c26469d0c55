package locations

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/almoxarifado/almoxarifado/internal/platform/httpx"
	"github.com/almoxarifado/almoxarifado/internal/shared"
)

// Handler exposes the registry over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the location handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers /api/locations routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.deactivate)
	r.Post("/{id}/activate", h.activate)
}

type listResponse struct {
	Data       []Location        `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.QueryInt(r, "page", 1)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit", shared.DefaultPerPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	active, err := httpx.QueryBoolPtr(r, "active")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{
		Owner:  r.URL.Query().Get("owner"),
		Search: r.URL.Query().Get("search"),
		Active: active,
		Page:   page,
		Limit:  limit,
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "list locations failed", err)
		return
	}
	if items == nil {
		items = []Location{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: items, Pagination: shared.NewPagination(page, limit, total)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.Owner = shared.ActorFromContext(r.Context())
	loc, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "create location failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, loc)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	loc, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "get location failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	loc, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "update location failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	loc, err := h.service.Deactivate(r.Context(), id)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "deactivate location failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	loc, err := h.service.Activate(r.Context(), id)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "activate location failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}
