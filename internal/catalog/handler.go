package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/almoxarifado/almoxarifado/internal/platform/httpx"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// Handler wires HTTP endpoints for categories and items.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountCategoryRoutes registers /api/categories routes.
func (h *Handler) MountCategoryRoutes(r chi.Router) {
	r.Get("/", h.listCategories)
	r.Post("/", h.createCategory)
	r.Delete("/{id}", h.deleteCategory)
}

// MountItemRoutes registers /api/items routes.
func (h *Handler) MountItemRoutes(r chi.Router) {
	r.Get("/", h.listItems)
	r.Post("/", h.createItem)
	r.Get("/{id}", h.getItem)
	r.Put("/{id}", h.updateItem)
	r.Delete("/{id}", h.deactivateItem)
	r.Put("/{id}/image", h.uploadImage)
}

type itemPage struct {
	Data       []Item            `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.ListCategories(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "list categories failed", err)
		return
	}
	if cats == nil {
		cats = []Category{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": cats})
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var input CategoryInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.Owner = shared.ActorFromContext(r.Context())
	cat, err := h.service.CreateCategory(r.Context(), input)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "create category failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cat)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		httpx.LogAndRespond(w, h.logger, "delete category failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
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
	categoryID, err := httpx.QueryInt64Ptr(r, "category_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	active, err := httpx.QueryBoolPtr(r, "active")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ItemFilter{
		Owner:      q.Get("owner"),
		CategoryID: categoryID,
		Search:     q.Get("search"),
		Active:     active,
		Page:       page,
		Limit:      limit,
	}
	if raw := q.Get("status"); raw != "" {
		st, err := status.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		filter.Status = st
	}
	items, total, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "list items failed", err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	httpx.JSON(w, http.StatusOK, itemPage{Data: items, Pagination: shared.NewPagination(page, limit, total)})
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var input ItemInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), shared.ActorFromContext(r.Context()), input)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "create item failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "get item failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input ItemInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, input)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "update item failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deactivateItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.DeactivateItem(r.Context(), id)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "deactivate item failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	body := http.MaxBytesReader(w, r.Body, MaxImageBytes+1)
	item, err := h.service.SetImage(r.Context(), id, r.Header.Get("Content-Type"), body)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "upload item image failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}
