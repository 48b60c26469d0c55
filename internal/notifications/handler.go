package notifications

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/almoxarifado/almoxarifado/internal/platform/httpx"
	"github.com/almoxarifado/almoxarifado/internal/shared"
)

// Handler exposes the caller's notifications.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the notification handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers /api/notifications routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/unread-count", h.unreadCount)
	r.Post("/read-all", h.markAllRead)
	r.Post("/{id}/read", h.markRead)
	r.Delete("/{id}", h.deactivate)
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
	unread, err := httpx.QueryBoolPtr(r, "unread")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{Owner: shared.ActorFromContext(r.Context()), Page: page, Limit: limit}
	if unread != nil {
		filter.Unread = *unread
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "list notifications failed", err)
		return
	}
	if items == nil {
		items = []Notification{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.UnreadCount(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "count notifications failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.MarkAllRead(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.LogAndRespond(w, h.logger, "mark all notifications read failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.MarkRead(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.LogAndRespond(w, h.logger, "mark notification read failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Deactivate(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		httpx.LogAndRespond(w, h.logger, "deactivate notification failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
