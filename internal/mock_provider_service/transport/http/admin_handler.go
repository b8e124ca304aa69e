package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	serviceVersion  = "1.0.0"
)

// AdminStore is the read and maintenance side of the repository.
type AdminStore interface {
	domain.MaintenanceRepository
	ListResources(ctx context.Context, kind domain.ResourceKind, limit, offset int) ([]*domain.Resource, error)
	ListDeliveryEvents(ctx context.Context, kind domain.ResourceKind, sid string) ([]*domain.DeliveryEvent, error)
	GetCallbackLog(ctx context.Context, id int64) (*domain.CallbackLog, error)
	ListCallbackLogs(ctx context.Context, limit, offset int) ([]*domain.CallbackLog, error)
}

// InFlightCounter reports progression runs still running.
type InFlightCounter interface {
	InFlight() int64
}

// AdminHandler serves the unauthenticated utility routes.
type AdminHandler struct {
	store    AdminStore
	runs     InFlightCounter
	provider string
	loc      *time.Location
	logger   *slog.Logger
}

func NewAdminHandler(store AdminStore, runs InFlightCounter, provider string, loc *time.Location, logger *slog.Logger) *AdminHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminHandler{
		store:    store,
		runs:     runs,
		provider: provider,
		loc:      loc,
		logger:   logger.With("handler", "admin"),
	}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Post("/callback-test", h.handleCallbackTest)
	r.Post("/clear/{target}", h.handleClear)

	r.Route("/api", func(r chi.Router) {
		r.Get("/messages", h.handleListResources(domain.ResourceKindMessage))
		r.Get("/calls", h.handleListResources(domain.ResourceKindCall))
		r.Get("/{kind}/{sid}/events", h.handleListEvents)
		r.Get("/callbacks", h.handleListCallbacks)
		r.Get("/callbacks/{id}", h.handleGetCallback)
	})
}

type healthResponse struct {
	Status     string             `json:"status"`
	Version    string             `json:"version"`
	Provider   string             `json:"provider"`
	Timestamp  string             `json:"timestamp"`
	Statistics *domain.Statistics `json:"statistics,omitempty"`
	InFlight   int64              `json:"in_flight_runs"`
}

func (h *AdminHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Version:   serviceVersion,
		Provider:  h.provider,
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000000Z"),
	}
	if h.runs != nil {
		resp.InFlight = h.runs.InFlight()
	}

	stats, err := h.store.Statistics(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Health check failed to read statistics", "error", err)
		resp.Status = "unhealthy"
		writeJSON(w, h.logger, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Statistics = &stats
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *AdminHandler) handleCallbackTest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, h.logger, http.StatusOK, map[string]any{"status": "received"})
		return
	}

	data := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		data[k] = r.PostForm.Get(k)
	}
	h.logger.InfoContext(r.Context(), "Callback test endpoint received", "data", data)
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"status": "received", "data": data})
}

func (h *AdminHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target := chi.URLParam(r, "target")

	var (
		deleted any
		err     error
	)
	switch target {
	case "messages":
		deleted, err = h.store.ClearResources(ctx, domain.ResourceKindMessage)
	case "calls":
		deleted, err = h.store.ClearResources(ctx, domain.ResourceKindCall)
	case "callbacks":
		deleted, err = h.store.ClearCallbackLogs(ctx)
	case "all":
		deleted, err = h.store.ClearAll(ctx)
	default:
		jsonError(w, h.logger, "Unknown clear target: "+target, http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "Clear failed", "target", target, "error", err)
		jsonError(w, h.logger, "Failed to clear "+target, http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "Cleared records", "target", target, "deleted", deleted)
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"deleted": deleted, "type": target})
}

func (h *AdminHandler) handleListResources(kind domain.ResourceKind) http.HandlerFunc {
	key := kind.String() + "s"
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, ok := h.paging(w, r)
		if !ok {
			return
		}
		items, err := h.store.ListResources(r.Context(), kind, limit, offset)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "List resources failed", "kind", kind.String(), "error", err)
			jsonError(w, h.logger, "Failed to list "+key, http.StatusInternalServerError)
			return
		}
		views := make([]ResourceView, 0, len(items))
		for _, res := range items {
			views = append(views, toResourceView(res, h.loc))
		}
		writeJSON(w, h.logger, http.StatusOK, map[string]any{key: views, "limit": limit, "offset": offset})
	}
}

func (h *AdminHandler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseResourceKind(chi.URLParam(r, "kind"))
	if err != nil {
		jsonError(w, h.logger, err.Error(), http.StatusNotFound)
		return
	}
	events, err := h.store.ListDeliveryEvents(r.Context(), kind, chi.URLParam(r, "sid"))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "List events failed", "error", err)
		jsonError(w, h.logger, "Failed to list events", http.StatusInternalServerError)
		return
	}
	views := make([]DeliveryEventView, 0, len(events))
	for _, e := range events {
		views = append(views, toDeliveryEventView(e, h.loc))
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"events": views})
}

func (h *AdminHandler) handleListCallbacks(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}
	logs, err := h.store.ListCallbackLogs(r.Context(), limit, offset)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "List callback logs failed", "error", err)
		jsonError(w, h.logger, "Failed to list callbacks", http.StatusInternalServerError)
		return
	}
	views := make([]CallbackLogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, toCallbackLogView(l, h.loc))
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"callbacks": views, "limit": limit, "offset": offset})
}

func (h *AdminHandler) handleGetCallback(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, h.logger, "Invalid callback id", http.StatusBadRequest)
		return
	}
	l, err := h.store.GetCallbackLog(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			jsonError(w, h.logger, "Callback log not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(r.Context(), "Get callback log failed", "id", id, "error", err)
		jsonError(w, h.logger, "Failed to load callback", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toCallbackLogView(l, h.loc))
}

func (h *AdminHandler) paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, offset = defaultPageSize, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, h.logger, "limit must be a positive integer", http.StatusBadRequest)
			return 0, 0, false
		}
		limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, h.logger, "offset must be a non-negative integer", http.StatusBadRequest)
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
