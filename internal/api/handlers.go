package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"throttle/internal/item"
	"throttle/internal/models"
	"throttle/internal/ratelimit"

	"github.com/gorilla/mux"
)

// maxBodyBytes caps request bodies for item writes.
const maxBodyBytes = 1 << 20

// Handlers contains HTTP handlers for the item API
type Handlers struct {
	itemService item.ServiceInterface
	registry    *ratelimit.Registry
	version     string
	startTime   time.Time
}

// HandlerOption configures optional Handlers dependencies.
type HandlerOption func(*Handlers)

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) HandlerOption {
	return func(h *Handlers) { h.version = v }
}

// WithRegistry exposes rate limiter state on the health endpoint.
func WithRegistry(reg *ratelimit.Registry) HandlerOption {
	return func(h *Handlers) { h.registry = reg }
}

// NewHandlers creates a new handlers instance
func NewHandlers(itemService item.ServiceInterface, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		itemService: itemService,
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ListItems handles item list requests
// GET /api/v1/items?limit=&offset=
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	req := &models.ListItemsRequest{}

	var err error
	if req.Limit, err = queryInt(r, "limit"); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "limit must be an integer")
		return
	}
	if req.Offset, err = queryInt(r, "offset"); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "offset must be an integer")
		return
	}

	response, err := h.itemService.ListItems(r.Context(), req)
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetItem handles single item requests
// GET /api/v1/items/{id}
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	response, err := h.itemService.GetItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// CreateItem handles item creation requests
// POST /api/v1/items
func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req models.CreateItemRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	response, err := h.itemService.CreateItem(r.Context(), &req)
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	slog.Info("Item created", "item_id", response.ID)
	w.Header().Set("Location", "/api/v1/items/"+response.ID)
	h.writeJSONResponse(w, http.StatusCreated, response)
}

// UpdateItem handles partial item updates
// PUT /api/v1/items/{id}
func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateItemRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	response, err := h.itemService.UpdateItem(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// DeleteItem handles item deletion requests
// DELETE /api/v1/items/{id}
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	response, err := h.itemService.DeleteItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	slog.Info("Item deleted", "item_id", response.ID)
	h.writeJSONResponse(w, http.StatusOK, response)
}

// HealthCheck handles health check requests
// GET /health, GET /api/v1/health
// Health endpoints are never rate limited.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version
	response.Uptime = time.Since(h.startTime).Round(time.Second).String()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	statusCode := http.StatusOK
	if err := h.itemService.Ping(ctx); err != nil {
		slog.Warn("Health check storage ping failed", "error", err)
		response.Status = models.StatusUnhealthy
		response.AddComponent("storage", models.StatusUnhealthy, "Storage is unreachable")
		statusCode = http.StatusServiceUnavailable
	} else {
		response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
	}
	response.AddComponent("api", models.StatusHealthy, "API is operational")

	if h.registry != nil {
		response.AddComponent("rate_limit", models.StatusHealthy, "Rate limiting is active")
		response.AddMetric("rate_limit_capacity", h.registry.Capacity())
		response.AddMetric("rate_limit_window_ms", h.registry.Window().Milliseconds())
		response.AddMetric("rate_limit_clients", h.registry.Len())
	}

	h.writeJSONResponse(w, statusCode, response)
}

// decodeJSONBody enforces the JSON content type and decodes the body into dst.
// It writes the error response itself and reports whether decoding succeeded.
func (h *Handlers) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "application/json") {
		h.writeErrorResponse(w, http.StatusUnsupportedMediaType, models.ErrorCodeBadRequest, "Content-Type must be application/json")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeErrorResponse(w, http.StatusRequestEntityTooLarge, models.ErrorCodeBadRequest, "Request body too large")
			return false
		}
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "Invalid JSON body")
		return false
	}
	return true
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}

// writeServiceErrorResponse maps service errors to HTTP responses. Internal
// causes are logged, never returned to the client.
func (h *Handlers) writeServiceErrorResponse(w http.ResponseWriter, err error) {
	var svcErr *item.ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.StatusCode >= http.StatusInternalServerError {
			slog.Error("Item service failure", "code", svcErr.Code, "error", err)
		}
		h.writeErrorResponse(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	slog.Error("Unexpected handler error", "error", err)
	h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more can be sent.
		slog.Error("Error encoding JSON response", "error", err)
	}
}

// queryInt parses an optional integer query parameter; absent means zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
