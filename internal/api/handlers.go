package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"checkbot/internal/models"
	"checkbot/internal/onebot"
)

// maxEventSize bounds the body of a single event post.
const maxEventSize = 1 << 20

// EventDispatcher routes a decoded event to the bot's handlers.
type EventDispatcher interface {
	Dispatch(ctx context.Context, evt *onebot.Event) int
}

// HealthFunc reports the state of one component for the health endpoint.
type HealthFunc func() models.ComponentHealth

// Handlers contains the HTTP handlers for the webhook listener.
type Handlers struct {
	dispatcher EventDispatcher
	version    string
	startedAt  time.Time

	mu     sync.RWMutex
	checks map[string]HealthFunc

	inflight sync.WaitGroup
}

// NewHandlers creates the handlers. version is reported by the health check.
func NewHandlers(dispatcher EventDispatcher, version string) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		version:    version,
		startedAt:  time.Now(),
		checks:     make(map[string]HealthFunc),
	}
}

// AddHealthCheck registers a component reported by GET /health.
func (h *Handlers) AddHealthCheck(name string, fn HealthFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// HandleEvent accepts an event post from the OneBot implementation.
// POST {event_path}
// The event is dispatched in the background and the post is acknowledged
// with 204, so no quick operation is ever returned.
func (h *Handlers) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventSize))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Failed to read event body")
		return
	}

	var evt onebot.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid event payload")
		return
	}
	if evt.PostType == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Missing post_type")
		return
	}

	if evt.PostType == onebot.PostTypeMeta {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		ran := h.dispatcher.Dispatch(ctx, &evt)
		slog.Debug("Event dispatched",
			"post_type", evt.PostType,
			"user_id", evt.UserID,
			"group_id", evt.GroupID,
			"matchers", ran)
	}()

	w.WriteHeader(http.StatusNoContent)
}

// Wait blocks until every dispatched event has been handled or ctx is done.
func (h *Handlers) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := &models.HealthCheckResponse{
		Status:     models.StatusHealthy,
		Timestamp:  time.Now(),
		Version:    h.version,
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
		Components: map[string]models.ComponentHealth{},
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		component := h.checks[name]()
		response.Components[name] = component
		if component.Status != models.StatusHealthy {
			response.Status = models.StatusDegraded
		}
	}
	h.mu.RUnlock()

	h.writeJSONResponse(w, http.StatusOK, response)
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written.
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}
