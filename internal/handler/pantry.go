package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pantrypal-api/internal/clock"
	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/middleware"
	"pantrypal-api/internal/model"
	"pantrypal-api/internal/pantry"
	"pantrypal-api/internal/service"
	"pantrypal-api/pkg/apierror"
	"pantrypal-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

const (
	// firstLoadTimeout bounds how long a read waits for a fresh session's
	// first snapshot.
	firstLoadTimeout = 5 * time.Second

	heartbeatInterval = 25 * time.Second
)

// Sessions hands out per-user pantry services.
type Sessions interface {
	Acquire(user *model.User) (*pantry.Service, func())
}

// ItemAdder creates items from the add-item form.
type ItemAdder interface {
	Create(ctx context.Context, userID string, in service.NewItem) (string, error)
}

// PantryHandler serves a user's inventory.
type PantryHandler struct {
	sessions Sessions
	items    ItemAdder
	clock    clock.Clock
	log      logging.Logger
}

// NewPantryHandler creates a new pantry handler.
func NewPantryHandler(sessions Sessions, items ItemAdder, c clock.Clock, log logging.Logger) *PantryHandler {
	if c == nil {
		c = clock.Real{}
	}
	return &PantryHandler{sessions: sessions, items: items, clock: c, log: logging.For(log, "pantry_handler")}
}

// PantryResponse is the inventory as seen by one request.
type PantryResponse struct {
	Items    []model.PantryItem `json:"items"`
	Sections []pantry.Section   `json:"sections,omitempty"`
	Stats    model.PantryStats  `json:"stats"`
	Total    int                `json:"total"`
	Loading  bool               `json:"loading"`
	Error    string             `json:"error,omitempty"`
}

// viewParams are the search and ordering query parameters.
type viewParams struct {
	query     string
	sortBy    pantry.SortKey
	ascending bool
	grouped   bool
}

func parseViewParams(r *http.Request) (viewParams, error) {
	q := r.URL.Query()
	p := viewParams{query: q.Get("q"), ascending: true}

	by, err := pantry.ParseSortKey(q.Get("sort"))
	if err != nil {
		return p, apierror.ValidationError("", apierror.FieldError{
			Field:   "sort",
			Message: "must be one of name, category, expiration, recent",
		})
	}
	p.sortBy = by

	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		p.ascending = false
	default:
		return p, apierror.ValidationError("", apierror.FieldError{Field: "order", Message: "must be asc or desc"})
	}

	switch strings.ToLower(q.Get("group")) {
	case "", "none":
	case "category":
		p.grouped = true
	default:
		return p, apierror.ValidationError("", apierror.FieldError{Field: "group", Message: "must be category or none"})
	}
	return p, nil
}

func (p viewParams) render(st pantry.State) PantryResponse {
	items := pantry.SortItems(pantry.Search(st.Items, p.query), p.sortBy, p.ascending)
	resp := PantryResponse{
		Items:   items,
		Stats:   st.Stats,
		Total:   len(items),
		Loading: st.Loading,
	}
	if p.grouped {
		resp.Sections = pantry.GroupByCategory(items)
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

// acquire opens the caller's session. The release func must be called.
func (h *PantryHandler) acquire(r *http.Request) (*pantry.Service, func(), error) {
	token := middleware.GetTokenDataFromContext(r.Context())
	if token == nil {
		return nil, nil, apierror.Unauthorized("")
	}
	svc, release := h.sessions.Acquire(token.User())
	return svc, release, nil
}

// awaitLoaded returns the first state that is not loading, or the latest
// state once the timeout passes.
func awaitLoaded(ctx context.Context, svc *pantry.Service, timeout time.Duration) pantry.State {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	last := svc.State()
	for st := range svc.Watch(ctx) {
		last = st
		if !st.Loading {
			break
		}
	}
	return last
}

// Get handles GET /api/v1/pantry
func (h *PantryHandler) Get(w http.ResponseWriter, r *http.Request) {
	params, err := parseViewParams(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	svc, release, err := h.acquire(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	defer release()

	response.OK(w, params.render(awaitLoaded(r.Context(), svc, firstLoadTimeout)))
}

// StatsResponse is the derived statistics of the inventory.
type StatsResponse struct {
	Stats   model.PantryStats `json:"stats"`
	Loading bool              `json:"loading"`
}

// Stats handles GET /api/v1/pantry/stats
func (h *PantryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	svc, release, err := h.acquire(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	defer release()

	st := awaitLoaded(r.Context(), svc, firstLoadTimeout)
	response.OK(w, StatsResponse{Stats: st.Stats, Loading: st.Loading})
}

// Events handles GET /api/v1/pantry/events as a server-sent event stream.
// Every state change is sent as one "state" event.
func (h *PantryHandler) Events(w http.ResponseWriter, r *http.Request) {
	params, err := parseViewParams(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	svc, release, err := h.acquire(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	defer release()

	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.log.Warn("streaming not supported", "error", err)
		return
	}

	ctx := r.Context()
	states := svc.Watch(ctx)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if err := writeEvent(w, "state", params.render(st)); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

// Refresh handles POST /api/v1/pantry/refresh
func (h *PantryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	svc, release, err := h.acquire(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	defer release()

	if err := svc.Refresh(r.Context()); err != nil {
		h.log.Warn("refresh failed", "error", err)
		response.Error(w, apierror.ServiceUnavailable("Could not refresh items"))
		return
	}
	params := viewParams{sortBy: pantry.SortByRecent, ascending: true}
	response.OK(w, params.render(svc.State()))
}

// CreatedItem is the body of a successful add.
type CreatedItem struct {
	ID string `json:"id"`
}

// Create handles POST /api/v1/pantry/items
func (h *PantryHandler) Create(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetTokenDataFromContext(r.Context())
	if token == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}
	var req service.NewItem
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	id, err := h.items.Create(r.Context(), token.UserID, req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Created(w, CreatedItem{ID: id})
}

// Update handles PATCH /api/v1/pantry/items/{id}
func (h *PantryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var upd model.ItemUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		response.Error(w, err)
		return
	}
	if upd.Empty() {
		response.Error(w, apierror.BadRequest("No fields to update"))
		return
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		response.Error(w, apierror.ValidationError("", apierror.FieldError{Field: "name", Message: "is required"}))
		return
	}
	// Keep the stored flag consistent with a new expiration date.
	if upd.ExpirationDate != nil && upd.IsExpired == nil {
		expired := upd.ExpirationDate.Before(h.clock.Now())
		upd.IsExpired = &expired
	}

	svc, release, err := h.acquire(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	defer release()

	if err := svc.UpdateItem(r.Context(), id, upd); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, CreatedItem{ID: id})
}

// Delete handles DELETE /api/v1/pantry/items/{id}
func (h *PantryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	svc, release, err := h.acquire(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	defer release()

	if err := svc.DeleteItem(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.NoContent(w)
}
