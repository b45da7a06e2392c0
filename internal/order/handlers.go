package order

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/storeengine/internal/common"
)

// Transitioner is the service surface the HTTP handlers need.
type Transitioner interface {
	Create(ctx context.Context) (Order, error)
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	Transition(ctx context.Context, id uuid.UUID, trigger string) (Order, error)
}

// Handler exposes order status endpoints.
type Handler struct {
	Service Transitioner
}

type statusResponse struct {
	ID                   uuid.UUID    `json:"id"`
	Status               StatusName   `json:"status"`
	Title                string       `json:"title"`
	Version              int64        `json:"version"`
	PossibleTriggers     []string     `json:"possibleTriggers"`
	PossibleNextStatuses []StatusName `json:"possibleNextStatuses"`
}

type transitionRequest struct {
	Trigger string `json:"trigger" validate:"required,max=64"`
}

func newStatusResponse(o Order) statusResponse {
	resp := statusResponse{ID: o.ID, Status: o.Status, Version: o.Version, PossibleTriggers: []string{}, PossibleNextStatuses: []StatusName{}}
	if st, err := Lookup(o.Status); err == nil {
		resp.Title = st.Title()
		resp.PossibleTriggers = st.PossibleTriggers()
		resp.PossibleNextStatuses = st.PossibleNextStatuses()
	}
	return resp
}

// Create handles POST /orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	o, err := h.Service.Create(r.Context())
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": newStatusResponse(o)})
}

// GetStatus handles GET /orders/{id}/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	o, err := h.Service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": newStatusResponse(o)})
}

// Transition handles POST /admin/orders/{id}/transitions.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	o, err := h.Service.Transition(r.Context(), id, req.Trigger)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": newStatusResponse(o)})
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func mapError(err error) error {
	var invalid *InvalidTriggerError
	switch {
	case errors.As(err, &invalid):
		appErr := common.NewAppError("INVALID_TRANSITION", invalid.Error(), http.StatusUnprocessableEntity, err)
		appErr.Details = map[string]any{"trigger": invalid.Trigger, "status": invalid.Status}
		return appErr
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
	case errors.Is(err, ErrStatusConflict):
		return common.NewAppError("CONFLICT", "order status changed concurrently, retry", http.StatusConflict, err)
	case errors.Is(err, ErrUnknownStatus):
		return common.NewAppError("INVALID_STATE", err.Error(), http.StatusConflict, err)
	default:
		return common.NewAppError("INTERNAL", "order operation failed", http.StatusInternalServerError, err)
	}
}
