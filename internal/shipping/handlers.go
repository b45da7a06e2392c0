package shipping

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storeengine/internal/common"
)

// Handler exposes shipping zone administration and rate lookup endpoints.
type Handler struct {
	Shipping *Shipping
}

type zoneRequest struct {
	Name      string         `json:"name" validate:"required,max=200"`
	Order     int            `json:"order"`
	Locations []ZoneLocation `json:"locations" validate:"dive"`
}

type zonePatchRequest struct {
	Name      *string         `json:"name" validate:"omitempty,min=1,max=200"`
	Order     *int            `json:"order"`
	Locations *[]ZoneLocation `json:"locations" validate:"omitempty,dive"`
}

type addMethodRequest struct {
	MethodID string `json:"methodId" validate:"required,max=64"`
}

type methodRequest struct {
	Name        *string           `json:"name" validate:"omitempty,max=200"`
	Description *string           `json:"description"`
	Order       *int              `json:"order"`
	Enabled     *bool             `json:"enabled"`
	Settings    map[string]string `json:"settings"`
}

type ratesRequest struct {
	Packages []Package `json:"packages" validate:"required,min=1,max=20"`
}

type lookupRequest struct {
	Destination Destination `json:"destination"`
}

// ListZones handles GET /admin/shipping/zones. Zone 0 is listed last.
func (h *Handler) ListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.Shipping.Zones.GetZones(r.Context())
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	rest, err := h.Shipping.Zones.GetZone(r.Context(), RestOfWorldID)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": append(zones, rest)})
}

// GetZone handles GET /admin/shipping/zones/{id}.
func (h *Handler) GetZone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	zone, err := h.Shipping.Zones.GetZone(r.Context(), id)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": zone})
}

// CreateZone handles POST /admin/shipping/zones.
func (h *Handler) CreateZone(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	zone := NewZone(req.Name, req.Order)
	if err := zone.SetLocations(req.Locations); err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	if err := h.Shipping.Zones.SaveZone(r.Context(), zone); err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": zone})
}

// UpdateZone handles PATCH /admin/shipping/zones/{id}.
func (h *Handler) UpdateZone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req zonePatchRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	zone, err := h.Shipping.Zones.GetZone(r.Context(), id)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	if req.Name != nil {
		zone.SetName(*req.Name)
	}
	if req.Order != nil {
		zone.SetOrder(*req.Order)
	}
	if req.Locations != nil {
		if err := zone.SetLocations(*req.Locations); err != nil {
			common.WriteError(w, mapError(err))
			return
		}
	}
	if err := h.Shipping.Zones.SaveZone(r.Context(), &zone); err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": zone})
}

// DeleteZone handles DELETE /admin/shipping/zones/{id}.
func (h *Handler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Shipping.Zones.DeleteZone(r.Context(), id); err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMethod handles POST /admin/shipping/zones/{id}/methods.
func (h *Handler) AddMethod(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req addMethodRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	m, err := h.Shipping.Zones.AddMethod(r.Context(), id, req.MethodID)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": m})
}

// UpdateMethod handles PATCH /admin/shipping/methods/{instanceID}. Settings,
// when sent, replace the stored ones.
func (h *Handler) UpdateMethod(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "instanceID")
	if !ok {
		return
	}
	var req methodRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	m, err := h.Shipping.Store.GetMethod(r.Context(), id)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	if req.Name != nil {
		m.Name = *req.Name
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.Order != nil {
		m.Order = *req.Order
	}
	if req.Enabled != nil {
		m.Enabled = *req.Enabled
	}
	if req.Settings != nil {
		m.Settings = req.Settings
	}
	if err := h.Shipping.Zones.UpdateMethod(r.Context(), m); err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": m})
}

// DeleteMethod handles DELETE /admin/shipping/methods/{instanceID}.
func (h *Handler) DeleteMethod(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "instanceID")
	if !ok {
		return
	}
	if err := h.Shipping.Zones.DeleteMethod(r.Context(), id); err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MethodTypes handles GET /admin/shipping/method-types.
func (h *Handler) MethodTypes(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Shipping.Registry.IDs()})
}

// Rates handles POST /shipping/rates and returns the packages with their rates.
func (h *Handler) Rates(w http.ResponseWriter, r *http.Request) {
	var req ratesRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	for i := range req.Packages {
		req.Packages[i].Rates = nil
	}
	sessionID, _ := common.SessionID(r.Context())
	packages := h.Shipping.CalculateShipping(r.Context(), sessionID, req.Packages)
	for i := range packages {
		if packages[i].Rates == nil {
			packages[i].Rates = []Rate{}
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": packages})
}

// LookupZone handles POST /shipping/zones/lookup and reports which zone a
// destination falls into.
func (h *Handler) LookupZone(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	zone, err := h.Shipping.Zones.GetZoneMatchingPackage(r.Context(), &Package{Destination: req.Destination})
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":        zone.ID,
		"name":      zone.Name,
		"shippable": h.Shipping.IsPackageShippable(&Package{Destination: req.Destination}),
	}})
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id < 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+param, nil)
		return 0, false
	}
	return id, true
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrZoneNotFound):
		return common.NewAppError("NOT_FOUND", "shipping zone not found", http.StatusNotFound, err)
	case errors.Is(err, ErrMethodNotFound):
		return common.NewAppError("NOT_FOUND", "shipping method not found", http.StatusNotFound, err)
	case errors.Is(err, ErrRestOfWorldImmutable):
		return common.NewAppError("INVALID_STATE", "the rest of world zone cannot be changed", http.StatusConflict, err)
	case errors.Is(err, ErrUnknownMethod), errors.Is(err, ErrInvalidSettings),
		errors.Is(err, ErrInvalidLocationType), errors.Is(err, ErrZoneNameRequired):
		return common.NewAppError("VALIDATION_FAILED", err.Error(), http.StatusUnprocessableEntity, err)
	default:
		return common.NewAppError("INTERNAL", "shipping operation failed", http.StatusInternalServerError, err)
	}
}
