package order

import (
	"context"
	"net/http"
	"strconv"

	"github.com/noah-isme/storeengine/internal/common"
)

// Lister lists persisted orders.
type Lister interface {
	List(ctx context.Context, status StatusName, limit, offset int) ([]Order, int64, error)
}

// AdminHandler provides administrative order endpoints.
type AdminHandler struct {
	Store Lister
}

// List handles GET /admin/orders?status=&page=&limit=.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	status := StatusName(r.URL.Query().Get("status"))
	if status != "" {
		if _, err := Lookup(status); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status", nil)
			return
		}
	}
	page := common.ParsePagination(r, 20, 100)
	orders, total, err := h.Store.List(r.Context(), status, page.PerPage, page.Offset())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	out := make([]statusResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, newStatusResponse(o))
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": out,
		"pagination": common.Pagination{Page: page.Page, PerPage: page.PerPage, Total: int(total)},
	})
}

// Statuses handles GET /admin/orders/statuses and describes the state machine.
func (h *AdminHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	type statusInfo struct {
		Status               StatusName   `json:"status"`
		Title                string       `json:"title"`
		PossibleTriggers     []string     `json:"possibleTriggers"`
		PossibleNextStatuses []StatusName `json:"possibleNextStatuses"`
	}
	out := make([]statusInfo, 0, len(AllStatuses()))
	for _, name := range AllStatuses() {
		st, err := Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, statusInfo{
			Status:               st.Status(),
			Title:                st.Title(),
			PossibleTriggers:     st.PossibleTriggers(),
			PossibleNextStatuses: st.PossibleNextStatuses(),
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}
