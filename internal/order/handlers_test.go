package order_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/order"
)

func newRouter(svc *order.Service, store *order.MemoryStore) http.Handler {
	h := &order.Handler{Service: svc}
	admin := &order.AdminHandler{Store: store}
	r := chi.NewRouter()
	r.Post("/orders", h.Create)
	r.Get("/orders/{id}/status", h.GetStatus)
	r.Post("/admin/orders/{id}/transitions", h.Transition)
	r.Get("/admin/orders", admin.List)
	r.Get("/admin/orders/statuses", admin.Statuses)
	return r
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestHandlerTransitionFlow(t *testing.T) {
	store := order.NewMemoryStore()
	svc := &order.Service{Store: store}
	r := newRouter(svc, store)

	rec, env := do(t, r, http.MethodPost, "/orders", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID               string   `json:"id"`
		Status           string   `json:"status"`
		PossibleTriggers []string `json:"possibleTriggers"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Equal(t, "auto-draft", created.Status)
	require.ElementsMatch(t, []string{"update_checkout", "finalized_order", "order_placed"}, created.PossibleTriggers)

	rec, env = do(t, r, http.MethodPost, "/admin/orders/"+created.ID+"/transitions", map[string]string{"trigger": "order_placed"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(env.Data), `"status":"pending_payment"`)

	rec, env = do(t, r, http.MethodPost, "/admin/orders/"+created.ID+"/transitions", map[string]string{"trigger": "completed"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	require.Equal(t, "completed", env.Error.Details["trigger"])
	require.Equal(t, "pending_payment", env.Error.Details["status"])

	rec, env = do(t, r, http.MethodGet, "/orders/"+created.ID+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(env.Data), `"title":"Pending Payment"`)
}

func TestHandlerErrors(t *testing.T) {
	store := order.NewMemoryStore()
	r := newRouter(&order.Service{Store: store}, store)

	rec, _ := do(t, r, http.MethodGet, "/orders/not-a-uuid/status", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := do(t, r, http.MethodGet, "/orders/7f8f5e0e-4f5c-4a39-9a53-0d1f2f0d3c11/status", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", env.Error.Code)

	created, err := store.Create(context.Background(), order.Order{})
	require.NoError(t, err)
	rec, env = do(t, r, http.MethodPost, "/admin/orders/"+created.ID.String()+"/transitions", map[string]string{})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestAdminHandlerList(t *testing.T) {
	ctx := context.Background()
	store := order.NewMemoryStore()
	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, order.Order{Status: order.StatusProcessing})
		require.NoError(t, err)
	}
	r := newRouter(&order.Service{Store: store}, store)

	rec, env := do(t, r, http.MethodGet, "/admin/orders?status=processing&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))
	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)

	rec, _ = do(t, r, http.MethodGet, "/admin/orders?status=processing&page=2&perPage=2", nil)
	var page struct {
		Data       []map[string]any `json:"data"`
		Pagination map[string]int   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	require.Equal(t, map[string]int{"page": 2, "perPage": 2, "total": 3}, page.Pagination)

	rec, _ = do(t, r, http.MethodGet, "/admin/orders?status=shipped", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, r, http.MethodGet, "/admin/orders/statuses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, len(order.AllStatuses()))
}
