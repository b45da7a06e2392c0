package shipping_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/common"
	"github.com/noah-isme/storeengine/internal/shipping"
)

func newRouter(svc *shipping.Shipping) http.Handler {
	h := &shipping.Handler{Shipping: svc}
	r := chi.NewRouter()
	r.Use(common.SessionMiddleware)
	r.Get("/admin/shipping/zones", h.ListZones)
	r.Post("/admin/shipping/zones", h.CreateZone)
	r.Get("/admin/shipping/zones/{id}", h.GetZone)
	r.Patch("/admin/shipping/zones/{id}", h.UpdateZone)
	r.Delete("/admin/shipping/zones/{id}", h.DeleteZone)
	r.Post("/admin/shipping/zones/{id}/methods", h.AddMethod)
	r.Patch("/admin/shipping/methods/{instanceID}", h.UpdateMethod)
	r.Delete("/admin/shipping/methods/{instanceID}", h.DeleteMethod)
	r.Get("/admin/shipping/method-types", h.MethodTypes)
	r.Post("/shipping/rates", h.Rates)
	r.Post("/shipping/zones/lookup", h.LookupZone)
	return r
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(common.SessionHeader, "handler-test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestZoneAdminFlow(t *testing.T) {
	svc := shipping.New(shipping.Settings{Enabled: true, PriceDecimals: 2}, shipping.NewMemoryStore(), nil, nil, nil, nil, zerolog.Nop())
	router := newRouter(svc)

	rec, env := do(t, router, http.MethodPost, "/admin/shipping/zones", map[string]any{
		"name":      "Canada",
		"locations": []map[string]string{{"code": "CA", "type": "country"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var zone shipping.Zone
	require.NoError(t, json.Unmarshal(env.Data, &zone))
	require.NotZero(t, zone.ID)
	zonePath := fmt.Sprintf("/admin/shipping/zones/%d", zone.ID)

	rec, env = do(t, router, http.MethodPost, zonePath+"/methods", map[string]string{"methodId": "flat_rate"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var method shipping.ZoneMethod
	require.NoError(t, json.Unmarshal(env.Data, &method))
	methodPath := fmt.Sprintf("/admin/shipping/methods/%d", method.InstanceID)

	rec, _ = do(t, router, http.MethodPatch, methodPath, map[string]any{"settings": map[string]string{"cost": "7.5"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = do(t, router, http.MethodPost, "/shipping/rates", map[string]any{
		"packages": []map[string]any{{
			"contents":    []map[string]any{{"key": "a", "quantity": 1, "lineTotal": "10"}},
			"destination": map[string]string{"country": "CA", "postcode": "K1A 0B1"},
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var packages []shipping.Package
	require.NoError(t, json.Unmarshal(env.Data, &packages))
	require.Len(t, packages[0].Rates, 1)
	requireMoney(t, "7.5", packages[0].Rates[0].Cost)

	rec, env = do(t, router, http.MethodPost, "/shipping/zones/lookup", map[string]any{"destination": map[string]string{"country": "MX"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":0,"name":"Locations not covered by your other zones","shippable":true}`, string(env.Data))

	rec, _ = do(t, router, http.MethodPatch, zonePath, map[string]any{"name": "Canada & Alaska", "locations": []map[string]string{{"code": "CA", "type": "country"}, {"code": "US:AK", "type": "state"}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = do(t, router, http.MethodGet, "/admin/shipping/zones", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var zones []shipping.Zone
	require.NoError(t, json.Unmarshal(env.Data, &zones))
	require.Len(t, zones, 2)
	require.Equal(t, "Canada & Alaska", zones[0].Name)
	require.Len(t, zones[0].Locations, 2)
	require.Equal(t, shipping.RestOfWorldID, zones[1].ID)

	rec, _ = do(t, router, http.MethodDelete, methodPath, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = do(t, router, http.MethodDelete, zonePath, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec, env = do(t, router, http.MethodGet, zonePath, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestZoneAdminErrors(t *testing.T) {
	svc := shipping.New(shipping.Settings{Enabled: true}, shipping.NewMemoryStore(), nil, nil, nil, nil, zerolog.Nop())
	router := newRouter(svc)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{name: "missing name", method: http.MethodPost, path: "/admin/shipping/zones", body: map[string]any{"locations": []any{}}, status: http.StatusUnprocessableEntity, code: "VALIDATION_FAILED"},
		{name: "bad location type", method: http.MethodPost, path: "/admin/shipping/zones", body: map[string]any{"name": "X", "locations": []map[string]string{{"code": "X", "type": "planet"}}}, status: http.StatusUnprocessableEntity, code: "VALIDATION_FAILED"},
		{name: "unknown field", method: http.MethodPost, path: "/admin/shipping/zones", body: map[string]any{"name": "X", "colour": "red"}, status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "bad id", method: http.MethodGet, path: "/admin/shipping/zones/abc", status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "rest of world delete", method: http.MethodDelete, path: "/admin/shipping/zones/0", status: http.StatusConflict, code: "INVALID_STATE"},
		{name: "rest of world rename", method: http.MethodPatch, path: "/admin/shipping/zones/0", body: map[string]any{"name": "Mars"}, status: http.StatusConflict, code: "INVALID_STATE"},
		{name: "unknown method type", method: http.MethodPost, path: "/admin/shipping/zones/0/methods", body: map[string]string{"methodId": "teleport"}, status: http.StatusUnprocessableEntity, code: "VALIDATION_FAILED"},
		{name: "missing method", method: http.MethodDelete, path: "/admin/shipping/methods/77", status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "no packages", method: http.MethodPost, path: "/shipping/rates", body: map[string]any{"packages": []any{}}, status: http.StatusUnprocessableEntity, code: "VALIDATION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, router, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestMethodTypes(t *testing.T) {
	svc := shipping.New(shipping.Settings{}, shipping.NewMemoryStore(), nil, nil, nil, nil, zerolog.Nop())
	rec, env := do(t, newRouter(svc), http.MethodGet, "/admin/shipping/method-types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `["flat_rate","free_shipping","local_pickup"]`, string(env.Data))
}
