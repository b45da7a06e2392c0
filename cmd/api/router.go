package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storeengine/internal/app"
	"github.com/noah-isme/storeengine/internal/auth"
	"github.com/noah-isme/storeengine/internal/cart"
	"github.com/noah-isme/storeengine/internal/common"
	"github.com/noah-isme/storeengine/internal/config"
	"github.com/noah-isme/storeengine/internal/health"
	"github.com/noah-isme/storeengine/internal/obs"
	"github.com/noah-isme/storeengine/internal/order"
	"github.com/noah-isme/storeengine/internal/ratelimit"
	"github.com/noah-isme/storeengine/internal/security"
	"github.com/noah-isme/storeengine/internal/shipping"
)

type routerDeps struct {
	Config   *config.Config
	Services *app.Services
	Redis    redis.UniversalClient
	Probes   []health.Probe
	Metrics  *obs.HTTPMetrics
	Tracing  bool
	Logger   zerolog.Logger
}

func newRouter(d routerDeps) http.Handler {
	cfg, svc, logger := d.Config, d.Services, d.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(common.SessionMiddleware)
	r.Use(obs.RoutePatternMiddleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", common.IdempotencyHeader, common.SessionHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{HSTSMaxAge: hstsMaxAge(cfg)}.Middleware)
	r.Use(security.BodyLimit{}.Middleware)

	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{Probes: d.Probes, Logger: logger}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	cartHandler := &cart.Handler{Service: svc.Cart, DisplayPricesIncTax: cfg.Store.DisplayPricesIncTax}
	shippingHandler := &shipping.Handler{Shipping: svc.Shipping}
	orderHandler := &order.Handler{Service: svc.Orders}
	orderAdmin := &order.AdminHandler{Store: svc.OrderStore}

	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	limit := ratelimit.Handler{
		Limiter: svc.Limiter,
		Key:     ratelimit.BySession,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	admin := auth.Middleware{Verifier: svc.Verifier, Scope: app.AdminScope}

	r.Route("/api/v1", func(v chi.Router) {
		v.Group(func(public chi.Router) {
			public.Use(limit.Middleware)
			public.Post("/cart/totals", cartHandler.CalculateTotals)
			public.Post("/shipping/rates", shippingHandler.Rates)
			public.Post("/shipping/zones/lookup", shippingHandler.LookupZone)
		})

		v.Route("/orders", func(o chi.Router) {
			o.With(idem.Middleware).Post("/", orderHandler.Create)
			o.Get("/{id}/status", orderHandler.GetStatus)
		})
	})

	r.Route("/admin", func(a chi.Router) {
		a.Use(admin.RequireScope)
		a.Get("/orders", orderAdmin.List)
		a.Get("/orders/statuses", orderAdmin.Statuses)
		a.With(idem.Middleware).Post("/orders/{id}/transitions", orderHandler.Transition)

		a.Route("/shipping", func(s chi.Router) {
			s.Get("/method-types", shippingHandler.MethodTypes)
			s.Get("/zones", shippingHandler.ListZones)
			s.Post("/zones", shippingHandler.CreateZone)
			s.Get("/zones/{id}", shippingHandler.GetZone)
			s.Patch("/zones/{id}", shippingHandler.UpdateZone)
			s.Delete("/zones/{id}", shippingHandler.DeleteZone)
			s.Post("/zones/{id}/methods", shippingHandler.AddMethod)
			s.Patch("/methods/{instanceID}", shippingHandler.UpdateMethod)
			s.Delete("/methods/{instanceID}", shippingHandler.DeleteMethod)
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func hstsMaxAge(cfg *config.Config) int {
	if cfg.IsProduction() {
		return 31536000
	}
	return 0
}
