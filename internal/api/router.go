package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"spectraconsole/internal/armory"
	"spectraconsole/internal/config"
	"spectraconsole/internal/middleware"
	"spectraconsole/internal/orchestrator"
	"spectraconsole/internal/rate"
	"spectraconsole/internal/service"
	"spectraconsole/internal/session"
	"spectraconsole/internal/util"
	"spectraconsole/internal/version"
)

const maxJSONBodyBytes = 1 << 20

// Pinger is satisfied by storage that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Service      *service.Service
	Limiter      *rate.Limiter
	Orchestrator *orchestrator.Client
	Armory       *armory.Registry
	AuditStore   Pinger
	Logger       *slog.Logger
}

type Handlers struct {
	cfg     config.Config
	svc     *service.Service
	limiter *rate.Limiter
	orch    *orchestrator.Client
	armory  *armory.Registry
	audit   Pinger
	logger  *slog.Logger
}

func NewRouter(cfg config.Config, deps Deps) http.Handler {
	h := &Handlers{
		cfg:     cfg,
		svc:     deps.Service,
		limiter: deps.Limiter,
		orch:    deps.Orchestrator,
		armory:  deps.Armory,
		audit:   deps.AuditStore,
		logger:  deps.Logger,
	}
	if h.limiter == nil {
		h.limiter = rate.NewLimiter()
	}
	if h.orch == nil {
		h.orch = orchestrator.NewClient(cfg, deps.Logger)
	}
	if h.armory == nil {
		h.armory = armory.NewRegistry()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(middleware.SecurityHeaders)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": version.Current()})
	})
	r.Get("/health/ready", h.Ready)

	origin := middleware.OriginGuard(cfg.AllowedOrigins)
	limit := func(route string, n int) func(http.Handler) http.Handler {
		return middleware.RateLimit(h.limiter, route, n, time.Minute)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.With(limit("auth-login", 20), origin, middleware.RequireJSON).Post("/login", h.Login)
		r.With(limit("auth-register", 10), origin, middleware.RequireJSON).Post("/register", h.Register)
		r.With(limit("auth-demo", 20), origin).Post("/demo", h.Demo)
		r.With(limit("auth-logout", 30), origin).Post("/logout", h.Logout)
		r.With(middleware.SessionOnly(h.svc)).Get("/me", h.Me)
		r.With(limit("auth-legal-status", 60)).Get("/legal/status", h.LegalStatus)
		r.With(limit("auth-legal-accept", 20), origin, middleware.RequireJSON).Post("/legal/accept", h.LegalAccept)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Group(func(r chi.Router) {
			r.Use(limit("actions", 60), origin, middleware.RequireJSON, middleware.Authn(h.svc))
			r.Post("/actions/tasks", h.SubmitTask)
			r.Post("/actions/manual-sync", h.ManualSync)
			r.Post("/actions/armory/ingest", h.ArmoryIngest)
			r.Post("/actions/armory/approve", h.ArmoryApprove)
			r.Post("/actions/auth/revoke-tenant", h.RevokeTenant)
			r.Post("/policy-trust/apply", h.PolicyApply)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authn(h.svc))
			r.Get("/armory/authorized", h.ArmoryAuthorized)
			r.Get("/telemetry/events", h.TelemetryEvents)
			r.Get("/defensive/effectiveness", h.DefensiveEffectiveness)
			r.Get("/policy-trust/status", h.PolicyTrustStatus)
			r.Get("/fleet/status", h.FleetStatus)
		})
	})

	return r
}

func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ready := map[string]any{
		"checked_at": time.Now().UTC().Format(time.RFC3339),
	}
	comps := map[string]any{}
	ready["components"] = comps

	ok := true
	if h.audit != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.audit.Ping(ctx); err != nil {
			ok = false
			comps["audit_store"] = map[string]any{"ok": false, "error": err.Error()}
		} else {
			comps["audit_store"] = map[string]any{"ok": true}
		}
	}
	comps["orchestrator"] = map[string]any{"configured": h.orch.Configured()}
	comps["legal"] = map[string]any{"environment": h.svc.Gate().DetectEnvironment()}

	if ok {
		ready["status"] = "ready"
		util.WriteJSON(w, http.StatusOK, ready)
		return
	}
	ready["status"] = "degraded"
	util.WriteJSON(w, http.StatusServiceUnavailable, ready)
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	// MaxAge < 0 is sent as Max-Age=0.
	h.setSessionCookie(w, "", -1)
}

// decodeJSON writes a 400 and returns false when the body is not a single
// JSON value of the expected shape.
func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		util.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return false
	}
	return true
}

// writeValidation maps a service validation error to its field code.
func writeValidation(w http.ResponseWriter, r *http.Request, err error) bool {
	var v *service.ValidationError
	if !errors.As(err, &v) {
		return false
	}
	util.WriteError(w, http.StatusBadRequest, v.Code, "", middleware.RequestID(r.Context()))
	return true
}
