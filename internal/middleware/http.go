package middleware

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"spectraconsole/internal/legal"
	"spectraconsole/internal/rate"
	"spectraconsole/internal/service"
	"spectraconsole/internal/session"
	"spectraconsole/internal/util"
)

func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := uuid.NewString()
		r = r.WithContext(WithRequestID(r.Context(), rid))
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

// ClientKey identifies the caller for rate limiting: the first
// X-Forwarded-For entry, else X-Real-IP, else "unknown".
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
		return "unknown"
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return "unknown"
}

// RateLimit counts hits per route and caller. Routes sharing a route name
// share a bucket.
func RateLimit(l *rate.Limiter, route string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := l.Take(route+":"+ClientKey(r), limit, window)
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				util.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", RequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidOrigin allows requests without an Origin header; otherwise the origin
// must match an allow-list entry exactly.
func ValidOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(allowed, origin)
}

func OriginGuard(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ValidOrigin(r, allowed) {
				util.WriteError(w, http.StatusForbidden, "origin_forbidden", "origin not allowed", RequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func IsJSON(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsJSON(r) {
			util.WriteError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "content type must be application/json", RequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type legalSummary struct {
	Environment          legal.Environment `json:"environment"`
	Reason               string            `json:"reason,omitempty"`
	RequiresReacceptance bool              `json:"requires_reacceptance"`
}

// Authn requires a live session and a compliant legal decision. A legal
// block answers 403 so the UI can route to the acceptance flow instead of
// the login page.
func Authn(svc *service.Service) func(http.Handler) http.Handler {
	return authenticate(svc, true)
}

// SessionOnly requires a live session but skips the legal gate.
func SessionOnly(svc *service.Service) func(http.Handler) http.Handler {
	return authenticate(svc, false)
}

func authenticate(svc *service.Service, enforceLegal bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := RequestID(r.Context())
			token, ok := session.ExtractToken(r)
			if !ok {
				util.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", rid)
				return
			}
			resolve := svc.ValidateSession
			if enforceLegal {
				resolve = svc.Authorize
			}
			u, sess, err := resolve(r.Context(), token)
			if err != nil {
				var legalErr *legal.AcceptanceRequiredError
				if errors.As(err, &legalErr) {
					d := legalErr.Decision
					util.WriteLegalError(w, http.StatusForbidden, legal.CodeLegalAcceptanceRequired, legalErr.Error(), rid, legalSummary{
						Environment:          d.Environment,
						Reason:               d.Reason,
						RequiresReacceptance: d.RequiresReacceptance,
					})
					return
				}
				util.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid session", rid)
				return
			}
			ctx := WithUser(r.Context(), u)
			ctx = WithSession(ctx, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)
			logger.LogAttrs(r.Context(), slog.LevelInfo, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sr.status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", RequestID(r.Context())),
				slog.String("remote_ip", ClientKey(r)),
			)
		})
	}
}
