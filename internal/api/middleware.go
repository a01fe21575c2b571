package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/digkill/magicpixa/internal/config"
	"github.com/digkill/magicpixa/internal/models"
)

const (
	sessionCookie = "magicpixa_session"
	sessionHeader = "X-Session-ID"
	// Clients whose sign-in has not settled send this so no balance is created for a throwaway session.
	identityStateHeader = "X-Identity-State"
)

type ctxKey int

const identityKey ctxKey = iota

func identityFrom(ctx context.Context) models.Identity {
	id, _ := ctx.Value(identityKey).(models.Identity)
	return id
}

func withIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// identityMiddleware resolves the caller: a bearer token, else an anonymous session.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				s.writeError(w, http.StatusUnauthorized, "Invalid authorization header")
				return
			}
			id, err := s.svc.Tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				s.writeError(w, http.StatusUnauthorized, "Invalid identity token")
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
			return
		}

		if strings.EqualFold(r.Header.Get(identityStateHeader), string(models.IdentityLoading)) {
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), models.Identity{State: models.IdentityLoading})))
			return
		}

		sessionID := strings.TrimSpace(r.Header.Get(sessionHeader))
		if sessionID == "" {
			if c, err := r.Cookie(sessionCookie); err == nil {
				sessionID = strings.TrimSpace(c.Value)
			}
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(sessionHeader, sessionID)
		id := models.Identity{State: models.IdentityAnonymous, SessionID: sessionID}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// limiter hands out one token bucket per credit holder.
type limiter struct {
	mu       sync.Mutex
	buckets  *cache.Cache
	interval time.Duration
	burst    int
}

func newLimiter(cfg config.RateLimit) *limiter {
	return &limiter{
		buckets:  cache.New(30*time.Minute, 10*time.Minute),
		interval: cfg.Interval,
		burst:    cfg.Burst,
	}
}

func (l *limiter) allow(key string) bool {
	if l.interval <= 0 || l.burst <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.buckets.Get(key); ok {
		return v.(*rate.Limiter).Allow()
	}
	lim := rate.NewLimiter(rate.Every(l.interval), l.burst)
	l.buckets.Set(key, lim, cache.DefaultExpiration)
	return lim.Allow()
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := identityFrom(r.Context()).Key()
		if key == "" {
			key = "ip:" + r.RemoteAddr
		}
		if !s.limiter.allow(key) {
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(s.limiter.interval.Seconds()))))
			s.writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.opts.AdminUsername || pass != s.opts.AdminPassword {
				w.Header().Set("WWW-Authenticate", `Basic realm="magicpixa"`)
				s.writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
