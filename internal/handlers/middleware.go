package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"carecoins/internal/identity"
	"carecoins/internal/logging"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const PrincipalContextKey ContextKey = "principal"

const corsAllowedHeaders = "Authorization, Content-Type, x-client-info, apikey"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	provider       identity.Provider
	log            *logging.Logger
	allowedOrigins []string
	allowAll       bool
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(provider identity.Provider, log *logging.Logger, allowedOrigins []string) *Middleware {
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
	}
	return &Middleware{
		provider:       provider,
		log:            log,
		allowedOrigins: allowedOrigins,
		allowAll:       allowAll,
	}
}

// RequireAuth is middleware that requires a valid bearer token
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := identity.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			respondWithError(w, m.log.WithContext(r.Context()), http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		principal, err := m.provider.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				respondWithError(w, m.log.WithContext(r.Context()), http.StatusUnauthorized, ErrUnauthorized, "token rejected", err)
				return
			}
			respondWithError(w, m.log.WithContext(r.Context()), http.StatusInternalServerError, ErrInternalServerError, "identity provider failed", err)
			return
		}

		ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
		ctx = logging.WithUserID(ctx, principal.ID)
		next(w, r.WithContext(ctx))
	}
}

// Trace assigns a trace id to every request, reusing X-Trace-ID when present
func (m *Middleware) Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = logging.NewTraceID()
		}
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), traceID)))
	})
}

// Logging middleware logs HTTP requests
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.log.LogRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// CORS answers preflight requests and sets the allow headers for known origins
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if m.allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && m.isOriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
		w.Header().Set("Access-Control-Expose-Headers", "X-Trace-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) isOriginAllowed(origin string) bool {
	for _, allowed := range m.allowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

// Timeout bounds the request context; handlers observe it through ctx
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Chain wraps h so that the first middleware is the outermost
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// GetPrincipalFromContext retrieves the authenticated caller from the request context
func GetPrincipalFromContext(ctx context.Context) *identity.Principal {
	principal, ok := ctx.Value(PrincipalContextKey).(*identity.Principal)
	if !ok {
		return nil
	}
	return principal
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
