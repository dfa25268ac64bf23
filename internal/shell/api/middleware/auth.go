// Package middleware provides HTTP middleware for the autodeploy API.
package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// =============================================================================
// Auth Configuration
// =============================================================================

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// Tokens are the accepted bearer tokens. If empty, authentication is
	// disabled and every request passes.
	Tokens []string

	// Logger for auth middleware logging.
	Logger *slog.Logger
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware checks bearer tokens on API requests.
type AuthMiddleware struct {
	digests [][sha256.Size]byte
	logger  *slog.Logger
}

// NewAuthMiddleware creates a new auth middleware with the given config.
func NewAuthMiddleware(cfg AuthConfig) *AuthMiddleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := &AuthMiddleware{logger: cfg.Logger}
	for _, t := range cfg.Tokens {
		if t = strings.TrimSpace(t); t != "" {
			m.digests = append(m.digests, sha256.Sum256([]byte(t)))
		}
	}
	return m
}

// Enabled reports whether any token is configured.
func (m *AuthMiddleware) Enabled() bool {
	return len(m.digests) > 0
}

// Handler returns the middleware handler function.
// The token is read from "Authorization: Bearer <token>". GET requests may
// pass it as the access_token query parameter instead, which websocket
// clients in browsers need.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			m.logger.Warn("unauthenticated request to protected endpoint",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
				"method", r.Method,
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="autodeploy"`)
			writeJSONError(w, http.StatusUnauthorized, "authentication required", "unauthorized")
			return
		}
		if !m.valid(token) {
			m.logger.Warn("invalid API token",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			writeJSONError(w, http.StatusForbidden, "invalid token", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// valid compares digests in constant time so token length does not leak.
func (m *AuthMiddleware) valid(token string) bool {
	sum := sha256.Sum256([]byte(token))
	ok := 0
	for _, d := range m.digests {
		ok |= subtle.ConstantTimeCompare(sum[:], d[:])
	}
	return ok == 1
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// =============================================================================
// JSON Error Response
// =============================================================================

// ErrorResponse matches the error format of the API handlers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}
