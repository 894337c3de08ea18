package http

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"fleet-monitor/geofence/internal/auth"
)

type operatorKey struct{}

// Operator returns the operator id the auth middleware resolved for this
// request, empty outside the authenticated API.
func Operator(ctx context.Context) string {
	id, _ := ctx.Value(operatorKey{}).(string)
	return id
}

type AuthMiddleware struct {
	auth *auth.Authenticator
}

func NewAuthMiddleware(a *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: a}
}

// Wrap rejects requests without a valid X-API-Key and stamps the resolved
// operator id onto the request context for the handlers' audit logs.
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing X-API-Key header"})
			return
		}

		operatorID, ok := m.auth.Authenticate(r.Context(), apiKey)
		if !ok {
			log.Warn().Str("path", r.URL.Path).Msg("Rejected request with invalid API key")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorKey{}, operatorID)))
	})
}
