package httpapi

import (
	"context"
	"net/http"
	"strings"

	"vms/ticket-service/internal/store"
)

const (
	RoleAdmin        = "admin"
	RoleReceptionist = "receptionist"
	RoleApprover     = "approver"
)

type sessionContextKey struct{}

// AuthMiddleware resolves the caller's session before any handler runs.
// Health and metrics stay open so probes and scrapers need no credentials.
func AuthMiddleware(st store.TicketStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}

		sessionID := extractSessionID(r)
		if sessionID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing session token")
			return
		}

		session, err := st.GetSession(r.Context(), sessionID)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isPublicEndpoint(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	switch r.URL.Path {
	case "/healthz", "/api/health", "/metrics":
		return true
	}
	return false
}

// extractSessionID prefers a bearer token, falling back to the X-Session-ID
// header the older clients send.
func extractSessionID(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			return strings.TrimSpace(auth[len("bearer "):])
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func sessionFromContext(ctx context.Context) (store.Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(store.Session)
	return session, ok
}

// requireRole enforces a role gate and writes the 401/403 itself when the
// caller does not pass. Handlers bail out when it returns false.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session token")
		return false
	}
	for _, role := range roles {
		if session.Role == role {
			return true
		}
	}
	writeError(w, http.StatusForbidden, "access_denied", "access denied")
	return false
}
