package handler

import (
	"net/http"

	"github.com/anecshop/marketplace/internal/domain/identity"
)

// Identity headers set by the upstream auth gateway. The gateway terminates
// authentication; this service only trusts what it forwards.
const (
	headerUserID    = "X-User-ID"
	headerUserEmail = "X-User-Email"
	headerUserRole  = "X-User-Role"
)

// RequireIdentity rejects requests without a complete forwarded identity
// and injects the actor into the request context.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := identity.Actor{
			ID:    r.Header.Get(headerUserID),
			Email: r.Header.Get(headerUserEmail),
			Role:  identity.Role(r.Header.Get(headerUserRole)),
		}
		if actor.ID == "" || !actor.Role.Valid() {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid forwarded identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
	})
}

// actorFrom pulls the actor injected by RequireIdentity. The middleware
// guarantees presence on every route, so absence is a programming error
// answered with 401 rather than a panic.
func actorFrom(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	a, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "no identity in context")
	}
	return a, ok
}
