package handler

import (
	"net/http"
	"strings"

	"github.com/xenking/storefront/internal/domain/auth"
)

// authenticate resolves the bearer token and stores the identity in the
// request context.
func (h *Handler) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			fail(w, r, auth.ErrUnauthenticated)
			return
		}
		id, err := h.sessions.Verify(r.Context(), token)
		if err != nil {
			fail(w, r, err)
			return
		}
		next(w, r.WithContext(auth.NewContext(r.Context(), id)))
	}
}

func requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			fail(w, r, auth.ErrUnauthenticated)
			return
		}
		if !id.IsAdmin() {
			fail(w, r, auth.ErrForbidden)
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// currentUser returns the id of the authenticated caller.
func currentUser(r *http.Request) string {
	id, _ := auth.FromContext(r.Context())
	return id.UserID
}
