package mid

import (
	"net/http"
	"strings"
)

// Verifier is the subset of auth.Verifier the Auth middleware needs,
// kept local to avoid an import cycle between pkg/mid and internal/auth.
type Verifier interface {
	Verify(token string) (ownerID string, err error)
}

// ContextSetter attaches an authenticated owner id to a request context.
type ContextSetter func(ownerID string, r *http.Request) *http.Request

// Auth returns middleware that requires a valid "Bearer <token>"
// Authorization header, rejecting with 401 otherwise. setter attaches the
// verified owner id to the request context for downstream handlers.
func Auth(v Verifier, setter ContextSetter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			ownerID, err := v.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, setter(ownerID, r))
		})
	}
}
