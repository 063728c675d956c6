package auth

import (
	"encoding/json"
	"net/http"

	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

// HTTPMiddleware returns an HTTP middleware that authenticates every
// incoming request against the given [Authenticator] and stores the
// resulting [ResolvedIdentity] in the request context.
//
// Rejected requests receive a JSON error body of the form
// {"code": "...", "message": "..."} with the status derived from the error
// code: 401 for authentication failures, 403 for a disallowed role, 400
// for malformed claims.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/v1/graphql", handleGraphQL)
//	handler := auth.HTTPMiddleware(authenticator)(mux)
//	http.ListenAndServe(":8080", handler)
func HTTPMiddleware(authenticator *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticator.Authenticate(r.Context(), r.Header)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError renders an authentication failure as a JSON response with
// the status mapped from the error's code category.
func writeAuthError(w http.ResponseWriter, err error) {
	e := engerr.FromError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    string(e.Code),
		"message": e.Message,
	})
}
