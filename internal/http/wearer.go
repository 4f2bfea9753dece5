package httpapi

import (
	"net/http"

	"github.com/hperssn/pulse/internal/runner"
)

// WearerMiddleware tags the request context with the wearer identified by
// the reverse proxy. Requests without one run anonymously.
func WearerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wearer := r.Header.Get("X-Auth-User")

		if wearer == "" {
			wearer = r.Header.Get("X-Forwarded-User")
		}
		if wearer == "" {
			wearer = r.Header.Get("Remote-User")
		}
		if wearer == "" {
			wearer = r.URL.Query().Get("wearer")
		}

		if wearer == "" {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(runner.WithWearer(r.Context(), wearer)))
	})
}

// DefaultWearer fills in the wearer for requests that carry none.
func DefaultWearer(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id != "" && runner.WearerFrom(r.Context()) == "" {
				r = r.WithContext(runner.WithWearer(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
