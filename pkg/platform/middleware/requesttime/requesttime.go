// Package requesttime pins one "now" per request. Vesting derives the
// calendar day of a qualifying event from it.
package requesttime

import (
	"net/http"
	"time"

	"covenant/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
