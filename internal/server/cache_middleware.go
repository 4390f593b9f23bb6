package server

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/adrianvollmer/solvency/internal/cache"
)

var mutatingMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// cacheInvalidationMiddleware implements spec.md §4.12: after a mutating
// request completes with a 2xx status, bump the cache's global generation
// counter exactly once so the next read through any slot reloads. Status is
// only known once the handler has written it, so this wraps the
// ResponseWriter the same way loggingMiddleware observes status post-hoc.
func cacheInvalidationMiddleware(c *cache.Cache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutatingMethods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			ww, ok := w.(middleware.WrapResponseWriter)
			if !ok {
				ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			}
			next.ServeHTTP(ww, r)

			if status := ww.Status(); status >= 200 && status < 300 {
				c.Bump()
			}
		})
	}
}
