// internal/tenant/resolver.go
//
// Request-time hostname → database resolver.
//
// Context
// -------
// The resolver runs before any other handler touches tenant data.  It
// reads the request hostname, looks it up in the hostname registry, and
// binds the matching database pool into the request context.  Unknown
// hosts, or a registry snapshot that does not exist yet, fall back to
// the statically configured default database.  The resolver never
// mutates the registry.
package tenant

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/subsite/internal/hostmap"
	"github.com/yanizio/subsite/internal/metrics"
)

// Resolver returns middleware that rebinds each request to its tenant
// database before the next handler runs.
func Resolver(reg *hostmap.Registry, cache *Cache, defaultDB string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := stripPort(r.Host)

			dbName, ok, err := reg.Get(host)
			if err != nil {
				// A corrupt snapshot must not take the whole site down;
				// route to the default database and surface the error in
				// the logs.
				zap.S().Errorw("hostmap read failed", "host", host, "err", err)
				ok = false
			}
			if ok {
				metrics.ResolverHitsTotal.Inc()
			} else {
				dbName = defaultDB
				metrics.ResolverFallbackTotal.Inc()
			}

			ten, err := cache.Get(dbName)
			if err != nil {
				zap.S().Errorw("tenant pool open failed",
					"host", host, "db", dbName, "err", err)
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), ten)))
		})
	}
}

// stripPort removes any ":port" suffix from the Host header.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
