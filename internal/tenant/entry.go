// internal/tenant/entry.go
//
// Tenant cache entry and aggregate.
//
// Context
// -------
// A live Tenant holds the per-database connection pool a request needs
// after the resolver has mapped its hostname.  The cache stores a pointer
// to Tenant inside `entry`, along with a `lastSeen` UnixNano timestamp
// used by the evictor for idle and LRU eviction.
//
// Notes
// -----
//   - `Close` is invoked only by the cache evictor; handlers must treat
//     Tenant as immutable after initial load.
package tenant

import (
	"github.com/jmoiron/sqlx"
)

//
// Cache entry
//

type entry struct {
	tenant   *Tenant
	lastSeen int64 // UnixNano
}

//
// Tenant aggregate
//

// Tenant groups the per-database runtime assets used by request handlers.
type Tenant struct {
	DBName string   // resolved database name
	DB     *sqlx.DB // per-database connection pool
}

// Close is called by the cache evictor on idle or LRU eviction.
func (t *Tenant) Close() error { return t.DB.Close() }
