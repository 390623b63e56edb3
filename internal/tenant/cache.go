// internal/tenant/cache.go
//
// Lazy per-database pool cache.
//
// Pools are opened on first use for a database name, stored in a
// sync.Map, and evicted on idle TTL or LRU pressure.  A singleflight
// group collapses concurrent first hits for the same database so only
// one pool is ever opened per name.
package tenant

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/subsite/internal/database"
	"github.com/yanizio/subsite/internal/metrics"
)

// Static defaults.  Override via the Cache constructor if desired.
const (
	IdleTTL       = 30 * time.Minute
	MaxEntries    = 100
	EvictInterval = 5 * time.Minute
)

// Cache lazily opens per-database pools keyed by database name.
type Cache struct {
	dsnTemplate string
	sfg         singleflight.Group
	m           sync.Map
	evictTicker *time.Ticker
	idleTTL     time.Duration
	maxEntries  int
	log         *zap.SugaredLogger
}

// New constructs a Cache and starts the background evictor.  dsnTemplate
// must contain one %s verb, replaced with the database name.
func New(dsnTemplate string, idleTTL time.Duration, maxEntries int, log *zap.SugaredLogger) *Cache {
	c := &Cache{
		dsnTemplate: dsnTemplate,
		idleTTL:     idleTTL,
		maxEntries:  maxEntries,
		log:         log,
	}
	c.evictTicker = time.NewTicker(EvictInterval)
	go c.evictLoop()
	return c
}

// Get returns the Tenant for dbName, opening its pool on demand.
func (c *Cache) Get(dbName string) (*Tenant, error) {
	if v, ok := c.m.Load(dbName); ok {
		ent := v.(*entry)
		atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
		return ent.tenant, nil
	}

	v, err, _ := c.sfg.Do(dbName, func() (interface{}, error) {
		// Double-check after singleflight barrier.
		if v, ok := c.m.Load(dbName); ok {
			ent := v.(*entry)
			atomic.StoreInt64(&ent.lastSeen, time.Now().UnixNano())
			return ent.tenant, nil
		}
		db, err := database.OpenWithOptions(context.Background(),
			fmt.Sprintf(c.dsnTemplate, dbName),
			database.Options{
				MaxOpenConns: 5,
				MaxIdleConns: 2,
				Retries:      2,
			})
		if err != nil {
			metrics.TenantPoolErrorsTotal.Inc()
			return nil, err
		}
		ent := &entry{
			tenant:   &Tenant{DBName: dbName, DB: db},
			lastSeen: time.Now().UnixNano(),
		}
		c.m.Store(dbName, ent)
		metrics.TenantPoolOpenTotal.Inc()
		metrics.ActiveTenantPools.Inc()
		return ent.tenant, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tenant), nil
}
