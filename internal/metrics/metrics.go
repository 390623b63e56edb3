// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveTenantPools = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_tenant_pools",
			Help: "Number of tenant database pools currently open.",
		})

	TenantPoolOpenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_pool_open_total",
			Help: "Cumulative number of tenant database pools opened.",
		})

	TenantPoolErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_pool_errors_total",
			Help: "Cumulative number of tenant pool open errors.",
		})

	TenantPoolEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenant_pool_evict_total",
			Help: "Cumulative number of tenant pools evicted from the cache.",
		})

	ResolverHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_hits_total",
			Help: "Requests whose hostname was found in the db map.",
		})

	ResolverFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_fallback_total",
			Help: "Requests routed to the default database (no mapping).",
		})

	ProvisionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provision_total",
			Help: "Tenant provisioning attempts by outcome.",
		},
		[]string{"outcome"},
	)

	CloneTablesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clone_tables_total",
			Help: "Tables processed by the schema cloner, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		ActiveTenantPools,
		TenantPoolOpenTotal,
		TenantPoolErrorsTotal,
		TenantPoolEvictTotal,
		ResolverHitsTotal,
		ResolverFallbackTotal,
		ProvisionTotal,
		CloneTablesTotal,
	)
}
