package authzkit

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus collectors for the decision and audit paths. Collectors
// are created eagerly but exported to a registry only when the host
// application calls RegisterMetrics, so libraries embedding authzkit
// pay nothing unless they opt in.
var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authzkit_decisions_total",
			Help: "Permission evaluations by verdict.",
		},
		[]string{"result"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authzkit_cache_lookups_total",
			Help: "Permission cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	auditRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "authzkit_audit_rejections_total",
			Help: "Audit entries rejected by the store and swallowed.",
		},
	)

	registerOnce sync.Once
)

// RegisterMetrics registers all collectors with the given registerer.
// Pass prometheus.DefaultRegisterer to expose them on the default
// /metrics endpoint. Safe to call more than once.
func RegisterMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(decisionsTotal, cacheLookupsTotal, auditRejectionsTotal)
	})
}

func observeDecision(v Verdict) {
	decisionsTotal.WithLabelValues(strings.ToLower(string(v))).Inc()
}

func observeCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookupsTotal.WithLabelValues(outcome).Inc()
}

func observeAuditFailure() {
	auditRejectionsTotal.Inc()
}
