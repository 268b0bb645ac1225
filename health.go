package authzkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// HealthService exposes database health and pool monitoring for the
// authorization service. Wrap an existing Service to surface these on a
// readiness endpoint.
type HealthService struct {
	*Service
}

// NewHealthService wraps a Service with health monitoring.
func NewHealthService(service *Service) *HealthService {
	return &HealthService{Service: service}
}

// Health reports the full database status: reachability, latency and
// pool statistics. Inside a transaction only a basic ping is possible.
func (hs *HealthService) Health(ctx context.Context) dbkit.HealthStatus {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return db.Health(ctx)
	}

	return dbkit.HealthStatus{
		Healthy: hs.IsHealthy(ctx),
		Error:   "Limited health check - not a DBKit instance",
	}
}

// IsHealthy reports whether the store's database answers at all.
// Evaluations fail closed while this is false.
func (hs *HealthService) IsHealthy(ctx context.Context) bool {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return db.IsHealthy(ctx)
	}

	return hs.Ping(ctx) == nil
}

// GetPoolStats returns connection pool statistics, or zero values when
// the underlying handle has no pool.
func (hs *HealthService) GetPoolStats() dbkit.PoolStats {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return dbkit.PoolStatsFromSQL(db.Stats())
	}

	return dbkit.PoolStats{}
}

// Ping issues a minimal query against the database.
func (hs *HealthService) Ping(ctx context.Context) error {
	var result int
	return hs.db.NewSelect().Model((*struct{})(nil)).ColumnExpr("1").Limit(1).Scan(ctx, &result)
}
